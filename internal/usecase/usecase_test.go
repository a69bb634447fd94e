package usecase

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/kitchenstock/internal/event"
	"github.com/hitoshi/kitchenstock/internal/metrics"
	"github.com/hitoshi/kitchenstock/internal/model"
)

type mockPublisher struct {
	events []event.Event
	err    error
}

func (m *mockPublisher) Publish(_ context.Context, e event.Event) error {
	m.events = append(m.events, e)
	return m.err
}

type mockMetrics struct {
	metrics.Nop
	publishFailures []string
	aiOps           []string
	aiSuccess       []bool
}

func (m *mockMetrics) RecordEventPublishFailure(eventType string) {
	m.publishFailures = append(m.publishFailures, eventType)
}

func (m *mockMetrics) RecordAIRequest(operation string, success bool, _ time.Duration) {
	m.aiOps = append(m.aiOps, operation)
	m.aiSuccess = append(m.aiSuccess, success)
}

type upperSanitizer struct{}

func (upperSanitizer) Sanitize(raw string) string { return strings.ToUpper(raw) }

func TestNewRuntime_Defaults(t *testing.T) {
	r := NewRuntime()

	if r.Logger == nil || r.Now == nil {
		t.Fatal("logger and clock should be set")
	}
	if _, ok := r.Publisher.(event.NopPublisher); !ok {
		t.Errorf("Publisher = %T, want event.NopPublisher", r.Publisher)
	}
	if _, ok := r.Metrics.(metrics.Nop); !ok {
		t.Errorf("Metrics = %T, want metrics.Nop", r.Metrics)
	}
	if got := r.Clean("<b>x</b>"); got != "<b>x</b>" {
		t.Errorf("Clean without sanitizer = %q", got)
	}
}

func TestNewRuntime_NilOptionsKeepDefaults(t *testing.T) {
	r := NewRuntime(WithLogger(nil), WithClock(nil), WithEventPublisher(nil), WithMetrics(nil), WithSanitizer(nil))

	if r.Logger == nil || r.Now == nil || r.Publisher == nil || r.Metrics == nil {
		t.Error("nil options should not clear defaults")
	}
	if r.Sanitizer != nil {
		t.Error("Sanitizer should stay unset")
	}
}

func TestRuntime_ClockReturnsUTC(t *testing.T) {
	jst := time.FixedZone("JST", 9*60*60)
	fixed := time.Date(2026, 4, 1, 9, 0, 0, 0, jst)
	r := NewRuntime(WithClock(func() time.Time { return fixed }))

	got := r.Clock()
	if got.Location() != time.UTC {
		t.Errorf("Clock location = %v, want UTC", got.Location())
	}
	if !got.Equal(fixed) {
		t.Errorf("Clock = %v, want %v", got, fixed)
	}
}

func TestRuntime_CleanAppliesSanitizer(t *testing.T) {
	r := NewRuntime(WithSanitizer(upperSanitizer{}))
	if got := r.Clean("milk"); got != "MILK" {
		t.Errorf("Clean = %q, want MILK", got)
	}
}

func TestRuntime_PublishBuildsEvent(t *testing.T) {
	pub := &mockPublisher{}
	fixed := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	r := NewRuntime(WithEventPublisher(pub), WithClock(func() time.Time { return fixed }))

	r.Publish(context.Background(), event.ProductCreated, model.MustNewUserID("alice"), "p-1", map[string]any{"name": "牛乳"})

	if len(pub.events) != 1 {
		t.Fatalf("published %d events, want 1", len(pub.events))
	}
	e := pub.events[0]
	if e.Type != event.ProductCreated || e.UserID != "alice" || e.EntityID != "p-1" {
		t.Errorf("event = %+v", e)
	}
	if !e.OccurredAt.Equal(fixed) {
		t.Errorf("OccurredAt = %v, want %v", e.OccurredAt, fixed)
	}
	if e.ID == "" {
		t.Error("event ID should be assigned")
	}
}

func TestRuntime_PublishFailureIsLoggedNotReturned(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	pub := &mockPublisher{err: errors.New("broker down")}
	m := &mockMetrics{}
	r := NewRuntime(WithLogger(logger), WithEventPublisher(pub), WithMetrics(m))

	r.Publish(context.Background(), event.ShoppingItemBought, model.MustNewUserID("bob"), "s-1", nil)

	if len(m.publishFailures) != 1 || m.publishFailures[0] != string(event.ShoppingItemBought) {
		t.Errorf("publishFailures = %v", m.publishFailures)
	}
	out := buf.String()
	if !strings.Contains(out, "broker down") || !strings.Contains(out, `"user_id":"bob"`) {
		t.Errorf("warning log should include error and user_id: %s", out)
	}
}

func TestRuntime_ObserveAI(t *testing.T) {
	m := &mockMetrics{}
	r := NewRuntime(WithMetrics(m))

	r.ObserveAI("estimate_expiry", time.Now(), nil)
	r.ObserveAI("scan_receipt", time.Now(), errors.New("timeout"))

	if len(m.aiOps) != 2 || m.aiOps[0] != "estimate_expiry" || m.aiOps[1] != "scan_receipt" {
		t.Errorf("aiOps = %v", m.aiOps)
	}
	if !m.aiSuccess[0] || m.aiSuccess[1] {
		t.Errorf("aiSuccess = %v, want [true false]", m.aiSuccess)
	}
}
