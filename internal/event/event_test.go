package event

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/hitoshi/kitchenstock/internal/model"
)

type mockWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (m *mockWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if m.err != nil {
		return m.err
	}
	m.msgs = append(m.msgs, msgs...)
	return nil
}

func (m *mockWriter) Close() error {
	m.closed = true
	return nil
}

var testNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func TestNew_AssignsIDAndUTC(t *testing.T) {
	jst := time.FixedZone("JST", 9*60*60)
	e := New(ProductCreated, model.MustNewUserID("user-1"), "p-1", testNow.In(jst), nil)

	if e.ID == "" {
		t.Error("ID should be assigned")
	}
	if e.OccurredAt.Location() != time.UTC {
		t.Errorf("OccurredAt location = %v, want UTC", e.OccurredAt.Location())
	}
	if e.UserID != "user-1" || e.EntityID != "p-1" {
		t.Errorf("UserID/EntityID = %q/%q", e.UserID, e.EntityID)
	}
}

// KafkaPublisherがユーザーIDをキーにJSONを書き込むことを検証
func TestKafkaPublisher_Publish(t *testing.T) {
	w := &mockWriter{}
	p := newKafkaPublisher(w, time.Second)

	e := New(ShoppingItemBought, model.MustNewUserID("user-1"), "item-1", testNow, map[string]any{"name": "牛乳"})
	if err := p.Publish(context.Background(), e); err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}

	if len(w.msgs) != 1 {
		t.Fatalf("messages = %d, want 1", len(w.msgs))
	}
	msg := w.msgs[0]
	if string(msg.Key) != "user-1" {
		t.Errorf("Key = %q, want %q", msg.Key, "user-1")
	}

	var got Event
	if err := json.Unmarshal(msg.Value, &got); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if got.Type != ShoppingItemBought || got.EntityID != "item-1" {
		t.Errorf("decoded = %+v", got)
	}
	if len(msg.Headers) != 1 || string(msg.Headers[0].Value) != string(ShoppingItemBought) {
		t.Errorf("Headers = %+v", msg.Headers)
	}
}

func TestKafkaPublisher_WriteErrorIsWrapped(t *testing.T) {
	sentinel := errors.New("broker down")
	p := newKafkaPublisher(&mockWriter{err: sentinel}, 0)

	err := p.Publish(context.Background(), New(ProductDeleted, model.MustNewUserID("u"), "p", testNow, nil))
	if !errors.Is(err, sentinel) {
		t.Errorf("err = %v, want wrapping %v", err, sentinel)
	}
}

func TestKafkaPublisher_Close(t *testing.T) {
	w := &mockWriter{}
	if err := newKafkaPublisher(w, 0).Close(); err != nil {
		t.Fatal(err)
	}
	if !w.closed {
		t.Error("writer should be closed")
	}
}

func TestLogPublisher_WritesStructuredLog(t *testing.T) {
	var buf bytes.Buffer
	p := NewLogPublisher(slog.New(slog.NewJSONHandler(&buf, nil)))

	if err := p.Publish(context.Background(), New(ProductFinished, model.MustNewUserID("user-9"), "p-9", testNow, nil)); err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	for _, want := range []string{`"event_type":"product.finished"`, `"user_id":"user-9"`} {
		if !strings.Contains(out, want) {
			t.Errorf("log %q does not contain %q", out, want)
		}
	}
}
