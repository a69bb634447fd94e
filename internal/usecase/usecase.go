// Package usecase は各ユースケースサービスが共有する実行時依存（ロガー・時計・
// イベント配信・メトリクス・サニタイザ）をまとめる。
package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/kitchenstock/internal/event"
	"github.com/hitoshi/kitchenstock/internal/metrics"
	"github.com/hitoshi/kitchenstock/internal/model"
)

// Sanitizer は利用者入力やAI出力からマークアップを取り除くインターフェース。
type Sanitizer interface {
	Sanitize(raw string) string
}

// Runtime はサービスが参照する横断的な依存。
// ゼロ値ではなくNewRuntimeで生成すること。
type Runtime struct {
	Logger    *slog.Logger
	Now       func() time.Time
	Publisher event.Publisher
	Metrics   metrics.MetricsCollector
	Sanitizer Sanitizer
}

// Option はRuntimeを変更する関数オプション。
type Option func(*Runtime)

// WithLogger はロガーを指定する。
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runtime) {
		if logger != nil {
			r.Logger = logger
		}
	}
}

// WithClock は現在時刻の取得関数を指定する。
func WithClock(now func() time.Time) Option {
	return func(r *Runtime) {
		if now != nil {
			r.Now = now
		}
	}
}

// WithEventPublisher はイベント配信先を指定する。
func WithEventPublisher(p event.Publisher) Option {
	return func(r *Runtime) {
		if p != nil {
			r.Publisher = p
		}
	}
}

// WithMetrics はメトリクスコレクターを指定する。
func WithMetrics(m metrics.MetricsCollector) Option {
	return func(r *Runtime) {
		if m != nil {
			r.Metrics = m
		}
	}
}

// WithSanitizer はサニタイザを指定する。
func WithSanitizer(s Sanitizer) Option {
	return func(r *Runtime) {
		if s != nil {
			r.Sanitizer = s
		}
	}
}

// NewRuntime は既定値にoptsを適用したRuntimeを返す。
// 既定: slog.Default、time.Now、配信なし、メトリクスなし、サニタイズなし。
func NewRuntime(opts ...Option) Runtime {
	r := Runtime{
		Logger:    slog.Default(),
		Now:       time.Now,
		Publisher: event.NopPublisher{},
		Metrics:   metrics.Nop{},
	}
	for _, opt := range opts {
		opt(&r)
	}
	return r
}

// Clock は現在時刻をUTCで返す。
func (r Runtime) Clock() time.Time {
	return r.Now().UTC()
}

// Clean はサニタイザが設定されていれば適用する。
func (r Runtime) Clean(s string) string {
	if r.Sanitizer == nil {
		return s
	}
	return r.Sanitizer.Sanitize(s)
}

// Publish はイベントを配信する。失敗は記録するだけで呼び出し元には返さない。
func (r Runtime) Publish(ctx context.Context, t event.Type, userID model.UserID, entityID string, data map[string]any) {
	e := event.New(t, userID, entityID, r.Clock(), data)
	if err := r.Publisher.Publish(ctx, e); err != nil {
		r.Metrics.RecordEventPublishFailure(string(t))
		r.Logger.WarnContext(ctx, "イベントの配信に失敗しました",
			slog.String("event_type", string(t)),
			slog.String("user_id", userID.String()),
			slog.String("error", err.Error()),
		)
	}
}

// ObserveAI はAI呼び出しの結果と所要時間を記録する。
func (r Runtime) ObserveAI(operation string, start time.Time, err error) {
	r.Metrics.RecordAIRequest(operation, err == nil, time.Since(start))
}
