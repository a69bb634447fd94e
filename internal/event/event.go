// Package event はドメインイベントの定義と配信アダプタを提供する。
//
// 配信はベストエフォートであり、Publishが返すエラーを呼び出し側は
// ログに記録したうえで破棄してよい。ユースケースの成否には影響させない。
package event

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/kitchenstock/internal/model"
)

// Type はイベント種別。
type Type string

const (
	ProductCreated       Type = "product.created"
	ProductUpdated       Type = "product.updated"
	ProductFinished      Type = "product.finished"
	ProductDeleted       Type = "product.deleted"
	ShoppingItemCreated  Type = "shopping_item.created"
	ShoppingItemBought   Type = "shopping_item.bought"
	ShoppingItemDeleted  Type = "shopping_item.deleted"
	ShoppingItemsCleared Type = "shopping_items.cleared"
)

// Event はドメインで発生した出来事を表す。
type Event struct {
	ID         string         `json:"id"`
	Type       Type           `json:"type"`
	UserID     string         `json:"user_id"`
	EntityID   string         `json:"entity_id,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
	Data       map[string]any `json:"data,omitempty"`
}

// New はIDを採番してイベントを生成する。
func New(t Type, userID model.UserID, entityID string, now time.Time, data map[string]any) Event {
	return Event{
		ID:         uuid.New().String(),
		Type:       t,
		UserID:     userID.String(),
		EntityID:   entityID,
		OccurredAt: now.UTC(),
		Data:       data,
	}
}

// Publisher はイベント配信のインターフェース。
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// NopPublisher は何も配信しないPublisher。
type NopPublisher struct{}

// Publish は常にnilを返す。
func (NopPublisher) Publish(context.Context, Event) error { return nil }

// LogPublisher はイベントを構造化ログとして出力するPublisher。
// ブローカーを持たない開発環境向け。
type LogPublisher struct {
	logger *slog.Logger
}

// NewLogPublisher はLogPublisherを生成する。loggerがnilの場合はslog.Default()を使う。
func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPublisher{logger: logger}
}

// Publish はイベントをINFOレベルで記録する。
func (p *LogPublisher) Publish(ctx context.Context, e Event) error {
	p.logger.InfoContext(ctx, "ドメインイベント",
		slog.String("event_id", e.ID),
		slog.String("event_type", string(e.Type)),
		slog.String("user_id", e.UserID),
		slog.String("entity_id", e.EntityID),
	)
	return nil
}

var (
	_ Publisher = NopPublisher{}
	_ Publisher = (*LogPublisher)(nil)
)
