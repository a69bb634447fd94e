package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Ingredient はレシピ提案で使う材料。
// ProductID は在庫の商品に対応する場合のみ設定される。
type Ingredient struct {
	ProductID *string
	Name      string
	Quantity  string
	IsUrgent  bool
}

// Suggestion は在庫から生成したレシピ提案。
type Suggestion struct {
	ID                string
	Title             string
	Description       string
	EstimatedTime     EstimatedTime
	Ingredients       []Ingredient
	UrgentIngredients []string
	Steps             []string
	CreatedAt         time.Time
}

// SuggestionProps はNewSuggestionに渡す値。
type SuggestionProps struct {
	Title             string
	Description       string
	EstimatedTime     EstimatedTime
	Ingredients       []Ingredient
	UrgentIngredients []string
	Steps             []string
}

// NewSuggestion はレシピ提案を生成する。
// 検証順序: TITLE_EMPTY → NO_INGREDIENTS → INVALID_ESTIMATED_TIME。
func NewSuggestion(props SuggestionProps, now time.Time) (*Suggestion, error) {
	title := strings.TrimSpace(props.Title)
	if title == "" {
		return nil, &SuggestionError{Code: CodeTitleEmpty, Err: newValidationError("title", CodeTitleEmpty)}
	}
	if len(props.Ingredients) == 0 {
		return nil, &SuggestionError{Code: CodeNoIngredients, Err: newValidationError("ingredients", CodeNoIngredients)}
	}

	et := props.EstimatedTime
	if et == "" {
		et = EstimatedTimeMedium
	}
	if _, err := ParseEstimatedTime(string(et)); err != nil {
		return nil, &SuggestionError{Code: CodeInvalidEstimatedTime, Err: err}
	}

	return &Suggestion{
		ID:                uuid.New().String(),
		Title:             title,
		Description:       strings.TrimSpace(props.Description),
		EstimatedTime:     et,
		Ingredients:       props.Ingredients,
		UrgentIngredients: props.UrgentIngredients,
		Steps:             props.Steps,
		CreatedAt:         now.UTC(),
	}, nil
}

// ShoppingSuggestion は在庫状況から導出した「買い足し候補」。
// 永続化はされず、提案ユースケースの戻り値としてのみ使われる。
type ShoppingSuggestion struct {
	ProductID string
	Name      string
	Reason    ShoppingSuggestionReason
	Urgency   Urgency
}

// ShoppingSuggestionReason は買い足し候補とした理由。
type ShoppingSuggestionReason string

const (
	ReasonAlmostEmpty  ShoppingSuggestionReason = "almost_empty"
	ReasonExpired      ShoppingSuggestionReason = "expired"
	ReasonExpiringSoon ShoppingSuggestionReason = "expiring_soon"
)
