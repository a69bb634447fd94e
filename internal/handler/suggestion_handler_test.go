package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/kitchenstock/internal/model"
)

type mockSuggestionService struct {
	shoppingFn func(ctx context.Context, userID model.UserID) ([]model.ShoppingSuggestion, error)
	recipesFn  func(ctx context.Context, userID model.UserID, limit int) ([]*model.Suggestion, error)
}

func (m *mockSuggestionService) SuggestShoppingItems(ctx context.Context, userID model.UserID) ([]model.ShoppingSuggestion, error) {
	return m.shoppingFn(ctx, userID)
}

func (m *mockSuggestionService) GenerateRecipes(ctx context.Context, userID model.UserID, limit int) ([]*model.Suggestion, error) {
	return m.recipesFn(ctx, userID, limit)
}

func TestSuggestionHandler_Recipes(t *testing.T) {
	gotLimit := -1
	svc := &mockSuggestionService{
		recipesFn: func(_ context.Context, _ model.UserID, limit int) ([]*model.Suggestion, error) {
			gotLimit = limit
			s, err := model.NewSuggestion(model.SuggestionProps{
				Title:         "納豆ご飯",
				EstimatedTime: model.EstimatedTimeQuick,
				Ingredients:   []model.Ingredient{{Name: "納豆", Quantity: "1パック", IsUrgent: true}},
			}, testNow)
			if err != nil {
				t.Fatal(err)
			}
			return []*model.Suggestion{s}, nil
		},
	}

	w := httptest.NewRecorder()
	NewSuggestionHandler(svc).Recipes(w, withUserID(httptest.NewRequest(http.MethodGet, "/api/suggestions?limit=3", nil), "user-1"))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if gotLimit != 3 {
		t.Errorf("limit = %d, want 3", gotLimit)
	}
	var resp recipesResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Suggestions) != 1 {
		t.Fatalf("suggestions = %+v", resp.Suggestions)
	}
	got := resp.Suggestions[0]
	if got.Title != "納豆ご飯" || got.EstimatedTime != "quick" || len(got.Ingredients) != 1 || !got.Ingredients[0].IsUrgent {
		t.Errorf("suggestion = %+v", got)
	}
	if got.Steps == nil || got.UrgentIngredients == nil {
		t.Errorf("slices should be non-nil: %+v", got)
	}
}

func TestSuggestionHandler_Recipes_DefaultLimit(t *testing.T) {
	gotLimit := -1
	svc := &mockSuggestionService{
		recipesFn: func(_ context.Context, _ model.UserID, limit int) ([]*model.Suggestion, error) {
			gotLimit = limit
			return []*model.Suggestion{}, nil
		},
	}

	w := httptest.NewRecorder()
	NewSuggestionHandler(svc).Recipes(w, withUserID(httptest.NewRequest(http.MethodGet, "/api/suggestions", nil), "user-1"))

	if gotLimit != 0 {
		t.Errorf("limit = %d, want 0 (service default)", gotLimit)
	}
	if !strings.Contains(w.Body.String(), `"suggestions":[]`) {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestSuggestionHandler_Recipes_Errors(t *testing.T) {
	w := httptest.NewRecorder()
	NewSuggestionHandler(&mockSuggestionService{}).Recipes(w, withUserID(httptest.NewRequest(http.MethodGet, "/api/suggestions?limit=-1", nil), "user-1"))
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid limit: status = %d, want 400", w.Code)
	}

	svc := &mockSuggestionService{
		recipesFn: func(context.Context, model.UserID, int) ([]*model.Suggestion, error) {
			return nil, model.NewSuggestionError(model.CodeGenerationFailed, errors.New("quota"))
		},
	}
	w = httptest.NewRecorder()
	NewSuggestionHandler(svc).Recipes(w, withUserID(httptest.NewRequest(http.MethodGet, "/api/suggestions", nil), "user-1"))
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("generation failure: status = %d, want 422", w.Code)
	}
	if body := decodeErrorBody(t, w); body.Category != "suggestion" {
		t.Errorf("category = %q, want suggestion", body.Category)
	}
}

func TestSuggestionHandler_Shopping(t *testing.T) {
	svc := &mockSuggestionService{
		shoppingFn: func(context.Context, model.UserID) ([]model.ShoppingSuggestion, error) {
			return []model.ShoppingSuggestion{
				{ProductID: "p-1", Name: "牛乳", Reason: model.ReasonExpired, Urgency: model.UrgencyWouldntTrust},
				{ProductID: "p-2", Name: "醤油", Reason: model.ReasonAlmostEmpty, Urgency: model.UrgencyOK},
			}, nil
		},
	}

	w := httptest.NewRecorder()
	NewSuggestionHandler(svc).Shopping(w, withUserID(httptest.NewRequest(http.MethodGet, "/api/suggestions/shopping", nil), "user-1"))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp shoppingSuggestionsResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Suggestions) != 2 || resp.Suggestions[0].Reason != "expired" || resp.Suggestions[1].Urgency != "ok" {
		t.Errorf("suggestions = %+v", resp.Suggestions)
	}
}
