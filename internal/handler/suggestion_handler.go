package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/hitoshi/kitchenstock/internal/middleware"
	"github.com/hitoshi/kitchenstock/internal/model"
	"github.com/hitoshi/kitchenstock/internal/suggestion"
)

// SuggestionServiceInterface は提案ハンドラーが必要とするサービスインターフェース。
type SuggestionServiceInterface interface {
	SuggestShoppingItems(ctx context.Context, userID model.UserID) ([]model.ShoppingSuggestion, error)
	GenerateRecipes(ctx context.Context, userID model.UserID, limit int) ([]*model.Suggestion, error)
}

// SuggestionHandler は提案のHTTPハンドラー。
type SuggestionHandler struct {
	service SuggestionServiceInterface
}

// NewSuggestionHandler はSuggestionHandlerを生成する。
func NewSuggestionHandler(service SuggestionServiceInterface) *SuggestionHandler {
	return &SuggestionHandler{service: service}
}

type ingredientResponse struct {
	ProductID *string `json:"product_id"`
	Name      string  `json:"name"`
	Quantity  string  `json:"quantity"`
	IsUrgent  bool    `json:"is_urgent"`
}

type recipeResponse struct {
	ID                string               `json:"id"`
	Title             string               `json:"title"`
	Description       string               `json:"description"`
	EstimatedTime     string               `json:"estimated_time"`
	Ingredients       []ingredientResponse `json:"ingredients"`
	UrgentIngredients []string             `json:"urgent_ingredients"`
	Steps             []string             `json:"steps"`
	CreatedAt         time.Time            `json:"created_at"`
}

type recipesResponse struct {
	Suggestions []recipeResponse `json:"suggestions"`
}

type shoppingSuggestionResponse struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Reason    string `json:"reason"`
	Urgency   string `json:"urgency"`
}

type shoppingSuggestionsResponse struct {
	Suggestions []shoppingSuggestionResponse `json:"suggestions"`
}

// Recipes は在庫からレシピ提案を生成する。
// GET /api/suggestions?limit=5
func (h *SuggestionHandler) Recipes(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			middleware.WriteErrorResponse(w, http.StatusBadRequest,
				model.NewInvalidRequestError("limitには正の整数を指定してください。"))
			return
		}
		limit = n
	}

	suggestions, err := h.service.GenerateRecipes(r.Context(), userID, limit)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	resp := recipesResponse{Suggestions: make([]recipeResponse, 0, len(suggestions))}
	for _, s := range suggestions {
		resp.Suggestions = append(resp.Suggestions, toRecipeResponse(s))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Shopping は買い足し候補を返す。
// GET /api/suggestions/shopping
func (h *SuggestionHandler) Shopping(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	suggestions, err := h.service.SuggestShoppingItems(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	resp := shoppingSuggestionsResponse{Suggestions: make([]shoppingSuggestionResponse, 0, len(suggestions))}
	for _, s := range suggestions {
		resp.Suggestions = append(resp.Suggestions, shoppingSuggestionResponse{
			ProductID: s.ProductID,
			Name:      s.Name,
			Reason:    string(s.Reason),
			Urgency:   string(s.Urgency),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func toRecipeResponse(s *model.Suggestion) recipeResponse {
	ingredients := make([]ingredientResponse, 0, len(s.Ingredients))
	for _, ing := range s.Ingredients {
		ingredients = append(ingredients, ingredientResponse{
			ProductID: ing.ProductID,
			Name:      ing.Name,
			Quantity:  ing.Quantity,
			IsUrgent:  ing.IsUrgent,
		})
	}
	urgent := s.UrgentIngredients
	if urgent == nil {
		urgent = []string{}
	}
	steps := s.Steps
	if steps == nil {
		steps = []string{}
	}
	return recipeResponse{
		ID:                s.ID,
		Title:             s.Title,
		Description:       s.Description,
		EstimatedTime:     string(s.EstimatedTime),
		Ingredients:       ingredients,
		UrgentIngredients: urgent,
		Steps:             steps,
		CreatedAt:         s.CreatedAt,
	}
}

var _ SuggestionServiceInterface = (*suggestion.Service)(nil)
