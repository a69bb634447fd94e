package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/kitchenstock/internal/middleware"
	"github.com/hitoshi/kitchenstock/internal/model"
	"github.com/hitoshi/kitchenstock/internal/repository"
	"github.com/hitoshi/kitchenstock/internal/shopping"
)

// ShoppingServiceInterface は買い物リストハンドラーが必要とするサービスインターフェース。
type ShoppingServiceInterface interface {
	Create(ctx context.Context, userID model.UserID, params shopping.CreateParams) (*model.ShoppingItem, error)
	Get(ctx context.Context, userID model.UserID, id string) (*model.ShoppingItem, error)
	List(ctx context.Context, userID model.UserID, params shopping.ListParams) ([]*model.ShoppingItem, error)
	Update(ctx context.Context, userID model.UserID, id string, params shopping.UpdateParams) (*model.ShoppingItem, error)
	Delete(ctx context.Context, userID model.UserID, id string) error
	ClearBought(ctx context.Context, userID model.UserID) (int64, error)
}

// ShoppingHandler は買い物リストのHTTPハンドラー。
type ShoppingHandler struct {
	service ShoppingServiceInterface
}

// NewShoppingHandler はShoppingHandlerを生成する。
func NewShoppingHandler(service ShoppingServiceInterface) *ShoppingHandler {
	return &ShoppingHandler{service: service}
}

type createShoppingItemRequest struct {
	Name      string  `json:"name"`
	ProductID *string `json:"product_id,omitempty"`
}

// updateShoppingItemRequest は部分更新リクエスト。nilのフィールドは変更しない。
type updateShoppingItemRequest struct {
	Name     *string `json:"name,omitempty"`
	IsBought *bool   `json:"is_bought,omitempty"`
}

type shoppingItemResponse struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	ProductID *string    `json:"product_id"`
	IsBought  bool       `json:"is_bought"`
	BoughtAt  *time.Time `json:"bought_at"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

type clearBoughtResponse struct {
	Deleted int64 `json:"deleted"`
}

// Create は買い物アイテムを追加する。
// POST /api/shopping-items
func (h *ShoppingHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req createShoppingItemRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	item, err := h.service.Create(r.Context(), userID, shopping.CreateParams{
		Name:      req.Name,
		ProductID: req.ProductID,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toShoppingItemResponse(item))
}

// List は買い物リストを取得する。
// GET /api/shopping-items?is_bought=false&cursor=...&limit=50
func (h *ShoppingHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	cursor, limit, err := pageParams(r)
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError(err.Error()))
		return
	}

	params := shopping.ListParams{Cursor: cursor, Limit: limit}
	if raw := r.URL.Query().Get("is_bought"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			middleware.WriteErrorResponse(w, http.StatusBadRequest,
				model.NewInvalidRequestError("is_boughtにはtrueまたはfalseを指定してください。"))
			return
		}
		params.IsBought = &b
	}

	items, err := h.service.List(r.Context(), userID, params)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, newListResponse(items, limit,
		func(i *model.ShoppingItem) repository.Cursor { return repository.CursorAt(i.CreatedAt, i.ID) },
		toShoppingItemResponse,
	))
}

// Get は買い物アイテムを取得する。
// GET /api/shopping-items/{id}
func (h *ShoppingHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	item, err := h.service.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toShoppingItemResponse(item))
}

// Update は名前・購入済みフラグを部分更新する。
// PATCH /api/shopping-items/{id}
func (h *ShoppingHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req updateShoppingItemRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	item, err := h.service.Update(r.Context(), userID, chi.URLParam(r, "id"), shopping.UpdateParams{
		Name:     req.Name,
		IsBought: req.IsBought,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toShoppingItemResponse(item))
}

// Delete は買い物アイテムを削除する。
// DELETE /api/shopping-items/{id}
func (h *ShoppingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ClearBought は購入済みのアイテムをまとめて削除する。
// DELETE /api/shopping-items/bought
func (h *ShoppingHandler) ClearBought(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	n, err := h.service.ClearBought(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, clearBoughtResponse{Deleted: n})
}

func toShoppingItemResponse(item *model.ShoppingItem) shoppingItemResponse {
	return shoppingItemResponse{
		ID:        item.ID,
		Name:      item.Name,
		ProductID: item.ProductID,
		IsBought:  item.IsBought,
		BoughtAt:  item.BoughtAt,
		CreatedAt: item.CreatedAt,
		UpdatedAt: item.UpdatedAt,
	}
}

var _ ShoppingServiceInterface = (*shopping.Service)(nil)
