package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/kitchenstock/internal/middleware"
	"github.com/hitoshi/kitchenstock/internal/model"
	"github.com/hitoshi/kitchenstock/internal/product"
	"github.com/hitoshi/kitchenstock/internal/repository"
)

// ProductServiceInterface は商品ハンドラーが必要とするサービスインターフェース。
type ProductServiceInterface interface {
	Create(ctx context.Context, userID model.UserID, props model.ProductProps) (*model.Product, error)
	Get(ctx context.Context, userID model.UserID, id string) (*model.Product, error)
	List(ctx context.Context, userID model.UserID, params product.ListParams) ([]*model.Product, error)
	Update(ctx context.Context, userID model.UserID, id string, props model.ProductProps) (*model.Product, error)
	Delete(ctx context.Context, userID model.UserID, id string) error
	EstimateExpiry(ctx context.Context, userID model.UserID, id string) (*model.Product, model.ExpiryEstimation, error)
	EstimateExpiryDate(ctx context.Context, name string, status model.ProductStatus, location *model.ProductLocation) (model.ExpiryEstimation, error)
	IdentifyByImage(ctx context.Context, imageBase64 string) (*model.ProductIdentification, error)
	IdentifyByBarcode(ctx context.Context, barcode string) (*model.ProductIdentification, error)
	ScanReceipt(ctx context.Context, imageBase64 string) ([]model.ReceiptItem, error)
}

// ProductHandler は商品管理のHTTPハンドラー。
type ProductHandler struct {
	service ProductServiceInterface
	now     func() time.Time
}

// NewProductHandler はProductHandlerを生成する。
func NewProductHandler(service ProductServiceInterface) *ProductHandler {
	return &ProductHandler{
		service: service,
		now:     time.Now,
	}
}

// --- リクエスト・レスポンス型 ---

// productRequest は商品の作成・更新リクエストのボディ。日付はYYYY-MM-DD。
type productRequest struct {
	Name                string  `json:"name"`
	Status              string  `json:"status,omitempty"`
	Location            *string `json:"location,omitempty"`
	Quantity            *string `json:"quantity,omitempty"`
	ExpiryDate          *string `json:"expiry_date,omitempty"`
	EstimatedExpiryDate *string `json:"estimated_expiry_date,omitempty"`
	Outcome             *string `json:"outcome,omitempty"`
}

// productResponse は商品のAPIレスポンス。
// urgencyとdays_until_expiryはレスポンス生成時点で算出する。
type productResponse struct {
	ID                  string    `json:"id"`
	Name                string    `json:"name"`
	Status              string    `json:"status"`
	Location            *string   `json:"location"`
	Quantity            *string   `json:"quantity"`
	ExpiryDate          *string   `json:"expiry_date"`
	EstimatedExpiryDate *string   `json:"estimated_expiry_date"`
	Outcome             *string   `json:"outcome"`
	Urgency             string    `json:"urgency"`
	DaysUntilExpiry     *int      `json:"days_until_expiry"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

type estimateRequest struct {
	Name     string  `json:"name"`
	Status   string  `json:"status,omitempty"`
	Location *string `json:"location,omitempty"`
}

type estimationResponse struct {
	ExpiryDate *string `json:"expiry_date"`
	Confidence string  `json:"confidence"`
}

type estimateExpiryResponse struct {
	Product    productResponse    `json:"product"`
	Estimation estimationResponse `json:"estimation"`
}

type imageRequest struct {
	Image string `json:"image"`
}

type barcodeRequest struct {
	Barcode string `json:"barcode"`
}

type identificationResponse struct {
	Name              string  `json:"name"`
	Confidence        string  `json:"confidence"`
	Method            string  `json:"method"`
	SuggestedLocation *string `json:"suggested_location"`
	SuggestedQuantity *string `json:"suggested_quantity"`
}

type receiptItemResponse struct {
	Name       string `json:"name"`
	Confidence string `json:"confidence"`
}

type receiptResponse struct {
	Items []receiptItemResponse `json:"items"`
}

// --- ハンドラー ---

// Create は商品を登録する。
// POST /api/products
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req productRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	props, ok := toProductProps(w, req)
	if !ok {
		return
	}

	p, err := h.service.Create(r.Context(), userID, props)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, h.toProductResponse(p))
}

// List は商品一覧を取得する。
// GET /api/products?status=opened&cursor=...&limit=50
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	cursor, limit, err := pageParams(r)
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError(err.Error()))
		return
	}

	params := product.ListParams{Cursor: cursor, Limit: limit}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := model.ProductStatus(raw)
		params.Status = &status
	}

	products, err := h.service.List(r.Context(), userID, params)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, newListResponse(products, limit,
		func(p *model.Product) repository.Cursor { return repository.CursorAt(p.CreatedAt, p.ID) },
		h.toProductResponse,
	))
}

// Get は商品詳細を取得する。
// GET /api/products/{id}
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	p, err := h.service.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, h.toProductResponse(p))
}

// Update は商品全体を更新する。
// PUT /api/products/{id}
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req productRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	props, ok := toProductProps(w, req)
	if !ok {
		return
	}

	p, err := h.service.Update(r.Context(), userID, chi.URLParam(r, "id"), props)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, h.toProductResponse(p))
}

// Delete は商品を削除する。
// DELETE /api/products/{id}
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
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

// EstimateExpiry は登録済み商品の期限を推定し、推定結果を保存する。
// POST /api/products/{id}/estimate-expiry
func (h *ProductHandler) EstimateExpiry(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	p, est, err := h.service.EstimateExpiry(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, estimateExpiryResponse{
		Product:    h.toProductResponse(p),
		Estimation: toEstimationResponse(est),
	})
}

// EstimateExpiryDate は未登録の商品の期限を推定する。何も保存しない。
// POST /api/products/estimate-expiry-date
func (h *ProductHandler) EstimateExpiryDate(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUserID(w, r); !ok {
		return
	}

	var req estimateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var location *model.ProductLocation
	if req.Location != nil {
		l := model.ProductLocation(*req.Location)
		location = &l
	}

	est, err := h.service.EstimateExpiryDate(r.Context(), req.Name, model.ProductStatus(req.Status), location)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toEstimationResponse(est))
}

// IdentifyByImage は画像から商品を識別する。
// POST /api/products/identify/image
func (h *ProductHandler) IdentifyByImage(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUserID(w, r); !ok {
		return
	}

	var req imageRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Image) == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("画像が空です。"))
		return
	}

	id, err := h.service.IdentifyByImage(r.Context(), req.Image)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toIdentificationResponse(id))
}

// IdentifyByBarcode はバーコードから商品を識別する。
// POST /api/products/identify/barcode
func (h *ProductHandler) IdentifyByBarcode(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUserID(w, r); !ok {
		return
	}

	var req barcodeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	barcode := strings.TrimSpace(req.Barcode)
	if barcode == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("バーコードが空です。"))
		return
	}

	id, err := h.service.IdentifyByBarcode(r.Context(), barcode)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toIdentificationResponse(id))
}

// ScanReceipt はレシート画像から品目を読み取る。
// POST /api/products/scan-receipt
func (h *ProductHandler) ScanReceipt(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUserID(w, r); !ok {
		return
	}

	var req imageRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Image) == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("画像が空です。"))
		return
	}

	items, err := h.service.ScanReceipt(r.Context(), req.Image)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	resp := receiptResponse{Items: make([]receiptItemResponse, 0, len(items))}
	for _, it := range items {
		resp.Items = append(resp.Items, receiptItemResponse{Name: it.Name, Confidence: string(it.Confidence)})
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- ヘルパー関数 ---

// toProductProps はリクエストをドメインの入力値に変換する。
// 列挙値の検証はドメイン層に任せ、ここでは日付形式のみ検証する。
func toProductProps(w http.ResponseWriter, req productRequest) (model.ProductProps, bool) {
	expiry, err := parseDate(req.ExpiryDate)
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("expiry_dateはYYYY-MM-DD形式で指定してください。"))
		return model.ProductProps{}, false
	}
	estimated, err := parseDate(req.EstimatedExpiryDate)
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("estimated_expiry_dateはYYYY-MM-DD形式で指定してください。"))
		return model.ProductProps{}, false
	}

	props := model.ProductProps{
		Name:                req.Name,
		Status:              model.ProductStatus(req.Status),
		Quantity:            req.Quantity,
		ExpiryDate:          expiry,
		EstimatedExpiryDate: estimated,
	}
	if req.Location != nil {
		l := model.ProductLocation(*req.Location)
		props.Location = &l
	}
	if req.Outcome != nil {
		o := model.ProductOutcome(*req.Outcome)
		props.Outcome = &o
	}
	return props, true
}

// toProductResponse はmodel.ProductからAPIレスポンスに変換する。
func (h *ProductHandler) toProductResponse(p *model.Product) productResponse {
	now := h.now()
	resp := productResponse{
		ID:                  p.ID,
		Name:                p.Name,
		Status:              string(p.Status),
		ExpiryDate:          formatDate(p.ExpiryDate),
		EstimatedExpiryDate: formatDate(p.EstimatedExpiryDate),
		Urgency:             string(p.Urgency(now)),
		CreatedAt:           p.CreatedAt,
		UpdatedAt:           p.UpdatedAt,
	}
	if p.Location != nil {
		s := string(*p.Location)
		resp.Location = &s
	}
	if p.Quantity != nil {
		s := p.Quantity.String()
		resp.Quantity = &s
	}
	if p.Outcome != nil {
		s := string(*p.Outcome)
		resp.Outcome = &s
	}
	if days, ok := p.DaysUntilExpiry(now); ok {
		resp.DaysUntilExpiry = &days
	}
	return resp
}

func toEstimationResponse(est model.ExpiryEstimation) estimationResponse {
	return estimationResponse{
		ExpiryDate: formatDate(est.Date),
		Confidence: string(est.Confidence),
	}
}

func toIdentificationResponse(id *model.ProductIdentification) identificationResponse {
	resp := identificationResponse{
		Name:              id.Name,
		Confidence:        string(id.Confidence),
		Method:            string(id.Method),
		SuggestedQuantity: id.SuggestedQuantity,
	}
	if id.SuggestedLocation != nil {
		s := string(*id.SuggestedLocation)
		resp.SuggestedLocation = &s
	}
	return resp
}

var _ ProductServiceInterface = (*product.Service)(nil)
