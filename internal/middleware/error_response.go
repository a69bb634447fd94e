package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/kitchenstock/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
// 原因カテゴリと対処方法を含む。
type ErrorResponseBody struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
// すべてのAPIエンドポイントで一貫したエラーレスポンスを提供する。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponseBody{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, model.NewInternalError())
}

// StatusForAPIError はAPIErrorのコードに対応するHTTPステータスを返す。
//   - 入力検証 → 400
//   - 認証 → 401
//   - NOT_FOUND / PRODUCT_NOT_FOUND → 404
//   - DUPLICATE / INVALID_STATUS_TRANSITION → 409
//   - AI処理の失敗 → 422
//   - レート制限 → 429
//   - それ以外 → 500
func StatusForAPIError(apiErr *model.APIError) int {
	code := model.ErrorCode(apiErr.Code)
	switch {
	case apiErr.Code == model.ErrCodeInvalidRequest, model.IsValidationCode(code):
		return http.StatusBadRequest
	case apiErr.Code == model.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case apiErr.Code == model.ErrCodeRateLimitExceeded:
		return http.StatusTooManyRequests
	}
	switch code {
	case model.CodeNotFound, model.CodeProductNotFound:
		return http.StatusNotFound
	case model.CodeDuplicate, model.CodeInvalidStatusTransition:
		return http.StatusConflict
	case model.CodeIdentificationFailed, model.CodeScanFailed, model.CodeEstimationFailed,
		model.CodeGenerationFailed, model.CodeInvalidSuggestion:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
