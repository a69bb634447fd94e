package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/hitoshi/kitchenstock/internal/middleware"
	"github.com/hitoshi/kitchenstock/internal/model"
	"github.com/hitoshi/kitchenstock/internal/repository"
)

// maxRequestBodySize はJSONリクエストボディの上限。画像（base64）を含むため大きめにとる。
const maxRequestBodySize = 10 << 20

// dateLayout はAPIで扱う日付（期限）の形式。
const dateLayout = "2006-01-02"

// listResponse は一覧系APIの共通レスポンス。
type listResponse[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"next_cursor,omitempty"`
	HasMore    bool   `json:"has_more"`
}

// writeJSON はstatusCodeとともにvをJSONで書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("レスポンスの書き込みに失敗しました", slog.String("error", err.Error()))
	}
}

// decodeJSON はリクエストボディをdstにデコードする。
// 失敗した場合は400を書き込みfalseを返す。
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodySize))
	if err := dec.Decode(dst); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("リクエストボディの解析に失敗しました。"))
		return false
	}
	return true
}

// requireUserID は認証済みユーザーIDを取り出す。無い場合は401を書き込む。
func requireUserID(w http.ResponseWriter, r *http.Request) (model.UserID, bool) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return model.UserID{}, false
	}
	return userID, true
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr, ok := model.APIErrorFromDomain(err)
	if !ok {
		errors.As(err, &apiErr)
	}
	if apiErr == nil {
		// ドメインエラー以外は内部サーバーエラーとして扱う
		slog.ErrorContext(r.Context(), "内部エラーが発生しました",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		middleware.WriteInternalServerError(w)
		return
	}

	status := middleware.StatusForAPIError(apiErr)
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "サービスエラーが発生しました",
			slog.String("path", r.URL.Path),
			slog.String("code", apiErr.Code),
			slog.String("error", err.Error()),
		)
	}
	middleware.WriteErrorResponse(w, status, apiErr)
}

// pageParams は一覧APIのクエリ（cursor, limit）を解釈する。
// cursorは前ページのnext_cursorをそのまま渡す。limitは既定値・上限に丸める。
func pageParams(r *http.Request) (cursor repository.Cursor, limit int, err error) {
	q := r.URL.Query()
	if raw := q.Get("cursor"); raw != "" {
		cursor, err = repository.ParseCursor(raw)
		if err != nil {
			return repository.Cursor{}, 0, errors.New("cursorの形式が不正です。")
		}
	}

	limit = repository.DefaultListLimit
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return repository.Cursor{}, 0, errors.New("limitには正の整数を指定してください。")
		}
		limit = min(n, repository.MaxListLimit)
	}
	return cursor, limit, nil
}

// newListResponse は取得件数がlimitに達した場合に次ページのカーソルを付与する。
func newListResponse[E, T any](entities []E, limit int, position func(E) repository.Cursor, convert func(E) T) listResponse[T] {
	items := make([]T, 0, len(entities))
	for _, e := range entities {
		items = append(items, convert(e))
	}
	resp := listResponse[T]{Items: items}
	if len(entities) > 0 && len(entities) >= limit {
		resp.HasMore = true
		resp.NextCursor = position(entities[len(entities)-1]).Encode()
	}
	return resp
}

// parseDate はYYYY-MM-DD形式の日付を解釈する。nilはnilのまま返す。
func parseDate(raw *string) (*time.Time, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, *raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// formatDate は日付をYYYY-MM-DD形式にする。nilはnilのまま返す。
func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(dateLayout)
	return &s
}

func notFoundError() *model.APIError {
	return &model.APIError{
		Code:     string(model.CodeNotFound),
		Message:  "指定されたパスが見つかりません。",
		Category: "system",
		Action:   "URLを確認してください。",
	}
}

func methodNotAllowedError() *model.APIError {
	return &model.APIError{
		Code:     "METHOD_NOT_ALLOWED",
		Message:  "このメソッドは使用できません。",
		Category: "system",
		Action:   "APIの仕様を確認してください。",
	}
}
