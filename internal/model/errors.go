// Package model は在庫管理のドメインモデル（値オブジェクト・エンティティ・エラー）を定義する。
package model

import (
	"errors"
	"fmt"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, product, shopping, suggestion, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// トランスポート層固有のエラーコード
const (
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeInvalidRequest    = "INVALID_REQUEST"
	ErrCodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal          = "INTERNAL_ERROR"
)

// NewInvalidRequestError はリクエストボディの形式エラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("リクエストの形式が正しくありません: %s", reason),
		Category: "validation",
		Action:   "リクエスト内容を確認してください。",
	}
}

// NewUnauthorizedError は認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログにのみ記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// APIErrorFromDomain はドメインエラーをAPIErrorに変換する。
// ドメインエラーを含まないerrの場合はok=falseを返す。
func APIErrorFromDomain(err error) (apiErr *APIError, ok bool) {
	var (
		category string
		code     ErrorCode
	)

	var pe *ProductError
	var se *ShoppingItemError
	var ge *SuggestionError
	var ve *ValidationError
	switch {
	case errors.As(err, &pe):
		category, code = "product", pe.Code
	case errors.As(err, &se):
		category, code = "shopping", se.Code
	case errors.As(err, &ge):
		category, code = "suggestion", ge.Code
	case errors.As(err, &ve):
		category, code = "validation", ve.Code
	default:
		return nil, false
	}

	if IsValidationCode(code) {
		category = "validation"
	}

	msg, action := describeCode(code)
	return &APIError{
		Code:     string(code),
		Message:  msg,
		Category: category,
		Action:   action,
	}, true
}

// describeCode はコードごとの表示メッセージと対処方法を返す。
func describeCode(code ErrorCode) (message, action string) {
	switch code {
	case CodeUserIDEmpty:
		return "ユーザーを特定できません。", "ログインし直してください。"
	case CodeNameEmpty:
		return "名前を入力してください。", "空白以外の文字を含む名前を指定してください。"
	case CodeNameTooLong:
		return fmt.Sprintf("名前が長すぎます（最大%d文字）。", MaxNameLength), "名前を短くしてください。"
	case CodeInvalidStatus:
		return "無効な状態です。", "状態には new、opened、almost_empty、finished のいずれかを指定してください。"
	case CodeInvalidLocation:
		return "無効な保管場所です。", "保管場所には fridge、pantry、freezer のいずれかを指定してください。"
	case CodeInvalidOutcome:
		return "無効な結果です。", "結果には used、thrown_away のいずれかを指定してください。"
	case CodeQuantityEmpty:
		return "数量が空です。", "数量を入力するか、項目ごと省略してください。"
	case CodeQuantityTooLong:
		return fmt.Sprintf("数量が長すぎます（最大%d文字）。", MaxQuantityLength), "数量を短くしてください。"
	case CodeOutcomeRequiresFinished:
		return "結果は使い切った商品にのみ設定できます。", "状態を finished にしてから結果を指定してください。"
	case CodeEstimatedExpiryBeforeCreation:
		return "推定期限が登録日より前になっています。", "推定期限を確認してください。"
	case CodeProductIDEmpty:
		return "商品IDが空です。", "商品IDを指定するか、項目ごと省略してください。"
	case CodeInvalidConfidence, CodeInvalidEstimatedTime:
		return "無効な値が指定されました。", "入力内容を確認してください。"
	case CodeTitleEmpty, CodeNoIngredients, CodeInvalidSuggestion:
		return "提案の内容が不正です。", "しばらく待ってから再度お試しください。"
	case CodeNotFound:
		return "指定されたデータが見つかりません。", "IDを確認してください。"
	case CodeProductNotFound:
		return "指定された商品が見つかりません。", "商品IDを確認してください。"
	case CodeDuplicate:
		return "既に登録されています。", "一覧から該当データを確認してください。"
	case CodeInvalidStatusTransition:
		return "この状態には変更できません。", "状態は new → opened → almost_empty → finished の順にのみ進められます。"
	case CodeIdentificationFailed:
		return "商品を識別できませんでした。", "別の画像またはバーコードでお試しください。"
	case CodeScanFailed:
		return "レシートを読み取れませんでした。", "鮮明な画像で再度お試しください。"
	case CodeEstimationFailed:
		return "期限を推定できませんでした。", "期限を手動で入力してください。"
	case CodeGenerationFailed:
		return "提案を生成できませんでした。", "しばらく待ってから再度お試しください。"
	default:
		return "内部エラーが発生しました。", "しばらく待ってから再度お試しください。"
	}
}
