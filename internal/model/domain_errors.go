package model

import (
	"errors"
	"fmt"
)

// ErrorCode はドメインエラーの機械可読コード。
// 表示用メッセージとは独立しており、ロケールに依存しない。
type ErrorCode string

// 入力検証コード
const (
	CodeUserIDEmpty                   ErrorCode = "USER_ID_EMPTY"
	CodeNameEmpty                     ErrorCode = "NAME_EMPTY"
	CodeNameTooLong                   ErrorCode = "NAME_TOO_LONG"
	CodeInvalidStatus                 ErrorCode = "INVALID_STATUS"
	CodeInvalidLocation               ErrorCode = "INVALID_LOCATION"
	CodeInvalidOutcome                ErrorCode = "INVALID_OUTCOME"
	CodeQuantityEmpty                 ErrorCode = "QUANTITY_EMPTY"
	CodeQuantityTooLong               ErrorCode = "QUANTITY_TOO_LONG"
	CodeOutcomeRequiresFinished       ErrorCode = "OUTCOME_REQUIRES_FINISHED"
	CodeEstimatedExpiryBeforeCreation ErrorCode = "ESTIMATED_EXPIRY_BEFORE_CREATION"
	CodeProductIDEmpty                ErrorCode = "PRODUCT_ID_EMPTY"
	CodeInvalidConfidence             ErrorCode = "INVALID_CONFIDENCE"
	CodeInvalidEstimatedTime          ErrorCode = "INVALID_ESTIMATED_TIME"
	CodeTitleEmpty                    ErrorCode = "TITLE_EMPTY"
	CodeNoIngredients                 ErrorCode = "NO_INGREDIENTS"
)

// 状態・永続化・外部サービス関連のコード
const (
	CodeNotFound                ErrorCode = "NOT_FOUND"
	CodeDuplicate               ErrorCode = "DUPLICATE"
	CodeInvalidStatusTransition ErrorCode = "INVALID_STATUS_TRANSITION"
	CodeProductNotFound         ErrorCode = "PRODUCT_NOT_FOUND"
	CodeIdentificationFailed    ErrorCode = "IDENTIFICATION_FAILED"
	CodeScanFailed              ErrorCode = "SCAN_FAILED"
	CodeEstimationFailed        ErrorCode = "ESTIMATION_FAILED"
	CodeGenerationFailed        ErrorCode = "GENERATION_FAILED"
	CodeInvalidSuggestion       ErrorCode = "INVALID_SUGGESTION"
	CodeRepository              ErrorCode = "REPOSITORY_ERROR"
	CodeUnknown                 ErrorCode = "UNKNOWN"
)

// IsValidationCode は利用者が修正可能な入力検証コードかどうかを返す。
func IsValidationCode(c ErrorCode) bool {
	switch c {
	case CodeUserIDEmpty, CodeNameEmpty, CodeNameTooLong, CodeInvalidStatus,
		CodeInvalidLocation, CodeInvalidOutcome, CodeQuantityEmpty, CodeQuantityTooLong,
		CodeOutcomeRequiresFinished, CodeEstimatedExpiryBeforeCreation, CodeProductIDEmpty,
		CodeInvalidConfidence, CodeInvalidEstimatedTime, CodeTitleEmpty, CodeNoIngredients:
		return true
	}
	return false
}

// RepositoryErrorKind はリポジトリ層のエラー分類。
type RepositoryErrorKind string

const (
	RepoErrNotFound    RepositoryErrorKind = "NOT_FOUND"
	RepoErrDuplicated  RepositoryErrorKind = "DUPLICATED"
	RepoErrPersistence RepositoryErrorKind = "PERSISTENCE"
	RepoErrDatabase    RepositoryErrorKind = "DATABASE_ERROR"
)

// RepositoryError はすべてのリポジトリ実装が返す共通エラー。
// ストレージ固有のエラーはErrに保持し、上位層にはKindでのみ判定させる。
type RepositoryError struct {
	Kind RepositoryErrorKind
	Op   string
	Err  error
}

// Error はerrorインターフェースを実装する。
func (e *RepositoryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

// Unwrap は元のエラーを返す。
func (e *RepositoryError) Unwrap() error { return e.Err }

// NewRepositoryError はRepositoryErrorを生成する。
func NewRepositoryError(kind RepositoryErrorKind, op string, err error) *RepositoryError {
	return &RepositoryError{Kind: kind, Op: op, Err: err}
}

// RepositoryKindOf はエラーチェーンからRepositoryErrorの分類を取り出す。
func RepositoryKindOf(err error) (RepositoryErrorKind, bool) {
	var repoErr *RepositoryError
	if errors.As(err, &repoErr) {
		return repoErr.Kind, true
	}
	return "", false
}

// codeFromRepository はリポジトリエラーを各エンティティ共通のコードに写像する純粋関数。
// NotFound → NOT_FOUND、Duplicated → DUPLICATE、それ以外の分類 → REPOSITORY_ERROR、
// RepositoryErrorでないエラー → UNKNOWN。
func codeFromRepository(err error) ErrorCode {
	kind, ok := RepositoryKindOf(err)
	if !ok {
		return CodeUnknown
	}
	switch kind {
	case RepoErrNotFound:
		return CodeNotFound
	case RepoErrDuplicated:
		return CodeDuplicate
	case RepoErrPersistence, RepoErrDatabase:
		return CodeRepository
	default:
		return CodeRepository
	}
}

// ProductError は商品ユースケースが返すエラー。
type ProductError struct {
	Code ErrorCode
	Err  error
}

// Error はerrorインターフェースを実装する。
func (e *ProductError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("product: %s: %v", e.Code, e.Err)
	}
	return fmt.Sprintf("product: %s", e.Code)
}

// Unwrap は元のエラーを返す。
func (e *ProductError) Unwrap() error { return e.Err }

// NewProductError はProductErrorを生成する。
func NewProductError(code ErrorCode, err error) *ProductError {
	return &ProductError{Code: code, Err: err}
}

// ProductErrorFromRepository はリポジトリエラーをProductErrorに変換する。
func ProductErrorFromRepository(err error) *ProductError {
	if err == nil {
		return nil
	}
	return &ProductError{Code: codeFromRepository(err), Err: err}
}

// productErrorFromValidation は検証エラーをそのコードのままProductErrorに包む。
func productErrorFromValidation(v *ValidationError) *ProductError {
	return &ProductError{Code: v.Code, Err: v}
}

// ShoppingItemError は買い物アイテムユースケースが返すエラー。
type ShoppingItemError struct {
	Code ErrorCode
	Err  error
}

// Error はerrorインターフェースを実装する。
func (e *ShoppingItemError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("shopping item: %s: %v", e.Code, e.Err)
	}
	return fmt.Sprintf("shopping item: %s", e.Code)
}

// Unwrap は元のエラーを返す。
func (e *ShoppingItemError) Unwrap() error { return e.Err }

// NewShoppingItemError はShoppingItemErrorを生成する。
func NewShoppingItemError(code ErrorCode, err error) *ShoppingItemError {
	return &ShoppingItemError{Code: code, Err: err}
}

// ShoppingItemErrorFromRepository はリポジトリエラーをShoppingItemErrorに変換する。
func ShoppingItemErrorFromRepository(err error) *ShoppingItemError {
	if err == nil {
		return nil
	}
	return &ShoppingItemError{Code: codeFromRepository(err), Err: err}
}

// SuggestionError は提案ユースケースが返すエラー。
type SuggestionError struct {
	Code ErrorCode
	Err  error
}

// Error はerrorインターフェースを実装する。
func (e *SuggestionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("suggestion: %s: %v", e.Code, e.Err)
	}
	return fmt.Sprintf("suggestion: %s", e.Code)
}

// Unwrap は元のエラーを返す。
func (e *SuggestionError) Unwrap() error { return e.Err }

// NewSuggestionError はSuggestionErrorを生成する。
func NewSuggestionError(code ErrorCode, err error) *SuggestionError {
	return &SuggestionError{Code: code, Err: err}
}

// SuggestionErrorFromRepository はリポジトリエラーをSuggestionErrorに変換する。
func SuggestionErrorFromRepository(err error) *SuggestionError {
	if err == nil {
		return nil
	}
	return &SuggestionError{Code: codeFromRepository(err), Err: err}
}

// ErrorCodeOf はエラーチェーン中のドメインエラーからコードを取り出す。
// ドメインエラーを含まない場合はCodeUnknownを返す。
func ErrorCodeOf(err error) ErrorCode {
	var pe *ProductError
	if errors.As(err, &pe) {
		return pe.Code
	}
	var se *ShoppingItemError
	if errors.As(err, &se) {
		return se.Code
	}
	var ge *SuggestionError
	if errors.As(err, &ge) {
		return ge.Code
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Code
	}
	return CodeUnknown
}
