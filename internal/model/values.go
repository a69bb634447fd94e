package model

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// ValidationError はフィールド単位の入力検証エラーを表す。
// Code は機械可読な安定した値で、呼び出し側はメッセージではなくCodeで判定する。
type ValidationError struct {
	Field string
	Code  ErrorCode
}

// Error はerrorインターフェースを実装する。
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Code)
}

func newValidationError(field string, code ErrorCode) *ValidationError {
	return &ValidationError{Field: field, Code: code}
}

const (
	// MaxNameLength は商品名・買い物アイテム名の最大文字数（rune数）。
	MaxNameLength = 128
	// MaxQuantityLength は数量テキストの最大文字数（rune数）。
	MaxQuantityLength = 64
)

// UserID は外部認証基盤のサブジェクトIDを表す値オブジェクト。
// ゼロ値は「未認証」を意味し、リポジトリ操作には使用できない。
type UserID struct {
	value string
}

// NewUserID は前後の空白を除去し、空でなければUserIDを生成する。
func NewUserID(raw string) (UserID, error) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return UserID{}, newValidationError("user_id", CodeUserIDEmpty)
	}
	return UserID{value: v}, nil
}

// MustNewUserID はNewUserIDと同じだが、検証エラー時にpanicする。
// 定数やテストフィクスチャ向け。
func MustNewUserID(raw string) UserID {
	id, err := NewUserID(raw)
	if err != nil {
		panic(err)
	}
	return id
}

// String は検証済みの値を返す。
func (u UserID) String() string { return u.value }

// IsZero はUserIDが未設定かどうかを返す。
func (u UserID) IsZero() bool { return u.value == "" }

// ProductStatus は商品の状態を表す。
// new → opened → almost_empty → finished の順に一方向にのみ遷移する。
type ProductStatus string

const (
	ProductStatusNew         ProductStatus = "new"
	ProductStatusOpened      ProductStatus = "opened"
	ProductStatusAlmostEmpty ProductStatus = "almost_empty"
	ProductStatusFinished    ProductStatus = "finished"
)

// productTransitions は状態遷移表。キーに無い遷移はすべて不正。
var productTransitions = map[ProductStatus][]ProductStatus{
	ProductStatusNew:         {ProductStatusOpened, ProductStatusAlmostEmpty, ProductStatusFinished},
	ProductStatusOpened:      {ProductStatusAlmostEmpty, ProductStatusFinished},
	ProductStatusAlmostEmpty: {ProductStatusFinished},
	ProductStatusFinished:    {},
}

// ParseProductStatus は文字列をProductStatusに変換する。
// 未知のトークンはデフォルト値に丸めず、必ずエラーを返す。
func ParseProductStatus(raw string) (ProductStatus, error) {
	s := ProductStatus(strings.TrimSpace(raw))
	if !s.IsValid() {
		return "", newValidationError("status", CodeInvalidStatus)
	}
	return s, nil
}

// IsValid は定義済みの状態かどうかを返す。
func (s ProductStatus) IsValid() bool {
	_, ok := productTransitions[s]
	return ok
}

// IsTerminal は終端状態かどうかを返す。
func (s ProductStatus) IsTerminal() bool {
	return s == ProductStatusFinished
}

// CanTransitionTo はsからnextへの遷移が許可されているかを返す。
// 同一状態への遷移はここでは扱わない（呼び出し側で冪等に処理する）。
func (s ProductStatus) CanTransitionTo(next ProductStatus) bool {
	for _, allowed := range productTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ProductLocation は商品の保管場所を表す。
type ProductLocation string

const (
	ProductLocationFridge  ProductLocation = "fridge"
	ProductLocationPantry  ProductLocation = "pantry"
	ProductLocationFreezer ProductLocation = "freezer"
)

// ParseProductLocation は文字列をProductLocationに変換する。
func ParseProductLocation(raw string) (ProductLocation, error) {
	l := ProductLocation(strings.TrimSpace(raw))
	if !l.IsValid() {
		return "", newValidationError("location", CodeInvalidLocation)
	}
	return l, nil
}

// IsValid は定義済みの保管場所かどうかを返す。
func (l ProductLocation) IsValid() bool {
	switch l {
	case ProductLocationFridge, ProductLocationPantry, ProductLocationFreezer:
		return true
	}
	return false
}

// ProductOutcome は使い切った商品の最終的な扱いを表す。
type ProductOutcome string

const (
	ProductOutcomeUsed       ProductOutcome = "used"
	ProductOutcomeThrownAway ProductOutcome = "thrown_away"
)

// ParseProductOutcome は文字列をProductOutcomeに変換する。
func ParseProductOutcome(raw string) (ProductOutcome, error) {
	o := ProductOutcome(strings.TrimSpace(raw))
	if !o.IsValid() {
		return "", newValidationError("outcome", CodeInvalidOutcome)
	}
	return o, nil
}

// IsValid は定義済みの値かどうかを返す。
func (o ProductOutcome) IsValid() bool {
	return o == ProductOutcomeUsed || o == ProductOutcomeThrownAway
}

// Quantity は自由記述の数量（"500g"、"2本" など）を表す値オブジェクト。
type Quantity struct {
	value string
}

// NewQuantity は前後の空白を除去し、空でなく上限以内であればQuantityを生成する。
func NewQuantity(raw string) (Quantity, error) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return Quantity{}, newValidationError("quantity", CodeQuantityEmpty)
	}
	if utf8.RuneCountInString(v) > MaxQuantityLength {
		return Quantity{}, newValidationError("quantity", CodeQuantityTooLong)
	}
	return Quantity{value: v}, nil
}

// ReconstructQuantity は永続化済みの値からQuantityを復元する。検証は行わない。
func ReconstructQuantity(raw string) Quantity {
	return Quantity{value: raw}
}

// String は検証済みの値を返す。
func (q Quantity) String() string { return q.value }

// Confidence はAIによる推定の確からしさを表す。
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
	ConfidenceNone   Confidence = "none"
)

// ParseConfidence は文字列をConfidenceに変換する。
func ParseConfidence(raw string) (Confidence, error) {
	c := Confidence(strings.ToLower(strings.TrimSpace(raw)))
	switch c {
	case ConfidenceHigh, ConfidenceMedium, ConfidenceLow, ConfidenceNone:
		return c, nil
	}
	return "", newValidationError("confidence", CodeInvalidConfidence)
}

// EstimatedTime はレシピの調理時間の目安を表す。
type EstimatedTime string

const (
	EstimatedTimeQuick  EstimatedTime = "quick"
	EstimatedTimeMedium EstimatedTime = "medium"
	EstimatedTimeLong   EstimatedTime = "long"
)

// ParseEstimatedTime は文字列をEstimatedTimeに変換する。
func ParseEstimatedTime(raw string) (EstimatedTime, error) {
	t := EstimatedTime(strings.ToLower(strings.TrimSpace(raw)))
	switch t {
	case EstimatedTimeQuick, EstimatedTimeMedium, EstimatedTimeLong:
		return t, nil
	}
	return "", newValidationError("estimated_time", CodeInvalidEstimatedTime)
}

// normalizeName は名前をトリムし、空・長さ超過を検証する。
func normalizeName(raw string) (string, *ValidationError) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return "", newValidationError("name", CodeNameEmpty)
	}
	if utf8.RuneCountInString(v) > MaxNameLength {
		return "", newValidationError("name", CodeNameTooLong)
	}
	return v, nil
}

// NormalizeName は名前をトリムし、空・長さ超過を検証する。
// エンティティを生成せずに名前だけを検証する場合に使う。
func NormalizeName(raw string) (string, error) {
	v, verr := normalizeName(raw)
	if verr != nil {
		return "", verr
	}
	return v, nil
}
