package model

import (
	"time"

	"github.com/google/uuid"
)

// Product は利用者が在庫管理する食品・日用品を表す集約ルート。
//
// 不変条件:
//   - Name はトリム済みで空でない（128文字以内）
//   - Status は new → opened → almost_empty → finished の一方向にのみ遷移する
//   - Outcome は Status が finished のときのみ設定できる
//   - EstimatedExpiryDate は作成日より前の日付にならない
type Product struct {
	ID                  string
	UserID              UserID
	Name                string
	Status              ProductStatus
	Location            *ProductLocation
	Quantity            *Quantity
	ExpiryDate          *time.Time
	EstimatedExpiryDate *time.Time
	Outcome             *ProductOutcome
	CreatedAt           time.Time
	UpdatedAt           time.Time

	reconstructed bool
}

// ProductProps は商品の作成・更新時に利用者が指定する値。
// Status がゼロ値の場合は new とみなす。
type ProductProps struct {
	Name                string
	Status              ProductStatus
	Location            *ProductLocation
	Quantity            *string
	ExpiryDate          *time.Time
	EstimatedExpiryDate *time.Time
	Outcome             *ProductOutcome
}

// validatedProduct はProductPropsの検証結果。
type validatedProduct struct {
	name     string
	status   ProductStatus
	quantity *Quantity
}

// validate はpropsを以下の順で検証し、最初に違反した不変条件のコードを返す。
//
//  1. NAME_EMPTY / NAME_TOO_LONG
//  2. INVALID_STATUS
//  3. INVALID_LOCATION
//  4. QUANTITY_EMPTY / QUANTITY_TOO_LONG
//  5. INVALID_OUTCOME
//  6. OUTCOME_REQUIRES_FINISHED
//  7. ESTIMATED_EXPIRY_BEFORE_CREATION
func (props ProductProps) validate(createdAt time.Time) (validatedProduct, *ValidationError) {
	name, verr := normalizeName(props.Name)
	if verr != nil {
		return validatedProduct{}, verr
	}

	status := props.Status
	if status == "" {
		status = ProductStatusNew
	}
	if !status.IsValid() {
		return validatedProduct{}, newValidationError("status", CodeInvalidStatus)
	}

	if props.Location != nil && !props.Location.IsValid() {
		return validatedProduct{}, newValidationError("location", CodeInvalidLocation)
	}

	var quantity *Quantity
	if props.Quantity != nil {
		q, err := NewQuantity(*props.Quantity)
		if err != nil {
			return validatedProduct{}, err.(*ValidationError)
		}
		quantity = &q
	}

	if props.Outcome != nil {
		if !props.Outcome.IsValid() {
			return validatedProduct{}, newValidationError("outcome", CodeInvalidOutcome)
		}
		if status != ProductStatusFinished {
			return validatedProduct{}, newValidationError("outcome", CodeOutcomeRequiresFinished)
		}
	}

	if props.EstimatedExpiryDate != nil && startOfDay(*props.EstimatedExpiryDate).Before(startOfDay(createdAt)) {
		return validatedProduct{}, newValidationError("estimated_expiry_date", CodeEstimatedExpiryBeforeCreation)
	}

	return validatedProduct{name: name, status: status, quantity: quantity}, nil
}

// NewProduct は利用者の入力から新しい商品を生成する。
// 検証順序はProductProps.validateに従い、最初の違反をProductErrorとして返す。
// 成功時はIDを採番し、CreatedAtとUpdatedAtをともにnowに設定する。
func NewProduct(userID UserID, props ProductProps, now time.Time) (*Product, error) {
	if userID.IsZero() {
		return nil, productErrorFromValidation(newValidationError("user_id", CodeUserIDEmpty))
	}

	now = now.UTC()
	v, verr := props.validate(now)
	if verr != nil {
		return nil, productErrorFromValidation(verr)
	}

	return &Product{
		ID:                  uuid.New().String(),
		UserID:              userID,
		Name:                v.name,
		Status:              v.status,
		Location:            props.Location,
		Quantity:            v.quantity,
		ExpiryDate:          utcPtr(props.ExpiryDate),
		EstimatedExpiryDate: utcPtr(props.EstimatedExpiryDate),
		Outcome:             props.Outcome,
		CreatedAt:           now,
		UpdatedAt:           now,
	}, nil
}

// ReconstructProduct は永続化済みのデータから商品を復元する。
// 検証は一切行わない。呼び出し元（リポジトリ実装）は保存時に不変条件が
// 満たされていたことを保証しなければならない。
func ReconstructProduct(p Product) *Product {
	p.reconstructed = true
	return &p
}

// Reconstructed はストレージから復元されたインスタンスかどうかを返す。
func (p *Product) Reconstructed() bool { return p.reconstructed }

// ApplyUpdate は商品全体を置き換える更新を適用する。
// 検証はNewProductと同じ順序で行い、続けて状態遷移を検査する。
// 戻り値のfinishedは、この更新でfinishedに遷移した場合にtrueとなる。
func (p *Product) ApplyUpdate(props ProductProps, now time.Time) (finished bool, err error) {
	v, verr := props.validate(p.CreatedAt)
	if verr != nil {
		return false, productErrorFromValidation(verr)
	}

	if v.status != p.Status && !p.Status.CanTransitionTo(v.status) {
		return false, NewProductError(CodeInvalidStatusTransition, nil)
	}

	finished = p.Status != ProductStatusFinished && v.status == ProductStatusFinished

	p.Name = v.name
	p.Status = v.status
	p.Location = props.Location
	p.Quantity = v.quantity
	p.ExpiryDate = utcPtr(props.ExpiryDate)
	p.EstimatedExpiryDate = utcPtr(props.EstimatedExpiryDate)
	p.Outcome = props.Outcome
	p.UpdatedAt = now.UTC()

	return finished, nil
}

// ChangeStatus は状態を遷移させる。
// 現在と同じ状態を指定した場合は何もせずchanged=falseを返す（冪等）。
func (p *Product) ChangeStatus(next ProductStatus, now time.Time) (changed bool, err error) {
	if !next.IsValid() {
		return false, productErrorFromValidation(newValidationError("status", CodeInvalidStatus))
	}
	if next == p.Status {
		return false, nil
	}
	if !p.Status.CanTransitionTo(next) {
		return false, NewProductError(CodeInvalidStatusTransition, nil)
	}
	p.Status = next
	p.UpdatedAt = now.UTC()
	return true, nil
}

// Finish は商品を使い切り状態にし、結果（使用/廃棄）を記録する。
// 既にfinishedの場合は結果のみ更新する。
func (p *Product) Finish(outcome *ProductOutcome, now time.Time) (changed bool, err error) {
	if outcome != nil && !outcome.IsValid() {
		return false, productErrorFromValidation(newValidationError("outcome", CodeInvalidOutcome))
	}
	changed, err = p.ChangeStatus(ProductStatusFinished, now)
	if err != nil {
		return false, err
	}
	if outcome != nil && (p.Outcome == nil || *p.Outcome != *outcome) {
		o := *outcome
		p.Outcome = &o
		p.UpdatedAt = now.UTC()
		changed = true
	}
	return changed, nil
}

// Rename は商品名を変更する。
func (p *Product) Rename(name string, now time.Time) error {
	v, verr := normalizeName(name)
	if verr != nil {
		return productErrorFromValidation(verr)
	}
	if v == p.Name {
		return nil
	}
	p.Name = v
	p.UpdatedAt = now.UTC()
	return nil
}

// UpdateQuantity は数量を変更する。nilを渡すと数量をクリアする。
func (p *Product) UpdateQuantity(raw *string, now time.Time) error {
	if raw == nil {
		if p.Quantity != nil {
			p.Quantity = nil
			p.UpdatedAt = now.UTC()
		}
		return nil
	}
	q, err := NewQuantity(*raw)
	if err != nil {
		return productErrorFromValidation(err.(*ValidationError))
	}
	if p.Quantity != nil && *p.Quantity == q {
		return nil
	}
	p.Quantity = &q
	p.UpdatedAt = now.UTC()
	return nil
}

// SetEstimatedExpiry はAI等で推定した期限を記録する。
func (p *Product) SetEstimatedExpiry(date time.Time, now time.Time) error {
	if startOfDay(date).Before(startOfDay(p.CreatedAt)) {
		return productErrorFromValidation(newValidationError("estimated_expiry_date", CodeEstimatedExpiryBeforeCreation))
	}
	d := date.UTC()
	p.EstimatedExpiryDate = &d
	p.UpdatedAt = now.UTC()
	return nil
}

// IsActive は使い切っていない商品かどうかを返す。
func (p *Product) IsActive() bool {
	return !p.Status.IsTerminal()
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
