package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ShoppingItem は買い物リストの1行を表す集約ルート。
// ProductID は商品への弱参照（IDの値のみ）で、nilなら手動で追加されたアイテム。
type ShoppingItem struct {
	ID        string
	UserID    UserID
	Name      string
	ProductID *string
	IsBought  bool
	BoughtAt  *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time

	reconstructed bool
}

// NewShoppingItem は買い物アイテムを生成する。
// 検証順序: NAME_EMPTY / NAME_TOO_LONG → PRODUCT_ID_EMPTY。
func NewShoppingItem(userID UserID, name string, productID *string, now time.Time) (*ShoppingItem, error) {
	if userID.IsZero() {
		return nil, &ShoppingItemError{Code: CodeUserIDEmpty, Err: newValidationError("user_id", CodeUserIDEmpty)}
	}

	n, verr := normalizeName(name)
	if verr != nil {
		return nil, &ShoppingItemError{Code: verr.Code, Err: verr}
	}

	var pid *string
	if productID != nil {
		v := strings.TrimSpace(*productID)
		if v == "" {
			verr := newValidationError("product_id", CodeProductIDEmpty)
			return nil, &ShoppingItemError{Code: verr.Code, Err: verr}
		}
		pid = &v
	}

	now = now.UTC()
	return &ShoppingItem{
		ID:        uuid.New().String(),
		UserID:    userID,
		Name:      n,
		ProductID: pid,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// ReconstructShoppingItem は永続化済みのデータから買い物アイテムを復元する。検証は行わない。
func ReconstructShoppingItem(item ShoppingItem) *ShoppingItem {
	item.reconstructed = true
	return &item
}

// Reconstructed はストレージから復元されたインスタンスかどうかを返す。
func (i *ShoppingItem) Reconstructed() bool { return i.reconstructed }

// IsManual は利用者が手動で追加したアイテムかどうかを返す。
func (i *ShoppingItem) IsManual() bool { return i.ProductID == nil }

// SetBought は購入済みフラグを設定する。同じ値を指定した場合は何もしない。
func (i *ShoppingItem) SetBought(bought bool, now time.Time) (changed bool) {
	if i.IsBought == bought {
		return false
	}
	now = now.UTC()
	i.IsBought = bought
	if bought {
		i.BoughtAt = &now
	} else {
		i.BoughtAt = nil
	}
	i.UpdatedAt = now
	return true
}

// Rename はアイテム名を変更する。
func (i *ShoppingItem) Rename(name string, now time.Time) error {
	n, verr := normalizeName(name)
	if verr != nil {
		return &ShoppingItemError{Code: verr.Code, Err: verr}
	}
	if n == i.Name {
		return nil
	}
	i.Name = n
	i.UpdatedAt = now.UTC()
	return nil
}

// Unlink は商品への弱参照を切り離し、手動アイテムとして残す。
func (i *ShoppingItem) Unlink(now time.Time) {
	if i.ProductID == nil {
		return
	}
	i.ProductID = nil
	i.UpdatedAt = now.UTC()
}
