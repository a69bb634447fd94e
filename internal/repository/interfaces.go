// Package repository はデータ永続化のインターフェースとその実装を定義する。
//
// すべての操作は所有ユーザーのUserIDを必須引数として受け取る。
// 他ユーザーが所有するIDを指定した場合の結果は「存在しない」場合と区別できない
// （点検索はnil、更新・削除はRepoErrNotFound）。
package repository

import (
	"context"

	"github.com/hitoshi/kitchenstock/internal/model"
)

// DefaultListLimit は一覧取得の件数を省略した場合の既定値。
const DefaultListLimit = 50

// MaxListLimit は一覧取得で指定できる最大件数。
const MaxListLimit = 200

// ProductListOptions は商品一覧の取得条件。
type ProductListOptions struct {
	// Status を指定した場合はその状態の商品のみを返す。
	Status *model.ProductStatus
	// Cursor より後ろ（(created_at, id)が小さい）の商品を返す。ゼロ値の場合は先頭から取得する。
	Cursor Cursor
	// Limit が0以下の場合はDefaultListLimitを使う。
	Limit int
}

// ShoppingItemListOptions は買い物アイテム一覧の取得条件。
type ShoppingItemListOptions struct {
	IsBought *bool
	Cursor   Cursor
	Limit    int
}

// ProductRepository は商品の永続化インターフェース。
type ProductRepository interface {
	// FindByID は指定IDの商品を取得する。
	// 存在しない場合、または他ユーザーの商品の場合はnilを返す。
	FindByID(ctx context.Context, userID model.UserID, id string) (*model.Product, error)

	// List はユーザーの商品をcreated_atの降順で返す。
	List(ctx context.Context, userID model.UserID, opts ProductListOptions) ([]*model.Product, error)

	// ListActive はfinished以外の商品をすべて返す。
	ListActive(ctx context.Context, userID model.UserID) ([]*model.Product, error)

	// Save は商品を作成または更新する（IDによるupsert）。
	// 同じIDが他ユーザーに存在する場合はRepoErrNotFoundを返す。
	Save(ctx context.Context, product *model.Product) error

	// Delete は指定IDの商品を削除する。対象が無い場合はRepoErrNotFoundを返す。
	Delete(ctx context.Context, userID model.UserID, id string) error

	// DeleteByUserID はユーザーの全商品を削除する。
	DeleteByUserID(ctx context.Context, userID model.UserID) error
}

// ShoppingItemRepository は買い物アイテムの永続化インターフェース。
// (user_id, product_id) はユーザー単位で一意であり、違反時はRepoErrDuplicatedを返す。
type ShoppingItemRepository interface {
	// FindByID は指定IDのアイテムを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, userID model.UserID, id string) (*model.ShoppingItem, error)

	// FindByProductID は商品から導出されたアイテムを取得する。見つからない場合はnilを返す。
	FindByProductID(ctx context.Context, userID model.UserID, productID string) (*model.ShoppingItem, error)

	// LinkedProductIDs はユーザーのアイテムが参照している商品IDを1回の問い合わせで返す。
	LinkedProductIDs(ctx context.Context, userID model.UserID) (map[string]struct{}, error)

	// List はユーザーのアイテムをcreated_atの降順で返す。
	List(ctx context.Context, userID model.UserID, opts ShoppingItemListOptions) ([]*model.ShoppingItem, error)

	// Save はアイテムを作成または更新する（IDによるupsert）。
	Save(ctx context.Context, item *model.ShoppingItem) error

	// Delete は指定IDのアイテムを削除する。対象が無い場合はRepoErrNotFoundを返す。
	Delete(ctx context.Context, userID model.UserID, id string) error

	// DeleteByProductID は商品から導出されたアイテムを削除し、削除件数を返す。
	DeleteByProductID(ctx context.Context, userID model.UserID, productID string) (int64, error)

	// UnlinkProduct は商品への参照を切り離し、手動アイテムとして残す。
	UnlinkProduct(ctx context.Context, userID model.UserID, productID string) error

	// DeleteBought は購入済みアイテムをすべて削除し、削除件数を返す。
	DeleteBought(ctx context.Context, userID model.UserID) (int64, error)

	// DeleteByUserID はユーザーの全アイテムを削除する。
	DeleteByUserID(ctx context.Context, userID model.UserID) error
}

// normalizeLimit は一覧取得件数を既定値・上限に丸める。
func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}
