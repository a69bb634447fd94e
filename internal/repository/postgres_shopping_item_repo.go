package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/hitoshi/kitchenstock/internal/model"
)

// PostgresShoppingItemRepo はPostgreSQLを使用した買い物アイテムリポジトリ。
type PostgresShoppingItemRepo struct {
	db *sql.DB
}

// NewPostgresShoppingItemRepo はPostgresShoppingItemRepoを生成する。
func NewPostgresShoppingItemRepo(db *sql.DB) *PostgresShoppingItemRepo {
	return &PostgresShoppingItemRepo{db: db}
}

const shoppingItemColumns = `id, name, product_id, is_bought, bought_at, created_at, updated_at`

func scanShoppingItem(s rowScanner, userID model.UserID) (*model.ShoppingItem, error) {
	var (
		item      model.ShoppingItem
		productID sql.NullString
		boughtAt  sql.NullTime
	)
	if err := s.Scan(&item.ID, &item.Name, &productID, &item.IsBought, &boughtAt,
		&item.CreatedAt, &item.UpdatedAt); err != nil {
		return nil, err
	}

	item.UserID = userID
	item.ProductID = stringPtr(productID)
	if boughtAt.Valid {
		t := boughtAt.Time.UTC()
		item.BoughtAt = &t
	}
	item.CreatedAt = item.CreatedAt.UTC()
	item.UpdatedAt = item.UpdatedAt.UTC()

	return model.ReconstructShoppingItem(item), nil
}

// FindByID は指定IDのアイテムを取得する。見つからない場合はnilを返す。
func (r *PostgresShoppingItemRepo) FindByID(ctx context.Context, userID model.UserID, id string) (*model.ShoppingItem, error) {
	if !validID(id) {
		return nil, nil
	}
	return r.findOne(ctx, "shopping_item.find_by_id", userID,
		`SELECT `+shoppingItemColumns+` FROM shopping_items WHERE id = $1 AND user_id = $2`,
		id, userID.String(),
	)
}

// FindByProductID は商品から導出されたアイテムを取得する。見つからない場合はnilを返す。
func (r *PostgresShoppingItemRepo) FindByProductID(ctx context.Context, userID model.UserID, productID string) (*model.ShoppingItem, error) {
	if !validID(productID) {
		return nil, nil
	}
	return r.findOne(ctx, "shopping_item.find_by_product_id", userID,
		`SELECT `+shoppingItemColumns+` FROM shopping_items WHERE product_id = $1 AND user_id = $2`,
		productID, userID.String(),
	)
}

func (r *PostgresShoppingItemRepo) findOne(ctx context.Context, op string, userID model.UserID, query string, args ...any) (*model.ShoppingItem, error) {
	item, err := scanShoppingItem(r.db.QueryRowContext(ctx, query, args...), userID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, dbError(op, fmt.Errorf("買い物アイテムの取得に失敗しました: %w", err))
	}
	return item, nil
}

// LinkedProductIDs はユーザーのアイテムが参照している商品IDを返す。
func (r *PostgresShoppingItemRepo) LinkedProductIDs(ctx context.Context, userID model.UserID) (map[string]struct{}, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT product_id FROM shopping_items WHERE user_id = $1 AND product_id IS NOT NULL`,
		userID.String(),
	)
	if err != nil {
		return nil, dbError("shopping_item.linked_product_ids", fmt.Errorf("紐づく商品IDの取得に失敗しました: %w", err))
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, scanError("shopping_item.linked_product_ids", fmt.Errorf("商品IDの読み取りに失敗しました: %w", err))
		}
		ids[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("shopping_item.linked_product_ids", err)
	}
	return ids, nil
}

// List はユーザーのアイテムをcreated_atの降順で返す。
func (r *PostgresShoppingItemRepo) List(ctx context.Context, userID model.UserID, opts ShoppingItemListOptions) ([]*model.ShoppingItem, error) {
	var (
		conds = []string{"user_id = $1"}
		args  = []any{userID.String()}
	)
	if opts.IsBought != nil {
		args = append(args, *opts.IsBought)
		conds = append(conds, fmt.Sprintf("is_bought = $%d", len(args)))
	}
	if !opts.Cursor.IsZero() {
		args = append(args, opts.Cursor.CreatedAt, opts.Cursor.ID)
		conds = append(conds, fmt.Sprintf("(created_at, id) < ($%d, $%d::uuid)", len(args)-1, len(args)))
	}
	args = append(args, normalizeLimit(opts.Limit))

	query := fmt.Sprintf(`SELECT %s FROM shopping_items WHERE %s ORDER BY created_at DESC, id DESC LIMIT $%d`,
		shoppingItemColumns, strings.Join(conds, " AND "), len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, dbError("shopping_item.list", fmt.Errorf("買い物アイテム一覧の取得に失敗しました: %w", err))
	}
	defer rows.Close()

	var items []*model.ShoppingItem
	for rows.Next() {
		item, err := scanShoppingItem(rows, userID)
		if err != nil {
			return nil, scanError("shopping_item.list", fmt.Errorf("買い物アイテム行の読み取りに失敗しました: %w", err))
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("shopping_item.list", fmt.Errorf("買い物アイテム一覧の走査に失敗しました: %w", err))
	}
	return items, nil
}

// Save はアイテムを作成または更新する。
// (user_id, product_id) の一意制約違反はRepoErrDuplicatedとなる。
func (r *PostgresShoppingItemRepo) Save(ctx context.Context, item *model.ShoppingItem) error {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO shopping_items (id, user_id, name, product_id, is_bought, bought_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (id) DO UPDATE SET
		   name = EXCLUDED.name,
		   product_id = EXCLUDED.product_id,
		   is_bought = EXCLUDED.is_bought,
		   bought_at = EXCLUDED.bought_at,
		   updated_at = EXCLUDED.updated_at
		 WHERE shopping_items.user_id = EXCLUDED.user_id`,
		item.ID, item.UserID.String(), item.Name, nullString(item.ProductID), item.IsBought,
		nullableTime(item.BoughtAt), item.CreatedAt, item.UpdatedAt,
	)
	if err != nil {
		return dbError("shopping_item.save", fmt.Errorf("買い物アイテムの保存に失敗しました: %w", err))
	}
	return affectedOrNotFound("shopping_item.save", result)
}

// Delete は指定IDのアイテムを削除する。
func (r *PostgresShoppingItemRepo) Delete(ctx context.Context, userID model.UserID, id string) error {
	if !validID(id) {
		return notFound("shopping_item.delete")
	}
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM shopping_items WHERE id = $1 AND user_id = $2`,
		id, userID.String(),
	)
	if err != nil {
		return dbError("shopping_item.delete", fmt.Errorf("買い物アイテムの削除に失敗しました: %w", err))
	}
	return affectedOrNotFound("shopping_item.delete", result)
}

// DeleteByProductID は商品から導出されたアイテムを削除し、削除件数を返す。
func (r *PostgresShoppingItemRepo) DeleteByProductID(ctx context.Context, userID model.UserID, productID string) (int64, error) {
	if !validID(productID) {
		return 0, nil
	}
	return r.execCount(ctx, "shopping_item.delete_by_product_id",
		`DELETE FROM shopping_items WHERE product_id = $1 AND user_id = $2`,
		productID, userID.String(),
	)
}

// UnlinkProduct は商品への参照を切り離す。
func (r *PostgresShoppingItemRepo) UnlinkProduct(ctx context.Context, userID model.UserID, productID string) error {
	if !validID(productID) {
		return nil
	}
	_, err := r.execCount(ctx, "shopping_item.unlink_product",
		`UPDATE shopping_items SET product_id = NULL, updated_at = NOW()
		 WHERE product_id = $1 AND user_id = $2`,
		productID, userID.String(),
	)
	return err
}

// DeleteBought は購入済みアイテムを削除し、削除件数を返す。
func (r *PostgresShoppingItemRepo) DeleteBought(ctx context.Context, userID model.UserID) (int64, error) {
	return r.execCount(ctx, "shopping_item.delete_bought",
		`DELETE FROM shopping_items WHERE user_id = $1 AND is_bought = TRUE`,
		userID.String(),
	)
}

// DeleteByUserID はユーザーの全アイテムを削除する。
func (r *PostgresShoppingItemRepo) DeleteByUserID(ctx context.Context, userID model.UserID) error {
	_, err := r.execCount(ctx, "shopping_item.delete_by_user_id",
		`DELETE FROM shopping_items WHERE user_id = $1`,
		userID.String(),
	)
	return err
}

// PurgeBoughtBefore は全ユーザーを対象に、cutoffより前に購入済みになったアイテムを削除する。
// テナント横断の操作であり、クリーンアップジョブからのみ呼び出す。
func (r *PostgresShoppingItemRepo) PurgeBoughtBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return r.execCount(ctx, "shopping_item.purge_bought",
		`DELETE FROM shopping_items WHERE is_bought = TRUE AND bought_at < $1`,
		cutoff,
	)
}

func (r *PostgresShoppingItemRepo) execCount(ctx context.Context, op, query string, args ...any) (int64, error) {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, dbError(op, fmt.Errorf("買い物アイテムの更新に失敗しました: %w", err))
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, dbError(op, err)
	}
	return n, nil
}

var _ ShoppingItemRepository = (*PostgresShoppingItemRepo)(nil)
