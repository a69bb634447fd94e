package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/hitoshi/kitchenstock/internal/model"
)

// PostgresProductRepo はPostgreSQLを使用した商品リポジトリ。
// すべてのクエリはuser_idで絞り込む。
type PostgresProductRepo struct {
	db *sql.DB
}

// NewPostgresProductRepo はPostgresProductRepoを生成する。
func NewPostgresProductRepo(db *sql.DB) *PostgresProductRepo {
	return &PostgresProductRepo{db: db}
}

const productColumns = `id, name, status, location, quantity, expiry_date,
	        estimated_expiry_date, outcome, created_at, updated_at`

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

// scanProduct は1行を読み取り、信頼済みの復元経路で商品を組み立てる。
func scanProduct(s rowScanner, userID model.UserID) (*model.Product, error) {
	var (
		p                     model.Product
		status                string
		location, quantity    sql.NullString
		outcome               sql.NullString
		expiryDate, estimated sql.NullTime
	)
	if err := s.Scan(&p.ID, &p.Name, &status, &location, &quantity, &expiryDate,
		&estimated, &outcome, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}

	p.UserID = userID
	p.Status = model.ProductStatus(status)
	if location.Valid {
		l := model.ProductLocation(location.String)
		p.Location = &l
	}
	if quantity.Valid {
		q := model.ReconstructQuantity(quantity.String)
		p.Quantity = &q
	}
	if expiryDate.Valid {
		t := expiryDate.Time.UTC()
		p.ExpiryDate = &t
	}
	if estimated.Valid {
		t := estimated.Time.UTC()
		p.EstimatedExpiryDate = &t
	}
	if outcome.Valid {
		o := model.ProductOutcome(outcome.String)
		p.Outcome = &o
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()

	return model.ReconstructProduct(p), nil
}

// FindByID は指定IDの商品を取得する。見つからない場合はnilを返す。
func (r *PostgresProductRepo) FindByID(ctx context.Context, userID model.UserID, id string) (*model.Product, error) {
	if !validID(id) {
		return nil, nil
	}

	row := r.db.QueryRowContext(ctx,
		`SELECT `+productColumns+`
		 FROM products WHERE id = $1 AND user_id = $2`,
		id, userID.String(),
	)
	p, err := scanProduct(row, userID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, dbError("product.find_by_id", fmt.Errorf("商品の取得に失敗しました: %w", err))
	}
	return p, nil
}

// List はユーザーの商品をcreated_atの降順で返す。
func (r *PostgresProductRepo) List(ctx context.Context, userID model.UserID, opts ProductListOptions) ([]*model.Product, error) {
	var (
		conds = []string{"user_id = $1"}
		args  = []any{userID.String()}
	)
	if opts.Status != nil {
		args = append(args, string(*opts.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if !opts.Cursor.IsZero() {
		args = append(args, opts.Cursor.CreatedAt, opts.Cursor.ID)
		conds = append(conds, fmt.Sprintf("(created_at, id) < ($%d, $%d::uuid)", len(args)-1, len(args)))
	}
	args = append(args, normalizeLimit(opts.Limit))

	query := fmt.Sprintf(`SELECT %s FROM products WHERE %s ORDER BY created_at DESC, id DESC LIMIT $%d`,
		productColumns, strings.Join(conds, " AND "), len(args))

	return r.query(ctx, "product.list", userID, query, args...)
}

// ListActive はfinished以外の商品をすべて返す。
func (r *PostgresProductRepo) ListActive(ctx context.Context, userID model.UserID) ([]*model.Product, error) {
	return r.query(ctx, "product.list_active", userID,
		`SELECT `+productColumns+`
		 FROM products WHERE user_id = $1 AND status <> 'finished'
		 ORDER BY created_at DESC, id DESC`,
		userID.String(),
	)
}

func (r *PostgresProductRepo) query(ctx context.Context, op string, userID model.UserID, query string, args ...any) ([]*model.Product, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, dbError(op, fmt.Errorf("商品一覧の取得に失敗しました: %w", err))
	}
	defer rows.Close()

	var products []*model.Product
	for rows.Next() {
		p, err := scanProduct(rows, userID)
		if err != nil {
			return nil, scanError(op, fmt.Errorf("商品行の読み取りに失敗しました: %w", err))
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError(op, fmt.Errorf("商品一覧の走査に失敗しました: %w", err))
	}
	return products, nil
}

// Save は商品を作成または更新する。
// 既存行のuser_idが異なる場合は更新されず、RepoErrNotFoundを返す。
func (r *PostgresProductRepo) Save(ctx context.Context, p *model.Product) error {
	var location, quantity, outcome *string
	if p.Location != nil {
		v := string(*p.Location)
		location = &v
	}
	if p.Quantity != nil {
		v := p.Quantity.String()
		quantity = &v
	}
	if p.Outcome != nil {
		v := string(*p.Outcome)
		outcome = &v
	}

	result, err := r.db.ExecContext(ctx,
		`INSERT INTO products (id, user_id, name, status, location, quantity, expiry_date,
		                       estimated_expiry_date, outcome, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (id) DO UPDATE SET
		   name = EXCLUDED.name,
		   status = EXCLUDED.status,
		   location = EXCLUDED.location,
		   quantity = EXCLUDED.quantity,
		   expiry_date = EXCLUDED.expiry_date,
		   estimated_expiry_date = EXCLUDED.estimated_expiry_date,
		   outcome = EXCLUDED.outcome,
		   updated_at = EXCLUDED.updated_at
		 WHERE products.user_id = EXCLUDED.user_id`,
		p.ID, p.UserID.String(), p.Name, string(p.Status), nullString(location), nullString(quantity),
		nullableTime(p.ExpiryDate), nullableTime(p.EstimatedExpiryDate), nullString(outcome),
		p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return dbError("product.save", fmt.Errorf("商品の保存に失敗しました: %w", err))
	}
	return affectedOrNotFound("product.save", result)
}

// Delete は指定IDの商品を削除する。
// shopping_items.product_id は外部キー制約（ON DELETE SET NULL）で切り離される。
func (r *PostgresProductRepo) Delete(ctx context.Context, userID model.UserID, id string) error {
	if !validID(id) {
		return notFound("product.delete")
	}
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM products WHERE id = $1 AND user_id = $2`,
		id, userID.String(),
	)
	if err != nil {
		return dbError("product.delete", fmt.Errorf("商品の削除に失敗しました: %w", err))
	}
	return affectedOrNotFound("product.delete", result)
}

// DeleteByUserID はユーザーの全商品を削除する。
func (r *PostgresProductRepo) DeleteByUserID(ctx context.Context, userID model.UserID) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM products WHERE user_id = $1`,
		userID.String(),
	)
	if err != nil {
		return dbError("product.delete_by_user_id", fmt.Errorf("ユーザーの商品削除に失敗しました: %w", err))
	}
	return nil
}

func nullableTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

var _ ProductRepository = (*PostgresProductRepo)(nil)
