package repository

import (
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/hitoshi/kitchenstock/internal/model"
)

// PostgreSQLの制約違反のエラーコード名。
const (
	uniqueViolation     = "unique_violation"
	foreignKeyViolation = "foreign_key_violation"
)

// dbError はドライバのエラーをRepositoryErrorに分類する。
// 一意制約違反はRepoErrDuplicated、外部キー違反（参照先の商品が無い）はRepoErrNotFound、
// それ以外はRepoErrDatabaseとする。
func dbError(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Name() {
		case uniqueViolation:
			return model.NewRepositoryError(model.RepoErrDuplicated, op, err)
		case foreignKeyViolation:
			return model.NewRepositoryError(model.RepoErrNotFound, op, err)
		}
	}
	return model.NewRepositoryError(model.RepoErrDatabase, op, err)
}

// scanError は行の読み取り・復元に失敗した場合のエラー。
func scanError(op string, err error) error {
	return model.NewRepositoryError(model.RepoErrPersistence, op, err)
}

// notFound は対象行が存在しない（または他ユーザーの行である）場合のエラー。
func notFound(op string) error {
	return model.NewRepositoryError(model.RepoErrNotFound, op, nil)
}

// affectedOrNotFound は更新・削除の影響行数が0の場合にnotFoundを返す。
func affectedOrNotFound(op string, result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return dbError(op, err)
	}
	if n == 0 {
		return notFound(op)
	}
	return nil
}

// validID はIDがUUID形式かどうかを返す。
// UUID型カラムに不正な文字列を渡すとドライバエラーになるため、事前に「存在しない」として扱う。
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}
