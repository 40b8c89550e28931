package repository

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

// uniqueViolation はPostgreSQLの一意制約違反（SQLSTATE 23505）を表す。
const uniqueViolation = pq.ErrorCode("23505")

// isUniqueViolation はerrが一意制約違反かどうかを判定する。
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == uniqueViolation
	}
	return false
}

// nullString は空文字列をNULLとして扱う。
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// nullInt64 はnilをNULLとして扱う。
func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

// int64Ptr はNULLをnilに変換する。
func int64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

// NewPostgresRepositories はPostgreSQL実装のリポジトリ一式を生成する。
func NewPostgresRepositories(db *sql.DB) *Repositories {
	return &Repositories{
		Staff:          NewPostgresStaffRepo(db),
		Admins:         NewPostgresAdminRepo(db),
		Sessions:       NewPostgresSessionRepo(db),
		PasswordResets: NewPostgresPasswordResetRepo(db),
		Events:         NewPostgresEventRepo(db),
		Handovers:      NewPostgresHandoverRepo(db),
	}
}
