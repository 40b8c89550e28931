package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/zebramusic/cloackroom-app-sub001/internal/model"
)

const resetColumns = `token, staff_id, user_type, created_at, expires_at, used`

// PostgresPasswordResetRepo はPostgreSQLを使用したパスワード再設定トークンリポジトリ。
type PostgresPasswordResetRepo struct {
	db *sql.DB
}

// NewPostgresPasswordResetRepo はPostgresPasswordResetRepoを生成する。
func NewPostgresPasswordResetRepo(db *sql.DB) *PostgresPasswordResetRepo {
	return &PostgresPasswordResetRepo{db: db}
}

func scanResetToken(row rowScanner) (*model.PasswordResetToken, error) {
	t := &model.PasswordResetToken{}
	var userType string
	if err := row.Scan(&t.Token, &t.StaffID, &userType, &t.CreatedAt, &t.ExpiresAt, &t.Used); err != nil {
		return nil, err
	}
	t.UserType = model.Role(userType)
	return t, nil
}

// Create はトークンを保存する。
func (r *PostgresPasswordResetRepo) Create(ctx context.Context, t *model.PasswordResetToken) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO password_reset_tokens (token, staff_id, user_type, created_at, expires_at, used)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		t.Token, t.StaffID, string(t.UserType), t.CreatedAt, t.ExpiresAt, t.Used,
	)
	if err != nil {
		return fmt.Errorf("failed to create password reset token: %w", err)
	}
	return nil
}

// FindByToken はトークンを取得する。見つからない場合はnilを返す。
func (r *PostgresPasswordResetRepo) FindByToken(ctx context.Context, token string) (*model.PasswordResetToken, error) {
	t, err := scanResetToken(r.db.QueryRowContext(ctx,
		`SELECT `+resetColumns+` FROM password_reset_tokens WHERE token = $1`, token,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find password reset token: %w", err)
	}
	return t, nil
}

// ConsumeIfValid は未使用かつ期限内のトークンを1回のUPDATEで使用済みにする。
// 同時に2つのリクエストが来ても更新に成功するのは片方のみ。
func (r *PostgresPasswordResetRepo) ConsumeIfValid(ctx context.Context, token string, nowMs int64) (*model.PasswordResetToken, error) {
	t, err := scanResetToken(r.db.QueryRowContext(ctx,
		`UPDATE password_reset_tokens
		 SET used = true
		 WHERE token = $1 AND used = false AND expires_at > $2
		 RETURNING `+resetColumns,
		token, nowMs,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to consume password reset token: %w", err)
	}
	return t, nil
}

// DeleteStale は使用済みまたは期限切れのトークンを削除する。
func (r *PostgresPasswordResetRepo) DeleteStale(ctx context.Context, nowMs int64) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM password_reset_tokens WHERE used = true OR expires_at <= $1`,
		nowMs,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale password reset tokens: %w", err)
	}
	return result.RowsAffected()
}

// compile-time interface check
var _ PasswordResetRepository = (*PostgresPasswordResetRepo)(nil)
