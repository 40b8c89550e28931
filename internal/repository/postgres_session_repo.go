package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/zebramusic/cloackroom-app-sub001/internal/model"
)

// PostgresSessionRepo はPostgreSQLを使用したセッションリポジトリ。
type PostgresSessionRepo struct {
	db *sql.DB
}

// NewPostgresSessionRepo はPostgresSessionRepoを生成する。
func NewPostgresSessionRepo(db *sql.DB) *PostgresSessionRepo {
	return &PostgresSessionRepo{db: db}
}

// Upsert はトークンをキーにセッションを作成または上書きする。
func (r *PostgresSessionRepo) Upsert(ctx context.Context, session *model.Session) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (token, staff_id, user_type, created_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (token) DO UPDATE
		 SET staff_id = EXCLUDED.staff_id,
		     user_type = EXCLUDED.user_type,
		     created_at = EXCLUDED.created_at,
		     expires_at = EXCLUDED.expires_at`,
		session.Token, session.StaffID, string(session.UserType), session.CreatedAt, session.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert session: %w", err)
	}
	return nil
}

// FindByToken は指定トークンのセッションを取得する。
// 有効期限の判定は呼び出し側で行う。
func (r *PostgresSessionRepo) FindByToken(ctx context.Context, token string) (*model.Session, error) {
	session := &model.Session{}
	var userType string
	err := r.db.QueryRowContext(ctx,
		`SELECT token, staff_id, user_type, created_at, expires_at
		 FROM sessions
		 WHERE token = $1`,
		token,
	).Scan(&session.Token, &session.StaffID, &userType, &session.CreatedAt, &session.ExpiresAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	session.UserType = model.Role(userType)

	return session, nil
}

// DeleteByToken は指定トークンのセッションを削除する。
func (r *PostgresSessionRepo) DeleteByToken(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE token = $1`,
		token,
	)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteByOwner は指定主体の全セッションを削除する。
func (r *PostgresSessionRepo) DeleteByOwner(ctx context.Context, ownerID string, role model.Role) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE staff_id = $1 AND user_type = $2`,
		ownerID, string(role),
	)
	if err != nil {
		return fmt.Errorf("failed to delete owner sessions: %w", err)
	}
	return nil
}

// DeleteExpired は期限切れのセッションを削除する。
func (r *PostgresSessionRepo) DeleteExpired(ctx context.Context, nowMs int64) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE expires_at <= $1`,
		nowMs,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	return result.RowsAffected()
}

// compile-time interface check
var _ SessionRepository = (*PostgresSessionRepo)(nil)
