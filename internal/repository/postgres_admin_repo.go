package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/zebramusic/cloackroom-app-sub001/internal/model"
)

const adminColumns = `id, full_name, email, password_hash, created_at`

// PostgresAdminRepo はPostgreSQLを使用した管理者リポジトリ。
type PostgresAdminRepo struct {
	db *sql.DB
}

// NewPostgresAdminRepo はPostgresAdminRepoを生成する。
func NewPostgresAdminRepo(db *sql.DB) *PostgresAdminRepo {
	return &PostgresAdminRepo{db: db}
}

func scanAdmin(row rowScanner) (*model.Admin, error) {
	a := &model.Admin{}
	if err := row.Scan(&a.ID, &a.FullName, &a.Email, &a.PasswordHash, &a.CreatedAt); err != nil {
		return nil, err
	}
	return a, nil
}

// FindByID は指定IDの管理者を取得する。見つからない場合はnilを返す。
func (r *PostgresAdminRepo) FindByID(ctx context.Context, id string) (*model.Admin, error) {
	a, err := scanAdmin(r.db.QueryRowContext(ctx,
		`SELECT `+adminColumns+` FROM admins WHERE id = $1`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find admin by ID: %w", err)
	}
	return a, nil
}

// FindByEmail は正規化済みメールアドレスで管理者を検索する。
func (r *PostgresAdminRepo) FindByEmail(ctx context.Context, email string) (*model.Admin, error) {
	a, err := scanAdmin(r.db.QueryRowContext(ctx,
		`SELECT `+adminColumns+` FROM admins WHERE lower(email) = lower($1)`, email,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find admin by email: %w", err)
	}
	return a, nil
}

// List は作成日時の降順で管理者一覧を返す。
func (r *PostgresAdminRepo) List(ctx context.Context) ([]*model.Admin, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+adminColumns+` FROM admins ORDER BY created_at DESC, pk DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list admins: %w", err)
	}
	defer rows.Close()

	var result []*model.Admin
	for rows.Next() {
		a, err := scanAdmin(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan admin: %w", err)
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate admins: %w", err)
	}
	return result, nil
}

// Create は管理者を作成する。
func (r *PostgresAdminRepo) Create(ctx context.Context, a *model.Admin) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO admins (id, full_name, email, password_hash, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		a.ID, a.FullName, a.Email, a.PasswordHash, a.CreatedAt,
	)
	if isUniqueViolation(err) {
		return model.ErrDuplicateEmail
	}
	if err != nil {
		return fmt.Errorf("failed to create admin: %w", err)
	}
	return nil
}

// Update はパスワード以外のフィールドを更新する。
func (r *PostgresAdminRepo) Update(ctx context.Context, a *model.Admin) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE admins SET full_name = $2, email = $3 WHERE id = $1`,
		a.ID, a.FullName, a.Email,
	)
	if isUniqueViolation(err) {
		return model.ErrDuplicateEmail
	}
	if err != nil {
		return fmt.Errorf("failed to update admin: %w", err)
	}
	return nil
}

// UpdatePasswordHash はパスワードダイジェストのみを上書きする。
func (r *PostgresAdminRepo) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE admins SET password_hash = $2 WHERE id = $1`, id, hash,
	)
	if err != nil {
		return fmt.Errorf("failed to update admin password: %w", err)
	}
	return nil
}

// Delete は指定IDの管理者を削除する。
func (r *PostgresAdminRepo) Delete(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM admins WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete admin: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

// compile-time interface check
var _ AdminRepository = (*PostgresAdminRepo)(nil)
