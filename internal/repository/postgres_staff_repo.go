package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/zebramusic/cloackroom-app-sub001/internal/model"
)

const staffColumns = `id, full_name, email, password_hash, is_authorized, authorized_event_id, created_at`

// PostgresStaffRepo はPostgreSQLを使用したスタッフリポジトリ。
type PostgresStaffRepo struct {
	db *sql.DB
}

// NewPostgresStaffRepo はPostgresStaffRepoを生成する。
func NewPostgresStaffRepo(db *sql.DB) *PostgresStaffRepo {
	return &PostgresStaffRepo{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStaff(row rowScanner) (*model.Staff, error) {
	s := &model.Staff{}
	var eventID sql.NullString
	if err := row.Scan(&s.ID, &s.FullName, &s.Email, &s.PasswordHash, &s.IsAuthorized, &eventID, &s.CreatedAt); err != nil {
		return nil, err
	}
	s.AuthorizedEventID = eventID.String
	return s, nil
}

// FindByID は指定IDのスタッフを取得する。見つからない場合はnilを返す。
func (r *PostgresStaffRepo) FindByID(ctx context.Context, id string) (*model.Staff, error) {
	s, err := scanStaff(r.db.QueryRowContext(ctx,
		`SELECT `+staffColumns+` FROM staff WHERE id = $1`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find staff by ID: %w", err)
	}
	return s, nil
}

// FindByEmail は正規化済みメールアドレスでスタッフを検索する。
func (r *PostgresStaffRepo) FindByEmail(ctx context.Context, email string) (*model.Staff, error) {
	s, err := scanStaff(r.db.QueryRowContext(ctx,
		`SELECT `+staffColumns+` FROM staff WHERE lower(email) = lower($1)`, email,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find staff by email: %w", err)
	}
	return s, nil
}

// List は作成日時の降順でスタッフ一覧を返す。
func (r *PostgresStaffRepo) List(ctx context.Context) ([]*model.Staff, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+staffColumns+` FROM staff ORDER BY created_at DESC, pk DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list staff: %w", err)
	}
	defer rows.Close()

	var result []*model.Staff
	for rows.Next() {
		s, err := scanStaff(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan staff: %w", err)
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate staff: %w", err)
	}
	return result, nil
}

// Create はスタッフを作成する。
func (r *PostgresStaffRepo) Create(ctx context.Context, s *model.Staff) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO staff (id, full_name, email, password_hash, is_authorized, authorized_event_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		s.ID, s.FullName, s.Email, s.PasswordHash, s.IsAuthorized, nullString(s.AuthorizedEventID), s.CreatedAt,
	)
	if isUniqueViolation(err) {
		return model.ErrDuplicateEmail
	}
	if err != nil {
		return fmt.Errorf("failed to create staff: %w", err)
	}
	return nil
}

// Update はパスワード以外のフィールドを更新する。
func (r *PostgresStaffRepo) Update(ctx context.Context, s *model.Staff) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE staff
		 SET full_name = $2, email = $3, is_authorized = $4, authorized_event_id = $5
		 WHERE id = $1`,
		s.ID, s.FullName, s.Email, s.IsAuthorized, nullString(s.AuthorizedEventID),
	)
	if isUniqueViolation(err) {
		return model.ErrDuplicateEmail
	}
	if err != nil {
		return fmt.Errorf("failed to update staff: %w", err)
	}
	return nil
}

// UpdatePasswordHash はパスワードダイジェストのみを上書きする。
func (r *PostgresStaffRepo) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE staff SET password_hash = $2 WHERE id = $1`, id, hash,
	)
	if err != nil {
		return fmt.Errorf("failed to update staff password: %w", err)
	}
	return nil
}

// Delete は指定IDのスタッフを削除する。
func (r *PostgresStaffRepo) Delete(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM staff WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete staff: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

// compile-time interface check
var _ StaffRepository = (*PostgresStaffRepo)(nil)
