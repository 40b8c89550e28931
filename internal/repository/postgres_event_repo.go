package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/zebramusic/cloackroom-app-sub001/internal/model"
)

const eventColumns = `id, name, starts_at, ends_at, created_at, updated_at`

// PostgresEventRepo はPostgreSQLを使用したイベントリポジトリ。
type PostgresEventRepo struct {
	db *sql.DB
}

// NewPostgresEventRepo はPostgresEventRepoを生成する。
func NewPostgresEventRepo(db *sql.DB) *PostgresEventRepo {
	return &PostgresEventRepo{db: db}
}

func scanEvent(row rowScanner) (*model.Event, error) {
	e := &model.Event{}
	var updatedAt sql.NullInt64
	if err := row.Scan(&e.ID, &e.Name, &e.StartsAt, &e.EndsAt, &e.CreatedAt, &updatedAt); err != nil {
		return nil, err
	}
	e.UpdatedAt = int64Ptr(updatedAt)
	return e, nil
}

func (r *PostgresEventRepo) queryEvents(ctx context.Context, query string, args ...any) ([]*model.Event, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var events []*model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}
	return events, nil
}

// FindByID は指定IDのイベントを取得する。見つからない場合はnilを返す。
func (r *PostgresEventRepo) FindByID(ctx context.Context, id string) (*model.Event, error) {
	e, err := scanEvent(r.db.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = $1`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find event: %w", err)
	}
	return e, nil
}

// List は開始時刻の降順でイベント一覧を返す。
func (r *PostgresEventRepo) List(ctx context.Context) ([]*model.Event, error) {
	return r.queryEvents(ctx,
		`SELECT `+eventColumns+` FROM events ORDER BY starts_at DESC, pk DESC`,
	)
}

// ListActiveAt は指定時刻に稼働中のイベントを返す。境界は両端を含む。
func (r *PostgresEventRepo) ListActiveAt(ctx context.Context, nowMs int64) ([]*model.Event, error) {
	return r.queryEvents(ctx,
		`SELECT `+eventColumns+` FROM events
		 WHERE starts_at <= $1 AND ends_at >= $1
		 ORDER BY starts_at DESC, pk DESC`,
		nowMs,
	)
}

// Create はイベントを作成する。
func (r *PostgresEventRepo) Create(ctx context.Context, e *model.Event) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO events (id, name, starts_at, ends_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ID, e.Name, e.StartsAt, e.EndsAt, e.CreatedAt, nullInt64(e.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create event: %w", err)
	}
	return nil
}

// Update はイベントを更新する。
func (r *PostgresEventRepo) Update(ctx context.Context, e *model.Event) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE events SET name = $2, starts_at = $3, ends_at = $4, updated_at = $5
		 WHERE id = $1`,
		e.ID, e.Name, e.StartsAt, e.EndsAt, nullInt64(e.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to update event: %w", err)
	}
	return nil
}

// Delete は指定IDのイベントを削除する。
func (r *PostgresEventRepo) Delete(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete event: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

// compile-time interface check
var _ EventRepository = (*PostgresEventRepo)(nil)
