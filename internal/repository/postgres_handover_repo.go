package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/zebramusic/cloackroom-app-sub001/internal/model"
)

const handoverColumns = `id, ticket_code, client_name, client_phone, notes, photo_urls, signature_url,
	staff_id, staff_name, event_id, created_at, printed_at, print_count`

// PostgresHandoverRepo はPostgreSQLを使用した受付記録リポジトリ。
type PostgresHandoverRepo struct {
	db *sql.DB
}

// NewPostgresHandoverRepo はPostgresHandoverRepoを生成する。
func NewPostgresHandoverRepo(db *sql.DB) *PostgresHandoverRepo {
	return &PostgresHandoverRepo{db: db}
}

func scanHandover(row rowScanner) (*model.Handover, error) {
	h := &model.Handover{}
	var photoURLs pq.StringArray
	var eventID sql.NullString
	var printedAt sql.NullInt64
	if err := row.Scan(
		&h.ID, &h.TicketCode, &h.ClientName, &h.ClientPhone, &h.Notes, &photoURLs, &h.SignatureURL,
		&h.StaffID, &h.StaffName, &eventID, &h.CreatedAt, &printedAt, &h.PrintCount,
	); err != nil {
		return nil, err
	}
	h.PhotoURLs = []string(photoURLs)
	h.EventID = eventID.String
	h.PrintedAt = int64Ptr(printedAt)
	return h, nil
}

// FindByID は指定IDの受付記録を取得する。見つからない場合はnilを返す。
func (r *PostgresHandoverRepo) FindByID(ctx context.Context, id string) (*model.Handover, error) {
	h, err := scanHandover(r.db.QueryRowContext(ctx,
		`SELECT `+handoverColumns+` FROM handovers WHERE id = $1`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find handover: %w", err)
	}
	return h, nil
}

// List は作成日時の降順で受付記録を返す。
func (r *PostgresHandoverRepo) List(ctx context.Context, filter model.HandoverFilter) ([]*model.Handover, error) {
	var conds []string
	var args []any
	if filter.EventID != "" {
		args = append(args, filter.EventID)
		conds = append(conds, fmt.Sprintf("event_id = $%d", len(args)))
	}
	if filter.StaffID != "" {
		args = append(args, filter.StaffID)
		conds = append(conds, fmt.Sprintf("staff_id = $%d", len(args)))
	}

	query := `SELECT ` + handoverColumns + ` FROM handovers`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC, pk DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list handovers: %w", err)
	}
	defer rows.Close()

	var result []*model.Handover
	for rows.Next() {
		h, err := scanHandover(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan handover: %w", err)
		}
		result = append(result, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate handovers: %w", err)
	}
	return result, nil
}

// Create は受付記録を作成する。
func (r *PostgresHandoverRepo) Create(ctx context.Context, h *model.Handover) error {
	photoURLs := h.PhotoURLs
	if photoURLs == nil {
		photoURLs = []string{}
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO handovers (id, ticket_code, client_name, client_phone, notes, photo_urls, signature_url,
		                        staff_id, staff_name, event_id, created_at, printed_at, print_count)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		h.ID, h.TicketCode, h.ClientName, h.ClientPhone, h.Notes, pq.Array(photoURLs), h.SignatureURL,
		h.StaffID, h.StaffName, nullString(h.EventID), h.CreatedAt, nullInt64(h.PrintedAt), h.PrintCount,
	)
	if err != nil {
		return fmt.Errorf("failed to create handover: %w", err)
	}
	return nil
}

// MarkPrinted は印刷回数を加算し、更新後の受付記録を返す。
func (r *PostgresHandoverRepo) MarkPrinted(ctx context.Context, id string, atMs int64) (*model.Handover, error) {
	h, err := scanHandover(r.db.QueryRowContext(ctx,
		`UPDATE handovers
		 SET print_count = print_count + 1, printed_at = $2
		 WHERE id = $1
		 RETURNING `+handoverColumns,
		id, atMs,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to mark handover printed: %w", err)
	}
	return h, nil
}

// compile-time interface check
var _ HandoverRepository = (*PostgresHandoverRepo)(nil)
