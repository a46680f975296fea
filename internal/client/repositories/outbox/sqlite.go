package outbox

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/doorkeeper/internal/client/models"
	"github.com/dmitrijs2005/doorkeeper/internal/common"
	"github.com/dmitrijs2005/doorkeeper/internal/dbx"
)

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Add(ctx context.Context, e *models.OutboxEntry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO outbox (id, qr_data, attendee_id, queued_at, attempts, last_error)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.QRData, e.AttendeeID, e.QueuedAt.UTC(), e.Attempts, e.LastError)
	if err != nil {
		return fmt.Errorf("failed to queue check-in: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) List(ctx context.Context) ([]*models.OutboxEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, qr_data, attendee_id, queued_at, attempts, last_error
		FROM outbox ORDER BY queued_at, rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to list outbox: %w", err)
	}
	defer rows.Close()

	var out []*models.OutboxEntry
	for rows.Next() {
		var e models.OutboxEntry
		if err := rows.Scan(&e.ID, &e.QRData, &e.AttendeeID, &e.QueuedAt, &e.Attempts, &e.LastError); err != nil {
			return nil, fmt.Errorf("failed to scan outbox row: %w", err)
		}
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate outbox rows: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM outbox WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete outbox entry %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete outbox entry %s: %w", id, err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *SQLiteRepository) RecordFailure(ctx context.Context, id string, reason string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE outbox SET attempts = attempts + 1, last_error = ? WHERE id = ?`, reason, id)
	if err != nil {
		return fmt.Errorf("failed to update outbox entry %s: %w", id, err)
	}
	return nil
}

func (r *SQLiteRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM outbox`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count outbox: %w", err)
	}
	return n, nil
}
