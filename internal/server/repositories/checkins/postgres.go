package checkins

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/doorkeeper/internal/dbx"
	"github.com/dmitrijs2005/doorkeeper/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Record appends one attempt and fills in its id.
func (r *PostgresRepository) Record(ctx context.Context, a *models.CheckInAttempt) error {
	query :=
		`INSERT INTO check_in_attempts (occurred_at, caller, outcome, attendee_id, event_id, device_id, staff_id, detail)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id`

	err := r.db.QueryRowContext(ctx, query, a.OccurredAt, a.Caller, a.Outcome,
		nullable(a.AttendeeID), nullable(a.EventID), nullable(a.DeviceID), nullable(a.StaffID), a.Detail).Scan(&a.ID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// ListRecent returns up to limit attempts, newest first.
func (r *PostgresRepository) ListRecent(ctx context.Context, limit int) ([]*models.CheckInAttempt, error) {
	query :=
		`SELECT id, occurred_at, caller, outcome, attendee_id, event_id, device_id, staff_id, detail
		 FROM check_in_attempts
		 ORDER BY occurred_at DESC, id DESC
		 LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []*models.CheckInAttempt
	for rows.Next() {
		var (
			a                                    models.CheckInAttempt
			attendeeID, eventID, device, staffID sql.NullString
		)
		if err := rows.Scan(&a.ID, &a.OccurredAt, &a.Caller, &a.Outcome, &attendeeID, &eventID, &device, &staffID, &a.Detail); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		a.AttendeeID, a.EventID, a.DeviceID, a.StaffID = attendeeID.String, eventID.String, device.String, staffID.String
		out = append(out, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}
