package attendees

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/doorkeeper/internal/common"
	"github.com/dmitrijs2005/doorkeeper/internal/dbx"
	"github.com/dmitrijs2005/doorkeeper/internal/server/models"
)

const columns = `id, event_id, first_name, last_name, email, phone, company, dietary_restrictions,
		 checked_in, checked_in_at, rsvp_at, created_at,
		 qr_token, qr_expires_at, qr_used_at, qr_used_by_device`

// PostgresRepository implements Repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAttendee(row rowScanner) (*models.Attendee, error) {
	a := &models.Attendee{}
	err := row.Scan(&a.ID, &a.EventID, &a.FirstName, &a.LastName, &a.Email, &a.Phone, &a.Company,
		&a.DietaryRestrictions, &a.CheckedIn, &a.CheckedInAt, &a.RSVPAt, &a.CreatedAt,
		&a.QRToken, &a.QRExpiresAt, &a.QRUsedAt, &a.QRUsedByDevice)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return a, nil
}

func (r *PostgresRepository) Redeem(ctx context.Context, eventID, entryID, token, deviceID string, now time.Time) (*models.Attendee, error) {
	query :=
		`UPDATE attendees
		 SET qr_used_at = $5, qr_used_by_device = NULLIF($4, ''),
		     qr_token = NULL, qr_expires_at = NULL,
		     checked_in = true, checked_in_at = $5
		 WHERE event_id = $1 AND id = $2 AND qr_token = $3
		   AND qr_expires_at > $5 AND qr_used_at IS NULL AND checked_in = false
		 RETURNING ` + columns

	return scanAttendee(r.db.QueryRowContext(ctx, query, eventID, entryID, token, deviceID, now))
}

func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*models.Attendee, error) {
	query := `SELECT ` + columns + ` FROM attendees WHERE id = $1`
	return scanAttendee(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) FindByEventAndID(ctx context.Context, eventID, id string) (*models.Attendee, error) {
	query := `SELECT ` + columns + ` FROM attendees WHERE event_id = $1 AND id = $2`
	return scanAttendee(r.db.QueryRowContext(ctx, query, eventID, id))
}

func (r *PostgresRepository) SetToken(ctx context.Context, id, eventID, token string, expiresAt time.Time) error {
	query :=
		`UPDATE attendees SET qr_token = $3, qr_expires_at = $4
		 WHERE id = $1 AND event_id = $2`

	res, err := r.db.ExecContext(ctx, query, id, eventID, token, expiresAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) MarkCheckedIn(ctx context.Context, id string, now time.Time) (*models.Attendee, error) {
	query :=
		`UPDATE attendees SET checked_in = true, checked_in_at = $2
		 WHERE id = $1 AND checked_in = false
		 RETURNING ` + columns

	return scanAttendee(r.db.QueryRowContext(ctx, query, id, now))
}

func (r *PostgresRepository) ListByEvent(ctx context.Context, eventID string) ([]models.AttendeeRef, error) {
	return r.listRefs(ctx, `SELECT id, event_id FROM attendees WHERE event_id = $1 ORDER BY created_at, id`, eventID)
}

func (r *PostgresRepository) ListAll(ctx context.Context) ([]models.AttendeeRef, error) {
	return r.listRefs(ctx, `SELECT id, event_id FROM attendees ORDER BY created_at, id`)
}

func (r *PostgresRepository) listRefs(ctx context.Context, query string, args ...any) ([]models.AttendeeRef, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var refs []models.AttendeeRef
	for rows.Next() {
		var ref models.AttendeeRef
		if err := rows.Scan(&ref.ID, &ref.EventID); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return refs, nil
}

func (r *PostgresRepository) ListForSnapshot(ctx context.Context, eventID string) ([]*models.SnapshotEntry, error) {
	query :=
		`SELECT a.id, a.event_id, COALESCE(e.name, ''), a.first_name, a.last_name, a.email, a.company,
		        a.checked_in, a.checked_in_at, a.qr_token, a.qr_expires_at
		 FROM attendees a LEFT JOIN events e ON e.id = a.event_id`
	var args []any
	if eventID != "" {
		query += ` WHERE a.event_id = $1`
		args = append(args, eventID)
	}
	query += ` ORDER BY a.last_name, a.first_name`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []*models.SnapshotEntry
	for rows.Next() {
		e := &models.SnapshotEntry{}
		if err := rows.Scan(&e.ID, &e.EventID, &e.EventName, &e.FirstName, &e.LastName, &e.Email, &e.Company,
			&e.CheckedIn, &e.CheckedInAt, &e.QRToken, &e.QRExpiresAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}
