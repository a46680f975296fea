package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

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

func (r *SQLiteRepository) ReplaceAll(ctx context.Context, events []*models.Event, attendees []*models.Attendee) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM cached_attendees`); err != nil {
		return fmt.Errorf("failed to clear cached attendees: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM cached_events`); err != nil {
		return fmt.Errorf("failed to clear cached events: %w", err)
	}

	for _, e := range events {
		if _, err := r.db.ExecContext(ctx, `INSERT INTO cached_events (id, name) VALUES (?, ?)`, e.ID, e.Name); err != nil {
			return fmt.Errorf("failed to cache event %s: %w", e.ID, err)
		}
	}

	for _, a := range attendees {
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO cached_attendees (id, event_id, event_name, first_name, last_name, email, company,
				checked_in, checked_in_at, sealed_token, token_nonce, qr_expires_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			a.ID, a.EventID, a.EventName, a.FirstName, a.LastName, a.Email, a.Company,
			a.CheckedIn, nullTime(a.CheckedInAt), a.SealedToken, a.TokenNonce, nullTime(a.QRExpiresAt))
		if err != nil {
			return fmt.Errorf("failed to cache attendee %s: %w", a.ID, err)
		}
	}
	return nil
}

func (r *SQLiteRepository) GetAttendee(ctx context.Context, id string) (*models.Attendee, error) {
	var (
		a           models.Attendee
		checkedInAt sql.NullTime
		expiresAt   sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, event_id, event_name, first_name, last_name, email, company,
			checked_in, checked_in_at, sealed_token, token_nonce, qr_expires_at
		FROM cached_attendees WHERE id = ?`, id).
		Scan(&a.ID, &a.EventID, &a.EventName, &a.FirstName, &a.LastName, &a.Email, &a.Company,
			&a.CheckedIn, &checkedInAt, &a.SealedToken, &a.TokenNonce, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cached attendee %s: %w", id, err)
	}
	a.CheckedInAt = timePtr(checkedInAt)
	a.QRExpiresAt = timePtr(expiresAt)
	return &a, nil
}

func (r *SQLiteRepository) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	var e models.Event
	err := r.db.QueryRowContext(ctx, `SELECT id, name FROM cached_events WHERE id = ?`, id).Scan(&e.ID, &e.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cached event %s: %w", id, err)
	}
	return &e, nil
}

func (r *SQLiteRepository) MarkCheckedIn(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE cached_attendees SET checked_in = 1, checked_in_at = ? WHERE id = ? AND checked_in = 0`, at.UTC(), id)
	if err != nil {
		return false, fmt.Errorf("failed to mark attendee %s checked in: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to mark attendee %s checked in: %w", id, err)
	}
	return n == 1, nil
}

func (r *SQLiteRepository) Counts(ctx context.Context) (int, int, int, error) {
	var events, attendees, checkedIn int
	err := r.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM cached_events),
			(SELECT COUNT(*) FROM cached_attendees),
			(SELECT COUNT(*) FROM cached_attendees WHERE checked_in = 1)`).
		Scan(&events, &attendees, &checkedIn)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("failed to count cached rows: %w", err)
	}
	return events, attendees, checkedIn, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
