package events

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/doorkeeper/internal/common"
	"github.com/dmitrijs2005/doorkeeper/internal/dbx"
	"github.com/dmitrijs2005/doorkeeper/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) get(ctx context.Context, query string, arg string) (*models.Event, error) {
	e := &models.Event{}
	err := r.db.QueryRowContext(ctx, query, arg).Scan(&e.ID, &e.Name, &e.Slug, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return e, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Event, error) {
	return r.get(ctx, `SELECT id, name, slug, created_at FROM events WHERE id = $1`, id)
}

func (r *PostgresRepository) GetBySlug(ctx context.Context, slug string) (*models.Event, error) {
	return r.get(ctx, `SELECT id, name, slug, created_at FROM events WHERE slug = $1`, slug)
}

// List returns all events, oldest first.
func (r *PostgresRepository) List(ctx context.Context) ([]*models.Event, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, slug, created_at FROM events ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []*models.Event
	for rows.Next() {
		e := &models.Event{}
		if err := rows.Scan(&e.ID, &e.Name, &e.Slug, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}
