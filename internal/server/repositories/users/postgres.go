// Package users stores staff accounts.
package users

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

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if user.Role == "" {
		user.Role = common.RoleStaff
	}

	query :=
		`INSERT INTO users (username, salt, master_key_verifier, role)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		user.UserName, user.Salt, user.Verifier, user.Role).Scan(&user.ID, &user.CreatedAt)

	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

func (r *PostgresRepository) get(ctx context.Context, where string, arg string) (*models.User, error) {
	query := `SELECT id, username, master_key_verifier, salt, role FROM users WHERE ` + where

	user := &models.User{}
	err := r.db.QueryRowContext(ctx, query, arg).Scan(&user.ID, &user.UserName, &user.Verifier, &user.Salt, &user.Role)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

func (r *PostgresRepository) GetUserByLogin(ctx context.Context, userName string) (*models.User, error) {
	return r.get(ctx, "username = $1", userName)
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.get(ctx, "id = $1", id)
}
