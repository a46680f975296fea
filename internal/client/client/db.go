package client

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/doorkeeper/internal/client/migrations"
	"github.com/dmitrijs2005/doorkeeper/internal/filex"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite"
)

func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	return goose.UpContext(ctx, db, ".")
}

// InitDatabase opens the scanner database at dsn and brings its schema up
// to date. SQLite allows a single writer, so the pool is capped at one
// connection. A plain file path gets its directory created first.
func InitDatabase(ctx context.Context, dsn string) (*sql.DB, error) {
	if dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
		if _, err := filex.EnsureParentDir(dsn); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}
