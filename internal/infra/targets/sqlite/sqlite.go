// Package sqlite is a local target used for development and tests. It
// exposes the same query and exec surface as the SQL Server target.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/mmrzaf/sqribe/internal/domain"
)

type Target struct {
	path string
	db   *sql.DB
}

func Open(ctx context.Context, path string) (*Target, error) {
	path = strings.TrimSpace(path)
	path = strings.TrimPrefix(path, "sqlite://")
	if path == "" {
		return nil, &domain.ConnectionError{Op: "connect", Err: errors.New("empty sqlite path")}
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, &domain.ConnectionError{Op: "connect", Err: err}
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, &domain.ConnectionError{Op: "connect", Err: err}
	}
	return &Target{path: path, db: db}, nil
}

func (t *Target) Path() string { return t.path }

func (t *Target) DB() *sql.DB { return t.db }

func (t *Target) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return t.db.QueryContext(ctx, query, args...)
}

func (t *Target) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.db.ExecContext(ctx, query, args...)
}

func (t *Target) Close() error {
	if t.db != nil {
		return t.db.Close()
	}
	return nil
}
