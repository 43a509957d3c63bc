package runs

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/mmrzaf/sqribe/internal/domain"
)

// Timestamps are stored as fixed-width UTC text so that string order is
// time order.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

type SQLiteRepository struct {
	dbPath string
	db     *sql.DB
}

func NewSQLiteRepository(dbPath string) *SQLiteRepository {
	return &SQLiteRepository{dbPath: dbPath}
}

func (r *SQLiteRepository) Init() error {
	if r.dbPath == "" {
		return errors.New("runs db path is required")
	}
	if dir := filepath.Dir(r.dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create runs db directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", r.dbPath)
	if err != nil {
		return err
	}
	r.db = db

	ddl := []string{`
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		hash TEXT NOT NULL,
		source TEXT,
		target TEXT,
		object_types TEXT NOT NULL,
		status TEXT NOT NULL,
		started_at TEXT NOT NULL,
		completed_at TEXT,
		summary TEXT,
		error TEXT
	)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at DESC)`,
	}
	for _, stmt := range ddl {
		if _, err := r.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (r *SQLiteRepository) DB() *sql.DB { return r.db }

func (r *SQLiteRepository) Create(run *domain.Run) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}

	_, err := r.db.Exec(`
		INSERT INTO runs (
			id, kind, hash, source, target, object_types,
			status, started_at, completed_at, summary, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Kind, run.Hash, nullIfEmpty(run.Source), nullIfEmpty(run.Target), run.ObjectTypes,
		run.Status, formatTime(run.StartedAt), formatTimePtr(run.CompletedAt),
		summaryValue(run.Summary), nullIfEmpty(run.Error),
	)
	return err
}

func (r *SQLiteRepository) Update(run *domain.Run) error {
	res, err := r.db.Exec(`
		UPDATE runs SET
			status = ?, completed_at = ?, summary = ?, error = ?
		WHERE id = ?`,
		run.Status, formatTimePtr(run.CompletedAt), summaryValue(run.Summary), nullIfEmpty(run.Error), run.ID,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

const sqliteColumns = `id, kind, hash, source, target, object_types, status, started_at, completed_at, summary, error`

func (r *SQLiteRepository) Get(id string) (*domain.Run, error) {
	row := r.db.QueryRow(`SELECT `+sqliteColumns+` FROM runs WHERE id = ?`, id)
	return scanSQLiteRun(row)
}

func (r *SQLiteRepository) List(filter ListFilter) ([]*domain.Run, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, filter.Kind)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}
	if !filter.Since.IsZero() {
		where = append(where, "started_at >= ?")
		args = append(args, formatTime(filter.Since))
	}

	query := `SELECT ` + sqliteColumns + ` FROM runs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY started_at DESC LIMIT ?"
	args = append(args, filter.limit())

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]*domain.Run, 0)
	for rows.Next() {
		run, err := scanSQLiteRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSQLiteRun(s rowScanner) (*domain.Run, error) {
	var run domain.Run
	var source, target, completedAt, summary, errStr sql.NullString
	var startedAt string

	if err := s.Scan(
		&run.ID, &run.Kind, &run.Hash, &source, &target, &run.ObjectTypes,
		&run.Status, &startedAt, &completedAt, &summary, &errStr,
	); err != nil {
		return nil, err
	}

	run.Source = source.String
	run.Target = target.String
	run.Error = errStr.String
	run.StartedAt, _ = time.Parse(sqliteTimeLayout, startedAt)
	if completedAt.Valid {
		t, _ := time.Parse(sqliteTimeLayout, completedAt.String)
		run.CompletedAt = &t
	}
	if summary.Valid && summary.String != "" {
		run.Summary = json.RawMessage(summary.String)
	}
	return &run, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}

func formatTimePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}
