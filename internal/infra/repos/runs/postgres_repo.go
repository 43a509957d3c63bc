package runs

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/mmrzaf/sqribe/internal/domain"
)

type PostgresRepository struct {
	dsn string
	db  *sql.DB
}

func NewPostgresRepository(dsn string) *PostgresRepository {
	return &PostgresRepository{dsn: strings.TrimSpace(dsn)}
}

func (r *PostgresRepository) Init() error {
	if r.dsn == "" {
		return fmt.Errorf("runs db dsn is required")
	}
	db, err := sql.Open("postgres", r.dsn)
	if err != nil {
		return err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return err
	}
	r.db = db
	return r.applyMigrations()
}

func (r *PostgresRepository) DB() *sql.DB { return r.db }

func (r *PostgresRepository) applyMigrations() error {
	if _, err := r.db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER PRIMARY KEY)`); err != nil {
		return err
	}
	var cur int
	if err := r.db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&cur); err != nil {
		return err
	}

	type mig struct {
		v  int
		up func(*sql.DB) error
	}
	migs := []mig{
		{1, migrateV1RunsPG},
		{2, migrateV2RunsIndexPG},
	}

	for _, m := range migs {
		if cur >= m.v {
			continue
		}
		if err := m.up(r.db); err != nil {
			return fmt.Errorf("migration %d failed: %w", m.v, err)
		}
		if _, err := r.db.Exec(`INSERT INTO schema_migrations(version) VALUES ($1)`, m.v); err != nil {
			return err
		}
		cur = m.v
	}
	return nil
}

func migrateV1RunsPG(db *sql.DB) error {
	_, err := db.Exec(`
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		hash TEXT NOT NULL,
		source TEXT,
		target TEXT,
		object_types TEXT NOT NULL,
		status TEXT NOT NULL,
		started_at TIMESTAMPTZ NOT NULL,
		completed_at TIMESTAMPTZ,
		summary JSONB,
		error TEXT
	)`)
	return err
}

func migrateV2RunsIndexPG(db *sql.DB) error {
	_, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_runs_kind_started ON runs(kind, started_at DESC)`)
	return err
}

func (r *PostgresRepository) Create(run *domain.Run) error {
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
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		run.ID, run.Kind, run.Hash, nullIfEmpty(run.Source), nullIfEmpty(run.Target), run.ObjectTypes,
		run.Status, run.StartedAt, run.CompletedAt, summaryValue(run.Summary), nullIfEmpty(run.Error),
	)
	return err
}

func (r *PostgresRepository) Update(run *domain.Run) error {
	res, err := r.db.Exec(`
	UPDATE runs SET
		status = $1, completed_at = $2, summary = $3, error = $4
	WHERE id = $5`,
		run.Status, run.CompletedAt, summaryValue(run.Summary), nullIfEmpty(run.Error), run.ID,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

const pgColumns = `id, kind, hash, source, target, object_types, status, started_at, completed_at, summary, error`

func (r *PostgresRepository) Get(id string) (*domain.Run, error) {
	return scanPostgresRun(r.db.QueryRow(`SELECT `+pgColumns+` FROM runs WHERE id = $1`, id))
}

func (r *PostgresRepository) List(filter ListFilter) ([]*domain.Run, error) {
	var (
		where []string
		args  []interface{}
	)
	add := func(cond string, v interface{}) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if filter.Kind != "" {
		add("kind = $%d", filter.Kind)
	}
	if filter.Status != "" {
		add("status = $%d", filter.Status)
	}
	if !filter.Since.IsZero() {
		add("started_at >= $%d", filter.Since)
	}

	query := `SELECT ` + pgColumns + ` FROM runs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, filter.limit())
	query += fmt.Sprintf(" ORDER BY started_at DESC LIMIT $%d", len(args))

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Run
	for rows.Next() {
		run, err := scanPostgresRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func scanPostgresRun(s rowScanner) (*domain.Run, error) {
	var run domain.Run
	var source, target, summary, errStr sql.NullString
	var completedAt sql.NullTime

	if err := s.Scan(
		&run.ID, &run.Kind, &run.Hash, &source, &target, &run.ObjectTypes,
		&run.Status, &run.StartedAt, &completedAt, &summary, &errStr,
	); err != nil {
		return nil, err
	}
	run.Source = source.String
	run.Target = target.String
	run.Error = errStr.String
	if completedAt.Valid {
		run.CompletedAt = &completedAt.Time
	}
	if summary.Valid && summary.String != "" {
		run.Summary = json.RawMessage(summary.String)
	}
	return &run, nil
}
