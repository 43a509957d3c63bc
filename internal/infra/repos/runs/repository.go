package runs

import (
	"database/sql"
	"strings"
	"time"

	"github.com/mmrzaf/sqribe/internal/domain"
)

// Repository stores one record per generate, drop or restore run.
type Repository interface {
	Init() error
	Create(run *domain.Run) error
	Update(run *domain.Run) error
	Get(id string) (*domain.Run, error)
	List(filter ListFilter) ([]*domain.Run, error)
	DB() *sql.DB
	Close() error
}

// ListFilter narrows List. Zero values mean no restriction, except Limit
// which defaults to 50.
type ListFilter struct {
	Limit  int
	Kind   domain.RunKind
	Status domain.RunStatus
	Since  time.Time
}

func (f ListFilter) limit() int {
	if f.Limit <= 0 {
		return 50
	}
	return f.Limit
}

// Open picks a Postgres store for postgres:// DSNs and a SQLite file
// otherwise, and initializes it.
func Open(dsn string) (Repository, error) {
	var repo Repository
	lower := strings.ToLower(strings.TrimSpace(dsn))
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		repo = NewPostgresRepository(dsn)
	} else {
		repo = NewSQLiteRepository(strings.TrimPrefix(strings.TrimSpace(dsn), "sqlite://"))
	}
	if err := repo.Init(); err != nil {
		_ = repo.Close()
		return nil, err
	}
	return repo, nil
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func summaryValue(raw []byte) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
