package runs

import (
	"database/sql"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/mmrzaf/sqribe/internal/domain"
)

func TestInitCreatesParentDirectory(t *testing.T) {
	t.Parallel()

	dbPath := filepath.Join(t.TempDir(), "nested", "deeper", "runs.db")
	repo := NewSQLiteRepository(dbPath)

	if err := repo.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	if repo.DB() == nil {
		t.Fatal("expected db handle to be initialized")
	}
	t.Cleanup(func() {
		_ = repo.DB().Close()
	})
}

func newRepo(t *testing.T) Repository {
	t.Helper()
	repo, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestCreateUpdateGet(t *testing.T) {
	repo := newRepo(t)
	started := time.Date(2026, 3, 1, 10, 0, 0, 123456789, time.UTC)

	run := &domain.Run{
		Kind:        domain.RunKindGenerate,
		Hash:        "0123456789abcdef0123456789abcdef",
		Source:      "sqlserver://sa:****@db",
		ObjectTypes: "dt,fkc",
		Status:      domain.RunStatusRunning,
		StartedAt:   started,
	}
	if err := repo.Create(run); err != nil {
		t.Fatal(err)
	}
	if run.ID == "" {
		t.Fatal("expected generated id")
	}

	done := started.Add(3 * time.Second)
	summary, _ := json.Marshal(domain.Summary{RunID: run.ID, Kind: run.Kind})
	run.Status = domain.RunStatusPartial
	run.CompletedAt = &done
	run.Summary = summary
	run.Error = "fkc: query failed"
	if err := repo.Update(run); err != nil {
		t.Fatal(err)
	}

	got, err := repo.Get(run.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.RunStatusPartial || got.Error != run.Error || got.Source != run.Source || got.Target != "" {
		t.Fatalf("unexpected run: %+v", got)
	}
	if !got.StartedAt.Equal(started) || got.CompletedAt == nil || !got.CompletedAt.Equal(done) {
		t.Fatalf("timestamps did not round trip: %v %v", got.StartedAt, got.CompletedAt)
	}
	var s domain.Summary
	if err := json.Unmarshal(got.Summary, &s); err != nil || s.RunID != run.ID {
		t.Fatalf("summary did not round trip: %s", got.Summary)
	}
}

func TestUpdateMissingRun(t *testing.T) {
	repo := newRepo(t)
	err := repo.Update(&domain.Run{ID: "missing", Status: domain.RunStatusFailed})
	if !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected ErrNoRows, got %v", err)
	}
}

func TestListFilters(t *testing.T) {
	repo := newRepo(t)
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	kinds := []domain.RunKind{domain.RunKindGenerate, domain.RunKindDrop, domain.RunKindGenerate, domain.RunKindRestore}
	for i, k := range kinds {
		if err := repo.Create(&domain.Run{
			Kind:      k,
			Hash:      "h",
			Status:    domain.RunStatusSuccess,
			StartedAt: base.Add(time.Duration(i) * time.Hour),
		}); err != nil {
			t.Fatal(err)
		}
	}

	all, err := repo.List(ListFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 4 || all[0].Kind != domain.RunKindRestore {
		t.Fatalf("expected newest first, got %d runs", len(all))
	}

	gens, err := repo.List(ListFilter{Kind: domain.RunKindGenerate})
	if err != nil {
		t.Fatal(err)
	}
	if len(gens) != 2 {
		t.Fatalf("expected 2 generate runs, got %d", len(gens))
	}

	recent, err := repo.List(ListFilter{Since: base.Add(90 * time.Minute), Limit: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 1 || !recent[0].StartedAt.Equal(base.Add(3*time.Hour)) {
		t.Fatalf("unexpected since/limit result: %+v", recent)
	}
}
