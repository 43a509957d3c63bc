package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/mmrzaf/sqribe/internal/domain"
)

func TestOpenExecQuery(t *testing.T) {
	ctx := context.Background()
	tgt, err := Open(ctx, "sqlite://"+filepath.Join(t.TempDir(), "dev.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer tgt.Close()

	if _, err := tgt.ExecContext(ctx, "CREATE TABLE t (v TEXT); INSERT INTO t (v) VALUES ('a'), ('b');"); err != nil {
		t.Fatalf("multi statement exec: %v", err)
	}
	var n int
	if err := tgt.DB().QueryRowContext(ctx, "SELECT COUNT(*) FROM t").Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("expected 2 rows, got %d", n)
	}
}

func TestOpenEmptyPath(t *testing.T) {
	_, err := Open(context.Background(), "")
	var ce *domain.ConnectionError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConnectionError, got %v", err)
	}
}
