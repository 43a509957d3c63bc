package connections

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mmrzaf/sqribe/internal/domain"
)

func writeProfiles(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"prod.yaml": "name: production\ndsn: sqlserver://sa:pw@prod?database=app\nencrypt: \"true\"\n",
		"dev.json":  `{"name":"local","driver":"sqlite","dsn":"/tmp/dev.db"}`,
		"notes.txt": "ignored",
		"bad.yml":   "dsn: [unterminated",
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestFileRepositoryList(t *testing.T) {
	repo := NewFileRepository(writeProfiles(t))
	list, err := repo.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].ID != "dev" || list[1].ID != "prod" {
		t.Fatalf("unexpected profiles: %+v", list)
	}
	if list[1].Driver != domain.DriverSQLServer || list[1].Encrypt != "true" {
		t.Fatalf("unexpected defaults: %+v", list[1])
	}
}

func TestFileRepositoryMissingDir(t *testing.T) {
	list, err := NewFileRepository(filepath.Join(t.TempDir(), "none")).List()
	if err != nil || len(list) != 0 {
		t.Fatalf("expected empty list, got %v %v", list, err)
	}
}

func TestResolve(t *testing.T) {
	dir := writeProfiles(t)
	repo := NewFileRepository(dir)

	c, err := Resolve(repo, "production", "")
	if err != nil || c.ID != "prod" {
		t.Fatalf("expected profile by name, got %+v %v", c, err)
	}
	c, err = Resolve(repo, filepath.Join(dir, "dev.json"), "")
	if err != nil || c.Driver != domain.DriverSQLite {
		t.Fatalf("expected profile by path, got %+v %v", c, err)
	}
	c, err = Resolve(repo, "server=db1;user id=sa", "")
	if err != nil || c.DSN != "server=db1;user id=sa" || c.Driver != domain.DriverSQLServer {
		t.Fatalf("expected inline DSN, got %+v %v", c, err)
	}
	if c, err := Resolve(repo, "", ""); c != nil || err != nil {
		t.Fatalf("expected nil for empty ref, got %+v %v", c, err)
	}
}
