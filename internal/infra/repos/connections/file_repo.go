package connections

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mmrzaf/sqribe/internal/domain"
	"gopkg.in/yaml.v3"
)

// Repository resolves named connection profiles.
type Repository interface {
	List() ([]*domain.Connection, error)
	Get(id string) (*domain.Connection, error)
	GetByPath(path string) (*domain.Connection, error)
}

// FileRepository reads one profile per .yaml, .yml or .json file.
type FileRepository struct {
	baseDir string
}

func NewFileRepository(baseDir string) *FileRepository {
	return &FileRepository{baseDir: baseDir}
}

func (r *FileRepository) List() ([]*domain.Connection, error) {
	if _, err := os.Stat(r.baseDir); os.IsNotExist(err) {
		return []*domain.Connection{}, nil
	}

	entries, err := os.ReadDir(r.baseDir)
	if err != nil {
		return nil, err
	}

	conns := make([]*domain.Connection, 0)
	for _, entry := range entries {
		if entry.IsDir() || !isProfile(entry.Name()) {
			continue
		}
		conn, err := r.load(filepath.Join(r.baseDir, entry.Name()))
		if err != nil {
			continue
		}
		conns = append(conns, conn)
	}
	sort.Slice(conns, func(i, j int) bool { return conns[i].ID < conns[j].ID })
	return conns, nil
}

func (r *FileRepository) Get(id string) (*domain.Connection, error) {
	conns, err := r.List()
	if err != nil {
		return nil, err
	}
	for _, c := range conns {
		if c.ID == id || c.Name == id {
			return c, nil
		}
	}
	return nil, fmt.Errorf("connection not found: %s", id)
}

func (r *FileRepository) GetByPath(path string) (*domain.Connection, error) {
	return r.load(path)
}

func (r *FileRepository) load(path string) (*domain.Connection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var conn domain.Connection
	if filepath.Ext(path) == ".json" {
		err = json.Unmarshal(data, &conn)
	} else {
		err = yaml.Unmarshal(data, &conn)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if conn.ID == "" {
		conn.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if conn.Driver == "" {
		conn.Driver = domain.DriverSQLServer
	}
	return &conn, nil
}

func isProfile(name string) bool {
	switch filepath.Ext(name) {
	case ".yaml", ".yml", ".json":
		return true
	}
	return false
}

// Resolve treats ref as a profile id, name or file path when one matches,
// and as a literal DSN otherwise.
func Resolve(repo Repository, ref string, driver string) (*domain.Connection, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, nil
	}
	if isProfile(ref) {
		if _, err := os.Stat(ref); err == nil {
			return repo.GetByPath(ref)
		}
	}
	if !strings.ContainsAny(ref, "=:/;") {
		if c, err := repo.Get(ref); err == nil {
			return c, nil
		}
	}
	if driver == "" {
		driver = domain.DriverSQLServer
	}
	return &domain.Connection{ID: "inline", Name: "inline", Driver: driver, DSN: ref}, nil
}
