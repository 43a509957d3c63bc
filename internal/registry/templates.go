package registry

import (
	"embed"
	"errors"
	"io/fs"
	"os"
	"path"
	"strings"

	"github.com/mmrzaf/sqribe/internal/domain"
)

//go:embed templates/queries/*.sql templates/drops/*.sql
var embedded embed.FS

// Templates resolves query and drop templates. Files in the override
// directories shadow the bundled ones of the same name.
type Templates struct {
	fsys fs.FS
}

// NewTemplates layers optional on-disk query and drop directories over the
// bundled templates. Empty directory names keep the bundled set.
func NewTemplates(queriesDir, dropsDir string) *Templates {
	base, _ := fs.Sub(embedded, "templates")
	layers := map[string]fs.FS{}
	if queriesDir != "" {
		layers["queries"] = os.DirFS(queriesDir)
	}
	if dropsDir != "" {
		layers["drops"] = os.DirFS(dropsDir)
	}
	return &Templates{fsys: overlay{base: base, layers: layers}}
}

// FS exposes the merged tree: queries/<name>.sql and drops/<name>.sql.
func (t *Templates) FS() fs.FS { return t.fsys }

// Query loads the metadata query for an object type.
func (t *Templates) Query(ot domain.ObjectType) (string, error) {
	name := path.Join("queries", ot.Query)
	b, err := fs.ReadFile(t.fsys, name)
	if err != nil {
		return "", &domain.IOError{Path: name, Err: err}
	}
	return string(b), nil
}

type overlay struct {
	base   fs.FS
	layers map[string]fs.FS
}

func (o overlay) Open(name string) (fs.File, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}
	dir, rest, ok := strings.Cut(name, "/")
	if layer, found := o.layers[dir]; ok && found {
		f, err := layer.Open(rest)
		if err == nil {
			return f, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	return o.base.Open(name)
}
