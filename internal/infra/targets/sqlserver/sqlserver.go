// Package sqlserver opens SQL Server connections through go-mssqldb and
// renders server errors the way SQL Server tools print them.
package sqlserver

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	mssql "github.com/denisenkom/go-mssqldb"
	"github.com/mmrzaf/sqribe/internal/domain"
	"github.com/pkg/errors"
)

// Options are connection settings that come from configuration rather than
// the DSN itself. A key already present in the DSN wins.
type Options struct {
	Encrypt                string
	TrustServerCertificate bool
	AppName                string
}

type Target struct {
	db *sql.DB
}

func Open(ctx context.Context, dsn string, opts Options) (*Target, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, &domain.ConnectionError{Op: "connect", Err: errors.New("empty connection string")}
	}

	connector, err := mssql.NewConnector(ApplyOptions(dsn, opts))
	if err != nil {
		return nil, &domain.ConnectionError{Op: "connect", Err: err}
	}
	db := sql.OpenDB(connector)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, &domain.ConnectionError{Op: "connect", Err: Describe(err)}
	}
	return &Target{db: db}, nil
}

func (t *Target) DB() *sql.DB { return t.db }

func (t *Target) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	rows, err := t.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, Describe(err)
	}
	return rows, nil
}

func (t *Target) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	res, err := t.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, Describe(err)
	}
	return res, nil
}

func (t *Target) Close() error {
	if t.db != nil {
		return t.db.Close()
	}
	return nil
}

// ApplyOptions adds encrypt, TrustServerCertificate and app name settings
// to a URL, ADO or ODBC style DSN.
func ApplyOptions(dsn string, opts Options) string {
	settings := [][2]string{}
	if opts.Encrypt != "" {
		settings = append(settings, [2]string{"encrypt", opts.Encrypt})
	}
	if opts.TrustServerCertificate {
		settings = append(settings, [2]string{"TrustServerCertificate", "true"})
	}
	if opts.AppName != "" {
		settings = append(settings, [2]string{"app name", opts.AppName})
	}
	if len(settings) == 0 {
		return dsn
	}

	if strings.HasPrefix(strings.ToLower(dsn), "sqlserver://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return dsn
		}
		q := u.Query()
		for _, kv := range settings {
			if !hasQueryKey(q, kv[0]) {
				q.Set(kv[0], kv[1])
			}
		}
		u.RawQuery = q.Encode()
		return u.String()
	}

	present := map[string]bool{}
	for _, part := range strings.Split(dsn, ";") {
		if k, _, ok := strings.Cut(part, "="); ok {
			present[strings.ToLower(strings.TrimSpace(k))] = true
		}
	}
	var b strings.Builder
	b.WriteString(strings.TrimRight(dsn, "; "))
	for _, kv := range settings {
		if present[strings.ToLower(kv[0])] {
			continue
		}
		fmt.Fprintf(&b, ";%s=%s", kv[0], kv[1])
	}
	return b.String()
}

func hasQueryKey(q url.Values, key string) bool {
	for k := range q {
		if strings.EqualFold(k, key) {
			return true
		}
	}
	return false
}

// ServerError is a go-mssqldb error rendered with its message number,
// severity, state and line.
type ServerError struct {
	Err mssql.Error
}

func (e *ServerError) Error() string {
	msgs := []string{formatServerMessage(e.Err)}
	for _, extra := range e.Err.All {
		if extra.Number == e.Err.Number && extra.Message == e.Err.Message {
			continue
		}
		msgs = append(msgs, formatServerMessage(extra))
	}
	return strings.Join(msgs, "; ")
}

func (e *ServerError) Unwrap() error { return e.Err }

func formatServerMessage(e mssql.Error) string {
	return fmt.Sprintf("Msg %d, Level %d, State %d, Line %d: %s", e.Number, e.Class, e.State, e.LineNo, e.Message)
}

// Describe wraps a go-mssqldb server error in a ServerError. Other errors
// are returned unchanged.
func Describe(err error) error {
	if err == nil {
		return nil
	}
	var se *ServerError
	if errors.As(err, &se) {
		return err
	}
	var me mssql.Error
	if errors.As(err, &me) {
		return &ServerError{Err: me}
	}
	return err
}
