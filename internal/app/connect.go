package app

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mmrzaf/sqribe/internal/domain"
	"github.com/mmrzaf/sqribe/internal/infra/targets/sqlite"
	"github.com/mmrzaf/sqribe/internal/infra/targets/sqlserver"
)

// Conn is an open source or target database.
type Conn interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	Close() error
}

// Connector opens a fresh connection per stage.
type Connector interface {
	Connect(ctx context.Context, dsn string) (Conn, error)
}

// DriverConnector opens SQL Server or SQLite connections by driver name.
type DriverConnector struct {
	Driver  string
	Options sqlserver.Options
}

func NewConnector(conn *domain.Connection, appName string) DriverConnector {
	c := DriverConnector{Driver: domain.DriverSQLServer, Options: sqlserver.Options{AppName: appName}}
	if conn == nil {
		return c
	}
	if conn.Driver != "" {
		c.Driver = conn.Driver
	}
	c.Options.Encrypt = conn.Encrypt
	c.Options.TrustServerCertificate = conn.TrustServerCertificate
	return c
}

func (c DriverConnector) Connect(ctx context.Context, dsn string) (Conn, error) {
	switch c.Driver {
	case domain.DriverSQLite:
		t, err := sqlite.Open(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return t, nil
	case domain.DriverSQLServer, "":
		t, err := sqlserver.Open(ctx, dsn, c.Options)
		if err != nil {
			return nil, err
		}
		return t, nil
	default:
		return nil, &domain.ConnectionError{Op: "connect", Err: fmt.Errorf("unsupported driver: %s", c.Driver)}
	}
}
