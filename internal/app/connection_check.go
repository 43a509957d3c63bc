package app

import (
	"context"
	"time"

	"github.com/mmrzaf/sqribe/internal/domain"
)

// ConnectionCheck is the outcome of probing one connection.
type ConnectionCheck struct {
	ConnectionID  string    `json:"connection_id" yaml:"connection_id"`
	CheckedAt     time.Time `json:"checked_at" yaml:"checked_at"`
	OK            bool      `json:"ok" yaml:"ok"`
	LatencyMS     int64     `json:"latency_ms" yaml:"latency_ms"`
	ServerVersion string    `json:"server_version,omitempty" yaml:"server_version,omitempty"`
	Error         string    `json:"error,omitempty" yaml:"error,omitempty"`
}

// CheckConnection opens conn and reads the server version.
func CheckConnection(ctx context.Context, connector Connector, conn *domain.Connection) (*ConnectionCheck, error) {
	check := &ConnectionCheck{
		ConnectionID: conn.ID,
		CheckedAt:    time.Now().UTC(),
	}

	start := time.Now()
	c, err := connector.Connect(ctx, conn.DSN)
	check.LatencyMS = time.Since(start).Milliseconds()
	if err != nil {
		check.Error = err.Error()
		return check, err
	}
	defer c.Close()

	check.OK = true
	query := `SELECT @@VERSION`
	if conn.Driver == domain.DriverSQLite {
		query = `SELECT sqlite_version()`
	}
	rows, err := c.QueryContext(ctx, query)
	if err != nil {
		return check, nil
	}
	defer rows.Close()
	if rows.Next() {
		_ = rows.Scan(&check.ServerVersion)
	}
	return check, nil
}
