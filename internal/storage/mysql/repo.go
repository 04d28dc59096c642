// Package mysql provides a MySQL-backed storage.Repository implementation
// on top of go-sql-driver/mysql.
package mysql

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/schrodingerkitkat/csv-processor/internal/storage/sqldb"
)

// Config holds MySQL repository configuration.
type Config struct {
	DSN         string // e.g. "user:pass@tcp(host:3306)/audit"
	TablePrefix string
}

// Dialect is the MySQL flavor of the audit tables.
var Dialect = sqldb.Dialect{
	Name:        "mysql",
	Placeholder: func(int) string { return "?" },
	Quote:       func(s string) string { return "`" + strings.ReplaceAll(s, "`", "``") + "`" },
	CreateFiles: `CREATE TABLE IF NOT EXISTS %[1]s (
	id            BIGINT AUTO_INCREMENT PRIMARY KEY,
	run_id        VARCHAR(64)   NOT NULL,
	source_path   VARCHAR(1024) NOT NULL,
	archived_path VARCHAR(1024) NOT NULL,
	outcome       VARCHAR(16)   NOT NULL,
	processed_at  DATETIME(6)   NOT NULL,
	record_count  INT           NOT NULL,
	report        JSON          NOT NULL
)`,
	CreateBatches: `CREATE TABLE IF NOT EXISTS %[1]s (
	run_id      VARCHAR(64) PRIMARY KEY,
	started_at  DATETIME(6) NOT NULL,
	finished_at DATETIME(6) NOT NULL,
	files       INT         NOT NULL,
	failures    INT         NOT NULL,
	records     INT         NOT NULL,
	summary     JSON        NOT NULL
)`,
}

// NewRepository opens a MySQL pool and returns a repository plus a Close
// function for cleanup. parseTime is forced on so DATETIME columns scan as
// time.Time.
func NewRepository(ctx context.Context, cfg Config) (*sqldb.Repository, func(), error) {
	dsn, err := normalizeDSN(cfg.DSN)
	if err != nil {
		return nil, nil, err
	}
	db, err := sqldb.Open(ctx, "mysql", dsn)
	if err != nil {
		return nil, nil, err
	}
	repo, err := sqldb.New(db, Dialect, cfg.TablePrefix)
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("mysql: %w", err)
	}
	return repo, func() { _ = db.Close() }, nil
}

// normalizeDSN validates dsn early and enables parseTime.
func normalizeDSN(dsn string) (string, error) {
	if strings.TrimSpace(dsn) == "" {
		return "", fmt.Errorf("mysql: DSN must not be empty")
	}
	c, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("mysql dsn: %w", err)
	}
	c.ParseTime = true
	return c.FormatDSN(), nil
}
