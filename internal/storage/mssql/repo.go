// Package mssql implements the Microsoft SQL Server audit store using
// go-mssqldb through database/sql.
package mssql

import (
	"context"
	"fmt"
	"strings"

	_ "github.com/microsoft/go-mssqldb"
	"github.com/microsoft/go-mssqldb/msdsn"

	"github.com/schrodingerkitkat/csv-processor/internal/storage/sqldb"
)

// Config holds MSSQL repository configuration.
type Config struct {
	DSN         string
	TablePrefix string
}

// Dialect is the SQL Server flavor of the audit tables. T-SQL has no
// CREATE TABLE IF NOT EXISTS, so the DDL checks OBJECT_ID first.
var Dialect = sqldb.Dialect{
	Name:        "mssql",
	Placeholder: func(n int) string { return fmt.Sprintf("@p%d", n) },
	Quote:       msIdent,
	CreateFiles: `IF OBJECT_ID(N'%[2]s', N'U') IS NULL
CREATE TABLE %[1]s (
	id            BIGINT IDENTITY(1,1) PRIMARY KEY,
	run_id        NVARCHAR(64)   NOT NULL,
	source_path   NVARCHAR(1024) NOT NULL,
	archived_path NVARCHAR(1024) NOT NULL,
	outcome       NVARCHAR(16)   NOT NULL,
	processed_at  DATETIME2      NOT NULL,
	record_count  INT            NOT NULL,
	report        NVARCHAR(MAX)  NOT NULL
)`,
	CreateBatches: `IF OBJECT_ID(N'%[2]s', N'U') IS NULL
CREATE TABLE %[1]s (
	run_id      NVARCHAR(64) PRIMARY KEY,
	started_at  DATETIME2    NOT NULL,
	finished_at DATETIME2    NOT NULL,
	files       INT          NOT NULL,
	failures    INT          NOT NULL,
	records     INT          NOT NULL,
	summary     NVARCHAR(MAX) NOT NULL
)`,
}

// NewRepository constructs a Repository and returns a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*sqldb.Repository, func(), error) {
	// Validate DSN early to fail fast on obvious mistakes.
	if _, err := msdsn.Parse(cfg.DSN); err != nil {
		return nil, nil, fmt.Errorf("mssql dsn: %w", err)
	}
	db, err := sqldb.Open(ctx, "sqlserver", cfg.DSN)
	if err != nil {
		return nil, nil, err
	}
	repo, err := sqldb.New(db, Dialect, cfg.TablePrefix)
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("mssql: %w", err)
	}
	return repo, func() { _ = db.Close() }, nil
}

// msIdent brackets an identifier, doubling any closing bracket.
func msIdent(id string) string { return "[" + strings.ReplaceAll(id, "]", "]]") + "]" }
