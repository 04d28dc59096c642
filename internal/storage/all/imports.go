// Package all wires all built-in storage backends into the storage factory.
//
// This package exists purely for side effects: importing it (even as a blank
// import) runs the init function of each backend, which registers its
// factory with the storage package. The kinds made available are:
//
//   - "sqlite"   (internal/storage/sqlite)
//   - "postgres" (internal/storage/postgres)
//   - "mysql"    (internal/storage/mysql)
//   - "mssql"    (internal/storage/mssql)
//
// A binary that needs only a subset can blank-import those backends directly.
package all

import (
	_ "github.com/schrodingerkitkat/csv-processor/internal/storage/mssql"
	_ "github.com/schrodingerkitkat/csv-processor/internal/storage/mysql"
	_ "github.com/schrodingerkitkat/csv-processor/internal/storage/postgres"
	_ "github.com/schrodingerkitkat/csv-processor/internal/storage/sqlite"
)
