// Package store is the data service behind delegated retrievals.
//
// A Store holds one SQL table per metadata table, named by the table's
// physical name, and answers queryir retrieval requests by compiling them
// with querysql. Formula values are converted to driver parameters on the
// way in and back to formula values, by column type, on the way out.
//
// # Drivers
//
//   - sqlite3: github.com/mattn/go-sqlite3 (default, cgo)
//   - sqlite:  modernc.org/sqlite (pure Go)
//   - pgx:     github.com/jackc/pgx/v5/stdlib
//
// SQLite databases are configured with:
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// All SELECTs order by primary key, so results are deterministic.
package store
