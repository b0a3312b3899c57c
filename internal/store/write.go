package store

import (
	"context"
	"fmt"

	"github.com/roach88/fxsql/internal/ir"
)

// Insert writes one row into the named table. Fields absent from row are
// stored as NULL.
func (s *Store) Insert(ctx context.Context, table string, row ir.Record) error {
	stmt, err := s.compiler.Insert(table, row)
	if err != nil {
		return fmt.Errorf("insert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, stmt.SQL, stmt.Params...); err != nil {
		return fmt.Errorf("insert into %s: %w", table, err)
	}
	return nil
}

// InsertAll writes rows in a single transaction.
func (s *Store) InsertAll(ctx context.Context, table string, rows []ir.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for i, row := range rows {
		stmt, err := s.compiler.Insert(table, row)
		if err != nil {
			return fmt.Errorf("insert row %d: %w", i, err)
		}
		if _, err := tx.ExecContext(ctx, stmt.SQL, stmt.Params...); err != nil {
			return fmt.Errorf("insert row %d into %s: %w", i, table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
