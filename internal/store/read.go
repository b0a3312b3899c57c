package store

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/fxsql/internal/ir"
	"github.com/roach88/fxsql/internal/metadata"
	"github.com/roach88/fxsql/internal/queryir"
	"github.com/roach88/fxsql/internal/querysql"
)

// RetrieveMultiple returns the rows of req.Table matching req.Filter,
// ordered by primary key and capped at req.Top when it is positive.
//
// Returns an empty table (not nil rows) when nothing matches.
func (s *Store) RetrieveMultiple(ctx context.Context, req *queryir.RetrieveMultiple) (ir.Table, error) {
	rows, err := s.query(ctx, req)
	if err != nil {
		return ir.Table{}, err
	}
	return ir.Table{Table: req.Table, Rows: rows}, nil
}

// RetrieveByID returns the row of req.Table whose primary key is req.ID.
// The second result is false when no such row exists.
func (s *Store) RetrieveByID(ctx context.Context, req *queryir.RetrieveByID) (ir.Record, bool, error) {
	rows, err := s.query(ctx, req)
	if err != nil {
		return ir.Record{}, false, err
	}
	if len(rows) == 0 {
		return ir.Record{}, false, nil
	}
	return rows[0], true, nil
}

func (s *Store) query(ctx context.Context, req queryir.Request) ([]ir.Record, error) {
	stmt, err := s.compiler.Compile(req)
	if err != nil {
		return nil, fmt.Errorf("compile request: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, stmt.SQL, stmt.Params...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", stmt.Table.Name, err)
	}
	defer rows.Close()

	records := []ir.Record{}
	for rows.Next() {
		rec, err := s.scanRecord(rows, stmt)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", stmt.Table.Name, err)
	}
	return records, nil
}

func (s *Store) scanRecord(rows *sql.Rows, stmt *querysql.Statement) (ir.Record, error) {
	raw := make([]any, len(stmt.Columns))
	dest := make([]any, len(raw))
	for i := range raw {
		dest[i] = &raw[i]
	}
	if err := rows.Scan(dest...); err != nil {
		return ir.Record{}, fmt.Errorf("scan %s: %w", stmt.Table.Name, err)
	}

	rec := ir.Record{Table: stmt.Table.Name, Fields: make(map[string]ir.Value, len(raw))}
	for i, col := range stmt.Columns {
		v, err := s.fromDriver(raw[i], col)
		if err != nil {
			return ir.Record{}, fmt.Errorf("%s.%s: %w", col.Table, col.Name, err)
		}
		rec.Fields[col.Name] = v
	}
	return rec, nil
}

// fromDriver converts a scanned driver value to the column's formula type.
func (s *Store) fromDriver(raw any, col *metadata.Column) (ir.Value, error) {
	if raw == nil {
		return ir.Blank{}, nil
	}
	if b, ok := raw.([]byte); ok {
		raw = string(b)
	}

	if col.IsLookup() {
		return parseGuid(raw)
	}

	switch col.Type.Kind {
	case ir.KindDecimal:
		switch v := raw.(type) {
		case int64:
			return ir.DecimalFromInt(v), nil
		case float64:
			return ir.NewDecimal(strconv.FormatFloat(v, 'f', -1, 64))
		case string:
			return ir.NewDecimal(v)
		}
	case ir.KindNumber:
		switch v := raw.(type) {
		case float64:
			return ir.Number(v), nil
		case int64:
			return ir.Number(float64(v)), nil
		case string:
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, err
			}
			return ir.Number(f), nil
		}
	case ir.KindBoolean:
		switch v := raw.(type) {
		case bool:
			return ir.Boolean(v), nil
		case int64:
			return ir.Boolean(v != 0), nil
		}
	case ir.KindString:
		if v, ok := raw.(string); ok {
			return ir.String(v), nil
		}
	case ir.KindDate, ir.KindDateTime, ir.KindDateTimeNoTimeZone:
		switch v := raw.(type) {
		case string:
			return querysql.ParseDateTime(v, col.Type.Kind)
		case time.Time:
			return ir.DateTime{Time: v, Kind: col.Type.Kind}, nil
		}
	case ir.KindGuid:
		return parseGuid(raw)
	case ir.KindOptionSet:
		if v, ok := raw.(int64); ok {
			return s.optionValue(col.Type.OptionSet, v), nil
		}
	}
	return nil, fmt.Errorf("cannot read %T as %s", raw, col.Type)
}

func parseGuid(raw any) (ir.Value, error) {
	s, ok := raw.(string)
	if !ok {
		return nil, fmt.Errorf("cannot read %T as Guid", raw)
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return nil, err
	}
	return ir.Guid(id), nil
}

// optionValue resolves the option's name, taking the first in sorted order
// when several share a value. Undeclared values keep an empty name.
func (s *Store) optionValue(set string, v int64) ir.OptionValue {
	ov := ir.OptionValue{OptionSet: set, Value: v}
	opts, ok := s.md.OptionSet(set)
	if !ok {
		return ov
	}
	names := make([]string, 0, len(opts.Options))
	for name, val := range opts.Options {
		if val == v {
			names = append(names, name)
		}
	}
	if len(names) > 0 {
		slices.Sort(names)
		ov.Name = names[0]
	}
	return ov
}
