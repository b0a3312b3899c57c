package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/roach88/fxsql/internal/ir"
	"github.com/roach88/fxsql/internal/queryir"
)

// Call is one request received by a MemoryRetriever.
type Call struct {
	Seq     int64 // 1-based, in arrival order
	Request queryir.Request
}

// MemoryRetriever is an in-memory data service for tests.
//
// Filters are evaluated with queryir.Match, so results follow the same
// blank and case rules as the SQL store. Rows come back in insertion
// order.
//
// Thread-safety: all methods are safe for concurrent use.
type MemoryRetriever struct {
	mu     sync.Mutex
	tables map[string]*memTable
	calls  []Call
	err    error
}

type memTable struct {
	key  string
	rows []ir.Record
}

// NewMemoryRetriever creates an empty retriever.
func NewMemoryRetriever() *MemoryRetriever {
	return &MemoryRetriever{tables: make(map[string]*memTable)}
}

// AddTable registers rows under table; key names the primary key field
// used by RetrieveByID.
func (m *MemoryRetriever) AddTable(table, key string, rows ...ir.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := make([]ir.Record, len(rows))
	for i, r := range rows {
		r.Table = table
		copied[i] = r
	}
	m.tables[table] = &memTable{key: key, rows: copied}
}

// FailWith makes every later call return err.
func (m *MemoryRetriever) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns the requests received so far.
func (m *MemoryRetriever) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

// RetrieveMultiple implements delegation.Retriever.
func (m *MemoryRetriever) RetrieveMultiple(ctx context.Context, req *queryir.RetrieveMultiple) (ir.Table, error) {
	t, err := m.begin(ctx, req, req.Table)
	if err != nil {
		return ir.Table{}, err
	}

	out := ir.Table{Table: req.Table, Rows: []ir.Record{}}
	for _, row := range t.rows {
		ok, err := queryir.Match(req.Filter, row)
		if err != nil {
			return ir.Table{}, err
		}
		if !ok {
			continue
		}
		out.Rows = append(out.Rows, row)
		if req.Top > 0 && len(out.Rows) == req.Top {
			break
		}
	}
	return out, nil
}

// RetrieveByID implements delegation.Retriever.
func (m *MemoryRetriever) RetrieveByID(ctx context.Context, req *queryir.RetrieveByID) (ir.Record, bool, error) {
	t, err := m.begin(ctx, req, req.Table)
	if err != nil {
		return ir.Record{}, false, err
	}

	for _, row := range t.rows {
		if g, ok := row.Get(t.key).(ir.Guid); ok && uuid.UUID(g) == req.ID {
			return row, true, nil
		}
	}
	return ir.Record{}, false, nil
}

func (m *MemoryRetriever) begin(ctx context.Context, req queryir.Request, table string) (*memTable, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, Call{Seq: int64(len(m.calls) + 1), Request: req})
	if m.err != nil {
		return nil, m.err
	}
	t, ok := m.tables[table]
	if !ok {
		return nil, fmt.Errorf("unknown table %q", table)
	}
	return t, nil
}
