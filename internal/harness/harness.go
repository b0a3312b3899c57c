package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/roach88/fxsql/internal/compiler"
	"github.com/roach88/fxsql/internal/delegation"
	"github.com/roach88/fxsql/internal/engine"
	"github.com/roach88/fxsql/internal/ir"
	"github.com/roach88/fxsql/internal/metadata"
	"github.com/roach88/fxsql/internal/querysql"
	"github.com/roach88/fxsql/internal/store"
	"github.com/roach88/fxsql/internal/testutil"
)

// Harness runs one scenario: it compiles the expression and interprets
// it against an isolated data service.
type Harness struct {
	cat      *metadata.Catalog
	md       metadata.Provider
	sql      *querysql.Compiler
	retrieve delegation.Retriever
	logger   *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario gets a fresh in-memory SQLite database seeded from its
// data section, and fixed evaluation ids, so results are reproducible.
//
// Execution flow:
//  1. Load metadata and decode the expression
//  2. Compile the expression
//  3. Seed the data tables and interpret every evaluate step
//  4. Evaluate assertions
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	h := &Harness{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	cat, err := loadMetadata(scenario)
	if err != nil {
		return nil, fmt.Errorf("failed to load metadata: %w", err)
	}
	if cat != nil {
		h.cat = cat
		h.md = cat
		h.sql = querysql.NewCompiler(cat, querysql.SQLite)
	}

	expr, err := ir.DecodeYAMLNode(&scenario.Expression)
	if err != nil {
		return nil, fmt.Errorf("failed to decode expression: %w", err)
	}

	result := NewResult()
	h.compile(expr, scenario, result)

	if len(scenario.Evaluate) > 0 {
		closer, err := h.openData(ctx, scenario)
		if err != nil {
			return nil, fmt.Errorf("failed to seed data: %w", err)
		}
		defer closer()

		if err := h.evaluate(ctx, expr, scenario, result); err != nil {
			return nil, fmt.Errorf("failed to evaluate: %w", err)
		}
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

func loadMetadata(s *Scenario) (*metadata.Catalog, error) {
	switch {
	case s.Schema != "":
		return metadata.CompileString(s.Schema)
	case s.SchemaDir != "":
		return metadata.LoadDir(s.SchemaDir)
	}
	return nil, nil
}

// compile records the compiled script or the diagnostic. A failed
// compilation is an outcome, not a harness error.
func (h *Harness) compile(expr ir.Node, s *Scenario, result *Result) {
	opts := []compiler.Option{compiler.WithLogger(h.logger)}
	if s.Table != "" {
		opts = append(opts, compiler.WithTable(s.Table))
	}
	if s.Float {
		opts = append(opts, compiler.WithFloatingPoint(true))
	}
	if s.FunctionName != "" {
		opts = append(opts, compiler.WithFunctionName(s.FunctionName))
	}
	if len(s.Disabled) > 0 {
		fns := make([]ir.Func, len(s.Disabled))
		for i, name := range s.Disabled {
			fns[i] = ir.Func(name)
		}
		opts = append(opts, compiler.WithDisabledFunctions(fns...))
	}

	res, err := compiler.Compile(expr, h.md, opts...)
	if err != nil {
		result.CompileError = err.Error()
		var ce *compiler.CompileError
		if errors.As(err, &ce) {
			result.CompileErrorKind = string(ce.Kind)
		}
		return
	}

	result.Script = res.Script()
	result.ReturnType = res.ReturnType.String()
	result.Parameters = make([]string, len(res.Parameters))
	for i, p := range res.Parameters {
		result.Parameters[i] = p.Column.Name
	}
}

// openData prepares the data service. With metadata it is an in-memory
// SQLite store holding every catalog table; without, an empty in-memory
// retriever.
func (h *Harness) openData(ctx context.Context, s *Scenario) (func(), error) {
	if h.md == nil {
		h.retrieve = testutil.NewMemoryRetriever()
		return func() {}, nil
	}

	st, err := store.Open(":memory:", h.md)
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	closer := func() { st.Close() }

	for _, name := range h.cat.Tables() {
		if err := st.CreateTable(ctx, name); err != nil {
			closer()
			return nil, err
		}
	}

	tables := make([]string, 0, len(s.Data))
	for name := range s.Data {
		tables = append(tables, name)
	}
	sort.Strings(tables)

	for _, name := range tables {
		rows := make([]ir.Record, 0, len(s.Data[name].Rows))
		for i, raw := range s.Data[name].Rows {
			rec, err := DecodeRow(h.md, name, raw)
			if err != nil {
				closer()
				return nil, fmt.Errorf("data %s[%d]: %w", name, i, err)
			}
			rows = append(rows, rec)
		}
		if err := st.InsertAll(ctx, name, rows); err != nil {
			closer()
			return nil, err
		}
	}

	h.retrieve = st
	return closer, nil
}

// evaluate interprets the expression once per step. Evaluation errors are
// outcomes; only a malformed row is a harness error.
func (h *Harness) evaluate(ctx context.Context, expr ir.Node, s *Scenario, result *Result) error {
	prefix := s.EvalID
	if prefix == "" {
		prefix = "scenario-eval"
	}
	ids := make([]string, len(s.Evaluate))
	for i := range ids {
		ids[i] = fmt.Sprintf("%s-%d", prefix, i+1)
	}

	opts := []engine.Option{
		engine.WithIDGenerator(testutil.NewFixedIDGenerator(ids...)),
		engine.WithLogger(h.logger),
	}
	if h.md != nil {
		opts = append(opts, engine.WithMetadata(h.md))
	}
	ev := engine.New(h.retrieve, opts...)

	for i, step := range s.Evaluate {
		row, err := DecodeRow(h.md, s.Table, step.Row)
		if err != nil {
			return fmt.Errorf("evaluate[%d]: %w", i, err)
		}

		var outcome EvalOutcome
		evaluation, err := ev.Run(ctx, expr, row)
		for _, r := range evaluation.Retrievals {
			outcome.Retrievals = append(outcome.Retrievals, h.describe(r))
		}
		if err != nil {
			outcome.Error = err.Error()
		} else {
			text, err := ir.MarshalCanonical(evaluation.Value)
			if err != nil {
				return fmt.Errorf("evaluate[%d]: %w", i, err)
			}
			outcome.Value = string(text)
		}
		result.Evaluations = append(result.Evaluations, outcome)
	}
	return nil
}

// describe renders a retrieval as the SQL the store runs for it.
func (h *Harness) describe(r engine.RetrievalRecord) string {
	if h.sql == nil {
		return fmt.Sprintf("%T", r.Request)
	}
	stmt, err := h.sql.Compile(r.Request)
	if err != nil {
		return fmt.Sprintf("invalid request: %v", err)
	}
	return stmt.SQL
}
