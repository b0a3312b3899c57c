package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/roach88/fxsql/internal/delegation"
	"github.com/roach88/fxsql/internal/ir"
	"github.com/roach88/fxsql/internal/metadata"
	"github.com/roach88/fxsql/internal/queryir"
)

// DefaultMaxSteps is the default maximum number of nodes one evaluation
// may visit.
const DefaultMaxSteps = 100000

// Evaluator interprets delegated trees against a data service.
//
// An Evaluator holds no per-evaluation state and may be shared; each Run
// gets its own step quota and retrieval log. Retrieval sequence numbers
// come from one Clock shared by all runs.
type Evaluator struct {
	retriever delegation.Retriever
	md        metadata.Provider
	idGen     IDGenerator
	logger    *slog.Logger
	clock     *Clock
	maxSteps  int
	maxRows   int
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithMaxSteps sets the per-evaluation step quota.
//
// Default: DefaultMaxSteps. Zero or less disables the quota.
func WithMaxSteps(maxSteps int) Option {
	return func(e *Evaluator) {
		e.maxSteps = maxSteps
	}
}

// WithMaxRows caps every multi-row retrieval.
func WithMaxRows(n int) Option {
	return func(e *Evaluator) {
		e.maxRows = n
	}
}

// WithIDGenerator sets the evaluation id generator.
// Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Evaluator) {
		e.idGen = g
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Evaluator) {
		e.logger = l
	}
}

// WithMetadata validates retrieval requests against md before they are
// issued.
func WithMetadata(md metadata.Provider) Option {
	return func(e *Evaluator) {
		e.md = md
	}
}

// WithClock sets the retrieval sequence clock.
func WithClock(c *Clock) Option {
	return func(e *Evaluator) {
		e.clock = c
	}
}

// New creates an Evaluator issuing retrievals to r.
func New(r delegation.Retriever, opts ...Option) *Evaluator {
	e := &Evaluator{
		retriever: r,
		idGen:     UUIDv7Generator{},
		logger:    slog.Default(),
		clock:     NewClock(),
		maxSteps:  DefaultMaxSteps,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluation is the outcome of one Run.
type Evaluation struct {
	ID         string
	Value      ir.Value
	Steps      int
	Retrievals []RetrievalRecord
}

// RetrievalRecord is one request issued during an evaluation.
type RetrievalRecord struct {
	Seq     int64
	Request queryir.Request
}

// Run evaluates n with row as the row scope. A zero row leaves every
// row-scope field blank.
//
// The returned Evaluation is non-nil even on error, so callers can log
// the retrievals issued before the failure.
func (e *Evaluator) Run(ctx context.Context, n ir.Node, row ir.Record) (*Evaluation, error) {
	ev := &Evaluation{ID: e.idGen.Generate()}
	log := e.logger.With("eval_id", ev.ID)

	r := &run{
		row:   row,
		quota: NewQuotaEnforcer(e.maxSteps),
		ev:    ev,
	}
	r.retriever = &recorder{inner: e.retriever, clock: e.clock, ev: ev, logger: log}

	var opts []delegation.Option
	if e.md != nil {
		opts = append(opts, delegation.WithMetadata(e.md))
	}
	if e.maxRows > 0 {
		opts = append(opts, delegation.WithMaxRows(e.maxRows))
	}
	r.builder = delegation.NewBuilder(r.retriever, opts...)

	log.Debug("evaluation started", "type", n.Type().String())
	v, err := r.evaluate(ctx, n)
	ev.Steps = r.quota.Current()
	if err != nil {
		var re *RuntimeError
		if errors.As(err, &re) {
			re.EvalID = ev.ID
		}
		log.Debug("evaluation failed", "steps", ev.Steps, "error", err)
		return ev, err
	}

	ev.Value = v
	log.Debug("evaluation finished", "steps", ev.Steps, "retrievals", len(ev.Retrievals))
	return ev, nil
}

// run is the state of one evaluation.
type run struct {
	row       ir.Record
	quota     *QuotaEnforcer
	ev        *Evaluation
	retriever delegation.Retriever
	builder   *delegation.Builder
}

func (r *run) evaluate(ctx context.Context, n ir.Node) (ir.Value, error) {
	if err := r.quota.Check(r.ev.ID); err != nil {
		return nil, err
	}

	switch node := n.(type) {
	case nil:
		return nil, &InternalError{Message: "nil node"}
	case *ir.Lazy:
		return r.evaluate(ctx, node.Child)
	case *ir.Literal:
		if node.Value == nil {
			return ir.Blank{}, nil
		}
		return node.Value, nil
	case *ir.FieldAccess:
		return r.field(ctx, node)
	case *ir.Record:
		rec := ir.Record{Table: node.ResultType.Table, Fields: make(map[string]ir.Value, len(node.Fields))}
		for _, f := range node.Fields {
			v, err := r.evaluate(ctx, f.Value)
			if err != nil {
				return nil, err
			}
			rec.Fields[f.Name] = v
		}
		return rec, nil
	case *ir.Call:
		return r.call(ctx, node)
	default:
		return nil, &InternalError{Message: fmt.Sprintf("unknown node type %T", n), Span: n.SourceSpan()}
	}
}

func (r *run) call(ctx context.Context, c *ir.Call) (ir.Value, error) {
	switch {
	case delegation.IsRetrieval(c.Func):
		v, err := r.builder.Retrieve(ctx, c, r.evaluate)
		if errors.Is(err, delegation.ErrMalformed) && !IsInternalError(err) {
			return nil, &InternalError{Message: "malformed retrieval", Span: c.Source, Err: err}
		}
		return v, err
	case delegation.IsFilterOp(c.Func):
		return nil, &InternalError{
			Message: fmt.Sprintf("filter operator %s outside a retrieval filter", c.Func),
			Span:    c.Source,
		}
	}

	if fn, ok := lazyBuiltins[c.Func]; ok {
		v, err := fn(ctx, r, c.Args)
		return r.annotate(c, v, err)
	}
	fn, ok := builtins[c.Func]
	if !ok {
		return nil, &RuntimeError{
			Code:    ErrCodeUnsupportedFunction,
			Message: fmt.Sprintf("%s cannot be interpreted", c.Func),
			Func:    c.Func,
			Span:    c.Source,
		}
	}

	args := make([]ir.Value, len(c.Args))
	for i, a := range c.Args {
		v, err := r.evaluate(ctx, a)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	v, err := fn(args)
	return r.annotate(c, v, err)
}

// annotate attaches the call's location to a RuntimeError raised by the
// call itself.
func (r *run) annotate(c *ir.Call, v ir.Value, err error) (ir.Value, error) {
	var re *RuntimeError
	if errors.As(err, &re) && re.Func == "" {
		re.Func = c.Func
		re.Span = c.Source
	}
	return v, err
}

func (r *run) field(ctx context.Context, f *ir.FieldAccess) (ir.Value, error) {
	if f.From == nil {
		return r.row.Get(f.Field), nil
	}

	from, err := r.evaluate(ctx, f.From)
	if err != nil {
		return nil, err
	}

	switch v := from.(type) {
	case ir.Blank:
		return ir.Blank{}, nil
	case ir.Record:
		return v.Get(f.Field), nil
	case ir.Guid:
		// A lookup column holds the related row's key.
		table := f.From.Type().Table
		if table == "" {
			return nil, &InternalError{Message: "lookup without a target table", Span: f.Source}
		}
		rec, err := r.lookup(ctx, table, uuid.UUID(v))
		if err != nil {
			return nil, err
		}
		return rec.Get(f.Field), nil
	default:
		return nil, &RuntimeError{
			Code:    ErrCodeTypeMismatch,
			Message: fmt.Sprintf("cannot read field %q of %s", f.Field, ir.TypeOf(from)),
			Span:    f.Source,
		}
	}
}

func (r *run) lookup(ctx context.Context, table string, id uuid.UUID) (ir.Record, error) {
	if err := ctx.Err(); err != nil {
		return ir.Record{}, err
	}
	rec, ok, err := r.retriever.RetrieveByID(ctx, &queryir.RetrieveByID{Table: table, ID: id})
	if err != nil {
		return ir.Record{}, fmt.Errorf("retrieve %s by id: %w", table, err)
	}
	if !ok {
		return ir.Record{}, nil
	}
	return rec, nil
}

// recorder logs every request before passing it on.
type recorder struct {
	inner  delegation.Retriever
	clock  *Clock
	ev     *Evaluation
	logger *slog.Logger
}

func (rc *recorder) record(req queryir.Request, table string) {
	seq := rc.clock.Next()
	rc.ev.Retrievals = append(rc.ev.Retrievals, RetrievalRecord{Seq: seq, Request: req})
	rc.logger.Debug("retrieval issued", "seq", seq, "table", table, "request", fmt.Sprintf("%T", req))
}

func (rc *recorder) RetrieveMultiple(ctx context.Context, req *queryir.RetrieveMultiple) (ir.Table, error) {
	rc.record(req, req.Table)
	return rc.inner.RetrieveMultiple(ctx, req)
}

func (rc *recorder) RetrieveByID(ctx context.Context, req *queryir.RetrieveByID) (ir.Record, bool, error) {
	rc.record(req, req.Table)
	return rc.inner.RetrieveByID(ctx, req)
}
