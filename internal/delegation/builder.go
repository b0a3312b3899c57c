package delegation

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/roach88/fxsql/internal/ir"
	"github.com/roach88/fxsql/internal/metadata"
	"github.com/roach88/fxsql/internal/queryir"
)

// ErrMalformed marks a delegated tree the rewrite pass should never have
// produced. It is a defect, not a user error.
var ErrMalformed = errors.New("malformed delegation operator")

// Retriever is the data-service collaborator.
//
// Implementations must honour ctx cancellation. Errors are propagated to
// the caller unmodified apart from wrapping.
type Retriever interface {
	RetrieveMultiple(ctx context.Context, req *queryir.RetrieveMultiple) (ir.Table, error)
	RetrieveByID(ctx context.Context, req *queryir.RetrieveByID) (ir.Record, bool, error)
}

// EvalFunc evaluates an operand subtree to a value.
type EvalFunc func(ctx context.Context, n ir.Node) (ir.Value, error)

var comparisons = map[ir.Func]queryir.Operator{
	ir.FuncDelegEq:         queryir.OpEq,
	ir.FuncDelegNe:         queryir.OpNe,
	ir.FuncDelegLt:         queryir.OpLt,
	ir.FuncDelegLe:         queryir.OpLe,
	ir.FuncDelegGt:         queryir.OpGt,
	ir.FuncDelegGe:         queryir.OpGe,
	ir.FuncDelegIn:         queryir.OpIn,
	ir.FuncDelegStartsWith: queryir.OpStartsWith,
	ir.FuncDelegEndsWith:   queryir.OpEndsWith,
}

// IsFilterOp reports whether fn builds a filter fragment.
func IsFilterOp(fn ir.Func) bool {
	_, ok := comparisons[fn]
	return ok || fn == ir.FuncDelegAnd || fn == ir.FuncDelegOr
}

// IsRetrieval reports whether fn is a retrieval operator.
func IsRetrieval(fn ir.Func) bool {
	switch fn {
	case ir.FuncRetrieveMultiple, ir.FuncRetrieveSingle, ir.FuncRetrieveGUID:
		return true
	}
	return false
}

// Builder folds delegated subtrees into requests and runs them.
type Builder struct {
	retriever Retriever
	md        metadata.Provider
	maxRows   int
}

// Option configures a Builder.
type Option func(*Builder)

// WithMetadata validates every request against md before it is issued.
func WithMetadata(md metadata.Provider) Option {
	return func(b *Builder) {
		b.md = md
	}
}

// WithMaxRows caps every multi-row retrieval at n rows. Zero means no cap.
func WithMaxRows(n int) Option {
	return func(b *Builder) {
		b.maxRows = n
	}
}

// NewBuilder creates a Builder issuing requests to r.
func NewBuilder(r Retriever, opts ...Option) *Builder {
	b := &Builder{retriever: r}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Filter folds a comparison or logical operator into a filter fragment.
//
// The first argument of a comparison is the attribute name as a string
// literal; the remaining arguments are operands, evaluated left to right
// with eval.
func (b *Builder) Filter(ctx context.Context, n ir.Node, eval EvalFunc) (queryir.Filter, error) {
	call, ok := ir.Unwrap(n).(*ir.Call)
	if !ok || !IsFilterOp(call.Func) {
		return nil, malformed(n, "expected a filter operator")
	}

	switch call.Func {
	case ir.FuncDelegAnd, ir.FuncDelegOr:
		children := make([]queryir.Filter, 0, len(call.Args))
		for _, arg := range call.Args {
			child, err := b.Filter(ctx, arg, eval)
			if err != nil {
				return nil, err
			}
			children = append(children, child)
		}
		if call.Func == ir.FuncDelegAnd {
			return queryir.And(children...), nil
		}
		return queryir.Or(children...), nil
	}

	op := comparisons[call.Func]
	if len(call.Args) < 2 || (op != queryir.OpIn && len(call.Args) != 2) {
		return nil, malformed(call, "wrong number of arguments")
	}
	attr, err := literalString(call.Args[0])
	if err != nil {
		return nil, malformed(call, "attribute: %v", err)
	}

	cond := &queryir.Condition{Attribute: attr, Op: op}
	for _, arg := range call.Args[1:] {
		v, err := eval(ctx, arg)
		if err != nil {
			return nil, err
		}
		cond.Values = append(cond.Values, v)
	}
	return cond, nil
}

// Retrieve runs a retrieval operator:
//
//	__retrieveMultiple(table, [filter], [top]) -> Table
//	__retrieveSingle(table, [filter])          -> Record or Blank
//	__retrieveGUID(table, id)                  -> Record or Blank
//
// A Blank literal in the filter position means no filter. Single-row
// retrievals that match nothing return Blank, not an error.
func (b *Builder) Retrieve(ctx context.Context, call *ir.Call, eval EvalFunc) (ir.Value, error) {
	if !IsRetrieval(call.Func) {
		return nil, malformed(call, "not a retrieval operator")
	}
	if len(call.Args) == 0 {
		return nil, malformed(call, "missing table")
	}
	table, err := literalString(call.Args[0])
	if err != nil {
		return nil, malformed(call, "table: %v", err)
	}

	switch call.Func {
	case ir.FuncRetrieveGUID:
		if len(call.Args) != 2 {
			return nil, malformed(call, "wrong number of arguments")
		}
		return b.retrieveByID(ctx, table, call.Args[1], eval)

	case ir.FuncRetrieveSingle:
		if len(call.Args) > 2 {
			return nil, malformed(call, "wrong number of arguments")
		}
		req := &queryir.RetrieveMultiple{Table: table, Top: 1}
		if req.Filter, err = b.optionalFilter(ctx, call.Args, eval); err != nil {
			return nil, err
		}
		tbl, err := b.retrieveMultiple(ctx, req)
		if err != nil {
			return nil, err
		}
		if len(tbl.Rows) == 0 {
			return ir.Blank{}, nil
		}
		return tbl.Rows[0], nil

	default:
		if len(call.Args) > 3 {
			return nil, malformed(call, "wrong number of arguments")
		}
		req := &queryir.RetrieveMultiple{Table: table}
		if req.Filter, err = b.optionalFilter(ctx, call.Args, eval); err != nil {
			return nil, err
		}
		if len(call.Args) == 3 {
			if req.Top, err = b.rowCap(ctx, call.Args[2], eval); err != nil {
				return nil, err
			}
		}
		if b.maxRows > 0 && (req.Top == 0 || req.Top > b.maxRows) {
			req.Top = b.maxRows
		}
		return b.retrieveMultiple(ctx, req)
	}
}

// optionalFilter builds the filter in args[1], if any.
func (b *Builder) optionalFilter(ctx context.Context, args []ir.Node, eval EvalFunc) (queryir.Filter, error) {
	if len(args) < 2 || isBlankLiteral(args[1]) {
		return nil, nil
	}
	return b.Filter(ctx, args[1], eval)
}

func (b *Builder) rowCap(ctx context.Context, n ir.Node, eval EvalFunc) (int, error) {
	v, err := eval(ctx, n)
	if err != nil {
		return 0, err
	}
	var f float64
	switch val := v.(type) {
	case ir.Blank:
		return 0, nil
	case ir.Number:
		f = float64(val)
	case ir.Decimal:
		f = val.Float64()
	default:
		return 0, fmt.Errorf("row cap must be a number, got %s", ir.TypeOf(v))
	}
	if f < 0 || f != math.Trunc(f) || f > math.MaxInt32 {
		return 0, fmt.Errorf("row cap must be a non-negative integer, got %v", f)
	}
	return int(f), nil
}

func (b *Builder) retrieveByID(ctx context.Context, table string, idArg ir.Node, eval EvalFunc) (ir.Value, error) {
	v, err := eval(ctx, idArg)
	if err != nil {
		return nil, err
	}

	var id uuid.UUID
	switch val := v.(type) {
	case ir.Blank:
		return ir.Blank{}, nil
	case ir.Guid:
		id = uuid.UUID(val)
	case ir.String:
		if id, err = uuid.Parse(string(val)); err != nil {
			return nil, fmt.Errorf("retrieve %s: invalid id %q: %w", table, string(val), err)
		}
	default:
		return nil, fmt.Errorf("retrieve %s: id must be a Guid, got %s", table, ir.TypeOf(v))
	}

	req := &queryir.RetrieveByID{Table: table, ID: id}
	if err := b.validate(req); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rec, ok, err := b.retriever.RetrieveByID(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("retrieve %s by id: %w", table, err)
	}
	if !ok {
		return ir.Blank{}, nil
	}
	return rec, nil
}

func (b *Builder) retrieveMultiple(ctx context.Context, req *queryir.RetrieveMultiple) (ir.Table, error) {
	if err := b.validate(req); err != nil {
		return ir.Table{}, err
	}
	if err := ctx.Err(); err != nil {
		return ir.Table{}, err
	}
	tbl, err := b.retriever.RetrieveMultiple(ctx, req)
	if err != nil {
		return ir.Table{}, fmt.Errorf("retrieve %s: %w", req.Table, err)
	}
	return tbl, nil
}

func (b *Builder) validate(req queryir.Request) error {
	if b.md == nil {
		return nil
	}
	if err := queryir.Validate(req, b.md).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}

func literalString(n ir.Node) (string, error) {
	lit, ok := ir.Unwrap(n).(*ir.Literal)
	if !ok {
		return "", fmt.Errorf("expected a string literal")
	}
	s, ok := lit.Value.(ir.String)
	if !ok || s == "" {
		return "", fmt.Errorf("expected a non-empty string literal, got %s", ir.TypeOf(lit.Value))
	}
	return string(s), nil
}

func isBlankLiteral(n ir.Node) bool {
	lit, ok := ir.Unwrap(n).(*ir.Literal)
	return ok && ir.IsBlank(lit.Value)
}

func malformed(n ir.Node, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if n == nil {
		return fmt.Errorf("%w: nil node: %s", ErrMalformed, msg)
	}
	if call, ok := ir.Unwrap(n).(*ir.Call); ok {
		return fmt.Errorf("%w: %s at %s: %s", ErrMalformed, call.Func, call.Source, msg)
	}
	return fmt.Errorf("%w: %T at %s: %s", ErrMalformed, n, n.SourceSpan(), msg)
}
