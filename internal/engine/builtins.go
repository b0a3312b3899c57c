package engine

import (
	"context"
	"errors"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/cockroachdb/apd/v3"

	"github.com/roach88/fxsql/internal/ir"
)

// decCtx carries the fixed-precision flow: 34 significant digits, the
// width of a decimal128.
var decCtx = apd.BaseContext.WithPrecision(34)

type builtin func(args []ir.Value) (ir.Value, error)

type lazyBuiltin func(ctx context.Context, r *run, args []ir.Node) (ir.Value, error)

var builtins map[ir.Func]builtin

var lazyBuiltins map[ir.Func]lazyBuiltin

func init() {
	builtins = map[ir.Func]builtin{
		ir.FuncAdd:         arith(ir.FuncAdd),
		ir.FuncSub:         arith(ir.FuncSub),
		ir.FuncMul:         arith(ir.FuncMul),
		ir.FuncDiv:         arith(ir.FuncDiv),
		ir.FuncMod:         arith(ir.FuncMod),
		ir.FuncNegate:      negate,
		ir.FuncAbs:         abs,
		ir.FuncRound:       rounding(apd.RoundHalfUp),
		ir.FuncRoundUp:     rounding(apd.RoundUp),
		ir.FuncRoundDown:   rounding(apd.RoundDown),
		ir.FuncEq:          comparison(func(c int) bool { return c == 0 }),
		ir.FuncNe:          comparison(func(c int) bool { return c != 0 }),
		ir.FuncLt:          comparison(func(c int) bool { return c < 0 }),
		ir.FuncLe:          comparison(func(c int) bool { return c <= 0 }),
		ir.FuncGt:          comparison(func(c int) bool { return c > 0 }),
		ir.FuncGe:          comparison(func(c int) bool { return c >= 0 }),
		ir.FuncNot:         not,
		ir.FuncIsBlank:     isBlank,
		ir.FuncBlank:       func([]ir.Value) (ir.Value, error) { return ir.Blank{}, nil },
		ir.FuncConcatenate: concatenate,
		ir.FuncLen:         length,
		ir.FuncUpper:       textMap(strings.ToUpper),
		ir.FuncLower:       textMap(strings.ToLower),
		ir.FuncTrim:        textMap(strings.TrimSpace),
		ir.FuncSubstitute:  substitute,
		ir.FuncStartsWith:  affix(strings.HasPrefix),
		ir.FuncEndsWith:    affix(strings.HasSuffix),
	}

	lazyBuiltins = map[ir.Func]lazyBuiltin{
		ir.FuncIf:       ifThen,
		ir.FuncAnd:      logical(false),
		ir.FuncOr:       logical(true),
		ir.FuncCoalesce: coalesce,
		ir.FuncIfError:  ifError,
		ir.FuncIsError:  isError,
	}
}

// Numbers.

func isFloat(v ir.Value) bool {
	_, ok := v.(ir.Number)
	return ok
}

func toFloat(v ir.Value) (float64, error) {
	switch n := v.(type) {
	case ir.Blank, nil:
		return 0, nil
	case ir.Number:
		return float64(n), nil
	case ir.Decimal:
		return n.Float64(), nil
	}
	return 0, runtimeErrorf(ErrCodeTypeMismatch, "expected a number, got %s", ir.TypeOf(v))
}

func toDecimal(v ir.Value) (*apd.Decimal, error) {
	switch n := v.(type) {
	case ir.Blank, nil:
		return apd.New(0, 0), nil
	case ir.Decimal:
		return n.Apd(), nil
	case ir.Number:
		d := new(apd.Decimal)
		if _, err := d.SetFloat64(float64(n)); err != nil {
			return nil, runtimeErrorf(ErrCodeInvalidArgument, "%v is not finite", float64(n))
		}
		return d, nil
	}
	return nil, runtimeErrorf(ErrCodeTypeMismatch, "expected a number, got %s", ir.TypeOf(v))
}

func toInt(v ir.Value) (int, error) {
	f, err := toFloat(v)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.Abs(f) > math.MaxInt32 {
		return 0, runtimeErrorf(ErrCodeInvalidArgument, "%v is out of range", f)
	}
	return int(math.Trunc(f)), nil
}

func arity(args []ir.Value, n int) error {
	if len(args) != n {
		return runtimeErrorf(ErrCodeInvalidArgument, "expected %d arguments, got %d", n, len(args))
	}
	return nil
}

// arith applies a binary operator. Either operand in the floating-point
// flow makes the result floating point; otherwise the operation is exact
// decimal arithmetic. Blank operands are zero.
func arith(fn ir.Func) builtin {
	return func(args []ir.Value) (ir.Value, error) {
		if err := arity(args, 2); err != nil {
			return nil, err
		}
		if isFloat(args[0]) || isFloat(args[1]) {
			a, err := toFloat(args[0])
			if err != nil {
				return nil, err
			}
			b, err := toFloat(args[1])
			if err != nil {
				return nil, err
			}
			return floatOp(fn, a, b)
		}

		a, err := toDecimal(args[0])
		if err != nil {
			return nil, err
		}
		b, err := toDecimal(args[1])
		if err != nil {
			return nil, err
		}
		return decimalOp(fn, a, b)
	}
}

func floatOp(fn ir.Func, a, b float64) (ir.Value, error) {
	var res float64
	switch fn {
	case ir.FuncAdd:
		res = a + b
	case ir.FuncSub:
		res = a - b
	case ir.FuncMul:
		res = a * b
	case ir.FuncDiv:
		if b == 0 {
			return nil, runtimeErrorf(ErrCodeDivideByZero, "division by zero")
		}
		res = a / b
	case ir.FuncMod:
		if b == 0 {
			return nil, runtimeErrorf(ErrCodeDivideByZero, "modulo by zero")
		}
		res = math.Mod(a, b)
		// The result takes the sign of the divisor.
		if res != 0 && (res < 0) != (b < 0) {
			res += b
		}
	}
	if math.IsInf(res, 0) || math.IsNaN(res) {
		return nil, runtimeErrorf(ErrCodeInvalidArgument, "result of %s is not finite", fn)
	}
	return ir.Number(res), nil
}

func decimalOp(fn ir.Func, a, b *apd.Decimal) (ir.Value, error) {
	res := new(apd.Decimal)
	var err error
	switch fn {
	case ir.FuncAdd:
		_, err = decCtx.Add(res, a, b)
	case ir.FuncSub:
		_, err = decCtx.Sub(res, a, b)
	case ir.FuncMul:
		_, err = decCtx.Mul(res, a, b)
	case ir.FuncDiv:
		if b.IsZero() {
			return nil, runtimeErrorf(ErrCodeDivideByZero, "division by zero")
		}
		_, err = decCtx.Quo(res, a, b)
	case ir.FuncMod:
		if b.IsZero() {
			return nil, runtimeErrorf(ErrCodeDivideByZero, "modulo by zero")
		}
		if _, err = decCtx.Rem(res, a, b); err == nil && !res.IsZero() && res.Negative != b.Negative {
			// The result takes the sign of the divisor.
			_, err = decCtx.Add(res, res, b)
		}
	}
	if err != nil {
		return nil, runtimeErrorf(ErrCodeInvalidArgument, "%s: %v", fn, err)
	}
	return ir.DecimalFromApd(res), nil
}

func negate(args []ir.Value) (ir.Value, error) {
	if err := arity(args, 1); err != nil {
		return nil, err
	}
	if isFloat(args[0]) {
		return ir.Number(-float64(args[0].(ir.Number))), nil
	}
	d, err := toDecimal(args[0])
	if err != nil {
		return nil, err
	}
	return ir.DecimalFromApd(d.Neg(d)), nil
}

func abs(args []ir.Value) (ir.Value, error) {
	if err := arity(args, 1); err != nil {
		return nil, err
	}
	if isFloat(args[0]) {
		return ir.Number(math.Abs(float64(args[0].(ir.Number)))), nil
	}
	d, err := toDecimal(args[0])
	if err != nil {
		return nil, err
	}
	return ir.DecimalFromApd(d.Abs(d)), nil
}

// rounding rounds to a number of decimal places with the given mode.
// RoundUp moves away from zero and RoundDown toward it; negative places
// round to the left of the decimal point.
func rounding(mode apd.Rounder) builtin {
	return func(args []ir.Value) (ir.Value, error) {
		if err := arity(args, 2); err != nil {
			return nil, err
		}
		places, err := toInt(args[1])
		if err != nil {
			return nil, err
		}
		x, err := toDecimal(args[0])
		if err != nil {
			return nil, err
		}

		c := *decCtx
		c.Rounding = mode
		res := new(apd.Decimal)
		if _, err := c.Quantize(res, x, int32(-places)); err != nil {
			return nil, runtimeErrorf(ErrCodeInvalidArgument, "cannot round to %d places: %v", places, err)
		}

		if isFloat(args[0]) {
			f, err := res.Float64()
			if err != nil {
				return nil, runtimeErrorf(ErrCodeInvalidArgument, "%v", err)
			}
			return ir.Number(f), nil
		}
		return ir.DecimalFromApd(res), nil
	}
}

// Comparison and logic.

func comparison(test func(int) bool) builtin {
	return func(args []ir.Value) (ir.Value, error) {
		if err := arity(args, 2); err != nil {
			return nil, err
		}
		c, ok := ir.Compare(args[0], args[1])
		if !ok {
			return nil, runtimeErrorf(ErrCodeTypeMismatch, "cannot compare %s with %s", ir.TypeOf(args[0]), ir.TypeOf(args[1]))
		}
		return ir.Boolean(test(c)), nil
	}
}

func truth(v ir.Value) (bool, error) {
	switch b := v.(type) {
	case ir.Blank, nil:
		return false, nil
	case ir.Boolean:
		return bool(b), nil
	}
	return false, runtimeErrorf(ErrCodeTypeMismatch, "expected a Boolean, got %s", ir.TypeOf(v))
}

func not(args []ir.Value) (ir.Value, error) {
	if err := arity(args, 1); err != nil {
		return nil, err
	}
	b, err := truth(args[0])
	if err != nil {
		return nil, err
	}
	return ir.Boolean(!b), nil
}

// isBlank treats the empty string as blank.
func isBlank(args []ir.Value) (ir.Value, error) {
	if err := arity(args, 1); err != nil {
		return nil, err
	}
	s, isText := args[0].(ir.String)
	return ir.Boolean(ir.IsBlank(args[0]) || (isText && s == "")), nil
}

// Text.

func toText(v ir.Value) (string, error) {
	switch t := v.(type) {
	case ir.Blank, nil:
		return "", nil
	case ir.String:
		return string(t), nil
	case ir.Decimal:
		return t.String(), nil
	case ir.Number:
		return strconv.FormatFloat(float64(t), 'f', -1, 64), nil
	case ir.Boolean:
		return strconv.FormatBool(bool(t)), nil
	case ir.Guid:
		return t.String(), nil
	case ir.OptionValue:
		return t.Name, nil
	}
	return "", runtimeErrorf(ErrCodeTypeMismatch, "cannot convert %s to text", ir.TypeOf(v))
}

func concatenate(args []ir.Value) (ir.Value, error) {
	var sb strings.Builder
	for _, a := range args {
		s, err := toText(a)
		if err != nil {
			return nil, err
		}
		sb.WriteString(s)
	}
	return ir.String(sb.String()), nil
}

func length(args []ir.Value) (ir.Value, error) {
	if err := arity(args, 1); err != nil {
		return nil, err
	}
	s, err := toText(args[0])
	if err != nil {
		return nil, err
	}
	return ir.DecimalFromInt(int64(utf8.RuneCountInString(s))), nil
}

func textMap(f func(string) string) builtin {
	return func(args []ir.Value) (ir.Value, error) {
		if err := arity(args, 1); err != nil {
			return nil, err
		}
		s, err := toText(args[0])
		if err != nil {
			return nil, err
		}
		return ir.String(f(s)), nil
	}
}

func affix(test func(s, affix string) bool) builtin {
	return func(args []ir.Value) (ir.Value, error) {
		if err := arity(args, 2); err != nil {
			return nil, err
		}
		s, err := toText(args[0])
		if err != nil {
			return nil, err
		}
		a, err := toText(args[1])
		if err != nil {
			return nil, err
		}
		return ir.Boolean(test(strings.ToLower(s), strings.ToLower(a))), nil
	}
}

// substitute replaces old with new in text: every occurrence, or only the
// given 1-based instance.
func substitute(args []ir.Value) (ir.Value, error) {
	if len(args) != 3 && len(args) != 4 {
		return nil, runtimeErrorf(ErrCodeInvalidArgument, "expected 3 or 4 arguments, got %d", len(args))
	}
	parts := make([]string, 3)
	for i := range parts {
		s, err := toText(args[i])
		if err != nil {
			return nil, err
		}
		parts[i] = s
	}
	text, old, repl := parts[0], parts[1], parts[2]
	if old == "" {
		return ir.String(text), nil
	}
	if len(args) == 3 || ir.IsBlank(args[3]) {
		return ir.String(strings.ReplaceAll(text, old, repl)), nil
	}

	instance, err := toInt(args[3])
	if err != nil {
		return nil, err
	}
	if instance < 1 {
		return nil, runtimeErrorf(ErrCodeInvalidArgument, "instance must be positive, got %d", instance)
	}
	at := 0
	for n := 1; ; n++ {
		i := strings.Index(text[at:], old)
		if i < 0 {
			return ir.String(text), nil
		}
		at += i
		if n == instance {
			return ir.String(text[:at] + repl + text[at+len(old):]), nil
		}
		at += len(old)
	}
}

// Control flow. Lazy builtins evaluate only the arguments they need.

// ifThen evaluates If(cond1, then1, [cond2, then2, ...], [else]).
func ifThen(ctx context.Context, r *run, args []ir.Node) (ir.Value, error) {
	if len(args) < 2 {
		return nil, runtimeErrorf(ErrCodeInvalidArgument, "expected at least 2 arguments, got %d", len(args))
	}
	i := 0
	for ; i+1 < len(args); i += 2 {
		c, err := r.evaluate(ctx, args[i])
		if err != nil {
			return nil, err
		}
		ok, err := truth(c)
		if err != nil {
			return nil, err
		}
		if ok {
			return r.evaluate(ctx, args[i+1])
		}
	}
	if i < len(args) {
		return r.evaluate(ctx, args[i])
	}
	return ir.Blank{}, nil
}

// logical short-circuits And (stopAt false) and Or (stopAt true).
func logical(stopAt bool) lazyBuiltin {
	return func(ctx context.Context, r *run, args []ir.Node) (ir.Value, error) {
		for _, a := range args {
			v, err := r.evaluate(ctx, a)
			if err != nil {
				return nil, err
			}
			b, err := truth(v)
			if err != nil {
				return nil, err
			}
			if b == stopAt {
				return ir.Boolean(stopAt), nil
			}
		}
		return ir.Boolean(!stopAt), nil
	}
}

// coalesce returns the first argument that is neither blank nor the empty
// string, or Blank.
func coalesce(ctx context.Context, r *run, args []ir.Node) (ir.Value, error) {
	for _, a := range args {
		v, err := r.evaluate(ctx, a)
		if err != nil {
			return nil, err
		}
		if s, ok := v.(ir.String); ir.IsBlank(v) || (ok && s == "") {
			continue
		}
		return v, nil
	}
	return ir.Blank{}, nil
}

// ifError evaluates IfError(value, fallback, [value2, fallback2, ...],
// [default]). Only runtime errors are caught; collaborator failures and
// internal errors propagate. Without a default the last successful value
// is returned.
func ifError(ctx context.Context, r *run, args []ir.Node) (ir.Value, error) {
	if len(args) < 2 {
		return nil, runtimeErrorf(ErrCodeInvalidArgument, "expected at least 2 arguments, got %d", len(args))
	}
	var last ir.Value = ir.Blank{}
	i := 0
	for ; i+1 < len(args); i += 2 {
		v, err := r.evaluate(ctx, args[i])
		if err == nil {
			last = v
			continue
		}
		var re *RuntimeError
		if !errors.As(err, &re) {
			return nil, err
		}
		return r.evaluate(ctx, args[i+1])
	}
	if i < len(args) {
		return r.evaluate(ctx, args[i])
	}
	return last, nil
}

func isError(ctx context.Context, r *run, args []ir.Node) (ir.Value, error) {
	if len(args) != 1 {
		return nil, runtimeErrorf(ErrCodeInvalidArgument, "expected 1 argument, got %d", len(args))
	}
	_, err := r.evaluate(ctx, args[0])
	if err == nil {
		return ir.Boolean(false), nil
	}
	var re *RuntimeError
	if errors.As(err, &re) {
		return ir.Boolean(true), nil
	}
	return nil, err
}
