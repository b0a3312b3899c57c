package compiler

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/apd/v3"

	"github.com/roach88/fxsql/internal/ir"
)

func init() {
	register(ir.FuncAdd, 2, 2, binaryOp("+"))
	register(ir.FuncSub, 2, 2, binaryOp("-"))
	register(ir.FuncMul, 2, 2, binaryOp("*"))
	register(ir.FuncDiv, 2, 2, genDiv)
	register(ir.FuncNegate, 1, 1, unaryFunc("-"))
	register(ir.FuncAbs, 1, 1, unaryFunc("ABS"))
	register(ir.FuncInt, 1, 1, unaryFunc("FLOOR"))
	register(ir.FuncMod, 2, 2, genMod)
	register(ir.FuncTrunc, 1, 2, roundFunc(", 1"))
	register(ir.FuncRound, 2, 2, roundFunc(""))
	register(ir.FuncRoundDown, 2, 2, roundFunc(", 1"))
	register(ir.FuncRoundUp, 2, 2, genRoundUp)
	register(ir.FuncPower, 2, 2, genPower)
	register(ir.FuncSqrt, 1, 1, genSqrt)
	register(ir.FuncLn, 1, 1, genLn)
	register(ir.FuncExp, 1, 1, genExp)
	register(ir.FuncMin, 1, variadic, aggregate("MIN"))
	register(ir.FuncMax, 1, variadic, aggregate("MAX"))
	register(ir.FuncFloat, 1, 1, flowCast(ir.TypeNumber))
	register(ir.FuncDecimal, 1, 1, flowCast(ir.TypeDecimal))
	register(ir.FuncValue, 1, 1, genValue)
}

// binaryOp emits a two-operand arithmetic rule.
func binaryOp(op string) GeneratorFunc {
	return func(c *Context, call *ir.Call) (RetVal, error) {
		args, err := c.numericArgs(call)
		if err != nil {
			return RetVal{}, err
		}
		flow, ops := c.unify(args...)
		return c.finishNumeric(fmt.Sprintf("(%s %s %s)", c.num(ops[0]), op, c.num(ops[1])), flow), nil
	}
}

// unaryFunc emits fn(x). A symbolic fn is applied as a prefix operator.
func unaryFunc(fn string) GeneratorFunc {
	return func(c *Context, call *ir.Call) (RetVal, error) {
		args, err := c.numericArgs(call)
		if err != nil {
			return RetVal{}, err
		}
		flow, ops := c.unify(args...)
		return c.finishNumeric(fmt.Sprintf("%s(%s)", fn, c.num(ops[0])), flow), nil
	}
}

func genDiv(c *Context, call *ir.Call) (RetVal, error) {
	args, err := c.numericArgs(call)
	if err != nil {
		return RetVal{}, err
	}
	flow, ops := c.unify(args...)
	divisor := c.Materialize(ops[1])
	c.CheckDivideByZero(c.num(divisor))
	return c.finishNumeric(fmt.Sprintf("(%s / %s)", c.num(ops[0]), c.num(divisor)), flow), nil
}

// genMod returns a remainder carrying the divisor's sign.
func genMod(c *Context, call *ir.Call) (RetVal, error) {
	args, err := c.numericArgs(call)
	if err != nil {
		return RetVal{}, err
	}
	flow, ops := c.unify(args...)
	a := c.Materialize(ops[0])
	b := c.Materialize(ops[1])
	c.CheckDivideByZero(c.num(b))

	r := c.NewTemp(flow)
	if flow.Kind == ir.KindNumber {
		c.Set(r, fmt.Sprintf("%s - %s * ROUND(%s / %s, 0, 1)", c.num(a), c.num(b), c.num(a), c.num(b)))
	} else {
		c.Set(r, fmt.Sprintf("%s %% %s", c.num(a), c.num(b)))
	}
	fix := c.If(fmt.Sprintf("%s <> 0 AND SIGN(%s) <> SIGN(%s)", r, r, c.num(b)))
	c.Set(r, fmt.Sprintf("%s + %s", r, c.num(b)))
	fix.Close()
	return c.checkNumeric(r), nil
}

// roundFunc emits ROUND(x, digits[, 1]); Trunc defaults digits to zero.
func roundFunc(mode string) GeneratorFunc {
	return func(c *Context, call *ir.Call) (RetVal, error) {
		x, err := c.numericArg(call, 0)
		if err != nil {
			return RetVal{}, err
		}
		digits := "0"
		if len(call.Args) > 1 {
			d, err := c.numericArg(call, 1)
			if err != nil {
				return RetVal{}, err
			}
			digits = c.intArg(d)
		}
		flow, ops := c.unify(x)
		return c.finishNumeric(fmt.Sprintf("ROUND(%s, %s%s)", c.num(ops[0]), digits, mode), flow), nil
	}
}

// genRoundUp rounds away from zero by scaling with 10^digits.
func genRoundUp(c *Context, call *ir.Call) (RetVal, error) {
	x, err := c.numericArg(call, 0)
	if err != nil {
		return RetVal{}, err
	}
	d, err := c.numericArg(call, 1)
	if err != nil {
		return RetVal{}, err
	}
	flow, ops := c.unify(x)
	xv := c.Materialize(ops[0])

	p := c.NewTemp(flow)
	if scale, ok := scaleFactor(d); ok {
		c.Set(p, fmt.Sprintf("TRY_CAST(%s AS %s)", scale, castType(flow)))
	} else {
		digits := c.intArg(d)
		c.Set(p, fmt.Sprintf("TRY_CAST(POWER(CAST(10 AS float), %s) AS %s)", digits, castType(flow)))
	}
	c.CheckOverflow(p)
	c.CheckDivideByZero(p.text)
	c.CheckRange(p)

	n := c.num(xv)
	return c.finishNumeric(fmt.Sprintf("IIF(%s > 0, CEILING(%s * %s) / %s, FLOOR(%s * %s) / %s)",
		n, n, p, p, n, p, p), flow), nil
}

// scaleFactor folds 10^digits when digits is an integral constant.
func scaleFactor(d RetVal) (string, bool) {
	lit, ok := d.Literal()
	if !ok {
		return "", false
	}
	var digits int64
	switch v := lit.(type) {
	case ir.Decimal:
		i, err := v.Apd().Int64()
		if err != nil {
			return "", false
		}
		digits = i
	case ir.Number:
		if float64(v) != float64(int64(v)) {
			return "", false
		}
		digits = int64(v)
	case ir.Blank:
	default:
		return "", false
	}
	if digits > 30 || digits < -30 {
		return "", false
	}
	p := apd.New(1, int32(digits))
	return sqlNumber(p.Text('f')), true
}

func genPower(c *Context, call *ir.Call) (RetVal, error) {
	args, err := c.numericArgs(call)
	if err != nil {
		return RetVal{}, err
	}
	flow, ops := c.unify(args...)
	a, b := c.Materialize(ops[0]), c.Materialize(ops[1])
	base, exp := c.num(a), c.num(b)

	c.Guard(fmt.Sprintf("%s = 0 AND %s < 0", base, exp))
	c.Guard(fmt.Sprintf("%s < 0 AND %s <> FLOOR(%s)", base, exp, exp))
	c.Guard(fmt.Sprintf("%s <> 0 AND %s * LOG10(ABS(CAST(%s AS float))) > 300", base, exp, base))
	return c.finishNumeric(fmt.Sprintf("POWER(CAST(%s AS float), %s)", base, exp), flow), nil
}

func genSqrt(c *Context, call *ir.Call) (RetVal, error) {
	x, err := c.numericArg(call, 0)
	if err != nil {
		return RetVal{}, err
	}
	flow, ops := c.unify(x)
	v := c.Materialize(ops[0])
	c.CheckNegative(c.num(v))
	return c.finishNumeric(fmt.Sprintf("SQRT(CAST(%s AS float))", c.num(v)), flow), nil
}

func genLn(c *Context, call *ir.Call) (RetVal, error) {
	x, err := c.numericArg(call, 0)
	if err != nil {
		return RetVal{}, err
	}
	flow, ops := c.unify(x)
	v := c.Materialize(ops[0])
	c.CheckNonPositive(c.num(v))
	return c.finishNumeric(fmt.Sprintf("LOG(CAST(%s AS float))", c.num(v)), flow), nil
}

func genExp(c *Context, call *ir.Call) (RetVal, error) {
	x, err := c.numericArg(call, 0)
	if err != nil {
		return RetVal{}, err
	}
	flow, ops := c.unify(x)
	v := c.Materialize(ops[0])
	c.Guard(c.num(v) + " > 709")
	return c.finishNumeric(fmt.Sprintf("EXP(CAST(%s AS float))", c.num(v)), flow), nil
}

// aggregate emits MIN or MAX over a VALUES list, ignoring blanks unless
// every argument is blank.
func aggregate(fn string) GeneratorFunc {
	return func(c *Context, call *ir.Call) (RetVal, error) {
		args, err := c.numericArgs(call)
		if err != nil {
			return RetVal{}, err
		}
		flow, ops := c.unify(args...)
		rows := make([]string, len(ops))
		for i, v := range ops {
			rows[i] = "(" + v.text + ")"
		}
		return c.finishNumeric(fmt.Sprintf("ISNULL((SELECT %s(x) FROM (VALUES %s) AS t(x)), 0)",
			fn, strings.Join(rows, ", ")), flow), nil
	}
}

// flowCast converts its argument to an explicit numeric flow.
func flowCast(flow ir.FormulaType) GeneratorFunc {
	return func(c *Context, call *ir.Call) (RetVal, error) {
		v, err := c.arg(call, 0)
		if err != nil {
			return RetVal{}, err
		}
		switch {
		case v.IsBlank():
			return blankVal, nil
		case v.typ.IsNumeric():
			return c.convert(v, flow), nil
		case v.typ.Kind == ir.KindString:
			return parseNumber(c, v, flow), nil
		case v.typ.Kind == ir.KindBoolean:
			return c.finishNumeric(fmt.Sprintf("IIF(%s, 1, 0)", truth(v)), flow), nil
		default:
			return RetVal{}, argTypeError(call, 0, v.typ)
		}
	}
}

func genValue(c *Context, call *ir.Call) (RetVal, error) {
	v, err := c.arg(call, 0)
	if err != nil {
		return RetVal{}, err
	}
	switch {
	case v.IsBlank():
		return blankVal, nil
	case v.typ.IsNumeric():
		return c.convert(v, c.flow), nil
	case v.typ.Kind == ir.KindString:
		return parseNumber(c, v, c.flow), nil
	default:
		return RetVal{}, argTypeError(call, 0, v.typ)
	}
}

// parseNumber converts text holding a single numeric token. Empty or
// blank text yields blank; anything else that fails to parse is a
// runtime error.
func parseNumber(c *Context, s RetVal, flow ir.FormulaType) RetVal {
	t := c.Assign(ir.TypeString, fmt.Sprintf("TRIM(%s)", c.str(s)))
	r := c.NewTemp(flow)

	empty := c.If(fmt.Sprintf("LEN(%s) = 0", t))
	c.Set(r, "NULL")
	empty.Else()
	c.Guard(fmt.Sprintf("%s LIKE N'%%[^0-9.eE+-]%%' OR %s NOT LIKE N'%%[0-9]%%'", t, t))
	if flow.Kind == ir.KindNumber {
		c.Set(r, fmt.Sprintf("TRY_CAST(%s AS float)", t))
	} else {
		c.Set(r, fmt.Sprintf("COALESCE(TRY_CAST(%s AS %s), TRY_CAST(TRY_CAST(%s AS float) AS %s))",
			t, sqlDecimal, t, sqlDecimal))
	}
	c.checkNumeric(r)
	empty.Close()
	return r
}
