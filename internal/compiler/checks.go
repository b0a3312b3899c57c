package compiler

import (
	"fmt"

	"github.com/roach88/fxsql/internal/ir"
)

// CheckDivideByZero fails evaluation when divisor is zero.
func (c *Context) CheckDivideByZero(divisor string) {
	c.Guard(divisor + " = 0")
}

// CheckNegative fails evaluation when v is below zero.
func (c *Context) CheckNegative(v string) {
	c.Guard(v + " < 0")
}

// CheckNonPositive fails evaluation when v is zero or below.
func (c *Context) CheckNonPositive(v string) {
	c.Guard(v + " <= 0")
}

// CheckOverflow fails evaluation when a TRY_CAST into v produced NULL.
func (c *Context) CheckOverflow(v RetVal) {
	c.Guard(v.text + " IS NULL")
}

// CheckRange fails evaluation when v lies outside the configured numeric
// range. Variables read from a column whose declared bounds already fit
// are not checked.
func (c *Context) CheckRange(v RetVal) {
	if col, ok := c.Column(v); ok && col.WithinRange(c.opts.rangeLo, c.opts.rangeHi) {
		return
	}
	c.Guard(fmt.Sprintf("%s < %s OR %s > %s",
		v.text, sqlNumber(c.opts.rangeLo.Text('f')), v.text, sqlNumber(c.opts.rangeHi.Text('f'))))
}

func sqlNumber(s string) string {
	if len(s) > 0 && s[0] == '-' {
		return "(" + s + ")"
	}
	return s
}

// castType returns the SQL type of a numeric flow.
func castType(flow ir.FormulaType) string {
	if flow.Kind == ir.KindNumber {
		return sqlFloat
	}
	return sqlDecimal
}

// finishNumeric stores expr in a fresh variable of the given flow with an
// overflow-safe cast, then range checks it.
func (c *Context) finishNumeric(expr string, flow ir.FormulaType) RetVal {
	v := c.NewTemp(flow)
	c.Set(v, fmt.Sprintf("TRY_CAST(%s AS %s)", expr, castType(flow)))
	c.CheckOverflow(v)
	c.CheckRange(v)
	return v
}

// checkNumeric applies the overflow and range checks to a variable that
// was assigned directly.
func (c *Context) checkNumeric(v RetVal) RetVal {
	c.CheckOverflow(v)
	c.CheckRange(v)
	return v
}

// num renders v as a numeric operand with blank read as zero.
func (c *Context) num(v RetVal) string {
	switch {
	case v.IsBlank():
		return "0"
	case v.literal != nil:
		return v.text
	default:
		return "ISNULL(" + v.text + ", 0)"
	}
}

// str renders v as a string operand with blank read as empty.
func (c *Context) str(v RetVal) string {
	switch {
	case v.IsBlank():
		return "N''"
	case v.literal != nil:
		return v.text
	default:
		return "ISNULL(" + v.text + ", N'')"
	}
}

// coerce converts a numeric value to flow, checking for overflow when the
// conversion can lose range. Blank stays blank.
func (c *Context) coerce(v RetVal, flow ir.FormulaType) RetVal {
	if v.IsBlank() || v.typ.Kind == flow.Kind {
		return v
	}
	if flow.Kind == ir.KindNumber {
		return exprVal(fmt.Sprintf("CAST(%s AS float)", v.text), flow)
	}
	if v.isVar {
		out := c.NewTemp(flow)
		c.Set(out, fmt.Sprintf("TRY_CAST(%s AS %s)", v.text, sqlDecimal))
		c.Guard(fmt.Sprintf("%s IS NULL AND %s IS NOT NULL", out.text, v.text))
		return out
	}
	return c.finishNumeric(c.num(v), flow)
}

// convert is coerce for the conversion rules: their result is a numeric
// rule result, so a variable moved into the decimal flow is range checked.
func (c *Context) convert(v RetVal, flow ir.FormulaType) RetVal {
	out := c.coerce(v, flow)
	if v.isVar && out.text != v.text && flow.Kind == ir.KindDecimal {
		c.CheckRange(out)
	}
	return out
}

// unify picks the flow for an arithmetic rule: the shared flow of its
// numeric operands, or the compilation's flow when they disagree, and
// coerces each operand into it.
func (c *Context) unify(vals ...RetVal) (ir.FormulaType, []RetVal) {
	var flow ir.FormulaType
	mixed := false
	for _, v := range vals {
		if v.IsBlank() {
			continue
		}
		switch {
		case flow.Kind == ir.KindBlank:
			flow = v.typ
		case flow.Kind != v.typ.Kind:
			mixed = true
		}
	}
	if mixed || flow.Kind == ir.KindBlank {
		flow = c.flow
	}
	out := make([]RetVal, len(vals))
	for i, v := range vals {
		out[i] = c.coerce(v, flow)
	}
	return flow, out
}

// intArg converts a numeric value to an int working variable, truncating
// toward zero and failing when it does not fit.
func (c *Context) intArg(v RetVal) string {
	name := c.newIntVar()
	c.Emit("SET %s = TRY_CAST(%s AS int)", name, c.num(v))
	c.Guard(name + " IS NULL")
	return name
}
