package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/fxsql/internal/ir"
)

// caseSensitive is applied where formula text matching is case sensitive.
const caseSensitive = "COLLATE Latin1_General_CS_AS"

func init() {
	register(ir.FuncText, 1, 2, genText)
	register(ir.FuncConcatenate, 1, variadic, genConcatenate)
	register(ir.FuncLen, 1, 1, genLen)
	register(ir.FuncLeft, 2, 2, sideFunc("LEFT"))
	register(ir.FuncRight, 2, 2, sideFunc("RIGHT"))
	register(ir.FuncMid, 2, 3, genMid)
	register(ir.FuncUpper, 1, 1, textFunc("UPPER(%s)"))
	register(ir.FuncLower, 1, 1, textFunc("LOWER(%s)"))
	register(ir.FuncTrimEnds, 1, 1, textFunc("TRIM(%s)"))
	register(ir.FuncTrim, 1, 1, textFunc("TRIM(REPLACE(REPLACE(REPLACE(%s, N' ', N' ' + NCHAR(7)), NCHAR(7) + N' ', N''), NCHAR(7), N''))"))
	register(ir.FuncSubstitute, 3, 4, genSubstitute)
	register(ir.FuncReplace, 4, 4, genReplace)
	register(ir.FuncFind, 2, 3, genFind)
	register(ir.FuncStartsWith, 2, 2, affixFunc("LEFT"))
	register(ir.FuncEndsWith, 2, 2, affixFunc("RIGHT"))
}

// sqlLen is LEN counting trailing spaces.
func sqlLen(s string) string {
	return fmt.Sprintf("(LEN(%s + N'x') - 1)", s)
}

func genText(c *Context, call *ir.Call) (RetVal, error) {
	v, err := c.arg(call, 0)
	if err != nil {
		return RetVal{}, err
	}

	var format *string
	if len(call.Args) > 1 {
		lit, err := literalArg(call, 1)
		if err != nil {
			return RetVal{}, err
		}
		switch f := lit.(type) {
		case ir.String:
			s := string(f)
			format = &s
		case ir.Blank:
			s := ""
			format = &s
		default:
			return RetVal{}, argTypeError(call, 1, ir.TypeOf(lit))
		}
	}

	switch {
	case v.IsBlank():
		// An unsupported format is rejected even when the value is blank.
		if format != nil {
			if _, err := numberPattern(call, *format); err != nil {
				return RetVal{}, err
			}
		}
		return blankVal, nil
	case v.typ.Kind == ir.KindString:
		if format != nil {
			return RetVal{}, newError(ErrArgumentPosition, call.Args[1].SourceSpan(), string(call.Func), 2, "text values take no format")
		}
		return v, nil
	case v.typ.IsNumeric():
		pattern := decimalDefaultFormat
		if v.typ.Kind == ir.KindNumber {
			pattern = floatDefaultFormat
		}
		if format != nil {
			p, err := numberPattern(call, *format)
			if err != nil {
				return RetVal{}, err
			}
			if p == "" {
				return RetVal{text: "N''", typ: ir.TypeString, literal: ir.String("")}, nil
			}
			pattern = p
		}
		return c.Assign(ir.TypeString, fmt.Sprintf("FORMAT(%s, %s, 'en-US')", v, quoteString(pattern))), nil
	case v.typ.Kind == ir.KindBoolean:
		if format != nil {
			return RetVal{}, newError(ErrArgumentPosition, call.Args[1].SourceSpan(), string(call.Func), 2, "boolean values take no format")
		}
		return c.Assign(ir.TypeString, fmt.Sprintf("IIF(%s IS NULL, NULL, IIF(%s, N'true', N'false'))", v, truth(v))), nil
	case v.typ.IsDateTime():
		if format != nil {
			return RetVal{}, newError(ErrUnsupportedFormat, call.Args[1].SourceSpan(), *format, "date formats are not supported")
		}
		style := 120
		if v.typ.Kind == ir.KindDate {
			style = 23
		}
		return c.Assign(ir.TypeString, fmt.Sprintf("CONVERT(nvarchar(%d), %s, %d)", c.opts.maxLength, v, style)), nil
	case v.typ.Kind == ir.KindGuid:
		return c.Assign(ir.TypeString, fmt.Sprintf("LOWER(CONVERT(nvarchar(36), %s))", v)), nil
	default:
		return RetVal{}, argTypeError(call, 0, v.typ)
	}
}

// numberPattern translates the literal number format of a Text call.
func numberPattern(call *ir.Call, format string) (string, error) {
	p, err := translateNumberFormat(format)
	if err != nil {
		var reason string
		if fe, ok := err.(*FormatError); ok {
			reason = fe.Reason
		}
		return "", newError(ErrUnsupportedFormat, call.Args[1].SourceSpan(), format, reason)
	}
	return p, nil
}

func genConcatenate(c *Context, call *ir.Call) (RetVal, error) {
	parts := make([]string, len(call.Args))
	for i := range call.Args {
		v, err := c.stringArg(call, i)
		if err != nil {
			return RetVal{}, err
		}
		parts[i] = c.str(v)
	}
	if len(parts) == 1 {
		return c.Assign(ir.TypeString, parts[0]), nil
	}
	return c.Assign(ir.TypeString, fmt.Sprintf("CONCAT(%s)", strings.Join(parts, ", "))), nil
}

func genLen(c *Context, call *ir.Call) (RetVal, error) {
	s, err := c.stringArg(call, 0)
	if err != nil {
		return RetVal{}, err
	}
	return c.Assign(c.flow, sqlLen(c.str(s))), nil
}

// textFunc applies a blank-preserving text transformation.
func textFunc(pattern string) GeneratorFunc {
	return func(c *Context, call *ir.Call) (RetVal, error) {
		s, err := c.stringArg(call, 0)
		if err != nil {
			return RetVal{}, err
		}
		if s.IsBlank() {
			return blankVal, nil
		}
		return c.Assign(ir.TypeString, fmt.Sprintf(pattern, s)), nil
	}
}

// sideFunc emits LEFT or RIGHT with a checked non-negative count.
func sideFunc(fn string) GeneratorFunc {
	return func(c *Context, call *ir.Call) (RetVal, error) {
		s, err := c.stringArg(call, 0)
		if err != nil {
			return RetVal{}, err
		}
		n, err := c.numericArg(call, 1)
		if err != nil {
			return RetVal{}, err
		}
		count := c.intArg(n)
		c.CheckNegative(count)
		return c.Assign(ir.TypeString, fmt.Sprintf("%s(%s, %s)", fn, c.str(s), count)), nil
	}
}

func genMid(c *Context, call *ir.Call) (RetVal, error) {
	s, err := c.stringArg(call, 0)
	if err != nil {
		return RetVal{}, err
	}
	startArg, err := c.numericArg(call, 1)
	if err != nil {
		return RetVal{}, err
	}
	start := c.intArg(startArg)
	c.CheckNonPositive(start)

	count := fmt.Sprintf("%d", c.opts.maxLength)
	if len(call.Args) > 2 {
		n, err := c.numericArg(call, 2)
		if err != nil {
			return RetVal{}, err
		}
		count = c.intArg(n)
		c.CheckNegative(count)
	}
	return c.Assign(ir.TypeString, fmt.Sprintf("SUBSTRING(%s, %s, %s)", c.str(s), start, count)), nil
}

// genSubstitute replaces every occurrence of old, or only the given
// instance of it. An empty old leaves the text unchanged.
func genSubstitute(c *Context, call *ir.Call) (RetVal, error) {
	vals := make([]RetVal, 3)
	for i := range vals {
		v, err := c.stringArg(call, i)
		if err != nil {
			return RetVal{}, err
		}
		vals[i] = v
	}
	text, old, repl := c.str(vals[0]), c.str(vals[1]), c.str(vals[2])

	if len(call.Args) == 3 {
		return c.Assign(ir.TypeString, fmt.Sprintf("REPLACE(%s %s, %s, %s)", text, caseSensitive, old, repl)), nil
	}

	instArg, err := c.numericArg(call, 3)
	if err != nil {
		return RetVal{}, err
	}
	instance := c.intArg(instArg)
	c.CheckNonPositive(instance)

	t := c.Assign(ir.TypeString, text)
	o := c.Assign(ir.TypeString, old)
	n := c.Assign(ir.TypeString, repl)
	pos, count, cursor := c.newIntVar(), c.newIntVar(), c.newIntVar()
	c.Emit("SET %s = 0", pos)
	c.Emit("SET %s = 0", count)
	c.Emit("SET %s = 1", cursor)

	nonEmpty := c.If(fmt.Sprintf("DATALENGTH(%s) > 0", o))
	defer nonEmpty.Close()

	loop := c.While(fmt.Sprintf("%s < %s", count, instance))
	c.Emit("SET %s = CHARINDEX(%s, %s %s, %s)", pos, o, t, caseSensitive, cursor)
	c.Emit("IF(%s = 0) BEGIN BREAK END", pos)
	c.Emit("SET %s = %s + 1", count, count)
	c.Emit("SET %s = %s + %s", cursor, pos, sqlLen(o.text))
	loop.Close()

	found := c.If(fmt.Sprintf("%s = %s", count, instance))
	c.Set(t, fmt.Sprintf("STUFF(%s, %s, %s, %s)", t, pos, sqlLen(o.text), n))
	found.Close()
	return t, nil
}

// genReplace overwrites count characters from start, appending when start
// lies beyond the end of the text.
func genReplace(c *Context, call *ir.Call) (RetVal, error) {
	s, err := c.stringArg(call, 0)
	if err != nil {
		return RetVal{}, err
	}
	startArg, err := c.numericArg(call, 1)
	if err != nil {
		return RetVal{}, err
	}
	countArg, err := c.numericArg(call, 2)
	if err != nil {
		return RetVal{}, err
	}
	repl, err := c.stringArg(call, 3)
	if err != nil {
		return RetVal{}, err
	}

	start := c.intArg(startArg)
	c.CheckNonPositive(start)
	count := c.intArg(countArg)
	c.CheckNegative(count)

	t := c.Assign(ir.TypeString, c.str(s))
	n := c.str(repl)
	return c.Assign(ir.TypeString, fmt.Sprintf("IIF(%s > %s, %s + %s, STUFF(%s, %s, %s, %s))",
		start, sqlLen(t.text), t, n, t, start, count, n)), nil
}

func genFind(c *Context, call *ir.Call) (RetVal, error) {
	find, err := c.stringArg(call, 0)
	if err != nil {
		return RetVal{}, err
	}
	within, err := c.stringArg(call, 1)
	if err != nil {
		return RetVal{}, err
	}
	start := "1"
	if len(call.Args) > 2 {
		s, err := c.numericArg(call, 2)
		if err != nil {
			return RetVal{}, err
		}
		start = c.intArg(s)
		c.CheckNonPositive(start)
	}
	f := c.str(find)
	return c.Assign(c.flow, fmt.Sprintf("IIF(DATALENGTH(%s) = 0, %s, NULLIF(CHARINDEX(%s, %s %s, %s), 0))",
		f, start, f, c.str(within), caseSensitive, start)), nil
}

// affixFunc tests a prefix or suffix, case-insensitively.
func affixFunc(fn string) GeneratorFunc {
	return func(c *Context, call *ir.Call) (RetVal, error) {
		s, err := c.stringArg(call, 0)
		if err != nil {
			return RetVal{}, err
		}
		a, err := c.stringArg(call, 1)
		if err != nil {
			return RetVal{}, err
		}
		affix := c.str(a)
		return boolExpr(fmt.Sprintf("%s(%s, %s) = %s", fn, c.str(s), sqlLen(affix), affix)), nil
	}
}
