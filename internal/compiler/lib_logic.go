package compiler

import (
	"fmt"

	"github.com/roach88/fxsql/internal/ir"
)

func init() {
	register(ir.FuncEq, 2, 2, genEquality(false))
	register(ir.FuncNe, 2, 2, genEquality(true))
	register(ir.FuncLt, 2, 2, genOrder("<"))
	register(ir.FuncLe, 2, 2, genOrder("<="))
	register(ir.FuncGt, 2, 2, genOrder(">"))
	register(ir.FuncGe, 2, 2, genOrder(">="))
	register(ir.FuncAnd, 2, variadic, genJunction(true))
	register(ir.FuncOr, 2, variadic, genJunction(false))
	register(ir.FuncNot, 1, 1, genNot)
	register(ir.FuncIsBlank, 1, 1, genIsBlank)
	register(ir.FuncIsError, 1, 1, genIsError)
	register(ir.FuncBlank, 0, 0, genBlank)
	register(ir.FuncIf, 2, variadic, genIf)
	register(ir.FuncSwitch, 3, variadic, genSwitch)
	register(ir.FuncIfError, 2, variadic, genIfError)
	register(ir.FuncCoalesce, 1, variadic, genCoalesce)
}

// equatable reports whether values of a and b can be tested for equality.
func equatable(a, b ir.FormulaType) bool {
	switch {
	case a.Kind == ir.KindBlank || b.Kind == ir.KindBlank:
		return true
	case a.IsNumeric() && b.IsNumeric():
		return true
	case a.IsDateTime() && b.IsDateTime():
		return true
	case a.Kind == ir.KindOptionSet && b.Kind == ir.KindOptionSet:
		return a.OptionSet == b.OptionSet
	default:
		return a.Kind == b.Kind && a.Kind != ir.KindRecord && a.Kind != ir.KindTable
	}
}

// equalCond is a null-aware equality condition: two blanks are equal.
func (c *Context) equalCond(a, b RetVal) string {
	switch {
	case a.IsBlank() && b.IsBlank():
		return "1 = 1"
	case a.IsBlank():
		return c.blankCond(b)
	case b.IsBlank():
		return c.blankCond(a)
	}
	left, right := a.text, b.text
	if a.typ.Kind == ir.KindString {
		left += " " + caseSensitive
	}
	if a.literal != nil && b.literal != nil {
		return fmt.Sprintf("%s = %s", left, right)
	}
	return fmt.Sprintf("(%s = %s OR (%s IS NULL AND %s IS NULL))", left, right, a.text, b.text)
}

// blankCond holds when v is blank; empty text counts as blank.
func (c *Context) blankCond(v RetVal) string {
	switch {
	case v.IsBlank():
		return "1 = 1"
	case v.typ.Kind == ir.KindString:
		return fmt.Sprintf("(%s IS NULL OR DATALENGTH(%s) = 0)", v, v)
	default:
		return fmt.Sprintf("%s IS NULL", v)
	}
}

func genEquality(negate bool) GeneratorFunc {
	return func(c *Context, call *ir.Call) (RetVal, error) {
		a, err := c.arg(call, 0)
		if err != nil {
			return RetVal{}, err
		}
		b, err := c.arg(call, 1)
		if err != nil {
			return RetVal{}, err
		}
		if !equatable(a.typ, b.typ) {
			return RetVal{}, argTypeError(call, 1, b.typ)
		}
		if a.typ.IsNumeric() && b.typ.IsNumeric() {
			_, ops := c.unify(a, b)
			a, b = ops[0], ops[1]
		}
		cond := c.equalCond(a, b)
		if negate {
			cond = "NOT " + cond
		}
		return boolExpr(cond), nil
	}
}

// genOrder compares numbers (blank reads as zero) or dates.
func genOrder(op string) GeneratorFunc {
	return func(c *Context, call *ir.Call) (RetVal, error) {
		a, err := c.arg(call, 0)
		if err != nil {
			return RetVal{}, err
		}
		b, err := c.arg(call, 1)
		if err != nil {
			return RetVal{}, err
		}
		switch {
		case (a.typ.IsNumeric() || a.IsBlank()) && (b.typ.IsNumeric() || b.IsBlank()):
			_, ops := c.unify(a, b)
			return boolExpr(fmt.Sprintf("%s %s %s", c.num(ops[0]), op, c.num(ops[1]))), nil
		case (a.typ.IsDateTime() || a.IsBlank()) && (b.typ.IsDateTime() || b.IsBlank()):
			return boolExpr(fmt.Sprintf("%s %s %s", a, op, b)), nil
		case !a.typ.IsNumeric() && !a.typ.IsDateTime():
			return RetVal{}, argTypeError(call, 0, a.typ)
		default:
			return RetVal{}, argTypeError(call, 1, b.typ)
		}
	}
}

// genJunction evaluates operands left to right and stops at the first
// one that decides the result.
func genJunction(and bool) GeneratorFunc {
	return func(c *Context, call *ir.Call) (RetVal, error) {
		first, err := c.boolArg(call, 0)
		if err != nil {
			return RetVal{}, err
		}
		r := c.Assign(ir.TypeBoolean, fmt.Sprintf("IIF(%s, 1, 0)", truth(first)))
		cont := r.text + " = 1"
		if !and {
			cont = r.text + " = 0"
		}

		var open []*Block
		defer func() {
			for i := len(open) - 1; i >= 0; i-- {
				open[i].Close()
			}
		}()
		for i := 1; i < len(call.Args); i++ {
			open = append(open, c.If(cont))
			v, err := c.boolArg(call, i)
			if err != nil {
				return RetVal{}, err
			}
			c.Set(r, fmt.Sprintf("IIF(%s, 1, 0)", truth(v)))
		}
		return r, nil
	}
}

func genNot(c *Context, call *ir.Call) (RetVal, error) {
	v, err := c.boolArg(call, 0)
	if err != nil {
		return RetVal{}, err
	}
	return boolExpr("NOT " + truth(v)), nil
}

func genIsBlank(c *Context, call *ir.Call) (RetVal, error) {
	v, err := c.arg(call, 0)
	if err != nil {
		return RetVal{}, err
	}
	return boolExpr(c.blankCond(v)), nil
}

// genIsError evaluates its argument inside an error scope and reports
// whether any check failed.
func genIsError(c *Context, call *ir.Call) (RetVal, error) {
	scope := c.OpenErrorScope()
	_, err := c.arg(call, 0)
	scope.Close()
	if err != nil {
		return RetVal{}, err
	}
	return boolExpr(scope.Failed()), nil
}

func genBlank(*Context, *ir.Call) (RetVal, error) {
	return blankVal, nil
}

// branchMerger assigns the results of conditional branches to one
// variable, reconciling their types.
//
// A DateTime result may be narrowed once to Date or DateTimeNoTimeZone;
// a second, different narrowing is an error. Option-set results must all
// come from the same option set. The two rules are checked independently.
type branchMerger struct {
	c         *Context
	call      *ir.Call
	result    RetVal
	narrowed  bool
	optionSet string
}

func (c *Context) newMerger(call *ir.Call) (*branchMerger, error) {
	t := call.ResultType
	if _, ok := c.sqlType(t); !ok {
		return nil, newError(ErrUnsupportedResultType, call.Source, t.String())
	}
	m := &branchMerger{c: c, call: call, result: c.NewTemp(t)}
	if t.Kind == ir.KindBlank {
		m.result.typ = ir.TypeBlank
	}
	return m, nil
}

func (m *branchMerger) assign(v RetVal, span ir.Span) error {
	if v.IsBlank() {
		m.c.Set(m.result, "NULL")
		return nil
	}
	if err := m.checkOptionSet(v, span); err != nil {
		return err
	}

	have := m.result.typ
	switch {
	case have.Kind == ir.KindBlank:
		m.setType(v.typ)
	case have.IsNumeric() && v.typ.IsNumeric():
		v = m.c.coerce(v, have)
	case have.IsDateTime() && v.typ.IsDateTime():
		if err := m.narrow(v.typ, span); err != nil {
			return err
		}
	case have.Kind == ir.KindOptionSet && v.typ.Kind == ir.KindOptionSet:
	case have.Kind != v.typ.Kind:
		return newError(ErrIncompatibleBranchTypes, span, string(m.call.Func), have.String(), v.typ.String())
	}
	m.c.Set(m.result, v.text)
	return nil
}

func (m *branchMerger) narrow(t ir.FormulaType, span ir.Span) error {
	have := m.result.typ
	switch {
	case t.Kind == have.Kind || !t.IsSpecializedDate():
		return nil
	case have.Kind == ir.KindDateTime && !m.narrowed:
		m.narrowed = true
		m.setType(t)
		return nil
	default:
		return newError(ErrIncompatibleBranchTypes, span, string(m.call.Func), have.String(), t.String())
	}
}

func (m *branchMerger) setType(t ir.FormulaType) {
	m.c.retype(m.result.text, t)
	m.result.typ = t
}

func (m *branchMerger) checkOptionSet(v RetVal, span ir.Span) error {
	set := ""
	if col, ok := m.c.Column(v); ok && col.Type.Kind == ir.KindOptionSet {
		set = col.Type.OptionSet
	} else if v.typ.Kind == ir.KindOptionSet {
		set = v.typ.OptionSet
	}
	if set == "" {
		return nil
	}
	if m.optionSet != "" && m.optionSet != set {
		return newError(ErrConflictingOptionSets, span, string(m.call.Func), m.optionSet, set)
	}
	m.optionSet = set
	return nil
}

// value returns the merged result variable.
func (m *branchMerger) value() RetVal {
	return m.result
}

// branch translates n and assigns it to the merged result.
func (m *branchMerger) branch(n ir.Node) error {
	v, err := m.c.Translate(n)
	if err != nil {
		return err
	}
	return m.assign(v, n.SourceSpan())
}

// genIf emits If(cond1, r1, cond2, r2, ..., [else]).
func genIf(c *Context, call *ir.Call) (RetVal, error) {
	m, err := c.newMerger(call)
	if err != nil {
		return RetVal{}, err
	}
	if err := c.ifChain(m, call, 0); err != nil {
		return RetVal{}, err
	}
	return m.value(), nil
}

func (c *Context) ifChain(m *branchMerger, call *ir.Call, i int) error {
	cond, err := c.boolArg(call, i)
	if err != nil {
		return err
	}
	blk := c.If(truth(cond))
	defer blk.Close()
	if err := m.branch(call.Args[i+1]); err != nil {
		return err
	}

	for i += 2; i < len(call.Args); i += 2 {
		if i+1 == len(call.Args) {
			blk.Else()
			return m.branch(call.Args[i])
		}
		if !c.isInline(call.Args[i]) {
			blk.Else()
			return c.ifChain(m, call, i)
		}
		next, err := c.boolArg(call, i)
		if err != nil {
			return err
		}
		blk.ElseIf(truth(next))
		if err := m.branch(call.Args[i+1]); err != nil {
			return err
		}
	}
	return nil
}

// genSwitch emits Switch(subject, match1, r1, ..., [default]).
func genSwitch(c *Context, call *ir.Call) (RetVal, error) {
	m, err := c.newMerger(call)
	if err != nil {
		return RetVal{}, err
	}
	subject, err := c.arg(call, 0)
	if err != nil {
		return RetVal{}, err
	}
	subject = c.Materialize(subject)
	c.SetIntermediate(call.Args[0], subject)

	var (
		blk  *Block
		open []*Block
	)
	defer func() {
		for k := len(open) - 1; k >= 0; k-- {
			open[k].Close()
		}
	}()

	i := 1
	for ; i+1 < len(call.Args); i += 2 {
		inline := c.isInline(call.Args[i])
		if blk != nil && !inline {
			blk.Else()
		}
		match, err := c.arg(call, i)
		if err != nil {
			return RetVal{}, err
		}
		if !equatable(subject.typ, match.typ) {
			return RetVal{}, argTypeError(call, i, match.typ)
		}
		cond := c.equalCond(subject, match)
		if blk != nil && inline {
			blk.ElseIf(cond)
		} else {
			blk = c.If(cond)
			open = append(open, blk)
		}
		if err := m.branch(call.Args[i+1]); err != nil {
			return RetVal{}, err
		}
	}
	if i < len(call.Args) {
		blk.Else()
		if err := m.branch(call.Args[i]); err != nil {
			return RetVal{}, err
		}
	}
	return m.value(), nil
}

// genIfError emits IfError(v1, f1, v2, f2, ..., [default]). Each value is
// evaluated in its own error scope; the first that fails yields its
// fallback. Without an explicit default the result is the last value.
func genIfError(c *Context, call *ir.Call) (RetVal, error) {
	m, err := c.newMerger(call)
	if err != nil {
		return RetVal{}, err
	}
	if err := c.ifErrorChain(m, call, 0); err != nil {
		return RetVal{}, err
	}
	return m.value(), nil
}

func (c *Context) ifErrorChain(m *branchMerger, call *ir.Call, i int) error {
	scope := c.OpenErrorScope()
	v, err := c.arg(call, i)
	if err == nil {
		v = c.Materialize(v)
	}
	scope.Close()
	if err != nil {
		return err
	}

	blk := c.If(scope.Failed())
	defer blk.Close()
	if err := m.branch(call.Args[i+1]); err != nil {
		return err
	}
	blk.Else()

	rest := len(call.Args) - (i + 2)
	switch {
	case rest >= 2:
		return c.ifErrorChain(m, call, i+2)
	case rest == 1:
		return m.branch(call.Args[i+2])
	default:
		return m.assign(v, call.Args[i].SourceSpan())
	}
}

// genCoalesce returns the first non-blank argument, evaluating each only
// when the ones before it were blank.
func genCoalesce(c *Context, call *ir.Call) (RetVal, error) {
	m, err := c.newMerger(call)
	if err != nil {
		return RetVal{}, err
	}
	if err := m.branch(call.Args[0]); err != nil {
		return RetVal{}, err
	}
	var open []*Block
	defer func() {
		for i := len(open) - 1; i >= 0; i-- {
			open[i].Close()
		}
	}()
	for i := 1; i < len(call.Args); i++ {
		open = append(open, c.If(c.blankCond(m.value())))
		if err := m.branch(call.Args[i]); err != nil {
			return RetVal{}, err
		}
	}
	return m.value(), nil
}
