package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/fxsql/internal/ir"
	"github.com/roach88/fxsql/internal/metadata"
)

// Result is a compiled formula: the pieces of a scalar SQL function.
type Result struct {
	Name       string
	Table      string
	Parameters []Parameter
	ReturnType ir.FormulaType
	SQLType    string

	// Declarations are DECLARE statements, hoisted in creation order.
	Declarations []string
	// Prologue holds related-row reads that run before the body.
	Prologue []string
	// Statements is the indented body.
	Statements []string
	// ReturnExpr is the expression the function returns.
	ReturnExpr string
}

// Compile translates a bound expression tree into a scalar function.
//
// md may be nil when the tree reads no columns. Compile errors are
// returned as *CompileError; anything else indicates a bad invocation.
func Compile(expr ir.Node, md metadata.Provider, opts ...Option) (*Result, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	c, err := newContext(md, o)
	if err != nil {
		return nil, fmt.Errorf("compile: %w", err)
	}

	retType := expr.Type()
	if retType.Kind == ir.KindBlank {
		retType = c.flow
	}
	sqlType, ok := c.sqlType(retType)
	if !ok {
		return nil, newError(ErrUnsupportedResultType, expr.SourceSpan(), retType.String())
	}

	out, err := c.Translate(expr)
	if err != nil {
		return nil, err
	}
	if _, ok := c.sqlType(out.typ); !ok {
		return nil, newError(ErrUnsupportedResultType, expr.SourceSpan(), out.typ.String())
	}
	if retType.IsDateTime() && out.typ.IsSpecializedDate() {
		retType = out.typ
		sqlType, _ = c.sqlType(retType)
	}
	c.closeAll()

	name := o.name
	if name == "" {
		variant := fmt.Sprintf("%s/%s", c.flow, o.table)
		id, err := ir.ExpressionID(expr, variant)
		if err != nil {
			return nil, fmt.Errorf("compile: %w", err)
		}
		name = "fn_" + id[:16]
	}

	res := &Result{
		Name:       name,
		Table:      o.table,
		Parameters: c.params,
		ReturnType: retType,
		SQLType:    sqlType,
		Prologue:   c.prologue,
		Statements: c.lines,
		ReturnExpr: out.text,
	}
	for _, d := range c.decls {
		res.Declarations = append(res.Declarations, d.render())
	}
	return res, nil
}

// Body renders the statement batch without the function wrapper.
func (r *Result) Body() string {
	var b strings.Builder
	for _, group := range [][]string{r.Declarations, r.Prologue, r.Statements} {
		for _, line := range group {
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}
	fmt.Fprintf(&b, "RETURN %s\n", r.ReturnExpr)
	return b.String()
}

// Script renders a CREATE FUNCTION statement.
func (r *Result) Script() string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE FUNCTION [dbo].%s(", quoteIdent(r.Name))
	for i, p := range r.Parameters {
		if i == 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s%s %s", indentUnit, p.Name, p.SQLType)
		if i < len(r.Parameters)-1 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, " -- %s\n", p.Column.Name)
	}
	fmt.Fprintf(&b, ") RETURNS %s\nAS\nBEGIN\n", r.SQLType)
	for _, line := range strings.Split(strings.TrimSuffix(r.Body(), "\n"), "\n") {
		b.WriteString(indentUnit)
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteString("END\n")
	return b.String()
}

// Translate emits the code for n and returns its result, reusing the
// cached result when n was translated before.
func (c *Context) Translate(n ir.Node) (RetVal, error) {
	if v, ok := c.Intermediate(n); ok {
		return v, nil
	}

	var (
		v   RetVal
		err error
	)
	switch node := n.(type) {
	case *ir.Lazy:
		return c.Translate(node.Child)
	case *ir.Literal:
		v, err = c.translateLiteral(node)
	case *ir.FieldAccess:
		v, err = c.translateField(node)
	case *ir.Call:
		v, err = c.dispatch(node)
	case *ir.Record:
		err = newError(ErrUnsupportedNode, node.Source, "record constructor")
	default:
		err = fmt.Errorf("translate: unexpected node %T", n)
	}
	if err != nil {
		return RetVal{}, err
	}
	if v.isVar {
		c.SetIntermediate(n, v)
	}
	return v, nil
}

func (c *Context) translateLiteral(lit *ir.Literal) (RetVal, error) {
	if ir.IsBlank(lit.Value) {
		return blankVal, nil
	}
	text, err := literalText(lit.Value)
	if err != nil {
		return RetVal{}, newError(ErrUnsupportedNode, lit.Source, err.Error())
	}
	t := lit.ResultType
	if t.Kind == ir.KindBlank {
		t = ir.TypeOf(lit.Value)
	}
	return RetVal{text: text, typ: t, literal: lit.Value}, nil
}

func (c *Context) translateField(fa *ir.FieldAccess) (RetVal, error) {
	if fa.From == nil {
		col, err := c.rowColumn(fa)
		if err != nil {
			return RetVal{}, err
		}
		if col.IsLookup() {
			return RetVal{}, newError(ErrUnsupportedResultType, fa.Source, col.Type.String())
		}
		return c.columnParam(col), nil
	}

	parent, ok := ir.Unwrap(fa.From).(*ir.FieldAccess)
	if !ok || parent.From != nil {
		return RetVal{}, newError(ErrUnsupportedNode, fa.Source, "navigation beyond one related row")
	}
	lookup, err := c.rowColumn(parent)
	if err != nil {
		return RetVal{}, err
	}
	if !lookup.IsLookup() {
		return RetVal{}, newError(ErrUnsupportedNode, parent.Source, fmt.Sprintf("field access on %s column %s", lookup.Type, lookup.Name))
	}
	target, ok := c.md.Table(lookup.Target)
	if !ok {
		return RetVal{}, newError(ErrUnknownColumn, fa.Source, fa.Field, lookup.Target)
	}
	col, ok := target.Column(fa.Field)
	if !ok {
		return RetVal{}, newError(ErrUnknownColumn, fa.Source, fa.Field, target.Name)
	}
	if col.IsLookup() {
		return RetVal{}, newError(ErrUnsupportedNode, fa.Source, "navigation beyond one related row")
	}
	if _, ok := target.Column(target.PrimaryKey); !ok {
		return RetVal{}, newError(ErrUnsupportedNode, fa.Source, fmt.Sprintf("table %s without primary key", target.Name))
	}
	return c.lookupField(c.columnParam(lookup), target, col), nil
}

func (c *Context) rowColumn(fa *ir.FieldAccess) (*metadata.Column, error) {
	if c.table == nil {
		return nil, newError(ErrUnknownColumn, fa.Source, fa.Field, "(no row scope)")
	}
	col, ok := c.table.Column(fa.Field)
	if !ok {
		return nil, newError(ErrUnknownColumn, fa.Source, fa.Field, c.table.Name)
	}
	return col, nil
}

// arg translates argument i of call.
func (c *Context) arg(call *ir.Call, i int) (RetVal, error) {
	return c.Translate(call.Args[i])
}

// numericArg translates argument i, which must be numeric or blank.
func (c *Context) numericArg(call *ir.Call, i int) (RetVal, error) {
	v, err := c.arg(call, i)
	if err != nil {
		return RetVal{}, err
	}
	if !v.typ.IsNumeric() && !v.IsBlank() {
		return RetVal{}, argTypeError(call, i, v.typ)
	}
	return v, nil
}

// numericArgs translates every argument of call as a number.
func (c *Context) numericArgs(call *ir.Call) ([]RetVal, error) {
	vals := make([]RetVal, len(call.Args))
	for i := range call.Args {
		v, err := c.numericArg(call, i)
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	return vals, nil
}

// stringArg translates argument i, which must be text or blank.
func (c *Context) stringArg(call *ir.Call, i int) (RetVal, error) {
	v, err := c.arg(call, i)
	if err != nil {
		return RetVal{}, err
	}
	if v.typ.Kind != ir.KindString && !v.IsBlank() {
		return RetVal{}, argTypeError(call, i, v.typ)
	}
	return v, nil
}

// boolArg translates argument i, which must be a boolean or blank.
func (c *Context) boolArg(call *ir.Call, i int) (RetVal, error) {
	v, err := c.arg(call, i)
	if err != nil {
		return RetVal{}, err
	}
	if v.typ.Kind != ir.KindBoolean && !v.IsBlank() {
		return RetVal{}, argTypeError(call, i, v.typ)
	}
	return v, nil
}

// dateArg translates argument i, which must be a date, date-time or blank.
func (c *Context) dateArg(call *ir.Call, i int) (RetVal, error) {
	v, err := c.arg(call, i)
	if err != nil {
		return RetVal{}, err
	}
	if !v.typ.IsDateTime() && !v.IsBlank() {
		return RetVal{}, argTypeError(call, i, v.typ)
	}
	return v, nil
}

// literalArg returns the constant at argument i, failing when the
// argument is computed.
func literalArg(call *ir.Call, i int) (ir.Value, error) {
	lit, ok := ir.Unwrap(call.Args[i]).(*ir.Literal)
	if !ok {
		return nil, literalRequired(call, i)
	}
	return lit.Value, nil
}

// truth renders a boolean fragment as a condition, reading blank as false.
func truth(v RetVal) string {
	switch {
	case v.IsBlank():
		return "1 = 0"
	case v.literal != nil:
		return v.text + " = 1"
	default:
		return "ISNULL(" + v.text + ", 0) = 1"
	}
}

// boolExpr turns a condition into a boolean fragment.
func boolExpr(cond string) RetVal {
	return exprVal("IIF("+cond+", 1, 0)", ir.TypeBoolean)
}

// isInline reports whether translating n emits no statements in the
// body, so it can be evaluated as an ELSE IF condition.
func (c *Context) isInline(n ir.Node) bool {
	switch ir.Unwrap(n).(type) {
	case *ir.Literal, *ir.FieldAccess:
		return true
	default:
		return false
	}
}
