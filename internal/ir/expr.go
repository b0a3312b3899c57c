package ir

import "fmt"

// Span locates a node in the formula source as a half-open character range.
type Span struct {
	Min int `json:"min"`
	Lim int `json:"lim"`
}

func (s Span) String() string {
	return fmt.Sprintf("%d:%d", s.Min, s.Lim)
}

// Node is a bound expression tree node.
//
// This is a sealed interface - only the variants in this file implement it:
//   - *Call: builtin function application
//   - *Literal: constant value
//   - *FieldAccess: column of the row scope or of a related record
//   - *Record: record constructor
//   - *Lazy: child whose evaluation the enclosing function controls
//
// Nodes are produced upstream by the binder and never mutated afterwards.
// Pointer identity is meaningful: compilers key intermediate results by it.
type Node interface {
	Type() FormulaType
	SourceSpan() Span
	node() // Sealed
}

// Call applies a builtin function to its arguments.
type Call struct {
	Func       Func
	Args       []Node
	ResultType FormulaType
	Source     Span
}

func (c *Call) Type() FormulaType { return c.ResultType }
func (c *Call) SourceSpan() Span  { return c.Source }
func (*Call) node()               {}

// Literal is a constant. Value's kind must agree with ResultType.
type Literal struct {
	Value      Value
	ResultType FormulaType
	Source     Span
}

func (l *Literal) Type() FormulaType { return l.ResultType }
func (l *Literal) SourceSpan() Span  { return l.Source }
func (*Literal) node()               {}

// FieldAccess reads Field from From.
//
// A nil From reads the column of the current row (row scope). A From that
// is itself a FieldAccess of Record type navigates a lookup column to the
// related row.
type FieldAccess struct {
	From       Node
	Field      string
	ResultType FormulaType
	Source     Span
}

func (f *FieldAccess) Type() FormulaType { return f.ResultType }
func (f *FieldAccess) SourceSpan() Span  { return f.Source }
func (*FieldAccess) node()               {}

// RecordField is a single named field of a Record node.
type RecordField struct {
	Name  string
	Value Node
}

// Record constructs a record value. Field order is preserved.
type Record struct {
	Fields     []RecordField
	ResultType FormulaType
	Source     Span
}

func (r *Record) Type() FormulaType { return r.ResultType }
func (r *Record) SourceSpan() Span  { return r.Source }
func (*Record) node()               {}

// Lazy wraps a child that is evaluated only when the enclosing function
// decides to, such as the branches of If.
type Lazy struct {
	Child Node
}

func (l *Lazy) Type() FormulaType { return l.Child.Type() }
func (l *Lazy) SourceSpan() Span  { return l.Child.SourceSpan() }
func (*Lazy) node()               {}

// Unwrap strips any Lazy wrappers from n.
func Unwrap(n Node) Node {
	for {
		lz, ok := n.(*Lazy)
		if !ok {
			return n
		}
		n = lz.Child
	}
}

// NewCall builds a Call node.
func NewCall(fn Func, result FormulaType, args ...Node) *Call {
	return &Call{Func: fn, Args: args, ResultType: result}
}

// NewLiteral builds a Literal node typed after its value.
func NewLiteral(v Value) *Literal {
	return &Literal{Value: v, ResultType: TypeOf(v)}
}

// NewField builds a row-scope FieldAccess node.
func NewField(name string, t FormulaType) *FieldAccess {
	return &FieldAccess{Field: name, ResultType: t}
}
