package compiler

import "github.com/roach88/fxsql/internal/ir"

// RetVal is the result of translating one node: a SQL fragment that is
// either a variable name or an inline expression, tagged with the formula
// type of its runtime value.
type RetVal struct {
	text    string
	typ     ir.FormulaType
	isVar   bool
	literal ir.Value
}

// String returns the SQL text.
func (r RetVal) String() string { return r.text }

// Type returns the formula type of the value the fragment produces.
func (r RetVal) Type() ir.FormulaType { return r.typ }

// IsVar reports whether the fragment is a declared variable or parameter.
func (r RetVal) IsVar() bool { return r.isVar }

// Literal returns the constant the fragment was rendered from, if any.
func (r RetVal) Literal() (ir.Value, bool) {
	return r.literal, r.literal != nil
}

// IsBlank reports whether the fragment is the blank literal.
func (r RetVal) IsBlank() bool {
	return r.typ.Kind == ir.KindBlank
}

func varVal(name string, t ir.FormulaType) RetVal {
	return RetVal{text: name, typ: t, isVar: true}
}

func exprVal(text string, t ir.FormulaType) RetVal {
	return RetVal{text: text, typ: t}
}

var blankVal = RetVal{text: "NULL", typ: ir.TypeBlank, literal: ir.Blank{}}
