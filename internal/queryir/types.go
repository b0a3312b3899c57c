package queryir

import (
	"github.com/google/uuid"

	"github.com/roach88/fxsql/internal/ir"
)

// Filter is a predicate over the rows of one table.
//
// This is a sealed interface - only types in this package implement it.
//
// Filter types:
//   - Condition: attribute compared with literal value(s)
//   - Logical: AND/OR of child filters (nesting allowed)
type Filter interface {
	filterNode() // Marker method - seals interface to this package
}

// Request is a retrieval issued to a data service.
//
// This is a sealed interface - only types in this package implement it.
//
// Request types:
//   - RetrieveMultiple: rows of a table matching an optional filter
//   - RetrieveByID: one row by primary key
type Request interface {
	requestNode() // Marker method - seals interface to this package
}

// Operator is the comparison of a Condition.
type Operator string

const (
	OpEq         Operator = "eq"
	OpNe         Operator = "ne"
	OpLt         Operator = "lt"
	OpLe         Operator = "le"
	OpGt         Operator = "gt"
	OpGe         Operator = "ge"
	OpIn         Operator = "in"
	OpStartsWith Operator = "startswith"
	OpEndsWith   Operator = "endswith"
)

// Arity returns how many values the operator takes; -1 means one or more.
func (op Operator) Arity() int {
	switch op {
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe, OpStartsWith, OpEndsWith:
		return 1
	case OpIn:
		return -1
	}
	return 0
}

// Condition compares an attribute with literal values.
//
// Semantics:
//
//	<attribute> <op> <values...>
//
// Example:
//
//	Condition{Attribute: "revenue", Op: OpGt, Values: []ir.Value{ir.MustDecimal("0")}}
//
// Blank operands follow SQL NULL rules except for eq/ne against Blank,
// which test for absence (IS NULL / IS NOT NULL). Text comparisons ignore
// case.
type Condition struct {
	Attribute string
	Op        Operator
	Values    []ir.Value
}

func (*Condition) filterNode() {}

// LogicalOp combines child filters.
type LogicalOp string

const (
	OpAnd LogicalOp = "and"
	OpOr  LogicalOp = "or"
)

// Logical is a conjunction or disjunction of child filters. Children may
// themselves be Logical; flattening is not required.
type Logical struct {
	Op       LogicalOp
	Children []Filter
}

func (*Logical) filterNode() {}

// And builds a conjunction.
func And(children ...Filter) *Logical {
	return &Logical{Op: OpAnd, Children: children}
}

// Or builds a disjunction.
func Or(children ...Filter) *Logical {
	return &Logical{Op: OpOr, Children: children}
}

// RetrieveMultiple fetches the rows of Table matching Filter.
//
// A nil Filter means no filter. Top caps the row count; 0 means no cap.
type RetrieveMultiple struct {
	Table  string
	Filter Filter
	Top    int
}

func (*RetrieveMultiple) requestNode() {}

// RetrieveByID fetches one row of Table by primary key.
type RetrieveByID struct {
	Table string
	ID    uuid.UUID
}

func (*RetrieveByID) requestNode() {}
