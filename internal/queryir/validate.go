package queryir

import (
	"fmt"

	"github.com/roach88/fxsql/internal/ir"
	"github.com/roach88/fxsql/internal/metadata"
)

// ValidationResult lists the problems found in a request.
type ValidationResult struct {
	// Problems is empty when the request is well formed.
	Problems []string
}

// OK reports whether no problems were found.
func (r ValidationResult) OK() bool {
	return len(r.Problems) == 0
}

// Err returns the problems as a single error, or nil.
func (r ValidationResult) Err() error {
	switch len(r.Problems) {
	case 0:
		return nil
	case 1:
		return fmt.Errorf("invalid request: %s", r.Problems[0])
	default:
		return fmt.Errorf("invalid request: %s (and %d more)", r.Problems[0], len(r.Problems)-1)
	}
}

// Validate checks a request for structural problems.
//
// With a non-nil md, table and attribute names are also resolved and
// operand kinds are checked against column types.
//
// Validate is a pure function with no side effects.
func Validate(req Request, md metadata.Provider) ValidationResult {
	v := &validator{md: md}
	v.validateRequest(req)
	return ValidationResult{Problems: v.problems}
}

// validator accumulates problems during traversal.
type validator struct {
	md       metadata.Provider
	table    *metadata.Table
	problems []string
}

func (v *validator) addProblem(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *validator) validateRequest(req Request) {
	switch r := req.(type) {
	case nil:
		v.addProblem("nil request")
	case *RetrieveMultiple:
		v.resolveTable(r.Table)
		if r.Top < 0 {
			v.addProblem("negative row cap %d", r.Top)
		}
		if r.Filter != nil {
			v.validateFilter(r.Filter)
		}
	case *RetrieveByID:
		v.resolveTable(r.Table)
		if v.table != nil && v.table.PrimaryKey == "" {
			v.addProblem("table %q has no primary key", r.Table)
		}
	default:
		v.addProblem("unknown request type %T", req)
	}
}

func (v *validator) resolveTable(name string) {
	if name == "" {
		v.addProblem("table name is required")
		return
	}
	if v.md == nil {
		return
	}
	t, ok := v.md.Table(name)
	if !ok {
		v.addProblem("unknown table %q", name)
		return
	}
	v.table = t
}

func (v *validator) validateFilter(f Filter) {
	switch fl := f.(type) {
	case nil:
		v.addProblem("nil filter child")
	case *Condition:
		v.validateCondition(fl)
	case *Logical:
		if fl.Op != OpAnd && fl.Op != OpOr {
			v.addProblem("unknown logical operator %q", fl.Op)
		}
		if len(fl.Children) == 0 {
			v.addProblem("%s with no children", fl.Op)
		}
		for _, child := range fl.Children {
			v.validateFilter(child)
		}
	default:
		v.addProblem("unknown filter type %T", f)
	}
}

func (v *validator) validateCondition(c *Condition) {
	if c.Attribute == "" {
		v.addProblem("condition without attribute")
		return
	}

	switch arity := c.Op.Arity(); {
	case arity == 0:
		v.addProblem("%s: unknown operator %q", c.Attribute, c.Op)
		return
	case arity > 0 && len(c.Values) != arity:
		v.addProblem("%s %s: expects %d value, got %d", c.Attribute, c.Op, arity, len(c.Values))
		return
	case arity < 0 && len(c.Values) == 0:
		v.addProblem("%s %s: expects at least one value", c.Attribute, c.Op)
		return
	}

	for _, val := range c.Values {
		switch {
		case ir.IsBlank(val):
			// Blank operands are data: they compare as SQL NULL.
		case c.Op == OpStartsWith || c.Op == OpEndsWith:
			if _, ok := val.(ir.String); !ok {
				v.addProblem("%s %s: operand must be text, got %s", c.Attribute, c.Op, ir.TypeOf(val))
			}
		case isCompound(val):
			v.addProblem("%s %s: operand of type %s is not a scalar", c.Attribute, c.Op, ir.TypeOf(val))
		}
	}

	if v.table == nil {
		return
	}
	col, ok := v.table.Column(c.Attribute)
	if !ok {
		v.addProblem("unknown attribute %q of table %q", c.Attribute, v.table.Name)
		return
	}
	if col.IsLookup() {
		return
	}
	for _, val := range c.Values {
		if !ir.IsBlank(val) && !compatible(col.Type, ir.TypeOf(val)) {
			v.addProblem("%s %s: %s operand for %s column", c.Attribute, c.Op, ir.TypeOf(val), col.Type)
		}
	}
}

func isCompound(v ir.Value) bool {
	switch v.(type) {
	case ir.Record, ir.Table:
		return true
	}
	return false
}

// compatible reports whether an operand of type val can be compared with
// a column of type col.
func compatible(col, val ir.FormulaType) bool {
	switch {
	case col.IsNumeric():
		return val.IsNumeric()
	case col.IsDateTime():
		return val.IsDateTime()
	case col.Kind == ir.KindOptionSet:
		return val.Kind == ir.KindOptionSet && val.OptionSet == col.OptionSet
	}
	return col.Kind == val.Kind
}
