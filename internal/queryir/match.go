package queryir

import (
	"fmt"
	"strings"

	"github.com/roach88/fxsql/internal/ir"
)

// Match evaluates f against one row the way the SQL backends do: a blank
// attribute or operand satisfies no comparison except eq/ne against Blank,
// and text compares without regard to case. A nil filter matches every row.
func Match(f Filter, row ir.Record) (bool, error) {
	switch fl := f.(type) {
	case nil:
		return true, nil
	case *Condition:
		return matchCondition(fl, row)
	case *Logical:
		for _, child := range fl.Children {
			ok, err := Match(child, row)
			if err != nil {
				return false, err
			}
			if fl.Op == OpAnd && !ok {
				return false, nil
			}
			if fl.Op == OpOr && ok {
				return true, nil
			}
		}
		return fl.Op == OpAnd, nil
	default:
		return false, fmt.Errorf("unknown filter type %T", f)
	}
}

func matchCondition(c *Condition, row ir.Record) (bool, error) {
	got := row.Get(c.Attribute)

	if len(c.Values) == 1 && ir.IsBlank(c.Values[0]) {
		switch c.Op {
		case OpEq:
			return ir.IsBlank(got), nil
		case OpNe:
			return !ir.IsBlank(got), nil
		}
	}
	if ir.IsBlank(got) {
		return false, nil
	}

	switch c.Op {
	case OpStartsWith, OpEndsWith:
		if len(c.Values) == 1 && ir.IsBlank(c.Values[0]) {
			return false, nil
		}
		s, ok := got.(ir.String)
		if !ok {
			return false, fmt.Errorf("%s %s: attribute is %s, not text", c.Attribute, c.Op, ir.TypeOf(got))
		}
		affix, ok := c.Values[0].(ir.String)
		if !ok {
			return false, fmt.Errorf("%s %s: operand is %s, not text", c.Attribute, c.Op, ir.TypeOf(c.Values[0]))
		}
		text, a := strings.ToLower(string(s)), strings.ToLower(string(affix))
		if c.Op == OpStartsWith {
			return strings.HasPrefix(text, a), nil
		}
		return strings.HasSuffix(text, a), nil

	case OpIn:
		for _, want := range c.Values {
			if ir.IsBlank(want) {
				continue
			}
			cmp, err := compare(c, got, want)
			if err != nil {
				return false, err
			}
			if cmp == 0 {
				return true, nil
			}
		}
		return false, nil
	}

	if len(c.Values) != 1 {
		return false, fmt.Errorf("%s %s: expects one value, got %d", c.Attribute, c.Op, len(c.Values))
	}
	if ir.IsBlank(c.Values[0]) {
		return false, nil
	}
	cmp, err := compare(c, got, c.Values[0])
	if err != nil {
		return false, err
	}
	switch c.Op {
	case OpEq:
		return cmp == 0, nil
	case OpNe:
		return cmp != 0, nil
	case OpLt:
		return cmp < 0, nil
	case OpLe:
		return cmp <= 0, nil
	case OpGt:
		return cmp > 0, nil
	case OpGe:
		return cmp >= 0, nil
	}
	return false, fmt.Errorf("%s: unknown operator %q", c.Attribute, c.Op)
}

func compare(c *Condition, got, want ir.Value) (int, error) {
	cmp, ok := ir.Compare(got, want)
	if !ok {
		return 0, fmt.Errorf("%s %s: cannot compare %s with %s", c.Attribute, c.Op, ir.TypeOf(got), ir.TypeOf(want))
	}
	return cmp, nil
}
