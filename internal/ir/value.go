package ir

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"time"
	"unicode/utf16"

	"github.com/cockroachdb/apd/v3"
	"github.com/google/uuid"
)

// Value is a sealed interface representing interpreter values.
// Only the types in this file implement it.
type Value interface {
	value() // Sealed
}

// Blank is the absence of a value.
type Blank struct{}

func (Blank) value() {}

// Boolean is a true/false value.
type Boolean bool

func (Boolean) value() {}

// String is a text value.
type String string

func (String) value() {}

// Number is a floating-point numeric value.
type Number float64

func (Number) value() {}

// Decimal is a fixed-precision numeric value.
// The wrapped decimal is never mutated after construction.
type Decimal struct {
	d *apd.Decimal
}

func (Decimal) value() {}

// NewDecimal parses s as a decimal literal.
func NewDecimal(s string) (Decimal, error) {
	d, _, err := apd.NewFromString(s)
	if err != nil {
		return Decimal{}, fmt.Errorf("invalid decimal %q: %w", s, err)
	}
	if d.Form != apd.Finite {
		return Decimal{}, fmt.Errorf("invalid decimal %q: not finite", s)
	}
	return Decimal{d: d}, nil
}

// MustDecimal is like NewDecimal but panics on error.
// Use only in tests or with constant inputs.
func MustDecimal(s string) Decimal {
	d, err := NewDecimal(s)
	if err != nil {
		panic(err)
	}
	return d
}

// DecimalFromInt returns the decimal value of n.
func DecimalFromInt(n int64) Decimal {
	return Decimal{d: apd.New(n, 0)}
}

// DecimalFromApd wraps a copy of d.
func DecimalFromApd(d *apd.Decimal) Decimal {
	c := new(apd.Decimal).Set(d)
	return Decimal{d: c}
}

// Apd returns a copy of the underlying decimal.
func (d Decimal) Apd() *apd.Decimal {
	if d.d == nil {
		return apd.New(0, 0)
	}
	return new(apd.Decimal).Set(d.d)
}

// String renders d in plain (non-exponent) notation.
func (d Decimal) String() string {
	if d.d == nil {
		return "0"
	}
	return d.d.Text('f')
}

// Float64 converts d to the nearest float.
func (d Decimal) Float64() float64 {
	if d.d == nil {
		return 0
	}
	f, err := d.d.Float64()
	if err != nil {
		return math.NaN()
	}
	return f
}

// DateTime is a point in time tagged with its date kind
// (KindDate, KindDateTime or KindDateTimeNoTimeZone).
type DateTime struct {
	Time time.Time
	Kind Kind
}

func (DateTime) value() {}

// Guid is a row identifier.
type Guid uuid.UUID

func (Guid) value() {}

func (g Guid) String() string {
	return uuid.UUID(g).String()
}

// OptionValue is a member of an option set.
type OptionValue struct {
	OptionSet string
	Name      string
	Value     int64
}

func (OptionValue) value() {}

// Record is a row: a map of field names to values.
// Use SortedKeys() for deterministic iteration.
type Record struct {
	Table  string
	Fields map[string]Value
}

func (Record) value() {}

// Get returns the named field, or Blank when absent.
func (r Record) Get(name string) Value {
	if v, ok := r.Fields[name]; ok {
		return v
	}
	return Blank{}
}

// SortedKeys returns keys in RFC 8785 canonical order (UTF-16 code units).
// Go's sort.Strings uses UTF-8 which produces a different order.
func (r Record) SortedKeys() []string {
	keys := make([]string, 0, len(r.Fields))
	for k := range r.Fields {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

// Table is an ordered set of rows.
type Table struct {
	Table string
	Rows  []Record
}

func (Table) value() {}

// compareKeysRFC8785 compares strings using UTF-16 code unit ordering
// as required by RFC 8785 (Canonical JSON).
func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	minLen := min(len(a16), len(b16))
	for i := 0; i < minLen; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}

	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	}
	return 0
}

// TypeOf returns the formula type of v.
func TypeOf(v Value) FormulaType {
	switch val := v.(type) {
	case Blank, nil:
		return TypeBlank
	case Boolean:
		return TypeBoolean
	case String:
		return TypeString
	case Number:
		return TypeNumber
	case Decimal:
		return TypeDecimal
	case DateTime:
		return FormulaType{Kind: val.Kind}
	case Guid:
		return TypeGuid
	case OptionValue:
		return OptionSetType(val.OptionSet)
	case Record:
		return RecordType(val.Table)
	case Table:
		return TableType(val.Table)
	default:
		return TypeBlank
	}
}

// IsBlank reports whether v is Blank (or a nil interface).
func IsBlank(v Value) bool {
	switch v.(type) {
	case nil, Blank:
		return true
	}
	return false
}

// Compare orders two scalar values.
//
// Numbers compare across flows. Strings compare case-insensitively, as
// the formula language does. Blank sorts before everything else. The
// second result is false when the values are not comparable.
func Compare(a, b Value) (int, bool) {
	if IsBlank(a) || IsBlank(b) {
		switch {
		case IsBlank(a) && IsBlank(b):
			return 0, true
		case IsBlank(a):
			return -1, true
		default:
			return 1, true
		}
	}

	switch x := a.(type) {
	case Decimal:
		switch y := b.(type) {
		case Decimal:
			return x.Apd().Cmp(y.Apd()), true
		case Number:
			return compareFloat(x.Float64(), float64(y)), true
		}
	case Number:
		switch y := b.(type) {
		case Number:
			return compareFloat(float64(x), float64(y)), true
		case Decimal:
			return compareFloat(float64(x), y.Float64()), true
		}
	case String:
		if y, ok := b.(String); ok {
			return strings.Compare(strings.ToLower(string(x)), strings.ToLower(string(y))), true
		}
	case Boolean:
		if y, ok := b.(Boolean); ok {
			switch {
			case x == y:
				return 0, true
			case !bool(x):
				return -1, true
			default:
				return 1, true
			}
		}
	case DateTime:
		if y, ok := b.(DateTime); ok {
			return x.Time.Compare(y.Time), true
		}
	case Guid:
		if y, ok := b.(Guid); ok {
			return strings.Compare(x.String(), y.String()), true
		}
	case OptionValue:
		if y, ok := b.(OptionValue); ok && x.OptionSet == y.OptionSet {
			return compareInt(x.Value, y.Value), true
		}
	}
	return 0, false
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func compareInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
