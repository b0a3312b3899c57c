package ir

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueSealed(t *testing.T) {
	// Compile-time check that the variants implement Value.
	var _ Value = Blank{}
	var _ Value = Boolean(true)
	var _ Value = String("")
	var _ Value = Number(0)
	var _ Value = Decimal{}
	var _ Value = DateTime{}
	var _ Value = Guid{}
	var _ Value = OptionValue{}
	var _ Value = Record{}
	var _ Value = Table{}
}

func TestNewDecimal(t *testing.T) {
	d, err := NewDecimal("123.4500")
	require.NoError(t, err)
	assert.Equal(t, "123.4500", d.String())
	assert.InDelta(t, 123.45, d.Float64(), 1e-9)

	_, err = NewDecimal("abc")
	assert.Error(t, err)

	_, err = NewDecimal("NaN")
	assert.Error(t, err)

	assert.Panics(t, func() { MustDecimal("1..2") })
}

func TestDecimalZeroValue(t *testing.T) {
	var d Decimal
	assert.Equal(t, "0", d.String())
	assert.Equal(t, float64(0), d.Float64())
	assert.Equal(t, "0", d.Apd().String())
}

func TestDecimalApdIsCopy(t *testing.T) {
	d := DecimalFromInt(5)
	a := d.Apd()
	a.SetInt64(9)
	assert.Equal(t, "5", d.String())
}

func TestTypeOf(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		want FormulaType
	}{
		{"nil", nil, TypeBlank},
		{"blank", Blank{}, TypeBlank},
		{"bool", Boolean(false), TypeBoolean},
		{"string", String("x"), TypeString},
		{"number", Number(1), TypeNumber},
		{"decimal", MustDecimal("1"), TypeDecimal},
		{"date", DateTime{Kind: KindDate}, TypeDate},
		{"guid", Guid(uuid.Nil), TypeGuid},
		{"option", OptionValue{OptionSet: "industry"}, OptionSetType("industry")},
		{"record", Record{Table: "account"}, RecordType("account")},
		{"table", Table{Table: "account"}, TableType("account")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TypeOf(tt.v))
		})
	}
}

func TestRecordGet(t *testing.T) {
	r := Record{Fields: map[string]Value{"name": String("Contoso")}}
	assert.Equal(t, String("Contoso"), r.Get("name"))
	assert.Equal(t, Blank{}, r.Get("missing"))
}

func TestSortedKeysUTF16Order(t *testing.T) {
	r := Record{Fields: map[string]Value{
		"\uE000":     Blank{},
		"\U00010000": Blank{},
		"b":          Blank{},
		"a":          Blank{},
	}}
	assert.Equal(t, []string{"a", "b", "\U00010000", "\uE000"}, r.SortedKeys())
}

func TestCompareKeysRFC8785(t *testing.T) {
	assert.Equal(t, 0, compareKeysRFC8785("abc", "abc"))
	assert.Equal(t, -1, compareKeysRFC8785("ab", "abc"))
	assert.Equal(t, 1, compareKeysRFC8785("b", "abc"))
	assert.Equal(t, -1, compareKeysRFC8785("\U00010000", "\uE000"))
}

func TestCompare(t *testing.T) {
	day := func(d int) DateTime {
		return DateTime{Time: time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC), Kind: KindDate}
	}

	tests := []struct {
		name string
		a, b Value
		want int
		ok   bool
	}{
		{"decimals", MustDecimal("1.50"), MustDecimal("1.5"), 0, true},
		{"decimal vs number", MustDecimal("2"), Number(1.5), 1, true},
		{"number vs decimal", Number(-1), MustDecimal("0"), -1, true},
		{"strings ignore case", String("abc"), String("ABC"), 0, true},
		{"strings order", String("apple"), String("Banana"), -1, true},
		{"booleans", Boolean(false), Boolean(true), -1, true},
		{"dates", day(2), day(1), 1, true},
		{"blank first", Blank{}, Number(0), -1, true},
		{"blank last", String(""), nil, 1, true},
		{"both blank", nil, Blank{}, 0, true},
		{"options", OptionValue{OptionSet: "s", Value: 1}, OptionValue{OptionSet: "s", Value: 3}, -1, true},
		{"options of different sets", OptionValue{OptionSet: "s"}, OptionValue{OptionSet: "t"}, 0, false},
		{"string vs number", String("1"), Number(1), 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Compare(tt.a, tt.b)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}
