package metadata

import (
	"testing"

	"github.com/cockroachdb/apd/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fxsql/internal/ir"
)

func TestCatalogAddTableDefaults(t *testing.T) {
	cat := NewCatalog()
	err := cat.AddTable(&Table{
		Name:       "account",
		PrimaryKey: "accountid",
		Columns: map[string]*Column{
			"accountid": {Type: ir.TypeGuid},
			"name":      {Type: ir.TypeString, Physical: "Name"},
		},
	})
	require.NoError(t, err)

	tbl, ok := cat.Table("account")
	require.True(t, ok)
	assert.Equal(t, "account", tbl.Physical)

	pk, ok := tbl.Column("accountid")
	require.True(t, ok)
	assert.Equal(t, "accountid", pk.Physical)
	assert.Equal(t, "account", pk.Table)

	name, _ := tbl.Column("name")
	assert.Equal(t, "Name", name.Physical)
	assert.Equal(t, []string{"accountid", "name"}, tbl.ColumnNames())
}

func TestCatalogAddTableErrors(t *testing.T) {
	cat := NewCatalog()
	assert.Error(t, cat.AddTable(&Table{}))

	require.NoError(t, cat.AddTable(&Table{Name: "a"}))
	assert.ErrorContains(t, cat.AddTable(&Table{Name: "a"}), "duplicate")

	err := cat.AddTable(&Table{Name: "b", PrimaryKey: "id"})
	assert.ErrorContains(t, err, "primary key")
}

func TestCatalogValidateCrossReferences(t *testing.T) {
	cat := NewCatalog()
	require.NoError(t, cat.AddTable(&Table{
		Name: "account",
		Columns: map[string]*Column{
			"contact": {Type: ir.RecordType("contact"), Target: "contact"},
		},
	}))
	assert.ErrorContains(t, cat.Validate(), "lookup target")

	cat = NewCatalog()
	require.NoError(t, cat.AddTable(&Table{
		Name: "account",
		Columns: map[string]*Column{
			"code": {Type: ir.OptionSetType("industry")},
		},
	}))
	assert.ErrorContains(t, cat.Validate(), "option set")

	require.NoError(t, cat.AddOptionSet(&OptionSet{Name: "industry", Options: map[string]int64{"Retail": 3}}))
	assert.NoError(t, cat.Validate())
}

func TestColumnWithinRange(t *testing.T) {
	lo, hi := apd.New(-100, 0), apd.New(100, 0)

	bounded := &Column{Min: apd.New(0, 0), Max: apd.New(50, 0)}
	assert.True(t, bounded.WithinRange(lo, hi))

	wide := &Column{Min: apd.New(0, 0), Max: apd.New(500, 0)}
	assert.False(t, wide.WithinRange(lo, hi))

	open := &Column{Min: apd.New(0, 0)}
	assert.False(t, open.WithinRange(lo, hi))
}

func TestOptionSetLookup(t *testing.T) {
	set := &OptionSet{Name: "industry", Options: map[string]int64{"Retail": 3}}
	v, ok := set.Lookup("Retail")
	assert.True(t, ok)
	assert.Equal(t, int64(3), v)

	_, ok = set.Lookup("Mining")
	assert.False(t, ok)
}
