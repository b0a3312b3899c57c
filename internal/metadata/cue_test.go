package metadata

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fxsql/internal/ir"
)

func TestLoadDir(t *testing.T) {
	cat, err := LoadDir("testdata/schema")
	require.NoError(t, err)

	assert.Equal(t, []string{"account", "contact"}, cat.Tables())

	account, ok := cat.Table("account")
	require.True(t, ok)
	assert.Equal(t, "AccountBase", account.Physical)
	assert.Equal(t, "accountid", account.PrimaryKey)

	revenue, ok := account.Column("revenue")
	require.True(t, ok)
	assert.Equal(t, ir.TypeDecimal, revenue.Type)
	assert.Equal(t, "Revenue", revenue.Physical)
	require.NotNil(t, revenue.Min)
	require.NotNil(t, revenue.Max)
	assert.Equal(t, "-1000000", revenue.Min.String())
	assert.Equal(t, "1000000", revenue.Max.String())

	code, _ := account.Column("industrycode")
	assert.Equal(t, ir.OptionSetType("industry"), code.Type)

	contact, _ := account.Column("primarycontactid")
	assert.True(t, contact.IsLookup())
	assert.Equal(t, "contact", contact.Target)
	assert.Equal(t, ir.RecordType("contact"), contact.Type)

	set, ok := cat.OptionSet("industry")
	require.True(t, ok)
	v, _ := set.Lookup("Consulting")
	assert.Equal(t, int64(2), v)
}

func TestLoadDirMissing(t *testing.T) {
	_, err := LoadDir("testdata/does-not-exist")
	assert.Error(t, err)
}

func TestCompileStringErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "unknown column type",
			src:  `table: t: columns: c: type: "blob"`,
			want: `unsupported column type "blob"`,
		},
		{
			name: "option set column without set",
			src:  `table: t: columns: c: type: "optionset"`,
			want: "option_set",
		},
		{
			name: "lookup without target",
			src:  `table: t: columns: c: type: "lookup"`,
			want: "target",
		},
		{
			name: "dangling lookup",
			src:  `table: t: columns: c: {type: "lookup", target: "missing"}`,
			want: "lookup target",
		},
		{
			name: "table without columns",
			src:  `table: t: physical: "T"`,
			want: "columns are required",
		},
		{
			name: "syntax error",
			src:  `table: {`,
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CompileString(tt.src)
			require.Error(t, err)
			if tt.want != "" {
				assert.Contains(t, err.Error(), tt.want)
			}
		})
	}
}

func TestCompileStringReportsPosition(t *testing.T) {
	_, err := CompileString("table: t: columns: c: type: \"blob\"\n")
	require.Error(t, err)

	var loadErr *LoadError
	require.True(t, errors.As(err, &loadErr))
	assert.Equal(t, "table.t.columns.c.type", loadErr.Field)
}
