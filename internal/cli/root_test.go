package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSchema = `package schema

option_set: tier: {
	Bronze: 1
	Gold:   3
}

table: owner: {
	primary_key: "ownerid"
	columns: {
		ownerid: {type: "guid"}
		name: {type: "string"}
	}
}

table: item: {
	primary_key: "itemid"
	columns: {
		itemid: {type: "guid"}
		price: {type: "decimal"}
		x: {type: "decimal"}
		tier: {type: "optionset", option_set: "tier"}
		ownerid: {type: "lookup", target: "owner"}
	}
}
`

// writeFile writes content under dir and returns the path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// schemaDir writes the test schema and returns its directory.
func schemaDir(t *testing.T, dir string) string {
	t.Helper()
	writeFile(t, dir, "schema/schema.cue", testSchema)
	return filepath.Join(dir, "schema")
}

// execute runs the root command with args and returns stdout, stderr.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "fxsql", cmd.Use)
	assert.Contains(t, cmd.Long, "T-SQL")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()

	for _, name := range []string{"compile", "query", "test"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err, "command %s should exist", name)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verbose := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verbose)
	assert.Equal(t, "v", verbose.Shorthand)
	assert.Equal(t, "false", verbose.DefValue)

	format := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, format)
	assert.Equal(t, "text", format.DefValue)
}

func TestQueryCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	query, _, err := cmd.Find([]string{"query"})
	require.NoError(t, err)

	for _, name := range []string{"metadata", "db", "driver", "table", "row", "max-rows", "max-steps"} {
		assert.NotNil(t, query.Flags().Lookup(name), "flag %s", name)
	}
	assert.Equal(t, "sqlite3", query.Flags().Lookup("driver").DefValue)
}

func TestInvalidFormat(t *testing.T) {
	dir := t.TempDir()
	expr := writeFile(t, dir, "expr.yaml", "{lit: 1}\n")

	_, _, err := execute(t, "compile", expr, "--format", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid format "xml"`)
}

func TestIsValidFormat(t *testing.T) {
	assert.True(t, isValidFormat("auto"))
	assert.False(t, isValidFormat("yaml"))
}
