package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const itemSchema = `
table: item: {
	primary_key: "itemid"
	columns: {
		itemid: {type: "guid"}
		price: {type: "decimal"}
		label: {type: "string"}
	}
}
`

// exprNode parses an expression in its YAML fixture form.
func exprNode(t *testing.T, src string) yaml.Node {
	t.Helper()
	var doc yaml.Node
	require.NoError(t, yaml.Unmarshal([]byte(src), &doc))
	return *doc.Content[0]
}

// rowNodes parses a row mapping for an evaluate step.
func rowNodes(t *testing.T, src string) map[string]yaml.Node {
	t.Helper()
	var row map[string]yaml.Node
	require.NoError(t, yaml.Unmarshal([]byte(src), &row))
	return row
}

func loadTestScenario(t *testing.T, name string) *Scenario {
	t.Helper()
	s, err := LoadScenario("testdata/scenarios/" + name + ".yaml")
	require.NoError(t, err)
	return s
}

// TestRun_ModSign tests that a compiled scenario reports its parameters
// and that the interpreter honors the divisor's sign.
func TestRun_ModSign(t *testing.T) {
	result, err := Run(loadTestScenario(t, "mod_sign"))
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Empty(t, result.CompileError)
	assert.Equal(t, "Decimal", result.ReturnType)
	assert.Equal(t, []string{"price"}, result.Parameters)
	assert.Contains(t, result.Script, "CREATE FUNCTION [dbo].[fn_mod_sign]")

	require.Len(t, result.Evaluations, 2)
	assert.Equal(t, "-2", result.Evaluations[0].Value)
	assert.Equal(t, "-1", result.Evaluations[1].Value)
	assert.Empty(t, result.Evaluations[0].Retrievals)
}

// TestRun_DelegatedRetrieval tests that a retrieval is interpreted against
// the seeded store and recorded as the SQL it ran, even though the
// expression cannot be compiled to a scalar function.
func TestRun_DelegatedRetrieval(t *testing.T) {
	result, err := Run(loadTestScenario(t, "retrieve_and_filter"))
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, "E212", result.CompileErrorKind)
	assert.Empty(t, result.Script)

	require.Len(t, result.Evaluations, 2)
	first := result.Evaluations[0]
	assert.Equal(t, `"00000000-0000-7000-8000-000000000003"`, first.Value)
	require.Len(t, first.Retrievals, 1)
	assert.Contains(t, first.Retrievals[0], `FROM "item" WHERE ("x" = ? AND "y" > ?)`)
	assert.Contains(t, first.Retrievals[0], "LIMIT ?")

	assert.Equal(t, "null", result.Evaluations[1].Value)
}

// TestRun_LookupNavigation tests the related-row read on both paths.
func TestRun_LookupNavigation(t *testing.T) {
	result, err := Run(loadTestScenario(t, "lookup_owner"))
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, []string{"ownerid"}, result.Parameters)
	assert.Contains(t, result.Script, "SELECT TOP(1)")
	assert.Equal(t, `"owner: Grace"`, result.Evaluations[0].Value)
	assert.Empty(t, result.Evaluations[1].Retrievals, "a blank lookup is not retrieved")
}

// TestRun_InlineSchema tests a scenario built in code with inline CUE.
func TestRun_InlineSchema(t *testing.T) {
	scenario := &Scenario{
		Name:        "inline",
		Description: "Upper-cases a label",
		Schema:      itemSchema,
		Table:       "item",
		Expression: exprNode(t, `
call: Upper
type: String
args:
  - {field: label, type: String}
`),
		Evaluate: []EvalStep{
			{Row: rowNodes(t, `{label: widget}`)},
			{Row: rowNodes(t, `{}`)},
		},
		Assertions: []Assertion{
			{Type: AssertCompiles},
			{Type: AssertReturns, Expect: "String"},
			{Type: AssertSQLContains, Text: "UPPER("},
			{Type: AssertEvaluates, Step: 0, Expect: `"WIDGET"`},
			{Type: AssertEvaluates, Step: 1, Expect: `""`},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

// TestRun_WithoutMetadata tests that evaluation works with no schema,
// using an empty in-memory data service.
func TestRun_WithoutMetadata(t *testing.T) {
	result, err := Run(loadTestScenario(t, "disabled_function"))
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, "E202", result.CompileErrorKind)
	assert.Equal(t, `"ABC"`, result.Evaluations[0].Value)
}

// TestRun_EvaluationErrorIsOutcome tests that a runtime error is recorded
// per step rather than failing the run.
func TestRun_EvaluationErrorIsOutcome(t *testing.T) {
	result, err := Run(loadTestScenario(t, "divide_guard"))
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, "2.25", result.Evaluations[0].Value)
	assert.Empty(t, result.Evaluations[1].Value)
	assert.Contains(t, result.Evaluations[1].Error, "DIVIDE_BY_ZERO")
}

// TestRun_FailedAssertions tests that failures are collected, not fatal.
func TestRun_FailedAssertions(t *testing.T) {
	scenario := &Scenario{
		Name:        "wrong",
		Description: "Expects the wrong things",
		Expression:  exprNode(t, `{call: Add, type: Decimal, args: [{lit: 1}, {lit: 2}]}`),
		Evaluate:    []EvalStep{{}},
		Assertions: []Assertion{
			{Type: AssertCompileError, Kind: "E201"},
			{Type: AssertEvaluates, Step: 0, Expect: "4"},
			{Type: AssertCompiles},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "assertion 0:")
	assert.Contains(t, result.Errors[1], "assertion 1:")
	assert.Equal(t, "3", result.Evaluations[0].Value)
}

// TestRun_Deterministic tests that two runs produce identical snapshots.
func TestRun_Deterministic(t *testing.T) {
	scenario := loadTestScenario(t, "retrieve_and_filter")

	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)

	assert.Equal(t, Snapshot(scenario.Name, first), Snapshot(scenario.Name, second))
}

// TestRun_DefaultFunctionNameIsStable tests that the content-addressed
// name does not depend on the run.
func TestRun_DefaultFunctionNameIsStable(t *testing.T) {
	scenario := &Scenario{
		Name:        "named",
		Description: "No explicit function name",
		Expression:  exprNode(t, `{call: Add, type: Decimal, args: [{lit: 1}, {lit: 2}]}`),
		Assertions:  []Assertion{{Type: AssertSQLContains, Text: "CREATE FUNCTION [dbo].[fn_"}},
	}

	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)

	assert.True(t, first.Pass, "errors: %v", first.Errors)
	assert.Equal(t, first.Script, second.Script)
}

// TestRun_UnknownRowColumn tests that a row naming a column the table
// does not have is a harness error.
func TestRun_UnknownRowColumn(t *testing.T) {
	scenario := &Scenario{
		Name:        "bad_row",
		Description: "Row uses an unknown column",
		Schema:      itemSchema,
		Table:       "item",
		Expression:  exprNode(t, `{field: price, type: Decimal}`),
		Evaluate:    []EvalStep{{Row: rowNodes(t, `{cost: 1}`)}},
		Assertions:  []Assertion{{Type: AssertCompiles}},
	}

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `column "cost" is not defined on table "item"`)
}

// TestRun_BadSchema tests that invalid inline metadata fails the run.
func TestRun_BadSchema(t *testing.T) {
	scenario := &Scenario{
		Name:        "bad_schema",
		Description: "Schema with an unknown column type",
		Schema:      `table: t: columns: c: type: "blob"`,
		Expression:  exprNode(t, `{lit: 1}`),
		Assertions:  []Assertion{{Type: AssertCompiles}},
	}

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load metadata")
}

// TestRunContext_Cancelled tests that a cancelled context surfaces as an
// evaluation error.
func TestRunContext_Cancelled(t *testing.T) {
	scenario := loadTestScenario(t, "lookup_owner")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := RunContext(ctx, scenario)
	if err != nil {
		// Seeding the store may already observe the cancellation.
		assert.ErrorIs(t, err, context.Canceled)
		return
	}
	assert.NotEmpty(t, result.Evaluations[0].Error)
}

func TestResult_AddError(t *testing.T) {
	r := NewResult()
	assert.True(t, r.Pass)

	r.AddError("first")
	r.AddError("second")
	assert.False(t, r.Pass)
	assert.Equal(t, []string{"first", "second"}, r.Errors)
}
