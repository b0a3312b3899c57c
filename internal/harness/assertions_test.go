package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compiledResult() *Result {
	r := NewResult()
	r.Script = "CREATE FUNCTION [dbo].[fn_x](@v0 decimal(23,10)) RETURNS decimal(23,10)\nAS\nBEGIN\n    RETURN @v0\nEND\n"
	r.ReturnType = "Decimal"
	r.Parameters = []string{"price"}
	r.Evaluations = []EvalOutcome{
		{Value: "7", Retrievals: []string{`SELECT "x" FROM "item" WHERE "x" = ?`}},
		{Error: "DIVIDE_BY_ZERO: division by zero"},
	}
	return r
}

func failedResult() *Result {
	r := NewResult()
	r.CompileError = "E201 at 0:3: function Sum is not supported"
	r.CompileErrorKind = "E201"
	return r
}

func TestEvaluateAssertions_AllPass(t *testing.T) {
	errs := EvaluateAssertions(compiledResult(), []Assertion{
		{Type: AssertCompiles},
		{Type: AssertReturns, Expect: "Decimal"},
		{Type: AssertParameters, Parameters: []string{"price"}},
		{Type: AssertSQLContains, Text: "RETURN @v0"},
		{Type: AssertSQLExcludes, Text: "SELECT"},
		{Type: AssertEvaluates, Step: 0, Expect: "7"},
		{Type: AssertRetrievalCount, Step: 0, Count: 1},
		{Type: AssertRetrievalSQL, Step: 0, Text: `"x" = ?`},
		{Type: AssertEvalError, Step: 1, Text: "DIVIDE_BY_ZERO"},
		{Type: AssertRetrievalCount, Step: 1, Count: 0},
	})
	assert.Empty(t, errs)
}

func TestEvaluateAssertions_CompileErrorKind(t *testing.T) {
	errs := EvaluateAssertions(failedResult(), []Assertion{{Type: AssertCompileError, Kind: "E201"}})
	assert.Empty(t, errs)

	errs = EvaluateAssertions(failedResult(), []Assertion{{Type: AssertCompileError, Kind: "E204"}})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "Expected: compile error E204")
	assert.Contains(t, errs[0], "function Sum is not supported")

	errs = EvaluateAssertions(compiledResult(), []Assertion{{Type: AssertCompileError, Kind: "E201"}})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "compiled successfully")
}

// TestEvaluateAssertions_CompileFailureFailsScriptChecks tests that every
// script assertion fails when there is no script.
func TestEvaluateAssertions_CompileFailureFailsScriptChecks(t *testing.T) {
	errs := EvaluateAssertions(failedResult(), []Assertion{
		{Type: AssertCompiles},
		{Type: AssertSQLContains, Text: "x"},
		{Type: AssertSQLExcludes, Text: "x"},
		{Type: AssertReturns, Expect: "Decimal"},
		{Type: AssertParameters, Parameters: []string{}},
	})
	assert.Len(t, errs, 5)
}

// TestEvaluateAssertions_CollectsEveryFailure tests that one failure does
// not stop later assertions.
func TestEvaluateAssertions_CollectsEveryFailure(t *testing.T) {
	errs := EvaluateAssertions(compiledResult(), []Assertion{
		{Type: AssertEvaluates, Step: 0, Expect: "8"},
		{Type: AssertCompiles},
		{Type: AssertParameters, Parameters: []string{"cost"}},
		{Type: AssertEvaluates, Step: 1, Expect: "1"},
		{Type: AssertRetrievalSQL, Step: 0, Text: "ORDER BY"},
	})
	require.Len(t, errs, 4)
	assert.Contains(t, errs[0], "assertion 0:")
	assert.Contains(t, errs[1], "assertion 2:")
	assert.Contains(t, errs[2], "assertion 3:")
	assert.Contains(t, errs[2], "error: DIVIDE_BY_ZERO")
	assert.Contains(t, errs[3], "assertion 4:")
	assert.Contains(t, errs[3], "none found")
}

func TestEvaluateAssertions_StepOutOfRange(t *testing.T) {
	errs := EvaluateAssertions(failedResult(), []Assertion{{Type: AssertEvaluates, Step: 0, Expect: "1"}})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "0 steps ran")
}

func TestEvaluateAssertions_UnknownType(t *testing.T) {
	errs := EvaluateAssertions(compiledResult(), []Assertion{{Type: "trace_contains"}})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "unknown assertion type: trace_contains")
}

func TestAssertionError_ErrorFormat(t *testing.T) {
	err := &AssertionError{
		Type:     AssertSQLContains,
		Expected: `script contains "CAST"`,
		Actual:   "it does not hold",
		Context:  "line one\nline two\n",
	}

	want := "Assertion failed: sql_contains\n" +
		"  Expected: script contains \"CAST\"\n" +
		"  Actual: it does not hold\n" +
		"\nContext:\n" +
		"  line one\n" +
		"  line two\n"
	assert.Equal(t, want, err.Error())
}

func TestAssertionError_NoContext(t *testing.T) {
	err := &AssertionError{Type: AssertCompiles, Expected: "compilation succeeds", Actual: "E201"}
	assert.NotContains(t, err.Error(), "Context:")
}
