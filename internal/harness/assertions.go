package harness

import (
	"fmt"
	"slices"
	"strings"
)

// AssertionError is returned when an assertion fails.
// It includes the compiled output to help debug the failure.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
	Context  string // Script or evaluation detail
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if e.Context != "" {
		fmt.Fprintf(&buf, "\nContext:\n")
		for _, line := range strings.Split(strings.TrimRight(e.Context, "\n"), "\n") {
			fmt.Fprintf(&buf, "  %s\n", line)
		}
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion against the result and
// returns the failure messages. Assertions are independent: one failure
// does not stop the rest.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluateAssertion(result, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertion %d: %v", i, err))
		}
	}
	return errs
}

func evaluateAssertion(result *Result, a Assertion) error {
	switch a.Type {
	case AssertCompiles:
		return assertCompiles(result)
	case AssertCompileError:
		return assertCompileError(result, a)
	case AssertSQLContains:
		return assertSQL(result, a, true)
	case AssertSQLExcludes:
		return assertSQL(result, a, false)
	case AssertReturns:
		return assertReturns(result, a)
	case AssertParameters:
		return assertParameters(result, a)
	case AssertEvaluates, AssertEvalError, AssertRetrievalCount, AssertRetrievalSQL:
		return assertEvaluation(result, a)
	default:
		return fmt.Errorf("unknown assertion type: %s", a.Type)
	}
}

func assertCompiles(result *Result) error {
	if result.CompileError == "" {
		return nil
	}
	return &AssertionError{
		Type:     AssertCompiles,
		Expected: "compilation succeeds",
		Actual:   result.CompileError,
	}
}

func assertCompileError(result *Result, a Assertion) error {
	if result.CompileErrorKind == a.Kind {
		return nil
	}
	actual := "compiled successfully"
	if result.CompileError != "" {
		actual = result.CompileError
	}
	return &AssertionError{
		Type:     AssertCompileError,
		Expected: fmt.Sprintf("compile error %s", a.Kind),
		Actual:   actual,
		Context:  result.Script,
	}
}

func assertSQL(result *Result, a Assertion, want bool) error {
	if result.CompileError != "" {
		return &AssertionError{Type: a.Type, Expected: "a compiled script", Actual: result.CompileError}
	}
	if strings.Contains(result.Script, a.Text) == want {
		return nil
	}
	expected := fmt.Sprintf("script contains %q", a.Text)
	if !want {
		expected = fmt.Sprintf("script does not contain %q", a.Text)
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: expected,
		Actual:   "it does not hold",
		Context:  result.Script,
	}
}

func assertReturns(result *Result, a Assertion) error {
	if result.CompileError == "" && result.ReturnType == a.Expect {
		return nil
	}
	actual := result.ReturnType
	if result.CompileError != "" {
		actual = result.CompileError
	}
	return &AssertionError{
		Type:     AssertReturns,
		Expected: a.Expect,
		Actual:   actual,
	}
}

func assertParameters(result *Result, a Assertion) error {
	if result.CompileError == "" && slices.Equal(result.Parameters, a.Parameters) {
		return nil
	}
	return &AssertionError{
		Type:     AssertParameters,
		Expected: fmt.Sprintf("%v", a.Parameters),
		Actual:   fmt.Sprintf("%v", result.Parameters),
		Context:  result.Script,
	}
}

func assertEvaluation(result *Result, a Assertion) error {
	if a.Step < 0 || a.Step >= len(result.Evaluations) {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("evaluate step %d", a.Step),
			Actual:   fmt.Sprintf("%d steps ran", len(result.Evaluations)),
		}
	}
	out := result.Evaluations[a.Step]
	detail := describeOutcome(out)

	switch a.Type {
	case AssertEvaluates:
		if out.Error == "" && out.Value == a.Expect {
			return nil
		}
		actual := out.Value
		if out.Error != "" {
			actual = "error: " + out.Error
		}
		return &AssertionError{Type: a.Type, Expected: a.Expect, Actual: actual, Context: detail}

	case AssertEvalError:
		if strings.Contains(out.Error, a.Text) && out.Error != "" {
			return nil
		}
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("error containing %q", a.Text),
			Actual:   fmt.Sprintf("value %s, error %q", out.Value, out.Error),
			Context:  detail,
		}

	case AssertRetrievalCount:
		if len(out.Retrievals) == a.Count {
			return nil
		}
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%d retrievals", a.Count),
			Actual:   fmt.Sprintf("%d retrievals", len(out.Retrievals)),
			Context:  detail,
		}

	default: // AssertRetrievalSQL
		for _, sql := range out.Retrievals {
			if strings.Contains(sql, a.Text) {
				return nil
			}
		}
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("a retrieval containing %q", a.Text),
			Actual:   "none found",
			Context:  detail,
		}
	}
}

func describeOutcome(out EvalOutcome) string {
	var b strings.Builder
	for i, sql := range out.Retrievals {
		fmt.Fprintf(&b, "[%d] %s\n", i+1, sql)
	}
	return b.String()
}
