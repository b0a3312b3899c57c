package harness

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every assertion held.
	Pass bool `json:"pass"`

	// Script is the compiled CREATE FUNCTION statement, empty when
	// compilation failed.
	Script string `json:"script,omitempty"`

	// ReturnType is the compiled function's formula type.
	ReturnType string `json:"return_type,omitempty"`

	// Parameters lists the columns the function reads, in order.
	Parameters []string `json:"parameters,omitempty"`

	// CompileError is the compile diagnostic, if any.
	CompileError string `json:"compile_error,omitempty"`

	// CompileErrorKind is the diagnostic's code, e.g. "E204".
	CompileErrorKind string `json:"compile_error_kind,omitempty"`

	// Evaluations holds one entry per evaluate step, in order.
	Evaluations []EvalOutcome `json:"evaluations,omitempty"`

	// Errors contains assertion failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// EvalOutcome is the result of interpreting the expression for one row.
type EvalOutcome struct {
	// Value is the canonical JSON of the result, empty on error.
	Value string `json:"value,omitempty"`

	// Error is the evaluation error message, if any.
	Error string `json:"error,omitempty"`

	// Retrievals holds the SQL issued for each data request, in order.
	Retrievals []string `json:"retrievals,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Errors: []string{},
	}
}

// AddError adds an assertion failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
