package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines a formula test scenario: one expression, compiled to
// SQL and optionally interpreted against seeded data, plus the assertions
// the outcome must satisfy.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Schema is inline CUE metadata. Mutually exclusive with SchemaDir.
	Schema string `yaml:"schema,omitempty"`

	// SchemaDir is a directory of CUE metadata files, relative to the
	// scenario file.
	SchemaDir string `yaml:"schema_dir,omitempty"`

	// Table is the row-scope table whose columns become parameters.
	Table string `yaml:"table,omitempty"`

	// Float selects the floating-point numeric flow.
	Float bool `yaml:"float,omitempty"`

	// Disabled lists functions compilation must reject.
	Disabled []string `yaml:"disabled,omitempty"`

	// FunctionName overrides the content-addressed function name.
	FunctionName string `yaml:"function_name,omitempty"`

	// Expression is the bound expression tree in ir.DecodeYAML form.
	Expression yaml.Node `yaml:"expression"`

	// Data seeds tables for evaluation, keyed by table name. Requires
	// metadata.
	Data map[string]DataTable `yaml:"data,omitempty"`

	// Evaluate lists rows to interpret the expression against.
	Evaluate []EvalStep `yaml:"evaluate,omitempty"`

	// Assertions validate the compiled and evaluated outcome.
	Assertions []Assertion `yaml:"assertions"`

	// EvalID is an optional fixed evaluation id prefix for deterministic
	// logs. Defaults to "scenario-eval".
	EvalID string `yaml:"eval_id,omitempty"`
}

// DataTable is the seed content of one table.
type DataTable struct {
	// Rows map column names to scalar values, decoded by column type.
	Rows []map[string]yaml.Node `yaml:"rows"`
}

// EvalStep is one interpretation of the expression.
type EvalStep struct {
	// Row is the row scope, decoded by the scenario table's column types.
	Row map[string]yaml.Node `yaml:"row,omitempty"`
}

// Assertion validates compile or evaluation output.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Kind is the expected compile error code (compile_error).
	Kind string `yaml:"kind,omitempty"`

	// Text is a substring to look for (sql_contains, sql_excludes,
	// eval_error, retrieval_sql).
	Text string `yaml:"text,omitempty"`

	// Expect is the expected return type (returns) or canonical JSON
	// value (evaluates).
	Expect string `yaml:"expect,omitempty"`

	// Parameters are the expected parameter columns, in order.
	Parameters []string `yaml:"parameters,omitempty"`

	// Step indexes Evaluate for evaluation assertions.
	Step int `yaml:"step,omitempty"`

	// Count is the expected number of retrievals (retrieval_count).
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertCompiles       = "compiles"
	AssertCompileError   = "compile_error"
	AssertSQLContains    = "sql_contains"
	AssertSQLExcludes    = "sql_excludes"
	AssertReturns        = "returns"
	AssertParameters     = "parameters"
	AssertEvaluates      = "evaluates"
	AssertEvalError      = "eval_error"
	AssertRetrievalCount = "retrieval_count"
	AssertRetrievalSQL   = "retrieval_sql"
)

// LoadScenario reads and parses a scenario YAML file. SchemaDir is
// resolved relative to the file's directory.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving SchemaDir relative to basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data, basePath)
}

// ParseScenario parses scenario YAML. Unknown fields are rejected so that
// typos fail loudly.
func ParseScenario(data []byte, basePath string) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.SchemaDir != "" && !filepath.IsAbs(scenario.SchemaDir) && basePath != "" {
		scenario.SchemaDir = filepath.Join(basePath, scenario.SchemaDir)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Expression.Kind == 0 {
		return fmt.Errorf("expression is required")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	if s.Schema != "" && s.SchemaDir != "" {
		return fmt.Errorf("schema and schema_dir are mutually exclusive")
	}
	if s.SchemaDir != "" {
		if _, err := os.Stat(s.SchemaDir); os.IsNotExist(err) {
			return fmt.Errorf("schema directory not found: %s", s.SchemaDir)
		}
	}
	if len(s.Data) > 0 && s.Schema == "" && s.SchemaDir == "" {
		return fmt.Errorf("data requires schema or schema_dir")
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a, len(s.Evaluate)); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion, steps int) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertCompiles:
	case AssertCompileError:
		if a.Kind == "" {
			return fmt.Errorf("assertions[%d]: kind is required for compile_error", index)
		}
	case AssertSQLContains, AssertSQLExcludes:
		if a.Text == "" {
			return fmt.Errorf("assertions[%d]: text is required for %s", index, a.Type)
		}
	case AssertReturns:
		if a.Expect == "" {
			return fmt.Errorf("assertions[%d]: expect is required for returns", index)
		}
	case AssertParameters:
		if a.Parameters == nil {
			return fmt.Errorf("assertions[%d]: parameters is required (use [] for none)", index)
		}
	case AssertEvaluates, AssertEvalError, AssertRetrievalCount, AssertRetrievalSQL:
		if a.Step < 0 || a.Step >= steps {
			return fmt.Errorf("assertions[%d]: step %d is out of range (%d evaluate steps)", index, a.Step, steps)
		}
		switch a.Type {
		case AssertEvaluates:
			if a.Expect == "" {
				return fmt.Errorf("assertions[%d]: expect is required for evaluates", index)
			}
		case AssertEvalError, AssertRetrievalSQL:
			if a.Text == "" {
				return fmt.Errorf("assertions[%d]: text is required for %s", index, a.Type)
			}
		case AssertRetrievalCount:
			if a.Count < 0 {
				return fmt.Errorf("assertions[%d]: count must be non-negative for retrieval_count", index)
			}
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
