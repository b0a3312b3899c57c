package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/fxsql/internal/engine"
	"github.com/roach88/fxsql/internal/harness"
	"github.com/roach88/fxsql/internal/ir"
	"github.com/roach88/fxsql/internal/querysql"
	"github.com/roach88/fxsql/internal/store"
)

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	*RootOptions
	Metadata string
	Database string
	Driver   string
	Table    string
	Row      string // YAML mapping of row-scope values
	MaxRows  int
	MaxSteps int

	// IDGenerator overrides evaluation ids (for testing).
	IDGenerator engine.IDGenerator
}

// QueryOutput is the JSON payload of a successful evaluation.
type QueryOutput struct {
	EvalID     string          `json:"eval_id"`
	Value      json.RawMessage `json:"value"`
	Steps      int             `json:"steps"`
	Retrievals []string        `json:"retrievals"`
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query <expression.yaml>",
		Short: "Interpret an expression against a database",
		Long: `Interpret a bound expression, delegating its retrievals to a database.

Retrieval calls (__retrieveMultiple, __retrieveSingle, __retrieveGUID)
become parameterised SELECTs against --db. The value is printed as
canonical JSON.

Examples:
  fxsql query expr.yaml --metadata ./schema --db ./data.db
  fxsql query expr.yaml --metadata ./schema --db ./data.db --table item --row '{price: 7}'
  fxsql query expr.yaml --metadata ./schema --driver pgx --db postgres://localhost/fx`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Metadata, "metadata", "", "directory of CUE schema files (required)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "database path or DSN (required)")
	cmd.Flags().StringVar(&opts.Driver, "driver", store.DefaultDriver, "database/sql driver (sqlite3|sqlite|pgx)")
	cmd.Flags().StringVar(&opts.Table, "table", "", "table of the row scope")
	cmd.Flags().StringVar(&opts.Row, "row", "", "row-scope values as a YAML mapping")
	cmd.Flags().IntVar(&opts.MaxRows, "max-rows", 0, "maximum rows a retrieval may return (0 = unlimited)")
	cmd.Flags().IntVar(&opts.MaxSteps, "max-steps", 0, "maximum evaluation steps (0 = default)")
	_ = cmd.MarkFlagRequired("metadata")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runQuery(opts *QueryOptions, exprPath string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := newLogger(opts.RootOptions, cmd)

	dialect, err := querysql.DialectFor(opts.Driver)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeDatabase, err.Error(), nil)
	}

	expr, err := LoadExpression(exprPath)
	if err != nil {
		code, msg := loadErrorCode(err)
		return formatter.Fail(ExitCommandError, code, msg, nil)
	}
	cat, err := LoadMetadata(opts.Metadata)
	if err != nil {
		code, msg := loadErrorCode(err)
		return formatter.Fail(ExitCommandError, code, msg, nil)
	}

	var raw map[string]yaml.Node
	if opts.Row != "" {
		if err := yaml.Unmarshal([]byte(opts.Row), &raw); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeRow, fmt.Sprintf("parsing --row: %v", err), nil)
		}
	}
	row, err := harness.DecodeRow(cat, opts.Table, raw)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeRow, err.Error(), nil)
	}

	logger.Debug("opening database", "driver", opts.Driver, "db", opts.Database)
	st, err := store.OpenDriver(opts.Driver, opts.Database, cat)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeDatabase, fmt.Sprintf("failed to open database: %v", err), nil)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	engineOpts := []engine.Option{
		engine.WithMetadata(cat),
		engine.WithLogger(logger),
	}
	if opts.MaxRows > 0 {
		engineOpts = append(engineOpts, engine.WithMaxRows(opts.MaxRows))
	}
	if opts.MaxSteps > 0 {
		engineOpts = append(engineOpts, engine.WithMaxSteps(opts.MaxSteps))
	}
	if opts.IDGenerator != nil {
		engineOpts = append(engineOpts, engine.WithIDGenerator(opts.IDGenerator))
	}
	ev := engine.New(st, engineOpts...)

	evaluation, err := ev.Run(cmd.Context(), expr, row)

	sqlc := querysql.NewCompiler(cat, dialect)
	retrievals := make([]string, 0, len(evaluation.Retrievals))
	for _, r := range evaluation.Retrievals {
		stmt, err := sqlc.Compile(r.Request)
		if err != nil {
			retrievals = append(retrievals, fmt.Sprintf("invalid request: %v", err))
			continue
		}
		retrievals = append(retrievals, stmt.SQL)
		formatter.VerboseLog("[%d] %s", r.Seq, stmt.SQL)
	}

	if err != nil {
		return outputEvalError(formatter, evaluation.ID, err)
	}

	value, err := ir.MarshalCanonical(evaluation.Value)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeGeneric, err.Error(), nil)
	}

	if formatter.JSON() {
		return formatter.Success(QueryOutput{
			EvalID:     evaluation.ID,
			Value:      value,
			Steps:      evaluation.Steps,
			Retrievals: retrievals,
		})
	}
	fmt.Fprintln(formatter.Writer, string(value))
	return nil
}

// outputEvalError reports a failed evaluation with its runtime code.
func outputEvalError(formatter *OutputFormatter, evalID string, err error) error {
	details := map[string]any{"eval_id": evalID}

	var re *engine.RuntimeError
	if errors.As(err, &re) {
		if re.Func != "" {
			details["func"] = string(re.Func)
			details["span"] = re.Span.String()
		}
		return formatter.Fail(ExitFailure, string(re.Code), re.Message, details)
	}
	if engine.IsInternalError(err) {
		return formatter.Fail(ExitFailure, "INTERNAL", err.Error(), details)
	}
	return formatter.Fail(ExitFailure, ErrCodeGeneric, err.Error(), details)
}
