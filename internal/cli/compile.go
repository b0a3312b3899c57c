package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"

	"github.com/roach88/fxsql/internal/compiler"
	"github.com/roach88/fxsql/internal/ir"
	"github.com/roach88/fxsql/internal/metadata"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Metadata string   // CUE schema directory
	Table    string   // row-scope table
	Float    bool     // floating-point numeric flow
	Disabled []string // functions to reject
	Name     string   // function name override
	Lang     string   // diagnostic language
	Output   string   // output file path
}

// CompileOutput is the JSON payload of a successful compile.
type CompileOutput struct {
	Name       string        `json:"name"`
	ReturnType string        `json:"return_type"`
	SQLType    string        `json:"sql_type"`
	Parameters []ParamOutput `json:"parameters"`
	Script     string        `json:"script"`
}

// ParamOutput describes one function parameter.
type ParamOutput struct {
	Name    string `json:"name"`
	SQLType string `json:"sql_type"`
	Column  string `json:"column"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <expression.yaml>",
		Short: "Compile an expression to a T-SQL scalar function",
		Long: `Compile a bound expression tree to a CREATE FUNCTION script.

Row-scope fields become function parameters, so --table needs the
schema given by --metadata. Unsupported functions and types are
reported as E2xx diagnostics.

Examples:
  fxsql compile expr.yaml
  fxsql compile expr.yaml --metadata ./schema --table account
  fxsql compile expr.yaml --metadata ./schema --table account --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Metadata, "metadata", "", "directory of CUE schema files")
	cmd.Flags().StringVar(&opts.Table, "table", "", "row-scope table (requires --metadata)")
	cmd.Flags().BoolVar(&opts.Float, "float", false, "use the floating-point numeric flow")
	cmd.Flags().StringSliceVar(&opts.Disabled, "disable", nil, "functions to reject (repeatable)")
	cmd.Flags().StringVar(&opts.Name, "name", "", "function name (default: content-addressed)")
	cmd.Flags().StringVar(&opts.Lang, "lang", "en", "language of compile diagnostics (BCP 47)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the script to a file")

	return cmd
}

func runCompile(opts *CompileOptions, exprPath string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	tag, err := language.Parse(opts.Lang)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, fmt.Sprintf("invalid --lang %q: %v", opts.Lang, err), nil)
	}
	if opts.Table != "" && opts.Metadata == "" {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "--table requires --metadata", nil)
	}

	expr, err := LoadExpression(exprPath)
	if err != nil {
		code, msg := loadErrorCode(err)
		return formatter.Fail(ExitCommandError, code, msg, nil)
	}

	var md metadata.Provider
	if opts.Metadata != "" {
		cat, err := LoadMetadata(opts.Metadata)
		if err != nil {
			code, msg := loadErrorCode(err)
			return formatter.Fail(ExitCommandError, code, msg, nil)
		}
		formatter.VerboseLog("Loaded %d table(s) from %s", len(cat.Tables()), opts.Metadata)
		md = cat
	}

	compileOpts := []compiler.Option{
		compiler.WithLogger(newLogger(opts.RootOptions, cmd)),
		compiler.WithFloatingPoint(opts.Float),
	}
	if opts.Table != "" {
		compileOpts = append(compileOpts, compiler.WithTable(opts.Table))
	}
	if opts.Name != "" {
		compileOpts = append(compileOpts, compiler.WithFunctionName(opts.Name))
	}
	if len(opts.Disabled) > 0 {
		fns := make([]ir.Func, len(opts.Disabled))
		for i, name := range opts.Disabled {
			fns[i] = ir.Func(name)
		}
		compileOpts = append(compileOpts, compiler.WithDisabledFunctions(fns...))
	}

	res, err := compiler.Compile(expr, md, compileOpts...)
	if err != nil {
		return outputCompileError(formatter, err, tag)
	}
	formatter.VerboseLog("Compiled %s: %d parameter(s), returns %s", res.Name, len(res.Parameters), res.ReturnType)

	script := res.Script()
	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, []byte(script), 0o644); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
		}
	}

	if formatter.JSON() {
		return formatter.Success(compileOutput(res, script))
	}

	if opts.Output != "" {
		fmt.Fprintf(formatter.Writer, "✓ Compiled %s (%s)\n", res.Name, describeParams(res.Parameters))
		fmt.Fprintf(formatter.Writer, "Wrote script to %s\n", opts.Output)
		return nil
	}
	fmt.Fprint(formatter.Writer, script)
	return nil
}

func compileOutput(res *compiler.Result, script string) CompileOutput {
	out := CompileOutput{
		Name:       res.Name,
		ReturnType: res.ReturnType.String(),
		SQLType:    res.SQLType,
		Parameters: make([]ParamOutput, len(res.Parameters)),
		Script:     script,
	}
	for i, p := range res.Parameters {
		out.Parameters[i] = ParamOutput{Name: p.Name, SQLType: p.SQLType, Column: p.Column.Name}
	}
	return out
}

func describeParams(params []compiler.Parameter) string {
	if len(params) == 0 {
		return "no parameters"
	}
	cols := make([]string, len(params))
	for i, p := range params {
		cols[i] = p.Column.Name
	}
	return "reads " + strings.Join(cols, ", ")
}

// outputCompileError reports a diagnostic, or a generic failure for
// errors that are not diagnostics. Both are command-level errors.
func outputCompileError(formatter *OutputFormatter, err error, tag language.Tag) error {
	var ce *compiler.CompileError
	if !errors.As(err, &ce) {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}

	details := map[string]any{"span": ce.Span.String()}
	if ce.Suggestion != "" {
		details["suggestion"] = string(ce.Suggestion)
	}
	if !formatter.JSON() {
		fmt.Fprintln(formatter.Writer, "✗ Compilation failed")
		fmt.Fprintf(formatter.Writer, "  at %s\n", ce.Span)
	}
	return formatter.Fail(ExitCommandError, string(ce.Kind), ce.Localize(tag), details)
}
