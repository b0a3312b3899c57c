package compiler

import (
	"log/slog"

	"github.com/cockroachdb/apd/v3"

	"github.com/roach88/fxsql/internal/ir"
)

// DefaultRangeLimit bounds every numeric result to [-limit, limit].
const DefaultRangeLimit = 100000000000

// Option configures a compilation.
type Option func(*options)

type options struct {
	table     string
	float     bool
	disabled  map[ir.Func]bool
	name      string
	rangeLo   *apd.Decimal
	rangeHi   *apd.Decimal
	logger    *slog.Logger
	maxLength int
}

func defaultOptions() *options {
	return &options{
		disabled:  make(map[ir.Func]bool),
		rangeLo:   apd.New(-DefaultRangeLimit, 0),
		rangeHi:   apd.New(DefaultRangeLimit, 0),
		maxLength: 4000,
	}
}

// WithTable sets the row-scope table whose columns become function
// parameters.
func WithTable(name string) Option {
	return func(o *options) {
		o.table = name
	}
}

// WithFloatingPoint selects the floating-point numeric flow. The default
// is fixed-point decimal.
func WithFloatingPoint(enabled bool) Option {
	return func(o *options) {
		o.float = enabled
	}
}

// WithDisabledFunctions rejects the named functions even though a
// generator exists for them.
func WithDisabledFunctions(fns ...ir.Func) Option {
	return func(o *options) {
		for _, fn := range fns {
			o.disabled[fn] = true
		}
	}
}

// WithFunctionName overrides the generated function name.
func WithFunctionName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithRange overrides the numeric result range check bounds.
//
// Default: [-DefaultRangeLimit, DefaultRangeLimit]
func WithRange(lo, hi *apd.Decimal) Option {
	return func(o *options) {
		o.rangeLo = lo
		o.rangeHi = hi
	}
}

// WithLogger receives debug output about generator dispatch.
// Compilation is silent when no logger is set.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}
