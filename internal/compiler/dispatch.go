package compiler

import (
	"fmt"
	"sort"

	"github.com/roach88/fxsql/internal/ir"
)

// Generator emits the code for one builtin function. Generators read
// their arguments through the Context and return the fragment holding
// the result.
type Generator interface {
	Generate(c *Context, call *ir.Call) (RetVal, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(c *Context, call *ir.Call) (RetVal, error)

func (f GeneratorFunc) Generate(c *Context, call *ir.Call) (RetVal, error) {
	return f(c, call)
}

// variadic marks an entry without an upper argument bound.
const variadic = -1

type entry struct {
	gen     Generator
	minArgs int
	maxArgs int
}

// library maps each supported function to its generator. It is populated
// by the lib_*.go files and read-only afterwards.
var library = map[ir.Func]entry{}

func register(fn ir.Func, minArgs, maxArgs int, gen GeneratorFunc) {
	if _, dup := library[fn]; dup {
		panic(fmt.Sprintf("compiler: duplicate generator for %s", fn))
	}
	library[fn] = entry{gen: gen, minArgs: minArgs, maxArgs: maxArgs}
}

// Supported returns the functions with a generator, sorted by name.
func Supported() []ir.Func {
	fns := make([]ir.Func, 0, len(library))
	for fn := range library {
		fns = append(fns, fn)
	}
	sort.Slice(fns, func(i, j int) bool { return fns[i] < fns[j] })
	return fns
}

func (c *Context) dispatch(call *ir.Call) (RetVal, error) {
	e, ok := library[call.Func]
	if !ok {
		err := newError(ErrFunctionNotSupported, call.Source, string(call.Func))
		err.Suggestion = suggestions[call.Func]
		return RetVal{}, err
	}
	if c.opts.disabled[call.Func] {
		return RetVal{}, newError(ErrFunctionDisabled, call.Source, string(call.Func))
	}
	if n := len(call.Args); n < e.minArgs || (e.maxArgs != variadic && n > e.maxArgs) {
		return RetVal{}, newError(ErrArgumentCount, call.Source, string(call.Func), arity(e), n)
	}
	if c.opts.logger != nil {
		c.opts.logger.Debug("generate", "func", string(call.Func), "args", len(call.Args), "span", call.Source.String())
	}
	return e.gen.Generate(c, call)
}

func arity(e entry) string {
	switch {
	case e.maxArgs == variadic:
		return fmt.Sprintf("at least %d", e.minArgs)
	case e.minArgs == e.maxArgs:
		return fmt.Sprintf("%d", e.minArgs)
	default:
		return fmt.Sprintf("%d to %d", e.minArgs, e.maxArgs)
	}
}
