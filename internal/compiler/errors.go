package compiler

import (
	"errors"
	"fmt"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"

	"github.com/roach88/fxsql/internal/ir"
)

// ErrorKind is a closed set of compile-time error codes.
type ErrorKind string

const (
	ErrFunctionNotSupported    ErrorKind = "E201"
	ErrFunctionDisabled        ErrorKind = "E202"
	ErrArgumentCount           ErrorKind = "E203"
	ErrArgumentType            ErrorKind = "E204"
	ErrArgumentPosition        ErrorKind = "E205"
	ErrLiteralRequired         ErrorKind = "E206"
	ErrUnsupportedResultType   ErrorKind = "E207"
	ErrConflictingOptionSets   ErrorKind = "E208"
	ErrIncompatibleBranchTypes ErrorKind = "E209"
	ErrUnsupportedFormat       ErrorKind = "E210"
	ErrUnknownColumn           ErrorKind = "E211"
	ErrUnsupportedNode         ErrorKind = "E212"
)

// templates holds the English message for each kind. Args are positional.
var templates = map[ErrorKind]string{
	ErrFunctionNotSupported:    "function %[1]s is not supported",
	ErrFunctionDisabled:        "function %[1]s is disabled",
	ErrArgumentCount:           "function %[1]s expects %[2]s arguments, got %[3]d",
	ErrArgumentType:            "argument %[2]d of %[1]s has unsupported type %[3]s",
	ErrArgumentPosition:        "argument %[2]d of %[1]s cannot be used here: %[3]s",
	ErrLiteralRequired:         "argument %[2]d of %[1]s must be a literal",
	ErrUnsupportedResultType:   "result type %[1]s cannot be stored in a column",
	ErrConflictingOptionSets:   "branches of %[1]s return values from different option sets %[2]s and %[3]s",
	ErrIncompatibleBranchTypes: "branches of %[1]s have incompatible types %[2]s and %[3]s",
	ErrUnsupportedFormat:       "format %[1]q is not supported: %[2]s",
	ErrUnknownColumn:           "column %[1]s is not defined on table %[2]s",
	ErrUnsupportedNode:         "%[1]s is not supported",
}

// suggestionTemplate is appended to ErrFunctionNotSupported when a
// supported alternative exists.
const suggestionTemplate = "use %[1]s instead"

// messages carries the English templates plus any translations.
var messages = func() *catalog.Builder {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for kind, tmpl := range templates {
		_ = b.SetString(language.English, string(kind), tmpl)
	}
	_ = b.SetString(language.English, suggestionTemplate, suggestionTemplate)

	_ = b.SetString(language.German, string(ErrFunctionNotSupported), "Funktion %[1]s wird nicht unterstützt")
	_ = b.SetString(language.German, string(ErrFunctionDisabled), "Funktion %[1]s ist deaktiviert")
	_ = b.SetString(language.German, string(ErrLiteralRequired), "Argument %[2]d von %[1]s muss ein Literal sein")
	_ = b.SetString(language.German, suggestionTemplate, "verwenden Sie stattdessen %[1]s")
	return b
}()

// CompileError is a diagnostic raised while translating a tree.
//
// Compile errors are values: they are returned, never logged, and reflect
// a formula the target cannot express rather than a defect.
type CompileError struct {
	Kind       ErrorKind
	Span       ir.Span
	Args       []any
	Suggestion ir.Func
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("%s [%s]: %s", e.Span, e.Kind, e.Localize(language.English))
}

// Localize renders the message for tag, falling back to English.
func (e *CompileError) Localize(tag language.Tag) string {
	p := message.NewPrinter(tag, message.Catalog(messages))
	msg := p.Sprintf(message.Key(string(e.Kind), templates[e.Kind]), e.Args...)
	if e.Suggestion != "" {
		msg += "; " + p.Sprintf(message.Key(suggestionTemplate, suggestionTemplate), string(e.Suggestion))
	}
	return msg
}

// IsKind reports whether err is a CompileError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var ce *CompileError
	return errors.As(err, &ce) && ce.Kind == kind
}

func newError(kind ErrorKind, span ir.Span, args ...any) *CompileError {
	return &CompileError{Kind: kind, Span: span, Args: args}
}

func argTypeError(call *ir.Call, i int, t ir.FormulaType) *CompileError {
	return newError(ErrArgumentType, call.Args[i].SourceSpan(), string(call.Func), i+1, t.String())
}

func literalRequired(call *ir.Call, i int) *CompileError {
	return newError(ErrLiteralRequired, call.Args[i].SourceSpan(), string(call.Func), i+1)
}

// suggestions names supported functions that do the same job as common
// unsupported spellings.
var suggestions = map[ir.Func]ir.Func{
	"Sum":          ir.FuncAdd,
	"Concat":       ir.FuncConcatenate,
	"RoundUpTo":    ir.FuncRoundUp,
	"DateTimeDiff": ir.FuncDateDiff,
}
