package cli

import (
	"errors"
	"fmt"
	"os"

	"cuelang.org/go/cue/token"

	"github.com/roach88/fxsql/internal/ir"
	"github.com/roach88/fxsql/internal/metadata"
)

// LoadError represents an error that occurred while loading CLI input.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadMetadata loads and validates the CUE schema in dir.
func LoadMetadata(dir string) (*metadata.Catalog, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("metadata directory not found: %s", dir)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing metadata directory: %v", err)}
	}
	if !info.IsDir() {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}
	}

	cat, err := metadata.LoadDir(dir)
	if err != nil {
		var mdErr *metadata.LoadError
		if errors.As(err, &mdErr) {
			return nil, &LoadError{Code: ErrCodeSchema, Message: fmt.Sprintf("%s: %s", mdErr.Field, mdErr.Message), Pos: mdErr.Pos}
		}
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: err.Error()}
	}
	return cat, nil
}

// LoadExpression reads an expression tree from its YAML form.
func LoadExpression(path string) (ir.Node, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("expression file not found: %s", path)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("reading expression: %v", err)}
	}
	expr, err := ir.DecodeYAML(data)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeExpression, Message: err.Error()}
	}
	return expr, nil
}

// loadErrorCode returns the code of a LoadError, or the generic code.
func loadErrorCode(err error) (string, string) {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code, loadErr.Message
	}
	return ErrCodeGeneric, err.Error()
}

// Error code constants, unified across all CLI commands. Compile
// diagnostics keep their own E2xx kinds.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeLoadFailed  = "E004" // Input load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeSchema      = "E006" // Schema rejected
	ErrCodeWriteFailed = "E007" // File write error
	ErrCodeExpression  = "E008" // Expression YAML invalid
	ErrCodeDatabase    = "E009" // Database open failed
	ErrCodeRow         = "E010" // Row scope invalid
)
