package engine

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/fxsql/internal/ir"
)

func TestRuntimeError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *RuntimeError
		want string
	}{
		{
			name: "bare",
			err:  &RuntimeError{Code: ErrCodeTypeMismatch, Message: "bad operand"},
			want: "TYPE_MISMATCH: bad operand",
		},
		{
			name: "located",
			err:  &RuntimeError{Code: ErrCodeDivideByZero, Message: "division by zero", Func: ir.FuncDiv, Span: ir.Span{Min: 1, Lim: 6}},
			want: "DIVIDE_BY_ZERO: division by zero (func=Div at 1:6)",
		},
		{
			name: "with eval",
			err:  &RuntimeError{Code: ErrCodeDivideByZero, Message: "division by zero", EvalID: "e1", Func: ir.FuncMod},
			want: "DIVIDE_BY_ZERO: division by zero (eval=e1, func=Mod at 0:0)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestErrorHelpers_Wrapped(t *testing.T) {
	dz := fmt.Errorf("outer: %w", &RuntimeError{Code: ErrCodeDivideByZero})
	assert.True(t, IsRuntimeError(dz))
	assert.True(t, IsDivideByZero(dz))

	tm := &RuntimeError{Code: ErrCodeTypeMismatch}
	assert.False(t, IsDivideByZero(tm))

	cause := errors.New("cause")
	ie := fmt.Errorf("outer: %w", &InternalError{Message: "bad tree", Err: cause})
	assert.True(t, IsInternalError(ie))
	assert.ErrorIs(t, ie, cause)
	assert.False(t, IsRuntimeError(ie))
}
