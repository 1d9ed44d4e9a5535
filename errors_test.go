package acceptor

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorClassification(t *testing.T) {
	base := errors.New("matrix file missing")

	tests := []struct {
		name        string
		err         error
		runtime     bool
		testFailure bool
	}{
		{name: "nil", err: nil},
		{name: "plain error", err: base},
		{name: "runtime error", err: NewRuntimeError(base), runtime: true},
		{name: "wrapped runtime error", err: fmt.Errorf("startup: %w", NewRuntimeError(base)), runtime: true},
		{name: "test failure", err: NewTestFailureError("1 failed"), testFailure: true},
		{name: "wrapped test failure", err: fmt.Errorf("run: %w", NewTestFailureError("1 failed")), testFailure: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.runtime, IsRuntimeError(tt.err))
			assert.Equal(t, tt.testFailure, IsTestFailureError(tt.err))
		})
	}
}

func TestRuntimeErrorUnwrap(t *testing.T) {
	base := errors.New("boom")
	err := NewRuntimeError(base)

	assert.ErrorIs(t, err, base)
	assert.Equal(t, "runtime error: boom", err.Error())
	assert.Equal(t, "test failure: 2 environments failed", NewTestFailureError("2 environments failed").Error())
}
