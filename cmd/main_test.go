package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/urfave/cli/v2"

	acceptor "github.com/storefront-qa/sf-acceptor"
	"github.com/storefront-qa/sf-acceptor/exitcodes"
)

func TestExitCoder(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"runtime error", acceptor.NewRuntimeError(errors.New("config missing")), exitcodes.RuntimeErr},
		{"test failure", acceptor.NewTestFailureError("1 of 3 environments failed"), exitcodes.TestFailure},
		{"explicit exit coder", cli.Exit("custom", 7), 7},
		{"unclassified", errors.New("flag provided but not defined"), exitcodes.RuntimeErr},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, exitCoder(tt.err).ExitCode())
		})
	}
}

func TestNewApp(t *testing.T) {
	app := newApp()
	assert.Equal(t, "sf-acceptor", app.Name)
	assert.NotEmpty(t, app.Flags)
	assert.NotNil(t, app.ExitErrHandler)
}
