package main

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/storefront-qa/sf-acceptor/matrix"
)

func resolveConfig(t *testing.T, args ...string) string {
	t.Helper()
	var got string
	// Apply writes env values back into the flag, so each run gets its own copy
	flag := *ConfigFlag
	app := &cli.App{
		Name:  "sf-worker",
		Flags: []cli.Flag{&flag},
		Action: func(c *cli.Context) error {
			got = c.String(flag.Name)
			return nil
		},
	}
	require.NoError(t, app.Run(append([]string{"sf-worker"}, args...)))
	return got
}

func TestConfigFlagPrefersCoordinatorPath(t *testing.T) {
	t.Setenv("SF_WORKER_CONFIG", "config/local.conf.yml")
	t.Setenv(matrix.ConfigFileEnvVar, "/run/parallel.conf.yml")
	assert.Equal(t, "/run/parallel.conf.yml", resolveConfig(t))
	assert.Equal(t, "explicit.yml", resolveConfig(t, "--config", "explicit.yml"))
}

// unsetenv removes key for the rest of the test; an empty value would still count as set.
func unsetenv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	require.NoError(t, os.Unsetenv(key))
}

func TestConfigFlagFallbacks(t *testing.T) {
	unsetenv(t, matrix.ConfigFileEnvVar)
	t.Setenv("SF_WORKER_CONFIG", "config/local.conf.yml")
	assert.Equal(t, "config/local.conf.yml", resolveConfig(t))

	unsetenv(t, "SF_WORKER_CONFIG")
	assert.Equal(t, matrix.DefaultConfigFile, resolveConfig(t))
}
