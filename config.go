package acceptor

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	opmetrics "github.com/ethereum-optimism/optimism/op-service/metrics"

	"github.com/storefront-qa/sf-acceptor/flags"
	"github.com/storefront-qa/sf-acceptor/runner"
)

// Config holds the application configuration
type Config struct {
	ConfigFile      string           // Environment matrix file
	SuiteCommand    string           // Command run once per environment
	TaskIDVar       string           // Variable carrying the task id into each worker
	DrainMode       runner.DrainMode // How worker output is relayed
	LogDir          string           // Directory for per-task logs, empty disables file logging
	WorkDir         string           // Working directory for workers
	OutputTailBytes int              // Output kept per worker for reporting
	HealthzEnabled  bool
	Metrics         opmetrics.CLIConfig
	Log             log.Logger
}

// NewConfig creates a new Config from cli context
func NewConfig(ctx *cli.Context, log log.Logger) (*Config, error) {
	if err := flags.CheckRequired(ctx); err != nil {
		return nil, fmt.Errorf("missing required flags: %w", err)
	}

	suiteCommand := ctx.String(flags.SuiteCommand.Name)
	if suiteCommand == "" {
		return nil, errors.New("suite command is required")
	}

	configFile := ctx.String(flags.Config.Name)
	if configFile == "" {
		return nil, errors.New("config file is required")
	}
	absConfigFile, err := filepath.Abs(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for config file '%s': %w", configFile, err)
	}

	drainMode := runner.DrainMode(ctx.String(flags.DrainMode.Name))
	if !drainMode.IsValid() {
		return nil, fmt.Errorf("invalid drain mode: %s. Must be one of: %s, %s",
			drainMode, runner.DrainConcurrent, runner.DrainSpawnOrder)
	}

	logDir := ctx.String(flags.LogDir.Name)
	if logDir != "" {
		logDir, err = filepath.Abs(logDir)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve absolute path for log directory '%s': %w", logDir, err)
		}
	}

	workDir := ctx.String(flags.WorkDir.Name)
	if workDir != "" {
		workDir, err = filepath.Abs(workDir)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve absolute path for working directory '%s': %w", workDir, err)
		}
	}

	metricsCfg := opmetrics.ReadCLIConfig(ctx)
	if err := metricsCfg.Check(); err != nil {
		return nil, fmt.Errorf("invalid metrics config: %w", err)
	}

	return &Config{
		ConfigFile:      absConfigFile,
		SuiteCommand:    suiteCommand,
		TaskIDVar:       ctx.String(flags.TaskIDVar.Name),
		DrainMode:       drainMode,
		LogDir:          logDir,
		WorkDir:         workDir,
		OutputTailBytes: ctx.Int(flags.OutputTailBytes.Name),
		HealthzEnabled:  ctx.Bool(flags.Healthz.Name),
		Metrics:         metricsCfg,
		Log:             log,
	}, nil
}
