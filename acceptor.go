package acceptor

import (
	"context"
	"errors"
	"fmt"
	"net"
	"path/filepath"
	"strconv"
	"sync/atomic"

	"github.com/ethereum-optimism/optimism/op-service/cliapp"

	"github.com/storefront-qa/sf-acceptor/exitcodes"
	"github.com/storefront-qa/sf-acceptor/logging"
	"github.com/storefront-qa/sf-acceptor/matrix"
	"github.com/storefront-qa/sf-acceptor/metrics"
	"github.com/storefront-qa/sf-acceptor/runner"
	"github.com/storefront-qa/sf-acceptor/service"
	"github.com/storefront-qa/sf-acceptor/types"
)

// acceptor implements the cliapp.Lifecycle interface.
var _ cliapp.Lifecycle = &acceptor{}

// acceptor runs the suite command once per environment of the matrix and
// reports the aggregate outcome.
type acceptor struct {
	config      *Config
	version     string
	configFile  string // absolute matrix path handed to every worker
	matrix      *types.Matrix
	coordinator runner.SuiteCoordinator
	formatter   ResultFormatter
	fileLogger  *logging.FileLogger // nil when file logging is disabled
	service     *service.Service    // nil when neither healthz nor metrics are enabled
	summary     atomic.Pointer[types.ExitSummary]

	running atomic.Bool

	shutdownCallback func(error) // Callback to signal application shutdown
}

func New(ctx context.Context, config *Config, version string, shutdownCallback func(error)) (*acceptor, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}

	config.Log.Debug("Creating acceptor with config",
		"configFile", config.ConfigFile,
		"suiteCommand", config.SuiteCommand,
		"taskIDVar", config.TaskIDVar,
		"drainMode", config.DrainMode,
		"logDir", config.LogDir)

	configFile, err := filepath.Abs(config.ConfigFile)
	if err != nil {
		return nil, NewRuntimeError(fmt.Errorf("failed to resolve config file %q: %w", config.ConfigFile, err))
	}
	m, err := matrix.Load(configFile)
	if err != nil {
		return nil, NewRuntimeError(err)
	}

	var fileLogger *logging.FileLogger
	var sink runner.WorkerLogSink
	if config.LogDir != "" {
		fileLogger, err = logging.NewFileLogger(config.LogDir)
		if err != nil {
			return nil, NewRuntimeError(fmt.Errorf("failed to create file logger: %w", err))
		}
		sink = fileLogger
	}

	coordinator, err := runner.NewCoordinator(runner.Config{
		Log:       config.Log,
		DrainMode: config.DrainMode,
		WorkDir:   config.WorkDir,
		LogSink:   sink,
		TailBytes: config.OutputTailBytes,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create suite coordinator: %w", err)
	}

	a := &acceptor{
		config:           config,
		version:          version,
		configFile:       configFile,
		matrix:           m,
		coordinator:      coordinator,
		formatter:        NewConsoleResultFormatter(config.Log, nil),
		fileLogger:       fileLogger,
		shutdownCallback: shutdownCallback,
	}
	if svcCfg, ok := serviceConfig(config); ok {
		svcCfg.Status = a.status
		a.service = service.New(config.Log, svcCfg)
	}
	config.Log.Info("acceptor.New: loaded matrix and created coordinator", "environments", len(m.Environments))
	return a, nil
}

// serviceConfig returns the listen addresses for the optional HTTP service.
func serviceConfig(config *Config) (service.Config, bool) {
	var cfg service.Config
	if config.HealthzEnabled {
		cfg.HealthzAddr = service.DefaultConfig().HealthzAddr
	}
	if config.Metrics.Enabled {
		cfg.MetricsAddr = net.JoinHostPort(config.Metrics.ListenAddr, strconv.Itoa(config.Metrics.ListenPort))
	}
	return cfg, cfg.HealthzAddr != "" || cfg.MetricsAddr != ""
}

// Start runs the matrix once and returns the aggregate outcome:
// nil when every worker passed, a TestFailureError when any failed and a
// RuntimeError when the run itself could not be performed.
// Start implements the cliapp.Lifecycle interface.
func (a *acceptor) Start(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			a.config.Log.Error("Runtime error occurred", "error", r)
			metrics.RecordErrorDetails("panic", fmt.Errorf("%v", r))
			err = NewRuntimeError(fmt.Errorf("panic: %v", r))
		}
	}()

	a.running.Store(true)
	if a.service != nil {
		a.service.Start(ctx)
	}

	a.config.Log.Info("Starting sf-acceptor", "version", a.version, "environments", len(a.matrix.Environments))

	if err := a.runSuite(ctx); err != nil {
		a.config.Log.Error("Runtime error running suite", "error", err)
		return err
	}

	summary := a.summary.Load()
	if summary.ExitCode() != exitcodes.Success {
		a.config.Log.Warn("Suite run completed with failures, returning exit code 1", "failed", summary.Failed())
		return NewTestFailureError(summary.String())
	}

	a.config.Log.Info("Suite run completed, exiting")
	if a.shutdownCallback != nil {
		go func() {
			a.shutdownCallback(nil)
		}()
	}
	return nil
}

// runSuite fans the suite command out over the matrix and reports the results
func (a *acceptor) runSuite(ctx context.Context) error {
	tmpl := runner.CommandTemplate{
		Command:   a.config.SuiteCommand,
		TaskIDVar: a.config.TaskIDVar,
		Env:       a.workerEnv(),
	}
	summary, err := a.coordinator.RunAll(ctx, a.matrix.Environments, tmpl)
	if err != nil {
		return NewRuntimeError(err)
	}
	a.summary.Store(summary)

	if a.fileLogger != nil {
		if err := a.fileLogger.LogResults(summary); err != nil {
			a.config.Log.Error("Failed to write run logs", "error", err)
		}
		if err := a.fileLogger.Complete(); err != nil {
			a.config.Log.Error("Failed to close run logs", "error", err)
		}
	}

	if err := a.formatter.FormatResults(summary); err != nil {
		a.config.Log.Error("Failed to format results", "error", err)
	}
	a.config.Log.Info("Suite run completed", "run_id", summary.RunID, "exitCode", summary.ExitCode())
	return nil
}

// workerEnv points every worker at the matrix the coordinator loaded, so a
// task id always names an entry of the same matrix.
func (a *acceptor) workerEnv() []string {
	if a.configFile == "" {
		return nil
	}
	return []string{matrix.ConfigFileEnvVar + "=" + a.configFile}
}

// Stop implements the cliapp.Lifecycle interface.
func (a *acceptor) Stop(ctx context.Context) error {
	a.config.Log.Info("Stopping sf-acceptor")

	if !a.running.Load() {
		a.config.Log.Debug("Service already stopped, nothing to do")
		return nil
	}
	a.running.Store(false)

	if a.service != nil {
		a.service.Shutdown()
	}

	a.config.Log.Info("sf-acceptor stopped successfully")
	return nil
}

// Stopped implements the cliapp.Lifecycle interface.
func (a *acceptor) Stopped() bool {
	return !a.running.Load()
}

// Summary returns the results of the last run, or nil before Start.
func (a *acceptor) Summary() *types.ExitSummary {
	return a.summary.Load()
}

// status is reported by the healthz endpoint.
func (a *acceptor) status() string {
	if s := a.summary.Load(); s != nil {
		return s.String()
	}
	if a.running.Load() {
		return fmt.Sprintf("running: %d environments", len(a.matrix.Environments))
	}
	return "idle"
}
