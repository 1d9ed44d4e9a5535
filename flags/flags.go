package flags

import (
	"fmt"

	"github.com/urfave/cli/v2"

	opservice "github.com/ethereum-optimism/optimism/op-service"
	oplog "github.com/ethereum-optimism/optimism/op-service/log"
	opmetrics "github.com/ethereum-optimism/optimism/op-service/metrics"

	"github.com/storefront-qa/sf-acceptor/matrix"
	"github.com/storefront-qa/sf-acceptor/runner"
)

const EnvVarPrefix = "SF_ACCEPTOR"

var (
	SuiteCommand = &cli.StringFlag{
		Name:     "suite-command",
		Value:    "",
		Required: true,
		EnvVars:  opservice.PrefixEnvVar(EnvVarPrefix, "SUITE_COMMAND"),
		Usage:    "Command each worker runs, with the task id injected as an environment variable (eg. './bin/worker run')",
	}
	Config = &cli.StringFlag{
		Name:  "config",
		Value: matrix.DefaultConfigFile,
		// CONFIG_FILE is what existing suite configs and CI jobs already export.
		EnvVars: append(opservice.PrefixEnvVar(EnvVarPrefix, "CONFIG"), matrix.ConfigFileEnvVar),
		Usage:   "Path to the environment matrix config file",
	}
	TaskIDVar = &cli.StringFlag{
		Name:    "task-id-var",
		Value:   runner.DefaultTaskIDVar,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "TASK_ID_VAR"),
		Usage:   "Environment variable name used to pass the task id to each worker",
	}
	DrainMode = &cli.StringFlag{
		Name:    "drain-mode",
		Value:   string(runner.DrainConcurrent),
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "DRAIN_MODE"),
		Usage:   fmt.Sprintf("How worker output is relayed: '%s' (prefixed, as it arrives) or '%s' (one worker at a time)", runner.DrainConcurrent, runner.DrainSpawnOrder),
		Action: func(_ *cli.Context, v string) error {
			return validateDrainMode(v)
		},
	}
	LogDir = &cli.StringFlag{
		Name:    "logdir",
		Value:   "logs",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "LOGDIR"),
		Usage:   "Directory to store per-task worker logs. Set to empty to disable.",
	}
	WorkDir = &cli.StringFlag{
		Name:    "workdir",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "WORKDIR"),
		Usage:   "Working directory for worker processes (defaults to the current directory)",
	}
	OutputTailBytes = &cli.IntFlag{
		Name:    "output-tail-bytes",
		Value:   64 * 1024,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "OUTPUT_TAIL_BYTES"),
		Usage:   "Number of trailing output bytes kept per worker for the results report",
	}
	Healthz = &cli.BoolFlag{
		Name:    "healthz.enabled",
		Value:   false,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "HEALTHZ_ENABLED"),
		Usage:   "Serve /healthz while the run is in progress",
	}
)

var requiredFlags = []cli.Flag{
	SuiteCommand,
}

var optionalFlags = []cli.Flag{
	Config,
	TaskIDVar,
	DrainMode,
	LogDir,
	WorkDir,
	OutputTailBytes,
	Healthz,
}
var Flags []cli.Flag

func init() {
	optionalFlags = append(optionalFlags, oplog.CLIFlags(EnvVarPrefix)...)
	optionalFlags = append(optionalFlags, opmetrics.CLIFlags(EnvVarPrefix)...)

	Flags = append(requiredFlags, optionalFlags...)
}

func CheckRequired(ctx *cli.Context) error {
	for _, f := range requiredFlags {
		if !ctx.IsSet(f.Names()[0]) {
			return fmt.Errorf("flag %s is required", f.Names()[0])
		}
	}
	return nil
}

func validateDrainMode(v string) error {
	if !runner.DrainMode(v).IsValid() {
		return fmt.Errorf("drain-mode must be one of: %s, %s", runner.DrainConcurrent, runner.DrainSpawnOrder)
	}
	return nil
}
