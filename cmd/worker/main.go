package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/log"
	"github.com/honeycombio/otel-config-go/otelconfig"
	"github.com/urfave/cli/v2"

	"github.com/ethereum-optimism/optimism/devnet-sdk/telemetry"
	opservice "github.com/ethereum-optimism/optimism/op-service"
	"github.com/ethereum-optimism/optimism/op-service/ctxinterrupt"
	oplog "github.com/ethereum-optimism/optimism/op-service/log"

	"github.com/storefront-qa/sf-acceptor/exitcodes"
	"github.com/storefront-qa/sf-acceptor/matrix"
	"github.com/storefront-qa/sf-acceptor/session"
	"github.com/storefront-qa/sf-acceptor/worker"
)

const EnvVarPrefix = "SF_WORKER"

var (
	Version   = "v0.1.0"
	GitCommit = ""
	GitDate   = ""
)

var (
	ConfigFlag = &cli.StringFlag{
		Name:    "config",
		Value:   matrix.DefaultConfigFile,
		EnvVars: append([]string{matrix.ConfigFileEnvVar}, opservice.PrefixEnvVar(EnvVarPrefix, "CONFIG")...),
		Usage:   "Path to the environment matrix config file. CONFIG_FILE, set by the coordinator, takes precedence",
	}
	TaskIDVarFlag = &cli.StringFlag{
		Name:    "task-id-var",
		Value:   session.TaskIDEnvVar,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "TASK_ID_VAR"),
		Usage:   "Environment variable holding this worker's task id",
	}
	BaseURLFlag = &cli.StringFlag{
		Name:    "base-url",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "BASE_URL"),
		Usage:   "Storefront URL that page paths are resolved against",
	}
	FormatFlag = &cli.StringFlag{
		Name:    "format",
		Value:   "pretty",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "FORMAT"),
		Usage:   "Scenario output format (pretty, progress, cucumber, junit)",
	}
	TagsFlag = &cli.StringFlag{
		Name:    "tags",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "TAGS"),
		Usage:   "Tag expression selecting the scenarios to run (eg. '@smoke && ~@wip')",
	}
	StrictFlag = &cli.BoolFlag{
		Name:    "strict",
		Value:   true,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "STRICT"),
		Usage:   "Fail on undefined or pending steps",
	}
	TimeoutFlag = &cli.DurationFlag{
		Name:    "timeout",
		Value:   0,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "TIMEOUT"),
		Usage:   "Default wait for page interactions (0 uses 5s)",
	}
	LocalBinaryFlag = &cli.StringFlag{
		Name:    "local-binary",
		Value:   session.DefaultLocalBinary,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "LOCAL_BINARY"),
		Usage:   "BrowserStack Local binary, used for environments with browserstack.local",
	}
)

func flags() []cli.Flag {
	fs := []cli.Flag{
		ConfigFlag,
		TaskIDVarFlag,
		BaseURLFlag,
		FormatFlag,
		TagsFlag,
		StrictFlag,
		TimeoutFlag,
		LocalBinaryFlag,
	}
	return append(fs, oplog.CLIFlags(EnvVarPrefix)...)
}

func main() {
	app := cli.NewApp()
	app.Version = fmt.Sprintf("%s-%s-%s", Version, GitCommit, GitDate)
	app.Name = "sf-worker"
	app.Usage = "Runs the storefront scenarios against one environment of the matrix"
	app.ArgsUsage = "[feature paths...]"
	app.Flags = flags()
	app.Action = run

	ctx, shutdown, err := telemetry.SetupOpenTelemetry(
		context.Background(),
		otelconfig.WithServiceName(app.Name),
		otelconfig.WithServiceVersion(app.Version),
	)
	if err != nil {
		log.Crit("Failed to setup open telemetry", "message", err)
	}
	defer shutdown()

	ctx = ctxinterrupt.WithSignalWaiterMain(ctx)
	if err := app.RunContext(ctx, os.Args); err != nil {
		var exitErr cli.ExitCoder
		if errors.As(err, &exitErr) {
			cli.HandleExitCoder(exitErr)
		}
		log.Error("Worker failed", "err", err)
		os.Exit(exitcodes.RuntimeErr)
	}
}

func run(ctx *cli.Context) error {
	logger := oplog.NewLogger(oplog.AppOut(ctx), oplog.ReadCLIConfig(ctx))
	oplog.SetGlobalLogHandler(logger.Handler())

	taskID, err := session.TaskIDFrom(os.Getenv, ctx.String(TaskIDVarFlag.Name))
	if err != nil {
		return cli.Exit(err.Error(), exitcodes.RuntimeErr)
	}
	m, err := matrix.Load(ctx.String(ConfigFlag.Name))
	if err != nil {
		return cli.Exit(err.Error(), exitcodes.RuntimeErr)
	}

	status, err := worker.Run(ctx.Context, worker.Options{
		Log:     logger,
		Matrix:  m,
		TaskID:  taskID,
		Paths:   ctx.Args().Slice(),
		Tags:    ctx.String(TagsFlag.Name),
		Format:  ctx.String(FormatFlag.Name),
		Strict:  ctx.Bool(StrictFlag.Name),
		BaseURL: ctx.String(BaseURLFlag.Name),
		Timeout: ctx.Duration(TimeoutFlag.Name),
		Tunnel: session.TunnelConfig{
			Binary:          ctx.String(LocalBinaryFlag.Name),
			LocalIdentifier: fmt.Sprintf("sf-worker-%d-%d", taskID, os.Getpid()),
		},
	})
	if err != nil {
		return cli.Exit(err.Error(), exitcodes.RuntimeErr)
	}
	if status != 0 {
		return cli.Exit("", exitcodes.TestFailure)
	}
	return nil
}
