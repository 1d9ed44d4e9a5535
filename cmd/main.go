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
	"github.com/ethereum-optimism/optimism/op-service/cliapp"
	"github.com/ethereum-optimism/optimism/op-service/ctxinterrupt"
	oplog "github.com/ethereum-optimism/optimism/op-service/log"

	acceptor "github.com/storefront-qa/sf-acceptor"
	"github.com/storefront-qa/sf-acceptor/exitcodes"
	"github.com/storefront-qa/sf-acceptor/flags"
)

var (
	Version   = "v0.1.0"
	GitCommit = ""
	GitDate   = ""
)

func main() {
	app := newApp()

	// Start telemetry
	ctx, shutdown, err := telemetry.SetupOpenTelemetry(
		context.Background(),
		otelconfig.WithServiceName(app.Name),
		otelconfig.WithServiceVersion(app.Version),
	)
	if err != nil {
		log.Crit("Failed to setup open telemetry", "message", err)
	}
	defer shutdown()

	// Start CLI
	ctx = ctxinterrupt.WithSignalWaiterMain(ctx)
	err = app.RunContext(ctx, os.Args)
	if err != nil {
		log.Crit("Application failed", "message", err)
	}
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Version = fmt.Sprintf("%s-%s-%s", Version, GitCommit, GitDate)
	app.Name = "sf-acceptor"
	app.Usage = "Storefront browser acceptance test coordinator"
	app.Description = "sf-acceptor runs the acceptance suite once per browser environment and fails if any environment fails"
	app.Flags = cliapp.ProtectFlags(flags.Flags)
	app.Action = cliapp.LifecycleCmd(run)
	app.ExitErrHandler = handleExitErr
	return app
}

// handleExitErr maps typed errors to the process exit code.
func handleExitErr(c *cli.Context, err error) {
	if err == nil {
		return
	}
	cli.HandleExitCoder(exitCoder(err))
}

func exitCoder(err error) cli.ExitCoder {
	var exitErr cli.ExitCoder
	switch {
	case errors.As(err, &exitErr):
		return exitErr
	case acceptor.IsRuntimeError(err):
		return cli.Exit(err.Error(), exitcodes.RuntimeErr)
	case acceptor.IsTestFailureError(err):
		return cli.Exit(err.Error(), exitcodes.TestFailure)
	default:
		// Flag parsing and other unclassified errors are configuration problems
		return cli.Exit(err.Error(), exitcodes.RuntimeErr)
	}
}

func run(ctx *cli.Context, closeApp context.CancelCauseFunc) (cliapp.Lifecycle, error) {
	logCfg := oplog.ReadCLIConfig(ctx)
	log := oplog.NewLogger(oplog.AppOut(ctx), logCfg)
	oplog.SetGlobalLogHandler(log.Handler())
	oplog.SetupDefaults()

	cfg, err := acceptor.NewConfig(ctx, log)
	if err != nil {
		// Wrap in RuntimeError to signal this should exit with code 2
		return nil, acceptor.NewRuntimeError(fmt.Errorf("failed to create config: %w", err))
	}

	cfg.Log.Debug("Config", "config", cfg)

	svc, err := acceptor.New(ctx.Context, cfg, Version, closeApp)
	if err != nil {
		if acceptor.IsRuntimeError(err) {
			return nil, err
		}
		return nil, acceptor.NewRuntimeError(fmt.Errorf("failed to create acceptor: %w", err))
	}

	return svc, nil
}
