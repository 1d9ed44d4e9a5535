// Package worker runs the scenario suite for a single environment of the
// matrix. It is what the suite command executes once per task id.
package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/cucumber/godog"
	"github.com/ethereum/go-ethereum/log"

	"github.com/storefront-qa/sf-acceptor/exitcodes"
	"github.com/storefront-qa/sf-acceptor/page"
	"github.com/storefront-qa/sf-acceptor/session"
	"github.com/storefront-qa/sf-acceptor/steps"
	"github.com/storefront-qa/sf-acceptor/types"
	"github.com/storefront-qa/sf-acceptor/waiter"
)

// Browser is an open remote session.
type Browser interface {
	page.Driver
	Close() error
}

// OpenFunc opens the browser session for one task.
type OpenFunc func(ctx context.Context, m *types.Matrix, taskID int) (Browser, error)

// Options configures Run.
type Options struct {
	Log     log.Logger
	Matrix  *types.Matrix
	TaskID  int
	Paths   []string // feature files or directories
	Tags    string
	Format  string
	Output  io.Writer
	Strict  bool
	BaseURL string
	Timeout time.Duration // default wait for page interactions
	Pages   map[string]string
	Tunnel  session.TunnelConfig
	// Features are in-memory feature files run in addition to Paths.
	Features []godog.Feature
	// Open overrides session creation, mainly for tests.
	Open OpenFunc
}

// Run opens the session for the task, runs the suite against it and closes
// the session. It returns the suite status: 0 when every scenario passed,
// non-zero otherwise. A session that cannot be opened is a runtime error.
func Run(ctx context.Context, opts Options) (int, error) {
	if opts.Log == nil {
		opts.Log = log.Root()
	}
	if opts.Matrix == nil {
		return exitcodes.RuntimeErr, errors.New("matrix is required")
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Format == "" {
		opts.Format = "pretty"
	}
	if len(opts.Paths) == 0 && len(opts.Features) == 0 {
		opts.Paths = []string{"features"}
	}
	if opts.Open == nil {
		opts.Open = defaultOpener(opts)
	}
	logger := opts.Log.New("component", "worker", "taskID", opts.TaskID)

	browser, err := opts.Open(ctx, opts.Matrix, opts.TaskID)
	if err != nil {
		return exitcodes.RuntimeErr, fmt.Errorf("failed to open session for task %d: %w", opts.TaskID, err)
	}
	defer func() {
		if err := browser.Close(); err != nil {
			logger.Warn("Failed to close session", "err", err)
		}
	}()

	pageOpts := []page.Option{
		page.WithWaiterOptions(waiter.WithLogger(logger)),
	}
	if opts.Timeout > 0 {
		pageOpts = append(pageOpts, page.WithTimeout(opts.Timeout))
	}
	p := page.New(browser, opts.BaseURL, pageOpts...)
	defs := steps.New(func() *page.Page { return p }, opts.Pages)

	suite := godog.TestSuite{
		Name:                fmt.Sprintf("task-%d", opts.TaskID),
		ScenarioInitializer: defs.Register,
		Options: &godog.Options{
			Format:          opts.Format,
			Output:          opts.Output,
			Paths:           opts.Paths,
			Tags:            opts.Tags,
			Strict:          opts.Strict,
			FeatureContents: opts.Features,
			DefaultContext:  ctx,
		},
	}

	start := time.Now()
	logger.Info("Running suite", "paths", opts.Paths, "tags", opts.Tags)
	status := suite.Run()
	logger.Info("Suite finished", "status", status, "duration", time.Since(start))
	return status, nil
}

func defaultOpener(opts Options) OpenFunc {
	return func(ctx context.Context, m *types.Matrix, taskID int) (Browser, error) {
		return session.Open(ctx, m, taskID, session.Options{
			Log:    opts.Log,
			Tunnel: opts.Tunnel,
		})
	}
}
