package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/ethereum-optimism/optimism/devnet-sdk/telemetry"
	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/storefront-qa/sf-acceptor/exitcodes"
	"github.com/storefront-qa/sf-acceptor/metrics"
	"github.com/storefront-qa/sf-acceptor/types"
)

// DrainMode selects how worker output is relayed to the coordinator's output.
type DrainMode string

const (
	// DrainConcurrent reads every worker's stream at once and relays complete
	// lines as they arrive, prefixed with the task id.
	DrainConcurrent DrainMode = "concurrent"
	// DrainSpawnOrder drains workers one at a time in spawn order, relaying
	// output unprefixed. A slow worker holds back the output of later ones.
	DrainSpawnOrder DrainMode = "spawn-order"
)

// IsValid returns true if the drain mode is known
func (m DrainMode) IsValid() bool {
	return m == DrainConcurrent || m == DrainSpawnOrder
}

// SuiteCoordinator runs one suite command once per environment.
type SuiteCoordinator interface {
	RunAll(ctx context.Context, matrix []types.EnvironmentSpec, tmpl CommandTemplate) (*types.ExitSummary, error)
}

// WorkerLogSink receives a copy of each worker's combined output.
type WorkerLogSink interface {
	// WorkerWriter opens the destination for one task's output and returns its location.
	WorkerWriter(runID string, taskID int, environment string) (io.WriteCloser, string, error)
}

// CmdBuilder creates the process for one worker. The returned cleanup runs
// after the worker has exited.
type CmdBuilder func(ctx context.Context, name string, arg ...string) (*exec.Cmd, func())

// Config holds the coordinator configuration
type Config struct {
	Log       log.Logger
	Output    io.Writer // Relayed worker output, defaults to os.Stdout
	DrainMode DrainMode
	WorkDir   string
	LogSink   WorkerLogSink // Optional
	TailBytes int
	// CmdBuilder overrides process creation, mainly for tests.
	CmdBuilder CmdBuilder
}

var _ SuiteCoordinator = (*Coordinator)(nil)

// Coordinator implements SuiteCoordinator with one OS process per environment.
type Coordinator struct {
	log        log.Logger
	out        io.Writer
	outMu      sync.Mutex
	drainMode  DrainMode
	workDir    string
	logSink    WorkerLogSink
	tailBytes  int
	cmdBuilder CmdBuilder
	goos       string
	tracer     trace.Tracer
}

// NewCoordinator creates a new coordinator
func NewCoordinator(cfg Config) (*Coordinator, error) {
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}
	if cfg.DrainMode == "" {
		cfg.DrainMode = DrainConcurrent
	}
	if !cfg.DrainMode.IsValid() {
		return nil, fmt.Errorf("invalid drain mode %q. Must be one of: %s, %s", cfg.DrainMode, DrainConcurrent, DrainSpawnOrder)
	}

	c := &Coordinator{
		log:       cfg.Log.New("component", "coordinator"),
		out:       cfg.Output,
		drainMode: cfg.DrainMode,
		workDir:   cfg.WorkDir,
		logSink:   cfg.LogSink,
		tailBytes: cfg.TailBytes,
		goos:      runtime.GOOS,
		tracer:    otel.Tracer("suite coordinator"),
	}
	c.cmdBuilder = cfg.CmdBuilder
	if c.cmdBuilder == nil {
		c.cmdBuilder = c.workerCommand
	}
	return c, nil
}

// RunAll spawns one worker per environment in matrix order without waiting
// for any of them, then drains their output and collects exit codes.
// Worker failures are recorded in the summary; the returned error is only
// set when the template itself is unusable, in which case nothing is spawned.
func (c *Coordinator) RunAll(ctx context.Context, matrix []types.EnvironmentSpec, tmpl CommandTemplate) (*types.ExitSummary, error) {
	if err := tmpl.Validate(); err != nil {
		return nil, fmt.Errorf("invalid suite command template: %w", err)
	}

	summary := &types.ExitSummary{
		RunID:   uuid.New().String(),
		Results: make([]*types.WorkerResult, 0, len(matrix)),
	}
	start := time.Now()

	ctx, span := c.tracer.Start(ctx, fmt.Sprintf("run %s", summary.RunID))
	defer span.End()

	c.log.Info("Spawning workers", "runID", summary.RunID, "environments", len(matrix),
		"drainMode", c.drainMode, "goos", c.goos)

	handles := make([]*workerHandle, 0, len(matrix))
	for _, env := range matrix {
		h := c.spawn(ctx, summary.RunID, env, tmpl)
		handles = append(handles, h)
		summary.Results = append(summary.Results, h.result)
	}

	switch c.drainMode {
	case DrainSpawnOrder:
		c.drainInSpawnOrder(handles)
	default:
		c.drainConcurrently(handles)
	}

	summary.Duration = time.Since(start)
	for _, r := range summary.Results {
		metrics.RecordWorkerExit(r)
	}
	metrics.RecordSummary(summary)

	if summary.ExitCode() != exitcodes.Success {
		span.SetStatus(codes.Error, summary.String())
	}
	c.log.Info("All workers finished", "runID", summary.RunID, "passed", summary.Passed(),
		"failed", summary.Failed(), "duration", summary.Duration)
	return summary, nil
}

// spawn starts one worker. It never blocks on the worker's completion.
// A worker that cannot be started is returned already in the spawn_failed state.
func (c *Coordinator) spawn(ctx context.Context, runID string, env types.EnvironmentSpec, tmpl CommandTemplate) *workerHandle {
	label := env.Capabilities.Label()
	h := &workerHandle{
		env:  env,
		tail: newTailBuffer(c.tailBytes),
		result: &types.WorkerResult{
			TaskID:      env.TaskID,
			Environment: label,
			Command:     tmpl.ShellLine(c.goos, env.TaskID),
			State:       types.WorkerStateSpawned,
		},
	}

	ctx, span := c.tracer.Start(ctx, fmt.Sprintf("spawn worker %d", env.TaskID),
		trace.WithAttributes(
			attribute.Int("task_id", env.TaskID),
			attribute.String("environment", label),
		))
	defer span.End()

	fail := func(err error) *workerHandle {
		spawnErr := &SpawnError{TaskID: env.TaskID, Err: err}
		h.setState(types.WorkerStateSpawnFailed)
		h.result.ExitCode = exitcodes.RuntimeErr
		h.result.Error = spawnErr
		h.close()
		span.RecordError(spawnErr)
		span.SetStatus(codes.Error, "spawn failed")
		metrics.RecordErrorDetails("spawn", err)
		c.log.Error("Failed to spawn worker", "taskID", env.TaskID, "environment", label, "err", err)
		return h
	}

	if c.logSink != nil {
		w, path, err := c.logSink.WorkerWriter(runID, env.TaskID, label)
		if err != nil {
			c.log.Warn("Failed to open worker log", "taskID", env.TaskID, "err", err)
		} else {
			h.logOut = w
			h.result.LogFile = path
		}
	}

	name, args := tmpl.Render(c.goos, env.TaskID)
	cmd, cleanup := c.cmdBuilder(ctx, name, args...)
	h.cleanup = cleanup
	if cmd == nil {
		return fail(errors.New("no command built"))
	}
	if cmd.Env == nil {
		cmd.Env = os.Environ()
	}
	cmd.Env = append(cmd.Env, tmpl.Environment(env.TaskID)...)

	// stdout and stderr share one pipe so the worker's output keeps its own ordering
	pr, pw, err := os.Pipe()
	if err != nil {
		return fail(fmt.Errorf("failed to create output pipe: %w", err))
	}
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		_ = pw.Close()
		_ = pr.Close()
		return fail(err)
	}
	// Only the child holds the write end now, so EOF marks its exit.
	_ = pw.Close()

	h.cmd = cmd
	h.output = pr
	h.started = time.Now()
	h.setState(types.WorkerStateRunning)
	metrics.RecordWorkerSpawn(label)
	c.log.Info("Spawned worker", "taskID", env.TaskID, "environment", label, "pid", cmd.Process.Pid)
	return h
}

func (c *Coordinator) drainConcurrently(handles []*workerHandle) {
	var g errgroup.Group
	for _, h := range handles {
		if h.result.State != types.WorkerStateRunning {
			continue
		}
		g.Go(func() error {
			c.drain(h, c.prefixedWriter(h.env.TaskID))
			return nil
		})
	}
	_ = g.Wait()
}

func (c *Coordinator) drainInSpawnOrder(handles []*workerHandle) {
	for _, h := range handles {
		if h.result.State != types.WorkerStateRunning {
			continue
		}
		c.drain(h, c.rawWriter())
	}
}

// drain relays a worker's output until end of stream, then reaps it.
func (c *Coordinator) drain(h *workerHandle, dst func(line []byte)) {
	if err := h.relay(dst); err != nil {
		c.log.Warn("Worker output truncated", "taskID", h.env.TaskID, "err", err)
	}
	h.wait()

	lvl := log.LevelInfo
	if !h.result.Passed() {
		lvl = log.LevelWarn
	}
	c.log.Log(lvl, "Worker exited", "taskID", h.env.TaskID, "environment", h.result.Environment,
		"exitCode", h.result.ExitCode, "duration", h.result.Duration)
}

func (c *Coordinator) prefixedWriter(taskID int) func([]byte) {
	prefix := []byte("[task " + strconv.Itoa(taskID) + "] ")
	return func(line []byte) {
		c.outMu.Lock()
		defer c.outMu.Unlock()
		_, _ = c.out.Write(prefix)
		_, _ = c.out.Write(line)
		if !bytes.HasSuffix(line, []byte("\n")) {
			_, _ = c.out.Write([]byte("\n"))
		}
	}
}

func (c *Coordinator) rawWriter() func([]byte) {
	return func(line []byte) {
		c.outMu.Lock()
		defer c.outMu.Unlock()
		_, _ = c.out.Write(line)
	}
}

// workerCommand is the default CmdBuilder. Workers are never cancelled, so ctx
// only carries trace context into the worker's environment.
func (c *Coordinator) workerCommand(ctx context.Context, name string, arg ...string) (*exec.Cmd, func()) {
	cmd := exec.Command(name, arg...)
	cmd.Dir = c.workDir
	cmd.Env = telemetry.InstrumentEnvironment(ctx, os.Environ())
	return cmd, func() {}
}
