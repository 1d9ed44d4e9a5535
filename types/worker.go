package types

import (
	"fmt"
	"strings"
	"time"

	"github.com/storefront-qa/sf-acceptor/exitcodes"
)

// WorkerState represents the lifecycle of one worker process:
// spawned -> running -> exited, or spawn_failed when it never started.
type WorkerState string

const (
	WorkerStateSpawned     WorkerState = "spawned"
	WorkerStateRunning     WorkerState = "running"
	WorkerStateExited      WorkerState = "exited"
	WorkerStateSpawnFailed WorkerState = "spawn_failed"
)

// String implements the Stringer interface for WorkerState
func (s WorkerState) String() string {
	return string(s)
}

// WorkerResult captures the outcome of one worker process
type WorkerResult struct {
	TaskID      int
	Environment string // Capability label for display
	State       WorkerState
	ExitCode    int
	Duration    time.Duration
	Command     string // Rendered shell invocation
	Error       error  // Spawn or wait error, nil for a clean exit
	OutputTail  string // Last bytes of combined output
	OutputBytes int64
	LogFile     string
}

// Passed reports whether the worker exited zero.
func (r *WorkerResult) Passed() bool {
	return r.State == WorkerStateExited && r.ExitCode == exitcodes.Success
}

// ExitSummary aggregates the results of one RunAll invocation.
// Results are kept in matrix order.
type ExitSummary struct {
	RunID    string
	Results  []*WorkerResult
	Duration time.Duration
}

// Passed returns the number of workers that exited zero
func (s *ExitSummary) Passed() int {
	n := 0
	for _, r := range s.Results {
		if r.Passed() {
			n++
		}
	}
	return n
}

// Failed returns the number of workers that exited non-zero or never started
func (s *ExitSummary) Failed() int {
	return len(s.Results) - s.Passed()
}

// Result returns the result for a task id, or nil.
func (s *ExitSummary) Result(taskID int) *WorkerResult {
	for _, r := range s.Results {
		if r.TaskID == taskID {
			return r
		}
	}
	return nil
}

// ExitCodes returns task id -> worker exit code.
func (s *ExitSummary) ExitCodes() map[int]int {
	codes := make(map[int]int, len(s.Results))
	for _, r := range s.Results {
		codes[r.TaskID] = r.ExitCode
	}
	return codes
}

// ExitCode applies the fail-on-any-failure policy: zero only if every
// worker exited zero. An empty summary is a success.
func (s *ExitSummary) ExitCode() int {
	if s.Failed() > 0 {
		return exitcodes.TestFailure
	}
	return exitcodes.Success
}

// String returns a one-line summary of the run
func (s *ExitSummary) String() string {
	status := "PASS"
	if s.ExitCode() != exitcodes.Success {
		status = "FAIL"
	}
	var failed []string
	for _, r := range s.Results {
		if !r.Passed() {
			failed = append(failed, fmt.Sprintf("%d", r.TaskID))
		}
	}
	msg := fmt.Sprintf("%s: %d environments, %d passed, %d failed (%s)",
		status, len(s.Results), s.Passed(), s.Failed(), s.Duration.Round(time.Millisecond))
	if len(failed) > 0 {
		msg += fmt.Sprintf("; failed task ids: %s", strings.Join(failed, ", "))
	}
	return msg
}
