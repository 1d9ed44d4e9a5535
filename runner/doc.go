// Package runner fans one suite command out across an environment matrix.
//
// The main components are:
//   - CommandTemplate: renders the per-environment shell invocation, injecting the task id
//   - Coordinator: spawns one worker process per environment, relays their combined
//     output and aggregates exit codes into a types.ExitSummary
//
// Workers are independent OS processes. The coordinator never waits on one worker
// before spawning the next, never cancels a worker and never retries one: a worker
// that exits is final for its task id within a RunAll call.
package runner
