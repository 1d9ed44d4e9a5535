// Package exitcodes defines the exit codes shared by sf-acceptor and its workers.
package exitcodes

// Exit code constants used by the coordinator and by every worker process.
// A worker's exit code is the only result that crosses the process boundary:
//
// * Success (0): every scenario in the environment passed
// * TestFailure (1): at least one scenario failed
// * RuntimeErr (2): configuration errors, spawn failures, session errors
const (
	Success     = 0 // All scenarios pass
	TestFailure = 1 // Scenario failures
	RuntimeErr  = 2 // Runtime errors, bad configuration, workers that never started
)
