package metrics

import (
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/storefront-qa/sf-acceptor/types"
)

func TestErrToLabel(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{
			name: "nil error",
			err:  nil,
		},
		{
			name: "simple error",
			err:  errors.New("spawn error"),
		},
		{
			name: "error with special chars",
			err:  errors.New("exec: \"sh\": executable file not found in $PATH"),
		},
		{
			name: "error with multiple spaces",
			err:  errors.New("spawn   error"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := errToLabel(tt.err)
			validLabelRegex := regexp.MustCompile(`[a-zA-Z_][a-zA-Z0-9_]*`)
			if !validLabelRegex.MatchString(result) {
				t.Errorf("errLabel() = %v, is not a valid Prometheus label", result)
			}
		})
	}
}

func TestRecordError(t *testing.T) {
	// just test that it doesn't panic
	defer func() {
		if r := recover(); r != nil {
			t.Errorf("RecordError panic'd")
		}
	}()

	RecordError("test_error")
	RecordErrorDetails("spawn", errors.New("boom"))
	RecordErrorDetails("spawn", nil)
}

func TestResultFor(t *testing.T) {
	assert.Equal(t, ResultPass, ResultFor(&types.WorkerResult{State: types.WorkerStateExited, ExitCode: 0}))
	assert.Equal(t, ResultFail, ResultFor(&types.WorkerResult{State: types.WorkerStateExited, ExitCode: 1}))
	assert.Equal(t, ResultSpawnFailed, ResultFor(&types.WorkerResult{State: types.WorkerStateSpawnFailed, ExitCode: 2}))
}

func TestRecordWorkerExit(t *testing.T) {
	env := "metrics-test-env"
	before := testutil.ToFloat64(workerExitsTotal.WithLabelValues(env, ResultFail))

	RecordWorkerSpawn(env)
	RecordWorkerExit(&types.WorkerResult{
		TaskID:      3,
		Environment: env,
		State:       types.WorkerStateExited,
		ExitCode:    1,
		Duration:    1500 * time.Millisecond,
	})

	assert.Equal(t, before+1, testutil.ToFloat64(workerExitsTotal.WithLabelValues(env, ResultFail)))
	assert.Equal(t, 1.5, testutil.ToFloat64(workerDuration.WithLabelValues("3", env)))
	assert.GreaterOrEqual(t, testutil.ToFloat64(workersSpawnedTotal.WithLabelValues(env)), 1.0)
}

func TestRecordSummary(t *testing.T) {
	s := &types.ExitSummary{
		RunID:    "metrics-test-run",
		Duration: 2 * time.Second,
		Results: []*types.WorkerResult{
			{TaskID: 0, State: types.WorkerStateExited, ExitCode: 0},
			{TaskID: 1, State: types.WorkerStateExited, ExitCode: 1},
		},
	}
	RecordSummary(s)

	assert.Equal(t, 1.0, testutil.ToFloat64(runResults.WithLabelValues(s.RunID, ResultFail)))
	assert.Equal(t, 2.0, testutil.ToFloat64(runEnvironmentsTotal.WithLabelValues(s.RunID)))
	assert.Equal(t, 1.0, testutil.ToFloat64(runEnvironmentsPassed.WithLabelValues(s.RunID)))
	assert.Equal(t, 1.0, testutil.ToFloat64(runEnvironmentsFailed.WithLabelValues(s.RunID)))
	assert.Equal(t, 2.0, testutil.ToFloat64(runDuration.WithLabelValues(s.RunID)))
}
