package metrics

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/storefront-qa/sf-acceptor/types"
)

const (
	MetricsNamespace = "sf_acceptor"

	ResultPass        = "pass"
	ResultFail        = "fail"
	ResultSpawnFailed = "spawn_failed"
)

var (
	Debug                bool = true
	validResults              = []string{ResultPass, ResultFail, ResultSpawnFailed}
	nonAlphanumericRegex      = regexp.MustCompile(`[^a-zA-Z ]+`)

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "errors_total",
		Help:      "Count of errors",
	}, []string{
		"error",
	})

	workersSpawnedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "workers_spawned_total",
		Help:      "Count of worker processes spawned",
	}, []string{
		"environment",
	})

	workerExitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "worker_exits_total",
		Help:      "Count of worker process exits by result",
	}, []string{
		"environment",
		"result",
	})

	workerDuration = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "worker_duration_seconds",
		Help:      "Wall clock duration of the last worker per task id",
	}, []string{
		"task_id",
		"environment",
	})

	runResults = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_results",
		Help:      "Result of a matrix run",
	}, []string{
		"run_id",
		"result",
	})

	runEnvironmentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "run_environments_total",
		Help:      "Total number of environments in a run",
	}, []string{
		"run_id",
	})

	runEnvironmentsPassed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "run_environments_passed",
		Help:      "Number of environments whose worker exited zero",
	}, []string{
		"run_id",
	})

	runEnvironmentsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "run_environments_failed",
		Help:      "Number of environments whose worker failed or never started",
	}, []string{
		"run_id",
	})

	runDuration = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_duration_seconds",
		Help:      "Duration of a matrix run",
	}, []string{
		"run_id",
	})
)

// errToLabel tries to make the error string a more valid Prometheus label
func errToLabel(err error) string {
	if err == nil {
		return "nil"
	}
	errClean := nonAlphanumericRegex.ReplaceAllString(err.Error(), "")
	errClean = strings.ReplaceAll(errClean, " ", "_")
	errClean = strings.ReplaceAll(errClean, "__", "_")
	return errClean
}

func RecordError(error string) {
	if Debug {
		log.Debug("metric inc",
			"m", "errors_total",
			"error", error,
		)
	}
	errorsTotal.WithLabelValues(error).Inc()
}

// RecordErrorDetails concats the error message to the label
// and also tries to clean the label to be a valid Prometheus label
func RecordErrorDetails(label string, err error) {
	if err == nil {
		return
	}
	label = fmt.Sprintf("%s.%s", label, errToLabel(err))
	RecordError(label)
}

func RecordWorkerSpawn(environment string) {
	if Debug {
		log.Debug("metric inc",
			"m", "workers_spawned_total",
			"environment", environment)
	}
	workersSpawnedTotal.WithLabelValues(environment).Inc()
}

// ResultFor maps a worker result onto one of the result label values
func ResultFor(r *types.WorkerResult) string {
	switch {
	case r.State == types.WorkerStateSpawnFailed:
		return ResultSpawnFailed
	case r.Passed():
		return ResultPass
	default:
		return ResultFail
	}
}

func RecordWorkerExit(r *types.WorkerResult) {
	result := ResultFor(r)
	if !isValidResult(result) {
		log.Error("RecordWorkerExit - invalid result", "result", result)
		return
	}
	if Debug {
		log.Debug("metric inc",
			"m", "worker_exits_total",
			"task_id", r.TaskID,
			"environment", r.Environment,
			"result", result,
			"exit_code", r.ExitCode)
	}
	workerExitsTotal.WithLabelValues(r.Environment, result).Inc()
	workerDuration.WithLabelValues(strconv.Itoa(r.TaskID), r.Environment).Set(r.Duration.Seconds())
}

func RecordRun(
	runID string,
	result string,
	total int,
	passed int,
	failed int,
	duration time.Duration,
) {
	runResults.WithLabelValues(runID, result).Set(1)
	runEnvironmentsTotal.WithLabelValues(runID).Add(float64(total))
	runEnvironmentsPassed.WithLabelValues(runID).Add(float64(passed))
	runEnvironmentsFailed.WithLabelValues(runID).Add(float64(failed))
	runDuration.WithLabelValues(runID).Set(duration.Seconds())
}

// RecordSummary records the aggregate of a finished run
func RecordSummary(s *types.ExitSummary) {
	result := ResultPass
	if s.Failed() > 0 {
		result = ResultFail
	}
	RecordRun(s.RunID, result, len(s.Results), s.Passed(), s.Failed(), s.Duration)
}

func isValidResult(result string) bool {
	return slices.Contains(validResults, result)
}
