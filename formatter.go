package acceptor

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/storefront-qa/sf-acceptor/runner"
	"github.com/storefront-qa/sf-acceptor/types"
)

// ResultFormatter is responsible for formatting and displaying run results.
type ResultFormatter interface {
	FormatResults(summary *types.ExitSummary) error
}

// ConsoleResultFormatter implements the ResultFormatter interface.
type ConsoleResultFormatter struct {
	logger log.Logger
	out    io.Writer
}

// NewConsoleResultFormatter creates a new ConsoleResultFormatter writing to out,
// or to stdout when out is nil.
func NewConsoleResultFormatter(logger log.Logger, out io.Writer) *ConsoleResultFormatter {
	if out == nil {
		out = os.Stdout
	}
	return &ConsoleResultFormatter{
		logger: logger,
		out:    out,
	}
}

// FormatResults renders one row per environment followed by the summary line.
func (f *ConsoleResultFormatter) FormatResults(summary *types.ExitSummary) error {
	if summary == nil {
		return errors.New("no results to format")
	}
	f.logger.Info("Printing results...")

	t := table.NewWriter()
	t.SetOutputMirror(f.out)
	t.SetTitle(fmt.Sprintf("Acceptance Testing Results (%s)", formatDuration(summary.Duration)))

	t.AppendHeader(table.Row{
		"Task", "Environment", "Duration", "Exit", "Status", "Log", "Error",
	})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Task", Align: text.AlignRight},
		{Name: "Environment", WidthMax: 50, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Duration", Align: text.AlignRight},
		{Name: "Exit", Align: text.AlignRight},
		{Name: "Log", WidthMax: 40, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Error", WidthMax: 80, WidthMaxEnforcer: text.WrapSoft},
	})

	for _, r := range summary.Results {
		t.AppendRow(table.Row{
			r.TaskID,
			r.Environment,
			formatDuration(r.Duration),
			r.ExitCode,
			getResultString(r),
			r.LogFile,
			extractKeyErrorMessage(r),
		})
	}

	if summary.Failed() == 0 {
		t.SetStyle(table.StyleColoredBlackOnGreenWhite)
	} else {
		t.SetStyle(table.StyleColoredBlackOnRedWhite)
	}

	t.AppendFooter(table.Row{
		"TOTAL",
		fmt.Sprintf("%d passed, %d failed", summary.Passed(), summary.Failed()),
		formatDuration(summary.Duration),
		summary.ExitCode(),
		"",
		"",
		"",
	})

	t.Render()
	_, err := fmt.Fprintln(f.out, summary.String())
	return err
}

// failurePatterns are output markers worth surfacing in the results table,
// most specific first.
var failurePatterns = []string{
	"panic:",
	"Error:",
	"--- Failed steps:",
	"failed)",
	"failed",
}

// extractKeyErrorMessage picks the most pertinent line explaining a failed worker.
func extractKeyErrorMessage(r *types.WorkerResult) string {
	if r.Passed() {
		return ""
	}

	var spawnErr *runner.SpawnError
	if errors.As(r.Error, &spawnErr) {
		return firstLine(spawnErr.Error())
	}

	lines := strings.Split(strings.TrimRight(r.OutputTail, "\n"), "\n")
	for _, pattern := range failurePatterns {
		for i := len(lines) - 1; i >= 0; i-- {
			if strings.Contains(lines[i], pattern) {
				return firstLine(strings.TrimSpace(lines[i]))
			}
		}
	}

	if r.Error != nil {
		return firstLine(r.Error.Error())
	}
	return ""
}

// firstLine limits s to its first line or 80 chars
func firstLine(s string) string {
	if idx := strings.Index(s, "\n"); idx != -1 {
		s = s[:idx]
	}
	if len(s) > 80 {
		return s[:77] + "..."
	}
	return s
}

// getResultString returns a string representing the worker result
func getResultString(r *types.WorkerResult) string {
	switch {
	case r.Passed():
		return "✓ pass"
	case r.State == types.WorkerStateSpawnFailed:
		return "✗ spawn failed"
	default:
		return "✗ fail"
	}
}

// Helper function to format duration to seconds with 1 decimal place
func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%.1fs", d.Seconds())
}
