package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/acarl005/stripansi"

	"github.com/storefront-qa/sf-acceptor/types"
)

const (
	RunDirectoryPrefix = "testrun-" // Standardized prefix for run directories
	SummaryFilename    = "summary.log"
	AllLogsFilename    = "all.log"
)

// FileLogger writes worker output and run results under
// <baseDir>/testrun-<runID>/. It implements runner.WorkerLogSink.
type FileLogger struct {
	baseDir      string                // Root log directory
	mu           sync.Mutex            // Protects asyncWriters
	asyncWriters map[string]*AsyncFile // Open writers keyed by path
}

// AsyncFile provides non-blocking file writing capabilities
type AsyncFile struct {
	file    *os.File
	queue   chan []byte
	wg      sync.WaitGroup
	mu      sync.Mutex
	stopped bool
}

// NewAsyncFile creates a new AsyncFile for non-blocking writes
func NewAsyncFile(path string) (*AsyncFile, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create file %s: %w", path, err)
	}

	af := &AsyncFile{
		file:  file,
		queue: make(chan []byte, 100),
	}

	af.wg.Add(1)
	go af.processQueue()

	return af, nil
}

// Write queues data to be written asynchronously
func (af *AsyncFile) Write(data []byte) (int, error) {
	af.mu.Lock()
	defer af.mu.Unlock()

	if af.stopped {
		return 0, fmt.Errorf("async file is closed")
	}

	// The caller may reuse data once Write returns.
	dataCopy := make([]byte, len(data))
	copy(dataCopy, data)

	af.queue <- dataCopy
	return len(data), nil
}

func (af *AsyncFile) processQueue() {
	defer af.wg.Done()

	for data := range af.queue {
		if _, err := af.file.Write(data); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing to file: %v\n", err)
		}
	}
}

// Close flushes pending writes and closes the file. It is safe to call more than once.
func (af *AsyncFile) Close() error {
	af.mu.Lock()
	if af.stopped {
		af.mu.Unlock()
		return nil
	}
	af.stopped = true
	close(af.queue)
	af.mu.Unlock()

	af.wg.Wait()
	return af.file.Close()
}

// stripWriter removes ANSI escape sequences before writing to the log file.
// Workers write whole lines, so a sequence is never split between calls.
type stripWriter struct {
	*AsyncFile
}

func (w stripWriter) Write(p []byte) (int, error) {
	if _, err := w.AsyncFile.Write([]byte(stripansi.Strip(string(p)))); err != nil {
		return 0, err
	}
	return len(p), nil
}

// NewFileLogger creates a new FileLogger rooted at baseDir
func NewFileLogger(baseDir string) (*FileLogger, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("baseDir cannot be empty")
	}
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", baseDir, err)
	}
	return &FileLogger{
		baseDir:      baseDir,
		asyncWriters: make(map[string]*AsyncFile),
	}, nil
}

// GetDirectoryForRunID returns the path for a specific runID
func (l *FileLogger) GetDirectoryForRunID(runID string) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("runID cannot be empty")
	}
	return filepath.Join(l.baseDir, RunDirectoryPrefix+runID), nil
}

// GetSummaryFileForRunID returns the summary file for a specific runID
func (l *FileLogger) GetSummaryFileForRunID(runID string) (string, error) {
	dir, err := l.GetDirectoryForRunID(runID)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, SummaryFilename), nil
}

// GetAllLogsFileForRunID returns the path to the all.log file for the given runID
func (l *FileLogger) GetAllLogsFileForRunID(runID string) (string, error) {
	dir, err := l.GetDirectoryForRunID(runID)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, AllLogsFilename), nil
}

// WorkerLogFile returns the path of a task's output log.
func (l *FileLogger) WorkerLogFile(runID string, taskID int, environment string) (string, error) {
	dir, err := l.GetDirectoryForRunID(runID)
	if err != nil {
		return "", err
	}
	name := fmt.Sprintf("task-%d", taskID)
	if env := safeFilename(environment); env != "" {
		name += "-" + env
	}
	return filepath.Join(dir, name+".log"), nil
}

// WorkerWriter opens the log file that receives one task's combined output.
// Closing the returned writer flushes and closes the file.
func (l *FileLogger) WorkerWriter(runID string, taskID int, environment string) (io.WriteCloser, string, error) {
	path, err := l.WorkerLogFile(runID, taskID, environment)
	if err != nil {
		return nil, "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, "", fmt.Errorf("failed to create directory %s: %w", filepath.Dir(path), err)
	}
	writer, err := l.getAsyncWriter(path)
	if err != nil {
		return nil, "", err
	}
	return stripWriter{writer}, path, nil
}

// LogResults writes one section per worker to all.log and the run summary to summary.log.
func (l *FileLogger) LogResults(summary *types.ExitSummary) error {
	if summary == nil {
		return fmt.Errorf("summary cannot be nil")
	}
	dir, err := l.GetDirectoryForRunID(summary.RunID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	allLogsFile, err := l.GetAllLogsFileForRunID(summary.RunID)
	if err != nil {
		return err
	}
	all, err := l.getAsyncWriter(allLogsFile)
	if err != nil {
		return err
	}
	for _, r := range summary.Results {
		if _, err := all.Write([]byte(stripansi.Strip(formatResult(r)))); err != nil {
			return err
		}
	}

	summaryFile, err := l.GetSummaryFileForRunID(summary.RunID)
	if err != nil {
		return err
	}
	writer, err := l.getAsyncWriter(summaryFile)
	if err != nil {
		return err
	}
	_, err = writer.Write([]byte(formatSummary(summary)))
	return err
}

// Complete flushes and closes every file opened by the logger.
func (l *FileLogger) Complete() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var firstErr error
	for _, writer := range l.asyncWriters {
		if err := writer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	l.asyncWriters = make(map[string]*AsyncFile)
	return firstErr
}

// getAsyncWriter gets or creates an AsyncFile for the given path
func (l *FileLogger) getAsyncWriter(path string) (*AsyncFile, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if writer, exists := l.asyncWriters[path]; exists {
		return writer, nil
	}
	writer, err := NewAsyncFile(path)
	if err != nil {
		return nil, err
	}
	l.asyncWriters[path] = writer
	return writer, nil
}

func formatResult(r *types.WorkerResult) string {
	var content strings.Builder

	status := "PASS"
	if !r.Passed() {
		status = "FAIL"
	}

	fmt.Fprintf(&content, "\n")
	fmt.Fprintf(&content, "┌─────────────────────────────────────────────────────────────────────┐\n")
	fmt.Fprintf(&content, "│ TASK %-3d %-59s │\n", r.TaskID, truncateString(r.Environment, 59))
	fmt.Fprintf(&content, "├─────────────────────────────────────────────────────────────────────┤\n")
	fmt.Fprintf(&content, "│ Status:    %-57s │\n", status)
	fmt.Fprintf(&content, "│ State:     %-57s │\n", r.State)
	fmt.Fprintf(&content, "│ Exit code: %-57d │\n", r.ExitCode)
	fmt.Fprintf(&content, "│ Duration:  %-57s │\n", r.Duration.Round(time.Millisecond))
	fmt.Fprintf(&content, "│ Command:   %-57s │\n", truncateString(r.Command, 57))
	fmt.Fprintf(&content, "└─────────────────────────────────────────────────────────────────────┘\n\n")

	if r.Error != nil {
		fmt.Fprintf(&content, "ERROR:\n")
		fmt.Fprintf(&content, "~~~~~~\n")
		fmt.Fprintf(&content, "%s\n\n", r.Error.Error())
	}
	if r.OutputTail != "" {
		fmt.Fprintf(&content, "OUTPUT:\n")
		fmt.Fprintf(&content, "~~~~~~~\n")
		fmt.Fprintf(&content, "%s\n", indentText(r.OutputTail, "  "))
	}
	return content.String()
}

func formatSummary(s *types.ExitSummary) string {
	var content strings.Builder
	fmt.Fprintf(&content, "Run ID: %s\n", s.RunID)
	fmt.Fprintf(&content, "%s\n\n", s.String())
	for _, r := range s.Results {
		status := "PASS"
		if !r.Passed() {
			status = "FAIL"
		}
		fmt.Fprintf(&content, "%s  task %d  exit %d  %s", status, r.TaskID, r.ExitCode, r.Environment)
		if r.LogFile != "" {
			fmt.Fprintf(&content, "  (%s)", r.LogFile)
		}
		fmt.Fprintf(&content, "\n")
	}
	return content.String()
}

// indentText adds indentation to each non-empty line
func indentText(text, indent string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if line != "" {
			lines[i] = indent + line
		}
	}
	return strings.Join(lines, "\n")
}

// truncateString truncates a string to the specified max length
// and adds an ellipsis if needed
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

// safeFilename converts a string to a safe filename by replacing problematic characters
func safeFilename(s string) string {
	s = strings.TrimSpace(s)
	replacer := strings.NewReplacer(
		"/", "_", "\\", "_", ":", "_", "*", "_", "?", "_",
		"\"", "_", "<", "_", ">", "_", "|", "_", " ", "_", ",", "_",
	)
	s = replacer.Replace(s)
	for strings.Contains(s, "___") {
		s = strings.ReplaceAll(s, "___", "_")
	}
	return s
}
