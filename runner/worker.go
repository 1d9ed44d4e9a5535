package runner

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/storefront-qa/sf-acceptor/exitcodes"
	"github.com/storefront-qa/sf-acceptor/types"
)

// SpawnError reports a worker that could not be started. It is recorded
// against the worker's task id and never aborts the rest of the matrix.
type SpawnError struct {
	TaskID int
	Err    error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to spawn worker for task %d: %v", e.TaskID, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// ExitError reports a worker that exited non-zero.
type ExitError struct {
	TaskID   int
	ExitCode int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("worker for task %d exited with code %d", e.TaskID, e.ExitCode)
}

// workerHandle owns one spawned worker process and its combined output stream.
// It is owned by the coordinator and discarded once the process has exited
// and its output has been drained.
type workerHandle struct {
	env     types.EnvironmentSpec
	cmd     *exec.Cmd
	cleanup func()
	output  *os.File // read end of the combined stdout/stderr pipe
	started time.Time

	tail   *tailBuffer
	logOut io.WriteCloser // optional per-task log file
	result *types.WorkerResult
}

func (h *workerHandle) setState(s types.WorkerState) {
	h.result.State = s
}

// relay copies the worker's combined output line by line into dst, the
// tail buffer and the per-task log, until end of stream.
func (h *workerHandle) relay(dst func(line []byte)) error {
	if h.output == nil {
		return nil
	}
	reader := bufio.NewReaderSize(h.output, maxLineBytes)
	for {
		line, err := reader.ReadSlice('\n')
		if len(line) > 0 {
			_, _ = h.tail.Write(line)
			if h.logOut != nil {
				_, _ = h.logOut.Write(line)
			}
			dst(line)
		}
		switch {
		case err == nil, errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF), errors.Is(err, os.ErrClosed):
			return nil
		default:
			return fmt.Errorf("failed to read worker output: %w", err)
		}
	}
}

// wait reaps the process and records its exit status. It must only be
// called once the output stream has been drained.
func (h *workerHandle) wait() {
	defer h.close()

	err := h.cmd.Wait()
	h.result.Duration = time.Since(h.started)
	h.setState(types.WorkerStateExited)

	if err == nil {
		h.result.ExitCode = exitcodes.Success
		return
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code := exitErr.ExitCode()
		if code < 0 {
			// killed by a signal
			code = exitcodes.RuntimeErr
			h.result.Error = fmt.Errorf("worker for task %d terminated: %w", h.env.TaskID, err)
		} else {
			h.result.Error = &ExitError{TaskID: h.env.TaskID, ExitCode: code}
		}
		h.result.ExitCode = code
		return
	}

	h.result.ExitCode = exitcodes.RuntimeErr
	h.result.Error = fmt.Errorf("failed waiting for worker for task %d: %w", h.env.TaskID, err)
}

func (h *workerHandle) close() {
	if h.output != nil {
		_ = h.output.Close()
	}
	if h.logOut != nil {
		_ = h.logOut.Close()
	}
	if h.cleanup != nil {
		h.cleanup()
	}
	h.result.OutputTail = h.tail.String()
	h.result.OutputBytes = h.tail.TotalBytes()
}
