package runner

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var envVarName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// CommandTemplate produces the worker invocation for a task id. The rendered
// invocations differ only in the injected task id and in the shell form, which
// is chosen from the host OS at launch time.
type CommandTemplate struct {
	// Command is the suite entry point, e.g. "./bin/sf-worker --features features".
	Command string
	// TaskIDVar names the injected variable. Defaults to TASK_ID.
	TaskIDVar string
	// Env holds KEY=VALUE pairs set for every worker, after the inherited
	// environment and before the task id.
	Env []string
}

// Validate checks the template is usable.
func (t CommandTemplate) Validate() error {
	if strings.TrimSpace(t.Command) == "" {
		return errors.New("suite command is empty")
	}
	if v := t.taskIDVar(); !envVarName.MatchString(v) {
		return fmt.Errorf("invalid task id variable name %q", v)
	}
	for _, kv := range t.Env {
		name, _, ok := strings.Cut(kv, "=")
		if !ok || !envVarName.MatchString(name) {
			return fmt.Errorf("invalid worker environment entry %q", kv)
		}
		if name == t.taskIDVar() {
			return fmt.Errorf("worker environment must not set the task id variable %s", name)
		}
	}
	return nil
}

// ShellLine renders the command line the shell will run for taskID.
func (t CommandTemplate) ShellLine(goos string, taskID int) string {
	if isWindows(goos) {
		return fmt.Sprintf("set %s=%d& %s", t.taskIDVar(), taskID, t.Command)
	}
	return fmt.Sprintf("%s=%d %s", t.taskIDVar(), taskID, t.Command)
}

// Render returns the executable and arguments for taskID on goos.
func (t CommandTemplate) Render(goos string, taskID int) (string, []string) {
	if isWindows(goos) {
		return WindowsShell, []string{WindowsShellFlag, t.ShellLine(goos, taskID)}
	}
	return PosixShell, []string{PosixShellFlag, t.ShellLine(goos, taskID)}
}

// EnvAssignment returns the task id's KEY=VALUE pair.
func (t CommandTemplate) EnvAssignment(taskID int) string {
	return fmt.Sprintf("%s=%d", t.taskIDVar(), taskID)
}

// Environment returns the pairs appended to a worker's inherited environment.
// Later entries win over inherited ones of the same name.
func (t CommandTemplate) Environment(taskID int) []string {
	env := make([]string, 0, len(t.Env)+1)
	env = append(env, t.Env...)
	return append(env, t.EnvAssignment(taskID))
}

func (t CommandTemplate) taskIDVar() string {
	if t.TaskIDVar == "" {
		return DefaultTaskIDVar
	}
	return t.TaskIDVar
}

func isWindows(goos string) bool {
	return strings.EqualFold(goos, "windows")
}
