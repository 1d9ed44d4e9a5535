package runner

const (
	// DefaultTaskIDVar is the variable through which a worker learns its task id
	DefaultTaskIDVar = "TASK_ID"

	// Shell forms
	PosixShell       = "sh"
	PosixShellFlag   = "-c"
	WindowsShell     = "cmd"
	WindowsShellFlag = "/C"

	// defaultOutputTailBytes is how much of each worker's output is kept on its result
	defaultOutputTailBytes = 64 * 1024

	// maxLineBytes bounds a single relayed line; longer lines are split
	maxLineBytes = 64 * 1024
)
