package runner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandTemplateRender(t *testing.T) {
	tmpl := CommandTemplate{Command: "./bin/sf-worker --features features"}

	tests := []struct {
		name     string
		goos     string
		wantName string
		wantArgs []string
	}{
		{
			name:     "linux",
			goos:     "linux",
			wantName: "sh",
			wantArgs: []string{"-c", "TASK_ID=2 ./bin/sf-worker --features features"},
		},
		{
			name:     "darwin",
			goos:     "darwin",
			wantName: "sh",
			wantArgs: []string{"-c", "TASK_ID=2 ./bin/sf-worker --features features"},
		},
		{
			name:     "windows",
			goos:     "windows",
			wantName: "cmd",
			wantArgs: []string{"/C", "set TASK_ID=2& ./bin/sf-worker --features features"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, args := tmpl.Render(tt.goos, 2)
			assert.Equal(t, tt.wantName, name)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestCommandTemplateOnlyTaskIDDiffers(t *testing.T) {
	tmpl := CommandTemplate{Command: "run-suite"}
	_, a0 := tmpl.Render("linux", 0)
	_, a1 := tmpl.Render("linux", 1)
	assert.Equal(t, "TASK_ID=0 run-suite", a0[1])
	assert.Equal(t, "TASK_ID=1 run-suite", a1[1])
}

func TestCommandTemplateCustomVariable(t *testing.T) {
	tmpl := CommandTemplate{Command: "run-suite", TaskIDVar: "SF_TASK"}
	assert.Equal(t, "SF_TASK=4 run-suite", tmpl.ShellLine("linux", 4))
	assert.Equal(t, "set SF_TASK=4& run-suite", tmpl.ShellLine("windows", 4))
	assert.Equal(t, "SF_TASK=4", tmpl.EnvAssignment(4))
}

func TestCommandTemplateValidate(t *testing.T) {
	require.NoError(t, CommandTemplate{Command: "run"}.Validate())

	err := CommandTemplate{Command: "   "}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "suite command is empty")

	err = CommandTemplate{Command: "run", TaskIDVar: "1BAD"}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid task id variable name")

	require.NoError(t, CommandTemplate{Command: "run", Env: []string{"CONFIG_FILE=/etc/m.yml", "EMPTY="}}.Validate())

	err = CommandTemplate{Command: "run", Env: []string{"NOEQUALS"}}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid worker environment entry")

	err = CommandTemplate{Command: "run", Env: []string{"TASK_ID=9"}}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must not set the task id variable")
}

func TestCommandTemplateEnvironment(t *testing.T) {
	tmpl := CommandTemplate{Command: "run", Env: []string{"CONFIG_FILE=/srv/parallel.conf.yml"}}
	assert.Equal(t, []string{"CONFIG_FILE=/srv/parallel.conf.yml", "TASK_ID=3"}, tmpl.Environment(3))
	assert.Equal(t, []string{"TASK_ID=0"}, CommandTemplate{Command: "run"}.Environment(0))
}
