package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCapabilitiesMerge(t *testing.T) {
	env := Capabilities{"browser": "firefox", "build": "env-build"}
	defaults := Capabilities{"build": "global-build", "project": "storefront"}

	merged := env.Merge(defaults)

	assert.Equal(t, "firefox", merged["browser"])
	assert.Equal(t, "env-build", merged["build"], "environment value must win over the default")
	assert.Equal(t, "storefront", merged["project"])

	// inputs are not mutated
	assert.NotContains(t, env, "project")
	assert.Len(t, defaults, 2)
}

func TestCapabilitiesMergeNilDefaults(t *testing.T) {
	env := Capabilities{"browser": "safari"}
	assert.Equal(t, env, env.Merge(nil))
}

func TestCapabilitiesBool(t *testing.T) {
	caps := Capabilities{
		"a": true,
		"b": "true",
		"c": "1",
		"d": false,
		"e": "no",
		"f": 1,
	}
	assert.True(t, caps.Bool("a"))
	assert.True(t, caps.Bool("b"))
	assert.True(t, caps.Bool("c"))
	assert.False(t, caps.Bool("d"))
	assert.False(t, caps.Bool("e"))
	assert.True(t, caps.Bool("f"))
	assert.False(t, caps.Bool("missing"))
}

func TestCapabilitiesLabel(t *testing.T) {
	tests := []struct {
		name string
		caps Capabilities
		want string
	}{
		{
			name: "desktop",
			caps: Capabilities{"browser": "chrome", "browser_version": "120", "os": "Windows", "os_version": "11"},
			want: "chrome 120 / Windows 11",
		},
		{
			name: "device",
			caps: Capabilities{"device": "iPhone 15", "os_version": "17"},
			want: "iPhone 15 / 17",
		},
		{
			name: "unknown keys",
			caps: Capabilities{"z": 1, "a": 2},
			want: "a,z",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.caps.Label())
		})
	}
}

func TestMatrixResolve(t *testing.T) {
	m := &Matrix{
		Capabilities: Capabilities{"browserstack.debug": true, "browser": "default"},
		Environments: []EnvironmentSpec{
			{TaskID: 0, Capabilities: Capabilities{"browser": "chrome"}},
			{TaskID: 1, Capabilities: Capabilities{"browser": "edge"}},
		},
	}

	caps, err := m.Resolve(1)
	require.NoError(t, err)
	assert.Equal(t, "edge", caps["browser"])
	assert.Equal(t, true, caps["browserstack.debug"])

	_, err = m.Resolve(7)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "task id 7")
}
