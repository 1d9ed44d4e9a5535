// Package types contains shared types used across the sf-acceptor framework
package types

import (
	"fmt"
	"maps"
	"sort"
	"strings"
)

// Capabilities maps WebDriver capability names to their values,
// e.g. "browser" -> "chrome", "os_version" -> "11".
type Capabilities map[string]any

// Merge returns a copy of c with every key from defaults that c does not
// already define. Values already present in c always win.
func (c Capabilities) Merge(defaults Capabilities) Capabilities {
	merged := make(Capabilities, len(c)+len(defaults))
	maps.Copy(merged, c)
	for key, value := range defaults {
		if _, ok := merged[key]; !ok {
			merged[key] = value
		}
	}
	return merged
}

// Bool reports whether the capability is set to a truthy value.
// Both YAML booleans and the strings "true"/"1" are accepted.
func (c Capabilities) Bool(key string) bool {
	switch v := c[key].(type) {
	case bool:
		return v
	case string:
		return strings.EqualFold(v, "true") || v == "1"
	case int:
		return v != 0
	default:
		return false
	}
}

// String returns the capability as a string, or "" when it is unset.
func (c Capabilities) String(key string) string {
	v, ok := c[key]
	if !ok || v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

// Label renders a short human readable description, e.g. "chrome 120 / Windows 11".
func (c Capabilities) Label() string {
	browser := firstNonEmpty(c.String("browser"), c.String("browserName"), c.String("device"))
	version := firstNonEmpty(c.String("browser_version"), c.String("browserVersion"))
	osName := c.String("os")
	osVersion := c.String("os_version")

	var parts []string
	if b := strings.TrimSpace(browser + " " + version); b != "" {
		parts = append(parts, b)
	}
	if o := strings.TrimSpace(osName + " " + osVersion); o != "" {
		parts = append(parts, o)
	}
	if len(parts) == 0 {
		keys := make([]string, 0, len(c))
		for k := range c {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return strings.Join(keys, ",")
	}
	return strings.Join(parts, " / ")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// EnvironmentSpec is one entry in the environment matrix. TaskID is its
// ordinal position in the matrix and the only identifier a worker receives.
type EnvironmentSpec struct {
	TaskID       int
	Capabilities Capabilities
}

// GridConfig holds the remote WebDriver hub location and credentials.
type GridConfig struct {
	Server string
	User   string
	Key    string
}

// Matrix is the fully loaded environment matrix. Environments already have
// the global capabilities merged in; Capabilities keeps the raw defaults.
type Matrix struct {
	Grid         GridConfig
	Capabilities Capabilities
	Environments []EnvironmentSpec
}

// Resolve returns the capabilities for the given task id.
func (m *Matrix) Resolve(taskID int) (Capabilities, error) {
	for _, env := range m.Environments {
		if env.TaskID == taskID {
			return env.Capabilities.Merge(m.Capabilities), nil
		}
	}
	return nil, fmt.Errorf("no environment with task id %d (matrix has %d entries)", taskID, len(m.Environments))
}
