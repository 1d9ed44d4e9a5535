// Package matrix loads the environment matrix that the coordinator fans out over.
package matrix

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/storefront-qa/sf-acceptor/types"
)

const (
	// ConfigFileEnvVar names the variable holding the matrix path.
	ConfigFileEnvVar = "CONFIG_FILE"
	// DefaultConfigFile is used when ConfigFileEnvVar is unset.
	DefaultConfigFile = "config/single.conf.yml"

	// UsernameEnvVar and AccessKeyEnvVar override the credentials in the config file.
	UsernameEnvVar  = "BROWSERSTACK_USERNAME"
	AccessKeyEnvVar = "BROWSERSTACK_ACCESS_KEY"

	featureContextKey = "FeatureContext"
)

// ConfigurationError reports a missing or malformed environment matrix.
// It is fatal at startup: no worker is spawned once one is returned.
type ConfigurationError struct {
	Path string
	Err  error
}

func (e *ConfigurationError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("invalid environment matrix: %v", e.Err)
	}
	return fmt.Sprintf("invalid environment matrix %s: %v", e.Path, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// IsConfigurationError checks if the error is or wraps a ConfigurationError
func IsConfigurationError(err error) bool {
	var cfgErr *ConfigurationError
	return err != nil && errors.As(err, &cfgErr)
}

// parameters is the block holding the grid settings and the matrix itself.
type parameters struct {
	Server       string           `yaml:"server" validate:"required"`
	User         string           `yaml:"user"`
	Key          string           `yaml:"key"`
	Capabilities map[string]any   `yaml:"capabilities"`
	Environments []map[string]any `yaml:"environments" validate:"min=1"`
}

// behatDocument mirrors a behat.yml style profile:
// default.suites.<suite>.contexts[].FeatureContext.parameters
type behatDocument struct {
	Default *struct {
		Suites map[string]struct {
			Contexts []yaml.Node `yaml:"contexts"`
		} `yaml:"suites"`
	} `yaml:"default"`
}

type contextEntry struct {
	Parameters *parameters `yaml:"parameters"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// ConfigPath resolves the matrix location from CONFIG_FILE, falling back to
// DefaultConfigFile when the variable is unset or empty.
func ConfigPath(getenv func(string) string) string {
	if getenv == nil {
		getenv = os.Getenv
	}
	if p := strings.TrimSpace(getenv(ConfigFileEnvVar)); p != "" {
		return p
	}
	return DefaultConfigFile
}

// Load reads and validates the environment matrix at path.
// Credentials from the environment take precedence over the file.
func Load(path string) (*types.Matrix, error) {
	if path == "" {
		return nil, &ConfigurationError{Err: errors.New("config file path is empty")}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigurationError{Path: path, Err: fmt.Errorf("failed to read file: %w", err)}
	}
	m, err := Parse(data)
	if err != nil {
		var cfgErr *ConfigurationError
		if errors.As(err, &cfgErr) {
			cfgErr.Path = path
			return nil, cfgErr
		}
		return nil, &ConfigurationError{Path: path, Err: err}
	}
	ApplyCredentials(m, os.Getenv)
	return m, nil
}

// Parse decodes a matrix document. Both the behat profile layout and a flat
// layout (parameters at the document root) are accepted.
func Parse(data []byte) (*types.Matrix, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &ConfigurationError{Err: errors.New("document is empty")}
	}

	params, err := findParameters(data)
	if err != nil {
		return nil, &ConfigurationError{Err: err}
	}
	if err := validate.Struct(params); err != nil {
		return nil, &ConfigurationError{Err: describeValidation(err)}
	}

	m := &types.Matrix{
		Grid: types.GridConfig{
			Server: params.Server,
			User:   params.User,
			Key:    params.Key,
		},
		Capabilities: types.Capabilities(params.Capabilities),
		Environments: make([]types.EnvironmentSpec, 0, len(params.Environments)),
	}
	for i, env := range params.Environments {
		if len(env) == 0 {
			return nil, &ConfigurationError{Err: fmt.Errorf("environment %d has no capabilities", i)}
		}
		m.Environments = append(m.Environments, types.EnvironmentSpec{
			TaskID:       i,
			Capabilities: types.Capabilities(env).Merge(m.Capabilities),
		})
	}
	return m, nil
}

// ApplyCredentials overrides the grid user and key with BROWSERSTACK_USERNAME
// and BROWSERSTACK_ACCESS_KEY when those are set.
func ApplyCredentials(m *types.Matrix, getenv func(string) string) {
	if v := getenv(UsernameEnvVar); v != "" {
		m.Grid.User = v
	}
	if v := getenv(AccessKeyEnvVar); v != "" {
		m.Grid.Key = v
	}
}

func findParameters(data []byte) (*parameters, error) {
	var doc behatDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if doc.Default == nil {
		var flat parameters
		if err := yaml.Unmarshal(data, &flat); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
		return &flat, nil
	}

	suite, ok := doc.Default.Suites["default"]
	if !ok {
		return nil, errors.New("profile has no default suite")
	}
	for _, node := range suite.Contexts {
		if node.Kind != yaml.MappingNode {
			continue
		}
		var entry map[string]contextEntry
		if err := node.Decode(&entry); err != nil {
			return nil, fmt.Errorf("failed to decode suite context: %w", err)
		}
		if ctx, ok := entry[featureContextKey]; ok && ctx.Parameters != nil {
			return ctx.Parameters, nil
		}
	}
	return nil, fmt.Errorf("default suite has no %s parameters", featureContextKey)
}

func describeValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", strings.ToLower(fe.Field())))
		case "min":
			msgs = append(msgs, fmt.Sprintf("%s needs at least %s entry", strings.ToLower(fe.Field()), fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s validation", strings.ToLower(fe.Field()), fe.Tag()))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}
