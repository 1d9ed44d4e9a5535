// Package session opens the remote browser session a worker runs its
// scenarios in, selected from the environment matrix by task id.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/log"
	"github.com/tebeka/selenium"

	"github.com/storefront-qa/sf-acceptor/types"
)

const (
	// TaskIDEnvVar carries the worker's task id, set by the coordinator.
	TaskIDEnvVar = "TASK_ID"
	// LocalCapability enables the BrowserStack Local tunnel for an environment.
	LocalCapability = "browserstack.local"
	// LocalIdentifierCapability names the tunnel a session should use.
	LocalIdentifierCapability = "browserstack.localIdentifier"
	hubPath                   = "/wd/hub"
)

// TaskID reads the worker's task id from the environment. An unset
// variable means task 0, so a lone worker runs the first environment.
func TaskID(getenv func(string) string) (int, error) {
	return TaskIDFrom(getenv, TaskIDEnvVar)
}

// TaskIDFrom is TaskID with a custom variable name.
func TaskIDFrom(getenv func(string) string, name string) (int, error) {
	raw := strings.TrimSpace(getenv(name))
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.Atoi(raw)
	if err != nil || id < 0 {
		return 0, fmt.Errorf("invalid %s %q: must be a non-negative integer", name, raw)
	}
	return id, nil
}

// HubURL builds the remote WebDriver endpoint with credentials embedded,
// https://<user>:<key>@<server>/wd/hub. A server given with a scheme keeps it.
func HubURL(grid types.GridConfig) (string, error) {
	if grid.Server == "" {
		return "", errors.New("grid server is empty")
	}
	server := grid.Server
	if !strings.Contains(server, "://") {
		server = "https://" + server
	}
	u, err := url.Parse(server)
	if err != nil {
		return "", fmt.Errorf("invalid grid server %q: %w", grid.Server, err)
	}
	if grid.User != "" || grid.Key != "" {
		u.User = url.UserPassword(grid.User, grid.Key)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = hubPath
	}
	return u.String(), nil
}

// RemoteFunc opens a WebDriver session. selenium.NewRemote satisfies it.
type RemoteFunc func(caps selenium.Capabilities, urlPrefix string) (selenium.WebDriver, error)

// Options configures Open.
type Options struct {
	Log log.Logger
	// Tunnel settings, used when the environment enables browserstack.local.
	Tunnel TunnelConfig
	// NewRemote overrides selenium.NewRemote, mainly for tests.
	NewRemote RemoteFunc
}

// Session is an open remote browser session bound to one environment.
type Session struct {
	selenium.WebDriver

	TaskID       int
	Capabilities types.Capabilities

	tunnel *Tunnel
	log    log.Logger
}

// Open resolves the capabilities for taskID, starts the local tunnel when
// the environment asks for one, and opens the remote session.
func Open(ctx context.Context, m *types.Matrix, taskID int, opts Options) (*Session, error) {
	if m == nil {
		return nil, errors.New("matrix is required")
	}
	if opts.Log == nil {
		opts.Log = log.Root()
	}
	if opts.NewRemote == nil {
		opts.NewRemote = selenium.NewRemote
	}
	logger := opts.Log.New("component", "session", "taskID", taskID)

	caps, err := m.Resolve(taskID)
	if err != nil {
		return nil, err
	}
	hub, err := HubURL(m.Grid)
	if err != nil {
		return nil, err
	}

	s := &Session{
		TaskID:       taskID,
		Capabilities: caps,
		log:          logger,
	}

	if caps.Bool(LocalCapability) {
		tunnelCfg := opts.Tunnel
		if tunnelCfg.Key == "" {
			tunnelCfg.Key = m.Grid.Key
		}
		tunnel, err := StartTunnel(ctx, tunnelCfg, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to start local tunnel: %w", err)
		}
		s.tunnel = tunnel
		// Route the session through this worker's tunnel when several run side by side.
		if tunnelCfg.LocalIdentifier != "" && caps.String(LocalIdentifierCapability) == "" {
			caps[LocalIdentifierCapability] = tunnelCfg.LocalIdentifier
		}
	}

	logger.Info("Opening remote session", "environment", caps.Label(), "server", m.Grid.Server)
	wd, err := opts.NewRemote(selenium.Capabilities(caps), hub)
	if err != nil {
		if s.tunnel != nil {
			if stopErr := s.tunnel.Stop(context.WithoutCancel(ctx)); stopErr != nil {
				logger.Warn("Failed to stop local tunnel", "err", stopErr)
			}
		}
		return nil, fmt.Errorf("failed to open remote session on %s: %w", m.Grid.Server, err)
	}
	s.WebDriver = wd
	return s, nil
}

// Close quits the remote session and stops the tunnel, if any.
func (s *Session) Close() error {
	var errs []error
	if s.WebDriver != nil {
		if err := s.WebDriver.Quit(); err != nil {
			errs = append(errs, fmt.Errorf("failed to quit remote session: %w", err))
		}
		s.WebDriver = nil
	}
	if s.tunnel != nil {
		if err := s.tunnel.Stop(context.Background()); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop local tunnel: %w", err))
		}
		s.tunnel = nil
	}
	s.log.Info("Session closed")
	return errors.Join(errs...)
}
