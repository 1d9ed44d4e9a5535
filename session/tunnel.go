package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/ethereum/go-ethereum/log"
)

const DefaultLocalBinary = "BrowserStackLocal"

// TunnelConfig describes how to run the BrowserStack Local binary.
type TunnelConfig struct {
	Binary          string // defaults to BrowserStackLocal on PATH
	Key             string // access key, defaults to the grid key
	LocalIdentifier string
	ForceLocal      bool
	ExtraArgs       []string
	// Run overrides command execution, mainly for tests.
	Run CommandRunner
}

// CommandRunner runs a command to completion and returns its stdout.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// daemonState is what the binary prints in --daemon mode.
type daemonState struct {
	State   string `json:"state"`
	PID     int    `json:"pid"`
	Message any    `json:"message"`
}

// Tunnel is a running BrowserStack Local daemon.
type Tunnel struct {
	cfg TunnelConfig
	pid int
	log log.Logger
}

// StartTunnel starts the daemon and waits until it reports connected.
func StartTunnel(ctx context.Context, cfg TunnelConfig, logger log.Logger) (*Tunnel, error) {
	if cfg.Key == "" {
		return nil, errors.New("access key is required for the local tunnel")
	}
	if cfg.Binary == "" {
		cfg.Binary = DefaultLocalBinary
	}
	if cfg.Run == nil {
		cfg.Run = runCommand
	}

	args := append([]string{"--daemon", "start"}, cfg.args()...)
	logger.Info("Starting local tunnel", "binary", cfg.Binary, "localIdentifier", cfg.LocalIdentifier)
	out, err := cfg.Run(ctx, cfg.Binary, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to run %s: %w", cfg.Binary, err)
	}
	state, err := parseDaemonState(out)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(state.State, "connected") {
		return nil, fmt.Errorf("tunnel not connected: state %q: %v", state.State, state.Message)
	}
	logger.Info("Local tunnel connected", "pid", state.PID)
	return &Tunnel{cfg: cfg, pid: state.PID, log: logger}, nil
}

// PID returns the daemon's process id as reported at start.
func (t *Tunnel) PID() int {
	return t.pid
}

// Stop shuts the daemon down.
func (t *Tunnel) Stop(ctx context.Context) error {
	args := append([]string{"--daemon", "stop"}, t.cfg.args()...)
	if _, err := t.cfg.Run(ctx, t.cfg.Binary, args...); err != nil {
		return fmt.Errorf("failed to stop %s: %w", t.cfg.Binary, err)
	}
	t.log.Info("Local tunnel stopped", "pid", t.pid)
	return nil
}

func (c TunnelConfig) args() []string {
	args := []string{"--key", c.Key}
	if c.LocalIdentifier != "" {
		args = append(args, "--local-identifier", c.LocalIdentifier)
	}
	if c.ForceLocal {
		args = append(args, "--force-local")
	}
	return append(args, c.ExtraArgs...)
}

func parseDaemonState(out []byte) (*daemonState, error) {
	// The binary may print banner lines before the JSON status.
	text := strings.TrimSpace(string(out))
	if idx := strings.Index(text, "{"); idx > 0 {
		text = text[idx:]
	}
	var state daemonState
	if err := json.Unmarshal([]byte(text), &state); err != nil {
		return nil, fmt.Errorf("unexpected tunnel output %q: %w", strings.TrimSpace(string(out)), err)
	}
	return &state, nil
}
