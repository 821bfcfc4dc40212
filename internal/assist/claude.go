package assist

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
)

// ErrInterrupted is returned when the claude process is stopped by a signal.
var ErrInterrupted = errors.New("claude interrupted")

// Claude runs the local Claude Code CLI in print mode. It needs no API key
// of its own.
type Claude struct {
	Path string
}

func (c *Claude) Name() string {
	return "claude"
}

func (c *Claude) pathOrDefault() string {
	if c.Path == "" {
		return "claude"
	}
	return c.Path
}

// Available checks that the claude CLI can be found.
func (c *Claude) Available() error {
	if _, err := exec.LookPath(c.pathOrDefault()); err != nil {
		return fmt.Errorf("%w: claude CLI not found at %q, install Claude Code or switch provider", ErrNoBackend, c.pathOrDefault())
	}
	return nil
}

// Generate runs `claude -p <prompt>` and returns its stdout.
func (c *Claude) Generate(ctx context.Context, prompt string) (string, error) {
	if err := c.Available(); err != nil {
		return "", err
	}

	cmd := exec.CommandContext(ctx, c.pathOrDefault(), "-p", prompt)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", &TransportError{Err: ctx.Err()}
		}
		if isInterrupt(err) {
			return "", ErrInterrupted
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			msg := strings.TrimSpace(stderr.String())
			if msg == "" {
				msg = fmt.Sprintf("claude exited with code %d", exitErr.ExitCode())
			}
			return "", &RemoteError{Message: msg}
		}
		return "", &TransportError{Err: err}
	}

	text := strings.TrimSpace(stdout.String())
	if text == "" {
		return "", ErrInvalidResponse
	}
	return text, nil
}

func isInterrupt(err error) bool {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			return status.Signal() == syscall.SIGINT || status.Signal() == syscall.SIGTERM
		}
	}
	return false
}

// ConfigureMCP registers kilnBinaryPath as a user-scoped MCP server in
// Claude Code. An existing registration pointing at the same binary is
// left alone.
func (c *Claude) ConfigureMCP(kilnBinaryPath, serverName string) error {
	if err := c.Available(); err != nil {
		return err
	}
	claudePath := c.pathOrDefault()

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("cannot locate home directory: %w", err)
	}

	type mcpServerConfig struct {
		Command string   `json:"command"`
		Args    []string `json:"args"`
	}
	var settings struct {
		MCPServers map[string]mcpServerConfig `json:"mcpServers"`
	}
	if data, err := os.ReadFile(filepath.Join(homeDir, ".claude.json")); err == nil {
		_ = json.Unmarshal(data, &settings)
	}

	if existing, ok := settings.MCPServers[serverName]; ok {
		if existing.Command == kilnBinaryPath {
			return nil
		}
		_ = exec.Command(claudePath, "mcp", "remove", serverName, "-s", "user").Run()
	}

	cmd := exec.Command(claudePath, "mcp", "add", "--scope", "user", serverName, "--", kilnBinaryPath, "mcp", "serve")
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("claude mcp add failed: %s", strings.TrimSpace(string(out)))
	}
	return nil
}
