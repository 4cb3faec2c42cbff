// Shell hook implementation: executes a script with event data in its environment.
package hooks

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// ShellHook executes shell scripts when events occur.
type ShellHook struct {
	id       string
	command  string
	args     []string
	env      []string
	passJSON bool
	timeout  time.Duration
}

// NewShellHook creates a new shell hook running scriptPath via /bin/bash.
func NewShellHook(id, scriptPath string, timeout time.Duration) *ShellHook {
	return &ShellHook{
		id:      id,
		command: "/bin/bash",
		args:    []string{scriptPath},
		timeout: timeout,
	}
}

// SetPassJSON enables passing event data as JSON via stdin.
func (h *ShellHook) SetPassJSON(passJSON bool) *ShellHook {
	h.passJSON = passJSON
	return h
}

// Execute runs the shell script with event data passed as environment variables.
func (h *ShellHook) Execute(ctx context.Context, event Event) error {
	execCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, h.command, h.args...)
	cmd.Env = append(cmd.Env, h.buildEnvironment(event)...)

	if h.passJSON {
		stdin, err := cmd.StdinPipe()
		if err != nil {
			return fmt.Errorf("shell hook %s: failed to create stdin pipe: %w", h.id, err)
		}
		go func() {
			defer stdin.Close()
			_ = json.NewEncoder(stdin).Encode(event)
		}()
	}

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("shell hook %s: execution failed: %w", h.id, err)
	}
	return nil
}

// Type returns the hook type.
func (h *ShellHook) Type() string { return "shell" }

// ID returns the hook ID.
func (h *ShellHook) ID() string { return h.id }

// buildEnvironment creates environment variables from event data.
func (h *ShellHook) buildEnvironment(event Event) []string {
	env := make([]string, 0, len(event.Data)+2)
	env = append(env, h.env...)
	env = append(env, "VIDSTREAM_EVENT_TYPE="+string(event.Type))
	env = append(env, fmt.Sprintf("VIDSTREAM_TIMESTAMP=%d", event.Timestamp))
	env = append(env, fmt.Sprintf("VIDSTREAM_CLIENT_ID=%d", event.ClientID))

	for key, value := range event.Data {
		envKey := "VIDSTREAM_" + strings.ToUpper(key)
		env = append(env, fmt.Sprintf("%s=%v", envKey, value))
	}
	return env
}
