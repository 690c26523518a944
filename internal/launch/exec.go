package launch

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"syscall"
)

// Executor performs the hand-off to the resolved server command. On success
// the bootstrap process is replaced wholesale: the server inherits the
// environment, the open descriptors, and the exit status.
type Executor struct {
	lookPath func(file string) (string, error)
	execve   func(argv0 string, argv []string, envv []string) error
}

// NewExecutor returns an Executor backed by the real process table.
func NewExecutor() *Executor {
	return &Executor{
		lookPath: exec.LookPath,
		execve:   syscall.Exec,
	}
}

// Exec resolves cmd.Path on PATH, logs the chosen branch, and replaces the
// current process with the server. It returns only on failure: a missing
// binary or a refused execve. There is no retry and no alternate branch.
func (e *Executor) Exec(cmd Command) error {
	argv0, err := e.lookPath(cmd.Path)
	if err != nil {
		return fmt.Errorf("locating server binary %q: %w", cmd.Path, err)
	}

	slog.Info("launching application server",
		"branch", string(cmd.Branch),
		"command", cmd.String(),
	)

	if err := e.execve(argv0, cmd.Args, os.Environ()); err != nil {
		return fmt.Errorf("exec %s: %w", argv0, err)
	}
	return nil
}
