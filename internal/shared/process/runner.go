// Package process runs external commands and captures their output.
package process

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
)

// Output captures one external command invocation.
type Output struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner is the interface for running commands.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (Output, error)
}

// ExecRunner uses os/exec.
type ExecRunner struct{}

// Run runs a command and waits for it to exit. A non-zero exit is returned
// as an *exec.ExitError alongside the captured output; any other error means
// the command could not be started and ExitCode is -1.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) (Output, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	out := Output{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if err != nil {
		out.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			out.ExitCode = exitErr.ExitCode()
		}
		return out, err
	}

	return out, nil
}

// IsExitError reports whether err came from a command that ran and exited
// non-zero, as opposed to one that never started.
func IsExitError(err error) bool {
	var exitErr *exec.ExitError
	return errors.As(err, &exitErr)
}
