package util

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"time"

	extErrors "github.com/pkg/errors"
)

// ErrCommandTimeout marks a subprocess that exceeded its timeout. Callers
// report this distinctly from an ordinary non-zero exit.
var ErrCommandTimeout = errors.New("command timed out")

// CommandResult captures a finished subprocess.
type CommandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner runs an external command with a bounded timeout. A non-zero exit is
// not an error at this layer; callers inspect ExitCode. The error return is
// reserved for failures to run at all (missing binary, timeout).
type Runner interface {
	Run(ctx context.Context, timeout time.Duration, name string, args ...string) (CommandResult, error)
}

type execRunner struct{}

var _ Runner = execRunner{}

// NewExecRunner returns the Runner backed by os/exec.
func NewExecRunner() Runner {
	return execRunner{}
}

func (execRunner) Run(ctx context.Context, timeout time.Duration, name string, args ...string) (CommandResult, error) {
	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(runCtx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	result := CommandResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if runCtx.Err() == context.DeadlineExceeded {
		return result, extErrors.Wrapf(ErrCommandTimeout, "%s exceeded %s", name, timeout)
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		return result, extErrors.Wrapf(err, "Cannot run %s", name)
	}

	return result, nil
}
