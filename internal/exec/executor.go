package exec

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"
)

// DefaultWaitDelay bounds how long Run waits for output pipes to drain
// after the process is killed. Children of a killed optipng wrapper
// script can hold the pipes open indefinitely otherwise.
const DefaultWaitDelay = time.Second

type executor struct {
	waitDelay time.Duration
}

// New returns an Executor backed by os/exec.
func New() Executor {
	return &executor{waitDelay: DefaultWaitDelay}
}

// Run starts opts.Name and waits for it. When ctx ends first the process is
// killed and the returned error wraps both ctx.Err() and the exit error.
func (e *executor) Run(ctx context.Context, opts *RunOptions) (*Result, error) {
	cmd := exec.CommandContext(ctx, opts.Name, opts.Args...) //nolint:gosec // the binary is the configured optipng
	cmd.WaitDelay = e.waitDelay
	cmd.Dir = opts.Dir
	cmd.Stdin = opts.Stdin
	if len(opts.Env) > 0 {
		cmd.Env = append(os.Environ(), opts.Env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = writerOr(opts.Stdout, &stdout)
	cmd.Stderr = writerOr(opts.Stderr, &stderr)

	err := cmd.Run()

	result := &Result{ExitCode: -1}
	if cmd.ProcessState != nil {
		result.ExitCode = cmd.ProcessState.ExitCode()
	}
	if opts.Stdout == nil {
		result.Stdout = stdout.Bytes()
	}
	if opts.Stderr == nil {
		result.Stderr = stderr.Bytes()
	}

	if err != nil && ctx.Err() != nil {
		return result, fmt.Errorf("%w: %w", ctx.Err(), err)
	}
	return result, err
}

func (e *executor) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

// writerOr streams to w when the caller supplied one, else captures.
func writerOr(w, fallback io.Writer) io.Writer {
	if w != nil {
		return w
	}
	return fallback
}
