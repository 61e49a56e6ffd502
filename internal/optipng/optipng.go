// Package optipng is a frontend for the optipng PNG optimizer.
//
// It builds an optipng invocation from a list of paths and a set of options,
// runs it through an exec.Executor, and parses the tool's progress report
// into a Result. Calls can block (Optimize), return a handle (Start), or
// deliver the result to a callback (OptimizeFunc).
package optipng

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"

	"github.com/google/uuid"

	pngexec "github.com/jmgilman/pngopt/internal/exec"
	"github.com/jmgilman/pngopt/internal/flags"
	"github.com/jmgilman/pngopt/internal/slogger"
)

// DefaultCommand is the optipng executable name looked up on PATH.
const DefaultCommand = "optipng"

// Sentinel errors for optimize operations.
var (
	ErrToolUnavailable = errors.New("optipng is not installed")
	ErrNoPaths         = errors.New("no paths given")
	ErrEmptyPath       = errors.New("path cannot be empty")
)

// Options configures a single optimize call.
type Options struct {
	// Level is passed as "-o <level>" when set. It is not range-checked.
	Level *int

	// Debug writes the assembled command line to DebugOutput before running.
	Debug bool

	// DebugOutput receives the command line when Debug is set.
	// Defaults to os.Stderr.
	DebugOutput io.Writer

	// CheckAvailability makes the call fail with ErrToolUnavailable before
	// spawning anything if optipng cannot be found.
	CheckAvailability bool

	// Flags are extra optipng switches placed between the level and the paths.
	Flags flags.Flags

	// Progress, if set, receives the tool's output as it is produced.
	Progress io.Writer
}

// Level returns a pointer to n, for use in Options.
func Level(n int) *int {
	return &n
}

// Config configures an Optimizer.
type Config struct {
	// Command is the optipng binary name or path. Defaults to DefaultCommand.
	Command string
}

// Optimizer runs optipng and parses its output. It holds no per-call state
// and is safe for concurrent use.
type Optimizer struct {
	exec    pngexec.Executor
	command string
}

// New creates an Optimizer that runs commands through e.
func New(e pngexec.Executor, cfg Config) *Optimizer {
	command := cfg.Command
	if command == "" {
		command = DefaultCommand
	}
	return &Optimizer{exec: e, command: command}
}

// Command returns the binary name this Optimizer invokes.
func (o *Optimizer) Command() string {
	return o.command
}

// IsAvailable reports whether the optipng binary can be found.
// Every call performs a fresh lookup.
func (o *Optimizer) IsAvailable() bool {
	_, err := o.exec.LookPath(o.command)
	return err == nil
}

// Optimize runs optipng on paths and blocks until it finishes.
//
// Files optipng could not process are reported in Result.Errors; they do not
// make the call fail. An error is returned only when the request is invalid,
// the tool is missing (with CheckAvailability set), or the process could not
// be run at all.
func (o *Optimizer) Optimize(ctx context.Context, paths []string, opts Options) (*Result, error) {
	runOpts, err := o.prepare(paths, opts)
	if err != nil {
		return nil, err
	}
	return o.run(ctx, runOpts, opts.Progress)
}

// Start launches optipng on paths without blocking. Request and availability
// errors are returned immediately; everything else is delivered through the
// returned Pending.
func (o *Optimizer) Start(ctx context.Context, paths []string, opts Options) (*Pending, error) {
	runOpts, err := o.prepare(paths, opts)
	if err != nil {
		return nil, err
	}

	p := newPending()
	go func() {
		p.resolve(o.run(ctx, runOpts, opts.Progress))
	}()
	return p, nil
}

// OptimizeFunc launches optipng on paths and calls fn exactly once with the
// outcome, on a goroutine owned by the Optimizer. Request and availability
// errors are returned directly and fn is not called.
func (o *Optimizer) OptimizeFunc(ctx context.Context, paths []string, opts Options, fn func(*Result, error)) error {
	p, err := o.Start(ctx, paths, opts)
	if err != nil {
		return err
	}
	go func() {
		fn(p.Wait())
	}()
	return nil
}

// prepare validates the request and assembles the command.
func (o *Optimizer) prepare(paths []string, opts Options) (*pngexec.RunOptions, error) {
	if len(paths) == 0 {
		return nil, ErrNoPaths
	}
	for i, p := range paths {
		if p == "" {
			return nil, fmt.Errorf("%w: argument %d", ErrEmptyPath, i)
		}
	}

	if opts.CheckAvailability && !o.IsAvailable() {
		return nil, ErrToolUnavailable
	}

	args, err := buildArgs(paths, opts)
	if err != nil {
		return nil, err
	}

	runOpts := &pngexec.RunOptions{
		Name: o.command,
		Args: args,
	}

	if opts.Debug {
		w := opts.DebugOutput
		if w == nil {
			w = os.Stderr
		}
		// Diagnostic only; a failed write must not stop the run.
		_, _ = fmt.Fprintln(w, runOpts.CommandLine())
	}

	return runOpts, nil
}

// buildArgs returns [-o <level>] [flags...] paths...
func buildArgs(paths []string, opts Options) ([]string, error) {
	var args []string
	if opts.Level != nil {
		args = append(args, "-o", strconv.Itoa(*opts.Level))
	}

	extra, err := flags.ToArgs(opts.Flags)
	if err != nil {
		return nil, fmt.Errorf("build flags: %w", err)
	}
	args = append(args, extra...)

	return append(args, paths...), nil
}

// run executes the prepared command and parses whatever it printed.
func (o *Optimizer) run(ctx context.Context, runOpts *pngexec.RunOptions, progress io.Writer) (*Result, error) {
	logger := slogger.L(ctx).With(slog.String("run_id", uuid.NewString()))

	// optipng reports progress on stderr; both streams share one buffer so the
	// sections stay in the order they were printed.
	var output bytes.Buffer
	var w io.Writer = &output
	if progress != nil {
		w = io.MultiWriter(&output, progress)
	}
	runOpts.Stdout = w
	runOpts.Stderr = w

	logger.Debug("running optipng", "command", runOpts.Name, "args", len(runOpts.Args))

	res, err := o.exec.Run(ctx, runOpts)
	if err != nil {
		// A killed process also surfaces as an ExitError, so the context
		// is checked first. Partial output from a killed run is discarded.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("run %s: %w", runOpts.Name, ctxErr)
		}
		// optipng exits non-zero when any file fails; that is reported per file.
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("run %s: %w", runOpts.Name, err)
		}
		exitCode := -1
		if res != nil {
			exitCode = res.ExitCode
		}
		logger.Debug("optipng exited with failure status", "exit_code", exitCode)
	}

	result := Parse(output.String())
	logger.Info("optipng finished",
		"succeeded", len(result.Succeeded),
		"errors", len(result.Errors),
	)
	return result, nil
}
