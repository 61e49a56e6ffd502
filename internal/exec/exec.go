// Package exec provides an abstraction over running external programs.
// It is the only place pngopt touches os/exec; everything else talks to
// the Executor interface so tests can swap in a mock.
package exec

import (
	"context"
	"io"
	"strings"
)

// Result holds the output from a completed command.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// RunOptions configures command execution.
type RunOptions struct {
	Name   string    // Command name or path (required)
	Args   []string  // Command arguments
	Dir    string    // Working directory (empty = current)
	Env    []string  // Additional environment variables (KEY=VALUE format)
	Stdin  io.Reader // Stdin source (nil = no input)
	Stdout io.Writer // If set, streams stdout here instead of capturing
	Stderr io.Writer // If set, streams stderr here instead of capturing
}

// CommandLine returns the command name and arguments joined by single spaces.
// No quoting is applied; the string is meant for humans, not for a shell.
func (o *RunOptions) CommandLine() string {
	parts := make([]string, 0, len(o.Args)+1)
	parts = append(parts, o.Name)
	parts = append(parts, o.Args...)
	return strings.Join(parts, " ")
}

// Executor runs external commands.
//
//go:generate go run github.com/matryer/moq@latest -pkg mocks -out mocks/executor.go . Executor
type Executor interface {
	// Run executes a command and returns its output.
	// If Stdout/Stderr writers are set in opts, output streams there and
	// Result.Stdout/Stderr will be nil.
	// Returns os/exec.ExitError on non-zero exit (use errors.As to extract).
	Run(ctx context.Context, opts *RunOptions) (*Result, error)

	// LookPath searches for an executable in PATH.
	// Returns the full path if found, or an error if not.
	LookPath(name string) (string, error)
}
