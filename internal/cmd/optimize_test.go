package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmgilman/pngopt/internal/batch"
	"github.com/jmgilman/pngopt/internal/config"
	pngexec "github.com/jmgilman/pngopt/internal/exec"
	"github.com/jmgilman/pngopt/internal/exec/mocks"
	"github.com/jmgilman/pngopt/internal/flags"
	"github.com/jmgilman/pngopt/internal/optipng"
)

func defaultConfig() *config.Config {
	return &config.Config{
		Tool:     config.ToolConfig{Path: "optipng"},
		Optimize: config.OptimizeConfig{CheckAvailability: true, Flags: map[string]any{}},
		Batch:    config.BatchConfig{Jobs: 1},
		Output:   config.OutputConfig{Format: "text"},
	}
}

// newTestOptimizeCmd builds a standalone optimize command with args parsed.
func newTestOptimizeCmd(t *testing.T, cfg *config.Config, args ...string) (*cobra.Command, []string, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()

	c := &cobra.Command{Use: "optimize"}
	addOptimizeFlags(c)
	c.Flags().CountP("verbose", "v", "")
	require.NoError(t, c.ParseFlags(args))

	var stdout, stderr bytes.Buffer
	c.SetOut(&stdout)
	c.SetErr(&stderr)
	c.SetContext(WithConfig(context.Background(), cfg))

	return c, c.Flags().Args(), &stdout, &stderr
}

// stubExecutor swaps newExecutor for a mock that answers like optipng.
func stubExecutor(t *testing.T, mock *mocks.ExecutorMock) {
	t.Helper()
	orig := newExecutor
	newExecutor = func() pngexec.Executor { return mock }
	t.Cleanup(func() { newExecutor = orig })
}

func optipngMock() *mocks.ExecutorMock {
	return &mocks.ExecutorMock{
		LookPathFunc: func(name string) (string, error) { return "/usr/bin/" + name, nil },
		RunFunc: func(_ context.Context, opts *pngexec.RunOptions) (*pngexec.Result, error) {
			var out strings.Builder
			for _, a := range opts.Args {
				if !strings.HasSuffix(a, ".png") {
					continue
				}
				fmt.Fprintf(&out, "** Processing: %s\n", a)
				switch {
				case strings.Contains(a, "broken"):
					out.WriteString("Error: Not a PNG file\n")
				case strings.Contains(a, "optimal"):
					fmt.Fprintf(&out, "%s is already optimized.\n", a)
				default:
					out.WriteString("Output file size = 600 bytes (400 bytes = 40.00% decrease)\n")
				}
			}
			_, _ = opts.Stderr.Write([]byte(out.String()))
			return &pngexec.Result{}, nil
		},
	}
}

func TestParseSets(t *testing.T) {
	tests := []struct {
		name    string
		base    map[string]any
		sets    []string
		want    flags.Flags
		wantErr error
	}{
		{
			name: "bare key enables switch",
			sets: []string{"preserve"},
			want: flags.Flags{"preserve": true},
		},
		{
			name: "key value",
			sets: []string{"strip=all"},
			want: flags.Flags{"strip": "all"},
		},
		{
			name: "leading dash is ignored",
			sets: []string{"-fix"},
			want: flags.Flags{"fix": true},
		},
		{
			name: "false disables a config switch",
			base: map[string]any{"preserve": true},
			sets: []string{"preserve=false"},
			want: flags.Flags{"preserve": false},
		},
		{
			name: "set overrides config",
			base: map[string]any{"strip": "all", "quiet": true},
			sets: []string{"strip=none"},
			want: flags.Flags{"strip": "none", "quiet": true},
		},
		{
			name:    "empty key",
			sets:    []string{"=x"},
			wantErr: ErrInvalidSet,
		},
		{
			name:    "reserved level switch",
			sets:    []string{"o=7"},
			wantErr: flags.ErrReservedFlag,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseSets(tt.base, tt.sets)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseSets_DoesNotModifyBase(t *testing.T) {
	base := map[string]any{"strip": "all"}

	_, err := parseSets(base, []string{"strip=none"})

	require.NoError(t, err)
	assert.Equal(t, "all", base["strip"])
}

func TestParseOptimizeFlags(t *testing.T) {
	t.Run("falls back to config", func(t *testing.T) {
		cfg := defaultConfig()
		cfg.Optimize.Level = optipng.Level(4)
		cfg.Batch.Jobs = 3
		cfg.Batch.Size = 10
		cfg.Output.Format = "json"
		c, _, _, _ := newTestOptimizeCmd(t, cfg)

		f, err := parseOptimizeFlags(c, cfg)

		require.NoError(t, err)
		require.NotNil(t, f.level)
		assert.Equal(t, 4, *f.level)
		assert.Equal(t, 3, f.jobs)
		assert.Equal(t, 10, f.batchSize)
		assert.Equal(t, "json", f.format)
		assert.True(t, f.check)
	})

	t.Run("no level anywhere leaves it unset", func(t *testing.T) {
		cfg := defaultConfig()
		c, _, _, _ := newTestOptimizeCmd(t, cfg)

		f, err := parseOptimizeFlags(c, cfg)

		require.NoError(t, err)
		assert.Nil(t, f.level)
	})

	t.Run("flags override config", func(t *testing.T) {
		cfg := defaultConfig()
		cfg.Optimize.Level = optipng.Level(4)
		c, _, _, _ := newTestOptimizeCmd(t, cfg, "-o", "0", "--check=false", "-j", "2", "-f", "yaml", "-vv")

		f, err := parseOptimizeFlags(c, cfg)

		require.NoError(t, err)
		require.NotNil(t, f.level)
		assert.Equal(t, 0, *f.level)
		assert.False(t, f.check)
		assert.Equal(t, 2, f.jobs)
		assert.Equal(t, "yaml", f.format)
		assert.Equal(t, 2, f.verbosity)
	})

	t.Run("rejects negative level", func(t *testing.T) {
		cfg := defaultConfig()
		c, _, _, _ := newTestOptimizeCmd(t, cfg, "-o", "-1")

		_, err := parseOptimizeFlags(c, cfg)

		assert.ErrorContains(t, err, "non-negative")
	})

	t.Run("rejects unknown format", func(t *testing.T) {
		cfg := defaultConfig()
		c, _, _, _ := newTestOptimizeCmd(t, cfg, "--output", "xml")

		_, err := parseOptimizeFlags(c, cfg)

		assert.ErrorIs(t, err, config.ErrInvalidFormat)
	})

	t.Run("rejects zero jobs", func(t *testing.T) {
		cfg := defaultConfig()
		c, _, _, _ := newTestOptimizeCmd(t, cfg, "--jobs", "0")

		_, err := parseOptimizeFlags(c, cfg)

		assert.ErrorIs(t, err, batch.ErrInvalidJobs)
	})
}

func TestRunOptimizeCmd(t *testing.T) {
	t.Run("reports every file", func(t *testing.T) {
		mock := optipngMock()
		stubExecutor(t, mock)
		c, args, stdout, _ := newTestOptimizeCmd(t, defaultConfig(), "-y", "-v", "-o", "7", "a.png", "optimal.png")

		err := runOptimizeCmd(c, args)

		require.NoError(t, err)
		assert.Contains(t, stdout.String(), "FILE")
		assert.Regexp(t, `a\.png\s+optimized\s+-40\.00%`, stdout.String())
		assert.Regexp(t, `optimal\.png\s+already optimal\s+0\.00%`, stdout.String())

		require.Len(t, mock.RunCalls(), 1)
		assert.Equal(t, []string{"-o", "7", "a.png", "optimal.png"}, mock.RunCalls()[0].Opts.Args)
	})

	t.Run("failed files make the command fail after reporting", func(t *testing.T) {
		stubExecutor(t, optipngMock())
		c, args, stdout, _ := newTestOptimizeCmd(t, defaultConfig(), "-y", "-v", "a.png", "broken.png")

		err := runOptimizeCmd(c, args)

		assert.ErrorIs(t, err, ErrFilesFailed)
		assert.Contains(t, stdout.String(), "broken.png: Not a PNG file")
		assert.Contains(t, stdout.String(), "a.png")
	})

	t.Run("json report", func(t *testing.T) {
		stubExecutor(t, optipngMock())
		c, args, stdout, _ := newTestOptimizeCmd(t, defaultConfig(), "-y", "-v", "--output", "json", "a.png")

		err := runOptimizeCmd(c, args)
		require.NoError(t, err)

		var res optipng.Result
		require.NoError(t, json.Unmarshal(stdout.Bytes(), &res))
		assert.Equal(t, map[string]float64{"a.png": -40}, res.Succeeded)
		assert.Empty(t, res.Errors)
	})

	t.Run("debug prints the command line", func(t *testing.T) {
		stubExecutor(t, optipngMock())
		c, args, _, stderr := newTestOptimizeCmd(t, defaultConfig(), "-y", "--debug", "--set", "strip=all", "a.png")

		err := runOptimizeCmd(c, args)

		require.NoError(t, err)
		assert.Equal(t, "optipng -strip all a.png\n", stderr.String())
	})

	t.Run("missing tool", func(t *testing.T) {
		mock := optipngMock()
		mock.LookPathFunc = func(string) (string, error) { return "", fmt.Errorf("not found") }
		stubExecutor(t, mock)
		c, args, _, _ := newTestOptimizeCmd(t, defaultConfig(), "-y", "-v", "a.png")

		err := runOptimizeCmd(c, args)

		assert.ErrorIs(t, err, optipng.ErrToolUnavailable)
		assert.Empty(t, mock.RunCalls())
	})

	t.Run("batches split the run", func(t *testing.T) {
		mock := optipngMock()
		stubExecutor(t, mock)
		c, args, stdout, _ := newTestOptimizeCmd(t, defaultConfig(), "-y", "-v", "--batch-size", "1", "-j", "2", "a.png", "b.png")

		err := runOptimizeCmd(c, args)

		require.NoError(t, err)
		assert.Len(t, mock.RunCalls(), 2)
		assert.Contains(t, stdout.String(), "a.png")
		assert.Contains(t, stdout.String(), "b.png")
	})

	t.Run("config required", func(t *testing.T) {
		c, args, _, _ := newTestOptimizeCmd(t, defaultConfig(), "a.png")
		c.SetContext(context.Background())

		err := runOptimizeCmd(c, args)

		assert.ErrorContains(t, err, "configuration not loaded")
	})
}
