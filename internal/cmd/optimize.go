package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/jmgilman/pngopt/internal/batch"
	"github.com/jmgilman/pngopt/internal/config"
	"github.com/jmgilman/pngopt/internal/flags"
	"github.com/jmgilman/pngopt/internal/optipng"
	"github.com/jmgilman/pngopt/internal/progress"
	"github.com/jmgilman/pngopt/internal/prompt"
	"github.com/jmgilman/pngopt/internal/report"
	"github.com/jmgilman/pngopt/internal/slogger"
)

// Sentinel errors for the optimize command.
var (
	ErrFilesFailed = errors.New("some files could not be optimized")
	ErrAborted     = errors.New("aborted: no files were modified")
	ErrInvalidSet  = errors.New("invalid --set value")
)

// newPrompter creates the prompter used to confirm in-place rewrites.
var newPrompter = func() prompt.Prompter { return prompt.New() }

var optimizeCmd = &cobra.Command{
	Use:     "optimize <file>...",
	Aliases: []string{"opt"},
	Short:   "Optimize PNG files in place",
	Long: `Optimize one or more PNG files in place with optipng.

Each file is reported as optimized (with the size reduction), already
optimal, or failed (with optipng's error message). The command exits with
a non-zero status if any file failed, after reporting every file.

Large file lists can be split across several optipng processes with
--batch-size and run in parallel with --jobs.`,
	Example: `  # Optimize with optipng's default level
  pngopt optimize logo.png

  # Maximum effort, strip metadata, keep file attributes
  pngopt optimize -o 7 --set strip=all --set preserve *.png

  # Print the optipng command line before running it
  pngopt optimize --debug icons/*.png

  # 4 parallel optipng processes, 50 files each, JSON report
  pngopt optimize -j 4 --batch-size 50 --output json assets/**/*.png`,
	Args: cobra.MinimumNArgs(1),
	RunE: runOptimizeCmd,
}

// optimizeFlags holds parsed flags for the optimize command.
type optimizeFlags struct {
	level     *int
	debug     bool
	check     bool
	sets      []string
	jobs      int
	batchSize int
	format    string
	yes       bool
	verbosity int
}

// parseOptimizeFlags reads flags, falling back to config for any flag the
// user did not pass.
func parseOptimizeFlags(cmd *cobra.Command, cfg *config.Config) (*optimizeFlags, error) {
	f := &optimizeFlags{
		level:     cfg.Optimize.Level,
		debug:     cfg.Optimize.Debug,
		check:     cfg.Optimize.CheckAvailability,
		jobs:      cfg.Batch.Jobs,
		batchSize: cfg.Batch.Size,
		format:    cfg.Output.Format,
	}

	fs := cmd.Flags()
	var err error

	if fs.Changed("level") {
		level, err := fs.GetInt("level")
		if err != nil {
			return nil, fmt.Errorf("get level flag: %w", err)
		}
		if level < 0 {
			return nil, fmt.Errorf("level must be a non-negative integer, got %d", level)
		}
		f.level = &level
	}
	if fs.Changed("debug") {
		if f.debug, err = fs.GetBool("debug"); err != nil {
			return nil, fmt.Errorf("get debug flag: %w", err)
		}
	}
	if fs.Changed("check") {
		if f.check, err = fs.GetBool("check"); err != nil {
			return nil, fmt.Errorf("get check flag: %w", err)
		}
	}
	if fs.Changed("jobs") {
		if f.jobs, err = fs.GetInt("jobs"); err != nil {
			return nil, fmt.Errorf("get jobs flag: %w", err)
		}
	}
	if fs.Changed("batch-size") {
		if f.batchSize, err = fs.GetInt("batch-size"); err != nil {
			return nil, fmt.Errorf("get batch-size flag: %w", err)
		}
	}
	if fs.Changed("output") {
		if f.format, err = fs.GetString("output"); err != nil {
			return nil, fmt.Errorf("get output flag: %w", err)
		}
	}
	if f.sets, err = fs.GetStringArray("set"); err != nil {
		return nil, fmt.Errorf("get set flag: %w", err)
	}
	if f.yes, err = fs.GetBool("yes"); err != nil {
		return nil, fmt.Errorf("get yes flag: %w", err)
	}
	if f.verbosity, err = fs.GetCount("verbose"); err != nil {
		return nil, fmt.Errorf("get verbose flag: %w", err)
	}

	if !config.IsValidFormat(f.format) {
		return nil, fmt.Errorf("%w: %s (valid: %s)", config.ErrInvalidFormat, f.format, strings.Join(config.ValidFormatNames(), ", "))
	}
	if f.jobs < 1 {
		return nil, fmt.Errorf("%w: got %d", batch.ErrInvalidJobs, f.jobs)
	}

	return f, nil
}

// parseSets turns repeated --set values into switches layered over base.
// "key=value" sets a string, "key" alone enables a boolean switch, and
// "key=false" disables one.
func parseSets(base map[string]any, sets []string) (flags.Flags, error) {
	merged := make(map[string]any, len(base)+len(sets))
	for k, v := range base {
		merged[k] = v
	}

	for _, s := range sets {
		key, value, hasValue := strings.Cut(s, "=")
		key = strings.TrimPrefix(key, "-")
		if key == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidSet, s)
		}
		switch {
		case !hasValue, strings.EqualFold(value, "true"):
			merged[key] = true
		case strings.EqualFold(value, "false"):
			merged[key] = false
		default:
			merged[key] = value
		}
	}

	return flags.FromConfig(merged)
}

// buildRequest assembles the per-invocation options.
func buildRequest(cfg *config.Config, f *optimizeFlags, debugOut io.Writer) (optipng.Options, error) {
	switches, err := parseSets(cfg.Optimize.Flags, f.sets)
	if err != nil {
		return optipng.Options{}, err
	}

	return optipng.Options{
		Level:             f.level,
		Debug:             f.debug,
		DebugOutput:       debugOut,
		CheckAvailability: f.check,
		Flags:             switches,
	}, nil
}

func runOptimizeCmd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	logger := slogger.L(ctx)

	cfg, err := requireConfig(cmd)
	if err != nil {
		return err
	}

	f, err := parseOptimizeFlags(cmd, cfg)
	if err != nil {
		return err
	}

	req, err := buildRequest(cfg, f, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	if !f.yes && term.IsTerminal(int(os.Stdin.Fd())) {
		ok, err := prompt.ConfirmOverwrite(newPrompter(), args)
		if err != nil {
			return err
		}
		if !ok {
			return ErrAborted
		}
	}

	// The spinner would garble debug and log lines, so it only runs quietly.
	if !f.debug && f.verbosity == 0 && progress.Enabled(os.Stderr) {
		s := progress.New(os.Stderr, len(args))
		stopped := make(chan struct{})
		go func() {
			defer close(stopped)
			if err := s.Start(); err != nil {
				logger.Debug("progress display failed", "error", err)
			}
		}()
		defer func() {
			s.Stop()
			<-stopped
		}()
		req.Progress = s.Writer()
	}

	res, err := batch.Run(ctx, newOptimizer(cfg), args, batch.Options{
		Size:    f.batchSize,
		Jobs:    f.jobs,
		Request: req,
	})
	if err != nil {
		return err
	}

	logger.Info("optimization complete", "files", len(args), "succeeded", len(res.Succeeded), "errors", len(res.Errors))

	if err := report.Write(cmd.OutOrStdout(), res, report.Options{
		Format: report.Format(f.format),
		Size:   report.FileSize,
	}); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	if res.Failed() {
		return fmt.Errorf("%w: %d error(s)", ErrFilesFailed, len(res.Errors))
	}
	return nil
}

func init() {
	rootCmd.AddCommand(optimizeCmd)
	addOptimizeFlags(optimizeCmd)
}

func addOptimizeFlags(cmd *cobra.Command) {
	cmd.Flags().IntP("level", "o", 0, "optipng optimization level (passed as -o; optipng accepts 0-7)")
	cmd.Flags().Bool("debug", false, "print the optipng command line to stderr before running it")
	cmd.Flags().Bool("check", true, "fail early if optipng is not installed")
	cmd.Flags().StringArray("set", nil, "extra optipng switch as key=value or key (repeatable)")
	cmd.Flags().IntP("jobs", "j", 1, "number of optipng processes to run in parallel")
	cmd.Flags().Int("batch-size", 0, "files per optipng process (0 = all files in one process)")
	cmd.Flags().StringP("output", "f", config.DefaultFormat, "report format: text, yaml or json")
	cmd.Flags().BoolP("yes", "y", false, "do not ask for confirmation")
}
