// Package report renders optimization results for people and for scripts.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/jmgilman/pngopt/internal/optipng"
)

// Format selects how a result is rendered.
type Format string

// Supported formats.
const (
	FormatText Format = "text"
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// ErrUnknownFormat is returned for a format Write does not support.
var ErrUnknownFormat = errors.New("unknown report format")

// Status values shown in the text table.
const (
	StatusOptimized = "optimized"
	StatusUnchanged = "already optimal"
)

// SizeFunc returns the size of the file at path. It is used by the text
// report; a failing lookup leaves the SIZE column blank.
type SizeFunc func(path string) (int64, error)

// FileSize stats path on disk.
func FileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// Options configures Write.
type Options struct {
	Format Format
	// Size looks up file sizes for the text report. Nil disables the column.
	Size SizeFunc
}

// Write renders res to w.
func Write(w io.Writer, res *optipng.Result, opts Options) error {
	switch opts.Format {
	case FormatText, "":
		return writeText(w, res, opts.Size)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(res); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnknownFormat, opts.Format)
	}
}

func writeText(w io.Writer, res *optipng.Result, size SizeFunc) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	if len(res.Succeeded) > 0 {
		header := "FILE\tSTATUS\tCHANGE"
		if size != nil {
			header += "\tSIZE"
		}
		fmt.Fprintln(tw, header)

		for _, path := range res.Paths() {
			v := res.Succeeded[path]
			status := StatusOptimized
			if v == 0 {
				status = StatusUnchanged
			}
			row := fmt.Sprintf("%s\t%s\t%s", path, status, FormatChange(v))
			if size != nil {
				row += "\t" + formatSize(size, path)
			}
			fmt.Fprintln(tw, row)
		}
	}

	if err := tw.Flush(); err != nil {
		return fmt.Errorf("write table: %w", err)
	}

	if len(res.Errors) > 0 {
		if len(res.Succeeded) > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "%d error(s):\n", len(res.Errors))
		for _, e := range res.Errors {
			path := e.Path
			switch {
			case !e.HasPath():
				path = "(unknown file)"
			case path == "":
				path = `""`
			}
			fmt.Fprintf(w, "  %s: %s\n", path, e.Message)
		}
	}

	if len(res.Succeeded) == 0 && len(res.Errors) == 0 {
		fmt.Fprintln(w, "No files processed.")
	}

	return nil
}

// FormatChange renders a reduction metric as a signed percentage.
func FormatChange(v float64) string {
	if v == 0 {
		return "0.00%"
	}
	return fmt.Sprintf("%+.2f%%", v)
}

func formatSize(size SizeFunc, path string) string {
	n, err := size(path)
	if err != nil || n < 0 {
		return "-"
	}
	return humanize.IBytes(uint64(n))
}
