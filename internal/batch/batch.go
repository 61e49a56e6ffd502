// Package batch spreads a long list of files over several optipng invocations.
package batch

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/jmgilman/pngopt/internal/optipng"
	"github.com/jmgilman/pngopt/internal/slogger"
)

// ErrInvalidJobs is returned when fewer than one concurrent job is requested.
var ErrInvalidJobs = errors.New("jobs must be at least 1")

// Optimizer is the subset of optipng.Optimizer the runner needs.
type Optimizer interface {
	Optimize(ctx context.Context, paths []string, opts optipng.Options) (*optipng.Result, error)
}

// Options configures Run.
type Options struct {
	// Size is the number of paths per invocation. 0 puts every path in one.
	Size int
	// Jobs is the maximum number of invocations running at once.
	Jobs int
	// Request is applied to every invocation.
	Request optipng.Options
}

// Chunk splits paths into consecutive groups of at most size elements.
// A size of 0 or less yields a single group.
func Chunk(paths []string, size int) [][]string {
	if len(paths) == 0 {
		return nil
	}
	if size <= 0 || size >= len(paths) {
		return [][]string{paths}
	}

	chunks := make([][]string, 0, (len(paths)+size-1)/size)
	for start := 0; start < len(paths); start += size {
		end := min(start+size, len(paths))
		chunks = append(chunks, paths[start:end])
	}
	return chunks
}

// Run optimizes paths in chunks and merges the results in chunk order, so
// the error list reads the same however the chunks were scheduled. The first
// invocation that fails outright cancels the rest.
func Run(ctx context.Context, opt Optimizer, paths []string, opts Options) (*optipng.Result, error) {
	if len(paths) == 0 {
		return nil, optipng.ErrNoPaths
	}
	jobs := opts.Jobs
	if jobs == 0 {
		jobs = 1
	}
	if jobs < 0 {
		return nil, ErrInvalidJobs
	}

	chunks := Chunk(paths, opts.Size)
	results := make([]*optipng.Result, len(chunks))
	logger := slogger.L(ctx)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)

	for i, chunk := range chunks {
		g.Go(func() error {
			logger.Debug("optimizing chunk", "chunk", i+1, "of", len(chunks), "files", len(chunk))
			res, err := opt.Optimize(gctx, chunk, opts.Request)
			if err != nil {
				return fmt.Errorf("chunk %d: %w", i+1, err)
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return optipng.Merge(results...), nil
}
