package optipng

import "sort"

// FileError is a per-file failure reported by optipng.
type FileError struct {
	// Path is the name from the preceding "Processing:" line. It may be
	// empty even when attributed; use HasPath to tell the cases apart.
	Path    string `json:"path" yaml:"path"`
	Message string `json:"message" yaml:"message"`
	// Unattributed is set when no "Processing:" line preceded the error.
	Unattributed bool `json:"unattributed,omitempty" yaml:"unattributed,omitempty"`
}

// HasPath reports whether the error could be attributed to a file.
func (e FileError) HasPath() bool {
	return !e.Unattributed
}

// Result is the outcome of one optipng invocation.
//
// Succeeded maps a path to its reduction metric: a negative value is the
// percentage the file shrank by, and 0 means optipng found it already optimal.
// Errors keeps the order in which optipng reported them.
//
// A Result is never modified after it is returned.
type Result struct {
	Succeeded map[string]float64 `json:"succeeded" yaml:"succeeded"`
	Errors    []FileError        `json:"errors" yaml:"errors"`
}

func newResult() *Result {
	return &Result{
		Succeeded: make(map[string]float64),
		Errors:    []FileError{},
	}
}

// Reduction returns the metric recorded for path.
func (r *Result) Reduction(path string) (float64, bool) {
	v, ok := r.Succeeded[path]
	return v, ok
}

// Failed reports whether any file produced an error.
func (r *Result) Failed() bool {
	return len(r.Errors) > 0
}

// Paths returns the successfully processed paths in sorted order.
func (r *Result) Paths() []string {
	paths := make([]string, 0, len(r.Succeeded))
	for p := range r.Succeeded {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Merge combines results into a new Result. Later results win on duplicate
// paths and errors are concatenated in argument order.
func Merge(results ...*Result) *Result {
	merged := newResult()
	for _, r := range results {
		if r == nil {
			continue
		}
		for p, v := range r.Succeeded {
			merged.Succeeded[p] = v
		}
		merged.Errors = append(merged.Errors, r.Errors...)
	}
	return merged
}
