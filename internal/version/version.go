// Package version holds the build stamps of the pngopt binary. Release
// builds set them with ldflags:
//
//	go build -ldflags "-X github.com/jmgilman/pngopt/internal/version.Version=v1.0.0 \
//	                   -X github.com/jmgilman/pngopt/internal/version.Commit=abc123 \
//	                   -X github.com/jmgilman/pngopt/internal/version.Date=2025-01-01" ./cmd/pngopt
package version

import "fmt"

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// Short returns the version alone, e.g. for --version.
func Short() string {
	return Version
}

// Long renders the version report printed by "pngopt version".
func Long(program string) string {
	return fmt.Sprintf("%s %s\n  commit: %s\n  built:  %s\n", program, Version, Commit, Date)
}
