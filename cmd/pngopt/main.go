// Command pngopt optimizes PNG files with optipng.
package main

import (
	"os"

	_ "go.uber.org/automaxprocs"

	"github.com/jmgilman/pngopt/internal/cmd"
)

func main() {
	os.Exit(cmd.Main())
}
