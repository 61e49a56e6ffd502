// Package prompt asks the user before pngopt rewrites files, using charmbracelet/huh.
package prompt

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
)

// ErrCanceled is returned when the user cancels a prompt.
var ErrCanceled = errors.New("canceled by user")

// Prompter abstracts user interaction for testability.
type Prompter interface {
	// Confirm prompts for yes/no confirmation.
	Confirm(title, description string) (bool, error)
}

// HuhPrompter implements Prompter using charmbracelet/huh for interactive forms.
type HuhPrompter struct{}

// New creates a new HuhPrompter for interactive terminal prompts.
func New() *HuhPrompter {
	return &HuhPrompter{}
}

// Confirm prompts for yes/no confirmation.
func (p *HuhPrompter) Confirm(title, description string) (bool, error) {
	var confirmed bool

	err := huh.NewConfirm().
		Title(title).
		Description(description).
		Affirmative("Yes").
		Negative("No").
		Value(&confirmed).
		Run()

	if err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return false, ErrCanceled
		}
		return false, fmt.Errorf("confirm prompt: %w", err)
	}

	return confirmed, nil
}

// maxListed caps how many filenames OverwriteDescription spells out.
const maxListed = 5

// OverwriteDescription builds the confirmation text for rewriting paths in place.
func OverwriteDescription(paths []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "optipng rewrites files in place. %d file(s) will be modified:", len(paths))
	for i, p := range paths {
		if i == maxListed {
			fmt.Fprintf(&b, "\n  ...and %d more", len(paths)-maxListed)
			break
		}
		b.WriteString("\n  ")
		b.WriteString(p)
	}
	return b.String()
}

// ConfirmOverwrite asks whether paths may be rewritten. A declined prompt
// returns false with a nil error.
func ConfirmOverwrite(p Prompter, paths []string) (bool, error) {
	return p.Confirm("Optimize files in place?", OverwriteDescription(paths))
}
