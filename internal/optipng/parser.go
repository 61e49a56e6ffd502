package optipng

import (
	"regexp"
	"strconv"
	"strings"
)

const (
	// sectionDelimiter separates per-file blocks in optipng output.
	sectionDelimiter = "**"

	// sectionPrefix marks a block that describes a file.
	sectionPrefix = "Processing:"
)

// lineAction applies a matched line to the scan state.
type lineAction func(s *scanState, m []string)

// lineMatcher pairs a pattern with what to do when it matches.
type lineMatcher struct {
	pattern *regexp.Regexp
	apply   lineAction
}

// matchers are tried in order; the first match consumes the line.
var matchers = []lineMatcher{
	{
		pattern: regexp.MustCompile(`^Processing:\s*(.*)`),
		apply: func(s *scanState, m []string) {
			s.filename = m[1]
			s.seen = true
		},
	},
	{
		pattern: regexp.MustCompile(`^Error:\s*(.*)`),
		apply: func(s *scanState, m []string) {
			s.result.Errors = append(s.result.Errors, FileError{
				Path:         s.filename,
				Message:      m[1],
				Unattributed: !s.seen,
			})
		},
	},
	{
		pattern: regexp.MustCompile(`(\d+\.\d+)%`),
		apply: func(s *scanState, m []string) {
			// The pattern guarantees a well-formed float.
			v, _ := strconv.ParseFloat(m[1], 64)
			s.result.Succeeded[s.filename] = -1 * v
		},
	},
	{
		pattern: regexp.MustCompile(`already optimized\.$`),
		apply: func(s *scanState, _ []string) {
			s.result.Succeeded[s.filename] = 0.0
		},
	},
}

// scanState is the per-section state of a scan. It never outlives a
// single Parse call.
type scanState struct {
	result   *Result
	filename string
	seen     bool // a Processing: line has set filename
}

// Parse converts raw optipng output into a Result. It never fails:
// sections that do not describe a file and lines it does not recognize
// are skipped.
func Parse(output string) *Result {
	result := newResult()

	for _, section := range strings.Split(output, sectionDelimiter) {
		section = strings.TrimSpace(section)
		if !strings.HasPrefix(section, sectionPrefix) {
			continue
		}
		scanSection(result, section)
	}

	return result
}

// scanSection feeds each line of section through the matchers, recording
// outcomes into result.
func scanSection(result *Result, section string) {
	s := &scanState{result: result}

	for _, line := range strings.Split(section, "\n") {
		for _, lm := range matchers {
			if m := lm.pattern.FindStringSubmatch(line); m != nil {
				lm.apply(s, m)
				break
			}
		}
	}
}
