// Package progress shows a terminal spinner while optipng runs, labelled
// with the file currently being processed. It is fed the raw tool output
// through Writer and picks out the "Processing:" lines.
package progress

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"sync"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// processingLine matches the start of a file section in optipng output.
var processingLine = regexp.MustCompile(`^\**\s*Processing:\s*(.+)$`)

// Spinner displays a spinner and an "n/total file" status line.
type Spinner struct {
	program *tea.Program
	reader  *io.PipeReader
	writer  *io.PipeWriter
	fileCh  chan string
	done    chan struct{}
	stop    sync.Once
	wg      sync.WaitGroup
	output  io.Writer
	total   int
}

// Enabled reports whether f is a terminal a spinner can be drawn on.
func Enabled(f *os.File) bool {
	return f != nil && term.IsTerminal(int(f.Fd()))
}

// New creates a Spinner for a run over total files, drawing on output
// (os.Stderr when nil).
func New(output io.Writer, total int) *Spinner {
	if output == nil {
		output = os.Stderr
	}

	width := 80
	if fd := int(os.Stderr.Fd()); term.IsTerminal(fd) {
		if w, _, err := term.GetSize(fd); err == nil && w > 0 {
			width = w
		}
	}

	reader, writer := io.Pipe()
	fileCh := make(chan string, 100) // Buffer to avoid blocking the pipe reader
	return &Spinner{
		program: tea.NewProgram(newModel(fileCh, total, width),
			tea.WithOutput(output),
			tea.WithInput(nil),
			tea.WithoutSignalHandler(), // Let parent handle signals
		),
		reader: reader,
		writer: writer,
		fileCh: fileCh,
		done:   make(chan struct{}),
		output: output,
		total:  total,
	}
}

// Writer returns the io.Writer that tool output should be copied to.
// It is safe for concurrent use.
func (s *Spinner) Writer() io.Writer {
	return s.writer
}

// Start draws the spinner until Stop is called. It blocks, so run it in
// its own goroutine.
func (s *Spinner) Start() error {
	s.wg.Add(1)
	go s.readLines()

	_, err := s.program.Run()

	s.wg.Wait()

	return err
}

// Stop ends the output stream, which clears the spinner line and makes
// Start return. It is safe to call more than once.
func (s *Spinner) Stop() {
	s.stop.Do(func() {
		_ = s.writer.Close()
		close(s.done)
	})
}

// readLines forwards each processed filename to the model.
func (s *Spinner) readLines() {
	defer s.wg.Done()
	defer close(s.fileCh)
	defer s.reader.Close()

	scanner := bufio.NewScanner(s.reader)
	for scanner.Scan() {
		name, ok := ParseFilename(scanner.Text())
		if !ok {
			continue
		}
		select {
		case s.fileCh <- name:
		case <-s.done:
			return
		}
	}
}

// ParseFilename extracts the filename from a "** Processing: name" line.
func ParseFilename(line string) (string, bool) {
	m := processingLine.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// model is the bubbletea model for the spinner.
type model struct {
	spinner  spinner.Model
	current  string
	seen     int
	total    int
	width    int
	fileCh   <-chan string
	quitting bool
}

// fileMsg is sent when optipng starts on a new file.
type fileMsg string

// doneMsg is sent once the output stream ends.
type doneMsg struct{}

func newModel(fileCh <-chan string, total, width int) model {
	s := spinner.New()
	s.Spinner = spinner.MiniDot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))

	return model{
		spinner: s,
		total:   total,
		width:   width,
		fileCh:  fileCh,
	}
}

// Init implements tea.Model.
//
//nolint:gocritic // hugeParam: tea.Model interface requires value receiver
func (m model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForFile(m.fileCh))
}

// Update implements tea.Model.
//
//nolint:gocritic // hugeParam: tea.Model interface requires value receiver
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width

	case fileMsg:
		m.current = string(msg)
		m.seen++
		return m, waitForFile(m.fileCh)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case doneMsg:
		m.quitting = true
		return m, tea.Quit
	}

	return m, nil
}

// View implements tea.Model.
//
//nolint:gocritic // hugeParam: tea.Model interface requires value receiver
func (m model) View() string {
	if m.quitting {
		return ""
	}
	return m.spinner.View() + " " + truncate(m.status(), max(m.width-3, 10))
}

// status is the text shown next to the spinner.
func (m model) status() string {
	if m.current == "" {
		return "starting optipng..."
	}
	if m.total > 0 {
		return fmt.Sprintf("[%d/%d] %s", min(m.seen, m.total), m.total, m.current)
	}
	return m.current
}

func waitForFile(fileCh <-chan string) tea.Cmd {
	return func() tea.Msg {
		name, ok := <-fileCh
		if !ok {
			return doneMsg{}
		}
		return fileMsg(name)
	}
}

// truncate shortens s to maxWidth, keeping the end of the string since
// that is where the filename is.
func truncate(s string, maxWidth int) string {
	if maxWidth <= 3 {
		return ""
	}
	if len(s) <= maxWidth {
		return s
	}
	return "..." + s[len(s)-maxWidth+3:]
}
