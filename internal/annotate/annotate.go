// SPDX-License-Identifier: MPL-2.0

// Package annotate decorates Ant console output line by line.
package annotate

import (
	"bytes"
	"io"
	"regexp"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

const (
	// OutcomeUnknown means no BUILD line has been seen yet.
	OutcomeUnknown Outcome = iota
	// OutcomeSuccessful means Ant printed BUILD SUCCESSFUL.
	OutcomeSuccessful
	// OutcomeFailed means Ant printed BUILD FAILED.
	OutcomeFailed
)

var (
	targetLine  = regexp.MustCompile(`^[^\s:]+:$`)
	successLine = regexp.MustCompile(`^BUILD SUCCESSFUL`)
	failedLine  = regexp.MustCompile(`^BUILD FAILED`)

	targetStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	successStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#10B981"))
	failedStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#EF4444"))
)

type (
	// Outcome is the build result Ant reported in its output.
	Outcome int

	// Annotator is a line-oriented writer that highlights Ant targets and
	// the final BUILD line. Partial lines are held until a newline arrives
	// or ForceEOL is called.
	Annotator struct {
		mu      sync.Mutex
		out     io.Writer
		color   bool
		partial []byte
		targets []string
		outcome Outcome
	}
)

// New returns an annotator writing to out. Styling is applied only when
// color is true.
func New(out io.Writer, color bool) *Annotator {
	return &Annotator{out: out, color: color}
}

// Write annotates every complete line in p.
func (a *Annotator) Write(p []byte) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.partial = append(a.partial, p...)
	for {
		i := bytes.IndexByte(a.partial, '\n')
		if i < 0 {
			break
		}
		line := a.partial[:i+1]
		if err := a.emit(line); err != nil {
			return len(p), err
		}
		a.partial = a.partial[i+1:]
	}
	if len(a.partial) == 0 {
		a.partial = nil
	}
	return len(p), nil
}

// ForceEOL writes out any partial line followed by a newline. It is safe
// to call more than once.
func (a *Annotator) ForceEOL() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.partial) == 0 {
		return nil
	}
	line := append(a.partial, '\n')
	a.partial = nil
	return a.emit(line)
}

// Close flushes the partial line.
func (a *Annotator) Close() error {
	return a.ForceEOL()
}

// Targets returns the Ant targets seen so far, in order.
func (a *Annotator) Targets() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.targets...)
}

// Outcome returns the build result reported by Ant, if any.
func (a *Annotator) Outcome() Outcome {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.outcome
}

// emit writes one newline-terminated line, styled when it is significant.
func (a *Annotator) emit(line []byte) error {
	body := bytes.TrimRight(line, "\r\n")
	eol := line[len(body):]

	var style *lipgloss.Style
	switch {
	case targetLine.Match(body):
		a.targets = append(a.targets, string(body[:len(body)-1]))
		style = &targetStyle
	case successLine.Match(body):
		a.outcome = OutcomeSuccessful
		style = &successStyle
	case failedLine.Match(body):
		a.outcome = OutcomeFailed
		style = &failedStyle
	}

	if style == nil || !a.color {
		_, err := a.out.Write(line)
		return err
	}
	_, err := io.WriteString(a.out, style.Render(string(body))+string(eol))
	return err
}

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeSuccessful:
		return "successful"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}
