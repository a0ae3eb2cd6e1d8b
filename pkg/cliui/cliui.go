// Package cliui provides terminal output helpers for chatstream commands:
// request status lines, styled reply rendering and markdown output.
package cliui

import (
	"fmt"
	"io"
	"sync"
	"time"

	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/x/ansi"
)

var (
	SuccessMark  = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Render("✓")
	FailMark     = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render("✗")
	StepStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	KeyStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("75")).Bold(true)
	ValueStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	DimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	NameStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("213"))
	ThoughtStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Italic(true)
	spinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
)

var spinnerFrames = []string{"⣾", "⣽", "⣻", "⢿", "⡿", "⣟", "⣯", "⣷"}

const spinnerInterval = 80 * time.Millisecond

// Step runs fn behind a one-line status on w and finishes the line with a
// mark and the elapsed time. With color set the line is styled and a
// spinner animates while fn runs; otherwise only the final line is written,
// so pipes and log files get no carriage returns.
func Step(w io.Writer, msg string, color bool, fn func() error) error {
	s := &step{w: w, msg: msg, color: color}
	if color {
		s.animate()
	}

	start := time.Now()
	err := fn()
	s.finish(err, time.Since(start))

	return err
}

type step struct {
	w     io.Writer
	msg   string
	color bool

	mu      sync.Mutex
	done    chan struct{}
	stopped chan struct{}
}

func (s *step) animate() {
	s.done = make(chan struct{})
	s.stopped = make(chan struct{})

	go func() {
		defer close(s.stopped)
		ticker := time.NewTicker(spinnerInterval)
		defer ticker.Stop()

		for frame := 0; ; frame++ {
			s.mu.Lock()
			fmt.Fprintf(s.w, "\r  %s %s", spinnerStyle.Render(spinnerFrames[frame%len(spinnerFrames)]), s.msg)
			s.mu.Unlock()

			select {
			case <-s.done:
				return
			case <-ticker.C:
			}
		}
	}()
}

func (s *step) finish(err error, elapsed time.Duration) {
	if s.done != nil {
		close(s.done)
		<-s.stopped
	}

	line := fmt.Sprintf("  %s %s %s", Mark(err), s.msg, StepStyle.Render("("+FormatDuration(elapsed)+")"))

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.color {
		fmt.Fprintf(s.w, "\r%s\x1b[K\n", line)
		return
	}
	fmt.Fprintln(s.w, ansi.Strip(line))
}

// Mark returns a ✓ for nil errors or ✗ for non-nil errors.
func Mark(err error) string {
	if err != nil {
		return FailMark
	}
	return SuccessMark
}

// FormatDuration formats a duration for display (e.g. "12ms" or "3.2s").
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}
