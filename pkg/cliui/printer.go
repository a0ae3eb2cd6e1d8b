package cliui

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/x/ansi"

	"github.com/papercomputeco/chatstream/pkg/chat"
	"github.com/papercomputeco/chatstream/pkg/streamparser"
)

// Printer writes a streamed reply to a terminal. Reply text is written as
// it arrives; progress, thoughts and metadata get their own lines.
type Printer struct {
	w     io.Writer
	color bool

	// midLine is set while the last reply text did not end in a newline.
	midLine bool
}

// NewPrinter returns a Printer. With color false, no escape sequences are
// written.
func NewPrinter(w io.Writer, color bool) *Printer {
	return &Printer{w: w, color: color}
}

// Update renders one conversation update.
func (p *Printer) Update(u chat.Update) {
	if u.Text != "" {
		p.Text(u.Text)
	}
	if u.ConversationID != "" {
		p.line(KeyStyle, "conversation", u.ConversationID)
	}
	for _, t := range u.Thoughts {
		p.Thought(t)
	}
	if u.Progress != nil {
		p.Progress(u.Progress)
	}
	if u.Metadata != nil {
		p.Metadata(u.Metadata)
	}
}

// Text writes reply text with any escape sequences removed.
func (p *Printer) Text(text string) {
	clean := ansi.Strip(text)
	if clean == "" {
		return
	}
	fmt.Fprint(p.w, clean)
	p.midLine = !strings.HasSuffix(clean, "\n")
}

// Progress writes a progress line.
func (p *Printer) Progress(pr *streamparser.Progress) {
	msg := ansi.Strip(pr.Message)
	if pr.Progress != nil {
		msg += p.render(DimStyle, fmt.Sprintf(" (%.0f%%)", *pr.Progress*100))
	}
	p.breakLine()
	fmt.Fprintf(p.w, "  %s %s\n", p.render(spinnerStyle, spinnerFrames[0]), msg)
}

// Thought writes one thought line.
func (p *Printer) Thought(t string) {
	p.breakLine()
	fmt.Fprintf(p.w, "  %s\n", p.render(ThoughtStyle, "… "+ansi.Strip(t)))
}

// Metadata writes metadata as sorted key/value lines.
func (p *Printer) Metadata(md map[string]any) {
	for _, k := range slices.Sorted(maps.Keys(md)) {
		p.line(NameStyle, k, formatValue(md[k]))
	}
}

// Error writes a failure line.
func (p *Printer) Error(err error) {
	p.breakLine()
	mark := FailMark
	if !p.color {
		mark = ansi.Strip(mark)
	}
	fmt.Fprintf(p.w, "  %s %v\n", mark, err)
}

// Finish ends a partially written reply line.
func (p *Printer) Finish() {
	p.breakLine()
}

func (p *Printer) line(key lipgloss.Style, k, v string) {
	p.breakLine()
	fmt.Fprintf(p.w, "  %s %s\n", p.render(key, k+":"), p.render(ValueStyle, ansi.Strip(v)))
}

func (p *Printer) breakLine() {
	if p.midLine {
		fmt.Fprintln(p.w)
		p.midLine = false
	}
}

func (p *Printer) render(style lipgloss.Style, s string) string {
	if !p.color {
		return s
	}
	return style.Render(s)
}

func formatValue(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
