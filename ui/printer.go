// Package ui renders the display channel on a terminal.
package ui

import (
	"fmt"
	"io"
	"strings"

	"mercurial/model"

	"github.com/mattn/go-runewidth"
)

// DefaultWidth is used when the terminal width is unknown.
const DefaultWidth = 80

// Printer writes stream events to a terminal. Fragments are written verbatim
// as they arrive; save confirmations, warnings and errors go on lines of
// their own. Printer implements stream.Sink.
type Printer struct {
	w       io.Writer
	width   int
	midLine bool // last fragment did not end with a newline
}

func NewPrinter(w io.Writer, width int) *Printer {
	if width <= 0 {
		width = DefaultWidth
	}
	return &Printer{w: w, width: width}
}

func (p *Printer) Send(e model.Event) error {
	switch e.Type {
	case model.EventFragment:
		if e.Content == "" {
			return nil
		}
		p.midLine = !strings.HasSuffix(e.Content, "\n")
		_, err := io.WriteString(p.w, e.Content)
		return err

	case model.EventSaved:
		label := "saved "
		if e.Language != "" {
			label = fmt.Sprintf("saved %s ", e.Language)
		}
		return p.line(SuccessStyle.Render("✓ "+label) + TruncatePath(e.Path, p.width-runewidth.StringWidth(label)-4))

	case model.EventSaveFailed:
		return p.line(ErrorStyle.Render("✗ save failed: ") + e.Message)

	case model.EventWarning:
		return p.line(WarningStyle.Render("! ") + e.Message)

	case model.EventDone:
		if err := p.endLine(); err != nil {
			return err
		}
		if len(e.Files) == 0 {
			return nil
		}
		noun := "files"
		if len(e.Files) == 1 {
			noun = "file"
		}
		return p.line(DimStyle.Render(fmt.Sprintf("%d %s written", len(e.Files), noun)))

	case model.EventError:
		kind := e.Kind
		if kind == "" {
			kind = "error"
		}
		return p.line(ErrorStyle.Render(fmt.Sprintf("✗ %s error: ", kind)) + e.Message)

	case model.EventBusy:
		return p.line(WarningStyle.Render("busy: ") + e.Message)
	}
	return nil
}

// line writes s on a line of its own, indented.
func (p *Printer) line(s string) error {
	if err := p.endLine(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(p.w, "  %s\n", s)
	return err
}

func (p *Printer) endLine() error {
	if !p.midLine {
		return nil
	}
	p.midLine = false
	_, err := io.WriteString(p.w, "\n")
	return err
}

// TruncatePath shortens path to at most width columns, keeping its tail since
// the file name is the interesting part.
func TruncatePath(path string, width int) string {
	const ellipsis = "..."
	if width <= len(ellipsis) || runewidth.StringWidth(path) <= width {
		return path
	}

	budget := width - len(ellipsis)
	runes := []rune(path)
	start := len(runes)
	for start > 0 {
		w := runewidth.RuneWidth(runes[start-1])
		if w > budget {
			break
		}
		budget -= w
		start--
	}
	return ellipsis + string(runes[start:])
}
