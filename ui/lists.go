package ui

import (
	"fmt"
	"io"
	"strings"

	"mercurial/artifact"
	"mercurial/modes"

	"github.com/mattn/go-runewidth"
)

// pad right-pads s with spaces to width display columns.
func pad(s string, width int) string {
	if w := runewidth.StringWidth(s); w < width {
		return s + strings.Repeat(" ", width-w)
	}
	return s
}

// RenderModes lists the available modes, marking current.
func RenderModes(w io.Writer, specs []modes.Spec, current modes.Mode) error {
	for _, spec := range specs {
		marker := "  "
		id := pad(string(spec.ID), 9)
		if spec.ID == current {
			marker = "* "
			id = HighlightStyle.Render(id)
		}
		extract := "on request (\"code\" prefix)"
		if spec.ForceExtract {
			extract = "always"
		}
		if _, err := fmt.Fprintf(w, "%s%s %s %s\n", marker, id, pad("."+spec.FileExtension, 6), DimStyle.Render("extract: "+extract)); err != nil {
			return err
		}
	}
	return nil
}

// RenderArtifacts lists artifacts one per line, newest first as given.
func RenderArtifacts(w io.Writer, artifacts []artifact.Artifact, width int) error {
	if len(artifacts) == 0 {
		_, err := fmt.Fprintln(w, DimStyle.Render("No code files saved yet."))
		return err
	}
	if width <= 0 {
		width = DefaultWidth
	}

	const stampWidth = 19
	for _, a := range artifacts {
		lang := a.Language
		if lang == "" {
			lang = "-"
		}
		lang = pad(runewidth.Truncate(lang, 10, "…"), 10)
		sizeCol := pad(fmt.Sprintf("%dB", a.Bytes), 8)
		pathWidth := width - stampWidth - 10 - 8 - 3
		stamp := a.CreatedAt.Local().Format("2006-01-02 15:04:05")
		if _, err := fmt.Fprintf(w, "%s %s %s %s\n", DimStyle.Render(stamp), lang, sizeCol, TruncatePath(a.Path, pathWidth)); err != nil {
			return err
		}
	}
	return nil
}
