// Package debug holds small formatting helpers for printing nested
// structures to a terminal, shared by whichever command-line tool needs
// to dump a tree (a table of contents, a parsed document outline) without
// pulling in a templating dependency for it.
package debug

import (
	"fmt"
	"strconv"
	"strings"
)

// TreeWriter accumulates indented, depth-prefixed lines into a single
// string, the way the CLI harness's "index" command prints a table of
// contents nested by heading level.
type TreeWriter struct {
	w *strings.Builder
}

func NewTreeWriter() *TreeWriter {
	return &TreeWriter{
		w: &strings.Builder{},
	}
}

func (tw TreeWriter) String() string {
	return tw.w.String()
}

func (tw TreeWriter) Line(depth int, format string, args ...any) {
	for range depth {
		tw.w.WriteString("  ")
	}
	fmt.Fprintf(tw.w, format, args...)
	tw.w.WriteByte('\n')
}

func (tw TreeWriter) TextBlock(depth int, label, value string) {
	for range depth {
		tw.w.WriteString("  ")
	}
	tw.w.WriteString(label)
	tw.w.WriteString(": ")
	tw.w.WriteString(encodeText(value))
	tw.w.WriteByte('\n')
}

func encodeText(raw string) string {
	if raw == "" {
		return raw
	}
	return strconv.Quote(raw)
}
