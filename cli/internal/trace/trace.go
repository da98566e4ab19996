// Package trace provides a small Tracer for dumping the prompt and the raw
// model response to stderr when --debug is set. No-op when the writer is nil.
package trace

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// Tracer writes sectioned trace output. When the underlying writer is nil, all methods no-op.
type Tracer struct {
	w      io.Writer
	header *color.Color
}

// New returns a Tracer that writes to w. If w is nil, all methods no-op.
func New(w io.Writer) *Tracer {
	return &Tracer{w: w, header: color.New(color.FgMagenta, color.Bold)}
}

// Enabled returns true if the tracer has a non-nil writer.
func (t *Tracer) Enabled() bool {
	return t != nil && t.w != nil
}

// Section writes a section header: "\n[commitgen:trace] === name ===\n"
func (t *Tracer) Section(name string) {
	if !t.Enabled() {
		return
	}
	t.header.Fprintf(t.w, "\n[commitgen:trace] === %s ===\n", name)
}

// Printf writes to the trace writer when enabled. Format and args are as in fmt.Printf.
func (t *Tracer) Printf(format string, args ...any) {
	if !t.Enabled() {
		return
	}
	fmt.Fprintf(t.w, format, args...)
}

// Block writes a section with body, ending in exactly one newline.
func (t *Tracer) Block(name, body string) {
	if !t.Enabled() {
		return
	}
	t.Section(name)
	fmt.Fprintln(t.w, strings.TrimRight(body, "\n"))
}
