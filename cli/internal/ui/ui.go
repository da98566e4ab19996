// Package ui renders what the operator reads on the console: the generated
// message in a bordered panel and short colored status lines.
package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
)

// Printer writes console output. In quiet mode the panel is replaced by the
// bare message and info lines are dropped, so output stays scriptable.
type Printer struct {
	out   io.Writer
	quiet bool

	title lipgloss.Style
	panel lipgloss.Style

	info    *color.Color
	success *color.Color
	warn    *color.Color
	fail    *color.Color
	hint    *color.Color
}

// New returns a Printer on w.
func New(w io.Writer, quiet bool) *Printer {
	r := lipgloss.NewRenderer(w)
	return &Printer{
		out:   w,
		quiet: quiet,
		title: r.NewStyle().Bold(true).Foreground(lipgloss.Color("14")),
		panel: r.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("12")).
			Padding(0, 1),
		info:    color.New(color.FgCyan),
		success: color.New(color.FgGreen, color.Bold),
		warn:    color.New(color.FgYellow),
		fail:    color.New(color.FgRed, color.Bold),
		hint:    color.New(color.Faint),
	}
}

// Message shows msg under title.
func (p *Printer) Message(title, msg string) {
	msg = strings.TrimRight(msg, "\n")
	if p.quiet {
		fmt.Fprintln(p.out, msg)
		return
	}
	fmt.Fprintln(p.out, p.title.Render(title))
	fmt.Fprintln(p.out, p.panel.Render(msg))
}

// Info prints a progress line; suppressed when quiet.
func (p *Printer) Info(format string, args ...any) {
	if p.quiet {
		return
	}
	p.line(p.info, "•", format, args...)
}

// Success prints a completion line.
func (p *Printer) Success(format string, args ...any) {
	p.line(p.success, "✓", format, args...)
}

// Warn prints a warning line.
func (p *Printer) Warn(format string, args ...any) {
	p.line(p.warn, "!", format, args...)
}

// Error prints an error line.
func (p *Printer) Error(format string, args ...any) {
	p.line(p.fail, "✗", format, args...)
}

// Hint prints an indented hint under a previous line.
func (p *Printer) Hint(format string, args ...any) {
	p.hint.Fprintf(p.out, "  %s\n", fmt.Sprintf(format, args...))
}

func (p *Printer) line(c *color.Color, mark, format string, args ...any) {
	c.Fprintf(p.out, "%s %s\n", mark, fmt.Sprintf(format, args...))
}
