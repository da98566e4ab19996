// Package diff splits git's unified diff output into per-file sections and
// bounds its size for prompts.
//
// # Line endings
// Normalize strips every carriage return. Callers normalize before counting
// or truncating so CRLF files do not inflate sizes.
//
// # Truncation
// A diff longer than MaxChars characters keeps its first KeepLines lines
// verbatim and gets a one-line marker with the original line count and the
// number of "diff --git " sections.
//
// # Binary files
// Sections for binary files (git emits "Binary files ... differ") are kept
// with Binary set and no line counts.
package diff

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	// MaxChars is the diff size above which Truncate shortens the diff.
	MaxChars = 4000
	// KeepLines is the number of leading lines kept when truncating.
	KeepLines = 100
)

// File is one file's section of a unified diff.
type File struct {
	Path    string // path on the new side; old side for deletions
	OldPath string
	Binary  bool
	// Hunks holds the raw hunk blocks, each starting with its @@ line.
	Hunks        []string
	AddedLines   []string // added lines without the leading '+'
	RemovedLines []string // removed lines without the leading '-'
}

// Added returns the number of added lines.
func (f File) Added() int { return len(f.AddedLines) }

// Removed returns the number of removed lines.
func (f File) Removed() int { return len(f.RemovedLines) }

var fileSectionRegex = regexp.MustCompile(`(?m)^diff --git `)

// Normalize removes every carriage return from d.
func Normalize(d string) string {
	return strings.ReplaceAll(d, "\r", "")
}

// CountFiles returns the number of per-file sections ("diff --git " at the
// start of a line) in d.
func CountFiles(d string) int {
	return len(fileSectionRegex.FindAllStringIndex(d, -1))
}

// CountLines returns the number of lines in d. A trailing newline does not
// start a new line; the empty diff has zero lines.
func CountLines(d string) int {
	if d == "" {
		return 0
	}
	return len(strings.Split(strings.TrimSuffix(d, "\n"), "\n"))
}

// Truncated is the result of Truncate.
type Truncated struct {
	Text       string
	Truncated  bool
	TotalLines int
	Files      int
}

// Truncate normalizes d and, when it is longer than MaxChars characters,
// keeps exactly its first KeepLines lines followed by a marker line.
func Truncate(d string) Truncated {
	d = Normalize(d)
	res := Truncated{Text: d, TotalLines: CountLines(d), Files: CountFiles(d)}
	if utf8.RuneCountInString(d) <= MaxChars {
		return res
	}
	lines := strings.Split(strings.TrimSuffix(d, "\n"), "\n")
	keep := min(KeepLines, len(lines))
	res.Text = strings.Join(lines[:keep], "\n") + "\n" + Marker(keep, res.TotalLines, res.Files)
	res.Truncated = true
	return res
}

// Marker is the line appended to a truncated diff.
func Marker(shown, total, files int) string {
	return fmt.Sprintf("... [diff truncated: showing %d of %d lines, %d files changed]", shown, total, files)
}
