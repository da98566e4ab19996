package changes

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"commitgen/cli/internal/diff"
	"commitgen/cli/internal/git"
)

// Status is the kind of change to one path.
type Status string

const (
	StatusAdded    Status = "added"
	StatusDeleted  Status = "deleted"
	StatusModified Status = "modified"
	StatusRenamed  Status = "renamed"
	StatusCopied   Status = "copied"
)

// FileChange describes one changed path.
type FileChange struct {
	Path       string
	OldPath    string
	Status     Status
	Added      int
	Removed    int
	NewSymbols int
	Binary     bool
	// Declarations are the added lines counted in NewSymbols, trimmed.
	Declarations []string
}

// newSymbolRegex matches added lines that declare something: an optional run
// of modifiers followed by a declaration keyword.
var newSymbolRegex = regexp.MustCompile(`^\s*(?:(?:export|pub|public|private|protected|static|async|default|abstract)\s+)*(?:func|function|class|interface|type|struct|enum|def|const|let|var|trait|impl|export)\b`)

// statusOf maps a name-status code to a Status. Type changes count as modified.
func statusOf(code byte) Status {
	switch code {
	case 'A':
		return StatusAdded
	case 'D':
		return StatusDeleted
	case 'R':
		return StatusRenamed
	case 'C':
		return StatusCopied
	default:
		return StatusModified
	}
}

// CountNewSymbols returns how many of lines look like declarations.
func CountNewSymbols(lines []string) int {
	return len(Declarations(lines))
}

// Declarations returns the lines that look like declarations, trimmed.
func Declarations(lines []string) []string {
	var out []string
	for _, l := range lines {
		if newSymbolRegex.MatchString(l) {
			out = append(out, strings.TrimSpace(l))
		}
	}
	return out
}

func fileChanges(statuses []git.FileStatus, parsed map[string]diff.File) []FileChange {
	out := make([]FileChange, 0, len(statuses))
	for _, st := range statuses {
		fc := FileChange{Path: st.Path, OldPath: st.OldPath, Status: statusOf(st.Code)}
		if fc.Status != StatusDeleted {
			if f, ok := parsed[st.Path]; ok {
				fc.Added = f.Added()
				fc.Removed = f.Removed()
				fc.Declarations = Declarations(f.AddedLines)
				fc.NewSymbols = len(fc.Declarations)
				fc.Binary = f.Binary
			}
		}
		out = append(out, fc)
	}
	return out
}

// Line renders the change as one description line.
func (fc FileChange) Line() string {
	var b strings.Builder
	b.WriteString(string(fc.Status))
	b.WriteString(": ")
	if fc.OldPath != "" && (fc.Status == StatusRenamed || fc.Status == StatusCopied) {
		b.WriteString(fc.OldPath)
		b.WriteString(" -> ")
	}
	b.WriteString(fc.Path)
	if fc.Status == StatusDeleted {
		return b.String()
	}
	if fc.Binary {
		b.WriteString(" (binary)")
		return b.String()
	}
	fmt.Fprintf(&b, " (+%d -%d", fc.Added, fc.Removed)
	if fc.NewSymbols > 0 {
		b.WriteString(", ")
		b.WriteString(pluralize(fc.NewSymbols, "new symbol"))
	}
	b.WriteString(")")
	return b.String()
}

// Describe renders one line per changed file, in order.
func Describe(files []FileChange) string {
	lines := make([]string, len(files))
	for i, f := range files {
		lines[i] = "- " + f.Line()
	}
	return strings.Join(lines, "\n")
}

func pluralize(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return strconv.Itoa(n) + " " + noun + "s"
}
