package commitmsg

import (
	"path"
	"regexp"
	"strings"

	"commitgen/cli/internal/changes"
)

var (
	versionPhraseRegex = regexp.MustCompile(`(?i)from\s+\S+\s+to\s+\S+`)
	bulletRegex        = regexp.MustCompile(`^\s*(?:[-*+•]|\d+[.)])\s+`)
	fenceRegex         = regexp.MustCompile("^```[A-Za-z0-9_-]*$")
)

// Clean strips wrapping the model sometimes adds: code fences and quotes
// around the whole message.
func Clean(msg string) string {
	msg = strings.TrimSpace(msg)
	lines := strings.Split(msg, "\n")
	if len(lines) >= 2 && fenceRegex.MatchString(strings.TrimSpace(lines[0])) && strings.TrimSpace(lines[len(lines)-1]) == "```" {
		msg = strings.TrimSpace(strings.Join(lines[1:len(lines)-1], "\n"))
	}
	for _, q := range []string{`"`, "'", "`"} {
		if len(msg) >= 2 && strings.HasPrefix(msg, q) && strings.HasSuffix(msg, q) && !strings.Contains(msg[1:len(msg)-1], q) {
			msg = strings.TrimSpace(msg[1 : len(msg)-1])
		}
	}
	return msg
}

// PostProcess rewrites lines that describe a version change ("from X to Y")
// with the analyzer's own bump line, so versions in the message match the
// diff. A line is rewritten when it names a bumped file, or when there is
// exactly one bump. Bullet prefixes are kept.
func PostProcess(msg string, bumps []changes.VersionBump) string {
	if len(bumps) == 0 || msg == "" {
		return msg
	}
	lines := strings.Split(msg, "\n")
	for i, line := range lines {
		if !versionPhraseRegex.MatchString(line) {
			continue
		}
		b, ok := bumpFor(line, bumps)
		if !ok {
			continue
		}
		prefix := bulletRegex.FindString(line)
		lines[i] = prefix + b.Line()
	}
	return strings.Join(lines, "\n")
}

func bumpFor(line string, bumps []changes.VersionBump) (changes.VersionBump, bool) {
	for _, b := range bumps {
		if strings.Contains(line, b.File) || strings.Contains(line, path.Base(b.File)) {
			return b, true
		}
	}
	if len(bumps) == 1 {
		return bumps[0], true
	}
	return changes.VersionBump{}, false
}
