package changes

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	"commitgen/cli/internal/diff"
)

// VersionBump is a version value changed in a well-known manifest file.
type VersionBump struct {
	File string
	Old  string
	New  string
}

// Annotation is the form used in the prompt's context section.
func (b VersionBump) Annotation() string {
	return fmt.Sprintf("%s: version %s -> %s", b.File, b.Old, b.New)
}

// Line is the commit-message line that states the bump.
func (b VersionBump) Line() string {
	return fmt.Sprintf("bump version in %s from %s to %s", b.File, b.Old, b.New)
}

var (
	jsonVersion   = regexp.MustCompile(`"version"\s*:\s*"([^"]*)"`)
	quotedAssign  = regexp.MustCompile(`^\s*version\s*=\s*["']([^"']*)["']`)
	pyCallVersion = regexp.MustCompile(`\bversion\s*=\s*["']([^"']*)["']`)
	bareAssign    = regexp.MustCompile(`^\s*version\s*=\s*([^\s#]*)`)
	yamlVersion   = regexp.MustCompile(`^version\s*:\s*["']?([^"'\s#]*)["']?`)
	gradleVersion = regexp.MustCompile(`^\s*version\s*=?\s*["']([^"']*)["']`)
	wholeLine     = regexp.MustCompile(`^\s*(\S*)\s*$`)
)

// versionFiles maps the base names eligible for bump detection to the
// pattern that captures the version value in group 1.
var versionFiles = map[string]*regexp.Regexp{
	"package.json":      jsonVersion,
	"package-lock.json": jsonVersion,
	"composer.json":     jsonVersion,
	"manifest.json":     jsonVersion,
	"Cargo.toml":        quotedAssign,
	"pyproject.toml":    quotedAssign,
	"setup.py":          pyCallVersion,
	"setup.cfg":         bareAssign,
	"Chart.yaml":        yamlVersion,
	"pubspec.yaml":      yamlVersion,
	"VERSION":           wholeLine,
	"version.txt":       wholeLine,
	"gradle.properties": bareAssign,
	"build.gradle":      gradleVersion,
}

// IsVersionFile reports whether p's base name is eligible for bump detection.
func IsVersionFile(p string) bool {
	_, ok := versionFiles[path.Base(p)]
	return ok
}

// DetectBumps returns one VersionBump per eligible file whose first removed
// and first added version values were both captured, differ, and where the
// new value is not empty or made only of dots.
func DetectBumps(files []diff.File) []VersionBump {
	var out []VersionBump
	for _, f := range files {
		re, ok := versionFiles[path.Base(f.Path)]
		if !ok || f.Binary {
			continue
		}
		oldV, okOld := firstMatch(re, f.RemovedLines)
		newV, okNew := firstMatch(re, f.AddedLines)
		if !okOld || !okNew {
			continue
		}
		if b, ok := newBump(f.Path, oldV, newV); ok {
			out = append(out, b)
		}
	}
	return out
}

func newBump(file, oldV, newV string) (VersionBump, bool) {
	oldV, newV = strings.TrimSpace(oldV), strings.TrimSpace(newV)
	if oldV == "" || newV == "" || oldV == newV {
		return VersionBump{}, false
	}
	if strings.Trim(newV, ".") == "" {
		return VersionBump{}, false
	}
	return VersionBump{File: file, Old: oldV, New: newV}, true
}

func firstMatch(re *regexp.Regexp, lines []string) (string, bool) {
	for _, l := range lines {
		if m := re.FindStringSubmatch(l); m != nil {
			return m[1], true
		}
	}
	return "", false
}
