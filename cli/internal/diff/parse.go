package diff

import (
	"bufio"
	"regexp"
	"strings"
)

// binaryMarker is the prefix git uses when a file is binary.
const binaryMarker = "Binary files "

// hunkHeader matches @@ -oldStart,oldCount +newStart,newCount @@ optional
var hunkHeaderRegex = regexp.MustCompile(`^@@ -\d+(?:,\d+)? \+\d+(?:,\d+)? @@`)

// ParseFiles parses the output of `git diff --no-color` into one File per
// "diff --git " section, in order. Empty diff produces nil.
func ParseFiles(diffOutput string) ([]File, error) {
	if strings.TrimSpace(diffOutput) == "" {
		return nil, nil
	}
	var files []File
	for _, section := range splitByFileSections(Normalize(diffOutput)) {
		if strings.TrimSpace(section) == "" {
			continue
		}
		f, err := parseFileSection(section)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, nil
}

// ByPath indexes files by Path.
func ByPath(files []File) map[string]File {
	m := make(map[string]File, len(files))
	for _, f := range files {
		m[f.Path] = f
	}
	return m
}

// splitByFileSections splits diff output by "diff --git " so each section
// is one file's diff (or one binary notice).
func splitByFileSections(out string) []string {
	idx := fileSectionRegex.FindAllStringIndex(out, -1)
	if len(idx) == 0 {
		return []string{out}
	}
	var sections []string
	if pre := out[:idx[0][0]]; strings.TrimSpace(pre) != "" {
		sections = append(sections, pre)
	}
	for i, loc := range idx {
		end := len(out)
		if i+1 < len(idx) {
			end = idx[i+1][0]
		}
		sections = append(sections, out[loc[0]:end])
	}
	return sections
}

func parseFileSection(section string) (File, error) {
	var (
		f            File
		pathA, pathB string
		minusPath    string
		plusPath     string
		inHunk       bool
		currentLines []string
	)
	scanner := bufio.NewScanner(strings.NewReader(section))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "diff --git "):
			pathA, pathB = parseDiffGitLine(line)
			continue
		case !inHunk && strings.HasPrefix(line, "rename from "):
			f.OldPath = strings.TrimPrefix(line, "rename from ")
			continue
		case !inHunk && strings.HasPrefix(line, "copy from "):
			f.OldPath = strings.TrimPrefix(line, "copy from ")
			continue
		case !inHunk && strings.HasPrefix(line, binaryMarker):
			f.Binary = true
			continue
		case !inHunk && strings.HasPrefix(line, "--- "):
			minusPath = parsePathLine(line, "--- ")
			continue
		case !inHunk && strings.HasPrefix(line, "+++ "):
			plusPath = parsePathLine(line, "+++ ")
			continue
		}
		if hunkHeaderRegex.MatchString(line) {
			if inHunk && len(currentLines) > 0 {
				f.Hunks = append(f.Hunks, strings.Join(currentLines, "\n"))
			}
			currentLines = []string{line}
			inHunk = true
			continue
		}
		if !inHunk {
			continue
		}
		switch {
		case line == "" || line[0] == ' ' || line[0] == '\\':
			currentLines = append(currentLines, line)
		case line[0] == '+':
			currentLines = append(currentLines, line)
			f.AddedLines = append(f.AddedLines, line[1:])
		case line[0] == '-':
			currentLines = append(currentLines, line)
			f.RemovedLines = append(f.RemovedLines, line[1:])
		}
	}
	if err := scanner.Err(); err != nil {
		return File{}, err
	}
	if inHunk && len(currentLines) > 0 {
		f.Hunks = append(f.Hunks, strings.Join(currentLines, "\n"))
	}

	switch {
	case plusPath != "" && plusPath != "/dev/null":
		f.Path = plusPath
	case minusPath != "" && minusPath != "/dev/null":
		f.Path = minusPath
	case pathB != "":
		f.Path = pathB
	default:
		f.Path = pathA
	}
	if f.OldPath == "" && pathA != "" && pathA != f.Path {
		f.OldPath = pathA
	}
	return f, nil
}

func parseDiffGitLine(line string) (a, b string) {
	// "diff --git a/path b/path"
	rest := strings.TrimPrefix(line, "diff --git ")
	if i := strings.Index(rest, " b/"); i >= 0 && strings.HasPrefix(rest, "a/") {
		return rest[2:i], rest[i+3:]
	}
	parts := strings.Fields(rest)
	if len(parts) >= 2 {
		a = trimDiffPath(parts[0])
		b = trimDiffPath(parts[1])
	}
	return a, b
}

func trimDiffPath(s string) string {
	if len(s) >= 2 && (s[0] == 'a' || s[0] == 'b') && s[1] == '/' {
		return s[2:]
	}
	return s
}

func parsePathLine(line, prefix string) string {
	s := strings.TrimPrefix(line, prefix)
	// "/dev/null" or "a/path" or "b/path"
	if idx := strings.Index(s, "\t"); idx >= 0 {
		s = s[:idx]
	}
	return trimDiffPath(s)
}
