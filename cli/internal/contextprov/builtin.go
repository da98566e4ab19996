package contextprov

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"commitgen/cli/internal/changes"
)

const (
	recentSubjects  = 5
	maxDocFiles     = 3
	maxDocChars     = 1500
	maxDeclarations = 20
	maxFolders      = 10
)

func init() {
	MustRegister("branch", ProviderFunc(branchContext))
	MustRegister("docs", ProviderFunc(docsContext))
	MustRegister("code", ProviderFunc(codeContext))
	MustRegister("folder", ProviderFunc(folderContext))
}

// branchContext names the current branch and its latest commit subjects.
func branchContext(ctx context.Context, in Input) (string, error) {
	if in.Repo == nil {
		return "", nil
	}
	var b strings.Builder
	// Unborn branches have no resolvable HEAD; subjects are empty too.
	if branch, err := in.Repo.Branch(ctx); err == nil && branch != "" {
		fmt.Fprintf(&b, "Branch: %s\n", branch)
	}
	subjects, err := in.Repo.RecentSubjects(ctx, recentSubjects)
	if err != nil {
		return "", err
	}
	if len(subjects) > 0 {
		b.WriteString("Recent commits:\n")
		for _, s := range subjects {
			b.WriteString("- ")
			b.WriteString(s)
			b.WriteByte('\n')
		}
	}
	return b.String(), nil
}

// docsContext quotes the start of the README and of markdown files that live
// next to the changed files.
func docsContext(ctx context.Context, in Input) (string, error) {
	if in.Repo == nil || in.Root == "" {
		return "", nil
	}
	docs, err := in.Repo.ListFiles(ctx, "*.md", "*.MD", "README*")
	if err != nil {
		return "", err
	}
	dirs := changedDirs(in.Changes)
	picked := pickDocs(docs, dirs)
	var b strings.Builder
	for _, p := range picked {
		data, err := os.ReadFile(filepath.Join(in.Root, filepath.FromSlash(p)))
		if err != nil || !utf8.Valid(data) {
			continue
		}
		text := strings.TrimSpace(string(data))
		if text == "" {
			continue
		}
		fmt.Fprintf(&b, "%s:\n%s\n\n", p, clip(text, maxDocChars))
	}
	return b.String(), nil
}

// pickDocs orders root READMEs first, then docs in changed directories,
// and keeps at most maxDocFiles.
func pickDocs(docs []string, dirs map[string]int) []string {
	var readmes, near []string
	for _, d := range docs {
		dir := path.Dir(d)
		base := strings.ToLower(path.Base(d))
		switch {
		case dir == "." && strings.HasPrefix(base, "readme"):
			readmes = append(readmes, d)
		case dirs[dir] > 0 && strings.HasSuffix(base, ".md"):
			near = append(near, d)
		}
	}
	sort.Strings(readmes)
	sort.Strings(near)
	out := append(readmes, near...)
	if len(out) > maxDocFiles {
		out = out[:maxDocFiles]
	}
	return out
}

// codeContext lists the declarations added in each changed file.
func codeContext(_ context.Context, in Input) (string, error) {
	if in.Changes == nil {
		return "", nil
	}
	var b strings.Builder
	left := maxDeclarations
	for _, f := range in.Changes.Files {
		if len(f.Declarations) == 0 || left == 0 {
			continue
		}
		b.WriteString(f.Path)
		b.WriteString(":\n")
		for _, d := range f.Declarations {
			if left == 0 {
				break
			}
			b.WriteString("  ")
			b.WriteString(d)
			b.WriteByte('\n')
			left--
		}
	}
	return b.String(), nil
}

// folderContext summarizes which directories the change touches.
func folderContext(_ context.Context, in Input) (string, error) {
	dirs := changedDirs(in.Changes)
	if len(dirs) == 0 {
		return "", nil
	}
	names := make([]string, 0, len(dirs))
	for d := range dirs {
		names = append(names, d)
	}
	sort.Slice(names, func(i, j int) bool {
		if dirs[names[i]] != dirs[names[j]] {
			return dirs[names[i]] > dirs[names[j]]
		}
		return names[i] < names[j]
	})
	var b strings.Builder
	for i, d := range names {
		if i == maxFolders {
			fmt.Fprintf(&b, "(and %d more)\n", len(names)-maxFolders)
			break
		}
		label := d
		if d == "." {
			label = "(root)"
		}
		n := dirs[d]
		noun := "files"
		if n == 1 {
			noun = "file"
		}
		fmt.Fprintf(&b, "%s (%d %s)\n", label, n, noun)
	}
	return b.String(), nil
}

// changedDirs counts changed files per slash-separated directory.
func changedDirs(cs *changes.ChangeSet) map[string]int {
	dirs := make(map[string]int)
	if cs == nil {
		return dirs
	}
	for _, f := range cs.Files {
		dirs[path.Dir(f.Path)]++
	}
	return dirs
}

func clip(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "\n..."
}
