package git

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"commitgen/cli/internal/erruser"
)

func initRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	run(t, dir, "git", "init")
	run(t, dir, "git", "config", "user.email", "test@commitgen.local")
	run(t, dir, "git", "config", "user.name", "Test")
	run(t, dir, "git", "config", "commit.gpgsign", "false")
	writeFile(t, dir, "f1.txt", "a\n")
	run(t, dir, "git", "add", "f1.txt")
	run(t, dir, "git", "commit", "-m", "c1")
	writeFile(t, dir, "f2.txt", "b\n")
	run(t, dir, "git", "add", "f2.txt")
	run(t, dir, "git", "commit", "-m", "c2")
	return dir
}

func run(t *testing.T, dir, name string, args ...string) {
	t.Helper()
	cmd := exec.Command(name, args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("%s %v: %v\n%s", name, args, err, out)
	}
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func canonical(t *testing.T, p string) string {
	t.Helper()
	abs, err := filepath.Abs(p)
	if err != nil {
		t.Fatal(err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		t.Fatal(err)
	}
	return resolved
}

func TestRepoRoot_fromRoot(t *testing.T) {
	t.Parallel()
	repo := initRepo(t)
	got, err := RepoRoot(context.Background(), repo)
	if err != nil {
		t.Fatalf("RepoRoot: %v", err)
	}
	if canonical(t, got) != canonical(t, repo) {
		t.Errorf("RepoRoot(%q) = %q", repo, got)
	}
}

func TestRepoRoot_fromSubdir(t *testing.T) {
	t.Parallel()
	repo := initRepo(t)
	subdir := filepath.Join(repo, "sub", "dir")
	if err := os.MkdirAll(subdir, 0755); err != nil {
		t.Fatal(err)
	}
	got, err := RepoRoot(context.Background(), subdir)
	if err != nil {
		t.Fatalf("RepoRoot: %v", err)
	}
	if canonical(t, got) != canonical(t, repo) {
		t.Errorf("RepoRoot(subdir) = %q, want %q", got, repo)
	}
}

func TestRepoRoot_notARepo(t *testing.T) {
	t.Parallel()
	_, err := RepoRoot(context.Background(), t.TempDir())
	if err == nil {
		t.Fatal("RepoRoot(non-repo): expected error")
	}
	if !erruser.Is(err, erruser.KindRepository) {
		t.Errorf("kind = %v, want repository", erruser.KindOf(err))
	}
	if erruser.Retryable(err) {
		t.Error("repository error must not be retryable")
	}
}

func TestDiff_stagedAndUnstaged(t *testing.T) {
	t.Parallel()
	repo := initRepo(t)
	ctx := context.Background()
	c, err := Open(ctx, repo)
	if err != nil {
		t.Fatal(err)
	}
	writeFile(t, repo, "f1.txt", "a\nchanged\n")
	staged, err := c.Diff(ctx, true)
	if err != nil {
		t.Fatalf("Diff staged: %v", err)
	}
	if staged != "" {
		t.Errorf("staged diff = %q, want empty", staged)
	}
	unstaged, err := c.Diff(ctx, false)
	if err != nil {
		t.Fatalf("Diff unstaged: %v", err)
	}
	if !strings.Contains(unstaged, "+changed") || !strings.HasPrefix(unstaged, "diff --git ") {
		t.Errorf("unstaged diff = %q", unstaged)
	}

	if err := c.AddAll(ctx); err != nil {
		t.Fatalf("AddAll: %v", err)
	}
	staged, err = c.Diff(ctx, true)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(staged, "+changed") {
		t.Errorf("staged diff after AddAll = %q", staged)
	}
}

func TestNameStatusAndNumStats(t *testing.T) {
	t.Parallel()
	repo := initRepo(t)
	ctx := context.Background()
	c, err := Open(ctx, repo)
	if err != nil {
		t.Fatal(err)
	}
	writeFile(t, repo, "f1.txt", "a\nb\nc\n")
	writeFile(t, repo, "new.txt", "n\n")
	run(t, repo, "git", "rm", "-q", "f2.txt")
	run(t, repo, "git", "add", "-A")

	files, err := c.NameStatus(ctx, true)
	if err != nil {
		t.Fatalf("NameStatus: %v", err)
	}
	got := make(map[string]byte)
	for _, f := range files {
		got[f.Path] = f.Code
	}
	want := map[string]byte{"f1.txt": 'M', "new.txt": 'A', "f2.txt": 'D'}
	for p, code := range want {
		if got[p] != code {
			t.Errorf("status %s = %q, want %q", p, got[p], code)
		}
	}

	stats, err := c.NumStats(ctx, true)
	if err != nil {
		t.Fatalf("NumStats: %v", err)
	}
	byPath := make(map[string]NumStat)
	for _, s := range stats {
		byPath[s.Path] = s
	}
	if s := byPath["f1.txt"]; s.Added != 2 || s.Deleted != 0 {
		t.Errorf("f1.txt numstat = %+v", s)
	}
	if s := byPath["f2.txt"]; s.Added != 0 || s.Deleted != 1 {
		t.Errorf("f2.txt numstat = %+v", s)
	}
}

func TestParseNameStatus(t *testing.T) {
	t.Parallel()
	out := "M\ta.go\nR087\told.go\tnew.go\nC100\tsrc.go\tcopy.go\nT\tlink\n\nbogus\n"
	files := ParseNameStatus(out)
	if len(files) != 4 {
		t.Fatalf("len = %d, want 4: %+v", len(files), files)
	}
	if files[1].Code != 'R' || files[1].OldPath != "old.go" || files[1].Path != "new.go" {
		t.Errorf("rename = %+v", files[1])
	}
	if files[2].Code != 'C' || files[2].OldPath != "src.go" || files[2].Path != "copy.go" {
		t.Errorf("copy = %+v", files[2])
	}
	if files[3].Code != 'T' {
		t.Errorf("type change = %+v", files[3])
	}
}

func TestParseNumStat(t *testing.T) {
	t.Parallel()
	stats := ParseNumStat("5\t2\ta.ts\n-\t-\timg.png\n1\t0\tdir/with\ttab\n")
	if len(stats) != 3 {
		t.Fatalf("len = %d", len(stats))
	}
	if stats[0] != (NumStat{Path: "a.ts", Added: 5, Deleted: 2}) {
		t.Errorf("stats[0] = %+v", stats[0])
	}
	if !stats[1].Binary || stats[1].Added != 0 {
		t.Errorf("binary = %+v", stats[1])
	}
	if stats[2].Path != "dir/with\ttab" {
		t.Errorf("path = %q", stats[2].Path)
	}
}

func TestCommitBranchAndSubjects(t *testing.T) {
	t.Parallel()
	repo := initRepo(t)
	ctx := context.Background()
	c, err := Open(ctx, repo)
	if err != nil {
		t.Fatal(err)
	}
	writeFile(t, repo, "f3.txt", "c\n")
	if err := c.AddAll(ctx); err != nil {
		t.Fatal(err)
	}
	msg := `feat: add "quoted" $HOME file`
	if _, err := c.Commit(ctx, msg); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	subjects, err := c.RecentSubjects(ctx, 2)
	if err != nil {
		t.Fatalf("RecentSubjects: %v", err)
	}
	if len(subjects) != 2 || subjects[0] != msg || subjects[1] != "c2" {
		t.Errorf("subjects = %q", subjects)
	}
	branch, err := c.Branch(ctx)
	if err != nil || branch == "" {
		t.Errorf("Branch = %q, %v", branch, err)
	}
}

func TestCommit_nothingStagedIsCommandError(t *testing.T) {
	t.Parallel()
	repo := initRepo(t)
	ctx := context.Background()
	c, err := Open(ctx, repo)
	if err != nil {
		t.Fatal(err)
	}
	_, err = c.Commit(ctx, "empty")
	if !erruser.Is(err, erruser.KindCommand) {
		t.Fatalf("err = %v, want command error", err)
	}
	if err.Error() != "Git commit failed." {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestPush_noRemoteFails(t *testing.T) {
	t.Parallel()
	repo := initRepo(t)
	ctx := context.Background()
	c, err := Open(ctx, repo)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Push(ctx); err == nil {
		t.Fatal("Push without remote: expected error")
	}
}

func TestRecentSubjects_unbornBranch(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	run(t, dir, "git", "init")
	c, err := Open(context.Background(), dir)
	if err != nil {
		t.Fatal(err)
	}
	subjects, err := c.RecentSubjects(context.Background(), 5)
	if err != nil || len(subjects) != 0 {
		t.Errorf("RecentSubjects = %v, %v", subjects, err)
	}
}

func TestFingerprint_changesWithTree(t *testing.T) {
	t.Parallel()
	repo := initRepo(t)
	ctx := context.Background()
	c, err := Open(ctx, repo)
	if err != nil {
		t.Fatal(err)
	}
	writeFile(t, repo, "f1.txt", "edited\n")
	a, err := c.Fingerprint(ctx)
	if err != nil {
		t.Fatal(err)
	}
	b, err := c.Fingerprint(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Error("fingerprint changed without tree change")
	}
	writeFile(t, repo, "f1.txt", "edited again\n")
	d, err := c.Fingerprint(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if d == a {
		t.Error("fingerprint did not change after edit")
	}
}

func TestListFiles(t *testing.T) {
	t.Parallel()
	repo := initRepo(t)
	writeFile(t, repo, "docs/guide.md", "# g\n")
	run(t, repo, "git", "add", "-A")
	c, err := Open(context.Background(), repo)
	if err != nil {
		t.Fatal(err)
	}
	files, err := c.ListFiles(context.Background(), "*.md")
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 || files[0] != "docs/guide.md" {
		t.Errorf("ListFiles = %v", files)
	}
}

func TestMinimalEnv_includesHome(t *testing.T) {
	if os.Getenv("HOME") == "" {
		t.Skip("HOME not set")
	}
	found := false
	for _, e := range MinimalEnv() {
		if strings.HasPrefix(e, "HOME=") {
			found = true
		}
	}
	if !found {
		t.Error("MinimalEnv missing HOME")
	}
}

func TestCommit_identityFromEnvironment(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	t.Setenv("GIT_CONFIG_NOSYSTEM", "1")
	t.Setenv("GIT_AUTHOR_NAME", "Env Author")
	t.Setenv("GIT_AUTHOR_EMAIL", "author@env.test")
	t.Setenv("GIT_COMMITTER_NAME", "Env Committer")
	t.Setenv("GIT_COMMITTER_EMAIL", "committer@env.test")

	dir := t.TempDir()
	run(t, dir, "git", "init")
	run(t, dir, "git", "config", "commit.gpgsign", "false")
	writeFile(t, dir, "f1.txt", "a\n")
	ctx := context.Background()
	c, err := Open(ctx, dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.AddAll(ctx); err != nil {
		t.Fatalf("AddAll: %v", err)
	}
	if _, err := c.Commit(ctx, "first"); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	out, err := c.run(ctx, "log", "-1", "--format=%an <%ae> %cn")
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.TrimSpace(out); got != "Env Author <author@env.test> Env Committer" {
		t.Errorf("commit identity = %q", got)
	}
}
