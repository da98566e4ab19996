// Package git (repo.go) provides repository discovery and the change queries
// used to describe pending work: diffs, name-status, numstat, staging, commit
// and push.
package git

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strconv"
	"strings"

	"commitgen/cli/internal/erruser"
)

// RepoRoot returns the absolute path of the git repository root containing dir.
// Runs "git rev-parse --show-toplevel" with Dir=dir. Returns a repository error
// if dir is not inside a git repository.
func RepoRoot(ctx context.Context, dir string) (string, error) {
	out, err := runGit(ctx, dir, "rev-parse", "--show-toplevel")
	if err != nil {
		if ctx.Err() != nil {
			return "", err
		}
		return "", erruser.Repository("This directory is not inside a Git repository.", err).
			WithHint("Run commitgen inside a repository or pass --dir.")
	}
	return filepath.Abs(strings.TrimSpace(out))
}

// FileStatus is one line of "git diff --name-status".
type FileStatus struct {
	// Code is the single-letter status: A, D, M, R, C or T.
	Code    byte
	Path    string
	OldPath string // set for renames and copies
}

// NumStat is one line of "git diff --numstat".
type NumStat struct {
	Path    string
	Added   int
	Deleted int
	Binary  bool
}

func diffArgs(staged bool, extra ...string) []string {
	args := []string{"diff", "--no-color", "--no-ext-diff"}
	if staged {
		args = append(args, "--cached")
	}
	return append(args, extra...)
}

// Diff returns the staged (index vs HEAD) or unstaged (worktree vs index) diff.
func (c *Client) Diff(ctx context.Context, staged bool) (string, error) {
	return c.run(ctx, diffArgs(staged)...)
}

// NameStatus returns the changed paths with their status codes.
func (c *Client) NameStatus(ctx context.Context, staged bool) ([]FileStatus, error) {
	out, err := c.run(ctx, diffArgs(staged, "--name-status", "-M")...)
	if err != nil {
		return nil, err
	}
	return ParseNameStatus(out), nil
}

// ParseNameStatus parses "git diff --name-status" output. Similarity scores
// on R and C codes are dropped.
func ParseNameStatus(out string) []FileStatus {
	var files []FileStatus
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 2 || fields[0] == "" {
			continue
		}
		fs := FileStatus{Code: fields[0][0], Path: fields[len(fields)-1]}
		if (fs.Code == 'R' || fs.Code == 'C') && len(fields) >= 3 {
			fs.OldPath = fields[1]
		}
		files = append(files, fs)
	}
	return files
}

// NumStats returns per-file added and deleted line counts.
func (c *Client) NumStats(ctx context.Context, staged bool) ([]NumStat, error) {
	out, err := c.run(ctx, diffArgs(staged, "--numstat", "-M")...)
	if err != nil {
		return nil, err
	}
	return ParseNumStat(out), nil
}

// ParseNumStat parses "git diff --numstat" output. Binary files ("-\t-")
// count as zero lines.
func ParseNumStat(out string) []NumStat {
	var stats []NumStat
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimRight(line, "\r")
		fields := strings.SplitN(line, "\t", 3)
		if len(fields) < 3 {
			continue
		}
		ns := NumStat{Path: fields[2]}
		if fields[0] == "-" && fields[1] == "-" {
			ns.Binary = true
		} else {
			ns.Added, _ = strconv.Atoi(fields[0])
			ns.Deleted, _ = strconv.Atoi(fields[1])
		}
		stats = append(stats, ns)
	}
	return stats
}

// AddAll stages every change in the working tree ("git add -A").
func (c *Client) AddAll(ctx context.Context) error {
	_, err := c.runWrite(ctx, "add", "-A")
	return err
}

// Commit records the staged changes with msg and returns git's output.
func (c *Client) Commit(ctx context.Context, msg string) (string, error) {
	return c.runWrite(ctx, "commit", "-m", msg)
}

// Push pushes the current branch to its upstream.
func (c *Client) Push(ctx context.Context) (string, error) {
	return c.runWrite(ctx, "push")
}

// Branch returns the current branch name ("HEAD" when detached).
func (c *Client) Branch(ctx context.Context) (string, error) {
	out, err := c.run(ctx, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// RecentSubjects returns up to n commit subjects from HEAD, newest first.
// An unborn branch yields no subjects and no error.
func (c *Client) RecentSubjects(ctx context.Context, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	out, err := c.run(ctx, "log", "-n", strconv.Itoa(n), "--format=%s", "HEAD")
	if err != nil {
		if exitCode(err) == 128 {
			return nil, nil
		}
		return nil, err
	}
	var subjects []string
	for _, l := range strings.Split(strings.TrimSpace(out), "\n") {
		if l = strings.TrimSpace(l); l != "" {
			subjects = append(subjects, l)
		}
	}
	return subjects, nil
}

// ListFiles returns tracked paths matching the given pathspecs.
func (c *Client) ListFiles(ctx context.Context, pathspecs ...string) ([]string, error) {
	args := append([]string{"ls-files", "--"}, pathspecs...)
	out, err := c.run(ctx, args...)
	if err != nil {
		return nil, err
	}
	return nonEmptyLines(out), nil
}

// Untracked returns the paths git diff does not show: new files that are
// neither tracked nor ignored.
func (c *Client) Untracked(ctx context.Context) ([]string, error) {
	out, err := c.run(ctx, "ls-files", "--others", "--exclude-standard")
	if err != nil {
		return nil, err
	}
	return nonEmptyLines(out), nil
}

func nonEmptyLines(out string) []string {
	var lines []string
	for _, l := range strings.Split(out, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

// Fingerprint hashes the staged and unstaged diffs plus the porcelain status,
// so two equal fingerprints mean the working tree did not change in between.
func (c *Client) Fingerprint(ctx context.Context) (string, error) {
	h := sha256.New()
	for _, args := range [][]string{
		diffArgs(true),
		diffArgs(false),
		{"status", "--porcelain"},
	} {
		out, err := c.run(ctx, args...)
		if err != nil {
			return "", err
		}
		h.Write([]byte(out))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
