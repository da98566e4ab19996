package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"commitgen/cli/internal/erruser"
)

// Client runs git in one working directory. The zero value is not usable;
// construct with Open.
type Client struct {
	// Root is the absolute repository root.
	Root string
}

// Open resolves the repository containing dir and returns a Client for it.
// Returns a repository error if dir is not inside a git repository.
func Open(ctx context.Context, dir string) (*Client, error) {
	root, err := RepoRoot(ctx, dir)
	if err != nil {
		return nil, err
	}
	return &Client{Root: root}, nil
}

// run executes git with args in c.Root and returns stdout. A failed command
// returns a command error whose cause carries the trimmed stderr.
func (c *Client) run(ctx context.Context, args ...string) (string, error) {
	return runGitEnv(ctx, c.Root, minimalEnv(), args...)
}

// runWrite is run for commands that change the repository or reach a
// remote. They see the caller's environment, so identity, signing, proxy
// and credential settings given there still apply.
func (c *Client) runWrite(ctx context.Context, args ...string) (string, error) {
	return runGitEnv(ctx, c.Root, writeEnv(), args...)
}

func runGit(ctx context.Context, dir string, args ...string) (string, error) {
	return runGitEnv(ctx, dir, minimalEnv(), args...)
}

func runGitEnv(ctx context.Context, dir string, env []string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	cmd.Env = env
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = strings.TrimSpace(stdout.String())
		}
		cause := fmt.Errorf("git %s: %w", strings.Join(args, " "), err)
		if detail != "" {
			cause = fmt.Errorf("%w: %s", cause, detail)
		}
		return stdout.String(), erruser.Command(fmt.Sprintf("Git %s failed.", args[0]), cause)
	}
	return stdout.String(), nil
}

// exitCode returns the exit status of a failed git command, or -1.
func exitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

func minimalEnv() []string {
	env := []string{
		"PATH=" + os.Getenv("PATH"),
		"GIT_TERMINAL_PROMPT=0",
		"GIT_PAGER=cat", // prevent pager; subprocess output is captured
		"LC_ALL=C",
	}
	if home := os.Getenv("HOME"); home != "" {
		env = append(env, "HOME="+home)
	} else if runtime.GOOS == "windows" {
		if profile := os.Getenv("USERPROFILE"); profile != "" {
			env = append(env, "HOME="+profile)
		}
	}
	// Commit signing and push credentials go through agents found via these.
	for _, k := range []string{"SSH_AUTH_SOCK", "GPG_AGENT_INFO", "GNUPGHOME", "XDG_CONFIG_HOME", "XDG_RUNTIME_DIR"} {
		if v := os.Getenv(k); v != "" {
			env = append(env, k+"="+v)
		}
	}
	return env
}

// writeEnv is the full environment with the pager and terminal prompts
// turned off. Later entries win in exec.
func writeEnv() []string {
	return append(os.Environ(), "GIT_TERMINAL_PROMPT=0", "GIT_PAGER=cat")
}

// MinimalEnv returns the environment used for git subprocesses. Exported for tests
// so callers can assert HOME is included when set (e.g. to avoid "Author identity unknown").
func MinimalEnv() []string {
	return minimalEnv()
}
