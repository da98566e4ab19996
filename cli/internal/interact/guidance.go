package interact

import (
	"errors"
	"strings"
)

type guide struct {
	fragments []string
	advice    string
}

var commitGuides = []guide{
	{[]string{"gpg failed", "gpg: signing failed", "error: gpg", "failed to sign"},
		"Commit signing failed. Unlock your GPG key (try: echo test | gpg --clearsign) or disable signing with: git config commit.gpgsign false"},
	{[]string{"please tell me who you are", "author identity unknown", "empty ident name"},
		"Set your identity: git config user.name \"Your Name\" && git config user.email you@example.com"},
	{[]string{"nothing to commit", "nothing added to commit", "no changes added to commit"},
		"Nothing is staged. Stage changes with: git add -A (or run with --auto-stage)"},
	{[]string{"pre-commit", "commit-msg hook", "hook"},
		"A commit hook rejected the commit. Fix what it reports and run commitgen again."},
	{[]string{"index.lock"},
		"Another git process holds the index lock. Wait for it to finish or remove .git/index.lock."},
}

var pushGuides = []guide{
	{[]string{"has no upstream branch", "no upstream", "set-upstream"},
		"The branch has no upstream. Push it with: git push -u origin HEAD"},
	{[]string{"no configured push destination", "does not appear to be a git repository", "no such remote"},
		"No remote is configured. Add one with: git remote add origin <url>"},
	{[]string{"permission denied (publickey)", "host key verification failed", "ssh:"},
		"SSH authentication failed. Check your key is loaded (ssh-add -l) and test with: ssh -T git@<host>"},
	{[]string{"authentication failed", "could not read username", "could not read password", "terminal prompts disabled", "403"},
		"The remote rejected your credentials. Configure a credential helper or switch the remote to SSH."},
	{[]string{"[rejected]", "non-fast-forward", "fetch first", "updates were rejected"},
		"The remote has commits you do not have. Run: git pull --rebase && git push"},
	{[]string{"could not resolve host", "unable to access", "connection timed out", "network is unreachable"},
		"The remote could not be reached. Check your network connection and run: git push"},
}

// CommitGuidance returns advice for a failed commit.
func CommitGuidance(err error) string {
	return match(commitGuides, detail(err), "Fix the problem above and commit with the printed command.")
}

// PushGuidance returns advice for a failed push. The commit itself was kept.
func PushGuidance(err error) string {
	return match(pushGuides, detail(err), "The commit was created locally. Push it later with: git push")
}

func match(guides []guide, text, fallback string) string {
	lc := strings.ToLower(text)
	for _, g := range guides {
		for _, f := range g.fragments {
			if strings.Contains(lc, f) {
				return g.advice
			}
		}
	}
	return fallback
}

// detail returns the whole error chain text; user-facing errors hide git's
// stderr in their cause.
func detail(err error) string {
	if err == nil {
		return ""
	}
	parts := []string{err.Error()}
	if u := errors.Unwrap(err); u != nil {
		parts = append(parts, u.Error())
	}
	return strings.Join(parts, "\n")
}
