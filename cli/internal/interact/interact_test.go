package interact

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"commitgen/cli/internal/erruser"
	"commitgen/cli/internal/tty"
)

type fakeVCS struct {
	addErr, commitErr, pushErr error
	calls                      []string
	message                    string
}

func (f *fakeVCS) AddAll(context.Context) error {
	f.calls = append(f.calls, "add")
	return f.addErr
}

func (f *fakeVCS) Commit(_ context.Context, msg string) (string, error) {
	f.calls = append(f.calls, "commit")
	f.message = msg
	if f.commitErr != nil {
		return "", f.commitErr
	}
	return "[main abc1234] " + msg, nil
}

func (f *fakeVCS) Push(context.Context) (string, error) {
	f.calls = append(f.calls, "push")
	return "", f.pushErr
}

type fakePrompter struct {
	key      rune
	timedOut bool
	err      error
	options  []tty.Option
	def      int
}

func (p *fakePrompter) Choose(_ context.Context, _ string, options []tty.Option, def int) (tty.Answer, error) {
	p.options, p.def = options, def
	if p.err != nil {
		return tty.Answer{}, p.err
	}
	if p.timedOut {
		return tty.Answer{Index: def, TimedOut: true}, nil
	}
	for i, o := range options {
		if o.Key == p.key {
			return tty.Answer{Index: i}, nil
		}
	}
	return tty.Answer{}, fmt.Errorf("no option %c", p.key)
}

type fakeClipboard struct {
	err  error
	text string
}

func (c *fakeClipboard) Available() bool { return true }

func (c *fakeClipboard) Write(text string) error {
	c.text = text
	return c.err
}

func gitFailure(stderr string) error {
	return erruser.Command("Git commit failed.", fmt.Errorf("git commit: exit status 1: %s", stderr))
}

func actions(cs []Choice) []Action {
	out := make([]Action, len(cs))
	for i, c := range cs {
		out[i] = c.Action
	}
	return out
}

func TestChoices(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		s         Settings
		want      []Action
		acceptLbl string
	}{
		{"interactive_clipboard", Settings{Interactive: true, ClipboardAvailable: true},
			[]Action{ActionAccept, ActionCopy, ActionRegenerate, ActionCancel}, "copy command"},
		{"interactive_no_clipboard", Settings{Interactive: true},
			[]Action{ActionAccept, ActionRegenerate, ActionCancel}, "copy command"},
		{"auto_commit_hides_copy", Settings{Interactive: true, ClipboardAvailable: true, AutoCommit: true},
			[]Action{ActionAccept, ActionRegenerate, ActionCancel}, "commit changes"},
		{"non_interactive", Settings{ClipboardAvailable: true},
			[]Action{ActionAccept, ActionCancel}, "copy command"},
	}
	for _, tt := range tests {
		got := Choices(tt.s)
		assert.Equal(t, tt.want, actions(got), tt.name)
		assert.Equal(t, tt.acceptLbl, got[0].Label, tt.name)
	}
	assert.Equal(t, ActionAccept, DefaultAction(Settings{}))
	assert.Equal(t, ActionCancel, DefaultAction(Settings{AutoCommit: true}))
}

func TestQuoteAndCommitCommand(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "\"Fix \\\"quoted\\\" \\$HOME \\`cmd\\` a\\\\b\"", Quote("Fix \"quoted\" $HOME `cmd` a\\b"))
	assert.Equal(t, `git commit -m "Add x"`, CommitCommand("Add x", true))
	assert.Equal(t, `git add -A && git commit -m "Add x"`, CommitCommand("Add x", false))
	assert.Equal(t, "git commit -m \"Line one\n\nBody\"", CommitCommand("Line one\n\nBody", true))
}

func TestQuote_roundTripsThroughShell(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	msg := "Fix \"it\" for $USER and `whoami` \\ done\nsecond line"
	out, err := exec.Command("sh", "-c", "printf %s "+Quote(msg)).Output()
	require.NoError(t, err)
	assert.Equal(t, msg, string(out))
}

func newController(s Settings, vcs *fakeVCS, p Prompter, out *bytes.Buffer) *Controller {
	return &Controller{Settings: s, VCS: vcs, Prompter: p, Clipboard: &fakeClipboard{}, Out: out, Log: zerolog.Nop()}
}

func TestRun_acceptPrintsCommand(t *testing.T) {
	t.Parallel()
	var out bytes.Buffer
	vcs := &fakeVCS{}
	c := newController(Settings{Interactive: true}, vcs, &fakePrompter{key: 'y'}, &out)
	res, err := c.Run(context.Background(), "Add x")
	require.NoError(t, err)
	assert.Equal(t, OutcomeCommandPrinted, res.Outcome)
	assert.Equal(t, `git add -A && git commit -m "Add x"`, strings.TrimSpace(out.String()))
	assert.Empty(t, vcs.calls)
}

func TestRun_nonInteractiveAccepts(t *testing.T) {
	t.Parallel()
	var out bytes.Buffer
	p := &fakePrompter{err: errors.New("must not be asked")}
	res, err := newController(Settings{Staged: true}, &fakeVCS{}, p, &out).Run(context.Background(), "Add x")
	require.NoError(t, err)
	assert.Equal(t, OutcomeCommandPrinted, res.Outcome)
	assert.Nil(t, p.options)
}

func TestRun_autoCommitCommitsAndPushes(t *testing.T) {
	t.Parallel()
	vcs := &fakeVCS{}
	c := newController(Settings{AutoCommit: true, Staged: true}, vcs, nil, &bytes.Buffer{})
	res, err := c.Run(context.Background(), "Add x")
	require.NoError(t, err)
	assert.Equal(t, OutcomeCommitted, res.Outcome)
	assert.True(t, res.Pushed)
	assert.Equal(t, []string{"commit", "push"}, vcs.calls)
	assert.Equal(t, "Add x", vcs.message)
}

func TestRun_autoCommitStagesWhenAllowed(t *testing.T) {
	t.Parallel()
	vcs := &fakeVCS{}
	res, err := newController(Settings{AutoCommit: true, AutoStage: true}, vcs, nil, &bytes.Buffer{}).Run(context.Background(), "m")
	require.NoError(t, err)
	assert.Equal(t, OutcomeCommitted, res.Outcome)
	assert.Equal(t, []string{"add", "commit", "push"}, vcs.calls)
}

func TestRun_autoCommitUnstagedWithoutAutoStagePrints(t *testing.T) {
	t.Parallel()
	var out bytes.Buffer
	vcs := &fakeVCS{}
	res, err := newController(Settings{AutoCommit: true}, vcs, nil, &out).Run(context.Background(), "m")
	require.NoError(t, err)
	assert.Equal(t, OutcomeCommandPrinted, res.Outcome)
	assert.Contains(t, out.String(), "git add -A && git commit")
	assert.Empty(t, vcs.calls)
}

func TestRun_commitFailureNoPush(t *testing.T) {
	t.Parallel()
	vcs := &fakeVCS{commitErr: gitFailure("error: gpg failed to sign the data")}
	_, err := newController(Settings{AutoCommit: true, Staged: true}, vcs, nil, &bytes.Buffer{}).Run(context.Background(), "m")
	require.Error(t, err)
	assert.True(t, erruser.Is(err, erruser.KindCommand))
	assert.Contains(t, erruser.HintOf(err), "gpgsign")
	assert.Equal(t, []string{"commit"}, vcs.calls)
}

func TestRun_pushFailureKeepsCommit(t *testing.T) {
	t.Parallel()
	vcs := &fakeVCS{pushErr: erruser.Command("Git push failed.", errors.New("git push: fatal: The current branch main has no upstream branch."))}
	res, err := newController(Settings{AutoCommit: true, Staged: true}, vcs, nil, &bytes.Buffer{}).Run(context.Background(), "m")
	require.NoError(t, err)
	assert.Equal(t, OutcomeCommitted, res.Outcome)
	assert.False(t, res.Pushed)
	require.Error(t, res.PushErr)
	assert.Contains(t, erruser.HintOf(res.PushErr), "git push -u origin HEAD")
}

func TestRun_copy(t *testing.T) {
	t.Parallel()
	cb := &fakeClipboard{}
	c := newController(Settings{Interactive: true, ClipboardAvailable: true}, &fakeVCS{}, &fakePrompter{key: 'c'}, &bytes.Buffer{})
	c.Clipboard = cb
	res, err := c.Run(context.Background(), "Add x")
	require.NoError(t, err)
	assert.Equal(t, OutcomeCopied, res.Outcome)
	assert.Equal(t, "Add x", cb.text)
}

func TestRun_copyFailureFallsBackToPrinting(t *testing.T) {
	t.Parallel()
	var out bytes.Buffer
	c := newController(Settings{Interactive: true, ClipboardAvailable: true, Staged: true}, &fakeVCS{}, &fakePrompter{key: 'c'}, &out)
	c.Clipboard = &fakeClipboard{err: errors.New("xclip: exit status 1")}
	res, err := c.Run(context.Background(), "Add x")
	require.NoError(t, err)
	assert.Equal(t, OutcomeCommandPrinted, res.Outcome)
	assert.Equal(t, ActionCopy, res.Action)
	assert.Contains(t, out.String(), `git commit -m "Add x"`)
}

func TestRun_regenerateAndCancel(t *testing.T) {
	t.Parallel()
	res, err := newController(Settings{Interactive: true}, &fakeVCS{}, &fakePrompter{key: 'r'}, &bytes.Buffer{}).Run(context.Background(), "m")
	require.NoError(t, err)
	assert.Equal(t, OutcomeRegenerate, res.Outcome)

	res, err = newController(Settings{Interactive: true}, &fakeVCS{}, &fakePrompter{key: 'n'}, &bytes.Buffer{}).Run(context.Background(), "m")
	require.NoError(t, err)
	assert.Equal(t, OutcomeCancelled, res.Outcome)

	res, err = newController(Settings{Interactive: true}, &fakeVCS{}, &fakePrompter{err: tty.ErrInterrupted}, &bytes.Buffer{}).Run(context.Background(), "m")
	require.NoError(t, err)
	assert.Equal(t, OutcomeCancelled, res.Outcome)
}

func TestRun_promptFailureActsAsAccept(t *testing.T) {
	t.Parallel()
	var out bytes.Buffer
	p := &fakePrompter{err: erruser.Interaction("No terminal to prompt on.", nil)}
	res, err := newController(Settings{Interactive: true, Staged: true}, &fakeVCS{}, p, &out).Run(context.Background(), "m")
	require.NoError(t, err)
	assert.True(t, res.Fallback)
	assert.Equal(t, OutcomeCommandPrinted, res.Outcome)
}

func TestRun_timeoutDefaults(t *testing.T) {
	t.Parallel()
	p := &fakePrompter{timedOut: true}
	res, err := newController(Settings{Interactive: true, Staged: true}, &fakeVCS{}, p, &bytes.Buffer{}).Run(context.Background(), "m")
	require.NoError(t, err)
	assert.True(t, res.TimedOut)
	assert.Equal(t, OutcomeCommandPrinted, res.Outcome)
	assert.Equal(t, 0, p.def)

	vcs := &fakeVCS{}
	p = &fakePrompter{timedOut: true}
	res, err = newController(Settings{Interactive: true, AutoCommit: true, Staged: true}, vcs, p, &bytes.Buffer{}).Run(context.Background(), "m")
	require.NoError(t, err)
	assert.Equal(t, OutcomeCancelled, res.Outcome)
	assert.Equal(t, 'n', p.options[p.def].Key)
	assert.Empty(t, vcs.calls)
}

func TestRun_contextCancelled(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := &fakePrompter{err: context.Canceled}
	_, err := newController(Settings{Interactive: true}, &fakeVCS{}, p, &bytes.Buffer{}).Run(ctx, "m")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGuidance(t *testing.T) {
	t.Parallel()
	assert.Contains(t, CommitGuidance(gitFailure("Author identity unknown")), "user.email")
	assert.Contains(t, CommitGuidance(gitFailure("nothing to commit, working tree clean")), "--auto-stage")
	assert.Contains(t, CommitGuidance(errors.New("weird")), "printed command")
	assert.Contains(t, PushGuidance(gitFailure("git@github.com: Permission denied (publickey).")), "ssh -T")
	assert.Contains(t, PushGuidance(gitFailure("fatal: Authentication failed for 'https://x'")), "credential helper")
	assert.Contains(t, PushGuidance(gitFailure("! [rejected] main -> main (fetch first)")), "pull --rebase")
	assert.Contains(t, PushGuidance(nil), "git push")
}
