// Package interact decides what happens to a generated message: commit it,
// print or copy the commit command, regenerate, or cancel.
//
// In interactive mode the operator picks from Choices; otherwise accept is
// taken directly. A prompt that cannot be shown or read behaves as accept.
package interact

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"commitgen/cli/internal/clip"
	"commitgen/cli/internal/erruser"
	"commitgen/cli/internal/tty"
)

// Outcome ends one interaction. Every outcome except OutcomeRegenerate ends
// the cycle.
type Outcome int

const (
	OutcomeCommitted Outcome = iota
	OutcomeCommandPrinted
	OutcomeCopied
	OutcomeRegenerate
	OutcomeCancelled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCommitted:
		return "committed"
	case OutcomeCommandPrinted:
		return "command-printed"
	case OutcomeCopied:
		return "copied"
	case OutcomeRegenerate:
		return "regenerate"
	default:
		return "cancelled"
	}
}

// VCS is what accept needs to commit.
type VCS interface {
	AddAll(ctx context.Context) error
	Commit(ctx context.Context, msg string) (string, error)
	Push(ctx context.Context) (string, error)
}

// Prompter asks the operator to pick an option.
type Prompter interface {
	Choose(ctx context.Context, question string, options []tty.Option, def int) (tty.Answer, error)
}

// Result describes what an interaction did.
type Result struct {
	Outcome Outcome
	Action  Action
	// Command is the printed commit command, if any.
	Command string
	// CommitOutput is git's output for a successful commit.
	CommitOutput string
	Pushed       bool
	// PushErr is set when the commit succeeded but the push failed.
	PushErr error
	// Fallback is set when the prompt failed and accept was taken instead.
	Fallback bool
	TimedOut bool
}

// Controller runs one interaction.
type Controller struct {
	Settings  Settings
	VCS       VCS
	Prompter  Prompter
	Clipboard clip.Clipboard
	// Out receives the commit command and guidance.
	Out io.Writer
	Log zerolog.Logger
}

const question = "Use this message?"

// Run asks what to do with msg and does it. A failed commit returns a
// command error whose hint carries guidance; a failed push is reported in
// Result.PushErr with the commit kept.
func (c *Controller) Run(ctx context.Context, msg string) (*Result, error) {
	res := &Result{}
	action, err := c.choose(ctx, res)
	if err != nil {
		return nil, err
	}
	res.Action = action
	switch action {
	case ActionRegenerate:
		res.Outcome = OutcomeRegenerate
	case ActionCancel:
		res.Outcome = OutcomeCancelled
	case ActionCopy:
		c.copy(msg, res)
	default:
		if c.Settings.AutoCommit {
			return res, c.commit(ctx, msg, res)
		}
		c.printCommand(msg, res)
	}
	return res, nil
}

func (c *Controller) choose(ctx context.Context, res *Result) (Action, error) {
	if !c.Settings.Interactive {
		return ActionAccept, nil
	}
	choices := Choices(c.Settings)
	def := DefaultAction(c.Settings)
	options := make([]tty.Option, len(choices))
	defIdx := 0
	for i, ch := range choices {
		options[i] = tty.Option{Key: ch.Key, Label: ch.Label}
		if ch.Action == def {
			defIdx = i
		}
	}
	if c.Prompter == nil {
		res.Fallback = true
		return ActionAccept, nil
	}
	ans, err := c.Prompter.Choose(ctx, question, options, defIdx)
	switch {
	case err == nil:
		res.TimedOut = ans.TimedOut
		return choices[ans.Index].Action, nil
	case errors.Is(err, tty.ErrInterrupted):
		return ActionCancel, nil
	case ctx.Err() != nil:
		return "", ctx.Err()
	default:
		c.Log.Warn().Err(err).Msg("prompt failed, accepting the message")
		res.Fallback = true
		return ActionAccept, nil
	}
}

func (c *Controller) printCommand(msg string, res *Result) {
	res.Command = CommitCommand(msg, c.Settings.Staged)
	res.Outcome = OutcomeCommandPrinted
	if c.Out != nil {
		fmt.Fprintln(c.Out, res.Command)
	}
}

func (c *Controller) copy(msg string, res *Result) {
	if c.Clipboard != nil {
		err := c.Clipboard.Write(msg)
		if err == nil {
			res.Outcome = OutcomeCopied
			return
		}
		c.Log.Warn().Err(err).Msg("copy failed, printing the command instead")
	}
	c.printCommand(msg, res)
}

func (c *Controller) commit(ctx context.Context, msg string, res *Result) error {
	if !c.Settings.Staged {
		if !c.Settings.AutoStage {
			c.Log.Warn().Msg("changes are not staged and auto-stage is off; printing the command instead")
			c.printCommand(msg, res)
			return nil
		}
		if err := c.VCS.AddAll(ctx); err != nil {
			return erruser.Command("Could not stage the changes.", err).WithHint(CommitGuidance(err))
		}
	}
	out, err := c.VCS.Commit(ctx, msg)
	if err != nil {
		res.Outcome = OutcomeCancelled
		return erruser.Command("The commit failed.", err).WithHint(CommitGuidance(err))
	}
	res.Outcome = OutcomeCommitted
	res.CommitOutput = out
	if _, err := c.VCS.Push(ctx); err != nil {
		res.PushErr = erruser.Command("The push failed.", err).WithHint(PushGuidance(err))
		c.Log.Warn().Err(err).Msg("push failed")
		return nil
	}
	res.Pushed = true
	return nil
}
