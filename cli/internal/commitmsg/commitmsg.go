// Package commitmsg generates a commit message from an assembled prompt.
//
// Engine runs a bounded retry loop against the model. Each failure is
// classified with erruser.Classify: retryable failures wait for the next
// backoff delay (1s, 2s, ... capped at 5s) and try again; terminal failures
// and the last allowed attempt end the loop with a terminal error.
package commitmsg

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"

	"commitgen/cli/internal/changes"
	"commitgen/cli/internal/erruser"
	"commitgen/cli/internal/ollama"
)

const (
	// DefaultMaxAttempts bounds the number of generation attempts.
	DefaultMaxAttempts = 3

	initialDelay = time.Second
	maxDelay     = 5 * time.Second
)

// Generator is the model call the engine retries.
type Generator interface {
	Generate(ctx context.Context, model, prompt string, opts *ollama.GenerateOptions) (*ollama.GenerateResult, error)
}

// Outcome is the result of one attempt.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeRetryable
	OutcomeTerminal
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeRetryable:
		return "retryable"
	default:
		return "terminal"
	}
}

// Attempt records one call to the model. Delay is the wait applied before
// the next attempt; zero for the last one.
type Attempt struct {
	Number  int
	Outcome Outcome
	Delay   time.Duration
	Err     error
}

// Result is a generated message with its attempt log.
type Result struct {
	Message  string
	Raw      string
	Attempts []Attempt
	Usage    *ollama.GenerateResult
}

// Engine drives generation for one model.
type Engine struct {
	Client  Generator
	Model   string
	Options *ollama.GenerateOptions
	// Timeout bounds each attempt; zero means no per-attempt deadline.
	Timeout time.Duration
	// MaxAttempts defaults to DefaultMaxAttempts when zero.
	MaxAttempts int
	// Sleep waits between attempts; nil uses a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
	// OnAttempt, when set, is called after every attempt.
	OnAttempt func(Attempt)
	Log       zerolog.Logger
}

// NewBackOff returns the delay schedule between attempts: 1s doubling up to
// 5s, without jitter.
func NewBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initialDelay
	b.Multiplier = 2
	b.MaxInterval = maxDelay
	b.RandomizationFactor = 0
	b.Reset()
	return b
}

// Generate asks the model for a message for prompt and post-processes it
// against bumps. On failure the returned Result still carries the attempts.
func (e *Engine) Generate(ctx context.Context, prompt string, bumps []changes.VersionBump) (*Result, error) {
	if e.Client == nil {
		return nil, errors.New("commitmsg: nil client")
	}
	maxAttempts := e.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	sleep := e.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	delays := NewBackOff()
	res := &Result{}
	for n := 1; ; n++ {
		out, err := e.attempt(ctx, prompt)
		if err == nil {
			res.Raw = out.Response
			res.Usage = out
			res.Message = PostProcess(Clean(out.Response), bumps)
			e.record(res, Attempt{Number: n, Outcome: OutcomeSuccess})
			return res, nil
		}
		if ctx.Err() != nil {
			e.record(res, Attempt{Number: n, Outcome: OutcomeTerminal, Err: err})
			return res, erruser.Terminal(err)
		}
		if erruser.Classify(err) != erruser.ClassRetryable || n >= maxAttempts {
			e.record(res, Attempt{Number: n, Outcome: OutcomeTerminal, Err: err})
			e.Log.Debug().Err(err).Int("attempt", n).Msg("generation failed")
			return res, erruser.Terminal(err)
		}
		d := delays.NextBackOff()
		e.record(res, Attempt{Number: n, Outcome: OutcomeRetryable, Delay: d, Err: err})
		e.Log.Warn().Err(err).Int("attempt", n).Dur("retry_in", d).Msg("generation failed, retrying")
		if err := sleep(ctx, d); err != nil {
			return res, erruser.Terminal(err)
		}
	}
}

func (e *Engine) attempt(ctx context.Context, prompt string) (*ollama.GenerateResult, error) {
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}
	out, err := e.Client.Generate(ctx, e.Model, prompt, e.Options)
	if err != nil {
		return nil, err
	}
	if out == nil || strings.TrimSpace(out.Response) == "" {
		return nil, erruser.Service("The model returned an empty response.", ollama.ErrEmptyResponse, false)
	}
	return out, nil
}

func (e *Engine) record(res *Result, a Attempt) {
	res.Attempts = append(res.Attempts, a)
	if e.OnAttempt != nil {
		e.OnAttempt(a)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Summary renders the attempt log in one line, e.g. "1:retryable 2:success".
func Summary(attempts []Attempt) string {
	parts := make([]string, len(attempts))
	for i, a := range attempts {
		parts[i] = fmt.Sprintf("%d:%s", a.Number, a.Outcome)
	}
	return strings.Join(parts, " ")
}
