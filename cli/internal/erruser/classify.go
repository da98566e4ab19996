package erruser

import (
	"context"
	"errors"
	"net"
	"strings"
)

// Class is the retry classification of a failure.
type Class int

const (
	ClassTerminal Class = iota
	ClassRetryable
)

func (c Class) String() string {
	if c == ClassRetryable {
		return "retryable"
	}
	return "terminal"
}

// Message fragments for service errors that were not tagged at the point of
// failure. Terminal fragments are checked first.
var (
	terminalFragments = []string{
		"empty response",
		"empty output",
		"model not found",
		"unknown model",
		"invalid model",
		"not found, try pulling",
	}
	retryableFragments = []string{
		"connection refused",
		"connection reset",
		"connect:",
		"no such host",
		"timeout",
		"timed out",
		"deadline exceeded",
		"network",
		"transport",
		"broken pipe",
		"unexpected eof",
		"econnrefused",
		"econnreset",
		"etimedout",
	}
)

// Classify decides whether err may be retried. Tagged errors are classified
// by kind (service errors by the flag set where they were produced). Untagged
// errors fall back to network error types and then to message heuristics.
// Anything unrecognized is terminal.
func Classify(err error) Class {
	if err == nil {
		return ClassTerminal
	}
	if errors.Is(err, context.Canceled) {
		return ClassTerminal
	}
	var e *Err
	if errors.As(err, &e) && e.Kind != KindUnknown {
		switch e.Kind {
		case KindCommand:
			if e.Retryable {
				return ClassRetryable
			}
			return ClassTerminal
		case KindService:
			if e.Retryable {
				return ClassRetryable
			}
			return ClassTerminal
		default:
			return ClassTerminal
		}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return ClassRetryable
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ClassRetryable
	}
	return classifyText(chainText(err))
}

// Retryable is shorthand for Classify(err) == ClassRetryable.
func Retryable(err error) bool {
	return Classify(err) == ClassRetryable
}

func classifyText(msg string) Class {
	lc := strings.ToLower(msg)
	for _, f := range terminalFragments {
		if strings.Contains(lc, f) {
			return ClassTerminal
		}
	}
	for _, f := range retryableFragments {
		if strings.Contains(lc, f) {
			return ClassRetryable
		}
	}
	return ClassTerminal
}

// chainText joins the messages of err and its causes. Err.Error() hides the
// cause, so heuristics look at the whole chain.
func chainText(err error) string {
	var b strings.Builder
	for err != nil {
		b.WriteString(err.Error())
		b.WriteString("; ")
		err = errors.Unwrap(err)
	}
	return b.String()
}
