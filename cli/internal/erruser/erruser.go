// Package erruser provides errors whose Error() returns only a user-facing
// message; the cause is available via Unwrap() for Details or logs.
//
// Errors produced at a point of failure also carry a Kind and an explicit
// retryable flag, so callers decide whether to retry without inspecting
// message text.
package erruser

import "errors"

// Kind tags where a failure came from.
type Kind int

const (
	// KindUnknown is an untagged failure; classification falls back to heuristics.
	KindUnknown Kind = iota
	// KindConfiguration is an invalid key, value or nested path. Local and non-fatal.
	KindConfiguration
	// KindRepository means the target directory is not under version control.
	KindRepository
	// KindNoChanges means there is nothing to describe. Reported as information.
	KindNoChanges
	// KindCommand is a failed git (or other) subprocess invocation.
	KindCommand
	// KindService is a failure reported by or while reaching the generation service.
	KindService
	// KindInteraction is a failed terminal prompt; handled by the interaction fallback.
	KindInteraction
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindRepository:
		return "repository"
	case KindNoChanges:
		return "no-changes"
	case KindCommand:
		return "command"
	case KindService:
		return "service"
	case KindInteraction:
		return "interaction"
	default:
		return "unknown"
	}
}

// Err holds a user-facing message and an optional cause for debugging.
// Error() returns only Msg so the primary line never contains command names
// or exit codes; use Unwrap() for technical detail. Hint is an optional
// operational suggestion printed below the message.
type Err struct {
	Msg       string
	Err       error
	Kind      Kind
	Retryable bool
	Hint      string
}

// Error returns the user-facing message only.
func (e *Err) Error() string {
	if e == nil {
		return ""
	}
	return e.Msg
}

// Unwrap returns the underlying error for Details or logging.
// Handles nil receiver (method call on nil *Err is valid in Go).
func (e *Err) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// WithHint returns e with Hint set. e is modified in place.
func (e *Err) WithHint(hint string) *Err {
	e.Hint = hint
	return e
}

// New returns an error with the given user-facing message. If err is non-nil,
// it is wrapped and available via Unwrap() so callers can print "Details: %v".
// If err is nil, returns a simple error with just msg (no Unwrap).
func New(msg string, err error) error {
	if err == nil {
		return errors.New(msg)
	}
	return &Err{Msg: msg, Err: err}
}

// Configuration reports an invalid configuration key or value.
func Configuration(msg string, err error) *Err {
	return &Err{Msg: msg, Err: err, Kind: KindConfiguration}
}

// Repository reports that the target is not a repository.
func Repository(msg string, err error) *Err {
	return &Err{Msg: msg, Err: err, Kind: KindRepository}
}

// NoChanges reports that there are no pending changes.
func NoChanges(msg string) *Err {
	return &Err{Msg: msg, Kind: KindNoChanges}
}

// Command reports a failed subprocess. Command failures are retryable.
func Command(msg string, err error) *Err {
	return &Err{Msg: msg, Err: err, Kind: KindCommand, Retryable: true}
}

// Service reports a generation-service failure. retryable is decided by the
// caller at the point of failure: transport problems are retryable, content
// problems (empty output, unknown model) are not.
func Service(msg string, err error, retryable bool) *Err {
	return &Err{Msg: msg, Err: err, Kind: KindService, Retryable: retryable}
}

// Interaction reports a prompt that could not be completed.
func Interaction(msg string, err error) *Err {
	return &Err{Msg: msg, Err: err, Kind: KindInteraction}
}

// KindOf returns the Kind of the first *Err in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var e *Err
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// HintOf returns the first non-empty Hint in err's chain.
func HintOf(err error) string {
	for err != nil {
		if e, ok := err.(*Err); ok && e.Hint != "" {
			return e.Hint
		}
		err = errors.Unwrap(err)
	}
	return ""
}

// Terminal returns err re-tagged as non-retryable, keeping its message and kind.
func Terminal(err error) error {
	if err == nil {
		return nil
	}
	var e *Err
	if errors.As(err, &e) {
		cp := *e
		cp.Retryable = false
		return &cp
	}
	return &Err{Msg: err.Error(), Err: err}
}
