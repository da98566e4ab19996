// Package clip copies text to the system clipboard. A platform without a
// clipboard utility is a missing capability, reported by Available, not an
// error at startup.
package clip

import (
	"errors"
	"fmt"

	"github.com/atotto/clipboard"
)

// ErrUnavailable is returned by Write when no clipboard utility exists.
var ErrUnavailable = errors.New("clipboard unavailable")

// Clipboard writes text to a clipboard.
type Clipboard interface {
	Available() bool
	Write(text string) error
}

// System is the platform clipboard (pbcopy, xclip, xsel, wl-copy, termux or
// the Windows API).
type System struct{}

// Available reports whether a clipboard utility was found.
func (System) Available() bool { return !clipboard.Unsupported }

// Write copies text to the clipboard.
func (s System) Write(text string) error {
	if !s.Available() {
		return ErrUnavailable
	}
	if err := clipboard.WriteAll(text); err != nil {
		return fmt.Errorf("copy to clipboard: %w", err)
	}
	return nil
}
