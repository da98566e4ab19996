// Package tty detects terminal capabilities and reads single-key answers.
//
// Raw mode is process-global: one prompt holds it at a time, and RestoreAll
// puts every terminal it changed back, so callers can defer it in main and
// call it from signal paths.
package tty

import (
	"os"
	"sync"

	"golang.org/x/term"
)

// Capabilities describe what the attached terminal can do.
type Capabilities struct {
	// IsTerminal is true when both input and output are terminals.
	IsTerminal bool
	// SupportsRawMode is true when input can be switched to raw mode for
	// single-key reads.
	SupportsRawMode bool
}

// Detect reports the capabilities of in and out. A nil file is not a terminal.
func Detect(in, out *os.File) Capabilities {
	if in == nil || out == nil {
		return Capabilities{}
	}
	if !term.IsTerminal(int(in.Fd())) || !term.IsTerminal(int(out.Fd())) {
		return Capabilities{}
	}
	_, err := term.GetState(int(in.Fd()))
	return Capabilities{IsTerminal: true, SupportsRawMode: err == nil}
}

var (
	// promptMu is held for as long as a prompt has the terminal in raw mode.
	promptMu sync.Mutex
	stateMu  sync.Mutex
	saved    = make(map[int]*term.State)
)

// enterRaw switches fd to raw mode and returns the function that restores
// it. The returned function is safe to call more than once.
func enterRaw(fd int) (func(), error) {
	promptMu.Lock()
	st, err := term.MakeRaw(fd)
	if err != nil {
		promptMu.Unlock()
		return nil, err
	}
	stateMu.Lock()
	saved[fd] = st
	stateMu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			restore(fd)
			promptMu.Unlock()
		})
	}, nil
}

func restore(fd int) {
	stateMu.Lock()
	defer stateMu.Unlock()
	if st, ok := saved[fd]; ok {
		_ = term.Restore(fd, st)
		delete(saved, fd)
	}
}

// RestoreAll restores every terminal currently held in raw mode.
func RestoreAll() {
	stateMu.Lock()
	defer stateMu.Unlock()
	for fd, st := range saved {
		_ = term.Restore(fd, st)
		delete(saved, fd)
	}
}

// rawHeld reports how many terminals are in raw mode.
func rawHeld() int {
	stateMu.Lock()
	defer stateMu.Unlock()
	return len(saved)
}
