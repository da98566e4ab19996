//go:build windows

package history

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"unsafe"
)

const _lockFileExclusive = 2

var (
	_modkernel32      = syscall.NewLazyDLL("kernel32.dll")
	_procLockFileEx   = _modkernel32.NewProc("LockFileEx")
	_procUnlockFileEx = _modkernel32.NewProc("UnlockFileEx")
)

// lock takes an exclusive lock on dir/history.lock, waiting while another
// commitgen process holds it. The caller must call release.
func lock(dir string) (release func(), err error) {
	path := filepath.Join(dir, lockFilename)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("history lock: open %s: %w", path, err)
	}
	handle := syscall.Handle(f.Fd())
	var overlapped syscall.Overlapped
	r1, _, err := _procLockFileEx.Call(uintptr(handle), _lockFileExclusive, 0, 1, 0, uintptr(unsafe.Pointer(&overlapped)))
	if r1 == 0 {
		_ = f.Close()
		if err == nil {
			err = errors.New("LockFileEx failed")
		}
		return nil, fmt.Errorf("history lock: LockFileEx: %w", err)
	}
	return func() {
		var overlapped syscall.Overlapped
		_, _, _ = _procUnlockFileEx.Call(uintptr(handle), 0, 1, 0, uintptr(unsafe.Pointer(&overlapped)))
		_ = f.Close()
	}, nil
}
