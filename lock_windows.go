//go:build windows

// Directory advisory locking on Windows, the LockFileEx counterpart to
// lock_unix.go's flock.
package xantippe

import (
	"fmt"
	"os"

	"golang.org/x/sys/windows"
)

func acquireDirLock(dir string) (*os.File, error) {
	f, err := os.OpenFile(lockFilePath(dir), os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: open lock file: %v", ErrContentStore, err)
	}
	ol := new(windows.Overlapped)
	err = windows.LockFileEx(windows.Handle(f.Fd()), windows.LOCKFILE_EXCLUSIVE_LOCK|windows.LOCKFILE_FAIL_IMMEDIATELY, 0, 1, 0, ol)
	if err != nil {
		f.Close()
		return nil, ErrAlreadyRunning
	}
	return f, nil
}

func releaseDirLock(f *os.File) error {
	ol := new(windows.Overlapped)
	windows.UnlockFileEx(windows.Handle(f.Fd()), 0, 1, 0, ol)
	return f.Close()
}
