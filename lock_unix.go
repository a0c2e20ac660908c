//go:build !windows

// Directory advisory locking on Unix-like platforms (§9 "Global state":
// Start should advisory-lock the data directory and fail with
// ErrAlreadyRunning if another process already holds it).
package xantippe

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

func acquireDirLock(dir string) (*os.File, error) {
	f, err := os.OpenFile(lockFilePath(dir), os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: open lock file: %v", ErrContentStore, err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if err == unix.EWOULDBLOCK {
			return nil, ErrAlreadyRunning
		}
		return nil, fmt.Errorf("%w: flock: %v", ErrContentStore, err)
	}
	return f, nil
}

func releaseDirLock(f *os.File) error {
	unix.Flock(int(f.Fd()), unix.LOCK_UN)
	return f.Close()
}
