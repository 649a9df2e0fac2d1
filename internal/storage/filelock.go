//go:build !windows

package storage

import (
	"os"
	"syscall"
)

// tryLockFile takes a non-blocking flock(2) exclusive lock.
func tryLockFile(f *os.File) error {
	return syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
}

func unlockFile(f *os.File) error {
	return syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
}
