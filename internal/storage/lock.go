package storage

import (
	"context"
	"os"
	"time"
)

const lockRetry = 10 * time.Millisecond

// historyLock serializes read-modify-write cycles on a history file across
// processes. The lock file at path+".lock" is left in place after release:
// removing it would let a waiter lock an unlinked inode while a newcomer
// locks a fresh one.
type historyLock struct {
	file *os.File
}

// lockHistory takes the exclusive lock for the history file at path. It
// gives up with ErrLockTimeout after timeout, or with the context error.
func lockHistory(ctx context.Context, path string, timeout time.Duration) (*historyLock, error) {
	f, err := os.OpenFile(path+".lock", os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, err
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	retry := time.NewTicker(lockRetry)
	defer retry.Stop()

	for {
		if err := tryLockFile(f); err == nil {
			return &historyLock{file: f}, nil
		}
		select {
		case <-ctx.Done():
			f.Close()
			return nil, ctx.Err()
		case <-deadline.C:
			f.Close()
			return nil, ErrLockTimeout
		case <-retry.C:
		}
	}
}

// release drops the lock and closes the lock file.
func (l *historyLock) release() error {
	err := unlockFile(l.file)
	if cerr := l.file.Close(); err == nil {
		err = cerr
	}
	return err
}
