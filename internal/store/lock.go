package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	docerrors "github.com/Aman-CERP/docindex/internal/errors"
)

const (
	lockFileName   = ".store.lock"
	lockRetryDelay = 25 * time.Millisecond
)

// FileLock provides cross-process locking of a storage directory using
// gofrs/flock. Writers take it exclusively, readers shared.
type FileLock struct {
	path    string
	flock   *flock.Flock
	timeout time.Duration
}

// NewFileLock creates a lock at <dir>/.store.lock. A timeout of 0 waits
// until ctx is done.
func NewFileLock(dir string, timeout time.Duration) *FileLock {
	path := filepath.Join(dir, lockFileName)
	return &FileLock{
		path:    path,
		flock:   flock.New(path),
		timeout: timeout,
	}
}

// Lock acquires an exclusive lock.
func (l *FileLock) Lock(ctx context.Context) error {
	return l.acquire(ctx, l.flock.TryLockContext, "exclusive")
}

// RLock acquires a shared lock.
func (l *FileLock) RLock(ctx context.Context) error {
	return l.acquire(ctx, l.flock.TryRLockContext, "shared")
}

func (l *FileLock) acquire(ctx context.Context, try func(context.Context, time.Duration) (bool, error), kind string) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return docerrors.IOError("failed to create lock directory", err)
	}
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}
	ok, err := try(ctx, lockRetryDelay)
	if err != nil || !ok {
		if err == nil {
			err = ctx.Err()
		}
		return docerrors.New(docerrors.ErrCodeStoreLocked,
			fmt.Sprintf("could not take %s lock on %s", kind, l.path), err).
			WithSuggestion("Another docindex process is writing this store; retry shortly")
	}
	return nil
}

// Unlock releases the lock. It is safe to call on an unlocked FileLock.
func (l *FileLock) Unlock() error {
	if !l.flock.Locked() && !l.flock.RLocked() {
		return nil
	}
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

// Path returns the path to the lock file.
func (l *FileLock) Path() string {
	return l.path
}
