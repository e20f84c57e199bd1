// Package runlock serializes transcription runs across processes with an
// advisory file lock, so two invocations never drive the recognizer at once.
package runlock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// ErrBusy is returned when another process holds the lock.
var ErrBusy = errors.New("another podscribe run is in progress")

// retryInterval is how often a waiting Acquire polls the lock.
const retryInterval = 250 * time.Millisecond

// Lock is a held run lock.
type Lock struct {
	path string
	fl   *flock.Flock
}

// Acquire takes the lock at path. With wait <= 0 it fails fast with ErrBusy;
// otherwise it polls until the lock frees, wait elapses, or ctx ends.
func Acquire(ctx context.Context, path string, wait time.Duration) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure lock dir: %w", err)
	}
	fl := flock.New(path)

	if wait <= 0 {
		ok, err := fl.TryLock()
		if err != nil {
			return nil, fmt.Errorf("acquire lock: %w", err)
		}
		if !ok {
			return nil, fmt.Errorf("%w (lock %s)", ErrBusy, path)
		}
		return &Lock{path: path, fl: fl}, nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()
	ok, err := fl.TryLockContext(waitCtx, retryInterval)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w (waited %s for %s)", ErrBusy, wait, path)
		}
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w (lock %s)", ErrBusy, path)
	}
	return &Lock{path: path, fl: fl}, nil
}

// Path returns the lock file location.
func (l *Lock) Path() string { return l.path }

// Release frees the lock. It is safe to call on a nil Lock and more than once.
func (l *Lock) Release() error {
	if l == nil || l.fl == nil {
		return nil
	}
	if err := l.fl.Unlock(); err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}
