package registry

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// RunLock guards a label against concurrent runs from other processes.
type RunLock struct {
	lock *flock.Flock
}

// AcquireRunLock takes a non-blocking lock on "<dir>/<label key>.lock".
// It returns ErrLocked when another process already holds it.
func AcquireRunLock(dir string, label Label) (*RunLock, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create lock dir: %w", err)
	}

	l := flock.New(filepath.Join(dir, label.Key()+".lock"))
	ok, err := l.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock registry %s: %w", label, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, label)
	}
	return &RunLock{lock: l}, nil
}

// Release unlocks the label.
func (l *RunLock) Release() error {
	if l == nil || l.lock == nil {
		return nil
	}
	return l.lock.Unlock()
}
