package cache

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// Locker serializes work on one slot across scracc processes.
type Locker interface {
	// Lock blocks until the slot is held and returns the function releasing it.
	Lock(slot string) (unlock func() error, err error)

	// TryLock acquires the slot only if it is free.
	TryLock(slot string) (unlock func() error, ok bool, err error)

	// Remove deletes the lock of an evicted slot. Callers hold the lock.
	Remove(slot string) error
}

const lockSuffix = ".lock"

// FileLocker takes advisory flock(2) locks on <root>/<slot>.lock. The lock file
// lives beside the slot directory so evicting a slot never removes a held lock.
type FileLocker struct {
	root string
}

// NewFileLocker creates a locker for slots under root
func NewFileLocker(root string) *FileLocker {
	return &FileLocker{root: root}
}

func (l *FileLocker) path(slot string) (string, error) {
	if err := os.MkdirAll(l.root, 0o755); err != nil {
		return "", fmt.Errorf("failed to create cache directory: %w", err)
	}

	return filepath.Join(l.root, slot+lockSuffix), nil
}

func (l *FileLocker) Lock(slot string) (func() error, error) {
	path, err := l.path(slot)
	if err != nil {
		return nil, err
	}

	fl := flock.New(path)
	if err := fl.Lock(); err != nil {
		return nil, fmt.Errorf("failed to lock slot %s: %w", slot, err)
	}

	return fl.Unlock, nil
}

func (l *FileLocker) TryLock(slot string) (func() error, bool, error) {
	path, err := l.path(slot)
	if err != nil {
		return nil, false, err
	}

	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, false, fmt.Errorf("failed to lock slot %s: %w", slot, err)
	}

	if !ok {
		return nil, false, nil
	}

	return fl.Unlock, true, nil
}

func (l *FileLocker) Remove(slot string) error {
	err := os.Remove(filepath.Join(l.root, slot+lockSuffix))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove lock of slot %s: %w", slot, err)
	}

	return nil
}

type nopLocker struct{}

func (nopLocker) Lock(string) (func() error, error) {
	return func() error { return nil }, nil
}

func (nopLocker) TryLock(string) (func() error, bool, error) {
	return func() error { return nil }, true, nil
}

func (nopLocker) Remove(string) error {
	return nil
}
