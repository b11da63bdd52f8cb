// Package lock provides best-effort advisory locks keyed by execution dedup key.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	ErrLockDoesNotExist    = errors.New("lock does not exist")
	ErrLockBelongsToOthers = errors.New("lock belongs to another owner")
)

// Locker acquires short-lived exclusive locks. A lock expires after its TTL even if
// the owner never releases it.
type Locker interface {
	// TryLock returns false without waiting when another owner holds key.
	TryLock(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key, owner string) error
	Close() error
}

type localEntry struct {
	owner   string
	expires time.Time
}

// LocalLocker is an in-process Locker for single-instance deployments.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]localEntry
	now   func() time.Time
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{
		locks: make(map[string]localEntry),
		now:   time.Now,
	}
}

func (l *LocalLocker) TryLock(_ context.Context, key, owner string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	if entry, ok := l.locks[key]; ok && now.Before(entry.expires) {
		return false, nil
	}

	l.locks[key] = localEntry{owner: owner, expires: now.Add(ttl)}

	return true, nil
}

func (l *LocalLocker) Unlock(_ context.Context, key, owner string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.locks[key]
	if !ok || !l.now().Before(entry.expires) {
		delete(l.locks, key)

		return ErrLockDoesNotExist
	}

	if entry.owner != owner {
		return ErrLockBelongsToOthers
	}

	delete(l.locks, key)

	return nil
}

func (l *LocalLocker) Close() error {
	return nil
}
