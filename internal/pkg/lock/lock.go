// Package lock provides keyed locking for concurrent balance and room operations.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrLockTimeout is returned when a key stays busy past the caller's timeout.
var ErrLockTimeout = errors.New("lock acquisition timeout")

// keyedMutex wraps a mutex with reference counting for cleanup.
type keyedMutex struct {
	mu       sync.Mutex
	refCount int
}

// KeyedLock serializes work per key. Entries are dropped once no goroutine
// holds or waits on them.
type KeyedLock[K comparable] struct {
	mu    sync.Mutex
	locks map[K]*keyedMutex
}

// UserLock serializes wallet mutations per user.
type UserLock = KeyedLock[int64]

// RoomLock serializes room document edits per room.
type RoomLock = KeyedLock[string]

// New creates an empty KeyedLock.
func New[K comparable]() *KeyedLock[K] {
	return &KeyedLock[K]{locks: make(map[K]*keyedMutex)}
}

// NewUserLock creates a new UserLock instance.
func NewUserLock() *UserLock {
	return New[int64]()
}

// NewRoomLock creates a new RoomLock instance.
func NewRoomLock() *RoomLock {
	return New[string]()
}

func (kl *KeyedLock[K]) acquire(key K) *keyedMutex {
	kl.mu.Lock()
	defer kl.mu.Unlock()

	m, ok := kl.locks[key]
	if !ok {
		m = &keyedMutex{}
		kl.locks[key] = m
	}
	m.refCount++
	return m
}

func (kl *KeyedLock[K]) release(key K, m *keyedMutex) {
	kl.mu.Lock()
	defer kl.mu.Unlock()

	m.refCount--
	if m.refCount == 0 {
		delete(kl.locks, key)
	}
}

// Lock acquires the lock for a key.
func (kl *KeyedLock[K]) Lock(key K) {
	kl.acquire(key).mu.Lock()
}

// Unlock releases the lock for a key.
func (kl *KeyedLock[K]) Unlock(key K) {
	kl.mu.Lock()
	m, ok := kl.locks[key]
	kl.mu.Unlock()
	if !ok {
		return
	}
	m.mu.Unlock()
	kl.release(key, m)
}

// TryLock attempts to acquire the lock without blocking.
func (kl *KeyedLock[K]) TryLock(key K) bool {
	m := kl.acquire(key)
	if m.mu.TryLock() {
		return true
	}
	kl.release(key, m)
	return false
}

// LockWithTimeout attempts to acquire the lock until the timeout or ctx expires.
func (kl *KeyedLock[K]) LockWithTimeout(ctx context.Context, key K, timeout time.Duration) bool {
	m := kl.acquire(key)
	done := make(chan struct{})

	go func() {
		m.mu.Lock()
		close(done)
	}()

	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	select {
	case <-done:
		return true
	case <-timeoutCtx.Done():
		// The waiter still owns a reference; it releases once it gets the mutex.
		go func() {
			<-done
			m.mu.Unlock()
			kl.release(key, m)
		}()
		return false
	}
}

// WithLock executes fn while holding the key's lock.
func (kl *KeyedLock[K]) WithLock(key K, fn func() error) error {
	kl.Lock(key)
	defer kl.Unlock(key)
	return fn()
}

// WithLockContext executes fn while holding the key's lock, giving up after timeout.
func (kl *KeyedLock[K]) WithLockContext(ctx context.Context, key K, timeout time.Duration, fn func() error) error {
	if !kl.LockWithTimeout(ctx, key, timeout) {
		return ErrLockTimeout
	}
	defer kl.Unlock(key)

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fn()
	}
}

// IsLocked is a point-in-time check and may change immediately after.
func (kl *KeyedLock[K]) IsLocked(key K) bool {
	kl.mu.Lock()
	m, ok := kl.locks[key]
	kl.mu.Unlock()
	if !ok {
		return false
	}
	if m.mu.TryLock() {
		m.mu.Unlock()
		return false
	}
	return true
}

// Len returns the number of keys currently tracked.
func (kl *KeyedLock[K]) Len() int {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	return len(kl.locks)
}
