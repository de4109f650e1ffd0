package concurrency

import (
	"sync"
)

// LockManager handles named locks. The production engine uses one lock per
// catalog product code so that the read-modify-write quantity updates of
// concurrent runs never interleave on the same stock item.
type LockManager struct {
	locks sync.Map
}

// NewLockManager creates a new LockManager
func NewLockManager() *LockManager {
	return &LockManager{}
}

// GetLock returns a mutex for the given key
func (lm *LockManager) GetLock(key string) *sync.Mutex {
	lock, _ := lm.locks.LoadOrStore(key, &sync.Mutex{})
	return lock.(*sync.Mutex)
}

// WithLock runs fn while holding the named lock.
func (lm *LockManager) WithLock(key string, fn func()) {
	mu := lm.GetLock(key)
	mu.Lock()
	defer mu.Unlock()
	fn()
}
