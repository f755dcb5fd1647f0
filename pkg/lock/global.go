package lock

import "sync"

var (
	global     *LockManager
	globalOnce sync.Once
)

// globalLockManager returns the process-wide LockManager, creating it
// on first use. Most callers should hold their own *LockManager and
// pass it around explicitly; this exists for the common case of a
// single in-process database that only ever needs one.
func globalLockManager() *LockManager {
	globalOnce.Do(func() {
		global = NewLockManager()
	})
	return global
}

// GlobalLockManager returns the process-wide LockManager, creating it
// on first use.
func GlobalLockManager() *LockManager {
	return globalLockManager()
}
