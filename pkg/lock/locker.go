package lock

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/chenqi-wds/lockmgr/pkg/lockerr"
	"github.com/chenqi-wds/lockmgr/pkg/lockobs/logging"
)

// ErrCancelled is returned by Locker.Lock when another goroutine withdraws
// this wait via Locker.CancelWait — the deadlock-victim-selection path —
// rather than the caller's own context ending the wait. A converting
// request that loses this race keeps whatever weaker mode it already
// held; the caller gets ErrCancelled instead of the stronger mode it
// asked for and must decide whether to retry.
var ErrCancelled = errors.New("lock: wait cancelled by another goroutine")

var lockerCounter int64

func newLockerID() LockerID {
	return LockerID(atomic.AddInt64(&lockerCounter, 1))
}

// Locker is the blocking, single-owner convenience layer over
// LockManager that a single thread of execution uses to acquire and
// release its locks. Where LockManager.Lock returns StatusWaiting
// immediately, Locker.Lock parks the calling goroutine on the owning
// partition's condition variable until the request is granted,
// cancelled, or its context is done.
//
// A Locker is not safe for concurrent use by more than one goroutine at
// a time, matching the single-threaded-owner assumption the rest of
// the package makes about a locker's identity. The one exception is
// CancelWait, which another goroutine may call to withdraw a wait the
// owner is parked in.
type Locker struct {
	ID  LockerID
	Tag string // debug-only label: a random UUID string

	manager *LockManager

	mu    sync.Mutex
	held  map[ResourceID]*LockRequest
	order []ResourceID // acquisition order, for UnlockAll's reverse release
}

// NewLocker creates a Locker bound to manager, with a process-unique ID
// and a random debug tag.
func NewLocker(manager *LockManager) *Locker {
	return &Locker{
		ID:      newLockerID(),
		Tag:     uuid.NewString(),
		manager: manager,
		held:    make(map[ResourceID]*LockRequest),
	}
}

func (l *Locker) String() string {
	return fmt.Sprintf("Locker(%d,%s)", l.ID, l.Tag)
}

// LockImpl performs a single, non-blocking lock attempt, delegating
// directly to LockManager.Lock. It is the entry point
// DeadlockDetector-adjacent tests and any caller that wants to manage
// its own waiting loop should use instead of Lock.
func (l *Locker) LockImpl(resource ResourceID, mode Mode) Status {
	status, req := l.manager.Lock(l.ID, resource, mode)
	if req != nil {
		l.track(resource, req)
	}
	return status
}

// Lock acquires mode on resource, blocking until granted, until ctx is
// done, or until CancelWait withdraws the request from another
// goroutine (e.g. deadlock victim selection). A context cancellation or
// deadline returns ctx.Err(); a CancelWait from another goroutine
// returns ErrCancelled. In either case a brand-new request leaves no
// trace, while a call that was converting an existing grant to a
// stronger mode leaves the locker holding the weaker mode it already
// had rather than losing it.
func (l *Locker) Lock(ctx context.Context, resource ResourceID, mode Mode) error {
	status, req := l.manager.Lock(l.ID, resource, mode)
	if req != nil {
		l.track(resource, req)
	}

	switch status {
	case StatusOK:
		return nil
	case StatusFailedToAllocate:
		return lockerr.New(lockerr.CategoryResource, "locker", "failed to allocate lock request for %s", resource)
	case StatusWaiting:
		if err := l.waitForGrant(ctx, resource, req); err != nil {
			// A cancelled brand-new request is fully withdrawn (member
			// goes to onNoList) and must be forgotten. A cancelled
			// conversion reverts to the mode it already held, so the
			// locker is still holding resource and must stay tracked.
			if req.member == onNoList {
				l.untrack(resource)
			}
			return err
		}
		return nil
	default:
		lockerr.Fatal("locker.Lock", "unexpected status %s from LockManager.Lock", status)
		return nil
	}
}

// waitForGrant blocks on the resource's owning partition until req is
// granted, ctx is done, or the request is cancelled out from under it.
func (l *Locker) waitForGrant(ctx context.Context, resource ResourceID, req *LockRequest) error {
	p := l.manager.partitionFor(resource)

	if ctx.Done() != nil {
		stop := make(chan struct{})
		defer close(stop)
		go func() {
			select {
			case <-ctx.Done():
				p.mu.Lock()
				p.cond.Broadcast()
				p.mu.Unlock()
			case <-stop:
			}
		}()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for req.isWaiting() {
		if err := ctx.Err(); err != nil {
			p.mu.Unlock()
			l.manager.CancelWait(l.ID, resource)
			p.mu.Lock()
			return err
		}
		p.cond.Wait()
	}
	if req.cancelled {
		return ErrCancelled
	}
	return nil
}

// TryLock is LockImpl under another name, returning a boolean for
// callers that don't care about the distinction between WAITING and
// FAILED_TO_ALLOCATE.
func (l *Locker) TryLock(resource ResourceID, mode Mode) bool {
	return l.LockImpl(resource, mode) == StatusOK
}

// Unlock releases one recursive layer of this locker's hold on
// resource. Unlocking a resource this locker never acquired is a
// programmer error, surfaced through LockManager.Unlock.
func (l *Locker) Unlock(resource ResourceID) {
	l.manager.Unlock(l.ID, resource)

	l.mu.Lock()
	defer l.mu.Unlock()
	if req, ok := l.held[resource]; ok && req.Recursive == 0 {
		delete(l.held, resource)
		l.order = removeResource(l.order, resource)
	}
}

// CancelWait withdraws this locker's pending or converting request on
// resource without releasing any mode it already holds. It is the
// mechanism a DeadlockDetector-driven victim-selection policy uses to
// break a cycle: pick one locker on the cycle and cancel its wait.
func (l *Locker) CancelWait(resource ResourceID) {
	l.manager.CancelWait(l.ID, resource)
}

// UnlockAll releases every resource this locker holds, in the reverse
// of the order it acquired them — the conventional discipline for
// avoiding self-inflicted conversions deadlocks on teardown.
func (l *Locker) UnlockAll() {
	l.mu.Lock()
	order := append([]ResourceID(nil), l.order...)
	l.mu.Unlock()

	for i := len(order) - 1; i >= 0; i-- {
		res := order[i]
		for {
			l.Unlock(res)
			l.mu.Lock()
			_, still := l.held[res]
			l.mu.Unlock()
			if !still {
				break
			}
		}
	}
}

// HeldResources returns the resources this locker currently holds a
// request on (granted or still queued), in acquisition order.
func (l *Locker) HeldResources() []ResourceID {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]ResourceID(nil), l.order...)
}

// Destroy asserts this locker released everything before going away.
// It is a programmer error to destroy a Locker that still holds or is
// waiting on any resource — the caller forgot an Unlock or UnlockAll.
func (l *Locker) Destroy() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.held) != 0 {
		log := logging.WithLocker(logging.Get(), int64(l.ID))
		log.Error().Int("outstanding", len(l.held)).Msg("locker destroyed with outstanding requests")
		lockerr.Fatal("locker.Destroy", "locker %s destroyed while holding %d resources", l, len(l.held))
	}
}

func (l *Locker) track(resource ResourceID, req *LockRequest) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.held[resource]; !exists {
		l.order = append(l.order, resource)
	}
	l.held[resource] = req
}

// untrack drops bookkeeping for a request this locker withdrew before
// it was ever granted (a cancelled wait), as opposed to Unlock, which
// releases a request that was at least partially granted.
func (l *Locker) untrack(resource ResourceID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, resource)
	l.order = removeResource(l.order, resource)
}

func removeResource(order []ResourceID, resource ResourceID) []ResourceID {
	for i, r := range order {
		if r == resource {
			return append(order[:i], order[i+1:]...)
		}
	}
	return order
}
