package lock

import "time"

// LockerID is the unique identity of a Locker, used in wait-for edges and
// LockRequest ownership. It is assigned by an atomic counter (see
// newLockerID in locker.go), never reused within a process lifetime.
type LockerID int64

// requestStatus is a LockRequest's place in its LockHead's lifecycle.
type requestStatus int

const (
	reqGranted requestStatus = iota
	reqWaiting
	reqConverting
	// reqCancelled marks a request that was withdrawn by CancelWait
	// before it was ever granted: detached from every list (member ==
	// onNoList) and never touched again — the next Lock call for the
	// same (locker, resource) pair allocates a brand new LockRequest.
	reqCancelled
)

// listMembership records which of a LockHead's three lists currently
// holds a LockRequest, so the request can locate and remove itself
// without the LockHead having to search all three.
type listMembership int

const (
	onNoList listMembership = iota
	onGrantedList
	onConversionList
	onPendingList
)

// LockRequest is the per-(locker, resource) state tracked by a LockHead:
// the mode currently granted, the mode requested (which differs from
// granted only mid-conversion), lifecycle status, the recursive-acquire
// count, and linkage back to the owning LockHead.
//
// A LockRequest's fields are only ever mutated while its LockHead's
// partition mutex is held.
type LockRequest struct {
	Locker LockerID
	Head   *LockHead

	GrantedMode   Mode
	RequestedMode Mode
	Status        requestStatus
	Recursive     int

	member     listMembership
	enqueuedAt time.Time

	// cancelled is set by CancelWait, on both the detach-from-pending
	// and revert-from-conversion paths, to tell a goroutine parked in
	// Locker.waitForGrant that this wait ended by external withdrawal
	// rather than by reaching the mode it asked for — including the
	// revert-to-prior-grant case, where Status alone goes back to
	// reqGranted and would otherwise look like an ordinary success.
	// Cleared whenever the request starts a fresh wait or is granted
	// outright, so a stale cancellation from a prior episode can never
	// leak onto a later one.
	cancelled bool
}

func newLockRequest(locker LockerID, head *LockHead, mode Mode) *LockRequest {
	return &LockRequest{
		Locker:        locker,
		Head:          head,
		RequestedMode: mode,
		Recursive:     1,
	}
}

// isWaiting reports whether this request is parked on either the
// conversion or pending list (i.e. not yet fully granted).
func (r *LockRequest) isWaiting() bool {
	return r.Status == reqWaiting || r.Status == reqConverting
}
