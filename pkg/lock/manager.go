package lock

import (
	"sync"
	"time"

	"github.com/chenqi-wds/lockmgr/pkg/lockerr"
	"github.com/chenqi-wds/lockmgr/pkg/lockobs/logging"
	"github.com/chenqi-wds/lockmgr/pkg/lockobs/metrics"
)

// numPartitions is the fixed width of a LockManager's partition array.
// Each partition owns its own mutex and condition variable, so
// contention on unrelated resources never serializes through one lock.
const numPartitions = 128

// partition is one shard of a LockManager: a mutex guarding a map of
// LockHeads, and a condition variable that parked waiters block on.
// Broadcast fires whenever a grant scan promotes at least one request,
// since any number of parked goroutines across different resources in
// this partition might now be satisfied.
type partition struct {
	mu    sync.Mutex
	cond  *sync.Cond
	heads map[ResourceID]*LockHead
}

func newPartition() *partition {
	p := &partition{heads: make(map[ResourceID]*LockHead)}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// LockManager is the central authority over resource locks: a
// hash-partitioned table of LockHeads plus the grant-scan logic that
// decides, under a single partition's mutex, which waiting requests a
// state change just unblocked.
//
// LockManager.Lock never blocks the calling goroutine; it enqueues and
// returns StatusWaiting immediately. Blocking on a grant is Locker's
// job (see locker.go), which parks on the owning partition's condition
// variable.
type LockManager struct {
	partitions [numPartitions]*partition

	// failAllocation, when non-nil, is consulted while a partition's
	// mutex is held to let tests deterministically exercise
	// StatusFailedToAllocate without starving real memory.
	failAllocation func() bool
}

// NewLockManager constructs an empty LockManager.
func NewLockManager() *LockManager {
	m := &LockManager{}
	for i := range m.partitions {
		m.partitions[i] = newPartition()
	}
	return m
}

func (m *LockManager) partitionFor(resource ResourceID) *partition {
	return m.partitions[resource.partition(numPartitions)]
}

// Lock attempts to acquire mode on resource for locker. It never
// blocks: a conflicting existing grant or a non-empty queue ahead of
// this request results in StatusWaiting and an enqueued *LockRequest,
// not a parked goroutine. Callers that want to block until granted use
// Locker.Lock instead.
//
// Requesting ModeNone is a no-op that always returns StatusOK with a
// nil request.
func (m *LockManager) Lock(locker LockerID, resource ResourceID, mode Mode) (Status, *LockRequest) {
	if mode == ModeNone {
		return StatusOK, nil
	}

	p := m.partitionFor(resource)
	p.mu.Lock()
	defer p.mu.Unlock()

	if m.failAllocation != nil && m.failAllocation() {
		metrics.LockRequests.WithLabelValues(mode.String(), "failed_to_allocate").Inc()
		return StatusFailedToAllocate, nil
	}

	log := logging.WithResource(logging.WithLocker(logging.Get(), int64(locker)), resource.String())

	head, ok := p.heads[resource]
	if !ok {
		head = newLockHead(resource)
		p.heads[resource] = head
	}

	if existing := head.findRequest(locker); existing != nil {
		status := m.convertExisting(head, existing, mode)
		metrics.LockRequests.WithLabelValues(mode.String(), status.String()).Inc()
		return status, existing
	}

	req := newLockRequest(locker, head, mode)
	canGrantNow := len(head.pendingList) == 0 && len(head.conversionList) == 0 &&
		CompatibleWithSet(head.grantedModes, mode)

	if canGrantNow {
		head.placeOnGranted(req)
		head.recomputeAggregates()
		metrics.ActiveLocks.WithLabelValues(mode.String()).Inc()
		metrics.LockRequests.WithLabelValues(mode.String(), "granted").Inc()
		log.Debug().Str("mode", mode.String()).Msg("lock granted")
		return StatusOK, req
	}

	head.placeOnPending(req)
	head.recomputeAggregates()
	req.enqueuedAt = time.Now()
	metrics.LockRequests.WithLabelValues(mode.String(), "waiting").Inc()
	log.Debug().Str("mode", mode.String()).Msg("lock request queued")
	return StatusWaiting, req
}

// convertExisting handles a Lock call from a locker that already holds
// or is waiting on resource: recursive re-acquisition at a mode no
// stronger than what it already has or wants, or a strengthening that
// either grants immediately or moves the request onto the conversion
// list per spec's FIFO-with-conversion-priority policy.
func (m *LockManager) convertExisting(head *LockHead, req *LockRequest, mode Mode) Status {
	current := req.RequestedMode
	if req.Status == reqGranted {
		current = req.GrantedMode
	}
	joined := Join(current, mode)

	if joined == current {
		req.Recursive++
		return statusFor(req)
	}

	switch req.Status {
	case reqGranted:
		req.Recursive++
		others := head.otherGrantedModes(req.Locker)
		if len(head.conversionList) == 0 && CompatibleWithSet(others, joined) {
			metrics.ActiveLocks.WithLabelValues(current.String()).Dec()
			req.RequestedMode = joined
			head.placeOnGranted(req)
			head.recomputeAggregates()
			metrics.ActiveLocks.WithLabelValues(joined.String()).Inc()
			return StatusOK
		}
		head.placeOnConversion(req, joined)
		head.recomputeAggregates()
		return StatusWaiting

	default: // reqWaiting or reqConverting: still queued, coalesce the ask
		req.RequestedMode = joined
		req.Recursive++
		return StatusWaiting
	}
}

func statusFor(req *LockRequest) Status {
	if req.Status == reqGranted {
		return StatusOK
	}
	return StatusWaiting
}

// Unlock releases one recursive layer of locker's hold on resource. If
// the hold count reaches zero the request is removed and a grant scan
// runs, possibly promoting queued requests; any parked Locker.Lock
// callers on this partition are woken to recheck their own request.
//
// Unlock on a resource/locker pair with no outstanding request is a
// programmer error: it means the caller is releasing something it
// never acquired.
func (m *LockManager) Unlock(locker LockerID, resource ResourceID) Status {
	p := m.partitionFor(resource)
	p.mu.Lock()
	defer p.mu.Unlock()

	head, ok := p.heads[resource]
	if !ok {
		lockerr.Fatal("lock.Unlock", "locker %d has no request on resource %s", locker, resource)
	}
	req := head.findRequest(locker)
	if req == nil {
		lockerr.Fatal("lock.Unlock", "locker %d has no request on resource %s", locker, resource)
	}

	req.Recursive--
	if req.Recursive > 0 {
		return StatusOK
	}

	wasGranted := req.Status == reqGranted
	grantedMode := req.GrantedMode
	head.removeRequest(req)

	if wasGranted {
		metrics.ActiveLocks.WithLabelValues(grantedMode.String()).Dec()
	}

	result := head.runGrantScan()
	m.recordPromotions(result)
	if len(result.promoted) > 0 {
		p.cond.Broadcast()
	}

	if head.isEmpty() {
		delete(p.heads, resource)
	}
	return StatusOK
}

// Downgrade weakens locker's granted mode on resource to newMode,
// re-running the grant scan since the weaker hold may now be
// compatible with requests it previously blocked.
//
// Downgrading to a mode that is not weaker-or-equal to the current
// grant, or downgrading a request that isn't currently granted, is a
// programmer error.
func (m *LockManager) Downgrade(locker LockerID, resource ResourceID, newMode Mode) Status {
	p := m.partitionFor(resource)
	p.mu.Lock()
	defer p.mu.Unlock()

	head, ok := p.heads[resource]
	if !ok {
		lockerr.Fatal("lock.Downgrade", "locker %d has no request on resource %s", locker, resource)
	}
	req := head.findRequest(locker)
	if req == nil || req.Status != reqGranted {
		lockerr.Fatal("lock.Downgrade", "locker %d does not hold a grant on resource %s", locker, resource)
	}
	if !StrongerOrEqual(req.GrantedMode, newMode) {
		lockerr.Fatal("lock.Downgrade", "mode %s is not weaker than held mode %s", newMode, req.GrantedMode)
	}

	metrics.ActiveLocks.WithLabelValues(req.GrantedMode.String()).Dec()
	req.GrantedMode = newMode
	req.RequestedMode = newMode
	metrics.ActiveLocks.WithLabelValues(newMode.String()).Inc()
	head.recomputeAggregates()

	result := head.runGrantScan()
	m.recordPromotions(result)
	if len(result.promoted) > 0 {
		p.cond.Broadcast()
	}
	return StatusOK
}

// CancelWait withdraws locker's not-yet-granted request on resource: a
// pending first-time request is cancelled outright, while a conversion
// request reverts to the mode it already held rather than losing its
// grant, and gives back the recursive layer the conversion added. A
// request that is already fully granted is left untouched and
// CancelWait is a no-op.
//
// Either branch marks the request so a goroutine parked in
// Locker.waitForGrant sees this as a cancellation rather than a grant,
// and the partition's condition variable is broadcast unconditionally —
// not only when the grant scan below happens to promote someone else —
// since CancelWait's own mutation is exactly the state change that
// goroutine is waiting to recheck.
func (m *LockManager) CancelWait(locker LockerID, resource ResourceID) Status {
	p := m.partitionFor(resource)
	p.mu.Lock()
	defer p.mu.Unlock()

	head, ok := p.heads[resource]
	if !ok {
		return StatusOK
	}
	req := head.findRequest(locker)
	if req == nil || !req.isWaiting() {
		return StatusOK
	}

	switch req.Status {
	case reqConverting:
		req.RequestedMode = req.GrantedMode
		req.Recursive--
		head.placeOnGranted(req)
		req.cancelled = true
	case reqWaiting:
		head.removeFromCurrentList(req)
		req.member = onNoList
		req.Status = reqCancelled
		req.cancelled = true
	}
	head.recomputeAggregates()

	result := head.runGrantScan()
	m.recordPromotions(result)
	p.cond.Broadcast()

	if head.isEmpty() {
		delete(p.heads, resource)
	}
	return StatusCancelled
}

// conflictTargetsFor reports whether locker currently has a waiting
// request on resource and, if so, the lockers it waits for — computed
// while holding resource's partition mutex so DeadlockDetector never
// reads a LockHead's lists without the lock that protects them. The
// detector releases this mutex before stepping to the next edge, so it
// never holds two partition mutexes at once.
func (m *LockManager) conflictTargetsFor(locker LockerID, resource ResourceID) ([]LockerID, bool) {
	p := m.partitionFor(resource)
	p.mu.Lock()
	defer p.mu.Unlock()

	head, ok := p.heads[resource]
	if !ok {
		return nil, false
	}
	req := head.findRequest(locker)
	if req == nil || !req.isWaiting() {
		return nil, false
	}
	return head.conflictTargets(req), true
}

// forEachPartition calls fn once per partition with that partition's
// mutex held, never holding two partition mutexes at once. Used by
// DeadlockDetector to enumerate every LockHead a locker is waiting on
// across the whole manager.
func (m *LockManager) forEachPartition(fn func(p *partition)) {
	for _, p := range m.partitions {
		p.mu.Lock()
		fn(p)
		p.mu.Unlock()
	}
}

func (m *LockManager) recordPromotions(result grantScanResult) {
	for _, req := range result.promoted {
		metrics.ActiveLocks.WithLabelValues(req.GrantedMode.String()).Inc()
		if !req.enqueuedAt.IsZero() {
			metrics.LockWaitSeconds.WithLabelValues(req.GrantedMode.String()).Observe(time.Since(req.enqueuedAt).Seconds())
		}
	}
}
