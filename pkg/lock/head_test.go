package lock

import "testing"

func TestLockHeadGrantScanFIFOWithinPendingList(t *testing.T) {
	head := newLockHead(NewResourceID(ResourceCollection, "t"))

	r1 := newLockRequest(1, head, ModeX)
	head.placeOnGranted(r1)
	head.recomputeAggregates()

	r2 := newLockRequest(2, head, ModeS)
	head.placeOnPending(r2)
	r3 := newLockRequest(3, head, ModeS)
	head.placeOnPending(r3)
	head.recomputeAggregates()

	result := head.runGrantScan()
	if len(result.promoted) != 0 {
		t.Fatalf("nothing should be grantable while X is held, got %d promotions", len(result.promoted))
	}

	head.removeRequest(r1)
	result = head.runGrantScan()
	if len(result.promoted) != 2 {
		t.Fatalf("both S waiters should be grantable once X releases, got %d", len(result.promoted))
	}
	if result.promoted[0] != r2 || result.promoted[1] != r3 {
		t.Error("pending list should be granted in FIFO order")
	}
}

func TestLockHeadGrantScanStopsAtFirstUngrantable(t *testing.T) {
	head := newLockHead(NewResourceID(ResourceCollection, "t"))

	rX := newLockRequest(1, head, ModeX)
	head.placeOnPending(rX)
	rS := newLockRequest(2, head, ModeS)
	head.placeOnPending(rS)
	head.recomputeAggregates()

	result := head.runGrantScan()
	if len(result.promoted) != 1 || result.promoted[0] != rX {
		t.Fatalf("only the head-of-line X request should be granted, got %v", result.promoted)
	}
	if rS.Status != reqWaiting {
		t.Error("S behind X should remain waiting once X is granted ahead of it")
	}
}

func TestLockHeadConversionGrantsAheadOfPendingNewcomer(t *testing.T) {
	// A conversion only conflicts with what's actually GRANTED, never
	// with a merely-pending newcomer that holds nothing yet.
	head := newLockHead(NewResourceID(ResourceCollection, "t"))

	holder := newLockRequest(1, head, ModeS)
	head.placeOnGranted(holder)
	head.recomputeAggregates()

	newcomer := newLockRequest(2, head, ModeS)
	head.placeOnPending(newcomer)
	head.recomputeAggregates()

	head.placeOnConversion(holder, ModeX)
	head.recomputeAggregates()

	result := head.runGrantScan()
	if len(result.promoted) != 1 || result.promoted[0] != holder {
		t.Fatalf("conversion should grant immediately with no other granted holder, got %v", result.promoted)
	}
	if newcomer.Status != reqWaiting {
		t.Error("newcomer should remain queued behind the now-granted X")
	}
}

func TestLockHeadConversionBlocksOnAnotherGrantedHolder(t *testing.T) {
	head := newLockHead(NewResourceID(ResourceCollection, "t"))

	a := newLockRequest(1, head, ModeS)
	head.placeOnGranted(a)
	b := newLockRequest(2, head, ModeS)
	head.placeOnGranted(b)
	head.recomputeAggregates()

	head.placeOnConversion(a, ModeX)
	head.recomputeAggregates()

	result := head.runGrantScan()
	if len(result.promoted) != 0 {
		t.Fatalf("conversion to X should block while b still holds S, got %d promotions", len(result.promoted))
	}

	head.removeRequest(b)
	result = head.runGrantScan()
	if len(result.promoted) != 1 || result.promoted[0] != a {
		t.Fatalf("conversion should grant once the conflicting holder releases, got %v", result.promoted)
	}
}

func TestLockHeadConflictTargetsIncludesGrantedHolders(t *testing.T) {
	head := newLockHead(NewResourceID(ResourceCollection, "t"))

	holder := newLockRequest(1, head, ModeX)
	head.placeOnGranted(holder)
	head.recomputeAggregates()

	waiter := newLockRequest(2, head, ModeS)
	head.placeOnPending(waiter)
	head.recomputeAggregates()

	targets := head.conflictTargets(waiter)
	if len(targets) != 1 || targets[0] != holder.Locker {
		t.Errorf("conflictTargets = %v, want [%d]", targets, holder.Locker)
	}
}

func TestLockHeadConflictTargetsIncludesAheadInQueue(t *testing.T) {
	head := newLockHead(NewResourceID(ResourceCollection, "t"))

	first := newLockRequest(1, head, ModeX)
	head.placeOnPending(first)
	second := newLockRequest(2, head, ModeS)
	head.placeOnPending(second)
	head.recomputeAggregates()

	targets := head.conflictTargets(second)
	if len(targets) != 1 || targets[0] != first.Locker {
		t.Errorf("conflictTargets = %v, want [%d]", targets, first.Locker)
	}
}

func TestLockHeadIsEmpty(t *testing.T) {
	head := newLockHead(NewResourceID(ResourceCollection, "t"))
	if !head.isEmpty() {
		t.Fatal("freshly constructed LockHead should be empty")
	}

	req := newLockRequest(1, head, ModeS)
	head.placeOnGranted(req)
	head.recomputeAggregates()
	if head.isEmpty() {
		t.Fatal("LockHead with a granted request should not be empty")
	}

	head.removeRequest(req)
	if !head.isEmpty() {
		t.Fatal("LockHead should be empty once its only request is removed")
	}
}
