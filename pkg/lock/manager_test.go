package lock

import (
	"testing"
)

func TestLockManagerGrantsUncontended(t *testing.T) {
	m := NewLockManager()
	res := NewResourceID(ResourceCollection, "t")

	status, req := m.Lock(1, res, ModeX)
	if status != StatusOK {
		t.Fatalf("status = %s, want OK", status)
	}
	if req.GrantedMode != ModeX {
		t.Errorf("granted mode = %s, want X", req.GrantedMode)
	}
}

func TestLockManagerConflictWaits(t *testing.T) {
	m := NewLockManager()
	res := NewResourceID(ResourceCollection, "t")

	if status, _ := m.Lock(1, res, ModeX); status != StatusOK {
		t.Fatal("first locker should be granted immediately")
	}
	status, req := m.Lock(2, res, ModeS)
	if status != StatusWaiting {
		t.Fatalf("status = %s, want WAITING", status)
	}
	if req.Status != reqWaiting {
		t.Error("second locker's request should be queued")
	}
}

func TestLockManagerUnlockPromotesWaiter(t *testing.T) {
	m := NewLockManager()
	res := NewResourceID(ResourceCollection, "t")

	m.Lock(1, res, ModeX)
	status, req := m.Lock(2, res, ModeS)
	if status != StatusWaiting {
		t.Fatal("locker 2 should be queued behind locker 1's X")
	}

	m.Unlock(1, res)
	if req.Status != reqGranted {
		t.Error("locker 2's request should be promoted once locker 1 releases")
	}
}

func TestLockManagerRecursiveAcquireDoesNotDuplicate(t *testing.T) {
	m := NewLockManager()
	res := NewResourceID(ResourceCollection, "t")

	status, req1 := m.Lock(1, res, ModeS)
	if status != StatusOK {
		t.Fatal("first acquire should grant")
	}
	status, req2 := m.Lock(1, res, ModeS)
	if status != StatusOK {
		t.Fatal("recursive acquire at same mode should grant")
	}
	if req1 != req2 {
		t.Error("recursive acquire should return the same LockRequest")
	}
	if req1.Recursive != 2 {
		t.Errorf("Recursive = %d, want 2", req1.Recursive)
	}

	m.Unlock(1, res)
	if req1.Status != reqGranted {
		t.Error("one unlock should not release a recursively-held request")
	}
	m.Unlock(1, res)
	if req1.member != onNoList {
		t.Error("second unlock should fully release the request")
	}
}

func TestLockManagerConversionUpgradesInPlace(t *testing.T) {
	m := NewLockManager()
	res := NewResourceID(ResourceCollection, "t")

	m.Lock(1, res, ModeIX)
	status, req := m.Lock(1, res, ModeS)
	if status != StatusOK {
		t.Fatalf("uncontended conversion should grant immediately, got %s", status)
	}
	if req.GrantedMode != ModeSIX {
		t.Errorf("GrantedMode = %s, want SIX (join of IX and S)", req.GrantedMode)
	}
}

func TestLockManagerConversionQueuesBehindConflict(t *testing.T) {
	m := NewLockManager()
	res := NewResourceID(ResourceCollection, "t")

	m.Lock(1, res, ModeS)
	m.Lock(2, res, ModeS)

	status, req := m.Lock(1, res, ModeX)
	if status != StatusWaiting {
		t.Fatalf("conversion to X should wait on locker 2's S, got %s", status)
	}
	if req.Status != reqConverting {
		t.Error("request should be on the conversion list")
	}

	m.Unlock(2, res)
	if req.Status != reqGranted || req.GrantedMode != ModeX {
		t.Error("conversion should be granted once the conflicting S releases")
	}
}

func TestLockManagerDowngrade(t *testing.T) {
	m := NewLockManager()
	res := NewResourceID(ResourceCollection, "t")

	m.Lock(1, res, ModeX)
	status, waiter := m.Lock(2, res, ModeS)
	if status != StatusWaiting {
		t.Fatal("locker 2 should wait on X")
	}

	if s := m.Downgrade(1, res, ModeS); s != StatusOK {
		t.Fatalf("Downgrade returned %s, want OK", s)
	}
	if waiter.Status != reqGranted {
		t.Error("downgrading X to S should unblock a pending S waiter")
	}
}

func TestLockManagerCancelWaitRevertsConversion(t *testing.T) {
	m := NewLockManager()
	res := NewResourceID(ResourceCollection, "t")

	m.Lock(1, res, ModeS)
	m.Lock(2, res, ModeS)
	status, req := m.Lock(1, res, ModeX)
	if status != StatusWaiting {
		t.Fatal("conversion should wait on locker 2's S")
	}

	m.CancelWait(1, res)
	if req.Status != reqGranted || req.GrantedMode != ModeS {
		t.Errorf("cancelled conversion should revert to its prior grant, got status=%v mode=%s", req.Status, req.GrantedMode)
	}
}

func TestLockManagerCancelWaitRemovesPending(t *testing.T) {
	m := NewLockManager()
	res := NewResourceID(ResourceCollection, "t")

	m.Lock(1, res, ModeX)
	m.Lock(2, res, ModeS)

	status := m.CancelWait(2, res)
	if status != StatusCancelled {
		t.Fatalf("CancelWait = %s, want CANCELLED", status)
	}

	if _, waiting := m.conflictTargetsFor(2, res); waiting {
		t.Error("cancelled pending request should be fully removed")
	}
}

func TestLockManagerCancelWaitAdvancesStatusPastWaiting(t *testing.T) {
	m := NewLockManager()
	res := NewResourceID(ResourceCollection, "t")

	m.Lock(1, res, ModeX)
	_, req := m.Lock(2, res, ModeS)

	m.CancelWait(2, res)

	if req.Status == reqWaiting {
		t.Fatal("CancelWait must move a detached request's Status away from reqWaiting, or isWaiting() keeps reporting true forever")
	}
	if req.isWaiting() {
		t.Error("a cancelled request must report isWaiting() == false")
	}
}

func TestLockManagerUnlockWithoutHoldIsFatal(t *testing.T) {
	m := NewLockManager()
	res := NewResourceID(ResourceCollection, "t")

	defer func() {
		if recover() == nil {
			t.Error("Unlock without a held request should panic via lockerr.Fatal")
		}
	}()
	m.Unlock(1, res)
}

func TestLockManagerModeNoneIsNoOp(t *testing.T) {
	m := NewLockManager()
	res := NewResourceID(ResourceCollection, "t")

	status, req := m.Lock(1, res, ModeNone)
	if status != StatusOK || req != nil {
		t.Errorf("Lock(NONE) = (%s, %v), want (OK, nil)", status, req)
	}
}
