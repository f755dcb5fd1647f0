package lock

import "slices"

// LockHead is the per-resource state a LockManager partition keeps: the
// set of requests currently granted, the set held in a weaker mode while
// waiting to strengthen (FIFO), the set of brand-new requests waiting for
// their first grant (FIFO), and the aggregate mode bitsets derived from
// those lists.
//
// LockHead has no mutex of its own — every method here assumes the
// caller already holds the owning partition's mutex.
type LockHead struct {
	Resource ResourceID

	grantedList    []*LockRequest
	conversionList []*LockRequest
	pendingList    []*LockRequest

	grantedModes  ModeSet
	conflictModes ModeSet
}

func newLockHead(resID ResourceID) *LockHead {
	return &LockHead{Resource: resID}
}

// isEmpty reports whether this LockHead has no outstanding requests at
// all, and may be dropped from its partition's map.
func (h *LockHead) isEmpty() bool {
	return len(h.grantedList) == 0 && len(h.conversionList) == 0 && len(h.pendingList) == 0
}

// findRequest returns the request this locker already holds or is waiting
// on for this resource, if any.
func (h *LockHead) findRequest(locker LockerID) *LockRequest {
	find := func(list []*LockRequest) *LockRequest {
		for _, r := range list {
			if r.Locker == locker {
				return r
			}
		}
		return nil
	}
	if r := find(h.grantedList); r != nil {
		return r
	}
	if r := find(h.conversionList); r != nil {
		return r
	}
	return find(h.pendingList)
}

// placeOnGranted moves req (wherever it currently lives) onto the granted
// list and marks it granted. It does not recompute aggregates; callers
// that mutate multiple requests in one pass should call
// recomputeAggregates once afterward.
func (h *LockHead) placeOnGranted(req *LockRequest) {
	h.removeFromCurrentList(req)
	req.Status = reqGranted
	req.GrantedMode = req.RequestedMode
	req.member = onGrantedList
	req.cancelled = false
	h.grantedList = append(h.grantedList, req)
}

// placeOnPending appends a brand-new request to the pending list.
func (h *LockHead) placeOnPending(req *LockRequest) {
	req.Status = reqWaiting
	req.member = onPendingList
	req.cancelled = false
	h.pendingList = append(h.pendingList, req)
}

// placeOnConversion moves an already-granted request to the conversion
// list because it now wants a stronger mode.
func (h *LockHead) placeOnConversion(req *LockRequest, newMode Mode) {
	h.removeFromCurrentList(req)
	req.RequestedMode = newMode
	req.Status = reqConverting
	req.member = onConversionList
	req.cancelled = false
	h.conversionList = append(h.conversionList, req)
}

// removeRequest removes req from whichever list holds it, wherever it is,
// and recomputes aggregates.
func (h *LockHead) removeRequest(req *LockRequest) {
	h.removeFromCurrentList(req)
	req.member = onNoList
	h.recomputeAggregates()
}

func (h *LockHead) removeFromCurrentList(req *LockRequest) {
	switch req.member {
	case onGrantedList:
		h.grantedList = slices.DeleteFunc(h.grantedList, func(r *LockRequest) bool { return r == req })
	case onConversionList:
		h.conversionList = slices.DeleteFunc(h.conversionList, func(r *LockRequest) bool { return r == req })
	case onPendingList:
		h.pendingList = slices.DeleteFunc(h.pendingList, func(r *LockRequest) bool { return r == req })
	}
}

// otherGrantedModes returns the aggregate of modes currently held by
// everyone but excluding: both the granted list and the conversion
// list contribute, since a request on the conversion list still holds
// its prior GrantedMode while it waits to strengthen.
func (h *LockHead) otherGrantedModes(excluding LockerID) ModeSet {
	var set ModeSet
	for _, r := range h.grantedList {
		if r.Locker == excluding {
			continue
		}
		set = set.with(r.GrantedMode)
	}
	for _, r := range h.conversionList {
		if r.Locker == excluding {
			continue
		}
		set = set.with(r.GrantedMode)
	}
	return set
}

// recomputeAggregates rebuilds grantedModes (OR of every mode currently
// held, by the granted list and by the conversion list's still-held
// prior grants) and conflictModes (OR of every mode blocked by a
// waiting conversion or pending request) from scratch. Called after any
// structural change to the three lists.
func (h *LockHead) recomputeAggregates() {
	var granted ModeSet
	for _, r := range h.grantedList {
		granted = granted.with(r.GrantedMode)
	}
	for _, r := range h.conversionList {
		granted = granted.with(r.GrantedMode)
	}
	h.grantedModes = granted

	var conflict ModeSet
	for _, r := range h.conversionList {
		conflict = conflict.with(r.RequestedMode)
	}
	for _, r := range h.pendingList {
		conflict = conflict.with(r.RequestedMode)
	}
	h.conflictModes = conflict
}

// grantScanResult carries the requests that a runGrantScan pass promoted
// to GRANTED, so the caller can wake their parked goroutines and record
// metrics after releasing nothing it shouldn't.
type grantScanResult struct {
	promoted []*LockRequest
}

// runGrantScan implements spec.md §4.C's grant policy: conversions first,
// strict FIFO within each list, stop at the first request in a list that
// cannot yet be granted. Conversions take priority over brand-new
// requests so an upgrade never starves behind a stream of new readers.
func (h *LockHead) runGrantScan() grantScanResult {
	var result grantScanResult

	for len(h.conversionList) > 0 {
		req := h.conversionList[0]
		others := h.otherGrantedModes(req.Locker)
		if !CompatibleWithSet(others, req.RequestedMode) {
			break
		}
		h.placeOnGranted(req)
		h.recomputeAggregates()
		result.promoted = append(result.promoted, req)
	}

	if len(h.conversionList) == 0 {
		for len(h.pendingList) > 0 {
			req := h.pendingList[0]
			if !CompatibleWithSet(h.grantedModes, req.RequestedMode) {
				break
			}
			h.placeOnGranted(req)
			h.recomputeAggregates()
			result.promoted = append(result.promoted, req)
		}
	}

	return result
}

// conflictTargets enumerates the lockers that req is waiting for: every
// granted-list or conversion-list holder whose currently-held mode
// conflicts with req's requested mode (a conversion request still holds
// its prior grant while it waits to strengthen), plus everyone queued
// strictly ahead of req in whichever of the conversion/pending lists
// req sits in, if their requested mode conflicts with req's — the FIFO
// fairness rule that stops a later request from being granted out of
// turn just because it happens to be compatible with what's held today.
func (h *LockHead) conflictTargets(req *LockRequest) []LockerID {
	var targets []LockerID
	seen := map[LockerID]bool{}
	add := func(id LockerID) {
		if id != req.Locker && !seen[id] {
			seen[id] = true
			targets = append(targets, id)
		}
	}

	for _, r := range h.grantedList {
		if r.Locker != req.Locker && Conflicts(r.GrantedMode, req.RequestedMode) {
			add(r.Locker)
		}
	}
	for _, r := range h.conversionList {
		if r.Locker != req.Locker && Conflicts(r.GrantedMode, req.RequestedMode) {
			add(r.Locker)
		}
	}

	var queue []*LockRequest
	switch req.member {
	case onConversionList:
		queue = h.conversionList
	case onPendingList:
		queue = h.pendingList
	}
	for _, ahead := range queue {
		if ahead == req {
			break
		}
		if Conflicts(ahead.RequestedMode, req.RequestedMode) {
			add(ahead.Locker)
		}
	}

	return targets
}
