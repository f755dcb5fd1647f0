package lock

import (
	"time"

	"github.com/chenqi-wds/lockmgr/pkg/lockobs/metrics"
)

// DeadlockResult is the outcome of a DeadlockDetector.Check call.
type DeadlockResult struct {
	// HasCycle reports whether the starting locker participates in a
	// wait-for cycle.
	HasCycle bool
	// Path is the chain of lockers from the starting locker back to
	// itself, present only when HasCycle is true.
	Path []LockerID
}

// DeadlockDetector walks a LockManager's implicit wait-for graph,
// starting from one locker, to decide whether that locker is stuck in a
// cycle. The graph is never materialized: each step reads the relevant
// LockHead under its own partition mutex and releases it again before
// stepping to the next, so the detector never holds two partition
// mutexes at once and never blocks on a request's condition variable.
type DeadlockDetector struct {
	manager *LockManager
	starter *Locker
}

// NewDeadlockDetector builds a detector that will check whether starter
// is stuck in a cycle within manager.
func NewDeadlockDetector(manager *LockManager, starter *Locker) *DeadlockDetector {
	return &DeadlockDetector{manager: manager, starter: starter}
}

// waitEdge is one (locker, resource) pair the detector still needs to
// expand: locker is waiting on resource, and we haven't yet enumerated
// who it's waiting for.
type waitEdge struct {
	locker   LockerID
	resource ResourceID
}

// Check runs the algorithm once and returns its result. It does not
// retry or re-check; the caller decides whether to re-run after the
// graph has had a chance to change.
func (d *DeadlockDetector) Check() DeadlockResult {
	start := time.Now()
	defer func() {
		metrics.DetectorScanSeconds.Observe(time.Since(start).Seconds())
	}()

	startWaits := d.waitsOf(d.starter.ID)
	if len(startWaits) == 0 {
		return DeadlockResult{HasCycle: false}
	}

	visited := map[LockerID]bool{d.starter.ID: true}
	parent := map[LockerID]LockerID{}

	var stack []waitEdge
	for _, w := range startWaits {
		stack = append(stack, w)
	}

	for len(stack) > 0 {
		edge := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		targets, ok := d.manager.conflictTargetsFor(edge.locker, edge.resource)
		if !ok {
			continue
		}

		for _, target := range targets {
			if target == d.starter.ID {
				metrics.DeadlocksDetected.Inc()
				return DeadlockResult{HasCycle: true, Path: buildPath(parent, edge.locker, d.starter.ID)}
			}
			if visited[target] {
				continue
			}
			visited[target] = true
			parent[target] = edge.locker
			for _, w := range d.waitsOf(target) {
				stack = append(stack, w)
			}
		}
	}

	return DeadlockResult{HasCycle: false}
}

// waitsOf returns a (locker, resource) wait edge for every resource
// locker is currently waiting on across the whole manager, by scanning
// each partition in turn (one mutex held at a time).
func (d *DeadlockDetector) waitsOf(locker LockerID) []waitEdge {
	var edges []waitEdge
	d.manager.forEachPartition(func(p *partition) {
		for resource, head := range p.heads {
			if req := head.findRequest(locker); req != nil && req.isWaiting() {
				edges = append(edges, waitEdge{locker: locker, resource: resource})
			}
		}
	})
	return edges
}

// buildPath reconstructs the cycle start -> ... -> last -> start by
// walking the back-pointers recorded while discovering last from
// start, then reversing them into traversal order.
func buildPath(parent map[LockerID]LockerID, last, start LockerID) []LockerID {
	chain := []LockerID{last}
	cur := last
	for cur != start {
		prev, ok := parent[cur]
		if !ok {
			break
		}
		chain = append(chain, prev)
		cur = prev
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return append(chain, start)
}
