// Package lock implements a multi-granularity resource lock manager and an
// on-demand deadlock detector for an in-process, multi-threaded database.
//
// # Overview
//
// Callers ("lockers") acquire locks on named resources in one of six
// compatibility modes. The [LockManager] arbitrates grants, queues
// waiters in per-resource FIFO order, and — on request — a
// [DeadlockDetector] walks the implicit wait-for graph to decide whether
// a given locker participates in a cycle.
//
// Six modes are supported, from weakest to strongest:
//
//   - [ModeNone]  — no access requested; always a no-op.
//   - [ModeIS]    — intent shared; signals intent to take [ModeS] lower down.
//   - [ModeIX]    — intent exclusive; signals intent to take [ModeX] lower down.
//   - [ModeS]     — shared; compatible with other readers.
//   - [ModeSIX]   — shared + intent exclusive; read the whole resource, write parts of it.
//   - [ModeX]     — exclusive; incompatible with everything else.
//
// A locker holding a weaker mode on a resource may request a stronger one
// (a conversion); [LockManager.Lock] computes the join of the held and
// requested modes and attempts to grant that join. Downgrading is a
// separate, explicit operation ([LockManager.Downgrade]) and is never
// performed implicitly.
//
// # Components
//
// [LockManager] is the single entry point for acquiring locks. Internally
// it partitions resources across a fixed array of buckets, each guarded by
// its own mutex and condition variable, and coordinates:
//
//   - [ResourceID]       — compact, hashable identifier for a lockable resource.
//   - [LockHead]         — per-resource granted/conversion/pending lists and aggregates.
//   - [LockRequest]      — per-(locker, resource) state, recursively counted.
//   - [Locker]           — per-actor handle tracking everything it holds or waits on.
//   - [DeadlockDetector] — on-demand iterative DFS over the wait-for graph.
//
// # Locking discipline
//
// Threads hold at most one partition mutex at a time. The
// [DeadlockDetector] acquires partition mutexes one at a time while
// inspecting a given [LockHead] and never blocks on a request's condition,
// so it cannot self-deadlock and sees a sequence of point-in-time
// snapshots of the wait-for graph.
//
// # Errors
//
// Programmer errors (unlocking a resource the locker does not hold,
// destroying a non-empty [Locker]) are fatal and terminate the process via
// [github.com/chenqi-wds/lockmgr/pkg/lockerr]. Resource exhaustion while
// inserting a request surfaces as [StatusFailedToAllocate]. Contention
// outcomes ([StatusWaiting], [StatusCancelled], a detected cycle) are
// ordinary return values, not errors.
package lock
