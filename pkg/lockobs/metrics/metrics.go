// Package metrics declares the lock manager's Prometheus instrumentation.
// Every metric is registered at package init time via promauto, the way
// the rest of the ecosystem wires counters and histograms into the
// default registry without threading a *prometheus.Registry through
// every constructor.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LockRequests counts every call into LockManager.Lock, labeled by
	// the mode requested and the outcome ("granted" immediately,
	// "waiting" when queued, "failed_to_allocate"). A call from a locker
	// that already has a request on the resource is labeled with the
	// resulting Status instead ("OK" or "WAITING"). ModeNone calls are
	// not counted.
	LockRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lockmgr",
		Name:      "lock_requests_total",
		Help:      "Total lock requests by requested mode and outcome.",
	}, []string{"mode", "outcome"})

	// LockWaitSeconds observes how long a first-time request spent
	// queued between StatusWaiting and being granted by a grant scan.
	// Cancelled waits and conversions are not observed.
	LockWaitSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "lockmgr",
		Name:      "lock_wait_seconds",
		Help:      "Time spent waiting for a lock grant.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"mode"})

	// ActiveLocks is the current number of granted LockRequests, labeled
	// by mode, sampled each time a grant or release changes the count.
	ActiveLocks = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "lockmgr",
		Name:      "active_locks",
		Help:      "Currently granted locks by mode.",
	}, []string{"mode"})

	// DeadlocksDetected counts cycles found by DeadlockDetector.Check.
	DeadlocksDetected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "lockmgr",
		Name:      "deadlocks_detected_total",
		Help:      "Total wait-for cycles detected.",
	})

	// DetectorScanSeconds observes how long a single DeadlockDetector.Check
	// pass took to walk the wait-for graph.
	DetectorScanSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "lockmgr",
		Name:      "detector_scan_seconds",
		Help:      "Time spent walking the wait-for graph in one Check call.",
		Buckets:   prometheus.DefBuckets,
	})
)
