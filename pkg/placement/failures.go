package placement

import (
	"time"

	"github.com/zhangyunhao116/skipmap"

	"ledgerhub/pkg/cluster"
)

// FailureHistory tracks the last observed failure per storage node.
// Failure-aware read reordering consults it to deprioritize recently
// failed replicas. Entries older than the expiry window are lazily
// evicted, keeping the structure bounded without a sweeper goroutine.
type FailureHistory struct {
	expiry time.Duration
	now    func() time.Time
	m      *skipmap.FuncMap[cluster.NodeAddress, time.Time]
}

func NewFailureHistory(expiry time.Duration) *FailureHistory {
	return &FailureHistory{
		expiry: expiry,
		now:    time.Now,
		m: skipmap.NewFunc[cluster.NodeAddress, time.Time](func(a, b cluster.NodeAddress) bool {
			return a < b
		}),
	}
}

// RecordFailure notes a failure observation for the node.
func (h *FailureHistory) RecordFailure(node cluster.NodeAddress) {
	h.m.Store(node, h.now())
}

// LastFailure returns the last failure time within the expiry window.
// An expired entry is removed and reported as absent.
func (h *FailureHistory) LastFailure(node cluster.NodeAddress) (time.Time, bool) {
	ts, ok := h.m.Load(node)
	if !ok {
		return time.Time{}, false
	}
	if h.now().Sub(ts) > h.expiry {
		h.m.Delete(node)
		return time.Time{}, false
	}
	return ts, true
}

// Len counts live (unexpired) entries, evicting stale ones on the way.
func (h *FailureHistory) Len() int {
	cutoff := h.now().Add(-h.expiry)
	n := 0
	h.m.Range(func(node cluster.NodeAddress, ts time.Time) bool {
		if ts.Before(cutoff) {
			h.m.Delete(node)
			return true
		}
		n++
		return true
	})
	return n
}
