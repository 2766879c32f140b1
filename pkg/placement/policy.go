package placement

import (
	"ledgerhub/pkg/cluster"
)

// Ensemble is the ordered replica set for one stream segment.
// No address appears twice.
type Ensemble struct {
	Nodes       []cluster.NodeAddress
	WriteQuorum int
	AckQuorum   int
}

// Size returns the ensemble length.
func (e Ensemble) Size() int { return len(e.Nodes) }

// Policy selects, replaces and reorders storage node replicas under
// live membership changes. Implementations must be safe for concurrent
// use; every selection takes a single atomic snapshot of the tracked
// node set.
//
// RandomPolicy is the default strategy. Topology-aware strategies
// (rack/region placement) plug in behind the same contract at
// construction time.
type Policy interface {
	// NewEnsemble selects ensembleSize distinct nodes from the current
	// writable set minus exclude, in randomized order. Returns
	// ErrNotEnoughReplicas when fewer eligible nodes exist.
	NewEnsemble(ensembleSize, writeQuorum, ackQuorum int, exclude cluster.NodeSet) (Ensemble, error)

	// ReplaceNode picks a single replacement for toReplace, excluding
	// all current ensemble members plus exclude.
	ReplaceNode(ensemble Ensemble, toReplace cluster.NodeAddress, exclude cluster.NodeSet) (cluster.NodeAddress, error)

	// OnClusterChanged swaps the tracked node set for writable and
	// returns the nodes that were previously known but are now in
	// neither set. Read-only nodes are never reported dead; graceful
	// decommission goes through read-only mode.
	OnClusterChanged(writable, readOnly cluster.NodeSet) cluster.NodeSet

	// ReorderReadSequence produces the order in which replica slots
	// should be tried for a normal entry read. The result is always a
	// permutation of the input order.
	ReorderReadSequence(ensemble Ensemble, writeSet []int, history *FailureHistory) []int

	// ReorderReadLACSequence is the variant for last-add-confirmed
	// reads, which must probe every replica: any ensemble index missing
	// from writeSet is appended so the result covers the full ensemble.
	ReorderReadLACSequence(ensemble Ensemble, writeSet []int, history *FailureHistory) []int

	// Uninitialize releases any resources held by the policy.
	Uninitialize()
}
