package placement

import "ledgerhub/pkg/cluster"

// FailureAwarePolicy selects nodes like RandomPolicy but consults the
// failure history when ordering reads: replicas without a recent
// failure are tried before recently failed ones. The reorder is a
// stable partition, so the result stays a permutation of the input and
// relative order within each group is preserved.
type FailureAwarePolicy struct {
	RandomPolicy
}

var _ Policy = (*FailureAwarePolicy)(nil)

func NewFailureAwarePolicy() *FailureAwarePolicy {
	p := &FailureAwarePolicy{}
	p.knownNodes = cluster.NewNodeSet()
	return p
}

func (p *FailureAwarePolicy) ReorderReadSequence(ensemble Ensemble, writeSet []int, history *FailureHistory) []int {
	if history == nil {
		return writeSet
	}
	healthy := make([]int, 0, len(writeSet))
	var failed []int
	for _, idx := range writeSet {
		if idx < 0 || idx >= ensemble.Size() {
			healthy = append(healthy, idx)
			continue
		}
		if _, recent := history.LastFailure(ensemble.Nodes[idx]); recent {
			failed = append(failed, idx)
		} else {
			healthy = append(healthy, idx)
		}
	}
	return append(healthy, failed...)
}

func (p *FailureAwarePolicy) ReorderReadLACSequence(ensemble Ensemble, writeSet []int, history *FailureHistory) []int {
	reordered := p.ReorderReadSequence(ensemble, writeSet, history)
	return p.RandomPolicy.ReorderReadLACSequence(ensemble, reordered, history)
}
