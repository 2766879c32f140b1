package placement

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/zhangyunhao116/fastrand"

	"ledgerhub/pkg/cluster"
	"ledgerhub/pkg/metrics"
)

// RandomPolicy picks nodes uniformly at random among eligible
// candidates. Shuffling spreads ensembles evenly across clients and
// avoids hot-node bias. It ignores failure history for normal reads.
type RandomPolicy struct {
	mu         sync.Mutex
	knownNodes cluster.NodeSet
}

var _ Policy = (*RandomPolicy)(nil)

func NewRandomPolicy() *RandomPolicy {
	return &RandomPolicy{knownNodes: cluster.NewNodeSet()}
}

func (p *RandomPolicy) NewEnsemble(ensembleSize, writeQuorum, ackQuorum int, exclude cluster.NodeSet) (Ensemble, error) {
	if ensembleSize <= 0 {
		return Ensemble{}, fmt.Errorf("%w: ensemble size %d", ErrInvalidQuorum, ensembleSize)
	}
	if writeQuorum > ensembleSize || ackQuorum > writeQuorum {
		return Ensemble{}, fmt.Errorf("%w: ensemble=%d write=%d ack=%d",
			ErrInvalidQuorum, ensembleSize, writeQuorum, ackQuorum)
	}

	// Single snapshot of the node set; shuffle and filter happen
	// outside the lock.
	p.mu.Lock()
	candidates := make([]cluster.NodeAddress, 0, len(p.knownNodes))
	for n := range p.knownNodes {
		candidates = append(candidates, n)
	}
	p.mu.Unlock()

	fastrand.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})

	picked := make([]cluster.NodeAddress, 0, ensembleSize)
	for _, n := range candidates {
		if exclude.Contains(n) {
			continue
		}
		picked = append(picked, n)
		if len(picked) == ensembleSize {
			metrics.EnsemblesCreated.Inc()
			return Ensemble{Nodes: picked, WriteQuorum: writeQuorum, AckQuorum: ackQuorum}, nil
		}
	}
	metrics.PlacementFailures.Inc()
	return Ensemble{}, fmt.Errorf("%w: need %d, have %d eligible",
		ErrNotEnoughReplicas, ensembleSize, len(picked))
}

func (p *RandomPolicy) ReplaceNode(ensemble Ensemble, toReplace cluster.NodeAddress, exclude cluster.NodeSet) (cluster.NodeAddress, error) {
	full := exclude.Clone()
	for _, n := range ensemble.Nodes {
		full[n] = struct{}{}
	}
	full[toReplace] = struct{}{}

	one, err := p.NewEnsemble(1, 1, 1, full)
	if err != nil {
		return "", err
	}
	return one.Nodes[0], nil
}

func (p *RandomPolicy) OnClusterChanged(writable, readOnly cluster.NodeSet) cluster.NodeSet {
	p.mu.Lock()
	dead := cluster.NewNodeSet()
	for n := range p.knownNodes {
		if !writable.Contains(n) && !readOnly.Contains(n) {
			dead[n] = struct{}{}
		}
	}
	p.knownNodes = writable.Clone()
	p.mu.Unlock()

	if len(dead) > 0 {
		slog.Info("cluster changed, nodes lost", "dead", len(dead), "writable", len(writable))
	}
	return dead
}

// ReorderReadSequence is the identity for the random policy: replicas
// are tried in ensemble order.
func (p *RandomPolicy) ReorderReadSequence(ensemble Ensemble, writeSet []int, history *FailureHistory) []int {
	return writeSet
}

// ReorderReadLACSequence keeps the caller's order and appends every
// ensemble index it is missing. LAC recovery must probe the full
// ensemble, not just a quorum.
func (p *RandomPolicy) ReorderReadLACSequence(ensemble Ensemble, writeSet []int, history *FailureHistory) []int {
	out := make([]int, len(writeSet), ensemble.Size())
	copy(out, writeSet)
	if len(out) >= ensemble.Size() {
		return out
	}
	seen := make(map[int]struct{}, len(out))
	for _, idx := range out {
		seen[idx] = struct{}{}
	}
	for i := 0; i < ensemble.Size(); i++ {
		if _, ok := seen[i]; !ok {
			out = append(out, i)
		}
	}
	return out
}

func (p *RandomPolicy) Uninitialize() {}
