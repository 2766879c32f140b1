package placement

import (
	"errors"
	"fmt"
	"testing"

	"ledgerhub/pkg/cluster"
)

func makeNodes(n int) []cluster.NodeAddress {
	nodes := make([]cluster.NodeAddress, 0, n)
	for i := 1; i <= n; i++ {
		nodes = append(nodes, cluster.NodeAddress(fmt.Sprintf("bookie%d:3181", i)))
	}
	return nodes
}

func makePolicy(n int) (*RandomPolicy, []cluster.NodeAddress) {
	p := NewRandomPolicy()
	nodes := makeNodes(n)
	p.OnClusterChanged(cluster.NewNodeSet(nodes...), cluster.NewNodeSet())
	return p, nodes
}

func TestNewEnsemble_DistinctAndEligible(t *testing.T) {
	p, nodes := makePolicy(10)
	exclude := cluster.NewNodeSet(nodes[0], nodes[1])

	for i := 0; i < 50; i++ {
		e, err := p.NewEnsemble(5, 3, 2, exclude)
		if err != nil {
			t.Fatalf("NewEnsemble failed: %v", err)
		}
		if e.Size() != 5 {
			t.Fatalf("expected 5 nodes, got %d", e.Size())
		}
		seen := cluster.NewNodeSet()
		writable := cluster.NewNodeSet(nodes...)
		for _, n := range e.Nodes {
			if seen.Contains(n) {
				t.Fatalf("duplicate node %s in ensemble", n)
			}
			seen[n] = struct{}{}
			if !writable.Contains(n) {
				t.Fatalf("node %s not in writable set", n)
			}
			if exclude.Contains(n) {
				t.Fatalf("excluded node %s selected", n)
			}
		}
	}
}

func TestNewEnsemble_NotEnoughReplicas(t *testing.T) {
	p, nodes := makePolicy(3)

	_, err := p.NewEnsemble(4, 2, 2, cluster.NewNodeSet())
	if !errors.Is(err, ErrNotEnoughReplicas) {
		t.Fatalf("expected ErrNotEnoughReplicas, got %v", err)
	}

	// Exclusions shrink the eligible set below the request.
	_, err = p.NewEnsemble(3, 2, 2, cluster.NewNodeSet(nodes[0]))
	if !errors.Is(err, ErrNotEnoughReplicas) {
		t.Fatalf("expected ErrNotEnoughReplicas with exclusion, got %v", err)
	}
}

func TestNewEnsemble_InvalidQuorums(t *testing.T) {
	p, _ := makePolicy(5)

	if _, err := p.NewEnsemble(0, 0, 0, cluster.NewNodeSet()); !errors.Is(err, ErrInvalidQuorum) {
		t.Fatalf("expected ErrInvalidQuorum for zero size, got %v", err)
	}
	if _, err := p.NewEnsemble(3, 4, 2, cluster.NewNodeSet()); !errors.Is(err, ErrInvalidQuorum) {
		t.Fatalf("expected ErrInvalidQuorum for write > ensemble, got %v", err)
	}
	if _, err := p.NewEnsemble(3, 2, 3, cluster.NewNodeSet()); !errors.Is(err, ErrInvalidQuorum) {
		t.Fatalf("expected ErrInvalidQuorum for ack > write, got %v", err)
	}
}

func TestNewEnsemble_RandomizedOrder(t *testing.T) {
	p, _ := makePolicy(10)

	first, err := p.NewEnsemble(10, 2, 2, cluster.NewNodeSet())
	if err != nil {
		t.Fatalf("NewEnsemble failed: %v", err)
	}
	// With 10 nodes the odds of 20 identical shuffles are negligible.
	for i := 0; i < 20; i++ {
		e, err := p.NewEnsemble(10, 2, 2, cluster.NewNodeSet())
		if err != nil {
			t.Fatalf("NewEnsemble failed: %v", err)
		}
		for j := range e.Nodes {
			if e.Nodes[j] != first.Nodes[j] {
				return
			}
		}
	}
	t.Fatal("ensemble order never varied across 20 selections")
}

func TestReplaceNode(t *testing.T) {
	p, nodes := makePolicy(4)

	ensemble := Ensemble{Nodes: nodes[:3], WriteQuorum: 2, AckQuorum: 2}
	replacement, err := p.ReplaceNode(ensemble, nodes[0], cluster.NewNodeSet())
	if err != nil {
		t.Fatalf("ReplaceNode failed: %v", err)
	}
	if replacement != nodes[3] {
		t.Fatalf("expected %s as only spare, got %s", nodes[3], replacement)
	}

	// No spare capacity left once the spare is excluded too.
	_, err = p.ReplaceNode(ensemble, nodes[0], cluster.NewNodeSet(nodes[3]))
	if !errors.Is(err, ErrNotEnoughReplicas) {
		t.Fatalf("expected ErrNotEnoughReplicas, got %v", err)
	}
}

func TestOnClusterChanged_ReportsDeadOnce(t *testing.T) {
	p, nodes := makePolicy(3)

	// Drop nodes[2] entirely.
	w := cluster.NewNodeSet(nodes[0], nodes[1])
	dead := p.OnClusterChanged(w, cluster.NewNodeSet())
	if len(dead) != 1 || !dead.Contains(nodes[2]) {
		t.Fatalf("expected %s dead, got %v", nodes[2], dead)
	}

	// Same snapshot again: nothing newly dead.
	dead = p.OnClusterChanged(w, cluster.NewNodeSet())
	if len(dead) != 0 {
		t.Fatalf("expected no new dead nodes, got %v", dead)
	}
}

func TestOnClusterChanged_ReadOnlyNotDead(t *testing.T) {
	p, nodes := makePolicy(3)

	// nodes[2] moves to read-only: decommissioning, not dead.
	w := cluster.NewNodeSet(nodes[0], nodes[1])
	ro := cluster.NewNodeSet(nodes[2])
	dead := p.OnClusterChanged(w, ro)
	if len(dead) != 0 {
		t.Fatalf("read-only node reported dead: %v", dead)
	}

	// Read-only nodes are not selectable for new ensembles.
	_, err := p.NewEnsemble(3, 2, 2, cluster.NewNodeSet())
	if !errors.Is(err, ErrNotEnoughReplicas) {
		t.Fatalf("expected ErrNotEnoughReplicas, got %v", err)
	}
}

func TestReorderReadSequence_Identity(t *testing.T) {
	p, nodes := makePolicy(3)
	ensemble := Ensemble{Nodes: nodes[:3], WriteQuorum: 2, AckQuorum: 2}

	in := []int{2, 0, 1}
	out := p.ReorderReadSequence(ensemble, in, nil)
	if len(out) != 3 {
		t.Fatalf("expected 3 indices, got %d", len(out))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("expected identity order %v, got %v", in, out)
		}
	}
}

func TestReorderReadLACSequence_FullCoverage(t *testing.T) {
	p, nodes := makePolicy(3)
	ensemble := Ensemble{Nodes: nodes[:3], WriteQuorum: 2, AckQuorum: 2}

	cases := [][]int{
		{1},
		{},
		{2, 0},
		{0, 1, 2},
	}
	for _, in := range cases {
		out := p.ReorderReadLACSequence(ensemble, in, nil)
		if len(out) != 3 {
			t.Fatalf("input %v: expected 3 indices, got %v", in, out)
		}
		// Caller's prefix preserved.
		for i := range in {
			if out[i] != in[i] {
				t.Fatalf("input %v: prefix not preserved in %v", in, out)
			}
		}
		// Every index exactly once.
		seen := make(map[int]bool)
		for _, idx := range out {
			if seen[idx] {
				t.Fatalf("input %v: duplicate index %d in %v", in, idx, out)
			}
			seen[idx] = true
		}
		for i := 0; i < 3; i++ {
			if !seen[i] {
				t.Fatalf("input %v: index %d missing from %v", in, i, out)
			}
		}
	}
}
