package cluster

import "testing"

func TestView_ApplySnapshot(t *testing.T) {
	v := NewView()
	v.Apply(
		[]NodeAddress{"bookie1:3181", "bookie2:3181"},
		[]NodeAddress{"bookie3:3181"},
	)

	writable, readOnly := v.Snapshot()
	if len(writable) != 2 || !writable.Contains("bookie1:3181") || !writable.Contains("bookie2:3181") {
		t.Fatalf("unexpected writable set: %v", writable)
	}
	if len(readOnly) != 1 || !readOnly.Contains("bookie3:3181") {
		t.Fatalf("unexpected read-only set: %v", readOnly)
	}

	// Full replacement, not a merge.
	v.Apply([]NodeAddress{"bookie4:3181"}, nil)
	writable, readOnly = v.Snapshot()
	if len(writable) != 1 || !writable.Contains("bookie4:3181") {
		t.Fatalf("snapshot not fully replaced: %v", writable)
	}
	if len(readOnly) != 0 {
		t.Fatalf("read-only set not cleared: %v", readOnly)
	}
}

func TestView_SnapshotIsCopy(t *testing.T) {
	v := NewView()
	v.Apply([]NodeAddress{"bookie1:3181"}, nil)

	writable, _ := v.Snapshot()
	delete(writable, "bookie1:3181")

	if !v.Writable("bookie1:3181") {
		t.Fatal("mutating a snapshot leaked into the view")
	}
}

func TestNodeAddress_Host(t *testing.T) {
	if h := NodeAddress("bookie1:3181").Host(); h != "bookie1" {
		t.Fatalf("expected host bookie1, got %q", h)
	}
	if h := NodeAddress("no-port").Host(); h != "no-port" {
		t.Fatalf("expected fallback to raw address, got %q", h)
	}
}
