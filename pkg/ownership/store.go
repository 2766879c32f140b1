package ownership

import (
	"context"
	"sync"

	"ledgerhub/pkg/cluster"
)

// Record is one durable ownership record. Exactly one live record per
// topic exists at any instant; the store's conditional writes uphold
// that.
type Record struct {
	Topic   string
	Owner   cluster.NodeAddress
	Version int32
}

// CoordStore is the durable conditional-write primitive the arbiter
// runs against. Implementations: ZKStore for clustered deployments,
// MemStore for standalone mode and tests. Every mutation is conditional
// on the store's current state; local locking can never substitute for
// that.
type CoordStore interface {
	// GetOwner returns the current record, or ErrNoRecord.
	GetOwner(ctx context.Context, topic string) (Record, error)
	// CreateOwner creates the record if absent, failing with
	// ErrRecordExists when any record is already present.
	CreateOwner(ctx context.Context, topic string, owner cluster.NodeAddress) (Record, error)
	// DeleteOwner removes the record only if it still carries the given
	// owner and version; ErrNoRecord when absent, ErrVersionMismatch
	// when the record changed underneath.
	DeleteOwner(ctx context.Context, topic string, owner cluster.NodeAddress, version int32) error

	// Cross-region subscription bookkeeping: a durable set keyed by
	// (topic, region).
	SetRegion(ctx context.Context, topic, region string) error
	ClearRegion(ctx context.Context, topic, region string) error
	HasRegion(ctx context.Context, topic, region string) (bool, error)
}

// MemStore is an in-process CoordStore. It backs standalone single-hub
// deployments and unit tests.
type MemStore struct {
	mu      sync.Mutex
	owners  map[string]Record
	regions map[string]map[string]struct{}
	nextVer int32
}

var _ CoordStore = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{
		owners:  make(map[string]Record),
		regions: make(map[string]map[string]struct{}),
	}
}

func (s *MemStore) GetOwner(ctx context.Context, topic string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.owners[topic]
	if !ok {
		return Record{}, ErrNoRecord
	}
	return rec, nil
}

func (s *MemStore) CreateOwner(ctx context.Context, topic string, owner cluster.NodeAddress) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.owners[topic]; ok {
		return Record{}, ErrRecordExists
	}
	s.nextVer++
	rec := Record{Topic: topic, Owner: owner, Version: s.nextVer}
	s.owners[topic] = rec
	return rec, nil
}

func (s *MemStore) DeleteOwner(ctx context.Context, topic string, owner cluster.NodeAddress, version int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.owners[topic]
	if !ok {
		return ErrNoRecord
	}
	if rec.Owner != owner || rec.Version != version {
		return ErrVersionMismatch
	}
	delete(s.owners, topic)
	return nil
}

func (s *MemStore) SetRegion(ctx context.Context, topic, region string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rs, ok := s.regions[topic]
	if !ok {
		rs = make(map[string]struct{})
		s.regions[topic] = rs
	}
	rs[region] = struct{}{}
	return nil
}

func (s *MemStore) ClearRegion(ctx context.Context, topic, region string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rs, ok := s.regions[topic]; ok {
		delete(rs, region)
	}
	return nil
}

func (s *MemStore) HasRegion(ctx context.Context, topic, region string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rs, ok := s.regions[topic]
	if !ok {
		return false, nil
	}
	_, ok = rs[region]
	return ok, nil
}
