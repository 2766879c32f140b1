package ownership

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/zhangyunhao116/skipset"

	"ledgerhub/pkg/cluster"
	"ledgerhub/pkg/metrics"
)

// ChangeListener is notified whenever this hub's owned-topic set
// changes. All registered listeners run in registration order on one
// notification goroutine, so implementations must return quickly,
// never block, and never call back into claim/release.
type ChangeListener interface {
	TopicGained(topic string)
	TopicLost(topic string)
}

type changeEvent struct {
	topic  string
	gained bool
}

// Manager arbitrates single-writer topic ownership for this hub. All
// claims and releases are conditional writes against the coordination
// store; the store, not local locking, decides races.
type Manager struct {
	store CoordStore
	self  cluster.NodeAddress

	owned *skipset.FuncSet[string]

	lmu       sync.RWMutex
	listeners []ChangeListener

	events chan changeEvent
	done   chan struct{}
	wg     sync.WaitGroup
	closed atomic.Bool
}

func NewManager(store CoordStore, self cluster.NodeAddress) *Manager {
	m := &Manager{
		store:  store,
		self:   self,
		owned:  skipset.NewFunc[string](func(a, b string) bool { return a < b }),
		events: make(chan changeEvent, 128),
		done:   make(chan struct{}),
	}
	m.wg.Add(1)
	go m.runNotifier()
	return m
}

// Self returns this hub's advertised address.
func (m *Manager) Self() cluster.NodeAddress { return m.self }

// GetOwner resolves the owner of topic. With shouldClaim set and no
// record present, it attempts to claim ownership for this hub; losing
// the race surfaces ErrOwnershipConflict, after which the caller
// re-reads rather than re-claims.
func (m *Manager) GetOwner(ctx context.Context, topic string, shouldClaim bool) (cluster.NodeAddress, error) {
	rec, err := m.store.GetOwner(ctx, topic)
	if err == nil {
		if rec.Owner == m.self {
			// Re-learn ownership, e.g. after process restart with an
			// ephemeral record still alive.
			m.markOwned(topic)
		}
		return rec.Owner, nil
	}
	if !errors.Is(err, ErrNoRecord) {
		return "", err
	}
	if !shouldClaim {
		return "", ErrNoOwner
	}

	_, err = m.store.CreateOwner(ctx, topic, m.self)
	if err == nil {
		slog.Info("claimed topic", "topic", topic, "hub", m.self)
		m.markOwned(topic)
		return m.self, nil
	}
	if errors.Is(err, ErrRecordExists) {
		metrics.OwnershipConflicts.Inc()
		return "", ErrOwnershipConflict
	}
	return "", err
}

// ReleaseTopic gives up ownership of topic if this hub holds it, and is
// a no-op otherwise. Safe to call redundantly.
func (m *Manager) ReleaseTopic(ctx context.Context, topic string) error {
	if !m.owned.Contains(topic) {
		return nil
	}
	rec, err := m.store.GetOwner(ctx, topic)
	if errors.Is(err, ErrNoRecord) {
		m.markLost(topic)
		return nil
	}
	if err != nil {
		return err
	}
	if rec.Owner != m.self {
		// Record belongs to someone else: we already lost ownership.
		m.markLost(topic)
		return nil
	}

	err = m.store.DeleteOwner(ctx, topic, m.self, rec.Version)
	switch {
	case err == nil, errors.Is(err, ErrNoRecord), errors.Is(err, ErrVersionMismatch):
		m.markLost(topic)
		return nil
	default:
		return err
	}
}

// ReleaseTopics releases up to n owned topics, for load shedding.
// Returns how many were actually released; holding fewer than requested
// is not an error.
func (m *Manager) ReleaseTopics(ctx context.Context, n int) (int, error) {
	if n <= 0 {
		return 0, nil
	}
	var batch []string
	m.owned.Range(func(topic string) bool {
		batch = append(batch, topic)
		return len(batch) < n
	})

	released := 0
	for _, topic := range batch {
		if err := m.ReleaseTopic(ctx, topic); err != nil {
			return released, err
		}
		released++
	}
	return released, nil
}

// AddTopicOwnershipChangeListener registers a listener for gain/loss of
// local ownership. Invocation order is registration order.
func (m *Manager) AddTopicOwnershipChangeListener(l ChangeListener) {
	m.lmu.Lock()
	m.listeners = append(m.listeners, l)
	m.lmu.Unlock()
}

// GetNumTopics returns the number of topics this hub currently owns.
func (m *Manager) GetNumTopics() int {
	return m.owned.Len()
}

// OwnedTopics lists the locally owned topics in sorted order.
func (m *Manager) OwnedTopics() []string {
	var topics []string
	m.owned.Range(func(topic string) bool {
		topics = append(topics, topic)
		return true
	})
	return topics
}

// CheckTopicSubscribedFromRegion reports whether the remote region has
// an active cross-region subscription for topic.
func (m *Manager) CheckTopicSubscribedFromRegion(ctx context.Context, topic, region string) error {
	ok, err := m.store.HasRegion(ctx, topic, region)
	if err != nil {
		return err
	}
	if !ok {
		return ErrRegionNotSubscribed
	}
	return nil
}

// SetTopicSubscribedFromRegion durably records the region subscription.
func (m *Manager) SetTopicSubscribedFromRegion(ctx context.Context, topic, region string) error {
	return m.store.SetRegion(ctx, topic, region)
}

// SetTopicUnsubscribedFromRegion durably clears the region
// subscription.
func (m *Manager) SetTopicUnsubscribedFromRegion(ctx context.Context, topic, region string) error {
	return m.store.ClearRegion(ctx, topic, region)
}

// Stop shuts down the notification path. Pending events may be
// dropped.
func (m *Manager) Stop() {
	if m.closed.CompareAndSwap(false, true) {
		close(m.done)
	}
	m.wg.Wait()
}

func (m *Manager) markOwned(topic string) {
	if m.owned.Add(topic) {
		metrics.OwnedTopics.Set(float64(m.owned.Len()))
		m.notify(changeEvent{topic: topic, gained: true})
	}
}

func (m *Manager) markLost(topic string) {
	if m.owned.Remove(topic) {
		slog.Info("released topic", "topic", topic, "hub", m.self)
		metrics.OwnedTopics.Set(float64(m.owned.Len()))
		m.notify(changeEvent{topic: topic, gained: false})
	}
}

func (m *Manager) notify(ev changeEvent) {
	select {
	case m.events <- ev:
	case <-m.done:
	}
}

// runNotifier is the single delivery goroutine shared by all
// listeners.
func (m *Manager) runNotifier() {
	defer m.wg.Done()
	for {
		select {
		case ev := <-m.events:
			m.lmu.RLock()
			ls := make([]ChangeListener, len(m.listeners))
			copy(ls, m.listeners)
			m.lmu.RUnlock()
			for _, l := range ls {
				if ev.gained {
					l.TopicGained(ev.topic)
				} else {
					l.TopicLost(ev.topic)
				}
			}
		case <-m.done:
			return
		}
	}
}
