package subscribe

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zhangyunhao116/fastrand"

	"ledgerhub/pkg/metrics"
)

type channelEntry struct {
	state             ChannelState
	attempts          int
	deliveryActive    bool
	wasDeliveryActive bool
	timer             *time.Timer
}

// ChannelManager drives the per-subscriber reconnect state machine:
//
//	Connected -> Disconnected -> Reconnecting -> {Connected | retry-scheduled}
//
// Reconnects retry forever with a constant wait until either success,
// explicit unsubscribe, or manager close. There is deliberately no
// attempt cap: delivery continuity is preferred over fast failure. A
// small jitter (up to 10%) is applied to the wait so subscribers
// disconnected by one hub failure do not retry in lockstep.
type ChannelManager struct {
	resolver  OwnerResolver
	dialer    Dialer
	delivery  Delivery
	retryWait time.Duration

	mu   sync.Mutex
	subs map[TopicSubscriber]*channelEntry

	closed atomic.Bool
}

func NewChannelManager(resolver OwnerResolver, dialer Dialer, delivery Delivery, retryWait time.Duration) *ChannelManager {
	return &ChannelManager{
		resolver:  resolver,
		dialer:    dialer,
		delivery:  delivery,
		retryWait: retryWait,
		subs:      make(map[TopicSubscriber]*channelEntry),
	}
}

// Subscribed registers an established subscribe channel.
func (m *ChannelManager) Subscribed(sub TopicSubscriber) error {
	if m.closed.Load() {
		return ErrManagerClosed
	}
	m.mu.Lock()
	m.subs[sub] = &channelEntry{state: StateConnected}
	m.mu.Unlock()
	return nil
}

// DeliveryStarted marks delivery as active for the subscriber, so a
// later disconnect knows to resume it.
func (m *ChannelManager) DeliveryStarted(sub TopicSubscriber) {
	m.mu.Lock()
	if e, ok := m.subs[sub]; ok {
		e.deliveryActive = true
	}
	m.mu.Unlock()
}

// DeliveryStopped marks delivery as inactive for the subscriber.
func (m *ChannelManager) DeliveryStopped(sub TopicSubscriber) {
	m.mu.Lock()
	if e, ok := m.subs[sub]; ok {
		e.deliveryActive = false
	}
	m.mu.Unlock()
}

// ChannelDisconnected records a dropped subscribe channel and kicks off
// reconnection. Whether delivery was active at disconnect time is
// remembered so it can be resumed after the channel is re-established.
func (m *ChannelManager) ChannelDisconnected(sub TopicSubscriber) {
	m.mu.Lock()
	e, ok := m.subs[sub]
	if !ok {
		m.mu.Unlock()
		return
	}
	e.state = StateDisconnected
	e.wasDeliveryActive = e.deliveryActive
	e.deliveryActive = false
	e.attempts = 0
	wasActive := e.wasDeliveryActive
	m.mu.Unlock()

	slog.Warn("subscribe channel disconnected", "subscriber", sub.String(),
		"deliveryActive", wasActive)
	go m.attemptReconnect(sub)
}

// Unsubscribe tears down the subscription: delivery is stopped and any
// pending reconnect is abandoned.
func (m *ChannelManager) Unsubscribe(sub TopicSubscriber) error {
	m.mu.Lock()
	e, ok := m.subs[sub]
	if ok {
		if e.timer != nil {
			e.timer.Stop()
		}
		delete(m.subs, sub)
	}
	m.mu.Unlock()
	if !ok {
		return nil
	}
	return m.delivery.StopDelivery(sub)
}

// Close permanently shuts the manager down. In-flight scheduled retries
// become no-ops.
func (m *ChannelManager) Close() {
	if !m.closed.CompareAndSwap(false, true) {
		return
	}
	m.mu.Lock()
	for _, e := range m.subs {
		if e.timer != nil {
			e.timer.Stop()
		}
	}
	m.mu.Unlock()
	slog.Info("subscription channel manager closed")
}

// State returns a snapshot of the subscriber's reconnect machine.
func (m *ChannelManager) State(sub TopicSubscriber) (ReconnectState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.subs[sub]
	if !ok {
		return ReconnectState{}, false
	}
	return ReconnectState{
		State:             e.state,
		AttemptCount:      e.attempts,
		WasDeliveryActive: e.wasDeliveryActive,
	}, true
}

func (m *ChannelManager) attemptReconnect(sub TopicSubscriber) {
	if m.closed.Load() {
		metrics.ReconnectAbandoned.Inc()
		slog.Info("giving up subscribe reconnect, manager closed", "subscriber", sub.String())
		return
	}

	m.mu.Lock()
	e, ok := m.subs[sub]
	if !ok {
		// Unsubscribed while a retry was pending.
		m.mu.Unlock()
		return
	}
	e.state = StateReconnecting
	e.attempts++
	wasActive := e.wasDeliveryActive
	m.mu.Unlock()

	metrics.ReconnectAttempts.Inc()
	ctx := context.Background()

	// Re-resolve the owner each attempt: ownership may have moved while
	// the channel was down. The client side only queries, never claims.
	hub, err := m.resolver.GetOwner(ctx, sub.Topic, false)
	if err != nil {
		slog.Warn("subscribe reconnect: owner lookup failed, scheduling retry",
			"subscriber", sub.String(), "error", err)
		m.scheduleRetry(sub)
		return
	}

	if err := m.dialer.Subscribe(ctx, hub, sub); err != nil {
		slog.Warn("subscribe reconnect failed, scheduling retry",
			"subscriber", sub.String(), "hub", hub, "error", err)
		m.scheduleRetry(sub)
		return
	}

	m.mu.Lock()
	if e, ok := m.subs[sub]; ok {
		e.state = StateConnected
	}
	m.mu.Unlock()
	slog.Info("subscribe channel re-established", "subscriber", sub.String(), "hub", hub)

	if !wasActive {
		return
	}
	// Restart delivery only if it was running when the original channel
	// dropped. Failures here cannot be surfaced to the original
	// subscribe caller, whose call completed long ago.
	switch err := m.delivery.ResumeDelivery(sub); {
	case err == nil:
		m.mu.Lock()
		if e, ok := m.subs[sub]; ok {
			e.deliveryActive = true
			e.wasDeliveryActive = false
		}
		m.mu.Unlock()
	case errors.Is(err, ErrDeliveryAlreadyStarted):
		// Should not happen; delivery is already running, nothing to do.
		slog.Error("unexpected delivery state on reconnect",
			"subscriber", sub.String(), "error", err)
	case errors.Is(err, ErrNotSubscribed):
		slog.Error("subscribe succeeded but delivery resume failed, retrying subscribe",
			"subscriber", sub.String(), "error", err)
		m.scheduleRetry(sub)
	default:
		slog.Error("delivery resume failed, retrying subscribe",
			"subscriber", sub.String(), "error", err)
		m.scheduleRetry(sub)
	}
}

func (m *ChannelManager) scheduleRetry(sub TopicSubscriber) {
	if m.closed.Load() {
		metrics.ReconnectAbandoned.Inc()
		slog.Info("giving up subscribe reconnect, manager closed", "subscriber", sub.String())
		return
	}
	wait := m.retryWait
	if wait > 0 {
		jitter := time.Duration(fastrand.Int63n(int64(wait)/10 + 1))
		wait += jitter
	}
	m.mu.Lock()
	if e, ok := m.subs[sub]; ok {
		e.state = StateDisconnected
		e.timer = time.AfterFunc(wait, func() { m.attemptReconnect(sub) })
	}
	m.mu.Unlock()
}
