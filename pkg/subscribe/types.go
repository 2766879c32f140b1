package subscribe

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"ledgerhub/pkg/cluster"
)

var (
	// ErrNotSubscribed is returned by the delivery layer when asked to
	// resume a subscriber it does not know. Internal anomaly of the
	// reconnect path, never surfaced to the original subscribe caller.
	ErrNotSubscribed = errors.New("ledgerhub: client not subscribed")
	// ErrDeliveryAlreadyStarted is returned by the delivery layer when
	// delivery is already running for the subscriber.
	ErrDeliveryAlreadyStarted = errors.New("ledgerhub: delivery already started")
	// ErrManagerClosed is returned for operations on a permanently
	// closed channel manager.
	ErrManagerClosed = errors.New("ledgerhub: channel manager closed")
)

// TopicSubscriber keys one logical subscription.
type TopicSubscriber struct {
	Topic        string
	SubscriberID string
}

func (s TopicSubscriber) String() string {
	return fmt.Sprintf("%s/%s", s.Topic, s.SubscriberID)
}

// NewTopicSubscriber creates a subscription key with a generated
// subscriber ID.
func NewTopicSubscriber(topic string) TopicSubscriber {
	return TopicSubscriber{Topic: topic, SubscriberID: uuid.NewString()}
}

// ChannelState is the per-subscriber connection state.
type ChannelState int

const (
	StateConnected ChannelState = iota
	StateDisconnected
	StateReconnecting
)

func (s ChannelState) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// ReconnectState is the externally visible snapshot of one
// subscription's reconnect machine.
type ReconnectState struct {
	State             ChannelState
	AttemptCount      int
	WasDeliveryActive bool
}

// OwnerResolver resolves the hub currently owning a topic. Satisfied by
// *ownership.Manager; reconnect only ever queries, it never claims.
type OwnerResolver interface {
	GetOwner(ctx context.Context, topic string, shouldClaim bool) (cluster.NodeAddress, error)
}

// Dialer issues a fresh subscribe request against a hub. It is the
// boundary to the wire protocol, which is outside this core.
type Dialer interface {
	Subscribe(ctx context.Context, hub cluster.NodeAddress, sub TopicSubscriber) error
}

// Delivery is the boundary to the delivery subsystem.
type Delivery interface {
	ResumeDelivery(sub TopicSubscriber) error
	StopDelivery(sub TopicSubscriber) error
}
