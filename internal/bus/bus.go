// Package bus fans events published on topics out to interested sessions.
package bus

import (
	"context"
	"errors"
	"sync"

	"github.com/bonfire-gw/bonfire/internal/codec"
	"github.com/bonfire-gw/bonfire/internal/protocol"
)

// DefaultBufferSize is a default number of deliveries buffered per subscription.
const DefaultBufferSize = 256

// ErrSubscriptionClosed returned when operating on a closed Subscription.
var ErrSubscriptionClosed = errors.New("bus: subscription closed")

// Delivery is an event received on a topic.
type Delivery struct {
	Topic string
	Event protocol.Event
}

// Bus publishes events and creates subscriptions.
type Bus interface {
	Publish(ctx context.Context, topic string, event protocol.Event) error
	Subscribe(ctx context.Context, topics []string) (Subscription, error)
}

// Subscription is a re-subscribable stream of deliveries. Events of one
// topic are delivered in publish order. Deliveries channel is closed when
// subscription is closed or its consumer falls behind.
type Subscription interface {
	Deliveries() <-chan Delivery
	Add(ctx context.Context, topics ...string) error
	Remove(ctx context.Context, topics ...string) error
	Close() error
}

// queue is a bounded delivery channel which closes on overflow instead of
// blocking publishers.
type queue struct {
	mu     sync.Mutex
	ch     chan Delivery
	closed bool
}

func newQueue(size int) *queue {
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &queue{ch: make(chan Delivery, size)}
}

// push returns false if queue is closed or has just overflowed.
func (q *queue) push(d Delivery) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	select {
	case q.ch <- d:
		return true
	default:
		q.closed = true
		close(q.ch)
		return false
	}
}

func (q *queue) isClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

func (q *queue) close() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.closed = true
	close(q.ch)
	return true
}

// wireCodec serializes events travelling between nodes.
var wireCodec = codec.New(protocol.FormatMsgpack)

func encodeEvent(ev protocol.Event) ([]byte, error) {
	frame, err := wireCodec.EncodeEvent(ev)
	if err != nil {
		return nil, err
	}
	return frame.Payload, nil
}

func decodeEvent(data []byte) (protocol.Event, error) {
	return wireCodec.DecodeEvent(codec.Frame{Kind: codec.FrameBinary, Payload: data})
}
