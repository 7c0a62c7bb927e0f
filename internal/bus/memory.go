package bus

import (
	"context"
	"sync"

	"github.com/bonfire-gw/bonfire/internal/protocol"
)

// MemoryConfig is a config for MemoryBus.
type MemoryConfig struct {
	// BufferSize is a number of deliveries buffered per subscription.
	BufferSize int
}

// MemoryBus delivers events inside process memory, so it only works for a
// single gateway node.
type MemoryBus struct {
	mu         sync.RWMutex
	topics     map[string]map[*memorySubscription]struct{}
	bufferSize int
}

// NewMemoryBus creates MemoryBus.
func NewMemoryBus(conf MemoryConfig) *MemoryBus {
	return &MemoryBus{
		topics:     map[string]map[*memorySubscription]struct{}{},
		bufferSize: conf.BufferSize,
	}
}

// Publish delivers event to every subscription of topic.
func (b *MemoryBus) Publish(_ context.Context, topic string, event protocol.Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.topics[topic] {
		sub.queue.push(Delivery{Topic: topic, Event: event})
	}
	return nil
}

// NumSubscribers returns number of subscriptions for topic.
func (b *MemoryBus) NumSubscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[topic])
}

// Subscribe creates subscription for topics.
func (b *MemoryBus) Subscribe(ctx context.Context, topics []string) (Subscription, error) {
	sub := &memorySubscription{
		bus:    b,
		queue:  newQueue(b.bufferSize),
		topics: map[string]struct{}{},
	}
	if err := sub.Add(ctx, topics...); err != nil {
		return nil, err
	}
	return sub, nil
}

type memorySubscription struct {
	bus    *MemoryBus
	queue  *queue
	topics map[string]struct{}
}

func (s *memorySubscription) Deliveries() <-chan Delivery {
	return s.queue.ch
}

func (s *memorySubscription) Add(_ context.Context, topics ...string) error {
	if s.queue.isClosed() {
		return ErrSubscriptionClosed
	}
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	for _, topic := range topics {
		subs, ok := s.bus.topics[topic]
		if !ok {
			subs = map[*memorySubscription]struct{}{}
			s.bus.topics[topic] = subs
		}
		subs[s] = struct{}{}
		s.topics[topic] = struct{}{}
	}
	return nil
}

func (s *memorySubscription) Remove(_ context.Context, topics ...string) error {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	for _, topic := range topics {
		s.bus.detach(s, topic)
	}
	return nil
}

func (s *memorySubscription) Close() error {
	s.bus.mu.Lock()
	for topic := range s.topics {
		s.bus.detach(s, topic)
	}
	s.bus.mu.Unlock()
	s.queue.close()
	return nil
}

// detach must be called with mu held.
func (b *MemoryBus) detach(s *memorySubscription, topic string) {
	delete(s.topics, topic)
	subs, ok := b.topics[topic]
	if !ok {
		return
	}
	delete(subs, s)
	if len(subs) == 0 {
		delete(b.topics, topic)
	}
}
