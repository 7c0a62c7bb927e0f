package bus

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/bonfire-gw/bonfire/internal/protocol"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// NatsConfig is a config for NatsBus.
type NatsConfig struct {
	URL        string
	Prefix     string
	BufferSize int
}

// NatsBus is a Bus on top of Nats messaging system. It provides at most once
// delivery.
type NatsBus struct {
	nc         *nats.Conn
	prefix     string
	bufferSize int
}

// NewNatsBus connects to Nats.
func NewNatsBus(conf NatsConfig) (*NatsBus, error) {
	url := conf.URL
	if url == "" {
		url = nats.DefaultURL
	}
	nc, err := nats.Connect(url, nats.ReconnectBufSize(-1), nats.MaxReconnects(-1))
	if err != nil {
		return nil, fmt.Errorf("error connecting to nats: %w", err)
	}
	log.Info().Str("url", url).Msg("nats bus connected")
	return &NatsBus{nc: nc, prefix: conf.Prefix, bufferSize: conf.BufferSize}, nil
}

func (b *NatsBus) subject(topic string) string {
	if b.prefix == "" {
		return "bonfire.topic." + topic
	}
	return b.prefix + ".topic." + topic
}

func (b *NatsBus) topic(subject string) string {
	idx := strings.Index(subject, ".topic.")
	if idx < 0 {
		return subject
	}
	return subject[idx+len(".topic."):]
}

// Publish sends event to Nats subject of topic.
func (b *NatsBus) Publish(_ context.Context, topic string, event protocol.Event) error {
	data, err := encodeEvent(event)
	if err != nil {
		return err
	}
	return b.nc.Publish(b.subject(topic), data)
}

// Subscribe creates Nats subscriptions for topics.
func (b *NatsBus) Subscribe(ctx context.Context, topics []string) (Subscription, error) {
	sub := &natsSubscription{
		bus:   b,
		queue: newQueue(b.bufferSize),
		subs:  map[string]*nats.Subscription{},
	}
	if err := sub.Add(ctx, topics...); err != nil {
		_ = sub.Close()
		return nil, err
	}
	return sub, nil
}

// Ping makes round trip to Nats server.
func (b *NatsBus) Ping(ctx context.Context) error {
	return b.nc.FlushWithContext(ctx)
}

// Close drains Nats connection.
func (b *NatsBus) Close() error {
	return b.nc.Drain()
}

type natsSubscription struct {
	bus   *NatsBus
	queue *queue

	mu   sync.Mutex
	subs map[string]*nats.Subscription
}

func (s *natsSubscription) Deliveries() <-chan Delivery {
	return s.queue.ch
}

func (s *natsSubscription) handle(m *nats.Msg) {
	event, err := decodeEvent(m.Data)
	if err != nil {
		log.Warn().Err(err).Str("subject", m.Subject).Msg("error decoding bus event")
		return
	}
	if !s.queue.push(Delivery{Topic: s.bus.topic(m.Subject), Event: event}) {
		s.unsubscribeAll()
	}
}

func (s *natsSubscription) Add(_ context.Context, topics ...string) error {
	if s.queue.isClosed() {
		return ErrSubscriptionClosed
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, topic := range topics {
		if _, ok := s.subs[topic]; ok {
			continue
		}
		ns, err := s.bus.nc.Subscribe(s.bus.subject(topic), s.handle)
		if err != nil {
			return fmt.Errorf("error subscribing to %s: %w", topic, err)
		}
		s.subs[topic] = ns
	}
	return nil
}

func (s *natsSubscription) Remove(_ context.Context, topics ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, topic := range topics {
		ns, ok := s.subs[topic]
		if !ok {
			continue
		}
		delete(s.subs, topic)
		if err := ns.Unsubscribe(); err != nil {
			return fmt.Errorf("error unsubscribing from %s: %w", topic, err)
		}
	}
	return nil
}

func (s *natsSubscription) unsubscribeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for topic, ns := range s.subs {
		_ = ns.Unsubscribe()
		delete(s.subs, topic)
	}
}

func (s *natsSubscription) Close() error {
	s.unsubscribeAll()
	s.queue.close()
	return nil
}
