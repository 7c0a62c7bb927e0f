package bus

import (
	"context"
	"fmt"
	"strings"

	"github.com/bonfire-gw/bonfire/internal/protocol"

	"github.com/redis/rueidis"
	"github.com/rs/zerolog/log"
)

// RedisConfig is a config for RedisBus.
type RedisConfig struct {
	Client     rueidis.Client
	Prefix     string
	BufferSize int
}

// RedisBus is a Bus on top of Redis PUB/SUB. Every subscription holds a
// dedicated Redis connection.
type RedisBus struct {
	client     rueidis.Client
	prefix     string
	bufferSize int
}

// NewRedisBus creates RedisBus using client.
func NewRedisBus(conf RedisConfig) *RedisBus {
	prefix := conf.Prefix
	if prefix == "" {
		prefix = "bonfire"
	}
	return &RedisBus{client: conf.Client, prefix: prefix, bufferSize: conf.BufferSize}
}

func (b *RedisBus) channel(topic string) string {
	return b.prefix + ".topic." + topic
}

func (b *RedisBus) channels(topics []string) []string {
	channels := make([]string, 0, len(topics))
	for _, topic := range topics {
		channels = append(channels, b.channel(topic))
	}
	return channels
}

// Publish publishes event into Redis channel of topic.
func (b *RedisBus) Publish(ctx context.Context, topic string, event protocol.Event) error {
	data, err := encodeEvent(event)
	if err != nil {
		return err
	}
	cmd := b.client.B().Publish().Channel(b.channel(topic)).Message(rueidis.BinaryString(data)).Build()
	return b.client.Do(ctx, cmd).Error()
}

// Subscribe dedicates a Redis connection for topics.
func (b *RedisBus) Subscribe(ctx context.Context, topics []string) (Subscription, error) {
	dc, cancel := b.client.Dedicate()
	sub := &redisSubscription{
		bus:    b,
		dc:     dc,
		cancel: cancel,
		queue:  newQueue(b.bufferSize),
	}
	wait := dc.SetPubSubHooks(rueidis.PubSubHooks{
		OnMessage: sub.handle,
	})
	go func() {
		if err := <-wait; err != nil && !sub.queue.isClosed() {
			log.Warn().Err(err).Msg("redis bus subscription connection lost")
		}
		sub.queue.close()
	}()
	if err := sub.Add(ctx, topics...); err != nil {
		_ = sub.Close()
		return nil, err
	}
	return sub, nil
}

type redisSubscription struct {
	bus    *RedisBus
	dc     rueidis.DedicatedClient
	cancel func()
	queue  *queue
}

func (s *redisSubscription) Deliveries() <-chan Delivery {
	return s.queue.ch
}

func (s *redisSubscription) handle(m rueidis.PubSubMessage) {
	event, err := decodeEvent([]byte(m.Message))
	if err != nil {
		log.Warn().Err(err).Str("channel", m.Channel).Msg("error decoding bus event")
		return
	}
	topic := strings.TrimPrefix(m.Channel, s.bus.prefix+".topic.")
	if !s.queue.push(Delivery{Topic: topic, Event: event}) {
		s.cancel()
	}
}

func (s *redisSubscription) Add(ctx context.Context, topics ...string) error {
	if len(topics) == 0 {
		return nil
	}
	if s.queue.isClosed() {
		return ErrSubscriptionClosed
	}
	cmd := s.dc.B().Subscribe().Channel(s.bus.channels(topics)...).Build()
	if err := s.dc.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("error subscribing: %w", err)
	}
	return nil
}

func (s *redisSubscription) Remove(ctx context.Context, topics ...string) error {
	if len(topics) == 0 {
		return nil
	}
	cmd := s.dc.B().Unsubscribe().Channel(s.bus.channels(topics)...).Build()
	if err := s.dc.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("error unsubscribing: %w", err)
	}
	return nil
}

func (s *redisSubscription) Close() error {
	s.queue.close()
	s.cancel()
	return nil
}
