package gateway

import (
	"context"
	"fmt"

	"github.com/bonfire-gw/bonfire/internal/bus"
	"github.com/bonfire-gw/bonfire/internal/cache"
	"github.com/bonfire-gw/bonfire/internal/metrics"
)

// runOutbound forwards bus events to connection and follows subscription
// changes until cancelled.
func (s *session) runOutbound(ctx context.Context, cancel <-chan struct{}, cancelInbound chan<- struct{}, reload <-chan struct{}) {
	defer notify(cancelInbound)

	var sub bus.Subscription
	defer func() {
		if sub != nil {
			_ = sub.Close()
		}
	}()
	if err := s.recompute(ctx, &sub); err != nil {
		s.log.Error().Err(err).Msg("error subscribing to events")
		return
	}

	for {
		select {
		case <-cancel:
			return
		case <-ctx.Done():
			return
		case <-reload:
			if err := s.recompute(ctx, &sub); err != nil {
				s.log.Error().Err(err).Msg("error updating subscriptions")
				return
			}
		case d, ok := <-sub.Deliveries():
			if !ok {
				s.log.Warn().Msg("event subscription closed, client is too slow")
				return
			}
			if !s.state.isSubscribed(d.Topic) {
				continue
			}
			changed := s.cache.Apply(d.Event)
			if err := s.sink.Send(d.Event); err != nil {
				s.logWriteError(err)
				return
			}
			if changed {
				if err := s.recompute(ctx, &sub); err != nil {
					s.log.Error().Err(err).Msg("error updating subscriptions")
					return
				}
			}
		}
	}
}

// recompute brings bus subscription in line with the session cache and
// tracked servers. A Reset replaces subscription, a Delta is applied in place.
func (s *session) recompute(ctx context.Context, sub *bus.Subscription) error {
	subscriptions := s.cache.Subscriptions()
	s.cache.Refresh(s.state.trackedServers())
	change := subscriptions.Drain()
	switch change.Kind {
	case cache.ChangeReset:
		topics := subscriptions.Topics()
		if *sub != nil {
			_ = (*sub).Close()
			*sub = nil
		}
		s.state.setSubscribed(topics)
		newSub, err := s.gw.bus.Subscribe(ctx, topics)
		if err != nil {
			return fmt.Errorf("subscribe: %w", err)
		}
		*sub = newSub
		s.log.Debug().Int("topics", len(topics)).Msg("subscribed to events")
	case cache.ChangeDelta:
		s.state.applyChange(change.Add, change.Remove)
		if err := (*sub).Add(ctx, change.Add...); err != nil {
			return fmt.Errorf("add topics: %w", err)
		}
		if err := (*sub).Remove(ctx, change.Remove...); err != nil {
			return fmt.Errorf("remove topics: %w", err)
		}
		s.log.Debug().Strs("add", change.Add).Strs("remove", change.Remove).Msg("subscriptions changed")
	default:
		return nil
	}
	metrics.IncSubscriptionChange(change.Kind.String())
	return nil
}
