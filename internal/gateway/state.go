package gateway

import (
	"sync"

	"github.com/bonfire-gw/bonfire/internal/protocol"

	lru "github.com/hashicorp/golang-lru/v2"
)

// workerState is shared by inbound and outbound loops of one session.
type workerState struct {
	userID string

	mu         sync.RWMutex
	tracked    *lru.Cache[string, struct{}]
	subscribed map[string]struct{}
}

func newWorkerState(userID string, maxTracked int) (*workerState, error) {
	tracked, err := lru.New[string, struct{}](maxTracked)
	if err != nil {
		return nil, err
	}
	return &workerState{
		userID:     userID,
		tracked:    tracked,
		subscribed: map[string]struct{}{userID: {}, protocol.PrivateTopic(userID): {}},
	}, nil
}

// track remembers server as recently viewed. Returns true only when server
// was not tracked yet.
func (s *workerState) track(serverID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tracked.Get(serverID); ok {
		return false
	}
	s.tracked.Add(serverID, struct{}{})
	return true
}

func (s *workerState) trackedServers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tracked.Keys()
}

func (s *workerState) isSubscribed(topic string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.subscribed[topic]
	return ok
}

func (s *workerState) setSubscribed(topics []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.subscribed)
	for _, topic := range topics {
		s.subscribed[topic] = struct{}{}
	}
}

func (s *workerState) applyChange(add, remove []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, topic := range add {
		s.subscribed[topic] = struct{}{}
	}
	for _, topic := range remove {
		delete(s.subscribed, topic)
	}
}
