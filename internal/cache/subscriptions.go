package cache

import (
	"slices"

	"github.com/bonfire-gw/bonfire/internal/protocol"
)

// ChangeKind describes pending subscription change.
type ChangeKind uint8

const (
	// ChangeNone means nothing changed since last drain.
	ChangeNone ChangeKind = iota
	// ChangeReset means everything must be recomputed from scratch.
	ChangeReset
	// ChangeDelta carries incremental Add and Remove lists.
	ChangeDelta
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeNone:
		return "none"
	case ChangeReset:
		return "reset"
	case ChangeDelta:
		return "delta"
	default:
		return "unknown"
	}
}

// Change is a drained pending subscription change.
type Change struct {
	Kind   ChangeKind
	Add    []string
	Remove []string
}

// SubscriptionState is a set of topics a connection wants events for plus
// a pending change accumulated since the last drain. It is not safe for
// concurrent use.
type SubscriptionState struct {
	topics map[string]struct{}
	pinned map[string]struct{}

	pending ChangeKind
	add     map[string]struct{}
	remove  map[string]struct{}
}

// NewSubscriptionState creates state with the user's own id and private
// topic pinned. The pending change starts as Reset.
func NewSubscriptionState(userID string) *SubscriptionState {
	s := &SubscriptionState{
		topics:  map[string]struct{}{},
		pinned:  map[string]struct{}{userID: {}, protocol.PrivateTopic(userID): {}},
		pending: ChangeReset,
		add:     map[string]struct{}{},
		remove:  map[string]struct{}{},
	}
	for topic := range s.pinned {
		s.topics[topic] = struct{}{}
	}
	return s
}

// Has reports whether topic is in the set.
func (s *SubscriptionState) Has(topic string) bool {
	_, ok := s.topics[topic]
	return ok
}

// Len returns number of topics.
func (s *SubscriptionState) Len() int {
	return len(s.topics)
}

// Topics returns sorted topics.
func (s *SubscriptionState) Topics() []string {
	return sortedKeys(s.topics)
}

// Insert adds topic. Returns false if topic was already present.
func (s *SubscriptionState) Insert(topic string) bool {
	if _, ok := s.topics[topic]; ok {
		return false
	}
	s.topics[topic] = struct{}{}
	s.record(topic, true)
	return true
}

// Remove removes topic. Pinned topics are never removed.
func (s *SubscriptionState) Remove(topic string) bool {
	if _, ok := s.pinned[topic]; ok {
		return false
	}
	if _, ok := s.topics[topic]; !ok {
		return false
	}
	delete(s.topics, topic)
	s.record(topic, false)
	return true
}

// Replace makes topic set equal to desired plus pinned topics, recording the
// difference as pending change.
func (s *SubscriptionState) Replace(desired []string) {
	want := make(map[string]struct{}, len(desired)+len(s.pinned))
	for topic := range s.pinned {
		want[topic] = struct{}{}
	}
	for _, topic := range desired {
		want[topic] = struct{}{}
	}
	for topic := range s.topics {
		if _, ok := want[topic]; !ok {
			s.Remove(topic)
		}
	}
	for topic := range want {
		s.Insert(topic)
	}
}

// Invalidate marks the whole set for recomputation.
func (s *SubscriptionState) Invalidate() {
	s.pending = ChangeReset
	clear(s.add)
	clear(s.remove)
}

// Drain returns pending change and replaces it with ChangeNone.
func (s *SubscriptionState) Drain() Change {
	var change Change
	switch s.pending {
	case ChangeReset:
		change = Change{Kind: ChangeReset}
	case ChangeDelta:
		if len(s.add) > 0 || len(s.remove) > 0 {
			change = Change{Kind: ChangeDelta, Add: sortedKeys(s.add), Remove: sortedKeys(s.remove)}
		}
	}
	s.pending = ChangeNone
	clear(s.add)
	clear(s.remove)
	return change
}

func (s *SubscriptionState) record(topic string, added bool) {
	if s.pending == ChangeReset {
		return
	}
	s.pending = ChangeDelta
	if added {
		if _, ok := s.remove[topic]; ok {
			delete(s.remove, topic)
			return
		}
		s.add[topic] = struct{}{}
		return
	}
	if _, ok := s.add[topic]; ok {
		delete(s.add, topic)
		return
	}
	s.remove[topic] = struct{}{}
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
