// Package cache holds per-connection snapshot of entities a session renders
// events against, together with the topics the session is subscribed to.
package cache

import (
	"github.com/bonfire-gw/bonfire/internal/protocol"
)

// Cache is owned by a single session and must not be shared between
// goroutines.
type Cache struct {
	userID   string
	users    map[string]protocol.User
	servers  map[string]protocol.Server
	channels map[string]protocol.Channel
	members  map[protocol.MemberID]protocol.Member

	subscriptions *SubscriptionState
}

// New creates empty Cache for authenticated user.
func New(userID string) *Cache {
	return &Cache{
		userID:        userID,
		users:         map[string]protocol.User{},
		servers:       map[string]protocol.Server{},
		channels:      map[string]protocol.Channel{},
		members:       map[protocol.MemberID]protocol.Member{},
		subscriptions: NewSubscriptionState(userID),
	}
}

// UserID returns id of the session user.
func (c *Cache) UserID() string {
	return c.userID
}

// Subscriptions returns subscription state of the session.
func (c *Cache) Subscriptions() *SubscriptionState {
	return c.subscriptions
}

// Populate inserts every entity of snapshot.
func (c *Cache) Populate(snapshot protocol.Snapshot) {
	for _, u := range snapshot.Users {
		c.users[u.ID] = u
	}
	for _, s := range snapshot.Servers {
		c.servers[s.ID] = s
	}
	for _, ch := range snapshot.Channels {
		c.channels[ch.ID] = ch
	}
	for _, m := range snapshot.Members {
		c.members[m.ID] = m
	}
}

// User returns cached user.
func (c *Cache) User(id string) (protocol.User, bool) {
	u, ok := c.users[id]
	return u, ok
}

// Server returns cached server.
func (c *Cache) Server(id string) (protocol.Server, bool) {
	s, ok := c.servers[id]
	return s, ok
}

// Channel returns cached channel.
func (c *Cache) Channel(id string) (protocol.Channel, bool) {
	ch, ok := c.channels[id]
	return ch, ok
}

// Member returns cached server member.
func (c *Cache) Member(id protocol.MemberID) (protocol.Member, bool) {
	m, ok := c.members[id]
	return m, ok
}

// DesiredTopics computes topics the session should be subscribed to: every
// cached user, server and channel, plus member topics of tracked servers the
// user is in.
func (c *Cache) DesiredTopics(trackedServers []string) []string {
	topics := make([]string, 0, len(c.users)+len(c.servers)+len(c.channels)+len(trackedServers))
	for id := range c.users {
		topics = append(topics, id)
	}
	for id := range c.servers {
		topics = append(topics, id)
	}
	for id := range c.channels {
		topics = append(topics, id)
	}
	for _, id := range trackedServers {
		if _, ok := c.servers[id]; ok {
			topics = append(topics, protocol.MemberTopic(id))
		}
	}
	return topics
}

// Refresh recomputes subscriptions, leaving the difference pending.
func (c *Cache) Refresh(trackedServers []string) {
	c.subscriptions.Replace(c.DesiredTopics(trackedServers))
}

// Apply updates cached entities from an observed event. Returns true when
// the change may affect subscriptions.
func (c *Cache) Apply(ev protocol.Event) bool {
	switch e := ev.(type) {
	case *protocol.ServerCreate:
		c.servers[e.Server.ID] = e.Server
		for _, ch := range e.Channels {
			c.channels[ch.ID] = ch
		}
		return true
	case *protocol.ServerDelete:
		c.dropServer(e.ID)
		return true
	case *protocol.ServerMemberJoin:
		id := protocol.MemberID{Server: e.ID, User: e.User}
		if _, ok := c.members[id]; !ok {
			c.members[id] = protocol.Member{ID: id}
		}
		return false
	case *protocol.ServerMemberLeave:
		if e.User == c.userID {
			c.dropServer(e.ID)
			return true
		}
		delete(c.members, protocol.MemberID{Server: e.ID, User: e.User})
		return false
	case *protocol.ChannelCreate:
		if _, ok := c.channels[e.ID]; ok {
			return false
		}
		c.channels[e.ID] = e.Channel
		if e.Server != "" {
			if s, ok := c.servers[e.Server]; ok {
				s.Channels = append(s.Channels, e.ID)
				c.servers[e.Server] = s
			}
		}
		return true
	case *protocol.ChannelDelete:
		if _, ok := c.channels[e.ID]; !ok {
			return false
		}
		delete(c.channels, e.ID)
		return true
	case *protocol.UserUpdate:
		u, ok := c.users[e.ID]
		if !ok {
			return false
		}
		if e.Data.Online != nil {
			u.Online = *e.Data.Online
		}
		if e.Data.Username != nil {
			u.Username = *e.Data.Username
		}
		if e.Data.DisplayName != nil {
			u.DisplayName = e.Data.DisplayName
		}
		c.users[e.ID] = u
		return false
	default:
		return false
	}
}

func (c *Cache) dropServer(serverID string) {
	delete(c.servers, serverID)
	for id, ch := range c.channels {
		if ch.Server == serverID {
			delete(c.channels, id)
		}
	}
	for id := range c.members {
		if id.Server == serverID {
			delete(c.members, id)
		}
	}
}
