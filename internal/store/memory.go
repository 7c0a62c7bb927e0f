package store

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/bonfire-gw/bonfire/internal/protocol"

	"gopkg.in/yaml.v3"
)

type memorySession struct {
	id       string
	userID   string
	lastSeen time.Time
}

// MemoryStore keeps everything in process memory. It is seeded with Add
// methods or from a YAML fixture file.
type MemoryStore struct {
	mu            sync.RWMutex
	users         map[string]protocol.User
	sessions      map[string]*memorySession
	sessionByID   map[string]*memorySession
	servers       map[string]protocol.Server
	channels      map[string]protocol.Channel
	members       map[protocol.MemberID]protocol.Member
	emojis        map[string]protocol.Emoji
	relationships map[string]map[string]string
}

// NewMemoryStore creates empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:         map[string]protocol.User{},
		sessions:      map[string]*memorySession{},
		sessionByID:   map[string]*memorySession{},
		servers:       map[string]protocol.Server{},
		channels:      map[string]protocol.Channel{},
		members:       map[protocol.MemberID]protocol.Member{},
		emojis:        map[string]protocol.Emoji{},
		relationships: map[string]map[string]string{},
	}
}

func (s *MemoryStore) AddUser(u protocol.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

// AddSession makes token resolve to user.
func (s *MemoryStore) AddSession(token string, sessionID string, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := &memorySession{id: sessionID, userID: userID}
	s.sessions[token] = sess
	s.sessionByID[sessionID] = sess
}

func (s *MemoryStore) AddServer(srv protocol.Server) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.servers[srv.ID] = srv
}

// AddChannel adds channel, channels of servers are appended to server
// channel list.
func (s *MemoryStore) AddChannel(ch protocol.Channel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channels[ch.ID] = ch
	if srv, ok := s.servers[ch.Server]; ok && !slices.Contains(srv.Channels, ch.ID) {
		srv.Channels = append(srv.Channels, ch.ID)
		s.servers[srv.ID] = srv
	}
}

func (s *MemoryStore) AddMember(m protocol.Member) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[m.ID] = m
}

func (s *MemoryStore) AddEmoji(e protocol.Emoji) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emojis[e.ID] = e
}

// SetRelationship sets status of other user as seen by user.
func (s *MemoryStore) SetRelationship(userID, otherID, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rel, ok := s.relationships[userID]
	if !ok {
		rel = map[string]string{}
		s.relationships[userID] = rel
	}
	rel[otherID] = status
}

// LastSeen returns time session was last touched.
func (s *MemoryStore) LastSeen(sessionID string) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessionByID[sessionID]
	if !ok {
		return time.Time{}, false
	}
	return sess.lastSeen, true
}

func (s *MemoryStore) ResolveSession(_ context.Context, token string) (protocol.User, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[token]
	if !ok {
		return protocol.User{}, "", protocol.ErrInvalidSession
	}
	user, ok := s.users[sess.userID]
	if !ok {
		return protocol.User{}, "", protocol.ErrInvalidSession
	}
	if err := checkOnboarded(user); err != nil {
		return protocol.User{}, "", err
	}
	return user, sess.id, nil
}

func (s *MemoryStore) TouchSession(_ context.Context, sessionID string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessionByID[sessionID]
	if !ok {
		return fmt.Errorf("session %s not found", sessionID)
	}
	sess.lastSeen = now
	return nil
}

func (s *MemoryStore) FetchSnapshot(_ context.Context, user protocol.User, fields protocol.ReadyFields) (protocol.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var snapshot protocol.Snapshot
	serverIDs := map[string]struct{}{}
	for id, m := range s.members {
		if id.User != user.ID {
			continue
		}
		if _, ok := s.servers[id.Server]; !ok {
			continue
		}
		serverIDs[id.Server] = struct{}{}
		snapshot.Members = append(snapshot.Members, m)
	}
	for id := range serverIDs {
		snapshot.Servers = append(snapshot.Servers, s.servers[id])
	}
	for _, ch := range s.channels {
		if _, ok := serverIDs[ch.Server]; (ch.Server != "" && ok) || visibleChannel(ch, user.ID) {
			snapshot.Channels = append(snapshot.Channels, ch)
		}
	}
	if fields.Has(protocol.FieldUsers) {
		relations := s.relationships[user.ID]
		for _, id := range referencedUsers(user.ID, relations, snapshot.Channels) {
			u, ok := s.users[id]
			if !ok {
				continue
			}
			if id == user.ID {
				u.Relationship = RelationshipUser
			} else {
				u.Relationship = relations[id]
			}
			snapshot.Users = append(snapshot.Users, u)
		}
	}
	if fields.Has(protocol.FieldEmojis) {
		for _, e := range s.emojis {
			if _, ok := serverIDs[e.Parent.ID]; ok && e.Parent.Type == "Server" {
				snapshot.Emojis = append(snapshot.Emojis, e)
			}
		}
	}
	sortSnapshot(&snapshot)
	return snapshot, nil
}

func sortSnapshot(snapshot *protocol.Snapshot) {
	slices.SortFunc(snapshot.Servers, func(a, b protocol.Server) int { return cmp.Compare(a.ID, b.ID) })
	slices.SortFunc(snapshot.Channels, func(a, b protocol.Channel) int { return cmp.Compare(a.ID, b.ID) })
	slices.SortFunc(snapshot.Emojis, func(a, b protocol.Emoji) int { return cmp.Compare(a.ID, b.ID) })
	slices.SortFunc(snapshot.Members, func(a, b protocol.Member) int { return cmp.Compare(a.ID.Server, b.ID.Server) })
}

// Fixture describes MemoryStore contents in YAML.
type Fixture struct {
	Users []struct {
		ID            string  `yaml:"id"`
		Username      string  `yaml:"username"`
		Discriminator string  `yaml:"discriminator"`
		DisplayName   *string `yaml:"display_name"`
		Flags         int64   `yaml:"flags"`
	} `yaml:"users"`
	Sessions []struct {
		ID    string `yaml:"id"`
		Token string `yaml:"token"`
		User  string `yaml:"user"`
	} `yaml:"sessions"`
	Relationships []struct {
		User   string `yaml:"user"`
		Other  string `yaml:"other"`
		Status string `yaml:"status"`
	} `yaml:"relationships"`
	Servers []struct {
		ID                 string `yaml:"id"`
		Owner              string `yaml:"owner"`
		Name               string `yaml:"name"`
		Description        string `yaml:"description"`
		DefaultPermissions int64  `yaml:"default_permissions"`
	} `yaml:"servers"`
	Channels []struct {
		ID         string   `yaml:"id"`
		Type       string   `yaml:"type"`
		Server     string   `yaml:"server"`
		Name       string   `yaml:"name"`
		Owner      string   `yaml:"owner"`
		User       string   `yaml:"user"`
		Recipients []string `yaml:"recipients"`
	} `yaml:"channels"`
	Members []struct {
		Server   string   `yaml:"server"`
		User     string   `yaml:"user"`
		JoinedAt string   `yaml:"joined_at"`
		Nickname string   `yaml:"nickname"`
		Roles    []string `yaml:"roles"`
	} `yaml:"members"`
	Emojis []struct {
		ID      string `yaml:"id"`
		Server  string `yaml:"server"`
		Creator string `yaml:"creator"`
		Name    string `yaml:"name"`
	} `yaml:"emojis"`
}

// ParseFixture decodes YAML fixture and checks its references.
func ParseFixture(data []byte) (*Fixture, error) {
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("error parsing fixture: %w", err)
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

func (f *Fixture) validate() error {
	users := map[string]struct{}{}
	for _, u := range f.Users {
		if u.ID == "" {
			return errors.New("fixture: user without id")
		}
		users[u.ID] = struct{}{}
	}
	servers := map[string]struct{}{}
	for _, srv := range f.Servers {
		servers[srv.ID] = struct{}{}
	}
	for _, sess := range f.Sessions {
		if sess.Token == "" {
			return fmt.Errorf("fixture: session %q without token", sess.ID)
		}
		if _, ok := users[sess.User]; !ok {
			return fmt.Errorf("fixture: session %q references unknown user %q", sess.ID, sess.User)
		}
	}
	for _, ch := range f.Channels {
		if ch.Server == "" {
			continue
		}
		if _, ok := servers[ch.Server]; !ok {
			return fmt.Errorf("fixture: channel %q references unknown server %q", ch.ID, ch.Server)
		}
	}
	for _, m := range f.Members {
		if _, ok := servers[m.Server]; !ok {
			return fmt.Errorf("fixture: member %q references unknown server %q", m.User, m.Server)
		}
		if _, ok := users[m.User]; !ok {
			return fmt.Errorf("fixture: member of %q references unknown user %q", m.Server, m.User)
		}
	}
	return nil
}

// LoadFixture seeds store from YAML data.
func (s *MemoryStore) LoadFixture(data []byte) error {
	f, err := ParseFixture(data)
	if err != nil {
		return err
	}
	for _, u := range f.Users {
		s.AddUser(protocol.User{
			ID: u.ID, Username: u.Username, Discriminator: u.Discriminator,
			DisplayName: u.DisplayName, Flags: u.Flags,
		})
	}
	for _, sess := range f.Sessions {
		s.AddSession(sess.Token, sess.ID, sess.User)
	}
	for _, r := range f.Relationships {
		s.SetRelationship(r.User, r.Other, r.Status)
	}
	for _, srv := range f.Servers {
		s.AddServer(protocol.Server{
			ID: srv.ID, Owner: srv.Owner, Name: srv.Name, Description: srv.Description,
			Channels: []string{}, DefaultPermissions: srv.DefaultPermissions,
		})
	}
	for _, ch := range f.Channels {
		s.AddChannel(protocol.Channel{
			ID: ch.ID, ChannelType: ch.Type, Server: ch.Server, Name: ch.Name,
			Owner: ch.Owner, User: ch.User, Recipients: ch.Recipients,
		})
	}
	for _, m := range f.Members {
		s.AddMember(protocol.Member{
			ID:       protocol.MemberID{Server: m.Server, User: m.User},
			JoinedAt: m.JoinedAt, Nickname: m.Nickname, Roles: m.Roles,
		})
	}
	for _, e := range f.Emojis {
		s.AddEmoji(protocol.Emoji{
			ID: e.ID, Parent: protocol.EmojiParent{Type: "Server", ID: e.Server},
			CreatorID: e.Creator, Name: e.Name,
		})
	}
	return nil
}

// NewMemoryStoreFromFile creates MemoryStore seeded from fixture file. Empty
// path results into empty store.
func NewMemoryStoreFromFile(path string) (*MemoryStore, error) {
	s := NewMemoryStore()
	if path == "" {
		return s, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading fixture file: %w", err)
	}
	if err := s.LoadFixture(data); err != nil {
		return nil, err
	}
	return s, nil
}
