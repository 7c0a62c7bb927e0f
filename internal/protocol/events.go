package protocol

// Server event kinds.
const (
	KindError              = "Error"
	KindAuthenticated      = "Authenticated"
	KindReady              = "Ready"
	KindPong               = "Pong"
	KindMessage            = "Message"
	KindChannelStartTyping = "ChannelStartTyping"
	KindChannelStopTyping  = "ChannelStopTyping"
	KindChannelCreate      = "ChannelCreate"
	KindChannelDelete      = "ChannelDelete"
	KindServerCreate       = "ServerCreate"
	KindServerDelete       = "ServerDelete"
	KindServerMemberJoin   = "ServerMemberJoin"
	KindServerMemberLeave  = "ServerMemberLeave"
	KindUserUpdate         = "UserUpdate"
)

// Event is sent from server to client.
type Event interface {
	Kind() string
}

type ErrorEvent struct {
	Tag
	Data *Error `json:"data"`
}

type Authenticated struct {
	Tag
}

type Ready struct {
	Tag
	Users    []User    `json:"users"`
	Servers  []Server  `json:"servers"`
	Channels []Channel `json:"channels"`
	Members  []Member  `json:"members"`
	Emojis   []Emoji   `json:"emojis,omitempty"`
}

type Pong struct {
	Tag
	Data PingData `json:"data"`
}

type Message struct {
	Tag
	ID      string `json:"_id"`
	Channel string `json:"channel"`
	Author  string `json:"author"`
	Content string `json:"content,omitempty"`
}

type ChannelStartTyping struct {
	Tag
	ID   string `json:"id"`
	User string `json:"user"`
}

type ChannelStopTyping struct {
	Tag
	ID   string `json:"id"`
	User string `json:"user"`
}

type ChannelCreate struct {
	Tag
	Channel
}

type ChannelDelete struct {
	Tag
	ID string `json:"id"`
}

type ServerCreate struct {
	Tag
	ID       string    `json:"id"`
	Server   Server    `json:"server"`
	Channels []Channel `json:"channels"`
	Emojis   []Emoji   `json:"emojis"`
}

type ServerDelete struct {
	Tag
	ID string `json:"id"`
}

type ServerMemberJoin struct {
	Tag
	ID   string `json:"id"`
	User string `json:"user"`
}

type ServerMemberLeave struct {
	Tag
	ID   string `json:"id"`
	User string `json:"user"`
}

type UserUpdate struct {
	Tag
	ID    string      `json:"id"`
	Data  PartialUser `json:"data"`
	Clear []string    `json:"clear"`
}

// GenericEvent is an event not known to the gateway. It is forwarded as is.
type GenericEvent map[string]any

// Kind returns value of "type" key.
func (e GenericEvent) Kind() string {
	s, _ := e["type"].(string)
	return s
}

func NewErrorEvent(err *Error) *ErrorEvent {
	return &ErrorEvent{Tag: Tag{Type: KindError}, Data: err}
}

func NewAuthenticated() *Authenticated {
	return &Authenticated{Tag: Tag{Type: KindAuthenticated}}
}

// NewReady builds Ready event from snapshot including only requested categories.
func NewReady(snapshot Snapshot, fields ReadyFields) *Ready {
	ready := &Ready{
		Tag:      Tag{Type: KindReady},
		Users:    []User{},
		Servers:  []Server{},
		Channels: []Channel{},
		Members:  []Member{},
	}
	if fields.Has(FieldUsers) && snapshot.Users != nil {
		ready.Users = snapshot.Users
	}
	if fields.Has(FieldServers) && snapshot.Servers != nil {
		ready.Servers = snapshot.Servers
	}
	if fields.Has(FieldChannels) && snapshot.Channels != nil {
		ready.Channels = snapshot.Channels
	}
	if fields.Has(FieldMembers) && snapshot.Members != nil {
		ready.Members = snapshot.Members
	}
	if fields.Has(FieldEmojis) {
		ready.Emojis = snapshot.Emojis
	}
	return ready
}

func NewPong(data PingData) *Pong {
	return &Pong{Tag: Tag{Type: KindPong}, Data: data}
}

func NewChannelStartTyping(channel, user string) *ChannelStartTyping {
	return &ChannelStartTyping{Tag: Tag{Type: KindChannelStartTyping}, ID: channel, User: user}
}

func NewChannelStopTyping(channel, user string) *ChannelStopTyping {
	return &ChannelStopTyping{Tag: Tag{Type: KindChannelStopTyping}, ID: channel, User: user}
}

// NewPresenceUpdate builds UserUpdate telling that user went online or offline.
func NewPresenceUpdate(userID string, online bool) *UserUpdate {
	return &UserUpdate{
		Tag:   Tag{Type: KindUserUpdate},
		ID:    userID,
		Data:  PartialUser{Online: &online},
		Clear: []string{},
	}
}

// NewEvent returns an empty event for kind, or false if kind is unknown.
func NewEvent(kind string) (Event, bool) {
	switch kind {
	case KindError:
		return &ErrorEvent{}, true
	case KindAuthenticated:
		return &Authenticated{}, true
	case KindReady:
		return &Ready{}, true
	case KindPong:
		return &Pong{}, true
	case KindMessage:
		return &Message{}, true
	case KindChannelStartTyping:
		return &ChannelStartTyping{}, true
	case KindChannelStopTyping:
		return &ChannelStopTyping{}, true
	case KindChannelCreate:
		return &ChannelCreate{}, true
	case KindChannelDelete:
		return &ChannelDelete{}, true
	case KindServerCreate:
		return &ServerCreate{}, true
	case KindServerDelete:
		return &ServerDelete{}, true
	case KindServerMemberJoin:
		return &ServerMemberJoin{}, true
	case KindServerMemberLeave:
		return &ServerMemberLeave{}, true
	case KindUserUpdate:
		return &UserUpdate{}, true
	default:
		return nil, false
	}
}
