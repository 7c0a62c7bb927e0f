package protocol

// Tag carries the type discriminator shared by client messages and server events.
type Tag struct {
	Type string `json:"type"`
}

// Kind returns value of discriminator.
func (t Tag) Kind() string {
	return t.Type
}

// Client message kinds.
const (
	KindAuthenticate = "Authenticate"
	KindBeginTyping  = "BeginTyping"
	KindEndTyping    = "EndTyping"
	KindSubscribe    = "Subscribe"
	KindPing         = "Ping"
)

// ClientMessage is a message sent by client.
type ClientMessage interface {
	Kind() string
	clientMessage()
}

type Authenticate struct {
	Tag
	Token string `json:"token"`
}

type BeginTyping struct {
	Tag
	Channel string `json:"channel"`
}

type EndTyping struct {
	Tag
	Channel string `json:"channel"`
}

type Subscribe struct {
	Tag
	ServerID string `json:"server_id"`
}

// Ping is a heartbeat. Responded is set when the ping is an echo of a
// server-initiated heartbeat rather than a client one.
type Ping struct {
	Tag
	Data      PingData `json:"data"`
	Responded *bool    `json:"responded,omitempty"`
}

func (*Authenticate) clientMessage() {}
func (*BeginTyping) clientMessage()  {}
func (*EndTyping) clientMessage()    {}
func (*Subscribe) clientMessage()    {}
func (*Ping) clientMessage()         {}

func NewAuthenticate(token string) *Authenticate {
	return &Authenticate{Tag: Tag{Type: KindAuthenticate}, Token: token}
}

func NewBeginTyping(channel string) *BeginTyping {
	return &BeginTyping{Tag: Tag{Type: KindBeginTyping}, Channel: channel}
}

func NewEndTyping(channel string) *EndTyping {
	return &EndTyping{Tag: Tag{Type: KindEndTyping}, Channel: channel}
}

func NewSubscribe(serverID string) *Subscribe {
	return &Subscribe{Tag: Tag{Type: KindSubscribe}, ServerID: serverID}
}

func NewPing(data PingData) *Ping {
	return &Ping{Tag: Tag{Type: KindPing}, Data: data}
}

// NewClientMessage returns an empty message for kind, or false if kind is
// not part of the protocol.
func NewClientMessage(kind string) (ClientMessage, bool) {
	switch kind {
	case KindAuthenticate:
		return &Authenticate{}, true
	case KindBeginTyping:
		return &BeginTyping{}, true
	case KindEndTyping:
		return &EndTyping{}, true
	case KindSubscribe:
		return &Subscribe{}, true
	case KindPing:
		return &Ping{}, true
	default:
		return nil, false
	}
}
