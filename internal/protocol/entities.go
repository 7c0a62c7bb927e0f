package protocol

import (
	"fmt"
	"strings"
)

// Channel types.
const (
	ChannelTypeSavedMessages = "SavedMessages"
	ChannelTypeDirectMessage = "DirectMessage"
	ChannelTypeGroup         = "Group"
	ChannelTypeText          = "TextChannel"
	ChannelTypeVoice         = "VoiceChannel"
)

type User struct {
	ID            string  `json:"_id"`
	Username      string  `json:"username"`
	Discriminator string  `json:"discriminator"`
	DisplayName   *string `json:"display_name,omitempty"`
	Relationship  string  `json:"relationship,omitempty"`
	Online        bool    `json:"online"`
	Flags         int64   `json:"flags,omitempty"`
}

// PartialUser carries changed user fields in UserUpdate event.
type PartialUser struct {
	Username    *string `json:"username,omitempty"`
	DisplayName *string `json:"display_name,omitempty"`
	Online      *bool   `json:"online,omitempty"`
}

type Server struct {
	ID                 string   `json:"_id"`
	Owner              string   `json:"owner"`
	Name               string   `json:"name"`
	Description        string   `json:"description,omitempty"`
	Channels           []string `json:"channels"`
	DefaultPermissions int64    `json:"default_permissions"`
}

type Channel struct {
	ID          string   `json:"_id"`
	ChannelType string   `json:"channel_type"`
	Server      string   `json:"server,omitempty"`
	Name        string   `json:"name,omitempty"`
	Owner       string   `json:"owner,omitempty"`
	User        string   `json:"user,omitempty"`
	Recipients  []string `json:"recipients,omitempty"`
}

// MemberID is a compound key of server member.
type MemberID struct {
	Server string `json:"server"`
	User   string `json:"user"`
}

type Member struct {
	ID       MemberID `json:"_id"`
	JoinedAt string   `json:"joined_at"`
	Nickname string   `json:"nickname,omitempty"`
	Roles    []string `json:"roles,omitempty"`
}

// EmojiParent points to the owner of a custom emoji.
type EmojiParent struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`
}

type Emoji struct {
	ID        string      `json:"_id"`
	Parent    EmojiParent `json:"parent"`
	CreatorID string      `json:"creator_id"`
	Name      string      `json:"name"`
}

// Snapshot is a consistent set of entities visible to a user.
type Snapshot struct {
	Users    []User
	Servers  []Server
	Channels []Channel
	Members  []Member
	Emojis   []Emoji
}

// ReadyFields is a set of entity categories included into Ready event.
type ReadyFields uint8

const (
	FieldUsers ReadyFields = 1 << iota
	FieldServers
	FieldChannels
	FieldMembers
	FieldEmojis
)

// DefaultReadyFields includes every category.
const DefaultReadyFields = FieldUsers | FieldServers | FieldChannels | FieldMembers | FieldEmojis

var readyFieldNames = []struct {
	field ReadyFields
	name  string
}{
	{FieldUsers, "users"},
	{FieldServers, "servers"},
	{FieldChannels, "channels"},
	{FieldMembers, "members"},
	{FieldEmojis, "emojis"},
}

// Has reports whether all fields in f are present.
func (r ReadyFields) Has(f ReadyFields) bool {
	return r&f == f
}

func (r ReadyFields) String() string {
	var names []string
	for _, n := range readyFieldNames {
		if r.Has(n.field) {
			names = append(names, n.name)
		}
	}
	return strings.Join(names, ",")
}

// ParseReadyFields converts field names into ReadyFields. Empty list means
// DefaultReadyFields.
func ParseReadyFields(names []string) (ReadyFields, error) {
	if len(names) == 0 {
		return DefaultReadyFields, nil
	}
	var fields ReadyFields
outer:
	for _, name := range names {
		for _, n := range readyFieldNames {
			if strings.EqualFold(strings.TrimSpace(name), n.name) {
				fields |= n.field
				continue outer
			}
		}
		return 0, fmt.Errorf("unknown ready field: %q", name)
	}
	return fields, nil
}

// PrivateTopic is a per-user topic only the user's own connections subscribe to.
func PrivateTopic(userID string) string {
	return userID + "!"
}

// MemberTopic carries member updates of a server, connections subscribe to it
// only for servers they track.
func MemberTopic(serverID string) string {
	return serverID + "u"
}
