// Package store resolves session tokens and loads the entities a user sees
// when a gateway session becomes ready.
package store

import (
	"context"
	"slices"
	"time"

	"github.com/bonfire-gw/bonfire/internal/protocol"
)

// RelationshipUser is relationship status of user with itself.
const RelationshipUser = "User"

// Store is a user/session store and Ready data source.
type Store interface {
	// ResolveSession returns user and session id of token. Unknown token
	// results into protocol.ErrInvalidSession, user without username into
	// protocol.ErrOnboardingNotFinished.
	ResolveSession(ctx context.Context, token string) (protocol.User, string, error)
	// TouchSession updates last seen time of session.
	TouchSession(ctx context.Context, sessionID string, now time.Time) error
	// FetchSnapshot loads entities visible to user.
	FetchSnapshot(ctx context.Context, user protocol.User, fields protocol.ReadyFields) (protocol.Snapshot, error)
}

func checkOnboarded(user protocol.User) error {
	if user.Username == "" {
		return protocol.ErrOnboardingNotFinished
	}
	return nil
}

// visibleChannel reports whether channel outside of servers is visible for user.
func visibleChannel(ch protocol.Channel, userID string) bool {
	switch ch.ChannelType {
	case protocol.ChannelTypeSavedMessages:
		return ch.User == userID
	case protocol.ChannelTypeDirectMessage, protocol.ChannelTypeGroup:
		return slices.Contains(ch.Recipients, userID)
	default:
		return false
	}
}

// referencedUsers returns ids of users Ready must include: the user itself,
// everyone it has relationship with and recipients of its channels.
func referencedUsers(userID string, relations map[string]string, channels []protocol.Channel) []string {
	set := map[string]struct{}{userID: {}}
	for id := range relations {
		set[id] = struct{}{}
	}
	for _, ch := range channels {
		for _, id := range ch.Recipients {
			set[id] = struct{}{}
		}
	}
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
