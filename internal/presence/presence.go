// Package presence tracks which users have at least one active gateway
// session across all nodes.
package presence

import "context"

// Session is a registered connection of a user.
type Session struct {
	// ID identifies registration, it must be passed back to Deregister.
	ID string
	// First is true when user had no other active sessions, i.e. user
	// just went online.
	First bool
}

// Registry registers user sessions. Implementations must report First and
// last transitions exactly once per user no matter how many sessions are
// registered and removed concurrently.
type Registry interface {
	Register(ctx context.Context, userID string) (Session, error)
	// Deregister removes session and returns true if it was the last session
	// of user, i.e. user went offline.
	Deregister(ctx context.Context, userID string, sessionID string) (bool, error)
	// Online returns online status for every requested user.
	Online(ctx context.Context, userIDs []string) (map[string]bool, error)
}
