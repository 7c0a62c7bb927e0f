package metrics

import (
	"time"
)

// Handshake results.
const (
	HandshakeOK          = "ok"
	HandshakeNoToken     = "no_token"
	HandshakeRejected    = "rejected"
	HandshakeReadyFailed = "ready_failed"
	HandshakeClosed      = "closed"
)

// IncHandshake counts finished handshake.
func IncHandshake(result string) {
	HandshakesTotal.WithLabelValues(result).Inc()
}

// ObserveReady observes time spent assembling and sending Ready.
func ObserveReady(started time.Time) {
	ReadyDurationHistogram.Observe(time.Since(started).Seconds())
}

// IncCommand counts received client command.
func IncCommand(kind string) {
	CommandsTotal.WithLabelValues(kind).Inc()
}

// IncEventSent counts event written to client.
func IncEventSent(kind string) {
	EventsSentTotal.WithLabelValues(kind).Inc()
}

// IncSubscriptionChange counts applied subscription change.
func IncSubscriptionChange(kind string) {
	SubscriptionChanges.WithLabelValues(kind).Inc()
}

// IncPresenceBroadcast counts published online or offline event.
func IncPresenceBroadcast(online bool) {
	state := "offline"
	if online {
		state = "online"
	}
	PresenceBroadcastsTotal.WithLabelValues(state).Inc()
}
