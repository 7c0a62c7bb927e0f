package gateway

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bonfire-gw/bonfire/internal/bus"
	"github.com/bonfire-gw/bonfire/internal/codec"
	"github.com/bonfire-gw/bonfire/internal/presence"
	"github.com/bonfire-gw/bonfire/internal/protocol"
	"github.com/bonfire-gw/bonfire/internal/store"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const waitTimeout = 2 * time.Second

type fakeConn struct {
	in     chan codec.Frame
	out    chan codec.Frame
	once   sync.Once
	closed chan struct{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		in:     make(chan codec.Frame),
		out:    make(chan codec.Frame, 128),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) ReadFrame() (codec.Frame, error) {
	select {
	case f, ok := <-c.in:
		if !ok {
			return codec.Frame{}, ErrConnectionClosed
		}
		return f, nil
	case <-c.closed:
		return codec.Frame{}, ErrConnectionClosed
	}
}

func (c *fakeConn) WriteFrame(f codec.Frame) error {
	select {
	case <-c.closed:
		return ErrConnectionClosed
	default:
	}
	select {
	case c.out <- f:
		return nil
	case <-c.closed:
		return ErrConnectionClosed
	}
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

type testClient struct {
	t     *testing.T
	conn  *fakeConn
	codec *codec.Codec
	done  chan error
	eof   sync.Once
}

func (c *testClient) send(msg protocol.ClientMessage) {
	c.t.Helper()
	frame, err := c.codec.EncodeMessage(msg)
	require.NoError(c.t, err)
	c.sendFrame(frame)
}

func (c *testClient) sendFrame(frame codec.Frame) {
	c.t.Helper()
	select {
	case c.conn.in <- frame:
	case <-time.After(waitTimeout):
		require.Fail(c.t, "timeout sending frame")
	}
}

func (c *testClient) recv() protocol.Event {
	c.t.Helper()
	select {
	case frame := <-c.conn.out:
		ev, err := c.codec.DecodeEvent(frame)
		require.NoError(c.t, err)
		return ev
	case <-time.After(waitTimeout):
		require.Fail(c.t, "timeout waiting for event")
	}
	return nil
}

func (c *testClient) requireSilent() {
	c.t.Helper()
	select {
	case frame := <-c.conn.out:
		require.Fail(c.t, "unexpected frame", "%s", frame.Payload)
	case <-time.After(50 * time.Millisecond):
	}
}

// hangUp closes client side of input stream.
func (c *testClient) hangUp() {
	c.eof.Do(func() { close(c.conn.in) })
}

func (c *testClient) wait() error {
	c.t.Helper()
	select {
	case err := <-c.done:
		return err
	case <-time.After(waitTimeout):
		require.Fail(c.t, "timeout waiting for session end")
	}
	return nil
}

type testEnv struct {
	t        *testing.T
	store    *store.MemoryStore
	presence *presence.MemoryRegistry
	bus      *bus.MemoryBus
	gateway  *Gateway
}

func newTestEnv(t *testing.T, b bus.Bus, config Config) *testEnv {
	st := store.NewMemoryStore()
	st.AddUser(protocol.User{ID: "u1", Username: "alice", Discriminator: "0001"})
	st.AddUser(protocol.User{ID: "u2", Username: "bob", Discriminator: "0002"})
	st.AddSession("abc", "s1", "u1")
	st.SetRelationship("u1", "u2", "Friend")
	st.AddServer(protocol.Server{ID: "srv1", Owner: "u1", Name: "Lounge", Channels: []string{}})
	st.AddChannel(protocol.Channel{ID: "c1", ChannelType: protocol.ChannelTypeText, Server: "srv1", Name: "general"})
	st.AddMember(protocol.Member{ID: protocol.MemberID{Server: "srv1", User: "u1"}})

	memBus := bus.NewMemoryBus(bus.MemoryConfig{})
	if b == nil {
		b = memBus
	}
	registry := presence.NewMemoryRegistry()
	return &testEnv{
		t:        t,
		store:    st,
		presence: registry,
		bus:      memBus,
		gateway:  New(config, st, registry, b),
	}
}

func (e *testEnv) connect(format protocol.Format, token string) *testClient {
	conn := newFakeConn()
	client := &testClient{t: e.t, conn: conn, codec: codec.New(format), done: make(chan error, 1)}
	pc := protocol.NewConfiguration(protocol.DefaultVersion, format, token)
	go func() {
		client.done <- e.gateway.Serve(context.Background(), conn, pc)
	}()
	e.t.Cleanup(func() {
		client.hangUp()
		_ = conn.Close()
	})
	return client
}

// authenticate connects client and consumes Authenticated and Ready events.
func (e *testEnv) authenticate(format protocol.Format) (*testClient, *protocol.Ready) {
	client := e.connect(format, "")
	client.send(protocol.NewAuthenticate("abc"))
	require.IsType(e.t, &protocol.Authenticated{}, client.recv())
	ready, ok := client.recv().(*protocol.Ready)
	require.True(e.t, ok)
	return client, ready
}

func (e *testEnv) waitSubscribed(topic string) {
	require.Eventually(e.t, func() bool {
		return e.bus.NumSubscribers(topic) > 0
	}, waitTimeout, 5*time.Millisecond)
}

func (e *testEnv) observe(topics ...string) bus.Subscription {
	sub, err := e.bus.Subscribe(context.Background(), topics)
	require.NoError(e.t, err)
	e.t.Cleanup(func() { _ = sub.Close() })
	return sub
}

func receive(t *testing.T, sub bus.Subscription) bus.Delivery {
	t.Helper()
	select {
	case d := <-sub.Deliveries():
		return d
	case <-time.After(waitTimeout):
		require.Fail(t, "timeout waiting for delivery")
	}
	return bus.Delivery{}
}

func requireNoDelivery(t *testing.T, sub bus.Subscription) {
	t.Helper()
	select {
	case d := <-sub.Deliveries():
		require.Fail(t, "unexpected delivery", "%#v", d)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestAuthGatingWithoutToken(t *testing.T) {
	env := newTestEnv(t, nil, Config{})
	client := env.connect(protocol.FormatJSON, "")

	client.send(protocol.NewPing(protocol.NumberPing(1)))
	client.sendFrame(codec.Frame{Kind: codec.FrameText, Payload: []byte("{garbage")})
	client.sendFrame(codec.Frame{Kind: codec.FrameBinary, Payload: []byte{0x80}})
	client.hangUp()

	ev, ok := client.recv().(*protocol.ErrorEvent)
	require.True(t, ok)
	require.ErrorIs(t, ev.Data, protocol.ErrInvalidSession)
	require.ErrorIs(t, client.wait(), errNoToken)
	client.requireSilent()
	require.Equal(t, 0, env.presence.NumSessions("u1"))
	require.Equal(t, 0, env.gateway.NumSessions())
}

func TestAuthUnknownToken(t *testing.T) {
	env := newTestEnv(t, nil, Config{})
	client := env.connect(protocol.FormatJSON, "nope")

	ev, ok := client.recv().(*protocol.ErrorEvent)
	require.True(t, ok)
	require.ErrorIs(t, ev.Data, protocol.ErrInvalidSession)
	require.ErrorIs(t, client.wait(), errSessionRefused)
	require.Equal(t, 0, env.presence.NumSessions("u1"))
}

func TestAuthOnboardingNotFinished(t *testing.T) {
	env := newTestEnv(t, nil, Config{})
	env.store.AddUser(protocol.User{ID: "u3"})
	env.store.AddSession("fresh", "s3", "u3")
	client := env.connect(protocol.FormatJSON, "fresh")

	ev, ok := client.recv().(*protocol.ErrorEvent)
	require.True(t, ok)
	require.ErrorIs(t, ev.Data, protocol.ErrOnboardingNotFinished)
	require.Error(t, client.wait())
}

func TestBinaryScenario(t *testing.T) {
	env := newTestEnv(t, nil, Config{})
	observer := env.observe("u1")

	client, ready := env.authenticate(protocol.FormatMsgpack)
	require.Equal(t, codec.FrameBinary, client.codec.FrameKind())

	var self *protocol.User
	for i := range ready.Users {
		if ready.Users[i].ID == "u1" {
			self = &ready.Users[i]
		}
	}
	require.NotNil(t, self)
	require.True(t, self.Online)
	require.Len(t, ready.Servers, 1)
	require.Len(t, ready.Channels, 1)
	require.Len(t, ready.Members, 1)

	d := receive(t, observer)
	require.Equal(t, protocol.NewPresenceUpdate("u1", true), d.Event)

	seen, ok := env.store.LastSeen("s1")
	require.True(t, ok)
	require.False(t, seen.IsZero())
}

func TestInlineToken(t *testing.T) {
	env := newTestEnv(t, nil, Config{ReadyFields: protocol.FieldUsers})
	client := env.connect(protocol.FormatJSON, "abc")
	require.IsType(t, &protocol.Authenticated{}, client.recv())
	ready, ok := client.recv().(*protocol.Ready)
	require.True(t, ok)
	require.Len(t, ready.Users, 2)
	require.Empty(t, ready.Servers)
	require.Nil(t, ready.Emojis)
}

func TestReadyMarksOnlineUsers(t *testing.T) {
	env := newTestEnv(t, nil, Config{})
	_, err := env.presence.Register(context.Background(), "u2")
	require.NoError(t, err)

	_, ready := env.authenticate(protocol.FormatJSON)
	for _, u := range ready.Users {
		require.True(t, u.Online, u.ID)
	}
}

func TestPingPong(t *testing.T) {
	env := newTestEnv(t, nil, Config{})
	observer := env.observe("c1", "u1")
	client, _ := env.authenticate(protocol.FormatMsgpack)
	receive(t, observer)

	client.send(protocol.NewPing(protocol.BinaryPing([]byte{1, 2, 3})))
	pong, ok := client.recv().(*protocol.Pong)
	require.True(t, ok)
	require.Equal(t, []byte{1, 2, 3}, pong.Data.Binary)

	responded := true
	echo := protocol.NewPing(protocol.NumberPing(7))
	echo.Responded = &responded
	client.send(echo)
	client.send(protocol.NewPing(protocol.NumberPing(8)))
	pong, ok = client.recv().(*protocol.Pong)
	require.True(t, ok)
	require.Equal(t, uint64(8), pong.Data.Number)
	requireNoDelivery(t, observer)
}

func TestTypingGate(t *testing.T) {
	env := newTestEnv(t, nil, Config{})
	client, _ := env.authenticate(protocol.FormatJSON)
	observer := env.observe("c1", "c2")

	client.send(protocol.NewBeginTyping("c2"))
	client.send(protocol.NewBeginTyping("c1"))
	client.send(protocol.NewEndTyping("c1"))

	d := receive(t, observer)
	require.Equal(t, "c1", d.Topic)
	require.Equal(t, protocol.NewChannelStartTyping("c1", "u1"), d.Event)
	d = receive(t, observer)
	require.Equal(t, "c1", d.Topic)
	require.Equal(t, protocol.NewChannelStopTyping("c1", "u1"), d.Event)
	requireNoDelivery(t, observer)
}

// slowBus delays Subscribe so commands can arrive before outbound loop
// subscribes.
type slowBus struct {
	bus.Bus
	delay time.Duration
}

func (b *slowBus) Subscribe(ctx context.Context, topics []string) (bus.Subscription, error) {
	time.Sleep(b.delay)
	return b.Bus.Subscribe(ctx, topics)
}

func TestTypingRightAfterReady(t *testing.T) {
	env := newTestEnv(t, nil, Config{})
	env.gateway = New(env.gateway.config, env.store, env.presence, &slowBus{Bus: env.bus, delay: 100 * time.Millisecond})
	observer := env.observe("c1")

	client, ready := env.authenticate(protocol.FormatJSON)
	require.Len(t, ready.Channels, 1)
	client.send(protocol.NewBeginTyping("c1"))
	client.send(protocol.NewEndTyping("c1"))

	require.Equal(t, protocol.NewChannelStartTyping("c1", "u1"), receive(t, observer).Event)
	require.Equal(t, protocol.NewChannelStopTyping("c1", "u1"), receive(t, observer).Event)
}

func TestSubscribeIdempotent(t *testing.T) {
	env := newTestEnv(t, nil, Config{})
	state, err := newWorkerState("u1", 5)
	require.NoError(t, err)
	s := &session{gw: env.gateway, user: protocol.User{ID: "u1"}, state: state, log: zerolog.Nop()}
	reload := make(chan struct{}, 1)
	ctx := context.Background()

	require.NoError(t, s.handleCommand(ctx, protocol.NewSubscribe("srv1"), reload))
	require.Len(t, reload, 1)
	<-reload

	require.NoError(t, s.handleCommand(ctx, protocol.NewSubscribe("srv1"), reload))
	require.Empty(t, reload)
	require.Equal(t, []string{"srv1"}, state.trackedServers())

	require.NoError(t, s.handleCommand(ctx, protocol.NewSubscribe("srv2"), reload))
	require.NoError(t, s.handleCommand(ctx, protocol.NewSubscribe("srv3"), reload))
	require.Len(t, reload, 1)
	require.ElementsMatch(t, []string{"srv1", "srv2", "srv3"}, state.trackedServers())
}

func TestSubscribeTracksServer(t *testing.T) {
	env := newTestEnv(t, nil, Config{})
	client, _ := env.authenticate(protocol.FormatJSON)
	env.waitSubscribed("c1")

	client.send(protocol.NewSubscribe("srv1"))
	client.send(protocol.NewSubscribe("srv1"))
	env.waitSubscribed(protocol.MemberTopic("srv1"))

	// Unknown servers are tracked but do not produce topics.
	client.send(protocol.NewSubscribe("srv404"))
	client.send(protocol.NewPing(protocol.NumberPing(1)))
	require.IsType(t, &protocol.Pong{}, client.recv())
	require.Equal(t, 0, env.bus.NumSubscribers(protocol.MemberTopic("srv404")))
}

func TestForwardEvents(t *testing.T) {
	env := newTestEnv(t, nil, Config{})
	client, _ := env.authenticate(protocol.FormatJSON)
	env.waitSubscribed("c1")
	ctx := context.Background()

	msg := &protocol.Message{Tag: protocol.Tag{Type: protocol.KindMessage}, ID: "m1", Channel: "c1", Author: "u2", Content: "hi"}
	require.NoError(t, env.bus.Publish(ctx, "c1", msg))
	require.Equal(t, msg, client.recv())

	generic := protocol.GenericEvent{"type": "EmojiCreate", "_id": "e1"}
	require.NoError(t, env.bus.Publish(ctx, "srv1", generic))
	require.Equal(t, generic, client.recv())

	create := &protocol.ServerCreate{
		Tag:      protocol.Tag{Type: protocol.KindServerCreate},
		ID:       "srv2",
		Server:   protocol.Server{ID: "srv2", Owner: "u2", Name: "New", Channels: []string{"c9"}},
		Channels: []protocol.Channel{{ID: "c9", ChannelType: protocol.ChannelTypeText, Server: "srv2"}},
	}
	require.NoError(t, env.bus.Publish(ctx, protocol.PrivateTopic("u1"), create))
	require.IsType(t, &protocol.ServerCreate{}, client.recv())
	env.waitSubscribed("c9")
	env.waitSubscribed("srv2")

	leave := &protocol.ServerMemberLeave{Tag: protocol.Tag{Type: protocol.KindServerMemberLeave}, ID: "srv2", User: "u1"}
	require.NoError(t, env.bus.Publish(ctx, "srv2", leave))
	require.IsType(t, &protocol.ServerMemberLeave{}, client.recv())
	require.Eventually(t, func() bool {
		return env.bus.NumSubscribers("c9") == 0
	}, waitTimeout, 5*time.Millisecond)
	require.Equal(t, 1, env.bus.NumSubscribers("c1"))
}

func TestPresenceCoalescing(t *testing.T) {
	env := newTestEnv(t, nil, Config{})
	observer := env.observe("u1")

	first, _ := env.authenticate(protocol.FormatJSON)
	second, _ := env.authenticate(protocol.FormatMsgpack)
	require.Equal(t, protocol.NewPresenceUpdate("u1", true), receive(t, observer).Event)
	require.Eventually(t, func() bool {
		return env.presence.NumSessions("u1") == 2 && env.gateway.NumSessions() == 2
	}, waitTimeout, 5*time.Millisecond)

	first.hangUp()
	require.NoError(t, first.wait())
	requireNoDelivery(t, observer)
	require.Equal(t, 1, env.presence.NumSessions("u1"))

	second.hangUp()
	require.NoError(t, second.wait())
	require.Equal(t, protocol.NewPresenceUpdate("u1", false), receive(t, observer).Event)
	requireNoDelivery(t, observer)
	require.Equal(t, 0, env.gateway.NumSessions())
}

// wedgedBus never returns from Subscribe until released.
type wedgedBus struct {
	bus.Bus
	release chan struct{}
}

func (b *wedgedBus) Subscribe(context.Context, []string) (bus.Subscription, error) {
	<-b.release
	return nil, errors.New("released")
}

func TestShutdownWatchdog(t *testing.T) {
	wedged := &wedgedBus{release: make(chan struct{})}
	t.Cleanup(func() { close(wedged.release) })
	env := newTestEnv(t, nil, Config{ShutdownTimeout: 50 * time.Millisecond})
	wedged.Bus = env.bus
	env.gateway = New(env.gateway.config, env.store, env.presence, wedged)
	observer := env.observe("u1")

	client, _ := env.authenticate(protocol.FormatJSON)
	receive(t, observer)
	client.hangUp()
	require.NoError(t, client.wait())
	require.Equal(t, protocol.NewPresenceUpdate("u1", false), receive(t, observer).Event)
	require.Equal(t, 0, env.presence.NumSessions("u1"))
}

func TestDrainAfterContextCancel(t *testing.T) {
	env := newTestEnv(t, nil, Config{})
	observer := env.observe("u1")

	ctx, cancel := context.WithCancel(context.Background())
	conn := newFakeConn()
	client := &testClient{t: t, conn: conn, codec: codec.New(protocol.FormatJSON), done: make(chan error, 1)}
	go func() {
		client.done <- env.gateway.Serve(ctx, conn, protocol.NewConfiguration(protocol.DefaultVersion, protocol.FormatJSON, "abc"))
	}()
	require.IsType(t, &protocol.Authenticated{}, client.recv())
	require.IsType(t, &protocol.Ready{}, client.recv())
	require.Equal(t, protocol.NewPresenceUpdate("u1", true), receive(t, observer).Event)
	require.Eventually(t, func() bool {
		return env.gateway.NumSessions() == 1
	}, waitTimeout, 5*time.Millisecond)

	cancel()
	drainCtx, drainCancel := context.WithTimeout(context.Background(), waitTimeout)
	defer drainCancel()
	require.NoError(t, env.gateway.Drain(drainCtx))
	require.Equal(t, 0, env.presence.NumSessions("u1"))
	require.Equal(t, protocol.NewPresenceUpdate("u1", false), receive(t, observer).Event)
	require.NoError(t, client.wait())
}

var errSnapshot = errors.New("snapshot unavailable")

type failingStore struct {
	*store.MemoryStore
}

func (s *failingStore) FetchSnapshot(context.Context, protocol.User, protocol.ReadyFields) (protocol.Snapshot, error) {
	return protocol.Snapshot{}, errSnapshot
}

func TestReadyFetchFailure(t *testing.T) {
	env := newTestEnv(t, nil, Config{})
	env.gateway = New(env.gateway.config, &failingStore{MemoryStore: env.store}, env.presence, env.bus)
	observer := env.observe("u1")

	client := env.connect(protocol.FormatJSON, "abc")
	require.IsType(t, &protocol.Authenticated{}, client.recv())
	require.ErrorIs(t, client.wait(), errSnapshot)
	client.requireSilent()
	requireNoDelivery(t, observer)
	require.Equal(t, 0, env.presence.NumSessions("u1"))
	require.Equal(t, 0, env.gateway.NumSessions())
}

var errBrokenPipe = errors.New("broken pipe")

type brokenConn struct {
	*fakeConn
}

func (c *brokenConn) WriteFrame(codec.Frame) error {
	return errBrokenPipe
}

func TestAuthenticatedWriteFailure(t *testing.T) {
	env := newTestEnv(t, nil, Config{})
	observer := env.observe("u1")

	conn := &brokenConn{fakeConn: newFakeConn()}
	pc := protocol.NewConfiguration(protocol.DefaultVersion, protocol.FormatJSON, "abc")
	err := env.gateway.Serve(context.Background(), conn, pc)
	require.ErrorIs(t, err, errBrokenPipe)
	requireNoDelivery(t, observer)
	require.Equal(t, 0, env.presence.NumSessions("u1"))
	require.Equal(t, 0, env.gateway.NumSessions())
	select {
	case <-conn.closed:
	default:
		require.Fail(t, "connection not closed")
	}
}
