package gateway

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hendrywilliam/tether/src/events"
	"github.com/hendrywilliam/tether/src/structs"
)

const waitTimeout = 2 * time.Second

const helloFrame = `{"op":10,"d":{"heartbeat_interval":41250},"s":null,"t":null}`

type staticLocator struct {
	url string
	err error
}

func (l staticLocator) GetGateway(context.Context) (structs.GatewayResponse, error) {
	return structs.GatewayResponse{URL: l.url}, l.err
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *recordingPublisher) kinds() []events.Kind {
	p.mu.Lock()
	defer p.mu.Unlock()
	kinds := make([]events.Kind, 0, len(p.events))
	for _, ev := range p.events {
		kinds = append(kinds, ev.Kind())
	}
	return kinds
}

// manualTicker fires only when the test calls tick.
type manualTicker struct {
	ch chan time.Time

	mu        sync.Mutex
	intervals []time.Duration
	stopped   bool
}

func newManualTicker() *manualTicker {
	return &manualTicker{ch: make(chan time.Time)}
}

func (m *manualTicker) factory(d time.Duration) Ticker {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.intervals = append(m.intervals, d)
	return m
}

func (m *manualTicker) C() <-chan time.Time { return m.ch }

func (m *manualTicker) Reset(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.intervals = append(m.intervals, d)
}

func (m *manualTicker) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
}

func (m *manualTicker) recorded() []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]time.Duration(nil), m.intervals...)
}

func (m *manualTicker) isStopped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopped
}

func (m *manualTicker) tick(t *testing.T) {
	t.Helper()
	select {
	case m.ch <- time.Now():
	case <-time.After(waitTimeout):
		t.Fatal("session loop did not take the tick")
	}
}

// fakeGateway upgrades every request and hands the server side of the socket
// to the test.
type fakeGateway struct {
	server  *httptest.Server
	conns   chan *websocket.Conn
	queries chan url.Values
}

func newFakeGateway(t *testing.T) *fakeGateway {
	fg := &fakeGateway{
		conns:   make(chan *websocket.Conn, 1),
		queries: make(chan url.Values, 1),
	}
	upgrader := websocket.Upgrader{}
	fg.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fg.queries <- r.URL.Query()
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		fg.conns <- conn
	}))
	t.Cleanup(fg.server.Close)
	return fg
}

func (fg *fakeGateway) url() string {
	return "ws" + strings.TrimPrefix(fg.server.URL, "http")
}

func (fg *fakeGateway) accept(t *testing.T) *peer {
	t.Helper()
	select {
	case conn := <-fg.conns:
		return newPeer(t, conn)
	case <-time.After(waitTimeout):
		t.Fatal("session never dialed the gateway")
		return nil
	}
}

// peer is the server end of one session socket.
type peer struct {
	t       *testing.T
	conn    *websocket.Conn
	frames  chan []byte
	pongs   chan []byte
	readErr chan error
}

func newPeer(t *testing.T, conn *websocket.Conn) *peer {
	p := &peer{
		t:       t,
		conn:    conn,
		frames:  make(chan []byte, 16),
		pongs:   make(chan []byte, 16),
		readErr: make(chan error, 1),
	}
	conn.SetPongHandler(func(data string) error {
		p.pongs <- []byte(data)
		return nil
	})
	go func() {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				p.readErr <- err
				return
			}
			p.frames <- data
		}
	}()
	t.Cleanup(func() { conn.Close() })
	return p
}

func (p *peer) send(raw string) {
	p.t.Helper()
	require.NoError(p.t, p.conn.WriteMessage(websocket.TextMessage, []byte(raw)))
}

func (p *peer) next() Envelope {
	p.t.Helper()
	select {
	case data := <-p.frames:
		env, err := DecodeEnvelope(data)
		require.NoError(p.t, err)
		return env
	case <-time.After(waitTimeout):
		p.t.Fatal("no frame from session")
		return Envelope{}
	}
}

func (p *peer) expectSilence(d time.Duration) {
	p.t.Helper()
	select {
	case data := <-p.frames:
		p.t.Fatalf("unexpected frame from session: %s", data)
	case <-time.After(d):
	}
}

func (p *peer) closeWith(code int, reason string) {
	p.t.Helper()
	msg := websocket.FormatCloseMessage(code, reason)
	require.NoError(p.t, p.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)))
}

type harness struct {
	session   *Session
	ticker    *manualTicker
	publisher *recordingPublisher
	gateway   *fakeGateway
	errc      chan error
	cancel    context.CancelFunc
}

func startSession(t *testing.T) (*harness, *peer) {
	t.Helper()
	h := &harness{
		ticker:    newManualTicker(),
		publisher: &recordingPublisher{},
		gateway:   newFakeGateway(t),
		errc:      make(chan error, 1),
	}
	h.session = NewSession(SessionArguments{
		BotToken:  "secret-token",
		Intents:   IntentGuilds | IntentGuildMessages,
		Locator:   staticLocator{url: h.gateway.url()},
		Publisher: h.publisher,
		NewTicker: h.ticker.factory,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	t.Cleanup(cancel)
	go func() { h.errc <- h.session.Connect(ctx) }()
	return h, h.gateway.accept(t)
}

// handshake sends Hello and consumes the Identify it triggers.
func (h *harness) handshake(t *testing.T, p *peer) Envelope {
	t.Helper()
	p.send(helloFrame)
	identify := p.next()
	require.Equal(t, OpcodeIdentify, identify.Op)
	require.Eventually(t, func() bool { return h.session.State() == StateConnected }, waitTimeout, 5*time.Millisecond)
	return identify
}

func (h *harness) wait(t *testing.T) error {
	t.Helper()
	select {
	case err := <-h.errc:
		return err
	case <-time.After(waitTimeout):
		t.Fatal("Connect did not return")
		return nil
	}
}

func heartbeatPayload(t *testing.T, env Envelope) string {
	t.Helper()
	require.Equal(t, OpcodeHeartbeat, env.Op)
	return string(env.D)
}

func TestSessionHandshakeAndHeartbeats(t *testing.T) {
	h, p := startSession(t)

	query := <-h.gateway.queries
	assert.Equal(t, "9", query.Get("v"))
	assert.Equal(t, "json", query.Get("encoding"))
	assert.Equal(t, "false", query.Get("compress"))
	require.Eventually(t, func() bool { return h.session.State() == StateAwaitingHello }, waitTimeout, 5*time.Millisecond)

	identify := h.handshake(t, p)
	var payload structs.IdentifyEvent
	require.NoError(t, identify.DecodePayload(&payload))
	assert.Equal(t, "secret-token", payload.Token)
	assert.Equal(t, IntentGuilds|IntentGuildMessages, payload.Intents)
	assert.Equal(t, 9, payload.V)
	assert.Equal(t, "tether", payload.Properties.Browser)
	assert.NotEmpty(t, payload.Properties.Os)

	assert.Equal(t, []time.Duration{41250 * time.Millisecond}, h.ticker.recorded())
	assert.Equal(t, 41250*time.Millisecond, h.session.HeartbeatInterval())
	p.expectSilence(50 * time.Millisecond)

	h.ticker.tick(t)
	assert.Equal(t, "null", heartbeatPayload(t, p.next()))

	p.send(`{"op":11}`)
	require.Eventually(t, func() bool { return !h.session.LastHeartbeatAck().IsZero() }, waitTimeout, 5*time.Millisecond)

	for i := 0; i < 3; i++ {
		h.ticker.tick(t)
		assert.Equal(t, "null", heartbeatPayload(t, p.next()))
	}

	p.closeWith(websocket.CloseNormalClosure, "bye")
	require.NoError(t, h.wait(t))
	assert.Equal(t, StateClosed, h.session.State())
	assert.NoError(t, h.session.CloseError())
	assert.True(t, h.ticker.isStopped())

	select {
	case data := <-p.frames:
		t.Fatalf("frame after close: %s", data)
	case err := <-p.readErr:
		var closeErr *websocket.CloseError
		assert.ErrorAs(t, err, &closeErr)
	case <-time.After(waitTimeout):
		t.Fatal("session socket was not closed")
	}
}

func TestSessionTracksSequenceAndDispatches(t *testing.T) {
	h, p := startSession(t)
	h.handshake(t, p)

	p.send(`{"op":0,"s":1,"t":"READY","d":{"v":9,"user":{"id":"1","username":"bot"},"session_id":"abc","resume_gateway_url":"wss://resume"}}`)
	p.send(`{"op":0,"s":2,"t":"MESSAGE_CREATE","d":{"id":"10","channel_id":"20","content":"hello"}}`)
	p.send(`{"op":0,"s":3,"t":"TYPING_START","d":{"user_id":"1"}}`)
	p.send(`{"op":0,"s":4,"t":"CHANNEL_DELETE","d":{"id":"20","type":0,"name":"general"}}`)

	require.Eventually(t, func() bool {
		seq, ok := h.session.Sequence()
		return ok && seq == 4
	}, waitTimeout, 5*time.Millisecond)

	h.ticker.tick(t)
	assert.Equal(t, "4", heartbeatPayload(t, p.next()))

	assert.Equal(t, []events.Kind{
		events.KindInit,
		events.KindReady,
		events.KindMessageCreated,
		events.KindChannelDeleted,
	}, h.publisher.kinds())

	h.publisher.mu.Lock()
	created := h.publisher.events[2].(events.MessageCreated)
	h.publisher.mu.Unlock()
	assert.Equal(t, "hello", created.Message.Content)

	status := h.session.Status()
	assert.Equal(t, "connected", status.State)
	assert.Equal(t, "abc", status.SessionID)
	require.NotNil(t, status.Sequence)
	assert.Equal(t, int64(4), *status.Sequence)
}

func TestSessionKeepsHighestSequence(t *testing.T) {
	h, p := startSession(t)
	h.handshake(t, p)

	p.send(`{"op":0,"s":5,"t":"TYPING_START","d":{}}`)
	p.send(`{"op":0,"s":3,"t":"TYPING_START","d":{}}`)
	p.send(`{"op":1,"d":null}`)
	assert.Equal(t, "5", heartbeatPayload(t, p.next()))
}

func TestSessionDropsUndecodableDispatch(t *testing.T) {
	h, p := startSession(t)
	h.handshake(t, p)

	p.send(`{"op":0,"s":1,"t":"MESSAGE_CREATE","d":{"id":17}}`)
	p.send(`{"op":1,"d":null}`)
	assert.Equal(t, "1", heartbeatPayload(t, p.next()))
	assert.Equal(t, []events.Kind{events.KindInit}, h.publisher.kinds())
	assert.Equal(t, StateConnected, h.session.State())
}

func TestSessionAnswersPingWithMatchingPong(t *testing.T) {
	h, p := startSession(t)
	h.handshake(t, p)
	before := h.session.Status()

	require.NoError(t, p.conn.WriteControl(websocket.PingMessage, []byte{1, 2, 3}, time.Now().Add(time.Second)))

	select {
	case got := <-p.pongs:
		assert.Equal(t, []byte{1, 2, 3}, got)
	case <-time.After(waitTimeout):
		t.Fatal("no pong")
	}
	p.expectSilence(50 * time.Millisecond)
	assert.Empty(t, p.pongs)
	assert.Equal(t, before, h.session.Status())
}

func TestSessionIgnoresFramesBeforeHello(t *testing.T) {
	h, p := startSession(t)

	p.send(`{"op":11}`)
	p.send(`{"op":0,"s":9,"t":"MESSAGE_CREATE","d":{"id":"1"}}`)
	p.expectSilence(50 * time.Millisecond)
	_, hasSeq := h.session.Sequence()
	assert.False(t, hasSeq)
	assert.Equal(t, StateAwaitingHello, h.session.State())

	h.handshake(t, p)
	assert.Equal(t, []events.Kind{events.KindInit}, h.publisher.kinds())
}

func TestSessionSecondHelloOnlyResetsTimer(t *testing.T) {
	h, p := startSession(t)
	h.handshake(t, p)

	p.send(`{"op":10,"d":{"heartbeat_interval":1000}}`)
	p.expectSilence(50 * time.Millisecond)
	require.Eventually(t, func() bool { return h.session.HeartbeatInterval() == time.Second }, waitTimeout, 5*time.Millisecond)
	assert.Equal(t, []time.Duration{41250 * time.Millisecond, time.Second}, h.ticker.recorded())
}

func TestSessionServerHeartbeatRequest(t *testing.T) {
	h, p := startSession(t)
	h.handshake(t, p)

	p.send(`{"op":1,"d":null}`)
	assert.Equal(t, "null", heartbeatPayload(t, p.next()))
}

func TestSessionInformativeOpsKeepConnection(t *testing.T) {
	h, p := startSession(t)
	h.handshake(t, p)

	p.send(`{"op":9,"d":false}`)
	p.send(`{"op":7,"d":null}`)
	p.send(`{"op":42,"d":{}}`)
	p.send(`{"op":1,"d":null}`)
	heartbeatPayload(t, p.next())
	assert.Equal(t, StateConnected, h.session.State())
}

func TestSessionMalformedFrameIsFatal(t *testing.T) {
	h, p := startSession(t)
	h.handshake(t, p)

	p.send(`{"d":"no op"}`)
	err := h.wait(t)
	var protoErr *ProtocolError
	require.ErrorAs(t, err, &protoErr)
	assert.ErrorIs(t, err, ErrMalformedEnvelope)
	assert.Equal(t, StateClosed, h.session.State())
}

func TestSessionBadHelloIsFatal(t *testing.T) {
	h, p := startSession(t)
	p.send(`{"op":10,"d":{"heartbeat_interval":0}}`)
	var protoErr *ProtocolError
	require.ErrorAs(t, h.wait(t), &protoErr)
	assert.Equal(t, OpcodeHello, protoErr.Op)
}

func TestSessionCloseCodeIsExposed(t *testing.T) {
	h, p := startSession(t)
	h.handshake(t, p)

	p.closeWith(AuthenticationFailed, "Authentication failed.")
	require.NoError(t, h.wait(t))
	err := h.session.CloseError()
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
	var closeErr *CloseEventError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, 4004, closeErr.Code)
	assert.Equal(t, err.Error(), h.session.Status().CloseError)
}

func TestSessionCancelSendsNormalClosure(t *testing.T) {
	h, p := startSession(t)
	h.handshake(t, p)

	h.cancel()
	assert.ErrorIs(t, h.wait(t), context.Canceled)
	assert.Equal(t, StateClosed, h.session.State())

	select {
	case err := <-p.readErr:
		assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), err)
	case <-time.After(waitTimeout):
		t.Fatal("no close frame")
	}
}

func TestSessionSend(t *testing.T) {
	h, p := startSession(t)
	require.ErrorIs(t, h.session.Send(context.Background(), OpcodePresenceUpdate, nil), ErrNotConnected)

	h.handshake(t, p)
	presence := map[string]any{"status": "online", "afk": false}
	require.NoError(t, h.session.Send(context.Background(), OpcodePresenceUpdate, presence))
	env := p.next()
	assert.Equal(t, OpcodePresenceUpdate, env.Op)
	assert.JSONEq(t, `{"status":"online","afk":false}`, string(env.D))
}

func TestSessionConcurrentWritersShareOneSocket(t *testing.T) {
	const (
		senders   = 4
		perSender = 10
		ticks     = 5
		pings     = 5
	)
	h, p := startSession(t)
	h.handshake(t, p)

	want := senders*perSender + ticks
	collected := make(chan [][]byte, 1)
	go func() {
		var frames [][]byte
		timeout := time.After(waitTimeout)
		for len(frames) < want {
			select {
			case data := <-p.frames:
				frames = append(frames, data)
			case <-timeout:
				collected <- frames
				return
			}
		}
		collected <- frames
	}()

	var wg sync.WaitGroup
	sendErrs := make(chan error, senders*perSender)
	for i := 0; i < senders; i++ {
		wg.Add(1)
		go func(sender int) {
			defer wg.Done()
			for j := 0; j < perSender; j++ {
				payload := map[string]int{"sender": sender, "n": j}
				sendErrs <- h.session.Send(context.Background(), OpcodePresenceUpdate, payload)
			}
		}(i)
	}
	for i := 0; i < ticks; i++ {
		h.ticker.tick(t)
	}
	for i := 0; i < pings; i++ {
		require.NoError(t, p.conn.WriteControl(websocket.PingMessage, []byte{byte(i)}, time.Now().Add(time.Second)))
	}
	wg.Wait()
	close(sendErrs)
	for err := range sendErrs {
		require.NoError(t, err)
	}

	frames := <-collected
	require.Len(t, frames, want)
	counts := map[Opcode]int{}
	seen := map[[2]int]bool{}
	for _, data := range frames {
		env, err := DecodeEnvelope(data)
		require.NoError(t, err, string(data))
		counts[env.Op]++
		if env.Op == OpcodePresenceUpdate {
			var payload struct {
				Sender int `json:"sender"`
				N      int `json:"n"`
			}
			require.NoError(t, env.DecodePayload(&payload))
			seen[[2]int{payload.Sender, payload.N}] = true
		}
	}
	assert.Equal(t, senders*perSender, counts[OpcodePresenceUpdate])
	assert.Equal(t, ticks, counts[OpcodeHeartbeat])
	assert.Len(t, seen, senders*perSender)

	for i := 0; i < pings; i++ {
		select {
		case data := <-p.pongs:
			assert.Len(t, data, 1)
		case <-time.After(waitTimeout):
			t.Fatalf("missing pong %d", i)
		}
	}

	p.closeWith(websocket.CloseNormalClosure, "bye")
	require.NoError(t, h.wait(t))
	assert.Equal(t, StateClosed, h.session.State())
}

func TestSessionConnectOnce(t *testing.T) {
	h, p := startSession(t)
	h.handshake(t, p)
	assert.ErrorIs(t, h.session.Connect(context.Background()), ErrSessionStarted)
}

func TestSessionDiscoveryFailure(t *testing.T) {
	s := NewSession(SessionArguments{
		Locator: staticLocator{err: errors.New("rate limited forever")},
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	err := s.Connect(context.Background())
	assert.ErrorContains(t, err, "rate limited forever")
	assert.Equal(t, StateClosed, s.State())
}

func TestGatewayURL(t *testing.T) {
	got, err := gatewayURL("wss://gateway.discord.gg")
	require.NoError(t, err)
	assert.Equal(t, "wss://gateway.discord.gg?compress=false&encoding=json&v=9", got)

	_, err = gatewayURL("gateway.discord.gg")
	assert.Error(t, err)
}

func TestStateTransitions(t *testing.T) {
	assert.True(t, StateDisconnected.canTransition(StateConnecting))
	assert.True(t, StateConnecting.canTransition(StateClosed))
	assert.True(t, StateConnected.canTransition(StateClosing))
	assert.False(t, StateDisconnected.canTransition(StateConnected))
	assert.False(t, StateAwaitingHello.canTransition(StateConnected))
	assert.False(t, StateConnected.canTransition(StateClosed))
	assert.False(t, StateClosed.canTransition(StateConnecting))
	assert.Equal(t, "awaiting_hello", StateAwaitingHello.String())
}
