package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/hendrywilliam/tether/src/events"
	"github.com/hendrywilliam/tether/src/metrics"
	"github.com/hendrywilliam/tether/src/structs"
)

const (
	clientName = "tether"

	// The gateway accepts 120 sends per 60 seconds on one connection.
	sendBurst  = 120
	sendWindow = 60 * time.Second

	controlWait = 10 * time.Second
)

// EndpointLocator returns the gateway URL to dial.
type EndpointLocator interface {
	GetGateway(ctx context.Context) (structs.GatewayResponse, error)
}

// Publisher receives every classified dispatch event.
type Publisher interface {
	Publish(ctx context.Context, event events.Event)
}

type Ticker interface {
	C() <-chan time.Time
	Reset(d time.Duration)
	Stop()
}

type TickerFunc func(d time.Duration) Ticker

type timeTicker struct{ t *time.Ticker }

func newTimeTicker(d time.Duration) Ticker { return timeTicker{t: time.NewTicker(d)} }

func (t timeTicker) C() <-chan time.Time   { return t.t.C }
func (t timeTicker) Reset(d time.Duration) { t.t.Reset(d) }
func (t timeTicker) Stop()                 { t.t.Stop() }

type SessionArguments struct {
	BotToken  string
	Intents   Intents
	Locator   EndpointLocator
	Publisher Publisher

	Dialer    *websocket.Dialer
	NewTicker TickerFunc
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
}

// Session drives a single gateway connection. It never reconnects: once
// Connect returns the session is Closed and a new Session is needed.
type Session struct {
	id        string
	botToken  string
	intents   Intents
	locator   EndpointLocator
	publisher Publisher
	dialer    *websocket.Dialer
	newTicker TickerFunc
	limiter   *rate.Limiter
	log       *slog.Logger
	metrics   *metrics.Metrics

	mu                sync.RWMutex
	state             State
	sequence          int64
	hasSequence       bool
	heartbeatInterval time.Duration
	lastHeartbeatSent time.Time
	lastHeartbeatAck  time.Time
	readySessionID    string
	resumeGatewayURL  string
	closeErr          error

	// writeMu is the single writer path for conn.
	writeMu sync.Mutex
	conn    *websocket.Conn

	// owned by the Connect goroutine
	ticker Ticker
}

type frame struct {
	messageType int
	data        []byte
	ping        bool
	err         error
}

// Status is a point-in-time snapshot of a Session.
type Status struct {
	ID                  string     `json:"id"`
	State               string     `json:"state"`
	Sequence            *int64     `json:"sequence"`
	HeartbeatIntervalMS int64      `json:"heartbeat_interval_ms"`
	LastHeartbeatSent   *time.Time `json:"last_heartbeat_sent,omitempty"`
	LastHeartbeatAck    *time.Time `json:"last_heartbeat_ack,omitempty"`
	SessionID           string     `json:"session_id,omitempty"`
	ResumeGatewayURL    string     `json:"resume_gateway_url,omitempty"`
	CloseError          string     `json:"close_error,omitempty"`
}

func NewSession(args SessionArguments) *Session {
	s := &Session{
		id:        uuid.NewString(),
		botToken:  args.BotToken,
		intents:   args.Intents,
		locator:   args.Locator,
		publisher: args.Publisher,
		dialer:    args.Dialer,
		newTicker: args.NewTicker,
		limiter:   rate.NewLimiter(rate.Every(sendWindow/sendBurst), sendBurst),
		log:       args.Logger,
		metrics:   args.Metrics,
		state:     StateDisconnected,
	}
	if s.dialer == nil {
		s.dialer = websocket.DefaultDialer
	}
	if s.newTicker == nil {
		s.newTicker = newTimeTicker
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	s.log = s.log.With("session_id", s.id)
	s.metrics.SetState(s.state.String(), stateNames)
	return s
}

// Connect discovers the gateway, opens the socket and runs the session loop
// until the server closes the socket, a fatal frame arrives, I/O fails or ctx
// is done. A server Close frame ends the loop with a nil error; its code is
// available from CloseError.
func (s *Session) Connect(ctx context.Context) error {
	if err := s.transition(StateConnecting); err != nil {
		return ErrSessionStarted
	}
	s.log.Info("connecting to gateway...")

	conn, err := s.open(ctx)
	if err != nil {
		s.log.Error("failed to open gateway socket", "error", err)
		_ = s.transition(StateClosed)
		return err
	}
	s.writeMu.Lock()
	s.conn = conn
	s.writeMu.Unlock()
	if err := s.transition(StateAwaitingHello); err != nil {
		conn.Close()
		return err
	}
	s.log.Info("gateway socket open")
	s.publish(ctx, events.Init{})

	err = s.run(ctx, conn)

	s.beginClose()
	if s.ticker != nil {
		s.ticker.Stop()
	}
	s.writeMu.Lock()
	s.conn = nil
	s.writeMu.Unlock()
	conn.Close()
	_ = s.transition(StateClosed)

	if err != nil && !errors.Is(err, context.Canceled) {
		s.log.Error("gateway session ended", "error", err)
	} else {
		s.log.Info("gateway session closed")
	}
	return err
}

func (s *Session) open(ctx context.Context) (*websocket.Conn, error) {
	if s.locator == nil {
		return nil, errors.New("gateway: no endpoint locator")
	}
	res, err := s.locator.GetGateway(ctx)
	if err != nil {
		return nil, fmt.Errorf("discover gateway endpoint: %w", err)
	}
	endpoint, err := gatewayURL(res.URL)
	if err != nil {
		return nil, err
	}
	conn, _, err := s.dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("dial gateway: %w", err)
	}
	return conn, nil
}

// gatewayURL adds the protocol version and encoding query to the discovered URL.
func gatewayURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid gateway url %q: %w", raw, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid gateway url %q", raw)
	}
	q := u.Query()
	q.Set("v", strconv.Itoa(Version))
	q.Set("encoding", Encoding)
	q.Set("compress", "false")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (s *Session) run(ctx context.Context, conn *websocket.Conn) error {
	frames := make(chan frame)
	done := make(chan struct{})
	defer close(done)

	// Pings are answered by the loop so the pong goes through the writer path.
	conn.SetPingHandler(func(data string) error {
		select {
		case frames <- frame{ping: true, data: []byte(data)}:
		case <-done:
		}
		return nil
	})
	go readFrames(conn, frames, done)

	for {
		var tick <-chan time.Time
		if s.ticker != nil {
			tick = s.ticker.C()
		}
		select {
		case <-ctx.Done():
			s.beginClose()
			s.writeClose(websocket.CloseNormalClosure, "")
			return ctx.Err()
		case <-tick:
			if err := s.heartbeat(ctx); err != nil {
				return err
			}
		case f := <-frames:
			stop, err := s.handleFrame(ctx, f)
			if stop || err != nil {
				return err
			}
		}
	}
}

func readFrames(conn *websocket.Conn, frames chan<- frame, done <-chan struct{}) {
	for {
		messageType, data, err := conn.ReadMessage()
		select {
		case frames <- frame{messageType: messageType, data: data, err: err}:
		case <-done:
			return
		}
		if err != nil {
			return
		}
	}
}

// handleFrame reports stop when the loop must end; err is nil for a clean close.
func (s *Session) handleFrame(ctx context.Context, f frame) (stop bool, err error) {
	switch {
	case f.ping:
		return false, s.pong(f.data)
	case f.err != nil:
		var closeErr *websocket.CloseError
		if errors.As(f.err, &closeErr) {
			s.onClose(closeErr)
			return true, nil
		}
		return true, fmt.Errorf("read gateway frame: %w", f.err)
	case f.messageType != websocket.TextMessage:
		s.log.Warn("ignoring non-text gateway frame", "message_type", f.messageType)
		return false, nil
	}

	env, err := DecodeEnvelope(f.data)
	if err != nil {
		return true, &ProtocolError{Err: err}
	}
	return false, s.handleEnvelope(ctx, env)
}

func (s *Session) handleEnvelope(ctx context.Context, env Envelope) error {
	s.metrics.ObserveFrame("in", int(env.Op))
	s.log.Debug("gateway event received", "event", env)

	if s.State() == StateAwaitingHello && env.Op != OpcodeHello {
		s.log.Warn("ignoring event received before hello", "event", env)
		return nil
	}
	if seq, ok := env.Sequence(); ok {
		s.observeSequence(seq)
	}

	switch env.Op {
	case OpcodeHello:
		return s.onHello(ctx, env)
	case OpcodeHeartbeat:
		s.log.Debug("server requested a heartbeat")
		return s.heartbeat(ctx)
	case OpcodeHeartbeatAck:
		s.mu.Lock()
		s.lastHeartbeatAck = time.Now()
		s.mu.Unlock()
		s.log.Debug("heartbeat acknowledged")
	case OpcodeDispatch:
		s.onDispatch(ctx, env)
	case OpcodeInvalidSession:
		s.log.Warn("gateway reported an invalid session", "resumable", string(env.D))
	case OpcodeReconnect:
		s.log.Warn("gateway requested a reconnect")
	default:
		s.log.Warn("unhandled gateway opcode", "event", env)
	}
	return nil
}

func (s *Session) onHello(ctx context.Context, env Envelope) error {
	var hello structs.HelloEvent
	if err := env.DecodePayload(&hello); err != nil {
		return &ProtocolError{Op: env.Op, Err: fmt.Errorf("decode hello: %w", err)}
	}
	if hello.HeartbeatInterval == 0 {
		return &ProtocolError{Op: env.Op, Err: errors.New("hello without heartbeat interval")}
	}
	interval := time.Duration(hello.HeartbeatInterval) * time.Millisecond
	s.mu.Lock()
	s.heartbeatInterval = interval
	s.mu.Unlock()

	if s.ticker != nil {
		s.ticker.Reset(interval)
		s.log.Info("heartbeat interval updated", "heartbeat_interval", interval.String())
		return nil
	}

	s.ticker = s.newTicker(interval)
	s.log.Info("hello received", "heartbeat_interval", interval.String())
	if err := s.transition(StateIdentifying); err != nil {
		return err
	}
	if err := s.identify(ctx); err != nil {
		return err
	}
	return s.transition(StateConnected)
}

func (s *Session) identify(ctx context.Context) error {
	env, err := NewEnvelope(OpcodeIdentify, structs.IdentifyEvent{
		Token:   s.botToken,
		Intents: s.intents,
		Properties: structs.IdentifyEventProperties{
			Os:      runtime.GOOS,
			Browser: clientName,
			Device:  clientName,
		},
		V: Version,
	})
	if err != nil {
		return err
	}
	if err := s.write(ctx, env); err != nil {
		return fmt.Errorf("failed to send identify event: %w", err)
	}
	s.log.Info("identify event sent", "intents", IntentNames(s.intents))
	return nil
}

func (s *Session) heartbeat(ctx context.Context) error {
	var seq *int64
	s.mu.RLock()
	if s.hasSequence {
		v := s.sequence
		seq = &v
	}
	s.mu.RUnlock()

	env, err := NewEnvelope(OpcodeHeartbeat, seq)
	if err != nil {
		return err
	}
	if err := s.write(ctx, env); err != nil {
		return fmt.Errorf("failed to send heartbeat event: %w", err)
	}
	s.mu.Lock()
	s.lastHeartbeatSent = time.Now()
	s.mu.Unlock()
	s.metrics.ObserveHeartbeat()
	s.log.Debug("gateway heartbeat event sent", "sequence", string(env.D))
	return nil
}

func (s *Session) onDispatch(ctx context.Context, env Envelope) {
	name, ok := env.EventName()
	if !ok {
		s.log.Warn("dispatch without event name", "event", env)
		return
	}
	s.metrics.ObserveDispatch(name)

	ev, err := events.Decode(name, env.D)
	if err != nil {
		s.log.Warn("failed to decode dispatch payload", "event", env, "error", err)
		return
	}
	switch e := ev.(type) {
	case events.Unrecognized:
		s.log.Debug("dropping unrecognized dispatch", "event_name", e.Name)
		return
	case events.Ready:
		s.mu.Lock()
		s.readySessionID = e.Ready.SessionID
		s.resumeGatewayURL = e.Ready.ResumeGatewayURL
		s.mu.Unlock()
		s.log.Info("gateway is ready", "user", e.Ready.User.Username, "ready_session_id", e.Ready.SessionID)
	}
	s.publish(ctx, ev)
}

func (s *Session) onClose(ce *websocket.CloseError) {
	s.log.Info("gateway closed by server", "code", ce.Code, "reason", ce.Text)
	if ce.Code == websocket.CloseNormalClosure || ce.Code == websocket.CloseNoStatusReceived {
		return
	}
	s.mu.Lock()
	s.closeErr = &CloseEventError{Code: ce.Code, Reason: ce.Text}
	s.mu.Unlock()
}

// observeSequence keeps the highest sequence seen.
func (s *Session) observeSequence(seq int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hasSequence && seq < s.sequence {
		s.log.Warn("ignoring sequence regression", "sequence", s.sequence, "received", seq)
		return
	}
	s.sequence = seq
	s.hasSequence = true
}

func (s *Session) publish(ctx context.Context, ev events.Event) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(ctx, ev)
}

// Send writes an application envelope. It is only allowed while Connected.
func (s *Session) Send(ctx context.Context, op Opcode, payload any) error {
	if s.State() != StateConnected {
		return ErrNotConnected
	}
	env, err := NewEnvelope(op, payload)
	if err != nil {
		return err
	}
	return s.write(ctx, env)
}

func (s *Session) write(ctx context.Context, env Envelope) error {
	data, err := EncodeEnvelope(env)
	if err != nil {
		return err
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("gateway send budget: %w", err)
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.conn == nil {
		return ErrNotConnected
	}
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return err
	}
	s.metrics.ObserveFrame("out", int(env.Op))
	return nil
}

func (s *Session) pong(data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.conn == nil {
		return ErrNotConnected
	}
	err := s.conn.WriteControl(websocket.PongMessage, data, time.Now().Add(controlWait))
	if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		return fmt.Errorf("failed to send pong: %w", err)
	}
	s.log.Debug("pong sent")
	return nil
}

func (s *Session) writeClose(code int, text string) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.conn == nil {
		return
	}
	msg := websocket.FormatCloseMessage(code, text)
	if err := s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(controlWait)); err != nil {
		s.log.Warn("failed to send close frame", "error", err)
	}
}

func (s *Session) beginClose() {
	if s.State() != StateClosing {
		_ = s.transition(StateClosing)
	}
}

func (s *Session) transition(to State) error {
	s.mu.Lock()
	from := s.state
	if !from.canTransition(to) {
		s.mu.Unlock()
		return fmt.Errorf("invalid session transition %s -> %s", from, to)
	}
	s.state = to
	s.mu.Unlock()

	s.metrics.SetState(to.String(), stateNames)
	s.log.Debug("session state changed", "from", from.String(), "to", to.String())
	return nil
}

func (s *Session) ID() string { return s.id }

func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Sequence returns the last sequence number seen, if any.
func (s *Session) Sequence() (int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sequence, s.hasSequence
}

func (s *Session) HeartbeatInterval() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.heartbeatInterval
}

func (s *Session) LastHeartbeatAck() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastHeartbeatAck
}

// CloseError returns the server close reason when it was not a normal closure.
func (s *Session) CloseError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closeErr
}

func (s *Session) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := Status{
		ID:                  s.id,
		State:               s.state.String(),
		HeartbeatIntervalMS: s.heartbeatInterval.Milliseconds(),
		SessionID:           s.readySessionID,
		ResumeGatewayURL:    s.resumeGatewayURL,
	}
	if s.hasSequence {
		seq := s.sequence
		st.Sequence = &seq
	}
	if !s.lastHeartbeatSent.IsZero() {
		t := s.lastHeartbeatSent
		st.LastHeartbeatSent = &t
	}
	if !s.lastHeartbeatAck.IsZero() {
		t := s.lastHeartbeatAck
		st.LastHeartbeatAck = &t
	}
	if s.closeErr != nil {
		st.CloseError = s.closeErr.Error()
	}
	return st
}
