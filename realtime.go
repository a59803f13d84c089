package wazzap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
)

// ============================================================================
// Transport
// ============================================================================

// Transport is one physical realtime connection.
type Transport interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
	Close(code int, reason string) error
}

// Dialer opens transports.
type Dialer interface {
	Dial(ctx context.Context, url string) (Transport, error)
}

// HandshakeError is returned by a Dialer when the server answered the
// upgrade request but refused it.
type HandshakeError struct {
	StatusCode int
	Err        error
}

func (e *HandshakeError) Error() string {
	return fmt.Sprintf("websocket handshake rejected (HTTP %d): %v", e.StatusCode, e.Err)
}

func (e *HandshakeError) Unwrap() error { return e.Err }

// WebSocketDialer dials with nhooyr.io/websocket.
type WebSocketDialer struct {
	HTTPClient *http.Client
	ReadLimit  int64
}

func (d WebSocketDialer) Dial(ctx context.Context, u string) (Transport, error) {
	conn, resp, err := websocket.Dial(ctx, u, &websocket.DialOptions{HTTPClient: d.HTTPClient})
	if err != nil {
		if resp != nil && resp.StatusCode != http.StatusSwitchingProtocols {
			return nil, &HandshakeError{StatusCode: resp.StatusCode, Err: err}
		}
		return nil, fmt.Errorf("websocket dial: %w", err)
	}
	if d.ReadLimit > 0 {
		conn.SetReadLimit(d.ReadLimit)
	}
	return &wsTransport{conn: conn}, nil
}

type wsTransport struct {
	conn *websocket.Conn
}

func (t *wsTransport) Read(ctx context.Context) ([]byte, error) {
	_, data, err := t.conn.Read(ctx)
	return data, err
}

func (t *wsTransport) Write(ctx context.Context, data []byte) error {
	return t.conn.Write(ctx, websocket.MessageText, data)
}

func (t *wsTransport) Close(code int, reason string) error {
	return t.conn.Close(websocket.StatusCode(code), reason)
}

// closeEventFromError turns a read error into a CloseEvent. Errors without a
// close frame count as an abnormal closure.
func closeEventFromError(err error) CloseEvent {
	var ce websocket.CloseError
	if errors.As(err, &ce) {
		return CloseEvent{Code: int(ce.Code), Reason: ce.Reason, Clean: true}
	}
	return CloseEvent{Code: CloseAbnormal, Reason: ""}
}

// BuildConnectURL appends the token and session id to the realtime endpoint.
func BuildConnectURL(base, token, sessionID string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid realtime url: %w", err)
	}
	q := u.Query()
	q.Set("token", token)
	q.Set("session_id", sessionID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ============================================================================
// State
// ============================================================================

// ConnState is the connection state.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateOpen
	StateClosing
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	default:
		return "unknown"
	}
}

// ============================================================================
// Reconnector
// ============================================================================

type reconnector struct {
	baseDelay   time.Duration
	maxDelay    time.Duration
	maxAttempts int
	attempt     int
}

// next counts one more attempt and returns its delay.
func (r *reconnector) next() time.Duration {
	r.attempt++
	return backoffDelay(r.baseDelay, r.maxDelay, r.attempt)
}

func (r *reconnector) reset() {
	r.attempt = 0
}

// backoffDelay returns min(base*2^attempt, ceiling).
func backoffDelay(base, ceiling time.Duration, attempt int) time.Duration {
	d := base
	for i := 0; i < attempt && d < ceiling; i++ {
		d *= 2
	}
	return min(d, ceiling)
}

// ============================================================================
// Connection manager
// ============================================================================

// connManager owns the transport and timers. All methods except State run on
// the client's event loop.
type connManager struct {
	client *Client
	cfg    *Config
	log    zerolog.Logger

	mu    sync.RWMutex
	state ConnState

	transport Transport
	cancel    context.CancelFunc
	gen       uint64
	connID    string
	rejected  bool

	recon          *reconnector
	reconnectSeq   uint64
	reconnectTimer *time.Timer
	heartbeatStop  chan struct{}
}

func newConnManager(c *Client, cfg *Config) *connManager {
	return &connManager{
		client: c,
		cfg:    cfg,
		log:    c.log.With().Str("component", "realtime").Logger(),
		state:  StateDisconnected,
		recon: &reconnector{
			baseDelay:   cfg.ReconnectBaseDelay,
			maxDelay:    cfg.ReconnectMaxDelay,
			maxAttempts: cfg.MaxReconnectAttempts,
		},
	}
}

func (m *connManager) State() ConnState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

func (m *connManager) setState(s ConnState) {
	m.mu.Lock()
	prev := m.state
	m.state = s
	m.mu.Unlock()
	if prev != s {
		setStateMetric(s)
		m.log.Info().Str("conn_id", m.connID).Stringer("from", prev).Stringer("to", s).Msg("state change")
		m.client.dispatcher.emitState(s)
	}
}

func (m *connManager) isOpen() bool {
	return m.State() == StateOpen && m.transport != nil
}

func (m *connManager) connect() {
	if s := m.State(); s != StateDisconnected {
		m.log.Debug().Stringer("state", s).Msg("connect ignored")
		return
	}
	m.reconnectSeq++
	if m.reconnectTimer != nil {
		m.reconnectTimer.Stop()
		m.reconnectTimer = nil
	}
	info := m.client.session.Info()
	if info.Token == "" || info.SessionID == "" {
		m.log.Error().Msg("cannot connect: missing token or session id")
		return
	}
	wsURL, err := BuildConnectURL(m.cfg.WSURL, info.Token, info.SessionID)
	if err != nil {
		m.log.Error().Err(err).Msg("cannot connect")
		return
	}

	m.gen++
	gen := m.gen
	m.connID = uuid.NewString()
	m.rejected = false
	ctx, cancel := context.WithCancel(m.client.ctx)
	m.cancel = cancel
	m.setState(StateConnecting)

	dialer := m.cfg.Dialer
	timeout := m.cfg.HandshakeTimeout
	go func() {
		dialCtx, dialCancel := context.WithTimeout(ctx, timeout)
		defer dialCancel()
		t, err := dialer.Dial(dialCtx, wsURL)
		m.client.post(func() { m.onDial(ctx, gen, t, err) })
	}()
}

func (m *connManager) onDial(ctx context.Context, gen uint64, t Transport, err error) {
	if gen != m.gen {
		if t != nil {
			go t.Close(CloseNormal, "superseded")
		}
		return
	}
	if err != nil {
		var he *HandshakeError
		if errors.As(err, &he) {
			m.rejected = true
		}
		m.log.Warn().Str("conn_id", m.connID).Err(err).Bool("rejected", m.rejected).Msg("connect failed")
		m.onClose(gen, CloseEvent{Code: CloseAbnormal})
		return
	}

	m.transport = t
	m.recon.reset()
	m.setState(StateOpen)
	m.startHeartbeat()

	go m.readLoop(ctx, gen, t)
}

func (m *connManager) readLoop(ctx context.Context, gen uint64, t Transport) {
	for {
		data, err := t.Read(ctx)
		if err != nil {
			ev := closeEventFromError(err)
			m.client.post(func() { m.onClose(gen, ev) })
			return
		}
		m.client.post(func() { m.client.handleFrame(gen, data) })
	}
}

func (m *connManager) onClose(gen uint64, ev CloseEvent) {
	if gen != m.gen {
		return
	}
	m.gen++
	ev.Rejected = ev.Rejected || m.rejected
	connID := m.connID
	m.stopHeartbeat()
	m.transport = nil
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.setState(StateDisconnected)

	class := ClassifyClose(ev, m.recon.attempt, m.recon.maxAttempts)
	incClose(class)
	logEv := m.log.Info()
	if class != CloseClean && class != CloseTransient {
		logEv = m.log.Warn()
	}
	logEv.Str("conn_id", connID).Int("code", ev.Code).Str("reason", ev.Reason).
		Bool("rejected", ev.Rejected).Stringer("class", class).Msg("connection closed")

	switch class {
	case CloseClean:
	case CloseSessionInvalid:
		m.client.invalidateSession(ev)
	case CloseTransient:
		m.scheduleReconnect()
	case CloseTerminal:
		m.log.Error().Int("attempts", m.recon.attempt).Msg("max reconnection attempts reached")
		m.client.dispatcher.emitExhausted()
	}
}

func (m *connManager) scheduleReconnect() {
	delay := m.recon.next()
	attempt := m.recon.attempt
	m.reconnectSeq++
	seq := m.reconnectSeq
	incReconnect()
	m.log.Info().Int("attempt", attempt).Int("max", m.recon.maxAttempts).Dur("delay", delay).Msg("reconnect scheduled")
	m.client.dispatcher.emitReconnecting(attempt, delay)

	m.reconnectTimer = time.AfterFunc(delay, func() {
		m.client.post(func() { m.reconnectFired(seq) })
	})
}

// reconnectFired runs when a reconnect timer expires. A timer that was
// superseded, or that outlived the session, does nothing.
func (m *connManager) reconnectFired(seq uint64) {
	if seq != m.reconnectSeq {
		return
	}
	m.reconnectTimer = nil
	if !m.client.session.IsAuthenticated() {
		m.log.Debug().Msg("reconnect skipped: session gone")
		return
	}
	m.connect()
}

func (m *connManager) disconnect() {
	m.stopHeartbeat()
	m.reconnectSeq++
	if m.reconnectTimer != nil {
		m.reconnectTimer.Stop()
		m.reconnectTimer = nil
	}
	m.gen++

	t, cancel := m.transport, m.cancel
	m.transport, m.cancel = nil, nil
	if t != nil {
		m.setState(StateClosing)
		go func() {
			if err := t.Close(CloseNormal, "User logout"); err != nil {
				m.log.Debug().Err(err).Msg("close")
			}
			if cancel != nil {
				cancel()
			}
		}()
	} else if cancel != nil {
		cancel()
	}
	m.setState(StateDisconnected)
}

// send marshals and writes one frame. It fails with ErrNotConnected unless
// the connection is open.
func (m *connManager) send(frame any) error {
	if !m.isOpen() {
		return ErrNotConnected
	}
	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}
	ctx, cancel := context.WithTimeout(m.client.ctx, m.cfg.WriteTimeout)
	defer cancel()
	if err := m.transport.Write(ctx, data); err != nil {
		m.log.Warn().Str("conn_id", m.connID).Err(err).Msg("write failed")
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// ── Heartbeat ────────────────────────────────────────────

func (m *connManager) startHeartbeat() {
	m.stopHeartbeat()
	stop := make(chan struct{})
	m.heartbeatStop = stop
	interval := m.cfg.HeartbeatInterval

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				m.client.post(func() {
					if m.heartbeatStop != stop || !m.isOpen() {
						return
					}
					if err := m.send(NewPingFrame()); err != nil {
						m.log.Debug().Err(err).Msg("heartbeat failed")
					}
				})
			}
		}
	}()
}

func (m *connManager) stopHeartbeat() {
	if m.heartbeatStop != nil {
		close(m.heartbeatStop)
		m.heartbeatStop = nil
	}
}
