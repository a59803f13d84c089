// Package wazzap is the realtime synchronization core of the Wazzap chat
// client.
//
// A Client owns one realtime connection, the local message store and the
// chat index. Inbound frames, timer callbacks and REST reload results are
// all applied on a single event loop, so stores are never mutated
// concurrently.
//
// Example:
//
//	session := wazzap.NewSession(wazzap.NewFileCredentialStore(path, "auth"))
//	session.Restore()
//	api := wazzap.NewAPIClient(wazzap.WithBaseURL(apiURL), wazzap.WithSession(session))
//
//	client := wazzap.New(wazzap.Config{WSURL: wsURL}, session, api)
//	defer client.Close()
//
//	client.OnSessionInvalid(func(wazzap.CloseEvent) { /* ask for login */ })
//	client.LoadChats(ctx)
//	client.Connect()
package wazzap

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ============================================================================
// Configuration
// ============================================================================

const DefaultWSURL = "ws://localhost:8000/api/ws"

// Config configures a Client.
type Config struct {
	WSURL                string
	HeartbeatInterval    time.Duration
	MaxReconnectAttempts int
	ReconnectBaseDelay   time.Duration
	ReconnectMaxDelay    time.Duration
	HandshakeTimeout     time.Duration
	WriteTimeout         time.Duration
	Dialer               Dialer
	Notifier             Notifier
	Logger               *zerolog.Logger
}

func (c *Config) defaults() {
	if c.WSURL == "" {
		c.WSURL = DefaultWSURL
	}
	if c.HeartbeatInterval == 0 {
		c.HeartbeatInterval = 30 * time.Second
	}
	if c.MaxReconnectAttempts == 0 {
		c.MaxReconnectAttempts = 5
	}
	if c.ReconnectBaseDelay == 0 {
		c.ReconnectBaseDelay = 1 * time.Second
	}
	if c.ReconnectMaxDelay == 0 {
		c.ReconnectMaxDelay = 30 * time.Second
	}
	if c.HandshakeTimeout == 0 {
		c.HandshakeTimeout = 10 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 5 * time.Second
	}
	if c.Dialer == nil {
		c.Dialer = WebSocketDialer{}
	}
	if c.Logger == nil {
		l := zerolog.Nop()
		c.Logger = &l
	}
}

// ============================================================================
// Meta-event dispatcher
// ============================================================================

type eventDispatcher struct {
	mu               sync.RWMutex
	onEvent          []func(Event)
	onState          []func(ConnState)
	onSessionInvalid []func(CloseEvent)
	onReconnecting   []func(int, time.Duration)
	onExhausted      []func()
}

func (d *eventDispatcher) emitEvent(ev Event) {
	d.mu.RLock()
	handlers := append([]func(Event){}, d.onEvent...)
	d.mu.RUnlock()
	for _, h := range handlers {
		go h(ev)
	}
}

func (d *eventDispatcher) emitState(s ConnState) {
	d.mu.RLock()
	handlers := append([]func(ConnState){}, d.onState...)
	d.mu.RUnlock()
	for _, h := range handlers {
		go h(s)
	}
}

func (d *eventDispatcher) emitSessionInvalid(ev CloseEvent) {
	d.mu.RLock()
	handlers := append([]func(CloseEvent){}, d.onSessionInvalid...)
	d.mu.RUnlock()
	for _, h := range handlers {
		go h(ev)
	}
}

func (d *eventDispatcher) emitReconnecting(attempt int, delay time.Duration) {
	d.mu.RLock()
	handlers := append([]func(int, time.Duration){}, d.onReconnecting...)
	d.mu.RUnlock()
	for _, h := range handlers {
		go h(attempt, delay)
	}
}

func (d *eventDispatcher) emitExhausted() {
	d.mu.RLock()
	handlers := append([]func(){}, d.onExhausted...)
	d.mu.RUnlock()
	for _, h := range handlers {
		go h()
	}
}

// ============================================================================
// Client
// ============================================================================

// Client is the realtime synchronization engine.
type Client struct {
	cfg      Config
	log      zerolog.Logger
	session  *Session
	api      ChatAPI
	notifier Notifier

	// Owned by the event loop.
	messages   *MessageStore
	chats      *ChatIndex
	conn       *connManager
	activeChat int64
	focused    bool
	epoch      uint64

	dispatcher *eventDispatcher

	ctx      context.Context
	cancel   context.CancelFunc
	tasks    chan func()
	loopDone chan struct{}
	closed   sync.Once
}

// New creates a Client and starts its event loop. api may be nil, in which
// case chat list reloads are skipped.
func New(cfg Config, session *Session, api ChatAPI) *Client {
	cfg.defaults()
	if session == nil {
		session = NewSession(nil)
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		cfg:        cfg,
		log:        *cfg.Logger,
		session:    session,
		api:        api,
		notifier:   cfg.Notifier,
		focused:    true,
		dispatcher: &eventDispatcher{},
		ctx:        ctx,
		cancel:     cancel,
		tasks:      make(chan func(), 256),
		loopDone:   make(chan struct{}),
	}
	c.messages = NewMessageStore(c.log)
	c.chats = NewChatIndex()
	c.conn = newConnManager(c, &c.cfg)
	go c.loop()
	return c
}

func (c *Client) loop() {
	defer close(c.loopDone)
	for {
		select {
		case <-c.ctx.Done():
			return
		case fn := <-c.tasks:
			fn()
		}
	}
}

// post queues fn on the event loop.
func (c *Client) post(fn func()) bool {
	select {
	case c.tasks <- fn:
		return true
	case <-c.ctx.Done():
		return false
	}
}

// do runs fn on the event loop and waits for it.
func (c *Client) do(fn func()) error {
	done := make(chan struct{})
	if !c.post(func() { fn(); close(done) }) {
		return ErrClientClosed
	}
	select {
	case <-done:
		return nil
	case <-c.ctx.Done():
		return ErrClientClosed
	}
}

// Session returns the session the client authenticates with.
func (c *Client) Session() *Session { return c.session }

// ── Meta-event registration ──────────────────────────────

// OnEvent registers a handler called for every parsed inbound event after it
// has been applied. Handlers run on their own goroutines.
func (c *Client) OnEvent(h func(Event)) {
	c.dispatcher.mu.Lock()
	c.dispatcher.onEvent = append(c.dispatcher.onEvent, h)
	c.dispatcher.mu.Unlock()
}

// OnStateChange registers a handler for connection state transitions.
func (c *Client) OnStateChange(h func(ConnState)) {
	c.dispatcher.mu.Lock()
	c.dispatcher.onState = append(c.dispatcher.onState, h)
	c.dispatcher.mu.Unlock()
}

// OnSessionInvalid registers a handler called after the server closed the
// connection as session-invalid and the session was cleared.
func (c *Client) OnSessionInvalid(h func(CloseEvent)) {
	c.dispatcher.mu.Lock()
	c.dispatcher.onSessionInvalid = append(c.dispatcher.onSessionInvalid, h)
	c.dispatcher.mu.Unlock()
}

// OnReconnecting registers a handler for scheduled reconnects.
func (c *Client) OnReconnecting(h func(attempt int, delay time.Duration)) {
	c.dispatcher.mu.Lock()
	c.dispatcher.onReconnecting = append(c.dispatcher.onReconnecting, h)
	c.dispatcher.mu.Unlock()
}

// OnReconnectExhausted registers a handler called when reconnects gave up.
// The session stays valid.
func (c *Client) OnReconnectExhausted(h func()) {
	c.dispatcher.mu.Lock()
	c.dispatcher.onExhausted = append(c.dispatcher.onExhausted, h)
	c.dispatcher.mu.Unlock()
}

// ── Connection ───────────────────────────────────────────

// Connect starts connecting if the client is disconnected and the session
// has credentials. Failures are reported through meta events and logs.
func (c *Client) Connect() error {
	return c.do(c.conn.connect)
}

// Disconnect closes the connection with the normal close code and cancels
// heartbeat and pending reconnects. It is idempotent.
func (c *Client) Disconnect() error {
	return c.do(c.conn.disconnect)
}

// State returns the connection state.
func (c *Client) State() ConnState {
	return c.conn.State()
}

// Send writes a frame if the connection is open.
func (c *Client) Send(frame any) error {
	var err error
	if e := c.do(func() { err = c.conn.send(frame) }); e != nil {
		return e
	}
	return err
}

// Close disconnects and stops the event loop.
func (c *Client) Close() error {
	c.closed.Do(func() {
		_ = c.do(c.conn.disconnect)
		c.cancel()
		<-c.loopDone
	})
	return nil
}

// Logout disconnects, clears the session and wipes local state.
func (c *Client) Logout() error {
	var err error
	if e := c.do(func() {
		c.conn.disconnect()
		err = c.clearLocal()
	}); e != nil {
		return e
	}
	return err
}

// invalidateSession handles a session-invalid closure.
func (c *Client) invalidateSession(ev CloseEvent) {
	c.log.Error().Int("code", ev.Code).Str("reason", ev.Reason).Msg("session invalidated by server, logging out")
	c.conn.disconnect()
	if err := c.clearLocal(); err != nil {
		c.log.Warn().Err(err).Msg("clear session")
	}
	c.dispatcher.emitSessionInvalid(ev)
}

func (c *Client) clearLocal() error {
	c.epoch++
	c.activeChat = 0
	c.messages.Clear()
	c.chats.Clear()
	return c.session.Logout()
}

// ── Read access ──────────────────────────────────────────

// Messages returns a copy of a chat's messages.
func (c *Client) Messages(chatID int64) []Message {
	var out []Message
	_ = c.do(func() { out = c.messages.Messages(chatID) })
	return out
}

// Chats returns a copy of the chat index.
func (c *Client) Chats() []Chat {
	var out []Chat
	_ = c.do(func() { out = c.chats.Chats() })
	return out
}

// Chat returns one chat.
func (c *Client) Chat(id int64) (Chat, bool) {
	var (
		out Chat
		ok  bool
	)
	_ = c.do(func() { out, ok = c.chats.Get(id) })
	return out, ok
}

// ActiveChat returns the open chat id, or 0.
func (c *Client) ActiveChat() int64 {
	var id int64
	_ = c.do(func() { id = c.activeChat })
	return id
}

// SetFocused records whether the user is looking at the client. Incoming
// messages notify only while unfocused.
func (c *Client) SetFocused(focused bool) {
	_ = c.do(func() { c.focused = focused })
}
