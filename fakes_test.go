package wazzap

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
)

// ── fakeTransport ────────────────────────────────────────

type fakeTransport struct {
	inbound chan []byte
	closing chan error
	done    chan struct{}
	once    sync.Once

	mu          sync.Mutex
	written     [][]byte
	closeCode   int
	closeReason string
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		inbound: make(chan []byte, 64),
		closing: make(chan error, 1),
		done:    make(chan struct{}),
	}
}

func (t *fakeTransport) Read(ctx context.Context) ([]byte, error) {
	select {
	case data := <-t.inbound:
		return data, nil
	case err := <-t.closing:
		return nil, err
	case <-t.done:
		return nil, errors.New("transport closed")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (t *fakeTransport) Write(_ context.Context, data []byte) error {
	select {
	case <-t.done:
		return errors.New("transport closed")
	default:
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.written = append(t.written, append([]byte(nil), data...))
	return nil
}

func (t *fakeTransport) Close(code int, reason string) error {
	t.once.Do(func() {
		t.mu.Lock()
		t.closeCode, t.closeReason = code, reason
		t.mu.Unlock()
		close(t.done)
	})
	return nil
}

// push delivers an inbound frame.
func (t *fakeTransport) push(frame string) {
	t.inbound <- []byte(frame)
}

// serverClose simulates a close frame from the server.
func (t *fakeTransport) serverClose(code int, reason string) {
	t.closing <- websocket.CloseError{Code: websocket.StatusCode(code), Reason: reason}
}

// drop simulates the connection dying without a close frame.
func (t *fakeTransport) drop() {
	t.closing <- io.ErrUnexpectedEOF
}

func (t *fakeTransport) closedWith() (int, string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closeCode, t.closeReason
}

// sent returns the outbound frames of the given type.
func (t *fakeTransport) sent(kind string) []map[string]any {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []map[string]any
	for _, data := range t.written {
		var frame map[string]any
		if json.Unmarshal(data, &frame) == nil && frame["type"] == kind {
			out = append(out, frame)
		}
	}
	return out
}

// ── fakeDialer ───────────────────────────────────────────

type fakeDialer struct {
	mu   sync.Mutex
	urls []string
	// fail, when set, decides whether dial n (1-based) fails.
	fail   func(n int) error
	dialed chan *fakeTransport
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{dialed: make(chan *fakeTransport, 32)}
}

func (d *fakeDialer) Dial(_ context.Context, u string) (Transport, error) {
	d.mu.Lock()
	d.urls = append(d.urls, u)
	n := len(d.urls)
	fail := d.fail
	d.mu.Unlock()

	if fail != nil {
		if err := fail(n); err != nil {
			return nil, err
		}
	}
	t := newFakeTransport()
	d.dialed <- t
	return t, nil
}

func (d *fakeDialer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.urls)
}

func (d *fakeDialer) lastURL() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.urls) == 0 {
		return ""
	}
	return d.urls[len(d.urls)-1]
}

// ── fakeChatAPI ──────────────────────────────────────────

type fakeChatAPI struct {
	mu       sync.Mutex
	chats    []Chat
	messages map[int64][]Message
	err      error
	calls    int
	msgCalls int
	// gate, when set, holds GetChatList and GetMessages until it is closed.
	gate chan struct{}
}

func (f *fakeChatAPI) GetChatList(ctx context.Context) ([]Chat, error) {
	f.mu.Lock()
	f.calls++
	gate := f.gate
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return append([]Chat(nil), f.chats...), nil
}

func (f *fakeChatAPI) GetMessages(ctx context.Context, chatID int64) ([]Message, error) {
	f.mu.Lock()
	f.msgCalls++
	gate := f.gate
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return append([]Message(nil), f.messages[chatID]...), nil
}

func (f *fakeChatAPI) setChats(chats ...Chat) {
	f.mu.Lock()
	f.chats = chats
	f.mu.Unlock()
}

func (f *fakeChatAPI) messageCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.msgCalls
}

func (f *fakeChatAPI) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// ── harness ──────────────────────────────────────────────

const (
	waitFor = 2 * time.Second
	tick    = time.Millisecond
)

type harness struct {
	t       *testing.T
	client  *Client
	dialer  *fakeDialer
	session *Session
}

// newHarness builds a client logged in as alice (user 1) on a fake dialer
// with millisecond reconnect delays.
func newHarness(t *testing.T, cfg Config, api *fakeChatAPI) *harness {
	t.Helper()
	session := NewSession(nil)
	require.NoError(t, session.Login("alice", LoginResult{Token: "tok", SessionID: "sid", UserID: 1}))

	dialer := newFakeDialer()
	cfg.Dialer = dialer
	if cfg.ReconnectBaseDelay == 0 {
		cfg.ReconnectBaseDelay = time.Millisecond
	}
	if cfg.ReconnectMaxDelay == 0 {
		cfg.ReconnectMaxDelay = 10 * time.Millisecond
	}

	var chatAPI ChatAPI
	if api != nil {
		chatAPI = api
	}
	client := New(cfg, session, chatAPI)
	t.Cleanup(func() { _ = client.Close() })
	return &harness{t: t, client: client, dialer: dialer, session: session}
}

// connect dials and waits for the connection to open.
func (h *harness) connect() *fakeTransport {
	h.t.Helper()
	require.NoError(h.t, h.client.Connect())
	return h.nextTransport()
}

func (h *harness) nextTransport() *fakeTransport {
	h.t.Helper()
	select {
	case tr := <-h.dialer.dialed:
		h.waitState(StateOpen)
		return tr
	case <-time.After(waitFor):
		h.t.Fatal("no dial")
		return nil
	}
}

func (h *harness) waitState(s ConnState) {
	h.t.Helper()
	require.Eventually(h.t, func() bool { return h.client.State() == s }, waitFor, tick, "state %s", s)
}

func (h *harness) unread(chatID int64) int {
	c, ok := h.client.Chat(chatID)
	if !ok {
		return -1
	}
	return c.UnreadCount
}
