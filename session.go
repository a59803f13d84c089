package wazzap

import (
	"fmt"
	"strconv"
	"sync"
)

// Keys under which the session is persisted.
const (
	KeyToken     = "jwt"
	KeySessionID = "session_id"
	KeyUsername  = "username"
	KeyUserID    = "user_id"
)

// CredentialStore is a durable key-value store for session credentials.
type CredentialStore interface {
	Get(key string) (string, bool)
	Set(key, value string) error
	Remove(key string) error
}

// SessionInfo is a point-in-time copy of the session.
type SessionInfo struct {
	IsAuthenticated bool
	Username        string
	UserID          int64
	Token           string
	SessionID       string
}

// Session holds the current credentials. It is written through to a
// CredentialStore on login and wiped from it on logout.
type Session struct {
	mu    sync.RWMutex
	info  SessionInfo
	store CredentialStore
}

// NewSession creates an unauthenticated session backed by store.
// A nil store keeps credentials in memory only.
func NewSession(store CredentialStore) *Session {
	if store == nil {
		store = NewMemoryCredentialStore()
	}
	return &Session{store: store}
}

// Restore loads credentials persisted by an earlier Login. The session is
// authenticated only if both a token and a session id were stored.
func (s *Session) Restore() bool {
	token, okT := s.store.Get(KeyToken)
	sessionID, okS := s.store.Get(KeySessionID)
	if !okT || !okS || token == "" || sessionID == "" {
		return false
	}
	username, _ := s.store.Get(KeyUsername)
	var userID int64
	if v, ok := s.store.Get(KeyUserID); ok {
		userID, _ = strconv.ParseInt(v, 10, 64)
	}

	s.mu.Lock()
	s.info = SessionInfo{
		IsAuthenticated: true,
		Username:        username,
		UserID:          userID,
		Token:           token,
		SessionID:       sessionID,
	}
	s.mu.Unlock()
	return true
}

// Login stores the credentials and marks the session authenticated.
func (s *Session) Login(username string, res LoginResult) error {
	if res.Token == "" || res.SessionID == "" {
		return fmt.Errorf("login: missing token or session id")
	}
	if res.Username != "" {
		username = res.Username
	}
	values := []struct{ k, v string }{
		{KeyToken, res.Token},
		{KeySessionID, res.SessionID},
		{KeyUsername, username},
		{KeyUserID, strconv.FormatInt(res.UserID, 10)},
	}
	for _, kv := range values {
		if err := s.store.Set(kv.k, kv.v); err != nil {
			return fmt.Errorf("persist %s: %w", kv.k, err)
		}
	}

	s.mu.Lock()
	s.info = SessionInfo{
		IsAuthenticated: true,
		Username:        username,
		UserID:          res.UserID,
		Token:           res.Token,
		SessionID:       res.SessionID,
	}
	s.mu.Unlock()
	return nil
}

// Logout clears the session and removes it from storage. Removal errors are
// returned after the in-memory session has already been cleared.
func (s *Session) Logout() error {
	s.mu.Lock()
	s.info = SessionInfo{}
	s.mu.Unlock()

	var firstErr error
	for _, k := range []string{KeyToken, KeySessionID, KeyUsername, KeyUserID} {
		if err := s.store.Remove(k); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("remove %s: %w", k, err)
		}
	}
	return firstErr
}

// Info returns a copy of the current session.
func (s *Session) Info() SessionInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.info
}

// IsAuthenticated reports whether a session is active.
func (s *Session) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.info.IsAuthenticated
}

// IsOwn reports whether a message was sent by the local user, matching by
// user id or username.
func (s *Session) IsOwn(m *Message) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.info.UserID != 0 && m.SenderID == s.info.UserID {
		return true
	}
	return s.info.Username != "" && m.SenderUsername == s.info.Username
}

// ── MemoryCredentialStore ────────────────────────────────

// MemoryCredentialStore is a goroutine-safe in-memory CredentialStore.
type MemoryCredentialStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryCredentialStore creates an empty store.
func NewMemoryCredentialStore() *MemoryCredentialStore {
	return &MemoryCredentialStore{values: make(map[string]string)}
}

func (m *MemoryCredentialStore) Get(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok
}

func (m *MemoryCredentialStore) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *MemoryCredentialStore) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}
