package wazzap

import (
	"slices"
	"strconv"
)

// ============================================================================
// Messages
// ============================================================================

// MessageStatus is the delivery/read state of a message. Its meaning depends
// on who sent it: own messages move sent → read, received messages move
// unread → read locally.
type MessageStatus string

const (
	StatusSent   MessageStatus = "sent"
	StatusUnread MessageStatus = "unread"
	StatusRead   MessageStatus = "read"
)

// Message is a chat message as delivered by the server.
type Message struct {
	ID             string        `json:"id"`
	ChatID         int64         `json:"chat_id"`
	SenderID       int64         `json:"sender_id"`
	SenderUsername string        `json:"sender_username,omitempty"`
	Type           string        `json:"type,omitempty"`
	Content        string        `json:"content,omitempty"`
	MediaURL       string        `json:"media_url,omitempty"`
	CreatedAt      string        `json:"created_at,omitempty"`
	Status         MessageStatus `json:"status,omitempty"`
	// ReadBy is advisory; ReadCount is what the server counted.
	ReadBy    []int64 `json:"read_by"`
	ReadCount int     `json:"read_count"`
}

// MessagePatch holds the fields updateMessage may overwrite. Nil fields are
// left untouched.
type MessagePatch struct {
	Status    *MessageStatus
	ReadBy    []int64
	ReadCount *int
}

func (p MessagePatch) apply(m *Message) {
	if p.Status != nil {
		m.Status = *p.Status
	}
	if p.ReadBy != nil {
		m.ReadBy = slices.Clone(p.ReadBy)
	}
	if p.ReadCount != nil {
		m.ReadCount = *p.ReadCount
	}
}

// ============================================================================
// Chats
// ============================================================================

// ChatMember is a participant of a chat.
type ChatMember struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username,omitempty"`
}

// Chat is the chat-list entry for one conversation.
type Chat struct {
	ID            int64        `json:"id"`
	Type          string       `json:"type,omitempty"`
	Title         string       `json:"title,omitempty"`
	OtherUserName string       `json:"other_user_name,omitempty"`
	UnreadCount   int          `json:"unread_count"`
	Members       []ChatMember `json:"members,omitempty"`
}

// DisplayTitle returns the title shown for the chat.
func (c Chat) DisplayTitle() string {
	switch {
	case c.Title != "":
		return c.Title
	case c.OtherUserName != "":
		return c.OtherUserName
	default:
		return "Chat " + strconv.FormatInt(c.ID, 10)
	}
}

// ============================================================================
// Auth
// ============================================================================

// LoginResult is returned by a successful login.
type LoginResult struct {
	Token     string `json:"token"`
	SessionID string `json:"session_id"`
	UserID    int64  `json:"user_id"`
	Username  string `json:"username,omitempty"`
}

// User is a registered account as listed by the server.
type User struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	CreatedAt string `json:"created_at,omitempty"`
}
