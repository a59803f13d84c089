package wazzap

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// Frame type discriminators.
const (
	TypeSessionReady      = "session.ready"
	TypeMessageNew        = "message.new"
	TypeMessageStatus     = "message.status"
	TypeMessageReadUpdate = "message.read.update"
	TypeChatMemberAdded   = "chat.member.added"
	TypePresenceUpdate    = "presence.update"
	TypePong              = "pong"

	TypePing        = "ping"
	TypeMessageRead = "message.read"
	TypeChatOpen    = "chat.open"
)

// ============================================================================
// Inbound events
// ============================================================================

// Event is one parsed server→client frame. The concrete type is one of the
// *Event structs below.
type Event interface {
	Type() string
}

// SessionReadyEvent acknowledges a fresh logical session.
type SessionReadyEvent struct{}

// MessageNewEvent delivers a new message.
type MessageNewEvent struct {
	ChatID  int64   `json:"chat_id"`
	Message Message `json:"message"`
}

// MessageStatusEvent changes the status of one message.
type MessageStatusEvent struct {
	ChatID    int64         `json:"chat_id"`
	MessageID string        `json:"message_id"`
	Status    MessageStatus `json:"status"`
}

// MessageReadUpdateEvent carries the server's read receipts for one message.
type MessageReadUpdateEvent struct {
	ChatID    int64   `json:"chat_id"`
	MessageID string  `json:"message_id"`
	ReadBy    []int64 `json:"read_by"`
	ReadCount int     `json:"read_count"`
}

// ChatMemberAddedEvent reports that the local user joined a chat.
type ChatMemberAddedEvent struct {
	ChatID    int64  `json:"chat_id"`
	ChatTitle string `json:"chat_title"`
	ChatType  string `json:"chat_type"`
}

// PresenceUpdateEvent is reserved; the payload is kept raw.
type PresenceUpdateEvent struct {
	Raw json.RawMessage `json:"-"`
}

// PongEvent acknowledges a heartbeat ping.
type PongEvent struct{}

// UnknownEvent is any frame whose type is not recognized.
type UnknownEvent struct {
	Kind string
}

func (SessionReadyEvent) Type() string      { return TypeSessionReady }
func (MessageNewEvent) Type() string        { return TypeMessageNew }
func (MessageStatusEvent) Type() string     { return TypeMessageStatus }
func (MessageReadUpdateEvent) Type() string { return TypeMessageReadUpdate }
func (ChatMemberAddedEvent) Type() string   { return TypeChatMemberAdded }
func (PresenceUpdateEvent) Type() string    { return TypePresenceUpdate }
func (PongEvent) Type() string              { return TypePong }
func (e UnknownEvent) Type() string         { return e.Kind }

type frameDecoder func(data []byte) (Event, error)

var frameDecoders = map[string]frameDecoder{
	TypeSessionReady: func([]byte) (Event, error) { return SessionReadyEvent{}, nil },
	TypeMessageNew: func(data []byte) (Event, error) {
		var e MessageNewEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, err
		}
		if e.Message.ChatID == 0 {
			e.Message.ChatID = e.ChatID
		}
		return e, nil
	},
	TypeMessageStatus:     decodeInto[MessageStatusEvent],
	TypeMessageReadUpdate: decodeInto[MessageReadUpdateEvent],
	TypeChatMemberAdded:   decodeInto[ChatMemberAddedEvent],
	TypePresenceUpdate: func(data []byte) (Event, error) {
		return PresenceUpdateEvent{Raw: append(json.RawMessage(nil), data...)}, nil
	},
	TypePong: func([]byte) (Event, error) { return PongEvent{}, nil },
}

func decodeInto[T Event](data []byte) (Event, error) {
	var e T
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return e, nil
}

// ParseFrame classifies one inbound frame. Frames that are not JSON objects
// or carry no type fail with ErrMalformedFrame; unrecognized types come back
// as UnknownEvent without error.
func ParseFrame(data []byte) (Event, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: not valid JSON", ErrMalformedFrame)
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, fmt.Errorf("%w: not an object", ErrMalformedFrame)
	}
	kind := root.Get("type")
	if kind.Type != gjson.String || kind.Str == "" {
		return nil, fmt.Errorf("%w: missing type", ErrMalformedFrame)
	}

	decode, ok := frameDecoders[kind.Str]
	if !ok {
		return UnknownEvent{Kind: kind.Str}, nil
	}
	ev, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedFrame, kind.Str, err)
	}
	return ev, nil
}

// ============================================================================
// Outbound frames
// ============================================================================

// PingFrame is the heartbeat.
type PingFrame struct {
	Type string `json:"type"`
}

// ReadFrame is a read receipt for a message.
type ReadFrame struct {
	Type      string `json:"type"`
	ChatID    int64  `json:"chat_id"`
	MessageID string `json:"message_id"`
}

// ChatOpenFrame announces that the client is following a chat.
type ChatOpenFrame struct {
	Type   string `json:"type"`
	ChatID int64  `json:"chat_id"`
	UserID int64  `json:"user_id"`
}

func NewPingFrame() PingFrame { return PingFrame{Type: TypePing} }

func NewReadFrame(chatID int64, messageID string) ReadFrame {
	return ReadFrame{Type: TypeMessageRead, ChatID: chatID, MessageID: messageID}
}

func NewChatOpenFrame(chatID, userID int64) ChatOpenFrame {
	return ChatOpenFrame{Type: TypeChatOpen, ChatID: chatID, UserID: userID}
}
