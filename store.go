package wazzap

import (
	"slices"

	"github.com/rs/zerolog"
)

// MessageStore maps chat ids to their ordered message lists.
//
// MessageStore is not safe for concurrent use. Client only touches it from
// its event loop.
type MessageStore struct {
	byChat map[int64][]*Message
	log    zerolog.Logger
}

// NewMessageStore creates an empty store.
func NewMessageStore(log zerolog.Logger) *MessageStore {
	return &MessageStore{
		byChat: make(map[int64][]*Message),
		log:    log.With().Str("component", "store").Logger(),
	}
}

// SetMessages replaces the chat's list wholesale.
func (s *MessageStore) SetMessages(chatID int64, msgs []Message) {
	list := make([]*Message, 0, len(msgs))
	for i := range msgs {
		m := msgs[i]
		list = append(list, &m)
	}
	s.byChat[chatID] = list
}

// AddMessage appends m to the chat's list, creating the list if needed.
// No dedup by id.
func (s *MessageStore) AddMessage(chatID int64, m Message) {
	s.byChat[chatID] = append(s.byChat[chatID], &m)
}

// UpdateMessage merges patch into the message with the given id. It returns
// false if the chat or message is unknown.
func (s *MessageStore) UpdateMessage(chatID int64, id string, patch MessagePatch) bool {
	m := s.find(chatID, id)
	if m == nil {
		s.log.Debug().Int64("chat_id", chatID).Str("message_id", id).Msg("update for unknown message")
		return false
	}
	patch.apply(m)
	return true
}

// Get returns a copy of one message.
func (s *MessageStore) Get(chatID int64, id string) (Message, bool) {
	m := s.find(chatID, id)
	if m == nil {
		return Message{}, false
	}
	return copyMessage(m), true
}

// Messages returns a copy of the chat's list.
func (s *MessageStore) Messages(chatID int64) []Message {
	list := s.byChat[chatID]
	out := make([]Message, 0, len(list))
	for _, m := range list {
		out = append(out, copyMessage(m))
	}
	return out
}

// Last returns the newest message in the chat matching keep.
func (s *MessageStore) Last(chatID int64, keep func(*Message) bool) (Message, bool) {
	list := s.byChat[chatID]
	for i := len(list) - 1; i >= 0; i-- {
		if keep(list[i]) {
			return copyMessage(list[i]), true
		}
	}
	return Message{}, false
}

// Clear wipes every chat's list.
func (s *MessageStore) Clear() {
	s.byChat = make(map[int64][]*Message)
}

func (s *MessageStore) find(chatID int64, id string) *Message {
	for _, m := range s.byChat[chatID] {
		if m.ID == id {
			return m
		}
	}
	return nil
}

func copyMessage(m *Message) Message {
	c := *m
	c.ReadBy = slices.Clone(m.ReadBy)
	return c
}
