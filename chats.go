package wazzap

import "slices"

// ChatIndex holds chat metadata in server order, keyed by id.
//
// Replace swaps the whole list; every other mutation looks the chat up in the
// list current at call time, so an increment never lands on a list that a
// reload already discarded. Like MessageStore it is owned by the event loop.
type ChatIndex struct {
	chats []*Chat
	byID  map[int64]*Chat
}

// NewChatIndex creates an empty index.
func NewChatIndex() *ChatIndex {
	return &ChatIndex{byID: make(map[int64]*Chat)}
}

// Replace installs the server's list wholesale. Local unread counters are
// not carried over.
func (x *ChatIndex) Replace(list []Chat) {
	x.chats = make([]*Chat, 0, len(list))
	x.byID = make(map[int64]*Chat, len(list))
	for i := range list {
		c := list[i]
		if c.UnreadCount < 0 {
			c.UnreadCount = 0
		}
		x.chats = append(x.chats, &c)
		x.byID[c.ID] = &c
	}
}

// Has reports whether the chat is indexed.
func (x *ChatIndex) Has(id int64) bool {
	_, ok := x.byID[id]
	return ok
}

// Get returns a copy of one chat.
func (x *ChatIndex) Get(id int64) (Chat, bool) {
	c, ok := x.byID[id]
	if !ok {
		return Chat{}, false
	}
	return copyChat(c), true
}

// IncrementUnread adds one to the chat's unread counter. It returns false if
// the chat is not indexed.
func (x *ChatIndex) IncrementUnread(id int64) bool {
	c, ok := x.byID[id]
	if !ok {
		return false
	}
	c.UnreadCount++
	return true
}

// ResetUnread sets the chat's unread counter to zero.
func (x *ChatIndex) ResetUnread(id int64) bool {
	c, ok := x.byID[id]
	if !ok {
		return false
	}
	c.UnreadCount = 0
	return true
}

// Chats returns a copy of the list in server order.
func (x *ChatIndex) Chats() []Chat {
	out := make([]Chat, 0, len(x.chats))
	for _, c := range x.chats {
		out = append(out, copyChat(c))
	}
	return out
}

// TotalUnread sums unread counters over all chats.
func (x *ChatIndex) TotalUnread() int {
	n := 0
	for _, c := range x.chats {
		n += c.UnreadCount
	}
	return n
}

// Clear empties the index.
func (x *ChatIndex) Clear() {
	x.chats = nil
	x.byID = make(map[int64]*Chat)
}

func copyChat(c *Chat) Chat {
	out := *c
	out.Members = slices.Clone(c.Members)
	return out
}
