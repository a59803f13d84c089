package wazzap

import (
	"strconv"
	"sync"

	"github.com/rs/zerolog"
)

const notificationPreviewLen = 50

// Notification is a user-visible alert for an incoming message. Alerts with
// the same Tag replace each other.
type Notification struct {
	Title     string
	Body      string
	Tag       string
	ChatID    int64
	MessageID string
}

// Notifier shows notifications. Permitted reports whether the user granted
// permission; Notify is only called when it returns true.
type Notifier interface {
	Permitted() bool
	Notify(n Notification)
}

// tagResetter is implemented by notifiers that can withdraw what they
// showed for a tag.
type tagResetter interface {
	Reset(tag string)
}

func notificationTag(chatID int64) string {
	return "chat-" + strconv.FormatInt(chatID, 10)
}

func buildNotification(chat Chat, hasChat bool, chatID int64, m Message) Notification {
	sender := m.SenderUsername
	if sender == "" {
		sender = "Someone"
	}
	title := "Chat " + strconv.FormatInt(chatID, 10)
	if hasChat {
		title = chat.DisplayTitle()
	}
	body := "[Media]"
	if m.Content != "" {
		body = truncateRunes(m.Content, notificationPreviewLen)
	}
	return Notification{
		Title:     sender + " - " + title,
		Body:      body,
		Tag:       notificationTag(chatID),
		ChatID:    chatID,
		MessageID: m.ID,
	}
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// LogNotifier writes notifications to a logger. Only the first notification
// for a tag is logged; repeats are counted until Reset is called for it.
type LogNotifier struct {
	Log     zerolog.Logger
	Allowed bool

	mu    sync.Mutex
	shown map[string]int
}

func (n *LogNotifier) Permitted() bool { return n.Allowed }

func (n *LogNotifier) Notify(note Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.shown == nil {
		n.shown = make(map[string]int)
	}
	n.shown[note.Tag]++
	if pending := n.shown[note.Tag]; pending > 1 {
		n.Log.Debug().Str("tag", note.Tag).Int("pending", pending).Msg("notification collapsed")
		return
	}
	n.Log.Info().
		Str("tag", note.Tag).
		Str("body", note.Body).
		Msg(note.Title)
}

// Pending returns how many notifications arrived under tag since the last
// Reset.
func (n *LogNotifier) Pending(tag string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.shown[tag]
}

// Reset forgets the collapsed notifications for tag.
func (n *LogNotifier) Reset(tag string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.shown, tag)
}
