package wazzap

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestBuildNotification(t *testing.T) {
	msg := Message{ID: "m1", SenderUsername: "bob", Content: strings.Repeat("é", 60)}
	n := buildNotification(Chat{ID: 7, Title: "Seven"}, true, 7, msg)
	assert.Equal(t, "bob - Seven", n.Title)
	assert.Equal(t, strings.Repeat("é", 50), n.Body)
	assert.Equal(t, "chat-7", n.Tag)

	n = buildNotification(Chat{}, false, 9, Message{ID: "m2", MediaURL: "/media/x.png"})
	assert.Equal(t, "Someone - Chat 9", n.Title)
	assert.Equal(t, "[Media]", n.Body)
}

func TestLogNotifierCollapsesPerTag(t *testing.T) {
	var buf bytes.Buffer
	n := &LogNotifier{Log: zerolog.New(&buf).Level(zerolog.InfoLevel), Allowed: true}

	n.Notify(Notification{Title: "bob - Seven", Body: "one", Tag: "chat-7"})
	n.Notify(Notification{Title: "bob - Seven", Body: "two", Tag: "chat-7"})
	n.Notify(Notification{Title: "bob - Eight", Body: "three", Tag: "chat-8"})

	assert.Equal(t, 2, strings.Count(buf.String(), "\n"), "repeats for a tag are not logged")
	assert.Contains(t, buf.String(), `"body":"one"`)
	assert.NotContains(t, buf.String(), `"body":"two"`)
	assert.Equal(t, 2, n.Pending("chat-7"))
	assert.Equal(t, 1, n.Pending("chat-8"))

	n.Reset("chat-7")
	assert.Equal(t, 0, n.Pending("chat-7"))
	n.Notify(Notification{Title: "bob - Seven", Body: "four", Tag: "chat-7"})
	assert.Contains(t, buf.String(), `"body":"four"`)
	assert.Equal(t, 3, strings.Count(buf.String(), "\n"))
}
