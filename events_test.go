package wazzap

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFrame(t *testing.T) {
	t.Run("message.new", func(t *testing.T) {
		ev, err := ParseFrame([]byte(`{"type":"message.new","chat_id":42,"message":{"id":"9","sender_id":2,"sender_username":"bob","content":"hi"}}`))
		require.NoError(t, err)
		e, ok := ev.(MessageNewEvent)
		require.True(t, ok, "got %T", ev)
		assert.Equal(t, int64(42), e.ChatID)
		assert.Equal(t, int64(42), e.Message.ChatID, "chat id filled from the frame")
		assert.Equal(t, "9", e.Message.ID)
		assert.Equal(t, "bob", e.Message.SenderUsername)
		assert.Equal(t, MessageStatus(""), e.Message.Status)
	})

	t.Run("message.status", func(t *testing.T) {
		ev, err := ParseFrame([]byte(`{"type":"message.status","chat_id":1,"message_id":"5","status":"read"}`))
		require.NoError(t, err)
		assert.Equal(t, MessageStatusEvent{ChatID: 1, MessageID: "5", Status: StatusRead}, ev)
	})

	t.Run("message.read.update", func(t *testing.T) {
		ev, err := ParseFrame([]byte(`{"type":"message.read.update","chat_id":1,"message_id":"5","read_by":[2,3],"read_count":2}`))
		require.NoError(t, err)
		assert.Equal(t, MessageReadUpdateEvent{ChatID: 1, MessageID: "5", ReadBy: []int64{2, 3}, ReadCount: 2}, ev)
	})

	t.Run("chat.member.added", func(t *testing.T) {
		ev, err := ParseFrame([]byte(`{"type":"chat.member.added","chat_id":8,"chat_title":"Team","chat_type":"group"}`))
		require.NoError(t, err)
		assert.Equal(t, ChatMemberAddedEvent{ChatID: 8, ChatTitle: "Team", ChatType: "group"}, ev)
	})

	t.Run("payload-free types", func(t *testing.T) {
		ev, err := ParseFrame([]byte(`{"type":"session.ready"}`))
		require.NoError(t, err)
		assert.Equal(t, SessionReadyEvent{}, ev)

		ev, err = ParseFrame([]byte(`{"type":"pong"}`))
		require.NoError(t, err)
		assert.Equal(t, PongEvent{}, ev)
	})

	t.Run("presence kept raw", func(t *testing.T) {
		raw := `{"type":"presence.update","user_id":3,"online":true}`
		ev, err := ParseFrame([]byte(raw))
		require.NoError(t, err)
		e, ok := ev.(PresenceUpdateEvent)
		require.True(t, ok)
		assert.JSONEq(t, raw, string(e.Raw))
	})

	t.Run("unknown type", func(t *testing.T) {
		ev, err := ParseFrame([]byte(`{"type":"typing.start","chat_id":1}`))
		require.NoError(t, err)
		assert.Equal(t, UnknownEvent{Kind: "typing.start"}, ev)
		assert.Equal(t, "typing.start", ev.Type())
	})
}

func TestParseFrameMalformed(t *testing.T) {
	frames := map[string]string{
		"not json":         `not json`,
		"array":            `[1,2,3]`,
		"missing type":     `{"chat_id":1}`,
		"empty type":       `{"type":""}`,
		"numeric type":     `{"type":7}`,
		"bad payload":      `{"type":"message.status","chat_id":"abc"}`,
		"truncated object": `{"type":"pong"`,
	}
	for name, frame := range frames {
		t.Run(name, func(t *testing.T) {
			ev, err := ParseFrame([]byte(frame))
			assert.Nil(t, ev)
			assert.ErrorIs(t, err, ErrMalformedFrame)
		})
	}
}

func TestOutboundFrames(t *testing.T) {
	data, err := json.Marshal(NewPingFrame())
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"ping"}`, string(data))

	data, err = json.Marshal(NewReadFrame(7, "99"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"message.read","chat_id":7,"message_id":"99"}`, string(data))

	data, err = json.Marshal(NewChatOpenFrame(7, 1))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"chat.open","chat_id":7,"user_id":1}`, string(data))
}
