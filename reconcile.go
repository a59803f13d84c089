package wazzap

import (
	"context"
	"errors"
)

// ErrInvalidReceipt is returned by MarkAsRead for a zero chat id or an empty
// message id, which happens when a stale active chat is used after
// switching chats.
var ErrInvalidReceipt = errors.New("invalid read receipt: chat id and message id are required")

// handleFrame parses one inbound frame and applies it. Frames from a
// connection that is no longer current are dropped.
func (c *Client) handleFrame(gen uint64, data []byte) {
	if gen != c.conn.gen {
		incDropped("stale")
		return
	}
	ev, err := ParseFrame(data)
	if err != nil {
		incDropped("malformed")
		c.log.Warn().Str("component", "router").Err(err).Int("bytes", len(data)).Msg("dropping frame")
		return
	}
	c.dispatch(ev)
}

// dispatch applies an event to local state.
func (c *Client) dispatch(ev Event) {
	switch e := ev.(type) {
	case SessionReadyEvent:
		c.conn.recon.reset()
	case MessageNewEvent:
		c.onMessageNew(e)
	case MessageStatusEvent:
		status := e.Status
		c.messages.UpdateMessage(e.ChatID, e.MessageID, MessagePatch{Status: &status})
	case MessageReadUpdateEvent:
		c.onReadUpdate(e)
	case ChatMemberAddedEvent:
		c.log.Info().Str("component", "reconcile").Int64("chat_id", e.ChatID).Str("title", e.ChatTitle).Msg("added to chat")
		c.reloadChats(nil)
	case PresenceUpdateEvent, PongEvent:
	case UnknownEvent:
		incDropped("unknown")
		c.log.Warn().Str("component", "router").Str("type", e.Kind).Msg("unknown event type")
		return
	}
	incFrame(ev.Type())
	c.dispatcher.emitEvent(ev)
}

func (c *Client) onMessageNew(e MessageNewEvent) {
	chatID := e.ChatID
	if chatID == 0 {
		chatID = e.Message.ChatID
	}
	msg := e.Message
	msg.ChatID = chatID
	own := c.session.IsOwn(&msg)

	if msg.Status == "" {
		if own {
			msg.Status = StatusSent
		} else {
			msg.Status = StatusUnread
		}
		if msg.ReadBy == nil {
			msg.ReadBy = []int64{}
		}
	}
	c.messages.AddMessage(chatID, msg)

	finish := func() { c.afterMessageNew(chatID, msg, own) }
	if !c.chats.Has(chatID) {
		c.reloadChats(finish)
		return
	}
	finish()
}

// afterMessageNew runs once the chat index is as fresh as it will get, reading
// the active chat and index at that moment rather than when the frame came in.
func (c *Client) afterMessageNew(chatID int64, msg Message, own bool) {
	if c.conn.isOpen() {
		if err := c.conn.send(NewChatOpenFrame(chatID, c.session.Info().UserID)); err != nil {
			c.log.Debug().Err(err).Int64("chat_id", chatID).Msg("chat.open not sent")
		}
	}

	active := c.activeChat == chatID
	if !own && !active && c.chats.IncrementUnread(chatID) {
		incUnread()
	}

	if !own && !c.focused && c.notifier != nil && c.notifier.Permitted() {
		chat, ok := c.chats.Get(chatID)
		c.notifier.Notify(buildNotification(chat, ok, chatID, msg))
	}

	if active && !own {
		_ = c.markAsRead(chatID, msg.ID)
	}
}

func (c *Client) onReadUpdate(e MessageReadUpdateEvent) {
	m, ok := c.messages.Get(e.ChatID, e.MessageID)
	if !ok {
		c.log.Debug().Str("component", "reconcile").Int64("chat_id", e.ChatID).Str("message_id", e.MessageID).Msg("read update for unknown message")
		return
	}
	readBy := e.ReadBy
	if readBy == nil {
		readBy = []int64{}
	}
	count := max(e.ReadCount, 0)
	patch := MessagePatch{ReadBy: readBy, ReadCount: &count}
	if c.session.IsOwn(&m) {
		status := StatusSent
		if count > 0 {
			status = StatusRead
		}
		patch.Status = &status
	}
	c.messages.UpdateMessage(e.ChatID, e.MessageID, patch)
}

// reloadChats fetches the chat list off the loop and installs it wholesale,
// then runs then on the loop. then runs even when the reload failed.
func (c *Client) reloadChats(then func()) {
	if c.api == nil {
		c.log.Warn().Str("component", "reconcile").Msg("chat reload skipped: no api")
		if then != nil {
			then()
		}
		return
	}
	epoch := c.epoch
	go func() {
		list, err := c.api.GetChatList(c.ctx)
		c.post(func() {
			if epoch != c.epoch {
				return
			}
			incReload(err == nil)
			if err != nil {
				c.log.Error().Str("component", "reconcile").Err(err).Msg("failed to reload chats")
			} else {
				c.chats.Replace(list)
			}
			if then != nil {
				then()
			}
		})
	}()
}

// markAsRead sends a read receipt when connected and always resets the
// chat's unread counter.
func (c *Client) markAsRead(chatID int64, messageID string) error {
	if chatID == 0 || messageID == "" {
		c.log.Error().Str("component", "reconcile").Int64("chat_id", chatID).Str("message_id", messageID).Msg("markAsRead called with invalid parameters")
		return ErrInvalidReceipt
	}
	if c.conn.isOpen() {
		if err := c.conn.send(NewReadFrame(chatID, messageID)); err != nil {
			c.log.Warn().Err(err).Int64("chat_id", chatID).Msg("read receipt not sent")
		}
	}
	c.chats.ResetUnread(chatID)
	return nil
}

// ============================================================================
// Public reconciliation API
// ============================================================================

// MarkAsRead marks messages up to messageID in chatID as read. A receipt is
// sent only while connected, but the local unread counter is reset either
// way.
func (c *Client) MarkAsRead(chatID int64, messageID string) error {
	var err error
	if e := c.do(func() { err = c.markAsRead(chatID, messageID) }); e != nil {
		return e
	}
	return err
}

// OpenChat makes chatID the active chat: its unread counter is reset, the
// server is told the client follows it and the newest received message is
// marked read.
func (c *Client) OpenChat(chatID int64) error {
	if chatID == 0 {
		return ErrInvalidReceipt
	}
	return c.do(func() {
		c.activeChat = chatID
		c.chats.ResetUnread(chatID)
		if r, ok := c.notifier.(tagResetter); ok {
			r.Reset(notificationTag(chatID))
		}
		if c.conn.isOpen() {
			if err := c.conn.send(NewChatOpenFrame(chatID, c.session.Info().UserID)); err != nil {
				c.log.Debug().Err(err).Msg("chat.open not sent")
			}
		}
		last, ok := c.messages.Last(chatID, func(m *Message) bool { return !c.session.IsOwn(m) })
		if ok {
			_ = c.markAsRead(chatID, last.ID)
		}
	})
}

// CloseChat clears the active chat.
func (c *Client) CloseChat() {
	_ = c.do(func() { c.activeChat = 0 })
}

// SetMessages replaces a chat's message list.
func (c *Client) SetMessages(chatID int64, msgs []Message) {
	_ = c.do(func() { c.messages.SetMessages(chatID, msgs) })
}

// LoadChats fetches the chat list and installs it wholesale. REST errors are
// returned to the caller. A result that arrives after a logout is dropped.
func (c *Client) LoadChats(ctx context.Context) error {
	if c.api == nil {
		return errors.New("no chat api configured")
	}
	epoch, err := c.currentEpoch()
	if err != nil {
		return err
	}
	list, err := c.api.GetChatList(ctx)
	if err != nil {
		return err
	}
	return c.do(func() {
		if epoch != c.epoch {
			c.log.Debug().Str("component", "reconcile").Msg("chat list discarded: session changed")
			return
		}
		c.chats.Replace(list)
	})
}

// LoadMessages fetches a chat's history and replaces its message list.
func (c *Client) LoadMessages(ctx context.Context, chatID int64) error {
	if c.api == nil {
		return errors.New("no chat api configured")
	}
	epoch, err := c.currentEpoch()
	if err != nil {
		return err
	}
	msgs, err := c.api.GetMessages(ctx, chatID)
	if err != nil {
		return err
	}
	return c.do(func() {
		if epoch != c.epoch {
			c.log.Debug().Str("component", "reconcile").Int64("chat_id", chatID).Msg("history discarded: session changed")
			return
		}
		c.messages.SetMessages(chatID, msgs)
	})
}

func (c *Client) currentEpoch() (uint64, error) {
	var epoch uint64
	err := c.do(func() { epoch = c.epoch })
	return epoch, err
}
