package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	wazzap "github.com/wazzap-chat/wazzap/sdk/golang"
)

var (
	chatsJSON bool

	messagesJSON  bool
	messagesLimit int
)

func init() {
	chatsCmd.Flags().BoolVar(&chatsJSON, "json", false, "Output raw JSON")
	messagesCmd.Flags().BoolVar(&messagesJSON, "json", false, "Output raw JSON")
	messagesCmd.Flags().IntVar(&messagesLimit, "limit", 20, "Show only the newest N messages (0 for all)")
	rootCmd.AddCommand(chatsCmd)
	rootCmd.AddCommand(messagesCmd)
}

var chatsCmd = &cobra.Command{
	Use:   "chats",
	Short: "List chats with unread counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, session, api, err := setup(newLogger())
		if err != nil {
			return err
		}
		if err := requireSession(session); err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		chats, err := api.GetChatList(ctx)
		if err != nil {
			return describeAPIError("failed to load chats", err)
		}

		if chatsJSON {
			data, _ := json.MarshalIndent(chats, "", "  ")
			fmt.Println(string(data))
			return nil
		}
		if len(chats) == 0 {
			fmt.Println("No chats.")
			return nil
		}
		for _, c := range chats {
			unread := ""
			if c.UnreadCount > 0 {
				unread = fmt.Sprintf("  (%d unread)", c.UnreadCount)
			}
			fmt.Printf("%6d  %-8s %s%s\n", c.ID, valueOrDefault(c.Type, "-"), c.DisplayTitle(), unread)
		}
		index := wazzap.NewChatIndex()
		index.Replace(chats)
		fmt.Printf("\n%d chats, %d unread\n", len(chats), index.TotalUnread())
		return nil
	},
}

var messagesCmd = &cobra.Command{
	Use:   "messages <chat-id>",
	Short: "Show the history of a chat",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		chatID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || chatID <= 0 {
			return fmt.Errorf("invalid chat id %q", args[0])
		}
		_, session, api, err := setup(newLogger())
		if err != nil {
			return err
		}
		if err := requireSession(session); err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		msgs, err := api.GetMessages(ctx, chatID)
		if err != nil {
			return describeAPIError("failed to load messages", err)
		}
		if messagesLimit > 0 && len(msgs) > messagesLimit {
			msgs = msgs[len(msgs)-messagesLimit:]
		}

		if messagesJSON {
			data, _ := json.MarshalIndent(msgs, "", "  ")
			fmt.Println(string(data))
			return nil
		}
		for _, m := range msgs {
			body := m.Content
			if body == "" {
				body = "[Media] " + m.MediaURL
			}
			fmt.Printf("[%s] %s: %s\n", m.ID, valueOrDefault(m.SenderUsername, strconv.FormatInt(m.SenderID, 10)), body)
		}
		return nil
	},
}
