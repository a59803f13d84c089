package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	wazzap "github.com/wazzap-chat/wazzap/sdk/golang"
)

var readWait time.Duration

func init() {
	readCmd.Flags().DurationVar(&readWait, "wait", 10*time.Second, "How long to wait for the realtime connection")
	rootCmd.AddCommand(readCmd)
}

var readCmd = &cobra.Command{
	Use:   "read <chat-id> <message-id>",
	Short: "Send a read receipt for a message",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		chatID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid chat id %q", args[0])
		}
		messageID := args[1]

		client, err := newClient(newLogger(), nil)
		if err != nil {
			return err
		}
		defer client.Close()

		open := make(chan struct{}, 1)
		client.OnStateChange(func(s wazzap.ConnState) {
			if s == wazzap.StateOpen {
				select {
				case open <- struct{}{}:
				default:
				}
			}
		})
		if err := client.Connect(); err != nil {
			return err
		}

		select {
		case <-open:
		case <-time.After(readWait):
			return fmt.Errorf("realtime connection not open after %s", readWait)
		}

		if err := client.MarkAsRead(chatID, messageID); err != nil {
			return err
		}
		fmt.Printf("Marked chat %d read up to message %s\n", chatID, messageID)
		return nil
	},
}
