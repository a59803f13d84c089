package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	wazzap "github.com/wazzap-chat/wazzap/sdk/golang"
)

func init() {
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show current configuration and session status",
	Long:  "Display the configured endpoints, the stored session and, when logged in, a live check against the server.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, session, api, err := setup(newLogger())
		if err != nil {
			return err
		}
		apiURL, wsURL, err := endpoints(cfg)
		if err != nil {
			return err
		}

		fmt.Println("Configuration:")
		fmt.Printf("  API URL:      %s\n", apiURL)
		fmt.Printf("  Realtime URL: %s\n", wsURL)

		fmt.Println()
		fmt.Println("Session:")
		info := session.Info()
		if !info.IsAuthenticated {
			fmt.Println("  (not logged in)")
			return nil
		}
		fmt.Printf("  Username:   %s\n", valueOrDefault(info.Username, "(unknown)"))
		fmt.Printf("  User ID:    %d\n", info.UserID)
		fmt.Printf("  Token:      %s\n", maskToken(info.Token))
		fmt.Printf("  Session ID: %s\n", info.SessionID)

		fmt.Println()
		fmt.Println("Live status:")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		chats, err := api.GetChatList(ctx)
		if err != nil {
			fmt.Printf("  Error: %v\n", describeAPIError("chat list", err))
			return nil
		}
		index := wazzap.NewChatIndex()
		index.Replace(chats)
		fmt.Printf("  Chats:  %d\n", len(chats))
		fmt.Printf("  Unread: %d\n", index.TotalUnread())
		return nil
	},
}

// maskToken shows the first and last 4 characters of a token.
func maskToken(token string) string {
	if len(token) <= 12 {
		return "****"
	}
	return token[:4] + "..." + token[len(token)-4:]
}
