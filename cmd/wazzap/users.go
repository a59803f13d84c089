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

var usersJSON bool

func init() {
	usersCmd.Flags().BoolVar(&usersJSON, "json", false, "Output raw JSON")
	rootCmd.AddCommand(usersCmd)
	rootCmd.AddCommand(dmCmd)
}

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "List registered users",
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

		users, err := api.GetUsers(ctx)
		if err != nil {
			return describeAPIError("failed to load users", err)
		}
		if usersJSON {
			data, _ := json.MarshalIndent(users, "", "  ")
			fmt.Println(string(data))
			return nil
		}
		me := session.Info().UserID
		for _, u := range users {
			marker := ""
			if u.ID == me {
				marker = "  (you)"
			}
			fmt.Printf("%6d  %s%s\n", u.ID, u.Username, marker)
		}
		return nil
	},
}

var dmCmd = &cobra.Command{
	Use:   "dm <username|user-id>",
	Short: "Start a direct chat with another user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, session, api, err := setup(newLogger())
		if err != nil {
			return err
		}
		if err := requireSession(session); err != nil {
			return err
		}
		me := session.Info().UserID

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		users, err := api.GetUsers(ctx)
		if err != nil {
			return describeAPIError("failed to load users", err)
		}
		peer, err := findUser(users, args[0])
		if err != nil {
			return err
		}
		if peer.ID == me {
			return fmt.Errorf("cannot start a chat with yourself")
		}

		chat, err := api.CreateDM(ctx, me, peer.ID)
		if err != nil {
			return describeAPIError("failed to create chat", err)
		}
		fmt.Printf("Chat %d with %s is ready.\n", chat.ID, peer.Username)
		return nil
	},
}

// findUser matches a user by numeric id or exact username.
func findUser(users []wazzap.User, ref string) (wazzap.User, error) {
	id, idErr := strconv.ParseInt(ref, 10, 64)
	for _, u := range users {
		if u.Username == ref || (idErr == nil && u.ID == id) {
			return u, nil
		}
	}
	return wazzap.User{}, fmt.Errorf("no user %q", ref)
}
