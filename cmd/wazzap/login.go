package main

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/spf13/cobra"

	wazzap "github.com/wazzap-chat/wazzap/sdk/golang"
)

var (
	loginPIN    string
	registerPIN string
)

func init() {
	loginCmd.Flags().StringVar(&loginPIN, "pin", "", "PIN for the account (required)")
	_ = loginCmd.MarkFlagRequired("pin")
	registerCmd.Flags().StringVar(&registerPIN, "pin", "", "PIN for the new account, 4 to 8 characters (required)")
	_ = registerCmd.MarkFlagRequired("pin")
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
}

var registerCmd = &cobra.Command{
	Use:   "register <username>",
	Short: "Create a new account",
	Long:  "Create a new account on the server. Run 'wazzap login' afterwards to start a session.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		username := args[0]
		if err := checkCredentials(username, registerPIN); err != nil {
			return err
		}
		_, _, api, err := setup(newLogger())
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		user, err := api.Register(ctx, username, registerPIN)
		if err != nil {
			return describeAPIError("registration failed", err)
		}
		fmt.Printf("Account created: %s (user %d)\n", user.Username, user.ID)
		fmt.Printf("Run 'wazzap login %s --pin ...' to start a session.\n", user.Username)
		return nil
	},
}

// checkCredentials applies the server's username and PIN length limits
// before a request is made.
func checkCredentials(username, pin string) error {
	if n := utf8.RuneCountInString(username); n < 3 || n > 64 {
		return fmt.Errorf("username must be 3 to 64 characters")
	}
	if n := utf8.RuneCountInString(pin); n < 4 || n > 8 {
		return fmt.Errorf("pin must be 4 to 8 characters")
	}
	return nil
}

var loginCmd = &cobra.Command{
	Use:   "login <username>",
	Short: "Log in and store the session locally",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		username := args[0]
		_, session, api, err := setup(newLogger())
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		res, err := api.Login(ctx, username, loginPIN)
		if err != nil {
			return describeAPIError("login failed", err)
		}
		if err := session.Login(username, *res); err != nil {
			return fmt.Errorf("failed to store session: %w", err)
		}

		info := session.Info()
		fmt.Println("Login successful!")
		fmt.Printf("  Username: %s\n", info.Username)
		fmt.Printf("  User ID:  %d\n", info.UserID)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the stored session",
	RunE: func(cmd *cobra.Command, args []string) error {
		session, err := newSession()
		if err != nil {
			return err
		}
		wasLoggedIn := session.IsAuthenticated()
		if err := session.Logout(); err != nil {
			return fmt.Errorf("failed to clear session: %w", err)
		}
		if wasLoggedIn {
			fmt.Println("Logged out.")
		} else {
			fmt.Println("No session stored.")
		}
		return nil
	},
}

// describeAPIError turns REST failures into the messages users see.
func describeAPIError(prefix string, err error) error {
	switch {
	case errors.Is(err, wazzap.ErrTimeout):
		return fmt.Errorf("%s: the server is not responding: %w", prefix, err)
	case errors.Is(err, wazzap.ErrUnreachable):
		return fmt.Errorf("%s: unable to connect to the server: %w", prefix, err)
	}
	var apiErr *wazzap.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%s: %s", prefix, apiErr.Message)
	}
	return fmt.Errorf("%s: %w", prefix, err)
}
