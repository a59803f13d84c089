//go:build integration

package wazzap_test

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	wazzap "github.com/wazzap-chat/wazzap/sdk/golang"
)

// helpers ---------------------------------------------------------------

func testBaseURL() string {
	if v := os.Getenv("WAZZAP_BASE_URL"); v != "" {
		return strings.TrimRight(v, "/")
	}
	return wazzap.DefaultAPIURL
}

func testWSURL() string {
	base := testBaseURL()
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://") + "/api/ws"
	default:
		return "ws://" + strings.TrimPrefix(base, "http://") + "/api/ws"
	}
}

func credentials(t *testing.T) (string, string) {
	t.Helper()
	user, pin := os.Getenv("WAZZAP_TEST_USER"), os.Getenv("WAZZAP_TEST_PIN")
	if user == "" || pin == "" {
		t.Fatal("WAZZAP_TEST_USER and WAZZAP_TEST_PIN environment variables are required")
	}
	return user, pin
}

func login(t *testing.T) (*wazzap.Session, *wazzap.APIClient) {
	t.Helper()
	user, pin := credentials(t)
	session := wazzap.NewSession(nil)
	api := wazzap.NewAPIClient(wazzap.WithBaseURL(testBaseURL()), wazzap.WithSession(session))

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	res, err := api.Login(ctx, user, pin)
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if err := session.Login(user, *res); err != nil {
		t.Fatalf("session.Login returned error: %v", err)
	}
	return session, api
}

// =======================================================================
// REST
// =======================================================================

func TestIntegration_Login_WrongPIN(t *testing.T) {
	user, _ := credentials(t)
	api := wazzap.NewAPIClient(wazzap.WithBaseURL(testBaseURL()))

	_, err := api.Login(context.Background(), user, "definitely-not-the-pin")
	var apiErr *wazzap.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.Kind != wazzap.ErrKindServer {
		t.Errorf("expected server error kind, got %s", apiErr.Kind)
	}
	t.Logf("wrong PIN: status=%d message=%q", apiErr.Status, apiErr.Message)
}

func TestIntegration_ChatList(t *testing.T) {
	_, api := login(t)
	chats, err := api.GetChatList(context.Background())
	if err != nil {
		t.Fatalf("GetChatList returned error: %v", err)
	}
	for _, c := range chats {
		if c.UnreadCount < 0 {
			t.Errorf("chat %d has negative unread count %d", c.ID, c.UnreadCount)
		}
	}
	t.Logf("chat list: %d chats", len(chats))

	if len(chats) > 0 {
		msgs, err := api.GetMessages(context.Background(), chats[0].ID)
		if err != nil {
			t.Fatalf("GetMessages returned error: %v", err)
		}
		t.Logf("chat %d: %d messages", chats[0].ID, len(msgs))
	}
}

// =======================================================================
// Realtime
// =======================================================================

func TestIntegration_Realtime_ConnectAndLogout(t *testing.T) {
	session, api := login(t)
	client := wazzap.New(wazzap.Config{WSURL: testWSURL()}, session, api)
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
	if err := client.LoadChats(context.Background()); err != nil {
		t.Fatalf("LoadChats returned error: %v", err)
	}
	if err := client.Connect(); err != nil {
		t.Fatalf("Connect returned error: %v", err)
	}

	select {
	case <-open:
	case <-time.After(15 * time.Second):
		t.Fatal("connection did not open")
	}
	if err := client.Send(wazzap.NewPingFrame()); err != nil {
		t.Errorf("ping failed: %v", err)
	}

	if err := client.Logout(); err != nil {
		t.Fatalf("Logout returned error: %v", err)
	}
	if session.IsAuthenticated() {
		t.Error("session still authenticated after logout")
	}
	if got := client.State(); got != wazzap.StateDisconnected {
		t.Errorf("expected disconnected, got %s", got)
	}
}
