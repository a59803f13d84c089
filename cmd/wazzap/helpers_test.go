package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	wazzap "github.com/wazzap-chat/wazzap/sdk/golang"
)

func TestDeriveWSURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"http://localhost:8000", "ws://localhost:8000/api/ws"},
		{"https://chat.example.com/", "wss://chat.example.com/api/ws"},
		{"https://chat.example.com/base?x=1", "wss://chat.example.com/base/api/ws"},
		{"wss://chat.example.com/api/ws", "wss://chat.example.com/api/ws"},
	}
	for _, tt := range tests {
		got, err := deriveWSURL(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := deriveWSURL("ftp://chat.example.com")
	assert.Error(t, err)
}

func TestEndpoints(t *testing.T) {
	t.Setenv("WAZZAP_API_URL", "")
	t.Setenv("WAZZAP_WS_URL", "")

	api, ws, err := endpoints(&Config{})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8000", api)
	assert.Equal(t, "ws://localhost:8000/api/ws", ws)

	api, ws, err = endpoints(&Config{Default: ConfigDefault{APIURL: "https://a.example", WSURL: "wss://b.example/"}})
	require.NoError(t, err)
	assert.Equal(t, "https://a.example", api)
	assert.Equal(t, "wss://b.example/api/ws", ws, "explicit realtime url gets the path appended")

	t.Setenv("WAZZAP_API_URL", "https://env.example")
	api, ws, err = endpoints(&Config{Default: ConfigDefault{APIURL: "https://a.example"}})
	require.NoError(t, err)
	assert.Equal(t, "https://env.example", api)
	assert.Equal(t, "wss://env.example/api/ws", ws)
}

func TestSetConfigValue(t *testing.T) {
	cfg := &Config{}
	require.NoError(t, setConfigValue(cfg, "default.api_url", "https://a.example"))
	require.NoError(t, setConfigValue(cfg, "default.ws_url", "wss://a.example/api/ws"))
	assert.Equal(t, "https://a.example", cfg.Default.APIURL)
	assert.Equal(t, "wss://a.example/api/ws", cfg.Default.WSURL)

	require.NoError(t, setConfigValue(cfg, "default.ws_url", "wss://b.example/"))
	assert.Equal(t, "wss://b.example/api/ws", cfg.Default.WSURL)
	require.NoError(t, setConfigValue(cfg, "default.api_url", "http://localhost:8000/"))
	assert.Equal(t, "http://localhost:8000", cfg.Default.APIURL)

	assert.Error(t, setConfigValue(cfg, "default.api_url", "ftp://a.example"))
	assert.Error(t, setConfigValue(cfg, "default.api_url", "localhost:8000"))
	assert.Error(t, setConfigValue(cfg, "default.ws_url", "https://a.example/api/ws"))
	assert.Equal(t, "wss://b.example/api/ws", cfg.Default.WSURL, "rejected values leave the config alone")

	assert.Error(t, setConfigValue(cfg, "api_url", "x"))
	assert.Error(t, setConfigValue(cfg, "default.nope", "x"))
	assert.Error(t, setConfigValue(cfg, "auth.jwt", "x"))
	assert.Error(t, setConfigValue(cfg, "other.key", "x"))
}

func TestMaskToken(t *testing.T) {
	assert.Equal(t, "****", maskToken("short"))
	assert.Equal(t, "abcd...wxyz", maskToken("abcdefghijklmnopqrstuvwxyz"))
}

func TestRequireSession(t *testing.T) {
	session := wazzap.NewSession(nil)
	assert.ErrorIs(t, requireSession(session), wazzap.ErrNotAuthenticated)

	require.NoError(t, session.Login("alice", wazzap.LoginResult{Token: "tok", SessionID: "sid", UserID: 1}))
	assert.NoError(t, requireSession(session))
}

func TestRedactedConfig(t *testing.T) {
	cfg := &Config{
		Default: ConfigDefault{APIURL: "https://a.example"},
		Auth:    ConfigAuth{Token: "abcdefghijklmnopqrstuvwxyz", SessionID: "sid", Username: "alice", UserID: "1"},
	}
	out, err := redactedConfig(cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "abcd...wxyz")
	assert.NotContains(t, out, "abcdefghijklmnopqrstuvwxyz")
	assert.Contains(t, out, "https://a.example")
	assert.Equal(t, "abcdefghijklmnopqrstuvwxyz", cfg.Auth.Token, "caller's config is not modified")
}

func TestFindUser(t *testing.T) {
	users := []wazzap.User{{ID: 1, Username: "alice"}, {ID: 2, Username: "bob"}}

	u, err := findUser(users, "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(2), u.ID)

	u, err = findUser(users, "1")
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)

	_, err = findUser(users, "carol")
	assert.Error(t, err)
}

func TestCheckCredentials(t *testing.T) {
	assert.NoError(t, checkCredentials("carol", "1234"))
	assert.Error(t, checkCredentials("al", "1234"))
	assert.Error(t, checkCredentials("carol", "123"))
	assert.Error(t, checkCredentials("carol", "123456789"))
}
