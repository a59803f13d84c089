package main

import (
	"fmt"
	"net/url"
	"os"
	"slices"
	"strings"

	"github.com/rs/zerolog"

	wazzap "github.com/wazzap-chat/wazzap/sdk/golang"
)

const wsPath = "/api/ws"

// endpoints resolves the REST and realtime URLs from config and environment.
func endpoints(cfg *Config) (apiURL, wsURL string, err error) {
	apiURL = valueOrDefault(os.Getenv("WAZZAP_API_URL"), cfg.Default.APIURL)
	if apiURL == "" {
		apiURL = wazzap.DefaultAPIURL
	}
	wsURL = valueOrDefault(os.Getenv("WAZZAP_WS_URL"), cfg.Default.WSURL)
	if wsURL == "" {
		wsURL, err = deriveWSURL(apiURL)
		return apiURL, wsURL, err
	}
	return apiURL, withWSPath(wsURL), nil
}

// deriveWSURL maps http(s)://host to ws(s)://host/api/ws.
func deriveWSURL(apiURL string) (string, error) {
	u, err := url.Parse(apiURL)
	if err != nil {
		return "", fmt.Errorf("invalid api url %q: %w", apiURL, err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http", "":
		u.Scheme = "ws"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported api url scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawQuery = ""
	return withWSPath(u.String()), nil
}

// checkURL requires an absolute URL with a host and one of the schemes.
func checkURL(raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url %q: %w", raw, err)
	}
	if u.Host == "" || !slices.Contains(schemes, u.Scheme) {
		return fmt.Errorf("invalid url %q: want %s://host", raw, strings.Join(schemes, "|"))
	}
	return nil
}

func withWSPath(raw string) string {
	trimmed := strings.TrimRight(raw, "/")
	if strings.HasSuffix(trimmed, wsPath) {
		return trimmed
	}
	return trimmed + wsPath
}

// newSession returns a session persisted in the [auth] table of the config file.
func newSession() (*wazzap.Session, error) {
	path, err := configPath()
	if err != nil {
		return nil, err
	}
	session := wazzap.NewSession(wazzap.NewFileCredentialStore(path, "auth"))
	session.Restore()
	return session, nil
}

// setup loads config and builds the session and REST client.
func setup(log zerolog.Logger) (*Config, *wazzap.Session, *wazzap.APIClient, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	apiURL, _, err := endpoints(cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	session, err := newSession()
	if err != nil {
		return nil, nil, nil, err
	}
	api := wazzap.NewAPIClient(
		wazzap.WithBaseURL(apiURL),
		wazzap.WithSession(session),
		wazzap.WithAPILogger(log),
	)
	return cfg, session, api, nil
}

// requireSession fails when no one is logged in.
func requireSession(session *wazzap.Session) error {
	if !session.IsAuthenticated() {
		return fmt.Errorf("%w; run 'wazzap login <username>' first", wazzap.ErrNotAuthenticated)
	}
	return nil
}

func valueOrDefault(val, def string) string {
	if val == "" {
		return def
	}
	return val
}
