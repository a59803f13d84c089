package wazzap

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	DefaultAPIURL        = "http://localhost:8000"
	DefaultTimeout       = 10 * time.Second
	DefaultUploadTimeout = 30 * time.Second
)

// ChatAPI is the REST surface the realtime core depends on.
type ChatAPI interface {
	GetChatList(ctx context.Context) ([]Chat, error)
	GetMessages(ctx context.Context, chatID int64) ([]Message, error)
}

// ============================================================================
// APIClient
// ============================================================================

// APIClient is a thin JSON client for the chat REST API.
type APIClient struct {
	baseURL       string
	timeout       time.Duration
	uploadTimeout time.Duration
	httpClient    *http.Client
	session       *Session
	log           zerolog.Logger
}

type APIOption func(*APIClient)

func WithBaseURL(u string) APIOption {
	return func(c *APIClient) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithTimeout sets the budget for ordinary requests.
func WithTimeout(d time.Duration) APIOption {
	return func(c *APIClient) { c.timeout = d }
}

// WithUploadTimeout sets the budget for media uploads.
func WithUploadTimeout(d time.Duration) APIOption {
	return func(c *APIClient) { c.uploadTimeout = d }
}

func WithHTTPClient(hc *http.Client) APIOption {
	return func(c *APIClient) { c.httpClient = hc }
}

// WithSession makes the client authenticate requests with the session token
// and scope the chat list to the session user.
func WithSession(s *Session) APIOption {
	return func(c *APIClient) { c.session = s }
}

func WithAPILogger(l zerolog.Logger) APIOption {
	return func(c *APIClient) { c.log = l }
}

// NewAPIClient creates a REST client.
func NewAPIClient(opts ...APIOption) *APIClient {
	c := &APIClient{
		baseURL:       DefaultAPIURL,
		timeout:       DefaultTimeout,
		uploadTimeout: DefaultUploadTimeout,
		httpClient:    &http.Client{},
		log:           zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With().Str("component", "api").Logger()
	return c
}

// ── Operations ───────────────────────────────────────────

// Login exchanges a username and PIN for a token and session id.
func (c *APIClient) Login(ctx context.Context, username, pin string) (*LoginResult, error) {
	body := map[string]string{"username": username, "pin": pin}
	data, err := c.doRequest(ctx, http.MethodPost, "/api/auth/login", body, nil)
	if err != nil {
		return nil, err
	}
	res, err := decodeJSON[LoginResult](data)
	if err != nil {
		return nil, err
	}
	if res.Username == "" {
		res.Username = username
	}
	return res, nil
}

// Register creates an account. The server answers with the new user; it
// does not log in.
func (c *APIClient) Register(ctx context.Context, username, pin string) (*User, error) {
	body := map[string]string{"username": username, "pin": pin}
	data, err := c.doRequest(ctx, http.MethodPost, "/api/auth/register", body, nil)
	if err != nil {
		return nil, err
	}
	return decodeJSON[User](data)
}

// GetUsers lists every registered user.
func (c *APIClient) GetUsers(ctx context.Context) ([]User, error) {
	data, err := c.doRequest(ctx, http.MethodGet, "/api/users", nil, nil)
	if err != nil {
		return nil, err
	}
	users, err := decodeJSON[[]User](data)
	if err != nil {
		return nil, err
	}
	return *users, nil
}

// CreateDM opens a direct chat between two users.
func (c *APIClient) CreateDM(ctx context.Context, user1ID, user2ID int64) (*Chat, error) {
	body := map[string]int64{"user1_id": user1ID, "user2_id": user2ID}
	data, err := c.doRequest(ctx, http.MethodPost, "/api/chats/dm", body, nil)
	if err != nil {
		return nil, err
	}
	return decodeJSON[Chat](data)
}

// GetChatList fetches the session user's chats with server-side unread counts.
func (c *APIClient) GetChatList(ctx context.Context) ([]Chat, error) {
	query := map[string]string{}
	if c.session != nil {
		info := c.session.Info()
		if info.UserID != 0 {
			query["user_id"] = strconv.FormatInt(info.UserID, 10)
		} else if info.Username != "" {
			query["username"] = info.Username
		}
	}
	data, err := c.doRequest(ctx, http.MethodGet, "/api/chats", nil, query)
	if err != nil {
		return nil, err
	}
	chats, err := decodeJSON[[]Chat](data)
	if err != nil {
		return nil, err
	}
	return *chats, nil
}

// GetMessages fetches the history of one chat.
func (c *APIClient) GetMessages(ctx context.Context, chatID int64) ([]Message, error) {
	path := "/api/chats/" + strconv.FormatInt(chatID, 10) + "/messages"
	data, err := c.doRequest(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}
	msgs, err := decodeJSON[[]Message](data)
	if err != nil {
		return nil, err
	}
	return *msgs, nil
}

// UploadResult is the response of a media upload.
type UploadResult struct {
	URL string `json:"url"`
}

// UploadMedia uploads a file as multipart form data under the upload budget.
func (c *APIClient) UploadMedia(ctx context.Context, fileName string, content []byte) (*UploadResult, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", fileName)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return nil, fmt.Errorf("failed to write form file: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	data, err := c.send(ctx, c.uploadTimeout, http.MethodPost, c.baseURL+"/api/media/upload", &buf, w.FormDataContentType())
	if err != nil {
		return nil, err
	}
	return decodeJSON[UploadResult](data)
}

// ============================================================================
// Internal request helper
// ============================================================================

func (c *APIClient) doRequest(ctx context.Context, method, path string, body any, query map[string]string) ([]byte, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		params := url.Values{}
		for k, v := range query {
			params.Set(k, v)
		}
		u += "?" + params.Encode()
	}

	var bodyReader io.Reader
	contentType := ""
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(b)
		contentType = "application/json"
	}
	return c.send(ctx, c.timeout, method, u, bodyReader, contentType)
}

func (c *APIClient) send(ctx context.Context, timeout time.Duration, method, u string, body io.Reader, contentType string) ([]byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.session != nil {
		if token := c.session.Info().Token; token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		apiErr := classifyTransportError(ctx, reqCtx, err)
		c.log.Debug().Str("method", method).Str("url", u).Err(err).Stringer("kind", apiErr.Kind).Msg("request failed")
		return nil, apiErr
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyTransportError(ctx, reqCtx, err)
	}
	c.log.Debug().Str("method", method).Str("url", u).Int("status", resp.StatusCode).Dur("took", time.Since(start)).Msg("request")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{Kind: ErrKindServer, Status: resp.StatusCode, Message: errorMessage(resp.StatusCode, data)}
	}
	return data, nil
}

// classifyTransportError separates our own deadline from the caller's
// cancellation and from network failures.
func classifyTransportError(parent, reqCtx context.Context, err error) *APIError {
	if parent.Err() != nil {
		return &APIError{Kind: ErrKindUnreachable, Message: "request cancelled", Err: parent.Err()}
	}
	var netErr net.Error
	if errors.Is(reqCtx.Err(), context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &APIError{
			Kind:    ErrKindTimeout,
			Status:  http.StatusRequestTimeout,
			Message: "request timed out; the server is not responding",
			Err:     err,
		}
	}
	return &APIError{
		Kind:    ErrKindUnreachable,
		Message: "unable to connect to the server",
		Err:     err,
	}
}

// errorMessage extracts a human-readable message from an error body of the
// form {"detail": "..."}, {"detail": [{"msg": "..."}]} or {"message": "..."}.
func errorMessage(status int, data []byte) string {
	var s string
	if json.Unmarshal(data, &s) == nil && s != "" {
		return s
	}
	var body struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
	}
	if json.Unmarshal(data, &body) == nil {
		if len(body.Detail) > 0 {
			if json.Unmarshal(body.Detail, &s) == nil && s != "" {
				return s
			}
			var items []struct {
				Msg string `json:"msg"`
			}
			if json.Unmarshal(body.Detail, &items) == nil && len(items) > 0 {
				msgs := make([]string, 0, len(items))
				for _, it := range items {
					msgs = append(msgs, it.Msg)
				}
				return strings.Join(msgs, ", ")
			}
		}
		if body.Message != "" {
			return body.Message
		}
	}
	if text := strings.TrimSpace(string(data)); text != "" {
		return text
	}
	return "HTTP " + strconv.Itoa(status)
}

func decodeJSON[T any](data []byte) (*T, error) {
	var result T
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return &result, nil
}
