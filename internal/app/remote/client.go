/*
Package remote is the HTTP client for the chat server's REST API.

Every non-success response is turned into an *errs.CustomError carrying the
upstream status, so callers can apply one auth-expiry policy to all calls.
*/
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"chatsync/internal/app/model"
	"chatsync/internal/pkg/errs"
	"chatsync/internal/pkg/logx"
)

// maxErrorBody caps how much of an error response is kept for diagnostics.
const maxErrorBody = 4 << 10

// Client talks to the chat server. The base URL is looked up on every request
// because the runtime configuration may arrive after the client is built.
type Client struct {
	baseURL    func() string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient returns a Client whose requests are bounded by timeout.
func NewClient(baseURL func() string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logx.Component("remote"),
	}
}

type SignupInput struct {
	Email     string `json:"email"`
	Fullname  string `json:"fullname"`
	Password  string `json:"password"`
	Workspace string `json:"workspace"`
}

type SigninInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type SendMessageInput struct {
	Content string   `json:"content"`
	Files   []string `json:"files"`
}

type CreateChatInput struct {
	Name    string  `json:"name"`
	Members []int64 `json:"members"`
	Public  bool    `json:"public"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

// directoryEntry is the subset of a user record the /users endpoint is trusted for.
type directoryEntry struct {
	ID       int64  `json:"id"`
	Fullname string `json:"fullname"`
	Email    string `json:"email"`
}

// Signup creates an account and workspace and returns the issued token.
func (c *Client) Signup(ctx context.Context, in SignupInput) (string, error) {
	var out tokenResponse
	if err := c.do(ctx, http.MethodPost, "/signup", "", nil, in, &out); err != nil {
		return "", credentialError(err)
	}
	if out.Token == "" {
		return "", errs.NewError(errs.ErrRemoteDecode)
	}
	return out.Token, nil
}

// Signin exchanges credentials for a token.
func (c *Client) Signin(ctx context.Context, in SigninInput) (string, error) {
	var out tokenResponse
	if err := c.do(ctx, http.MethodPost, "/signin", "", nil, in, &out); err != nil {
		return "", credentialError(err)
	}
	if out.Token == "" {
		return "", errs.NewError(errs.ErrRemoteDecode)
	}
	return out.Token, nil
}

// credentialError reclassifies an authorization denial on an unauthenticated call:
// there is no session to expire, the credentials were refused.
func credentialError(err error) error {
	if !errs.IsAuthExpired(err) {
		return err
	}
	return errs.Wrap(errs.ErrInvalidCredentials, err)
}

// ListUsers returns the workspace directory keyed by user id.
func (c *Client) ListUsers(ctx context.Context, token string) (map[int64]model.User, error) {
	var entries []directoryEntry
	if err := c.do(ctx, http.MethodGet, "/users", token, nil, nil, &entries); err != nil {
		return nil, err
	}

	users := make(map[int64]model.User, len(entries))
	for _, e := range entries {
		users[e.ID] = model.User{ID: e.ID, Fullname: e.Fullname, Email: e.Email}
	}
	return users, nil
}

// ListChats returns every channel the token's user belongs to.
func (c *Client) ListChats(ctx context.Context, token string) ([]model.Channel, error) {
	var chats []model.Channel
	if err := c.do(ctx, http.MethodGet, "/chats", token, nil, nil, &chats); err != nil {
		return nil, err
	}
	if chats == nil {
		chats = []model.Channel{}
	}
	return chats, nil
}

// ListMessages returns the most recent limit messages of a chat, newest first.
func (c *Client) ListMessages(ctx context.Context, token string, chatID int64, limit int) ([]model.Message, error) {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))

	var msgs []model.Message
	path := "/chats/" + strconv.FormatInt(chatID, 10) + "/messages"
	if err := c.do(ctx, http.MethodGet, path, token, query, nil, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// SendMessage posts a message to a chat and returns the server's copy.
func (c *Client) SendMessage(ctx context.Context, token string, chatID int64, in SendMessageInput) (*model.Message, error) {
	if in.Files == nil {
		in.Files = []string{}
	}

	var msg model.Message
	path := "/chats/" + strconv.FormatInt(chatID, 10)
	if err := c.do(ctx, http.MethodPost, path, token, nil, in, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// CreateChat creates a channel and returns it.
func (c *Client) CreateChat(ctx context.Context, token string, in CreateChatInput) (*model.Channel, error) {
	var ch model.Channel
	if err := c.do(ctx, http.MethodPost, "/chats", token, nil, in, &ch); err != nil {
		return nil, err
	}
	return &ch, nil
}

// do performs one JSON round trip. body and out may be nil.
func (c *Client) do(ctx context.Context, method, path, token string, query url.Values, body, out any) error {
	endpoint := strings.TrimRight(c.baseURL(), "/") + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).Str("method", method).Str("path", path).Msg("Chat server request failed")
		return errs.Wrap(errs.ErrRemoteUnavailable, err)
	}
	defer resp.Body.Close()

	c.logger.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("Chat server responded")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errs.FromStatus(resp.StatusCode, readErrorMessage(resp.Body))
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return errs.Wrap(errs.ErrRemoteDecode, errors.New("empty response body"))
		}
		return errs.Wrap(errs.ErrRemoteDecode, err)
	}
	return nil
}

// readErrorMessage extracts the server's error text, preferring an {"error": "..."} body.
func readErrorMessage(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil || len(raw) == 0 {
		return ""
	}

	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &body) == nil {
		if body.Error != "" {
			return body.Error
		}
		if body.Message != "" {
			return body.Message
		}
	}
	return strings.TrimSpace(string(raw))
}
