/*
Package engine reconciles the chat server, the live push stream and the local
cache into the session.

It hosts the remote sync operations (state load, message fetch and send, channel
creation) and the lifecycle controller that ties sign in, sign up and logout to
cache hydration, stream ownership and analytics.
*/
package engine

import (
	"context"
	"encoding/json"
	"net/url"
	"sync"

	"github.com/rs/zerolog"

	"chatsync/internal/app/analytics"
	"chatsync/internal/app/model"
	"chatsync/internal/app/remote"
	"chatsync/internal/app/session"
	"chatsync/internal/app/store"
	"chatsync/internal/app/stream"
	"chatsync/internal/pkg/errs"
	"chatsync/internal/pkg/logx"
)

// EventNewMessage is the push event carrying a freshly posted message.
const EventNewMessage = "NewMessage"

// ChatAPI is the chat server surface the engine depends on.
// ListMessages returns a page newest-first.
type ChatAPI interface {
	Signup(ctx context.Context, in remote.SignupInput) (string, error)
	Signin(ctx context.Context, in remote.SigninInput) (string, error)
	ListUsers(ctx context.Context, token string) (map[int64]model.User, error)
	ListChats(ctx context.Context, token string) ([]model.Channel, error)
	ListMessages(ctx context.Context, token string, chatID int64, limit int) ([]model.Message, error)
	SendMessage(ctx context.Context, token string, chatID int64, in remote.SendMessageInput) (*model.Message, error)
	CreateChat(ctx context.Context, token string, in remote.CreateChatInput) (*model.Channel, error)
}

// Config wires the engine's collaborators.
type Config struct {
	// PageSize is how many recent messages a first channel fetch requests.
	PageSize int

	// StreamURL returns the push endpoint base at connect time.
	StreamURL func() string

	Transport stream.Transport

	// Reload is called once logout has torn the session down. The host process
	// uses it to restart from hydration.
	Reload func()
}

// Engine owns the session's lifecycle. It is safe for concurrent use.
type Engine struct {
	session *session.Session
	cache   *store.Cache
	api     ChatAPI
	events  *analytics.Emitter
	cfg     Config
	logger  zerolog.Logger

	mu       sync.Mutex
	state    State
	stream   *stream.Stream
	inflight map[int64]struct{}
}

// New builds an engine around a hydrated session. The initial state follows the
// session: a cached token counts as authenticated until the server says otherwise.
// events may be nil.
func New(sess *session.Session, cache *store.Cache, api ChatAPI, events *analytics.Emitter, cfg Config) *Engine {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 10
	}
	if cfg.Transport == nil {
		cfg.Transport = stream.SSETransport{}
	}

	state := StateUnauthenticated
	if sess.IsAuthenticated() {
		state = StateAuthenticated
	}

	return &Engine{
		session:  sess,
		cache:    cache,
		api:      api,
		events:   events,
		cfg:      cfg,
		logger:   logx.Component("engine"),
		state:    state,
		inflight: make(map[int64]struct{}),
	}
}

// Session exposes the state the UI reads.
func (e *Engine) Session() *session.Session {
	return e.session
}

// guard applies the auth-expiry policy to err. It reports whether a logout was forced.
func (e *Engine) guard(ctx context.Context, op string, err error) bool {
	if !errs.IsAuthExpired(err) {
		return false
	}

	e.logger.Warn().Err(err).Str("op", op).Msg("Chat server rejected the token, logging out")
	e.Logout(ctx)
	return true
}

func (e *Engine) openStream(ctx context.Context, token string) {
	e.closeStream()

	base := e.cfg.StreamURL()
	target, err := url.Parse(base)
	if err != nil {
		e.logger.Error().Err(err).Str("url", base).Msg("Invalid push stream url")
		return
	}
	q := target.Query()
	q.Set("access_token", token)
	target.RawQuery = q.Encode()

	s, err := stream.Open(ctx, e.cfg.Transport, target.String(), e.handleEvent)
	if err != nil {
		e.logger.Warn().Err(err).Msg("Failed to open push stream, continuing without live updates")
		return
	}

	e.mu.Lock()
	prev := e.stream
	e.stream = s
	e.mu.Unlock()

	// a concurrent open may have raced us
	if prev != nil {
		prev.Close()
	}
}

func (e *Engine) closeStream() {
	e.mu.Lock()
	s := e.stream
	e.stream = nil
	e.mu.Unlock()

	if s != nil {
		s.Close()
	}
}

// StreamOpen reports whether a push stream is currently held.
func (e *Engine) StreamOpen() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stream != nil
}

func (e *Engine) handleEvent(ev stream.Event) {
	switch ev.Name {
	case EventNewMessage:
		var msg model.Message
		if err := json.Unmarshal(ev.Data, &msg); err != nil {
			e.logger.Warn().Err(err).Bytes("data", ev.Data).Msg("Dropping undecodable push message")
			return
		}
		e.session.AddMessage(msg.ChatID, msg)
		e.logger.Debug().Int64("chat_id", msg.ChatID).Int64("message_id", msg.ID).Msg("Push message applied")
	default:
		e.logger.Debug().Str("event", ev.Name).Bytes("data", ev.Data).Msg("Push event ignored")
	}
}

// Shutdown releases the push stream without touching the session or cache.
func (e *Engine) Shutdown() {
	e.closeStream()
}
