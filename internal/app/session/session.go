/*
Package session holds the in-memory state of the signed-in user.

A Session is the single source of truth the UI reads: token, user, workspace,
channel list, per-channel message lists, the workspace directory and the active
channel. It is hydrated from the persistent cache at startup, repopulated by a
successful sign in and torn down by logout. All access goes through its methods.
*/
package session

import (
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"chatsync/internal/app/model"
	"chatsync/internal/app/store"
	"chatsync/internal/pkg/errs"
	"chatsync/internal/pkg/logx"
)

// Session is the authoritative client-side state for the current user.
type Session struct {
	mu sync.RWMutex

	cache  *store.Cache
	now    func() time.Time
	logger zerolog.Logger

	token         string
	user          *model.User
	workspace     *model.Workspace
	channels      []model.Channel
	messages      map[int64][]model.Message
	users         map[int64]model.User
	activeChannel *int64
}

// Option configures a Session at hydration time.
type Option func(*Session)

// WithClock overrides the clock used to derive relative message timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		s.now = now
	}
}

// Hydrate builds a Session from whatever the cache holds. Every key is read
// independently and a missing or corrupt entry simply leaves its field empty.
func Hydrate(cache *store.Cache, opts ...Option) *Session {
	s := &Session{
		cache:    cache,
		now:      time.Now,
		logger:   logx.Component("session"),
		messages: make(map[int64][]model.Message),
		users:    make(map[int64]model.User),
	}
	for _, opt := range opts {
		opt(s)
	}

	if token, ok := cache.GetString(store.KeyToken); ok {
		s.token = token
	}
	if user, ok := store.Get[*model.User](cache, store.KeyUser); ok {
		s.user = user
	}
	if workspace, ok := store.Get[*model.Workspace](cache, store.KeyWorkspace); ok {
		s.workspace = workspace
	}
	if channels, ok := store.Get[[]model.Channel](cache, store.KeyChannels); ok {
		s.channels = channels
	}
	if messages, ok := store.Get[map[int64][]model.Message](cache, store.KeyMessages); ok && messages != nil {
		s.messages = messages
	}
	if users, ok := store.Get[map[int64]model.User](cache, store.KeyUsers); ok && users != nil {
		s.users = users
	}
	if id, ok := store.Get[int64](cache, store.KeyActiveChannelID); ok && s.indexOf(id) >= 0 {
		s.activeChannel = &id
	}

	s.logger.Debug().
		Bool("authenticated", s.token != "").
		Int("channels", len(s.channels)).
		Int("users", len(s.users)).
		Msg("Session hydrated from cache")

	return s
}

// indexOf returns the position of channel id in the channel list, or -1. Callers hold mu.
func (s *Session) indexOf(id int64) int {
	return slices.IndexFunc(s.channels, func(c model.Channel) bool { return c.ID == id })
}

func (s *Session) SetUser(user *model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = user
}

func (s *Session) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

func (s *Session) SetWorkspace(workspace *model.Workspace) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workspace = workspace
}

// SetChannels replaces the channel list. An active channel that is no longer
// listed is cleared.
func (s *Session) SetChannels(channels []model.Channel) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.channels = slices.Clone(channels)
	if s.activeChannel != nil && s.indexOf(*s.activeChannel) < 0 {
		s.activeChannel = nil
	}
}

// SetUsers replaces the workspace directory.
func (s *Session) SetUsers(users map[int64]model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.users = make(map[int64]model.User, len(users))
	for id, u := range users {
		s.users[id] = u
	}
}

// SetMessages stores a page fetched from the chat server. The page arrives
// newest-first and is kept oldest-first, so the order is reversed here.
func (s *Session) SetMessages(channelID int64, page []model.Message) {
	now := s.now()

	msgs := make([]model.Message, len(page))
	for i, m := range page {
		m.FormattedCreatedAt = FormatMessageDate(m.CreatedAt, now)
		msgs[len(page)-1-i] = m
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[channelID] = msgs
}

// AddChannel appends ch with an empty message list and persists the channel
// list and message map before returning.
func (s *Session) AddChannel(ch model.Channel) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexOf(ch.ID) >= 0 {
		return errs.NewError(errs.ErrChannelExists, ch.ID)
	}

	s.channels = append(s.channels, ch)
	s.messages[ch.ID] = []model.Message{}

	if err := s.cache.Set(store.KeyChannels, s.channels); err != nil {
		s.logger.Error().Err(err).Int64("channel_id", ch.ID).Msg("Failed to persist channel list")
	}
	if err := s.cache.Set(store.KeyMessages, s.messages); err != nil {
		s.logger.Error().Err(err).Int64("channel_id", ch.ID).Msg("Failed to persist message map")
	}
	return nil
}

// AddMessage appends a pushed message to the tail of its channel's list without
// reordering. Unknown channels get a new single-element list.
func (s *Session) AddMessage(channelID int64, msg model.Message) {
	msg.FormattedCreatedAt = FormatMessageDate(msg.CreatedAt, s.now())

	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[channelID] = append(s.messages[channelID], msg)
}

// SetActiveChannel focuses channelID and persists the choice. Asking for a channel
// that is not listed is a caller bug and returns ErrChannelNotFound.
func (s *Session) SetActiveChannel(channelID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexOf(channelID) < 0 {
		return errs.NewError(errs.ErrChannelNotFound, channelID)
	}

	id := channelID
	s.activeChannel = &id

	if err := s.cache.Set(store.KeyActiveChannelID, channelID); err != nil {
		s.logger.Error().Err(err).Int64("channel_id", channelID).Msg("Failed to persist active channel")
	}
	return nil
}

// Reset drops every in-memory field.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = ""
	s.user = nil
	s.workspace = nil
	s.channels = nil
	s.messages = make(map[int64][]model.Message)
	s.users = make(map[int64]model.User)
	s.activeChannel = nil
}
