package engine

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"chatsync/internal/app/model"
	"chatsync/internal/app/remote"
	"chatsync/internal/app/store"
	"chatsync/internal/pkg/auth/jwt"
	"chatsync/internal/pkg/errs"
)

// LoadState populates the session from token. User and workspace come from the
// token's own claims; the directory and channel list are fetched concurrently.
// The cache is written before the session, and a failed cache write leaves the
// in-memory state authoritative. On success the push stream is (re)opened.
func (e *Engine) LoadState(ctx context.Context, token string) (*model.User, error) {
	claims, err := jwt.DecodeClaims(token)
	if err != nil {
		e.logger.Error().Err(err).Msg("Failed to load state: unreadable token")
		return nil, errs.Wrap(errs.ErrTokenMalformed, err)
	}

	user := &model.User{
		ID:        claims.ID,
		WsID:      claims.WsID,
		WsName:    claims.WsName,
		Fullname:  claims.Fullname,
		Email:     claims.Email,
		CreatedAt: claims.CreatedAt,
	}
	workspace := &model.Workspace{ID: claims.WsID, Name: claims.WsName}

	var (
		users    map[int64]model.User
		channels []model.Channel
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		users, err = e.api.ListUsers(gctx, token)
		return err
	})
	g.Go(func() error {
		var err error
		channels, err = e.api.ListChats(gctx, token)
		return err
	})
	if err := g.Wait(); err != nil {
		e.logger.Error().Err(err).Int64("user_id", user.ID).Msg("Failed to load state")
		e.guard(ctx, "load_state", err)
		return nil, err
	}

	e.persist(store.KeyUser, user)
	if err := e.cache.SetString(store.KeyToken, token); err != nil {
		e.logger.Error().Err(err).Msg("Failed to persist token")
	}
	e.persist(store.KeyWorkspace, workspace)
	e.persist(store.KeyUsers, users)
	e.persist(store.KeyChannels, channels)

	e.session.SetUser(user)
	e.session.SetToken(token)
	e.session.SetWorkspace(workspace)
	e.session.SetChannels(channels)
	e.session.SetUsers(users)

	e.logger.Info().
		Int64("user_id", user.ID).
		Int64("workspace_id", workspace.ID).
		Int("users", len(users)).
		Int("channels", len(channels)).
		Msg("Session state loaded")

	e.openStream(ctx, token)
	return user, nil
}

func (e *Engine) persist(key store.Key, value any) {
	if err := e.cache.Set(key, value); err != nil {
		e.logger.Error().Err(err).Str("key", string(key)).Msg("Failed to persist session state")
	}
}

// FetchMessagesForChannel loads the latest page of a channel the first time it is
// needed. A channel that already holds messages, or whose first fetch is still
// running, is left alone. Failures other than auth expiry are logged and dropped.
func (e *Engine) FetchMessagesForChannel(ctx context.Context, channelID int64) {
	if e.session.HasMessages(channelID) {
		return
	}

	e.mu.Lock()
	if _, busy := e.inflight[channelID]; busy {
		e.mu.Unlock()
		return
	}
	e.inflight[channelID] = struct{}{}
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		delete(e.inflight, channelID)
		e.mu.Unlock()
	}()

	token := e.session.Token()
	if token == "" {
		e.logger.Debug().Int64("channel_id", channelID).Msg("Skipping message fetch while signed out")
		return
	}

	page, err := e.api.ListMessages(ctx, token, channelID, e.cfg.PageSize)
	if err != nil {
		if !e.guard(ctx, "fetch_messages", err) {
			e.logger.Error().Err(err).Int64("channel_id", channelID).Msg("Failed to fetch messages for channel")
		}
		return
	}

	e.session.SetMessages(channelID, page)
}

// SendMessage posts a message. The session is not updated here: the message shows
// up once the push stream delivers the server's copy.
func (e *Engine) SendMessage(ctx context.Context, chatID int64, content string, files []string) error {
	if strings.TrimSpace(content) == "" && len(files) == 0 {
		return errs.NewError(errs.ErrMessageContentEmpty)
	}

	token := e.session.Token()
	if token == "" {
		return errs.NewError(errs.ErrNotAuthenticated)
	}

	_, err := e.api.SendMessage(ctx, token, chatID, remote.SendMessageInput{Content: content, Files: files})
	if err != nil {
		if !e.guard(ctx, "send_message", err) {
			e.logger.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to send message")
		}
		return err
	}

	e.events.MessageSent(chatID, messageType(files), len(content), len(files))
	return nil
}

func messageType(files []string) string {
	if len(files) > 0 {
		return "file"
	}
	return "text"
}

// CreateChannel creates a channel on the server and adds it to the session.
func (e *Engine) CreateChannel(ctx context.Context, in remote.CreateChatInput) (*model.Channel, error) {
	token := e.session.Token()
	if token == "" {
		return nil, errs.NewError(errs.ErrNotAuthenticated)
	}

	ch, err := e.api.CreateChat(ctx, token, in)
	if err != nil {
		if !e.guard(ctx, "create_channel", err) {
			e.logger.Error().Err(err).Str("name", in.Name).Msg("Failed to create channel")
		}
		return nil, err
	}

	if err := e.session.AddChannel(*ch); err != nil {
		// the push stream or a reload may have delivered it first
		e.logger.Warn().Err(err).Int64("channel_id", ch.ID).Msg("Created channel already present")
	}

	if ws := e.session.Workspace(); ws != nil {
		e.events.ChatCreated(ws.ID)
	} else {
		e.events.ChatCreated(ch.WsID)
	}
	return ch, nil
}
