package engine

import (
	"context"

	"chatsync/internal/app/model"
	"chatsync/internal/app/remote"
	"chatsync/internal/app/store"
	"chatsync/internal/pkg/errs"
)

// State is the authentication state of the session.
type State string

const (
	StateUnauthenticated State = "unauthenticated"
	StateAuthenticating  State = "authenticating"
	StateAuthenticated   State = "authenticated"
)

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Engine) setState(s State) {
	e.mu.Lock()
	prev := e.state
	e.state = s
	e.mu.Unlock()

	if prev != s {
		e.logger.Info().Str("from", string(prev)).Str("to", string(s)).Msg("Session state changed")
	}
}

// beginAuth moves to authenticating unless an attempt is already running.
func (e *Engine) beginAuth() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StateAuthenticating {
		return errs.NewError(errs.ErrAuthInProgress)
	}
	e.logger.Info().Str("from", string(e.state)).Str("to", string(StateAuthenticating)).Msg("Session state changed")
	e.state = StateAuthenticating
	return nil
}

// Signup registers a new account and workspace, then loads its state.
func (e *Engine) Signup(ctx context.Context, in remote.SignupInput) (*model.User, error) {
	if err := e.beginAuth(); err != nil {
		return nil, err
	}

	user, err := e.authenticate(ctx, func() (string, error) { return e.api.Signup(ctx, in) })
	if err != nil {
		e.logger.Error().Err(err).Str("email", in.Email).Msg("Signup failed")
		return nil, err
	}

	e.events.UserRegister(in.Email, user.WsID)
	return user, nil
}

// Signin exchanges credentials for a token, then loads its state.
func (e *Engine) Signin(ctx context.Context, in remote.SigninInput) (*model.User, error) {
	if err := e.beginAuth(); err != nil {
		return nil, err
	}

	user, err := e.authenticate(ctx, func() (string, error) { return e.api.Signin(ctx, in) })
	if err != nil {
		e.logger.Error().Err(err).Str("email", in.Email).Msg("Login failed")
		return nil, err
	}

	e.events.UserLogin(in.Email)
	return user, nil
}

func (e *Engine) authenticate(ctx context.Context, obtain func() (string, error)) (*model.User, error) {
	token, err := obtain()
	if err != nil {
		e.setState(StateUnauthenticated)
		return nil, err
	}

	user, err := e.LoadState(ctx, token)
	if err != nil {
		e.setState(StateUnauthenticated)
		return nil, err
	}

	e.setState(StateAuthenticated)
	return user, nil
}

// Resume opens the push stream for a session hydrated with a token. The token is
// not revalidated; the next rejected call will log the user out.
func (e *Engine) Resume(ctx context.Context) {
	token := e.session.Token()
	if token == "" || e.StreamOpen() {
		return
	}
	e.openStream(ctx, token)
}

// Logout clears the persisted session, closes the push stream, resets memory and
// asks the host to reload. The stream goes first so no push lands in the reset session.
func (e *Engine) Logout(ctx context.Context) {
	var email string
	if u := e.session.User(); u != nil {
		email = u.Email
	}
	e.events.UserLogout(email)

	if err := e.cache.Remove(store.SessionKeys...); err != nil {
		e.logger.Error().Err(err).Msg("Failed to clear cached session")
	}
	e.closeStream()
	e.session.Reset()
	e.setState(StateUnauthenticated)

	e.logger.Info().Str("email", email).Msg("Logged out")

	if e.cfg.Reload != nil {
		e.cfg.Reload()
	}
}

// SelectChannel focuses a channel, reports the switch and loads its messages on first use.
func (e *Engine) SelectChannel(ctx context.Context, channelID int64) error {
	prev, hadPrev := e.session.ActiveChannel()

	if err := e.session.SetActiveChannel(channelID); err != nil {
		return err
	}

	if !hadPrev || prev.ID != channelID {
		if hadPrev {
			e.events.ChatLeft(prev.ID)
		}
		e.events.ChatJoined(channelID)
	}

	e.FetchMessagesForChannel(ctx, channelID)
	return nil
}

// Navigate records a move between UI routes.
func (e *Engine) Navigate(from, to string) {
	e.events.Navigation(from, to)
}
