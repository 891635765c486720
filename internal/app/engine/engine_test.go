package engine

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatsync/internal/app/model"
	"chatsync/internal/app/remote"
	"chatsync/internal/app/session"
	"chatsync/internal/app/store"
	"chatsync/internal/app/stream"
	"chatsync/internal/pkg/auth/jwt"
	"chatsync/internal/pkg/errs"
)

type fakeAPI struct {
	token    string
	users    map[int64]model.User
	chats    []model.Channel
	messages map[int64][]model.Message

	signinErr   error
	listErr     error
	messagesErr error
	sendErr     error

	signinGate chan struct{}

	messageCalls atomic.Int32
	sendCalls    atomic.Int32
}

func (f *fakeAPI) Signup(ctx context.Context, in remote.SignupInput) (string, error) {
	return f.Signin(ctx, remote.SigninInput{Email: in.Email, Password: in.Password})
}

func (f *fakeAPI) Signin(context.Context, remote.SigninInput) (string, error) {
	if f.signinGate != nil {
		<-f.signinGate
	}
	return f.token, f.signinErr
}

func (f *fakeAPI) ListUsers(context.Context, string) (map[int64]model.User, error) {
	return f.users, f.listErr
}

func (f *fakeAPI) ListChats(context.Context, string) ([]model.Channel, error) {
	return f.chats, f.listErr
}

func (f *fakeAPI) ListMessages(_ context.Context, _ string, chatID int64, _ int) ([]model.Message, error) {
	f.messageCalls.Add(1)
	if f.messagesErr != nil {
		return nil, f.messagesErr
	}
	return f.messages[chatID], nil
}

func (f *fakeAPI) SendMessage(_ context.Context, _ string, chatID int64, in remote.SendMessageInput) (*model.Message, error) {
	f.sendCalls.Add(1)
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	return &model.Message{ID: 99, ChatID: chatID, Content: in.Content}, nil
}

func (f *fakeAPI) CreateChat(_ context.Context, _ string, in remote.CreateChatInput) (*model.Channel, error) {
	name := in.Name
	return &model.Channel{ID: 50, WsID: 1, Name: &name, Type: model.ChannelPublicChannel, Members: in.Members}, nil
}

type fakeConn struct {
	incoming chan stream.Event
	closed   chan struct{}
	closes   atomic.Int32
	once     sync.Once
}

func (c *fakeConn) Next() (stream.Event, error) {
	select {
	case ev := <-c.incoming:
		return ev, nil
	case <-c.closed:
		return stream.Event{}, io.EOF
	}
}

func (c *fakeConn) Close() error {
	c.closes.Add(1)
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) push(ev stream.Event) bool {
	select {
	case c.incoming <- ev:
		return true
	case <-c.closed:
		return false
	}
}

type fakeTransport struct {
	mu    sync.Mutex
	conns []*fakeConn
	urls  []string
}

func (t *fakeTransport) Connect(_ context.Context, url string) (stream.Conn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	c := &fakeConn{incoming: make(chan stream.Event), closed: make(chan struct{})}
	t.conns = append(t.conns, c)
	t.urls = append(t.urls, url)
	return c, nil
}

func (t *fakeTransport) last() *fakeConn {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.conns) == 0 {
		return nil
	}
	return t.conns[len(t.conns)-1]
}

type harness struct {
	engine    *Engine
	session   *session.Session
	kv        *store.Memory
	api       *fakeAPI
	transport *fakeTransport
	reloads   atomic.Int32
}

func newHarness(t *testing.T, api *fakeAPI, seed func(c *store.Cache)) *harness {
	t.Helper()

	h := &harness{kv: store.NewMemory(), api: api, transport: &fakeTransport{}}
	cache := store.NewCache(h.kv)
	if seed != nil {
		seed(cache)
	}

	h.session = session.Hydrate(cache)
	h.engine = New(h.session, cache, api, nil, Config{
		PageSize:  10,
		StreamURL: func() string { return "http://localhost:6687/events" },
		Transport: h.transport,
		Reload:    func() { h.reloads.Add(1) },
	})
	return h
}

func signedToken(t *testing.T) string {
	t.Helper()
	token, err := jwt.GenerateToken(&jwt.Payload{
		ID:       1,
		WsID:     7,
		WsName:   "acme",
		Fullname: "Alice",
		Email:    "alice@acme.org",
	}, "test-secret", time.Hour)
	require.NoError(t, err)
	return token
}

// seedSignedIn makes the cache look like a previous run signed in.
func seedSignedIn(t *testing.T, channels []model.Channel, messages map[int64][]model.Message) func(c *store.Cache) {
	return func(c *store.Cache) {
		require.NoError(t, c.SetString(store.KeyToken, signedToken(t)))
		require.NoError(t, c.Set(store.KeyUser, model.User{ID: 1, Email: "alice@acme.org"}))
		require.NoError(t, c.Set(store.KeyWorkspace, model.Workspace{ID: 7, Name: "acme"}))
		require.NoError(t, c.Set(store.KeyChannels, channels))
		if messages != nil {
			require.NoError(t, c.Set(store.KeyMessages, messages))
		}
	}
}

func scenarioAPI(t *testing.T) *fakeAPI {
	return &fakeAPI{
		token: signedToken(t),
		users: map[int64]model.User{
			1: {ID: 1, Fullname: "Alice", Email: "alice@acme.org"},
			2: {ID: 2, Fullname: "Bob", Email: "bob@acme.org"},
		},
		chats: []model.Channel{
			{ID: 10, WsID: 7, Type: model.ChannelSingle, Members: []int64{1, 2}},
			{ID: 11, WsID: 7, Type: model.ChannelGroup, Members: []int64{1, 2}},
			{ID: 12, WsID: 7, Type: model.ChannelPublicChannel, Members: []int64{1, 2}},
		},
		messages: map[int64][]model.Message{},
	}
}

func TestSignin_LoadsStateIntoSessionAndCache(t *testing.T) {
	api := scenarioAPI(t)
	h := newHarness(t, api, nil)
	require.Equal(t, StateUnauthenticated, h.engine.State())

	user, err := h.engine.Signin(context.Background(), remote.SigninInput{Email: "alice@acme.org", Password: "pw"})
	require.NoError(t, err)
	defer h.engine.Shutdown()

	assert.Equal(t, int64(1), user.ID)
	assert.Equal(t, StateAuthenticated, h.engine.State())
	assert.Equal(t, "acme", h.session.Workspace().Name)
	assert.Equal(t, api.token, h.session.Token())

	cache := store.NewCache(h.kv)
	users, ok := store.Get[map[int64]model.User](cache, store.KeyUsers)
	require.True(t, ok)
	assert.Len(t, users, 2)

	channels, ok := store.Get[[]model.Channel](cache, store.KeyChannels)
	require.True(t, ok)
	assert.Len(t, channels, 3)

	token, ok := cache.GetString(store.KeyToken)
	require.True(t, ok)
	assert.Equal(t, api.token, token)

	require.True(t, h.engine.StreamOpen())
	require.Len(t, h.transport.urls, 1)
	assert.Contains(t, h.transport.urls[0], "access_token=")
}

func TestSignin_FailureReturnsToUnauthenticated(t *testing.T) {
	api := scenarioAPI(t)
	api.listErr = errs.FromStatus(http.StatusInternalServerError, "boom")
	h := newHarness(t, api, nil)

	_, err := h.engine.Signin(context.Background(), remote.SigninInput{Email: "alice@acme.org"})
	require.Error(t, err)

	assert.Equal(t, StateUnauthenticated, h.engine.State())
	assert.False(t, h.session.IsAuthenticated())
	assert.Empty(t, h.kv.Keys())
	assert.False(t, h.engine.StreamOpen())
	assert.Zero(t, h.reloads.Load(), "a non-auth failure does not log out")
}

func TestSignin_BadCredentialsPropagate(t *testing.T) {
	api := scenarioAPI(t)
	api.signinErr = errs.FromStatus(http.StatusBadRequest, "invalid credentials")
	h := newHarness(t, api, nil)

	_, err := h.engine.Signin(context.Background(), remote.SigninInput{Email: "alice@acme.org"})
	assert.ErrorContains(t, err, "invalid credentials")
	assert.Equal(t, StateUnauthenticated, h.engine.State())
}

func TestSignin_RejectsConcurrentAttempt(t *testing.T) {
	api := scenarioAPI(t)
	api.signinGate = make(chan struct{})
	h := newHarness(t, api, nil)

	done := make(chan error, 1)
	go func() {
		_, err := h.engine.Signin(context.Background(), remote.SigninInput{})
		done <- err
	}()
	require.Eventually(t, func() bool { return h.engine.State() == StateAuthenticating }, time.Second, time.Millisecond)

	_, err := h.engine.Signup(context.Background(), remote.SignupInput{})
	assert.True(t, errs.HasCode(err, errs.ErrAuthInProgress))

	close(api.signinGate)
	require.NoError(t, <-done)
	h.engine.Shutdown()
}

func TestLoadState_MalformedToken(t *testing.T) {
	h := newHarness(t, scenarioAPI(t), nil)

	_, err := h.engine.LoadState(context.Background(), "not-a-jwt")
	assert.True(t, errs.HasCode(err, errs.ErrTokenMalformed))
}

func TestAuthExpired_ForcesLogout(t *testing.T) {
	api := scenarioAPI(t)
	api.messagesErr = errs.FromStatus(http.StatusForbidden, "token expired")
	h := newHarness(t, api, seedSignedIn(t, []model.Channel{{ID: 11, Type: model.ChannelGroup}}, nil))
	require.Equal(t, StateAuthenticated, h.engine.State())

	h.engine.Resume(context.Background())
	conn := h.transport.last()
	require.NotNil(t, conn)

	require.NoError(t, h.engine.SelectChannel(context.Background(), 11))

	for _, key := range store.SessionKeys {
		_, ok, err := h.kv.Get(context.Background(), string(key))
		require.NoError(t, err)
		assert.False(t, ok, "key %s should be cleared", key)
	}
	assert.Empty(t, h.session.Token())
	assert.False(t, h.session.IsAuthenticated())
	assert.Equal(t, StateUnauthenticated, h.engine.State())
	assert.Equal(t, int32(1), conn.closes.Load())
	assert.False(t, h.engine.StreamOpen())
	assert.Equal(t, int32(1), h.reloads.Load())
}

func TestAuthExpired_OnSendMessage(t *testing.T) {
	api := scenarioAPI(t)
	api.sendErr = errs.FromStatus(http.StatusUnauthorized, "")
	h := newHarness(t, api, seedSignedIn(t, nil, nil))

	err := h.engine.SendMessage(context.Background(), 11, "hi", nil)
	assert.True(t, errs.IsAuthExpired(err))
	assert.False(t, h.session.IsAuthenticated())
	assert.Equal(t, int32(1), h.reloads.Load())
}

func TestFetchMessagesForChannel_FetchesOnce(t *testing.T) {
	api := scenarioAPI(t)
	api.messages[11] = []model.Message{{ID: 2, ChatID: 11}, {ID: 1, ChatID: 11}}
	h := newHarness(t, api, seedSignedIn(t, []model.Channel{{ID: 11}, {ID: 12}}, map[int64][]model.Message{
		12: {{ID: 5, ChatID: 12}},
	}))
	ctx := context.Background()

	h.engine.FetchMessagesForChannel(ctx, 12)
	assert.Equal(t, int32(0), api.messageCalls.Load(), "cached messages suppress the fetch")

	h.engine.FetchMessagesForChannel(ctx, 11)
	require.Equal(t, int32(1), api.messageCalls.Load())

	msgs := h.session.ChannelMessages(11)
	require.Len(t, msgs, 2)
	assert.Equal(t, int64(1), msgs[0].ID)

	h.engine.FetchMessagesForChannel(ctx, 11)
	h.engine.FetchMessagesForChannel(ctx, 11)
	assert.Equal(t, int32(1), api.messageCalls.Load())
}

func TestFetchMessagesForChannel_SwallowsOtherErrors(t *testing.T) {
	api := scenarioAPI(t)
	api.messagesErr = errors.New("connection refused")
	h := newHarness(t, api, seedSignedIn(t, []model.Channel{{ID: 11}}, nil))

	assert.NotPanics(t, func() { h.engine.FetchMessagesForChannel(context.Background(), 11) })
	assert.Empty(t, h.session.ChannelMessages(11))
	assert.True(t, h.session.IsAuthenticated())
	assert.Zero(t, h.reloads.Load())
}

func TestSendMessage(t *testing.T) {
	api := scenarioAPI(t)
	h := newHarness(t, api, seedSignedIn(t, []model.Channel{{ID: 11}}, nil))
	ctx := context.Background()

	err := h.engine.SendMessage(ctx, 11, "   ", nil)
	assert.True(t, errs.HasCode(err, errs.ErrMessageContentEmpty))
	assert.Zero(t, api.sendCalls.Load())

	require.NoError(t, h.engine.SendMessage(ctx, 11, "hello", nil))
	assert.Equal(t, int32(1), api.sendCalls.Load())
	assert.Empty(t, h.session.ChannelMessages(11), "sent messages arrive through the push stream")

	api.sendErr = errs.FromStatus(http.StatusInternalServerError, "")
	err = h.engine.SendMessage(ctx, 11, "again", nil)
	assert.True(t, errs.HasCode(err, errs.ErrRemoteRejected))
	assert.True(t, h.session.IsAuthenticated())
}

func TestSendMessage_RequiresToken(t *testing.T) {
	h := newHarness(t, scenarioAPI(t), nil)
	err := h.engine.SendMessage(context.Background(), 1, "hi", nil)
	assert.True(t, errs.HasCode(err, errs.ErrNotAuthenticated))
}

func TestPushNewMessage_AppendsToSession(t *testing.T) {
	h := newHarness(t, scenarioAPI(t), seedSignedIn(t, []model.Channel{{ID: 11}}, nil))
	h.engine.Resume(context.Background())
	defer h.engine.Shutdown()

	conn := h.transport.last()
	require.NotNil(t, conn)

	payload, err := json.Marshal(map[string]any{
		"event":     "NewMessage",
		"id":        3,
		"chatId":    11,
		"senderId":  2,
		"content":   "hi",
		"files":     []string{},
		"createdAt": time.Now().UTC().Format(time.RFC3339),
	})
	require.NoError(t, err)

	require.True(t, conn.push(stream.Event{Name: "ping", Data: []byte("{}")}))
	require.True(t, conn.push(stream.Event{Name: EventNewMessage, Data: payload}))

	require.Eventually(t, func() bool { return len(h.session.ChannelMessages(11)) == 1 }, time.Second, time.Millisecond)
	msg := h.session.ChannelMessages(11)[0]
	assert.Equal(t, "hi", msg.Content)
	assert.NotEmpty(t, msg.FormattedCreatedAt)
}

func TestLogout_ClosesStreamOnceAndStopsDelivery(t *testing.T) {
	h := newHarness(t, scenarioAPI(t), seedSignedIn(t, []model.Channel{{ID: 11}}, nil))
	h.engine.Resume(context.Background())

	conn := h.transport.last()
	require.NotNil(t, conn)

	h.engine.Logout(context.Background())
	h.engine.Logout(context.Background())

	assert.Equal(t, int32(1), conn.closes.Load())
	assert.False(t, conn.push(stream.Event{Name: EventNewMessage, Data: []byte(`{"id":1,"chatId":11}`)}))
	assert.Empty(t, h.session.ChannelMessages(11))
	assert.Empty(t, h.session.AllChannels())
	assert.Equal(t, StateUnauthenticated, h.engine.State())
}

func TestLogout_DuringPushLeavesSessionEmpty(t *testing.T) {
	payload := []byte(`{"id":1,"chatId":10,"senderId":2,"content":"hi","files":[]}`)

	for i := 0; i < 100; i++ {
		h := newHarness(t, scenarioAPI(t), seedSignedIn(t, []model.Channel{{ID: 10}}, nil))
		h.engine.Resume(context.Background())

		conn := h.transport.last()
		require.NotNil(t, conn)

		done := make(chan struct{})
		go func() {
			defer close(done)
			for conn.push(stream.Event{Name: EventNewMessage, Data: payload}) {
			}
		}()

		require.Eventually(t, func() bool { return len(h.session.ChannelMessages(10)) > 0 }, time.Second, time.Millisecond)
		h.engine.Logout(context.Background())
		<-done

		require.Empty(t, h.session.ChannelMessages(10), "iteration %d", i)
	}
}

func TestResume_IsNoopWithoutToken(t *testing.T) {
	h := newHarness(t, scenarioAPI(t), nil)
	h.engine.Resume(context.Background())
	assert.False(t, h.engine.StreamOpen())
}

func TestSelectChannel(t *testing.T) {
	api := scenarioAPI(t)
	api.messages[12] = []model.Message{{ID: 1, ChatID: 12}}
	h := newHarness(t, api, seedSignedIn(t, []model.Channel{{ID: 11}, {ID: 12}}, nil))

	err := h.engine.SelectChannel(context.Background(), 404)
	assert.True(t, errs.HasCode(err, errs.ErrChannelNotFound))

	require.NoError(t, h.engine.SelectChannel(context.Background(), 12))
	active, ok := h.session.ActiveChannel()
	require.True(t, ok)
	assert.Equal(t, int64(12), active.ID)
	assert.Len(t, h.session.ActiveChannelMessages(), 1)
}

func TestCreateChannel(t *testing.T) {
	h := newHarness(t, scenarioAPI(t), seedSignedIn(t, nil, nil))

	ch, err := h.engine.CreateChannel(context.Background(), remote.CreateChatInput{Name: "ops", Members: []int64{1, 2}, Public: true})
	require.NoError(t, err)
	assert.Equal(t, int64(50), ch.ID)

	require.Len(t, h.session.Channels(), 1)
	assert.NotNil(t, h.session.ChannelMessages(50))

	persisted, ok := store.Get[[]model.Channel](store.NewCache(h.kv), store.KeyChannels)
	require.True(t, ok)
	assert.Len(t, persisted, 1)
}
