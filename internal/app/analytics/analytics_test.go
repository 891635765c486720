package analytics

import (
	"context"
	"errors"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"chatsync/internal/app/store"
)

// decodeFields splits a protobuf message into its top-level fields. Length
// delimited values are returned as bytes and varints as uint64.
func decodeFields(t *testing.T, b []byte) map[protowire.Number]any {
	t.Helper()

	fields := make(map[protowire.Number]any)
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		require.GreaterOrEqual(t, n, 0)
		b = b[n:]

		switch typ {
		case protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			require.GreaterOrEqual(t, n, 0)
			fields[num] = v
			b = b[n:]
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			require.GreaterOrEqual(t, n, 0)
			fields[num] = v
			b = b[n:]
		default:
			t.Fatalf("unexpected wire type %v", typ)
		}
	}
	return fields
}

func TestEncode_AppExit(t *testing.T) {
	ctx := Context{
		ClientID:   "client_123",
		AppVersion: "1.0.0",
		UserID:     "7",
		ClientTS:   1700000000000,
		System:     &SystemInfo{OS: "linux", Arch: "amd64", Locale: "en-US", Timezone: "UTC"},
	}

	top := decodeFields(t, Encode(ctx, AppExit{Code: ExitCodeSuccess}))
	require.Contains(t, top, protowire.Number(1))
	require.Contains(t, top, protowire.Number(11))

	ctxFields := decodeFields(t, top[1].([]byte))
	assert.Equal(t, "client_123", string(ctxFields[1].([]byte)))
	assert.Equal(t, "1.0.0", string(ctxFields[2].([]byte)))
	assert.Equal(t, "7", string(ctxFields[4].([]byte)))
	assert.Equal(t, uint64(1700000000000), ctxFields[8])
	assert.NotContains(t, ctxFields, protowire.Number(9), "server timestamp is left unset")
	assert.NotContains(t, ctxFields, protowire.Number(7), "geo is left unset")

	system := decodeFields(t, ctxFields[3].([]byte))
	assert.Equal(t, "linux", string(system[1].([]byte)))
	assert.Equal(t, "UTC", string(system[4].([]byte)))

	exit := decodeFields(t, top[11].([]byte))
	assert.Equal(t, uint64(ExitCodeSuccess), exit[1])
}

func TestEncode_EventKinds(t *testing.T) {
	tests := []struct {
		ev    Event
		field protowire.Number
		check func(t *testing.T, f map[protowire.Number]any)
	}{
		{ev: AppStart{}, field: 10, check: func(t *testing.T, f map[protowire.Number]any) { assert.Empty(t, f) }},
		{ev: UserLogin{Email: "a@b.c"}, field: 12, check: func(t *testing.T, f map[protowire.Number]any) {
			assert.Equal(t, "a@b.c", string(f[1].([]byte)))
		}},
		{ev: UserLogout{Email: "a@b.c"}, field: 13},
		{ev: UserRegister{Email: "a@b.c", WorkspaceID: "3"}, field: 14, check: func(t *testing.T, f map[protowire.Number]any) {
			assert.Equal(t, "3", string(f[2].([]byte)))
		}},
		{ev: ChatCreated{WorkspaceID: "3"}, field: 15},
		{ev: MessageSent{ChatID: "9", Type: "text", Size: 5, TotalFiles: 2}, field: 16, check: func(t *testing.T, f map[protowire.Number]any) {
			assert.Equal(t, "9", string(f[1].([]byte)))
			assert.Equal(t, "text", string(f[2].([]byte)))
			assert.Equal(t, uint64(5), f[3])
			assert.Equal(t, uint64(2), f[4])
		}},
		{ev: ChatJoined{ChatID: "9"}, field: 17},
		{ev: ChatLeft{ChatID: "9"}, field: 18},
		{ev: Navigation{From: "/login", To: "/"}, field: 19, check: func(t *testing.T, f map[protowire.Number]any) {
			assert.Equal(t, "/login", string(f[1].([]byte)))
			assert.Equal(t, "/", string(f[2].([]byte)))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.ev.Kind(), func(t *testing.T) {
			top := decodeFields(t, Encode(Context{}, tt.ev))
			require.Contains(t, top, tt.field)
			assert.Len(t, top, 2)
			if tt.check != nil {
				tt.check(t, decodeFields(t, top[tt.field].([]byte)))
			}
		})
	}
}

func TestContextBuilder(t *testing.T) {
	t.Setenv("LC_ALL", "")
	t.Setenv("LC_MESSAGES", "")
	t.Setenv("LANG", "de_DE.UTF-8")
	t.Setenv("TZ", "Europe/Berlin")

	cache := store.NewCache(store.NewMemory())
	require.NoError(t, cache.SetString(store.KeyOS, "darwin"))
	require.NoError(t, cache.SetString(store.KeyArch, "arm64"))

	b := NewContextBuilder(cache, "1.2.3", func() string { return "42" })
	b.now = func() time.Time { return time.UnixMilli(1234) }

	ctx := b.Build()
	assert.NotEmpty(t, ctx.ClientID)
	assert.Equal(t, "1.2.3", ctx.AppVersion)
	assert.Equal(t, "42", ctx.UserID)
	assert.Equal(t, int64(1234), ctx.ClientTS)
	assert.Zero(t, ctx.ServerTS)
	assert.Equal(t, &SystemInfo{OS: "darwin", Arch: "arm64", Locale: "de-DE", Timezone: "Europe/Berlin"}, ctx.System)
	assert.Contains(t, ctx.UserAgent, "chatsync/1.2.3 (darwin; arm64)")
}

func TestClientID_GeneratedOncePerInstallation(t *testing.T) {
	kv := store.NewMemory()

	first := NewContextBuilder(store.NewCache(kv), "1", nil).ClientID()
	second := NewContextBuilder(store.NewCache(kv), "1", nil).ClientID()
	assert.Equal(t, first, second)

	other := NewContextBuilder(store.NewCache(store.NewMemory()), "1", nil).ClientID()
	assert.NotEqual(t, first, other)
}

func TestInitPlatformInfo_KeepsExistingValues(t *testing.T) {
	cache := store.NewCache(store.NewMemory())
	require.NoError(t, cache.SetString(store.KeyOS, "plan9"))

	InitPlatformInfo(cache)

	osName, _ := cache.GetString(store.KeyOS)
	arch, ok := cache.GetString(store.KeyArch)
	assert.Equal(t, "plan9", osName)
	assert.True(t, ok)
	assert.NotEmpty(t, arch)
}

func TestNormalizeLocale(t *testing.T) {
	assert.Equal(t, "en-US", normalizeLocale("en_US.UTF-8"))
	assert.Equal(t, "de-DE", normalizeLocale("de_DE@euro"))
	assert.Equal(t, "en-US", normalizeLocale("C"))
	assert.Equal(t, "fr", normalizeLocale("fr"))
}

func TestClampInt32(t *testing.T) {
	tests := []struct {
		in   int
		want int32
	}{
		{in: 0, want: 0},
		{in: 1024, want: 1024},
		{in: math.MaxInt32 + 1, want: math.MaxInt32},
		{in: math.MinInt32 - 1, want: math.MinInt32},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, clampInt32(tt.in), "clampInt32(%d)", tt.in)
	}
}

type recordedRequest struct {
	contentType string
	token       string
	body        []byte
}

func newCollector(t *testing.T) (*httptest.Server, func() []recordedRequest) {
	t.Helper()

	var (
		mu   sync.Mutex
		reqs []recordedRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		reqs = append(reqs, recordedRequest{
			contentType: r.Header.Get("Content-Type"),
			token:       r.URL.Query().Get("token"),
			body:        body,
		})
		mu.Unlock()
		w.WriteHeader(http.StatusCreated)
	}))
	t.Cleanup(srv.Close)

	return srv, func() []recordedRequest {
		mu.Lock()
		defer mu.Unlock()
		return append([]recordedRequest(nil), reqs...)
	}
}

func TestEmitter_DeliversThroughBeacon(t *testing.T) {
	srv, requests := newCollector(t)
	cache := store.NewCache(store.NewMemory())

	e := NewEmitter(NewContextBuilder(cache, "1.0.0", nil), Options{
		URL:       func() string { return srv.URL + "/api/event" },
		Token:     func() string { return "tok" },
		QueueSize: 8,
	})

	e.AppStart()
	e.UserLogin("alice@acme.org")
	e.MessageSent(3, "text", 5, 0)

	require.NoError(t, e.Close(context.Background()))

	got := requests()
	require.Len(t, got, 3)
	for _, r := range got {
		assert.Equal(t, "application/protobuf", r.contentType)
		assert.Equal(t, "tok", r.token)
		assert.NotEmpty(t, r.body)
	}
	assert.Contains(t, decodeFields(t, got[1].body), protowire.Number(12))
}

func TestEmitter_FallsBackWhenBeaconIsClosed(t *testing.T) {
	srv, requests := newCollector(t)

	e := NewEmitter(NewContextBuilder(store.NewCache(store.NewMemory()), "1", nil), Options{
		URL: func() string { return srv.URL },
	})
	require.NoError(t, e.beacon.Close(context.Background()))

	e.Navigation("/login", "/")
	e.fallbacks.Wait()

	require.Len(t, requests(), 1)
}

type failingRoundTripper struct {
	panics bool
}

func (f failingRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	if f.panics {
		panic("transport exploded")
	}
	return nil, errors.New("network down")
}

func TestEmitter_FailingTransportNeverReachesCaller(t *testing.T) {
	for _, panics := range []bool{false, true} {
		e := NewEmitter(NewContextBuilder(store.NewCache(store.NewMemory()), "1", nil), Options{
			URL:       func() string { return "http://analytics.invalid/api/event" },
			Client:    &http.Client{Transport: failingRoundTripper{panics: panics}},
			QueueSize: 1,
		})

		assert.NotPanics(t, func() {
			e.AppStart()
			e.AppExit(ExitCodeFailure)
			e.UserLogout("a@b.c")
			e.UserRegister("a@b.c", 1)
			e.ChatCreated(1)
			e.ChatJoined(2)
			e.ChatLeft(2)
			e.Navigation("/", "/login")
		})

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		assert.NoError(t, e.Close(ctx))
		cancel()
	}
}

func TestEmitter_Disabled(t *testing.T) {
	srv, requests := newCollector(t)

	e := NewEmitter(NewContextBuilder(store.NewCache(store.NewMemory()), "1", nil), Options{
		URL:      func() string { return srv.URL },
		Disabled: true,
	})
	e.AppStart()
	require.NoError(t, e.Close(context.Background()))
	assert.Empty(t, requests())
}

func TestEmitter_NilIsSafe(t *testing.T) {
	var e *Emitter
	assert.NotPanics(t, func() {
		e.AppStart()
		_ = e.Close(context.Background())
	})
}
