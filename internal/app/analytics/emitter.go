package analytics

import (
	"context"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"chatsync/internal/pkg/logx"
)

// Options configures an Emitter.
type Options struct {
	// URL returns the analytics endpoint at send time.
	URL func() string

	// Token returns the bearer token attached to the endpoint, or "".
	Token func() string

	// Client performs the HTTP requests. Nil means a default client.
	Client *http.Client

	QueueSize int
	Timeout   time.Duration
	Disabled  bool
}

// Emitter has one method per event kind. Every method returns immediately and
// never fails. Delivery prefers the beacon and falls back to a direct request.
type Emitter struct {
	builder  *ContextBuilder
	beacon   *Beacon
	client   *http.Client
	url      func() string
	token    func() string
	timeout  time.Duration
	disabled bool
	logger   zerolog.Logger

	fallbacks sync.WaitGroup
}

func NewEmitter(builder *ContextBuilder, opts Options) *Emitter {
	client := opts.Client
	if client == nil {
		client = &http.Client{}
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	e := &Emitter{
		builder:  builder,
		client:   client,
		url:      opts.URL,
		token:    opts.Token,
		timeout:  timeout,
		disabled: opts.Disabled,
		logger:   logx.Component("analytics"),
	}
	if !e.disabled {
		e.beacon = NewBeacon(client, opts.QueueSize, timeout)
	}
	return e
}

func (e *Emitter) AppStart() { e.Emit(AppStart{}) }

func (e *Emitter) AppExit(code ExitCode) { e.Emit(AppExit{Code: code}) }

func (e *Emitter) UserLogin(email string) { e.Emit(UserLogin{Email: email}) }

func (e *Emitter) UserLogout(email string) { e.Emit(UserLogout{Email: email}) }

func (e *Emitter) UserRegister(email string, workspaceID int64) {
	e.Emit(UserRegister{Email: email, WorkspaceID: formatID(workspaceID)})
}

func (e *Emitter) ChatCreated(workspaceID int64) {
	e.Emit(ChatCreated{WorkspaceID: formatID(workspaceID)})
}

func (e *Emitter) MessageSent(chatID int64, msgType string, size, totalFiles int) {
	e.Emit(MessageSent{
		ChatID:     formatID(chatID),
		Type:       msgType,
		Size:       clampInt32(size),
		TotalFiles: clampInt32(totalFiles),
	})
}

// clampInt32 saturates v to the int32 range of the wire fields.
func clampInt32(v int) int32 {
	if v > math.MaxInt32 {
		return math.MaxInt32
	}
	if v < math.MinInt32 {
		return math.MinInt32
	}
	return int32(v)
}

func (e *Emitter) ChatJoined(chatID int64) { e.Emit(ChatJoined{ChatID: formatID(chatID)}) }

func (e *Emitter) ChatLeft(chatID int64) { e.Emit(ChatLeft{ChatID: formatID(chatID)}) }

func (e *Emitter) Navigation(from, to string) { e.Emit(Navigation{From: from, To: to}) }

// Emit encodes ev with a fresh context and hands it off for delivery. Any failure,
// including a panic, is logged and swallowed.
func (e *Emitter) Emit(ev Event) {
	if e == nil || e.disabled {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error().Interface("panic", r).Str("event", ev.Kind()).Msg("Recovered from panic while emitting analytics event")
		}
	}()

	body := Encode(e.builder.Build(), ev)
	target := e.endpoint()

	if e.beacon.Send(target, body) {
		e.logger.Debug().Str("event", ev.Kind()).Msg("Analytics event queued on beacon")
		return
	}

	e.fallbacks.Add(1)
	go func() {
		defer e.fallbacks.Done()
		defer func() {
			if r := recover(); r != nil {
				e.logger.Error().Interface("panic", r).Str("event", ev.Kind()).Msg("Recovered from panic while sending analytics event")
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
		defer cancel()

		if err := post(ctx, e.client, target, body); err != nil {
			e.logger.Warn().Err(err).Str("event", ev.Kind()).Msg("Analytics event delivery failed")
		}
	}()
}

func (e *Emitter) endpoint() string {
	target := e.url()

	var token string
	if e.token != nil {
		token = e.token()
	}

	u, err := url.Parse(target)
	if err != nil {
		return target + "?token=" + url.QueryEscape(token)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}

// Close flushes the beacon and waits for fallback requests, bounded by ctx.
func (e *Emitter) Close(ctx context.Context) error {
	if e == nil || e.disabled {
		return nil
	}

	err := e.beacon.Close(ctx)

	waited := make(chan struct{})
	go func() {
		e.fallbacks.Wait()
		close(waited)
	}()

	select {
	case <-waited:
	case <-ctx.Done():
		if err == nil {
			err = ctx.Err()
		}
	}
	return err
}

func formatID(id int64) string {
	if id == 0 {
		return ""
	}
	return strconv.FormatInt(id, 10)
}
