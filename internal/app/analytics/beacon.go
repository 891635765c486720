package analytics

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"chatsync/internal/pkg/logx"
)

const contentTypeProtobuf = "application/protobuf"

type beaconRequest struct {
	url  string
	body []byte
}

// Beacon is a one-way sender. Payloads are queued without blocking and posted by
// a background worker that is independent of the caller's lifetime, and Close
// drains whatever is still queued so sends survive shutdown.
type Beacon struct {
	client  *http.Client
	timeout time.Duration
	queue   chan beaconRequest
	logger  zerolog.Logger

	mu     sync.RWMutex
	closed bool

	done chan struct{}
}

// NewBeacon starts a beacon with room for size queued payloads.
func NewBeacon(client *http.Client, size int, timeout time.Duration) *Beacon {
	if size <= 0 {
		size = 1
	}

	b := &Beacon{
		client:  client,
		timeout: timeout,
		queue:   make(chan beaconRequest, size),
		logger:  logx.Component("analytics"),
		done:    make(chan struct{}),
	}
	go b.run()
	return b
}

// Send queues body for delivery to url. It reports false when the beacon cannot
// take the payload because it is full or closed.
func (b *Beacon) Send(url string, body []byte) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return false
	}

	select {
	case b.queue <- beaconRequest{url: url, body: body}:
		return true
	default:
		return false
	}
}

func (b *Beacon) run() {
	defer close(b.done)

	for req := range b.queue {
		b.deliver(req)
	}
}

func (b *Beacon) deliver(req beaconRequest) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error().Interface("panic", r).Msg("Recovered from panic while sending analytics beacon")
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()

	if err := post(ctx, b.client, req.url, req.body); err != nil {
		b.logger.Warn().Err(err).Msg("Analytics beacon delivery failed")
	}
}

// Close stops accepting payloads and waits until the queue is drained or ctx ends.
func (b *Beacon) Close(ctx context.Context) error {
	b.mu.Lock()
	if !b.closed {
		b.closed = true
		close(b.queue)
	}
	b.mu.Unlock()

	select {
	case <-b.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// post sends one encoded event.
func post(ctx context.Context, client *http.Client, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create analytics request: %w", err)
	}
	req.Header.Set("Content-Type", contentTypeProtobuf)

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("send analytics event: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("analytics server returned %d", resp.StatusCode)
	}
	return nil
}
