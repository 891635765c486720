package stream

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"chatsync/internal/pkg/errs"
)

// maxSSELine bounds a single SSE line.
const maxSSELine = 1 << 20

// SSETransport connects with a long-lived GET request and parses the
// text/event-stream body.
type SSETransport struct {
	// Client is used for the request. It must not set a Timeout, which would cut
	// the stream. Nil means a default client.
	Client *http.Client
}

func (t SSETransport) Connect(ctx context.Context, url string) (Conn, error) {
	client := t.Client
	if client == nil {
		client = &http.Client{}
	}

	// The request outlives ctx and ends only when the connection is closed.
	reqCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("create stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := client.Do(req)
	if err != nil {
		cancel()
		return nil, errs.Wrap(errs.ErrRemoteUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		resp.Body.Close()
		cancel()
		return nil, errs.FromStatus(resp.StatusCode, strings.TrimSpace(string(body)))
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 4096), maxSSELine)

	return &sseConn{
		body:    resp.Body,
		cancel:  cancel,
		scanner: scanner,
	}, nil
}

type sseConn struct {
	body    io.ReadCloser
	cancel  context.CancelFunc
	scanner *bufio.Scanner

	closeOnce sync.Once
	closeErr  error
}

// Next reads lines until a blank line completes an event with data.
func (c *sseConn) Next() (Event, error) {
	var (
		name    string
		id      string
		data    bytes.Buffer
		hasData bool
	)

	for c.scanner.Scan() {
		line := strings.TrimSuffix(c.scanner.Text(), "\r")

		if line == "" {
			if !hasData {
				name = ""
				continue
			}
			if name == "" {
				name = DefaultEventName
			}
			return Event{Name: name, ID: id, Data: bytes.Clone(data.Bytes())}, nil
		}

		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")

		switch field {
		case "event":
			name = value
		case "data":
			if hasData {
				data.WriteByte('\n')
			}
			data.WriteString(value)
			hasData = true
		case "id":
			id = value
		}
	}

	if err := c.scanner.Err(); err != nil {
		return Event{}, err
	}
	return Event{}, io.EOF
}

func (c *sseConn) Close() error {
	c.closeOnce.Do(func() {
		c.cancel()
		c.closeErr = c.body.Close()
	})
	return c.closeErr
}
