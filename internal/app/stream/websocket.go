package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"chatsync/internal/pkg/errs"
)

const (
	// timeout for writing a control frame.
	writeWait = 10 * time.Second

	// how long the connection may stay silent before it is considered dead.
	pongWait = 60 * time.Second

	// how often a ping is sent. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maximum accepted frame size.
	maxMessageSize = 64 << 10
)

// WebSocketTransport dials the notification endpoint over WebSocket. Every text
// frame is a JSON object whose "event" field names it.
type WebSocketTransport struct {
	// Dialer is used for the handshake. Nil means websocket.DefaultDialer.
	Dialer *websocket.Dialer
}

func (t WebSocketTransport) Connect(ctx context.Context, rawURL string) (Conn, error) {
	dialer := t.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	wsURL, err := toWebSocketURL(rawURL)
	if err != nil {
		return nil, err
	}

	conn, resp, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		if resp != nil && resp.StatusCode != http.StatusSwitchingProtocols {
			return nil, errs.FromStatus(resp.StatusCode, "")
		}
		return nil, errs.Wrap(errs.ErrRemoteUnavailable, err)
	}

	conn.SetReadLimit(maxMessageSize)
	if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set read deadline: %w", err)
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	c := &wsConn{conn: conn, done: make(chan struct{})}
	go c.pingLoop()
	return c, nil
}

// toWebSocketURL maps http(s) URLs onto ws(s).
func toWebSocketURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse stream url: %w", err)
	}

	switch strings.ToLower(u.Scheme) {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported stream url scheme %q", u.Scheme)
	}
	return u.String(), nil
}

type wsConn struct {
	conn *websocket.Conn

	// serializes control frame writes from pingLoop and Close.
	writeMu sync.Mutex

	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

func (c *wsConn) Next() (Event, error) {
	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			return Event{}, err
		}
		if msgType != websocket.TextMessage {
			continue
		}

		var envelope struct {
			Event string `json:"event"`
		}
		name := DefaultEventName
		if json.Unmarshal(data, &envelope) == nil && envelope.Event != "" {
			name = envelope.Event
		}
		return Event{Name: name, Data: data}, nil
	}
}

// pingLoop keeps the read deadline moving while the server answers pings.
func (c *wsConn) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (c *wsConn) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)

		c.writeMu.Lock()
		_ = c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait),
		)
		c.writeMu.Unlock()

		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}
