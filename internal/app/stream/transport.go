/*
Package stream keeps the live push connection to the notification server open
and feeds its events, one at a time, to a handler.

Two push transports are provided: Server-Sent Events and WebSocket. Neither
reconnects. A failed connection is closed and stays closed until the session
opens a new stream.
*/
package stream

import "context"

// DefaultEventName is the name of events that do not carry one.
const DefaultEventName = "message"

// Event is a single push delivery.
type Event struct {
	Name string
	ID   string
	Data []byte
}

// Conn is an open push connection.
type Conn interface {
	// Next blocks until the next event arrives or the connection fails.
	Next() (Event, error)

	// Close tears the connection down and unblocks a pending Next.
	Close() error
}

// Transport opens push connections.
type Transport interface {
	Connect(ctx context.Context, url string) (Conn, error)
}
