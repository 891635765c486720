package stream

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/rs/zerolog"

	"chatsync/internal/pkg/logx"
)

// eventBuffer is how many received events may wait for the dispatcher.
const eventBuffer = 256

// Handler processes one event. Handlers run serially on the dispatcher goroutine
// and must not call Close on their own stream.
type Handler func(Event)

// Stream owns one push connection. A reader goroutine pulls events off the
// connection into a buffered channel and a single dispatcher goroutine hands
// them to the handler in arrival order.
type Stream struct {
	conn    Conn
	handler Handler
	events  chan Event
	done    chan struct{}
	logger  zerolog.Logger

	// mu is held for the duration of each handler call, so Close can wait out an
	// in-flight event and then forbid new ones.
	mu     sync.Mutex
	closed bool

	closeOnce     sync.Once
	connCloseOnce sync.Once
	wg            sync.WaitGroup
}

// Open connects through transport and starts delivering events to handler.
func Open(ctx context.Context, transport Transport, url string, handler Handler) (*Stream, error) {
	conn, err := transport.Connect(ctx, url)
	if err != nil {
		return nil, err
	}

	s := &Stream{
		conn:    conn,
		handler: handler,
		events:  make(chan Event, eventBuffer),
		done:    make(chan struct{}),
		logger:  logx.Component("stream"),
	}

	s.wg.Add(2)
	go s.readLoop()
	go s.dispatchLoop()

	s.logger.Info().Msg("Push stream opened")
	return s, nil
}

func (s *Stream) readLoop() {
	defer s.wg.Done()
	defer close(s.events)

	for {
		ev, err := s.conn.Next()
		if err != nil {
			select {
			case <-s.done:
			default:
				if errors.Is(err, io.EOF) {
					s.logger.Warn().Msg("Push stream ended by server, closing")
				} else {
					s.logger.Error().Err(err).Msg("Push stream failed, closing")
				}
				s.closeConn()
			}
			return
		}

		select {
		case s.events <- ev:
		case <-s.done:
			return
		}
	}
}

func (s *Stream) dispatchLoop() {
	defer s.wg.Done()

	for ev := range s.events {
		s.dispatch(ev)
	}
}

func (s *Stream) dispatch(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Interface("panic", r).Str("event", ev.Name).Msg("Recovered from panic in push event handler")
		}
	}()

	s.handler(ev)
}

func (s *Stream) closeConn() {
	s.connCloseOnce.Do(func() {
		if err := s.conn.Close(); err != nil {
			s.logger.Debug().Err(err).Msg("Push connection close error")
		}
	})
}

// Close stops delivery and closes the connection. It is safe to call more than
// once. When it returns no handler call is running and none will start.
func (s *Stream) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		close(s.done)
		s.closeConn()
		s.wg.Wait()

		s.logger.Info().Msg("Push stream closed")
	})
}
