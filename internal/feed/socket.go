package feed

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Conn is a single WebSocket connection to the market feed.
type Conn interface {
	// Connect establishes the WebSocket connection.
	Connect(ctx context.Context) error

	// Close gracefully closes the connection.
	Close() error

	// Send writes raw bytes to the connection.
	Send(data []byte) error

	// Messages returns a channel of raw inbound messages, each stamped with
	// the local receive time.
	Messages() <-chan TimestampedMessage

	// Errors returns a channel of connection errors.
	Errors() <-chan error

	// IsConnected returns current connection state.
	IsConnected() bool
}

// socket implements Conn over gorilla/websocket.
type socket struct {
	cfg    SocketConfig
	logger *slog.Logger

	conn *websocket.Conn

	// Output channels
	messages chan TimestampedMessage
	errors   chan error
	done     chan struct{}

	// Write serialization
	writeMu sync.Mutex

	// State
	mu        sync.RWMutex
	connected bool
	lastSeen  time.Time // Last ping or pong from the server
	closed    bool
}

// NewSocket creates a new WebSocket connection in the disconnected state.
func NewSocket(cfg SocketConfig, logger *slog.Logger) Conn {
	if logger == nil {
		logger = slog.Default()
	}

	return &socket{
		cfg:      cfg,
		logger:   logger,
		messages: make(chan TimestampedMessage, cfg.BufferSize),
		errors:   make(chan error, 1),
		done:     make(chan struct{}),
	}
}

// Connect establishes the WebSocket connection.
func (s *socket) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrAlreadyClosed
	}
	s.mu.Unlock()

	header := http.Header{}
	header.Set("Accept", "application/json")
	if s.cfg.UserAgent != "" {
		header.Set("User-Agent", s.cfg.UserAgent)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, s.cfg.URL, header)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.conn = conn
	s.connected = true
	s.lastSeen = time.Now()
	s.mu.Unlock()

	// Server pings us; answer with a pong and note the contact.
	conn.SetPingHandler(func(data string) error {
		s.touch()
		return conn.WriteControl(
			websocket.PongMessage,
			[]byte(data),
			time.Now().Add(time.Second),
		)
	})

	// Server answers our keepalive pings.
	conn.SetPongHandler(func(string) error {
		s.touch()
		return nil
	})

	go s.readLoop()
	go s.heartbeatLoop()

	s.logger.Debug("feed socket connected", "url", s.cfg.URL)

	return nil
}

func (s *socket) touch() {
	s.mu.Lock()
	s.lastSeen = time.Now()
	s.mu.Unlock()
}

// Close gracefully closes the connection.
func (s *socket) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.connected = false
	s.mu.Unlock()

	close(s.done)

	if s.conn != nil {
		s.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		return s.conn.Close()
	}

	return nil
}

// Send writes raw bytes to the connection.
func (s *socket) Send(data []byte) error {
	s.mu.RLock()
	if !s.connected {
		s.mu.RUnlock()
		return ErrNotConnected
	}
	s.mu.RUnlock()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// Messages returns the messages channel.
func (s *socket) Messages() <-chan TimestampedMessage {
	return s.messages
}

// Errors returns the errors channel.
func (s *socket) Errors() <-chan error {
	return s.errors
}

// IsConnected returns the current connection state.
func (s *socket) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

// readLoop reads messages from the WebSocket and sends them to the messages
// channel.
func (s *socket) readLoop() {
	defer func() {
		s.mu.Lock()
		s.connected = false
		s.mu.Unlock()
	}()

	for {
		select {
		case <-s.done:
			return
		default:
		}

		_, data, err := s.conn.ReadMessage()
		receivedAt := time.Now() // Capture timestamp immediately

		if err != nil {
			// Ignore errors after Close() is called
			select {
			case <-s.done:
				return
			default:
				select {
				case s.errors <- err:
				default:
				}
				return
			}
		}

		msg := TimestampedMessage{
			Data:       data,
			ReceivedAt: receivedAt,
		}

		select {
		case s.messages <- msg:
		case <-s.done:
			return
		default:
			s.logger.Warn("feed message buffer full, dropping message")
		}
	}
}

// heartbeatLoop sends keepalive pings and flags stale connections.
func (s *socket) heartbeatLoop() {
	interval := s.cfg.PingTimeout / 3
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.mu.RLock()
			conn := s.conn
			lastSeen := s.lastSeen
			s.mu.RUnlock()

			if conn != nil {
				deadline := time.Now().Add(s.cfg.WriteTimeout)
				if err := conn.WriteControl(websocket.PingMessage, []byte("keepalive"), deadline); err != nil {
					s.logger.Debug("failed to send ping", "error", err)
				}
			}

			if time.Since(lastSeen) > s.cfg.PingTimeout {
				s.logger.Warn("feed connection stale",
					"last_seen", lastSeen,
					"timeout", s.cfg.PingTimeout,
				)
				select {
				case s.errors <- ErrStaleConnection:
				default:
				}
				return
			}
		}
	}
}
