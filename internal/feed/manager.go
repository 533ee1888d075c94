package feed

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/solren/marketledger/internal/metrics"
	"github.com/solren/marketledger/internal/model"
)

// State is the connection state of the feed manager.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateSubscribed   State = "subscribed"
)

// Listener receives parsed feed entries. Listeners run on the dispatch
// goroutine and must not block.
type Listener func(model.PriceFeedEntry)

// ManagerConfig configures the feed manager.
type ManagerConfig struct {
	URL                string
	UserAgent          string
	ReconnectBaseDelay time.Duration // First retry delay
	ReconnectMaxDelay  time.Duration // Backoff cap
	HealthyWindow      time.Duration // Connection older than this resets the backoff
	PingTimeout        time.Duration
	BufferSize         int
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		ReconnectBaseDelay: 1 * time.Second,
		ReconnectMaxDelay:  60 * time.Second,
		HealthyWindow:      5 * time.Minute,
		PingTimeout:        60 * time.Second,
		BufferSize:         10000,
	}
}

// ManagerStats is a point-in-time snapshot of feed health.
type ManagerStats struct {
	State         State
	ConnectedAt   time.Time // Zero when disconnected
	Scopes        int
	EventsSeen    int64
	EventsDropped int64 // Malformed events discarded
	Entries       int64 // Parsed entries handed to the buffer
	Reconnects    int64
}

// Manager maintains a single live feed connection: it dials with capped
// exponential backoff, replays the active scope subscriptions after every
// reconnect, and fans parsed entries out to listeners through a growable
// buffer so a slow listener never stalls the read loop.
type Manager struct {
	cfg    ManagerConfig
	logger *slog.Logger

	// dial is replaceable in tests.
	dial func(ctx context.Context) (Conn, error)

	buf       *Buffer[model.PriceFeedEntry]
	listeners []Listener // Fixed after Start

	mu          sync.Mutex
	scopes      map[string]struct{}
	state       State
	connectedAt time.Time
	conn        Conn

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	eventsSeen    atomic.Int64
	eventsDropped atomic.Int64
	entries       atomic.Int64
	reconnects    atomic.Int64
}

// NewManager creates a feed manager. Scopes and listeners are registered
// before Start.
func NewManager(cfg ManagerConfig, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}

	m := &Manager{
		cfg:    cfg,
		logger: logger,
		buf:    NewBuffer[model.PriceFeedEntry](cfg.BufferSize),
		scopes: make(map[string]struct{}),
		state:  StateDisconnected,
	}

	m.dial = func(ctx context.Context) (Conn, error) {
		c := NewSocket(SocketConfig{
			URL:          cfg.URL,
			UserAgent:    cfg.UserAgent,
			PingTimeout:  cfg.PingTimeout,
			WriteTimeout: 5 * time.Second,
			BufferSize:   cfg.BufferSize,
		}, logger)
		if err := c.Connect(ctx); err != nil {
			return nil, err
		}
		return c, nil
	}

	return m
}

// AddListener registers a listener. Must be called before Start.
func (m *Manager) AddListener(fn Listener) {
	m.listeners = append(m.listeners, fn)
}

// Subscribe adds a scope to the active set. If a connection is live the
// subscribe command is sent immediately; otherwise it is replayed on the
// next (re)connect.
func (m *Manager) Subscribe(scope string) {
	m.mu.Lock()
	if _, ok := m.scopes[scope]; ok {
		m.mu.Unlock()
		return
	}
	m.scopes[scope] = struct{}{}
	conn := m.conn
	m.mu.Unlock()

	if conn != nil && conn.IsConnected() {
		m.sendCommand(conn, Command{Event: "subscribe", Scope: scope})
	}
}

// Unsubscribe removes a scope from the active set.
func (m *Manager) Unsubscribe(scope string) {
	m.mu.Lock()
	if _, ok := m.scopes[scope]; !ok {
		m.mu.Unlock()
		return
	}
	delete(m.scopes, scope)
	conn := m.conn
	m.mu.Unlock()

	if conn != nil && conn.IsConnected() {
		m.sendCommand(conn, Command{Event: "unsubscribe", Scope: scope})
	}
}

// Start begins the connect/read/dispatch loops.
func (m *Manager) Start(ctx context.Context) error {
	m.ctx, m.cancel = context.WithCancel(ctx)

	m.wg.Add(2)
	go m.run()
	go m.dispatch()

	m.logger.Info("feed manager started", "url", m.cfg.URL)
	return nil
}

// Stop shuts the manager down, waiting up to the context deadline for the
// loops to drain.
func (m *Manager) Stop(ctx context.Context) error {
	m.logger.Info("stopping feed manager")

	if m.cancel != nil {
		m.cancel()
	}

	m.mu.Lock()
	if m.conn != nil {
		m.conn.Close()
		m.conn = nil
	}
	m.mu.Unlock()

	m.buf.Close()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Connected reports whether the feed is live and subscribed.
func (m *Manager) Connected() bool {
	return m.State() == StateSubscribed
}

// Stats returns current feed statistics.
func (m *Manager) Stats() ManagerStats {
	m.mu.Lock()
	state := m.state
	connectedAt := m.connectedAt
	scopes := len(m.scopes)
	m.mu.Unlock()

	return ManagerStats{
		State:         state,
		ConnectedAt:   connectedAt,
		Scopes:        scopes,
		EventsSeen:    m.eventsSeen.Load(),
		EventsDropped: m.eventsDropped.Load(),
		Entries:       m.entries.Load(),
		Reconnects:    m.reconnects.Load(),
	}
}

// run is the connection loop: dial, subscribe, read until failure, back off,
// repeat.
func (m *Manager) run() {
	defer m.wg.Done()

	delay := m.cfg.ReconnectBaseDelay

	for {
		if m.ctx.Err() != nil {
			return
		}

		m.setState(StateConnecting, time.Time{})

		conn, err := m.dial(m.ctx)
		if err != nil {
			if m.ctx.Err() != nil {
				return
			}
			m.logger.Warn("feed connect failed", "error", err, "retry_in", delay)
			m.setState(StateDisconnected, time.Time{})
			if !m.sleep(delay) {
				return
			}
			delay = nextDelay(delay, m.cfg.ReconnectMaxDelay)
			continue
		}

		start := time.Now()
		m.mu.Lock()
		m.conn = conn
		m.mu.Unlock()

		m.subscribeAll(conn)
		m.setState(StateSubscribed, start)

		m.readUntilFailure(conn)
		conn.Close()

		m.mu.Lock()
		m.conn = nil
		m.mu.Unlock()

		if m.ctx.Err() != nil {
			return
		}

		// A connection that stayed up through the healthy window earns a
		// fresh backoff; a quick flap keeps escalating.
		if time.Since(start) >= m.cfg.HealthyWindow {
			delay = m.cfg.ReconnectBaseDelay
		} else {
			delay = nextDelay(delay, m.cfg.ReconnectMaxDelay)
		}

		m.reconnects.Add(1)
		metrics.FeedReconnects.Inc()
		m.setState(StateDisconnected, time.Time{})
		m.logger.Warn("feed disconnected, reconnecting", "retry_in", delay)

		if !m.sleep(delay) {
			return
		}
	}
}

// subscribeAll replays every active scope on a fresh connection, each scope
// exactly once.
func (m *Manager) subscribeAll(conn Conn) {
	m.mu.Lock()
	scopes := make([]string, 0, len(m.scopes))
	for scope := range m.scopes {
		scopes = append(scopes, scope)
	}
	m.mu.Unlock()
	sort.Strings(scopes)

	for _, scope := range scopes {
		m.sendCommand(conn, Command{Event: "subscribe", Scope: scope})
	}

	m.logger.Info("feed subscriptions replayed", "scopes", len(scopes))
}

func (m *Manager) sendCommand(conn Conn, cmd Command) {
	data, err := json.Marshal(cmd)
	if err != nil {
		m.logger.Error("marshal feed command", "error", err)
		return
	}
	if err := conn.Send(data); err != nil {
		// The read loop will observe the broken connection and reconnect.
		m.logger.Warn("send feed command failed", "event", cmd.Event, "scope", cmd.Scope, "error", err)
	}
}

// readUntilFailure consumes messages until the connection errors or the
// manager is stopped.
func (m *Manager) readUntilFailure(conn Conn) {
	for {
		select {
		case <-m.ctx.Done():
			return

		case err := <-conn.Errors():
			m.logger.Warn("feed connection error", "error", err)
			return

		case msg, ok := <-conn.Messages():
			if !ok {
				return
			}
			m.eventsSeen.Add(1)

			entries, err := ParseEntries(msg.Data, msg.ReceivedAt)
			if err != nil {
				m.eventsDropped.Add(1)
				metrics.FeedEventsDropped.Inc()
				m.logger.Warn("dropping malformed feed event", "error", err)
				continue
			}

			for _, e := range entries {
				metrics.FeedEventsTotal.WithLabelValues(string(e.Kind)).Inc()
				if m.buf.Send(e) {
					m.entries.Add(1)
				}
			}
		}
	}
}

// dispatch drains the buffer and fans entries out to listeners.
func (m *Manager) dispatch() {
	defer m.wg.Done()

	for {
		entry, ok := m.buf.Receive()
		if !ok {
			return
		}
		for _, fn := range m.listeners {
			fn(entry)
		}
	}
}

func (m *Manager) setState(s State, connectedAt time.Time) {
	m.mu.Lock()
	m.state = s
	m.connectedAt = connectedAt
	m.mu.Unlock()

	if s == StateSubscribed {
		metrics.FeedConnected.Set(1)
	} else {
		metrics.FeedConnected.Set(0)
	}
}

// sleep waits for d or until the manager is stopped. Returns false when
// stopped.
func (m *Manager) sleep(d time.Duration) bool {
	select {
	case <-m.ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

// nextDelay doubles the backoff up to the cap.
func nextDelay(d, max time.Duration) time.Duration {
	d *= 2
	if d > max {
		d = max
	}
	return d
}
