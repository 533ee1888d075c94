package feed

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/solren/marketledger/internal/model"
)

// fakeConn is a scripted Conn for manager tests.
type fakeConn struct {
	mu     sync.Mutex
	sent   [][]byte
	closed bool

	messages chan TimestampedMessage
	errs     chan error
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		messages: make(chan TimestampedMessage, 16),
		errs:     make(chan error, 1),
	}
}

func (c *fakeConn) Connect(ctx context.Context) error { return nil }

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	c.sent = append(c.sent, cp)
	return nil
}

func (c *fakeConn) Messages() <-chan TimestampedMessage { return c.messages }
func (c *fakeConn) Errors() <-chan error                { return c.errs }

func (c *fakeConn) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}

func (c *fakeConn) commands(t *testing.T) []Command {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()

	cmds := make([]Command, 0, len(c.sent))
	for _, data := range c.sent {
		var cmd Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			t.Fatalf("sent frame is not a Command: %v", err)
		}
		cmds = append(cmds, cmd)
	}
	return cmds
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// newTestManager returns a manager whose dial hands out fresh fakeConns, and
// a getter for the conns dialed so far.
func newTestManager(cfg ManagerConfig) (*Manager, func() []*fakeConn) {
	m := NewManager(cfg, nil)

	var mu sync.Mutex
	var conns []*fakeConn
	m.dial = func(ctx context.Context) (Conn, error) {
		c := newFakeConn()
		mu.Lock()
		conns = append(conns, c)
		mu.Unlock()
		return c, nil
	}

	return m, func() []*fakeConn {
		mu.Lock()
		defer mu.Unlock()
		return append([]*fakeConn(nil), conns...)
	}
}

func testConfig() ManagerConfig {
	cfg := DefaultManagerConfig()
	cfg.ReconnectBaseDelay = time.Millisecond
	cfg.ReconnectMaxDelay = 5 * time.Millisecond
	cfg.HealthyWindow = time.Hour // Never resets during a test
	return cfg
}

func TestManager_SubscribesOnConnect(t *testing.T) {
	m, conns := newTestManager(testConfig())
	m.Subscribe("Odin")
	m.Subscribe("Chaos")
	m.Subscribe("Odin") // Duplicate is a no-op

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer m.Stop(context.Background())

	waitFor(t, "initial connect", func() bool { return len(conns()) == 1 })
	conn := conns()[0]
	waitFor(t, "subscribe commands", func() bool { return len(conn.commands(t)) == 2 })

	cmds := conn.commands(t)
	want := []Command{
		{Event: "subscribe", Scope: "Chaos"},
		{Event: "subscribe", Scope: "Odin"},
	}
	for i, cmd := range cmds {
		if cmd != want[i] {
			t.Errorf("commands[%d] = %+v, want %+v", i, cmd, want[i])
		}
	}

	waitFor(t, "subscribed state", func() bool { return m.State() == StateSubscribed })
}

func TestManager_ResubscribesAfterReconnect(t *testing.T) {
	m, conns := newTestManager(testConfig())
	m.Subscribe("Europe")
	m.Subscribe("Light")

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer m.Stop(context.Background())

	waitFor(t, "initial connect", func() bool { return len(conns()) == 1 })
	first := conns()[0]
	waitFor(t, "initial subscribes", func() bool { return len(first.commands(t)) == 2 })

	// Kill the connection; the manager should dial again and replay every
	// scope exactly once.
	first.errs <- ErrStaleConnection

	waitFor(t, "reconnect", func() bool { return len(conns()) == 2 })
	second := conns()[1]
	waitFor(t, "resubscribe", func() bool { return len(second.commands(t)) == 2 })

	seen := make(map[string]int)
	for _, cmd := range second.commands(t) {
		if cmd.Event != "subscribe" {
			t.Errorf("Event = %q, want %q", cmd.Event, "subscribe")
		}
		seen[cmd.Scope]++
	}
	for _, scope := range []string{"Europe", "Light"} {
		if seen[scope] != 1 {
			t.Errorf("scope %q subscribed %d times, want 1", scope, seen[scope])
		}
	}

	if got := m.Stats().Reconnects; got != 1 {
		t.Errorf("Reconnects = %d, want 1", got)
	}
}

func TestManager_DispatchesEntriesToListeners(t *testing.T) {
	m, conns := newTestManager(testConfig())
	m.Subscribe("Odin")

	var mu sync.Mutex
	var got []model.PriceFeedEntry
	m.AddListener(func(e model.PriceFeedEntry) {
		mu.Lock()
		got = append(got, e)
		mu.Unlock()
	})

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer m.Stop(context.Background())

	waitFor(t, "connect", func() bool { return len(conns()) == 1 })
	conn := conns()[0]

	conn.messages <- TimestampedMessage{
		Data:       []byte(`{"event": "sales/add", "item": 5057, "world": 66, "payload": [{"pricePerUnit": 88, "quantity": 1, "hq": true, "buyerName": "B", "timestamp": 1700000000}]}`),
		ReceivedAt: time.Now(),
	}

	waitFor(t, "listener dispatch", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	})

	mu.Lock()
	e := got[0]
	mu.Unlock()
	if e.Kind != model.EventSalesAdd || e.ItemID != 5057 || e.WorldID != 66 || e.PricePerUnit != 88 || !e.HQ {
		t.Errorf("dispatched entry = %+v", e)
	}
}

func TestManager_DropsMalformedEvents(t *testing.T) {
	m, conns := newTestManager(testConfig())

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer m.Stop(context.Background())

	waitFor(t, "connect", func() bool { return len(conns()) == 1 })
	conn := conns()[0]

	conn.messages <- TimestampedMessage{Data: []byte(`not json`), ReceivedAt: time.Now()}
	conn.messages <- TimestampedMessage{
		Data:       []byte(`{"event": "listings/add", "item": 1, "world": 2, "payload": []}`),
		ReceivedAt: time.Now(),
	}

	waitFor(t, "both events seen", func() bool { return m.Stats().EventsSeen == 2 })

	stats := m.Stats()
	if stats.EventsDropped != 1 {
		t.Errorf("EventsDropped = %d, want 1", stats.EventsDropped)
	}
	if m.State() != StateSubscribed {
		t.Errorf("State() = %q after malformed event, want %q", m.State(), StateSubscribed)
	}
}

func TestManager_SubscribeWhileConnectedSendsImmediately(t *testing.T) {
	m, conns := newTestManager(testConfig())

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer m.Stop(context.Background())

	waitFor(t, "connect", func() bool { return len(conns()) == 1 })
	waitFor(t, "subscribed state", func() bool { return m.State() == StateSubscribed })
	conn := conns()[0]

	m.Subscribe("Chaos")

	waitFor(t, "live subscribe", func() bool { return len(conn.commands(t)) == 1 })
	cmd := conn.commands(t)[0]
	if cmd != (Command{Event: "subscribe", Scope: "Chaos"}) {
		t.Errorf("command = %+v, want live subscribe for Chaos", cmd)
	}

	m.Unsubscribe("Chaos")
	waitFor(t, "live unsubscribe", func() bool { return len(conn.commands(t)) == 2 })
	cmd = conn.commands(t)[1]
	if cmd != (Command{Event: "unsubscribe", Scope: "Chaos"}) {
		t.Errorf("command = %+v, want live unsubscribe for Chaos", cmd)
	}
}

func TestNextDelay(t *testing.T) {
	max := 60 * time.Second

	d := time.Second
	want := []time.Duration{2, 4, 8, 16, 32, 60, 60}
	for i, w := range want {
		d = nextDelay(d, max)
		if d != w*time.Second {
			t.Errorf("step %d: delay = %v, want %v", i, d, w*time.Second)
		}
	}
}
