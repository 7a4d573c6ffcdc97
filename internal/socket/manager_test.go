package socket

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deskwire/pulse/internal/core/conn"
	"github.com/deskwire/pulse/internal/core/eventbus"
	"github.com/deskwire/pulse/internal/core/eventbus/testbus"
	"github.com/deskwire/pulse/internal/core/notify"
)

type fakeConn struct {
	in   chan Frame
	dead chan struct{}
	once sync.Once

	mu     sync.Mutex
	writes []Frame
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		in:   make(chan Frame, 8),
		dead: make(chan struct{}),
	}
}

func (c *fakeConn) push(f Frame) { c.in <- f }

func (c *fakeConn) fail() {
	c.once.Do(func() { close(c.dead) })
}

func (c *fakeConn) ReadFrame() (Frame, error) {
	select {
	case f := <-c.in:
		return f, nil
	case <-c.dead:
		return Frame{}, errors.New("connection reset")
	}
}

func (c *fakeConn) WriteFrame(f Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes = append(c.writes, f)
	return nil
}

func (c *fakeConn) Writes() []Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Frame, len(c.writes))
	copy(out, c.writes)
	return out
}

func (c *fakeConn) Close() error {
	c.fail()
	return nil
}

type fakeDialer struct {
	mu     sync.Mutex
	dial   func(token string) (Conn, error)
	calls  int
	tokens []string
}

func (d *fakeDialer) Dial(_ context.Context, _ string, token string) (Conn, error) {
	d.mu.Lock()
	d.calls++
	d.tokens = append(d.tokens, token)
	fn := d.dial
	d.mu.Unlock()
	return fn(token)
}

func (d *fakeDialer) set(fn func(token string) (Conn, error)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dial = fn
}

func (d *fakeDialer) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

func (d *fakeDialer) Tokens() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.tokens))
	copy(out, d.tokens)
	return out
}

type fakeRefresher struct {
	token string
	err   error

	mu    sync.Mutex
	calls int
}

func (r *fakeRefresher) Refresh(context.Context, string) (string, error) {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()
	return r.token, r.err
}

func (r *fakeRefresher) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func testConfig() Config {
	return Config{
		URL:            "ws://support.test/ws/notifications",
		ConnectTimeout: time.Second,
		RetryDelay:     3 * time.Second,
		Backoff: Backoff{
			Base:      time.Second,
			Cap:       30 * time.Second,
			MaxJitter: time.Second,
			Rand:      func() float64 { return 0 },
		},
		MaxReconnects: 10,
	}
}

// manualTimer captures retry scheduling so tests control when and
// whether a retry actually fires.
type manualTimer struct {
	delays chan time.Duration
	fns    chan func()
}

func newManualTimer() *manualTimer {
	return &manualTimer{
		delays: make(chan time.Duration, 32),
		fns:    make(chan func(), 32),
	}
}

func (mt *manualTimer) timer(d time.Duration, fn func()) func() {
	mt.delays <- d
	mt.fns <- fn
	return func() {}
}

func (mt *manualTimer) next(t *testing.T) (time.Duration, func()) {
	t.Helper()
	select {
	case d := <-mt.delays:
		return d, <-mt.fns
	case <-time.After(time.Second):
		t.Fatal("no retry scheduled")
		return 0, nil
	}
}

func (mt *manualTimer) assertIdle(t *testing.T) {
	t.Helper()
	select {
	case d := <-mt.delays:
		t.Fatalf("unexpected retry scheduled after %v", d)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestConnect_ConcurrentCallsShareOneAttempt(t *testing.T) {
	gate := make(chan struct{})
	dialer := &fakeDialer{}
	dialer.set(func(string) (Conn, error) {
		<-gate
		return newFakeConn(), nil
	})

	m := NewManager(testConfig(), dialer)

	errs := make(chan error, 2)
	for range 2 {
		go func() {
			errs <- m.Connect(context.Background(), "cred-1")
		}()
	}

	// Both calls are in flight before the dial resolves.
	require.Eventually(t, func() bool { return dialer.Calls() == 1 }, time.Second, 5*time.Millisecond)
	close(gate)

	require.NoError(t, <-errs)
	require.NoError(t, <-errs)

	assert.Equal(t, 1, dialer.Calls())
	assert.Equal(t, conn.StateConnected, m.State())
}

func TestConnect_WhenConnectedIsNoop(t *testing.T) {
	dialer := &fakeDialer{}
	dialer.set(func(string) (Conn, error) { return newFakeConn(), nil })

	m := NewManager(testConfig(), dialer)
	require.NoError(t, m.Connect(context.Background(), "cred-1"))
	require.NoError(t, m.Connect(context.Background(), "cred-1"))

	assert.Equal(t, 1, dialer.Calls())
}

func TestReconnect_ExhaustsAfterMaxAttempts(t *testing.T) {
	bus := testbus.New(t)
	dialer := &fakeDialer{}
	dialer.set(func(string) (Conn, error) { return nil, errors.New("connection refused") })
	mt := newManualTimer()

	cfg := testConfig()
	m := NewManager(cfg, dialer, WithBus(bus.EventBus), WithTimer(mt.timer))

	require.Error(t, m.Connect(context.Background(), "cred-1"))

	for attempt := range cfg.MaxReconnects {
		d, fire := mt.next(t)

		exp := time.Duration(float64(cfg.Backoff.Base) * math.Pow(1.5, float64(attempt)))
		if exp > cfg.Backoff.Cap {
			exp = cfg.Backoff.Cap
		}
		assert.GreaterOrEqual(t, d, exp, "attempt %d below backoff floor", attempt)
		assert.LessOrEqual(t, d, exp+cfg.Backoff.MaxJitter, "attempt %d above jitter ceiling", attempt)

		fire()
	}

	bus.AssertPublished(t, eventbus.EventReconnectsExhausted)
	mt.assertIdle(t)
	assert.Equal(t, cfg.MaxReconnects+1, dialer.Calls())
}

func TestReconnect_TimeoutUsesFixedDelay(t *testing.T) {
	dialer := &fakeDialer{}
	dialer.set(func(string) (Conn, error) { return nil, context.DeadlineExceeded })
	mt := newManualTimer()

	cfg := testConfig()
	m := NewManager(cfg, dialer, WithTimer(mt.timer))

	require.Error(t, m.Connect(context.Background(), "cred-1"))

	d, _ := mt.next(t)
	assert.Equal(t, cfg.RetryDelay, d)
}

func TestReconnect_WithoutCredential(t *testing.T) {
	dialer := &fakeDialer{}
	dialer.set(func(string) (Conn, error) { return newFakeConn(), nil })

	m := NewManager(testConfig(), dialer)
	assert.ErrorIs(t, m.Reconnect(context.Background()), ErrNoCredential)
	assert.Zero(t, dialer.Calls())
}

func TestNotificationHandlerSurvivesReconnect(t *testing.T) {
	first := newFakeConn()
	second := newFakeConn()
	conns := []*fakeConn{first, second}

	dialer := &fakeDialer{}
	dialer.set(func(string) (Conn, error) {
		c := conns[0]
		conns = conns[1:]
		return c, nil
	})
	mt := newManualTimer()

	m := NewManager(testConfig(), dialer, WithTimer(mt.timer))
	require.NoError(t, m.Connect(context.Background(), "cred-1"))

	got := make(chan notify.Notification, 4)
	unsubscribe := m.OnNotification(func(n notify.Notification) { got <- n })
	defer unsubscribe()

	// Server-side drop, then the scheduled retry brings up a fresh
	// connection.
	first.fail()
	_, fire := mt.next(t)
	fire()
	require.Eventually(t, func() bool { return m.State() == conn.StateConnected }, time.Second, 5*time.Millisecond)
	require.Equal(t, 2, dialer.Calls())

	f, err := NewFrame(EventNotification, map[string]string{"id": "n1", "message": "ticket updated"})
	require.NoError(t, err)
	second.push(f)

	select {
	case n := <-got:
		assert.Equal(t, "n1", n.ID)
		assert.Equal(t, "ticket updated", n.Message)
	case <-time.After(time.Second):
		t.Fatal("handler did not fire after reconnect")
	}

	select {
	case n := <-got:
		t.Fatalf("handler fired twice, second: %+v", n)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEmit(t *testing.T) {
	c := newFakeConn()
	dialer := &fakeDialer{}
	dialer.set(func(string) (Conn, error) { return c, nil })

	m := NewManager(testConfig(), dialer)

	assert.False(t, m.Emit(EventClientNotification, map[string]string{"message": "offline"}),
		"emit must report failure while disconnected")

	require.NoError(t, m.Connect(context.Background(), "cred-1"))
	assert.True(t, m.Emit(EventClientNotification, map[string]string{"message": "hi"}))

	writes := c.Writes()
	require.Len(t, writes, 1)
	assert.Equal(t, EventClientNotification, writes[0].Event)
}

func TestDisconnect_SuppressesReconnect(t *testing.T) {
	c := newFakeConn()
	dialer := &fakeDialer{}
	dialer.set(func(string) (Conn, error) { return c, nil })
	mt := newManualTimer()

	m := NewManager(testConfig(), dialer, WithTimer(mt.timer))
	require.NoError(t, m.Connect(context.Background(), "cred-1"))

	m.Disconnect()

	assert.Equal(t, conn.StateDisconnected, m.State())
	mt.assertIdle(t)
	assert.Equal(t, 1, dialer.Calls())
}

func TestTokenExpired_RefreshSucceeds(t *testing.T) {
	bus := testbus.New(t)
	first := newFakeConn()
	second := newFakeConn()
	conns := []*fakeConn{first, second}

	dialer := &fakeDialer{}
	dialer.set(func(string) (Conn, error) {
		c := conns[0]
		conns = conns[1:]
		return c, nil
	})

	refresher := &fakeRefresher{token: "fresh-token"}
	m := NewManager(testConfig(), dialer,
		WithBus(bus.EventBus),
		WithRefresher(refresher, func() string { return "refresh-1" }),
	)

	require.NoError(t, m.Connect(context.Background(), "stale-token"))
	first.push(Frame{Event: EventTokenExpired})

	bus.AssertPublished(t, eventbus.EventSessionExpired)
	bus.AssertPublished(t, eventbus.EventSessionRefreshed)

	require.Eventually(t, func() bool { return dialer.Calls() == 2 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return m.State() == conn.StateConnected }, time.Second, 5*time.Millisecond)

	assert.Equal(t, 1, refresher.Calls(), "refresh is a single attempt")
	assert.Equal(t, []string{"stale-token", "fresh-token"}, dialer.Tokens())
}

func TestTokenExpired_RefreshFailureForcesLogout(t *testing.T) {
	bus := testbus.New(t)
	c := newFakeConn()
	dialer := &fakeDialer{}
	dialer.set(func(string) (Conn, error) { return c, nil })

	refresher := &fakeRefresher{err: errors.New("refresh rejected")}
	m := NewManager(testConfig(), dialer,
		WithBus(bus.EventBus),
		WithRefresher(refresher, func() string { return "refresh-1" }),
	)

	require.NoError(t, m.Connect(context.Background(), "stale-token"))
	c.push(Frame{Event: EventTokenExpired})

	bus.AssertPublished(t, eventbus.EventSessionExpired)
	bus.AssertPublished(t, eventbus.EventForcedLogout)

	require.Eventually(t, func() bool { return m.State() == conn.StateDisconnected }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, dialer.Calls(), "no reconnect after forced logout")
}

func TestOnStateChange_ReplaysCurrentState(t *testing.T) {
	dialer := &fakeDialer{}
	dialer.set(func(string) (Conn, error) { return newFakeConn(), nil })

	m := NewManager(testConfig(), dialer)

	states := make(chan conn.State, 8)
	unsubscribe := m.OnStateChange(func(s conn.State) { states <- s })
	defer unsubscribe()

	assert.Equal(t, conn.StateDisconnected, <-states)

	require.NoError(t, m.Connect(context.Background(), "cred-1"))
	assert.Equal(t, conn.StateConnecting, <-states)
	assert.Equal(t, conn.StateConnected, <-states)
}

func TestConnect_FlushesOfflineQueue(t *testing.T) {
	c := newFakeConn()
	dialer := &fakeDialer{}
	dialer.set(func(string) (Conn, error) { return c, nil })

	queued, err := NewFrame(EventClientNotification, map[string]string{"message": "queued while offline"})
	require.NoError(t, err)

	m := NewManager(testConfig(), dialer, WithFlush(func(context.Context) ([]Frame, error) {
		return []Frame{queued}, nil
	}))

	require.NoError(t, m.Connect(context.Background(), "cred-1"))

	require.Eventually(t, func() bool { return len(c.Writes()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, EventClientNotification, c.Writes()[0].Event)
}

func TestNavigationDebounce_DelaysDial(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }

	dialer := &fakeDialer{}
	dialer.set(func(string) (Conn, error) { return newFakeConn(), nil })

	cfg := testConfig()
	cfg.NavigationDebounce = 300 * time.Millisecond
	m := NewManager(cfg, dialer, WithClock(clock))

	m.NotifyNavigation()
	assert.Equal(t, 300*time.Millisecond, m.navDelayLocked())

	now = now.Add(200 * time.Millisecond)
	assert.Equal(t, 100*time.Millisecond, m.navDelayLocked())

	now = now.Add(time.Second)
	assert.Zero(t, m.navDelayLocked())
}

func TestNavigationDebounce_BurstsThrottleHarder(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }

	dialer := &fakeDialer{}
	dialer.set(func(string) (Conn, error) { return newFakeConn(), nil })

	cfg := testConfig()
	cfg.NavigationDebounce = 300 * time.Millisecond
	m := NewManager(cfg, dialer, WithClock(clock))

	for range 5 {
		m.NotifyNavigation()
	}

	// Five rapid transitions: the remaining window is scaled up.
	assert.Equal(t, 900*time.Millisecond, m.navDelayLocked())
}
