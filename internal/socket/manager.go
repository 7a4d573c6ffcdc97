package socket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/deskwire/pulse/internal/core/conn"
	"github.com/deskwire/pulse/internal/core/eventbus"
	"github.com/deskwire/pulse/internal/core/logging"
	"github.com/deskwire/pulse/internal/core/notify"
	"github.com/deskwire/pulse/pkg/randid"
)

// ErrNoCredential is returned by Reconnect when no credential was ever
// supplied to Connect.
var ErrNoCredential = errors.New("no credential available")

// NotificationHandler receives inbound server notifications. Handlers
// registered on the manager survive reconnects: they dispatch through
// the manager's registry, not through any single underlying connection.
type NotificationHandler func(notify.Notification)

// TokenRefresher performs the single silent refresh attempt after the
// server signals an expired credential.
type TokenRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (string, error)
}

// FlushFunc returns frames queued while disconnected, to be emitted
// once a connection is established.
type FlushFunc func(ctx context.Context) ([]Frame, error)

// Config tunes the manager.
type Config struct {
	URL                string
	ConnectTimeout     time.Duration
	RetryDelay         time.Duration
	Backoff            Backoff
	MaxReconnects      int
	NavigationDebounce time.Duration
}

// Manager owns at most one live connection per session. All mutation of
// connection state happens inside the manager; consumers read derived
// state or call the exposed operations.
type Manager struct {
	cfg    Config
	dialer Dialer
	bus    *eventbus.EventBus
	log    zerolog.Logger

	refresher    TokenRefresher
	refreshToken func() string
	flush        FlushFunc

	now   func() time.Time
	timer func(d time.Duration, fn func()) (stop func())

	mu          sync.Mutex
	state       conn.State
	c           Conn
	gen         int // connection generation; orphans stale read loops
	token       string
	attempts    int
	pending     *inflight
	stopRetry   func()
	intentional bool

	nextSubID      int
	stateSubs      map[int]func(conn.State)
	connectSubs    map[int]func()
	disconnectSubs map[int]func()
	notifSubs      map[int]NotificationHandler

	lastNav  time.Time
	navBurst int
}

// Option configures a Manager.
type Option func(*Manager)

// WithBus wires the manager to the application event bus for state
// transitions, session expiry, forced logout, and navigation debounce.
func WithBus(bus *eventbus.EventBus) Option {
	return func(m *Manager) { m.bus = bus }
}

// WithRefresher enables the silent token-refresh flow. refreshToken is
// read lazily so rotated refresh credentials are picked up.
func WithRefresher(r TokenRefresher, refreshToken func() string) Option {
	return func(m *Manager) {
		m.refresher = r
		m.refreshToken = refreshToken
	}
}

// WithFlush sets the source of frames to emit after each connect,
// draining anything queued while offline.
func WithFlush(fn FlushFunc) Option {
	return func(m *Manager) { m.flush = fn }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithTimer overrides retry scheduling, for tests.
func WithTimer(timer func(d time.Duration, fn func()) func()) Option {
	return func(m *Manager) { m.timer = timer }
}

// NewManager creates a manager in the disconnected state.
func NewManager(cfg Config, dialer Dialer, opts ...Option) *Manager {
	m := &Manager{
		cfg:            cfg,
		dialer:         dialer,
		log:            logging.Component("socket"),
		now:            time.Now,
		timer:          defaultTimer,
		state:          conn.StateDisconnected,
		stateSubs:      make(map[int]func(conn.State)),
		connectSubs:    make(map[int]func()),
		disconnectSubs: make(map[int]func()),
		notifSubs:      make(map[int]NotificationHandler),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.bus != nil {
		m.bus.SubscribeNavigationChanged(func(eventbus.NavigationChangedPayload) {
			m.NotifyNavigation()
		})
	}
	return m
}

func defaultTimer(d time.Duration, fn func()) func() {
	t := time.AfterFunc(d, fn)
	return func() { t.Stop() }
}

// inflight is the shared result of a connection attempt. A second
// Connect while one is in flight waits on the same result rather than
// dialing in parallel.
type inflight struct {
	done chan struct{}
	err  error
}

func (p *inflight) wait(ctx context.Context) error {
	select {
	case <-p.done:
		return p.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State returns the current connection state.
func (m *Manager) State() conn.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Connect establishes the connection using the given credential. It is
// idempotent: when already connected it returns immediately, and when
// an attempt is in flight both callers share its outcome.
func (m *Manager) Connect(ctx context.Context, token string) error {
	m.mu.Lock()
	if token != "" {
		m.token = token
	}
	if m.state == conn.StateConnected {
		m.mu.Unlock()
		return nil
	}
	if m.pending != nil {
		p := m.pending
		m.mu.Unlock()
		return p.wait(ctx)
	}

	p := &inflight{done: make(chan struct{})}
	m.pending = p
	m.intentional = false
	tok := m.token
	delay := m.navDelayLocked()
	target := conn.StateConnecting
	if m.attempts > 0 {
		target = conn.StateReconnecting
	}
	m.mu.Unlock()

	m.setState(target)
	go m.dial(p, tok, delay)
	return p.wait(ctx)
}

// Reconnect re-invokes Connect with the last-used credential.
func (m *Manager) Reconnect(ctx context.Context) error {
	m.mu.Lock()
	tok := m.token
	m.mu.Unlock()
	if tok == "" {
		return ErrNoCredential
	}
	return m.Connect(ctx, tok)
}

// Disconnect tears the connection down intentionally: auto-reconnect is
// suppressed and the attempt counter reset.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.intentional = true
	m.attempts = 0
	if m.stopRetry != nil {
		m.stopRetry()
		m.stopRetry = nil
	}
	c := m.c
	m.c = nil
	m.gen++
	m.mu.Unlock()

	if c != nil {
		_ = c.Close()
	}
	m.setState(conn.StateDisconnected)
	m.fanOutDisconnect()
}

// Emit sends an event over the live connection. It returns false when
// not connected or when the write fails; it never queues and never
// panics.
func (m *Manager) Emit(event string, payload any) bool {
	m.mu.Lock()
	c := m.c
	connected := m.state == conn.StateConnected
	m.mu.Unlock()

	if !connected || c == nil {
		return false
	}

	f, err := NewFrame(event, payload)
	if err != nil {
		m.log.Warn().Err(err).Str("event", event).Msg("dropping unencodable frame")
		return false
	}
	if err := c.WriteFrame(f); err != nil {
		m.log.Warn().Err(err).Str("event", event).Msg("emit failed")
		return false
	}
	return true
}

// OnStateChange subscribes to state transitions. The current state is
// replayed to the new subscriber immediately. Returns an unsubscribe
// function.
func (m *Manager) OnStateChange(fn func(conn.State)) func() {
	m.mu.Lock()
	id := m.nextSubID
	m.nextSubID++
	m.stateSubs[id] = fn
	current := m.state
	m.mu.Unlock()

	fn(current)
	return func() {
		m.mu.Lock()
		delete(m.stateSubs, id)
		m.mu.Unlock()
	}
}

// OnConnect subscribes to connection establishment. If already
// connected the callback fires immediately.
func (m *Manager) OnConnect(fn func()) func() {
	m.mu.Lock()
	id := m.nextSubID
	m.nextSubID++
	m.connectSubs[id] = fn
	connected := m.state == conn.StateConnected
	m.mu.Unlock()

	if connected {
		fn()
	}
	return func() {
		m.mu.Lock()
		delete(m.connectSubs, id)
		m.mu.Unlock()
	}
}

// OnDisconnect subscribes to connection loss.
func (m *Manager) OnDisconnect(fn func()) func() {
	m.mu.Lock()
	id := m.nextSubID
	m.nextSubID++
	m.disconnectSubs[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.disconnectSubs, id)
		m.mu.Unlock()
	}
}

// OnNotification registers a handler for inbound server notifications.
// The registration survives reconnects transparently.
func (m *Manager) OnNotification(fn NotificationHandler) func() {
	m.mu.Lock()
	id := m.nextSubID
	m.nextSubID++
	m.notifSubs[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.notifSubs, id)
		m.mu.Unlock()
	}
}

// SubscribeToNotifications is an alias for OnNotification.
func (m *Manager) SubscribeToNotifications(fn NotificationHandler) func() {
	return m.OnNotification(fn)
}

// NotifyNavigation records a host-application route transition. New
// connection attempts inside the debounce window are delayed, and rapid
// transition bursts throttle reconnection harder.
func (m *Manager) NotifyNavigation() {
	m.mu.Lock()
	now := m.now()
	if now.Sub(m.lastNav) < 10*m.cfg.NavigationDebounce {
		m.navBurst++
	} else {
		m.navBurst = 1
	}
	m.lastNav = now
	m.mu.Unlock()
}

func (m *Manager) navDelayLocked() time.Duration {
	if m.cfg.NavigationDebounce <= 0 || m.lastNav.IsZero() {
		return 0
	}
	since := m.now().Sub(m.lastNav)
	if since >= m.cfg.NavigationDebounce {
		return 0
	}

	delay := m.cfg.NavigationDebounce - since
	if m.navBurst > 3 {
		factor := m.navBurst - 2
		if factor > 4 {
			factor = 4
		}
		delay *= time.Duration(factor)
	}
	return delay
}

func (m *Manager) dial(p *inflight, token string, delay time.Duration) {
	if delay > 0 {
		time.Sleep(delay)
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.ConnectTimeout)
	defer cancel()

	c, err := m.dialer.Dial(ctx, m.cfg.URL, token)
	m.finishDial(p, c, err)
}

func (m *Manager) finishDial(p *inflight, c Conn, err error) {
	m.mu.Lock()
	m.pending = nil

	if err != nil {
		m.mu.Unlock()
		m.log.Warn().Err(err).Msg("connect failed")
		m.setState(conn.StateError)
		p.err = err
		close(p.done)
		m.scheduleRetry(err)
		return
	}

	m.c = c
	m.attempts = 0
	m.navBurst = 0
	if m.stopRetry != nil {
		m.stopRetry()
		m.stopRetry = nil
	}
	m.gen++
	gen := m.gen
	m.mu.Unlock()

	// The read loop dispatches through the manager's handler registry,
	// so every handler registered before this reconnect is attached
	// before subscribers observe the connected state.
	go m.readLoop(c, gen)

	m.log.Info().Str("conn_id", randid.Generate(8)).Msg("connected")
	m.setState(conn.StateConnected)
	m.fanOutConnect()
	close(p.done)
	m.flushQueued(c)
}

// scheduleRetry arranges the next reconnect attempt, or gives up with
// an observable reconnects-exhausted event once the attempt budget is
// spent. Connect timeouts retry after the fixed delay; every other
// failure backs off exponentially.
func (m *Manager) scheduleRetry(cause error) {
	m.mu.Lock()
	if m.intentional {
		m.mu.Unlock()
		return
	}

	m.attempts++
	attempt := m.attempts
	if attempt > m.cfg.MaxReconnects {
		m.mu.Unlock()
		m.log.Error().Int("attempts", attempt-1).Err(cause).Msg("reconnect attempts exhausted")
		if m.bus != nil {
			m.bus.PublishReconnectsExhausted(eventbus.ReconnectsExhaustedPayload{
				Attempts: attempt - 1,
				LastErr:  cause,
			})
		}
		return
	}

	var delay time.Duration
	if errors.Is(cause, context.DeadlineExceeded) {
		delay = m.cfg.RetryDelay
	} else {
		delay = m.cfg.Backoff.Delay(attempt - 1)
	}

	m.log.Debug().Int("attempt", attempt).Dur("delay", delay).Msg("scheduling reconnect")
	m.stopRetry = m.timer(delay, func() {
		if err := m.Reconnect(context.Background()); err != nil {
			m.log.Debug().Err(err).Msg("scheduled reconnect failed")
		}
	})
	m.mu.Unlock()
}

func (m *Manager) readLoop(c Conn, gen int) {
	for {
		f, err := c.ReadFrame()
		if err != nil {
			m.handleConnLost(c, gen, err)
			return
		}
		m.handleFrame(f)
	}
}

func (m *Manager) handleConnLost(c Conn, gen int, cause error) {
	m.mu.Lock()
	if m.gen != gen {
		// A newer connection superseded this one; nothing to do.
		m.mu.Unlock()
		return
	}
	m.c = nil
	intentional := m.intentional
	m.mu.Unlock()

	_ = c.Close()

	if intentional {
		return
	}

	m.log.Warn().Err(cause).Msg("connection lost")
	m.setState(conn.StateReconnecting)
	m.fanOutDisconnect()
	m.scheduleRetry(cause)
}

func (m *Manager) handleFrame(f Frame) {
	switch f.Event {
	case EventNotification:
		n, err := decodeNotification(f.Payload, m.now())
		if err != nil {
			m.log.Warn().Err(err).Msg("dropping malformed notification")
			return
		}
		m.fanOutNotification(n)
	case EventTokenExpired:
		go m.refreshCredential()
	default:
		m.log.Debug().Str("event", f.Event).Msg("ignoring unknown event")
	}
}

// refreshCredential is the one-shot silent refresh: a single attempt,
// then either reconnect with the new credential or a forced logout.
func (m *Manager) refreshCredential() {
	if m.bus != nil {
		m.bus.PublishSessionExpired(eventbus.SessionExpiredPayload{})
	}

	var refreshTok string
	if m.refreshToken != nil {
		refreshTok = m.refreshToken()
	}
	if m.refresher == nil || refreshTok == "" {
		m.forceLogout("credential expired and no refresh credential available")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.ConnectTimeout)
	defer cancel()

	newTok, err := m.refresher.Refresh(ctx, refreshTok)
	if err != nil {
		m.forceLogout(fmt.Sprintf("credential refresh failed: %v", err))
		return
	}

	if m.bus != nil {
		m.bus.PublishSessionRefreshed(eventbus.SessionRefreshedPayload{})
	}

	m.mu.Lock()
	m.token = newTok
	old := m.c
	m.c = nil
	m.gen++
	m.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}
	if err := m.Reconnect(context.Background()); err != nil {
		m.log.Warn().Err(err).Msg("reconnect after refresh failed")
	}
}

func (m *Manager) forceLogout(reason string) {
	m.log.Error().Str("reason", reason).Msg("forcing logout")
	m.Disconnect()
	if m.bus != nil {
		m.bus.PublishForcedLogout(eventbus.ForcedLogoutPayload{Reason: reason})
	}
}

func (m *Manager) flushQueued(c Conn) {
	if m.flush == nil {
		return
	}

	frames, err := m.flush(context.Background())
	if err != nil {
		m.log.Warn().Err(err).Msg("draining offline queue failed")
		return
	}
	for _, f := range frames {
		if err := c.WriteFrame(f); err != nil {
			m.log.Warn().Err(err).Msg("offline flush interrupted")
			return
		}
	}
	if len(frames) > 0 {
		m.log.Info().Int("count", len(frames)).Msg("flushed offline notifications")
	}
}

// setState transitions the state machine and broadcasts synchronously
// to all state subscribers.
func (m *Manager) setState(s conn.State) {
	m.mu.Lock()
	if m.state == s {
		m.mu.Unlock()
		return
	}
	old := m.state
	m.state = s
	subs := make([]func(conn.State), 0, len(m.stateSubs))
	for _, fn := range m.stateSubs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	for _, fn := range subs {
		fn(s)
	}
	if m.bus != nil {
		m.bus.PublishConnectionStateChanged(eventbus.ConnectionStateChangedPayload{Old: old, New: s})
	}
}

func (m *Manager) fanOutConnect() {
	m.mu.Lock()
	subs := make([]func(), 0, len(m.connectSubs))
	for _, fn := range m.connectSubs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()
	for _, fn := range subs {
		fn()
	}
}

func (m *Manager) fanOutDisconnect() {
	m.mu.Lock()
	subs := make([]func(), 0, len(m.disconnectSubs))
	for _, fn := range m.disconnectSubs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()
	for _, fn := range subs {
		fn()
	}
}

func (m *Manager) fanOutNotification(n notify.Notification) {
	m.mu.Lock()
	subs := make([]NotificationHandler, 0, len(m.notifSubs))
	for _, fn := range m.notifSubs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()
	for _, fn := range subs {
		fn(n)
	}
}

// notificationPayload is the inbound event shape; every field except
// message is optional and defaulted.
type notificationPayload struct {
	ID        string    `json:"id,omitempty"`
	Message   string    `json:"message"`
	Type      string    `json:"type,omitempty"`
	Category  string    `json:"category,omitempty"`
	Title     string    `json:"title,omitempty"`
	Timestamp time.Time `json:"timestamp,omitempty"`
	IsRead    bool      `json:"isRead,omitempty"`
}

func decodeNotification(raw json.RawMessage, now time.Time) (notify.Notification, error) {
	var p notificationPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return notify.Notification{}, fmt.Errorf("decode notification payload: %w", err)
	}
	if p.Message == "" {
		return notify.Notification{}, errors.New("notification payload missing message")
	}

	n := notify.Notification{
		ID:        p.ID,
		Message:   p.Message,
		Type:      notify.Type(p.Type),
		Category:  notify.Category(p.Category),
		Title:     p.Title,
		Timestamp: p.Timestamp,
		Read:      p.IsRead,
	}
	// Server-pushed notifications default to the persistent panel.
	if n.Category == "" {
		n.Category = notify.CategoryApp
	}
	n.Normalize(now)
	return n, nil
}
