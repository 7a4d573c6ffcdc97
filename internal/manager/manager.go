// Package manager is the single entry point for publishing
// notifications. It classifies, deduplicates, persists, and fans out to
// display consumers, buffering everything published before a display is
// ready.
package manager

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/deskwire/pulse/internal/core/eventbus"
	"github.com/deskwire/pulse/internal/core/logging"
	"github.com/deskwire/pulse/internal/core/notify"
	"github.com/deskwire/pulse/internal/dedup"
)

// pendingCap bounds the pre-ready buffer; beyond it the oldest queued
// notification is dropped.
const pendingCap = 100

// defaultToastDuration is stamped on notifications built by the
// convenience constructors. A zero duration pins the toast on screen,
// so only notifications that never carried one get the default.
const defaultToastDuration = 5 * time.Second

// ToastHandler receives notifications that should surface as toasts.
type ToastHandler func(notify.Notification)

// Manager routes every notification through classification, the dedup
// filter, write-through persistence for the app category, and toast
// fan-out.
type Manager struct {
	store         notify.Store
	filter        *dedup.Filter
	bus           *eventbus.EventBus
	classify      Classifier
	log           zerolog.Logger
	now           func() time.Time
	toastDuration time.Duration

	mu        sync.Mutex
	ready     bool
	pending   []notify.Notification
	nextSubID int
	toastSubs map[int]ToastHandler
}

// Option configures a Manager.
type Option func(*Manager)

// WithBus publishes every accepted notification on the event bus.
func WithBus(bus *eventbus.EventBus) Option {
	return func(m *Manager) { m.bus = bus }
}

// WithClassifier replaces the default routing heuristic.
func WithClassifier(c Classifier) Option {
	return func(m *Manager) { m.classify = c }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithToastDuration sets the auto-dismiss interval the convenience
// constructors stamp on their notifications.
func WithToastDuration(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.toastDuration = d
		}
	}
}

// New creates a manager. Toasts are buffered until SetReady is called.
func New(store notify.Store, filter *dedup.Filter, opts ...Option) *Manager {
	m := &Manager{
		store:         store,
		filter:        filter,
		classify:      DefaultClassifier,
		log:           logging.Component("manager"),
		now:           time.Now,
		toastDuration: defaultToastDuration,
		toastSubs:     make(map[int]ToastHandler),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Publish runs one notification through the pipeline. Suppressed
// duplicates are dropped silently; everything else is persisted when
// app-category and fanned out as a toast when unread. Persistence
// failures are logged, never fatal: the toast still shows.
func (m *Manager) Publish(ctx context.Context, n notify.Notification) {
	n.Category = m.classify(n)
	n.Normalize(m.now())

	out := m.filter.Apply(n)
	if out.Status == dedup.Suppressed {
		m.log.Debug().Str("message", n.Message).Msg("suppressing duplicate notification")
		return
	}
	n = out.Notification

	if m.bus != nil {
		m.bus.PublishNotificationPublished(eventbus.NotificationPublishedPayload{Notification: n})
	}

	if n.Persistent() {
		if err := m.store.Upsert(ctx, n); err != nil {
			m.log.Warn().Err(err).Str("id", n.ID).Msg("persisting notification failed")
		}
	}

	// Collapsed repeats replace the toast already on screen; read
	// notifications are panel-only and never toast.
	if !n.Read {
		m.deliver(n)
	}
}

// Success publishes an app-category success notification.
func (m *Manager) Success(ctx context.Context, message string) {
	m.Publish(ctx, notify.Notification{Message: message, Type: notify.TypeSuccess, Category: notify.CategoryApp, Duration: m.toastDuration})
}

// Error publishes an app-category error notification.
func (m *Manager) Error(ctx context.Context, message string) {
	m.Publish(ctx, notify.Notification{Message: message, Type: notify.TypeError, Category: notify.CategoryApp, Duration: m.toastDuration})
}

// Info publishes an app-category info notification.
func (m *Manager) Info(ctx context.Context, message string) {
	m.Publish(ctx, notify.Notification{Message: message, Type: notify.TypeInfo, Category: notify.CategoryApp, Duration: m.toastDuration})
}

// Warning publishes an app-category warning notification.
func (m *Manager) Warning(ctx context.Context, message string) {
	m.Publish(ctx, notify.Notification{Message: message, Type: notify.TypeWarning, Category: notify.CategoryApp, Duration: m.toastDuration})
}

// System publishes a transient system notification that bypasses the
// panel store.
func (m *Manager) System(ctx context.Context, message string, typ notify.Type) {
	m.Publish(ctx, notify.Notification{Message: message, Type: typ, Category: notify.CategorySystem, Duration: m.toastDuration})
}

// OnToast registers a toast consumer. Returns an unsubscribe function.
func (m *Manager) OnToast(fn ToastHandler) func() {
	m.mu.Lock()
	id := m.nextSubID
	m.nextSubID++
	m.toastSubs[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.toastSubs, id)
		m.mu.Unlock()
	}
}

// SetReady marks a display as attached and replays everything published
// beforehand, in publish order.
func (m *Manager) SetReady() {
	m.mu.Lock()
	m.ready = true
	queued := m.pending
	m.pending = nil
	subs := m.toastSubsLocked()
	m.mu.Unlock()

	if len(queued) > 0 {
		m.log.Debug().Int("count", len(queued)).Msg("replaying buffered notifications")
	}
	for _, n := range queued {
		for _, fn := range subs {
			fn(n)
		}
	}
}

// Ready reports whether a display has attached.
func (m *Manager) Ready() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ready
}

func (m *Manager) deliver(n notify.Notification) {
	m.mu.Lock()
	if !m.ready {
		m.pending = append(m.pending, n)
		if len(m.pending) > pendingCap {
			m.pending = m.pending[1:]
		}
		m.mu.Unlock()
		return
	}
	subs := m.toastSubsLocked()
	m.mu.Unlock()

	for _, fn := range subs {
		fn(n)
	}
}

func (m *Manager) toastSubsLocked() []ToastHandler {
	subs := make([]ToastHandler, 0, len(m.toastSubs))
	for _, fn := range m.toastSubs {
		subs = append(subs, fn)
	}
	return subs
}
