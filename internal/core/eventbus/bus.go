package eventbus

import (
	"context"
	"sync"
)

// envelope pairs an event name with its payload for transport through
// the bus channel.
type envelope struct {
	event   Event
	payload any
}

// EventBus dispatches typed events to subscribers from a single
// dispatch goroutine. Publishing is non-blocking: events are dropped
// (and the drop hook fired) when the buffer is full.
type EventBus struct {
	ch    chan envelope
	hooks hooks

	mu   sync.RWMutex
	subs map[Event][]func(any)
}

// New creates an event bus with the given channel buffer size.
// Start must be called before published events are delivered.
func New(buffer int) *EventBus {
	return &EventBus{
		ch:   make(chan envelope, buffer),
		subs: make(map[Event][]func(any)),
	}
}

// Start runs the dispatch loop until ctx is cancelled. Subscribers run
// inline on the dispatch goroutine; panics are recovered and reported
// through the panic hook.
func (bus *EventBus) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case env := <-bus.ch:
			bus.dispatch(env)
		}
	}
}

func (bus *EventBus) dispatch(env envelope) {
	bus.mu.RLock()
	subs := make([]func(any), len(bus.subs[env.event]))
	copy(subs, bus.subs[env.event])
	bus.mu.RUnlock()

	for _, fn := range subs {
		bus.invoke(env, fn)
	}
}

func (bus *EventBus) invoke(env envelope, fn func(any)) {
	defer func() {
		if recovered := recover(); recovered != nil {
			bus.runOnPanic(env.event, env.payload, recovered)
		}
	}()
	fn(env.payload)
}

func (bus *EventBus) subscribe(event Event, fn func(any)) {
	bus.mu.Lock()
	bus.subs[event] = append(bus.subs[event], fn)
	bus.mu.Unlock()
	bus.runOnSubscribe(event)
}

// PublishConnectionStateChanged publishes a connection.state-changed event.
func (bus *EventBus) PublishConnectionStateChanged(p ConnectionStateChangedPayload) {
	bus.send(EventConnectionStateChanged, p)
}

// SubscribeConnectionStateChanged registers a subscriber for connection.state-changed.
func (bus *EventBus) SubscribeConnectionStateChanged(fn func(ConnectionStateChangedPayload)) {
	bus.subscribe(EventConnectionStateChanged, func(v any) {
		if p, ok := v.(ConnectionStateChangedPayload); ok {
			fn(p)
		}
	})
}

// PublishReconnectsExhausted publishes a connection.reconnects-exhausted event.
func (bus *EventBus) PublishReconnectsExhausted(p ReconnectsExhaustedPayload) {
	bus.send(EventReconnectsExhausted, p)
}

// SubscribeReconnectsExhausted registers a subscriber for connection.reconnects-exhausted.
func (bus *EventBus) SubscribeReconnectsExhausted(fn func(ReconnectsExhaustedPayload)) {
	bus.subscribe(EventReconnectsExhausted, func(v any) {
		if p, ok := v.(ReconnectsExhaustedPayload); ok {
			fn(p)
		}
	})
}

// PublishSessionExpired publishes a session.expired event.
func (bus *EventBus) PublishSessionExpired(p SessionExpiredPayload) {
	bus.send(EventSessionExpired, p)
}

// SubscribeSessionExpired registers a subscriber for session.expired.
func (bus *EventBus) SubscribeSessionExpired(fn func(SessionExpiredPayload)) {
	bus.subscribe(EventSessionExpired, func(v any) {
		if p, ok := v.(SessionExpiredPayload); ok {
			fn(p)
		}
	})
}

// PublishSessionRefreshed publishes a session.refreshed event.
func (bus *EventBus) PublishSessionRefreshed(p SessionRefreshedPayload) {
	bus.send(EventSessionRefreshed, p)
}

// SubscribeSessionRefreshed registers a subscriber for session.refreshed.
func (bus *EventBus) SubscribeSessionRefreshed(fn func(SessionRefreshedPayload)) {
	bus.subscribe(EventSessionRefreshed, func(v any) {
		if p, ok := v.(SessionRefreshedPayload); ok {
			fn(p)
		}
	})
}

// PublishForcedLogout publishes an auth.forced-logout event.
func (bus *EventBus) PublishForcedLogout(p ForcedLogoutPayload) {
	bus.send(EventForcedLogout, p)
}

// SubscribeForcedLogout registers a subscriber for auth.forced-logout.
func (bus *EventBus) SubscribeForcedLogout(fn func(ForcedLogoutPayload)) {
	bus.subscribe(EventForcedLogout, func(v any) {
		if p, ok := v.(ForcedLogoutPayload); ok {
			fn(p)
		}
	})
}

// PublishNotificationPublished publishes a notification.published event.
func (bus *EventBus) PublishNotificationPublished(p NotificationPublishedPayload) {
	bus.send(EventNotificationPublished, p)
}

// SubscribeNotificationPublished registers a subscriber for notification.published.
func (bus *EventBus) SubscribeNotificationPublished(fn func(NotificationPublishedPayload)) {
	bus.subscribe(EventNotificationPublished, func(v any) {
		if p, ok := v.(NotificationPublishedPayload); ok {
			fn(p)
		}
	})
}

// PublishNavigationChanged publishes a navigation.changed event.
func (bus *EventBus) PublishNavigationChanged(p NavigationChangedPayload) {
	bus.send(EventNavigationChanged, p)
}

// SubscribeNavigationChanged registers a subscriber for navigation.changed.
func (bus *EventBus) SubscribeNavigationChanged(fn func(NavigationChangedPayload)) {
	bus.subscribe(EventNavigationChanged, func(v any) {
		if p, ok := v.(NavigationChangedPayload); ok {
			fn(p)
		}
	})
}
