// Package eventbus provides a typed publish/subscribe event bus for
// cross-component communication within pulse.
package eventbus

import (
	"github.com/deskwire/pulse/internal/core/conn"
	"github.com/deskwire/pulse/internal/core/notify"
)

// Event names every bus event. Payload types are fixed per event.
type Event string

const (
	// Keep list sorted A-Z
	EventConnectionStateChanged Event = "connection.state-changed"
	EventForcedLogout           Event = "auth.forced-logout"
	EventNavigationChanged      Event = "navigation.changed"
	EventNotificationPublished  Event = "notification.published"
	EventReconnectsExhausted    Event = "connection.reconnects-exhausted"
	EventSessionExpired         Event = "session.expired"
	EventSessionRefreshed       Event = "session.refreshed"
)

// ConnectionStateChangedPayload is emitted on every socket state transition.
type ConnectionStateChangedPayload struct {
	Old conn.State
	New conn.State
}

// ReconnectsExhaustedPayload is emitted when the socket manager gives up
// reconnecting after the configured maximum attempts.
type ReconnectsExhaustedPayload struct {
	Attempts int
	LastErr  error
}

// SessionExpiredPayload is emitted when the server signals an expired
// credential, before the silent refresh attempt.
type SessionExpiredPayload struct{}

// SessionRefreshedPayload is emitted after a successful silent token refresh.
type SessionRefreshedPayload struct{}

// ForcedLogoutPayload is emitted when the silent refresh fails and the
// host application must end the session.
type ForcedLogoutPayload struct {
	Reason string
}

// NotificationPublishedPayload is emitted for every notification that
// clears deduplication and enters the pipeline.
type NotificationPublishedPayload struct {
	Notification notify.Notification
}

// NavigationChangedPayload is emitted by the host on route transitions
// so the socket manager can debounce reconnection storms.
type NavigationChangedPayload struct {
	Route string
}
