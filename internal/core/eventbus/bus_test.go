package eventbus_test

import (
	"testing"
	"time"

	"github.com/deskwire/pulse/internal/core/conn"
	"github.com/deskwire/pulse/internal/core/eventbus"
	"github.com/deskwire/pulse/internal/core/eventbus/testbus"
	"github.com/deskwire/pulse/internal/core/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_PublishDeliversToSubscriber(t *testing.T) {
	tb := testbus.New(t)

	tb.PublishConnectionStateChanged(eventbus.ConnectionStateChangedPayload{
		Old: conn.StateConnecting,
		New: conn.StateConnected,
	})
	tb.AssertPublished(t, eventbus.EventConnectionStateChanged)

	events := tb.Events()
	require.Len(t, events, 1)

	p, ok := events[0].Payload.(eventbus.ConnectionStateChangedPayload)
	require.True(t, ok)
	assert.Equal(t, conn.StateConnected, p.New)
}

func TestBus_SubscriberOnlySeesItsEvent(t *testing.T) {
	tb := testbus.New(t)

	logouts := make(chan eventbus.ForcedLogoutPayload, 2)
	tb.SubscribeForcedLogout(func(p eventbus.ForcedLogoutPayload) {
		logouts <- p
	})

	tb.PublishSessionExpired(eventbus.SessionExpiredPayload{})
	tb.PublishForcedLogout(eventbus.ForcedLogoutPayload{Reason: "refresh failed"})

	select {
	case p := <-logouts:
		assert.Equal(t, "refresh failed", p.Reason)
	case <-time.After(time.Second):
		t.Fatal("forced logout subscriber never ran")
	}
	assert.Empty(t, logouts)
}

func TestBus_DropHookFiresWhenBufferFull(t *testing.T) {
	// Bus is never started, so the single-slot buffer fills immediately.
	bus := eventbus.New(1)

	dropped := 0
	bus.OnDrop(func(eventbus.Event, any) { dropped++ })

	bus.PublishSessionExpired(eventbus.SessionExpiredPayload{})
	bus.PublishSessionExpired(eventbus.SessionExpiredPayload{})

	assert.Equal(t, 1, dropped)
}

func TestBus_PanickingSubscriberDoesNotStopDispatch(t *testing.T) {
	tb := testbus.New(t)

	var panicked eventbus.Event
	tb.OnPanic(func(event eventbus.Event, _ any, _ any) {
		panicked = event
	})

	tb.SubscribeNotificationPublished(func(eventbus.NotificationPublishedPayload) {
		panic("subscriber bug")
	})

	delivered := make(chan struct{}, 1)
	tb.SubscribeNotificationPublished(func(eventbus.NotificationPublishedPayload) {
		delivered <- struct{}{}
	})

	tb.PublishNotificationPublished(eventbus.NotificationPublishedPayload{
		Notification: notify.Notification{ID: "n1", Message: "hello"},
	})

	select {
	case <-delivered:
	case <-time.After(time.Second):
		t.Fatal("second subscriber never ran after first panicked")
	}
	assert.Equal(t, eventbus.EventNotificationPublished, panicked)
}
