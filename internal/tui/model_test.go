package tui

import (
	"context"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deskwire/pulse/internal/core/conn"
	"github.com/deskwire/pulse/internal/core/notify"
	"github.com/deskwire/pulse/internal/rest"
	"github.com/deskwire/pulse/internal/state"
	"github.com/deskwire/pulse/internal/store/jsonfile"
	"github.com/deskwire/pulse/pkg/tuitest"
)

type noopAPI struct{}

func (noopAPI) List(context.Context, rest.ListOptions) ([]notify.Notification, error) {
	return nil, nil
}
func (noopAPI) Create(context.Context, notify.Notification) error { return nil }
func (noopAPI) MarkRead(context.Context, string) error            { return nil }
func (noopAPI) MarkAllRead(context.Context) error                 { return nil }
func (noopAPI) Delete(context.Context, string) error              { return nil }
func (noopAPI) Clear(context.Context) error                       { return nil }

func newTestModel(t *testing.T, seed ...notify.Notification) (*Model, *state.Holder) {
	t.Helper()

	store := jsonfile.New(t.TempDir(), 100, 7*24*time.Hour)
	holder := state.New(noopAPI{}, store)
	for _, n := range seed {
		holder.Accept(n)
	}

	m := NewModel(holder, NewToastController(0))
	m.Update(tuitest.WindowSize(80, 24))
	return m, holder
}

func feedItem(id, message string, ts time.Time) notify.Notification {
	return notify.Notification{
		ID:        id,
		Message:   message,
		Type:      notify.TypeInfo,
		Category:  notify.CategoryApp,
		Timestamp: ts,
	}
}

func TestModel_RendersNotifications(t *testing.T) {
	base := time.Now().Add(-time.Hour)
	m, _ := newTestModel(t,
		feedItem("n1", "ticket #42 assigned", base),
		feedItem("n2", "new reply on #7", base.Add(time.Minute)),
	)

	view := tuitest.StripANSI(m.View())

	assert.Contains(t, view, "Notifications")
	assert.Contains(t, view, "ticket #42 assigned")
	assert.Contains(t, view, "new reply on #7")
	assert.Contains(t, view, "2", "unread badge shows both items")
}

func TestModel_EmptyState(t *testing.T) {
	m, _ := newTestModel(t)

	view := tuitest.StripANSI(m.View())
	assert.Contains(t, view, "No notifications")
}

func TestModel_MarkReadClearsBadge(t *testing.T) {
	m, holder := newTestModel(t, feedItem("n1", "only item", time.Now()))
	require.Equal(t, 1, holder.UnreadCount())

	m.Update(tuitest.KeyEnter())

	assert.Zero(t, holder.UnreadCount())
}

func TestModel_DeleteRemovesSelected(t *testing.T) {
	base := time.Now().Add(-time.Hour)
	m, holder := newTestModel(t,
		feedItem("n1", "older", base),
		feedItem("n2", "newer", base.Add(time.Minute)),
	)

	// Cursor starts on the newest row.
	m.Update(tuitest.KeyPress('d'))

	items := holder.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "n1", items[0].ID)
}

func TestModel_ToastLifecycle(t *testing.T) {
	m, _ := newTestModel(t)

	_, cmd := m.Update(ToastMsg{Notification: notify.Notification{
		ID:      "t1",
		Type:    notify.TypeSuccess,
		Message: "saved",
	}})
	require.NotNil(t, cmd, "first toast starts the tick loop")

	view := tuitest.StripANSI(m.View())
	assert.Contains(t, view, "saved")

	m.Update(tuitest.KeyEsc())
	assert.NotContains(t, tuitest.StripANSI(m.View()), "saved")
}

func TestModel_ConnectionStatus(t *testing.T) {
	m, _ := newTestModel(t)

	assert.Contains(t, tuitest.StripANSI(m.View()), "offline")

	m.Update(StateMsg{State: conn.StateConnected})
	assert.Contains(t, tuitest.StripANSI(m.View()), "live")

	m.Update(StateMsg{State: conn.StateReconnecting})
	assert.Contains(t, tuitest.StripANSI(m.View()), "reconnecting")
}

func TestModel_QuitKey(t *testing.T) {
	m, _ := newTestModel(t)

	_, cmd := m.Update(tuitest.KeyPress('q'))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}
