package notify_test

import (
	"testing"
	"time"

	"github.com/deskwire/pulse/internal/core/notify"
	"github.com/stretchr/testify/assert"
)

func TestNormalize_Defaults(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

	n := notify.Notification{Message: "ticket updated"}
	n.Normalize(now)

	assert.NotEmpty(t, n.ID)
	assert.Equal(t, notify.TypeInfo, n.Type)
	assert.Equal(t, notify.CategorySystem, n.Category)
	assert.Equal(t, now, n.Timestamp)
}

func TestNormalize_KeepsExplicitFields(t *testing.T) {
	now := time.Now()
	ts := now.Add(-time.Hour)

	n := notify.Notification{
		ID:        "n1",
		Message:   "assigned to you",
		Type:      notify.TypeSuccess,
		Category:  notify.CategoryApp,
		Timestamp: ts,
	}
	n.Normalize(now)

	assert.Equal(t, "n1", n.ID)
	assert.Equal(t, notify.TypeSuccess, n.Type)
	assert.Equal(t, notify.CategoryApp, n.Category)
	assert.Equal(t, ts, n.Timestamp)
}

func TestSortNewestFirst(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	list := []notify.Notification{
		{ID: "a", Timestamp: base},
		{ID: "b", Timestamp: base.Add(2 * time.Minute)},
		{ID: "c", Timestamp: base.Add(time.Minute)},
	}
	notify.SortNewestFirst(list)

	assert.Equal(t, "b", list[0].ID)
	assert.Equal(t, "c", list[1].ID)
	assert.Equal(t, "a", list[2].ID)
}

func TestSortNewestFirst_TiesKeepInsertionOrder(t *testing.T) {
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	list := []notify.Notification{
		{ID: "first", Timestamp: ts},
		{ID: "second", Timestamp: ts},
		{ID: "third", Timestamp: ts},
	}
	notify.SortNewestFirst(list)

	assert.Equal(t, []string{"first", "second", "third"}, []string{list[0].ID, list[1].ID, list[2].ID})
}

func TestUnreadCount_OnlyAppCategory(t *testing.T) {
	list := []notify.Notification{
		{ID: "1", Category: notify.CategoryApp, Read: false},
		{ID: "2", Category: notify.CategoryApp, Read: true},
		{ID: "3", Category: notify.CategorySystem, Read: false},
		{ID: "4", Category: notify.CategoryApp, Read: false},
	}

	assert.Equal(t, 2, notify.UnreadCount(list))
}
