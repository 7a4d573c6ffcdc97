// Package notify defines the notification model shared by every layer
// of the delivery pipeline.
package notify

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Type represents the severity of a notification. It affects icon and
// color selection, never routing.
type Type string

const (
	TypeSuccess Type = "success"
	TypeError   Type = "error"
	TypeInfo    Type = "info"
	TypeWarning Type = "warning"
)

// Category decides where a notification lives. App notifications are
// persistent: they belong in the notification panel and survive a
// restart. System notifications are transient toast-only echoes.
type Category string

const (
	CategoryApp    Category = "app"
	CategorySystem Category = "system"
)

// ErrNotFound is returned by stores when no notification matches an ID.
var ErrNotFound = errors.New("notification not found")

// Notification is the central entity of the pipeline.
//
// ID is server-assigned for persistent notifications and
// client-generated for transient ones. Category is fixed at
// classification time and never changes afterward.
type Notification struct {
	ID        string        `json:"id"`
	Message   string        `json:"message"`
	Type      Type          `json:"type"`
	Category  Category      `json:"category"`
	Title     string        `json:"title,omitempty"`
	Duration  time.Duration `json:"duration"`
	Timestamp time.Time     `json:"timestamp"`
	Read      bool          `json:"isRead"`
}

// NewID returns a fresh client-side notification ID.
func NewID() string {
	return uuid.NewString()
}

// Normalize fills defaulted fields in place: missing IDs get a client
// ID, missing types default to info, missing timestamps to now.
func (n *Notification) Normalize(now time.Time) {
	if n.ID == "" {
		n.ID = NewID()
	}
	if n.Type == "" {
		n.Type = TypeInfo
	}
	if n.Category == "" {
		n.Category = CategorySystem
	}
	if n.Timestamp.IsZero() {
		n.Timestamp = now
	}
}

// Persistent reports whether the notification belongs in the durable
// panel store.
func (n Notification) Persistent() bool {
	return n.Category == CategoryApp
}

// SortNewestFirst orders notifications newest-timestamp-first in place.
// Ties keep their existing relative order so insertion order breaks them.
func SortNewestFirst(list []Notification) {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].Timestamp.After(list[j].Timestamp)
	})
}

// UnreadCount counts unread app-category notifications. System
// notifications never contribute to the badge.
func UnreadCount(list []Notification) int {
	count := 0
	for _, n := range list {
		if n.Category == CategoryApp && !n.Read {
			count++
		}
	}
	return count
}

// Store is the durable cache of persistent notifications. It survives
// restarts and is the source of truth while offline.
type Store interface {
	// List returns the cached notifications, newest first.
	List(ctx context.Context) ([]Notification, error)
	// Upsert adds a notification or updates the record with the same ID
	// in place. The store never holds two records with one ID.
	Upsert(ctx context.Context, n Notification) error
	// MarkRead flags a single notification as read.
	MarkRead(ctx context.Context, id string) error
	// MarkAllRead flags every notification as read.
	MarkAllRead(ctx context.Context) error
	// Remove deletes a single notification.
	Remove(ctx context.Context, id string) error
	// Clear deletes app-category notifications only; colocated system
	// records are preserved.
	Clear(ctx context.Context) error
	// Sync merges a server-fetched page into the cache by ID. Entries
	// present only locally are preserved, not discarded.
	Sync(ctx context.Context, serverList []Notification) error
}
