// Package state holds the in-memory notification list the UI renders.
// Mutations apply optimistically: the local view and cache change
// first, the server call follows, and a server failure is logged
// rather than rolled back.
package state

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/deskwire/pulse/internal/core/logging"
	"github.com/deskwire/pulse/internal/core/notify"
	"github.com/deskwire/pulse/internal/rest"
)

// API is the server boundary the holder talks to. *rest.Client
// satisfies it.
type API interface {
	List(ctx context.Context, opts rest.ListOptions) ([]notify.Notification, error)
	Create(ctx context.Context, n notify.Notification) error
	MarkRead(ctx context.Context, id string) error
	MarkAllRead(ctx context.Context) error
	Delete(ctx context.Context, id string) error
	Clear(ctx context.Context) error
}

// Notifier surfaces pipeline-level notifications, used for the single
// connection-error notice when a fetch falls back to the local cache.
// *manager.Manager satisfies it.
type Notifier interface {
	System(ctx context.Context, message string, typ notify.Type)
}

// Holder owns the UI's copy of the notification list.
type Holder struct {
	api      API
	store    notify.Store
	notifier Notifier
	log      zerolog.Logger

	mu        sync.Mutex
	items     []notify.Notification
	offline   bool
	announced bool // connection-error notice shown for this offline episode
	nextSubID int
	subs      map[int]func()
}

// Option configures a Holder.
type Option func(*Holder)

// WithNotifier enables the offline connection-error notice.
func WithNotifier(n Notifier) Option {
	return func(h *Holder) { h.notifier = n }
}

// New creates a holder with an empty list. Call Fetch to populate it.
func New(api API, store notify.Store, opts ...Option) *Holder {
	h := &Holder{
		api:   api,
		store: store,
		log:   logging.Component("state"),
		subs:  make(map[int]func()),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Items returns a snapshot of the current list, newest first.
func (h *Holder) Items() []notify.Notification {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]notify.Notification, len(h.items))
	copy(out, h.items)
	return out
}

// UnreadCount returns the badge count over the current list.
func (h *Holder) UnreadCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return notify.UnreadCount(h.items)
}

// Offline reports whether the last fetch fell back to the local cache.
func (h *Holder) Offline() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.offline
}

// OnChange registers a listener invoked after every list mutation.
// Returns an unsubscribe function.
func (h *Holder) OnChange(fn func()) func() {
	h.mu.Lock()
	id := h.nextSubID
	h.nextSubID++
	h.subs[id] = fn
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		delete(h.subs, id)
		h.mu.Unlock()
	}
}

// Fetch loads the list from the server and merges it into the cache,
// server winning per ID while locally-known extras survive. When the
// server is unreachable the cached list is served instead, and one
// system connection-error notice is raised per offline episode.
func (h *Holder) Fetch(ctx context.Context, opts rest.ListOptions) error {
	serverList, err := h.api.List(ctx, opts)
	if err != nil {
		h.log.Warn().Err(err).Msg("fetch failed, serving cached notifications")
		return h.fallback(ctx)
	}

	if err := h.store.Sync(ctx, serverList); err != nil {
		h.log.Warn().Err(err).Msg("merging server notifications into cache failed")
	}

	merged, err := h.store.List(ctx)
	if err != nil {
		return err
	}

	h.mu.Lock()
	h.items = merged
	h.offline = false
	h.announced = false
	h.mu.Unlock()

	h.notifyChanged()
	return nil
}

func (h *Holder) fallback(ctx context.Context) error {
	cached, err := h.store.List(ctx)
	if err != nil {
		return err
	}

	h.mu.Lock()
	h.items = cached
	h.offline = true
	announce := !h.announced && h.notifier != nil
	h.announced = true
	h.mu.Unlock()

	h.notifyChanged()
	if announce {
		h.notifier.System(ctx, "Connection Error", notify.TypeError)
	}
	return nil
}

// Add inserts a notification optimistically and posts it to the server.
func (h *Holder) Add(ctx context.Context, n notify.Notification) {
	if err := h.store.Upsert(ctx, n); err != nil {
		h.log.Warn().Err(err).Str("id", n.ID).Msg("caching notification failed")
	}
	h.reload(ctx)

	if err := h.api.Create(ctx, n); err != nil {
		h.log.Warn().Err(err).Str("id", n.ID).Msg("server create failed, keeping local copy")
	}
}

// MarkRead flags one notification read, locally first.
func (h *Holder) MarkRead(ctx context.Context, id string) {
	h.apply(func(n *notify.Notification) bool {
		if n.ID != id || n.Read {
			return false
		}
		n.Read = true
		return true
	})

	if err := h.store.MarkRead(ctx, id); err != nil {
		h.log.Debug().Err(err).Str("id", id).Msg("cache mark-read miss")
	}
	if err := h.api.MarkRead(ctx, id); err != nil {
		h.log.Warn().Err(err).Str("id", id).Msg("server mark-read failed, keeping local state")
	}
}

// MarkAllRead flags everything read, locally first.
func (h *Holder) MarkAllRead(ctx context.Context) {
	h.apply(func(n *notify.Notification) bool {
		if n.Read {
			return false
		}
		n.Read = true
		return true
	})

	if err := h.store.MarkAllRead(ctx); err != nil {
		h.log.Warn().Err(err).Msg("cache mark-all-read failed")
	}
	if err := h.api.MarkAllRead(ctx); err != nil {
		h.log.Warn().Err(err).Msg("server mark-all-read failed, keeping local state")
	}
}

// Remove deletes one notification, locally first.
func (h *Holder) Remove(ctx context.Context, id string) {
	h.mu.Lock()
	kept := h.items[:0]
	for _, n := range h.items {
		if n.ID != id {
			kept = append(kept, n)
		}
	}
	h.items = kept
	h.mu.Unlock()
	h.notifyChanged()

	if err := h.store.Remove(ctx, id); err != nil {
		h.log.Debug().Err(err).Str("id", id).Msg("cache remove miss")
	}
	if err := h.api.Delete(ctx, id); err != nil {
		h.log.Warn().Err(err).Str("id", id).Msg("server delete failed, keeping local state")
	}
}

// Clear empties the panel, locally first. System records in the cache
// survive, matching the cache's clear semantics.
func (h *Holder) Clear(ctx context.Context) {
	h.mu.Lock()
	kept := h.items[:0]
	for _, n := range h.items {
		if !n.Persistent() {
			kept = append(kept, n)
		}
	}
	h.items = kept
	h.mu.Unlock()
	h.notifyChanged()

	if err := h.store.Clear(ctx); err != nil {
		h.log.Warn().Err(err).Msg("cache clear failed")
	}
	if err := h.api.Clear(ctx); err != nil {
		h.log.Warn().Err(err).Msg("server clear failed, keeping local state")
	}
}

// Accept folds one freshly delivered notification into the list,
// keeping newest-first order. Used by the live socket path.
func (h *Holder) Accept(n notify.Notification) {
	h.mu.Lock()
	replaced := false
	for i := range h.items {
		if h.items[i].ID == n.ID {
			h.items[i] = n
			replaced = true
			break
		}
	}
	if !replaced {
		h.items = append(h.items, n)
	}
	notify.SortNewestFirst(h.items)
	h.mu.Unlock()
	h.notifyChanged()
}

// apply runs a mutation over every item and fires the change listeners
// when anything changed.
func (h *Holder) apply(mutate func(*notify.Notification) bool) {
	h.mu.Lock()
	changed := false
	for i := range h.items {
		if mutate(&h.items[i]) {
			changed = true
		}
	}
	h.mu.Unlock()
	if changed {
		h.notifyChanged()
	}
}

func (h *Holder) reload(ctx context.Context) {
	list, err := h.store.List(ctx)
	if err != nil {
		h.log.Warn().Err(err).Msg("reloading cache failed")
		return
	}
	h.mu.Lock()
	h.items = list
	h.mu.Unlock()
	h.notifyChanged()
}

func (h *Holder) notifyChanged() {
	h.mu.Lock()
	subs := make([]func(), 0, len(h.subs))
	for _, fn := range h.subs {
		subs = append(subs, fn)
	}
	h.mu.Unlock()
	for _, fn := range subs {
		fn()
	}
}
