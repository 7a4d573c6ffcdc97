// Package jsonfile persists the bounded notification cache as a JSON
// file, mirroring the single-keyed-record layout of the web client's
// local storage.
package jsonfile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/deskwire/pulse/internal/core/logging"
	"github.com/deskwire/pulse/internal/core/notify"
)

// cacheFile is the root JSON structure stored on disk.
type cacheFile struct {
	Notifications []notify.Notification `json:"notifications"`
}

// Store implements notify.Store using a JSON file for persistence.
//
// The cache is bounded: when a mutation pushes it past the cap, read
// records past their TTL are evicted first, then the oldest read
// records. Unread records are only dropped when the hard cap leaves no
// other choice, or during an emergency trim after a storage failure.
type Store struct {
	path       string
	outboxPath string
	maxEntries int
	readTTL    time.Duration

	mu    sync.RWMutex
	now   func() time.Time
	write func(path string, data []byte) error
	log   zerolog.Logger
}

var _ notify.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithWriter overrides the file writer, for simulating storage-quota
// failures in tests.
func WithWriter(write func(path string, data []byte) error) Option {
	return func(s *Store) { s.write = write }
}

// New creates a JSON file notification store under dir.
func New(dir string, maxEntries int, readTTL time.Duration, opts ...Option) *Store {
	s := &Store{
		path:       filepath.Join(dir, "notifications.json"),
		outboxPath: filepath.Join(dir, "notifications-outbox.json"),
		maxEntries: maxEntries,
		readTTL:    readTTL,
		now:        time.Now,
		write:      atomicWrite,
		log:        logging.Component("store"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns the cached notifications, newest first.
func (s *Store) List(ctx context.Context) ([]notify.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	file, err := s.load(s.path)
	if err != nil {
		return nil, err
	}

	notify.SortNewestFirst(file.Notifications)
	return file.Notifications, nil
}

// Upsert adds a notification or updates the record with the same ID in
// place. Re-adding an existing ID never duplicates.
func (s *Store) Upsert(ctx context.Context, n notify.Notification) error {
	return s.mutate(func(list []notify.Notification) []notify.Notification {
		for i, existing := range list {
			if existing.ID == n.ID {
				list[i] = n
				return list
			}
		}
		return append(list, n)
	})
}

// MarkRead flags a single notification as read.
func (s *Store) MarkRead(ctx context.Context, id string) error {
	found := false
	err := s.mutate(func(list []notify.Notification) []notify.Notification {
		for i := range list {
			if list[i].ID == id {
				list[i].Read = true
				found = true
			}
		}
		return list
	})
	if err != nil {
		return err
	}
	if !found {
		return notify.ErrNotFound
	}
	return nil
}

// MarkAllRead flags every notification as read.
func (s *Store) MarkAllRead(ctx context.Context) error {
	return s.mutate(func(list []notify.Notification) []notify.Notification {
		for i := range list {
			list[i].Read = true
		}
		return list
	})
}

// Remove deletes a single notification.
func (s *Store) Remove(ctx context.Context, id string) error {
	return s.mutate(func(list []notify.Notification) []notify.Notification {
		out := list[:0]
		for _, n := range list {
			if n.ID != id {
				out = append(out, n)
			}
		}
		return out
	})
}

// Clear deletes app-category notifications only. Colocated system
// records stay.
func (s *Store) Clear(ctx context.Context) error {
	return s.mutate(func(list []notify.Notification) []notify.Notification {
		out := list[:0]
		for _, n := range list {
			if n.Category != notify.CategoryApp {
				out = append(out, n)
			}
		}
		return out
	})
}

// Sync merges a server-fetched page into the cache. Merge is by ID with
// the server record winning; entries present only locally are preserved.
func (s *Store) Sync(ctx context.Context, serverList []notify.Notification) error {
	return s.mutate(func(list []notify.Notification) []notify.Notification {
		byID := make(map[string]int, len(list))
		for i, n := range list {
			byID[n.ID] = i
		}
		for _, sn := range serverList {
			if i, ok := byID[sn.ID]; ok {
				list[i] = sn
				continue
			}
			list = append(list, sn)
		}
		return list
	})
}

// mutate loads the cache, applies fn, trims to the cap, and saves.
func (s *Store) mutate(fn func([]notify.Notification) []notify.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.load(s.path)
	if err != nil {
		return err
	}

	file.Notifications = s.trim(fn(file.Notifications))
	return s.save(file)
}

// trim enforces the cap. Eviction order: read records past their TTL,
// then the oldest read records, and only then, when every survivor is
// unread, the oldest records regardless of read state (the cap is hard).
func (s *Store) trim(list []notify.Notification) []notify.Notification {
	if len(list) <= s.maxEntries {
		return list
	}

	now := s.now()
	notify.SortNewestFirst(list)

	list = evictOldestWhere(list, s.maxEntries, func(n notify.Notification) bool {
		return n.Read && now.Sub(n.Timestamp) > s.readTTL
	})
	list = evictOldestWhere(list, s.maxEntries, func(n notify.Notification) bool {
		return n.Read
	})
	if len(list) > s.maxEntries {
		list = list[:s.maxEntries]
	}
	return list
}

// evictOldestWhere removes matching entries starting from the oldest
// (tail of a newest-first list) until the list fits max.
func evictOldestWhere(list []notify.Notification, max int, match func(notify.Notification) bool) []notify.Notification {
	for i := len(list) - 1; i >= 0 && len(list) > max; i-- {
		if match(list[i]) {
			list = append(list[:i], list[i+1:]...)
		}
	}
	return list
}

// emergencyTrim keeps only the newest half of the cap, regardless of
// read state. Used when a write fails for lack of space.
func (s *Store) emergencyTrim(list []notify.Notification) []notify.Notification {
	notify.SortNewestFirst(list)
	keep := s.maxEntries / 2
	if len(list) > keep {
		list = list[:keep]
	}
	return list
}

// load reads a cache file from disk. A missing or empty file is an
// empty cache, not an error.
func (s *Store) load(path string) (cacheFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cacheFile{}, nil
		}
		return cacheFile{}, fmt.Errorf("read notification cache: %w", err)
	}

	if len(data) == 0 {
		return cacheFile{}, nil
	}

	var file cacheFile
	if err := json.Unmarshal(data, &file); err != nil {
		return cacheFile{}, fmt.Errorf("parse notification cache: %w", err)
	}

	return file, nil
}

// save writes the cache. A failed write triggers one emergency trim and
// retry; a second failure is logged and swallowed. Losing this cache is
// preferable to blocking the notification pipeline.
func (s *Store) save(file cacheFile) error {
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("encode notification cache: %w", err)
	}

	writeErr := s.write(s.path, data)
	if writeErr == nil {
		return nil
	}
	s.log.Warn().Err(writeErr).Msg("cache write failed, retrying after emergency trim")

	file.Notifications = s.emergencyTrim(file.Notifications)
	data, err = json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("encode notification cache: %w", err)
	}

	if err := s.write(s.path, data); err != nil {
		s.log.Error().Err(err).Msg("cache write failed after trim, accepting data loss")
	}
	return nil
}

// atomicWrite writes data to path via a temp file and rename.
func atomicWrite(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
