package dedup

import (
	"fmt"
	"time"

	"github.com/deskwire/pulse/internal/core/notify"
	"github.com/deskwire/pulse/pkg/kv"
)

// Status classifies the filter's decision for one notification.
type Status int

const (
	// Accepted means the notification is new and should be delivered as-is.
	Accepted Status = iota
	// Suppressed means an identical fingerprint was accepted within the
	// dedup window; the prior record is returned instead.
	Suppressed
	// Collapsed means a rapid identical repeat was folded into the prior
	// record, whose message now carries a repeat counter.
	Collapsed
)

// Outcome is the filter's decision plus the notification to act on.
// For Suppressed it is the previously accepted record; for Collapsed it
// is the prior record with an updated " (N)" message, keeping its ID so
// an upsert replaces rather than duplicates.
type Outcome struct {
	Notification notify.Notification
	Status       Status
}

// entry is the per-fingerprint bookkeeping record.
type entry struct {
	record  notify.Notification
	base    string // message without the counter suffix
	count   int
	lastHit time.Time
}

// Filter tracks recent fingerprints and decides accept / suppress /
// collapse. Bookkeeping is time-bounded: entries older than purgeAfter
// are dropped on every call.
type Filter struct {
	window     time.Duration
	throttle   time.Duration
	purgeAfter time.Duration

	entries *kv.Store[string, entry]
	now     func() time.Time
}

// Option configures a Filter.
type Option func(*Filter)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(f *Filter) { f.now = now }
}

// New creates a filter. window is the suppression interval for repeated
// fingerprints, throttle the collapse interval for rapid identical
// repeats, purgeAfter the bookkeeping retention bound.
func New(window, throttle, purgeAfter time.Duration, opts ...Option) *Filter {
	f := &Filter{
		window:     window,
		throttle:   throttle,
		purgeAfter: purgeAfter,
		entries:    kv.New[string, entry](),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Apply runs the filter for one notification and records the outcome in
// the fingerprint map.
func (f *Filter) Apply(n notify.Notification) Outcome {
	now := f.now()
	f.purge(now)

	fp := Fingerprint(n)
	prior, seen := f.entries.Get(fp)

	if seen {
		elapsed := now.Sub(prior.lastHit)

		if elapsed <= f.throttle {
			prior.count++
			prior.record.Message = fmt.Sprintf("%s (%d)", prior.base, prior.count)
			prior.lastHit = now
			f.entries.Set(fp, prior)
			return Outcome{Notification: prior.record, Status: Collapsed}
		}

		if elapsed <= f.window {
			return Outcome{Notification: prior.record, Status: Suppressed}
		}
	}

	f.entries.Set(fp, entry{
		record:  n,
		base:    n.Message,
		count:   1,
		lastHit: now,
	})
	return Outcome{Notification: n, Status: Accepted}
}

// Len returns the number of tracked fingerprints.
func (f *Filter) Len() int {
	return f.entries.Len()
}

func (f *Filter) purge(now time.Time) {
	f.entries.DeleteFunc(func(_ string, e entry) bool {
		return now.Sub(e.lastHit) > f.purgeAfter
	})
}
