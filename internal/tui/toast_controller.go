// Package tui renders the live notification feed: a panel backed by
// the UI state holder with a toast stack for fresh arrivals.
package tui

import (
	"time"

	"github.com/deskwire/pulse/internal/core/notify"
)

const (
	defaultMaxToasts  = 5
	toastTickInterval = 100 * time.Millisecond
	toastWidth        = 50
)

type toast struct {
	notification notify.Notification
	remaining    time.Duration
	pinned       bool
}

func newToast(n notify.Notification) toast {
	// A notification without a positive duration stays on screen until
	// explicitly dismissed.
	return toast{
		notification: n,
		remaining:    n.Duration,
		pinned:       n.Duration <= 0,
	}
}

// ToastController manages the lifecycle of active toast notifications.
// It handles push, eviction, TTL countdown, and dismissal. Each toast
// lives for its notification's own duration; zero means no countdown.
type ToastController struct {
	max    int
	toasts []toast

	ticking bool
}

// NewToastController creates a controller. A non-positive maxVisible
// falls back to the package default.
func NewToastController(maxVisible int) *ToastController {
	if maxVisible <= 0 {
		maxVisible = defaultMaxToasts
	}
	return &ToastController{max: maxVisible}
}

// Push adds a notification to the toast stack. If the stack exceeds the
// maximum, the oldest toast is evicted.
func (c *ToastController) Push(n notify.Notification) {
	c.toasts = append(c.toasts, newToast(n))
	if len(c.toasts) > c.max {
		c.toasts = c.toasts[len(c.toasts)-c.max:]
	}
}

// Replace swaps the toast holding the same notification ID in place,
// restarting the countdown from the incoming notification's duration.
// Falls back to Push when no match is on screen. Collapsed repeat
// counters update this way instead of stacking.
func (c *ToastController) Replace(n notify.Notification) {
	for i := range c.toasts {
		if c.toasts[i].notification.ID == n.ID {
			c.toasts[i] = newToast(n)
			return
		}
	}
	c.Push(n)
}

// Tick decrements the remaining TTL on all counting toasts by d and
// removes any that have expired. Pinned toasts are untouched.
func (c *ToastController) Tick(d time.Duration) {
	alive := c.toasts[:0]
	for _, t := range c.toasts {
		if !t.pinned {
			t.remaining -= d
			if t.remaining <= 0 {
				continue
			}
		}
		alive = append(alive, t)
	}
	c.toasts = alive
}

// Dismiss removes the newest (bottom-most) toast.
func (c *ToastController) Dismiss() {
	if len(c.toasts) > 0 {
		c.toasts = c.toasts[:len(c.toasts)-1]
	}
}

// DismissAll removes all active toasts.
func (c *ToastController) DismissAll() {
	c.toasts = c.toasts[:0]
}

// HasToasts returns true if there are any active toasts.
func (c *ToastController) HasToasts() bool {
	return len(c.toasts) > 0
}

// Toasts returns the current active toast slice.
func (c *ToastController) Toasts() []toast {
	return c.toasts
}

// Ticking returns whether the tick timer is currently running.
func (c *ToastController) Ticking() bool {
	return c.ticking
}

// SetTicking sets the tick timer state.
func (c *ToastController) SetTicking(v bool) {
	c.ticking = v
}
