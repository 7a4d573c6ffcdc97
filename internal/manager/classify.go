package manager

import (
	"strings"

	"github.com/deskwire/pulse/internal/core/notify"
)

// Classifier decides which channel a notification belongs to before it
// enters the pipeline. The decision is final: category never changes
// after classification.
type Classifier func(notify.Notification) notify.Category

// connectivityKeywords mark messages that describe transport health
// rather than support-desk activity.
var connectivityKeywords = []string{
	"connection",
	"network",
	"offline",
	"reconnect",
}

// DefaultClassifier respects an explicit category and otherwise routes
// connectivity chatter to the transient system channel and everything
// else to the persistent panel.
func DefaultClassifier(n notify.Notification) notify.Category {
	if n.Category == notify.CategoryApp || n.Category == notify.CategorySystem {
		return n.Category
	}

	msg := strings.ToLower(n.Message)
	for _, kw := range connectivityKeywords {
		if strings.Contains(msg, kw) {
			return notify.CategorySystem
		}
	}
	return notify.CategoryApp
}

// StaticClassifier always returns the given category, ignoring the
// notification entirely.
func StaticClassifier(c notify.Category) Classifier {
	return func(notify.Notification) notify.Category { return c }
}
