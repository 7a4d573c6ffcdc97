// Package dedup suppresses near-duplicate and rapid-repeat
// notifications before they enter the delivery pipeline.
package dedup

import (
	"regexp"
	"strings"

	"github.com/deskwire/pulse/internal/core/notify"
)

var (
	timePattern    = regexp.MustCompile(`\b\d{1,2}:\d{2}(:\d{2})?\b`)
	isoDatePattern = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`)
	slashDate      = regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{2,4}\b`)
	counterSuffix  = regexp.MustCompile(`\s*\(\d+\)\s*$`)
	whitespace     = regexp.MustCompile(`\s+`)
)

// NormalizeMessage strips volatile fragments from a message so that
// repeats of the same logical event fingerprint identically: clock
// times, dates, and the parenthetical counters the throttle itself
// appends.
func NormalizeMessage(msg string) string {
	out := strings.ToLower(msg)
	out = timePattern.ReplaceAllString(out, "")
	out = isoDatePattern.ReplaceAllString(out, "")
	out = slashDate.ReplaceAllString(out, "")
	out = counterSuffix.ReplaceAllString(out, "")
	out = whitespace.ReplaceAllString(out, " ")
	return strings.TrimSpace(out)
}

// Fingerprint derives the dedup key for a notification. It is never
// stored on the notification itself.
func Fingerprint(n notify.Notification) string {
	return string(n.Type) + ":" + NormalizeMessage(n.Message) + ":" + string(n.Category)
}
