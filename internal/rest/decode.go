package rest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/deskwire/pulse/internal/core/notify"
)

// ErrUnrecognizedShape is returned when a list response matches none of
// the known body shapes. Callers fall back to cached data on this error.
var ErrUnrecognizedShape = errors.New("unrecognized notification response shape")

// wireNotification is the record shape on the REST and socket
// boundaries. Durations travel as milliseconds, 0 meaning "never
// auto-dismiss".
type wireNotification struct {
	ID         string    `json:"id,omitempty"`
	Message    string    `json:"message"`
	Type       string    `json:"type,omitempty"`
	Category   string    `json:"category,omitempty"`
	Title      string    `json:"title,omitempty"`
	DurationMS int64     `json:"duration,omitempty"`
	Timestamp  time.Time `json:"timestamp,omitempty"`
	IsRead     bool      `json:"isRead,omitempty"`
}

func (w wireNotification) toDomain() notify.Notification {
	return notify.Notification{
		ID:        w.ID,
		Message:   w.Message,
		Type:      notify.Type(w.Type),
		Category:  notify.Category(w.Category),
		Title:     w.Title,
		Duration:  time.Duration(w.DurationMS) * time.Millisecond,
		Timestamp: w.Timestamp,
		Read:      w.IsRead,
	}
}

func toWire(n notify.Notification) wireNotification {
	return wireNotification{
		ID:         n.ID,
		Message:    n.Message,
		Type:       string(n.Type),
		Category:   string(n.Category),
		Title:      n.Title,
		DurationMS: n.Duration.Milliseconds(),
		Timestamp:  n.Timestamp,
		IsRead:     n.Read,
	}
}

// DecodeList normalizes the three list-response shapes the API has
// shipped: a bare array, {"notifications": [...]}, and
// {"data": {"notifications": [...]}}. Anything else is
// ErrUnrecognizedShape rather than a best-effort guess.
func DecodeList(body []byte) ([]notify.Notification, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, ErrUnrecognizedShape
	}

	if trimmed[0] == '[' {
		return decodeRecords(trimmed)
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnrecognizedShape, err)
	}

	if raw, ok := obj["notifications"]; ok {
		return decodeRecords(raw)
	}

	if raw, ok := obj["data"]; ok {
		var inner map[string]json.RawMessage
		if err := json.Unmarshal(raw, &inner); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrUnrecognizedShape, err)
		}
		if records, ok := inner["notifications"]; ok {
			return decodeRecords(records)
		}
	}

	return nil, ErrUnrecognizedShape
}

func decodeRecords(raw json.RawMessage) ([]notify.Notification, error) {
	var records []wireNotification
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnrecognizedShape, err)
	}

	now := time.Now()
	out := make([]notify.Notification, 0, len(records))
	for _, rec := range records {
		n := rec.toDomain()
		// Server records are persistent by definition.
		if n.Category == "" {
			n.Category = notify.CategoryApp
		}
		n.Normalize(now)
		out = append(out, n)
	}
	return out, nil
}
