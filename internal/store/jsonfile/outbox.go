package jsonfile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// outboxFile holds notifications that never reached the server, kept in
// a secondary keyed record for replay after reconnection.
type outboxFile struct {
	Notifications []Queued `json:"notifications"`
}

// Queued is an outbox entry: the notification payload as it should be
// emitted over the socket once a connection is available.
type Queued struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// OutboxAdd appends a queued emission to the outbox.
func (s *Store) OutboxAdd(ctx context.Context, q Queued) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.loadOutbox()
	if err != nil {
		return err
	}

	file.Notifications = append(file.Notifications, q)
	return s.saveOutbox(file)
}

// OutboxDrain returns all queued emissions and clears the outbox.
func (s *Store) OutboxDrain(ctx context.Context) ([]Queued, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.loadOutbox()
	if err != nil {
		return nil, err
	}
	if len(file.Notifications) == 0 {
		return nil, nil
	}

	drained := file.Notifications
	if err := s.saveOutbox(outboxFile{}); err != nil {
		return nil, err
	}
	return drained, nil
}

func (s *Store) loadOutbox() (outboxFile, error) {
	data, err := os.ReadFile(s.outboxPath)
	if err != nil {
		if os.IsNotExist(err) {
			return outboxFile{}, nil
		}
		return outboxFile{}, fmt.Errorf("read outbox: %w", err)
	}
	if len(data) == 0 {
		return outboxFile{}, nil
	}

	var file outboxFile
	if err := json.Unmarshal(data, &file); err != nil {
		return outboxFile{}, fmt.Errorf("parse outbox: %w", err)
	}
	return file, nil
}

func (s *Store) saveOutbox(file outboxFile) error {
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("encode outbox: %w", err)
	}
	if err := s.write(s.outboxPath, data); err != nil {
		return fmt.Errorf("write outbox: %w", err)
	}
	return nil
}
