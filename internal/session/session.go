package session

import (
	"context"
	"encoding/json"
	"fmt"

	"aichat/internal/models"
	"aichat/internal/usage"
)

// History holds the composed vendor messages and their display form. Both
// slices always have the same length.
type History struct {
	Messages []json.RawMessage    `json:"messages"`
	Display  []models.HistoryEntry `json:"display"`
}

// Append adds one message to both sequences.
func (h *History) Append(message json.RawMessage, entry models.HistoryEntry) {
	h.Messages = append(h.Messages, message)
	h.Display = append(h.Display, entry)
}

// Undo removes the last message from both sequences. It reports false when
// the history is empty.
func (h *History) Undo() bool {
	if len(h.Messages) == 0 || len(h.Display) == 0 {
		return false
	}
	h.Messages = h.Messages[:len(h.Messages)-1]
	h.Display = h.Display[:len(h.Display)-1]
	return true
}

// Len returns the number of messages.
func (h History) Len() int {
	return len(h.Messages)
}

// Session is the typed view of one key in a Store.
type Session struct {
	store Store
	key   Key
}

// New returns the session stored under key.
func New(store Store, key Key) *Session {
	return &Session{store: store, key: key}
}

// Key returns the session key.
func (s *Session) Key() Key {
	return s.key
}

func (s *Session) load(ctx context.Context, field string, v any) error {
	data, err := s.store.Get(ctx, s.key, field)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("session: decode %s: %w", field, err)
	}
	return nil
}

func (s *Session) save(ctx context.Context, field string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("session: encode %s: %w", field, err)
	}
	return s.store.Set(ctx, s.key, field, data)
}

// History returns the stored history, empty when none exists.
func (s *Session) History(ctx context.Context) (History, error) {
	var h History
	if err := s.load(ctx, FieldHistory, &h); err != nil {
		return History{}, err
	}
	return h, nil
}

// SaveHistory replaces the stored history.
func (s *Session) SaveHistory(ctx context.Context, h History) error {
	if len(h.Messages) != len(h.Display) {
		return fmt.Errorf("session: history has %d messages but %d display entries", len(h.Messages), len(h.Display))
	}
	return s.save(ctx, FieldHistory, h)
}

// UndoHistory removes the last history entry, if any.
func (s *Session) UndoHistory(ctx context.Context) error {
	h, err := s.History(ctx)
	if err != nil {
		return err
	}
	if !h.Undo() {
		return nil
	}
	return s.SaveHistory(ctx, h)
}

// Uploads returns the pending uploads.
func (s *Session) Uploads(ctx context.Context) ([]models.Upload, error) {
	var uploads []models.Upload
	if err := s.load(ctx, FieldUploads, &uploads); err != nil {
		return nil, err
	}
	return uploads, nil
}

// SetUploads replaces the pending uploads.
func (s *Session) SetUploads(ctx context.Context, uploads []models.Upload) error {
	if len(uploads) == 0 {
		return s.ClearUploads(ctx)
	}
	return s.save(ctx, FieldUploads, uploads)
}

// ClearUploads drops the pending uploads.
func (s *Session) ClearUploads(ctx context.Context) error {
	return s.store.Clear(ctx, s.key, FieldUploads)
}

// Info returns the cumulative usage.
func (s *Session) Info(ctx context.Context) (usage.Info, error) {
	var info usage.Info
	if err := s.load(ctx, FieldInfo, &info); err != nil {
		return usage.Info{}, err
	}
	return info, nil
}

// SetInfo replaces the cumulative usage.
func (s *Session) SetInfo(ctx context.Context, info usage.Info) error {
	return s.save(ctx, FieldInfo, info)
}

// Reset clears every field.
func (s *Session) Reset(ctx context.Context) error {
	return s.store.Clear(ctx, s.key, "")
}
