// Package session persists per-conversation state: the message history, the
// pending uploads and the cumulative usage of each session, provider and
// model combination.
package session

import (
	"context"
	"errors"
	"strings"
)

// Fields stored for every session key.
const (
	FieldHistory = "history"
	FieldUploads = "uploads"
	FieldInfo    = "info"
)

// ErrInvalidKey indicates a key with an empty component.
var ErrInvalidKey = errors.New("session key must name a session, provider and model")

// Key namespaces state by session handle, provider and model.
type Key struct {
	Session  string
	Provider string
	Model    string
}

// String returns the storage form of the key.
func (k Key) String() string {
	return k.Session + "/" + k.Provider + "/" + k.Model
}

// Validate checks that every component is set.
func (k Key) Validate() error {
	if strings.TrimSpace(k.Session) == "" || strings.TrimSpace(k.Provider) == "" || strings.TrimSpace(k.Model) == "" {
		return ErrInvalidKey
	}
	return nil
}

// Store keeps JSON encoded field values per key. Get returns nil without an
// error for absent fields. Clear with an empty field removes every field of
// the key.
type Store interface {
	Get(ctx context.Context, key Key, field string) ([]byte, error)
	Set(ctx context.Context, key Key, field string, value []byte) error
	Clear(ctx context.Context, key Key, field string) error
}

// Purger drops state that has not been touched within the store's TTL.
type Purger interface {
	Purge(ctx context.Context) (int64, error)
}
