// Package session implements the debate session registry backing the
// two-phase create-then-stream protocol: configuration is registered first,
// then the returned identity is used to open the event stream.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/parleyhq/parley/types"
)

// Registry errors.
var (
	// ErrNotFound is returned when a session doesn't exist in the registry.
	ErrNotFound = errors.New("session not found")
	// ErrInvalidID is returned when an empty session ID is provided.
	ErrInvalidID = errors.New("invalid session ID")
)

// DebateSession is a registered (topic, configuration) pair awaiting or
// undergoing streaming. Sessions are immutable after creation: a session is
// replaced, never edited.
type DebateSession struct {
	ID        string             `json:"id"`
	Topic     string             `json:"topic"`
	Config    types.DebateConfig `json:"config"`
	CreatedAt time.Time          `json:"created_at"`
}

// Registry maps opaque debate identities to their sessions. Implementations
// must generate identities that never collide for the registry's lifetime.
type Registry interface {
	// Create registers a new session and returns its fresh identity.
	Create(ctx context.Context, topic string, config types.DebateConfig) (string, error)

	// Lookup retrieves a session by ID. Returns ErrNotFound for unknown or
	// expired identities.
	Lookup(ctx context.Context, id string) (*DebateSession, error)

	// Delete removes a session. Removing an unknown ID is not an error.
	Delete(ctx context.Context, id string) error
}
