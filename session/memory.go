package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/parleyhq/parley/types"
)

// defaultTTL is how long an unstreamed session survives before eviction.
const defaultTTL = time.Hour

// janitorInterval is how often the background sweep removes expired sessions.
const janitorInterval = 5 * time.Minute

// MemoryRegistry provides an in-memory implementation of Registry with
// TTL-based expiry. It is thread-safe and suitable for single-instance
// deployments; use RedisRegistry for distributed setups.
type MemoryRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*DebateSession
	ttl      time.Duration

	stopOnce sync.Once
	stop     chan struct{}

	// now is overridable in tests
	now func() time.Time
}

// MemoryOption configures a MemoryRegistry.
type MemoryOption func(*MemoryRegistry)

// WithTTL sets the session time-to-live. Expired sessions are evicted lazily
// on Lookup and by a periodic sweep. Set to 0 to disable expiry.
func WithTTL(ttl time.Duration) MemoryOption {
	return func(r *MemoryRegistry) {
		r.ttl = ttl
	}
}

// NewMemoryRegistry creates a new in-memory session registry and starts its
// eviction sweep. Call Close when done.
func NewMemoryRegistry(opts ...MemoryOption) *MemoryRegistry {
	r := &MemoryRegistry{
		sessions: make(map[string]*DebateSession),
		ttl:      defaultTTL,
		stop:     make(chan struct{}),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.ttl > 0 {
		go r.janitor()
	}
	return r
}

// Create registers a new session under a fresh UUID.
func (r *MemoryRegistry) Create(ctx context.Context, topic string, config types.DebateConfig) (string, error) {
	if err := config.Validate(); err != nil {
		return "", err
	}

	id := uuid.NewString()
	sess := &DebateSession{
		ID:        id,
		Topic:     topic,
		Config:    config,
		CreatedAt: r.now(),
	}

	r.mu.Lock()
	r.sessions[id] = sess
	r.mu.Unlock()

	return id, nil
}

// Lookup retrieves a session by ID, evicting it first if expired.
func (r *MemoryRegistry) Lookup(ctx context.Context, id string) (*DebateSession, error) {
	if id == "" {
		return nil, ErrInvalidID
	}

	r.mu.RLock()
	sess, ok := r.sessions[id]
	r.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}

	if r.expired(sess) {
		r.mu.Lock()
		delete(r.sessions, id)
		r.mu.Unlock()
		return nil, ErrNotFound
	}

	// Return a copy so callers cannot mutate registry state.
	copied := *sess
	return &copied, nil
}

// Delete removes a session by ID.
func (r *MemoryRegistry) Delete(ctx context.Context, id string) error {
	if id == "" {
		return ErrInvalidID
	}
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
	return nil
}

// Len returns the number of live (possibly expired, not yet swept) sessions.
func (r *MemoryRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Close stops the eviction sweep.
func (r *MemoryRegistry) Close() error {
	r.stopOnce.Do(func() { close(r.stop) })
	return nil
}

func (r *MemoryRegistry) expired(sess *DebateSession) bool {
	return r.ttl > 0 && r.now().Sub(sess.CreatedAt) > r.ttl
}

func (r *MemoryRegistry) janitor() {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.sweep()
		case <-r.stop:
			return
		}
	}
}

func (r *MemoryRegistry) sweep() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, sess := range r.sessions {
		if r.expired(sess) {
			delete(r.sessions, id)
		}
	}
}
