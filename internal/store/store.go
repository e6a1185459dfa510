// Package store provides storage backends for welcomebot.
//
// It persists per-user conversation profiles, the shared reward-code
// counter, and the answer-index reference vectors. Backends: in-memory
// (tests and degraded fallback), SQLite, PostgreSQL, and MongoDB.
package store

import (
	"context"
	"sync"

	"github.com/gdg-ntpu/welcomebot/internal/models"
)

// CounterRewardCodes is the key of the shared reward-code sequence counter.
const CounterRewardCodes = "reward_codes"

// Store is the persistence interface the conversation controller and the
// reward issuer depend on.
type Store interface {
	// GetProfile returns the profile for a hashed user id, or nil when
	// no profile exists yet.
	GetProfile(ctx context.Context, id string) (*models.UserProfile, error)
	// InsertProfileIfAbsent inserts the profile unless one already
	// exists for its id. Returns true when the insert happened.
	InsertProfileIfAbsent(ctx context.Context, profile models.UserProfile) (bool, error)
	// UpdateProfile applies a partial update to an existing profile.
	UpdateProfile(ctx context.Context, id string, upd models.ProfileUpdate) error
	// IncrementCounter atomically increments the named counter and
	// returns the new value. The read-modify-write happens inside the
	// backend, so concurrent callers never observe the same value.
	IncrementCounter(ctx context.Context, name string) (int64, error)
	// ListAnswerVectors loads the answer-index reference rows.
	ListAnswerVectors(ctx context.Context) ([]models.AnswerVector, error)
	Close() error
}

// Opts holds configuration options for store backends.
type Opts struct {
	// DSN is the backend connection string: a file path for SQLite, a
	// postgres:// URL for PostgreSQL, a mongodb:// URI for MongoDB.
	DSN string
	// Database is the database name, for backends that need one.
	Database string
}

// Option defines a configuration option for store backends.
type Option func(*Opts)

// WithDSN sets the backend connection string.
func WithDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithDatabase sets the database name.
func WithDatabase(name string) Option {
	return func(o *Opts) { o.Database = name }
}

// InMemoryStore is a mutex-guarded in-memory store, used by tests and as
// the last-resort backend when no persistent DSN is configured.
type InMemoryStore struct {
	mu       sync.Mutex
	profiles map[string]models.UserProfile
	counters map[string]int64
	vectors  []models.AnswerVector
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		profiles: make(map[string]models.UserProfile),
		counters: make(map[string]int64),
	}
}

// GetProfile returns the stored profile, or nil when absent.
func (s *InMemoryStore) GetProfile(ctx context.Context, id string) (*models.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// InsertProfileIfAbsent inserts the profile unless its id is taken.
func (s *InMemoryStore) InsertProfileIfAbsent(ctx context.Context, profile models.UserProfile) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[profile.ID]; ok {
		return false, nil
	}
	s.profiles[profile.ID] = profile
	return true, nil
}

// UpdateProfile applies a partial update to an existing profile. Updating
// a missing profile is a no-op, matching the document stores.
func (s *InMemoryStore) UpdateProfile(ctx context.Context, id string, upd models.ProfileUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[id]
	if !ok {
		return nil
	}
	upd.Apply(&p)
	s.profiles[id] = p
	return nil
}

// IncrementCounter atomically increments the named counter.
func (s *InMemoryStore) IncrementCounter(ctx context.Context, name string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[name]++
	return s.counters[name], nil
}

// ListAnswerVectors returns the seeded answer vectors.
func (s *InMemoryStore) ListAnswerVectors(ctx context.Context) ([]models.AnswerVector, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.AnswerVector, len(s.vectors))
	copy(out, s.vectors)
	return out, nil
}

// SeedAnswerVectors replaces the stored answer vectors. Tests and the
// memory backend use this in place of the offline ingestion job.
func (s *InMemoryStore) SeedAnswerVectors(vectors []models.AnswerVector) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vectors = make([]models.AnswerVector, len(vectors))
	copy(s.vectors, vectors)
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error { return nil }
