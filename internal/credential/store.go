// Package credential holds the inference service credential for the
// lifetime of the process, optionally persisted across restarts.
package credential

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hashicorp/go-hclog"
)

// Key is the storage key the credential is persisted under.
const Key = "inference.credential"

// ErrNotFound is returned by backends when a key is absent.
var ErrNotFound = errors.New("credential not found")

// Backend is durable key-value storage.
type Backend interface {
	Load(ctx context.Context, key string) (string, error)
	Save(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Store is the process-wide credential. It is loaded once by Open and
// changed only through Set and Forget.
type Store struct {
	mu        sync.RWMutex
	backend   Backend
	value     string
	persisted bool
	logger    hclog.Logger
}

// Open reads any persisted credential from backend.
func Open(ctx context.Context, backend Backend, logger hclog.Logger) (*Store, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	s := &Store{backend: backend, logger: logger}

	value, err := backend.Load(ctx, Key)
	switch {
	case errors.Is(err, ErrNotFound):
		logger.Debug("no persisted credential")
	case err != nil:
		return nil, fmt.Errorf("failed to load credential: %w", err)
	default:
		s.value = value
		s.persisted = value != ""
		logger.Debug("loaded persisted credential")
	}
	return s, nil
}

// Get returns the current credential, or "" if none is set.
func (s *Store) Get() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value
}

// Persisted reports whether the current credential is stored durably.
func (s *Store) Persisted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.persisted
}

// Set replaces the credential. With persist the value is written to the
// backend; without it any previously persisted copy is removed.
func (s *Store) Set(ctx context.Context, value string, persist bool) error {
	if value == "" {
		return fmt.Errorf("credential must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if persist {
		if err := s.backend.Save(ctx, Key, value); err != nil {
			return fmt.Errorf("failed to persist credential: %w", err)
		}
	} else if err := s.backend.Delete(ctx, Key); err != nil {
		return fmt.Errorf("failed to remove persisted credential: %w", err)
	}

	s.value = value
	s.persisted = persist
	s.logger.Info("credential updated", "persisted", persist)
	return nil
}

// Forget clears the credential from memory and storage.
func (s *Store) Forget(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.backend.Delete(ctx, Key); err != nil {
		return fmt.Errorf("failed to remove persisted credential: %w", err)
	}
	s.value = ""
	s.persisted = false
	s.logger.Info("credential forgotten")
	return nil
}

// Close releases the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}

// MemoryBackend keeps values in memory only.
type MemoryBackend struct {
	mu   sync.Mutex
	data map[string]string
}

// NewMemoryBackend returns an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{data: make(map[string]string)}
}

// Load implements Backend.
func (m *MemoryBackend) Load(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

// Save implements Backend.
func (m *MemoryBackend) Save(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

// Delete implements Backend.
func (m *MemoryBackend) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// Close implements Backend.
func (m *MemoryBackend) Close() error { return nil }
