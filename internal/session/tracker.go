// Package session tracks concurrent submissions so that only the result of
// the most recent one is ever published.
package session

import "sync"

// Tracker issues monotonically increasing submission ids and keeps the value
// of the newest submission. Completions for superseded ids are discarded.
type Tracker[T any] struct {
	mu       sync.Mutex
	issued   uint64
	accepted uint64
	value    T
	ok       bool
}

// NewTracker returns an empty tracker.
func NewTracker[T any]() *Tracker[T] {
	return &Tracker[T]{}
}

// Begin starts a new submission and returns its id. Any submission begun
// earlier becomes stale.
func (t *Tracker[T]) Begin() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.issued++
	return t.issued
}

// Complete records value for id if id is still the newest submission.
// It returns false when the completion is stale.
func (t *Tracker[T]) Complete(id uint64, value T) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if id != t.issued || id <= t.accepted {
		return false
	}
	t.accepted = id
	t.value = value
	t.ok = true
	return true
}

// Current reports whether id is the newest submission.
func (t *Tracker[T]) Current(id uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return id == t.issued
}

// Latest returns the most recently accepted value and its id.
func (t *Tracker[T]) Latest() (uint64, T, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.accepted, t.value, t.ok
}
