package session

import (
	"sync"
	"testing"
)

func TestTrackerDiscardsStale(t *testing.T) {
	tr := NewTracker[string]()

	first := tr.Begin()
	second := tr.Begin()

	if !tr.Complete(second, "second") {
		t.Fatal("Complete(second) = false, want true")
	}
	if tr.Complete(first, "first") {
		t.Error("Complete(first) = true, want false for a stale submission")
	}

	id, v, ok := tr.Latest()
	if !ok || id != second || v != "second" {
		t.Errorf("Latest() = %d, %q, %v; want %d, second, true", id, v, ok, second)
	}
}

func TestTrackerOutOfOrderArrival(t *testing.T) {
	tr := NewTracker[int]()

	first := tr.Begin()
	if !tr.Current(first) {
		t.Error("Current(first) = false before a newer Begin")
	}
	second := tr.Begin()
	if tr.Current(first) {
		t.Error("Current(first) = true after a newer Begin")
	}

	// The earlier request finishes first but is already superseded.
	if tr.Complete(first, 1) {
		t.Error("Complete(first) = true, want false")
	}
	if _, _, ok := tr.Latest(); ok {
		t.Error("Latest() ok = true before any accepted completion")
	}
	if !tr.Complete(second, 2) {
		t.Error("Complete(second) = false, want true")
	}
	if tr.Complete(second, 3) {
		t.Error("Complete(second) twice = true, want false")
	}

	_, v, _ := tr.Latest()
	if v != 2 {
		t.Errorf("Latest() value = %d, want 2", v)
	}
}

func TestTrackerIDsMonotonic(t *testing.T) {
	tr := NewTracker[struct{}]()

	const n = 100
	ids := make(chan uint64, n)
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids <- tr.Begin()
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[uint64]bool)
	for id := range ids {
		if seen[id] {
			t.Fatalf("duplicate id %d", id)
		}
		seen[id] = true
	}
	for i := uint64(1); i <= n; i++ {
		if !seen[i] {
			t.Errorf("missing id %d", i)
		}
	}
}
