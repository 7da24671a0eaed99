package loader

import (
	"sync"
	"time"
)

// activeFileRegistry counts in-flight operations per archive path. A zero
// count means the file is safe to delete or replace. Incremented before an
// operation may open a handle, decremented when it finishes.
type activeFileRegistry struct {
	mu     sync.Mutex
	counts map[string]int
}

func newActiveFileRegistry() *activeFileRegistry {
	return &activeFileRegistry{counts: make(map[string]int)}
}

func (r *activeFileRegistry) inc(path string) {
	r.mu.Lock()
	r.counts[path]++
	r.mu.Unlock()
}

func (r *activeFileRegistry) dec(path string) {
	r.mu.Lock()
	if n := r.counts[path]; n > 1 {
		r.counts[path] = n - 1
	} else {
		// Count never goes negative; the entry is dropped at zero.
		delete(r.counts, path)
	}
	r.mu.Unlock()
}

func (r *activeFileRegistry) count(path string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[path]
}

func (r *activeFileRegistry) idle(paths []string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range paths {
		if r.counts[p] > 0 {
			return false
		}
	}
	return true
}

func (r *activeFileRegistry) allIdle() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.counts) == 0
}

// waitIdle polls at interval until every path drains or timeout elapses.
// Returns true when the paths drained in time.
func (r *activeFileRegistry) waitIdle(paths []string, interval, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if r.idle(paths) {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(interval)
	}
}

// waitAllIdle polls until the registry is empty or timeout elapses.
func (r *activeFileRegistry) waitAllIdle(interval, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if r.allIdle() {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(interval)
	}
}
