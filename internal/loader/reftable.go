package loader

import "sync"

// RefTable reference-counts shared decoded images by their opaque
// TextureID. An entry exists only while its count is positive; the table
// governs pool-level sharing bookkeeping, not memory release, which stays
// with ordinary ownership of the Texture value.
type RefTable struct {
	mu   sync.Mutex
	refs map[TextureID]int
}

// NewRefTable creates an empty table.
func NewRefTable() *RefTable {
	return &RefTable{refs: make(map[TextureID]int)}
}

// Retain increments the use count for id, creating the entry at one, and
// returns the new count.
func (t *RefTable) Retain(id TextureID) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.refs[id]++
	return t.refs[id]
}

// Release decrements the use count. It returns the remaining count and
// whether this release removed the entry, which tells the last consumer to
// run its cleanup. Releasing an absent id is a no-op reporting (0, false).
func (t *RefTable) Release(id TextureID) (remaining int, removed bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n, ok := t.refs[id]
	if !ok {
		return 0, false
	}
	if n <= 1 {
		delete(t.refs, id)
		return 0, true
	}
	t.refs[id] = n - 1
	return n - 1, false
}

// Count returns the current use count for id (zero when absent).
func (t *RefTable) Count(id TextureID) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.refs[id]
}

// Len returns the number of live entries.
func (t *RefTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.refs)
}
