package loader

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Faultbox/pakview/pkg/pak"
)

var (
	// ErrNotFound is returned by acquire when the archive file does not
	// exist on disk.
	ErrNotFound = errors.New("archive file not found")
	// ErrTimeout is returned when no handle becomes idle within the
	// configured wait.
	ErrTimeout = errors.New("timed out waiting for archive handle")
	// ErrClosed is returned after the pool has been retired.
	ErrClosed = errors.New("handle pool closed")
)

// handlePool is a bounded pool of reusable read handles into one archive
// file. Archives are opened once and reused across many small entry reads;
// unbounded concurrent opens would exhaust OS handle limits under high
// package counts.
//
// Invariant: idle + in-use handles never exceed max, and at most max
// handles are ever created. Handles are only closed when the pool is
// retired, never mid-run.
type handlePool struct {
	path string
	max  int

	mu      sync.Mutex
	created int
	closed  bool
	idle    chan *pak.Archive

	acquires atomic.Int64 // total successful acquires, for observability
}

func newHandlePool(path string, max int) *handlePool {
	if max < 1 {
		max = 1
	}
	return &handlePool{
		path: path,
		max:  max,
		idle: make(chan *pak.Archive, max),
	}
}

// acquire returns an idle handle, opening a new one while under the cap,
// and otherwise waits up to timeout for a release. The file must exist at
// acquire time.
func (p *handlePool) acquire(timeout time.Duration) (*pak.Archive, error) {
	select {
	case h, ok := <-p.idle:
		if !ok || h == nil {
			return nil, ErrClosed
		}
		p.acquires.Add(1)
		return h, nil
	default:
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrClosed
	}
	if p.created < p.max {
		// Reserve the slot before the open so concurrent acquirers
		// cannot overshoot the cap.
		p.created++
		p.mu.Unlock()

		if _, err := os.Stat(p.path); err != nil {
			p.unreserve()
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("%w: %s", ErrNotFound, p.path)
			}
			return nil, fmt.Errorf("stat %s: %w", p.path, err)
		}
		h, err := pak.Open(p.path)
		if err != nil {
			p.unreserve()
			return nil, fmt.Errorf("opening archive %s: %w", p.path, err)
		}
		p.acquires.Add(1)
		return h, nil
	}
	p.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case h, ok := <-p.idle:
		if !ok || h == nil {
			return nil, ErrClosed
		}
		p.acquires.Add(1)
		return h, nil
	case <-timer.C:
		return nil, fmt.Errorf("%w: %s after %s", ErrTimeout, p.path, timeout)
	}
}

func (p *handlePool) unreserve() {
	p.mu.Lock()
	p.created--
	p.mu.Unlock()
}

// release returns a handle to the idle set. If the pool was retired while
// the handle was in use, the handle is closed instead.
func (p *handlePool) release(h *pak.Archive) {
	if h == nil {
		return
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		h.Close()
		return
	}
	// Capacity equals max, so the send cannot block while the pool
	// invariant holds.
	p.idle <- h
	p.mu.Unlock()
}

// retire closes all idle handles and rejects further acquires. Handles
// still in use are closed by their release call.
func (p *handlePool) retire() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.idle)
	p.mu.Unlock()

	for h := range p.idle {
		if h != nil {
			h.Close()
		}
	}
}

// acquireCount reports total successful acquires against this pool.
func (p *handlePool) acquireCount() int64 { return p.acquires.Load() }
