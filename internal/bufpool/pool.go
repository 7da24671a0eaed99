// Package bufpool provides reusable byte buffers for the decode path.
package bufpool

import (
	"bytes"
	"sync"
)

// Pool hands out *bytes.Buffer values for staging decompressed entry data.
// Buffers that grew beyond maxRetain bytes are dropped on Put so one huge
// entry cannot pin memory for the lifetime of the pool.
type Pool struct {
	pool      sync.Pool
	maxRetain int
}

// New creates a buffer pool. Buffers larger than maxRetain bytes are not
// returned to the pool; maxRetain <= 0 disables the limit.
func New(maxRetain int) *Pool {
	return &Pool{
		maxRetain: maxRetain,
		pool: sync.Pool{
			New: func() any { return new(bytes.Buffer) },
		},
	}
}

// Get returns an empty buffer from the pool.
func (p *Pool) Get() *bytes.Buffer {
	buf := p.pool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

// Put returns a buffer to the pool for reuse.
func (p *Pool) Put(buf *bytes.Buffer) {
	if buf == nil {
		return
	}
	if p.maxRetain > 0 && buf.Cap() > p.maxRetain {
		return
	}
	p.pool.Put(buf)
}
