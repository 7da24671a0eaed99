package loader

import "sync"

// Executor runs completion callbacks on a caller-chosen execution context.
// Downstream consumers are not assumed to be thread-safe, so results are
// never delivered on a worker goroutine directly.
type Executor interface {
	Do(fn func())
}

// inlineExecutor runs callbacks on the calling goroutine. Only suitable
// when the sink is itself thread-safe.
type inlineExecutor struct{}

func (inlineExecutor) Do(fn func()) { fn() }

// InlineExecutor returns an executor that invokes callbacks synchronously
// on the worker goroutine.
func InlineExecutor() Executor { return inlineExecutor{} }

// LoopExecutor serializes callbacks onto one dedicated goroutine, the way
// a UI event loop would. Submission never blocks the worker: callbacks are
// buffered, and ordering among them is preserved.
type LoopExecutor struct {
	mu     sync.Mutex
	fns    []func()
	cond   *sync.Cond
	closed bool
	done   chan struct{}
}

// NewLoopExecutor starts the loop goroutine.
func NewLoopExecutor() *LoopExecutor {
	e := &LoopExecutor{done: make(chan struct{})}
	e.cond = sync.NewCond(&e.mu)
	go e.run()
	return e
}

// Do queues fn for execution on the loop. Dropped after Close.
func (e *LoopExecutor) Do(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.fns = append(e.fns, fn)
	e.cond.Signal()
}

// Close stops the loop after draining already-queued callbacks.
func (e *LoopExecutor) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		<-e.done
		return
	}
	e.closed = true
	e.cond.Signal()
	e.mu.Unlock()
	<-e.done
}

func (e *LoopExecutor) run() {
	defer close(e.done)
	for {
		e.mu.Lock()
		for len(e.fns) == 0 && !e.closed {
			e.cond.Wait()
		}
		batch := e.fns
		e.fns = nil
		closed := e.closed
		e.mu.Unlock()

		for _, fn := range batch {
			fn()
		}
		if closed {
			return
		}
	}
}
