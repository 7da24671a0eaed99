package loader

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/Faultbox/pakview/internal/bufpool"
	"github.com/Faultbox/pakview/pkg/pak"
)

// Pipeline bundles the work queue, per-archive handle pools, active-file
// registry, cancelled-path set and texture ref table behind one object.
// Each shared structure is synchronized on its own; there is no global
// lock and no cross-structure transaction.
type Pipeline struct {
	opts Options
	log  *zap.Logger

	queue *workQueue
	sem   *semaphore.Weighted
	cache Cache
	exec  Executor
	bufs  *bufpool.Pool

	poolMu sync.Mutex
	pools  map[string]*handlePool

	registry  *activeFileRegistry
	cancelled *cancelledPathSet
	refs      *RefTable

	nextJobID atomic.Uint64
	nextTexID atomic.Uint64

	// Best-effort progress feedback, reset whenever the outstanding
	// non-thumbnail work drains to zero.
	completed         atomic.Int64
	total             atomic.Int64
	imagesOutstanding atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc

	wg          sync.WaitGroup
	loopStarted atomic.Bool
	runDone     chan struct{}
	closeOnce   sync.Once
}

// New creates a pipeline. Call Start (or Run on a goroutine of your own)
// to begin draining the queue, and Close when done with it.
func New(opts Options) *Pipeline {
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &Pipeline{
		opts:      opts,
		log:       opts.Logger,
		queue:     newWorkQueue(),
		sem:       semaphore.NewWeighted(int64(opts.MaxConcurrentLoads)),
		cache:     opts.Cache,
		exec:      opts.Executor,
		bufs:      bufpool.New(maxRetainedBuffer),
		pools:     make(map[string]*handlePool),
		registry:  newActiveFileRegistry(),
		cancelled: newCancelledPathSet(),
		refs:      NewRefTable(),
		ctx:       ctx,
		cancel:    cancel,
		runDone:   make(chan struct{}),
	}
}

// Refs exposes the texture reference table for consumers sharing decoded
// images.
func (p *Pipeline) Refs() *RefTable { return p.refs }

// SubmitThumbnail enqueues a high-priority load. Non-blocking.
func (p *Pipeline) SubmitThumbnail(job *Job) { p.submit(job, PriorityThumbnail) }

// SubmitImage enqueues a lower-priority full-preview load. Non-blocking.
func (p *Pipeline) SubmitImage(job *Job) { p.submit(job, PriorityImage) }

func (p *Pipeline) submit(job *Job, prio Priority) {
	job.priority = prio
	job.id = p.nextJobID.Add(1)
	job.setState(StateQueued)
	p.total.Add(1)
	if prio == PriorityImage {
		p.imagesOutstanding.Add(1)
	}
	if !p.queue.push(job) {
		p.finish(job, KindCancelled, fmt.Errorf("pipeline closed: %s!%s", job.ArchivePath, job.EntryPath))
		return
	}
	p.log.Debug("job queued",
		zap.Uint64("job", job.id),
		zap.String("archive", job.ArchivePath),
		zap.String("entry", job.EntryPath),
		zap.Bool("thumbnail", prio == PriorityThumbnail))
}

// Run is the scheduler's single consumer loop. It dequeues with priority,
// fast-fails cancelled work, and hands decode work to the bounded worker
// set. Returns when the pipeline is closed and the queues are empty.
func (p *Pipeline) Run() {
	p.loopStarted.Store(true)
	defer close(p.runDone)
	for {
		job, ok := p.queue.pop()
		if !ok {
			return
		}
		p.dispatch(job)
	}
}

// Start runs the scheduler loop on its own goroutine.
func (p *Pipeline) Start() {
	go p.Run()
}

func (p *Pipeline) dispatch(job *Job) {
	if job.cancelled.Load() || p.cancelled.matches(job.ArchivePath) {
		// No handle acquisition, no decode.
		p.finish(job, KindCancelled, fmt.Errorf("load cancelled: %s", job.ArchivePath))
		return
	}

	// Blocking here, before the next dequeue, is what keeps thumbnails
	// strictly ahead of images while both queues are non-empty.
	if err := p.sem.Acquire(p.ctx, 1); err != nil {
		p.finish(job, KindCancelled, fmt.Errorf("pipeline shutting down: %w", err))
		return
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.sem.Release(1)
		p.process(job)
	}()
}

// pool returns the handle pool for an archive path, creating it lazily.
// The map is keyed by the normalized path, but the pool opens the path as
// the caller wrote it: filesystems may be case-sensitive.
func (p *Pipeline) pool(path string) *handlePool {
	key := pak.Normalize(path)
	p.poolMu.Lock()
	defer p.poolMu.Unlock()
	hp, ok := p.pools[key]
	if !ok {
		hp = newHandlePool(path, p.opts.MaxHandlesPerArchive)
		p.pools[key] = hp
		p.log.Debug("handle pool created",
			zap.String("archive", key),
			zap.Int("max_handles", p.opts.MaxHandlesPerArchive))
	}
	return hp
}

func (p *Pipeline) poolAcquires(path string) int64 {
	p.poolMu.Lock()
	defer p.poolMu.Unlock()
	if hp, ok := p.pools[pak.Normalize(path)]; ok {
		return hp.acquireCount()
	}
	return 0
}

func (p *Pipeline) finish(job *Job, kind ErrKind, err error) {
	job.errKind = kind
	job.err = err
	if kind == KindNone {
		job.setState(StateFinished)
	} else {
		job.setState(StateErrored)
		p.log.Debug("job failed",
			zap.Uint64("job", job.id),
			zap.String("entry", job.EntryPath),
			zap.String("kind", kind.String()),
			zap.Error(err))
	}

	p.completed.Add(1)
	if job.priority == PriorityImage && p.imagesOutstanding.Add(-1) == 0 {
		p.completed.Store(0)
		p.total.Store(0)
	}

	if job.Sink != nil {
		res := job.result()
		p.exec.Do(func() { job.Sink(res) })
	}
}

// Progress returns best-effort (completed, total) counters for UI
// feedback. Not correctness-critical; both reset when outstanding
// non-thumbnail work drains.
func (p *Pipeline) Progress() (completed, total int64) {
	return p.completed.Load(), p.total.Load()
}

// Pending returns the queued thumbnail and image counts.
func (p *Pipeline) Pending() (thumbnails, images int) {
	return p.queue.pending()
}

// ReleaseFileLocks marks the given archive paths cancelled, flags their
// queued jobs in place, waits for in-flight operations against them to
// drain, and retires their handle pools so no open handle pins the files.
// The owning application must call this, and wait for it, before deleting
// or replacing an archive. Returns ErrTimeout-wrapped error when the drain
// exceeded the configured release timeout.
func (p *Pipeline) ReleaseFileLocks(paths ...string) error {
	if len(paths) == 0 {
		return nil
	}

	keys := make([]string, len(paths))
	for i, path := range paths {
		p.cancelled.add(path)
		keys[i] = pak.Normalize(path)
	}
	flagged := p.queue.flagMatching(p.cancelled.matches)

	drained := p.registry.waitIdle(keys, p.opts.PollInterval, p.opts.ReleaseTimeout)

	// Retire the pools regardless: their idle handles hold the files
	// open, and handle release is deterministic through pool teardown.
	p.poolMu.Lock()
	for _, key := range keys {
		if hp, ok := p.pools[key]; ok {
			hp.retire()
			delete(p.pools, key)
		}
	}
	p.poolMu.Unlock()

	p.log.Info("file locks released",
		zap.Strings("archives", keys),
		zap.Int("flagged_jobs", flagged),
		zap.Bool("drained", drained))

	if !drained {
		return fmt.Errorf("%w: operations still active after %s", ErrTimeout, p.opts.ReleaseTimeout)
	}
	return nil
}

// CancelAll flags every queued job cancelled, clears both queues, and
// waits for the active-file registry to drain entirely.
func (p *Pipeline) CancelAll() error {
	dropped := p.queue.drain()
	for _, job := range dropped {
		p.finish(job, KindCancelled, fmt.Errorf("all operations cancelled"))
	}

	if !p.registry.waitAllIdle(p.opts.PollInterval, p.opts.ReleaseTimeout) {
		return fmt.Errorf("%w: operations still active after %s", ErrTimeout, p.opts.ReleaseTimeout)
	}
	return nil
}

// ResetCancellation clears the cancelled mark for an archive path, for
// example after the file has been rewritten and reloaded.
func (p *Pipeline) ResetCancellation(path string) {
	p.cancelled.remove(path)
}

// Close shuts the pipeline down: no further submissions are accepted,
// in-flight decodes finish, and every handle pool is torn down.
func (p *Pipeline) Close() {
	p.closeOnce.Do(func() {
		p.queue.close()
		p.cancel()
		if p.loopStarted.Load() {
			<-p.runDone
		}
		p.wg.Wait()

		p.poolMu.Lock()
		for key, hp := range p.pools {
			hp.retire()
			delete(p.pools, key)
		}
		p.poolMu.Unlock()
	})
}
