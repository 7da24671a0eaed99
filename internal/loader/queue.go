package loader

import "sync"

// workQueue holds the two logical queues feeding the scheduler loop:
// thumbnails (FIFO, always served first) and images (LIFO, most recent
// request wins). Producers never block on submission.
type workQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	thumbs []*Job
	images []*Job
	closed bool
}

func newWorkQueue() *workQueue {
	q := &workQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// push enqueues a job according to its priority and wakes the scheduler.
func (q *workQueue) push(j *Job) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	if j.priority == PriorityThumbnail {
		q.thumbs = append(q.thumbs, j)
	} else {
		q.images = append(q.images, j)
	}
	q.cond.Signal()
	return true
}

// pop blocks until a job is available or the queue is closed. Thumbnails
// preempt images on every iteration.
func (q *workQueue) pop() (*Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.thumbs) == 0 && len(q.images) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.thumbs) > 0 {
		j := q.thumbs[0]
		q.thumbs[0] = nil
		q.thumbs = q.thumbs[1:]
		return j, true
	}
	if len(q.images) > 0 {
		last := len(q.images) - 1
		j := q.images[last]
		q.images[last] = nil
		q.images = q.images[:last]
		return j, true
	}
	return nil, false
}

// flagMatching marks still-queued jobs whose archive path satisfies match
// as cancelled in place. Queue order is not disturbed; flagged jobs
// fast-fail when eventually dequeued.
func (q *workQueue) flagMatching(match func(archivePath string) bool) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for _, j := range q.thumbs {
		if match(j.ArchivePath) {
			j.markCancelled()
			n++
		}
	}
	for _, j := range q.images {
		if match(j.ArchivePath) {
			j.markCancelled()
			n++
		}
	}
	return n
}

// drain flags every queued job cancelled, empties both queues, and returns
// the removed jobs so the caller can deliver their completions.
func (q *workQueue) drain() []*Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	drained := make([]*Job, 0, len(q.thumbs)+len(q.images))
	for _, j := range q.thumbs {
		j.markCancelled()
		drained = append(drained, j)
	}
	for _, j := range q.images {
		j.markCancelled()
		drained = append(drained, j)
	}
	q.thumbs = nil
	q.images = nil
	return drained
}

// close wakes the scheduler loop; pop returns false once both queues are
// empty.
func (q *workQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.cond.Broadcast()
	q.mu.Unlock()
}

func (q *workQueue) pending() (thumbs, images int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.thumbs), len(q.images)
}
