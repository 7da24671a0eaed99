// Package loader implements the archive-backed image loading pipeline:
// a prioritized work queue drained by a single scheduler loop, a bounded
// handle pool per archive, cooperative per-path cancellation, and
// reference-counted delivery of decoded images.
package loader

import (
	"image"
	"sync/atomic"
	"time"
)

// Priority selects which queue a job enters.
type Priority int

const (
	// PriorityThumbnail jobs are numerous and small; they are served FIFO
	// and always preempt image jobs.
	PriorityThumbnail Priority = iota
	// PriorityImage jobs are full previews; served LIFO so the most recent
	// request wins.
	PriorityImage
)

// State tracks a job through the scheduler.
type State int32

const (
	StateQueued State = iota
	StateProcessing
	StateFinished
	StateErrored
)

// ErrKind classifies a failed job. Failures are data on the result, not
// control flow: the scheduler loop never unwinds because of them.
type ErrKind int

const (
	KindNone ErrKind = iota
	// KindEntryNotFound: the internal path is absent from the archive.
	KindEntryNotFound
	// KindInvalidFormat: the entry header is not a recognized image format.
	KindInvalidFormat
	// KindDecodeFailed: the decoder rejected the entry, or a pool-level
	// failure (missing file, handle timeout) surfaced while processing.
	KindDecodeFailed
	// KindCancelled: the archive path was cancelled before or during
	// processing. Callers distinguish cancelled from failed.
	KindCancelled
)

func (k ErrKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindEntryNotFound:
		return "entry not found"
	case KindInvalidFormat:
		return "invalid format"
	case KindDecodeFailed:
		return "decode failed"
	case KindCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// TextureID is an opaque identity for a decoded image, used as the key of
// the reference-count table. IDs are never reused within a pipeline.
type TextureID uint64

// Texture is an immutable decoded image. The pixel data must not be
// modified after delivery; consumers share it through the ref table.
type Texture struct {
	ID     TextureID
	Image  *image.RGBA
	Width  int
	Height int
}

// Result is what a job's completion sink receives. Exactly one of Texture
// or Kind!=KindNone is meaningful; Err carries detail for logging.
type Result struct {
	JobID       uint64
	ArchivePath string
	EntryPath   string
	Priority    Priority
	OK          bool
	Texture     *Texture
	Kind        ErrKind
	Err         error
}

// Sink receives a job's result on the pipeline's executor.
type Sink func(Result)

// Job is a single requested load. Request fields are set by the producer
// before submission and must not change afterwards; runtime state is
// mutated only by the scheduler.
type Job struct {
	ArchivePath string
	EntryPath   string
	// TargetWidth/TargetHeight bound the decoded size; zero means decode
	// at native size. Downscaling happens during the load, not after, so
	// oversized originals never reach the consumer.
	TargetWidth  int
	TargetHeight int
	Sink         Sink

	id        uint64
	priority  Priority
	state     atomic.Int32
	cancelled atomic.Bool
	errKind   ErrKind
	err       error

	// Archive file metadata captured at dispatch; forms the cache key.
	fileSize int64
	modTime  time.Time

	texture *Texture
}

// ID returns the pipeline-assigned job id (zero before submission).
func (j *Job) ID() uint64 { return j.id }

// State returns the job's current state.
func (j *Job) State() State { return State(j.state.Load()) }

func (j *Job) setState(s State) { j.state.Store(int32(s)) }

// markCancelled flags a queued job so it fast-fails at dequeue. Safe to
// call from any goroutine; advisory once the job is processing.
func (j *Job) markCancelled() { j.cancelled.Store(true) }

func (j *Job) result() Result {
	return Result{
		JobID:       j.id,
		ArchivePath: j.ArchivePath,
		EntryPath:   j.EntryPath,
		Priority:    j.priority,
		OK:          j.errKind == KindNone,
		Texture:     j.texture,
		Kind:        j.errKind,
		Err:         j.err,
	}
}
