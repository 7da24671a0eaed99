package loader

import (
	"runtime"
	"time"

	"go.uber.org/zap"
)

// Defaults for pipeline tuning. All of them can be overridden per pipeline
// through Options.
const (
	DefaultProbeBudget    = 64 * 1024
	DefaultHandleTimeout  = 10 * time.Second
	DefaultReleaseTimeout = 10 * time.Second
	DefaultPollInterval   = 50 * time.Millisecond

	// maxRetainedBuffer bounds how large a pooled decode buffer may grow
	// before it is dropped instead of reused.
	maxRetainedBuffer = 8 * 1024 * 1024
)

// Options configures a Pipeline. The zero value is usable: every field has
// a default.
type Options struct {
	// MaxConcurrentLoads is the global ceiling on concurrent decode work,
	// independent of how many distinct archives are in play. Zero selects
	// half the processor count, minimum one.
	MaxConcurrentLoads int
	// MaxHandlesPerArchive caps open read handles per archive file. Zero
	// selects half the processor count; values are clamped to
	// [1, NumCPU].
	MaxHandlesPerArchive int
	// ProbeBudget is the number of header bytes read for dimension
	// probing. Default 64 KiB.
	ProbeBudget int
	// HandleTimeout bounds the wait for a free archive handle.
	HandleTimeout time.Duration
	// ReleaseTimeout bounds ReleaseFileLocks and CancelAll drain waits.
	ReleaseTimeout time.Duration
	// PollInterval is the active-file registry polling interval used by
	// the lock coordinator.
	PollInterval time.Duration
	// Cache is the decoded-image disk cache. Nil disables caching.
	Cache Cache
	// Executor receives completion callbacks. Nil delivers inline on the
	// worker goroutine.
	Executor Executor
	// Logger for pipeline diagnostics. Nil disables logging.
	Logger *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.MaxConcurrentLoads <= 0 {
		o.MaxConcurrentLoads = runtime.NumCPU() / 2
	}
	if o.MaxConcurrentLoads < 1 {
		o.MaxConcurrentLoads = 1
	}
	if o.MaxHandlesPerArchive <= 0 {
		o.MaxHandlesPerArchive = runtime.NumCPU() / 2
	}
	if o.MaxHandlesPerArchive < 1 {
		o.MaxHandlesPerArchive = 1
	}
	if n := runtime.NumCPU(); o.MaxHandlesPerArchive > n {
		o.MaxHandlesPerArchive = n
	}
	if o.ProbeBudget <= 0 {
		o.ProbeBudget = DefaultProbeBudget
	}
	if o.HandleTimeout <= 0 {
		o.HandleTimeout = DefaultHandleTimeout
	}
	if o.ReleaseTimeout <= 0 {
		o.ReleaseTimeout = DefaultReleaseTimeout
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.Cache == nil {
		o.Cache = NopCache()
	}
	if o.Executor == nil {
		o.Executor = InlineExecutor()
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}
