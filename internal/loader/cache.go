package loader

import (
	"image"
	"time"
)

// Cache is the decoded-image disk cache consumed by the pipeline. The key
// is (archive path, internal entry path, archive file size, archive file
// mtime); size and mtime invalidate stale entries when an archive is
// replaced without a path change.
//
// The pipeline probes the cache before any archive I/O; a hit skips handle
// acquisition entirely. Put is best-effort: implementations swallow write
// failures, and the pipeline never reports them as job failures.
type Cache interface {
	Get(archivePath, entryPath string, size int64, modTime time.Time) (image.Image, bool)
	Put(archivePath, entryPath string, size int64, modTime time.Time, img image.Image)
}

type nopCache struct{}

func (nopCache) Get(string, string, int64, time.Time) (image.Image, bool) { return nil, false }
func (nopCache) Put(string, string, int64, time.Time, image.Image)        {}

// NopCache returns a cache that never hits. Used when the disk cache is
// disabled.
func NopCache() Cache { return nopCache{} }
