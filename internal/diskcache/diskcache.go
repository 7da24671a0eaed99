// Package diskcache is a file-backed decoded-image cache. Entries are
// content-addressed by (archive path, internal entry path, archive size,
// archive mtime), so replacing an archive file invalidates its cached
// images without any bookkeeping.
package diskcache

import (
	"fmt"
	"hash/fnv"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// Cache stores decoded images as PNG files in a single directory.
// Lookups miss on any read or decode error; writes are best-effort and
// never surfaced to callers. Implements the loader's Cache interface.
type Cache struct {
	dir string
	log *zap.Logger
}

// New creates the cache directory if needed.
func New(dir string, log *zap.Logger) (*Cache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating cache dir: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Cache{dir: dir, log: log}, nil
}

// Dir returns the cache directory.
func (c *Cache) Dir() string { return c.dir }

// Get returns the cached decoded image for the key, if present and
// readable.
func (c *Cache) Get(archivePath, entryPath string, size int64, modTime time.Time) (image.Image, bool) {
	f, err := os.Open(c.keyPath(archivePath, entryPath, size, modTime))
	if err != nil {
		return nil, false
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		// Corrupt cache file; treat as a miss. It will be overwritten
		// by the next write-through.
		c.log.Debug("discarding unreadable cache entry",
			zap.String("entry", entryPath), zap.Error(err))
		return nil, false
	}
	return img, true
}

// Put writes an image through to disk. Failures are swallowed: the cache
// is an accelerator, never a correctness dependency.
func (c *Cache) Put(archivePath, entryPath string, size int64, modTime time.Time, img image.Image) {
	path := c.keyPath(archivePath, entryPath, size, modTime)

	tmp, err := os.CreateTemp(c.dir, "put-*")
	if err != nil {
		c.log.Debug("cache write skipped", zap.Error(err))
		return
	}
	tmpName := tmp.Name()

	if err := png.Encode(tmp, img); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		c.log.Debug("cache encode failed", zap.String("entry", entryPath), zap.Error(err))
		return
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return
	}
	// Rename keeps concurrent readers from ever seeing a partial file.
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		c.log.Debug("cache rename failed", zap.String("entry", entryPath), zap.Error(err))
	}
}

func (c *Cache) keyPath(archivePath, entryPath string, size int64, modTime time.Time) string {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s\x00%s\x00%d\x00%d", archivePath, entryPath, size, modTime.UnixNano())
	return filepath.Join(c.dir, fmt.Sprintf("%016x.png", h.Sum64()))
}
