package loader

import (
	"path/filepath"
	"strings"
	"sync"

	"github.com/Faultbox/pakview/pkg/pak"
)

// cancelledPathSet tracks archive paths marked as cancelled. Both the full
// path and the bare package name (filename without extension and trailing
// version segment) are stored, so a job matches whichever form its
// producer used. Membership makes not-yet-started jobs fail fast with no
// I/O; cancellation is advisory once a job is mid-decode.
type cancelledPathSet struct {
	mu  sync.Mutex
	set map[string]struct{}
}

func newCancelledPathSet() *cancelledPathSet {
	return &cancelledPathSet{set: make(map[string]struct{})}
}

func (c *cancelledPathSet) add(path string) {
	c.mu.Lock()
	c.set[pak.Normalize(path)] = struct{}{}
	if bare := barePackageName(path); bare != "" {
		c.set[bare] = struct{}{}
	}
	c.mu.Unlock()
}

func (c *cancelledPathSet) remove(path string) {
	c.mu.Lock()
	delete(c.set, pak.Normalize(path))
	if bare := barePackageName(path); bare != "" {
		delete(c.set, bare)
	}
	c.mu.Unlock()
}

// matches reports whether path, or the package it names, is cancelled.
func (c *cancelledPathSet) matches(path string) bool {
	norm := pak.Normalize(path)
	bare := barePackageName(path)
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.set[norm]; ok {
		return true
	}
	if bare != "" {
		if _, ok := c.set[bare]; ok {
			return true
		}
	}
	return false
}

// barePackageName reduces an archive path to its package name: base name
// without the extension, with a trailing all-digit version segment
// stripped. "mods/author.pack.12.pak" becomes "author.pack".
func barePackageName(path string) string {
	base := filepath.Base(pak.Normalize(path))
	if i := strings.LastIndexByte(base, '/'); i >= 0 {
		base = base[i+1:]
	}
	if ext := filepath.Ext(base); ext != "" && ext != base {
		base = strings.TrimSuffix(base, ext)
	}
	if i := strings.LastIndexByte(base, '.'); i > 0 {
		if tail := base[i+1:]; tail != "" && isDigits(tail) {
			base = base[:i]
		}
	}
	return base
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
