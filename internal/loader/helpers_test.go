package loader

import (
	"archive/zip"
	"bytes"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Faultbox/pakview/pkg/pak"
)

// pakKey mirrors the pipeline's registry/pool key derivation.
func pakKey(path string) string { return pak.Normalize(path) }

// encodePNG returns an encoded PNG of the given size.
func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatalf("encoding png: %v", err)
	}
	return buf.Bytes()
}

// encodeJPEG returns an encoded JPEG of the given size.
func encodeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h)), nil); err != nil {
		t.Fatalf("encoding jpeg: %v", err)
	}
	return buf.Bytes()
}

// writeArchive builds a ZIP archive named name under dir.
func writeArchive(t *testing.T, dir, name string, entries map[string][]byte) string {
	t.Helper()

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("creating archive: %v", err)
	}
	zw := zip.NewWriter(f)
	for entry, data := range entries {
		w, err := zw.Create(entry)
		if err != nil {
			t.Fatalf("creating entry %s: %v", entry, err)
		}
		if _, err := w.Write(data); err != nil {
			t.Fatalf("writing entry %s: %v", entry, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("closing writer: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("closing file: %v", err)
	}
	return path
}

// collectSink gathers results in completion order.
type collectSink struct {
	mu      sync.Mutex
	results []Result
	signal  chan struct{}
}

func newCollectSink() *collectSink {
	return &collectSink{signal: make(chan struct{}, 128)}
}

func (s *collectSink) sink(r Result) {
	s.mu.Lock()
	s.results = append(s.results, r)
	s.mu.Unlock()
	s.signal <- struct{}{}
}

// wait blocks until n results arrived or the timeout passes.
func (s *collectSink) wait(t *testing.T, n int, timeout time.Duration) []Result {
	t.Helper()
	deadline := time.After(timeout)
	for {
		s.mu.Lock()
		have := len(s.results)
		s.mu.Unlock()
		if have >= n {
			break
		}
		select {
		case <-s.signal:
		case <-deadline:
			t.Fatalf("timed out waiting for %d results, have %d", n, have)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Result, len(s.results))
	copy(out, s.results)
	return out
}

// gaugeCache is a Cache that never hits but tracks concurrent and peak
// callers of Get, optionally delaying them. Get runs while the caller
// holds a decode slot, so the peak observes the concurrency ceiling.
type gaugeCache struct {
	delay   time.Duration
	current atomic.Int64
	peak    atomic.Int64
}

func (c *gaugeCache) Get(string, string, int64, time.Time) (image.Image, bool) {
	n := c.current.Add(1)
	for {
		p := c.peak.Load()
		if n <= p || c.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	c.current.Add(-1)
	return nil, false
}

func (c *gaugeCache) Put(string, string, int64, time.Time, image.Image) {}

// hitCache always returns a fixed image.
type hitCache struct {
	img  image.Image
	gets atomic.Int64
}

func (c *hitCache) Get(string, string, int64, time.Time) (image.Image, bool) {
	c.gets.Add(1)
	return c.img, true
}

func (c *hitCache) Put(string, string, int64, time.Time, image.Image) {}
