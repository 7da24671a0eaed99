package diskcache

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testImage() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 4, 3))
	img.SetRGBA(1, 1, color.RGBA{R: 200, G: 10, B: 30, A: 255})
	return img
}

func TestPutGetRoundtrip(t *testing.T) {
	cache, err := New(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("creating cache: %v", err)
	}

	mtime := time.Now()
	cache.Put("mods/a.pak", "previews/x.png", 1234, mtime, testImage())

	img, ok := cache.Get("mods/a.pak", "previews/x.png", 1234, mtime)
	if !ok {
		t.Fatal("expected cache hit")
	}
	bounds := img.Bounds()
	if bounds.Dx() != 4 || bounds.Dy() != 3 {
		t.Errorf("got %dx%d, want 4x3", bounds.Dx(), bounds.Dy())
	}
	r, g, b, _ := img.At(1, 1).RGBA()
	if r>>8 != 200 || g>>8 != 10 || b>>8 != 30 {
		t.Errorf("pixel mismatch: %d %d %d", r>>8, g>>8, b>>8)
	}
}

func TestKeyIncludesSizeAndMtime(t *testing.T) {
	cache, err := New(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("creating cache: %v", err)
	}

	mtime := time.Now()
	cache.Put("a.pak", "x.png", 1000, mtime, testImage())

	// Same entry, different archive size: the old cache entry is stale.
	if _, ok := cache.Get("a.pak", "x.png", 2000, mtime); ok {
		t.Error("hit with a different archive size")
	}
	if _, ok := cache.Get("a.pak", "x.png", 1000, mtime.Add(time.Second)); ok {
		t.Error("hit with a different mtime")
	}
	if _, ok := cache.Get("a.pak", "y.png", 1000, mtime); ok {
		t.Error("hit for a different entry")
	}
	if _, ok := cache.Get("a.pak", "x.png", 1000, mtime); !ok {
		t.Error("miss with the original key")
	}
}

func TestCorruptEntryIsMiss(t *testing.T) {
	dir := t.TempDir()
	cache, err := New(dir, nil)
	if err != nil {
		t.Fatalf("creating cache: %v", err)
	}

	mtime := time.Unix(1700000000, 0)
	cache.Put("a.pak", "x.png", 1, mtime, testImage())

	// Truncate every cache file.
	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		os.WriteFile(filepath.Join(dir, e.Name()), []byte("junk"), 0644)
	}

	if _, ok := cache.Get("a.pak", "x.png", 1, mtime); ok {
		t.Error("corrupt cache file produced a hit")
	}
}

func TestMissOnEmptyCache(t *testing.T) {
	cache, err := New(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("creating cache: %v", err)
	}
	if _, ok := cache.Get("a.pak", "x.png", 1, time.Now()); ok {
		t.Error("hit on empty cache")
	}
}

func TestNewCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "cache")
	if _, err := New(dir, nil); err != nil {
		t.Fatalf("creating cache: %v", err)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("cache dir not created: %v", err)
	}
}
