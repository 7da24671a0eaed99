package loader

import (
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func TestHandlePoolCap(t *testing.T) {
	dir := t.TempDir()
	path := writeArchive(t, dir, "a.pak", map[string][]byte{
		"x.png": encodePNG(t, 2, 2),
	})

	pool := newHandlePool(path, 2)
	defer pool.retire()

	h1, err := pool.acquire(time.Second)
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	h2, err := pool.acquire(time.Second)
	if err != nil {
		t.Fatalf("second acquire: %v", err)
	}

	if pool.created != 2 {
		t.Errorf("expected 2 handles created, got %d", pool.created)
	}

	// Third acquire must block until a release.
	acquired := make(chan error, 1)
	go func() {
		h3, err := pool.acquire(5 * time.Second)
		if err == nil {
			pool.release(h3)
		}
		acquired <- err
	}()

	select {
	case err := <-acquired:
		t.Fatalf("third acquire did not block (err=%v)", err)
	case <-time.After(100 * time.Millisecond):
	}

	pool.release(h1)

	select {
	case err := <-acquired:
		if err != nil {
			t.Fatalf("third acquire after release: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("third acquire still blocked after release")
	}

	if pool.created > 2 {
		t.Errorf("pool created %d handles, cap is 2", pool.created)
	}
	pool.release(h2)
}

func TestHandlePoolNotFound(t *testing.T) {
	pool := newHandlePool(filepath.Join(t.TempDir(), "absent.pak"), 1)
	defer pool.retire()

	if _, err := pool.acquire(time.Second); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	// A failed open must not leak its reserved slot.
	if pool.created != 0 {
		t.Errorf("expected created 0 after failed open, got %d", pool.created)
	}
}

func TestHandlePoolTimeout(t *testing.T) {
	dir := t.TempDir()
	path := writeArchive(t, dir, "a.pak", map[string][]byte{
		"x.png": encodePNG(t, 2, 2),
	})

	pool := newHandlePool(path, 1)
	defer pool.retire()

	h, err := pool.acquire(time.Second)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer pool.release(h)

	if _, err := pool.acquire(50 * time.Millisecond); !errors.Is(err, ErrTimeout) {
		t.Errorf("expected ErrTimeout, got %v", err)
	}
}

func TestHandlePoolReuse(t *testing.T) {
	dir := t.TempDir()
	path := writeArchive(t, dir, "a.pak", map[string][]byte{
		"x.png": encodePNG(t, 2, 2),
	})

	pool := newHandlePool(path, 4)
	defer pool.retire()

	for i := 0; i < 10; i++ {
		h, err := pool.acquire(time.Second)
		if err != nil {
			t.Fatalf("acquire %d: %v", i, err)
		}
		pool.release(h)
	}

	if pool.created != 1 {
		t.Errorf("expected a single handle reused, created %d", pool.created)
	}
	if got := pool.acquireCount(); got != 10 {
		t.Errorf("expected 10 acquires recorded, got %d", got)
	}
}

func TestHandlePoolRetire(t *testing.T) {
	dir := t.TempDir()
	path := writeArchive(t, dir, "a.pak", map[string][]byte{
		"x.png": encodePNG(t, 2, 2),
	})

	pool := newHandlePool(path, 2)
	h, err := pool.acquire(time.Second)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	pool.retire()

	if _, err := pool.acquire(time.Second); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed after retire, got %v", err)
	}

	// Releasing into a retired pool closes the handle instead of pooling it.
	pool.release(h)

	// Retire is idempotent.
	pool.retire()
}
