package loader

import (
	"sync"
	"testing"
	"time"
)

func TestRegistryCounts(t *testing.T) {
	r := newActiveFileRegistry()

	r.inc("a.pak")
	r.inc("a.pak")
	r.inc("b.pak")

	if n := r.count("a.pak"); n != 2 {
		t.Errorf("count = %d, want 2", n)
	}
	r.dec("a.pak")
	r.dec("a.pak")
	if n := r.count("a.pak"); n != 0 {
		t.Errorf("count = %d, want 0", n)
	}

	// Never negative: a stray dec drops to zero and stays there.
	r.dec("a.pak")
	if n := r.count("a.pak"); n != 0 {
		t.Errorf("count after extra dec = %d, want 0", n)
	}

	if r.allIdle() {
		t.Error("allIdle true while b.pak is active")
	}
	r.dec("b.pak")
	if !r.allIdle() {
		t.Error("allIdle false with no active operations")
	}
}

func TestRegistryWaitIdle(t *testing.T) {
	r := newActiveFileRegistry()
	r.inc("a.pak")

	go func() {
		time.Sleep(80 * time.Millisecond)
		r.dec("a.pak")
	}()

	if !r.waitIdle([]string{"a.pak"}, 10*time.Millisecond, 2*time.Second) {
		t.Error("waitIdle timed out although the operation finished")
	}
}

func TestRegistryWaitIdleTimeout(t *testing.T) {
	r := newActiveFileRegistry()
	r.inc("a.pak")
	defer r.dec("a.pak")

	start := time.Now()
	if r.waitIdle([]string{"a.pak"}, 10*time.Millisecond, 60*time.Millisecond) {
		t.Error("waitIdle reported idle for a stuck operation")
	}
	if elapsed := time.Since(start); elapsed < 60*time.Millisecond {
		t.Errorf("waitIdle returned after %v, before the timeout", elapsed)
	}
}

func TestBarePackageName(t *testing.T) {
	cases := map[string]string{
		"mods/author.pack.12.pak":  "author.pack",
		"C:\\mods\\Scene.3.var":    "scene",
		"plain.pak":                "plain",
		"noext":                    "noext",
		"deep/dir/tool.pack.1.zip": "tool.pack",
		"versionless.name.pak":     "versionless.name",
	}
	for in, want := range cases {
		if got := barePackageName(in); got != want {
			t.Errorf("barePackageName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCancelledPathSetMatches(t *testing.T) {
	c := newCancelledPathSet()
	c.add("mods/Author.Pack.12.pak")

	if !c.matches("MODS/AUTHOR.PACK.12.PAK") {
		t.Error("full path with different case did not match")
	}
	// Another version of the same package matches through the bare name.
	if !c.matches("other/author.pack.13.pak") {
		t.Error("bare package name did not match")
	}
	if c.matches("mods/unrelated.pack.1.pak") {
		t.Error("unrelated package matched")
	}

	c.remove("mods/Author.Pack.12.pak")
	if c.matches("mods/author.pack.12.pak") {
		t.Error("path still matches after remove")
	}
}

func TestRefTable(t *testing.T) {
	rt := NewRefTable()

	if n := rt.Retain(7); n != 1 {
		t.Errorf("first retain = %d, want 1", n)
	}
	if n := rt.Retain(7); n != 2 {
		t.Errorf("second retain = %d, want 2", n)
	}

	remaining, removed := rt.Release(7)
	if remaining != 1 || removed {
		t.Errorf("release = (%d, %v), want (1, false)", remaining, removed)
	}
	remaining, removed = rt.Release(7)
	if remaining != 0 || !removed {
		t.Errorf("final release = (%d, %v), want (0, true)", remaining, removed)
	}

	// Entry is gone; further releases are no-ops.
	if _, removed := rt.Release(7); removed {
		t.Error("release of absent id reported removal")
	}
	if rt.Len() != 0 {
		t.Errorf("table has %d entries, want 0", rt.Len())
	}
}

func TestLoopExecutorPreservesOrder(t *testing.T) {
	e := NewLoopExecutor()

	var mu sync.Mutex
	var got []int
	for i := 0; i < 100; i++ {
		i := i
		e.Do(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		})
	}
	e.Close()

	if len(got) != 100 {
		t.Fatalf("executed %d callbacks, want 100", len(got))
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("callback %d ran out of order (got %d)", i, v)
		}
	}
}

func TestLoopExecutorDropsAfterClose(t *testing.T) {
	e := NewLoopExecutor()
	e.Close()
	// Must not panic or block.
	e.Do(func() { t.Error("callback ran after close") })
	time.Sleep(20 * time.Millisecond)
}

func TestQueueFlagMatching(t *testing.T) {
	q := newWorkQueue()
	a := &Job{ArchivePath: "a.pak", priority: PriorityImage}
	b := &Job{ArchivePath: "b.pak", priority: PriorityImage}
	q.push(a)
	q.push(b)

	n := q.flagMatching(func(path string) bool { return path == "a.pak" })
	if n != 1 {
		t.Errorf("flagged %d jobs, want 1", n)
	}
	if !a.cancelled.Load() || b.cancelled.Load() {
		t.Error("wrong job flagged")
	}

	// Flagging leaves queue order untouched.
	thumbs, images := q.pending()
	if thumbs != 0 || images != 2 {
		t.Errorf("queue disturbed: %d thumbs, %d images", thumbs, images)
	}
}
