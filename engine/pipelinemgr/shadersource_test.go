package pipelinemgr

import (
	"fmt"
	"testing"
)

func TestSourceCacheFetchesEachRefOnce(t *testing.T) {
	c := newSourceCache()
	calls := 0
	fetch := func(ref string) (string, error) {
		calls++
		return "source:" + ref, nil
	}

	src1, err := c.get("a.wgsl", fetch)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	src2, err := c.get("a.wgsl", fetch)
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	if src1 != src2 {
		t.Fatalf("expected identical source, got %q and %q", src1, src2)
	}
	if calls != 1 {
		t.Fatalf("fetch called %d times, want 1", calls)
	}
}

func TestSourceCachePropagatesFetchError(t *testing.T) {
	c := newSourceCache()
	fetch := func(ref string) (string, error) {
		return "", fmt.Errorf("not found: %s", ref)
	}
	if _, err := c.get("missing.wgsl", fetch); err == nil {
		t.Fatal("expected error from failed fetch")
	}
}

func TestPrefetchSkipsAlreadyCachedRefs(t *testing.T) {
	c := newSourceCache()
	calls := map[string]int{}
	fetch := func(ref string) (string, error) {
		calls[ref]++
		return "source:" + ref, nil
	}

	c.prefetch([]string{"a.wgsl"}, fetch, func(task func()) { task() })
	c.prefetch([]string{"a.wgsl", "b.wgsl", "a.wgsl"}, fetch, func(task func()) { task() })

	if calls["a.wgsl"] != 1 {
		t.Fatalf("a.wgsl fetched %d times, want 1", calls["a.wgsl"])
	}
	if calls["b.wgsl"] != 1 {
		t.Fatalf("b.wgsl fetched %d times, want 1", calls["b.wgsl"])
	}
}
