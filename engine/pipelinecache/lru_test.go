package pipelinecache

import "testing"

func TestLRUHitPromotesAndCountsStats(t *testing.T) {
	c := newLRU(2)
	c.insert("a", 1, Dims{})
	c.insert("b", 2, Dims{})

	if _, ok := c.get("a"); !ok {
		t.Fatal("expected hit for a")
	}
	// a is now most-recently-used; inserting c should evict b, not a.
	c.insert("c", 3, Dims{})

	if _, ok := c.get("a"); !ok {
		t.Fatal("a should have survived eviction")
	}
	if _, ok := c.get("b"); ok {
		t.Fatal("b should have been evicted as least-recently-used")
	}
	if c.evictions != 1 {
		t.Fatalf("evictions = %d, want 1", c.evictions)
	}
}

func TestLRUEvictsOldestOnCapacity(t *testing.T) {
	c := newLRU(1)
	var evictedKey string
	c.onEvict = func(key string, value any) { evictedKey = key }

	c.insert("a", 1, Dims{})
	c.insert("b", 2, Dims{})

	if evictedKey != "a" {
		t.Fatalf("evicted key = %q, want %q", evictedKey, "a")
	}
	if c.len() != 1 {
		t.Fatalf("len = %d, want 1", c.len())
	}
}

func TestLRUMissIncrementsMissCount(t *testing.T) {
	c := newLRU(10)
	if _, ok := c.get("missing"); ok {
		t.Fatal("expected miss")
	}
	if c.misses != 1 {
		t.Fatalf("misses = %d, want 1", c.misses)
	}
}

func TestDimsFits(t *testing.T) {
	small := Dims{Width: 100, Height: 100}
	large := Dims{Width: 200, Height: 200}

	if !small.fits(large) {
		t.Fatal("100x100 entry should fit a 200x200 target")
	}
	if large.fits(small) {
		t.Fatal("200x200 entry should not fit a 100x100 target")
	}
}

func TestShaderKeyStableAcrossCalls(t *testing.T) {
	src := "@vertex fn main() {}"
	if ShaderKey(src) != ShaderKey(src) {
		t.Fatal("ShaderKey should be deterministic for identical source")
	}
	if ShaderKey(src) == ShaderKey(src+" ") {
		t.Fatal("ShaderKey should differ for different source")
	}
}

func TestPipelineKeyOrderIndependentOfLayoutEntriesOrder(t *testing.T) {
	a := PipelineKey(PipelineSpec{Kind: "render", LayoutEntries: []string{"x", "y"}})
	b := PipelineKey(PipelineSpec{Kind: "render", LayoutEntries: []string{"y", "x"}})
	if a != b {
		t.Fatal("PipelineKey should be independent of layout_entries ordering")
	}
}
