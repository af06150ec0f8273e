package recovery

import (
	"testing"
	"time"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/sequentialgpu/engine/engine/filter"
	"github.com/sequentialgpu/engine/engine/pipelinemgr"
)

func TestNewAppliesDefaults(t *testing.T) {
	c := New(nil, nil)
	if c.maxRetries != DefaultMaxRetries {
		t.Fatalf("maxRetries = %d, want %d", c.maxRetries, DefaultMaxRetries)
	}
	if c.backoff != DefaultBackoff {
		t.Fatalf("backoff = %v, want %v", c.backoff, DefaultBackoff)
	}
}

func TestOptionsOverrideDefaults(t *testing.T) {
	c := New(nil, nil, WithMaxRetries(2), WithBackoff(time.Millisecond), WithForceFallbackAdapter(true))
	if c.maxRetries != 2 {
		t.Fatalf("maxRetries = %d, want 2", c.maxRetries)
	}
	if c.backoff != time.Millisecond {
		t.Fatalf("backoff = %v, want 1ms", c.backoff)
	}
	if !c.forceFallbackAdapter {
		t.Fatal("expected forceFallbackAdapter = true")
	}
}

func TestContainsAlphaMode(t *testing.T) {
	modes := []wgpu.CompositeAlphaMode{wgpu.CompositeAlphaModeOpaque, wgpu.CompositeAlphaModePremultiplied}
	if !containsAlphaMode(modes, wgpu.CompositeAlphaModePremultiplied) {
		t.Fatal("expected premultiplied to be found")
	}
	if containsAlphaMode(modes, wgpu.CompositeAlphaModeInherit) {
		t.Fatal("expected inherit to be absent")
	}
}

// TestRevalidateFilterSkipsPassesNotYetPipelined exercises §4.10 step 6's
// first guard without a device: a pass with no Built at all, and a pass
// whose Built has no Pipeline yet, are both left alone rather than routed
// through the (nil) binding manager — only a pass that has a pipeline but
// lost its bind group is a recovery candidate.
func TestRevalidateFilterSkipsPassesNotYetPipelined(t *testing.T) {
	f := &filter.Filter{
		Name: "edges",
		Kind: filter.KindRender,
		Passes: []*filter.Pass{
			{Label: "never-built"},                         // Built == nil
			{Label: "pipeline-pending", Built: &pipelinemgr.Built{}}, // Pipeline == nil
		},
	}

	if err := RevalidateFilter(nil, f, nil); err != nil {
		t.Fatalf("RevalidateFilter: %v", err)
	}
}
