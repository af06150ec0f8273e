package bindingmgr

import "testing"

func TestContractBufferBindingIndexDefaultsToThree(t *testing.T) {
	c := Contract{Kind: "render", InputCount: 2, Buffer: BufferUniform}
	if got := c.bufferBindingIndex(); got != 3 {
		t.Fatalf("bufferBindingIndex() = %d, want 3", got)
	}
}

func TestContractBufferBindingIndexOverride(t *testing.T) {
	c := Contract{Kind: "compute", InputCount: 1, Buffer: BufferStorage, BufferBindingIndex: 5}
	if got := c.bufferBindingIndex(); got != 5 {
		t.Fatalf("bufferBindingIndex() = %d, want 5", got)
	}
}

func TestLayoutSpecOmitsBufferFieldsWhenNone(t *testing.T) {
	c := Contract{Kind: "render", InputCount: 1, Buffer: BufferNone}
	spec := c.LayoutSpec()
	if spec.HasBuffer {
		t.Fatal("expected HasBuffer = false")
	}
	if spec.BufferKind != "" || spec.BufferBindingIndex != 0 {
		t.Fatalf("expected zero buffer fields, got %+v", spec)
	}
}

func TestLayoutSpecDistinguishesUniformFromStorage(t *testing.T) {
	render := Contract{Kind: "render", InputCount: 1, Buffer: BufferUniform}.LayoutSpec()
	compute := Contract{Kind: "compute", InputCount: 1, Buffer: BufferStorage}.LayoutSpec()

	if render.BufferKind != "uniform" {
		t.Fatalf("render BufferKind = %q, want uniform", render.BufferKind)
	}
	if compute.BufferKind != "storage" {
		t.Fatalf("compute BufferKind = %q, want storage", compute.BufferKind)
	}
}

func TestBuildLayoutEntriesShape(t *testing.T) {
	c := Contract{Kind: "render", InputCount: 2, Buffer: BufferUniform}
	entries := buildLayoutEntries(c, 0)
	if len(entries) != 4 { // sampler + 2 textures + buffer
		t.Fatalf("entries = %d, want 4", len(entries))
	}
	if entries[0].Binding != 0 {
		t.Fatalf("sampler binding = %d, want 0", entries[0].Binding)
	}
	if entries[1].Binding != 1 || entries[2].Binding != 2 {
		t.Fatalf("texture bindings = %d,%d, want 1,2", entries[1].Binding, entries[2].Binding)
	}
	if entries[3].Binding != 3 {
		t.Fatalf("buffer binding = %d, want 3", entries[3].Binding)
	}
}
