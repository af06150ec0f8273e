package buffermgr

import (
	"math"
	"testing"
)

func f32(v float32) *int {
	n := int(v)
	return &n
}

func TestBuildRenderLayoutOrdersUniformsBeforeVectors(t *testing.T) {
	bindings := []Binding{
		{Name: "tint", Type: BindingVec3, Value: []float32{1, 0, 0}},
		{Name: "strength", Type: BindingUniform, Value: []float32{0.5}},
		{Name: "radius", Type: BindingUniform, Value: []float32{2}},
	}

	layout := BuildRenderLayout(bindings)

	if layout.Bindings[0].Name != "strength" || layout.Bindings[1].Name != "radius" {
		t.Fatalf("expected uniform bindings first, got %v", layout.Bindings)
	}
	if layout.Bindings[0].ByteOffset() != 0 {
		t.Fatalf("strength offset = %d, want 0", layout.Bindings[0].ByteOffset())
	}
	if layout.Bindings[1].ByteOffset() != 4 {
		t.Fatalf("radius offset = %d, want 4", layout.Bindings[1].ByteOffset())
	}
	// two uniforms = 8 bytes, aligned up to 16 before the vec3 starts.
	if layout.Bindings[2].ByteOffset() != 16 {
		t.Fatalf("tint offset = %d, want 16", layout.Bindings[2].ByteOffset())
	}
	// 16 (uniforms) + 12 (vec3) = 28, aligned up to 32.
	if layout.Size != 32 {
		t.Fatalf("layout size = %d, want 32", layout.Size)
	}
}

func TestBuildRenderLayoutMinimumSize(t *testing.T) {
	layout := BuildRenderLayout(nil)
	if layout.Size != 16 {
		t.Fatalf("empty layout size = %d, want minimum 16", layout.Size)
	}
}

func TestBuildComputeLayoutOneBufferPerBinding(t *testing.T) {
	bindings := []Binding{
		{Name: "input", Type: BindingStorage, Value: make([]float32, 10), Usage: UsageRead},
		{Name: HistogramBindingName, Type: BindingStorage, Size: f32(256 * 4), Usage: UsageWrite},
	}

	layout := BuildComputeLayout(bindings)

	if len(layout.Buffers) != 2 {
		t.Fatalf("expected 2 storage buffers, got %d", len(layout.Buffers))
	}
	if layout.Buffers[0].Size != 48 {
		// 10 floats = 40 bytes, aligned up to 48.
		t.Fatalf("input buffer size = %d, want 48", layout.Buffers[0].Size)
	}
	if layout.Buffers[1].Size != 1024 {
		t.Fatalf("histogram buffer size = %d, want 1024", layout.Buffers[1].Size)
	}
}

func TestAlignUp(t *testing.T) {
	cases := map[[2]int]int{
		{0, 16}:  0,
		{1, 16}:  16,
		{16, 16}: 16,
		{17, 16}: 32,
		{5, 0}:   5,
	}
	for in, want := range cases {
		if got := alignUp(in[0], in[1]); got != want {
			t.Errorf("alignUp(%d, %d) = %d, want %d", in[0], in[1], got, want)
		}
	}
}

func TestEncodeVectorLengthMismatch(t *testing.T) {
	dst := make([]byte, 16)
	b := Binding{Name: "tint", Type: BindingVec3, Value: []float32{1, 2}}
	if err := encode(dst, b); err == nil {
		t.Fatal("expected error for vec3 binding with 2 values")
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	dst := make([]byte, 16)
	b := Binding{Name: "tint", Type: BindingVec4, Value: []float32{1, 2, 3, 4}}
	if err := encode(dst, b); err != nil {
		t.Fatalf("encode: %v", err)
	}
	got := make([]float32, 4)
	for i := range got {
		bits := uint32(dst[i*4]) | uint32(dst[i*4+1])<<8 | uint32(dst[i*4+2])<<16 | uint32(dst[i*4+3])<<24
		got[i] = math.Float32frombits(bits)
	}
	for i, v := range got {
		if v != b.Value[i] {
			t.Errorf("encoded[%d] = %v, want %v", i, v, b.Value[i])
		}
	}
}
