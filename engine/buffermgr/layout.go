package buffermgr

// Layout is the computed byte layout for one filter's buffer attachment:
// each binding's offset within the buffer (or, for a compute filter, within
// its own dedicated storage buffer) plus the total buffer size(s).
type Layout struct {
	// Render is non-nil for a render filter: one uniform buffer holding
	// every binding, uniform-typed first then every other type, per §4.2.
	Render *RenderLayout

	// Compute is non-nil for a compute filter: one storage buffer per
	// readable binding.
	Compute *ComputeLayout
}

// RenderLayout is the single concatenated uniform buffer layout for a render
// filter.
type RenderLayout struct {
	Bindings []Binding
	Size     int
}

// ComputeLayout holds one storage buffer layout per binding for a compute
// filter.
type ComputeLayout struct {
	Buffers []StorageBufferLayout
}

// StorageBufferLayout is one compute filter's storage buffer: a single
// binding occupying the whole buffer.
type StorageBufferLayout struct {
	Binding Binding
	Size    int
}

// HistogramBindingName is the canonical storage binding name the histogram
// compute pass writes to (§4.2: "If a binding named histogram exists, it is
// the canonical output").
const HistogramBindingName = "histogram"

// BuildRenderLayout implements §4.2's render filter layout: concatenate all
// uniform-typed bindings first (4 bytes each), align up to 16, append every
// other binding (float, vector, matrix, storage) at its calculate_size,
// align the final size up to 16. Minimum size 16 bytes.
func BuildRenderLayout(bindings []Binding) RenderLayout {
	ordered := make([]Binding, 0, len(bindings))
	for _, b := range bindings {
		if b.Type == BindingUniform {
			ordered = append(ordered, b)
		}
	}
	offset := 0
	for i := range ordered {
		ordered[i].byteOffset = offset
		offset += calculateSize(ordered[i])
	}
	offset = alignUp(offset, 16)

	for _, b := range bindings {
		if b.Type != BindingUniform {
			b.byteOffset = offset
			offset += calculateSize(b)
			ordered = append(ordered, b)
		}
	}
	size := alignUp(offset, 16)
	if size < 16 {
		size = 16
	}

	return RenderLayout{Bindings: ordered, Size: size}
}

// BuildComputeLayout implements §4.2's compute filter layout: one storage
// buffer per binding in the attachment, each sized by calculate_size padded
// to 16.
func BuildComputeLayout(bindings []Binding) ComputeLayout {
	buffers := make([]StorageBufferLayout, 0, len(bindings))
	for _, b := range bindings {
		b.byteOffset = 0
		size := alignUp(calculateSize(b), 16)
		buffers = append(buffers, StorageBufferLayout{Binding: b, Size: size})
	}
	return ComputeLayout{Buffers: buffers}
}
