// Package bindingmgr implements C4: building the layout entries and bind
// group for a filter pass from its fixed contract (§4.4) — a filtering
// sampler, one texture per input, and an optional uniform/storage buffer —
// and re-keying through the layout cache whenever an input texture is
// replaced.
package bindingmgr

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/sequentialgpu/engine/engine/errs"
	"github.com/sequentialgpu/engine/engine/pipelinecache"
)

// BufferKind distinguishes a render filter's uniform attachment from a
// compute filter's storage attachment.
type BufferKind int

const (
	BufferNone BufferKind = iota
	BufferUniform
	BufferStorage
)

// defaultBufferBindingIndex is §4.4's "default 3" for attachment.binding_index.
const defaultBufferBindingIndex = 3

// Contract is one pass's fixed binding shape: binding 0 is always the
// filtering sampler, bindings 1..InputCount are 2D float textures, and an
// optional buffer sits at BufferBindingIndex.
type Contract struct {
	Kind               string // "render" or "compute", mirrors pipelinecache.LayoutSpec.Kind
	InputCount         int
	Buffer             BufferKind
	BufferBindingIndex int // 0 means "use default 3"
}

func (c Contract) bufferBindingIndex() int {
	if c.BufferBindingIndex != 0 {
		return c.BufferBindingIndex
	}
	return defaultBufferBindingIndex
}

// LayoutSpec returns contract's canonical bind-group layout shape, the same
// value used to key C3's layout cache — exported so a caller needing to key
// off the identical layout shape (e.g. C5's pipeline cache key) doesn't have
// to re-derive it.
func (c Contract) LayoutSpec() pipelinecache.LayoutSpec {
	kind := ""
	idx := 0
	if c.Buffer != BufferNone {
		if c.Buffer == BufferUniform {
			kind = "uniform"
		} else {
			kind = "storage"
		}
		idx = c.bufferBindingIndex()
	}
	return pipelinecache.LayoutSpec{
		Kind:               c.Kind,
		InputCount:         c.InputCount,
		HasBuffer:          c.Buffer != BufferNone,
		BufferKind:         kind,
		BufferBindingIndex: idx,
	}
}

// Resources is the set of GPU objects a Manager needs to resolve one pass's
// bind group: one view per input texture, and the buffer backing the
// optional uniform/storage binding.
type Resources struct {
	InputViews []*wgpu.TextureView
	Buffer     *wgpu.Buffer
}

// Bound is a resolved pass binding: the layout (possibly shared via C3) and
// the freshly-built bind group for this pass's current resources.
type Bound struct {
	Layout    *wgpu.BindGroupLayout
	BindGroup *wgpu.BindGroup
}

// Manager resolves Contracts into bind groups, driving the pipeline cache's
// layout cache (C3) for the layout half and building a fresh bind group
// (and a fresh sampler) every call, per §4.4.
type Manager struct {
	device *wgpu.Device
	queue  *wgpu.Queue
	cache  *pipelinecache.Cache
	dims   pipelinecache.Dims
}

func New(device *wgpu.Device, queue *wgpu.Queue, cache *pipelinecache.Cache) *Manager {
	return &Manager{device: device, queue: queue, cache: cache}
}

// SetDims updates the dims new layouts are tagged with, so a later resize
// can evaluate restore compatibility (§4.3).
func (m *Manager) SetDims(width, height uint32) {
	m.dims = pipelinecache.Dims{Width: width, Height: height}
}

// Resolve builds (or fetches from cache) contract's bind-group layout, then
// always constructs a fresh bind group and sampler against res — the
// operation never mutates pipeline cache entries (§4.4).
func (m *Manager) Resolve(label string, contract Contract, res Resources) (*Bound, error) {
	if len(res.InputViews) != contract.InputCount {
		return nil, &errs.BindingError{Filter: label, Reason: fmt.Sprintf("expected %d input views, got %d", contract.InputCount, len(res.InputViews))}
	}
	if contract.Buffer != BufferNone && res.Buffer == nil {
		return nil, &errs.BindingError{Filter: label, Reason: "contract declares a buffer binding but no buffer was supplied"}
	}

	visibility := wgpu.ShaderStageFragment
	if contract.Kind == "compute" {
		visibility = wgpu.ShaderStageCompute
	}

	layout, err := m.cache.Layout(contract.LayoutSpec(), func(key string) (*wgpu.BindGroupLayout, error) {
		return m.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
			Label:   "layout:" + key,
			Entries: buildLayoutEntries(contract, visibility),
		})
	}, m.dims)
	if err != nil {
		return nil, &errs.BindingError{Filter: label, Reason: err.Error()}
	}

	sampler, err := m.device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:        label + ":sampler",
		AddressModeU: wgpu.AddressModeClampToEdge,
		AddressModeV: wgpu.AddressModeClampToEdge,
		AddressModeW: wgpu.AddressModeClampToEdge,
		MagFilter:    wgpu.FilterModeLinear,
		MinFilter:    wgpu.FilterModeLinear,
		MipmapFilter: wgpu.MipmapFilterModeLinear,
		LodMinClamp:  0,
		LodMaxClamp:  32,
	})
	if err != nil {
		return nil, &errs.BindingError{Filter: label, Reason: "create sampler: " + err.Error()}
	}

	entries := make([]wgpu.BindGroupEntry, 0, 2+contract.InputCount)
	entries = append(entries, wgpu.BindGroupEntry{Binding: 0, Sampler: sampler})
	for i, view := range res.InputViews {
		entries = append(entries, wgpu.BindGroupEntry{Binding: uint32(i + 1), TextureView: view})
	}
	if contract.Buffer != BufferNone {
		entries = append(entries, wgpu.BindGroupEntry{
			Binding: uint32(contract.bufferBindingIndex()),
			Buffer:  res.Buffer,
			Offset:  0,
			Size:    wgpu.WholeSize,
		})
	}

	bindGroup, err := m.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   label + ":bindgroup",
		Layout:  layout,
		Entries: entries,
	})
	if err != nil {
		return nil, &errs.BindingError{Filter: label, Reason: "create bind group: " + err.Error()}
	}

	return &Bound{Layout: layout, BindGroup: bindGroup}, nil
}

func buildLayoutEntries(contract Contract, visibility wgpu.ShaderStage) []wgpu.BindGroupLayoutEntry {
	entries := make([]wgpu.BindGroupLayoutEntry, 0, 2+contract.InputCount)
	entries = append(entries, wgpu.BindGroupLayoutEntry{
		Binding:    0,
		Visibility: visibility,
		Sampler:    wgpu.SamplerBindingLayout{Type: wgpu.SamplerBindingTypeFiltering},
	})
	for i := 0; i < contract.InputCount; i++ {
		entries = append(entries, wgpu.BindGroupLayoutEntry{
			Binding:    uint32(i + 1),
			Visibility: visibility,
			Texture: wgpu.TextureBindingLayout{
				SampleType:    wgpu.TextureSampleTypeFloat,
				ViewDimension: wgpu.TextureViewDimension2D,
			},
		})
	}
	if contract.Buffer != BufferNone {
		bufType := wgpu.BufferBindingTypeUniform
		if contract.Buffer == BufferStorage {
			bufType = wgpu.BufferBindingTypeStorage
		}
		entries = append(entries, wgpu.BindGroupLayoutEntry{
			Binding:    uint32(contract.bufferBindingIndex()),
			Visibility: visibility,
			Buffer:     wgpu.BufferBindingLayout{Type: bufType},
		})
	}
	return entries
}
