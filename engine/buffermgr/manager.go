package buffermgr

import (
	"github.com/cogentcore/webgpu/wgpu"

	"github.com/sequentialgpu/engine/engine/errs"
)

// Manager owns the GPU buffer(s) backing one filter's buffer_attachment: a
// single uniform buffer for a render filter, or one storage buffer per
// binding for a compute filter (§4.2).
type Manager struct {
	device *wgpu.Device
	queue  *wgpu.Queue

	filterName string
	layout     Layout

	uniform *wgpu.Buffer

	storage     map[string]*wgpu.Buffer
	storageMeta map[string]StorageBufferLayout
}

// NewRenderManager creates the uniform buffer for a render filter's
// buffer_attachment and writes every binding's initial value into it.
func NewRenderManager(device *wgpu.Device, queue *wgpu.Queue, filterName string, bindings []Binding) (*Manager, error) {
	layout := BuildRenderLayout(bindings)

	buf, err := device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: filterName + ":uniform",
		Size:  uint64(layout.Size),
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, &errs.BufferError{Filter: filterName, Reason: "create uniform buffer: " + err.Error()}
	}

	m := &Manager{
		device:     device,
		queue:      queue,
		filterName: filterName,
		layout:     Layout{Render: &layout},
		uniform:    buf,
	}

	data := make([]byte, layout.Size)
	for _, b := range layout.Bindings {
		if err := encode(data, b); err != nil {
			return nil, err
		}
	}
	queue.WriteBuffer(buf, 0, data)

	return m, nil
}

// NewComputeManager creates one storage buffer per binding in a compute
// filter's buffer_attachment and writes each one's initial value.
func NewComputeManager(device *wgpu.Device, queue *wgpu.Queue, filterName string, bindings []Binding) (*Manager, error) {
	layout := BuildComputeLayout(bindings)

	m := &Manager{
		device:      device,
		queue:       queue,
		filterName:  filterName,
		layout:      Layout{Compute: &layout},
		storage:     make(map[string]*wgpu.Buffer, len(layout.Buffers)),
		storageMeta: make(map[string]StorageBufferLayout, len(layout.Buffers)),
	}

	for _, sb := range layout.Buffers {
		buf, err := device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: filterName + ":" + sb.Binding.Name,
			Size:  uint64(sb.Size),
			Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst | wgpu.BufferUsageCopySrc,
		})
		if err != nil {
			return nil, &errs.BufferError{Filter: filterName, Binding: sb.Binding.Name, Reason: "create storage buffer: " + err.Error()}
		}

		data := make([]byte, sb.Size)
		if err := encode(data, sb.Binding); err != nil {
			return nil, err
		}
		queue.WriteBuffer(buf, 0, data)

		m.storage[sb.Binding.Name] = buf
		m.storageMeta[sb.Binding.Name] = sb
	}

	return m, nil
}

// IsRender reports whether this manager backs a render filter's single
// uniform buffer.
func (m *Manager) IsRender() bool { return m.layout.Render != nil }

// UniformBuffer returns the render filter's single uniform buffer.
func (m *Manager) UniformBuffer() *wgpu.Buffer { return m.uniform }

// StorageBuffer returns the named compute filter storage buffer, or nil if
// no such binding exists.
func (m *Manager) StorageBuffer(name string) *wgpu.Buffer { return m.storage[name] }

// StorageBuffers returns every compute filter storage buffer keyed by
// binding name, for bind-group construction.
func (m *Manager) StorageBuffers() map[string]*wgpu.Buffer { return m.storage }

// StorageBufferSize returns the byte size of the named storage buffer, or
// 0 if no such binding exists.
func (m *Manager) StorageBufferSize(name string) int { return m.storageMeta[name].Size }

// Update applies a partial update to one named binding (§4.2): it
// re-encodes the value using the binding's recorded type and writes it to
// its buffer at its recorded byte offset. An unknown binding name or a
// value whose length doesn't match the binding's type is a ConfigError.
func (m *Manager) Update(name string, value []float32) error {
	if m.layout.Render != nil {
		for i, b := range m.layout.Render.Bindings {
			if b.Name != name {
				continue
			}
			if err := checkValueLength(b, value); err != nil {
				return err
			}
			updated := b
			updated.Value = value
			updated.byteOffset = 0
			data := make([]byte, calculateSize(updated))
			if err := encode(data, updated); err != nil {
				return err
			}
			m.queue.WriteBuffer(m.uniform, uint64(b.byteOffset), data)
			m.layout.Render.Bindings[i].Value = value
			return nil
		}
		return &errs.ConfigError{Field: name, Reason: "unknown binding"}
	}

	meta, ok := m.storageMeta[name]
	if !ok {
		return &errs.ConfigError{Field: name, Reason: "unknown binding"}
	}
	if err := checkValueLength(meta.Binding, value); err != nil {
		return err
	}
	updated := meta.Binding
	updated.Value = value
	updated.byteOffset = 0
	data := make([]byte, meta.Size)
	if err := encode(data, updated); err != nil {
		return err
	}
	m.queue.WriteBuffer(m.storage[name], 0, data)
	meta.Binding.Value = value
	m.storageMeta[name] = meta
	return nil
}

// checkValueLength validates a partial update's value against b's type
// before encoding, surfacing a ConfigError (a caller-facing configuration
// mistake) rather than encode's internal BufferError.
func checkValueLength(b Binding, value []float32) error {
	want := 0
	switch b.Type {
	case BindingUniform:
		want = 1
	case BindingVec2:
		want = 2
	case BindingVec3:
		want = 3
	case BindingVec4:
		want = 4
	case BindingMat4:
		want = 16
	case BindingFloat, BindingStorage:
		if len(value) == 0 {
			return &errs.ConfigError{Field: b.Name, Reason: "missing value"}
		}
		if b.Size != nil && len(value)*4 != *b.Size {
			return &errs.ConfigError{Field: b.Name, Reason: "value length mismatch"}
		}
		return nil
	}
	if len(value) != want {
		return &errs.ConfigError{Field: b.Name, Reason: "value length mismatch"}
	}
	return nil
}

// Destroy releases every GPU buffer this manager owns.
func (m *Manager) Destroy() {
	if m.uniform != nil {
		m.uniform.Release()
		m.uniform = nil
	}
	for name, buf := range m.storage {
		buf.Release()
		delete(m.storage, name)
	}
}
