package frametick

import "github.com/cogentcore/webgpu/wgpu"

// ManualSource is a dependency-free Source for deterministic tests. Each
// call to Tick invokes the registered tick callback exactly once; Run blocks
// until Stop is called, without itself generating ticks — callers drive
// Tick explicitly against a virtual clock.
type ManualSource struct {
	width, height int

	onResize func(width, height int)
	onTick   func()

	stopCh chan struct{}
}

// NewManualSource creates a ManualSource with the given initial surface size.
func NewManualSource(width, height int) *ManualSource {
	return &ManualSource{
		width:  width,
		height: height,
		stopCh: make(chan struct{}),
	}
}

func (m *ManualSource) SurfaceDescriptor() *wgpu.SurfaceDescriptor {
	return nil
}

func (m *ManualSource) Width() int  { return m.width }
func (m *ManualSource) Height() int { return m.height }

func (m *ManualSource) SetResizeCallback(callback func(width, height int)) {
	m.onResize = callback
}

func (m *ManualSource) SetTickCallback(callback func()) {
	m.onTick = callback
}

// Resize updates the stored surface size and invokes the resize callback.
func (m *ManualSource) Resize(width, height int) {
	m.width, m.height = width, height
	if m.onResize != nil {
		m.onResize(width, height)
	}
}

// Tick invokes the registered tick callback once, synchronously. Safe to
// call directly from a test without starting Run.
func (m *ManualSource) Tick() {
	if m.onTick != nil {
		m.onTick()
	}
}

func (m *ManualSource) Run() {
	<-m.stopCh
}

func (m *ManualSource) Stop() {
	select {
	case <-m.stopCh:
	default:
		close(m.stopCh)
	}
}
