// Package texturepool implements C1: a free-list pool of device textures
// keyed by descriptor signature, so repeatedly acquiring/releasing a
// same-shaped scratch texture (e.g. textureTemp) across frames reuses one
// GPU allocation instead of churning the allocator.
package texturepool

import (
	"fmt"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"
)

// Signature is the descriptor-equality key for pooling (§4.1): format,
// dimensions, usage bits, sample count, and depth/array layer count.
type Signature struct {
	Format      wgpu.TextureFormat
	Width       uint32
	Height      uint32
	Usage       wgpu.TextureUsage
	SampleCount uint32
	DepthLayers uint32
}

// Descriptor fully specifies a texture to acquire: its pooling Signature
// plus the label used for the underlying GPU object.
type Descriptor struct {
	Label string
	Signature
}

// Handle is an acquired, caller-owned texture. Handles carry a monotonic
// Generation so a holder can detect a stale view derived before the handle
// was released and reacquired with a different underlying texture (§3
// Texture entry: "Generation bumps on every reacquire").
type Handle struct {
	Texture    *wgpu.Texture
	Generation uint64

	sig Signature
}

// View derives a fresh texture view. Views are never cached across frames
// per §3 ("views are derived on demand and never cached across frames").
func (h *Handle) View() (*wgpu.TextureView, error) {
	return h.Texture.CreateView(nil)
}

// Pool pools device textures by descriptor signature (§4.1). Acquire/Release
// are only ever called from the single render-scheduler goroutine, so the
// pool needs no internal synchronization beyond a defensive mutex for
// misuse detection.
type Pool struct {
	device *wgpu.Device

	mu   sync.Mutex
	idle map[Signature][]*wgpu.Texture
	live map[*wgpu.Texture]Signature

	acquireCount uint64
	releaseCount uint64
	generation   uint64
}

// New creates an empty Pool bound to device.
func New(device *wgpu.Device) *Pool {
	return &Pool{
		device: device,
		idle:   make(map[Signature][]*wgpu.Texture),
		live:   make(map[*wgpu.Texture]Signature),
	}
}

// Acquire returns an idle texture matching desc's signature exactly, or
// allocates a new one. The caller owns the returned Handle until Release.
func (p *Pool) Acquire(desc Descriptor) (*Handle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.generation++
	gen := p.generation

	if bucket := p.idle[desc.Signature]; len(bucket) > 0 {
		tex := bucket[len(bucket)-1]
		p.idle[desc.Signature] = bucket[:len(bucket)-1]
		p.live[tex] = desc.Signature
		p.acquireCount++
		return &Handle{Texture: tex, Generation: gen, sig: desc.Signature}, nil
	}

	tex, err := p.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:     desc.Label,
		Usage:     desc.Usage,
		Dimension: wgpu.TextureDimension2D,
		Size: wgpu.Extent3D{
			Width:              desc.Width,
			Height:             desc.Height,
			DepthOrArrayLayers: max1(desc.DepthLayers),
		},
		Format:        desc.Format,
		MipLevelCount: 1,
		SampleCount:   max1(desc.SampleCount),
	})
	if err != nil {
		return nil, fmt.Errorf("texturepool: allocate %q: %w", desc.Label, err)
	}

	p.live[tex] = desc.Signature
	p.acquireCount++
	return &Handle{Texture: tex, Generation: gen, sig: desc.Signature}, nil
}

// Release returns h's texture to the idle bucket for its signature.
// Releasing a handle this pool did not hand out, or one already released,
// is a programmer error (§4.1) and panics.
func (p *Pool) Release(h *Handle) {
	p.mu.Lock()
	defer p.mu.Unlock()

	sig, ok := p.live[h.Texture]
	if !ok {
		panic("texturepool: release of a destroyed or foreign texture handle")
	}
	delete(p.live, h.Texture)
	p.idle[sig] = append(p.idle[sig], h.Texture)
	p.releaseCount++
}

// LiveCount returns the number of currently acquired (not released)
// textures — used to check the §8 invariant acquire_count − release_count.
func (p *Pool) LiveCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.live)
}

// Destroy drops and releases every pooled texture, idle or live. Called on
// teardown (§4.1) by App.Dispose.
func (p *Pool) Destroy() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, bucket := range p.idle {
		for _, tex := range bucket {
			tex.Release()
		}
	}
	for tex := range p.live {
		tex.Release()
	}
	p.idle = make(map[Signature][]*wgpu.Texture)
	p.live = make(map[*wgpu.Texture]Signature)
}

func max1(v uint32) uint32 {
	if v == 0 {
		return 1
	}
	return v
}
