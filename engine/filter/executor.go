package filter

import (
	"encoding/binary"
	"math"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/sequentialgpu/engine/engine/buffermgr"
	"github.com/sequentialgpu/engine/engine/commandqueue"
	"github.com/sequentialgpu/engine/engine/errs"
	"github.com/sequentialgpu/engine/engine/observability"
	"github.com/sequentialgpu/engine/engine/texturepool"
)

// scratchTextureName and msaaTextureName are the two textures every render
// pass may reach for, named per §4.8 step 3.
const (
	scratchTextureName = "textureTemp"
	msaaTextureName    = "textureMASS"

	workgroupSize = 16
)

// SurfaceSource resolves the swap-chain surface's current view, for passes
// whose output is "none" (§3 Pass: "output = none meaning swap-chain
// surface").
type SurfaceSource interface {
	CurrentView() (*wgpu.TextureView, error)
}

// Executor runs a Filter's passes end-to-end (C8).
type Executor struct {
	device   *wgpu.Device
	queue    *wgpu.Queue
	cq       *commandqueue.Queue
	textures *Registry
	surface  SurfaceSource
	observer observability.Observer

	width, height uint32
	surfaceFormat wgpu.TextureFormat

	positionBuffer *wgpu.Buffer
	uvBuffer       *wgpu.Buffer
}

// NewExecutor builds an Executor, creating the single shared full-screen
// triangle vertex buffers every render pass draws with (§4.8 step 5).
func NewExecutor(device *wgpu.Device, queue *wgpu.Queue, cq *commandqueue.Queue, textures *Registry, surface SurfaceSource, observer observability.Observer) (*Executor, error) {
	if observer == nil {
		observer = observability.NoopObserver{}
	}

	// A single triangle covering the viewport: (-1,-1), (3,-1), (-1,3). Its
	// clipped portion is exactly the [-1,1] screen quad, avoiding the
	// diagonal seam a two-triangle quad would need.
	positions := encodeVec2s([][2]float32{{-1, -1}, {3, -1}, {-1, 3}})
	uvs := encodeVec2s([][2]float32{{0, 1}, {2, 1}, {0, -1}})

	posBuf, err := device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "filter:fullscreen-positions",
		Size:  uint64(len(positions)),
		Usage: wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, &errs.InternalError{Op: "create fullscreen triangle position buffer", Reason: err.Error()}
	}
	queue.WriteBuffer(posBuf, 0, positions)

	uvBuf, err := device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "filter:fullscreen-uvs",
		Size:  uint64(len(uvs)),
		Usage: wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		posBuf.Release()
		return nil, &errs.InternalError{Op: "create fullscreen triangle uv buffer", Reason: err.Error()}
	}
	queue.WriteBuffer(uvBuf, 0, uvs)

	return &Executor{
		device: device, queue: queue, cq: cq, textures: textures, surface: surface, observer: observer,
		positionBuffer: posBuf, uvBuffer: uvBuf,
	}, nil
}

// SetDims declares textureTemp and textureMASS at width x height against
// format, re-declaring (and so reacquiring) them only when the signature
// actually changes.
func (e *Executor) SetDims(width, height uint32, format wgpu.TextureFormat) {
	e.width, e.height, e.surfaceFormat = width, height, format

	e.textures.Declare(scratchTextureName, texturepool.Descriptor{
		Label: scratchTextureName,
		Signature: texturepool.Signature{
			Format: format, Width: width, Height: height,
			Usage:       wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopySrc | wgpu.TextureUsageCopyDst,
			SampleCount: 1, DepthLayers: 1,
		},
	})
	e.textures.Declare(msaaTextureName, texturepool.Descriptor{
		Label: msaaTextureName,
		Signature: texturepool.Signature{
			Format: format, Width: width, Height: height,
			Usage:       wgpu.TextureUsageRenderAttachment,
			SampleCount: 4, DepthLayers: 1,
		},
	})
}

// RunFilter runs every active pass of f in order (§4.8). It returns
// brk=true when a terminal pass (output="none") executed, signalling the
// caller to stop iterating filters for this frame.
func (e *Executor) RunFilter(f *Filter) (brk bool, err error) {
	for _, p := range f.Passes {
		if !p.Active || p.Built == nil || p.Built.Binding == nil || p.Built.Binding.BindGroup == nil {
			e.observer.Warnf("filter %q pass %q: not ready, skipping", f.Name, p.Label)
			continue
		}

		if f.Kind == KindCompute {
			if err := e.runCompute(f, p); err != nil {
				return false, err
			}
		} else {
			if err := e.runRender(f, p); err != nil {
				return false, err
			}
		}

		if p.IsTerminal() {
			future, err := e.cq.Flush()
			if err != nil {
				return false, err
			}
			if err := future.Wait(); err != nil {
				return false, err
			}
			f.NeedsRender = false
			return true, nil
		}
	}

	f.NeedsRender = false
	return false, nil
}

// runCompute implements §4.8 step 2: clear the canonical output storage
// buffer (the binding named "histogram", if the filter has one), then
// dispatch ⌈width/16⌉ x ⌈height/16⌉ x 1 workgroups.
func (e *Executor) runCompute(f *Filter, p *Pass) error {
	if f.Buffer != nil {
		if buf := f.Buffer.StorageBuffer(buffermgr.HistogramBindingName); buf != nil {
			size := f.Buffer.StorageBufferSize(buffermgr.HistogramBindingName)
			if err := e.clearStorageBuffer(buf, size); err != nil {
				return err
			}
		}
	}

	pipeline, ok := p.Built.Pipeline.(*wgpu.ComputePipeline)
	if !ok {
		return &errs.PipelineError{Key: p.Label, Reason: "built pipeline is not a compute pipeline"}
	}
	bindGroup := p.Built.Binding.BindGroup

	groupsX := ceilDiv(e.width, workgroupSize)
	groupsY := ceilDiv(e.height, workgroupSize)

	return e.cq.AddComputePass(func(pass *wgpu.ComputePassEncoder) {
		pass.SetPipeline(pipeline)
		pass.SetBindGroup(0, bindGroup, nil)
		pass.DispatchWorkgroups(groupsX, groupsY, 1)
	})
}

// runRender implements §4.8 step 3: render through textureTemp and copy to
// output when output aliases an input, otherwise render directly to
// output (or the swap-chain surface for a terminal pass). Every render
// pass targets the 4x MSAA attachment, resolving into the real target.
func (e *Executor) runRender(f *Filter, p *Pass) error {
	outputView, err := e.resolveOutputView(p)
	if err != nil {
		return err
	}

	aliasing := p.Aliases()
	resolveTarget := outputView
	if aliasing {
		resolveTarget, err = e.textures.View(scratchTextureName)
		if err != nil {
			return err
		}
	}

	msaaView, err := e.textures.View(msaaTextureName)
	if err != nil {
		return err
	}

	pipeline, ok := p.Built.Pipeline.(*wgpu.RenderPipeline)
	if !ok {
		return &errs.PipelineError{Key: p.Label, Reason: "built pipeline is not a render pipeline"}
	}
	bindGroup := p.Built.Binding.BindGroup
	positionBuffer, uvBuffer := e.positionBuffer, e.uvBuffer

	desc := &wgpu.RenderPassDescriptor{
		Label: p.Label,
		ColorAttachments: []wgpu.RenderPassColorAttachment{
			{
				View:          msaaView,
				ResolveTarget: resolveTarget,
				LoadOp:        wgpu.LoadOpClear,
				StoreOp:       wgpu.StoreOpStore,
				ClearValue:    wgpu.Color{R: 0, G: 0, B: 0, A: 0},
			},
		},
	}

	if err := e.cq.AddRenderPass(desc, func(pass *wgpu.RenderPassEncoder) {
		pass.SetPipeline(pipeline)
		pass.SetBindGroup(0, bindGroup, nil)
		pass.SetVertexBuffer(0, positionBuffer, 0, wgpu.WholeSize)
		pass.SetVertexBuffer(1, uvBuffer, 0, wgpu.WholeSize)
		pass.Draw(3, 1, 0, 0)
	}); err != nil {
		return err
	}

	if !aliasing {
		return nil
	}

	srcCopy, err := e.textures.ImageCopyTexture(scratchTextureName)
	if err != nil {
		return err
	}
	dstCopy, err := e.textures.ImageCopyTexture(p.Output)
	if err != nil {
		return err
	}
	return e.cq.AddTextureCopy(srcCopy, dstCopy, wgpu.Extent3D{Width: e.width, Height: e.height, DepthOrArrayLayers: 1})
}

func (e *Executor) resolveOutputView(p *Pass) (*wgpu.TextureView, error) {
	if p.IsTerminal() {
		view, err := e.surface.CurrentView()
		if err != nil {
			return nil, &errs.InternalError{Op: "resolve surface view", Reason: err.Error()}
		}
		return view, nil
	}
	return e.textures.View(p.Output)
}

// clearStorageBuffer zeroes buf via a transient staging buffer (§4.8 step
// 2): zeros are written into the staging buffer with queue.WriteBuffer and
// then copied into buf by a buffer copy recorded on the command queue, so
// the clear is ordered with the batch's other commands rather than written
// into buf directly.
func (e *Executor) clearStorageBuffer(buf *wgpu.Buffer, size int) error {
	staging, err := e.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "filter:clear-staging",
		Size:  uint64(size),
		Usage: wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return &errs.InternalError{Op: "clear storage buffer", Reason: err.Error()}
	}
	defer staging.Release()

	e.queue.WriteBuffer(staging, 0, make([]byte, size))
	return e.cq.AddBufferCopy(staging, 0, buf, 0, uint64(size))
}

func ceilDiv(a, b uint32) uint32 {
	return (a + b - 1) / b
}

func encodeVec2s(values [][2]float32) []byte {
	out := make([]byte, len(values)*8)
	for i, v := range values {
		binary.LittleEndian.PutUint32(out[i*8:], math.Float32bits(v[0]))
		binary.LittleEndian.PutUint32(out[i*8+4:], math.Float32bits(v[1]))
	}
	return out
}
