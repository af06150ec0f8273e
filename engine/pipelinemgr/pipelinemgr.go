// Package pipelinemgr implements C5: turning one filter pass into a ready
// pipeline + bind group, driving the shader/layout/pipeline caches (C3) and
// the binding resolver (C4).
package pipelinemgr

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/cogentcore/webgpu/wgpu"

	"github.com/sequentialgpu/engine/engine/bindingmgr"
	"github.com/sequentialgpu/engine/engine/errs"
	"github.com/sequentialgpu/engine/engine/pipelinecache"
	"github.com/sequentialgpu/engine/engine/shader"
)

// fixedVertexStride is the byte stride of each of the two fixed vertex
// buffers (one vec2 each: position, uv), per §4.5 step 5 "two vec2
// attributes, stepMode=vertex, arrayStride=8".
const fixedVertexStride = 8

// PassSpec is everything the Pipeline Manager needs to build one pass,
// independent of the filter/pass data model in engine/filter (which
// constructs this from a Pass and supplies the live Resources separately,
// avoiding an import cycle).
type PassSpec struct {
	Kind          string // "render" or "compute"
	ShaderRef     string
	InputCount    int
	Buffer        bindingmgr.BufferKind
	BufferBindingIndex int
	SurfaceFormat wgpu.TextureFormat
	SampleCount   uint32 // ignored for compute; forced to 4 for render, 1 for compute by Build
}

// Built is the fully resolved pipeline state recorded onto a pass.
type Built struct {
	Shader    *shader.Shader
	Pipeline  any // *wgpu.RenderPipeline or *wgpu.ComputePipeline
	Binding   *bindingmgr.Bound
}

// Manager builds and caches pipelines for filter passes.
type Manager struct {
	device  *wgpu.Device
	cache   *pipelinecache.Cache
	binding *bindingmgr.Manager
	sources *sourceCache
	pool    worker.DynamicWorkerPool
	dims    pipelinecache.Dims
}

func New(device *wgpu.Device, cache *pipelinecache.Cache, binding *bindingmgr.Manager, pool worker.DynamicWorkerPool) *Manager {
	return &Manager{
		device:  device,
		cache:   cache,
		binding: binding,
		sources: newSourceCache(),
		pool:    pool,
	}
}

// SetDims updates the dims new cache entries are tagged with.
func (m *Manager) SetDims(width, height uint32) {
	m.dims = pipelinecache.Dims{Width: width, Height: height}
	m.binding.SetDims(width, height)
}

// Prefetch fans out source loading for every distinct ref across the
// worker pool (§C5/C9 wiring: "shader-source prefetch fan-out"), blocking
// until every fetch completes so the subsequent per-pass Build loop only
// ever hits the cache.
func (m *Manager) Prefetch(refs []string, fetch Fetcher) {
	var wg sync.WaitGroup
	taskID := 0
	m.sources.prefetch(refs, fetch, func(task func()) {
		wg.Add(1)
		id := taskID
		taskID++
		m.pool.SubmitTask(worker.Task{
			ID: id,
			Do: func() (any, error) {
				defer wg.Done()
				task()
				return nil, nil
			},
		})
	})
	wg.Wait()
}

// Build executes §4.5's seven steps for one pass: load source, acquire
// shader module + bind-group layout + pipeline from C3 (keyed by a fresh
// C4 resolution), await device idle, and hand back the initial bind group.
func (m *Manager) Build(label string, spec PassSpec, res bindingmgr.Resources, fetch Fetcher) (*Built, error) {
	source, err := m.sources.get(spec.ShaderRef, fetch)
	if err != nil {
		return nil, &errs.PipelineError{Key: label, Reason: "load shader source: " + err.Error()}
	}

	kind := shader.KindRender
	if spec.Kind == "compute" {
		kind = shader.KindCompute
	}
	sh, err := shader.Parse(spec.ShaderRef, kind, source)
	if err != nil {
		return nil, &errs.PipelineError{Key: label, Reason: err.Error()}
	}

	module, err := m.cache.ShaderModule(spec.ShaderRef, source, m.dims)
	if err != nil {
		return nil, err
	}

	contract := bindingmgr.Contract{
		Kind:               spec.Kind,
		InputCount:         spec.InputCount,
		Buffer:             spec.Buffer,
		BufferBindingIndex: spec.BufferBindingIndex,
	}
	bound, err := m.binding.Resolve(label, contract, res)
	if err != nil {
		return nil, err
	}

	sampleCount := uint32(1)
	if spec.Kind != "compute" {
		sampleCount = 4
	}

	// layout_entries identifies the layout *shape*, not the pass — two passes
	// with the same shader_ref/surface_format/sample_count and an identically
	// shaped contract must resolve to the same cached pipeline (§4.3).
	pipelineSpec := pipelinecache.PipelineSpec{
		Kind:          spec.Kind,
		ShaderRef:     spec.ShaderRef,
		SurfaceFormat: fmt.Sprintf("%d", spec.SurfaceFormat),
		SampleCount:   sampleCount,
		LayoutEntries: []string{pipelinecache.LayoutKey(contract.LayoutSpec())},
		VertexSpec:    "vec2,vec2,stride=8",
		ComputeSpec:   sh.ComputeEntryPoint(),
		FragmentSpec:  sh.FragmentEntryPoint(),
	}

	pipeline, err := m.cache.Pipeline(pipelineSpec, func() (any, error) {
		layout, err := m.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
			Label:            label + ":pipeline-layout",
			BindGroupLayouts: []*wgpu.BindGroupLayout{bound.Layout},
		})
		if err != nil {
			return nil, err
		}

		if spec.Kind == "compute" {
			return m.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
				Label:  label + ":compute-pipeline",
				Layout: layout,
				Compute: wgpu.ProgrammableStageDescriptor{
					Module:     module,
					EntryPoint: sh.ComputeEntryPoint(),
				},
			})
		}

		return m.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
			Label:  label + ":render-pipeline",
			Layout: layout,
			Vertex: wgpu.VertexState{
				Module:     module,
				EntryPoint: sh.VertexEntryPoint(),
				Buffers:    fixedVertexBufferLayouts(),
			},
			Fragment: &wgpu.FragmentState{
				Module:     module,
				EntryPoint: sh.FragmentEntryPoint(),
				Targets: []wgpu.ColorTargetState{
					{Format: spec.SurfaceFormat, WriteMask: wgpu.ColorWriteMaskAll},
				},
			},
			Primitive: wgpu.PrimitiveState{
				Topology: wgpu.PrimitiveTopologyTriangleList,
			},
			Multisample: wgpu.MultisampleState{
				Count: sampleCount,
				Mask:  0xFFFFFFFF,
			},
		})
	}, m.dims)
	if err != nil {
		return nil, err
	}

	// The three LRU caches already evict inline on insert-beyond-capacity
	// (§4.3), so there is no separate end-of-build maintenance step here.
	m.device.Poll(true, nil)

	return &Built{Shader: sh, Pipeline: pipeline, Binding: bound}, nil
}

// fixedVertexBufferLayouts builds the two fixed vec2 vertex buffers (position,
// uv) shared by every render pass (§4.5 step 5).
func fixedVertexBufferLayouts() []wgpu.VertexBufferLayout {
	return []wgpu.VertexBufferLayout{
		{
			ArrayStride: fixedVertexStride,
			StepMode:    wgpu.VertexStepModeVertex,
			Attributes: []wgpu.VertexAttribute{
				{Format: wgpu.VertexFormatFloat32x2, Offset: 0, ShaderLocation: 0},
			},
		},
		{
			ArrayStride: fixedVertexStride,
			StepMode:    wgpu.VertexStepModeVertex,
			Attributes: []wgpu.VertexAttribute{
				{Format: wgpu.VertexFormatFloat32x2, Offset: 0, ShaderLocation: 1},
			},
		},
	}
}
