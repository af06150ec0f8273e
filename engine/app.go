// Package engine is the public surface of the filter engine (§6): a
// validated Settings tree goes into CreateApp, which wires C1–C10 plus the
// frame-tick source into one App the host drives by starting its
// frametick.Source and otherwise only touches through App's methods.
package engine

import (
	"fmt"
	goruntime "runtime"
	"sort"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/cogentcore/webgpu/wgpu"

	"github.com/sequentialgpu/engine/engine/bindingmgr"
	"github.com/sequentialgpu/engine/engine/buffermgr"
	"github.com/sequentialgpu/engine/engine/commandqueue"
	"github.com/sequentialgpu/engine/engine/errs"
	"github.com/sequentialgpu/engine/engine/filter"
	"github.com/sequentialgpu/engine/engine/frametick"
	"github.com/sequentialgpu/engine/engine/histogram"
	"github.com/sequentialgpu/engine/engine/observability"
	"github.com/sequentialgpu/engine/engine/pipelinecache"
	"github.com/sequentialgpu/engine/engine/pipelinemgr"
	"github.com/sequentialgpu/engine/engine/recovery"
	"github.com/sequentialgpu/engine/engine/renderqueue"
	"github.com/sequentialgpu/engine/engine/texturepool"
)

const (
	maxTextureDim   = 16384
	maxTextureDepth = 2048
)

// validPresentationFormats is §6's enum for Settings.PresentationFormat.
var validPresentationFormats = map[string]wgpu.TextureFormat{
	"rgba8unorm":      wgpu.TextureFormatRGBA8Unorm,
	"rgba8unorm-srgb": wgpu.TextureFormatRGBA8UnormSrgb,
	"bgra8unorm":      wgpu.TextureFormatBGRA8Unorm,
	"rgba16float":     wgpu.TextureFormatRGBA16Float,
}

// TextureSize bounds a declared texture (§6: width/height ≤ 16384, depth ≤
// 2048). Nil on TextureSettings means "match the surface size".
type TextureSize struct {
	Width, Height, Depth uint32
}

// TextureSettings declares one named texture the filter graph can
// reference (§3 Texture entry, §6 textures map).
type TextureSettings struct {
	Label       string
	Size        *TextureSize
	Format      wgpu.TextureFormat // zero value defers to PresentationFormat
	UsageFlags  wgpu.TextureUsage
	SampleCount uint32 // 1 or 4; zero defaults to 1
}

func (t TextureSettings) validate(name string) error {
	if t.Size != nil {
		if t.Size.Width > maxTextureDim || t.Size.Height > maxTextureDim {
			return &errs.ConfigError{Field: "textures." + name + ".size", Reason: "width/height must be <= 16384"}
		}
		if t.Size.Depth > maxTextureDepth {
			return &errs.ConfigError{Field: "textures." + name + ".size.depth", Reason: "must be <= 2048"}
		}
	}
	if t.UsageFlags&wgpu.TextureUsageStorageBinding != 0 && t.UsageFlags&wgpu.TextureUsageRenderAttachment != 0 {
		return &errs.ConfigError{Field: "textures." + name + ".usage_flags", Reason: "storage_binding and render_attachment cannot both be set"}
	}
	if t.SampleCount != 0 && t.SampleCount != 1 && t.SampleCount != 4 {
		return &errs.ConfigError{Field: "textures." + name + ".sample_count", Reason: "must be 1 or 4"}
	}
	return nil
}

func (t TextureSettings) descriptor(name string, fallbackFormat wgpu.TextureFormat, surfaceWidth, surfaceHeight uint32) texturepool.Descriptor {
	width, height, depth := surfaceWidth, surfaceHeight, uint32(1)
	if t.Size != nil {
		width, height = t.Size.Width, t.Size.Height
		if t.Size.Depth > 0 {
			depth = t.Size.Depth
		}
	}
	format := fallbackFormat
	if t.Format != 0 {
		format = t.Format
	}
	sampleCount := t.SampleCount
	if sampleCount == 0 {
		sampleCount = 1
	}
	usage := t.UsageFlags
	if usage == 0 {
		usage = wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst
	}
	return texturepool.Descriptor{
		Label: t.Label,
		Signature: texturepool.Signature{
			Format: format, Width: width, Height: height,
			Usage: usage, SampleCount: sampleCount, DepthLayers: depth,
		},
	}
}

// PassSettings declares one pass of a filter (§3 Pass, §6 "each pass has
// {input_texture[], shader_ref}"). Output is carried explicitly here (the
// full Pass data model requires it even though §6's own prose elides it);
// an empty Output is the terminal "render to swap-chain" case.
type PassSettings struct {
	InputTextures []string
	Output        string
	ShaderRef     string
}

// BufferAttachmentSettings declares a filter's optional parameter buffer
// (§3 Buffer attachment, §6). Bindings 0 and 1 within group 0 are reserved
// for the sampler and primary texture: a BindingIndex of 0 selects the
// default binding 3, and Validate rejects a BindingIndex of 1 in group 0.
type BufferAttachmentSettings struct {
	GroupIndex   int
	BindingIndex int // 0 means "use the binding manager's default (3)"
	Bindings     map[string]buffermgr.Binding
}

// FilterSettings declares one named filter (§3 Filter, §6 filters map).
type FilterSettings struct {
	Active           bool
	Kind             filter.Kind
	Passes           []PassSettings
	BufferAttachment *BufferAttachmentSettings
}

func (f FilterSettings) validate(name string) error {
	for i, p := range f.Passes {
		if p.ShaderRef == "" {
			return &errs.ConfigError{Field: fmt.Sprintf("filters.%s.passes[%d].shader_ref", name, i), Reason: "required"}
		}
	}
	if ba := f.BufferAttachment; ba != nil {
		if ba.GroupIndex == 0 && ba.BindingIndex == 1 {
			return &errs.ConfigError{
				Field:  fmt.Sprintf("filters.%s.buffer_attachment.binding_index", name),
				Reason: "bindings 0 and 1 in group 0 are reserved for the sampler and primary texture",
			}
		}
	}
	return nil
}

// Settings is App's construction input (§6). Validate runs automatically
// inside CreateApp; a caller that wants to fail fast before acquiring a
// device may also call it directly.
type Settings struct {
	PresentationFormat string
	Width, Height      uint32

	Textures map[string]TextureSettings
	Filters  map[string]FilterSettings

	// ShaderFetcher loads WGSL source by shader_ref (§4.5 step 1).
	ShaderFetcher pipelinemgr.Fetcher

	// FrameSource supplies the surface descriptor and drives the tick
	// loop (design note §9 "event-loop driven render -> frame-tick
	// source").
	FrameSource frametick.Source

	// HistogramFilterKey and ThresholdFilterKey name the two filters the
	// §4.9 feedback loop wires together: the compute filter whose
	// "histogram" storage binding is read back, and the render filter
	// whose samplePoint/range bindings are written. Either left empty
	// disables the feedback loop entirely.
	HistogramFilterKey string
	ThresholdFilterKey string
}

func (s Settings) presentationTextureFormat() wgpu.TextureFormat {
	return validPresentationFormats[s.PresentationFormat]
}

// Validate implements §6's construction-time validation, returning
// errs.ConfigError on the first violation found.
func (s Settings) Validate() error {
	if _, ok := validPresentationFormats[s.PresentationFormat]; !ok {
		return &errs.ConfigError{Field: "presentation_format", Reason: fmt.Sprintf("must be one of rgba8unorm, rgba8unorm-srgb, bgra8unorm, rgba16float, got %q", s.PresentationFormat)}
	}
	if s.Width == 0 || s.Height == 0 {
		return &errs.ConfigError{Field: "width/height", Reason: "must be > 0"}
	}
	for _, name := range sortedKeys(s.Textures) {
		if err := s.Textures[name].validate(name); err != nil {
			return err
		}
	}
	for _, name := range sortedKeys(s.Filters) {
		if err := s.Filters[name].validate(name); err != nil {
			return err
		}
	}
	if s.ShaderFetcher == nil {
		return &errs.ConfigError{Field: "shader_fetcher", Reason: "required"}
	}
	if s.FrameSource == nil {
		return &errs.ConfigError{Field: "frame_source", Reason: "required"}
	}
	return nil
}

// CompletionReport is WaitForRenderComplete's result (§5 "Cancellation &
// timeouts").
type CompletionReport struct {
	Success  bool
	TimedOut bool
	Err      error
}

// appConfig holds CreateApp's options, separate from Settings because
// these tune the engine's own operational behavior rather than describe
// the filter graph.
type appConfig struct {
	observer             observability.Observer
	forceFallbackAdapter bool
	maxRecoveryRetries   int
	recoveryBackoff      time.Duration
	workerCount          int
}

// AppOption configures CreateApp beyond Settings.
type AppOption func(*appConfig)

// WithObserver routes every component's diagnostics through observer
// instead of the default no-op.
func WithObserver(observer observability.Observer) AppOption {
	return func(c *appConfig) { c.observer = observer }
}

// WithForceFallbackAdapter forces a software adapter, mirroring the
// teacher's own constructor flag.
func WithForceFallbackAdapter(force bool) AppOption {
	return func(c *appConfig) { c.forceFallbackAdapter = force }
}

// WithMaxRecoveryRetries overrides recovery.DefaultMaxRetries.
func WithMaxRecoveryRetries(n int) AppOption {
	return func(c *appConfig) { c.maxRecoveryRetries = n }
}

// WithRecoveryBackoff overrides recovery.DefaultBackoff.
func WithRecoveryBackoff(d time.Duration) AppOption {
	return func(c *appConfig) { c.recoveryBackoff = d }
}

// WithWorkerCount overrides the CPU worker pool size used for histogram
// reduction (§4.9) and shader-source prefetch (§4.5). Defaults to
// runtime.NumCPU()-1.
func WithWorkerCount(n int) AppOption {
	return func(c *appConfig) { c.workerCount = n }
}

// App is the engine instance returned by CreateApp (§6).
type App struct {
	mu sync.Mutex

	instance    *wgpu.Instance
	scheduler   *renderqueue.Scheduler
	coordinator *recovery.Coordinator
	workerPool  worker.DynamicWorkerPool
	observer    observability.Observer
	frameSource frametick.Source
	fetch       pipelinemgr.Fetcher

	settings      Settings
	width, height uint32

	dev           *recovery.Device
	texturePool   *texturepool.Pool
	textures      *filter.Registry
	cache         *pipelinecache.Cache
	binding       *bindingmgr.Manager
	pipelines     *pipelinemgr.Manager
	cq            *commandqueue.Queue
	executor      *filter.Executor
	surfaceTarget *surfaceTarget

	filterOrder []string
	filters     map[string]*filter.Filter

	onHistogramUpdate func(histogram.Stats)
	onThresholdUpdate func(histogram.Threshold)

	lastFrame *renderqueue.Future
}

// CreateApp validates settings, acquires a device/surface, and builds
// every component (C1-C10) plus the filter graph declared in settings.
// Bootstrap reuses the Recovery Coordinator's own acquire/configure/rebuild
// sequence (§4.10 steps 4-6) since first-time construction and post-loss
// recovery are the same handshake.
func CreateApp(settings Settings, options ...AppOption) (*App, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	cfg := appConfig{
		observer:           observability.NoopObserver{},
		maxRecoveryRetries: recovery.DefaultMaxRetries,
		recoveryBackoff:    recovery.DefaultBackoff,
		workerCount:        max(goruntime.NumCPU()-1, 1),
	}
	for _, opt := range options {
		opt(&cfg)
	}

	instance := wgpu.CreateInstance(nil)
	scheduler := renderqueue.New(renderqueue.WithMode(renderqueue.ModeProduction), renderqueue.WithObserver(cfg.observer))
	workerPool := worker.NewDynamicWorkerPool(cfg.workerCount, cfg.workerCount*4, time.Second)
	coordinator := recovery.New(instance, scheduler,
		recovery.WithObserver(cfg.observer),
		recovery.WithMaxRetries(cfg.maxRecoveryRetries),
		recovery.WithBackoff(cfg.recoveryBackoff),
		recovery.WithForceFallbackAdapter(cfg.forceFallbackAdapter),
	)

	a := &App{
		instance:    instance,
		scheduler:   scheduler,
		coordinator: coordinator,
		workerPool:  workerPool,
		observer:    cfg.observer,
		frameSource: settings.FrameSource,
		fetch:       settings.ShaderFetcher,
		settings:    settings,
		width:       settings.Width,
		height:      settings.Height,
	}

	dev, err := coordinator.Recover(settings.FrameSource.SurfaceDescriptor(), settings.Width, settings.Height, a.rebuild)
	if err != nil {
		return nil, err
	}
	a.dev = dev

	settings.FrameSource.SetTickCallback(a.runFrame)
	settings.FrameSource.SetResizeCallback(a.handleResize)

	return a, nil
}

// rebuild is the recovery.Rebuild callback used both by CreateApp's
// bootstrap and by HandleDeviceLoss: it (re)builds every manager and the
// whole filter graph against dev, then atomically swaps them into a. The
// previous runtime's GPU objects are not released, and its pipeline cache
// entries are not carried over.
func (a *App) rebuild(dev *recovery.Device) error {
	rt, err := buildRuntime(dev, &a.settings, a.observer, a.workerPool, a.fetch, a.width, a.height)
	if err != nil {
		return err
	}
	a.mu.Lock()
	a.dev = dev
	a.texturePool = rt.texturePool
	a.textures = rt.textures
	a.cache = rt.cache
	a.binding = rt.binding
	a.pipelines = rt.pipelines
	a.cq = rt.cq
	a.executor = rt.executor
	a.surfaceTarget = rt.surfaceTarget
	a.filterOrder = rt.filterOrder
	a.filters = rt.filters
	a.mu.Unlock()
	return nil
}

// HandleDeviceLoss runs §4.10 recovery through the Recovery Coordinator,
// with rebuild as its Rebuild callback: the host calls this once it
// observes the device was lost (the concrete signal is platform/binding
// specific and lives outside this engine's contract, per spec.md §9's
// framing of recovery as specified "only at the contract level").
func (a *App) HandleDeviceLoss() error {
	a.observer.Warnf("device lost: starting recovery")
	a.mu.Lock()
	width, height := a.width, a.height
	a.mu.Unlock()

	dev, err := a.coordinator.Recover(a.settings.FrameSource.SurfaceDescriptor(), width, height, a.rebuild)
	if err != nil {
		return err
	}
	a.mu.Lock()
	a.dev = dev
	a.mu.Unlock()
	return nil
}

// handleResize re-tags the executor, binding manager, and pipeline manager
// with the new dims (new cache entries are tagged with them) and runs the
// pipeline cache through Snapshot/Restore (§4.3 resize). Because the
// snapshot is restored into the same cache, compatible entries are
// re-inserted and incompatible ones stay in place: no entry is removed on
// resize. The device-loss rebuild does not use this snapshot/restore path.
func (a *App) handleResize(width, height int) {
	a.mu.Lock()
	a.width, a.height = uint32(width), uint32(height)
	dev := a.dev
	cache := a.cache
	binding := a.binding
	pipelines := a.pipelines
	executor := a.executor
	a.mu.Unlock()

	if dev == nil {
		return
	}
	snap := cache.Snapshot()
	newDims := pipelinecache.Dims{Width: uint32(width), Height: uint32(height)}
	executor.SetDims(uint32(width), uint32(height), dev.SurfaceFormat)
	binding.SetDims(uint32(width), uint32(height))
	pipelines.SetDims(uint32(width), uint32(height))
	cache.Restore(snap, newDims)
}

// SetOnHistogramUpdate registers the callback invoked with the computed
// Stats every time the feedback loop runs (§6 on_histogram_update),
// mirroring frametick.Source's SetTickCallback/SetResizeCallback shape.
func (a *App) SetOnHistogramUpdate(callback func(histogram.Stats)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onHistogramUpdate = callback
}

// SetOnThresholdUpdate registers the callback invoked with the derived
// Threshold every time the feedback loop runs (§6 on_threshold_update).
func (a *App) SetOnThresholdUpdate(callback func(histogram.Threshold)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onThresholdUpdate = callback
}

// UpdateFilterBuffer applies a partial update to one binding of a filter's
// buffer_attachment (§6 update_filter_buffer) and marks the filter dirty.
func (a *App) UpdateFilterBuffer(filterKey, bindingName string, value []float32) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	f, ok := a.filters[filterKey]
	if !ok {
		return &errs.ConfigError{Field: "filter_key", Reason: fmt.Sprintf("unknown filter %q", filterKey)}
	}
	if f.Buffer == nil {
		return &errs.ConfigError{Field: "filter_key", Reason: fmt.Sprintf("filter %q has no buffer_attachment", filterKey)}
	}
	if err := f.Buffer.Update(bindingName, value); err != nil {
		return err
	}
	f.NeedsRender = true
	return nil
}

// UpdateFilterInputTexture replaces one pass's input slot with a different
// named texture and re-resolves that pass's bind group (§6
// update_filter_input_texture, §4.4 "on input-texture replacement"). A
// non-zero texIndex selects a previously declared indexed variant of
// textureKey (e.g. "name#2"), for textures holding more than one
// addressable frame/layer.
func (a *App) UpdateFilterInputTexture(filterKey string, passIndex, bindingIndex int, textureKey string, texIndex int) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	f, ok := a.filters[filterKey]
	if !ok {
		return &errs.ConfigError{Field: "filter_key", Reason: fmt.Sprintf("unknown filter %q", filterKey)}
	}
	if passIndex < 0 || passIndex >= len(f.Passes) {
		return &errs.ConfigError{Field: "pass_index", Reason: "out of range"}
	}
	p := f.Passes[passIndex]
	if bindingIndex < 0 || bindingIndex >= len(p.Inputs) {
		return &errs.ConfigError{Field: "binding_index", Reason: "out of range"}
	}
	if p.Built == nil || p.Built.Pipeline == nil {
		return &errs.ConfigError{Field: "pass_index", Reason: "pass has no pipeline yet"}
	}

	name := textureKey
	if texIndex != 0 {
		name = fmt.Sprintf("%s#%d", textureKey, texIndex)
	}
	p.Inputs[bindingIndex] = name

	views := make([]*wgpu.TextureView, len(p.Inputs))
	for i, in := range p.Inputs {
		view, err := a.textures.View(in)
		if err != nil {
			return err
		}
		views[i] = view
	}

	var buf *wgpu.Buffer
	bufferBindingIndex := 0
	if fs, ok := a.settings.Filters[filterKey]; ok && fs.BufferAttachment != nil {
		bufferBindingIndex = fs.BufferAttachment.BindingIndex
	}
	if f.Buffer != nil {
		if f.Buffer.IsRender() {
			buf = f.Buffer.UniformBuffer()
		} else {
			for _, b := range f.Buffer.StorageBuffers() {
				buf = b
				break
			}
		}
	}

	contract := bindingmgr.Contract{Kind: f.Kind.String(), InputCount: len(p.Inputs), Buffer: f.BufferKind(), BufferBindingIndex: bufferBindingIndex}
	bound, err := a.binding.Resolve(filterKey+":"+p.Label, contract, bindingmgr.Resources{InputViews: views, Buffer: buf})
	if err != nil {
		return err
	}
	p.Built.Binding = bound
	f.NeedsRender = true
	return nil
}

const renderCompleteTimeout = 30 * time.Second

// WaitForRenderComplete blocks for the in-flight frame task to settle, up
// to the 30s timeout spec.md §5 names, and reports the outcome (§6
// wait_for_render_complete).
func (a *App) WaitForRenderComplete() CompletionReport {
	a.mu.Lock()
	future := a.lastFrame
	a.mu.Unlock()

	if future == nil {
		return CompletionReport{Success: true}
	}

	select {
	case <-future.Done():
		if _, err := future.Wait(); err != nil {
			return CompletionReport{Success: false, Err: err}
		}
		return CompletionReport{Success: true}
	case <-time.After(renderCompleteTimeout):
		return CompletionReport{Success: false, TimedOut: true}
	}
}

// SnapshotCacheStats returns the pipeline cache's current hit/miss/eviction
// counters (§6 snapshot_cache_stats).
func (a *App) SnapshotCacheStats() pipelinecache.CacheStats {
	a.mu.Lock()
	cache := a.cache
	a.mu.Unlock()
	return cache.Stats()
}

// Dispose stops the frame source, cancels pending tasks, destroys every
// filter's parameter buffers, and releases all named textures and the
// texture pool. Cached shader modules, layouts, and pipelines, the passes'
// bind groups, and the executor's vertex buffers are not released. The App
// must not be used afterward.
func (a *App) Dispose() {
	a.frameSource.SetTickCallback(nil)
	a.frameSource.SetResizeCallback(nil)
	a.frameSource.Stop()

	a.mu.Lock()
	defer a.mu.Unlock()

	a.scheduler.Clear(true)
	for _, f := range a.filters {
		if f.Buffer != nil {
			f.Buffer.Destroy()
		}
	}
	if a.textures != nil {
		a.textures.ReleaseAll()
	}
	if a.texturePool != nil {
		a.texturePool.Destroy()
	}
}

// runFrame is the frametick tick callback: it submits one frame's worth of
// filter execution through the scheduler (§4.7 fast path applies when the
// queue is idle, as it always is for a single-tick-driven engine) and
// records the resulting Future for WaitForRenderComplete.
func (a *App) runFrame() {
	a.mu.Lock()
	order := a.filterOrder
	filters := a.filters
	executor := a.executor
	surface := a.surfaceTarget
	a.mu.Unlock()

	future := a.scheduler.Submit(renderqueue.PriorityNormal, nil, func() (any, error) {
		for _, name := range order {
			f := filters[name]
			if !f.Active || !f.NeedsRender {
				continue
			}
			brk, err := executor.RunFilter(f)
			if err != nil {
				a.observer.Warnf("filter %q: %v", name, err)
				return nil, err
			}
			if brk {
				break
			}
		}
		a.runFeedback()
		surface.present()
		return nil, nil
	})

	a.mu.Lock()
	a.lastFrame = future
	a.mu.Unlock()
}

// runFeedback implements §4.9's histogram readback and auto-threshold
// update, when Settings names both a histogram and a threshold filter. A
// readback failure is logged through the observer and skips the rest of the
// update for that frame; it does not start device recovery.
func (a *App) runFeedback() {
	if a.settings.HistogramFilterKey == "" || a.settings.ThresholdFilterKey == "" {
		return
	}

	hf, ok := a.filters[a.settings.HistogramFilterKey]
	if !ok || hf.Buffer == nil {
		return
	}
	buf := hf.Buffer.StorageBuffer(buffermgr.HistogramBindingName)
	if buf == nil {
		return
	}

	bins, err := histogram.Readback(a.dev.Device, a.dev.Queue, buf)
	if err != nil {
		a.observer.Warnf("histogram readback: %v", err)
		return
	}

	stats := histogram.Compute(bins[:], a.workerPool)
	if a.onHistogramUpdate != nil {
		a.onHistogramUpdate(stats)
	}

	thresholdValues := histogram.AutoThreshold(stats)
	if a.onThresholdUpdate != nil {
		a.onThresholdUpdate(thresholdValues)
	}

	tf, ok := a.filters[a.settings.ThresholdFilterKey]
	if !ok || tf.Buffer == nil {
		return
	}
	_ = tf.Buffer.Update("samplePoint", []float32{thresholdValues.SamplePoint})
	_ = tf.Buffer.Update("range", []float32{thresholdValues.Range})
	tf.NeedsRender = true
}

// surfaceTarget adapts a *wgpu.Surface to filter.SurfaceSource, holding the
// acquired surface texture/view between CurrentView and present the way
// the teacher's wgpu_renderer_backend holds frameSurface/frameView across
// BeginFrame/Present.
type surfaceTarget struct {
	surface *wgpu.Surface

	current *wgpu.SurfaceTexture
	view    *wgpu.TextureView
}

func (t *surfaceTarget) CurrentView() (*wgpu.TextureView, error) {
	if t.view != nil {
		return t.view, nil
	}
	tex, err := t.surface.GetCurrentTexture()
	if err != nil {
		return nil, err
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, err
	}
	t.current, t.view = tex, view
	return view, nil
}

func (t *surfaceTarget) present() {
	if t.current == nil {
		return
	}
	t.surface.Present()
	t.view.Release()
	t.current.Release()
	t.current, t.view = nil, nil
}

// runtime bundles the device-dependent half of an App: everything
// rebuild/buildRuntime (re)creates from a fresh *recovery.Device, swapped
// into App atomically by App.rebuild.
type runtime struct {
	texturePool   *texturepool.Pool
	textures      *filter.Registry
	cache         *pipelinecache.Cache
	binding       *bindingmgr.Manager
	pipelines     *pipelinemgr.Manager
	cq            *commandqueue.Queue
	executor      *filter.Executor
	surfaceTarget *surfaceTarget

	filterOrder []string
	filters     map[string]*filter.Filter
}

// buildRuntime creates every manager against dev (§4.10 step 5, and at
// bootstrap its first-time equivalent), declares every named texture, and
// builds every filter's passes through the pipeline manager. The new
// pipeline cache starts empty: no entries are restored from a previous one.
func buildRuntime(dev *recovery.Device, settings *Settings, observer observability.Observer, workerPool worker.DynamicWorkerPool, fetch pipelinemgr.Fetcher, width, height uint32) (*runtime, error) {
	rt := &runtime{}

	rt.texturePool = texturepool.New(dev.Device)
	rt.textures = filter.NewRegistry(rt.texturePool)
	rt.cache = pipelinecache.New(dev.Device, pipelinecache.WithObserver(observer))
	rt.binding = bindingmgr.New(dev.Device, dev.Queue, rt.cache)
	rt.binding.SetDims(width, height)
	rt.pipelines = pipelinemgr.New(dev.Device, rt.cache, rt.binding, workerPool)
	rt.pipelines.SetDims(width, height)
	rt.cq = commandqueue.New(dev.Device, dev.Queue)
	rt.surfaceTarget = &surfaceTarget{surface: dev.Surface}

	executor, err := filter.NewExecutor(dev.Device, dev.Queue, rt.cq, rt.textures, rt.surfaceTarget, observer)
	if err != nil {
		return nil, err
	}
	rt.executor = executor
	rt.executor.SetDims(width, height, dev.SurfaceFormat)

	fallbackFormat := settings.presentationTextureFormat()
	for _, name := range sortedKeys(settings.Textures) {
		rt.textures.Declare(name, settings.Textures[name].descriptor(name, fallbackFormat, width, height))
	}

	rt.filterOrder = sortedKeys(settings.Filters)

	var refs []string
	for _, name := range rt.filterOrder {
		for _, p := range settings.Filters[name].Passes {
			refs = append(refs, p.ShaderRef)
		}
	}
	rt.pipelines.Prefetch(refs, fetch)

	rt.filters = make(map[string]*filter.Filter, len(rt.filterOrder))
	for _, name := range rt.filterOrder {
		f, err := buildFilter(name, settings.Filters[name], dev, rt, fetch)
		if err != nil {
			return nil, err
		}
		rt.filters[name] = f
	}

	return rt, nil
}

// buildFilter turns one FilterSettings into a *filter.Filter with every
// pass's pipeline and initial bind group already built (§4.5).
func buildFilter(name string, fs FilterSettings, dev *recovery.Device, rt *runtime, fetch pipelinemgr.Fetcher) (*filter.Filter, error) {
	var bufMgr *buffermgr.Manager
	bufferBindingIndex := 0

	if ba := fs.BufferAttachment; ba != nil {
		bufferBindingIndex = ba.BindingIndex
		bindingNames := sortedKeys(ba.Bindings)
		bindings := make([]buffermgr.Binding, 0, len(bindingNames))
		for _, bindingName := range bindingNames {
			b := ba.Bindings[bindingName]
			b.Name = bindingName
			bindings = append(bindings, b)
		}

		var err error
		if fs.Kind == filter.KindCompute {
			bufMgr, err = buffermgr.NewComputeManager(dev.Device, dev.Queue, name, bindings)
		} else {
			bufMgr, err = buffermgr.NewRenderManager(dev.Device, dev.Queue, name, bindings)
		}
		if err != nil {
			return nil, err
		}
	}

	f := &filter.Filter{Name: name, Kind: fs.Kind, Buffer: bufMgr, Active: fs.Active, NeedsRender: true}
	f.Passes = make([]*filter.Pass, len(fs.Passes))

	for i, ps := range fs.Passes {
		p := &filter.Pass{
			Label:     fmt.Sprintf("%s:%d", name, i),
			Inputs:    append([]string(nil), ps.InputTextures...),
			Output:    ps.Output,
			ShaderRef: ps.ShaderRef,
			Active:    fs.Active,
		}
		f.Passes[i] = p

		views := make([]*wgpu.TextureView, len(p.Inputs))
		for j, in := range p.Inputs {
			view, err := rt.textures.View(in)
			if err != nil {
				return nil, err
			}
			views[j] = view
		}

		var buf *wgpu.Buffer
		if bufMgr != nil {
			if bufMgr.IsRender() {
				buf = bufMgr.UniformBuffer()
			} else {
				for _, b := range bufMgr.StorageBuffers() {
					buf = b
					break
				}
			}
		}

		spec := pipelinemgr.PassSpec{
			Kind:               f.Kind.String(),
			ShaderRef:          p.ShaderRef,
			InputCount:         len(p.Inputs),
			Buffer:             f.BufferKind(),
			BufferBindingIndex: bufferBindingIndex,
			SurfaceFormat:      dev.SurfaceFormat,
		}
		built, err := rt.pipelines.Build(name+":"+p.Label, spec, bindingmgr.Resources{InputViews: views, Buffer: buf}, fetch)
		if err != nil {
			return nil, err
		}
		p.Built = built
	}

	return f, nil
}

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
