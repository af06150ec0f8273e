package pipelinecache

import (
	"time"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/sequentialgpu/engine/engine/errs"
	"github.com/sequentialgpu/engine/engine/observability"
)

const defaultCapacity = 100

// Cache owns the three independent LRU caches named in §4.3: shader
// modules, bind-group layouts, and pipelines. Only ever touched from the
// single engine goroutine, so no internal locking.
type Cache struct {
	device   *wgpu.Device
	observer observability.Observer

	shaders   *lru
	layouts   *lru
	pipelines *lru

	compileTimes     []time.Duration
	compileTimeTotal time.Duration
}

// Option configures a Cache during construction.
type Option func(*Cache)

// WithCapacity overrides the default capacity of 100 for all three caches.
func WithCapacity(n int) Option {
	return func(c *Cache) {
		c.shaders = newLRU(n)
		c.layouts = newLRU(n)
		c.pipelines = newLRU(n)
	}
}

// WithObserver attaches an Observer whose CacheEvent is called on every
// hit/miss/evict/insert, per §4.3 "stats counters... maintained when
// observability is enabled".
func WithObserver(observer observability.Observer) Option {
	return func(c *Cache) { c.observer = observer }
}

func New(device *wgpu.Device, options ...Option) *Cache {
	c := &Cache{
		device:    device,
		observer:  observability.NoopObserver{},
		shaders:   newLRU(defaultCapacity),
		layouts:   newLRU(defaultCapacity),
		pipelines: newLRU(defaultCapacity),
	}
	for _, opt := range options {
		opt(c)
	}
	c.shaders.onEvict = func(key string, value any) {
		if m, ok := value.(*wgpu.ShaderModule); ok {
			m.Release()
		}
		c.observer.CacheEvent("shader", observability.CacheEvict, key)
	}
	c.layouts.onEvict = func(key string, value any) {
		if l, ok := value.(*wgpu.BindGroupLayout); ok {
			l.Release()
		}
		c.observer.CacheEvent("layout", observability.CacheEvict, key)
	}
	c.pipelines.onEvict = func(key string, value any) {
		if p, ok := value.(*wgpu.RenderPipeline); ok {
			p.Release()
		} else if p, ok := value.(*wgpu.ComputePipeline); ok {
			p.Release()
		}
		c.observer.CacheEvent("pipeline", observability.CacheEvict, key)
	}
	return c
}

// ShaderModule returns the cached module for source, compiling and
// inserting it on a miss. Duplicate source across distinct refs resolves
// to the same module and one compilation (§4.3).
func (c *Cache) ShaderModule(ref, source string, dims Dims) (*wgpu.ShaderModule, error) {
	key := ShaderKey(source)
	if v, ok := c.shaders.get(key); ok {
		c.observer.CacheEvent("shader", observability.CacheHit, key)
		return v.(*wgpu.ShaderModule), nil
	}
	c.observer.CacheEvent("shader", observability.CacheMiss, key)

	start := time.Now()
	module, err := c.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          ref,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: source},
	})
	if err != nil {
		return nil, &errs.ShaderCompileError{Key: ref, Messages: []string{err.Error()}}
	}
	elapsed := time.Since(start)
	c.compileTimes = append(c.compileTimes, elapsed)
	c.compileTimeTotal += elapsed

	c.shaders.insert(key, module, dims)
	c.observer.CacheEvent("shader", observability.CacheInsert, key)
	return module, nil
}

// Layout returns the cached bind-group layout for spec, building and
// inserting it on a miss. build is called with the layout's content key so
// a caller (C4) can label the underlying GPU object for diagnostics.
func (c *Cache) Layout(spec LayoutSpec, build func(key string) (*wgpu.BindGroupLayout, error), dims Dims) (*wgpu.BindGroupLayout, error) {
	key := LayoutKey(spec)
	if v, ok := c.layouts.get(key); ok {
		c.observer.CacheEvent("layout", observability.CacheHit, key)
		return v.(*wgpu.BindGroupLayout), nil
	}
	c.observer.CacheEvent("layout", observability.CacheMiss, key)

	layout, err := build(key)
	if err != nil {
		return nil, err
	}
	c.layouts.insert(key, layout, dims)
	c.observer.CacheEvent("layout", observability.CacheInsert, key)
	return layout, nil
}

// Pipeline returns the cached pipeline (either *wgpu.RenderPipeline or
// *wgpu.ComputePipeline, as any) for spec, building and inserting it on a
// miss.
func (c *Cache) Pipeline(spec PipelineSpec, build func() (any, error), dims Dims) (any, error) {
	key := PipelineKey(spec)
	if v, ok := c.pipelines.get(key); ok {
		c.observer.CacheEvent("pipeline", observability.CacheHit, key)
		return v, nil
	}
	c.observer.CacheEvent("pipeline", observability.CacheMiss, key)

	pipeline, err := build()
	if err != nil {
		return nil, err
	}
	c.pipelines.insert(key, pipeline, dims)
	c.observer.CacheEvent("pipeline", observability.CacheInsert, key)
	return pipeline, nil
}

// Stats is the point-in-time counters snapshot for one of the three caches.
type Stats struct {
	Hits, Misses, Creations, Evictions, Size, PeakSize int
}

func statsOf(l *lru) Stats {
	return Stats{
		Hits: l.hits, Misses: l.misses, Creations: l.creations,
		Evictions: l.evictions, Size: l.len(), PeakSize: l.peakSize,
	}
}

// CacheStats is the full stats snapshot §6 snapshot_cache_stats returns.
type CacheStats struct {
	Shaders, Layouts, Pipelines Stats
	AvgCompileTimeUs            float64
}

func (c *Cache) Stats() CacheStats {
	avg := 0.0
	if n := len(c.compileTimes); n > 0 {
		avg = float64(c.compileTimeTotal.Microseconds()) / float64(n)
	}
	return CacheStats{
		Shaders:           statsOf(c.shaders),
		Layouts:           statsOf(c.layouts),
		Pipelines:         statsOf(c.pipelines),
		AvgCompileTimeUs:  avg,
	}
}

// Snapshot is a copyable view of all three caches, per §4.3 snapshot().
type Snapshot struct {
	shaders   []entry
	layouts   []entry
	pipelines []entry
}

func (c *Cache) Snapshot() Snapshot {
	return Snapshot{
		shaders:   c.shaders.snapshot(),
		layouts:   c.layouts.snapshot(),
		pipelines: c.pipelines.snapshot(),
	}
}

// Restore re-inserts entries from a prior Snapshot whose recorded dims are
// compatible with newDims (§4.3: entry.dims.w ≤ new.w ∧ entry.dims.h ≤
// new.h). Incompatible entries are not re-inserted; Restore removes
// nothing already in the cache. App calls it after a surface resize, with a
// snapshot of the same cache.
func (c *Cache) Restore(snap Snapshot, newDims Dims) {
	restore := func(l *lru, entries []entry) {
		for i := len(entries) - 1; i >= 0; i-- {
			e := entries[i]
			if !e.dims.fits(newDims) {
				continue
			}
			l.insert(e.key, e.value, e.dims)
		}
	}
	restore(c.shaders, snap.shaders)
	restore(c.layouts, snap.layouts)
	restore(c.pipelines, snap.pipelines)
}
