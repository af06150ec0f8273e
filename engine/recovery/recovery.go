// Package recovery implements C10: rebuilding the device, surface, and
// dependent GPU state after a reported device loss.
package recovery

import (
	"fmt"
	"time"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/sequentialgpu/engine/engine/bindingmgr"
	"github.com/sequentialgpu/engine/engine/errs"
	"github.com/sequentialgpu/engine/engine/filter"
	"github.com/sequentialgpu/engine/engine/observability"
	"github.com/sequentialgpu/engine/engine/renderqueue"
)

// DefaultMaxRetries and DefaultBackoff implement §4.10 step 7: "retry on
// failure up to 5 times with 5s backoff".
const (
	DefaultMaxRetries = 5
	DefaultBackoff    = 5 * time.Second
)

// Device is the GPU handle set produced by a successful device
// reacquisition (§4.10 step 4).
type Device struct {
	Surface       *wgpu.Surface
	Adapter       *wgpu.Adapter
	Device        *wgpu.Device
	Queue         *wgpu.Queue
	SurfaceFormat wgpu.TextureFormat
}

// Rebuild is supplied by the caller (app.go) and performs the part of
// recovery that only the owner of the engine's managers can do:
// re-creating the managers and filter state against dev (§4.10 step 5).
// Recover itself performs no cleanup of the previous device's resources, no
// cache snapshot or restore, and no filter re-validation.
type Rebuild func(dev *Device) error

// Option configures a Coordinator during construction.
type Option func(*Coordinator)

// WithMaxRetries overrides DefaultMaxRetries.
func WithMaxRetries(n int) Option { return func(c *Coordinator) { c.maxRetries = n } }

// WithBackoff overrides DefaultBackoff.
func WithBackoff(d time.Duration) Option { return func(c *Coordinator) { c.backoff = d } }

// WithObserver reports recovery attempts through obs.
func WithObserver(obs observability.Observer) Option {
	return func(c *Coordinator) { c.observer = obs }
}

// WithForceFallbackAdapter forces RequestAdapter to pick a software
// fallback adapter, mirroring the teacher's own constructor flag — mainly
// useful for recovery tests that can't assume a hardware adapter.
func WithForceFallbackAdapter(force bool) Option {
	return func(c *Coordinator) { c.forceFallbackAdapter = force }
}

// Coordinator drives device-loss recovery (§4.10). It owns device/surface
// reacquisition and the scheduler freeze/unfreeze; everything else is
// delegated to the Rebuild callback supplied at Recover time.
type Coordinator struct {
	instance  *wgpu.Instance
	scheduler *renderqueue.Scheduler
	observer  observability.Observer

	maxRetries           int
	backoff              time.Duration
	forceFallbackAdapter bool
}

// New creates a Coordinator. scheduler is frozen for the duration of each
// Recover call.
func New(instance *wgpu.Instance, scheduler *renderqueue.Scheduler, options ...Option) *Coordinator {
	c := &Coordinator{
		instance:   instance,
		scheduler:  scheduler,
		observer:   observability.NoopObserver{},
		maxRetries: DefaultMaxRetries,
		backoff:    DefaultBackoff,
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// Recover freezes new submissions and rejects pending tasks (§4.10 step 1,
// delegated to the scheduler's own Freeze), then retries device
// reacquisition + surface reconfiguration + rebuild up to maxRetries times
// with backoff between attempts (steps 4 and 7). rebuild covers the manager
// re-creation of step 5, which only the caller's manager set can do.
func (c *Coordinator) Recover(surfaceDescriptor *wgpu.SurfaceDescriptor, width, height uint32, rebuild Rebuild) (*Device, error) {
	c.scheduler.Freeze()

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		dev, err := c.acquireDevice(surfaceDescriptor)
		if err == nil {
			err = c.configureSurface(dev, width, height)
		}
		if err == nil {
			err = rebuild(dev)
		}
		if err == nil {
			c.observer.RecoveryEvent(attempt, "recovered", nil)
			c.scheduler.Unfreeze()
			return dev, nil
		}

		lastErr = err
		c.observer.RecoveryEvent(attempt, "failed", err)
		if attempt < c.maxRetries {
			time.Sleep(c.backoff)
		}
	}

	return nil, fmt.Errorf("engine: recovery exhausted %d attempts: %w", c.maxRetries, lastErr)
}

// acquireDevice implements §4.10 step 4's device half: a fresh
// adapter/device with "high-performance" preference and no fallback,
// grounded on the teacher's newWGPURendererBackend adapter/device
// handshake.
func (c *Coordinator) acquireDevice(surfaceDescriptor *wgpu.SurfaceDescriptor) (*Device, error) {
	surface := c.instance.CreateSurface(surfaceDescriptor)

	adapter, err := c.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference:      wgpu.PowerPreferenceHighPerformance,
		ForceFallbackAdapter: c.forceFallbackAdapter,
		CompatibleSurface:    surface,
	})
	if err != nil {
		return nil, &errs.InternalError{Op: "recovery: request adapter", Reason: err.Error()}
	}

	device, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{Label: "Recovered Device"})
	if err != nil {
		return nil, &errs.InternalError{Op: "recovery: request device", Reason: err.Error()}
	}

	return &Device{Surface: surface, Adapter: adapter, Device: device, Queue: device.GetQueue()}, nil
}

// configureSurface implements §4.10 step 4's surface half: reconfigure
// with alpha-premultiplied blending and the current canvas size, grounded
// on the teacher's ConfigureSurface.
func (c *Coordinator) configureSurface(dev *Device, width, height uint32) error {
	capabilities := dev.Surface.GetCapabilities(dev.Adapter)
	format := capabilities.Formats[0]

	alphaMode := wgpu.CompositeAlphaModePremultiplied
	if !containsAlphaMode(capabilities.AlphaModes, alphaMode) {
		alphaMode = capabilities.AlphaModes[0]
	}

	dev.Surface.Configure(dev.Adapter, dev.Device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      format,
		Width:       width,
		Height:      height,
		PresentMode: wgpu.PresentModeFifo,
		AlphaMode:   alphaMode,
	})
	dev.SurfaceFormat = format
	return nil
}

func containsAlphaMode(modes []wgpu.CompositeAlphaMode, want wgpu.CompositeAlphaMode) bool {
	for _, m := range modes {
		if m == want {
			return true
		}
	}
	return false
}

// RevalidateFilter implements §4.10 step 6: a pass that has its pipeline
// but is missing its group-0 bind group gets a temporary bind group built
// from the pipeline's already-cached layout, a default sampler, and
// primaryView repeated across every input slot — just enough for the next
// frame to proceed without waiting on a full pipeline rebuild. A pass with
// no pipeline is left unchanged.
func RevalidateFilter(binding *bindingmgr.Manager, f *filter.Filter, primaryView *wgpu.TextureView) error {
	for _, p := range f.Passes {
		if p.Built == nil || p.Built.Pipeline == nil {
			continue
		}
		if p.Built.Binding != nil && p.Built.Binding.BindGroup != nil {
			continue
		}

		contract := bindingmgr.Contract{Kind: f.Kind.String(), InputCount: len(p.Inputs), Buffer: f.BufferKind()}
		views := make([]*wgpu.TextureView, len(p.Inputs))
		for i := range views {
			views[i] = primaryView
		}

		var buf *wgpu.Buffer
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

		bound, err := binding.Resolve(f.Name+":"+p.Label+":recovery", contract, bindingmgr.Resources{InputViews: views, Buffer: buf})
		if err != nil {
			return err
		}
		p.Built.Binding = bound
	}
	return nil
}
