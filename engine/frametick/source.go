// Package frametick abstracts the "next frame" suspension point the engine
// awaits once per frame. A concrete Source drives real presentation
// (GLFWSource); a dependency-free Source drives deterministic tests against
// a virtual clock (ManualSource).
package frametick

import "github.com/cogentcore/webgpu/wgpu"

// Source supplies a surface to render into and a frame-tick event loop.
// Exactly one of Run's tick callback invocations corresponds to one frame.
type Source interface {
	// SurfaceDescriptor returns the platform-specific descriptor used to
	// configure the WebGPU surface. Nil for sources with no presentable
	// surface (e.g. an offscreen/manual source used in tests).
	SurfaceDescriptor() *wgpu.SurfaceDescriptor

	// Width and Height report the current surface size in pixels.
	Width() int
	Height() int

	// SetResizeCallback registers the function invoked when the surface
	// size changes. Pass nil to disable.
	SetResizeCallback(callback func(width, height int))

	// SetTickCallback registers the function invoked once per frame tick.
	// Pass nil to disable.
	SetTickCallback(callback func())

	// Run blocks, driving tick callbacks until Stop is called or the
	// underlying source is closed externally (e.g. the OS window closes).
	Run()

	// Stop requests the run loop exit at the next opportunity.
	Stop()
}
