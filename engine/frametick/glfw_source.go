package frametick

import (
	"fmt"
	"runtime"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/go-gl/glfw/v3.3/glfw"
)

// GLFWSource is the real, presentable Source backend. It owns a GLFW window
// purely as a surface provider and frame-tick pump — input handling beyond
// resize is UI-overlay territory and lives outside this engine.
type GLFWSource struct {
	title         string
	width, height int

	window  *glfw.Window
	running bool

	onResize func(width, height int)
	onTick   func()
}

// GLFWSourceOption configures a GLFWSource during construction.
type GLFWSourceOption func(*GLFWSource)

// WithTitle sets the window title.
func WithTitle(title string) GLFWSourceOption {
	return func(g *GLFWSource) { g.title = title }
}

// WithSize sets the initial window size in pixels.
func WithSize(width, height int) GLFWSourceOption {
	return func(g *GLFWSource) { g.width, g.height = width, height }
}

// NewGLFWSource creates and opens a GLFW window configured as a WebGPU
// surface provider. Panics if the platform window cannot be created, matching
// the teacher's fail-fast construction style for unrecoverable init errors.
func NewGLFWSource(options ...GLFWSourceOption) *GLFWSource {
	g := &GLFWSource{
		title:  "Sequential GPU Filter Engine",
		width:  1280,
		height: 720,
	}
	for _, opt := range options {
		opt(g)
	}

	if err := g.open(); err != nil {
		panic(fmt.Sprintf("frametick: failed to create GLFW window: %v", err))
	}
	return g
}

func (g *GLFWSource) open() error {
	runtime.LockOSThread()

	if err := glfw.Init(); err != nil {
		return fmt.Errorf("failed to initialize GLFW: %w", err)
	}

	// WebGPU supplies its own graphics API; disable GLFW's OpenGL context.
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)

	win, err := glfw.CreateWindow(g.width, g.height, g.title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return fmt.Errorf("failed to create GLFW window: %w", err)
	}
	g.window = win
	g.running = true

	// Framebuffer size differs from window size on high-DPI displays; the
	// surface must be configured with pixel, not logical, dimensions.
	win.SetFramebufferSizeCallback(func(_ *glfw.Window, width, height int) {
		g.width, g.height = width, height
		if g.onResize != nil {
			g.onResize(width, height)
		}
	})

	fbWidth, fbHeight := win.GetFramebufferSize()
	g.width, g.height = fbWidth, fbHeight

	return nil
}

func (g *GLFWSource) SurfaceDescriptor() *wgpu.SurfaceDescriptor {
	if g.window == nil {
		return nil
	}
	return wgpuglfw.GetSurfaceDescriptor(g.window)
}

func (g *GLFWSource) Width() int  { return g.width }
func (g *GLFWSource) Height() int { return g.height }

func (g *GLFWSource) SetResizeCallback(callback func(width, height int)) {
	g.onResize = callback
}

func (g *GLFWSource) SetTickCallback(callback func()) {
	g.onTick = callback
}

// Run polls GLFW events and invokes the tick callback once per iteration
// until the window closes or Stop is called. Blocks the calling goroutine.
func (g *GLFWSource) Run() {
	for g.isRunning() {
		glfw.PollEvents()
		if !g.isRunning() {
			break
		}
		if g.onTick != nil {
			g.onTick()
		}
		runtime.Gosched()
	}
}

func (g *GLFWSource) isRunning() bool {
	return g.running && g.window != nil && !g.window.ShouldClose()
}

func (g *GLFWSource) Stop() {
	g.running = false
	if g.window != nil {
		g.window.SetShouldClose(true)
	}
}

// Close destroys the GLFW window and terminates the GLFW library. Call after
// Run returns.
func (g *GLFWSource) Close() error {
	if g.window == nil {
		return fmt.Errorf("frametick: window is not initialized")
	}
	g.running = false
	g.window.Destroy()
	glfw.Terminate()
	return nil
}

var _ Source = (*GLFWSource)(nil)
