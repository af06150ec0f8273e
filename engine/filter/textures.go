package filter

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/sequentialgpu/engine/engine/errs"
	"github.com/sequentialgpu/engine/engine/texturepool"
)

// Registry maps the named textures a filter graph reads and writes (§3
// "Texture entry") onto pooled handles. Unlike texturepool.Pool itself
// (which only knows descriptor signatures), Registry is what lets a Pass
// refer to "textureTemp" or "histogram-source" by name.
type Registry struct {
	pool *texturepool.Pool

	entries map[string]*namedEntry
}

type namedEntry struct {
	descriptor texturepool.Descriptor
	handle     *texturepool.Handle
}

// NewRegistry creates a Registry backed by pool.
func NewRegistry(pool *texturepool.Pool) *Registry {
	return &Registry{pool: pool, entries: make(map[string]*namedEntry)}
}

// Declare registers (or re-registers, on resize) the descriptor a named
// texture should be acquired with. It does not allocate until first use.
func (r *Registry) Declare(name string, desc texturepool.Descriptor) {
	if existing, ok := r.entries[name]; ok && existing.descriptor.Signature == desc.Signature {
		return
	}
	r.releaseLocked(name)
	r.entries[name] = &namedEntry{descriptor: desc}
}

// acquire lazily acquires (or reuses) the live handle for name.
func (r *Registry) acquire(name string) (*texturepool.Handle, error) {
	entry, ok := r.entries[name]
	if !ok {
		return nil, &errs.TextureError{Name: name, Available: r.names()}
	}
	if entry.handle == nil {
		handle, err := r.pool.Acquire(entry.descriptor)
		if err != nil {
			return nil, &errs.TextureError{Name: name}
		}
		entry.handle = handle
	}
	return entry.handle, nil
}

// View resolves name to a freshly derived texture view (§3: "views are
// derived on demand and never cached across frames").
func (r *Registry) View(name string) (*wgpu.TextureView, error) {
	handle, err := r.acquire(name)
	if err != nil {
		return nil, err
	}
	view, err := handle.View()
	if err != nil {
		return nil, fmt.Errorf("filter: view of texture %q: %w", name, err)
	}
	return view, nil
}

// ImageCopyTexture resolves name to a copy-source/destination descriptor
// for a texture-to-texture copy (§4.8 step 3).
func (r *Registry) ImageCopyTexture(name string) (*wgpu.ImageCopyTexture, error) {
	handle, err := r.acquire(name)
	if err != nil {
		return nil, err
	}
	return &wgpu.ImageCopyTexture{Texture: handle.Texture}, nil
}

// Dims returns the width/height declared for name, used to size texture
// copies and MSAA attachments.
func (r *Registry) Dims(name string) (width, height uint32, err error) {
	entry, ok := r.entries[name]
	if !ok {
		return 0, 0, &errs.TextureError{Name: name, Available: r.names()}
	}
	return entry.descriptor.Width, entry.descriptor.Height, nil
}

func (r *Registry) releaseLocked(name string) {
	entry, ok := r.entries[name]
	if !ok || entry.handle == nil {
		return
	}
	r.pool.Release(entry.handle)
	entry.handle = nil
}

// Release returns name's live handle to the pool without forgetting its
// descriptor, so a later acquire reuses the same signature bucket.
func (r *Registry) Release(name string) { r.releaseLocked(name) }

// ReleaseAll returns every live handle to the pool. App.Dispose calls it on
// teardown.
func (r *Registry) ReleaseAll() {
	for name := range r.entries {
		r.releaseLocked(name)
	}
}

func (r *Registry) names() []string {
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	return names
}
