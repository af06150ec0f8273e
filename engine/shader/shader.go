// Package shader parses WGSL source into the metadata the pipeline manager
// needs to build a render or compute pipeline: the vertex/fragment/compute
// entry points a filter pass's shader module exposes. Bind-group and vertex
// layout reflection stays with the binding manager's canonical contract
// (§4.4) — a pass's GPU layout is never derived from the shader source.
package shader

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
)

// Kind identifies whether a shader backs a render pass (vertex + fragment
// entry points in one module) or a compute pass (one compute entry point).
type Kind int

const (
	KindRender Kind = iota
	KindCompute
)

// ShaderType identifies which entry-point kind to search for when parsing a
// single WGSL source that may declare more than one stage.
type ShaderType int

const (
	ShaderTypeVertex ShaderType = iota
	ShaderTypeFragment
	ShaderTypeCompute
)

// Shader is a parsed WGSL module ready for pipeline construction. Unlike the
// teacher's per-stage shader instances, a filter pass references exactly one
// WGSL source (shader_ref) that declares both @vertex and @fragment entry
// points for render passes, or one @compute entry point for compute passes —
// matching a single-pass post-processing filter's one-file-per-pass
// convention.
type Shader struct {
	ref    string
	source string
	kind   Kind

	vertexEntryPoint   string
	fragmentEntryPoint string
	computeEntryPoint  string

	module *wgpu.ShaderModuleDescriptor
}

// Parse builds a Shader from WGSL source text. ref is the logical shader
// reference used for cache keying and source-fetch deduplication (§4.5 step
// 1) — it need not be a filesystem path.
func Parse(ref string, kind Kind, source string) (*Shader, error) {
	s := &Shader{
		ref:    ref,
		source: source,
		kind:   kind,
		module: &wgpu.ShaderModuleDescriptor{
			Label: ref,
			WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
				Code: source,
			},
		},
	}

	switch kind {
	case KindRender:
		s.vertexEntryPoint = parseEntryPoint(source, ShaderTypeVertex)
		s.fragmentEntryPoint = parseEntryPoint(source, ShaderTypeFragment)
		if s.vertexEntryPoint == "" {
			return nil, fmt.Errorf("shader %q: no @vertex entry point found", ref)
		}
		if s.fragmentEntryPoint == "" {
			return nil, fmt.Errorf("shader %q: no @fragment entry point found", ref)
		}
	case KindCompute:
		s.computeEntryPoint = parseEntryPoint(source, ShaderTypeCompute)
		if s.computeEntryPoint == "" {
			return nil, fmt.Errorf("shader %q: no @compute entry point found", ref)
		}
	}

	return s, nil
}

func (s *Shader) Ref() string    { return s.ref }
func (s *Shader) Source() string { return s.source }
func (s *Shader) Kind() Kind     { return s.kind }

func (s *Shader) VertexEntryPoint() string   { return s.vertexEntryPoint }
func (s *Shader) FragmentEntryPoint() string { return s.fragmentEntryPoint }
func (s *Shader) ComputeEntryPoint() string  { return s.computeEntryPoint }

func (s *Shader) Module() *wgpu.ShaderModuleDescriptor { return s.module }
