// Package filter implements the §3 data model (Filter, Pass) and C8, the
// executor that runs a filter's passes end-to-end each frame.
package filter

import (
	"github.com/sequentialgpu/engine/engine/bindingmgr"
	"github.com/sequentialgpu/engine/engine/buffermgr"
	"github.com/sequentialgpu/engine/engine/pipelinemgr"
)

// Kind distinguishes a render filter (rasterizes a full-screen triangle per
// pass) from a compute filter (dispatches a workgroup grid per pass).
type Kind int

const (
	KindRender Kind = iota
	KindCompute
)

func (k Kind) String() string {
	if k == KindCompute {
		return "compute"
	}
	return "render"
}

// Pass is one shader stage within a Filter (§3 "Pass"). Pipeline/BindGroup
// state is lazy: nil until the Pipeline Manager (C5) builds it, at which
// point Built holds the pipeline, shader metadata, and the pass's group-0
// bind group.
type Pass struct {
	Label     string
	Inputs    []string // ordered input texture names
	Output    string   // texture name, or "" for "none" (swap-chain surface, terminal)
	ShaderRef string
	Active    bool

	Built *pipelinemgr.Built
}

// IsTerminal reports whether this pass renders to the swap-chain surface
// and ends its filter's pass loop for the frame (§3, §4.8 step 4).
func (p *Pass) IsTerminal() bool { return p.Output == "" }

// Aliases reports whether p's output also appears among its own inputs,
// the read-after-write hazard that forces rendering through a scratch
// texture (§3 Pass invariant, §4.8 step 3).
func (p *Pass) Aliases() bool {
	if p.Output == "" {
		return false
	}
	for _, in := range p.Inputs {
		if in == p.Output {
			return true
		}
	}
	return false
}

// Filter is a named processing unit (§3 "Filter"): an ordered list of
// passes sharing one kind and an optional parameter buffer.
type Filter struct {
	Name   string
	Kind   Kind
	Passes []*Pass

	Buffer *buffermgr.Manager // nil if the filter has no buffer_attachment

	Active      bool
	NeedsRender bool
}

// BufferKind returns the bindingmgr.BufferKind a pass's Contract should
// declare for this filter: none if it carries no buffer_attachment,
// otherwise uniform for a render filter or storage for a compute one.
func (f *Filter) BufferKind() bindingmgr.BufferKind {
	if f.Buffer == nil {
		return bindingmgr.BufferNone
	}
	if f.Kind == KindCompute {
		return bindingmgr.BufferStorage
	}
	return bindingmgr.BufferUniform
}
