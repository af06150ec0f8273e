// Package pipelinecache implements C3: three independent, strictly-LRU,
// content-addressed caches — shader modules, bind-group layouts, and
// pipelines — shared across every filter so identical shader source or
// identical layout shape resolves to one GPU object.
package pipelinecache

import (
	"encoding/json"
	"hash/fnv"
	"sort"
)

// hashJSON canonicalises v (map keys sorted, no whitespace variance) and
// returns its FNV-1a hash as a hex string, per §4.3's "canonicalised
// JSON-like serialisation".
func hashJSON(v any) string {
	canon := canonicalize(v)
	b, _ := json.Marshal(canon)
	h := fnv.New64a()
	h.Write(b)
	sum := h.Sum64()
	return hex(sum)
}

// canonicalize recursively converts v's maps into sorted-key slices of
// [key, value] pairs so json.Marshal's output is deterministic regardless
// of Go's randomized map iteration order; json.Marshal already sorts
// map[string]T keys, so this only matters for nested any-typed maps
// produced ad hoc by callers.
func canonicalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make([]any, 0, len(keys))
		for _, k := range keys {
			out = append(out, [2]any{k, canonicalize(t[k])})
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = canonicalize(e)
		}
		return out
	default:
		return v
	}
}

const hexDigits = "0123456789abcdef"

func hex(v uint64) string {
	buf := make([]byte, 16)
	for i := 15; i >= 0; i-- {
		buf[i] = hexDigits[v&0xf]
		v >>= 4
	}
	return string(buf)
}

// ShaderKey hashes raw shader source bytes; identical source (even across
// distinct refs) resolves to one module.
func ShaderKey(source string) string {
	return hashJSON(source)
}

// LayoutSpec is the canonical input to a bind-group layout key (§4.3).
type LayoutSpec struct {
	Kind               string `json:"kind"`
	InputCount         int    `json:"input_count"`
	HasBuffer          bool   `json:"has_buffer"`
	BufferKind         string `json:"buffer_kind,omitempty"`
	BufferBindingIndex int    `json:"buffer_binding_index,omitempty"`
}

func LayoutKey(spec LayoutSpec) string {
	return hashJSON(map[string]any{
		"kind":                 spec.Kind,
		"input_count":          spec.InputCount,
		"has_buffer":           spec.HasBuffer,
		"buffer_kind":          spec.BufferKind,
		"buffer_binding_index": spec.BufferBindingIndex,
	})
}

// PipelineSpec is the canonical input to a pipeline key (§4.3).
type PipelineSpec struct {
	Kind             string   `json:"kind"`
	ShaderRef        string   `json:"shader_ref"`
	SurfaceFormat    string   `json:"surface_format"`
	SampleCount      uint32   `json:"sample_count"`
	LayoutEntries    []string `json:"layout_entries"`
	VertexSpec       string   `json:"vertex_spec,omitempty"`
	FragmentSpec     string   `json:"fragment_spec,omitempty"`
	ComputeSpec      string   `json:"compute_spec,omitempty"`
	MultisampleSpec  string   `json:"multisample_spec,omitempty"`
}

func PipelineKey(spec PipelineSpec) string {
	entries := append([]string(nil), spec.LayoutEntries...)
	sort.Strings(entries)
	return hashJSON(map[string]any{
		"kind":             spec.Kind,
		"shader_ref":       spec.ShaderRef,
		"surface_format":   spec.SurfaceFormat,
		"sample_count":     spec.SampleCount,
		"layout_entries":   entries,
		"vertex_spec":      spec.VertexSpec,
		"fragment_spec":    spec.FragmentSpec,
		"compute_spec":     spec.ComputeSpec,
		"multisample_spec": spec.MultisampleSpec,
	})
}
