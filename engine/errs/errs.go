// Package errs defines the typed error kinds returned across the engine's
// component boundaries. Components wrap underlying causes with fmt.Errorf's
// %w verb so callers can still unwrap to an *wgpu* error or the sentinel
// values below with errors.Is/errors.As.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for conditions callers are expected to check for directly.
var (
	// ErrDeviceLost indicates the GPU device was lost and all in-flight and
	// pending work has been rejected. Returned until recovery completes.
	ErrDeviceLost = errors.New("engine: device lost")

	// ErrCancelled indicates a scheduled task was cancelled before it ran.
	ErrCancelled = errors.New("engine: task cancelled")

	// ErrTimeout indicates an operation exceeded its deadline, e.g. waiting
	// for render completion.
	ErrTimeout = errors.New("engine: operation timed out")
)

// ConfigError reports invalid or missing Settings fields.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("engine: invalid config field %q: %s", e.Field, e.Reason)
}

// ShaderCompileError reports a failed WGSL shader-module creation for the
// shader identified by Key. Messages holds the diagnostic text; the
// pipeline cache fills it with the create call's error as its only entry.
type ShaderCompileError struct {
	Key      string
	Messages []string
}

func (e *ShaderCompileError) Error() string {
	return fmt.Sprintf("engine: shader %q failed to compile: %s", e.Key, strings.Join(e.Messages, "; "))
}

// TextureError reports a reference to a texture that does not exist in the
// pool, or whose attributes mismatch what a pass required.
type TextureError struct {
	Name      string
	Available []string
}

func (e *TextureError) Error() string {
	return fmt.Sprintf("engine: texture %q not found (available: %s)", e.Name, strings.Join(e.Available, ", "))
}

// BindingError reports a failure resolving a bind group for a pass, e.g. a
// missing sampler slot or a binding index collision.
type BindingError struct {
	Filter string
	Pass   int
	Reason string
}

func (e *BindingError) Error() string {
	return fmt.Sprintf("engine: filter %q pass %d: binding error: %s", e.Filter, e.Pass, e.Reason)
}

// BufferError reports a failure writing or sizing a uniform/storage buffer
// binding.
type BufferError struct {
	Filter  string
	Binding string
	Reason  string
}

func (e *BufferError) Error() string {
	return fmt.Sprintf("engine: filter %q buffer binding %q: %s", e.Filter, e.Binding, e.Reason)
}

// PipelineError reports a failure constructing a render or compute pipeline.
type PipelineError struct {
	Key    string
	Reason string
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("engine: pipeline %q: %s", e.Key, e.Reason)
}

// InternalError reports a condition that should be unreachable given the
// engine's own invariants — surfaced rather than panicked so a host
// application can log and attempt recovery instead of crashing.
type InternalError struct {
	Op     string
	Reason string
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("engine: internal error in %s: %s", e.Op, e.Reason)
}

// ProcessingError reports a failure in the render queue's own scheduling
// loop (as opposed to a task's own error, which settles only that task's
// future). Every task still pending when this occurs is rejected with a
// ProcessingError of its own.
type ProcessingError struct {
	Reason string
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("engine: render queue processing error: %s", e.Reason)
}
