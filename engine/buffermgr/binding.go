// Package buffermgr implements C2: sizing, aligning, initializing, and
// partially updating the uniform/storage buffers attached to a filter.
package buffermgr

import (
	"encoding/binary"
	"math"

	"github.com/sequentialgpu/engine/engine/errs"
)

// BindingType is the tagged-variant type for a single buffer binding value
// (design note §9: "Binding as a sum type", not a duck-typed {type, value}
// pair).
type BindingType int

const (
	BindingUniform BindingType = iota
	BindingFloat
	BindingVec2
	BindingVec3
	BindingVec4
	BindingMat4
	BindingStorage
)

// byteSize returns the WGSL-aligned byte size of one scalar/vector value of
// this type, or 0 for Storage, whose size depends on its value length. Float
// reports its scalar size of 4; calculateSize handles Float arrays.
func (t BindingType) byteSize() int {
	switch t {
	case BindingUniform, BindingFloat:
		return 4
	case BindingVec2:
		return 8
	case BindingVec3:
		return 12
	case BindingVec4:
		return 16
	case BindingMat4:
		return 64
	default:
		return 0
	}
}

// Usage describes how a storage binding is accessed by its shader.
type Usage int

const (
	UsageRead Usage = iota
	UsageWrite
	UsageReadWrite
)

// Binding is one named value within a filter's buffer_attachment (§3).
type Binding struct {
	Name   string
	Type   BindingType
	Value  []float32 // scalar types use Value[0]; vectors/mat4 use the full slice
	Usage  Usage
	// Size overrides calculate_size when set (§4.2 calculate_size); used by
	// Storage bindings whose size isn't implied by an initial value, e.g. a
	// histogram accumulator sized in bins rather than by an initializer.
	Size *int

	byteOffset int
}

// ByteOffset returns the binding's recorded offset within its buffer,
// computed by Layout.
func (b Binding) ByteOffset() int { return b.byteOffset }

// calculateSize implements §4.2 calculate_size(binding): explicit Size wins;
// otherwise infer from the type, falling back to value length for Float
// arrays and Storage bindings.
func calculateSize(b Binding) int {
	if b.Size != nil {
		return *b.Size
	}
	if size := b.Type.byteSize(); size > 0 {
		if b.Type == BindingFloat && len(b.Value) > 1 {
			return len(b.Value) * 4
		}
		return size
	}
	// Storage: size = len(value) * 4, padded by caller.
	return len(b.Value) * 4
}

// alignUp rounds n up to the next multiple of align.
func alignUp(n, align int) int {
	if align == 0 {
		return n
	}
	rem := n % align
	if rem == 0 {
		return n
	}
	return n + (align - rem)
}

// encode writes b's value at its byte offset into dst using little-endian
// IEEE-754 float encoding, the way every WebGPU uniform/storage buffer is
// laid out.
func encode(dst []byte, b Binding) error {
	offset := b.byteOffset
	switch b.Type {
	case BindingUniform, BindingFloat:
		if len(b.Value) == 0 {
			return &errs.BufferError{Binding: b.Name, Reason: "missing scalar value"}
		}
		if b.Type == BindingFloat && len(b.Value) > 1 {
			for i, v := range b.Value {
				putFloat32(dst, offset+i*4, v)
			}
			return nil
		}
		putFloat32(dst, offset, b.Value[0])
	case BindingVec2, BindingVec3, BindingVec4:
		n := map[BindingType]int{BindingVec2: 2, BindingVec3: 3, BindingVec4: 4}[b.Type]
		if len(b.Value) != n {
			return &errs.BufferError{Binding: b.Name, Reason: "value length mismatch"}
		}
		for i := 0; i < n; i++ {
			putFloat32(dst, offset+i*4, b.Value[i])
		}
	case BindingMat4:
		if len(b.Value) != 16 {
			return &errs.BufferError{Binding: b.Name, Reason: "value length mismatch"}
		}
		for i := 0; i < 16; i++ {
			putFloat32(dst, offset+i*4, b.Value[i])
		}
	case BindingStorage:
		for i, v := range b.Value {
			putFloat32(dst, offset+i*4, v)
		}
	}
	return nil
}

func putFloat32(dst []byte, offset int, v float32) {
	binary.LittleEndian.PutUint32(dst[offset:offset+4], math.Float32bits(v))
}
