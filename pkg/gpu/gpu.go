// Package gpu defines the narrow backend contract the renderer drives:
// buffers bound to fixed slots, indexed geometry with instanced draws,
// textures, shader programs and the fixed-function blend/depth state.
//
// Two backends implement it: pkg/soft (CPU rasterizer) and pkg/glgpu
// (OpenGL 4.5).
package gpu

import (
	"errors"
	"image"
)

var (
	// ErrAllocation is returned when a buffer, texture or geometry object
	// cannot be created. It is not recoverable within a frame.
	ErrAllocation = errors.New("gpu: resource allocation failed")
	// ErrBinding is returned when a resource cannot be bound to a slot.
	ErrBinding = errors.New("gpu: resource binding failed")
)

// BufferUsage names the kind of slot a buffer is bound to.
type BufferUsage int

const (
	UsageAttribute BufferUsage = iota
	UsageIndex
	UsageUniform
	UsageStorage
)

func (u BufferUsage) String() string {
	switch u {
	case UsageAttribute:
		return "attribute"
	case UsageIndex:
		return "index"
	case UsageUniform:
		return "uniform"
	case UsageStorage:
		return "storage"
	}
	return "unknown"
}

// Binding slots shared with the shaders.
const (
	SlotFrame      = 0 // uniform FrameData
	SlotLights     = 1 // storage []PointLight
	SlotTransforms = 2 // storage []ModelTransform
)

// BlendMode selects how fragments combine with the target. BlendNone also
// enables back-face culling with counter-clockwise front faces; BlendAlpha
// disables culling.
type BlendMode int

const (
	BlendNone BlendMode = iota
	BlendAlpha
)

func (b BlendMode) String() string {
	if b == BlendAlpha {
		return "alpha"
	}
	return "none"
}

// DepthTestMode selects the depth comparison. The renderer uses reversed
// depth, so Standard passes fragments with greater-or-equal depth.
type DepthTestMode int

const (
	DepthNone     DepthTestMode = iota // test disabled
	DepthEqual                         // pass if equal
	DepthStandard                      // pass if greater or equal
	DepthReversed                      // pass if less or equal
)

func (d DepthTestMode) String() string {
	switch d {
	case DepthNone:
		return "none"
	case DepthEqual:
		return "equal"
	case DepthStandard:
		return "standard"
	case DepthReversed:
		return "reversed"
	}
	return "unknown"
}

// Buffer is a contiguous GPU allocation.
type Buffer interface {
	// Size returns the allocation size in bytes.
	Size() int
	// Write maps the buffer, copies data to its start and unmaps it.
	Write(data []byte) error
	// Bind attaches the buffer to slot for the given usage.
	Bind(usage BufferUsage, slot int) error
	Release()
}

// Geometry is an uploaded vertex/index pair.
type Geometry interface {
	IndexCount() int
	// Draw issues one indexed draw of instances copies. Per-instance
	// transforms come from the buffer bound at SlotTransforms.
	Draw(instances int) error
	Release()
}

// Texture is a sampled 2D image.
type Texture interface {
	Bind(unit int) error
	Release()
}

// Program is a linked shader program.
type Program interface {
	Bind() error
	Release()
}

// Device creates resources and owns the fixed-function state.
type Device interface {
	NewBuffer(size int) (Buffer, error)
	NewGeometry(vertices []Vertex, indices []uint32) (Geometry, error)
	NewTexture(img image.Image) (Texture, error)
	// NewProgram builds a program from a fragment and vertex shader name
	// with the given preprocessor defines.
	NewProgram(frag, vert string, defines []string) (Program, error)
	SetBlendMode(mode BlendMode)
	SetDepthTestMode(mode DepthTestMode)
}
