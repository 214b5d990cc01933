package glgpu

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/go-gl/gl/v4.5-core/gl"

	"github.com/om3d/forward/pkg/gpu"
)

// buffer is a named GL buffer object.
type buffer struct {
	id   uint32
	size int
}

// NewBuffer implements gpu.Device.
func (d *Device) NewBuffer(size int) (gpu.Buffer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: buffer size %d", gpu.ErrAllocation, size)
	}
	b := &buffer{size: size}
	gl.CreateBuffers(1, &b.id)
	gl.NamedBufferData(b.id, size, nil, gl.DYNAMIC_DRAW)
	if err := checkError("allocate buffer"); err != nil {
		gl.DeleteBuffers(1, &b.id)
		return nil, fmt.Errorf("%w: %w", gpu.ErrAllocation, err)
	}
	return b, nil
}

func (b *buffer) Size() int { return b.size }

// Write maps the buffer for writing and copies data to its start.
func (b *buffer) Write(data []byte) error {
	if len(data) > b.size {
		return fmt.Errorf("write of %d bytes into %d byte buffer", len(data), b.size)
	}
	if len(data) == 0 {
		return nil
	}
	ptr := gl.MapNamedBuffer(b.id, gl.WRITE_ONLY)
	if ptr == nil {
		return errors.New("map buffer failed")
	}
	copy(unsafe.Slice((*byte)(ptr), b.size), data)
	if !gl.UnmapNamedBuffer(b.id) {
		return errors.New("buffer contents lost during unmap")
	}
	return nil
}

func (b *buffer) Bind(usage gpu.BufferUsage, slot int) error {
	var target uint32
	switch usage {
	case gpu.UsageUniform:
		target = gl.UNIFORM_BUFFER
	case gpu.UsageStorage:
		target = gl.SHADER_STORAGE_BUFFER
	default:
		return fmt.Errorf("%s buffers have no binding slots", usage)
	}
	gl.BindBufferBase(target, uint32(slot), b.id)
	return checkError("bind buffer")
}

func (b *buffer) Release() {
	if b.id != 0 {
		gl.DeleteBuffers(1, &b.id)
		b.id = 0
	}
}
