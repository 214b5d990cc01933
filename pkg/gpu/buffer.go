package gpu

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// TypedBuffer is a Buffer holding a packed array of T. It always holds at
// least one element so that it can be bound even when empty.
type TypedBuffer[T any] struct {
	Buffer
	count int
}

// NewTypedBuffer allocates room for max(len(items), 1) elements of T and
// writes items to it, little-endian and tightly packed.
func NewTypedBuffer[T any](dev Device, items []T) (*TypedBuffer[T], error) {
	var zero T
	stride := binary.Size(zero)
	if stride <= 0 {
		return nil, fmt.Errorf("%w: %T is not fixed-size", ErrAllocation, zero)
	}
	n := max(len(items), 1)

	buf, err := dev.NewBuffer(stride * n)
	if err != nil {
		return nil, fmt.Errorf("%w: %d x %T: %w", ErrAllocation, n, zero, err)
	}
	tb := &TypedBuffer[T]{Buffer: buf, count: len(items)}
	if len(items) == 0 {
		return tb, nil
	}

	var b bytes.Buffer
	b.Grow(stride * len(items))
	if err := binary.Write(&b, binary.LittleEndian, items); err != nil {
		buf.Release()
		return nil, fmt.Errorf("encode %T: %w", zero, err)
	}
	if err := buf.Write(b.Bytes()); err != nil {
		buf.Release()
		return nil, fmt.Errorf("%w: write %T: %w", ErrAllocation, zero, err)
	}
	return tb, nil
}

// Count returns the number of elements written, which may be zero.
func (b *TypedBuffer[T]) Count() int {
	return b.count
}

// Elements returns the number of allocated elements, never less than one.
func (b *TypedBuffer[T]) Elements() int {
	return max(b.count, 1)
}

// Decode reads a packed little-endian array of T from data.
func Decode[T any](data []byte) ([]T, error) {
	var zero T
	stride := binary.Size(zero)
	if stride <= 0 {
		return nil, fmt.Errorf("%T is not fixed-size", zero)
	}
	out := make([]T, len(data)/stride)
	if err := binary.Read(bytes.NewReader(data[:len(out)*stride]), binary.LittleEndian, out); err != nil {
		return nil, fmt.Errorf("decode %T: %w", zero, err)
	}
	return out, nil
}
