package glgpu

import (
	"fmt"
	"unsafe"

	"github.com/go-gl/gl/v4.5-core/gl"

	"github.com/om3d/forward/pkg/gpu"
)

// Vertex attribute locations in basic.vert.
const (
	attribPosition = 0
	attribNormal   = 1
	attribUV       = 2
	attribTangent  = 3
	attribColor    = 4
)

// geometry is a VAO over one vertex and one index buffer.
type geometry struct {
	vao, vbo, ebo uint32
	count         int32
}

// NewGeometry implements gpu.Device.
func (d *Device) NewGeometry(vertices []gpu.Vertex, indices []uint32) (gpu.Geometry, error) {
	if len(vertices) == 0 || len(indices) == 0 {
		return nil, fmt.Errorf("%w: empty geometry", gpu.ErrAllocation)
	}
	g := &geometry{count: int32(len(indices))}

	stride := int(unsafe.Sizeof(gpu.Vertex{}))
	gl.CreateBuffers(1, &g.vbo)
	gl.NamedBufferData(g.vbo, stride*len(vertices), gl.Ptr(&vertices[0]), gl.STATIC_DRAW)
	gl.CreateBuffers(1, &g.ebo)
	gl.NamedBufferData(g.ebo, 4*len(indices), gl.Ptr(&indices[0]), gl.STATIC_DRAW)

	gl.CreateVertexArrays(1, &g.vao)
	gl.VertexArrayVertexBuffer(g.vao, 0, g.vbo, 0, int32(stride))
	gl.VertexArrayElementBuffer(g.vao, g.ebo)

	layout := func(loc uint32, size int32, offset uintptr) {
		gl.EnableVertexArrayAttrib(g.vao, loc)
		gl.VertexArrayAttribFormat(g.vao, loc, size, gl.FLOAT, false, uint32(offset))
		gl.VertexArrayAttribBinding(g.vao, loc, 0)
	}
	layout(attribPosition, 3, unsafe.Offsetof(gpu.Vertex{}.Position))
	layout(attribNormal, 3, unsafe.Offsetof(gpu.Vertex{}.Normal))
	layout(attribUV, 2, unsafe.Offsetof(gpu.Vertex{}.UV))
	layout(attribTangent, 4, unsafe.Offsetof(gpu.Vertex{}.Tangent))
	layout(attribColor, 3, unsafe.Offsetof(gpu.Vertex{}.Color))

	if err := checkError("upload geometry"); err != nil {
		g.Release()
		return nil, fmt.Errorf("%w: %w", gpu.ErrAllocation, err)
	}
	return g, nil
}

func (g *geometry) IndexCount() int { return int(g.count) }

// Draw issues one instanced indexed draw.
func (g *geometry) Draw(instances int) error {
	if instances <= 0 {
		return nil
	}
	gl.BindVertexArray(g.vao)
	gl.DrawElementsInstanced(gl.TRIANGLES, g.count, gl.UNSIGNED_INT, nil, int32(instances))
	gl.BindVertexArray(0)
	return checkError("draw")
}

func (g *geometry) Release() {
	if g.vao != 0 {
		gl.DeleteVertexArrays(1, &g.vao)
	}
	buffers := []uint32{g.vbo, g.ebo}
	gl.DeleteBuffers(int32(len(buffers)), &buffers[0])
	g.vao, g.vbo, g.ebo = 0, 0, 0
}
