// Package scene holds what a frame is rendered from: meshes with their
// bounding spheres, materials, renderable objects, point lights and the
// glTF loader that builds them.
package scene

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/om3d/forward/pkg/gpu"
	"github.com/om3d/forward/pkg/math3d"
)

// MeshVertex holds all vertex attributes on the CPU side.
type MeshVertex struct {
	Position math3d.Vec3
	Normal   math3d.Vec3
	UV       math3d.Vec2
	Tangent  math3d.Vec4 // xyz tangent, w bitangent sign
	Color    math3d.Vec3
}

// MeshData is the CPU-side geometry of a mesh before upload. Triangles are
// counter-clockwise, three indices each.
type MeshData struct {
	Vertices []MeshVertex
	Indices  []uint32
}

// Positions returns the vertex positions.
func (d *MeshData) Positions() []math3d.Vec3 {
	out := make([]math3d.Vec3, len(d.Vertices))
	for i, v := range d.Vertices {
		out[i] = v.Position
	}
	return out
}

// Validate reports an error unless the indices form a triangle list over
// the vertices.
func (d *MeshData) Validate() error {
	if len(d.Indices)%3 != 0 {
		return fmt.Errorf("%d indices is not a triangle list", len(d.Indices))
	}
	for _, i := range d.Indices {
		if int(i) >= len(d.Vertices) {
			return fmt.Errorf("index %d out of range (%d vertices)", i, len(d.Vertices))
		}
	}
	return nil
}

// CalculateSmoothNormals computes area-weighted averaged vertex normals.
// The data must be valid.
func (d *MeshData) CalculateSmoothNormals() {
	for i := range d.Vertices {
		d.Vertices[i].Normal = math3d.Vec3{}
	}

	for i := 0; i+2 < len(d.Indices); i += 3 {
		a, b, c := d.Indices[i], d.Indices[i+1], d.Indices[i+2]
		v0 := d.Vertices[a].Position
		v1 := d.Vertices[b].Position
		v2 := d.Vertices[c].Position

		// Not normalized: larger triangles weigh more.
		n := v1.Sub(v0).Cross(v2.Sub(v0))

		d.Vertices[a].Normal = d.Vertices[a].Normal.Add(n)
		d.Vertices[b].Normal = d.Vertices[b].Normal.Add(n)
		d.Vertices[c].Normal = d.Vertices[c].Normal.Add(n)
	}

	for i := range d.Vertices {
		d.Vertices[i].Normal = d.Vertices[i].Normal.Normalize()
	}
}

// HasNormals reports whether any vertex carries a non-zero normal.
func (d *MeshData) HasNormals() bool {
	for _, v := range d.Vertices {
		if v.Normal.LenSq() > 1e-6 {
			return true
		}
	}
	return false
}

func (d *MeshData) gpuVertices() []gpu.Vertex {
	out := make([]gpu.Vertex, len(d.Vertices))
	for i, v := range d.Vertices {
		out[i] = gpu.Vertex{
			Position: gpu.Vec3(v.Position),
			Normal:   gpu.Vec3(v.Normal),
			UV:       mgl32.Vec2{float32(v.UV.X), float32(v.UV.Y)},
			Tangent:  mgl32.Vec4{float32(v.Tangent.X), float32(v.Tangent.Y), float32(v.Tangent.Z), float32(v.Tangent.W)},
			Color:    gpu.Vec3(v.Color),
		}
	}
	return out
}

// Mesh is immutable uploaded geometry plus its local-space bounding
// sphere. A Mesh may be shared by any number of objects.
type Mesh struct {
	Name     string
	geometry gpu.Geometry
	bounds   BoundingSphere
	vertices int
}

// NewMesh computes the bounding sphere of data and uploads it to dev.
func NewMesh(dev gpu.Device, name string, data MeshData, mode BoundsMode) (*Mesh, error) {
	if err := data.Validate(); err != nil {
		return nil, fmt.Errorf("mesh %q: %w", name, err)
	}
	geom, err := dev.NewGeometry(data.gpuVertices(), data.Indices)
	if err != nil {
		return nil, fmt.Errorf("upload mesh %q: %w", name, err)
	}
	return &Mesh{
		Name:     name,
		geometry: geom,
		bounds:   ComputeBoundingSphere(data.Positions(), mode),
		vertices: len(data.Vertices),
	}, nil
}

// Bounds returns the local-space bounding sphere.
func (m *Mesh) Bounds() BoundingSphere {
	return m.bounds
}

// VertexCount returns the number of uploaded vertices.
func (m *Mesh) VertexCount() int {
	return m.vertices
}

// TriangleCount returns the number of uploaded triangles.
func (m *Mesh) TriangleCount() int {
	return m.geometry.IndexCount() / 3
}

// DrawInstanced draws the mesh once per transform bound at the
// per-instance slot.
func (m *Mesh) DrawInstanced(instances int) error {
	return m.geometry.Draw(instances)
}

// Release frees the uploaded geometry.
func (m *Mesh) Release() {
	m.geometry.Release()
}
