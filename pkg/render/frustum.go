// Package render turns a scene and a camera into GPU work: frustum
// extraction, per-object visibility, batching by material and the frame
// renderer that binds per-frame data and issues one instanced draw per
// batch.
package render

import (
	"github.com/om3d/forward/pkg/math3d"
)

// Frustum holds the unit normals of the five bounding planes of a view
// volume. There is no far plane: the projection is infinite. Every normal
// points into the volume, and every plane passes through the eye except
// the near plane, which sits at the near distance in front of it.
type Frustum struct {
	Near   math3d.Vec3
	Top    math3d.Vec3
	Bottom math3d.Vec3
	Right  math3d.Vec3
	Left   math3d.Vec3
}

// Normals returns the five normals in test order: top, bottom, left,
// right, near.
func (f Frustum) Normals() [5]math3d.Vec3 {
	return [5]math3d.Vec3{f.Top, f.Bottom, f.Left, f.Right, f.Near}
}

// NewFrustumFromMatrix extracts frustum normals from a view-projection
// matrix with the Gribb/Hartmann row combinations. The far plane
// (row3 - row2) is not extracted.
func NewFrustumFromMatrix(m math3d.Mat4) Frustum {
	// For column-major m, row i element j is at m[i + j*4].
	row0 := m.Row(0).Vec3()
	row1 := m.Row(1).Vec3()
	row2 := m.Row(2).Vec3()
	row3 := m.Row(3).Vec3()

	return Frustum{
		Left:   row3.Add(row0).Normalize(),
		Right:  row3.Sub(row0).Normalize(),
		Bottom: row3.Add(row1).Normalize(),
		Top:    row3.Sub(row1).Normalize(),
		// row2.xyz is zero under the reversed infinite projection, leaving
		// the viewing direction.
		Near: row3.Add(row2).Normalize(),
	}
}

// BuildFrustum extracts the frustum of the camera's current view and
// projection. It is derived on every call and never cached.
func (c *Camera) BuildFrustum() Frustum {
	return NewFrustumFromMatrix(c.ViewProjectionMatrix())
}
