package gpu

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/om3d/forward/pkg/math3d"
)

// CameraData is the camera part of FrameData.
type CameraData struct {
	ViewProj mgl32.Mat4
}

// FrameData is the per-frame uniform record bound at SlotFrame.
type FrameData struct {
	Camera          CameraData
	SunDir          mgl32.Vec3
	PointLightCount uint32
	SunColor        mgl32.Vec3
	_               float32
}

// PointLight is one record of the light buffer bound at SlotLights.
type PointLight struct {
	Position mgl32.Vec3
	Radius   float32
	Color    mgl32.Vec3
	_        float32
}

// ModelTransform is one per-instance record of the buffer bound at
// SlotTransforms.
type ModelTransform struct {
	Transform mgl32.Mat4
}

// Vertex is the interleaved vertex layout uploaded by NewGeometry.
type Vertex struct {
	Position mgl32.Vec3
	Normal   mgl32.Vec3
	UV       mgl32.Vec2
	Tangent  mgl32.Vec4
	Color    mgl32.Vec3
}

// Mat4 converts a column-major float64 matrix to its GPU layout.
func Mat4(m math3d.Mat4) mgl32.Mat4 {
	var out mgl32.Mat4
	for i, v := range m {
		out[i] = float32(v)
	}
	return out
}

// Vec3 converts a float64 vector to its GPU layout.
func Vec3(v math3d.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{float32(v.X), float32(v.Y), float32(v.Z)}
}

// FromMat4 converts a GPU matrix back to float64.
func FromMat4(m mgl32.Mat4) math3d.Mat4 {
	var out math3d.Mat4
	for i, v := range m {
		out[i] = float64(v)
	}
	return out
}

// FromVec3 converts a GPU vector back to float64.
func FromVec3(v mgl32.Vec3) math3d.Vec3 {
	return math3d.V3(float64(v[0]), float64(v[1]), float64(v[2]))
}
