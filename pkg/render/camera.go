package render

import (
	"math"

	"github.com/om3d/forward/pkg/math3d"
)

// Camera defaults.
const (
	DefaultFOV         = math.Pi / 3 // 60 degrees, vertical
	DefaultNear        = 0.001
	DefaultSpeed       = 10.0
	DefaultSensitivity = 0.01
)

// Camera holds view and projection matrices. The projection is a reversed-Z
// perspective with an infinite far plane unless replaced with SetProj.
type Camera struct {
	view math3d.Mat4
	proj math3d.Mat4

	// Cached matrices (computed on demand)
	viewProj  math3d.Mat4
	invView   math3d.Mat4
	viewDirty bool
	projDirty bool

	fovY        float64
	aspect      float64
	near        float64
	speed       float64
	sensitivity float64
}

// NewCamera creates a camera at the origin looking down -Z.
func NewCamera() *Camera {
	c := &Camera{
		view:        math3d.Identity(),
		fovY:        DefaultFOV,
		aspect:      16.0 / 9.0,
		near:        DefaultNear,
		speed:       DefaultSpeed,
		sensitivity: DefaultSensitivity,
		viewDirty:   true,
	}
	c.rebuildProjection()
	return c
}

// SetView replaces the view matrix.
func (c *Camera) SetView(m math3d.Mat4) {
	c.view = m
	c.viewDirty = true
}

// SetProj replaces the projection matrix. A later SetFOV, SetAspect or
// SetNear rebuilds the default projection over it.
func (c *Camera) SetProj(m math3d.Mat4) {
	c.proj = m
	c.projDirty = true
}

// LookAt points the camera from eye towards target.
func (c *Camera) LookAt(eye, target, up math3d.Vec3) {
	c.SetView(math3d.LookAt(eye, target, up))
}

// SetFOV sets the vertical field of view in radians.
func (c *Camera) SetFOV(fov float64) {
	c.fovY = fov
	c.rebuildProjection()
}

// SetAspect sets the width/height ratio.
func (c *Camera) SetAspect(aspect float64) {
	if aspect <= 0 {
		return
	}
	c.aspect = aspect
	c.rebuildProjection()
}

// SetNear sets the near plane distance.
func (c *Camera) SetNear(near float64) {
	c.near = near
	c.rebuildProjection()
}

func (c *Camera) rebuildProjection() {
	c.SetProj(math3d.InfinitePerspective(c.fovY, c.aspect, c.near))
}

// FOV returns the vertical field of view in radians.
func (c *Camera) FOV() float64 { return c.fovY }

// Aspect returns the width/height ratio.
func (c *Camera) Aspect() float64 { return c.aspect }

// Near returns the near plane distance.
func (c *Camera) Near() float64 { return c.near }

// Speed returns the movement speed.
func (c *Camera) Speed() float64 { return c.speed }

// SetSpeed sets the movement speed. Negative values are clamped to zero.
func (c *Camera) SetSpeed(s float64) { c.speed = math.Max(0, s) }

// Sensitivity returns the look sensitivity in radians per input unit.
func (c *Camera) Sensitivity() float64 { return c.sensitivity }

// SetSensitivity sets the look sensitivity. Negative values are clamped to
// zero.
func (c *Camera) SetSensitivity(s float64) { c.sensitivity = math.Max(0, s) }

// ViewMatrix returns the view matrix.
func (c *Camera) ViewMatrix() math3d.Mat4 {
	return c.view
}

// ProjectionMatrix returns the projection matrix.
func (c *Camera) ProjectionMatrix() math3d.Mat4 {
	return c.proj
}

// ViewProjectionMatrix returns projection * view for the latest matrices.
func (c *Camera) ViewProjectionMatrix() math3d.Mat4 {
	c.update()
	return c.viewProj
}

func (c *Camera) update() {
	if c.viewDirty {
		c.invView = c.view.Inverse()
	}
	if c.viewDirty || c.projDirty {
		c.viewProj = c.proj.Mul(c.view)
	}
	c.viewDirty = false
	c.projDirty = false
}

// Position returns the eye position in world space.
func (c *Camera) Position() math3d.Vec3 {
	c.update()
	return c.invView.Translation()
}

// Forward returns the unit viewing direction.
func (c *Camera) Forward() math3d.Vec3 {
	c.update()
	return c.invView.Column(2).Vec3().Negate().Normalize()
}

// Right returns the unit right direction.
func (c *Camera) Right() math3d.Vec3 {
	c.update()
	return c.invView.Column(0).Vec3().Normalize()
}

// Up returns the unit up direction.
func (c *Camera) Up() math3d.Vec3 {
	c.update()
	return c.invView.Column(1).Vec3().Normalize()
}
