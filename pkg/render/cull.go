package render

import (
	"fmt"
	"strings"

	"github.com/om3d/forward/pkg/math3d"
	"github.com/om3d/forward/pkg/scene"
)

// CullMode selects the per-object visibility test.
type CullMode int

const (
	// CullProbe offsets the sphere center by radius along each plane
	// normal and requires the ray from the eye to every probe point to
	// point into the frustum.
	CullProbe CullMode = iota
	// CullSphere is the plane-distance test: the sphere is rejected if its
	// center lies more than one radius behind any plane.
	CullSphere
	// CullNone draws everything.
	CullNone
)

func (m CullMode) String() string {
	switch m {
	case CullProbe:
		return "probe"
	case CullSphere:
		return "sphere"
	case CullNone:
		return "none"
	}
	return "unknown"
}

// ParseCullMode parses "probe", "sphere" or "none".
func ParseCullMode(s string) (CullMode, error) {
	switch strings.ToLower(s) {
	case "", "probe":
		return CullProbe, nil
	case "sphere":
		return CullSphere, nil
	case "none":
		return CullNone, nil
	}
	return 0, fmt.Errorf("unknown cull mode %q", s)
}

// worldSphere returns the world-space center and the radius scaled by the
// largest basis length of transform.
func worldSphere(transform math3d.Mat4, bounds scene.BoundingSphere) (math3d.Vec3, float64) {
	return transform.MulVec3(bounds.Center), bounds.Radius * transform.MaxScale()
}

// IsVisible is the probe test. It is conservative: it may keep objects
// that are off screen but never rejects a sphere containing the eye.
func IsVisible(transform math3d.Mat4, bounds scene.BoundingSphere, f Frustum, eye math3d.Vec3) bool {
	center, radius := worldSphere(transform, bounds)

	inside := 0
	for _, n := range f.Normals() {
		probe := center.Add(n.Scale(radius))
		if probe.Sub(eye).Dot(n) > 0 {
			inside++
		}
	}
	return inside == 5
}

// IntersectsSphere is the plane-distance test against planes through the
// eye.
func IntersectsSphere(transform math3d.Mat4, bounds scene.BoundingSphere, f Frustum, eye math3d.Vec3) bool {
	center, radius := worldSphere(transform, bounds)

	for _, n := range f.Normals() {
		if center.Sub(eye).Dot(n) < -radius {
			return false
		}
	}
	return true
}

// Visible applies the test selected by m.
func (m CullMode) Visible(transform math3d.Mat4, bounds scene.BoundingSphere, f Frustum, eye math3d.Vec3) bool {
	switch m {
	case CullSphere:
		return IntersectsSphere(transform, bounds, f, eye)
	case CullNone:
		return true
	default:
		return IsVisible(transform, bounds, f, eye)
	}
}
