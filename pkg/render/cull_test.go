package render

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/om3d/forward/pkg/math3d"
	"github.com/om3d/forward/pkg/scene"
)

var unitBounds = scene.BoundingSphere{Radius: 1}

func TestIsVisible(t *testing.T) {
	cam := NewCamera()
	f := cam.BuildFrustum()
	eye := cam.Position()

	tests := []struct {
		name      string
		transform math3d.Mat4
		want      bool
	}{
		{"ahead", math3d.Translate(math3d.V3(0, 0, -10)), true},
		{"far ahead", math3d.Translate(math3d.V3(0, 0, -1e5)), true},
		{"behind", math3d.Translate(math3d.V3(0, 0, 10)), false},
		{"far right", math3d.Translate(math3d.V3(1000, 0, 0)), false},
		{"far left", math3d.Translate(math3d.V3(-1000, 0, -1)), false},
		{"above", math3d.Translate(math3d.V3(0, 100, -1)), false},
		{"straddles near plane", math3d.Translate(math3d.V3(0, 0, 0.5)), true},
		{
			"scaled behind",
			math3d.Translate(math3d.V3(0, 0, 10)).Mul(math3d.Scale(math3d.V3(20, 1, 1))),
			true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsVisible(tc.transform, unitBounds, f, eye))
		})
	}
}

func TestEyeInsideSphereIsVisible(t *testing.T) {
	targets := []math3d.Vec3{
		math3d.V3(0, 0, -1),
		math3d.V3(1, 0, 0),
		math3d.V3(0, 0, 1),
		math3d.V3(-3, 2, 5),
		math3d.V3(0.1, -1, 0),
	}
	spheres := []scene.BoundingSphere{
		{Center: math3d.V3(0, 0, 0), Radius: 0.5},
		{Center: math3d.V3(0.3, -0.2, 0.1), Radius: 1},
		{Center: math3d.V3(40, 0, 0), Radius: 50},
	}

	for _, target := range targets {
		cam := NewCamera()
		cam.LookAt(math3d.V3(0, 0, 0), target, math3d.Up())
		f := cam.BuildFrustum()
		eye := cam.Position()
		for _, s := range spheres {
			assert.True(t, IsVisible(math3d.Identity(), s, f, eye), "target %v sphere %+v", target, s)
		}
	}
}

func TestCullModesAgree(t *testing.T) {
	cam := NewCamera()
	cam.LookAt(math3d.V3(2, 3, 8), math3d.V3(0, 0, 0), math3d.Up())
	f := cam.BuildFrustum()
	eye := cam.Position()

	for x := -20; x <= 20; x += 4 {
		for y := -20; y <= 20; y += 4 {
			for z := -20; z <= 20; z += 4 {
				tr := math3d.Translate(math3d.V3(float64(x)+0.25, float64(y)+0.25, float64(z)+0.25))
				probe := IsVisible(tr, unitBounds, f, eye)
				sphere := IntersectsSphere(tr, unitBounds, f, eye)
				assert.Equal(t, probe, sphere, "at %d,%d,%d", x, y, z)
			}
		}
	}
}

func TestCullModeVisible(t *testing.T) {
	cam := NewCamera()
	f := cam.BuildFrustum()
	behind := math3d.Translate(math3d.V3(0, 0, 10))

	assert.False(t, CullProbe.Visible(behind, unitBounds, f, cam.Position()))
	assert.False(t, CullSphere.Visible(behind, unitBounds, f, cam.Position()))
	assert.True(t, CullNone.Visible(behind, unitBounds, f, cam.Position()))
}

func TestParseCullMode(t *testing.T) {
	for _, m := range []CullMode{CullProbe, CullSphere, CullNone} {
		got, err := ParseCullMode(m.String())
		assert.NoError(t, err)
		assert.Equal(t, m, got)
	}
	_, err := ParseCullMode("octree")
	assert.Error(t, err)
}

func BenchmarkIsVisible(b *testing.B) {
	cam := NewCamera()
	f := cam.BuildFrustum()
	eye := cam.Position()
	tr := math3d.Translate(math3d.V3(3, 1, -10))

	for b.Loop() {
		_ = IsVisible(tr, unitBounds, f, eye)
	}
}
