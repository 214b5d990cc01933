package control

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/om3d/forward/pkg/math3d"
	"github.com/om3d/forward/pkg/render"
)

const eps = 1e-9

func newCamera() *render.Camera {
	cam := render.NewCamera()
	cam.LookAt(math3d.V3(0, 0, 0), math3d.V3(0, 0, -1), math3d.Up())
	return cam
}

func TestFlyMove(t *testing.T) {
	tests := []struct {
		name string
		in   Input
		want math3d.Vec3
	}{
		{"forward", Input{Forward: true}, math3d.V3(0, 0, -50)},
		{"back", Input{Back: true}, math3d.V3(0, 0, 50)},
		{"right", Input{Right: true}, math3d.V3(50, 0, 0)},
		{"left", Input{Left: true}, math3d.V3(-50, 0, 0)},
		{"up", Input{Up: true}, math3d.V3(0, 50, 0)},
		{"boost", Input{Forward: true, Boost: true}, math3d.V3(0, 0, -100)},
		{"diagonal", Input{Forward: true, Right: true}, math3d.V3(50, 0, -50)},
		{"cancel", Input{Forward: true, Back: true}, math3d.V3(0, 0, 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cam := newCamera()
			// speed 10 * 100 * 0.05s = 50 units
			NewFly(0).Update(cam, tt.in, 0.05)

			assert.True(t, cam.Position().ApproxEqual(tt.want, eps), "position %v, want %v", cam.Position(), tt.want)
			assert.True(t, cam.Forward().ApproxEqual(math3d.V3(0, 0, -1), eps), "moving keeps the heading")
		})
	}
}

func TestFlyIdleKeepsView(t *testing.T) {
	cam := newCamera()
	view := cam.ViewMatrix()
	NewFly(0).Update(cam, Input{}, 0.016)
	assert.Equal(t, view, cam.ViewMatrix())
}

func TestFlyZeroSpeed(t *testing.T) {
	cam := newCamera()
	cam.SetSpeed(0)
	NewFly(0).Update(cam, Input{Forward: true}, 1)
	assert.True(t, cam.Position().ApproxEqual(math3d.V3(0, 0, 0), eps))
}

func TestFlyLook(t *testing.T) {
	t.Run("drag right turns right", func(t *testing.T) {
		cam := newCamera()
		NewFly(0).Update(cam, Input{LookX: 10}, 0.016)

		want := math3d.V3(math.Sin(0.1), 0, -math.Cos(0.1))
		assert.True(t, cam.Forward().ApproxEqual(want, eps), "forward %v, want %v", cam.Forward(), want)
		assert.True(t, cam.Position().ApproxEqual(math3d.V3(0, 0, 0), eps))
	})

	t.Run("drag down looks down", func(t *testing.T) {
		cam := newCamera()
		NewFly(0).Update(cam, Input{LookY: 10}, 0.016)

		want := math3d.V3(0, -math.Sin(0.1), -math.Cos(0.1))
		assert.True(t, cam.Forward().ApproxEqual(want, eps), "forward %v, want %v", cam.Forward(), want)
	})

	t.Run("basis stays orthonormal", func(t *testing.T) {
		cam := newCamera()
		fly := NewFly(0)
		for range 50 {
			fly.Update(cam, Input{LookX: 3, LookY: -2}, 0.016)
		}
		f, r, u := cam.Forward(), cam.Right(), cam.Up()
		assert.InDelta(t, 1, f.Len(), 1e-9)
		assert.InDelta(t, 0, f.Dot(r), 1e-9)
		assert.InDelta(t, 0, f.Dot(u), 1e-9)
		assert.InDelta(t, 0, r.Dot(u), 1e-9)
		assert.InDelta(t, 0, r.Y, 1e-9, "yaw about world up keeps the horizon level")
	})
}

func TestFlySmoothing(t *testing.T) {
	cam := newCamera()
	fly := NewFly(60)
	const dt = 1.0 / 60
	target := cam.Speed() * speedScale

	fly.Update(cam, Input{Forward: true}, dt)
	first := -fly.Velocity().Z
	assert.Greater(t, first, 0.0)
	assert.Less(t, first, target, "the first frame eases in")

	for range 120 {
		fly.Update(cam, Input{Forward: true}, dt)
	}
	assert.InDelta(t, target, -fly.Velocity().Z, target*0.01)

	for range 120 {
		fly.Update(cam, Input{}, dt)
	}
	assert.InDelta(t, 0, fly.Velocity().Len(), target*0.01, "coasts to a stop")

	fly.Stop()
	assert.Equal(t, math3d.Vec3{}, fly.Velocity())
}

func TestInputMoving(t *testing.T) {
	assert.False(t, Input{}.Moving())
	assert.False(t, Input{Boost: true, LookX: 1}.Moving())
	assert.True(t, Input{Up: true}.Moving())
}

func BenchmarkFlyUpdate(b *testing.B) {
	cam := newCamera()
	fly := NewFly(60)
	in := Input{Forward: true, Right: true, LookX: 1}
	for b.Loop() {
		fly.Update(cam, in, 1.0/60)
	}
}
