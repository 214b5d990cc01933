// Package control turns viewer input into camera motion.
package control

import (
	"github.com/charmbracelet/harmonica"

	"github.com/om3d/forward/pkg/math3d"
	"github.com/om3d/forward/pkg/render"
)

// Movement scale applied on top of the camera speed.
const (
	speedScale = 100.0
	boostScale = 2.0
)

// Input is the state of the controls for one frame.
type Input struct {
	Forward, Back bool
	Left, Right   bool
	Up            bool
	Boost         bool

	// LookX and LookY are the pointer movement since the previous frame
	// while looking around, in pointer units (pixels or cells). Positive
	// X is rightwards and positive Y downwards.
	LookX, LookY float64
}

// Moving reports whether any movement key is held.
func (in Input) Moving() bool {
	return in.Forward || in.Back || in.Left || in.Right || in.Up
}

// axis smooths one velocity component with a critically damped spring.
type axis struct {
	spring harmonica.Spring
	vel    float64
	accel  float64
}

func (a *axis) update(target float64) float64 {
	a.vel, a.accel = a.spring.Update(a.vel, a.accel, target)
	return a.vel
}

// Fly is a free-flying camera controller. W/S move along the view
// direction, A/D strafe and Space rises along the camera's up vector.
// Dragging yaws around world up and pitches around the camera's right.
type Fly struct {
	smooth bool
	axes   [3]axis
}

// NewFly returns a controller whose velocity eases towards the input with
// springs stepped fps times per second. fps <= 0 disables smoothing and
// moves at exactly the commanded speed.
func NewFly(fps int) *Fly {
	f := &Fly{smooth: fps > 0}
	if f.smooth {
		spring := harmonica.NewSpring(harmonica.FPS(fps), 6.0, 1.0)
		for i := range f.axes {
			f.axes[i].spring = spring
		}
	}
	return f
}

// Velocity returns the current world-space velocity.
func (f *Fly) Velocity() math3d.Vec3 {
	return math3d.V3(f.axes[0].vel, f.axes[1].vel, f.axes[2].vel)
}

// Stop zeroes the velocity.
func (f *Fly) Stop() {
	for i := range f.axes {
		f.axes[i].vel, f.axes[i].accel = 0, 0
	}
}

// Update moves and turns cam for a frame lasting dt seconds.
func (f *Fly) Update(cam *render.Camera, in Input, dt float64) {
	f.move(cam, in, dt)
	f.look(cam, in)
}

func (f *Fly) move(cam *render.Camera, in Input, dt float64) {
	var dir math3d.Vec3
	if in.Forward {
		dir = dir.Add(cam.Forward())
	}
	if in.Back {
		dir = dir.Sub(cam.Forward())
	}
	if in.Right {
		dir = dir.Add(cam.Right())
	}
	if in.Left {
		dir = dir.Sub(cam.Right())
	}
	if in.Up {
		dir = dir.Add(cam.Up())
	}

	speed := cam.Speed() * speedScale
	if in.Boost {
		speed *= boostScale
	}
	target := dir.Scale(speed)

	vel := target
	if f.smooth {
		vel = math3d.V3(
			f.axes[0].update(target.X),
			f.axes[1].update(target.Y),
			f.axes[2].update(target.Z),
		)
	} else {
		f.axes[0].vel, f.axes[1].vel, f.axes[2].vel = target.X, target.Y, target.Z
	}

	if vel.LenSq() == 0 {
		return
	}
	pos := cam.Position().Add(vel.Scale(dt))
	cam.LookAt(pos, pos.Add(cam.Forward()), cam.Up())
}

func (f *Fly) look(cam *render.Camera, in Input) {
	if in.LookX == 0 && in.LookY == 0 {
		return
	}
	yaw := -in.LookX * cam.Sensitivity()
	pitch := -in.LookY * cam.Sensitivity()

	rot := math3d.RotateY(yaw).Mul(math3d.Rotate(cam.Right(), pitch))
	pos := cam.Position()
	cam.LookAt(pos, pos.Add(rot.MulVec3Dir(cam.Forward())), rot.MulVec3Dir(cam.Up()))
}
