// Package glgpu implements gpu.Device with OpenGL 4.5 direct state access.
// Every call must happen on the goroutine owning the current context, which
// in turn must stay locked to its OS thread.
package glgpu

import (
	"fmt"
	"image"
	"io"
	"io/fs"
	"log/slog"

	"github.com/go-gl/gl/v4.5-core/gl"

	"github.com/om3d/forward/pkg/gpu"
	"github.com/om3d/forward/pkg/math3d"
)

// Device is an OpenGL gpu.Device.
type Device struct {
	shaders fs.FS
	logger  *slog.Logger

	blend gpu.BlendMode
	depth gpu.DepthTestMode
}

// Option configures a Device.
type Option func(*Device)

// WithLogger sets the logger used for driver messages.
func WithLogger(l *slog.Logger) Option {
	return func(d *Device) {
		d.logger = l
	}
}

// New initializes the GL bindings for the current context and returns a
// device reading shader sources from shaders. It switches the clip volume
// to [0,1] depth so the reversed-Z projection keeps full precision.
func New(shaders fs.FS, opts ...Option) (*Device, error) {
	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("gl init: %w", err)
	}
	d := &Device{
		shaders: shaders,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger.Info("opengl ready",
		"version", gl.GoStr(gl.GetString(gl.VERSION)),
		"renderer", gl.GoStr(gl.GetString(gl.RENDERER)))

	gl.ClipControl(gl.LOWER_LEFT, gl.ZERO_TO_ONE)
	gl.ClearDepth(0)
	d.SetBlendMode(gpu.BlendNone)
	d.SetDepthTestMode(gpu.DepthStandard)
	return d, nil
}

// Viewport sets the drawable area.
func (d *Device) Viewport(width, height int) {
	gl.Viewport(0, 0, int32(width), int32(height))
}

// Clear clears the default framebuffer to c and depth to 0 (far).
func (d *Device) Clear(c math3d.Vec3) {
	// Depth writes must be on for the clear to reach the depth buffer.
	gl.DepthMask(true)
	gl.ClearColor(float32(c.X), float32(c.Y), float32(c.Z), 1)
	gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)
}

// SetBlendMode implements gpu.Device. Opaque geometry culls back faces
// with counter-clockwise front faces; blended geometry draws both sides.
func (d *Device) SetBlendMode(mode gpu.BlendMode) {
	d.blend = mode
	switch mode {
	case gpu.BlendAlpha:
		gl.Enable(gl.BLEND)
		gl.BlendFunc(gl.SRC_ALPHA, gl.ONE_MINUS_SRC_ALPHA)
		gl.Disable(gl.CULL_FACE)
	default:
		gl.Disable(gl.BLEND)
		gl.Enable(gl.CULL_FACE)
		gl.CullFace(gl.BACK)
		gl.FrontFace(gl.CCW)
	}
}

// SetDepthTestMode implements gpu.Device. Depth is reversed, so the
// standard test keeps fragments with greater or equal depth.
func (d *Device) SetDepthTestMode(mode gpu.DepthTestMode) {
	d.depth = mode
	switch mode {
	case gpu.DepthNone:
		gl.Disable(gl.DEPTH_TEST)
		return
	case gpu.DepthEqual:
		gl.DepthFunc(gl.EQUAL)
	case gpu.DepthReversed:
		gl.DepthFunc(gl.LEQUAL)
	default:
		gl.DepthFunc(gl.GEQUAL)
	}
	gl.Enable(gl.DEPTH_TEST)
}

// NewTexture implements gpu.Device.
func (d *Device) NewTexture(img image.Image) (gpu.Texture, error) {
	return newTexture(img)
}

// NewProgram implements gpu.Device.
func (d *Device) NewProgram(frag, vert string, defines []string) (gpu.Program, error) {
	p, err := newProgram(d.shaders, frag, vert, defines)
	if err != nil {
		d.logger.Error("shader program failed", "frag", frag, "vert", vert, "defines", defines, "err", err)
		return nil, err
	}
	return p, nil
}

// checkError drains the GL error queue and reports the first error.
func checkError(op string) error {
	code := gl.GetError()
	if code == gl.NO_ERROR {
		return nil
	}
	for gl.GetError() != gl.NO_ERROR {
	}
	return fmt.Errorf("%s: gl error 0x%04x", op, code)
}
