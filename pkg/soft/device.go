// Package soft implements gpu.Device on the CPU. Draws are rasterized into
// a Target with a linear HDR color buffer and a reversed-Z depth buffer;
// Resolve tonemaps the result into a Framebuffer that can be drawn to a
// terminal or saved as PNG.
package soft

import (
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"

	"github.com/om3d/forward/pkg/gpu"
	"github.com/om3d/forward/pkg/math3d"
)

// DrawStats counts rasterization work since the last Clear.
type DrawStats struct {
	Draws     int
	Triangles int
	Fragments int
}

// Device is a software gpu.Device. It is not safe for concurrent use.
type Device struct {
	target *Target
	state  rasterState

	slots   map[int]*buffer
	units   map[int]*Texture
	program *program

	// MaxBufferSize bounds single allocations. Zero means unlimited.
	MaxBufferSize int

	Stats  DrawStats
	Logger *slog.Logger
}

// NewDevice returns a device rendering into a width x height target.
func NewDevice(width, height int) *Device {
	return &Device{
		target: NewTarget(width, height),
		state:  rasterState{blend: gpu.BlendNone, depth: gpu.DepthStandard},
		slots:  make(map[int]*buffer),
		units:  make(map[int]*Texture),
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// Target returns the render target.
func (d *Device) Target() *Target {
	return d.target
}

// Resize resizes the render target.
func (d *Device) Resize(width, height int) {
	if width == d.target.Width && height == d.target.Height {
		return
	}
	d.Logger.Debug("resize target", "width", width, "height", height)
	d.target.Resize(width, height)
}

// Clear clears the target to c and resets Stats.
func (d *Device) Clear(c math3d.Vec3) {
	d.target.Clear(c)
	d.Stats = DrawStats{}
}

// SetBlendMode implements gpu.Device.
func (d *Device) SetBlendMode(mode gpu.BlendMode) {
	d.state.blend = mode
}

// SetDepthTestMode implements gpu.Device.
func (d *Device) SetDepthTestMode(mode gpu.DepthTestMode) {
	d.state.depth = mode
}

// NewBuffer implements gpu.Device.
func (d *Device) NewBuffer(size int) (gpu.Buffer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: buffer size %d", gpu.ErrAllocation, size)
	}
	if d.MaxBufferSize > 0 && size > d.MaxBufferSize {
		return nil, fmt.Errorf("%w: buffer size %d exceeds %d", gpu.ErrAllocation, size, d.MaxBufferSize)
	}
	return &buffer{dev: d, data: make([]byte, size)}, nil
}

// NewTexture implements gpu.Device.
func (d *Device) NewTexture(img image.Image) (gpu.Texture, error) {
	if img.Bounds().Empty() {
		return nil, fmt.Errorf("%w: empty image", gpu.ErrAllocation)
	}
	tex := TextureFromImage(img)
	tex.dev = d
	return tex, nil
}

// NewProgram implements gpu.Device. The shader names are recorded; the
// defines select the features of the built-in lit shader.
func (d *Device) NewProgram(frag, vert string, defines []string) (gpu.Program, error) {
	if frag == "" || vert == "" {
		return nil, errors.New("program needs a fragment and a vertex shader")
	}
	return newProgram(d, frag, vert, defines), nil
}

// NewGeometry implements gpu.Device.
func (d *Device) NewGeometry(vertices []gpu.Vertex, indices []uint32) (gpu.Geometry, error) {
	if len(indices)%3 != 0 {
		return nil, fmt.Errorf("%w: %d indices is not a triangle list", gpu.ErrAllocation, len(indices))
	}
	for _, i := range indices {
		if int(i) >= len(vertices) {
			return nil, fmt.Errorf("%w: index %d out of range (%d vertices)", gpu.ErrAllocation, i, len(vertices))
		}
	}

	g := &geometry{
		dev:      d,
		vertices: make([]vertex, len(vertices)),
		indices:  append([]uint32(nil), indices...),
	}
	for i, v := range vertices {
		g.vertices[i] = vertex{
			Position: gpu.FromVec3(v.Position),
			Normal:   gpu.FromVec3(v.Normal),
			UV:       math3d.V2(float64(v.UV[0]), float64(v.UV[1])),
			Tangent:  math3d.V4(float64(v.Tangent[0]), float64(v.Tangent[1]), float64(v.Tangent[2]), float64(v.Tangent[3])),
			Color:    gpu.FromVec3(v.Color),
		}
	}
	return g, nil
}

// buffer is a byte slice standing in for a GPU allocation.
type buffer struct {
	dev      *Device
	data     []byte
	released bool
}

func (b *buffer) Size() int { return len(b.data) }

func (b *buffer) Write(data []byte) error {
	if b.released {
		return errors.New("buffer released")
	}
	if len(data) > len(b.data) {
		return fmt.Errorf("write of %d bytes into %d byte buffer", len(data), len(b.data))
	}
	copy(b.data, data)
	return nil
}

func (b *buffer) Bind(usage gpu.BufferUsage, slot int) error {
	if b.released {
		return errors.New("buffer released")
	}
	switch usage {
	case gpu.UsageUniform, gpu.UsageStorage:
	default:
		return fmt.Errorf("%s buffers have no binding slots", usage)
	}
	b.dev.slots[slot] = b
	return nil
}

func (b *buffer) Release() {
	b.released = true
	for slot, bound := range b.dev.slots {
		if bound == b {
			delete(b.dev.slots, slot)
		}
	}
}

// vertex is gpu.Vertex widened to float64.
type vertex struct {
	Position math3d.Vec3
	Normal   math3d.Vec3
	UV       math3d.Vec2
	Tangent  math3d.Vec4
	Color    math3d.Vec3
}

// geometry is an indexed triangle list.
type geometry struct {
	dev      *Device
	vertices []vertex
	indices  []uint32
	released bool
}

func (g *geometry) IndexCount() int { return len(g.indices) }

func (g *geometry) Release() {
	g.released = true
	g.vertices = nil
	g.indices = nil
}

// Draw runs the vertex stage for every instance and rasterizes the
// resulting triangles with the device's current state.
func (g *geometry) Draw(instances int) error {
	if g.released {
		return errors.New("draw of released geometry")
	}
	d := g.dev
	if d.program == nil {
		return fmt.Errorf("%w: no program bound", gpu.ErrBinding)
	}

	env, viewProj, err := d.frameEnv()
	if err != nil {
		return err
	}
	transforms, err := decodeSlot[gpu.ModelTransform](d, gpu.SlotTransforms)
	if err != nil {
		return err
	}
	if len(transforms) < instances {
		return fmt.Errorf("%w: %d instances but %d transforms bound", gpu.ErrBinding, instances, len(transforms))
	}

	d.Stats.Draws++
	prog := d.program
	shade := func(v varying) (math3d.Vec4, math3d.Vec3, math3d.Vec3) {
		return prog.shade(env, v)
	}

	clip := make([]clipVertex, len(g.vertices))
	for i := range instances {
		model := gpu.FromMat4(transforms[i].Transform)
		normalMat := model.Inverse().Transpose()
		mvp := viewProj.Mul(model)

		for vi, v := range g.vertices {
			tangent := model.MulVec3Dir(v.Tangent.Vec3())
			clip[vi] = clipVertex{
				Pos: mvp.MulVec4(math3d.V4FromV3(v.Position, 1)),
				Var: varying{
					World:   model.MulVec3(v.Position),
					Normal:  normalMat.MulVec3Dir(v.Normal),
					UV:      v.UV,
					Tangent: math3d.V4FromV3(tangent, v.Tangent.W),
					Color:   v.Color,
				},
			}
		}

		for t := 0; t+2 < len(g.indices); t += 3 {
			tri := [3]clipVertex{clip[g.indices[t]], clip[g.indices[t+1]], clip[g.indices[t+2]]}
			d.Stats.Triangles++
			d.Stats.Fragments += d.target.drawTriangle(tri, d.state, shade)
		}
	}
	return nil
}

// frameEnv decodes the frame uniform and light buffers.
func (d *Device) frameEnv() (*frameEnv, math3d.Mat4, error) {
	frames, err := decodeSlot[gpu.FrameData](d, gpu.SlotFrame)
	if err != nil {
		return nil, math3d.Mat4{}, err
	}
	if len(frames) == 0 {
		return nil, math3d.Mat4{}, fmt.Errorf("%w: frame buffer too small", gpu.ErrBinding)
	}
	fd := frames[0]

	lights, err := decodeSlot[gpu.PointLight](d, gpu.SlotLights)
	if err != nil {
		return nil, math3d.Mat4{}, err
	}
	n := int(fd.PointLightCount)
	if n > len(lights) {
		return nil, math3d.Mat4{}, fmt.Errorf("%w: %d point lights but %d bound", gpu.ErrBinding, n, len(lights))
	}

	env := &frameEnv{
		sunDir:   gpu.FromVec3(fd.SunDir).Normalize(),
		sunColor: gpu.FromVec3(fd.SunColor),
		lights:   make([]light, n),
		albedo:   d.units[unitAlbedo],
		normal:   d.units[unitNormal],
	}
	for i, l := range lights[:n] {
		env.lights[i] = light{
			Position: gpu.FromVec3(l.Position),
			Color:    gpu.FromVec3(l.Color),
			Radius:   float64(l.Radius),
		}
	}
	return env, gpu.FromMat4(fd.Camera.ViewProj), nil
}

func decodeSlot[T any](d *Device, slot int) ([]T, error) {
	b, ok := d.slots[slot]
	if !ok {
		return nil, fmt.Errorf("%w: nothing bound at slot %d", gpu.ErrBinding, slot)
	}
	items, err := gpu.Decode[T](b.data)
	if err != nil {
		return nil, fmt.Errorf("slot %d: %w", slot, err)
	}
	return items, nil
}
