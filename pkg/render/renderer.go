package render

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/om3d/forward/pkg/gpu"
	"github.com/om3d/forward/pkg/math3d"
	"github.com/om3d/forward/pkg/scene"
)

var (
	// ErrMissingGeometry is returned when an object has no mesh.
	ErrMissingGeometry = errors.New("render: object has no mesh")
	// ErrMissingMaterial is returned when a batch has no material to bind.
	ErrMissingMaterial = errors.New("render: object has no material")
)

// FrameStats describes the work done by one Render call.
type FrameStats struct {
	Objects   int
	Visible   int
	Groups    int
	DrawCalls int
	Instances int
}

// LogValue implements slog.LogValuer.
func (s FrameStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("objects", s.Objects),
		slog.Int("visible", s.Visible),
		slog.Int("groups", s.Groups),
		slog.Int("draws", s.DrawCalls),
		slog.Int("instances", s.Instances),
	)
}

// Renderer draws scenes on a Device. It is not safe for concurrent use;
// one goroutine drives a renderer frame after frame.
type Renderer struct {
	Device   gpu.Device
	Cull     CullMode
	SunColor math3d.Vec3
	Logger   *slog.Logger
}

// NewRenderer returns a renderer using the probe cull test and a white sun.
func NewRenderer(dev gpu.Device) *Renderer {
	return &Renderer{
		Device:   dev,
		Cull:     CullProbe,
		SunColor: math3d.V3(1, 1, 1),
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// frame tracks the transient buffers of one Render call.
type frame struct {
	buffers []gpu.Buffer
}

func (f *frame) keep(b gpu.Buffer) {
	f.buffers = append(f.buffers, b)
}

func (f *frame) release() {
	for _, b := range f.buffers {
		b.Release()
	}
}

// Render draws s from cam. Buffers are bound in a fixed order: frame data,
// lights, then per batch its transforms before its material. Any
// allocation or binding failure aborts the frame and is returned.
func (r *Renderer) Render(s *scene.Scene, cam *Camera) (FrameStats, error) {
	var stats FrameStats
	var fr frame
	defer fr.release()

	if err := r.bindFrameData(&fr, s, cam); err != nil {
		return stats, err
	}
	if err := r.bindLights(&fr, s); err != nil {
		return stats, err
	}

	visible, err := r.visibleObjects(s, cam)
	if err != nil {
		return stats, err
	}
	stats.Objects = len(s.Objects)
	stats.Visible = len(visible)

	batches := GroupByMaterial(visible)
	stats.Groups = len(batches)

	if len(batches) == 0 {
		// Keep the transform slot bound to a valid buffer.
		if _, err := r.bindTransforms(&fr, nil); err != nil {
			return stats, err
		}
	}

	for i := range batches {
		b := &batches[i]
		if err := r.drawBatch(&fr, b); err != nil {
			return stats, err
		}
		stats.DrawCalls++
		stats.Instances += len(b.Objects)
	}

	r.Logger.Debug("frame", "stats", stats)
	return stats, nil
}

func (r *Renderer) bindFrameData(fr *frame, s *scene.Scene, cam *Camera) error {
	fd := gpu.FrameData{
		Camera:          gpu.CameraData{ViewProj: gpu.Mat4(cam.ViewProjectionMatrix())},
		SunDir:          gpu.Vec3(s.SunDirection.Normalize()),
		PointLightCount: uint32(len(s.PointLights)),
		SunColor:        gpu.Vec3(r.SunColor),
	}
	buf, err := gpu.NewTypedBuffer(r.Device, []gpu.FrameData{fd})
	if err != nil {
		return fmt.Errorf("frame data: %w", err)
	}
	fr.keep(buf)
	if err := buf.Bind(gpu.UsageUniform, gpu.SlotFrame); err != nil {
		return fmt.Errorf("%w: frame data: %w", gpu.ErrBinding, err)
	}
	return nil
}

func (r *Renderer) bindLights(fr *frame, s *scene.Scene) error {
	lights := make([]gpu.PointLight, len(s.PointLights))
	for i, l := range s.PointLights {
		lights[i] = gpu.PointLight{
			Position: gpu.Vec3(l.Position),
			Radius:   float32(l.Radius),
			Color:    gpu.Vec3(l.Color),
		}
	}
	buf, err := gpu.NewTypedBuffer(r.Device, lights)
	if err != nil {
		return fmt.Errorf("lights: %w", err)
	}
	fr.keep(buf)
	if err := buf.Bind(gpu.UsageStorage, gpu.SlotLights); err != nil {
		return fmt.Errorf("%w: lights: %w", gpu.ErrBinding, err)
	}
	return nil
}

func (r *Renderer) visibleObjects(s *scene.Scene, cam *Camera) ([]*scene.Object, error) {
	f := cam.BuildFrustum()
	eye := cam.Position()

	visible := make([]*scene.Object, 0, len(s.Objects))
	for i, o := range s.Objects {
		if o.Mesh == nil {
			return nil, fmt.Errorf("%w: object %d %q", ErrMissingGeometry, i, o.Name)
		}
		if r.Cull.Visible(o.Transform, o.Mesh.Bounds(), f, eye) {
			visible = append(visible, o)
		}
	}
	return visible, nil
}

func (r *Renderer) bindTransforms(fr *frame, transforms []gpu.ModelTransform) (*gpu.TypedBuffer[gpu.ModelTransform], error) {
	buf, err := gpu.NewTypedBuffer(r.Device, transforms)
	if err != nil {
		return nil, fmt.Errorf("transforms: %w", err)
	}
	fr.keep(buf)
	if err := buf.Bind(gpu.UsageStorage, gpu.SlotTransforms); err != nil {
		return nil, fmt.Errorf("%w: transforms: %w", gpu.ErrBinding, err)
	}
	return buf, nil
}

func (r *Renderer) drawBatch(fr *frame, b *Batch) error {
	if b.Material == nil {
		return fmt.Errorf("%w: %d objects", ErrMissingMaterial, len(b.Objects))
	}
	if _, err := r.bindTransforms(fr, b.Transforms()); err != nil {
		return fmt.Errorf("material %q: %w", b.Material.Name, err)
	}
	if err := b.Material.Bind(r.Device); err != nil {
		return err
	}
	if err := b.Mesh().DrawInstanced(len(b.Objects)); err != nil {
		return fmt.Errorf("draw material %q: %w", b.Material.Name, err)
	}
	return nil
}
