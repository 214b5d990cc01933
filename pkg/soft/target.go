package soft

import (
	"image/color"
	"math"

	"github.com/om3d/forward/pkg/math3d"
)

// Attachment selects which target buffer Resolve reads.
type Attachment int

const (
	AttachColor  Attachment = iota // lit HDR color
	AttachAlbedo                   // g-buffer base color
	AttachNormal                   // g-buffer world normal
)

func (a Attachment) String() string {
	switch a {
	case AttachColor:
		return "color"
	case AttachAlbedo:
		return "albedo"
	case AttachNormal:
		return "normal"
	}
	return "unknown"
}

// Target is the render target of a Device: a linear HDR color buffer, a
// reversed-Z depth buffer cleared to 0 (far) and an optional g-buffer with
// base color and normals.
type Target struct {
	Width  int
	Height int

	Color []math3d.Vec3
	Depth []float64

	// GBuffer enables writes to Albedo and Normal.
	GBuffer bool
	Albedo  []math3d.Vec3
	Normal  []math3d.Vec3
}

// NewTarget allocates a target.
func NewTarget(width, height int) *Target {
	t := &Target{}
	t.Resize(width, height)
	return t
}

// Resize reallocates every buffer if the dimensions changed.
func (t *Target) Resize(width, height int) {
	if t.Width == width && t.Height == height && t.Color != nil {
		return
	}
	n := max(width*height, 0)
	t.Width = width
	t.Height = height
	t.Color = make([]math3d.Vec3, n)
	t.Depth = make([]float64, n)
	t.Albedo = make([]math3d.Vec3, n)
	t.Normal = make([]math3d.Vec3, n)
}

// Clear fills color with c, depth with 0 and the g-buffer with zeros.
func (t *Target) Clear(c math3d.Vec3) {
	for i := range t.Color {
		t.Color[i] = c
	}
	clear(t.Depth)
	if t.GBuffer {
		clear(t.Albedo)
		clear(t.Normal)
	}
}

// ResolveOptions controls the conversion to 8-bit.
type ResolveOptions struct {
	// Tonemap applies Reinhard and gamma 2.2. Without it color is clamped.
	Tonemap bool
	// Exposure scales color before tonemapping. Zero means 1.
	Exposure float64
	Source   Attachment
}

// Resolve converts the selected attachment into fb, resizing fb to match.
func (t *Target) Resolve(fb *Framebuffer, opts ResolveOptions) {
	fb.Resize(t.Width, t.Height)

	exposure := opts.Exposure
	if exposure == 0 {
		exposure = 1
	}

	for i := range fb.Pixels {
		var c math3d.Vec3
		switch opts.Source {
		case AttachAlbedo:
			c = t.Albedo[i]
		case AttachNormal:
			// Encoded to [0,1]; background stays black.
			if n := t.Normal[i]; n.LenSq() > 0 {
				c = n.Scale(0.5).Add(math3d.V3(0.5, 0.5, 0.5))
			}
		default:
			c = t.Color[i].Scale(exposure)
			if opts.Tonemap {
				c = Tonemap(c)
			}
		}
		fb.Pixels[i] = toRGBA(c)
	}
}

// Tonemap maps linear HDR color to display range with Reinhard followed by
// gamma 2.2.
func Tonemap(c math3d.Vec3) math3d.Vec3 {
	m := func(v float64) float64 {
		v = math.Max(v, 0)
		return math.Pow(v/(1+v), 1/2.2)
	}
	return math3d.V3(m(c.X), m(c.Y), m(c.Z))
}

func toRGBA(c math3d.Vec3) color.RGBA {
	q := func(v float64) uint8 {
		return uint8(math.Round(math.Max(0, math.Min(1, v)) * 255))
	}
	return color.RGBA{R: q(c.X), G: q(c.Y), B: q(c.Z), A: 255}
}
