package soft

import (
	"math"
	"slices"

	"github.com/om3d/forward/pkg/math3d"
)

// Program defines understood by the software shader.
const (
	DefineTextured     = "TEXTURED"
	DefineNormalMapped = "NORMAL_MAPPED"
	// DefineDebugNormal outputs the shading normal instead of lit color.
	DefineDebugNormal = "DEBUG_NORMAL"
	// DefineDebugAlbedo outputs the unlit base color.
	DefineDebugAlbedo = "DEBUG_ALBEDO"
)

// Sampler units read by the lit shader.
const (
	unitAlbedo = 0
	unitNormal = 1
)

// ambient is the constant light added to every fragment.
const ambient = 0.03

// program is the software version of the lit shader with its defines
// resolved into flags.
type program struct {
	dev  *Device
	frag string
	vert string

	textured     bool
	normalMapped bool
	debugNormal  bool
	debugAlbedo  bool
}

func newProgram(dev *Device, frag, vert string, defines []string) *program {
	return &program{
		dev:          dev,
		frag:         frag,
		vert:         vert,
		textured:     slices.Contains(defines, DefineTextured),
		normalMapped: slices.Contains(defines, DefineNormalMapped),
		debugNormal:  slices.Contains(defines, DefineDebugNormal),
		debugAlbedo:  slices.Contains(defines, DefineDebugAlbedo),
	}
}

// Bind makes p the program used by subsequent draws.
func (p *program) Bind() error {
	p.dev.program = p
	return nil
}

// Release unbinds p if it is current.
func (p *program) Release() {
	if p.dev.program == p {
		p.dev.program = nil
	}
}

// light is a decoded point light.
type light struct {
	Position math3d.Vec3
	Color    math3d.Vec3
	Radius   float64
}

// frameEnv is the per-draw uniform state seen by the shader.
type frameEnv struct {
	sunDir   math3d.Vec3
	sunColor math3d.Vec3
	lights   []light
	albedo   *Texture
	normal   *Texture
}

// attenuation falls off smoothly to zero at radius.
func attenuation(dist, radius float64) float64 {
	if radius <= 0 || dist >= radius {
		return 0
	}
	f := 1 - dist/radius
	return f * f
}

// shade evaluates the lit fragment shader.
func (p *program) shade(env *frameEnv, v varying) (math3d.Vec4, math3d.Vec3, math3d.Vec3) {
	base := v.Color
	alpha := 1.0
	if p.textured && env.albedo != nil {
		s := env.albedo.Sample(v.UV.X, v.UV.Y)
		base = base.Mul(s.Vec3())
		alpha = s.W
	}

	n := v.Normal.Normalize()
	if p.normalMapped && env.normal != nil && v.Tangent.Vec3().LenSq() > 0 {
		s := env.normal.Sample(v.UV.X, v.UV.Y)
		tn := s.Vec3().Scale(2).Sub(math3d.V3(1, 1, 1))
		// Gram-Schmidt the tangent against the interpolated normal.
		t := v.Tangent.Vec3()
		t = t.Sub(n.Scale(n.Dot(t))).Normalize()
		b := n.Cross(t).Scale(math.Copysign(1, v.Tangent.W))
		n = t.Scale(tn.X).Add(b.Scale(tn.Y)).Add(n.Scale(tn.Z)).Normalize()
	}

	if p.debugNormal {
		return math3d.V4FromV3(n.Scale(0.5).Add(math3d.V3(0.5, 0.5, 0.5)), 1), base, n
	}
	if p.debugAlbedo {
		return math3d.V4FromV3(base, alpha), base, n
	}

	acc := math3d.V3(ambient, ambient, ambient)
	acc = acc.Add(env.sunColor.Scale(math.Max(0, n.Dot(env.sunDir))))
	for _, l := range env.lights {
		toLight := l.Position.Sub(v.World)
		dist := toLight.Len()
		att := attenuation(dist, l.Radius)
		if att == 0 || dist == 0 {
			continue
		}
		lambert := math.Max(0, n.Dot(toLight.Scale(1/dist)))
		acc = acc.Add(l.Color.Scale(att * lambert))
	}

	return math3d.V4FromV3(base.Mul(acc), alpha), base, n
}
