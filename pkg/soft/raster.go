package soft

import (
	"math"

	"github.com/om3d/forward/pkg/gpu"
	"github.com/om3d/forward/pkg/math3d"
)

// varying holds the per-vertex outputs interpolated across a triangle.
type varying struct {
	World   math3d.Vec3
	Normal  math3d.Vec3
	UV      math3d.Vec2
	Tangent math3d.Vec4
	Color   math3d.Vec3
}

func (a varying) lerp(b varying, t float64) varying {
	return varying{
		World:   a.World.Lerp(b.World, t),
		Normal:  a.Normal.Lerp(b.Normal, t),
		UV:      a.UV.Lerp(b.UV, t),
		Tangent: a.Tangent.Lerp(b.Tangent, t),
		Color:   a.Color.Lerp(b.Color, t),
	}
}

// weigh returns w0*a + w1*b + w2*c.
func weigh(a, b, c varying, w0, w1, w2 float64) varying {
	v3 := func(x, y, z math3d.Vec3) math3d.Vec3 {
		return x.Scale(w0).Add(y.Scale(w1)).Add(z.Scale(w2))
	}
	return varying{
		World:  v3(a.World, b.World, c.World),
		Normal: v3(a.Normal, b.Normal, c.Normal),
		UV: math3d.V2(
			a.UV.X*w0+b.UV.X*w1+c.UV.X*w2,
			a.UV.Y*w0+b.UV.Y*w1+c.UV.Y*w2,
		),
		Tangent: a.Tangent.Scale(w0).Add(b.Tangent.Scale(w1)).Add(c.Tangent.Scale(w2)),
		Color:   v3(a.Color, b.Color, c.Color),
	}
}

// clipVertex is a vertex after the vertex stage.
type clipVertex struct {
	Pos math3d.Vec4
	Var varying
}

// screenVertex is a clipped vertex in window coordinates.
type screenVertex struct {
	X, Y float64 // Window coordinates, Y down
	Z    float64 // Depth in [0,1], 1 nearest
	InvW float64 // 1/w for perspective-correct interpolation
	Var  varying
}

// wEpsilon keeps clipped vertices strictly in front of the eye.
const wEpsilon = 1e-9

// clipPlanes are the clip-space half spaces kept by clipPolygon: in front
// of the eye, and 0 <= z <= w. With the reversed infinite projection z is
// the constant near distance, so z <= w is the near plane.
var clipPlanes = [...]func(p math3d.Vec4) float64{
	func(p math3d.Vec4) float64 { return p.W - wEpsilon },
	func(p math3d.Vec4) float64 { return p.W - p.Z },
	func(p math3d.Vec4) float64 { return p.Z },
}

// clipPolygon clips a convex polygon against clipPlanes with the
// Sutherland-Hodgman algorithm. The result may be empty.
func clipPolygon(in []clipVertex) []clipVertex {
	out := in
	for _, dist := range clipPlanes {
		if len(out) == 0 {
			return nil
		}
		src := out
		out = make([]clipVertex, 0, len(src)+2)
		for i, cur := range src {
			prev := src[(i+len(src)-1)%len(src)]
			dc, dp := dist(cur.Pos), dist(prev.Pos)
			if (dc >= 0) != (dp >= 0) {
				t := dp / (dp - dc)
				out = append(out, clipVertex{
					Pos: prev.Pos.Lerp(cur.Pos, t),
					Var: prev.Var.lerp(cur.Var, t),
				})
			}
			if dc >= 0 {
				out = append(out, cur)
			}
		}
	}
	return out
}

// edgeCoeffs returns A, B, C for the edge function A*x + B*y + C of the
// directed edge (x0,y0)->(x1,y1).
func edgeCoeffs(x0, y0, x1, y1 float64) (a, b, c float64) {
	return y0 - y1, x1 - x0, x0*y1 - x1*y0
}

func min3(a, b, c float64) float64 {
	return math.Min(a, math.Min(b, c))
}

func max3(a, b, c float64) float64 {
	return math.Max(a, math.Max(b, c))
}

// fragmentFunc shades one fragment. It returns the color with alpha and
// the g-buffer values.
type fragmentFunc func(v varying) (rgba math3d.Vec4, albedo, normal math3d.Vec3)

// toScreen performs the perspective divide and viewport transform.
func (t *Target) toScreen(v clipVertex) screenVertex {
	ndc := v.Pos.PerspectiveDivide()
	return screenVertex{
		X:    (ndc.X + 1) * 0.5 * float64(t.Width),
		Y:    (1 - ndc.Y) * 0.5 * float64(t.Height),
		Z:    ndc.Z,
		InvW: 1 / v.Pos.W,
		Var:  v.Var,
	}
}

// rasterState is the fixed-function state applied to a triangle.
type rasterState struct {
	blend gpu.BlendMode
	depth gpu.DepthTestMode
}

// cullBack reports whether back faces are discarded: blending disables
// culling.
func (s rasterState) cullBack() bool {
	return s.blend == gpu.BlendNone
}

// depthPass applies the depth comparison of mode to a fragment at z
// against the stored depth d. Larger depth is nearer.
func depthPass(mode gpu.DepthTestMode, z, d float64) bool {
	switch mode {
	case gpu.DepthStandard:
		return z >= d
	case gpu.DepthReversed:
		return z <= d
	case gpu.DepthEqual:
		return z == d
	default:
		return true
	}
}

// drawTriangle clips, culls and rasterizes one triangle, returning the
// number of fragments written.
func (t *Target) drawTriangle(tri [3]clipVertex, st rasterState, shade fragmentFunc) int {
	poly := clipPolygon(tri[:])
	if len(poly) < 3 {
		return 0
	}

	sv := make([]screenVertex, len(poly))
	for i, v := range poly {
		sv[i] = t.toScreen(v)
	}

	n := 0
	for i := 1; i+1 < len(sv); i++ {
		n += t.rasterize(sv[0], sv[i], sv[i+1], st, shade)
	}
	return n
}

func (t *Target) rasterize(v0, v1, v2 screenVertex, st rasterState, shade fragmentFunc) int {
	// Signed doubled area in window space. Window Y points down, so a
	// counter-clockwise triangle in NDC has negative area here.
	area2 := (v1.X-v0.X)*(v2.Y-v0.Y) - (v1.Y-v0.Y)*(v2.X-v0.X)
	if area2 == 0 {
		return 0
	}
	if st.cullBack() && area2 > 0 {
		return 0
	}

	minX := int(math.Max(0, math.Floor(min3(v0.X, v1.X, v2.X))))
	maxX := int(math.Min(float64(t.Width-1), math.Ceil(max3(v0.X, v1.X, v2.X))))
	minY := int(math.Max(0, math.Floor(min3(v0.Y, v1.Y, v2.Y))))
	maxY := int(math.Min(float64(t.Height-1), math.Ceil(max3(v0.Y, v1.Y, v2.Y))))
	if minX > maxX || minY > maxY {
		return 0
	}

	// Edge 0: v1 -> v2, Edge 1: v2 -> v0, Edge 2: v0 -> v1
	a0, b0, c0 := edgeCoeffs(v1.X, v1.Y, v2.X, v2.Y)
	a1, b1, c1 := edgeCoeffs(v2.X, v2.Y, v0.X, v0.Y)
	a2, b2, c2 := edgeCoeffs(v0.X, v0.Y, v1.X, v1.Y)
	invArea := 1 / area2

	px := float64(minX) + 0.5
	py := float64(minY) + 0.5
	w0Row := a0*px + b0*py + c0
	w1Row := a1*px + b1*py + c1
	w2Row := a2*px + b2*py + c2

	written := 0
	for y := minY; y <= maxY; y++ {
		w0, w1, w2 := w0Row, w1Row, w2Row
		row := y * t.Width

		for x := minX; x <= maxX; x++ {
			bc0, bc1, bc2 := w0*invArea, w1*invArea, w2*invArea
			w0 += a0
			w1 += a1
			w2 += a2
			if bc0 < 0 || bc1 < 0 || bc2 < 0 {
				continue
			}

			idx := row + x
			z := bc0*v0.Z + bc1*v1.Z + bc2*v2.Z
			if st.depth != gpu.DepthNone && !depthPass(st.depth, z, t.Depth[idx]) {
				continue
			}

			// Perspective-correct weights.
			p0, p1, p2 := bc0*v0.InvW, bc1*v1.InvW, bc2*v2.InvW
			sum := p0 + p1 + p2
			if sum == 0 {
				continue
			}
			v := weigh(v0.Var, v1.Var, v2.Var, p0/sum, p1/sum, p2/sum)

			rgba, albedo, normal := shade(v)
			if st.blend == gpu.BlendAlpha {
				a := rgba.W
				t.Color[idx] = rgba.Vec3().Scale(a).Add(t.Color[idx].Scale(1 - a))
			} else {
				t.Color[idx] = rgba.Vec3()
			}
			if st.depth != gpu.DepthNone {
				t.Depth[idx] = z
			}
			if t.GBuffer {
				t.Albedo[idx] = albedo
				t.Normal[idx] = normal
			}
			written++
		}

		w0Row += b0
		w1Row += b1
		w2Row += b2
	}
	return written
}
