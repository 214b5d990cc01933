package scene

import (
	"fmt"
	"strings"

	"github.com/om3d/forward/pkg/math3d"
)

// BoundingSphere is a local-space sphere enclosing a mesh.
type BoundingSphere struct {
	Center math3d.Vec3
	Radius float64
}

// Contains reports whether p lies inside the sphere.
func (s BoundingSphere) Contains(p math3d.Vec3) bool {
	return p.DistanceSq(s.Center) <= s.Radius*s.Radius
}

// BoundsMode selects how a mesh's bounding sphere is computed.
type BoundsMode int

const (
	// BoundsCorrected is Ritter's algorithm: the sphere spans the two
	// farthest-apart points found, then grows to enclose every vertex.
	BoundsCorrected BoundsMode = iota
	// BoundsObserved reproduces the legacy renderer's sphere bit for bit:
	// center (z-y)/2 and radius equal to half the squared diameter.
	BoundsObserved
)

func (m BoundsMode) String() string {
	if m == BoundsObserved {
		return "observed"
	}
	return "corrected"
}

// ParseBoundsMode parses "corrected" or "observed".
func ParseBoundsMode(s string) (BoundsMode, error) {
	switch strings.ToLower(s) {
	case "", "corrected":
		return BoundsCorrected, nil
	case "observed":
		return BoundsObserved, nil
	}
	return 0, fmt.Errorf("unknown bounds mode %q", s)
}

// ComputeBoundingSphere returns the bounding sphere of points. An empty set
// yields the zero sphere and a single point a zero-radius sphere on it.
func ComputeBoundingSphere(points []math3d.Vec3, mode BoundsMode) BoundingSphere {
	switch len(points) {
	case 0:
		return BoundingSphere{}
	case 1:
		return BoundingSphere{Center: points[0]}
	}
	if mode == BoundsObserved {
		return observedSphere(points)
	}
	return ritterSphere(points)
}

func farthestFrom(points []math3d.Vec3, from math3d.Vec3) math3d.Vec3 {
	best, bestDist := from, -1.0
	for _, p := range points {
		if d := p.DistanceSq(from); d > bestDist {
			best, bestDist = p, d
		}
	}
	return best
}

func ritterSphere(points []math3d.Vec3) BoundingSphere {
	x := points[0]
	y := farthestFrom(points, x)
	z := farthestFrom(points, y)

	center := y.Lerp(z, 0.5)
	radius := y.Distance(z) / 2

	for _, p := range points {
		d := p.Distance(center)
		if d <= radius {
			continue
		}
		grown := (radius + d) / 2
		center = center.Add(p.Sub(center).Scale((grown - radius) / d))
		radius = grown
	}
	return BoundingSphere{Center: center, Radius: radius}
}

func observedSphere(points []math3d.Vec3) BoundingSphere {
	x := points[0]
	y := points[1]
	maxDist := x.DistanceSq(y)

	for _, p := range points {
		if d := p.DistanceSq(x); d > maxDist {
			maxDist = d
			y = p
		}
	}

	// The second pass starts at x and measures from the current z, which
	// moves to any vertex beating the running maximum.
	z := x
	for _, p := range points {
		if d := p.DistanceSq(z); d > maxDist {
			maxDist = d
			z = p
		}
	}

	return BoundingSphere{
		Center: z.Sub(y).Scale(0.5),
		Radius: maxDist / 2,
	}
}
