package math3d

import (
	"testing"
)

func BenchmarkMat4Mul(b *testing.B) {
	m1 := Translate(V3(1, 2, 3))
	m2 := RotateY(0.5)

	for b.Loop() {
		_ = m1.Mul(m2)
	}
}

func BenchmarkMat4MulVec3(b *testing.B) {
	m := Translate(V3(1, 2, 3)).Mul(RotateY(0.5))
	v := V3(1, 2, 3)

	for b.Loop() {
		_ = m.MulVec3(v)
	}
}

func BenchmarkMat4Inverse(b *testing.B) {
	m := Translate(V3(1, 2, 3)).Mul(RotateY(0.5)).Mul(Scale(V3(2, 2, 2)))

	for b.Loop() {
		_ = m.Inverse()
	}
}

func BenchmarkMat4MaxScale(b *testing.B) {
	m := Translate(V3(1, 2, 3)).Mul(RotateY(0.5)).Mul(Scale(V3(1, 4, 2)))

	for b.Loop() {
		_ = m.MaxScale()
	}
}

func BenchmarkViewProjection(b *testing.B) {
	// Same product the camera caches on every view change
	view := LookAt(V3(0, 0, 10), V3(0, 0, 0), V3(0, 1, 0))
	proj := InfinitePerspective(1.0, 16.0/9.0, 0.001)

	for b.Loop() {
		_ = proj.Mul(view)
	}
}
