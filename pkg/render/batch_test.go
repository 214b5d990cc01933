package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/om3d/forward/pkg/gpu"
	"github.com/om3d/forward/pkg/math3d"
	"github.com/om3d/forward/pkg/scene"
)

func TestGroupByMaterial(t *testing.T) {
	rec := newRecorder()
	m1, m2, m3 := newMaterial(rec, "m1"), newMaterial(rec, "m2"), newMaterial(rec, "m3")

	var objects []*scene.Object
	for i, m := range []*scene.Material{m2, m1, m2, m3, m1, m2} {
		o := scene.NewObject(nil, m)
		o.Transform = math3d.Translate(math3d.V3(float64(i), 0, 0))
		objects = append(objects, o)
	}

	batches := GroupByMaterial(objects)
	require.Len(t, batches, 3)

	// First-seen order of materials.
	assert.Same(t, m2, batches[0].Material)
	assert.Same(t, m1, batches[1].Material)
	assert.Same(t, m3, batches[2].Material)

	// Input order within a batch.
	assert.Equal(t, []*scene.Object{objects[0], objects[2], objects[5]}, batches[0].Objects)
	assert.Equal(t, []*scene.Object{objects[1], objects[4]}, batches[1].Objects)
	assert.Equal(t, []*scene.Object{objects[3]}, batches[2].Objects)

	// Every object lands in exactly one batch.
	seen := make(map[*scene.Object]int)
	for _, b := range batches {
		for _, o := range b.Objects {
			seen[o]++
			assert.Same(t, b.Material, o.Material)
		}
	}
	assert.Len(t, seen, len(objects))
	for o, n := range seen {
		assert.Equal(t, 1, n, "object %q", o.Name)
	}

	// Grouping is a pure function of its input.
	assert.Equal(t, batches, GroupByMaterial(objects))
}

func TestGroupByMaterialEmpty(t *testing.T) {
	assert.Empty(t, GroupByMaterial(nil))
}

func TestBatchTransforms(t *testing.T) {
	rec := newRecorder()
	mesh := unitSphereMesh(t, rec)
	mat := newMaterial(rec, "m")

	a := scene.NewObject(mesh, mat)
	a.Transform = math3d.Translate(math3d.V3(1, 2, 3))
	b := scene.NewObject(mesh, mat)
	b.Transform = math3d.Scale(math3d.V3(2, 2, 2))

	batch := Batch{Material: mat, Objects: []*scene.Object{a, b}}
	assert.Same(t, mesh, batch.Mesh())
	assert.Equal(t, []gpu.ModelTransform{
		{Transform: gpu.Mat4(a.Transform)},
		{Transform: gpu.Mat4(b.Transform)},
	}, batch.Transforms())

	assert.Nil(t, (&Batch{}).Mesh())
}

func BenchmarkGroupByMaterial(b *testing.B) {
	rec := newRecorder()
	mats := make([]*scene.Material, 16)
	for i := range mats {
		mats[i] = newMaterial(rec, "m")
	}
	objects := make([]*scene.Object, 10000)
	for i := range objects {
		objects[i] = scene.NewObject(nil, mats[i%len(mats)])
	}

	for b.Loop() {
		_ = GroupByMaterial(objects)
	}
}
