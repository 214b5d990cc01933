package render

import (
	"github.com/om3d/forward/pkg/gpu"
	"github.com/om3d/forward/pkg/scene"
)

// Batch is the set of visible objects sharing one material, drawn with a
// single instanced call.
type Batch struct {
	Material *scene.Material
	Objects  []*scene.Object
}

// Mesh returns the geometry drawn for the whole batch: the first object's
// mesh. Objects sharing a material must share compatible geometry.
func (b *Batch) Mesh() *scene.Mesh {
	if len(b.Objects) == 0 {
		return nil
	}
	return b.Objects[0].Mesh
}

// Transforms returns one per-instance record per object, in object order.
func (b *Batch) Transforms() []gpu.ModelTransform {
	out := make([]gpu.ModelTransform, len(b.Objects))
	for i, o := range b.Objects {
		out[i] = gpu.ModelTransform{Transform: gpu.Mat4(o.Transform)}
	}
	return out
}

// GroupByMaterial partitions objects by material identity. Batches come
// out in order of first appearance and keep input order within a batch.
func GroupByMaterial(objects []*scene.Object) []Batch {
	var batches []Batch
	index := make(map[*scene.Material]int)

	for _, o := range objects {
		i, ok := index[o.Material]
		if !ok {
			i = len(batches)
			index[o.Material] = i
			batches = append(batches, Batch{Material: o.Material})
		}
		batches[i].Objects = append(batches[i].Objects, o)
	}
	return batches
}
