package render

import (
	"errors"
	"fmt"
	"image"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/om3d/forward/pkg/gpu"
	"github.com/om3d/forward/pkg/math3d"
	"github.com/om3d/forward/pkg/scene"
)

// recorder is a gpu.Device that logs every state change and draw.
type recorder struct {
	calls     []string
	bound     map[int]*recBuffer
	draws     []recDraw
	buffers   []*recBuffer
	failAlloc bool
}

type recDraw struct {
	mesh      string
	instances int
	// transforms bound at draw time
	transforms []gpu.ModelTransform
}

type recBuffer struct {
	rec      *recorder
	data     []byte
	released bool
}

func (b *recBuffer) Size() int               { return len(b.data) }
func (b *recBuffer) Write(data []byte) error { copy(b.data, data); return nil }
func (b *recBuffer) Release()                { b.released = true }

func (b *recBuffer) Bind(usage gpu.BufferUsage, slot int) error {
	b.rec.calls = append(b.rec.calls, fmt.Sprintf("bind %s %d", usage, slot))
	b.rec.bound[slot] = b
	return nil
}

type recGeometry struct {
	rec     *recorder
	name    string
	indices int
}

func (g *recGeometry) IndexCount() int { return g.indices }

func (g *recGeometry) Release() {
	g.rec.calls = append(g.rec.calls, "release "+g.name)
}

func (g *recGeometry) Draw(instances int) error {
	g.rec.calls = append(g.rec.calls, fmt.Sprintf("draw %s x%d", g.name, instances))
	var transforms []gpu.ModelTransform
	if b := g.rec.bound[gpu.SlotTransforms]; b != nil {
		var err error
		transforms, err = gpu.Decode[gpu.ModelTransform](b.data)
		if err != nil {
			return err
		}
	}
	g.rec.draws = append(g.rec.draws, recDraw{mesh: g.name, instances: instances, transforms: transforms})
	return nil
}

type recProgram struct {
	rec  *recorder
	name string
}

func (p *recProgram) Bind() error {
	p.rec.calls = append(p.rec.calls, "program "+p.name)
	return nil
}

func (p *recProgram) Release() {
	p.rec.calls = append(p.rec.calls, "release program "+p.name)
}

type recTexture struct {
	rec  *recorder
	name string
}

func (t *recTexture) Bind(unit int) error {
	t.rec.calls = append(t.rec.calls, fmt.Sprintf("texture %s@%d", t.name, unit))
	return nil
}

func (t *recTexture) Release() {
	t.rec.calls = append(t.rec.calls, "release "+t.name)
}

func newRecorder() *recorder {
	return &recorder{bound: make(map[int]*recBuffer)}
}

func (r *recorder) NewBuffer(size int) (gpu.Buffer, error) {
	if r.failAlloc {
		return nil, errors.New("out of memory")
	}
	b := &recBuffer{rec: r, data: make([]byte, size)}
	r.buffers = append(r.buffers, b)
	return b, nil
}

func (r *recorder) NewGeometry(v []gpu.Vertex, idx []uint32) (gpu.Geometry, error) {
	return &recGeometry{rec: r, name: fmt.Sprintf("geom%d", len(v)), indices: len(idx)}, nil
}

func (r *recorder) NewTexture(img image.Image) (gpu.Texture, error) {
	return &recTexture{rec: r, name: fmt.Sprintf("tex%dx%d", img.Bounds().Dx(), img.Bounds().Dy())}, nil
}

func (r *recorder) NewProgram(frag, vert string, defines []string) (gpu.Program, error) {
	return &recProgram{rec: r, name: frag}, nil
}

func (r *recorder) SetBlendMode(m gpu.BlendMode) {
	r.calls = append(r.calls, "blend "+m.String())
}

func (r *recorder) SetDepthTestMode(m gpu.DepthTestMode) {
	r.calls = append(r.calls, "depth "+m.String())
}

// unitSphereMesh uploads six axis points whose bounding sphere is the unit
// sphere at the origin.
func unitSphereMesh(t *testing.T, dev gpu.Device) *scene.Mesh {
	t.Helper()
	data := scene.MeshData{
		Vertices: []scene.MeshVertex{
			{Position: math3d.V3(1, 0, 0)},
			{Position: math3d.V3(-1, 0, 0)},
			{Position: math3d.V3(0, 1, 0)},
			{Position: math3d.V3(0, -1, 0)},
			{Position: math3d.V3(0, 0, 1)},
			{Position: math3d.V3(0, 0, -1)},
		},
		Indices: []uint32{0, 2, 4, 1, 3, 5},
	}
	m, err := scene.NewMesh(dev, "unit", data, scene.BoundsCorrected)
	require.NoError(t, err)
	require.InDelta(t, 1.0, m.Bounds().Radius, 1e-12)
	return m
}

func newMaterial(rec *recorder, name string) *scene.Material {
	return scene.NewMaterial(name, &recProgram{rec: rec, name: name})
}
