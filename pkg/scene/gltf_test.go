package scene

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/om3d/forward/pkg/math3d"
)

func TestLoadInvalidPath(t *testing.T) {
	dev := &fakeDevice{}
	l := NewLoader(dev, NewMaterialLibrary(dev))

	_, err := l.Load(context.Background(), "/nonexistent/path.glb")
	assert.ErrorIs(t, err, ErrLoad)
}

// writeTwoCubes writes a GLB with one cube mesh referenced by two nodes.
func writeTwoCubes(t *testing.T) string {
	t.Helper()

	doc := gltf.NewDocument()
	positions := [][3]float32{
		{-1, -1, -1}, {1, -1, -1}, {1, 1, -1}, {-1, 1, -1},
		{-1, -1, 1}, {1, -1, 1}, {1, 1, 1}, {-1, 1, 1},
	}
	indices := []uint32{
		0, 2, 1, 0, 3, 2,
		4, 5, 6, 4, 6, 7,
		0, 1, 5, 0, 5, 4,
		3, 6, 2, 3, 7, 6,
		0, 4, 7, 0, 7, 3,
		1, 2, 6, 1, 6, 5,
	}
	pos := modeler.WritePosition(doc, positions)
	idx := modeler.WriteIndices(doc, indices)

	doc.Meshes = []*gltf.Mesh{{
		Name: "cube",
		Primitives: []*gltf.Primitive{{
			Indices:    gltf.Index(idx),
			Attributes: map[string]int{gltf.POSITION: pos},
		}},
	}}
	doc.Nodes = []*gltf.Node{
		{Name: "a", Mesh: gltf.Index(0)},
		{Name: "b", Mesh: gltf.Index(0), Translation: [3]float64{5, 0, 0}},
	}
	doc.Scenes[0].Nodes = []int{0, 1}

	path := filepath.Join(t.TempDir(), "cubes.glb")
	require.NoError(t, gltf.SaveBinary(doc, path))
	return path
}

func TestLoadSharesPrimitiveMeshes(t *testing.T) {
	dev := &fakeDevice{}
	l := NewLoader(dev, NewMaterialLibrary(dev))

	s, err := l.Load(context.Background(), writeTwoCubes(t))
	require.NoError(t, err)

	require.Len(t, s.Objects, 2)
	assert.Same(t, s.Objects[0].Mesh, s.Objects[1].Mesh)
	assert.Same(t, s.Objects[0].Material, s.Objects[1].Material)
	assert.Len(t, s.Meshes(), 1)
	assert.Equal(t, 1, dev.geometries)
	assert.Equal(t, 12, s.Objects[0].Mesh.TriangleCount())

	assert.True(t, s.Objects[1].Transform.Translation().ApproxEqual(math3d.V3(5, 0, 0), 1e-9))

	b := s.Objects[0].Mesh.Bounds()
	assert.InDelta(t, 0, b.Center.Len(), 1e-6)
	assert.InDelta(t, 1.7320508, b.Radius, 1e-6)
}

func TestLoadCanceled(t *testing.T) {
	dev := &fakeDevice{}
	l := NewLoader(dev, NewMaterialLibrary(dev))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := l.Load(ctx, writeTwoCubes(t))
	assert.ErrorIs(t, err, ErrLoad)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoadSplitsSharedMaterialPerMesh(t *testing.T) {
	doc := gltf.NewDocument()
	tri := modeler.WritePosition(doc, [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}})
	quad := modeler.WritePosition(doc, [][3]float32{{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0}})
	quadIdx := modeler.WriteIndices(doc, []uint32{0, 1, 2, 0, 2, 3})

	doc.Materials = []*gltf.Material{{Name: "stone"}}
	doc.Meshes = []*gltf.Mesh{
		{Name: "tri", Primitives: []*gltf.Primitive{{
			Attributes: map[string]int{gltf.POSITION: tri},
			Material:   gltf.Index(0),
		}}},
		{Name: "quad", Primitives: []*gltf.Primitive{{
			Indices:    gltf.Index(quadIdx),
			Attributes: map[string]int{gltf.POSITION: quad},
			Material:   gltf.Index(0),
		}}},
	}
	doc.Nodes = []*gltf.Node{
		{Name: "t0", Mesh: gltf.Index(0)},
		{Name: "q0", Mesh: gltf.Index(1)},
		{Name: "t1", Mesh: gltf.Index(0), Translation: [3]float64{2, 0, 0}},
	}
	doc.Scenes[0].Nodes = []int{0, 1, 2}

	path := filepath.Join(t.TempDir(), "shared.glb")
	require.NoError(t, gltf.SaveBinary(doc, path))

	dev := &fakeDevice{}
	s, err := NewLoader(dev, NewMaterialLibrary(dev)).Load(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, s.Objects, 3)

	t0, q0, t1 := s.Objects[0], s.Objects[1], s.Objects[2]
	assert.Same(t, t0.Material, t1.Material, "same mesh keeps one material")
	assert.NotSame(t, t0.Material, q0.Material, "another mesh gets its own copy")
	assert.Equal(t, "stone", q0.Material.Name)
	assert.Same(t, t0.Material.Program(), q0.Material.Program())
}

func TestLoadMalformed(t *testing.T) {
	tests := []struct {
		name  string
		build func(doc *gltf.Document)
	}{
		{
			name: "missing position accessor",
			build: func(doc *gltf.Document) {
				doc.Meshes = []*gltf.Mesh{{Name: "m", Primitives: []*gltf.Primitive{{
					Attributes: map[string]int{gltf.POSITION: 9},
				}}}}
			},
		},
		{
			name: "index past last vertex",
			build: func(doc *gltf.Document) {
				pos := modeler.WritePosition(doc, [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}})
				idx := modeler.WriteIndices(doc, []uint32{0, 1, 7})
				doc.Meshes = []*gltf.Mesh{{Name: "m", Primitives: []*gltf.Primitive{{
					Indices:    gltf.Index(idx),
					Attributes: map[string]int{gltf.POSITION: pos},
				}}}}
			},
		},
		{
			name: "partial triangle",
			build: func(doc *gltf.Document) {
				pos := modeler.WritePosition(doc, [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {1, 1, 0}})
				idx := modeler.WriteIndices(doc, []uint32{0, 1, 2, 3})
				doc.Meshes = []*gltf.Mesh{{Name: "m", Primitives: []*gltf.Primitive{{
					Indices:    gltf.Index(idx),
					Attributes: map[string]int{gltf.POSITION: pos},
				}}}}
			},
		},
		{
			name: "missing indices accessor",
			build: func(doc *gltf.Document) {
				pos := modeler.WritePosition(doc, [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}})
				doc.Meshes = []*gltf.Mesh{{Name: "m", Primitives: []*gltf.Primitive{{
					Indices:    gltf.Index(5),
					Attributes: map[string]int{gltf.POSITION: pos},
				}}}}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := gltf.NewDocument()
			tt.build(doc)
			doc.Nodes = []*gltf.Node{{Name: "n", Mesh: gltf.Index(0)}}
			doc.Scenes[0].Nodes = []int{0}

			path := filepath.Join(t.TempDir(), "bad.glb")
			require.NoError(t, gltf.SaveBinary(doc, path))

			dev := &fakeDevice{}
			var (
				s   *Scene
				err error
			)
			require.NotPanics(t, func() {
				s, err = NewLoader(dev, NewMaterialLibrary(dev)).Load(context.Background(), path)
			})
			assert.ErrorIs(t, err, ErrLoad)
			assert.Nil(t, s)
			assert.Zero(t, dev.geometries)
		})
	}
}

func TestLoadNodeCycle(t *testing.T) {
	doc := gltf.NewDocument()
	doc.Nodes = []*gltf.Node{
		{Name: "a", Children: []int{1}},
		{Name: "b", Children: []int{0}},
	}
	doc.Scenes[0].Nodes = []int{0}

	path := filepath.Join(t.TempDir(), "cycle.glb")
	require.NoError(t, gltf.SaveBinary(doc, path))

	dev := &fakeDevice{}
	_, err := NewLoader(dev, NewMaterialLibrary(dev)).Load(context.Background(), path)
	assert.ErrorIs(t, err, ErrLoad)
}

// writeTexturedTriangle writes a glTF triangle whose material samples an
// external PNG next to it.
func writeTexturedTriangle(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{255, 0, 0, 255})
	f, err := os.Create(filepath.Join(dir, "albedo.png"))
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())

	doc := gltf.NewDocument()
	pos := modeler.WritePosition(doc, [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}})
	uv := modeler.WriteTextureCoord(doc, [][2]float32{{0, 0}, {1, 0}, {0, 1}})
	doc.Images = []*gltf.Image{{URI: "albedo.png"}}
	doc.Textures = []*gltf.Texture{{Source: gltf.Index(0)}}
	doc.Materials = []*gltf.Material{{
		Name: "painted",
		PBRMetallicRoughness: &gltf.PBRMetallicRoughness{
			BaseColorTexture: &gltf.TextureInfo{Index: 0},
		},
	}}
	doc.Meshes = []*gltf.Mesh{{Name: "tri", Primitives: []*gltf.Primitive{{
		Attributes: map[string]int{gltf.POSITION: pos, gltf.TEXCOORD_0: uv},
		Material:   gltf.Index(0),
	}}}}
	doc.Nodes = []*gltf.Node{{Name: "n", Mesh: gltf.Index(0)}}
	doc.Scenes[0].Nodes = []int{0}

	path := filepath.Join(dir, "painted.glb")
	require.NoError(t, gltf.SaveBinary(doc, path))
	return path
}

func TestSceneReleasesLoadedTextures(t *testing.T) {
	dev := &fakeDevice{}
	s, err := NewLoader(dev, NewMaterialLibrary(dev)).Load(context.Background(), writeTexturedTriangle(t))
	require.NoError(t, err)
	require.Len(t, s.Objects, 1)
	require.Equal(t, 1, dev.textures)
	assert.Zero(t, dev.releasedTextures)

	s.Release()
	assert.Equal(t, 1, dev.releasedTextures)
	assert.Equal(t, 0, dev.releasedPrograms, "programs belong to the library")
}
