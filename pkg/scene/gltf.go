package scene

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // Register WebP decoder

	"github.com/om3d/forward/pkg/gpu"
	"github.com/om3d/forward/pkg/math3d"
)

// ErrLoad is returned when a scene file cannot be turned into a Scene.
var ErrLoad = errors.New("scene: load failed")

// Loader builds scenes from glTF 2.0 files (.gltf or .glb).
type Loader struct {
	Device  gpu.Device
	Library *MaterialLibrary
	Bounds  BoundsMode
	Logger  *slog.Logger
}

// NewLoader returns a loader uploading to dev and taking materials from lib.
func NewLoader(dev gpu.Device, lib *MaterialLibrary) *Loader {
	return &Loader{
		Device:  dev,
		Library: lib,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

type primitiveKey struct {
	mesh, prim int
}

type materialKey struct {
	base *Material
	mesh *Mesh
}

type loadState struct {
	doc       *gltf.Document
	dir       string
	textures  []gpu.Texture
	materials []*Material
	meshes    map[primitiveKey]*Mesh
	scene     *Scene
	visiting  map[int]bool

	// Per-mesh material copies, see objectMaterial.
	bound   map[materialKey]*Material
	claimed map[*Material]bool
}

// Load reads path and returns the flattened scene. Every node carrying a
// mesh contributes one object per primitive, with its world transform.
// Primitives are uploaded once and shared by every node instancing them.
func (l *Loader) Load(ctx context.Context, path string) (*Scene, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoad, err)
	}
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %q: %w", ErrLoad, path, err)
	}

	st := &loadState{
		doc:      doc,
		dir:      filepath.Dir(path),
		meshes:   make(map[primitiveKey]*Mesh),
		scene:    New(),
		visiting: make(map[int]bool),
		bound:    make(map[materialKey]*Material),
		claimed:  make(map[*Material]bool),
	}

	if err := l.loadTextures(st); err != nil {
		return nil, l.fail(st, err)
	}
	if err := l.loadMaterials(st); err != nil {
		return nil, l.fail(st, err)
	}

	identity := math3d.Identity()
	for _, root := range rootNodes(doc) {
		if err := l.walk(ctx, st, root, identity); err != nil {
			return nil, l.fail(st, err)
		}
	}

	for _, t := range st.textures {
		if t != nil {
			st.scene.OwnTextures(t)
		}
	}

	l.Logger.Info("scene loaded",
		"path", path,
		"objects", len(st.scene.Objects),
		"meshes", len(st.meshes),
		"materials", len(st.materials),
		"textures", len(st.textures))
	return st.scene, nil
}

func (l *Loader) fail(st *loadState, err error) error {
	st.scene.Release()
	for _, t := range st.textures {
		if t != nil {
			t.Release()
		}
	}
	return fmt.Errorf("%w: %w", ErrLoad, err)
}

func rootNodes(doc *gltf.Document) []int {
	if doc.Scene != nil && *doc.Scene >= 0 && *doc.Scene < len(doc.Scenes) {
		return doc.Scenes[*doc.Scene].Nodes
	}
	hasParent := make([]bool, len(doc.Nodes))
	for _, n := range doc.Nodes {
		for _, c := range n.Children {
			if c < len(hasParent) {
				hasParent[c] = true
			}
		}
	}
	var roots []int
	for i := range doc.Nodes {
		if !hasParent[i] {
			roots = append(roots, i)
		}
	}
	return roots
}

func nodeTransform(n *gltf.Node) math3d.Mat4 {
	if n.Matrix != [16]float64{} && n.Matrix != [16]float64(math3d.Identity()) {
		return math3d.Mat4(n.Matrix)
	}
	t := n.TranslationOrDefault()
	s := n.ScaleOrDefault()
	return math3d.TRS(
		math3d.V3(t[0], t[1], t[2]),
		n.RotationOrDefault(),
		math3d.V3(s[0], s[1], s[2]),
	)
}

func (l *Loader) walk(ctx context.Context, st *loadState, idx int, parent math3d.Mat4) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if idx < 0 || idx >= len(st.doc.Nodes) {
		return fmt.Errorf("node index %d out of range", idx)
	}
	if st.visiting[idx] {
		return fmt.Errorf("node %d is its own ancestor", idx)
	}
	st.visiting[idx] = true
	defer delete(st.visiting, idx)

	node := st.doc.Nodes[idx]
	world := parent.Mul(nodeTransform(node))

	if node.Mesh != nil {
		if err := l.addMeshObjects(st, node, *node.Mesh, world); err != nil {
			return err
		}
	}
	for _, c := range node.Children {
		if err := l.walk(ctx, st, c, world); err != nil {
			return err
		}
	}
	return nil
}

func (l *Loader) addMeshObjects(st *loadState, node *gltf.Node, meshIdx int, world math3d.Mat4) error {
	if meshIdx < 0 || meshIdx >= len(st.doc.Meshes) {
		return fmt.Errorf("node %q: mesh index %d out of range", node.Name, meshIdx)
	}
	gm := st.doc.Meshes[meshIdx]
	for pi, prim := range gm.Primitives {
		if prim.Mode != gltf.PrimitiveTriangles && prim.Mode != 0 {
			l.Logger.Debug("skipping non-triangle primitive", "mesh", gm.Name, "primitive", pi)
			continue
		}
		key := primitiveKey{meshIdx, pi}
		mesh, ok := st.meshes[key]
		if !ok {
			var err error
			mesh, err = l.loadPrimitive(st, gm, pi)
			if err != nil {
				return fmt.Errorf("mesh %q primitive %d: %w", gm.Name, pi, err)
			}
			st.meshes[key] = mesh
			st.scene.Own(mesh)
		}

		base, err := l.primitiveMaterial(st, prim)
		if err != nil {
			return err
		}
		obj := NewObject(mesh, st.objectMaterial(base, mesh))
		obj.Name = node.Name
		obj.Transform = world
		st.scene.AddObject(obj)
	}
	return nil
}

func (l *Loader) primitiveMaterial(st *loadState, prim *gltf.Primitive) (*Material, error) {
	if prim.Material != nil && *prim.Material >= 0 && *prim.Material < len(st.materials) {
		return st.materials[*prim.Material], nil
	}
	return l.Library.Empty()
}

// objectMaterial returns the material drawn with mesh. Batches draw the
// first object's mesh for every instance, so each distinct mesh using a
// glTF material gets its own copy of it.
func (st *loadState) objectMaterial(base *Material, mesh *Mesh) *Material {
	key := materialKey{base, mesh}
	if m, ok := st.bound[key]; ok {
		return m
	}
	m := base
	if st.claimed[base] {
		m = base.Clone(base.Name)
	}
	st.claimed[base] = true
	st.bound[key] = m
	return m
}

// accessor returns the accessor at idx after checking that it and the
// buffer view behind it exist.
func (st *loadState) accessor(idx int) (*gltf.Accessor, error) {
	doc := st.doc
	if idx < 0 || idx >= len(doc.Accessors) {
		return nil, fmt.Errorf("accessor %d out of range (%d accessors)", idx, len(doc.Accessors))
	}
	acr := doc.Accessors[idx]
	if acr.BufferView != nil {
		if err := st.checkBufferView(*acr.BufferView); err != nil {
			return nil, fmt.Errorf("accessor %d: %w", idx, err)
		}
	}
	return acr, nil
}

func (st *loadState) checkBufferView(idx int) error {
	doc := st.doc
	if idx < 0 || idx >= len(doc.BufferViews) {
		return fmt.Errorf("buffer view %d out of range (%d views)", idx, len(doc.BufferViews))
	}
	if b := doc.BufferViews[idx].Buffer; b < 0 || b >= len(doc.Buffers) {
		return fmt.Errorf("buffer view %d: buffer %d out of range", idx, b)
	}
	return nil
}

func (l *Loader) loadPrimitive(st *loadState, gm *gltf.Mesh, pi int) (*Mesh, error) {
	doc := st.doc
	prim := gm.Primitives[pi]

	posIdx, ok := prim.Attributes[gltf.POSITION]
	if !ok {
		return nil, errors.New("no POSITION attribute")
	}
	acr, err := st.accessor(posIdx)
	if err != nil {
		return nil, fmt.Errorf("positions: %w", err)
	}
	positions, err := modeler.ReadPosition(doc, acr, nil)
	if err != nil {
		return nil, fmt.Errorf("positions: %w", err)
	}

	var (
		normals  [][3]float32
		uvs      [][2]float32
		tangents [][4]float32
	)
	if idx, ok := prim.Attributes[gltf.NORMAL]; ok {
		if acr, err = st.accessor(idx); err == nil {
			normals, err = modeler.ReadNormal(doc, acr, nil)
		}
		if err != nil {
			return nil, fmt.Errorf("normals: %w", err)
		}
	}
	if idx, ok := prim.Attributes[gltf.TEXCOORD_0]; ok {
		if acr, err = st.accessor(idx); err == nil {
			uvs, err = modeler.ReadTextureCoord(doc, acr, nil)
		}
		if err != nil {
			return nil, fmt.Errorf("uvs: %w", err)
		}
	}
	if idx, ok := prim.Attributes[gltf.TANGENT]; ok {
		if acr, err = st.accessor(idx); err == nil {
			tangents, err = modeler.ReadTangent(doc, acr, nil)
		}
		if err != nil {
			return nil, fmt.Errorf("tangents: %w", err)
		}
	}

	// The base color factor is baked into the vertex color, so a primitive
	// always renders with the factor of its own material.
	color := math3d.V3(1, 1, 1)
	if prim.Material != nil && *prim.Material >= 0 && *prim.Material < len(doc.Materials) {
		if pbr := doc.Materials[*prim.Material].PBRMetallicRoughness; pbr != nil {
			f := pbr.BaseColorFactorOrDefault()
			color = math3d.V3(f[0], f[1], f[2])
		}
	}

	data := MeshData{Vertices: make([]MeshVertex, len(positions))}
	for i, p := range positions {
		v := MeshVertex{
			Position: math3d.V3(float64(p[0]), float64(p[1]), float64(p[2])),
			Color:    color,
		}
		if i < len(normals) {
			v.Normal = math3d.V3(float64(normals[i][0]), float64(normals[i][1]), float64(normals[i][2]))
		}
		if i < len(uvs) {
			v.UV = math3d.V2(float64(uvs[i][0]), float64(uvs[i][1]))
		}
		if i < len(tangents) {
			t := tangents[i]
			v.Tangent = math3d.V4(float64(t[0]), float64(t[1]), float64(t[2]), float64(t[3]))
		}
		data.Vertices[i] = v
	}

	if prim.Indices != nil {
		if acr, err = st.accessor(*prim.Indices); err == nil {
			data.Indices, err = modeler.ReadIndices(doc, acr, nil)
		}
		if err != nil {
			return nil, fmt.Errorf("indices: %w", err)
		}
	} else {
		data.Indices = make([]uint32, len(positions))
		for i := range data.Indices {
			data.Indices[i] = uint32(i)
		}
	}

	if err := data.Validate(); err != nil {
		return nil, err
	}
	if !data.HasNormals() {
		data.CalculateSmoothNormals()
	}

	name := gm.Name
	if name == "" {
		name = fmt.Sprintf("mesh_%d", pi)
	}
	return NewMesh(l.Device, fmt.Sprintf("%s/%d", name, pi), data, l.Bounds)
}

func (l *Loader) loadTextures(st *loadState) error {
	doc := st.doc
	st.textures = make([]gpu.Texture, len(doc.Textures))
	for i, gt := range doc.Textures {
		if gt.Source == nil || *gt.Source < 0 || *gt.Source >= len(doc.Images) {
			continue
		}
		img, err := l.readImage(st, doc.Images[*gt.Source])
		if err != nil {
			// A broken texture degrades the material; it does not fail the load.
			l.Logger.Warn("texture skipped", "texture", i, "err", err)
			continue
		}
		tex, err := l.Device.NewTexture(img)
		if err != nil {
			return fmt.Errorf("texture %d: %w", i, err)
		}
		st.textures[i] = tex
	}
	return nil
}

func (l *Loader) readImage(st *loadState, img *gltf.Image) (*image.RGBA, error) {
	var raw []byte
	switch {
	case img.BufferView != nil:
		if err := st.checkBufferView(*img.BufferView); err != nil {
			return nil, err
		}
		var err error
		raw, err = modeler.ReadBufferView(st.doc, st.doc.BufferViews[*img.BufferView])
		if err != nil {
			return nil, fmt.Errorf("buffer view: %w", err)
		}
	case img.IsEmbeddedResource():
		var err error
		raw, err = img.MarshalData()
		if err != nil {
			return nil, fmt.Errorf("embedded image: %w", err)
		}
	case img.URI != "":
		var err error
		raw, err = os.ReadFile(filepath.Join(st.dir, img.URI))
		if err != nil {
			return nil, err
		}
	default:
		return nil, errors.New("image has no data")
	}

	decoded, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return toRGBA(decoded), nil
}

func toRGBA(src image.Image) *image.RGBA {
	if rgba, ok := src.(*image.RGBA); ok {
		return rgba
	}
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}

func (l *Loader) loadMaterials(st *loadState) error {
	doc := st.doc
	st.materials = make([]*Material, len(doc.Materials))
	for i, gm := range doc.Materials {
		var albedo, normal gpu.Texture
		if pbr := gm.PBRMetallicRoughness; pbr != nil && pbr.BaseColorTexture != nil {
			albedo = st.texture(pbr.BaseColorTexture.Index)
		}
		if gm.NormalTexture != nil && gm.NormalTexture.Index != nil {
			normal = st.texture(*gm.NormalTexture.Index)
		}

		var (
			mat *Material
			err error
		)
		switch {
		case albedo != nil && normal != nil:
			mat, err = l.Library.TexturedNormalMapped()
			if err == nil {
				mat.SetTexture(SlotAlbedo, albedo)
				mat.SetTexture(SlotNormal, normal)
			}
		case albedo != nil:
			mat, err = l.Library.Textured()
			if err == nil {
				mat.SetTexture(SlotAlbedo, albedo)
			}
		default:
			// Untextured materials share the library's default program;
			// a copy keeps glTF material boundaries as separate groups.
			var empty *Material
			empty, err = l.Library.Empty()
			if err == nil {
				mat = empty.Clone("")
			}
		}
		if err != nil {
			return fmt.Errorf("material %d: %w", i, err)
		}

		mat.Name = gm.Name
		if gm.AlphaMode == gltf.AlphaBlend {
			mat.BlendMode = gpu.BlendAlpha
		}
		st.materials[i] = mat
	}
	return nil
}

func (st *loadState) texture(idx int) gpu.Texture {
	if idx < 0 || idx >= len(st.textures) {
		return nil
	}
	return st.textures[idx]
}
