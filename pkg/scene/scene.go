package scene

import (
	"github.com/om3d/forward/pkg/gpu"
	"github.com/om3d/forward/pkg/math3d"
)

// DefaultSunDirection is the direction towards the sun, before
// normalization.
var DefaultSunDirection = math3d.V3(0.2, 1.0, 0.1)

// Object is one renderable instance: a local-to-world transform over a
// shared mesh and material.
type Object struct {
	Name      string
	Transform math3d.Mat4
	Mesh      *Mesh
	Material  *Material
}

// NewObject returns an object with an identity transform.
func NewObject(mesh *Mesh, material *Material) *Object {
	return &Object{
		Transform: math3d.Identity(),
		Mesh:      mesh,
		Material:  material,
	}
}

// PointLight is an omnidirectional light with a hard attenuation radius.
type PointLight struct {
	Position math3d.Vec3
	Color    math3d.Vec3
	Radius   float64
}

// Scene is the flat list of objects and lights drawn each frame.
type Scene struct {
	Objects      []*Object
	PointLights  []PointLight
	SunDirection math3d.Vec3

	meshes   []*Mesh
	textures []gpu.Texture
}

// New returns an empty scene with the default sun direction.
func New() *Scene {
	return &Scene{SunDirection: DefaultSunDirection}
}

// AddObject appends an object.
func (s *Scene) AddObject(obj *Object) {
	s.Objects = append(s.Objects, obj)
}

// AddPointLight appends a point light.
func (s *Scene) AddPointLight(l PointLight) {
	s.PointLights = append(s.PointLights, l)
}

// Own registers meshes whose geometry is released with the scene.
func (s *Scene) Own(meshes ...*Mesh) {
	s.meshes = append(s.meshes, meshes...)
}

// Meshes returns the meshes owned by the scene.
func (s *Scene) Meshes() []*Mesh {
	return s.meshes
}

// OwnTextures registers textures released with the scene.
func (s *Scene) OwnTextures(textures ...gpu.Texture) {
	s.textures = append(s.textures, textures...)
}

// Release frees the geometry of owned meshes and the owned textures.
func (s *Scene) Release() {
	for _, m := range s.meshes {
		m.Release()
	}
	for _, t := range s.textures {
		t.Release()
	}
	s.meshes = nil
	s.textures = nil
}

// TriangleCount sums the triangles of every object's mesh.
func (s *Scene) TriangleCount() int {
	n := 0
	for _, o := range s.Objects {
		if o.Mesh != nil {
			n += o.Mesh.TriangleCount()
		}
	}
	return n
}
