package scene

import (
	"fmt"
	"strings"

	"github.com/om3d/forward/pkg/gpu"
)

// Shader names and defines understood by both backends.
const (
	ShaderLit   = "lit.frag"
	ShaderBasic = "basic.vert"

	DefineTextured     = "TEXTURED"
	DefineNormalMapped = "NORMAL_MAPPED"
)

// Sampler slots used by the lit shader.
const (
	SlotAlbedo = 0
	SlotNormal = 1
)

// MaterialLibrary creates materials and owns the cached default material
// and compiled programs. The cache lives as long as the library.
type MaterialLibrary struct {
	dev          gpu.Device
	debugDefines []string

	empty    *Material
	programs map[string]gpu.Program
}

// NewMaterialLibrary returns a library building programs on dev. The debug
// defines are appended to every program it builds.
func NewMaterialLibrary(dev gpu.Device, debugDefines ...string) *MaterialLibrary {
	return &MaterialLibrary{
		dev:          dev,
		debugDefines: debugDefines,
		programs:     make(map[string]gpu.Program),
	}
}

// Empty returns the shared untextured material, creating it on first use.
func (l *MaterialLibrary) Empty() (*Material, error) {
	if l.empty != nil {
		return l.empty, nil
	}
	prog, err := l.program()
	if err != nil {
		return nil, err
	}
	l.empty = NewMaterial("empty", prog)
	return l.empty, nil
}

// Textured returns a new material sampling an albedo texture.
func (l *MaterialLibrary) Textured() (*Material, error) {
	prog, err := l.program(DefineTextured)
	if err != nil {
		return nil, err
	}
	return NewMaterial("textured", prog), nil
}

// TexturedNormalMapped returns a new material sampling albedo and normal
// textures.
func (l *MaterialLibrary) TexturedNormalMapped() (*Material, error) {
	prog, err := l.program(DefineTextured, DefineNormalMapped)
	if err != nil {
		return nil, err
	}
	return NewMaterial("textured_normal_mapped", prog), nil
}

// Release frees every cached program and drops the default material.
// Materials handed out earlier must not be drawn afterwards. The library
// stays usable and rebuilds programs on demand.
func (l *MaterialLibrary) Release() {
	for _, p := range l.programs {
		p.Release()
	}
	l.empty = nil
	clear(l.programs)
}

func (l *MaterialLibrary) program(defines ...string) (gpu.Program, error) {
	defines = append(defines, l.debugDefines...)
	key := strings.Join(defines, ",")
	if p, ok := l.programs[key]; ok {
		return p, nil
	}
	p, err := l.dev.NewProgram(ShaderLit, ShaderBasic, defines)
	if err != nil {
		return nil, fmt.Errorf("build program [%s]: %w", key, err)
	}
	l.programs[key] = p
	return p, nil
}
