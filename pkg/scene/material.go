package scene

import (
	"fmt"

	"github.com/om3d/forward/pkg/gpu"
)

// TextureBinding attaches a texture to a sampler slot.
type TextureBinding struct {
	Slot    int
	Texture gpu.Texture
}

// Material binds shading state. Objects are grouped for instancing by
// *Material identity, so two materials with equal state still draw
// separately.
type Material struct {
	Name          string
	BlendMode     gpu.BlendMode
	DepthTestMode gpu.DepthTestMode

	program  gpu.Program
	textures []TextureBinding
}

// NewMaterial returns an opaque, depth-tested material using program.
func NewMaterial(name string, program gpu.Program) *Material {
	return &Material{
		Name:          name,
		BlendMode:     gpu.BlendNone,
		DepthTestMode: gpu.DepthStandard,
		program:       program,
	}
}

// Clone returns a copy sharing program and textures but with its own
// identity.
func (m *Material) Clone(name string) *Material {
	c := *m
	c.Name = name
	c.textures = append([]TextureBinding(nil), m.textures...)
	return &c
}

// SetTexture binds tex at slot, replacing whatever was bound there.
func (m *Material) SetTexture(slot int, tex gpu.Texture) {
	for i := range m.textures {
		if m.textures[i].Slot == slot {
			m.textures[i].Texture = tex
			return
		}
	}
	m.textures = append(m.textures, TextureBinding{Slot: slot, Texture: tex})
}

// Textures returns the texture bindings in insertion order.
func (m *Material) Textures() []TextureBinding {
	return m.textures
}

// Program returns the material's shader program.
func (m *Material) Program() gpu.Program {
	return m.program
}

// Bind sets blend mode, depth-test mode, texture bindings and program, in
// that order.
func (m *Material) Bind(dev gpu.Device) error {
	dev.SetBlendMode(m.BlendMode)
	dev.SetDepthTestMode(m.DepthTestMode)

	for _, t := range m.textures {
		if err := t.Texture.Bind(t.Slot); err != nil {
			return fmt.Errorf("%w: material %q texture slot %d: %w", gpu.ErrBinding, m.Name, t.Slot, err)
		}
	}
	if m.program == nil {
		return fmt.Errorf("%w: material %q has no program", gpu.ErrBinding, m.Name)
	}
	if err := m.program.Bind(); err != nil {
		return fmt.Errorf("%w: material %q program: %w", gpu.ErrBinding, m.Name, err)
	}
	return nil
}
