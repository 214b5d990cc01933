package scene

import (
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/om3d/forward/pkg/gpu"
)

// fakeDevice records state changes so tests can assert binding order.
type fakeDevice struct {
	log        []string
	programs   int
	geometries int
	textures   int
	failProg   bool

	releasedPrograms int
	releasedTextures int
}

type fakeProgram struct {
	dev     *fakeDevice
	defines []string
}

func (p *fakeProgram) Bind() error {
	p.dev.log = append(p.dev.log, "program "+strings.Join(p.defines, ","))
	return nil
}

func (p *fakeProgram) Release() { p.dev.releasedPrograms++ }

type fakeTexture struct {
	dev  *fakeDevice
	name string
}

func (t *fakeTexture) Bind(unit int) error {
	t.dev.log = append(t.dev.log, fmt.Sprintf("texture %s@%d", t.name, unit))
	return nil
}
func (t *fakeTexture) Release() { t.dev.releasedTextures++ }

type fakeGeometry struct {
	indices int
}

func (g *fakeGeometry) IndexCount() int { return g.indices }
func (g *fakeGeometry) Draw(int) error  { return nil }
func (g *fakeGeometry) Release()        {}

func (d *fakeDevice) NewBuffer(size int) (gpu.Buffer, error) {
	return nil, errors.New("not supported")
}

func (d *fakeDevice) NewGeometry(v []gpu.Vertex, idx []uint32) (gpu.Geometry, error) {
	d.geometries++
	return &fakeGeometry{indices: len(idx)}, nil
}

func (d *fakeDevice) NewTexture(img image.Image) (gpu.Texture, error) {
	d.textures++
	return &fakeTexture{dev: d, name: "img"}, nil
}

func (d *fakeDevice) NewProgram(frag, vert string, defines []string) (gpu.Program, error) {
	if d.failProg {
		return nil, errors.New("compile error")
	}
	d.programs++
	return &fakeProgram{dev: d, defines: defines}, nil
}

func (d *fakeDevice) SetBlendMode(m gpu.BlendMode) {
	d.log = append(d.log, "blend "+m.String())
}

func (d *fakeDevice) SetDepthTestMode(m gpu.DepthTestMode) {
	d.log = append(d.log, "depth "+m.String())
}
