package glgpu

import (
	"fmt"
	"image"
	"math/bits"

	"github.com/go-gl/gl/v4.5-core/gl"
	"golang.org/x/image/draw"

	"github.com/om3d/forward/pkg/gpu"
)

// texture is an immutable mipmapped RGBA8 texture.
type texture struct {
	id uint32
}

func newTexture(img image.Image) (*texture, error) {
	b := img.Bounds()
	if b.Empty() {
		return nil, fmt.Errorf("%w: empty image", gpu.ErrAllocation)
	}
	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Stride != 4*b.Dx() {
		rgba = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	}

	w, h := int32(b.Dx()), int32(b.Dy())
	levels := int32(bits.Len(uint(max(b.Dx(), b.Dy()))))

	t := &texture{}
	gl.CreateTextures(gl.TEXTURE_2D, 1, &t.id)
	gl.TextureParameteri(t.id, gl.TEXTURE_WRAP_S, gl.REPEAT)
	gl.TextureParameteri(t.id, gl.TEXTURE_WRAP_T, gl.REPEAT)
	gl.TextureParameteri(t.id, gl.TEXTURE_MIN_FILTER, gl.LINEAR_MIPMAP_LINEAR)
	gl.TextureParameteri(t.id, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.TextureStorage2D(t.id, levels, gl.RGBA8, w, h)
	gl.TextureSubImage2D(t.id, 0, 0, 0, w, h, gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(rgba.Pix))
	gl.GenerateTextureMipmap(t.id)

	if err := checkError("upload texture"); err != nil {
		t.Release()
		return nil, fmt.Errorf("%w: %w", gpu.ErrAllocation, err)
	}
	return t, nil
}

func (t *texture) Bind(unit int) error {
	gl.BindTextureUnit(uint32(unit), t.id)
	return checkError("bind texture")
}

func (t *texture) Release() {
	if t.id != 0 {
		gl.DeleteTextures(1, &t.id)
		t.id = 0
	}
}
