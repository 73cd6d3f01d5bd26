package webgpu

import (
	"bytes"
	"image"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/spaghettifunk/anima-webgpu/engine/core"
)

// CreateVideoTexture creates an RGBA texture that receives decoded frames.
func (e *Engine) CreateVideoTexture(opts TextureOptions) (*InternalTexture, error) {
	opts.GenerateMipMaps = false
	opts.Samples = 1
	opts.Is3D = false
	opts.Depth = 1
	if opts.SamplingMode == SamplingTrilinear {
		opts.SamplingMode = SamplingBilinear
	}
	return e.CreateTexture(opts)
}

// UpdateVideoTexture decodes one encoded frame (PNG, JPEG, BMP or WebP) and
// uploads it. A frame that cannot be decoded keeps the previous content: the
// texture is still marked ready and no error is returned.
func (e *Engine) UpdateVideoTexture(tex *InternalTexture, frame []byte, invertY bool) error {
	if err := e.checkReady(); err != nil {
		return err
	}
	img, format, err := image.Decode(bytes.NewReader(frame))
	if err != nil {
		core.LogWarn("video texture %q: no frame data (%s), keeping the previous frame", tex.Label, err)
		tex.IsReady = true
		return nil
	}
	b := img.Bounds()
	if uint32(b.Dx()) > tex.Width || uint32(b.Dy()) > tex.Height {
		core.LogWarn("video texture %q: %s frame of %dx%d does not fit %dx%d, keeping the previous frame",
			tex.Label, format, b.Dx(), b.Dy(), tex.Width, tex.Height)
		tex.IsReady = true
		return nil
	}
	return e.UpdateTextureFromImage(tex, img, UpdateOptions{InvertY: invertY})
}
