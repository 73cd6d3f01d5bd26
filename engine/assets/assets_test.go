package assets

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/anima-webgpu/engine/core"
	"github.com/spaghettifunk/anima-webgpu/engine/renderer/hal/haltest"
	"github.com/spaghettifunk/anima-webgpu/engine/renderer/webgpu"
)

func writePNG(t *testing.T, path string, c color.NRGBA) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 4, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 4; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func newManager(t *testing.T) (*AssetManager, string) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "textures"), 0o755))
	writePNG(t, filepath.Join(dir, "textures", "red.png"), color.NRGBA{R: 255, A: 255})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "textures", "broken.png"), []byte("not an image"), 0o644))
	am, err := NewAssetManager(dir)
	require.NoError(t, err)
	return am, dir
}

func TestNewAssetManagerNeedsDirectory(t *testing.T) {
	_, err := NewAssetManager(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)

	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	_, err = NewAssetManager(file)
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}

func TestPathResolution(t *testing.T) {
	am, dir := newManager(t)

	p, err := am.Path("textures/red.png")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "textures", "red.png"), p)

	_, err = am.Path("textures/blue.png")
	assert.ErrorIs(t, err, ErrAssetNotFound)
	_, err = am.Path("../outside.png")
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}

func TestLoadImage(t *testing.T) {
	am, _ := newManager(t)

	img, err := am.LoadImage("textures/red.png")
	require.NoError(t, err)
	assert.Equal(t, 4, img.Bounds().Dx())
	assert.Equal(t, 2, img.Bounds().Dy())
	r, g, _, a := img.At(1, 1).RGBA()
	assert.Equal(t, uint32(0xffff), r)
	assert.Equal(t, uint32(0), g)
	assert.Equal(t, uint32(0xffff), a)

	_, err = am.LoadImage("textures/broken.png")
	assert.Error(t, err)
}

func TestLoadTexture(t *testing.T) {
	am, _ := newManager(t)

	opts := webgpu.DefaultOptions()
	opts.Width, opts.Height = 16, 16
	opts.ShaderCompiler = func(string) ([]byte, error) { return []byte{0x03, 0x02, 0x23, 0x07}, nil }
	e := webgpu.New(haltest.NewInstance(), nil, core.NewEventBus(), opts)
	require.NoError(t, e.Init())
	defer e.Dispose()

	tex, err := am.LoadTexture(e, "textures/red.png", TextureParams{SamplingMode: webgpu.SamplingNearest})
	require.NoError(t, err)
	assert.True(t, tex.IsReady)
	assert.Equal(t, uint32(4), tex.Width)
	assert.Equal(t, uint32(2), tex.Height)

	hw := tex.Hardware().Texture().(*haltest.Texture)
	px, ok := hw.Pixel(0, 0, 3, 1)
	require.True(t, ok)
	assert.InDelta(t, 1.0, px[0], 0.01)
	assert.InDelta(t, 0.0, px[1], 0.01)

	_, err = am.LoadTexture(e, "textures/missing.png", TextureParams{})
	assert.ErrorIs(t, err, ErrAssetNotFound)
}
