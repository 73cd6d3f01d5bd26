package webgpu

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/anima-webgpu/engine/core"
	"github.com/spaghettifunk/anima-webgpu/engine/renderer/formats"
	"github.com/spaghettifunk/anima-webgpu/engine/renderer/hal"
	"github.com/spaghettifunk/anima-webgpu/engine/renderer/hal/haltest"
)

func rgbaTexture(t *testing.T, e *Engine, label string, w, h uint32, mips bool) *InternalTexture {
	t.Helper()
	tex, err := e.CreateTexture(TextureOptions{
		Label:           label,
		Width:           w,
		Height:          h,
		Type:            formats.TypeUnsignedByte,
		Format:          formats.FormatRGBA,
		GenerateMipMaps: mips,
		SamplingMode:    SamplingBilinear,
	})
	require.NoError(t, err)
	return tex
}

func solid(w, h int, c [4]byte) []byte {
	out := make([]byte, 0, w*h*4)
	for i := 0; i < w*h; i++ {
		out = append(out, c[:]...)
	}
	return out
}

func halTexture(tex *InternalTexture) *haltest.Texture {
	return tex.Hardware().Texture().(*haltest.Texture)
}

func TestUpdateTextureUploadPaths(t *testing.T) {
	e, _, dev := newTestEngine(t)

	small := rgbaTexture(t, e, "small", 3, 2, false)
	data := solid(3, 2, [4]byte{10, 20, 30, 255})
	data[len(data)-4] = 200
	require.NoError(t, e.UpdateTexture(small, data, UpdateOptions{}))
	assert.Zero(t, dev.Count("writeTexture"))

	wide := rgbaTexture(t, e, "wide", 64, 1, false)
	require.NoError(t, e.UpdateTexture(wide, solid(64, 1, [4]byte{1, 2, 3, 4}), UpdateOptions{}))
	assert.Equal(t, 1, dev.Count("writeTexture"))
	assert.True(t, wide.IsReady)

	require.NoError(t, e.FlushFramebuffer(false))
	assert.Equal(t, 1, dev.Count("copyBufferToTexture"))
	assert.True(t, small.IsReady)

	px, err := e.ReadPixels(context.Background(), small, 2, 1, 1, 1, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte{200, 20, 30, 255}, px)
	px, err = e.ReadPixels(context.Background(), small, 0, 0, 1, 1, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte{10, 20, 30, 255}, px)
	assert.Empty(t, dev.Errors())
}

func TestTextureRegionBounds(t *testing.T) {
	e, _, dev := newTestEngine(t)
	tex := rgbaTexture(t, e, "bounded", 4, 4, false)
	data := solid(4, 4, [4]byte{1, 2, 3, 255})

	for name, opts := range map[string]UpdateOptions{
		"origin past width":  {X: 8},
		"origin past height": {Y: 4},
		"region too wide":    {X: 2, Width: 4, Height: 1},
		"missing mip":        {Mip: 3},
		"missing layer":      {Layer: 1},
	} {
		assert.ErrorIs(t, e.UpdateTexture(tex, data, opts), core.ErrInvalidArgument, name)
	}
	require.NoError(t, e.UpdateTexture(tex, data, UpdateOptions{X: 2, Y: 2, Width: 2, Height: 2}))

	_, err := e.ReadPixels(context.Background(), tex, 2, 2, 8, 8, 0, 0)
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
	_, err = e.ReadPixels(context.Background(), tex, 0, 0, 1, 1, 0, 2)
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
	_, err = e.ReadPixels(context.Background(), tex, 0, 0, 0, 1, 0, 0)
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
	px, err := e.ReadPixels(context.Background(), tex, 3, 3, 1, 1, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 255}, px)

	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	assert.ErrorIs(t, e.UpdateTextureFromImage(tex, img, UpdateOptions{X: 1}), core.ErrInvalidArgument)
	assert.Empty(t, dev.Errors())
}

func TestUpdateTextureRejectsShortData(t *testing.T) {
	e, _, _ := newTestEngine(t)
	tex := rgbaTexture(t, e, "short", 4, 4, false)
	err := e.UpdateTexture(tex, make([]byte, 10), UpdateOptions{})
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}

func TestUpdateTextureInvertY(t *testing.T) {
	e, _, dev := newTestEngine(t)
	tex := rgbaTexture(t, e, "flip", 1, 2, false)
	red := [4]byte{255, 0, 0, 255}
	blue := [4]byte{0, 0, 255, 255}
	data := append(append([]byte{}, red[:]...), blue[:]...)

	require.NoError(t, e.UpdateTexture(tex, data, UpdateOptions{InvertY: true}))
	require.NoError(t, e.FlushFramebuffer(false))

	top, ok := halTexture(tex).Pixel(0, 0, 0, 0)
	require.True(t, ok)
	bottom, _ := halTexture(tex).Pixel(0, 0, 0, 1)
	assert.Equal(t, [4]float32{0, 0, 1, 1}, top)
	assert.Equal(t, [4]float32{1, 0, 0, 1}, bottom)
	assert.Equal(t, 1, e.textureHelper.ScratchEntries())
	assert.Empty(t, dev.Errors())
}

func TestUpdateTexturePremultiply(t *testing.T) {
	e, _, dev := newTestEngine(t)
	tex := rgbaTexture(t, e, "premul", 64, 1, false)

	require.NoError(t, e.UpdateTexture(tex, solid(64, 1, [4]byte{255, 255, 255, 51}), UpdateOptions{Premultiply: true}))
	require.NoError(t, e.FlushFramebuffer(false))

	c, ok := halTexture(tex).Pixel(0, 0, 10, 0)
	require.True(t, ok)
	assert.InDelta(t, 0.2, c[0], 0.01)
	assert.InDelta(t, 0.2, c[3], 0.01)
	assert.Empty(t, dev.Errors())
}

func TestGenerateMipmapsOnUpload(t *testing.T) {
	e, _, dev := newTestEngine(t)
	tex := rgbaTexture(t, e, "mipped", 64, 64, true)
	assert.Equal(t, uint32(7), tex.MipLevels)

	require.NoError(t, e.UpdateTexture(tex, solid(64, 64, [4]byte{0, 255, 0, 255}), UpdateOptions{}))
	require.NoError(t, e.FlushFramebuffer(false))

	for mip := uint32(1); mip < tex.MipLevels; mip++ {
		c, ok := halTexture(tex).Pixel(mip, 0, 0, 0)
		require.True(t, ok)
		assert.InDelta(t, 1.0, c[1], 0.01, "mip %d", mip)
	}
	assert.Equal(t, 6, e.textureHelper.ScratchEntries())

	// The views of a released texture leave the helper with it.
	e.ReleaseTexture(tex)
	assert.Zero(t, e.textureHelper.ScratchEntries())
	assert.Empty(t, dev.Errors())
}

func TestCubeTextureMipmaps(t *testing.T) {
	e, _, dev := newTestEngine(t)
	cube, err := e.CreateCubeTexture(TextureOptions{
		Label:           "sky",
		Width:           8,
		Height:          4,
		Type:            formats.TypeUnsignedByte,
		Format:          formats.FormatRGBA,
		GenerateMipMaps: true,
	})
	require.NoError(t, err)
	assert.True(t, cube.IsCube)
	assert.Equal(t, uint32(8), cube.Height)
	assert.Equal(t, uint32(6), cube.Depth)

	for face := uint32(0); face < 6; face++ {
		require.NoError(t, e.UpdateTexture(cube, solid(8, 8, [4]byte{byte(40 * face), 0, 0, 255}), UpdateOptions{Layer: face}))
	}
	require.NoError(t, e.FlushFramebuffer(false))
	for face := uint32(0); face < 6; face++ {
		c, ok := halTexture(cube).Pixel(3, face, 0, 0)
		require.True(t, ok)
		assert.InDelta(t, float64(40*face)/255, float64(c[0]), 0.01, "face %d", face)
	}
	assert.Empty(t, dev.Errors())
}

func TestReleasedTextureSurvivesUntilEndOfFrame(t *testing.T) {
	e, _, dev := newTestEngine(t)
	tex := rgbaTexture(t, e, "albedo", 4, 4, false)
	require.NoError(t, e.UpdateTexture(tex, solid(4, 4, [4]byte{0, 255, 0, 255}), UpdateOptions{}))
	hw := halTexture(tex)

	fx, err := e.CreateEffect(texturedRequest())
	require.NoError(t, err)
	vb, err := e.CreateVertexBuffer("triangle", floatBytes(-1, -1, 1, -1, 0, 1))
	require.NoError(t, err)
	draw := NewDrawContext()
	draw.SetVertexBuffers(vb)
	material := NewMaterialContext()
	material.SetTexture("albedo", tex)

	require.NoError(t, e.BeginFrame())
	e.EnableDrawWrapper(DrawWrapper{Effect: fx, DrawContext: draw, MaterialContext: material})
	require.NoError(t, e.Draw(FillModeTriangles, 0, 3, 1))
	e.ReleaseTexture(tex)
	assert.False(t, tex.IsReady)
	assert.Nil(t, tex.Hardware())
	assert.False(t, hw.Destroyed())

	require.NoError(t, e.EndFrame())
	assert.True(t, hw.Destroyed())

	bb := halTexture(e.Backbuffer())
	c, _ := bb.Pixel(0, 0, 32, 40)
	assert.InDelta(t, 1.0, c[1], 0.01)
	assert.Empty(t, dev.Errors())
}

func TestReleasedBufferSurvivesUntilEndOfFrame(t *testing.T) {
	e, _, dev := newTestEngine(t)
	tri := newTriangleDraw(t, e, 1, 0, 1, 1)

	require.NoError(t, e.BeginFrame())
	tri.enable(e)
	require.NoError(t, e.Draw(FillModeTriangles, 0, 3, 1))
	e.ReleaseBuffer(tri.color)
	assert.Nil(t, tri.color.Buffer())
	require.NoError(t, e.EndFrame())
	assert.Empty(t, dev.Errors())

	assert.ErrorIs(t, e.UpdateBuffer(tri.color, 0, floatBytes(1)), hal.ErrResourceReleased)
}

func TestUpdateBufferBounds(t *testing.T) {
	e, _, _ := newTestEngine(t)
	buf, err := e.CreateUniformBuffer("u", 6)
	require.NoError(t, err)
	assert.Equal(t, uint64(8), buf.Size())
	assert.NoError(t, e.UpdateBuffer(buf, 4, floatBytes(1)))
	assert.ErrorIs(t, e.UpdateBuffer(buf, 6, floatBytes(1)), core.ErrInvalidArgument)

	_, err = e.CreateStorageBuffer("empty", 0)
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}

func encodePNG(t *testing.T, w, h int, at image.Point, c color.NRGBA) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{A: 255})
		}
	}
	img.SetNRGBA(at.X, at.Y, c)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestVideoTextureFrames(t *testing.T) {
	e, _, dev := newTestEngine(t)
	tex, err := e.CreateVideoTexture(TextureOptions{
		Label:           "video",
		Width:           4,
		Height:          4,
		Type:            formats.TypeUnsignedByte,
		Format:          formats.FormatRGBA,
		GenerateMipMaps: true,
		SamplingMode:    SamplingTrilinear,
	})
	require.NoError(t, err)
	assert.Equal(t, uint32(1), tex.MipLevels)
	assert.Equal(t, SamplingBilinear, tex.SamplingMode)

	assert.NoError(t, e.UpdateVideoTexture(tex, []byte("not a frame"), false))
	assert.True(t, tex.IsReady)
	assert.Zero(t, dev.Count("copyExternalImageToTexture"))

	frame := encodePNG(t, 4, 4, image.Pt(1, 1), color.NRGBA{R: 255, A: 255})
	require.NoError(t, e.UpdateVideoTexture(tex, frame, false))
	assert.Equal(t, 1, dev.Count("copyExternalImageToTexture"))
	c, ok := halTexture(tex).Pixel(0, 0, 1, 1)
	require.True(t, ok)
	assert.Equal(t, [4]float32{1, 0, 0, 1}, c)

	// Frames larger than the texture are dropped.
	big := encodePNG(t, 8, 8, image.Pt(0, 0), color.NRGBA{G: 255, A: 255})
	assert.NoError(t, e.UpdateVideoTexture(tex, big, false))
	assert.Equal(t, 1, dev.Count("copyExternalImageToTexture"))
	assert.Empty(t, dev.Errors())
}
