package haltest

import (
	"context"
	"encoding/binary"
	stdmath "math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/anima-webgpu/engine/renderer/hal"
)

func newTestDevice(t *testing.T) *Device {
	t.Helper()
	inst := NewInstance()
	adapter, err := inst.RequestAdapter(nil)
	require.NoError(t, err)
	dev, err := adapter.RequestDevice(&hal.DeviceDescriptor{Label: "test"})
	require.NoError(t, err)
	return dev.(*Device)
}

func floats(vals ...float32) []byte {
	out := make([]byte, len(vals)*4)
	for i, v := range vals {
		binary.LittleEndian.PutUint32(out[i*4:], stdmath.Float32bits(v))
	}
	return out
}

func TestSecondPassRejected(t *testing.T) {
	d := newTestDevice(t)
	tex, err := d.CreateTexture(&hal.TextureDescriptor{Size: hal.Extent3D{Width: 4, Height: 4}, Format: hal.TextureFormatRGBA8Unorm})
	require.NoError(t, err)
	view, err := tex.CreateView(nil)
	require.NoError(t, err)

	enc, err := d.CreateCommandEncoder("enc")
	require.NoError(t, err)
	_, err = enc.BeginRenderPass(&hal.RenderPassDescriptor{ColorAttachments: []hal.RenderPassColorAttachment{{View: view}}})
	require.NoError(t, err)

	_, err = enc.BeginComputePass("compute")
	assert.ErrorIs(t, err, hal.ErrPassAlreadyOpen)
	_, err = enc.Finish()
	assert.ErrorIs(t, err, hal.ErrPassAlreadyOpen)
	assert.Len(t, d.Errors(), 1)
}

func TestClearAndTriangle(t *testing.T) {
	d := newTestDevice(t)
	d.RegisterFragment("red", func(in *FragmentInput) ([4]float32, bool) {
		return [4]float32{1, 0, 0, 1}, true
	})
	tex, _ := d.CreateTexture(&hal.TextureDescriptor{Label: "rt", Size: hal.Extent3D{Width: 8, Height: 8}, Format: hal.TextureFormatRGBA8Unorm})
	view, _ := tex.CreateView(nil)
	vb, _ := d.CreateBuffer(&hal.BufferDescriptor{Size: 24, Usage: hal.BufferUsageVertex | hal.BufferUsageCopyDst})
	require.NoError(t, d.Queue().WriteBuffer(vb, 0, floats(-1, -1, 1, -1, -1, 1)))

	module, _ := d.CreateShaderModule(&hal.ShaderModuleDescriptor{Label: "red"})
	pipeline, _ := d.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label: "tri",
		Vertex: hal.VertexState{Module: module, Buffers: []hal.VertexBufferLayout{{
			ArrayStride: 8,
			Attributes:  []hal.VertexAttribute{{Format: hal.VertexFormatFloat32x2}},
		}}},
		Fragment: &hal.FragmentState{Module: module, Targets: []hal.ColorTargetState{{Format: hal.TextureFormatRGBA8Unorm, WriteMask: hal.ColorWriteMaskAll}}},
	})

	enc, _ := d.CreateCommandEncoder("enc")
	pass, err := enc.BeginRenderPass(&hal.RenderPassDescriptor{ColorAttachments: []hal.RenderPassColorAttachment{{
		View: view, LoadOp: hal.LoadOpClear, ClearValue: hal.Color{R: 0, G: 0, B: 1, A: 1},
	}}})
	require.NoError(t, err)
	pass.SetPipeline(pipeline)
	pass.SetVertexBuffer(0, vb, 0, 24)
	pass.Draw(3, 1, 0, 0)
	require.NoError(t, pass.End())
	cb, err := enc.Finish()
	require.NoError(t, err)
	d.Queue().Submit(cb)

	ft := tex.(*Texture)
	// Lower left corner is inside the triangle, upper right is not.
	px, ok := ft.Pixel(0, 0, 0, 7)
	require.True(t, ok)
	assert.Equal(t, [4]float32{1, 0, 0, 1}, px)
	px, _ = ft.Pixel(0, 0, 7, 0)
	assert.Equal(t, [4]float32{0, 0, 1, 1}, px)
	assert.Empty(t, d.Errors())
	assert.Equal(t, 1, d.Count("draw"))
}

func TestBundleReplayAndDestroyedTexture(t *testing.T) {
	d := newTestDevice(t)
	tex, _ := d.CreateTexture(&hal.TextureDescriptor{Label: "sampled", Size: hal.Extent3D{Width: 2, Height: 2}, Format: hal.TextureFormatRGBA8Unorm})
	target, _ := d.CreateTexture(&hal.TextureDescriptor{Label: "target", Size: hal.Extent3D{Width: 2, Height: 2}, Format: hal.TextureFormatRGBA8Unorm})
	sampledView, _ := tex.CreateView(nil)
	targetView, _ := target.CreateView(nil)

	layout, _ := d.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{Entries: []hal.BindGroupLayoutEntry{{Binding: 0, Texture: &hal.TextureBindingLayout{}}}})
	group, err := d.CreateBindGroup(&hal.BindGroupDescriptor{Layout: layout, Entries: []hal.BindGroupEntry{{Binding: 0, TextureView: sampledView}}})
	require.NoError(t, err)
	module, _ := d.CreateShaderModule(&hal.ShaderModuleDescriptor{Label: "copy"})
	d.RegisterFragment("copy", func(in *FragmentInput) ([4]float32, bool) {
		return in.Sample(0, 0, in.U, in.V), true
	})
	pipeline, _ := d.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Vertex:   hal.VertexState{Module: module},
		Fragment: &hal.FragmentState{Module: module, Targets: []hal.ColorTargetState{{WriteMask: hal.ColorWriteMaskAll}}},
	})

	be, _ := d.CreateRenderBundleEncoder(&hal.RenderBundleEncoderDescriptor{ColorFormats: []hal.TextureFormat{hal.TextureFormatRGBA8Unorm}})
	be.SetPipeline(pipeline)
	be.SetBindGroup(0, group, nil)
	be.Draw(3, 1, 0, 0)
	bundle, err := be.Finish("bundle")
	require.NoError(t, err)

	enc, _ := d.CreateCommandEncoder("enc")
	pass, _ := enc.BeginRenderPass(&hal.RenderPassDescriptor{ColorAttachments: []hal.RenderPassColorAttachment{{View: targetView}}})
	pass.ExecuteBundles(bundle)
	require.NoError(t, pass.End())
	cb, _ := enc.Finish()

	// Destroying before submit is a use after free.
	tex.Destroy()
	d.Queue().Submit(cb)
	assert.Len(t, d.Errors(), 1)
	assert.Equal(t, 1, d.Count("executeBundle"))
}

func TestReadbackThroughBuffer(t *testing.T) {
	d := newTestDevice(t)
	tex, _ := d.CreateTexture(&hal.TextureDescriptor{Size: hal.Extent3D{Width: 3, Height: 2}, Format: hal.TextureFormatRGBA8Unorm})
	data := make([]byte, 3*2*4)
	for i := range data {
		data[i] = byte(i)
	}
	require.NoError(t, d.Queue().WriteTexture(&hal.ImageCopyTexture{Texture: tex}, data,
		&hal.TextureDataLayout{BytesPerRow: 12}, &hal.Extent3D{Width: 3, Height: 2, DepthOrArrayLayers: 1}))

	buf, _ := d.CreateBuffer(&hal.BufferDescriptor{Size: 512, Usage: hal.BufferUsageMapRead | hal.BufferUsageCopyDst})
	enc, _ := d.CreateCommandEncoder("readback")
	enc.CopyTextureToBuffer(&hal.ImageCopyTexture{Texture: tex},
		&hal.ImageCopyBuffer{Buffer: buf, Layout: hal.TextureDataLayout{BytesPerRow: 256}},
		&hal.Extent3D{Width: 3, Height: 2, DepthOrArrayLayers: 1})
	cb, _ := enc.Finish()
	d.Queue().Submit(cb)

	require.NoError(t, buf.MapRead(context.Background(), 0, 512))
	out := buf.MappedRange(0, 512)
	assert.Equal(t, data[:12], out[:12])
	assert.Equal(t, data[12:], out[256:268])
	assert.Empty(t, d.Errors())
}
