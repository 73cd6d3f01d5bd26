package shaders

import "github.com/spaghettifunk/anima-webgpu/engine/renderer/hal"

// Names of the built-in programs. The renderer labels shader modules with
// the program name.
const (
	ClearProgram  = "anima.clear"
	MipmapProgram = "anima.mipmap"
	InvertProgram = "anima.invert"
)

// ClearUniformSize is the byte size of the clear program uniform: color
// followed by depth, padded to 32 bytes.
const ClearUniformSize = 32

// InvertUniformSize holds the invertY and premultiply flags.
const InvertUniformSize = 16

const fullscreenVertex = `
struct VertexOutput {
    @builtin(position) position: vec4<f32>,
    @location(0) uv: vec2<f32>,
};

fn fullscreen(index: u32) -> VertexOutput {
    var out: VertexOutput;
    let uv = vec2<f32>(f32((index << 1u) & 2u), f32(index & 2u));
    out.position = vec4<f32>(uv * vec2<f32>(2.0, -2.0) + vec2<f32>(-1.0, 1.0), 0.0, 1.0);
    out.uv = uv;
    return out;
}
`

const clearSource = `
struct ClearUniforms {
    color: vec4<f32>,
    depth: f32,
};

@group(0) @binding(0) var<uniform> clearUniforms: ClearUniforms;

@vertex
fn vs_main(@builtin(vertex_index) index: u32) -> @builtin(position) vec4<f32> {
    let uv = vec2<f32>(f32((index << 1u) & 2u), f32(index & 2u));
    return vec4<f32>(uv * vec2<f32>(2.0, -2.0) + vec2<f32>(-1.0, 1.0), clearUniforms.depth, 1.0);
}

@fragment
fn fs_main() -> @location(0) vec4<f32> {
    return clearUniforms.color;
}
`

const mipmapSource = fullscreenVertex + `
@group(0) @binding(0) var srcTexture: texture_2d<f32>;
@group(0) @binding(1) var srcSampler: sampler;

@vertex
fn vs_main(@builtin(vertex_index) index: u32) -> VertexOutput {
    return fullscreen(index);
}

@fragment
fn fs_main(in: VertexOutput) -> @location(0) vec4<f32> {
    return textureSample(srcTexture, srcSampler, in.uv);
}
`

const invertSource = fullscreenVertex + `
struct InvertUniforms {
    invertY: u32,
    premultiply: u32,
};

@group(0) @binding(0) var srcTexture: texture_2d<f32>;
@group(0) @binding(1) var srcSampler: sampler;
@group(0) @binding(2) var<uniform> flags: InvertUniforms;

@vertex
fn vs_main(@builtin(vertex_index) index: u32) -> VertexOutput {
    return fullscreen(index);
}

@fragment
fn fs_main(in: VertexOutput) -> @location(0) vec4<f32> {
    var uv = in.uv;
    if (flags.invertY != 0u) {
        uv.y = 1.0 - uv.y;
    }
    var color = textureSample(srcTexture, srcSampler, uv);
    if (flags.premultiply != 0u) {
        color = vec4<f32>(color.rgb * color.a, color.a);
    }
    return color;
}
`

var sampledPair = []Binding{
	{Group: 0, Binding: 0, Name: "srcTexture", Kind: BindingTexture, Visibility: hal.ShaderStageFragment},
	{Group: 0, Binding: 1, Name: "srcSampler", Kind: BindingSampler, Visibility: hal.ShaderStageFragment, Texture: "srcTexture"},
}

// Builtin returns the request of a built-in program, or false.
func Builtin(name string) (Request, bool) {
	switch name {
	case ClearProgram:
		return Request{
			Name:          ClearProgram,
			Source:        clearSource,
			VertexEntry:   "vs_main",
			FragmentEntry: "fs_main",
			Bindings: []Binding{
				{Group: 0, Binding: 0, Name: "clearUniforms", Kind: BindingUniform, Visibility: hal.ShaderStageVertex | hal.ShaderStageFragment},
			},
		}, true
	case MipmapProgram:
		return Request{
			Name:          MipmapProgram,
			Source:        mipmapSource,
			VertexEntry:   "vs_main",
			FragmentEntry: "fs_main",
			Bindings:      sampledPair,
		}, true
	case InvertProgram:
		return Request{
			Name:          InvertProgram,
			Source:        invertSource,
			VertexEntry:   "vs_main",
			FragmentEntry: "fs_main",
			Bindings: append(append([]Binding(nil), sampledPair...),
				Binding{Group: 0, Binding: 2, Name: "flags", Kind: BindingUniform, Visibility: hal.ShaderStageFragment}),
		}, true
	}
	return Request{}, false
}
