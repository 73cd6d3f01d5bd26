package wgpu

import (
	native "github.com/cogentcore/webgpu/wgpu"

	"github.com/spaghettifunk/anima-webgpu/engine/renderer/hal"
)

var textureFormats = [hal.TextureFormatCount]native.TextureFormat{
	hal.TextureFormatUndefined: native.TextureFormatUndefined,

	hal.TextureFormatR8Unorm: native.TextureFormatR8Unorm,
	hal.TextureFormatR8Snorm: native.TextureFormatR8Snorm,
	hal.TextureFormatR8Uint:  native.TextureFormatR8Uint,
	hal.TextureFormatR8Sint:  native.TextureFormatR8Sint,

	hal.TextureFormatR16Uint:  native.TextureFormatR16Uint,
	hal.TextureFormatR16Sint:  native.TextureFormatR16Sint,
	hal.TextureFormatR16Float: native.TextureFormatR16Float,
	hal.TextureFormatRG8Unorm: native.TextureFormatRG8Unorm,
	hal.TextureFormatRG8Snorm: native.TextureFormatRG8Snorm,
	hal.TextureFormatRG8Uint:  native.TextureFormatRG8Uint,
	hal.TextureFormatRG8Sint:  native.TextureFormatRG8Sint,

	hal.TextureFormatR32Uint:         native.TextureFormatR32Uint,
	hal.TextureFormatR32Sint:         native.TextureFormatR32Sint,
	hal.TextureFormatR32Float:        native.TextureFormatR32Float,
	hal.TextureFormatRG16Uint:        native.TextureFormatRG16Uint,
	hal.TextureFormatRG16Sint:        native.TextureFormatRG16Sint,
	hal.TextureFormatRG16Float:       native.TextureFormatRG16Float,
	hal.TextureFormatRGBA8Unorm:      native.TextureFormatRGBA8Unorm,
	hal.TextureFormatRGBA8UnormSrgb:  native.TextureFormatRGBA8UnormSrgb,
	hal.TextureFormatRGBA8Snorm:      native.TextureFormatRGBA8Snorm,
	hal.TextureFormatRGBA8Uint:       native.TextureFormatRGBA8Uint,
	hal.TextureFormatRGBA8Sint:       native.TextureFormatRGBA8Sint,
	hal.TextureFormatBGRA8Unorm:      native.TextureFormatBGRA8Unorm,
	hal.TextureFormatBGRA8UnormSrgb:  native.TextureFormatBGRA8UnormSrgb,
	hal.TextureFormatRGB10A2Unorm:    native.TextureFormatRGB10A2Unorm,
	hal.TextureFormatRG11B10Ufloat:   native.TextureFormatRG11B10Ufloat,
	hal.TextureFormatRGB9E5Ufloat:    native.TextureFormatRGB9E5Ufloat,
	hal.TextureFormatRG32Uint:        native.TextureFormatRG32Uint,
	hal.TextureFormatRG32Sint:        native.TextureFormatRG32Sint,
	hal.TextureFormatRG32Float:       native.TextureFormatRG32Float,
	hal.TextureFormatRGBA16Uint:      native.TextureFormatRGBA16Uint,
	hal.TextureFormatRGBA16Sint:      native.TextureFormatRGBA16Sint,
	hal.TextureFormatRGBA16Float:     native.TextureFormatRGBA16Float,
	hal.TextureFormatRGBA32Uint:      native.TextureFormatRGBA32Uint,
	hal.TextureFormatRGBA32Sint:      native.TextureFormatRGBA32Sint,
	hal.TextureFormatRGBA32Float:     native.TextureFormatRGBA32Float,
	hal.TextureFormatStencil8:        native.TextureFormatStencil8,
	hal.TextureFormatDepth16Unorm:    native.TextureFormatDepth16Unorm,
	hal.TextureFormatDepth24Plus:     native.TextureFormatDepth24Plus,
	hal.TextureFormatDepth32Float:    native.TextureFormatDepth32Float,
	hal.TextureFormatBC1RGBAUnorm:    native.TextureFormatBC1RGBAUnorm,
	hal.TextureFormatBC2RGBAUnorm:    native.TextureFormatBC2RGBAUnorm,
	hal.TextureFormatBC3RGBAUnorm:    native.TextureFormatBC3RGBAUnorm,
	hal.TextureFormatBC4RUnorm:       native.TextureFormatBC4RUnorm,
	hal.TextureFormatBC4RSnorm:       native.TextureFormatBC4RSnorm,
	hal.TextureFormatBC5RGUnorm:      native.TextureFormatBC5RGUnorm,
	hal.TextureFormatBC5RGSnorm:      native.TextureFormatBC5RGSnorm,
	hal.TextureFormatBC6HRGBUfloat:   native.TextureFormatBC6HRGBUfloat,
	hal.TextureFormatBC6HRGBFloat:    native.TextureFormatBC6HRGBFloat,
	hal.TextureFormatBC7RGBAUnorm:    native.TextureFormatBC7RGBAUnorm,
	hal.TextureFormatEACR11Unorm:     native.TextureFormatEACR11Unorm,
	hal.TextureFormatEACR11Snorm:     native.TextureFormatEACR11Snorm,
	hal.TextureFormatEACRG11Unorm:    native.TextureFormatEACRG11Unorm,
	hal.TextureFormatEACRG11Snorm:    native.TextureFormatEACRG11Snorm,
	hal.TextureFormatETC2RGB8Unorm:   native.TextureFormatETC2RGB8Unorm,
	hal.TextureFormatETC2RGB8A1Unorm: native.TextureFormatETC2RGB8A1Unorm,
	hal.TextureFormatETC2RGBA8Unorm:  native.TextureFormatETC2RGBA8Unorm,
	hal.TextureFormatASTC4x4Unorm:    native.TextureFormatASTC4x4Unorm,
	hal.TextureFormatASTC5x4Unorm:    native.TextureFormatASTC5x4Unorm,
	hal.TextureFormatASTC5x5Unorm:    native.TextureFormatASTC5x5Unorm,
	hal.TextureFormatASTC6x5Unorm:    native.TextureFormatASTC6x5Unorm,
	hal.TextureFormatASTC6x6Unorm:    native.TextureFormatASTC6x6Unorm,
	hal.TextureFormatASTC8x5Unorm:    native.TextureFormatASTC8x5Unorm,
	hal.TextureFormatASTC8x6Unorm:    native.TextureFormatASTC8x6Unorm,
	hal.TextureFormatASTC8x8Unorm:    native.TextureFormatASTC8x8Unorm,
	hal.TextureFormatASTC10x5Unorm:   native.TextureFormatASTC10x5Unorm,
	hal.TextureFormatASTC10x6Unorm:   native.TextureFormatASTC10x6Unorm,
	hal.TextureFormatASTC10x8Unorm:   native.TextureFormatASTC10x8Unorm,
	hal.TextureFormatASTC10x10Unorm:  native.TextureFormatASTC10x10Unorm,
	hal.TextureFormatASTC12x10Unorm:  native.TextureFormatASTC12x10Unorm,
	hal.TextureFormatASTC12x12Unorm:  native.TextureFormatASTC12x12Unorm,

	hal.TextureFormatDepth24PlusStencil8:   native.TextureFormatDepth24PlusStencil8,
	hal.TextureFormatDepth32FloatStencil8:  native.TextureFormatDepth32FloatStencil8,
	hal.TextureFormatBC1RGBAUnormSrgb:      native.TextureFormatBC1RGBAUnormSrgb,
	hal.TextureFormatBC2RGBAUnormSrgb:      native.TextureFormatBC2RGBAUnormSrgb,
	hal.TextureFormatBC3RGBAUnormSrgb:      native.TextureFormatBC3RGBAUnormSrgb,
	hal.TextureFormatBC7RGBAUnormSrgb:      native.TextureFormatBC7RGBAUnormSrgb,
	hal.TextureFormatETC2RGB8UnormSrgb:     native.TextureFormatETC2RGB8UnormSrgb,
	hal.TextureFormatETC2RGB8A1UnormSrgb:   native.TextureFormatETC2RGB8A1UnormSrgb,
	hal.TextureFormatETC2RGBA8UnormSrgb:    native.TextureFormatETC2RGBA8UnormSrgb,
	hal.TextureFormatASTC4x4UnormSrgb:      native.TextureFormatASTC4x4UnormSrgb,
	hal.TextureFormatASTC5x4UnormSrgb:      native.TextureFormatASTC5x4UnormSrgb,
	hal.TextureFormatASTC5x5UnormSrgb:      native.TextureFormatASTC5x5UnormSrgb,
	hal.TextureFormatASTC6x5UnormSrgb:      native.TextureFormatASTC6x5UnormSrgb,
	hal.TextureFormatASTC6x6UnormSrgb:      native.TextureFormatASTC6x6UnormSrgb,
	hal.TextureFormatASTC8x5UnormSrgb:      native.TextureFormatASTC8x5UnormSrgb,
	hal.TextureFormatASTC8x6UnormSrgb:      native.TextureFormatASTC8x6UnormSrgb,
	hal.TextureFormatASTC8x8UnormSrgb:      native.TextureFormatASTC8x8UnormSrgb,
	hal.TextureFormatASTC10x5UnormSrgb:     native.TextureFormatASTC10x5UnormSrgb,
	hal.TextureFormatASTC10x6UnormSrgb:     native.TextureFormatASTC10x6UnormSrgb,
	hal.TextureFormatASTC10x8UnormSrgb:     native.TextureFormatASTC10x8UnormSrgb,
	hal.TextureFormatASTC10x10UnormSrgb:    native.TextureFormatASTC10x10UnormSrgb,
	hal.TextureFormatASTC12x10UnormSrgb:    native.TextureFormatASTC12x10UnormSrgb,
	hal.TextureFormatASTC12x12UnormSrgb:    native.TextureFormatASTC12x12UnormSrgb,
}

func textureFormat(f hal.TextureFormat) native.TextureFormat {
	if int(f) >= len(textureFormats) {
		return native.TextureFormatUndefined
	}
	return textureFormats[f]
}

// halTextureFormat maps a native format back, reporting false for formats
// the engine does not know.
func halTextureFormat(f native.TextureFormat) (hal.TextureFormat, bool) {
	for i, n := range textureFormats {
		if n == f && i != int(hal.TextureFormatUndefined) {
			return hal.TextureFormat(i), true
		}
	}
	return hal.TextureFormatUndefined, false
}

func textureUsage(u hal.TextureUsage) native.TextureUsage {
	var out native.TextureUsage
	if u&hal.TextureUsageCopySrc != 0 {
		out |= native.TextureUsageCopySrc
	}
	if u&hal.TextureUsageCopyDst != 0 {
		out |= native.TextureUsageCopyDst
	}
	if u&hal.TextureUsageTextureBinding != 0 {
		out |= native.TextureUsageTextureBinding
	}
	if u&hal.TextureUsageStorageBinding != 0 {
		out |= native.TextureUsageStorageBinding
	}
	if u&hal.TextureUsageRenderAttachment != 0 {
		out |= native.TextureUsageRenderAttachment
	}
	return out
}

func bufferUsage(u hal.BufferUsage) native.BufferUsage {
	var out native.BufferUsage
	pairs := []struct {
		h hal.BufferUsage
		n native.BufferUsage
	}{
		{hal.BufferUsageMapRead, native.BufferUsageMapRead},
		{hal.BufferUsageMapWrite, native.BufferUsageMapWrite},
		{hal.BufferUsageCopySrc, native.BufferUsageCopySrc},
		{hal.BufferUsageCopyDst, native.BufferUsageCopyDst},
		{hal.BufferUsageIndex, native.BufferUsageIndex},
		{hal.BufferUsageVertex, native.BufferUsageVertex},
		{hal.BufferUsageUniform, native.BufferUsageUniform},
		{hal.BufferUsageStorage, native.BufferUsageStorage},
		{hal.BufferUsageIndirect, native.BufferUsageIndirect},
	}
	for _, p := range pairs {
		if u&p.h != 0 {
			out |= p.n
		}
	}
	return out
}

func shaderStage(s hal.ShaderStage) native.ShaderStage {
	var out native.ShaderStage
	if s&hal.ShaderStageVertex != 0 {
		out |= native.ShaderStageVertex
	}
	if s&hal.ShaderStageFragment != 0 {
		out |= native.ShaderStageFragment
	}
	if s&hal.ShaderStageCompute != 0 {
		out |= native.ShaderStageCompute
	}
	return out
}

func colorWriteMask(m hal.ColorWriteMask) native.ColorWriteMask {
	var out native.ColorWriteMask
	if m&hal.ColorWriteMaskRed != 0 {
		out |= native.ColorWriteMaskRed
	}
	if m&hal.ColorWriteMaskGreen != 0 {
		out |= native.ColorWriteMaskGreen
	}
	if m&hal.ColorWriteMaskBlue != 0 {
		out |= native.ColorWriteMaskBlue
	}
	if m&hal.ColorWriteMaskAlpha != 0 {
		out |= native.ColorWriteMaskAlpha
	}
	return out
}

func textureDimension(d hal.TextureDimension) native.TextureDimension {
	switch d {
	case hal.TextureDimension1D:
		return native.TextureDimension1D
	case hal.TextureDimension3D:
		return native.TextureDimension3D
	default:
		return native.TextureDimension2D
	}
}

func textureViewDimension(d hal.TextureViewDimension) native.TextureViewDimension {
	switch d {
	case hal.TextureViewDimension1D:
		return native.TextureViewDimension1D
	case hal.TextureViewDimension2D:
		return native.TextureViewDimension2D
	case hal.TextureViewDimension2DArray:
		return native.TextureViewDimension2DArray
	case hal.TextureViewDimensionCube:
		return native.TextureViewDimensionCube
	case hal.TextureViewDimensionCubeArray:
		return native.TextureViewDimensionCubeArray
	case hal.TextureViewDimension3D:
		return native.TextureViewDimension3D
	default:
		return native.TextureViewDimensionUndefined
	}
}

func textureAspect(a hal.TextureAspect) native.TextureAspect {
	switch a {
	case hal.TextureAspectStencilOnly:
		return native.TextureAspectStencilOnly
	case hal.TextureAspectDepthOnly:
		return native.TextureAspectDepthOnly
	default:
		return native.TextureAspectAll
	}
}

func textureSampleType(t hal.TextureSampleType) native.TextureSampleType {
	switch t {
	case hal.TextureSampleTypeUnfilterableFloat:
		return native.TextureSampleTypeUnfilterableFloat
	case hal.TextureSampleTypeDepth:
		return native.TextureSampleTypeDepth
	case hal.TextureSampleTypeSint:
		return native.TextureSampleTypeSint
	case hal.TextureSampleTypeUint:
		return native.TextureSampleTypeUint
	default:
		return native.TextureSampleTypeFloat
	}
}

func bufferBindingType(t hal.BufferBindingType) native.BufferBindingType {
	switch t {
	case hal.BufferBindingTypeStorage:
		return native.BufferBindingTypeStorage
	case hal.BufferBindingTypeReadOnlyStorage:
		return native.BufferBindingTypeReadOnlyStorage
	default:
		return native.BufferBindingTypeUniform
	}
}

func samplerBindingType(t hal.SamplerBindingType) native.SamplerBindingType {
	switch t {
	case hal.SamplerBindingTypeNonFiltering:
		return native.SamplerBindingTypeNonFiltering
	case hal.SamplerBindingTypeComparison:
		return native.SamplerBindingTypeComparison
	default:
		return native.SamplerBindingTypeFiltering
	}
}

func addressMode(m hal.AddressMode) native.AddressMode {
	switch m {
	case hal.AddressModeRepeat:
		return native.AddressModeRepeat
	case hal.AddressModeMirrorRepeat:
		return native.AddressModeMirrorRepeat
	default:
		return native.AddressModeClampToEdge
	}
}

func filterMode(m hal.FilterMode) native.FilterMode {
	if m == hal.FilterModeLinear {
		return native.FilterModeLinear
	}
	return native.FilterModeNearest
}

func mipmapFilterMode(m hal.FilterMode) native.MipmapFilterMode {
	if m == hal.FilterModeLinear {
		return native.MipmapFilterModeLinear
	}
	return native.MipmapFilterModeNearest
}

func compareFunction(c hal.CompareFunction) native.CompareFunction {
	switch c {
	case hal.CompareFunctionNever:
		return native.CompareFunctionNever
	case hal.CompareFunctionLess:
		return native.CompareFunctionLess
	case hal.CompareFunctionEqual:
		return native.CompareFunctionEqual
	case hal.CompareFunctionLessEqual:
		return native.CompareFunctionLessEqual
	case hal.CompareFunctionGreater:
		return native.CompareFunctionGreater
	case hal.CompareFunctionNotEqual:
		return native.CompareFunctionNotEqual
	case hal.CompareFunctionGreaterEqual:
		return native.CompareFunctionGreaterEqual
	case hal.CompareFunctionAlways:
		return native.CompareFunctionAlways
	default:
		return native.CompareFunctionUndefined
	}
}

func stencilOperation(o hal.StencilOperation) native.StencilOperation {
	switch o {
	case hal.StencilOperationZero:
		return native.StencilOperationZero
	case hal.StencilOperationReplace:
		return native.StencilOperationReplace
	case hal.StencilOperationInvert:
		return native.StencilOperationInvert
	case hal.StencilOperationIncrementClamp:
		return native.StencilOperationIncrementClamp
	case hal.StencilOperationDecrementClamp:
		return native.StencilOperationDecrementClamp
	case hal.StencilOperationIncrementWrap:
		return native.StencilOperationIncrementWrap
	case hal.StencilOperationDecrementWrap:
		return native.StencilOperationDecrementWrap
	default:
		return native.StencilOperationKeep
	}
}

func blendFactor(f hal.BlendFactor) native.BlendFactor {
	switch f {
	case hal.BlendFactorOne:
		return native.BlendFactorOne
	case hal.BlendFactorSrc:
		return native.BlendFactorSrc
	case hal.BlendFactorOneMinusSrc:
		return native.BlendFactorOneMinusSrc
	case hal.BlendFactorSrcAlpha:
		return native.BlendFactorSrcAlpha
	case hal.BlendFactorOneMinusSrcAlpha:
		return native.BlendFactorOneMinusSrcAlpha
	case hal.BlendFactorDst:
		return native.BlendFactorDst
	case hal.BlendFactorOneMinusDst:
		return native.BlendFactorOneMinusDst
	case hal.BlendFactorDstAlpha:
		return native.BlendFactorDstAlpha
	case hal.BlendFactorOneMinusDstAlpha:
		return native.BlendFactorOneMinusDstAlpha
	case hal.BlendFactorConstant:
		return native.BlendFactorConstant
	case hal.BlendFactorOneMinusConstant:
		return native.BlendFactorOneMinusConstant
	default:
		return native.BlendFactorZero
	}
}

func blendOperation(o hal.BlendOperation) native.BlendOperation {
	switch o {
	case hal.BlendOperationSubtract:
		return native.BlendOperationSubtract
	case hal.BlendOperationReverseSubtract:
		return native.BlendOperationReverseSubtract
	case hal.BlendOperationMin:
		return native.BlendOperationMin
	case hal.BlendOperationMax:
		return native.BlendOperationMax
	default:
		return native.BlendOperationAdd
	}
}

func primitiveTopology(t hal.PrimitiveTopology) native.PrimitiveTopology {
	switch t {
	case hal.PrimitiveTopologyTriangleStrip:
		return native.PrimitiveTopologyTriangleStrip
	case hal.PrimitiveTopologyLineList:
		return native.PrimitiveTopologyLineList
	case hal.PrimitiveTopologyLineStrip:
		return native.PrimitiveTopologyLineStrip
	case hal.PrimitiveTopologyPointList:
		return native.PrimitiveTopologyPointList
	default:
		return native.PrimitiveTopologyTriangleList
	}
}

func frontFace(f hal.FrontFace) native.FrontFace {
	if f == hal.FrontFaceCW {
		return native.FrontFaceCW
	}
	return native.FrontFaceCCW
}

func cullMode(c hal.CullMode) native.CullMode {
	switch c {
	case hal.CullModeFront:
		return native.CullModeFront
	case hal.CullModeBack:
		return native.CullModeBack
	default:
		return native.CullModeNone
	}
}

func indexFormat(f hal.IndexFormat) native.IndexFormat {
	switch f {
	case hal.IndexFormatUint16:
		return native.IndexFormatUint16
	case hal.IndexFormatUint32:
		return native.IndexFormatUint32
	default:
		return native.IndexFormatUndefined
	}
}

func vertexFormat(f hal.VertexFormat) native.VertexFormat {
	switch f {
	case hal.VertexFormatFloat32:
		return native.VertexFormatFloat32
	case hal.VertexFormatFloat32x2:
		return native.VertexFormatFloat32x2
	case hal.VertexFormatFloat32x3:
		return native.VertexFormatFloat32x3
	case hal.VertexFormatFloat32x4:
		return native.VertexFormatFloat32x4
	case hal.VertexFormatUint32:
		return native.VertexFormatUint32
	case hal.VertexFormatUint8x4:
		return native.VertexFormatUint8x4
	case hal.VertexFormatUnorm8x4:
		return native.VertexFormatUnorm8x4
	default:
		return native.VertexFormatUndefined
	}
}

func vertexStepMode(m hal.VertexStepMode) native.VertexStepMode {
	if m == hal.VertexStepModeInstance {
		return native.VertexStepModeInstance
	}
	return native.VertexStepModeVertex
}

func loadOp(o hal.LoadOp) native.LoadOp {
	if o == hal.LoadOpClear {
		return native.LoadOpClear
	}
	return native.LoadOpLoad
}

func storeOp(o hal.StoreOp) native.StoreOp {
	if o == hal.StoreOpDiscard {
		return native.StoreOpDiscard
	}
	return native.StoreOpStore
}

func powerPreference(p hal.PowerPreference) native.PowerPreference {
	switch p {
	case hal.PowerPreferenceLowPower:
		return native.PowerPreferenceLowPower
	case hal.PowerPreferenceHighPerformance:
		return native.PowerPreferenceHighPerformance
	default:
		return native.PowerPreferenceUndefined
	}
}

func color(c hal.Color) native.Color {
	return native.Color{R: c.R, G: c.G, B: c.B, A: c.A}
}

func extent(e *hal.Extent3D) *native.Extent3D {
	if e == nil {
		return nil
	}
	return &native.Extent3D{Width: e.Width, Height: e.Height, DepthOrArrayLayers: e.DepthOrArrayLayers}
}

func dataLayout(l hal.TextureDataLayout) native.TextureDataLayout {
	return native.TextureDataLayout{Offset: l.Offset, BytesPerRow: l.BytesPerRow, RowsPerImage: l.RowsPerImage}
}

// hasStencil reports whether load and store ops of the stencil aspect apply.
func hasStencil(f hal.TextureFormat) bool {
	switch f {
	case hal.TextureFormatStencil8, hal.TextureFormatDepth24PlusStencil8, hal.TextureFormatDepth32FloatStencil8:
		return true
	}
	return false
}

func hasDepth(f hal.TextureFormat) bool {
	switch f {
	case hal.TextureFormatDepth16Unorm, hal.TextureFormatDepth24Plus, hal.TextureFormatDepth24PlusStencil8,
		hal.TextureFormatDepth32Float, hal.TextureFormatDepth32FloatStencil8:
		return true
	}
	return false
}

var featureNames = []struct {
	name native.FeatureName
	set  func(*hal.Features)
	has  func(hal.Features) bool
}{
	{native.FeatureNameFloat32Filterable, func(f *hal.Features) { f.Float32Filterable = true }, func(f hal.Features) bool { return f.Float32Filterable }},
	{native.FeatureNameTextureCompressionBC, func(f *hal.Features) { f.TextureCompressionBC = true }, func(f hal.Features) bool { return f.TextureCompressionBC }},
	{native.FeatureNameTextureCompressionETC2, func(f *hal.Features) { f.TextureCompressionETC2 = true }, func(f hal.Features) bool { return f.TextureCompressionETC2 }},
	{native.FeatureNameTextureCompressionASTC, func(f *hal.Features) { f.TextureCompressionASTC = true }, func(f hal.Features) bool { return f.TextureCompressionASTC }},
	{native.FeatureNameDepth32FloatStencil8, func(f *hal.Features) { f.Depth32FloatStencil8 = true }, func(f hal.Features) bool { return f.Depth32FloatStencil8 }},
}

func halFeatures(has func(native.FeatureName) bool) hal.Features {
	var out hal.Features
	for _, f := range featureNames {
		if has(f.name) {
			f.set(&out)
		}
	}
	return out
}

func requiredFeatures(f hal.Features) []native.FeatureName {
	var out []native.FeatureName
	for _, n := range featureNames {
		if n.has(f) {
			out = append(out, n.name)
		}
	}
	return out
}

func halLimits(l native.Limits) hal.Limits {
	return hal.Limits{
		MaxTextureDimension2D:      l.MaxTextureDimension2D,
		MaxTextureDimension3D:      l.MaxTextureDimension3D,
		MaxTextureArrayLayers:      l.MaxTextureArrayLayers,
		MaxBindGroups:              l.MaxBindGroups,
		MaxColorAttachments:        l.MaxColorAttachments,
		MaxComputeWorkgroupsPerDim: l.MaxComputeWorkgroupsPerDimension,
	}
}
