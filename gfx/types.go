// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package gfx

// Format is a texel format.
type Format uint32

const (
	FormatUndefined          Format = 0
	FormatR8G8B8A8Unorm      Format = 37
	FormatR8G8B8A8Srgb       Format = 43
	FormatB8G8R8A8Unorm      Format = 44
	FormatB8G8R8A8Srgb       Format = 50
	FormatR32G32Sfloat       Format = 103
	FormatR32G32B32Sfloat    Format = 106
	FormatR32G32B32A32Sfloat Format = 109
	FormatD32Sfloat          Format = 126
	FormatD24UnormS8Uint     Format = 129
)

// ColorSpace of a presentable surface.
type ColorSpace uint32

const (
	ColorSpaceSrgbNonlinear ColorSpace = 0
)

// ImageLayout describes how the hardware may access an image.
type ImageLayout uint32

const (
	ImageLayoutUndefined                     ImageLayout = 0
	ImageLayoutGeneral                       ImageLayout = 1
	ImageLayoutColorAttachmentOptimal        ImageLayout = 2
	ImageLayoutDepthStencilAttachmentOptimal ImageLayout = 3
	ImageLayoutDepthStencilReadOnlyOptimal   ImageLayout = 4
	ImageLayoutShaderReadOnlyOptimal         ImageLayout = 5
	ImageLayoutTransferSrcOptimal            ImageLayout = 6
	ImageLayoutTransferDstOptimal            ImageLayout = 7
	ImageLayoutPresentSrc                    ImageLayout = 1000001002
)

func (l ImageLayout) String() string {
	switch l {
	case ImageLayoutUndefined:
		return "undefined"
	case ImageLayoutGeneral:
		return "general"
	case ImageLayoutColorAttachmentOptimal:
		return "color-attachment-optimal"
	case ImageLayoutDepthStencilAttachmentOptimal:
		return "depth-stencil-attachment-optimal"
	case ImageLayoutDepthStencilReadOnlyOptimal:
		return "depth-stencil-read-only-optimal"
	case ImageLayoutShaderReadOnlyOptimal:
		return "shader-read-only-optimal"
	case ImageLayoutTransferSrcOptimal:
		return "transfer-src-optimal"
	case ImageLayoutTransferDstOptimal:
		return "transfer-dst-optimal"
	case ImageLayoutPresentSrc:
		return "present-src"
	}
	return "unknown"
}

// PipelineStage is a set of pipeline stage bits.
type PipelineStage uint32

const (
	PipelineStageTopOfPipe             PipelineStage = 0x00000001
	PipelineStageVertexInput           PipelineStage = 0x00000004
	PipelineStageVertexShader          PipelineStage = 0x00000008
	PipelineStageFragmentShader        PipelineStage = 0x00000080
	PipelineStageEarlyFragmentTests    PipelineStage = 0x00000100
	PipelineStageLateFragmentTests     PipelineStage = 0x00000200
	PipelineStageColorAttachmentOutput PipelineStage = 0x00000400
	PipelineStageTransfer              PipelineStage = 0x00001000
	PipelineStageBottomOfPipe          PipelineStage = 0x00002000
	PipelineStageAllCommands           PipelineStage = 0x00010000
)

// Access is a set of memory access bits.
type Access uint32

const (
	AccessNone                        Access = 0
	AccessIndexRead                   Access = 0x00000002
	AccessVertexAttributeRead         Access = 0x00000004
	AccessUniformRead                 Access = 0x00000008
	AccessShaderRead                  Access = 0x00000020
	AccessShaderWrite                 Access = 0x00000040
	AccessColorAttachmentRead         Access = 0x00000080
	AccessColorAttachmentWrite        Access = 0x00000100
	AccessDepthStencilAttachmentRead  Access = 0x00000200
	AccessDepthStencilAttachmentWrite Access = 0x00000400
	AccessTransferRead                Access = 0x00000800
	AccessTransferWrite               Access = 0x00001000
	AccessMemoryRead                  Access = 0x00008000
	AccessMemoryWrite                 Access = 0x00010000
)

// DependencyFlags modify how a barrier orders work.
type DependencyFlags uint32

const (
	DependencyByRegion DependencyFlags = 0x00000001
)

// ImageAspect selects color, depth or stencil planes of an image.
type ImageAspect uint32

const (
	ImageAspectColor   ImageAspect = 0x00000001
	ImageAspectDepth   ImageAspect = 0x00000002
	ImageAspectStencil ImageAspect = 0x00000004
)

// BufferUsage is a set of buffer usage bits.
type BufferUsage uint32

const (
	BufferUsageTransferSrc BufferUsage = 0x00000001
	BufferUsageTransferDst BufferUsage = 0x00000002
	BufferUsageUniform     BufferUsage = 0x00000010
	BufferUsageStorage     BufferUsage = 0x00000020
	BufferUsageIndex       BufferUsage = 0x00000040
	BufferUsageVertex      BufferUsage = 0x00000080
)

// ImageUsage is a set of image usage bits.
type ImageUsage uint32

const (
	ImageUsageTransferSrc            ImageUsage = 0x00000001
	ImageUsageTransferDst            ImageUsage = 0x00000002
	ImageUsageSampled                ImageUsage = 0x00000004
	ImageUsageStorage                ImageUsage = 0x00000008
	ImageUsageColorAttachment        ImageUsage = 0x00000010
	ImageUsageDepthStencilAttachment ImageUsage = 0x00000020
)

// MemoryUsage tells the allocator which memory tier a resource lives in.
type MemoryUsage int

const (
	// MemoryGPUOnly is device-local memory, not reachable from the CPU.
	MemoryGPUOnly MemoryUsage = iota

	// MemoryCPUToGPU is host-visible, host-coherent memory.
	MemoryCPUToGPU
)

// DescriptorType of a single descriptor binding.
type DescriptorType uint32

const (
	DescriptorTypeSampler              DescriptorType = 0
	DescriptorTypeCombinedImageSampler DescriptorType = 1
	DescriptorTypeSampledImage         DescriptorType = 2
	DescriptorTypeStorageImage         DescriptorType = 3
	DescriptorTypeUniformBuffer        DescriptorType = 6
	DescriptorTypeStorageBuffer        DescriptorType = 7
)

// ShaderStage is a set of shader stage bits.
type ShaderStage uint32

const (
	ShaderStageVertex      ShaderStage = 0x00000001
	ShaderStageFragment    ShaderStage = 0x00000010
	ShaderStageAllGraphics ShaderStage = 0x0000001F
)

// QueueFlags describe queue family capabilities.
type QueueFlags uint32

const (
	QueueGraphics QueueFlags = 0x00000001
	QueueCompute  QueueFlags = 0x00000002
	QueueTransfer QueueFlags = 0x00000004
)

// DeviceType classifies a physical device.
type DeviceType uint32

const (
	DeviceTypeOther         DeviceType = 0
	DeviceTypeIntegratedGpu DeviceType = 1
	DeviceTypeDiscreteGpu   DeviceType = 2
	DeviceTypeVirtualGpu    DeviceType = 3
	DeviceTypeCpu           DeviceType = 4
)

func (t DeviceType) String() string {
	switch t {
	case DeviceTypeIntegratedGpu:
		return "integrated"
	case DeviceTypeDiscreteGpu:
		return "discrete"
	case DeviceTypeVirtualGpu:
		return "virtual"
	case DeviceTypeCpu:
		return "cpu"
	}
	return "other"
}

// LoadOp tells what happens to attachment contents when rendering begins.
type LoadOp uint32

const (
	LoadOpLoad     LoadOp = 0
	LoadOpClear    LoadOp = 1
	LoadOpDontCare LoadOp = 2
)

// StoreOp tells what happens to attachment contents when rendering ends.
type StoreOp uint32

const (
	StoreOpStore    StoreOp = 0
	StoreOpDontCare StoreOp = 1
)

// IndexType of an index buffer.
type IndexType uint32

const (
	IndexTypeUint16 IndexType = 0
	IndexTypeUint32 IndexType = 1
)

// PresentMode of a swapchain.
type PresentMode uint32

const (
	PresentModeImmediate   PresentMode = 0
	PresentModeMailbox     PresentMode = 1
	PresentModeFifo        PresentMode = 2
	PresentModeFifoRelaxed PresentMode = 3
)

// Filter used by samplers.
type Filter uint32

const (
	FilterNearest Filter = 0
	FilterLinear  Filter = 1
)

// AddressMode used by samplers outside the [0,1] range.
type AddressMode uint32

const (
	AddressModeRepeat      AddressMode = 0
	AddressModeClampToEdge AddressMode = 2
)

// CullMode of the rasterizer.
type CullMode uint32

const (
	CullModeNone  CullMode = 0
	CullModeFront CullMode = 1
	CullModeBack  CullMode = 2
)

// FrontFace winding order.
type FrontFace uint32

const (
	FrontFaceCounterClockwise FrontFace = 0
	FrontFaceClockwise        FrontFace = 1
)

// CompareOp for depth testing.
type CompareOp uint32

const (
	CompareOpNever       CompareOp = 0
	CompareOpLess        CompareOp = 1
	CompareOpLessOrEqual CompareOp = 3
	CompareOpAlways      CompareOp = 7
)

type Extent2D struct {
	Width, Height uint32
}

type Extent3D struct {
	Width, Height, Depth uint32
}

type Offset2D struct {
	X, Y int32
}

type Rect2D struct {
	Offset Offset2D
	Extent Extent2D
}

type Viewport struct {
	X, Y, Width, Height, MinDepth, MaxDepth float32
}

// QueueFamily describes one queue family of a physical device.
type QueueFamily struct {
	Flags QueueFlags
	Count uint32
}

// PhysicalDeviceInfo describes a single physical device.
type PhysicalDeviceInfo struct {
	Handle        PhysicalDevice `json:"-"`
	Name          string         `json:"name"`
	Type          DeviceType     `json:"type"`
	VendorID      uint32         `json:"vendorId"`
	DeviceID      uint32         `json:"deviceId"`
	APIVersion    uint32         `json:"apiVersion"`
	DriverVersion uint32         `json:"driverVersion"`
	QueueFamilies []QueueFamily  `json:"queueFamilies"`
	Extensions    []string       `json:"extensions"`
}

// ImageInfo describes a 2D image to create.
type ImageInfo struct {
	Extent Extent3D
	Format Format
	Usage  ImageUsage
}

// ImageBarrier is a single image memory barrier covering all mips and layers.
type ImageBarrier struct {
	Image     Image
	OldLayout ImageLayout
	NewLayout ImageLayout
	SrcAccess Access
	DstAccess Access
	Aspect    ImageAspect
}

// SamplerInfo describes a texture sampler.
type SamplerInfo struct {
	MagFilter   Filter
	MinFilter   Filter
	AddressMode AddressMode
}

// DescriptorBinding is a single entry of a descriptor set layout.
type DescriptorBinding struct {
	Binding uint32
	Type    DescriptorType
	Count   uint32
	Stages  ShaderStage
}

// PoolSize is the number of descriptors of one type a pool can hand out.
type PoolSize struct {
	Type  DescriptorType
	Count uint32
}

// BufferDescriptor points a descriptor at a buffer range.
type BufferDescriptor struct {
	Buffer Buffer
	Offset uint64
	Range  uint64
}

// ImageDescriptor points a descriptor at a sampled image.
type ImageDescriptor struct {
	Sampler Sampler
	View    ImageView
	Layout  ImageLayout
}

// DescriptorWrite updates one binding of a descriptor set.
// Exactly one of Buffer and Image is set.
type DescriptorWrite struct {
	Set     DescriptorSet
	Binding uint32
	Type    DescriptorType
	Buffer  *BufferDescriptor
	Image   *ImageDescriptor
}

// ClearValue for an attachment; Color is used for color attachments,
// Depth and Stencil for depth attachments.
type ClearValue struct {
	Color   [4]float32
	Depth   float32
	Stencil uint32
}

// RenderingAttachment is an attachment declared inline by CmdBeginRendering.
type RenderingAttachment struct {
	View    ImageView
	Layout  ImageLayout
	LoadOp  LoadOp
	StoreOp StoreOp
	Clear   ClearValue
}

// RenderingInfo describes a dynamic rendering pass.
type RenderingInfo struct {
	Area  Rect2D
	Color []RenderingAttachment
	Depth *RenderingAttachment
}

// SubmitInfo describes a single command buffer submission. A null
// CommandBuffer submits only the semaphore operations.
type SubmitInfo struct {
	CommandBuffer CommandBuffer
	Wait          []Semaphore
	WaitStages    []PipelineStage
	Signal        []Semaphore
}

// PresentInfo describes a single image presentation.
type PresentInfo struct {
	Wait       []Semaphore
	Swapchain  Swapchain
	ImageIndex uint32
}

// SurfaceFormat is a format and color space pair supported by a surface.
type SurfaceFormat struct {
	Format     Format
	ColorSpace ColorSpace
}

// SwapchainInfo describes a swapchain to create.
type SwapchainInfo struct {
	Surface       Surface
	MinImageCount uint32
	Format        Format
	ColorSpace    ColorSpace
	Extent        Extent2D
	Usage         ImageUsage
	PresentMode   PresentMode
	Old           Swapchain
}

// VertexBinding describes one vertex buffer binding.
type VertexBinding struct {
	Binding uint32
	Stride  uint32
}

// VertexAttribute describes one vertex shader input.
type VertexAttribute struct {
	Location uint32
	Binding  uint32
	Format   Format
	Offset   uint32
}

// ShaderStageInfo names the entry point of a shader module for one stage.
type ShaderStageInfo struct {
	Stage  ShaderStage
	Module ShaderModule
	Entry  string
}

// GraphicsPipelineInfo describes a graphics pipeline rendering into
// attachments of the given formats.
type GraphicsPipelineInfo struct {
	Layout       PipelineLayout
	Stages       []ShaderStageInfo
	Bindings     []VertexBinding
	Attributes   []VertexAttribute
	ColorFormat  Format
	DepthFormat  Format
	CullMode     CullMode
	FrontFace    FrontFace
	DepthCompare CompareOp
}
