// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"github.com/devblok/vulkan3d/gfx"
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

type attachmentKey struct {
	format vk.Format
	layout vk.ImageLayout
	load   vk.AttachmentLoadOp
	store  vk.AttachmentStoreOp
}

type renderPassKey struct {
	color attachmentKey
	depth attachmentKey
}

type framebufferKey struct {
	pass   vk.RenderPass
	color  gfx.ImageView
	depth  gfx.ImageView
	extent gfx.Extent2D
}

func attachmentDescription(a attachmentKey) vk.AttachmentDescription {
	initial := a.layout
	if a.load != vk.AttachmentLoadOpLoad {
		initial = vk.ImageLayoutUndefined
	}
	return vk.AttachmentDescription{
		Format:         a.format,
		Samples:        vk.SampleCount1Bit,
		LoadOp:         a.load,
		StoreOp:        a.store,
		StencilLoadOp:  vk.AttachmentLoadOpDontCare,
		StencilStoreOp: vk.AttachmentStoreOpDontCare,
		InitialLayout:  initial,
		FinalLayout:    a.layout,
	}
}

// renderPass returns the cached render pass for the attachment set,
// creating it on first use.
func (d *Driver) renderPass(key renderPassKey) (vk.RenderPass, error) {
	if rp, ok := d.renderPasses[key]; ok {
		return rp, nil
	}

	var (
		attachments []vk.AttachmentDescription
		colorRefs   []vk.AttachmentReference
		depthRef    *vk.AttachmentReference
	)
	if key.color.format != vk.FormatUndefined {
		colorRefs = append(colorRefs, vk.AttachmentReference{
			Attachment: uint32(len(attachments)),
			Layout:     vk.ImageLayoutColorAttachmentOptimal,
		})
		attachments = append(attachments, attachmentDescription(key.color))
	}
	if key.depth.format != vk.FormatUndefined {
		depthRef = &vk.AttachmentReference{
			Attachment: uint32(len(attachments)),
			Layout:     vk.ImageLayoutDepthStencilAttachmentOptimal,
		}
		attachments = append(attachments, attachmentDescription(key.depth))
	}

	subpassDependency := vk.SubpassDependency{
		SrcSubpass:    vk.SubpassExternal,
		DstSubpass:    0,
		SrcStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit | vk.PipelineStageEarlyFragmentTestsBit),
		SrcAccessMask: 0,
		DstStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit | vk.PipelineStageEarlyFragmentTestsBit),
		DstAccessMask: vk.AccessFlags(vk.AccessColorAttachmentWriteBit | vk.AccessDepthStencilAttachmentWriteBit),
	}

	subpass := vk.SubpassDescription{
		PipelineBindPoint:       vk.PipelineBindPointGraphics,
		ColorAttachmentCount:    uint32(len(colorRefs)),
		PColorAttachments:       colorRefs,
		PDepthStencilAttachment: depthRef,
	}

	rpci := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: 1,
		PDependencies:   []vk.SubpassDependency{subpassDependency},
	}

	var renderPass vk.RenderPass
	if err := vk.Error(vk.CreateRenderPass(d.device, &rpci, nil, &renderPass)); err != nil {
		return nil, errors.Wrap(err, "vk.CreateRenderPass()")
	}
	d.renderPasses[key] = renderPass
	return renderPass, nil
}

func (d *Driver) framebuffer(key framebufferKey, views []vk.ImageView) (vk.Framebuffer, error) {
	if fb, ok := d.framebuffers[key]; ok {
		return fb, nil
	}
	fci := vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      key.pass,
		AttachmentCount: uint32(len(views)),
		PAttachments:    views,
		Width:           key.extent.Width,
		Height:          key.extent.Height,
		Layers:          1,
	}

	var framebuffer vk.Framebuffer
	if err := vk.Error(vk.CreateFramebuffer(d.device, &fci, nil, &framebuffer)); err != nil {
		return nil, errors.Wrap(err, "vk.CreateFramebuffer()")
	}
	d.framebuffers[key] = framebuffer
	return framebuffer, nil
}

// CreateShaderModule implements gfx.Driver
func (d *Driver) CreateShaderModule(code []byte) (gfx.ShaderModule, error) {
	smci := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(code)),
		PCode:    SliceUint32(code),
	}

	var module vk.ShaderModule
	if err := vk.Error(vk.CreateShaderModule(d.device, &smci, nil, &module)); err != nil {
		return 0, errors.Wrap(err, "vk.CreateShaderModule()")
	}
	return gfx.ShaderModule(d.shaders.put(module)), nil
}

// DestroyShaderModule implements gfx.Driver
func (d *Driver) DestroyShaderModule(module gfx.ShaderModule) {
	if m, ok := d.shaders.take(uint64(module)); ok {
		vk.DestroyShaderModule(d.device, m, nil)
	}
}

// CreatePipelineLayout implements gfx.Driver
func (d *Driver) CreatePipelineLayout(setLayouts []gfx.DescriptorSetLayout) (gfx.PipelineLayout, error) {
	layouts := make([]vk.DescriptorSetLayout, len(setLayouts))
	for i, l := range setLayouts {
		layouts[i] = d.setLayouts.get(uint64(l))
	}
	plci := vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: uint32(len(layouts)),
		PSetLayouts:    layouts,
	}

	var layout vk.PipelineLayout
	if err := vk.Error(vk.CreatePipelineLayout(d.device, &plci, nil, &layout)); err != nil {
		return 0, errors.Wrap(err, "vk.CreatePipelineLayout()")
	}
	return gfx.PipelineLayout(d.pipelineLayouts.put(layout)), nil
}

// DestroyPipelineLayout implements gfx.Driver
func (d *Driver) DestroyPipelineLayout(layout gfx.PipelineLayout) {
	if l, ok := d.pipelineLayouts.take(uint64(layout)); ok {
		vk.DestroyPipelineLayout(d.device, l, nil)
	}
}

// CreateGraphicsPipeline implements gfx.Driver. The pipeline is
// built against a render pass compatible with every pass that
// CmdBeginRendering creates for the same attachment formats.
func (d *Driver) CreateGraphicsPipeline(info gfx.GraphicsPipelineInfo) (gfx.Pipeline, error) {
	key := renderPassKey{
		color: attachmentKey{
			format: vk.Format(info.ColorFormat),
			layout: vk.ImageLayoutColorAttachmentOptimal,
			load:   vk.AttachmentLoadOpClear,
			store:  vk.AttachmentStoreOpStore,
		},
	}
	if info.DepthFormat != gfx.FormatUndefined {
		key.depth = attachmentKey{
			format: vk.Format(info.DepthFormat),
			layout: vk.ImageLayoutDepthStencilAttachmentOptimal,
			load:   vk.AttachmentLoadOpClear,
			store:  vk.AttachmentStoreOpDontCare,
		}
	}
	renderPass, err := d.renderPass(key)
	if err != nil {
		return 0, err
	}

	stages := make([]vk.PipelineShaderStageCreateInfo, len(info.Stages))
	for i, s := range info.Stages {
		stages[i] = vk.PipelineShaderStageCreateInfo{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageFlagBits(s.Stage),
			Module: d.shaders.get(uint64(s.Module)),
			PName:  safeString(s.Entry),
		}
	}

	bindings := make([]vk.VertexInputBindingDescription, len(info.Bindings))
	for i, b := range info.Bindings {
		bindings[i] = vk.VertexInputBindingDescription{
			Binding:   b.Binding,
			Stride:    b.Stride,
			InputRate: vk.VertexInputRateVertex,
		}
	}
	attributes := make([]vk.VertexInputAttributeDescription, len(info.Attributes))
	for i, a := range info.Attributes {
		attributes[i] = vk.VertexInputAttributeDescription{
			Location: a.Location,
			Binding:  a.Binding,
			Format:   vk.Format(a.Format),
			Offset:   a.Offset,
		}
	}

	depthTest := vk.Bool32(vk.False)
	if info.DepthFormat != gfx.FormatUndefined {
		depthTest = vk.True
	}

	gpci := []vk.GraphicsPipelineCreateInfo{{
		SType:      vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount: uint32(len(stages)),
		PStages:    stages,
		PVertexInputState: &vk.PipelineVertexInputStateCreateInfo{
			SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
			VertexAttributeDescriptionCount: uint32(len(attributes)),
			PVertexAttributeDescriptions:    attributes,
			VertexBindingDescriptionCount:   uint32(len(bindings)),
			PVertexBindingDescriptions:      bindings,
		},
		PInputAssemblyState: &vk.PipelineInputAssemblyStateCreateInfo{
			SType:    vk.StructureTypePipelineInputAssemblyStateCreateInfo,
			Topology: vk.PrimitiveTopologyTriangleList,
		},
		PViewportState: &vk.PipelineViewportStateCreateInfo{
			SType:         vk.StructureTypePipelineViewportStateCreateInfo,
			ViewportCount: 1,
			ScissorCount:  1,
		},
		PRasterizationState: &vk.PipelineRasterizationStateCreateInfo{
			SType:       vk.StructureTypePipelineRasterizationStateCreateInfo,
			PolygonMode: vk.PolygonModeFill,
			CullMode:    vk.CullModeFlags(info.CullMode),
			FrontFace:   vk.FrontFace(info.FrontFace),
			LineWidth:   1.0,
		},
		PDepthStencilState: &vk.PipelineDepthStencilStateCreateInfo{
			SType:                 vk.StructureTypePipelineDepthStencilStateCreateInfo,
			DepthTestEnable:       depthTest,
			DepthWriteEnable:      depthTest,
			DepthCompareOp:        vk.CompareOp(info.DepthCompare),
			DepthBoundsTestEnable: vk.False,
			StencilTestEnable:     vk.False,
			Back: vk.StencilOpState{
				FailOp:    vk.StencilOpKeep,
				PassOp:    vk.StencilOpKeep,
				CompareOp: vk.CompareOpAlways,
			},
			Front: vk.StencilOpState{
				FailOp:    vk.StencilOpKeep,
				PassOp:    vk.StencilOpKeep,
				CompareOp: vk.CompareOpAlways,
			},
		},
		PMultisampleState: &vk.PipelineMultisampleStateCreateInfo{
			SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
			RasterizationSamples: vk.SampleCount1Bit,
		},
		PColorBlendState: &vk.PipelineColorBlendStateCreateInfo{
			SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
			AttachmentCount: 1,
			PAttachments: []vk.PipelineColorBlendAttachmentState{{
				ColorWriteMask: 0xF,
				BlendEnable:    vk.False,
			}},
		},
		PDynamicState: &vk.PipelineDynamicStateCreateInfo{
			SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
			DynamicStateCount: 2,
			PDynamicStates: []vk.DynamicState{
				vk.DynamicStateViewport,
				vk.DynamicStateScissor,
			},
		},
		Layout:     d.pipelineLayouts.get(uint64(info.Layout)),
		RenderPass: renderPass,
	}}

	var cache vk.PipelineCache
	pipelines := make([]vk.Pipeline, len(gpci))
	if err := vk.Error(vk.CreateGraphicsPipelines(d.device, cache, uint32(len(gpci)), gpci, nil, pipelines)); err != nil {
		return 0, errors.Wrap(err, "vk.CreateGraphicsPipelines()")
	}
	return gfx.Pipeline(d.pipelines.put(pipelines[0])), nil
}

// DestroyPipeline implements gfx.Driver
func (d *Driver) DestroyPipeline(pipeline gfx.Pipeline) {
	if p, ok := d.pipelines.take(uint64(pipeline)); ok {
		vk.DestroyPipeline(d.device, p, nil)
	}
}
