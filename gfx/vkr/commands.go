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

// ResetCommandBuffer implements gfx.Driver
func (d *Driver) ResetCommandBuffer(cmd gfx.CommandBuffer) error {
	if err := vk.Error(vk.ResetCommandBuffer(d.commandBuffers.get(uint64(cmd)), 0)); err != nil {
		return errors.Wrap(err, "vk.ResetCommandBuffer()")
	}
	return nil
}

// BeginCommandBuffer implements gfx.Driver
func (d *Driver) BeginCommandBuffer(cmd gfx.CommandBuffer, oneTime bool) error {
	cbbi := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
	}
	if oneTime {
		cbbi.Flags = vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit)
	}
	if err := vk.Error(vk.BeginCommandBuffer(d.commandBuffers.get(uint64(cmd)), &cbbi)); err != nil {
		return errors.Wrap(err, "vk.BeginCommandBuffer()")
	}
	return nil
}

// EndCommandBuffer implements gfx.Driver
func (d *Driver) EndCommandBuffer(cmd gfx.CommandBuffer) error {
	if err := vk.Error(vk.EndCommandBuffer(d.commandBuffers.get(uint64(cmd)))); err != nil {
		return errors.Wrap(err, "vk.EndCommandBuffer()")
	}
	return nil
}

// CmdPipelineBarrier implements gfx.Driver
func (d *Driver) CmdPipelineBarrier(cmd gfx.CommandBuffer, src, dst gfx.PipelineStage, deps gfx.DependencyFlags, barrier gfx.ImageBarrier) {
	imb := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		SrcAccessMask:       vk.AccessFlags(barrier.SrcAccess),
		DstAccessMask:       vk.AccessFlags(barrier.DstAccess),
		OldLayout:           vk.ImageLayout(barrier.OldLayout),
		NewLayout:           vk.ImageLayout(barrier.NewLayout),
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               d.images.get(uint64(barrier.Image)),
		SubresourceRange:    subresourceRange(barrier.Aspect),
	}
	vk.CmdPipelineBarrier(d.commandBuffers.get(uint64(cmd)),
		vk.PipelineStageFlags(src), vk.PipelineStageFlags(dst), vk.DependencyFlags(deps),
		0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{imb})
}

// CmdCopyBufferToImage implements gfx.Driver
func (d *Driver) CmdCopyBufferToImage(cmd gfx.CommandBuffer, src gfx.Buffer, dst gfx.Image, layout gfx.ImageLayout, extent gfx.Extent3D, aspect gfx.ImageAspect) {
	bic := vk.BufferImageCopy{
		ImageOffset: vk.Offset3D{},
		ImageExtent: vk.Extent3D{
			Width:  extent.Width,
			Height: extent.Height,
			Depth:  extent.Depth,
		},
		ImageSubresource: vk.ImageSubresourceLayers{
			AspectMask:     vk.ImageAspectFlags(aspect),
			MipLevel:       0,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	}
	vk.CmdCopyBufferToImage(d.commandBuffers.get(uint64(cmd)), d.buffers.get(uint64(src)),
		d.images.get(uint64(dst)), vk.ImageLayout(layout), 1, []vk.BufferImageCopy{bic})
}

// CmdBeginRendering implements gfx.Driver. The bindings stop at
// Vulkan 1.1, so the pass is emulated with a cached single-subpass
// render pass whose attachments keep the declared layouts, and a
// cached framebuffer over the attachment views.
func (d *Driver) CmdBeginRendering(cmd gfx.CommandBuffer, info gfx.RenderingInfo) {
	key := renderPassKey{}
	var (
		views       []vk.ImageView
		clearValues []vk.ClearValue
		fbKey       framebufferKey
	)
	if len(info.Color) > 0 {
		c := info.Color[0]
		v := d.views.get(uint64(c.View))
		key.color = attachmentKey{format: v.format, layout: vk.ImageLayout(c.Layout), load: vk.AttachmentLoadOp(c.LoadOp), store: vk.AttachmentStoreOp(c.StoreOp)}
		views = append(views, v.view)
		clearValues = append(clearValues, vk.NewClearValue(c.Clear.Color[:]))
		fbKey.color = c.View
	}
	if info.Depth != nil {
		v := d.views.get(uint64(info.Depth.View))
		key.depth = attachmentKey{format: v.format, layout: vk.ImageLayout(info.Depth.Layout), load: vk.AttachmentLoadOp(info.Depth.LoadOp), store: vk.AttachmentStoreOp(info.Depth.StoreOp)}
		views = append(views, v.view)
		clearValues = append(clearValues, vk.NewClearDepthStencil(info.Depth.Clear.Depth, info.Depth.Clear.Stencil))
		fbKey.depth = info.Depth.View
	}

	renderPass, err := d.renderPass(key)
	if err != nil {
		d.log.WithError(err).Error("vkr: begin rendering")
		return
	}
	fbKey.pass = renderPass
	fbKey.extent = info.Area.Extent
	framebuffer, err := d.framebuffer(fbKey, views)
	if err != nil {
		d.log.WithError(err).Error("vkr: begin rendering")
		return
	}

	rpbi := vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  renderPass,
		Framebuffer: framebuffer,
		RenderArea: vk.Rect2D{
			Offset: vk.Offset2D{X: info.Area.Offset.X, Y: info.Area.Offset.Y},
			Extent: vk.Extent2D{Width: info.Area.Extent.Width, Height: info.Area.Extent.Height},
		},
		ClearValueCount: uint32(len(clearValues)),
		PClearValues:    clearValues,
	}
	vk.CmdBeginRenderPass(d.commandBuffers.get(uint64(cmd)), &rpbi, vk.SubpassContentsInline)
}

// CmdEndRendering implements gfx.Driver
func (d *Driver) CmdEndRendering(cmd gfx.CommandBuffer) {
	vk.CmdEndRenderPass(d.commandBuffers.get(uint64(cmd)))
}

// CmdBindPipeline implements gfx.Driver
func (d *Driver) CmdBindPipeline(cmd gfx.CommandBuffer, pipeline gfx.Pipeline) {
	vk.CmdBindPipeline(d.commandBuffers.get(uint64(cmd)), vk.PipelineBindPointGraphics, d.pipelines.get(uint64(pipeline)))
}

// CmdSetViewport implements gfx.Driver
func (d *Driver) CmdSetViewport(cmd gfx.CommandBuffer, viewport gfx.Viewport) {
	vk.CmdSetViewport(d.commandBuffers.get(uint64(cmd)), 0, 1, []vk.Viewport{{
		X:        viewport.X,
		Y:        viewport.Y,
		Width:    viewport.Width,
		Height:   viewport.Height,
		MinDepth: viewport.MinDepth,
		MaxDepth: viewport.MaxDepth,
	}})
}

// CmdSetScissor implements gfx.Driver
func (d *Driver) CmdSetScissor(cmd gfx.CommandBuffer, scissor gfx.Rect2D) {
	vk.CmdSetScissor(d.commandBuffers.get(uint64(cmd)), 0, 1, []vk.Rect2D{{
		Offset: vk.Offset2D{X: scissor.Offset.X, Y: scissor.Offset.Y},
		Extent: vk.Extent2D{Width: scissor.Extent.Width, Height: scissor.Extent.Height},
	}})
}

// CmdBindDescriptorSets implements gfx.Driver
func (d *Driver) CmdBindDescriptorSets(cmd gfx.CommandBuffer, layout gfx.PipelineLayout, firstSet uint32, sets []gfx.DescriptorSet) {
	vkSets := make([]vk.DescriptorSet, len(sets))
	for i, s := range sets {
		vkSets[i] = d.sets.get(uint64(s))
	}
	vk.CmdBindDescriptorSets(d.commandBuffers.get(uint64(cmd)), vk.PipelineBindPointGraphics,
		d.pipelineLayouts.get(uint64(layout)), firstSet, uint32(len(vkSets)), vkSets, 0, nil)
}

// CmdBindVertexBuffers implements gfx.Driver
func (d *Driver) CmdBindVertexBuffers(cmd gfx.CommandBuffer, first uint32, buffers []gfx.Buffer, offsets []uint64) {
	vkBuffers := make([]vk.Buffer, len(buffers))
	vkOffsets := make([]vk.DeviceSize, len(buffers))
	for i, b := range buffers {
		vkBuffers[i] = d.buffers.get(uint64(b))
		vkOffsets[i] = vk.DeviceSize(offsets[i])
	}
	vk.CmdBindVertexBuffers(d.commandBuffers.get(uint64(cmd)), first, uint32(len(vkBuffers)), vkBuffers, vkOffsets)
}

// CmdBindIndexBuffer implements gfx.Driver
func (d *Driver) CmdBindIndexBuffer(cmd gfx.CommandBuffer, buffer gfx.Buffer, offset uint64, indexType gfx.IndexType) {
	vk.CmdBindIndexBuffer(d.commandBuffers.get(uint64(cmd)), d.buffers.get(uint64(buffer)), vk.DeviceSize(offset), vk.IndexType(indexType))
}

// CmdDrawIndexed implements gfx.Driver
func (d *Driver) CmdDrawIndexed(cmd gfx.CommandBuffer, indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	vk.CmdDrawIndexed(d.commandBuffers.get(uint64(cmd)), indexCount, instanceCount, firstIndex, vertexOffset, firstInstance)
}

// QueueSubmit implements gfx.Driver
func (d *Driver) QueueSubmit(queue gfx.Queue, info gfx.SubmitInfo, fence gfx.Fence) error {
	wait := make([]vk.Semaphore, len(info.Wait))
	for i, s := range info.Wait {
		wait[i] = d.semaphores.get(uint64(s))
	}
	stages := make([]vk.PipelineStageFlags, len(info.WaitStages))
	for i, s := range info.WaitStages {
		stages[i] = vk.PipelineStageFlags(s)
	}
	signal := make([]vk.Semaphore, len(info.Signal))
	for i, s := range info.Signal {
		signal[i] = d.semaphores.get(uint64(s))
	}

	// A null command buffer submits a batch that only waits and signals.
	var cmds []vk.CommandBuffer
	if info.CommandBuffer != gfx.NullHandle {
		cmds = []vk.CommandBuffer{d.commandBuffers.get(uint64(info.CommandBuffer))}
	}
	submit := []vk.SubmitInfo{{
		SType:                vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount:   uint32(len(wait)),
		PWaitSemaphores:      wait,
		PWaitDstStageMask:    stages,
		CommandBufferCount:   uint32(len(cmds)),
		PCommandBuffers:      cmds,
		SignalSemaphoreCount: uint32(len(signal)),
		PSignalSemaphores:    signal,
	}}

	var vkFence vk.Fence
	if fence != gfx.NullHandle {
		vkFence = d.fences.get(uint64(fence))
	}
	if err := vk.Error(vk.QueueSubmit(d.queues.get(uint64(queue)), 1, submit, vkFence)); err != nil {
		return errors.Wrap(err, "vk.QueueSubmit()")
	}
	return nil
}

// QueueWaitIdle implements gfx.Driver
func (d *Driver) QueueWaitIdle(queue gfx.Queue) error {
	if err := vk.Error(vk.QueueWaitIdle(d.queues.get(uint64(queue)))); err != nil {
		return errors.Wrap(err, "vk.QueueWaitIdle()")
	}
	return nil
}
