// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package gfx

// Driver is the complete set of graphics API calls the renderer relies on.
// A Driver is bound to one instance and, once OpenDevice succeeds, to exactly
// one logical device; every device-level call operates on that device.
// Drivers are not safe for concurrent use.
type Driver interface {

	// PhysicalDevices lists the physical devices of the instance in
	// enumeration order.
	PhysicalDevices() ([]PhysicalDeviceInfo, error)

	// OpenDevice creates the logical device with a single queue from
	// the given family and enables the named device extensions.
	OpenDevice(physical PhysicalDevice, queueFamily uint32, extensions []string) (Queue, error)

	// CloseDevice destroys the logical device.
	CloseDevice()

	// WaitIdle blocks until the device has finished all work.
	WaitIdle() error

	CreateBuffer(size uint64, usage BufferUsage, memory MemoryUsage) (Buffer, Allocation, error)
	DestroyBuffer(buffer Buffer, alloc Allocation)
	CreateImage(info ImageInfo, memory MemoryUsage) (Image, Allocation, error)
	DestroyImage(image Image, alloc Allocation)

	// MapMemory returns the host view of a host-visible allocation.
	// The slice is valid until UnmapMemory.
	MapMemory(alloc Allocation) ([]byte, error)
	UnmapMemory(alloc Allocation)

	CreateImageView(image Image, format Format, aspect ImageAspect) (ImageView, error)
	DestroyImageView(view ImageView)
	CreateSampler(info SamplerInfo) (Sampler, error)
	DestroySampler(sampler Sampler)

	CreateDescriptorSetLayout(bindings []DescriptorBinding) (DescriptorSetLayout, error)
	DestroyDescriptorSetLayout(layout DescriptorSetLayout)
	CreateDescriptorPool(maxSets uint32, sizes []PoolSize) (DescriptorPool, error)
	DestroyDescriptorPool(pool DescriptorPool)
	AllocateDescriptorSet(pool DescriptorPool, layout DescriptorSetLayout) (DescriptorSet, error)
	UpdateDescriptorSets(writes []DescriptorWrite)

	CreateCommandPool(queueFamily uint32) (CommandPool, error)
	DestroyCommandPool(pool CommandPool)
	AllocateCommandBuffer(pool CommandPool) (CommandBuffer, error)
	FreeCommandBuffer(pool CommandPool, cmd CommandBuffer)

	CreateFence(signaled bool) (Fence, error)
	DestroyFence(fence Fence)
	WaitForFence(fence Fence, timeout uint64) error
	ResetFence(fence Fence) error
	CreateSemaphore() (Semaphore, error)
	DestroySemaphore(semaphore Semaphore)

	ResetCommandBuffer(cmd CommandBuffer) error
	BeginCommandBuffer(cmd CommandBuffer, oneTime bool) error
	EndCommandBuffer(cmd CommandBuffer) error
	CmdPipelineBarrier(cmd CommandBuffer, src, dst PipelineStage, deps DependencyFlags, barrier ImageBarrier)
	CmdCopyBufferToImage(cmd CommandBuffer, src Buffer, dst Image, layout ImageLayout, extent Extent3D, aspect ImageAspect)
	CmdBeginRendering(cmd CommandBuffer, info RenderingInfo)
	CmdEndRendering(cmd CommandBuffer)
	CmdBindPipeline(cmd CommandBuffer, pipeline Pipeline)
	CmdSetViewport(cmd CommandBuffer, viewport Viewport)
	CmdSetScissor(cmd CommandBuffer, scissor Rect2D)
	CmdBindDescriptorSets(cmd CommandBuffer, layout PipelineLayout, firstSet uint32, sets []DescriptorSet)
	CmdBindVertexBuffers(cmd CommandBuffer, first uint32, buffers []Buffer, offsets []uint64)
	CmdBindIndexBuffer(cmd CommandBuffer, buffer Buffer, offset uint64, indexType IndexType)
	CmdDrawIndexed(cmd CommandBuffer, indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32)

	QueueSubmit(queue Queue, info SubmitInfo, fence Fence) error
	QueueWaitIdle(queue Queue) error

	// QueuePresent returns ErrOutOfDate when the swapchain must be recreated.
	QueuePresent(queue Queue, info PresentInfo) error

	SurfaceFormats(surface Surface) ([]SurfaceFormat, error)
	CreateSwapchain(info SwapchainInfo) (Swapchain, error)
	DestroySwapchain(swapchain Swapchain)

	// SwapchainImages returns the images owned by the swapchain; they
	// must not be destroyed by the caller.
	SwapchainImages(swapchain Swapchain) ([]Image, error)

	// AcquireNextImage returns ErrOutOfDate when the swapchain must be
	// recreated, in which case the semaphore is left unsignaled.
	AcquireNextImage(swapchain Swapchain, timeout uint64, signal Semaphore) (uint32, error)

	CreateShaderModule(code []byte) (ShaderModule, error)
	DestroyShaderModule(module ShaderModule)
	CreatePipelineLayout(setLayouts []DescriptorSetLayout) (PipelineLayout, error)
	DestroyPipelineLayout(layout PipelineLayout)
	CreateGraphicsPipeline(info GraphicsPipelineInfo) (Pipeline, error)
	DestroyPipeline(pipeline Pipeline)
}
