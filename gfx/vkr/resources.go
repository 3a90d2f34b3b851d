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

// CreateImageView implements gfx.Driver
func (d *Driver) CreateImageView(image gfx.Image, format gfx.Format, aspect gfx.ImageAspect) (gfx.ImageView, error) {
	ivci := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    d.images.get(uint64(image)),
		ViewType: vk.ImageViewType2d,
		Format:   vk.Format(format),
		Components: vk.ComponentMapping{
			R: vk.ComponentSwizzleIdentity,
			G: vk.ComponentSwizzleIdentity,
			B: vk.ComponentSwizzleIdentity,
			A: vk.ComponentSwizzleIdentity,
		},
		SubresourceRange: subresourceRange(aspect),
	}

	var view vk.ImageView
	if err := vk.Error(vk.CreateImageView(d.device, &ivci, nil, &view)); err != nil {
		return 0, errors.Wrap(err, "vk.CreateImageView()")
	}
	return gfx.ImageView(d.views.put(imageView{view: view, format: vk.Format(format)})), nil
}

// DestroyImageView implements gfx.Driver. Framebuffers built
// around the view are destroyed with it.
func (d *Driver) DestroyImageView(view gfx.ImageView) {
	v, ok := d.views.take(uint64(view))
	if !ok {
		return
	}
	for key, fb := range d.framebuffers {
		if key.color == view || key.depth == view {
			vk.DestroyFramebuffer(d.device, fb, nil)
			delete(d.framebuffers, key)
		}
	}
	vk.DestroyImageView(d.device, v.view, nil)
}

// CreateSampler implements gfx.Driver
func (d *Driver) CreateSampler(info gfx.SamplerInfo) (gfx.Sampler, error) {
	sci := vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		MagFilter:               vk.Filter(info.MagFilter),
		MinFilter:               vk.Filter(info.MinFilter),
		AddressModeU:            vk.SamplerAddressMode(info.AddressMode),
		AddressModeV:            vk.SamplerAddressMode(info.AddressMode),
		AddressModeW:            vk.SamplerAddressMode(info.AddressMode),
		AnisotropyEnable:        vk.False,
		MaxAnisotropy:           1,
		BorderColor:             vk.BorderColorFloatOpaqueBlack,
		UnnormalizedCoordinates: vk.False,
		CompareEnable:           vk.False,
		CompareOp:               vk.CompareOpAlways,
		MipmapMode:              vk.SamplerMipmapModeLinear,
	}

	var sampler vk.Sampler
	if err := vk.Error(vk.CreateSampler(d.device, &sci, nil, &sampler)); err != nil {
		return 0, errors.Wrap(err, "vk.CreateSampler()")
	}
	return gfx.Sampler(d.samplers.put(sampler)), nil
}

// DestroySampler implements gfx.Driver
func (d *Driver) DestroySampler(sampler gfx.Sampler) {
	if s, ok := d.samplers.take(uint64(sampler)); ok {
		vk.DestroySampler(d.device, s, nil)
	}
}

// CreateDescriptorSetLayout implements gfx.Driver
func (d *Driver) CreateDescriptorSetLayout(bindings []gfx.DescriptorBinding) (gfx.DescriptorSetLayout, error) {
	vkBindings := make([]vk.DescriptorSetLayoutBinding, len(bindings))
	for i, b := range bindings {
		vkBindings[i] = vk.DescriptorSetLayoutBinding{
			Binding:         b.Binding,
			DescriptorType:  vk.DescriptorType(b.Type),
			DescriptorCount: b.Count,
			StageFlags:      vk.ShaderStageFlags(b.Stages),
		}
	}
	dslci := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(vkBindings)),
		PBindings:    vkBindings,
	}

	var layout vk.DescriptorSetLayout
	if err := vk.Error(vk.CreateDescriptorSetLayout(d.device, &dslci, nil, &layout)); err != nil {
		return 0, errors.Wrap(err, "vk.CreateDescriptorSetLayout()")
	}
	return gfx.DescriptorSetLayout(d.setLayouts.put(layout)), nil
}

// DestroyDescriptorSetLayout implements gfx.Driver
func (d *Driver) DestroyDescriptorSetLayout(layout gfx.DescriptorSetLayout) {
	if l, ok := d.setLayouts.take(uint64(layout)); ok {
		vk.DestroyDescriptorSetLayout(d.device, l, nil)
	}
}

// CreateDescriptorPool implements gfx.Driver
func (d *Driver) CreateDescriptorPool(maxSets uint32, sizes []gfx.PoolSize) (gfx.DescriptorPool, error) {
	poolSizes := make([]vk.DescriptorPoolSize, len(sizes))
	for i, s := range sizes {
		poolSizes[i] = vk.DescriptorPoolSize{
			Type:            vk.DescriptorType(s.Type),
			DescriptorCount: s.Count,
		}
	}
	dpci := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       maxSets,
		PoolSizeCount: uint32(len(poolSizes)),
		PPoolSizes:    poolSizes,
	}

	var pool vk.DescriptorPool
	if err := vk.Error(vk.CreateDescriptorPool(d.device, &dpci, nil, &pool)); err != nil {
		return 0, errors.Wrap(err, "vk.CreateDescriptorPool()")
	}
	return gfx.DescriptorPool(d.pools.put(pool)), nil
}

// DestroyDescriptorPool implements gfx.Driver. Sets allocated
// from the pool are freed implicitly.
func (d *Driver) DestroyDescriptorPool(pool gfx.DescriptorPool) {
	if p, ok := d.pools.take(uint64(pool)); ok {
		vk.DestroyDescriptorPool(d.device, p, nil)
	}
}

// AllocateDescriptorSet implements gfx.Driver
func (d *Driver) AllocateDescriptorSet(pool gfx.DescriptorPool, layout gfx.DescriptorSetLayout) (gfx.DescriptorSet, error) {
	dsai := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     d.pools.get(uint64(pool)),
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{d.setLayouts.get(uint64(layout))},
	}

	var set vk.DescriptorSet
	if err := vk.Error(vk.AllocateDescriptorSets(d.device, &dsai, &set)); err != nil {
		return 0, errors.Wrap(err, "vk.AllocateDescriptorSets()")
	}
	return gfx.DescriptorSet(d.sets.put(set)), nil
}

// UpdateDescriptorSets implements gfx.Driver
func (d *Driver) UpdateDescriptorSets(writes []gfx.DescriptorWrite) {
	wds := make([]vk.WriteDescriptorSet, 0, len(writes))
	for _, w := range writes {
		wds = append(wds, d.writeDescriptorSet(w))
	}
	vk.UpdateDescriptorSets(d.device, uint32(len(wds)), wds, 0, nil)
}

func (d *Driver) writeDescriptorSet(w gfx.DescriptorWrite) vk.WriteDescriptorSet {
	wds := vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          d.sets.get(uint64(w.Set)),
		DstBinding:      w.Binding,
		DescriptorCount: 1,
		DescriptorType:  vk.DescriptorType(w.Type),
	}
	if w.Buffer != nil {
		wds.PBufferInfo = []vk.DescriptorBufferInfo{{
			Buffer: d.buffers.get(uint64(w.Buffer.Buffer)),
			Offset: vk.DeviceSize(w.Buffer.Offset),
			Range:  vk.DeviceSize(w.Buffer.Range),
		}}
	}
	if w.Image != nil {
		wds.PImageInfo = []vk.DescriptorImageInfo{{
			Sampler:     d.samplers.get(uint64(w.Image.Sampler)),
			ImageView:   d.views.get(uint64(w.Image.View)).view,
			ImageLayout: vk.ImageLayout(w.Image.Layout),
		}}
	}
	return wds
}

// CreateCommandPool implements gfx.Driver
func (d *Driver) CreateCommandPool(queueFamily uint32) (gfx.CommandPool, error) {
	cpci := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: queueFamily,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}

	var pool vk.CommandPool
	if err := vk.Error(vk.CreateCommandPool(d.device, &cpci, nil, &pool)); err != nil {
		return 0, errors.Wrap(err, "vk.CreateCommandPool()")
	}
	return gfx.CommandPool(d.commandPools.put(pool)), nil
}

// DestroyCommandPool implements gfx.Driver
func (d *Driver) DestroyCommandPool(pool gfx.CommandPool) {
	if p, ok := d.commandPools.take(uint64(pool)); ok {
		vk.DestroyCommandPool(d.device, p, nil)
	}
}

// AllocateCommandBuffer implements gfx.Driver
func (d *Driver) AllocateCommandBuffer(pool gfx.CommandPool) (gfx.CommandBuffer, error) {
	cbai := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        d.commandPools.get(uint64(pool)),
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}

	commandBuffers := make([]vk.CommandBuffer, 1)
	if err := vk.Error(vk.AllocateCommandBuffers(d.device, &cbai, commandBuffers)); err != nil {
		return 0, errors.Wrap(err, "vk.AllocateCommandBuffers()")
	}
	return gfx.CommandBuffer(d.commandBuffers.put(commandBuffers[0])), nil
}

// FreeCommandBuffer implements gfx.Driver
func (d *Driver) FreeCommandBuffer(pool gfx.CommandPool, cmd gfx.CommandBuffer) {
	if c, ok := d.commandBuffers.take(uint64(cmd)); ok {
		vk.FreeCommandBuffers(d.device, d.commandPools.get(uint64(pool)), 1, []vk.CommandBuffer{c})
	}
}

// CreateFence implements gfx.Driver
func (d *Driver) CreateFence(signaled bool) (gfx.Fence, error) {
	fci := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	if signaled {
		fci.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}

	var fence vk.Fence
	if err := vk.Error(vk.CreateFence(d.device, &fci, nil, &fence)); err != nil {
		return 0, errors.Wrap(err, "vk.CreateFence()")
	}
	return gfx.Fence(d.fences.put(fence)), nil
}

// DestroyFence implements gfx.Driver
func (d *Driver) DestroyFence(fence gfx.Fence) {
	if f, ok := d.fences.take(uint64(fence)); ok {
		vk.DestroyFence(d.device, f, nil)
	}
}

// WaitForFence implements gfx.Driver
func (d *Driver) WaitForFence(fence gfx.Fence, timeout uint64) error {
	fences := []vk.Fence{d.fences.get(uint64(fence))}
	if err := vk.Error(vk.WaitForFences(d.device, 1, fences, vk.True, timeout)); err != nil {
		return errors.Wrap(err, "vk.WaitForFences()")
	}
	return nil
}

// ResetFence implements gfx.Driver
func (d *Driver) ResetFence(fence gfx.Fence) error {
	fences := []vk.Fence{d.fences.get(uint64(fence))}
	if err := vk.Error(vk.ResetFences(d.device, 1, fences)); err != nil {
		return errors.Wrap(err, "vk.ResetFences()")
	}
	return nil
}

// CreateSemaphore implements gfx.Driver
func (d *Driver) CreateSemaphore() (gfx.Semaphore, error) {
	sci := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}

	var semaphore vk.Semaphore
	if err := vk.Error(vk.CreateSemaphore(d.device, &sci, nil, &semaphore)); err != nil {
		return 0, errors.Wrap(err, "vk.CreateSemaphore()")
	}
	return gfx.Semaphore(d.semaphores.put(semaphore)), nil
}

// DestroySemaphore implements gfx.Driver
func (d *Driver) DestroySemaphore(semaphore gfx.Semaphore) {
	if s, ok := d.semaphores.take(uint64(semaphore)); ok {
		vk.DestroySemaphore(d.device, s, nil)
	}
}

func subresourceRange(aspect gfx.ImageAspect) vk.ImageSubresourceRange {
	return vk.ImageSubresourceRange{
		AspectMask:     vk.ImageAspectFlags(aspect),
		BaseMipLevel:   0,
		LevelCount:     1,
		BaseArrayLayer: 0,
		LayerCount:     1,
	}
}
