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

// SurfaceFormats implements gfx.Driver
func (d *Driver) SurfaceFormats(surface gfx.Surface) ([]gfx.SurfaceFormat, error) {
	s := d.surfaces.get(uint64(surface))

	var surfaceFormatCount uint32
	if err := vk.Error(vk.GetPhysicalDeviceSurfaceFormats(d.physicalDevice, s, &surfaceFormatCount, nil)); err != nil {
		return nil, errors.Wrap(err, "vk.GetPhysicalDeviceSurfaceFormats()")
	}
	surfaceFormats := make([]vk.SurfaceFormat, surfaceFormatCount)
	if err := vk.Error(vk.GetPhysicalDeviceSurfaceFormats(d.physicalDevice, s, &surfaceFormatCount, surfaceFormats)); err != nil {
		return nil, errors.Wrap(err, "vk.GetPhysicalDeviceSurfaceFormats()")
	}

	formats := make([]gfx.SurfaceFormat, len(surfaceFormats))
	for i, sf := range surfaceFormats {
		sf.Deref()
		formats[i] = gfx.SurfaceFormat{
			Format:     gfx.Format(sf.Format),
			ColorSpace: gfx.ColorSpace(sf.ColorSpace),
		}
	}
	return formats, nil
}

func (d *Driver) presentModeSupported(surface vk.Surface, mode vk.PresentMode) bool {
	var count uint32
	if err := vk.Error(vk.GetPhysicalDeviceSurfacePresentModes(d.physicalDevice, surface, &count, nil)); err != nil {
		return false
	}
	modes := make([]vk.PresentMode, count)
	if err := vk.Error(vk.GetPhysicalDeviceSurfacePresentModes(d.physicalDevice, surface, &count, modes)); err != nil {
		return false
	}
	for _, m := range modes {
		if m == mode {
			return true
		}
	}
	return false
}

// CreateSwapchain implements gfx.Driver. FIFO is used in place of
// a requested present mode the surface does not offer.
func (d *Driver) CreateSwapchain(info gfx.SwapchainInfo) (gfx.Swapchain, error) {
	surface := d.surfaces.get(uint64(info.Surface))

	var surfaceCapabilities vk.SurfaceCapabilities
	if err := vk.Error(vk.GetPhysicalDeviceSurfaceCapabilities(d.physicalDevice, surface, &surfaceCapabilities)); err != nil {
		return 0, errors.Wrap(err, "vk.GetPhysicalDeviceSurfaceCapabilities()")
	}
	surfaceCapabilities.Deref()

	compositeAlpha := vk.CompositeAlphaOpaqueBit
	compositeAlphaFlags := []vk.CompositeAlphaFlagBits{
		vk.CompositeAlphaOpaqueBit,
		vk.CompositeAlphaPreMultipliedBit,
		vk.CompositeAlphaPostMultipliedBit,
		vk.CompositeAlphaInheritBit,
	}
	for i := 0; i < len(compositeAlphaFlags); i++ {
		alphaFlags := vk.CompositeAlphaFlags(compositeAlphaFlags[i])
		if surfaceCapabilities.SupportedCompositeAlpha&alphaFlags != 0 {
			compositeAlpha = compositeAlphaFlags[i]
			break
		}
	}

	presentMode := vk.PresentMode(info.PresentMode)
	if !d.presentModeSupported(surface, presentMode) {
		d.log.WithField("mode", info.PresentMode).Warn("vkr: present mode unsupported, using FIFO")
		presentMode = vk.PresentModeFifo
	}

	var old vk.Swapchain
	if info.Old != gfx.NullHandle {
		old = d.swapchains.get(uint64(info.Old))
	}

	scci := vk.SwapchainCreateInfo{
		SType:           vk.StructureTypeSwapchainCreateInfo,
		Surface:         surface,
		MinImageCount:   info.MinImageCount,
		ImageFormat:     vk.Format(info.Format),
		ImageColorSpace: vk.ColorSpace(info.ColorSpace),
		ImageExtent: vk.Extent2D{
			Width:  info.Extent.Width,
			Height: info.Extent.Height,
		},
		ImageUsage:       vk.ImageUsageFlags(info.Usage),
		PreTransform:     vk.SurfaceTransformIdentityBit,
		CompositeAlpha:   compositeAlpha,
		PresentMode:      presentMode,
		Clipped:          vk.True,
		ImageArrayLayers: 1,
		ImageSharingMode: vk.SharingModeExclusive,
		OldSwapchain:     old,
	}

	var swapchain vk.Swapchain
	if err := vk.Error(vk.CreateSwapchain(d.device, &scci, nil, &swapchain)); err != nil {
		return 0, errors.Wrap(err, "vk.CreateSwapchain()")
	}
	return gfx.Swapchain(d.swapchains.put(swapchain)), nil
}

// DestroySwapchain implements gfx.Driver
func (d *Driver) DestroySwapchain(swapchain gfx.Swapchain) {
	sc, ok := d.swapchains.take(uint64(swapchain))
	if !ok {
		return
	}
	for _, img := range d.swapchainImages[swapchain] {
		d.images.take(uint64(img))
	}
	delete(d.swapchainImages, swapchain)
	vk.DestroySwapchain(d.device, sc, nil)
}

// SwapchainImages implements gfx.Driver
func (d *Driver) SwapchainImages(swapchain gfx.Swapchain) ([]gfx.Image, error) {
	if images, ok := d.swapchainImages[swapchain]; ok {
		return images, nil
	}
	sc := d.swapchains.get(uint64(swapchain))

	var numImages uint32
	if err := vk.Error(vk.GetSwapchainImages(d.device, sc, &numImages, nil)); err != nil {
		return nil, errors.Wrap(err, "vk.GetSwapchainImages(num)")
	}
	vkImages := make([]vk.Image, numImages)
	if err := vk.Error(vk.GetSwapchainImages(d.device, sc, &numImages, vkImages)); err != nil {
		return nil, errors.Wrap(err, "vk.GetSwapchainImages(images)")
	}

	images := make([]gfx.Image, len(vkImages))
	for i, img := range vkImages {
		images[i] = gfx.Image(d.images.put(img))
	}
	d.swapchainImages[swapchain] = images
	return images, nil
}

// AcquireNextImage implements gfx.Driver
func (d *Driver) AcquireNextImage(swapchain gfx.Swapchain, timeout uint64, signal gfx.Semaphore) (uint32, error) {
	var imageIndex uint32
	result := vk.AcquireNextImage(d.device, d.swapchains.get(uint64(swapchain)), timeout,
		d.semaphores.get(uint64(signal)), vk.NullFence, &imageIndex)
	switch result {
	case vk.Success, vk.Suboptimal:
		return imageIndex, nil
	case vk.ErrorOutOfDate:
		return 0, gfx.ErrOutOfDate
	}
	return 0, errors.Wrap(vk.Error(result), "vk.AcquireNextImage()")
}

// QueuePresent implements gfx.Driver
func (d *Driver) QueuePresent(queue gfx.Queue, info gfx.PresentInfo) error {
	wait := make([]vk.Semaphore, len(info.Wait))
	for i, s := range info.Wait {
		wait[i] = d.semaphores.get(uint64(s))
	}
	presentInfo := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: uint32(len(wait)),
		PWaitSemaphores:    wait,
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{d.swapchains.get(uint64(info.Swapchain))},
		PImageIndices:      []uint32{info.ImageIndex},
	}

	result := vk.QueuePresent(d.queues.get(uint64(queue)), &presentInfo)
	switch result {
	case vk.Success, vk.Suboptimal:
		return nil
	case vk.ErrorOutOfDate:
		return gfx.ErrOutOfDate
	}
	return errors.Wrap(vk.Error(result), "vk.QueuePresent()")
}
