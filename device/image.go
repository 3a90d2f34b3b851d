// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package device

import (
	"github.com/devblok/vulkan3d/gfx"
	"github.com/pkg/errors"
)

// ImageView is a view of an image, used to bind it as an attachment
// or a texture.
type ImageView struct {
	device *Device

	view   gfx.ImageView
	image  gfx.Image
	format gfx.Format
	aspect gfx.ImageAspect
}

// CreateImageView creates a 2D view of image. The view must be
// released before the image is destroyed.
func (d *Device) CreateImageView(image gfx.Image, format gfx.Format, aspect gfx.ImageAspect) (*ImageView, error) {
	view, err := d.driver.CreateImageView(image, format, aspect)
	if err != nil {
		return nil, errors.Wrap(err, "create image view")
	}
	return &ImageView{
		device: d,
		view:   view,
		image:  image,
		format: format,
		aspect: aspect,
	}, nil
}

// Handle returns the view handle.
func (v *ImageView) Handle() gfx.ImageView {
	return v.view
}

// Image returns the image the view refers to.
func (v *ImageView) Image() gfx.Image {
	return v.image
}

// Format returns the view format.
func (v *ImageView) Format() gfx.Format {
	return v.format
}

// Aspect returns the aspect the view covers.
func (v *ImageView) Aspect() gfx.ImageAspect {
	return v.aspect
}

// Release implements gfx.Releasable
func (v *ImageView) Release() {
	if v == nil || v.view == gfx.NullHandle {
		return
	}
	v.device.driver.DestroyImageView(v.view)
	v.view = gfx.NullHandle
}

// Image is a 2D device image together with a view covering it.
type Image struct {
	*ImageView

	alloc gfx.Allocation
	info  gfx.ImageInfo
}

// Create2DImage allocates a 2D image in the given memory tier and
// creates a matching view.
func (d *Device) Create2DImage(extent gfx.Extent2D, format gfx.Format, usage gfx.ImageUsage, aspect gfx.ImageAspect, memory gfx.MemoryUsage) (*Image, error) {
	if extent.Width == 0 || extent.Height == 0 {
		return nil, errors.Errorf("create image: invalid extent %dx%d", extent.Width, extent.Height)
	}
	info := gfx.ImageInfo{
		Extent: gfx.Extent3D{Width: extent.Width, Height: extent.Height, Depth: 1},
		Format: format,
		Usage:  usage,
	}
	image, alloc, err := d.allocator.createImage(info, memory)
	if err != nil {
		return nil, err
	}
	view, err := d.CreateImageView(image, format, aspect)
	if err != nil {
		d.allocator.destroyImage(image, alloc)
		return nil, err
	}
	return &Image{
		ImageView: view,
		alloc:     alloc,
		info:      info,
	}, nil
}

// Extent returns the image extent.
func (i *Image) Extent() gfx.Extent3D {
	return i.info.Extent
}

// Usage returns the usage the image was created with.
func (i *Image) Usage() gfx.ImageUsage {
	return i.info.Usage
}

// Release implements gfx.Releasable
func (i *Image) Release() {
	if i == nil || i.ImageView == nil || i.image == gfx.NullHandle {
		return
	}
	i.ImageView.Release()
	i.device.allocator.destroyImage(i.image, i.alloc)
	i.image = gfx.NullHandle
}

// UploadImage creates a sampled RGBA8 sRGB texture and fills it with
// pixels through a staging buffer. The copy is complete and the image
// is in shader-read-only layout when it returns.
func (d *Device) UploadImage(pixels []byte, width, height uint32) (*Image, error) {
	if uint64(len(pixels)) != uint64(width)*uint64(height)*4 {
		return nil, errors.Errorf("upload image: %d bytes for %dx%d RGBA pixels", len(pixels), width, height)
	}

	staging, err := d.CreateBuffer(uint64(len(pixels)), gfx.BufferUsageTransferSrc)
	if err != nil {
		return nil, err
	}
	defer staging.Release()
	if err := staging.Write(pixels); err != nil {
		return nil, err
	}

	image, err := d.Create2DImage(gfx.Extent2D{Width: width, Height: height}, gfx.FormatR8G8B8A8Srgb,
		gfx.ImageUsageTransferDst|gfx.ImageUsageSampled, gfx.ImageAspectColor, gfx.MemoryGPUOnly)
	if err != nil {
		return nil, err
	}

	if err := d.SubmitImmediate(func(cmd gfx.CommandBuffer) error {
		d.RecordLayoutTransition(cmd, gfx.ImageBarrier{
			Image:     image.Image(),
			OldLayout: gfx.ImageLayoutUndefined,
			NewLayout: gfx.ImageLayoutTransferDstOptimal,
			SrcAccess: gfx.AccessNone,
			DstAccess: gfx.AccessTransferWrite,
			Aspect:    gfx.ImageAspectColor,
		}, gfx.PipelineStageTopOfPipe, gfx.PipelineStageTransfer)

		d.driver.CmdCopyBufferToImage(cmd, staging.Handle(), image.Image(),
			gfx.ImageLayoutTransferDstOptimal, image.Extent(), gfx.ImageAspectColor)

		d.RecordLayoutTransition(cmd, gfx.ImageBarrier{
			Image:     image.Image(),
			OldLayout: gfx.ImageLayoutTransferDstOptimal,
			NewLayout: gfx.ImageLayoutShaderReadOnlyOptimal,
			SrcAccess: gfx.AccessTransferWrite,
			DstAccess: gfx.AccessShaderRead,
			Aspect:    gfx.ImageAspectColor,
		}, gfx.PipelineStageTransfer, gfx.PipelineStageFragmentShader)
		return nil
	}); err != nil {
		image.Release()
		return nil, err
	}
	return image, nil
}

// Sampler samples textures in shaders.
type Sampler struct {
	device  *Device
	sampler gfx.Sampler
}

// CreateSampler creates a sampler with linear filtering and repeat
// addressing.
func (d *Device) CreateSampler() (*Sampler, error) {
	sampler, err := d.driver.CreateSampler(gfx.SamplerInfo{
		MagFilter:   gfx.FilterLinear,
		MinFilter:   gfx.FilterLinear,
		AddressMode: gfx.AddressModeRepeat,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create sampler")
	}
	return &Sampler{device: d, sampler: sampler}, nil
}

// Handle returns the sampler handle.
func (s *Sampler) Handle() gfx.Sampler {
	return s.sampler
}

// Release implements gfx.Releasable
func (s *Sampler) Release() {
	if s == nil || s.sampler == gfx.NullHandle {
		return
	}
	s.device.driver.DestroySampler(s.sampler)
	s.sampler = gfx.NullHandle
}
