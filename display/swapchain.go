// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package display keeps the presentable image chain of a window
// surface in step with the size of the window.
package display

import (
	"github.com/devblok/vulkan3d/device"
	"github.com/devblok/vulkan3d/gfx"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// ErrFormatUnsupported is returned when the surface does not offer
// the color format the renderer draws in.
var ErrFormatUnsupported = errors.New("preferred surface format unsupported")

// Preferred formats
const (
	ColorFormat = gfx.FormatB8G8R8A8Srgb
	ColorSpace  = gfx.ColorSpaceSrgbNonlinear
	DepthFormat = gfx.FormatD32Sfloat
)

// Surface is provided by the window system.
type Surface interface {
	// DrawableSize returns the current size of the drawable area in
	// pixels. It may change between any two calls.
	DrawableSize() (width, height uint32)

	// Handle returns the surface registered with the driver.
	Handle() gfx.Surface
}

// Config configures the swapchain.
type Config struct {
	// ImageCount is the minimum number of swapchain images.
	ImageCount  uint32
	PresentMode gfx.PresentMode

	// DepthImages is the number of depth attachments, one per frame
	// that may be rendered concurrently. Zero means one.
	DepthImages int

	Log log.FieldLogger
}

// DefaultConfig asks for double buffering with FIFO relaxed presentation.
func DefaultConfig() Config {
	return Config{
		ImageCount:  2,
		PresentMode: gfx.PresentModeFifoRelaxed,
	}
}

// Swapchain owns the swapchain, a view per swapchain image and the
// depth attachments rendered into with them.
type Swapchain struct {
	device  *device.Device
	surface Surface
	cfg     Config

	swapchain gfx.Swapchain
	format    gfx.Format
	extent    gfx.Extent2D
	images    []gfx.Image
	views     []*device.ImageView
	depths    []*device.Image
}

// New creates a swapchain for surface at its current drawable size.
// A zero image count defaults to 2.
func New(dev *device.Device, surface Surface, cfg Config) (*Swapchain, error) {
	if cfg.ImageCount == 0 {
		cfg.ImageCount = 2
	}
	if cfg.DepthImages < 1 {
		cfg.DepthImages = 1
	}
	if cfg.Log == nil {
		cfg.Log = dev.Log()
	}
	s := &Swapchain{
		device:  dev,
		surface: surface,
		cfg:     cfg,
	}
	if err := s.create(); err != nil {
		return nil, err
	}
	return s, nil
}

// SurfaceExtent queries the live drawable size of the surface.
func (s *Swapchain) SurfaceExtent() gfx.Extent2D {
	w, h := s.surface.DrawableSize()
	return gfx.Extent2D{Width: w, Height: h}
}

func (s *Swapchain) create() error {
	formats, err := s.device.Driver().SurfaceFormats(s.surface.Handle())
	if err != nil {
		return errors.Wrap(err, "surface formats")
	}
	var supported bool
	for _, f := range formats {
		if f.Format == ColorFormat && f.ColorSpace == ColorSpace {
			supported = true
			break
		}
	}
	if !supported {
		return ErrFormatUnsupported
	}

	extent := s.SurfaceExtent()
	if extent.Width == 0 || extent.Height == 0 {
		return errors.Errorf("create swapchain: surface is %dx%d", extent.Width, extent.Height)
	}

	swapchain, err := s.device.Driver().CreateSwapchain(gfx.SwapchainInfo{
		Surface:       s.surface.Handle(),
		MinImageCount: s.cfg.ImageCount,
		Format:        ColorFormat,
		ColorSpace:    ColorSpace,
		Extent:        extent,
		Usage:         gfx.ImageUsageColorAttachment,
		PresentMode:   s.cfg.PresentMode,
		Old:           s.swapchain,
	})
	if err != nil {
		return errors.Wrap(err, "create swapchain")
	}
	if s.swapchain != gfx.NullHandle {
		s.device.Driver().DestroySwapchain(s.swapchain)
	}
	s.swapchain = swapchain
	s.format = ColorFormat
	s.extent = extent

	if s.images, err = s.device.Driver().SwapchainImages(swapchain); err != nil {
		return errors.Wrap(err, "swapchain images")
	}
	for _, img := range s.images {
		view, err := s.device.CreateImageView(img, ColorFormat, gfx.ImageAspectColor)
		if err != nil {
			return err
		}
		s.views = append(s.views, view)
	}

	for i := 0; i < s.cfg.DepthImages; i++ {
		depth, err := s.device.Create2DImage(extent, DepthFormat,
			gfx.ImageUsageDepthStencilAttachment, gfx.ImageAspectDepth, gfx.MemoryGPUOnly)
		if err != nil {
			return err
		}
		s.depths = append(s.depths, depth)
	}

	s.cfg.Log.WithFields(log.Fields{
		"width":  extent.Width,
		"height": extent.Height,
		"images": len(s.images),
	}).Info("swapchain created")
	return nil
}

func (s *Swapchain) releaseAttachments() {
	for _, v := range s.views {
		v.Release()
	}
	s.views = nil
	s.images = nil
	for _, d := range s.depths {
		d.Release()
	}
	s.depths = nil
}

// Recreate waits for the device to go idle and rebuilds the swapchain
// at the current drawable size, handing the old one to the driver for
// reuse. Must be called when acquire or present report the swapchain
// out of date, or when the drawable size changed.
func (s *Swapchain) Recreate() error {
	if err := s.device.WaitIdle(); err != nil {
		return err
	}
	s.releaseAttachments()
	return s.create()
}

// Stale reports whether the drawable size no longer matches the extent.
func (s *Swapchain) Stale() bool {
	return s.SurfaceExtent() != s.extent
}

// Handle returns the swapchain handle.
func (s *Swapchain) Handle() gfx.Swapchain {
	return s.swapchain
}

// Format returns the color format of the swapchain images.
func (s *Swapchain) Format() gfx.Format {
	return s.format
}

// Extent returns the size of the swapchain images.
func (s *Swapchain) Extent() gfx.Extent2D {
	return s.extent
}

// ImageCount returns the number of swapchain images.
func (s *Swapchain) ImageCount() int {
	return len(s.images)
}

// Image returns the swapchain image at index.
func (s *Swapchain) Image(index uint32) gfx.Image {
	return s.images[index]
}

// View returns the view of the swapchain image at index.
func (s *Swapchain) View(index uint32) *device.ImageView {
	return s.views[index]
}

// Depth returns the depth attachment of the given frame slot.
func (s *Swapchain) Depth(slot int) *device.Image {
	return s.depths[slot%len(s.depths)]
}

// Release implements gfx.Releasable
func (s *Swapchain) Release() {
	if s == nil || s.swapchain == gfx.NullHandle {
		return
	}
	s.releaseAttachments()
	s.device.Driver().DestroySwapchain(s.swapchain)
	s.swapchain = gfx.NullHandle
}
