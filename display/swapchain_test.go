// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package display_test

import (
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/devblok/vulkan3d/device"
	"github.com/devblok/vulkan3d/display"
	"github.com/devblok/vulkan3d/gfx"
	"github.com/devblok/vulkan3d/gfx/gfxtest"
)

type window struct {
	width, height uint32
	surface       gfx.Surface
}

func (w *window) DrawableSize() (uint32, uint32) { return w.width, w.height }
func (w *window) Handle() gfx.Surface            { return w.surface }

func setup(c *qt.C) (*gfxtest.Driver, *device.Device, *window) {
	drv := gfxtest.New()
	logger, _ := test.NewNullLogger()
	dev, err := device.New(drv, device.Config{Log: logger})
	c.Assert(err, qt.IsNil)
	return drv, dev, &window{width: 800, height: 600, surface: drv.Surface()}
}

func TestSwapchainCreate(t *testing.T) {
	c := qt.New(t)
	drv, dev, win := setup(c)

	sc, err := display.New(dev, win, display.DefaultConfig())
	c.Assert(err, qt.IsNil)
	c.Assert(sc.Extent(), qt.Equals, gfx.Extent2D{Width: 800, Height: 600})
	c.Assert(sc.Format(), qt.Equals, gfx.FormatB8G8R8A8Srgb)
	c.Assert(sc.ImageCount(), qt.Equals, 2)
	c.Assert(sc.Stale(), qt.IsFalse)

	info := drv.Swapchain(sc.Handle())
	c.Assert(info.PresentMode, qt.Equals, gfx.PresentModeFifoRelaxed)
	c.Assert(info.Usage, qt.Equals, gfx.ImageUsageColorAttachment)
	c.Assert(info.Old, qt.Equals, gfx.Swapchain(gfx.NullHandle))

	for i := uint32(0); i < 2; i++ {
		c.Assert(drv.ViewImage(sc.View(i).Handle()), qt.Equals, sc.Image(i))
	}
	depth := drv.ImageInfo(sc.Depth(0).Image())
	c.Assert(depth.Format, qt.Equals, gfx.FormatD32Sfloat)
	c.Assert(depth.Extent, qt.Equals, gfx.Extent3D{Width: 800, Height: 600, Depth: 1})
	c.Assert(sc.Depth(0).Aspect(), qt.Equals, gfx.ImageAspectDepth)

	sc.Release()
	sc.Release()
	dev.Release()
	c.Assert(drv.Violations, qt.HasLen, 0)
	for kind, n := range drv.Live() {
		c.Assert(n, qt.Equals, 0, qt.Commentf("%s", kind))
	}
}

func TestSwapchainRecreate(t *testing.T) {
	c := qt.New(t)
	drv, dev, win := setup(c)

	sc, err := display.New(dev, win, display.DefaultConfig())
	c.Assert(err, qt.IsNil)
	defer sc.Release()
	first := sc.Handle()

	win.width, win.height = 1024, 768
	c.Assert(sc.Stale(), qt.IsTrue)

	c.Assert(sc.Recreate(), qt.IsNil)
	c.Assert(sc.Stale(), qt.IsFalse)
	c.Assert(sc.Extent(), qt.Equals, gfx.Extent2D{Width: 1024, Height: 768})
	c.Assert(drv.Swapchain(sc.Handle()).Old, qt.Equals, first)
	c.Assert(drv.Count("WaitIdle"), qt.Equals, 1)
	c.Assert(drv.ImageInfo(sc.Depth(0).Image()).Extent.Width, qt.Equals, uint32(1024))

	// Recreating at an unchanged size gives the same swapchain shape and
	// leaves the same amount of objects behind.
	live := drv.Live()
	count, format := sc.ImageCount(), sc.Format()
	c.Assert(sc.Recreate(), qt.IsNil)
	c.Assert(sc.ImageCount(), qt.Equals, count)
	c.Assert(sc.Format(), qt.Equals, format)
	c.Assert(sc.Extent(), qt.Equals, gfx.Extent2D{Width: 1024, Height: 768})
	c.Assert(drv.Live(), qt.DeepEquals, live)
	c.Assert(live["swapchain"], qt.Equals, 1)
	c.Assert(live["view"], qt.Equals, 3)
	c.Assert(drv.Violations, qt.HasLen, 0)
}

func TestSwapchainImageCount(t *testing.T) {
	c := qt.New(t)
	_, dev, win := setup(c)

	sc, err := display.New(dev, win, display.Config{ImageCount: 3})
	c.Assert(err, qt.IsNil)
	defer sc.Release()
	c.Assert(sc.ImageCount(), qt.Equals, 3)
}

func TestSwapchainDepthPerFrame(t *testing.T) {
	c := qt.New(t)
	drv, dev, win := setup(c)

	cfg := display.DefaultConfig()
	cfg.DepthImages = 2
	sc, err := display.New(dev, win, cfg)
	c.Assert(err, qt.IsNil)
	c.Assert(sc.Depth(0).Image(), qt.Not(qt.Equals), sc.Depth(1).Image())
	c.Assert(sc.Depth(2), qt.Equals, sc.Depth(0))

	c.Assert(sc.Recreate(), qt.IsNil)
	c.Assert(sc.Depth(0).Image(), qt.Not(qt.Equals), sc.Depth(1).Image())

	sc.Release()
	dev.Release()
	c.Assert(drv.Violations, qt.HasLen, 0)
	for kind, n := range drv.Live() {
		c.Assert(n, qt.Equals, 0, qt.Commentf("%s", kind))
	}
}

func TestSwapchainFormatUnsupported(t *testing.T) {
	c := qt.New(t)
	drv, dev, win := setup(c)
	drv.Formats = []gfx.SurfaceFormat{{Format: gfx.FormatR8G8B8A8Srgb, ColorSpace: gfx.ColorSpaceSrgbNonlinear}}

	_, err := display.New(dev, win, display.DefaultConfig())
	c.Assert(err, qt.Equals, display.ErrFormatUnsupported)
	c.Assert(drv.Count("CreateSwapchain"), qt.Equals, 0)
}

func TestSwapchainZeroSurface(t *testing.T) {
	c := qt.New(t)
	_, dev, win := setup(c)
	win.width = 0

	_, err := display.New(dev, win, display.DefaultConfig())
	c.Assert(err, qt.ErrorMatches, "create swapchain: surface is 0x600")
}
