// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package device_test

import (
	"encoding/binary"
	"math"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/devblok/vulkan3d/device"
	"github.com/devblok/vulkan3d/gfx"
	"github.com/devblok/vulkan3d/gfx/gfxtest"
)

func newDevice(c *qt.C) (*device.Device, *gfxtest.Driver) {
	drv := gfxtest.New()
	logger, _ := test.NewNullLogger()
	dev, err := device.New(drv, device.Config{Log: logger})
	c.Assert(err, qt.IsNil)
	return dev, drv
}

func TestSelectsFirstDiscreteDevice(t *testing.T) {
	c := qt.New(t)
	drv := gfxtest.New()
	drv.Devices = []gfx.PhysicalDeviceInfo{
		{Handle: 1, Name: "integrated", Type: gfx.DeviceTypeIntegratedGpu,
			QueueFamilies: []gfx.QueueFamily{{Flags: gfx.QueueGraphics, Count: 1}}},
		{Handle: 2, Name: "discrete", Type: gfx.DeviceTypeDiscreteGpu,
			QueueFamilies: []gfx.QueueFamily{{Flags: gfx.QueueTransfer, Count: 1}, {Flags: gfx.QueueGraphics, Count: 1}}},
		{Handle: 3, Name: "second discrete", Type: gfx.DeviceTypeDiscreteGpu,
			QueueFamilies: []gfx.QueueFamily{{Flags: gfx.QueueGraphics, Count: 1}}},
	}
	dev, err := device.New(drv, device.Config{})
	c.Assert(err, qt.IsNil)
	c.Assert(dev.Physical().Name, qt.Equals, "discrete")
	c.Assert(dev.QueueFamily(), qt.Equals, uint32(1))
}

func TestNoDiscreteDevice(t *testing.T) {
	c := qt.New(t)
	drv := gfxtest.New()
	drv.Devices[0].Type = gfx.DeviceTypeIntegratedGpu
	_, err := device.New(drv, device.Config{})
	c.Assert(err, qt.Equals, device.ErrNoSuitableDevice)
	c.Assert(drv.Count("OpenDevice"), qt.Equals, 0)
}

func TestNoGraphicsQueue(t *testing.T) {
	c := qt.New(t)
	drv := gfxtest.New()
	drv.Devices[0].QueueFamilies = []gfx.QueueFamily{{Flags: gfx.QueueCompute, Count: 4}}
	_, err := device.New(drv, device.Config{})
	c.Assert(err, qt.Equals, device.ErrNoGraphicsQueue)
}

func TestCreate2DDepthImage(t *testing.T) {
	c := qt.New(t)
	dev, drv := newDevice(c)

	img, err := dev.Create2DImage(gfx.Extent2D{Width: 64, Height: 64}, gfx.FormatD32Sfloat,
		gfx.ImageUsageDepthStencilAttachment, gfx.ImageAspectDepth, gfx.MemoryGPUOnly)
	c.Assert(err, qt.IsNil)

	c.Assert(drv.ViewImage(img.Handle()), qt.Equals, img.Image())
	info := drv.ImageInfo(img.Image())
	c.Assert(info.Extent, qt.Equals, gfx.Extent3D{Width: 64, Height: 64, Depth: 1})
	c.Assert(info.Format, qt.Equals, gfx.FormatD32Sfloat)
	c.Assert(img.Extent(), qt.Equals, info.Extent)
	c.Assert(img.Format(), qt.Equals, gfx.FormatD32Sfloat)

	img.Release()
	img.Release()
	c.Assert(drv.Live()["image"], qt.Equals, 0)
	c.Assert(drv.Live()["view"], qt.Equals, 0)
	c.Assert(drv.Violations, qt.HasLen, 0)
}

func TestCreate2DImageZeroExtent(t *testing.T) {
	c := qt.New(t)
	dev, drv := newDevice(c)
	_, err := dev.Create2DImage(gfx.Extent2D{Width: 0, Height: 64}, gfx.FormatD32Sfloat,
		gfx.ImageUsageDepthStencilAttachment, gfx.ImageAspectDepth, gfx.MemoryGPUOnly)
	c.Assert(err, qt.ErrorMatches, "create image: invalid extent 0x64")
	c.Assert(drv.Count("CreateImage"), qt.Equals, 0)
}

func TestLayoutTransitionMatchesSubsequentUse(t *testing.T) {
	c := qt.New(t)
	cases := []struct {
		name   string
		format gfx.Format
		usage  gfx.ImageUsage
		aspect gfx.ImageAspect
		layout gfx.ImageLayout
	}{
		{"depth", gfx.FormatD32Sfloat, gfx.ImageUsageDepthStencilAttachment, gfx.ImageAspectDepth, gfx.ImageLayoutDepthStencilAttachmentOptimal},
		{"color", gfx.FormatB8G8R8A8Srgb, gfx.ImageUsageColorAttachment, gfx.ImageAspectColor, gfx.ImageLayoutColorAttachmentOptimal},
		{"transfer", gfx.FormatR8G8B8A8Srgb, gfx.ImageUsageTransferDst | gfx.ImageUsageSampled, gfx.ImageAspectColor, gfx.ImageLayoutTransferDstOptimal},
		{"sampled", gfx.FormatR8G8B8A8Unorm, gfx.ImageUsageSampled, gfx.ImageAspectColor, gfx.ImageLayoutShaderReadOnlyOptimal},
	}
	for _, tc := range cases {
		c.Run(tc.name, func(c *qt.C) {
			dev, drv := newDevice(c)
			img, err := dev.Create2DImage(gfx.Extent2D{Width: 16, Height: 8}, tc.format, tc.usage, tc.aspect, gfx.MemoryGPUOnly)
			c.Assert(err, qt.IsNil)
			defer img.Release()

			cmd, err := dev.CreateCommandBuffer()
			c.Assert(err, qt.IsNil)
			c.Assert(drv.BeginCommandBuffer(cmd, true), qt.IsNil)
			dev.RecordLayoutTransition(cmd, gfx.ImageBarrier{
				Image:     img.Image(),
				OldLayout: gfx.ImageLayoutUndefined,
				NewLayout: tc.layout,
				Aspect:    tc.aspect,
			}, gfx.PipelineStageTopOfPipe, gfx.PipelineStageAllCommands)

			c.Assert(drv.Layout(img.Image()), qt.Equals, tc.layout)
			c.Assert(drv.Violations, qt.HasLen, 0)
		})
	}
}

func TestLayoutTransitionFromWrongLayout(t *testing.T) {
	c := qt.New(t)
	dev, drv := newDevice(c)
	img, err := dev.Create2DImage(gfx.Extent2D{Width: 4, Height: 4}, gfx.FormatR8G8B8A8Srgb,
		gfx.ImageUsageSampled, gfx.ImageAspectColor, gfx.MemoryGPUOnly)
	c.Assert(err, qt.IsNil)

	cmd, err := dev.CreateCommandBuffer()
	c.Assert(err, qt.IsNil)
	c.Assert(drv.BeginCommandBuffer(cmd, true), qt.IsNil)
	dev.RecordLayoutTransition(cmd, gfx.ImageBarrier{
		Image:     img.Image(),
		OldLayout: gfx.ImageLayoutTransferDstOptimal,
		NewLayout: gfx.ImageLayoutShaderReadOnlyOptimal,
		Aspect:    gfx.ImageAspectColor,
	}, gfx.PipelineStageTransfer, gfx.PipelineStageFragmentShader)
	c.Assert(drv.Violations, qt.HasLen, 1)
}

func TestUploadImage(t *testing.T) {
	c := qt.New(t)
	dev, drv := newDevice(c)

	pixels := make([]byte, 8*4*4)
	img, err := dev.UploadImage(pixels, 8, 4)
	c.Assert(err, qt.IsNil)
	c.Assert(drv.Layout(img.Image()), qt.Equals, gfx.ImageLayoutShaderReadOnlyOptimal)
	c.Assert(drv.Count("CmdCopyBufferToImage"), qt.Equals, 1)
	c.Assert(drv.Count("QueueWaitIdle"), qt.Equals, 1)
	c.Assert(drv.Violations, qt.HasLen, 0)

	// staging buffer and transient command buffer are gone
	c.Assert(drv.Live()["buffer"], qt.Equals, 0)
	c.Assert(drv.Live()["command buffer"], qt.Equals, 0)
	c.Assert(dev.Allocator().Live(), qt.Equals, 1)

	img.Release()
	c.Assert(dev.Allocator().Live(), qt.Equals, 0)
}

func TestUploadImageSizeMismatch(t *testing.T) {
	c := qt.New(t)
	dev, _ := newDevice(c)
	_, err := dev.UploadImage(make([]byte, 10), 2, 2)
	c.Assert(err, qt.ErrorMatches, `upload image: 10 bytes for 2x2 RGBA pixels`)
}

func TestBufferMatrixRoundTrip(t *testing.T) {
	c := qt.New(t)
	dev, _ := newDevice(c)

	m := mgl32.Perspective(mgl32.DegToRad(45), 4.0/3.0, 0.1, 10).Mul4(mgl32.Translate3D(1, -2, 3.5))
	buf, err := dev.CreateBuffer(uint64(len(m)*4), gfx.BufferUsageUniform)
	c.Assert(err, qt.IsNil)
	defer buf.Release()

	mem, err := buf.Map()
	c.Assert(err, qt.IsNil)
	for i, f := range m {
		binary.LittleEndian.PutUint32(mem[i*4:], math.Float32bits(f))
	}
	var back mgl32.Mat4
	for i := range back {
		back[i] = math.Float32frombits(binary.LittleEndian.Uint32(mem[i*4:]))
	}
	buf.Unmap()
	c.Assert(back, qt.Equals, m)
}

func TestBufferMapTwice(t *testing.T) {
	c := qt.New(t)
	dev, drv := newDevice(c)
	buf, err := dev.CreateBuffer(64, gfx.BufferUsageVertex)
	c.Assert(err, qt.IsNil)

	_, err = buf.Map()
	c.Assert(err, qt.IsNil)
	_, err = buf.Map()
	c.Assert(err, qt.Equals, device.ErrAlreadyMapped)

	buf.Release()
	buf.Release()
	c.Assert(drv.Violations, qt.HasLen, 0)
	c.Assert(dev.Allocator().Used(), qt.Equals, uint64(0))
}

func TestBufferWriteTooLarge(t *testing.T) {
	c := qt.New(t)
	dev, _ := newDevice(c)
	buf, err := dev.CreateBuffer(4, gfx.BufferUsageIndex)
	c.Assert(err, qt.IsNil)
	defer buf.Release()
	c.Assert(buf.Write(make([]byte, 5)), qt.ErrorMatches, "write of 5 bytes into buffer of 4")
	c.Assert(buf.Write([]byte{1, 2, 3, 4}), qt.IsNil)
	c.Assert(buf.Mapped(), qt.IsFalse)
}

func TestReleaseReportsLeaks(t *testing.T) {
	c := qt.New(t)
	drv := gfxtest.New()
	logger, hook := test.NewNullLogger()
	dev, err := device.New(drv, device.Config{Log: logger})
	c.Assert(err, qt.IsNil)

	_, err = dev.CreateBuffer(16, gfx.BufferUsageUniform)
	c.Assert(err, qt.IsNil)
	dev.Release()

	entry := hook.LastEntry()
	c.Assert(entry, qt.IsNotNil)
	c.Assert(entry.Level, qt.Equals, logrus.WarnLevel)
	c.Assert(entry.Data["buffer"], qt.Equals, 1)
	c.Assert(drv.Count("CloseDevice"), qt.Equals, 1)
}

func TestSubmitImmediateError(t *testing.T) {
	c := qt.New(t)
	dev, drv := newDevice(c)
	err := dev.SubmitImmediate(func(cmd gfx.CommandBuffer) error {
		return device.ErrAlreadyMapped
	})
	c.Assert(err, qt.Equals, device.ErrAlreadyMapped)
	c.Assert(drv.Count("QueueSubmit"), qt.Equals, 0)
	c.Assert(drv.Live()["command buffer"], qt.Equals, 0)
}
