// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package device_test

import (
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/devblok/vulkan3d/device"
	"github.com/devblok/vulkan3d/gfx"
)

func TestPoolSizesAggregateByType(t *testing.T) {
	c := qt.New(t)
	sizes := device.PoolSizes([]gfx.DescriptorBinding{
		{Binding: 0, Type: gfx.DescriptorTypeUniformBuffer, Count: 1, Stages: gfx.ShaderStageVertex},
		{Binding: 1, Type: gfx.DescriptorTypeUniformBuffer, Count: 1, Stages: gfx.ShaderStageFragment},
	})
	c.Assert(sizes, qt.DeepEquals, []gfx.PoolSize{{Type: gfx.DescriptorTypeUniformBuffer, Count: 2}})
}

func TestPoolSizesKeepOrder(t *testing.T) {
	c := qt.New(t)
	sizes := device.PoolSizes([]gfx.DescriptorBinding{
		{Binding: 0, Type: gfx.DescriptorTypeCombinedImageSampler, Count: 2},
		{Binding: 1, Type: gfx.DescriptorTypeUniformBuffer},
		{Binding: 2, Type: gfx.DescriptorTypeCombinedImageSampler, Count: 1},
	})
	c.Assert(sizes, qt.DeepEquals, []gfx.PoolSize{
		{Type: gfx.DescriptorTypeCombinedImageSampler, Count: 3},
		{Type: gfx.DescriptorTypeUniformBuffer, Count: 1},
	})
}

func TestAllocateDescriptorSetPoolSizing(t *testing.T) {
	c := qt.New(t)
	dev, drv := newDevice(c)

	layout, err := dev.CreateDescriptorSetLayout([]gfx.DescriptorBinding{
		{Binding: 0, Type: gfx.DescriptorTypeUniformBuffer, Count: 1, Stages: gfx.ShaderStageVertex},
		{Binding: 1, Type: gfx.DescriptorTypeUniformBuffer, Count: 1, Stages: gfx.ShaderStageVertex},
	})
	c.Assert(err, qt.IsNil)
	defer layout.Release()

	set, err := dev.AllocateDescriptorSet(layout)
	c.Assert(err, qt.IsNil)
	defer set.Release()

	var pool gfx.DescriptorPool
	for _, call := range drv.Calls {
		if call.Op == "CreateDescriptorPool" {
			pool = gfx.DescriptorPool(call.Handle)
		}
	}
	maxSets, sizes := drv.PoolSizes(pool)
	c.Assert(maxSets, qt.Equals, uint32(1))
	c.Assert(sizes, qt.DeepEquals, []gfx.PoolSize{{Type: gfx.DescriptorTypeUniformBuffer, Count: 2}})
}

func TestDescriptorSetWrites(t *testing.T) {
	c := qt.New(t)
	dev, drv := newDevice(c)

	layout, err := dev.CreateDescriptorSetLayout([]gfx.DescriptorBinding{
		{Binding: 0, Type: gfx.DescriptorTypeUniformBuffer, Count: 1, Stages: gfx.ShaderStageVertex},
		{Binding: 1, Type: gfx.DescriptorTypeCombinedImageSampler, Count: 1, Stages: gfx.ShaderStageFragment},
	})
	c.Assert(err, qt.IsNil)
	set, err := dev.AllocateDescriptorSet(layout)
	c.Assert(err, qt.IsNil)

	buf, err := dev.CreateBuffer(192, gfx.BufferUsageUniform)
	c.Assert(err, qt.IsNil)
	tex, err := dev.UploadImage(make([]byte, 4), 1, 1)
	c.Assert(err, qt.IsNil)
	sampler, err := dev.CreateSampler()
	c.Assert(err, qt.IsNil)

	c.Assert(set.WriteBuffer(0, buf), qt.IsNil)
	c.Assert(set.WriteImage(1, sampler, tex.ImageView), qt.IsNil)
	c.Assert(set.WriteBuffer(7, buf), qt.ErrorMatches, "descriptor set has no binding 7")
	c.Assert(drv.Violations, qt.HasLen, 0)

	set.Release()
	set.Release()
	layout.Release()
	sampler.Release()
	tex.Release()
	buf.Release()
	c.Assert(drv.Violations, qt.HasLen, 0)

	live := drv.Live()
	delete(live, "command pool")
	delete(live, "queue")
	c.Assert(live, qt.HasLen, 0)
}

func TestDescriptorSetLayoutWithoutBindings(t *testing.T) {
	c := qt.New(t)
	dev, _ := newDevice(c)
	_, err := dev.CreateDescriptorSetLayout(nil)
	c.Assert(err, qt.ErrorMatches, "create descriptor set layout: no bindings")
}
