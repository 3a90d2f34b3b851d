// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package device

import (
	"github.com/devblok/vulkan3d/gfx"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Allocator creates buffers and images together with their memory and
// keeps track of what is still alive. It outlives everything it allocated.
type Allocator struct {
	driver gfx.Driver
	log    log.FieldLogger

	live map[gfx.Allocation]string
	used uint64
}

func newAllocator(driver gfx.Driver, logger log.FieldLogger) *Allocator {
	return &Allocator{
		driver: driver,
		log:    logger,
		live:   make(map[gfx.Allocation]string),
	}
}

// Live returns the number of allocations not yet freed.
func (a *Allocator) Live() int {
	return len(a.live)
}

// Used returns the number of buffer bytes currently allocated.
func (a *Allocator) Used() uint64 {
	return a.used
}

func (a *Allocator) createBuffer(size uint64, usage gfx.BufferUsage, memory gfx.MemoryUsage) (gfx.Buffer, gfx.Allocation, error) {
	buffer, alloc, err := a.driver.CreateBuffer(size, usage, memory)
	if err != nil {
		return gfx.NullHandle, gfx.NullHandle, errors.Wrap(err, "create buffer")
	}
	a.live[alloc] = "buffer"
	a.used += size
	a.log.WithFields(log.Fields{"size": size, "usage": usage}).Debug("buffer allocated")
	return buffer, alloc, nil
}

func (a *Allocator) destroyBuffer(buffer gfx.Buffer, alloc gfx.Allocation, size uint64) {
	if _, ok := a.live[alloc]; !ok {
		return
	}
	delete(a.live, alloc)
	a.used -= size
	a.driver.DestroyBuffer(buffer, alloc)
}

func (a *Allocator) createImage(info gfx.ImageInfo, memory gfx.MemoryUsage) (gfx.Image, gfx.Allocation, error) {
	image, alloc, err := a.driver.CreateImage(info, memory)
	if err != nil {
		return gfx.NullHandle, gfx.NullHandle, errors.Wrap(err, "create image")
	}
	a.live[alloc] = "image"
	a.log.WithFields(log.Fields{
		"width":  info.Extent.Width,
		"height": info.Extent.Height,
		"format": info.Format,
	}).Debug("image allocated")
	return image, alloc, nil
}

func (a *Allocator) destroyImage(image gfx.Image, alloc gfx.Allocation) {
	if _, ok := a.live[alloc]; !ok {
		return
	}
	delete(a.live, alloc)
	a.driver.DestroyImage(image, alloc)
}

func (a *Allocator) report() {
	if len(a.live) == 0 {
		return
	}
	counts := make(log.Fields)
	for _, kind := range a.live {
		n, _ := counts[kind].(int)
		counts[kind] = n + 1
	}
	a.log.WithFields(counts).Warn("allocations leaked")
}
