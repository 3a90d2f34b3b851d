// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"unsafe"

	"github.com/devblok/vulkan3d/gfx"
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

// Memory is a dedicated device memory allocation.
type Memory struct {
	device vk.Device
	memory vk.DeviceMemory
	size   uint64
	mapped unsafe.Pointer
}

// Map maps the whole allocation into host address space.
func (m *Memory) Map() ([]byte, error) {
	if m.mapped == nil {
		var ptr unsafe.Pointer
		if err := vk.Error(vk.MapMemory(m.device, m.memory, 0, vk.DeviceSize(m.size), 0, &ptr)); err != nil {
			return nil, errors.Wrap(err, "vk.MapMemory()")
		}
		m.mapped = ptr
	}
	return unsafe.Slice((*byte)(m.mapped), m.size), nil
}

// Unmap unmaps previously mapped memory.
func (m *Memory) Unmap() {
	if m.mapped == nil {
		return
	}
	vk.UnmapMemory(m.device, m.memory)
	m.mapped = nil
}

// Release frees memory, unmapping it first if needed.
func (m *Memory) Release() {
	m.Unmap()
	vk.FreeMemory(m.device, m.memory, nil)
}

// NewMemoryAllocator creates a new memory allocator. Allocates for the logical device,
// reads memory properties of the physical device to influence allocation.
func NewMemoryAllocator(device vk.Device, phyDevice vk.PhysicalDevice) *MemoryAllocator {
	var memProperties vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(phyDevice, &memProperties)
	memProperties.Deref()

	return &MemoryAllocator{
		device:        device,
		memProperties: memProperties,
	}
}

// MemoryAllocator is responsible returning usable
// memory for any resources that may need it.
type MemoryAllocator struct {
	device        vk.Device
	memProperties vk.PhysicalDeviceMemoryProperties
}

// Malloc returns a usable memory chunk ready for use.
func (ma *MemoryAllocator) Malloc(req vk.MemoryRequirements, usage gfx.MemoryUsage) (*Memory, error) {
	memTypeIdx, err := ma.findMemoryType(req.MemoryTypeBits, memoryProperties(usage))
	if err != nil {
		return nil, err
	}

	mai := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  req.Size,
		MemoryTypeIndex: memTypeIdx,
	}

	var memory vk.DeviceMemory
	if err := vk.Error(vk.AllocateMemory(ma.device, &mai, nil, &memory)); err != nil {
		return nil, errors.Wrap(err, "vk.AllocateMemory()")
	}
	return &Memory{
		device: ma.device,
		memory: memory,
		size:   uint64(req.Size),
	}, nil
}

func (ma *MemoryAllocator) findMemoryType(filter uint32, prop vk.MemoryPropertyFlags) (uint32, error) {
	for idx := uint32(0); idx < ma.memProperties.MemoryTypeCount; idx++ {
		ma.memProperties.MemoryTypes[idx].Deref()
		if filter&(1<<idx) != 0 && (ma.memProperties.MemoryTypes[idx].PropertyFlags&prop) == prop {
			return idx, nil
		}
	}
	return 0, errors.New("vkr: suitable memory type not found")
}

func memoryProperties(usage gfx.MemoryUsage) vk.MemoryPropertyFlags {
	if usage == gfx.MemoryCPUToGPU {
		return vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit)
	}
	return vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit)
}

// CreateBuffer implements gfx.Driver
func (d *Driver) CreateBuffer(size uint64, usage gfx.BufferUsage, memory gfx.MemoryUsage) (gfx.Buffer, gfx.Allocation, error) {
	bci := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       vk.BufferUsageFlags(usage),
		SharingMode: vk.SharingModeExclusive,
	}
	var buffer vk.Buffer
	if err := vk.Error(vk.CreateBuffer(d.device, &bci, nil, &buffer)); err != nil {
		return 0, 0, errors.Wrap(err, "vk.CreateBuffer()")
	}

	var req vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(d.device, buffer, &req)
	req.Deref()

	mem, err := d.allocator.Malloc(req, memory)
	if err != nil {
		vk.DestroyBuffer(d.device, buffer, nil)
		return 0, 0, err
	}
	if err := vk.Error(vk.BindBufferMemory(d.device, buffer, mem.memory, 0)); err != nil {
		mem.Release()
		vk.DestroyBuffer(d.device, buffer, nil)
		return 0, 0, errors.Wrap(err, "vk.BindBufferMemory()")
	}

	return gfx.Buffer(d.buffers.put(buffer)), gfx.Allocation(d.allocations.put(mem)), nil
}

// DestroyBuffer implements gfx.Driver
func (d *Driver) DestroyBuffer(buffer gfx.Buffer, alloc gfx.Allocation) {
	if b, ok := d.buffers.take(uint64(buffer)); ok {
		vk.DestroyBuffer(d.device, b, nil)
	}
	if m, ok := d.allocations.take(uint64(alloc)); ok {
		m.Release()
	}
}

// CreateImage implements gfx.Driver
func (d *Driver) CreateImage(info gfx.ImageInfo, memory gfx.MemoryUsage) (gfx.Image, gfx.Allocation, error) {
	ici := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Format:    vk.Format(info.Format),
		Extent: vk.Extent3D{
			Width:  info.Extent.Width,
			Height: info.Extent.Height,
			Depth:  info.Extent.Depth,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Samples:       vk.SampleCount1Bit,
		Tiling:        vk.ImageTilingOptimal,
		Usage:         vk.ImageUsageFlags(info.Usage),
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}
	var image vk.Image
	if err := vk.Error(vk.CreateImage(d.device, &ici, nil, &image)); err != nil {
		return 0, 0, errors.Wrap(err, "vk.CreateImage()")
	}

	var req vk.MemoryRequirements
	vk.GetImageMemoryRequirements(d.device, image, &req)
	req.Deref()

	mem, err := d.allocator.Malloc(req, memory)
	if err != nil {
		vk.DestroyImage(d.device, image, nil)
		return 0, 0, err
	}
	if err := vk.Error(vk.BindImageMemory(d.device, image, mem.memory, 0)); err != nil {
		mem.Release()
		vk.DestroyImage(d.device, image, nil)
		return 0, 0, errors.Wrap(err, "vk.BindImageMemory()")
	}

	return gfx.Image(d.images.put(image)), gfx.Allocation(d.allocations.put(mem)), nil
}

// DestroyImage implements gfx.Driver
func (d *Driver) DestroyImage(image gfx.Image, alloc gfx.Allocation) {
	if i, ok := d.images.take(uint64(image)); ok {
		vk.DestroyImage(d.device, i, nil)
	}
	if m, ok := d.allocations.take(uint64(alloc)); ok {
		m.Release()
	}
}

// MapMemory implements gfx.Driver
func (d *Driver) MapMemory(alloc gfx.Allocation) ([]byte, error) {
	m := d.allocations.get(uint64(alloc))
	if m == nil {
		return nil, errors.Errorf("vkr: unknown allocation %d", alloc)
	}
	return m.Map()
}

// UnmapMemory implements gfx.Driver
func (d *Driver) UnmapMemory(alloc gfx.Allocation) {
	if m := d.allocations.get(uint64(alloc)); m != nil {
		m.Unmap()
	}
}
