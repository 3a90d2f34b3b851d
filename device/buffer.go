// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package device

import (
	"github.com/devblok/vulkan3d/gfx"
	"github.com/pkg/errors"
)

// ErrAlreadyMapped is returned when mapping a buffer that is mapped.
var ErrAlreadyMapped = errors.New("buffer already mapped")

// Buffer is a linear region of host-visible GPU memory.
type Buffer struct {
	device *Device

	buffer gfx.Buffer
	alloc  gfx.Allocation
	size   uint64
	mapped []byte
}

// CreateBuffer allocates a host-visible, host-coherent buffer of size bytes.
func (d *Device) CreateBuffer(size uint64, usage gfx.BufferUsage) (*Buffer, error) {
	if size == 0 {
		return nil, errors.New("create buffer: zero size")
	}
	buffer, alloc, err := d.allocator.createBuffer(size, usage, gfx.MemoryCPUToGPU)
	if err != nil {
		return nil, err
	}
	return &Buffer{
		device: d,
		buffer: buffer,
		alloc:  alloc,
		size:   size,
	}, nil
}

// Handle returns the buffer handle.
func (b *Buffer) Handle() gfx.Buffer {
	return b.buffer
}

// Size returns the size of the buffer in bytes.
func (b *Buffer) Size() uint64 {
	return b.size
}

// Map maps the buffer memory. Writes through the returned slice are
// visible to the GPU without a flush. The buffer may be mapped from
// one place at a time.
func (b *Buffer) Map() ([]byte, error) {
	if b.mapped != nil {
		return nil, ErrAlreadyMapped
	}
	mem, err := b.device.driver.MapMemory(b.alloc)
	if err != nil {
		return nil, errors.Wrap(err, "map memory")
	}
	b.mapped = mem[:b.size]
	return b.mapped, nil
}

// Mapped reports whether the buffer is currently mapped.
func (b *Buffer) Mapped() bool {
	return b.mapped != nil
}

// Unmap unmaps the buffer. The slice returned by Map must not be used after.
func (b *Buffer) Unmap() {
	if b.mapped == nil {
		return
	}
	b.device.driver.UnmapMemory(b.alloc)
	b.mapped = nil
}

// Write copies data to the start of the buffer.
func (b *Buffer) Write(data []byte) error {
	if uint64(len(data)) > b.size {
		return errors.Errorf("write of %d bytes into buffer of %d", len(data), b.size)
	}
	mem, err := b.Map()
	if err != nil {
		return err
	}
	copy(mem, data)
	b.Unmap()
	return nil
}

// Release implements gfx.Releasable
func (b *Buffer) Release() {
	if b == nil || b.buffer == gfx.NullHandle {
		return
	}
	b.Unmap()
	b.device.allocator.destroyBuffer(b.buffer, b.alloc, b.size)
	b.buffer = gfx.NullHandle
	b.alloc = gfx.NullHandle
}
