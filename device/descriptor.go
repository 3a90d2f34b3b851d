// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package device

import (
	"github.com/devblok/vulkan3d/gfx"
	"github.com/pkg/errors"
)

// DescriptorSetLayout declares the bindings of a descriptor set.
type DescriptorSetLayout struct {
	device *Device

	layout   gfx.DescriptorSetLayout
	bindings []gfx.DescriptorBinding
}

// CreateDescriptorSetLayout creates a layout with the given bindings.
func (d *Device) CreateDescriptorSetLayout(bindings []gfx.DescriptorBinding) (*DescriptorSetLayout, error) {
	if len(bindings) == 0 {
		return nil, errors.New("create descriptor set layout: no bindings")
	}
	layout, err := d.driver.CreateDescriptorSetLayout(bindings)
	if err != nil {
		return nil, errors.Wrap(err, "create descriptor set layout")
	}
	return &DescriptorSetLayout{
		device:   d,
		layout:   layout,
		bindings: append([]gfx.DescriptorBinding(nil), bindings...),
	}, nil
}

// Handle returns the layout handle.
func (l *DescriptorSetLayout) Handle() gfx.DescriptorSetLayout {
	return l.layout
}

// Bindings returns the declared bindings.
func (l *DescriptorSetLayout) Bindings() []gfx.DescriptorBinding {
	return l.bindings
}

func (l *DescriptorSetLayout) binding(n uint32) (gfx.DescriptorBinding, bool) {
	for _, b := range l.bindings {
		if b.Binding == n {
			return b, true
		}
	}
	return gfx.DescriptorBinding{}, false
}

// Release implements gfx.Releasable
func (l *DescriptorSetLayout) Release() {
	if l == nil || l.layout == gfx.NullHandle {
		return
	}
	l.device.driver.DestroyDescriptorSetLayout(l.layout)
	l.layout = gfx.NullHandle
}

// PoolSizes aggregates descriptor counts per type, in order of first
// appearance. Bindings of the same type share one entry.
func PoolSizes(bindings []gfx.DescriptorBinding) []gfx.PoolSize {
	var sizes []gfx.PoolSize
	index := make(map[gfx.DescriptorType]int)
	for _, b := range bindings {
		count := b.Count
		if count == 0 {
			count = 1
		}
		if i, ok := index[b.Type]; ok {
			sizes[i].Count += count
			continue
		}
		index[b.Type] = len(sizes)
		sizes = append(sizes, gfx.PoolSize{Type: b.Type, Count: count})
	}
	return sizes
}

// DescriptorSet is a descriptor set together with the pool it was
// allocated from. Every binding of its layout has to be written
// before the set is bound.
type DescriptorSet struct {
	device *Device

	pool   gfx.DescriptorPool
	set    gfx.DescriptorSet
	layout *DescriptorSetLayout
}

// AllocateDescriptorSet creates a pool sized for exactly one set of
// the given layout and allocates that set from it.
func (d *Device) AllocateDescriptorSet(layout *DescriptorSetLayout) (*DescriptorSet, error) {
	pool, err := d.driver.CreateDescriptorPool(1, PoolSizes(layout.bindings))
	if err != nil {
		return nil, errors.Wrap(err, "create descriptor pool")
	}
	set, err := d.driver.AllocateDescriptorSet(pool, layout.layout)
	if err != nil {
		d.driver.DestroyDescriptorPool(pool)
		return nil, errors.Wrap(err, "allocate descriptor set")
	}
	return &DescriptorSet{
		device: d,
		pool:   pool,
		set:    set,
		layout: layout,
	}, nil
}

// Handle returns the set handle.
func (s *DescriptorSet) Handle() gfx.DescriptorSet {
	return s.set
}

// Layout returns the layout the set was allocated with.
func (s *DescriptorSet) Layout() *DescriptorSetLayout {
	return s.layout
}

func (s *DescriptorSet) write(binding uint32, w gfx.DescriptorWrite) error {
	b, ok := s.layout.binding(binding)
	if !ok {
		return errors.Errorf("descriptor set has no binding %d", binding)
	}
	w.Set = s.set
	w.Binding = binding
	w.Type = b.Type
	s.device.driver.UpdateDescriptorSets([]gfx.DescriptorWrite{w})
	return nil
}

// WriteBuffer points binding at the whole of buffer.
func (s *DescriptorSet) WriteBuffer(binding uint32, buffer *Buffer) error {
	return s.write(binding, gfx.DescriptorWrite{
		Buffer: &gfx.BufferDescriptor{
			Buffer: buffer.Handle(),
			Range:  buffer.Size(),
		},
	})
}

// WriteImage points binding at view, sampled by sampler in
// shader-read-only layout.
func (s *DescriptorSet) WriteImage(binding uint32, sampler *Sampler, view *ImageView) error {
	return s.write(binding, gfx.DescriptorWrite{
		Image: &gfx.ImageDescriptor{
			Sampler: sampler.Handle(),
			View:    view.Handle(),
			Layout:  gfx.ImageLayoutShaderReadOnlyOptimal,
		},
	})
}

// Release implements gfx.Releasable. The set is freed with its pool.
func (s *DescriptorSet) Release() {
	if s == nil || s.pool == gfx.NullHandle {
		return
	}
	s.device.driver.DestroyDescriptorPool(s.pool)
	s.pool = gfx.NullHandle
	s.set = gfx.NullHandle
}
