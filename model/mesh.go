// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package model

import (
	"unsafe"

	"github.com/devblok/vulkan3d/device"
	"github.com/devblok/vulkan3d/gfx"
	glm "github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
)

// MeshBindings is the layout of descriptor set 0: the ProjectionData
// uniform buffer read by the vertex stage.
var MeshBindings = []gfx.DescriptorBinding{{
	Binding: 0,
	Type:    gfx.DescriptorTypeUniformBuffer,
	Count:   1,
	Stages:  gfx.ShaderStageVertex,
}}

type uniformSlot struct {
	buffer *device.Buffer
	mapped []byte
	set    *device.DescriptorSet
}

// Mesh owns vertex and index buffers and the uniform data needed to
// draw them. It keeps one persistently mapped uniform buffer per frame
// in flight and uses them in turn, one per RecordDraw, so it must be
// drawn at most once per frame. A Model claims the mesh it is created
// with for that reason.
type Mesh struct {
	device *device.Device
	owner  *Model

	vertices   *device.Buffer
	indices    *device.Buffer
	indexCount uint32

	slots []uniformSlot
	next  int
}

// NewMesh uploads vertices and indices and prepares framesInFlight
// uniform buffers with descriptor sets of layout, which must declare
// MeshBindings.
func NewMesh(dev *device.Device, layout *device.DescriptorSetLayout, vertices []Vertex, indices []uint32, framesInFlight int) (_ *Mesh, err error) {
	if len(vertices) == 0 || len(indices) == 0 {
		return nil, errors.New("mesh has no geometry")
	}
	if framesInFlight < 1 {
		framesInFlight = 1
	}

	m := &Mesh{device: dev, indexCount: uint32(len(indices))}
	defer func() {
		if err != nil {
			m.Release()
		}
	}()

	vertexBytes := unsafe.Slice((*byte)(unsafe.Pointer(&vertices[0])), len(vertices)*int(unsafe.Sizeof(Vertex{})))
	if m.vertices, err = dev.CreateBuffer(uint64(len(vertexBytes)), gfx.BufferUsageVertex); err != nil {
		return nil, err
	}
	if err = m.vertices.Write(vertexBytes); err != nil {
		return nil, err
	}

	indexBytes := unsafe.Slice((*byte)(unsafe.Pointer(&indices[0])), len(indices)*4)
	if m.indices, err = dev.CreateBuffer(uint64(len(indexBytes)), gfx.BufferUsageIndex); err != nil {
		return nil, err
	}
	if err = m.indices.Write(indexBytes); err != nil {
		return nil, err
	}

	for i := 0; i < framesInFlight; i++ {
		m.slots = append(m.slots, uniformSlot{})
		slot := &m.slots[i]
		if slot.buffer, err = dev.CreateBuffer(uint64(ProjectionDataSize), gfx.BufferUsageUniform); err != nil {
			return nil, err
		}
		if slot.mapped, err = slot.buffer.Map(); err != nil {
			return nil, err
		}
		if slot.set, err = dev.AllocateDescriptorSet(layout); err != nil {
			return nil, err
		}
		if err = slot.set.WriteBuffer(0, slot.buffer); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// IndexCount returns the number of indices drawn.
func (m *Mesh) IndexCount() uint32 {
	return m.indexCount
}

// RecordDraw writes the projection data of an object placed by world
// into the next uniform buffer, then binds it at set 0 together with
// the vertex and index buffers and records an indexed draw.
func (m *Mesh) RecordDraw(cmd gfx.CommandBuffer, layout gfx.PipelineLayout, world, view, projection glm.Mat4) error {
	if len(m.slots) == 0 {
		return errors.New("draw of released mesh")
	}
	slot := m.slots[m.next]
	m.next = (m.next + 1) % len(m.slots)

	data := NewProjectionData(world, view, projection)
	data.Put(slot.mapped)

	drv := m.device.Driver()
	drv.CmdBindDescriptorSets(cmd, layout, 0, []gfx.DescriptorSet{slot.set.Handle()})
	drv.CmdBindVertexBuffers(cmd, 0, []gfx.Buffer{m.vertices.Handle()}, []uint64{0})
	drv.CmdBindIndexBuffer(cmd, m.indices.Handle(), 0, gfx.IndexTypeUint32)
	drv.CmdDrawIndexed(cmd, m.indexCount, 1, 0, 0, 0)
	return nil
}

// Release implements gfx.Releasable
func (m *Mesh) Release() {
	for _, slot := range m.slots {
		slot.set.Release()
		slot.buffer.Release()
	}
	m.slots = nil
	m.vertices.Release()
	m.indices.Release()
}
