// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package model holds the drawable objects of a scene and the
// entities that look at them.
package model

import (
	"time"
	"unsafe"

	"github.com/devblok/vulkan3d/gfx"
	glm "github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
)

// Vertex is a model vertex
type Vertex struct {
	Pos      glm.Vec3
	Normal   glm.Vec3
	TexCoord glm.Vec2
}

// VertexBindings describes the single interleaved vertex buffer.
var VertexBindings = []gfx.VertexBinding{{
	Binding: 0,
	Stride:  uint32(unsafe.Sizeof(Vertex{})),
}}

// VertexAttributes describes position, normal and texture coordinate
// at locations 0, 1 and 2.
var VertexAttributes = []gfx.VertexAttribute{
	{
		Binding:  0,
		Location: 0,
		Format:   gfx.FormatR32G32B32Sfloat,
		Offset:   uint32(unsafe.Offsetof(Vertex{}.Pos)),
	},
	{
		Binding:  0,
		Location: 1,
		Format:   gfx.FormatR32G32B32Sfloat,
		Offset:   uint32(unsafe.Offsetof(Vertex{}.Normal)),
	},
	{
		Binding:  0,
		Location: 2,
		Format:   gfx.FormatR32G32Sfloat,
		Offset:   uint32(unsafe.Offsetof(Vertex{}.TexCoord)),
	},
}

// ProjectionDataSize is the size of ProjectionData in a uniform buffer.
const ProjectionDataSize = int(unsafe.Sizeof(ProjectionData{}))

// ProjectionData is the per object uniform block read by the vertex
// shader. Matrices are column major and tightly packed.
type ProjectionData struct {
	ObjectToView glm.Mat4
	NormalToView glm.Mat4
	ObjectToClip glm.Mat4
}

// NewProjectionData computes the matrices for an object placed by
// world, seen through view and projected by projection.
func NewProjectionData(world, view, projection glm.Mat4) ProjectionData {
	toView := view.Mul4(world)
	return ProjectionData{
		ObjectToView: toView,
		NormalToView: toView.Inv().Transpose(),
		ObjectToClip: projection.Mul4(toView),
	}
}

// Put copies the uniform block into dst.
func (p *ProjectionData) Put(dst []byte) {
	copy(dst, unsafe.Slice((*byte)(unsafe.Pointer(p)), ProjectionDataSize))
}

// Model pairs a mesh with an optional material and places it in the world.
type Model struct {
	Mesh     *Mesh
	Material *Material

	// Transform is the object to world matrix.
	Transform glm.Mat4

	// Spin rotates the model around its Y axis, in radians per second.
	Spin float32
}

// New creates a model at the world origin. The pipeline samples the
// material at set 1, so a model without one cannot be drawn. The mesh
// is claimed by the first model created with it; materials may be
// shared.
func New(mesh *Mesh, material *Material) *Model {
	m := &Model{
		Mesh:      mesh,
		Material:  material,
		Transform: glm.Ident4(),
	}
	if mesh != nil && mesh.owner == nil {
		mesh.owner = m
	}
	return m
}

// AdvanceTick rotates the model by its spin.
func (m *Model) AdvanceTick(dt time.Duration) {
	if m.Spin == 0 {
		return
	}
	m.Transform = m.Transform.Mul4(glm.HomogRotate3DY(m.Spin * float32(dt.Seconds())))
}

// HandleInput does nothing, models are not controlled.
func (m *Model) HandleInput(ev InputEvent) {}

// RecordDraw binds the material at set 1, the mesh at set 0 and draws
// the mesh.
func (m *Model) RecordDraw(cmd gfx.CommandBuffer, layout gfx.PipelineLayout, view, projection glm.Mat4) error {
	if m.Material == nil {
		return errors.New("model has no material")
	}
	if m.Mesh.owner != m {
		return errors.New("mesh is drawn by another model")
	}
	m.Material.RecordDraw(cmd, layout)
	return m.Mesh.RecordDraw(cmd, layout, m.Transform, view, projection)
}

// Release releases the mesh and the material.
func (m *Model) Release() {
	m.Mesh.Release()
	if m.Material != nil {
		m.Material.Release()
	}
}
