// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"time"

	"github.com/devblok/vulkan3d/gfx"
	"github.com/devblok/vulkan3d/model"
	glm "github.com/go-gl/mathgl/mgl32"
)

// Entity is anything living in the scene that reacts to time and input.
type Entity interface {
	AdvanceTick(dt time.Duration)
	HandleInput(ev model.InputEvent)
}

// Drawable is an entity that records its own draw commands.
type Drawable interface {
	Entity
	RecordDraw(cmd gfx.CommandBuffer, layout gfx.PipelineLayout, view, projection glm.Mat4) error
}

// Viewer is an entity the scene is looked at through.
type Viewer interface {
	Entity
	ViewMatrix() glm.Mat4
	Projection(extent gfx.Extent2D) glm.Mat4
}

// Scene is a camera and the drawables it sees.
type Scene struct {
	Camera    Viewer
	Drawables []Drawable
}

// NewScene creates an empty scene looked at through camera.
func NewScene(camera Viewer) *Scene {
	return &Scene{Camera: camera}
}

// Add appends drawables to the scene.
func (s *Scene) Add(d ...Drawable) {
	s.Drawables = append(s.Drawables, d...)
}

// AdvanceTick advances the camera, then every drawable.
func (s *Scene) AdvanceTick(dt time.Duration) {
	s.Camera.AdvanceTick(dt)
	for _, d := range s.Drawables {
		d.AdvanceTick(dt)
	}
}

// HandleInput hands ev to the camera and every drawable.
func (s *Scene) HandleInput(ev model.InputEvent) {
	s.Camera.HandleInput(ev)
	for _, d := range s.Drawables {
		d.HandleInput(ev)
	}
}

// Release releases every drawable that holds GPU resources.
func (s *Scene) Release() {
	for _, d := range s.Drawables {
		if r, ok := d.(gfx.Releasable); ok {
			r.Release()
		}
	}
	s.Drawables = nil
}
