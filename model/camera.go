// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package model

import (
	"time"

	"github.com/devblok/vulkan3d/gfx"
	glm "github.com/go-gl/mathgl/mgl32"
)

// EventKind identifies an input event.
type EventKind int

// Input event kinds
const (
	KeyDown EventKind = iota
	KeyUp
	MouseMotion
)

// Key is a keyboard key entities react to.
type Key int

// Keys
const (
	KeyUnknown Key = iota
	KeyW
	KeyA
	KeyS
	KeyD
)

// InputEvent is a window system independent input event.
type InputEvent struct {
	Kind EventKind
	Key  Key

	// Relative mouse motion in pixels.
	DX, DY float32
}

// Camera looks at the scene through a perspective projection.
type Camera struct {
	// View is the world to view matrix.
	View glm.Mat4

	// Fov is the vertical field of view in degrees.
	Fov       float32
	Near, Far float32
}

// NewCamera returns a camera at (0, 2, 0) looking towards (0, 0, -3).
func NewCamera() *Camera {
	return &Camera{
		View: glm.LookAtV(glm.Vec3{0, 2, 0}, glm.Vec3{0, 0, -3}, glm.Vec3{0, 1, 0}),
		Fov:  45,
		Near: 0.1,
		Far:  10,
	}
}

// ViewMatrix returns the world to view matrix.
func (c *Camera) ViewMatrix() glm.Mat4 {
	return c.View
}

// Projection returns the projection for a target of the given extent.
// Y is flipped to match the clip space of the device.
func (c *Camera) Projection(extent gfx.Extent2D) glm.Mat4 {
	aspect := float32(1)
	if extent.Height != 0 {
		aspect = float32(extent.Width) / float32(extent.Height)
	}
	proj := glm.Perspective(glm.DegToRad(c.Fov), aspect, c.Near, c.Far)
	proj.Set(1, 1, -proj.At(1, 1))
	return proj
}

// AdvanceTick does nothing, a plain camera stands still.
func (c *Camera) AdvanceTick(dt time.Duration) {}

// HandleInput does nothing.
func (c *Camera) HandleInput(ev InputEvent) {}

// FreeFlyCamera is moved with WASD and turned with the mouse.
type FreeFlyCamera struct {
	*Camera

	// Speed in units per second.
	Speed float32

	// Sensitivity in degrees per pixel of mouse motion.
	Sensitivity float32

	xvel, zvel float32
}

// NewFreeFlyCamera returns a free fly camera starting where NewCamera does.
func NewFreeFlyCamera() *FreeFlyCamera {
	return &FreeFlyCamera{
		Camera:      NewCamera(),
		Speed:       2,
		Sensitivity: 0.25,
	}
}

// AdvanceTick moves the camera by its velocity.
func (c *FreeFlyCamera) AdvanceTick(dt time.Duration) {
	factor := c.Speed * float32(dt.Seconds())
	if factor == 0 || (c.xvel == 0 && c.zvel == 0) {
		return
	}
	c.View = glm.Translate3D(-c.xvel*factor, 0, -c.zvel*factor).Mul4(c.View)
}

// HandleInput sets velocity from WASD and turns on mouse motion.
func (c *FreeFlyCamera) HandleInput(ev InputEvent) {
	switch ev.Kind {
	case KeyDown:
		switch ev.Key {
		case KeyA:
			c.xvel = -1
		case KeyD:
			c.xvel = 1
		case KeyW:
			c.zvel = -1
		case KeyS:
			c.zvel = 1
		}
	case KeyUp:
		switch ev.Key {
		case KeyA:
			if c.xvel < 0 {
				c.xvel = 0
			}
		case KeyD:
			if c.xvel > 0 {
				c.xvel = 0
			}
		case KeyW:
			if c.zvel < 0 {
				c.zvel = 0
			}
		case KeyS:
			if c.zvel > 0 {
				c.zvel = 0
			}
		}
	case MouseMotion:
		up := c.View.Col(1).Vec3()
		c.View = glm.HomogRotate3D(glm.DegToRad(ev.DX*c.Sensitivity), up).Mul4(c.View)
		c.View = glm.HomogRotate3D(glm.DegToRad(ev.DY*c.Sensitivity), glm.Vec3{1, 0, 0}).Mul4(c.View)
	}
}
