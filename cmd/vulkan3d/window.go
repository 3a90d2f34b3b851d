// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"github.com/devblok/vulkan3d/core"
	"github.com/devblok/vulkan3d/gfx"
	"github.com/devblok/vulkan3d/model"
	"github.com/veandco/go-sdl2/sdl"
)

func newWindow(cfg core.RendererConfiguration) (*sdl.Window, error) {
	return sdl.CreateWindow("vulkan3d",
		sdl.WINDOWPOS_UNDEFINED,
		sdl.WINDOWPOS_UNDEFINED,
		int32(cfg.ScreenWidth),
		int32(cfg.ScreenHeight),
		sdl.WINDOW_VULKAN|sdl.WINDOW_RESIZABLE|sdl.WINDOW_SHOWN)
}

// windowSurface presents to an SDL window.
type windowSurface struct {
	window  *sdl.Window
	surface gfx.Surface
}

// DrawableSize implements display.Surface
func (w *windowSurface) DrawableSize() (uint32, uint32) {
	if w.window.GetFlags()&sdl.WINDOW_MINIMIZED != 0 {
		return 0, 0
	}
	width, height := w.window.VulkanGetDrawableSize()
	return uint32(width), uint32(height)
}

// Handle implements display.Surface
func (w *windowSurface) Handle() gfx.Surface {
	return w.surface
}

var keys = map[sdl.Keycode]model.Key{
	sdl.K_w: model.KeyW,
	sdl.K_a: model.KeyA,
	sdl.K_s: model.KeyS,
	sdl.K_d: model.KeyD,
}

// inputEvent translates SDL input into scene input. Events the scene
// does not care about are reported as not ok.
func inputEvent(event sdl.Event) (model.InputEvent, bool) {
	switch et := event.(type) {
	case *sdl.KeyboardEvent:
		key, ok := keys[et.Keysym.Sym]
		if !ok || et.Repeat != 0 {
			return model.InputEvent{}, false
		}
		kind := model.KeyDown
		if et.Type == sdl.KEYUP {
			kind = model.KeyUp
		}
		return model.InputEvent{Kind: kind, Key: key}, true
	case *sdl.MouseMotionEvent:
		if et.State&sdl.ButtonRMask() == 0 {
			return model.InputEvent{}, false
		}
		return model.InputEvent{
			Kind: model.MouseMotion,
			DX:   float32(et.XRel),
			DY:   float32(et.YRel),
		}, true
	}
	return model.InputEvent{}, false
}
