// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package model

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/devblok/vulkan3d/device"
	"github.com/devblok/vulkan3d/gfx"
)

// MaterialBindings is the layout of descriptor set 1: the diffuse
// texture sampled by the fragment stage.
var MaterialBindings = []gfx.DescriptorBinding{{
	Binding: 0,
	Type:    gfx.DescriptorTypeCombinedImageSampler,
	Count:   1,
	Stages:  gfx.ShaderStageFragment,
}}

// Texture is a sampled image together with its sampler.
type Texture struct {
	Image   *device.Image
	Sampler *device.Sampler
}

// NewTexture uploads RGBA8 pixels of a width by height image.
func NewTexture(dev *device.Device, pixels []byte, width, height uint32) (*Texture, error) {
	img, err := dev.UploadImage(pixels, width, height)
	if err != nil {
		return nil, err
	}
	sampler, err := dev.CreateSampler()
	if err != nil {
		img.Release()
		return nil, err
	}
	return &Texture{Image: img, Sampler: sampler}, nil
}

// NewTextureFromImage uploads a decoded image.
func NewTextureFromImage(dev *device.Device, img image.Image) (*Texture, error) {
	b := img.Bounds()
	return NewTexture(dev, Pixels(img), uint32(b.Dx()), uint32(b.Dy()))
}

// Release implements gfx.Releasable
func (t *Texture) Release() {
	t.Sampler.Release()
	t.Image.Release()
}

// Pixels draws img onto an RGBA canvas and returns its tightly packed
// pixels, row by row.
func Pixels(img image.Image) []byte {
	b := img.Bounds()
	canvas := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(canvas, canvas.Bounds(), img, b.Min, draw.Src)
	return canvas.Pix
}

// Checker returns a size by size checkerboard with cells of cell pixels.
func Checker(size, cell int, a, b color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			if (x/cell+y/cell)%2 == 0 {
				img.Set(x, y, a)
			} else {
				img.Set(x, y, b)
			}
		}
	}
	return img
}

// Material binds a diffuse texture at descriptor set 1.
type Material struct {
	Diffuse *Texture

	device *device.Device
	set    *device.DescriptorSet
}

// NewMaterial allocates a descriptor set of layout, which must declare
// MaterialBindings, and points it at diffuse.
func NewMaterial(dev *device.Device, layout *device.DescriptorSetLayout, diffuse *Texture) (*Material, error) {
	set, err := dev.AllocateDescriptorSet(layout)
	if err != nil {
		return nil, err
	}
	if err := set.WriteImage(0, diffuse.Sampler, diffuse.Image.ImageView); err != nil {
		set.Release()
		return nil, err
	}
	return &Material{Diffuse: diffuse, device: dev, set: set}, nil
}

// RecordDraw binds the material descriptor set at set 1.
func (m *Material) RecordDraw(cmd gfx.CommandBuffer, layout gfx.PipelineLayout) {
	m.device.Driver().CmdBindDescriptorSets(cmd, layout, 1, []gfx.DescriptorSet{m.set.Handle()})
}

// Release releases the descriptor set and the texture.
func (m *Material) Release() {
	m.set.Release()
	m.Diffuse.Release()
}
