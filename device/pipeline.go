// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package device

import (
	"github.com/devblok/vulkan3d/gfx"
	"github.com/pkg/errors"
)

// PipelineConfig describes a graphics pipeline.
type PipelineConfig struct {
	Shaders    []*Shader
	SetLayouts []*DescriptorSetLayout
	Bindings   []gfx.VertexBinding
	Attributes []gfx.VertexAttribute

	ColorFormat gfx.Format
	DepthFormat gfx.Format
}

// Pipeline is a graphics pipeline and its layout.
type Pipeline struct {
	device *Device

	pipeline gfx.Pipeline
	layout   gfx.PipelineLayout
	config   PipelineConfig
}

// CreateGraphicsPipeline builds a triangle list pipeline with depth
// testing, no culling and no blending. Viewport and scissor are set
// when recording.
func (d *Device) CreateGraphicsPipeline(cfg PipelineConfig) (*Pipeline, error) {
	if len(cfg.Shaders) == 0 {
		return nil, errors.New("create pipeline: no shaders")
	}

	setLayouts := make([]gfx.DescriptorSetLayout, len(cfg.SetLayouts))
	for i, l := range cfg.SetLayouts {
		setLayouts[i] = l.Handle()
	}
	layout, err := d.driver.CreatePipelineLayout(setLayouts)
	if err != nil {
		return nil, errors.Wrap(err, "create pipeline layout")
	}

	stages := make([]gfx.ShaderStageInfo, len(cfg.Shaders))
	for i, s := range cfg.Shaders {
		stages[i] = gfx.ShaderStageInfo{
			Stage:  s.Stage(),
			Module: s.Module(),
			Entry:  "main",
		}
	}

	pipeline, err := d.driver.CreateGraphicsPipeline(gfx.GraphicsPipelineInfo{
		Layout:       layout,
		Stages:       stages,
		Bindings:     cfg.Bindings,
		Attributes:   cfg.Attributes,
		ColorFormat:  cfg.ColorFormat,
		DepthFormat:  cfg.DepthFormat,
		CullMode:     gfx.CullModeNone,
		FrontFace:    gfx.FrontFaceClockwise,
		DepthCompare: gfx.CompareOpLess,
	})
	if err != nil {
		d.driver.DestroyPipelineLayout(layout)
		return nil, errors.Wrap(err, "create graphics pipeline")
	}
	d.log.WithField("color", cfg.ColorFormat).Info("pipeline created")

	return &Pipeline{
		device:   d,
		pipeline: pipeline,
		layout:   layout,
		config:   cfg,
	}, nil
}

// Handle returns the pipeline handle.
func (p *Pipeline) Handle() gfx.Pipeline {
	return p.pipeline
}

// Layout returns the pipeline layout descriptor sets are bound against.
func (p *Pipeline) Layout() gfx.PipelineLayout {
	return p.layout
}

// Config returns the configuration the pipeline was built from.
func (p *Pipeline) Config() PipelineConfig {
	return p.config
}

// Release implements gfx.Releasable
func (p *Pipeline) Release() {
	if p == nil || p.pipeline == gfx.NullHandle {
		return
	}
	p.device.driver.DestroyPipeline(p.pipeline)
	p.device.driver.DestroyPipelineLayout(p.layout)
	p.pipeline = gfx.NullHandle
}
