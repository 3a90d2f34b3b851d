// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package device_test

import (
	"os"
	"path/filepath"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/gobuffalo/packr"

	"github.com/devblok/vulkan3d/device"
	"github.com/devblok/vulkan3d/gfx"
	"github.com/devblok/vulkan3d/model"
)

func TestShaderStageOf(t *testing.T) {
	c := qt.New(t)
	cases := []struct {
		name  string
		stage gfx.ShaderStage
		err   string
	}{
		{"flat.vert.spv", gfx.ShaderStageVertex, ""},
		{"dir/flat.frag.spv", gfx.ShaderStageFragment, ""},
		{"flat.vert", 0, `shader "flat.vert" is not compiled`},
		{"flat.spv", 0, `shader "flat.spv" has no stage suffix`},
		{"flat.v2.vert.spv", 0, `shader "flat.v2.vert.spv" has no stage suffix`},
		{"flat.comp.spv", 0, `shader "flat.comp.spv" has unknown stage "comp"`},
	}
	for _, tc := range cases {
		stage, err := device.ShaderStageOf(tc.name)
		if tc.err != "" {
			c.Check(err, qt.ErrorMatches, tc.err, qt.Commentf("%s", tc.name))
			continue
		}
		c.Check(err, qt.IsNil)
		c.Check(stage, qt.Equals, tc.stage, qt.Commentf("%s", tc.name))
	}
}

func TestCreateShaderFromFiles(t *testing.T) {
	c := qt.New(t)
	dev, drv := newDevice(c)

	dir := c.TempDir()
	c.Assert(os.WriteFile(filepath.Join(dir, "a.vert.spv"), []byte{3, 2, 0x23, 7}, 0o644), qt.IsNil)

	shader, err := dev.CreateShader(device.FileSource(dir), "a.vert.spv")
	c.Assert(err, qt.IsNil)
	c.Assert(shader.Stage(), qt.Equals, gfx.ShaderStageVertex)
	c.Assert(shader.Name(), qt.Equals, "a.vert.spv")

	shader.Release()
	shader.Release()
	c.Assert(drv.Live()["shader module"], qt.Equals, 0)
	c.Assert(drv.Violations, qt.HasLen, 0)

	_, err = dev.CreateShader(device.FileSource(dir), "missing.frag.spv")
	c.Assert(err, qt.ErrorMatches, "read shader missing.frag.spv: .*")
}

func TestCreateShaderMalformed(t *testing.T) {
	c := qt.New(t)
	dev, _ := newDevice(c)
	dir := c.TempDir()
	c.Assert(os.WriteFile(filepath.Join(dir, "bad.frag.spv"), []byte{1, 2, 3}, 0o644), qt.IsNil)

	_, err := dev.CreateShader(device.FileSource(dir), "bad.frag.spv")
	c.Assert(err, qt.ErrorMatches, "create shader module bad.frag.spv: .*")
}

func TestCreatePipelineFromBox(t *testing.T) {
	c := qt.New(t)
	dev, drv := newDevice(c)
	source := device.BoxSource{Box: packr.NewBox("./testdata/shaders")}

	vert, err := dev.CreateShader(source, "flat.vert.spv")
	c.Assert(err, qt.IsNil)
	defer vert.Release()
	frag, err := dev.CreateShader(source, "flat.frag.spv")
	c.Assert(err, qt.IsNil)
	defer frag.Release()

	layout, err := dev.CreateDescriptorSetLayout(model.MeshBindings)
	c.Assert(err, qt.IsNil)
	defer layout.Release()

	pipeline, err := dev.CreateGraphicsPipeline(device.PipelineConfig{
		Shaders:     []*device.Shader{vert, frag},
		SetLayouts:  []*device.DescriptorSetLayout{layout},
		Bindings:    model.VertexBindings,
		Attributes:  model.VertexAttributes,
		ColorFormat: gfx.FormatB8G8R8A8Srgb,
		DepthFormat: gfx.FormatD32Sfloat,
	})
	c.Assert(err, qt.IsNil)
	c.Assert(pipeline.Config().ColorFormat, qt.Equals, gfx.FormatB8G8R8A8Srgb)

	pipeline.Release()
	pipeline.Release()
	c.Assert(drv.Live()["pipeline"], qt.Equals, 0)
	c.Assert(drv.Live()["pipeline layout"], qt.Equals, 0)
	c.Assert(drv.Violations, qt.HasLen, 0)
}

func TestCreatePipelineWithoutShaders(t *testing.T) {
	c := qt.New(t)
	dev, _ := newDevice(c)
	_, err := dev.CreateGraphicsPipeline(device.PipelineConfig{})
	c.Assert(err, qt.ErrorMatches, "create pipeline: no shaders")
}
