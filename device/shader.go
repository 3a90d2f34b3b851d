// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package device

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/devblok/vulkan3d/gfx"
	"github.com/gobuffalo/packr"
	"github.com/pkg/errors"
)

const shaderSuffix = ".spv"

// ShaderSource provides compiled shader blobs by name.
type ShaderSource interface {
	ReadShader(name string) ([]byte, error)
}

// FileSource reads shaders from a directory.
type FileSource string

// ReadShader implements ShaderSource
func (s FileSource) ReadShader(name string) ([]byte, error) {
	return os.ReadFile(filepath.Join(string(s), name))
}

// BoxSource reads shaders from a packr box, so they can be embedded
// into the binary.
type BoxSource struct {
	Box packr.Box
}

// ReadShader implements ShaderSource
func (s BoxSource) ReadShader(name string) ([]byte, error) {
	return s.Box.Find(name)
}

// ShaderStageOf infers the stage of a shader from its file name, which
// must look like name.vert.spv or name.frag.spv.
func ShaderStageOf(name string) (gfx.ShaderStage, error) {
	base := filepath.Base(name)
	if !strings.HasSuffix(base, shaderSuffix) {
		return 0, errors.Errorf("shader %q is not compiled", name)
	}
	nodes := strings.Split(strings.TrimSuffix(base, shaderSuffix), ".")
	if len(nodes) != 2 {
		return 0, errors.Errorf("shader %q has no stage suffix", name)
	}
	switch nodes[1] {
	case "vert":
		return gfx.ShaderStageVertex, nil
	case "frag":
		return gfx.ShaderStageFragment, nil
	}
	return 0, errors.Errorf("shader %q has unknown stage %q", name, nodes[1])
}

// Shader is a shader module for a single stage.
type Shader struct {
	device *Device

	module gfx.ShaderModule
	stage  gfx.ShaderStage
	name   string
}

// CreateShader reads name from source and creates a shader module from it.
// The blob is passed to the driver unchecked.
func (d *Device) CreateShader(source ShaderSource, name string) (*Shader, error) {
	stage, err := ShaderStageOf(name)
	if err != nil {
		return nil, err
	}
	code, err := source.ReadShader(name)
	if err != nil {
		return nil, errors.Wrapf(err, "read shader %s", name)
	}
	module, err := d.driver.CreateShaderModule(code)
	if err != nil {
		return nil, errors.Wrapf(err, "create shader module %s", name)
	}
	d.log.WithField("shader", name).Debug("shader loaded")
	return &Shader{
		device: d,
		module: module,
		stage:  stage,
		name:   name,
	}, nil
}

// Module returns the shader module handle.
func (s *Shader) Module() gfx.ShaderModule {
	return s.module
}

// Stage returns the stage the shader runs in.
func (s *Shader) Stage() gfx.ShaderStage {
	return s.stage
}

// Name returns the name the shader was loaded from.
func (s *Shader) Name() string {
	return s.name
}

// Release implements gfx.Releasable
func (s *Shader) Release() {
	if s == nil || s.module == gfx.NullHandle {
		return
	}
	s.device.driver.DestroyShaderModule(s.module)
	s.module = gfx.NullHandle
}
