// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"strconv"
	"strings"

	"github.com/gobuffalo/envy"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

// Shader sources
const (
	ShaderSourceDir = "dir"
	ShaderSourceBox = "box"
	ShaderSourceKar = "kar"
)

// Configuration defines a global engine configuration setting
type Configuration struct {
	Time     TimeConfiguration
	Renderer RendererConfiguration
	Instance InstanceConfiguration
}

// TimeConfiguration is used to configure time services
type TimeConfiguration struct {
	// FramesPerSecond caps frames per second that is put out
	// To unlimit, set to 0
	FramesPerSecond int
}

// RendererConfiguration is used to configure the renderer
type RendererConfiguration struct {
	SwapchainSize    uint32
	DeviceExtensions []string

	// FramesInFlight is the number of frames the CPU may record ahead
	// of the GPU.
	FramesInFlight int

	ScreenWidth  uint32
	ScreenHeight uint32

	ClearColor [4]float32

	// ShaderSource is one of ShaderSourceDir, ShaderSourceBox or
	// ShaderSourceKar, ShaderPath the directory or archive to read from.
	ShaderSource string
	ShaderPath   string
	Shaders      []string
}

// InstanceConfiguration is used to configure the graphics instance
type InstanceConfiguration struct {
	Debug  bool
	Layers []string
}

// DefaultConfiguration returns the configuration used when nothing is
// overridden by the environment.
func DefaultConfiguration() Configuration {
	return Configuration{
		Time: TimeConfiguration{
			FramesPerSecond: 60,
		},
		Renderer: RendererConfiguration{
			SwapchainSize:  2,
			FramesInFlight: 1,
			ScreenWidth:    800,
			ScreenHeight:   600,
			ClearColor:     [4]float32{1, 1, 0, 1},
			ShaderSource:   ShaderSourceDir,
			ShaderPath:     "./shaders",
			Shaders:        []string{"mesh.vert.spv", "mesh.frag.spv"},
		},
	}
}

// LoadConfiguration reads dotenv files, if any are given, then builds a
// configuration from VK3D_ variables on top of DefaultConfiguration.
// Variables already present in the environment win over the files.
func LoadConfiguration(files ...string) (Configuration, error) {
	if len(files) > 0 {
		vars, err := godotenv.Read(files...)
		if err != nil {
			return Configuration{}, errors.Wrap(err, "read env files")
		}
		for k, v := range vars {
			if _, err := envy.MustGet(k); err != nil {
				envy.Set(k, v)
			}
		}
	}

	cfg := DefaultConfiguration()
	r := &cfg.Renderer
	p := parser{}
	r.ScreenWidth = p.uintVar("VK3D_WIDTH", r.ScreenWidth)
	r.ScreenHeight = p.uintVar("VK3D_HEIGHT", r.ScreenHeight)
	r.SwapchainSize = p.uintVar("VK3D_SWAPCHAIN_SIZE", r.SwapchainSize)
	r.FramesInFlight = p.intVar("VK3D_FRAMES_IN_FLIGHT", r.FramesInFlight)
	r.ClearColor = p.colorVar("VK3D_CLEAR_COLOR", r.ClearColor)
	r.ShaderSource = envy.Get("VK3D_SHADER_SOURCE", r.ShaderSource)
	r.ShaderPath = envy.Get("VK3D_SHADER_PATH", r.ShaderPath)
	r.Shaders = p.listVar("VK3D_SHADERS", r.Shaders)
	r.DeviceExtensions = p.listVar("VK3D_DEVICE_EXTENSIONS", r.DeviceExtensions)
	cfg.Time.FramesPerSecond = p.intVar("VK3D_FPS", cfg.Time.FramesPerSecond)
	cfg.Instance.Debug = p.boolVar("VK3D_DEBUG", cfg.Instance.Debug)
	cfg.Instance.Layers = p.listVar("VK3D_LAYERS", cfg.Instance.Layers)
	if p.err != nil {
		return Configuration{}, p.err
	}

	switch r.ShaderSource {
	case ShaderSourceDir, ShaderSourceBox, ShaderSourceKar:
	default:
		return Configuration{}, errors.Errorf("VK3D_SHADER_SOURCE: unknown source %q", r.ShaderSource)
	}
	if r.FramesInFlight < 1 {
		return Configuration{}, errors.Errorf("VK3D_FRAMES_IN_FLIGHT: %d is less than 1", r.FramesInFlight)
	}
	return cfg, nil
}

// parser keeps the first error hit while reading variables.
type parser struct {
	err error
}

func (p *parser) lookup(key string) (string, bool) {
	v, err := envy.MustGet(key)
	if err != nil || v == "" {
		return "", false
	}
	return v, true
}

func (p *parser) fail(key string, err error) {
	if p.err == nil {
		p.err = errors.Wrap(err, key)
	}
}

func (p *parser) uintVar(key string, def uint32) uint32 {
	v, ok := p.lookup(key)
	if !ok {
		return def
	}
	n, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		p.fail(key, err)
		return def
	}
	return uint32(n)
}

func (p *parser) intVar(key string, def int) int {
	v, ok := p.lookup(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(key, err)
		return def
	}
	return n
}

func (p *parser) boolVar(key string, def bool) bool {
	v, ok := p.lookup(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.fail(key, err)
		return def
	}
	return b
}

func (p *parser) listVar(key string, def []string) []string {
	v, ok := p.lookup(key)
	if !ok {
		return def
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (p *parser) colorVar(key string, def [4]float32) [4]float32 {
	v, ok := p.lookup(key)
	if !ok {
		return def
	}
	parts := strings.Split(v, ",")
	if len(parts) != 4 {
		p.fail(key, errors.Errorf("want 4 components, got %d", len(parts)))
		return def
	}
	var c [4]float32
	for i, s := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 32)
		if err != nil {
			p.fail(key, err)
			return def
		}
		c[i] = float32(f)
	}
	return c
}
