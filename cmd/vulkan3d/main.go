// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

//go:generate glslc shaders/mesh.vert -o shaders/mesh.vert.spv
//go:generate glslc shaders/mesh.frag -o shaders/mesh.frag.spv

package main

import (
	"flag"
	"image/color"
	"runtime"

	"github.com/devblok/vulkan3d/core"
	"github.com/devblok/vulkan3d/device"
	"github.com/devblok/vulkan3d/gfx/vkr"
	"github.com/devblok/vulkan3d/model"
	"github.com/devblok/vulkan3d/utility/kar"
	glm "github.com/go-gl/mathgl/mgl32"
	"github.com/gobuffalo/packr"
	log "github.com/sirupsen/logrus"
	"github.com/veandco/go-sdl2/sdl"
)

func init() {
	runtime.LockOSThread()
}

// StaticShaders holds the compiled shaders shipped with the binary.
var StaticShaders = packr.NewBox("./shaders")

var envFile = flag.String("env", "", "Read configuration from this dotenv file")

func main() {
	flag.Parse()

	var files []string
	if *envFile != "" {
		files = append(files, *envFile)
	}
	configuration, err := core.LoadConfiguration(files...)
	if err != nil {
		log.Fatal(err)
	}
	if configuration.Instance.Debug {
		log.SetLevel(log.DebugLevel)
	}

	if err := sdl.Init(sdl.INIT_VIDEO | sdl.INIT_EVENTS); err != nil {
		log.Fatal(err)
	}
	defer sdl.Quit()

	if err := sdl.VulkanLoadLibrary(""); err != nil {
		log.Fatal(err)
	}
	defer sdl.VulkanUnloadLibrary()

	window, err := newWindow(configuration.Renderer)
	if err != nil {
		log.Fatal(err)
	}
	defer window.Destroy()

	driver, err := vkr.New(sdl.VulkanGetVkGetInstanceProcAddr(), vkr.Config{
		AppName:    "vulkan3d",
		Debug:      configuration.Instance.Debug,
		Layers:     configuration.Instance.Layers,
		Extensions: window.VulkanGetInstanceExtensions(),
	})
	if err != nil {
		log.Fatal(err)
	}
	defer driver.Release()

	surfacePtr, err := window.VulkanCreateSurface(driver.Instance())
	if err != nil {
		log.Fatal(err)
	}
	surface := &windowSurface{
		window:  window,
		surface: driver.RegisterSurface(surfacePtr),
	}

	dev, err := device.New(driver, device.Config{
		Extensions: configuration.Renderer.DeviceExtensions,
	})
	if err != nil {
		log.Fatal(err)
	}

	source, closeSource, err := shaderSource(configuration.Renderer)
	if err != nil {
		log.Fatal(err)
	}
	renderer, err := core.NewRenderer(dev, surface, source, configuration.Renderer)
	closeSource()
	if err != nil {
		log.Fatal(err)
	}

	scene, err := demoScene(dev, renderer)
	if err != nil {
		log.Fatal(err)
	}
	renderer.SetScene(scene)

	run(renderer, core.NewTime(configuration.Time))

	if err := dev.WaitIdle(); err != nil {
		log.Error(err)
	}
	scene.Release()
	renderer.Release()
	dev.Release()
}

func run(renderer *core.Renderer, time *core.Time) {
	defer time.Stop()
	exitC := make(chan struct{}, 2)

EventLoop:
	for {
		select {
		case <-exitC:
			log.Info("Event loop exited")
			break EventLoop
		case <-time.FpsTicker().C:
			for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
				switch et := event.(type) {
				case *sdl.KeyboardEvent:
					if et.Keysym.Sym == sdl.K_ESCAPE {
						exitC <- struct{}{}
						continue EventLoop
					}
				case *sdl.QuitEvent:
					exitC <- struct{}{}
					continue EventLoop
				}
				if ev, ok := inputEvent(event); ok {
					renderer.HandleInput(ev)
				}
			}

			if _, err := renderer.Frame(time.Clock().Tick()); err != nil {
				log.Fatal(err)
			}
		}
	}
}

// shaderSource opens the configured shader source. The returned func
// closes it once the shaders are loaded.
func shaderSource(cfg core.RendererConfiguration) (device.ShaderSource, func(), error) {
	switch cfg.ShaderSource {
	case core.ShaderSourceBox:
		return device.BoxSource{Box: StaticShaders}, func() {}, nil
	case core.ShaderSourceKar:
		ar, err := kar.OpenFile(cfg.ShaderPath)
		if err != nil {
			return nil, nil, err
		}
		return ar, func() { ar.Close() }, nil
	}
	return device.FileSource(cfg.ShaderPath), func() {}, nil
}

// demoScene is a spinning checkered cube in front of a free fly camera.
func demoScene(dev *device.Device, renderer *core.Renderer) (*core.Scene, error) {
	vertices, indices := model.Cube()
	mesh, err := model.NewMesh(dev, renderer.MeshLayout(), vertices, indices, renderer.FramesInFlight())
	if err != nil {
		return nil, err
	}
	texture, err := model.NewTextureFromImage(dev, model.Checker(256, 32,
		color.RGBA{R: 0xe0, G: 0x60, B: 0x20, A: 0xff},
		color.RGBA{R: 0x20, G: 0x20, B: 0x20, A: 0xff}))
	if err != nil {
		mesh.Release()
		return nil, err
	}
	material, err := model.NewMaterial(dev, renderer.MaterialLayout(), texture)
	if err != nil {
		texture.Release()
		mesh.Release()
		return nil, err
	}

	cube := model.New(mesh, material)
	cube.Transform = glm.Translate3D(0, 0, -3)
	cube.Spin = 0.5

	scene := core.NewScene(model.NewFreeFlyCamera())
	scene.Add(cube)
	return scene, nil
}
