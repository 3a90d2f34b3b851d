// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core_test

import (
	"image/color"
	"os"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	glm "github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/devblok/vulkan3d/core"
	"github.com/devblok/vulkan3d/device"
	"github.com/devblok/vulkan3d/gfx"
	"github.com/devblok/vulkan3d/gfx/gfxtest"
	"github.com/devblok/vulkan3d/model"
)

type window struct {
	width, height uint32
	surface       gfx.Surface
}

func (w *window) DrawableSize() (uint32, uint32) { return w.width, w.height }
func (w *window) Handle() gfx.Surface            { return w.surface }

type shaders map[string][]byte

func (s shaders) ReadShader(name string) ([]byte, error) {
	code, ok := s[name]
	if !ok {
		return nil, os.ErrNotExist
	}
	return code, nil
}

var meshShaders = shaders{
	"mesh.vert.spv": {0x03, 0x02, 0x23, 0x07},
	"mesh.frag.spv": {0x03, 0x02, 0x23, 0x07},
}

// stub is a drawable that remembers what it was asked to do.
type stub struct {
	ticks       []time.Duration
	events      []model.InputEvent
	projections []glm.Mat4
	err         error
}

func (p *stub) AdvanceTick(dt time.Duration)    { p.ticks = append(p.ticks, dt) }
func (p *stub) HandleInput(ev model.InputEvent) { p.events = append(p.events, ev) }

func (p *stub) RecordDraw(cmd gfx.CommandBuffer, layout gfx.PipelineLayout, view, projection glm.Mat4) error {
	p.projections = append(p.projections, projection)
	return p.err
}

type harness struct {
	drv      *gfxtest.Driver
	dev      *device.Device
	win      *window
	renderer *core.Renderer
	scene    *core.Scene
}

func newHarness(c *qt.C, framesInFlight int) *harness {
	drv := gfxtest.New()
	logger, _ := test.NewNullLogger()
	dev, err := device.New(drv, device.Config{Log: logger})
	c.Assert(err, qt.IsNil)

	cfg := core.DefaultConfiguration().Renderer
	cfg.FramesInFlight = framesInFlight
	win := &window{width: 800, height: 600, surface: drv.Surface()}
	r, err := core.NewRenderer(dev, win, meshShaders, cfg)
	c.Assert(err, qt.IsNil)
	return &harness{drv: drv, dev: dev, win: win, renderer: r}
}

// withCube puts a textured cube in front of the default camera.
func (h *harness) withCube(c *qt.C) {
	vertices, indices := model.Cube()
	mesh, err := model.NewMesh(h.dev, h.renderer.MeshLayout(), vertices, indices, h.renderer.FramesInFlight())
	c.Assert(err, qt.IsNil)
	tex, err := model.NewTextureFromImage(h.dev, model.Checker(8, 2, color.White, color.Black))
	c.Assert(err, qt.IsNil)
	mat, err := model.NewMaterial(h.dev, h.renderer.MaterialLayout(), tex)
	c.Assert(err, qt.IsNil)

	cube := model.New(mesh, mat)
	cube.Transform = glm.Translate3D(0, 0, -3)
	cube.Spin = 1
	h.scene = core.NewScene(model.NewCamera())
	h.scene.Add(cube)
	h.renderer.SetScene(h.scene)
}

func (h *harness) release(c *qt.C) {
	if h.scene != nil {
		h.scene.Release()
	}
	h.renderer.Release()
	h.dev.Release()
	c.Assert(h.drv.Violations, qt.HasLen, 0)
	for kind, n := range h.drv.Live() {
		c.Assert(n, qt.Equals, 0, qt.Commentf("%s", kind))
	}
}

// ops returns the calls from start on, restricted to the given ops.
func (h *harness) ops(start int, names ...string) []string {
	var out []string
	for _, call := range h.drv.Calls[start:] {
		for _, n := range names {
			if call.Op == n {
				out = append(out, n)
			}
		}
	}
	return out
}

func TestFramesAreSerializedByFence(t *testing.T) {
	c := qt.New(t)
	h := newHarness(c, 1)
	h.withCube(c)

	start := len(h.drv.Calls)
	for i := 0; i < 3; i++ {
		status, err := h.renderer.Frame(16 * time.Millisecond)
		c.Assert(err, qt.IsNil)
		c.Assert(status, qt.Equals, core.FramePresented)
		c.Assert(h.renderer.Frames(), qt.Equals, uint64(i+1))
	}

	c.Assert(h.ops(start, "WaitForFence", "ResetFence", "BeginCommandBuffer", "QueueSubmit", "QueuePresent"), qt.DeepEquals, []string{
		"WaitForFence", "BeginCommandBuffer", "ResetFence", "QueueSubmit", "QueuePresent",
		"WaitForFence", "BeginCommandBuffer", "ResetFence", "QueueSubmit", "QueuePresent",
		"WaitForFence", "BeginCommandBuffer", "ResetFence", "QueueSubmit", "QueuePresent",
	})
	c.Assert(h.drv.Count("CmdDrawIndexed"), qt.Equals, 3)
	c.Assert(h.drv.Count("CreateSwapchain"), qt.Equals, 1)
	h.release(c)
}

func TestOutOfDateOnAcquire(t *testing.T) {
	c := qt.New(t)
	h := newHarness(c, 1)
	h.withCube(c)
	h.drv.AcquireErrors = map[int]error{2: gfx.ErrOutOfDate}

	status, err := h.renderer.Frame(0)
	c.Assert(err, qt.IsNil)
	c.Assert(status, qt.Equals, core.FramePresented)

	start := len(h.drv.Calls)
	status, err = h.renderer.Frame(0)
	c.Assert(err, qt.IsNil)
	c.Assert(status, qt.Equals, core.FrameSkipped)
	c.Assert(h.ops(start, "QueueSubmit", "QueuePresent", "ResetFence"), qt.HasLen, 0)
	c.Assert(h.drv.Count("CreateSwapchain"), qt.Equals, 2)

	status, err = h.renderer.Frame(0)
	c.Assert(err, qt.IsNil)
	c.Assert(status, qt.Equals, core.FramePresented)
	c.Assert(h.drv.Count("CreateSwapchain"), qt.Equals, 2)
	c.Assert(h.drv.Count("QueueSubmit"), qt.Equals, 2+1) // texture upload
	c.Assert(h.renderer.Frames(), qt.Equals, uint64(2))
	h.release(c)
}

func TestOutOfDateOnPresent(t *testing.T) {
	c := qt.New(t)
	h := newHarness(c, 1)
	h.drv.PresentErrors = map[int]error{1: gfx.ErrOutOfDate}

	status, err := h.renderer.Frame(0)
	c.Assert(err, qt.IsNil)
	c.Assert(status, qt.Equals, core.FrameSkipped)
	c.Assert(h.drv.Count("CreateSwapchain"), qt.Equals, 2)

	status, err = h.renderer.Frame(0)
	c.Assert(err, qt.IsNil)
	c.Assert(status, qt.Equals, core.FramePresented)
	c.Assert(h.renderer.Frames(), qt.Equals, uint64(2))
	h.release(c)
}

func TestAcquireError(t *testing.T) {
	c := qt.New(t)
	h := newHarness(c, 1)
	h.drv.AcquireErrors = map[int]error{1: errors.New("device lost")}

	_, err := h.renderer.Frame(0)
	c.Assert(err, qt.ErrorMatches, "acquire next image: device lost")
	c.Assert(h.drv.Count("CreateSwapchain"), qt.Equals, 1)
	h.release(c)
}

func TestMultipleFramesInFlight(t *testing.T) {
	c := qt.New(t)
	h := newHarness(c, 2)
	h.withCube(c)
	c.Assert(h.renderer.FramesInFlight(), qt.Equals, 2)
	sc := h.renderer.Swapchain()
	c.Assert(sc.Depth(0).Image(), qt.Not(qt.Equals), sc.Depth(1).Image())

	start := len(h.drv.Calls)
	for i := 0; i < 4; i++ {
		status, err := h.renderer.Frame(0)
		c.Assert(err, qt.IsNil)
		c.Assert(status, qt.Equals, core.FramePresented)
	}

	var fences, cmds []uint64
	for _, call := range h.drv.Calls[start:] {
		switch call.Op {
		case "WaitForFence":
			fences = append(fences, call.Handle)
		case "QueueSubmit":
			cmds = append(cmds, call.Handle)
		}
	}
	c.Assert(fences, qt.HasLen, 4)
	c.Assert(fences[0], qt.Not(qt.Equals), fences[1])
	c.Assert(fences[2:], qt.DeepEquals, fences[:2])
	c.Assert(cmds[0], qt.Not(qt.Equals), cmds[1])
	c.Assert(cmds[2:], qt.DeepEquals, cmds[:2])
	h.release(c)
}

func TestMinimizedWindowSkipsFrames(t *testing.T) {
	c := qt.New(t)
	h := newHarness(c, 1)

	h.win.width, h.win.height = 0, 0
	start := len(h.drv.Calls)
	status, err := h.renderer.Frame(0)
	c.Assert(err, qt.IsNil)
	c.Assert(status, qt.Equals, core.FrameSkipped)
	c.Assert(h.ops(start, "WaitForFence", "AcquireNextImage", "CreateSwapchain"), qt.HasLen, 0)

	h.win.width, h.win.height = 1024, 768
	status, err = h.renderer.Frame(0)
	c.Assert(err, qt.IsNil)
	c.Assert(status, qt.Equals, core.FramePresented)
	c.Assert(h.drv.Count("CreateSwapchain"), qt.Equals, 2)
	c.Assert(h.renderer.Swapchain().Extent(), qt.Equals, gfx.Extent2D{Width: 1024, Height: 768})
	h.release(c)
}

func TestProjectionFollowsResize(t *testing.T) {
	c := qt.New(t)
	h := newHarness(c, 1)
	p := &stub{}
	camera := model.NewCamera()
	scene := core.NewScene(camera)
	scene.Add(p)
	h.renderer.SetScene(scene)

	_, err := h.renderer.Frame(10 * time.Millisecond)
	c.Assert(err, qt.IsNil)
	h.win.width = 1600
	_, err = h.renderer.Frame(20 * time.Millisecond)
	c.Assert(err, qt.IsNil)

	c.Assert(p.projections, qt.DeepEquals, []glm.Mat4{
		camera.Projection(gfx.Extent2D{Width: 800, Height: 600}),
		camera.Projection(gfx.Extent2D{Width: 1600, Height: 600}),
	})
	c.Assert(p.ticks, qt.DeepEquals, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond})

	h.renderer.HandleInput(model.InputEvent{Kind: model.KeyDown, Key: model.KeyW})
	c.Assert(p.events, qt.HasLen, 1)
	h.release(c)
}

func TestDrawErrorIsReturned(t *testing.T) {
	c := qt.New(t)
	h := newHarness(c, 1)
	p := &stub{err: errors.New("broken")}
	h.scene = core.NewScene(model.NewCamera())
	h.scene.Add(p)
	h.renderer.SetScene(h.scene)

	start := len(h.drv.Calls)
	status, err := h.renderer.Frame(0)
	c.Assert(err, qt.ErrorMatches, "record draw: broken")
	c.Assert(status, qt.Equals, core.FrameSkipped)
	c.Assert(h.ops(start, "ResetFence", "QueuePresent"), qt.HasLen, 0)
	c.Assert(h.drv.Violations, qt.HasLen, 0)

	// The frame fence is still signaled, so the next frame goes through.
	p.err = nil
	status, err = h.renderer.Frame(0)
	c.Assert(err, qt.IsNil)
	c.Assert(status, qt.Equals, core.FramePresented)
	c.Assert(h.renderer.Frames(), qt.Equals, uint64(1))
	h.release(c)
}

func TestModelWithoutMaterialIsRejected(t *testing.T) {
	c := qt.New(t)
	h := newHarness(c, 1)
	vertices, indices := model.Cube()
	mesh, err := model.NewMesh(h.dev, h.renderer.MeshLayout(), vertices, indices, 1)
	c.Assert(err, qt.IsNil)
	h.scene = core.NewScene(model.NewCamera())
	h.scene.Add(model.New(mesh, nil))
	h.renderer.SetScene(h.scene)

	status, err := h.renderer.Frame(0)
	c.Assert(err, qt.ErrorMatches, "record draw: model has no material")
	c.Assert(status, qt.Equals, core.FrameSkipped)
	c.Assert(h.drv.Count("CmdDrawIndexed"), qt.Equals, 0)
	h.release(c)
}

func TestMissingShader(t *testing.T) {
	c := qt.New(t)
	drv := gfxtest.New()
	logger, _ := test.NewNullLogger()
	dev, err := device.New(drv, device.Config{Log: logger})
	c.Assert(err, qt.IsNil)

	cfg := core.DefaultConfiguration().Renderer
	cfg.Shaders = []string{"mesh.vert.spv", "missing.frag.spv"}
	_, err = core.NewRenderer(dev, &window{width: 800, height: 600, surface: drv.Surface()}, meshShaders, cfg)
	c.Assert(err, qt.ErrorMatches, "read shader missing.frag.spv: file does not exist")

	live := drv.Live()
	c.Assert(live["swapchain"], qt.Equals, 0)
	c.Assert(live["shader module"], qt.Equals, 0)
	c.Assert(live["descriptor set layout"], qt.Equals, 0)
	c.Assert(live["image"], qt.Equals, 0)
	c.Assert(drv.Violations, qt.HasLen, 0)
}
