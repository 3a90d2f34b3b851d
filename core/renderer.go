// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package core drives the renderer: configuration, frame timing and
// the per-frame submission protocol.
package core

import (
	"time"

	"github.com/devblok/vulkan3d/device"
	"github.com/devblok/vulkan3d/display"
	"github.com/devblok/vulkan3d/gfx"
	"github.com/devblok/vulkan3d/model"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// FrameStatus tells what became of a frame.
type FrameStatus int

// Frame statuses
const (
	// FramePresented means the frame was submitted and queued for
	// presentation.
	FramePresented FrameStatus = iota

	// FrameSkipped means nothing was presented, because the window
	// has no drawable area or the swapchain went out of date.
	FrameSkipped
)

func (s FrameStatus) String() string {
	if s == FramePresented {
		return "presented"
	}
	return "skipped"
}

// frameSync is the set of objects one frame in flight records and
// synchronizes with.
type frameSync struct {
	cmd            gfx.CommandBuffer
	inFlight       gfx.Fence
	imageAvailable gfx.Semaphore
	renderFinished gfx.Semaphore
}

// Renderer records and presents the scene once per frame.
type Renderer struct {
	device *device.Device
	log    log.FieldLogger
	cfg    RendererConfiguration

	swapchain      *display.Swapchain
	meshLayout     *device.DescriptorSetLayout
	materialLayout *device.DescriptorSetLayout
	shaders        []*device.Shader
	pipeline       *device.Pipeline

	frames []frameSync
	frame  uint64
	scene  *Scene
}

// NewRenderer creates the swapchain for surface, loads the configured
// shaders from source and builds the mesh pipeline.
func NewRenderer(dev *device.Device, surface display.Surface, source device.ShaderSource, cfg RendererConfiguration) (_ *Renderer, err error) {
	if cfg.FramesInFlight < 1 {
		cfg.FramesInFlight = 1
	}
	r := &Renderer{
		device: dev,
		log:    dev.Log(),
		cfg:    cfg,
	}
	defer func() {
		if err != nil {
			r.Release()
		}
	}()

	if r.swapchain, err = display.New(dev, surface, display.Config{
		ImageCount:  cfg.SwapchainSize,
		PresentMode: gfx.PresentModeFifoRelaxed,
		DepthImages: cfg.FramesInFlight,
		Log:         r.log,
	}); err != nil {
		return nil, err
	}
	if r.meshLayout, err = dev.CreateDescriptorSetLayout(model.MeshBindings); err != nil {
		return nil, err
	}
	if r.materialLayout, err = dev.CreateDescriptorSetLayout(model.MaterialBindings); err != nil {
		return nil, err
	}
	for _, name := range cfg.Shaders {
		shader, err := dev.CreateShader(source, name)
		if err != nil {
			return nil, err
		}
		r.shaders = append(r.shaders, shader)
	}
	if err = r.createPipeline(); err != nil {
		return nil, err
	}

	for i := 0; i < cfg.FramesInFlight; i++ {
		var sync frameSync
		if sync.cmd, err = dev.CreateCommandBuffer(); err != nil {
			return nil, err
		}
		r.frames = append(r.frames, sync)
		s := &r.frames[i]
		if s.inFlight, err = dev.CreateFence(true); err != nil {
			return nil, err
		}
		if s.imageAvailable, err = dev.CreateSemaphore(); err != nil {
			return nil, err
		}
		if s.renderFinished, err = dev.CreateSemaphore(); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Renderer) createPipeline() error {
	pipeline, err := r.device.CreateGraphicsPipeline(device.PipelineConfig{
		Shaders:     r.shaders,
		SetLayouts:  []*device.DescriptorSetLayout{r.meshLayout, r.materialLayout},
		Bindings:    model.VertexBindings,
		Attributes:  model.VertexAttributes,
		ColorFormat: r.swapchain.Format(),
		DepthFormat: display.DepthFormat,
	})
	if err != nil {
		return err
	}
	r.pipeline.Release()
	r.pipeline = pipeline
	return nil
}

// MeshLayout is the descriptor set layout meshes drawn by the renderer
// must be created with.
func (r *Renderer) MeshLayout() *device.DescriptorSetLayout {
	return r.meshLayout
}

// MaterialLayout is the descriptor set layout materials drawn by the
// renderer must be created with.
func (r *Renderer) MaterialLayout() *device.DescriptorSetLayout {
	return r.materialLayout
}

// FramesInFlight returns the number of frames recorded ahead of the GPU.
func (r *Renderer) FramesInFlight() int {
	return len(r.frames)
}

// Swapchain returns the swapchain presented to.
func (r *Renderer) Swapchain() *display.Swapchain {
	return r.swapchain
}

// SetScene sets the scene drawn from the next frame on.
func (r *Renderer) SetScene(scene *Scene) {
	r.scene = scene
}

// HandleInput forwards an input event to the scene.
func (r *Renderer) HandleInput(ev model.InputEvent) {
	if r.scene != nil {
		r.scene.HandleInput(ev)
	}
}

// Frame advances the scene by dt, then waits for the frame slot to be
// free, acquires a swapchain image, records, submits and presents.
// An out of date swapchain is recreated and the frame skipped; only
// unrecoverable errors are returned.
func (r *Renderer) Frame(dt time.Duration) (FrameStatus, error) {
	extent := r.swapchain.SurfaceExtent()
	if extent.Width == 0 || extent.Height == 0 {
		r.log.Debug("drawable area is empty, frame skipped")
		return FrameSkipped, nil
	}
	if r.swapchain.Stale() {
		if err := r.recreate(); err != nil {
			return FrameSkipped, err
		}
	}
	if r.scene != nil {
		r.scene.AdvanceTick(dt)
	}

	drv := r.device.Driver()
	slot := int(r.frame % uint64(len(r.frames)))
	sync := &r.frames[slot]

	if err := drv.WaitForFence(sync.inFlight, device.WaitForever); err != nil {
		return FrameSkipped, errors.Wrap(err, "wait for frame fence")
	}

	index, err := drv.AcquireNextImage(r.swapchain.Handle(), device.WaitForever, sync.imageAvailable)
	if errors.Is(err, gfx.ErrOutOfDate) {
		r.log.WithField("frame", r.frame).Warn("swapchain out of date on acquire, frame skipped")
		return FrameSkipped, r.recreate()
	} else if err != nil {
		return FrameSkipped, errors.Wrap(err, "acquire next image")
	}

	if err := r.record(sync.cmd, index, slot); err != nil {
		// Consume the acquire semaphore so the slot can be used again.
		// The fence was not reset and stays signaled.
		if serr := drv.QueueSubmit(r.device.Queue(), gfx.SubmitInfo{
			Wait:       []gfx.Semaphore{sync.imageAvailable},
			WaitStages: []gfx.PipelineStage{gfx.PipelineStageColorAttachmentOutput},
		}, gfx.NullHandle); serr != nil {
			r.log.WithError(serr).Error("release acquire semaphore")
		}
		return FrameSkipped, err
	}
	if err := drv.ResetFence(sync.inFlight); err != nil {
		return FrameSkipped, errors.Wrap(err, "reset frame fence")
	}
	if err := drv.QueueSubmit(r.device.Queue(), gfx.SubmitInfo{
		CommandBuffer: sync.cmd,
		Wait:          []gfx.Semaphore{sync.imageAvailable},
		WaitStages:    []gfx.PipelineStage{gfx.PipelineStageColorAttachmentOutput},
		Signal:        []gfx.Semaphore{sync.renderFinished},
	}, sync.inFlight); err != nil {
		return FrameSkipped, errors.Wrap(err, "queue submit")
	}
	r.frame++

	err = drv.QueuePresent(r.device.Queue(), gfx.PresentInfo{
		Wait:       []gfx.Semaphore{sync.renderFinished},
		Swapchain:  r.swapchain.Handle(),
		ImageIndex: index,
	})
	if errors.Is(err, gfx.ErrOutOfDate) {
		r.log.WithField("frame", r.frame-1).Warn("swapchain out of date on present")
		return FrameSkipped, r.recreate()
	} else if err != nil {
		return FrameSkipped, errors.Wrap(err, "queue present")
	}
	return FramePresented, nil
}

// Frames returns the number of frames submitted so far.
func (r *Renderer) Frames() uint64 {
	return r.frame
}

func (r *Renderer) record(cmd gfx.CommandBuffer, index uint32, slot int) error {
	drv := r.device.Driver()
	extent := r.swapchain.Extent()
	color := r.swapchain.Image(index)
	depth := r.swapchain.Depth(slot)

	if err := drv.ResetCommandBuffer(cmd); err != nil {
		return errors.Wrap(err, "reset command buffer")
	}
	if err := drv.BeginCommandBuffer(cmd, false); err != nil {
		return errors.Wrap(err, "begin command buffer")
	}

	r.device.RecordLayoutTransition(cmd, gfx.ImageBarrier{
		Image:     color,
		OldLayout: gfx.ImageLayoutUndefined,
		NewLayout: gfx.ImageLayoutColorAttachmentOptimal,
		SrcAccess: gfx.AccessNone,
		DstAccess: gfx.AccessColorAttachmentWrite,
		Aspect:    gfx.ImageAspectColor,
	}, gfx.PipelineStageTopOfPipe, gfx.PipelineStageColorAttachmentOutput)
	r.device.RecordLayoutTransition(cmd, gfx.ImageBarrier{
		Image:     depth.Image(),
		OldLayout: gfx.ImageLayoutUndefined,
		NewLayout: gfx.ImageLayoutDepthStencilAttachmentOptimal,
		SrcAccess: gfx.AccessNone,
		DstAccess: gfx.AccessDepthStencilAttachmentRead | gfx.AccessDepthStencilAttachmentWrite,
		Aspect:    gfx.ImageAspectDepth,
	}, gfx.PipelineStageTopOfPipe, gfx.PipelineStageEarlyFragmentTests|gfx.PipelineStageLateFragmentTests)

	drv.CmdBeginRendering(cmd, gfx.RenderingInfo{
		Area: gfx.Rect2D{Extent: extent},
		Color: []gfx.RenderingAttachment{{
			View:    r.swapchain.View(index).Handle(),
			Layout:  gfx.ImageLayoutColorAttachmentOptimal,
			LoadOp:  gfx.LoadOpClear,
			StoreOp: gfx.StoreOpStore,
			Clear:   gfx.ClearValue{Color: r.cfg.ClearColor},
		}},
		Depth: &gfx.RenderingAttachment{
			View:    depth.Handle(),
			Layout:  gfx.ImageLayoutDepthStencilAttachmentOptimal,
			LoadOp:  gfx.LoadOpClear,
			StoreOp: gfx.StoreOpDontCare,
			Clear:   gfx.ClearValue{Depth: 1},
		},
	})
	drv.CmdBindPipeline(cmd, r.pipeline.Handle())
	drv.CmdSetViewport(cmd, gfx.Viewport{
		Width:    float32(extent.Width),
		Height:   float32(extent.Height),
		MaxDepth: 1,
	})
	drv.CmdSetScissor(cmd, gfx.Rect2D{Extent: extent})

	if r.scene != nil {
		view := r.scene.Camera.ViewMatrix()
		projection := r.scene.Camera.Projection(extent)
		for _, d := range r.scene.Drawables {
			if err := d.RecordDraw(cmd, r.pipeline.Layout(), view, projection); err != nil {
				return errors.Wrap(err, "record draw")
			}
		}
	}

	drv.CmdEndRendering(cmd)
	r.device.RecordLayoutTransition(cmd, gfx.ImageBarrier{
		Image:     color,
		OldLayout: gfx.ImageLayoutColorAttachmentOptimal,
		NewLayout: gfx.ImageLayoutPresentSrc,
		SrcAccess: gfx.AccessColorAttachmentWrite,
		DstAccess: gfx.AccessNone,
		Aspect:    gfx.ImageAspectColor,
	}, gfx.PipelineStageColorAttachmentOutput, gfx.PipelineStageBottomOfPipe)

	return errors.Wrap(drv.EndCommandBuffer(cmd), "end command buffer")
}

func (r *Renderer) recreate() error {
	format := r.swapchain.Format()
	if err := r.swapchain.Recreate(); err != nil {
		return err
	}
	if r.swapchain.Format() != format {
		r.log.WithField("format", r.swapchain.Format()).Info("swapchain format changed, rebuilding pipeline")
		return r.createPipeline()
	}
	return nil
}

// Release waits for the device to go idle and releases everything the
// renderer created. The scene is left to its owner.
func (r *Renderer) Release() {
	if err := r.device.WaitIdle(); err != nil {
		r.log.WithError(err).Error("wait idle before renderer release")
	}
	for _, s := range r.frames {
		r.device.DestroySemaphore(s.renderFinished)
		r.device.DestroySemaphore(s.imageAvailable)
		r.device.DestroyFence(s.inFlight)
		r.device.FreeCommandBuffer(s.cmd)
	}
	r.frames = nil
	r.pipeline.Release()
	r.pipeline = nil
	for _, s := range r.shaders {
		s.Release()
	}
	r.shaders = nil
	r.materialLayout.Release()
	r.meshLayout.Release()
	r.swapchain.Release()
}
