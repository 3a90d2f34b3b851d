// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package gfxtest provides an in-memory gfx.Driver that records every
// call and checks the usage rules a real device would enforce: image
// layouts, semaphore and fence states, descriptor layout compatibility,
// and double frees. GPU work completes the moment it is submitted.
package gfxtest

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/devblok/vulkan3d/gfx"
)

// ErrDeadlock is returned when a wait could never complete.
var ErrDeadlock = errors.New("gfxtest: wait would never complete")

// Call is a single recorded driver call.
type Call struct {
	Op     string
	Handle uint64
}

type image struct {
	info      gfx.ImageInfo
	layout    gfx.ImageLayout
	swapchain bool
}

type view struct {
	image  gfx.Image
	format gfx.Format
	aspect gfx.ImageAspect
}

type pool struct {
	maxSets   uint32
	sizes     []gfx.PoolSize
	allocated uint32
}

type set struct {
	layout  gfx.DescriptorSetLayout
	written map[uint32]bool
}

type swapchain struct {
	info   gfx.SwapchainInfo
	images []gfx.Image
	next   uint32
}

// Driver implements gfx.Driver in memory.
type Driver struct {
	// Devices returned by PhysicalDevices.
	Devices []gfx.PhysicalDeviceInfo

	// Formats returned by SurfaceFormats.
	Formats []gfx.SurfaceFormat

	// AcquireErrors maps the 1-based number of an AcquireNextImage
	// call to the error it reports.
	AcquireErrors map[int]error

	// PresentErrors maps the 1-based number of a QueuePresent call
	// to the error it reports.
	PresentErrors map[int]error

	// Calls lists every call in order.
	Calls []Call

	// Violations lists broken usage rules.
	Violations []string

	opened     bool
	next       uint64
	live       map[uint64]string
	memory     map[gfx.Allocation][]byte
	mapped     map[gfx.Allocation]bool
	buffers    map[gfx.Buffer]uint64
	images     map[gfx.Image]*image
	views      map[gfx.ImageView]view
	setLayouts map[gfx.DescriptorSetLayout][]gfx.DescriptorBinding
	pools      map[gfx.DescriptorPool]*pool
	sets       map[gfx.DescriptorSet]*set
	pipeLayout map[gfx.PipelineLayout][]gfx.DescriptorSetLayout
	pipelines  map[gfx.Pipeline]gfx.GraphicsPipelineInfo
	fences     map[gfx.Fence]bool
	semaphores map[gfx.Semaphore]bool
	swapchains map[gfx.Swapchain]*swapchain
	recording  map[gfx.CommandBuffer]bool
	bound      map[gfx.CommandBuffer]gfx.Pipeline
	boundSets  map[gfx.CommandBuffer]map[uint32]bool
	acquires   int
	presents   int
}

var _ gfx.Driver = (*Driver)(nil)

// New returns a driver exposing a single discrete GPU with one
// graphics queue family and a B8G8R8A8 sRGB surface.
func New() *Driver {
	return &Driver{
		Devices: []gfx.PhysicalDeviceInfo{{
			Handle:        1,
			Name:          "gfxtest discrete",
			Type:          gfx.DeviceTypeDiscreteGpu,
			QueueFamilies: []gfx.QueueFamily{{Flags: gfx.QueueGraphics | gfx.QueueTransfer, Count: 1}},
			Extensions:    []string{"VK_KHR_swapchain"},
		}},
		Formats: []gfx.SurfaceFormat{
			{Format: gfx.FormatB8G8R8A8Srgb, ColorSpace: gfx.ColorSpaceSrgbNonlinear},
		},
		live:       make(map[uint64]string),
		memory:     make(map[gfx.Allocation][]byte),
		mapped:     make(map[gfx.Allocation]bool),
		buffers:    make(map[gfx.Buffer]uint64),
		images:     make(map[gfx.Image]*image),
		views:      make(map[gfx.ImageView]view),
		setLayouts: make(map[gfx.DescriptorSetLayout][]gfx.DescriptorBinding),
		pools:      make(map[gfx.DescriptorPool]*pool),
		sets:       make(map[gfx.DescriptorSet]*set),
		pipeLayout: make(map[gfx.PipelineLayout][]gfx.DescriptorSetLayout),
		pipelines:  make(map[gfx.Pipeline]gfx.GraphicsPipelineInfo),
		fences:     make(map[gfx.Fence]bool),
		semaphores: make(map[gfx.Semaphore]bool),
		swapchains: make(map[gfx.Swapchain]*swapchain),
		recording:  make(map[gfx.CommandBuffer]bool),
		bound:      make(map[gfx.CommandBuffer]gfx.Pipeline),
		boundSets:  make(map[gfx.CommandBuffer]map[uint32]bool),
	}
}

// Surface returns a surface handle usable with this driver.
func (d *Driver) Surface() gfx.Surface {
	return gfx.Surface(d.create("surface"))
}

// Count returns how many times op was called.
func (d *Driver) Count(op string) int {
	n := 0
	for _, c := range d.Calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

// Live returns the number of objects created and not yet destroyed,
// grouped by kind. Surfaces are owned by the caller and not counted.
func (d *Driver) Live() map[string]int {
	out := make(map[string]int)
	for _, kind := range d.live {
		if kind != "surface" {
			out[kind]++
		}
	}
	return out
}

// Layout returns the last recorded layout of an image.
func (d *Driver) Layout(img gfx.Image) gfx.ImageLayout {
	if i, ok := d.images[img]; ok {
		return i.layout
	}
	return gfx.ImageLayoutUndefined
}

// ImageInfo returns the creation info of an image.
func (d *Driver) ImageInfo(img gfx.Image) gfx.ImageInfo {
	if i, ok := d.images[img]; ok {
		return i.info
	}
	return gfx.ImageInfo{}
}

// ViewImage returns the image a view was created for.
func (d *Driver) ViewImage(v gfx.ImageView) gfx.Image {
	return d.views[v].image
}

// PoolSizes returns the sizes a descriptor pool was created with.
func (d *Driver) PoolSizes(p gfx.DescriptorPool) (maxSets uint32, sizes []gfx.PoolSize) {
	if pl, ok := d.pools[p]; ok {
		return pl.maxSets, pl.sizes
	}
	return 0, nil
}

// Swapchain returns the creation info of a swapchain.
func (d *Driver) Swapchain(sc gfx.Swapchain) gfx.SwapchainInfo {
	if s, ok := d.swapchains[sc]; ok {
		return s.info
	}
	return gfx.SwapchainInfo{}
}

func (d *Driver) record(op string, handle uint64) {
	d.Calls = append(d.Calls, Call{Op: op, Handle: handle})
}

func (d *Driver) violate(format string, args ...interface{}) {
	d.Violations = append(d.Violations, fmt.Sprintf(format, args...))
}

func (d *Driver) create(kind string) uint64 {
	d.next++
	d.live[d.next] = kind
	return d.next
}

func (d *Driver) destroy(kind string, h uint64) bool {
	if h == gfx.NullHandle {
		return false
	}
	if d.live[h] != kind {
		d.violate("destroy of unknown or freed %s %d", kind, h)
		return false
	}
	delete(d.live, h)
	return true
}

func (d *Driver) requireRecording(op string, cmd gfx.CommandBuffer) {
	d.record(op, uint64(cmd))
	if !d.recording[cmd] {
		d.violate("%s on command buffer %d outside recording", op, cmd)
	}
}

// PhysicalDevices implements gfx.Driver
func (d *Driver) PhysicalDevices() ([]gfx.PhysicalDeviceInfo, error) {
	d.record("PhysicalDevices", 0)
	return d.Devices, nil
}

// OpenDevice implements gfx.Driver
func (d *Driver) OpenDevice(physical gfx.PhysicalDevice, queueFamily uint32, extensions []string) (gfx.Queue, error) {
	d.record("OpenDevice", uint64(physical))
	if d.opened {
		d.violate("device opened twice")
	}
	d.opened = true
	return gfx.Queue(d.create("queue")), nil
}

// CloseDevice implements gfx.Driver
func (d *Driver) CloseDevice() {
	d.record("CloseDevice", 0)
	for h, kind := range d.live {
		if kind == "queue" {
			delete(d.live, h)
		}
	}
	d.opened = false
}

// WaitIdle implements gfx.Driver
func (d *Driver) WaitIdle() error {
	d.record("WaitIdle", 0)
	return nil
}

// CreateBuffer implements gfx.Driver
func (d *Driver) CreateBuffer(size uint64, usage gfx.BufferUsage, memory gfx.MemoryUsage) (gfx.Buffer, gfx.Allocation, error) {
	b := gfx.Buffer(d.create("buffer"))
	a := gfx.Allocation(d.create("allocation"))
	d.buffers[b] = size
	if memory == gfx.MemoryCPUToGPU {
		d.memory[a] = make([]byte, size)
	}
	d.record("CreateBuffer", uint64(b))
	return b, a, nil
}

// DestroyBuffer implements gfx.Driver
func (d *Driver) DestroyBuffer(buffer gfx.Buffer, alloc gfx.Allocation) {
	d.record("DestroyBuffer", uint64(buffer))
	if d.destroy("buffer", uint64(buffer)) {
		delete(d.buffers, buffer)
	}
	if d.destroy("allocation", uint64(alloc)) {
		delete(d.memory, alloc)
		delete(d.mapped, alloc)
	}
}

// CreateImage implements gfx.Driver
func (d *Driver) CreateImage(info gfx.ImageInfo, memory gfx.MemoryUsage) (gfx.Image, gfx.Allocation, error) {
	if info.Extent.Width == 0 || info.Extent.Height == 0 || info.Extent.Depth == 0 {
		return 0, 0, fmt.Errorf("gfxtest: invalid image extent %v", info.Extent)
	}
	img := gfx.Image(d.create("image"))
	a := gfx.Allocation(d.create("allocation"))
	d.images[img] = &image{info: info, layout: gfx.ImageLayoutUndefined}
	d.record("CreateImage", uint64(img))
	return img, a, nil
}

// DestroyImage implements gfx.Driver
func (d *Driver) DestroyImage(img gfx.Image, alloc gfx.Allocation) {
	d.record("DestroyImage", uint64(img))
	if d.destroy("image", uint64(img)) {
		delete(d.images, img)
	}
	d.destroy("allocation", uint64(alloc))
}

// MapMemory implements gfx.Driver
func (d *Driver) MapMemory(alloc gfx.Allocation) ([]byte, error) {
	d.record("MapMemory", uint64(alloc))
	mem, ok := d.memory[alloc]
	if !ok {
		return nil, fmt.Errorf("gfxtest: allocation %d is not host visible", alloc)
	}
	if d.mapped[alloc] {
		d.violate("allocation %d mapped twice", alloc)
	}
	d.mapped[alloc] = true
	return mem, nil
}

// UnmapMemory implements gfx.Driver
func (d *Driver) UnmapMemory(alloc gfx.Allocation) {
	d.record("UnmapMemory", uint64(alloc))
	if !d.mapped[alloc] {
		d.violate("allocation %d unmapped while not mapped", alloc)
	}
	d.mapped[alloc] = false
}

// CreateImageView implements gfx.Driver
func (d *Driver) CreateImageView(img gfx.Image, format gfx.Format, aspect gfx.ImageAspect) (gfx.ImageView, error) {
	if _, ok := d.images[img]; !ok {
		return 0, fmt.Errorf("gfxtest: view of unknown image %d", img)
	}
	v := gfx.ImageView(d.create("view"))
	d.views[v] = view{image: img, format: format, aspect: aspect}
	d.record("CreateImageView", uint64(v))
	return v, nil
}

// DestroyImageView implements gfx.Driver
func (d *Driver) DestroyImageView(v gfx.ImageView) {
	d.record("DestroyImageView", uint64(v))
	if d.destroy("view", uint64(v)) {
		delete(d.views, v)
	}
}

// CreateSampler implements gfx.Driver
func (d *Driver) CreateSampler(info gfx.SamplerInfo) (gfx.Sampler, error) {
	s := gfx.Sampler(d.create("sampler"))
	d.record("CreateSampler", uint64(s))
	return s, nil
}

// DestroySampler implements gfx.Driver
func (d *Driver) DestroySampler(s gfx.Sampler) {
	d.record("DestroySampler", uint64(s))
	d.destroy("sampler", uint64(s))
}

// CreateDescriptorSetLayout implements gfx.Driver
func (d *Driver) CreateDescriptorSetLayout(bindings []gfx.DescriptorBinding) (gfx.DescriptorSetLayout, error) {
	l := gfx.DescriptorSetLayout(d.create("descriptor set layout"))
	d.setLayouts[l] = append([]gfx.DescriptorBinding(nil), bindings...)
	d.record("CreateDescriptorSetLayout", uint64(l))
	return l, nil
}

// DestroyDescriptorSetLayout implements gfx.Driver
func (d *Driver) DestroyDescriptorSetLayout(l gfx.DescriptorSetLayout) {
	d.record("DestroyDescriptorSetLayout", uint64(l))
	d.destroy("descriptor set layout", uint64(l))
}

// CreateDescriptorPool implements gfx.Driver
func (d *Driver) CreateDescriptorPool(maxSets uint32, sizes []gfx.PoolSize) (gfx.DescriptorPool, error) {
	p := gfx.DescriptorPool(d.create("descriptor pool"))
	d.pools[p] = &pool{maxSets: maxSets, sizes: append([]gfx.PoolSize(nil), sizes...)}
	d.record("CreateDescriptorPool", uint64(p))
	return p, nil
}

// DestroyDescriptorPool implements gfx.Driver
func (d *Driver) DestroyDescriptorPool(p gfx.DescriptorPool) {
	d.record("DestroyDescriptorPool", uint64(p))
	if d.destroy("descriptor pool", uint64(p)) {
		delete(d.pools, p)
	}
}

// AllocateDescriptorSet implements gfx.Driver
func (d *Driver) AllocateDescriptorSet(p gfx.DescriptorPool, l gfx.DescriptorSetLayout) (gfx.DescriptorSet, error) {
	pl, ok := d.pools[p]
	if !ok {
		return 0, fmt.Errorf("gfxtest: unknown descriptor pool %d", p)
	}
	if pl.allocated >= pl.maxSets {
		return 0, errors.New("gfxtest: descriptor pool exhausted")
	}
	pl.allocated++
	s := gfx.DescriptorSet(d.next + 1)
	d.next++
	d.sets[s] = &set{layout: l, written: make(map[uint32]bool)}
	d.record("AllocateDescriptorSet", uint64(s))
	return s, nil
}

// UpdateDescriptorSets implements gfx.Driver
func (d *Driver) UpdateDescriptorSets(writes []gfx.DescriptorWrite) {
	d.record("UpdateDescriptorSets", 0)
	for _, w := range writes {
		s, ok := d.sets[w.Set]
		if !ok {
			d.violate("write to unknown descriptor set %d", w.Set)
			continue
		}
		var found bool
		for _, b := range d.setLayouts[s.layout] {
			if b.Binding == w.Binding && b.Type == w.Type {
				found = true
			}
		}
		if !found {
			d.violate("write to binding %d of set %d does not match its layout", w.Binding, w.Set)
		}
		if (w.Buffer == nil) == (w.Image == nil) {
			d.violate("write to binding %d of set %d must reference exactly one resource", w.Binding, w.Set)
		}
		if w.Image != nil {
			if _, ok := d.views[w.Image.View]; !ok {
				d.violate("write of unknown view %d", w.Image.View)
			}
		}
		s.written[w.Binding] = true
	}
}

// CreateCommandPool implements gfx.Driver
func (d *Driver) CreateCommandPool(queueFamily uint32) (gfx.CommandPool, error) {
	p := gfx.CommandPool(d.create("command pool"))
	d.record("CreateCommandPool", uint64(p))
	return p, nil
}

// DestroyCommandPool implements gfx.Driver
func (d *Driver) DestroyCommandPool(p gfx.CommandPool) {
	d.record("DestroyCommandPool", uint64(p))
	d.destroy("command pool", uint64(p))
}

// AllocateCommandBuffer implements gfx.Driver
func (d *Driver) AllocateCommandBuffer(p gfx.CommandPool) (gfx.CommandBuffer, error) {
	c := gfx.CommandBuffer(d.create("command buffer"))
	d.record("AllocateCommandBuffer", uint64(c))
	return c, nil
}

// FreeCommandBuffer implements gfx.Driver
func (d *Driver) FreeCommandBuffer(p gfx.CommandPool, c gfx.CommandBuffer) {
	d.record("FreeCommandBuffer", uint64(c))
	d.destroy("command buffer", uint64(c))
}

// CreateFence implements gfx.Driver
func (d *Driver) CreateFence(signaled bool) (gfx.Fence, error) {
	f := gfx.Fence(d.create("fence"))
	d.fences[f] = signaled
	d.record("CreateFence", uint64(f))
	return f, nil
}

// DestroyFence implements gfx.Driver
func (d *Driver) DestroyFence(f gfx.Fence) {
	d.record("DestroyFence", uint64(f))
	if d.destroy("fence", uint64(f)) {
		delete(d.fences, f)
	}
}

// WaitForFence implements gfx.Driver. Waiting on a fence no pending
// submission will signal reports ErrDeadlock.
func (d *Driver) WaitForFence(f gfx.Fence, timeout uint64) error {
	d.record("WaitForFence", uint64(f))
	signaled, ok := d.fences[f]
	if !ok {
		return fmt.Errorf("gfxtest: unknown fence %d", f)
	}
	if !signaled {
		d.violate("wait on fence %d that is never signaled", f)
		return ErrDeadlock
	}
	return nil
}

// ResetFence implements gfx.Driver
func (d *Driver) ResetFence(f gfx.Fence) error {
	d.record("ResetFence", uint64(f))
	if _, ok := d.fences[f]; !ok {
		return fmt.Errorf("gfxtest: unknown fence %d", f)
	}
	d.fences[f] = false
	return nil
}

// CreateSemaphore implements gfx.Driver
func (d *Driver) CreateSemaphore() (gfx.Semaphore, error) {
	s := gfx.Semaphore(d.create("semaphore"))
	d.semaphores[s] = false
	d.record("CreateSemaphore", uint64(s))
	return s, nil
}

// DestroySemaphore implements gfx.Driver
func (d *Driver) DestroySemaphore(s gfx.Semaphore) {
	d.record("DestroySemaphore", uint64(s))
	if d.destroy("semaphore", uint64(s)) {
		delete(d.semaphores, s)
	}
}

// ResetCommandBuffer implements gfx.Driver
func (d *Driver) ResetCommandBuffer(c gfx.CommandBuffer) error {
	d.record("ResetCommandBuffer", uint64(c))
	d.recording[c] = false
	delete(d.bound, c)
	delete(d.boundSets, c)
	return nil
}

// BeginCommandBuffer implements gfx.Driver
func (d *Driver) BeginCommandBuffer(c gfx.CommandBuffer, oneTime bool) error {
	d.record("BeginCommandBuffer", uint64(c))
	if d.recording[c] {
		d.violate("command buffer %d begun twice", c)
	}
	d.recording[c] = true
	delete(d.bound, c)
	delete(d.boundSets, c)
	return nil
}

// EndCommandBuffer implements gfx.Driver
func (d *Driver) EndCommandBuffer(c gfx.CommandBuffer) error {
	d.requireRecording("EndCommandBuffer", c)
	d.recording[c] = false
	return nil
}

// CmdPipelineBarrier implements gfx.Driver
func (d *Driver) CmdPipelineBarrier(c gfx.CommandBuffer, src, dst gfx.PipelineStage, deps gfx.DependencyFlags, b gfx.ImageBarrier) {
	d.requireRecording("CmdPipelineBarrier", c)
	img, ok := d.images[b.Image]
	if !ok {
		d.violate("barrier on unknown image %d", b.Image)
		return
	}
	if b.OldLayout != gfx.ImageLayoutUndefined && b.OldLayout != img.layout {
		d.violate("barrier on image %d from %v, but image is in %v", b.Image, b.OldLayout, img.layout)
	}
	img.layout = b.NewLayout
}

// CmdCopyBufferToImage implements gfx.Driver
func (d *Driver) CmdCopyBufferToImage(c gfx.CommandBuffer, src gfx.Buffer, dst gfx.Image, layout gfx.ImageLayout, extent gfx.Extent3D, aspect gfx.ImageAspect) {
	d.requireRecording("CmdCopyBufferToImage", c)
	img, ok := d.images[dst]
	if !ok {
		d.violate("copy to unknown image %d", dst)
		return
	}
	if layout != gfx.ImageLayoutTransferDstOptimal || img.layout != layout {
		d.violate("copy to image %d in %v declared as %v", dst, img.layout, layout)
	}
	if _, ok := d.buffers[src]; !ok {
		d.violate("copy from unknown buffer %d", src)
	}
}

func (d *Driver) checkAttachment(a gfx.RenderingAttachment) {
	v, ok := d.views[a.View]
	if !ok {
		d.violate("rendering to unknown view %d", a.View)
		return
	}
	img := d.images[v.image]
	if img == nil {
		d.violate("rendering to view %d of a destroyed image", a.View)
		return
	}
	if img.layout != a.Layout {
		d.violate("rendering to image %d in %v declared as %v", v.image, img.layout, a.Layout)
	}
}

// CmdBeginRendering implements gfx.Driver
func (d *Driver) CmdBeginRendering(c gfx.CommandBuffer, info gfx.RenderingInfo) {
	d.requireRecording("CmdBeginRendering", c)
	for _, a := range info.Color {
		d.checkAttachment(a)
	}
	if info.Depth != nil {
		d.checkAttachment(*info.Depth)
	}
}

// CmdEndRendering implements gfx.Driver
func (d *Driver) CmdEndRendering(c gfx.CommandBuffer) {
	d.requireRecording("CmdEndRendering", c)
}

// CmdBindPipeline implements gfx.Driver
func (d *Driver) CmdBindPipeline(c gfx.CommandBuffer, p gfx.Pipeline) {
	d.requireRecording("CmdBindPipeline", c)
	if _, ok := d.pipelines[p]; !ok {
		d.violate("bind of unknown pipeline %d", p)
	}
	d.bound[c] = p
}

// CmdSetViewport implements gfx.Driver
func (d *Driver) CmdSetViewport(c gfx.CommandBuffer, viewport gfx.Viewport) {
	d.requireRecording("CmdSetViewport", c)
}

// CmdSetScissor implements gfx.Driver
func (d *Driver) CmdSetScissor(c gfx.CommandBuffer, scissor gfx.Rect2D) {
	d.requireRecording("CmdSetScissor", c)
}

// CmdBindDescriptorSets implements gfx.Driver. Each set must have been
// fully written and its layout must equal the pipeline layout's entry.
func (d *Driver) CmdBindDescriptorSets(c gfx.CommandBuffer, l gfx.PipelineLayout, firstSet uint32, sets []gfx.DescriptorSet) {
	d.requireRecording("CmdBindDescriptorSets", c)
	setLayouts, ok := d.pipeLayout[l]
	if !ok {
		d.violate("bind against unknown pipeline layout %d", l)
		return
	}
	for i, sh := range sets {
		idx := int(firstSet) + i
		s, ok := d.sets[sh]
		if !ok {
			d.violate("bind of unknown descriptor set %d", sh)
			continue
		}
		if idx >= len(setLayouts) {
			d.violate("descriptor set %d bound at index %d beyond pipeline layout", sh, idx)
			continue
		}
		if d.boundSets[c] == nil {
			d.boundSets[c] = make(map[uint32]bool)
		}
		d.boundSets[c][uint32(idx)] = true
		if !reflect.DeepEqual(d.setLayouts[s.layout], d.setLayouts[setLayouts[idx]]) {
			d.violate("descriptor set %d incompatible with pipeline layout at index %d", sh, idx)
		}
		for _, b := range d.setLayouts[s.layout] {
			if !s.written[b.Binding] {
				d.violate("descriptor set %d bound with unwritten binding %d", sh, b.Binding)
			}
		}
	}
}

// CmdBindVertexBuffers implements gfx.Driver
func (d *Driver) CmdBindVertexBuffers(c gfx.CommandBuffer, first uint32, buffers []gfx.Buffer, offsets []uint64) {
	d.requireRecording("CmdBindVertexBuffers", c)
	if len(buffers) != len(offsets) {
		d.violate("vertex buffer and offset counts differ")
	}
	for _, b := range buffers {
		if _, ok := d.buffers[b]; !ok {
			d.violate("bind of unknown vertex buffer %d", b)
		}
	}
}

// CmdBindIndexBuffer implements gfx.Driver
func (d *Driver) CmdBindIndexBuffer(c gfx.CommandBuffer, b gfx.Buffer, offset uint64, indexType gfx.IndexType) {
	d.requireRecording("CmdBindIndexBuffer", c)
	if _, ok := d.buffers[b]; !ok {
		d.violate("bind of unknown index buffer %d", b)
	}
}

// CmdDrawIndexed implements gfx.Driver. Every set of the bound
// pipeline's layout must have been bound.
func (d *Driver) CmdDrawIndexed(c gfx.CommandBuffer, indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	d.requireRecording("CmdDrawIndexed", c)
	p, ok := d.bound[c]
	if !ok {
		d.violate("draw on command buffer %d without a bound pipeline", c)
		return
	}
	for i := range d.pipeLayout[d.pipelines[p].Layout] {
		if !d.boundSets[c][uint32(i)] {
			d.violate("draw on command buffer %d with descriptor set %d unbound", c, i)
		}
	}
}

// QueueSubmit implements gfx.Driver. The submitted work completes
// immediately: waited semaphores are consumed, signaled ones and the
// fence become signaled.
func (d *Driver) QueueSubmit(q gfx.Queue, info gfx.SubmitInfo, f gfx.Fence) error {
	d.record("QueueSubmit", uint64(info.CommandBuffer))
	if d.recording[info.CommandBuffer] {
		d.violate("submit of command buffer %d still recording", info.CommandBuffer)
	}
	if len(info.Wait) != len(info.WaitStages) {
		d.violate("submit wait semaphore and stage counts differ")
	}
	for _, s := range info.Wait {
		if !d.semaphores[s] {
			d.violate("submit waits on unsignaled semaphore %d", s)
		}
		d.semaphores[s] = false
	}
	for _, s := range info.Signal {
		d.semaphores[s] = true
	}
	if f != gfx.NullHandle {
		if d.fences[f] {
			d.violate("submit signals fence %d that is already signaled", f)
		}
		d.fences[f] = true
	}
	return nil
}

// QueueWaitIdle implements gfx.Driver
func (d *Driver) QueueWaitIdle(q gfx.Queue) error {
	d.record("QueueWaitIdle", uint64(q))
	return nil
}

// QueuePresent implements gfx.Driver
func (d *Driver) QueuePresent(q gfx.Queue, info gfx.PresentInfo) error {
	d.record("QueuePresent", uint64(info.Swapchain))
	d.presents++
	for _, s := range info.Wait {
		if !d.semaphores[s] {
			d.violate("present waits on unsignaled semaphore %d", s)
		}
		d.semaphores[s] = false
	}
	sc, ok := d.swapchains[info.Swapchain]
	if !ok {
		d.violate("present to unknown swapchain %d", info.Swapchain)
		return nil
	}
	if int(info.ImageIndex) >= len(sc.images) {
		d.violate("present of image index %d out of range", info.ImageIndex)
		return nil
	}
	if l := d.images[sc.images[info.ImageIndex]].layout; l != gfx.ImageLayoutPresentSrc {
		d.violate("present of image in %v", l)
	}
	if err := d.PresentErrors[d.presents]; err != nil {
		return err
	}
	return nil
}

// SurfaceFormats implements gfx.Driver
func (d *Driver) SurfaceFormats(surface gfx.Surface) ([]gfx.SurfaceFormat, error) {
	d.record("SurfaceFormats", uint64(surface))
	return d.Formats, nil
}

// CreateSwapchain implements gfx.Driver. The swapchain owns
// MinImageCount images.
func (d *Driver) CreateSwapchain(info gfx.SwapchainInfo) (gfx.Swapchain, error) {
	if info.Extent.Width == 0 || info.Extent.Height == 0 {
		return 0, fmt.Errorf("gfxtest: invalid swapchain extent %v", info.Extent)
	}
	if info.Old != gfx.NullHandle {
		if _, ok := d.swapchains[info.Old]; !ok {
			d.violate("swapchain created from unknown old swapchain %d", info.Old)
		}
	}
	sc := gfx.Swapchain(d.create("swapchain"))
	s := &swapchain{info: info}
	for i := uint32(0); i < info.MinImageCount; i++ {
		d.next++
		img := gfx.Image(d.next)
		d.images[img] = &image{
			info: gfx.ImageInfo{
				Extent: gfx.Extent3D{Width: info.Extent.Width, Height: info.Extent.Height, Depth: 1},
				Format: info.Format,
				Usage:  info.Usage,
			},
			swapchain: true,
		}
		s.images = append(s.images, img)
	}
	d.swapchains[sc] = s
	d.record("CreateSwapchain", uint64(sc))
	return sc, nil
}

// DestroySwapchain implements gfx.Driver
func (d *Driver) DestroySwapchain(sc gfx.Swapchain) {
	d.record("DestroySwapchain", uint64(sc))
	if !d.destroy("swapchain", uint64(sc)) {
		return
	}
	for _, img := range d.swapchains[sc].images {
		delete(d.images, img)
	}
	delete(d.swapchains, sc)
}

// SwapchainImages implements gfx.Driver
func (d *Driver) SwapchainImages(sc gfx.Swapchain) ([]gfx.Image, error) {
	d.record("SwapchainImages", uint64(sc))
	s, ok := d.swapchains[sc]
	if !ok {
		return nil, fmt.Errorf("gfxtest: unknown swapchain %d", sc)
	}
	return s.images, nil
}

// AcquireNextImage implements gfx.Driver
func (d *Driver) AcquireNextImage(sc gfx.Swapchain, timeout uint64, signal gfx.Semaphore) (uint32, error) {
	d.record("AcquireNextImage", uint64(sc))
	d.acquires++
	if err := d.AcquireErrors[d.acquires]; err != nil {
		return 0, err
	}
	s, ok := d.swapchains[sc]
	if !ok {
		return 0, fmt.Errorf("gfxtest: unknown swapchain %d", sc)
	}
	if d.semaphores[signal] {
		d.violate("acquire signals semaphore %d that is already signaled", signal)
	}
	d.semaphores[signal] = true
	idx := s.next
	s.next = (s.next + 1) % uint32(len(s.images))
	return idx, nil
}

// CreateShaderModule implements gfx.Driver
func (d *Driver) CreateShaderModule(code []byte) (gfx.ShaderModule, error) {
	if len(code) == 0 || len(code)%4 != 0 {
		return 0, fmt.Errorf("gfxtest: malformed shader code of %d bytes", len(code))
	}
	m := gfx.ShaderModule(d.create("shader module"))
	d.record("CreateShaderModule", uint64(m))
	return m, nil
}

// DestroyShaderModule implements gfx.Driver
func (d *Driver) DestroyShaderModule(m gfx.ShaderModule) {
	d.record("DestroyShaderModule", uint64(m))
	d.destroy("shader module", uint64(m))
}

// CreatePipelineLayout implements gfx.Driver
func (d *Driver) CreatePipelineLayout(setLayouts []gfx.DescriptorSetLayout) (gfx.PipelineLayout, error) {
	l := gfx.PipelineLayout(d.create("pipeline layout"))
	d.pipeLayout[l] = append([]gfx.DescriptorSetLayout(nil), setLayouts...)
	d.record("CreatePipelineLayout", uint64(l))
	return l, nil
}

// DestroyPipelineLayout implements gfx.Driver
func (d *Driver) DestroyPipelineLayout(l gfx.PipelineLayout) {
	d.record("DestroyPipelineLayout", uint64(l))
	if d.destroy("pipeline layout", uint64(l)) {
		delete(d.pipeLayout, l)
	}
}

// CreateGraphicsPipeline implements gfx.Driver
func (d *Driver) CreateGraphicsPipeline(info gfx.GraphicsPipelineInfo) (gfx.Pipeline, error) {
	if _, ok := d.pipeLayout[info.Layout]; !ok {
		return 0, fmt.Errorf("gfxtest: unknown pipeline layout %d", info.Layout)
	}
	p := gfx.Pipeline(d.create("pipeline"))
	d.pipelines[p] = info
	d.record("CreateGraphicsPipeline", uint64(p))
	return p, nil
}

// DestroyPipeline implements gfx.Driver
func (d *Driver) DestroyPipeline(p gfx.Pipeline) {
	d.record("DestroyPipeline", uint64(p))
	if d.destroy("pipeline", uint64(p)) {
		delete(d.pipelines, p)
	}
}
