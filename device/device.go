// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package device owns the logical graphics device and is the factory
// for every GPU resource the renderer uses.
package device

import (
	"math"

	"github.com/devblok/vulkan3d/gfx"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

var (
	// ErrNoSuitableDevice is returned when no discrete GPU is present.
	ErrNoSuitableDevice = errors.New("no discrete GPU found")

	// ErrNoGraphicsQueue is returned when the selected device has no
	// queue family with graphics capability.
	ErrNoGraphicsQueue = errors.New("no graphics queue family found")
)

// WaitForever is the timeout used for fence waits and image acquisition.
const WaitForever = math.MaxUint64

// Config configures device creation.
type Config struct {
	// Extensions are device extensions to enable. The swapchain
	// extension is always enabled.
	Extensions []string

	Log log.FieldLogger
}

// Device is the logical device, its graphics queue and command pool.
// There should be exactly one per process, handed to every component
// that needs GPU access. Not safe for concurrent use.
type Device struct {
	driver gfx.Driver
	log    log.FieldLogger

	physical    gfx.PhysicalDeviceInfo
	queueFamily uint32
	queue       gfx.Queue
	pool        gfx.CommandPool
	allocator   *Allocator
}

// New selects the first discrete GPU and its first graphics capable
// queue family, then opens the logical device.
func New(driver gfx.Driver, cfg Config) (*Device, error) {
	if cfg.Log == nil {
		cfg.Log = log.StandardLogger()
	}

	devices, err := driver.PhysicalDevices()
	if err != nil {
		return nil, errors.Wrap(err, "physical devices")
	}
	physical, err := selectPhysicalDevice(devices)
	if err != nil {
		return nil, err
	}
	queueFamily, err := selectQueueFamily(physical)
	if err != nil {
		return nil, err
	}

	extensions := append([]string{"VK_KHR_swapchain"}, cfg.Extensions...)
	queue, err := driver.OpenDevice(physical.Handle, queueFamily, extensions)
	if err != nil {
		return nil, errors.Wrap(err, "open device")
	}

	pool, err := driver.CreateCommandPool(queueFamily)
	if err != nil {
		driver.CloseDevice()
		return nil, errors.Wrap(err, "create command pool")
	}

	cfg.Log.WithFields(log.Fields{
		"device":      physical.Name,
		"type":        physical.Type,
		"queueFamily": queueFamily,
	}).Info("device opened")

	return &Device{
		driver:      driver,
		log:         cfg.Log,
		physical:    physical,
		queueFamily: queueFamily,
		queue:       queue,
		pool:        pool,
		allocator:   newAllocator(driver, cfg.Log),
	}, nil
}

func selectPhysicalDevice(devices []gfx.PhysicalDeviceInfo) (gfx.PhysicalDeviceInfo, error) {
	for _, d := range devices {
		if d.Type == gfx.DeviceTypeDiscreteGpu {
			return d, nil
		}
	}
	return gfx.PhysicalDeviceInfo{}, ErrNoSuitableDevice
}

func selectQueueFamily(physical gfx.PhysicalDeviceInfo) (uint32, error) {
	for i, qf := range physical.QueueFamilies {
		if qf.Flags&gfx.QueueGraphics != 0 {
			return uint32(i), nil
		}
	}
	return 0, ErrNoGraphicsQueue
}

// Driver returns the driver commands are recorded with.
func (d *Device) Driver() gfx.Driver {
	return d.driver
}

// Log returns the logger the device was configured with.
func (d *Device) Log() log.FieldLogger {
	return d.log
}

// Physical describes the selected physical device.
func (d *Device) Physical() gfx.PhysicalDeviceInfo {
	return d.physical
}

// Queue returns the graphics queue.
func (d *Device) Queue() gfx.Queue {
	return d.queue
}

// QueueFamily returns the index of the graphics queue family.
func (d *Device) QueueFamily() uint32 {
	return d.queueFamily
}

// Allocator returns the memory allocator of the device.
func (d *Device) Allocator() *Allocator {
	return d.allocator
}

// WaitIdle blocks until the device has finished all submitted work.
func (d *Device) WaitIdle() error {
	return errors.Wrap(d.driver.WaitIdle(), "wait idle")
}

// CreateCommandBuffer allocates a primary command buffer from the
// device command pool.
func (d *Device) CreateCommandBuffer() (gfx.CommandBuffer, error) {
	cmd, err := d.driver.AllocateCommandBuffer(d.pool)
	if err != nil {
		return gfx.NullHandle, errors.Wrap(err, "allocate command buffer")
	}
	return cmd, nil
}

// FreeCommandBuffer returns a command buffer to the device command pool.
func (d *Device) FreeCommandBuffer(cmd gfx.CommandBuffer) {
	d.driver.FreeCommandBuffer(d.pool, cmd)
}

// CreateFence creates a fence. Frame fences start signaled so the
// first frame does not wait for a frame that never ran.
func (d *Device) CreateFence(signaled bool) (gfx.Fence, error) {
	fence, err := d.driver.CreateFence(signaled)
	if err != nil {
		return gfx.NullHandle, errors.Wrap(err, "create fence")
	}
	return fence, nil
}

// DestroyFence destroys a fence.
func (d *Device) DestroyFence(fence gfx.Fence) {
	d.driver.DestroyFence(fence)
}

// CreateSemaphore creates a binary semaphore.
func (d *Device) CreateSemaphore() (gfx.Semaphore, error) {
	sem, err := d.driver.CreateSemaphore()
	if err != nil {
		return gfx.NullHandle, errors.Wrap(err, "create semaphore")
	}
	return sem, nil
}

// DestroySemaphore destroys a semaphore.
func (d *Device) DestroySemaphore(sem gfx.Semaphore) {
	d.driver.DestroySemaphore(sem)
}

// RecordLayoutTransition records a single image memory barrier moving
// barrier.Image from barrier.OldLayout to barrier.NewLayout. Work in
// src stages before the barrier is ordered before work in dst stages
// after it. Callers choose layouts, stages and access masks that fit
// the operation that follows.
func (d *Device) RecordLayoutTransition(cmd gfx.CommandBuffer, barrier gfx.ImageBarrier, src, dst gfx.PipelineStage) {
	d.driver.CmdPipelineBarrier(cmd, src, dst, gfx.DependencyByRegion, barrier)
}

// SubmitImmediate records commands into a transient command buffer,
// submits it to the graphics queue and waits for the queue to drain.
func (d *Device) SubmitImmediate(record func(cmd gfx.CommandBuffer) error) error {
	cmd, err := d.CreateCommandBuffer()
	if err != nil {
		return err
	}
	defer d.FreeCommandBuffer(cmd)

	if err := d.driver.BeginCommandBuffer(cmd, true); err != nil {
		return errors.Wrap(err, "begin command buffer")
	}
	if err := record(cmd); err != nil {
		d.driver.EndCommandBuffer(cmd)
		return err
	}
	if err := d.driver.EndCommandBuffer(cmd); err != nil {
		return errors.Wrap(err, "end command buffer")
	}
	if err := d.driver.QueueSubmit(d.queue, gfx.SubmitInfo{CommandBuffer: cmd}, gfx.NullHandle); err != nil {
		return errors.Wrap(err, "queue submit")
	}
	return errors.Wrap(d.driver.QueueWaitIdle(d.queue), "queue wait idle")
}

// Release waits for the device to go idle, reports leaked allocations
// and closes the device. All resources should be released before.
func (d *Device) Release() {
	if err := d.driver.WaitIdle(); err != nil {
		d.log.WithError(err).Error("wait idle before release")
	}
	d.driver.DestroyCommandPool(d.pool)
	d.allocator.report()
	d.driver.CloseDevice()
}
