// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package vkr implements gfx.Driver on top of the vulkan-go bindings.
package vkr

import (
	"unsafe"

	"github.com/devblok/vulkan3d/gfx"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	vk "github.com/vulkan-go/vulkan"
)

// Config configures the Vulkan instance.
type Config struct {
	AppName    string
	Debug      bool
	Layers     []string
	Extensions []string
	Log        log.FieldLogger
}

// table maps opaque gfx handles to native objects.
type table[T any] struct {
	next  uint64
	items map[uint64]T
}

func (t *table[T]) put(v T) uint64 {
	if t.items == nil {
		t.items = make(map[uint64]T)
	}
	t.next++
	t.items[t.next] = v
	return t.next
}

func (t *table[T]) get(h uint64) T {
	return t.items[h]
}

func (t *table[T]) take(h uint64) (T, bool) {
	v, ok := t.items[h]
	delete(t.items, h)
	return v, ok
}

type imageView struct {
	view   vk.ImageView
	format vk.Format
}

var _ gfx.Driver = (*Driver)(nil)

// Driver implements gfx.Driver.
type Driver struct {
	log log.FieldLogger

	instance        vk.Instance
	physicalDevices []vk.PhysicalDevice
	physicalDevice  vk.PhysicalDevice
	device          vk.Device
	allocator       *MemoryAllocator

	queues          table[vk.Queue]
	surfaces        table[vk.Surface]
	swapchains      table[vk.Swapchain]
	swapchainImages map[gfx.Swapchain][]gfx.Image
	allocations     table[*Memory]
	buffers         table[vk.Buffer]
	images          table[vk.Image]
	views           table[imageView]
	samplers        table[vk.Sampler]
	setLayouts      table[vk.DescriptorSetLayout]
	pools           table[vk.DescriptorPool]
	sets            table[vk.DescriptorSet]
	commandPools    table[vk.CommandPool]
	commandBuffers  table[vk.CommandBuffer]
	fences          table[vk.Fence]
	semaphores      table[vk.Semaphore]
	shaders         table[vk.ShaderModule]
	pipelineLayouts table[vk.PipelineLayout]
	pipelines       table[vk.Pipeline]

	renderPasses map[renderPassKey]vk.RenderPass
	framebuffers map[framebufferKey]vk.Framebuffer
}

// New loads Vulkan through procAddr (nil selects the system loader)
// and creates an instance.
func New(procAddr unsafe.Pointer, cfg Config) (*Driver, error) {
	if cfg.Log == nil {
		cfg.Log = log.StandardLogger()
	}
	if cfg.AppName == "" {
		cfg.AppName = "vulkan3d"
	}
	if cfg.Debug {
		cfg.Layers = append(cfg.Layers, "VK_LAYER_KHRONOS_validation")
	}

	if procAddr == nil {
		if err := vk.SetDefaultGetInstanceProcAddr(); err != nil {
			return nil, errors.Wrap(err, "vk.SetDefaultGetInstanceProcAddr()")
		}
	} else {
		vk.SetGetInstanceProcAddr(procAddr)
	}
	if err := vk.Init(); err != nil {
		return nil, errors.Wrap(err, "vk.Init()")
	}

	appInfo := vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         vk.MakeVersion(1, 1, 0),
		ApplicationVersion: vk.MakeVersion(1, 0, 0),
		PApplicationName:   safeString(cfg.AppName),
		PEngineName:        safeString("vulkan3d"),
	}
	ici := vk.InstanceCreateInfo{
		SType:                   vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo:        &appInfo,
		EnabledExtensionCount:   uint32(len(cfg.Extensions)),
		PpEnabledExtensionNames: safeStrings(cfg.Extensions),
		EnabledLayerCount:       uint32(len(cfg.Layers)),
		PpEnabledLayerNames:     safeStrings(cfg.Layers),
	}

	var instance vk.Instance
	if err := vk.Error(vk.CreateInstance(&ici, nil, &instance)); err != nil {
		return nil, errors.Wrap(err, "vk.CreateInstance()")
	}
	vk.InitInstance(instance)

	physicalDevices, err := enumerateDevices(instance)
	if err != nil {
		vk.DestroyInstance(instance, nil)
		return nil, err
	}

	return &Driver{
		log:             cfg.Log,
		instance:        instance,
		physicalDevices: physicalDevices,
		swapchainImages: make(map[gfx.Swapchain][]gfx.Image),
		renderPasses:    make(map[renderPassKey]vk.RenderPass),
		framebuffers:    make(map[framebufferKey]vk.Framebuffer),
	}, nil
}

// Instance returns the native instance, as needed by window
// systems to create a surface.
func (d *Driver) Instance() vk.Instance {
	return d.instance
}

// RegisterSurface wraps a native surface created by the window system.
func (d *Driver) RegisterSurface(ptr unsafe.Pointer) gfx.Surface {
	return gfx.Surface(d.surfaces.put(vk.SurfaceFromPointer(uintptr(ptr))))
}

// Release destroys registered surfaces and the instance. The device
// must be closed first.
func (d *Driver) Release() {
	for h, surface := range d.surfaces.items {
		vk.DestroySurface(d.instance, surface, nil)
		delete(d.surfaces.items, h)
	}
	vk.DestroyInstance(d.instance, nil)
}

func enumerateDevices(instance vk.Instance) ([]vk.PhysicalDevice, error) {
	var deviceCount uint32
	if err := vk.Error(vk.EnumeratePhysicalDevices(instance, &deviceCount, nil)); err != nil {
		return nil, errors.Wrap(err, "vk.EnumeratePhysicalDevices()")
	}
	availableDevices := make([]vk.PhysicalDevice, deviceCount)
	if err := vk.Error(vk.EnumeratePhysicalDevices(instance, &deviceCount, availableDevices)); err != nil {
		return nil, errors.Wrap(err, "vk.EnumeratePhysicalDevices()")
	}
	return availableDevices, nil
}

// PhysicalDevices implements gfx.Driver
func (d *Driver) PhysicalDevices() ([]gfx.PhysicalDeviceInfo, error) {
	pdi := make([]gfx.PhysicalDeviceInfo, len(d.physicalDevices))
	for i, pd := range d.physicalDevices {
		pdi[i].Handle = gfx.PhysicalDevice(i + 1)

		var numDeviceExtensions uint32
		if err := vk.Error(vk.EnumerateDeviceExtensionProperties(pd, "", &numDeviceExtensions, nil)); err != nil {
			return nil, errors.Wrap(err, "vk.EnumerateDeviceExtensionProperties()")
		}
		deviceExt := make([]vk.ExtensionProperties, numDeviceExtensions)
		if err := vk.Error(vk.EnumerateDeviceExtensionProperties(pd, "", &numDeviceExtensions, deviceExt)); err != nil {
			return nil, errors.Wrap(err, "vk.EnumerateDeviceExtensionProperties()")
		}
		for _, ext := range deviceExt {
			ext.Deref()
			pdi[i].Extensions = append(pdi[i].Extensions, vk.ToString(ext.ExtensionName[:]))
		}

		var queueFamilyCount uint32
		vk.GetPhysicalDeviceQueueFamilyProperties(pd, &queueFamilyCount, nil)
		queueFamilies := make([]vk.QueueFamilyProperties, queueFamilyCount)
		vk.GetPhysicalDeviceQueueFamilyProperties(pd, &queueFamilyCount, queueFamilies)
		for _, qf := range queueFamilies {
			qf.Deref()
			pdi[i].QueueFamilies = append(pdi[i].QueueFamilies, gfx.QueueFamily{
				Flags: gfx.QueueFlags(qf.QueueFlags),
				Count: qf.QueueCount,
			})
		}

		var properties vk.PhysicalDeviceProperties
		vk.GetPhysicalDeviceProperties(pd, &properties)
		properties.Deref()
		pdi[i].Name = vk.ToString(properties.DeviceName[:])
		pdi[i].Type = gfx.DeviceType(properties.DeviceType)
		pdi[i].VendorID = properties.VendorID
		pdi[i].DeviceID = properties.DeviceID
		pdi[i].APIVersion = properties.ApiVersion
		pdi[i].DriverVersion = properties.DriverVersion
	}
	return pdi, nil
}

// OpenDevice implements gfx.Driver
func (d *Driver) OpenDevice(physical gfx.PhysicalDevice, queueFamily uint32, extensions []string) (gfx.Queue, error) {
	idx := int(physical) - 1
	if idx < 0 || idx >= len(d.physicalDevices) {
		return 0, errors.Errorf("vkr: unknown physical device %d", physical)
	}
	d.physicalDevice = d.physicalDevices[idx]

	queueInfos := []vk.DeviceQueueCreateInfo{{
		SType:            vk.StructureTypeDeviceQueueCreateInfo,
		QueueFamilyIndex: queueFamily,
		QueueCount:       1,
		PQueuePriorities: []float32{1},
	}}
	dci := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueInfos)),
		PQueueCreateInfos:       queueInfos,
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: safeStrings(extensions),
	}

	var device vk.Device
	if err := vk.Error(vk.CreateDevice(d.physicalDevice, &dci, nil, &device)); err != nil {
		return 0, errors.Wrap(err, "vk.CreateDevice()")
	}
	d.device = device
	d.allocator = NewMemoryAllocator(device, d.physicalDevice)

	var queue vk.Queue
	vk.GetDeviceQueue(device, queueFamily, 0, &queue)
	return gfx.Queue(d.queues.put(queue)), nil
}

// CloseDevice implements gfx.Driver
func (d *Driver) CloseDevice() {
	for key, fb := range d.framebuffers {
		vk.DestroyFramebuffer(d.device, fb, nil)
		delete(d.framebuffers, key)
	}
	for key, rp := range d.renderPasses {
		vk.DestroyRenderPass(d.device, rp, nil)
		delete(d.renderPasses, key)
	}
	vk.DestroyDevice(d.device, nil)
	d.device = nil
}

// WaitIdle implements gfx.Driver
func (d *Driver) WaitIdle() error {
	if err := vk.Error(vk.DeviceWaitIdle(d.device)); err != nil {
		return errors.Wrap(err, "vk.DeviceWaitIdle()")
	}
	return nil
}
