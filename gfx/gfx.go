// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package gfx defines the API-neutral vocabulary that renderers work with:
// opaque object handles, enumerations, create-info structures and the
// Driver interface that a graphics backend must implement.
//
// Enumeration values mirror their Vulkan counterparts numerically, so a
// Vulkan backend converts them with a plain type conversion.
package gfx

import "github.com/pkg/errors"

// Releasable defines any memory-occupying item that can be freed.
type Releasable interface {

	// Release releases memory occupied by the implementing structure.
	Release()
}

// ErrOutOfDate is returned by acquire and present when the swapchain
// no longer matches the surface and has to be recreated.
var ErrOutOfDate = errors.New("swapchain out of date")

// NullHandle is the zero value of every handle type.
const NullHandle = 0

// Opaque object handles. A zero handle never refers to a live object.
type (
	PhysicalDevice      uint64
	Queue               uint64
	Surface             uint64
	Swapchain           uint64
	Allocation          uint64
	Buffer              uint64
	Image               uint64
	ImageView           uint64
	Sampler             uint64
	DescriptorSetLayout uint64
	DescriptorPool      uint64
	DescriptorSet       uint64
	CommandPool         uint64
	CommandBuffer       uint64
	Fence               uint64
	Semaphore           uint64
	ShaderModule        uint64
	PipelineLayout      uint64
	Pipeline            uint64
)
