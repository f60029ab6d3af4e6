package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-graph/engine/core"
)

// VulkanDevice is the device the application created. The graph only records
// into it and never selects or destroys it.
type VulkanDevice struct {
	PhysicalDevice     vk.PhysicalDevice
	LogicalDevice      vk.Device
	GraphicsQueueIndex uint32
	GraphicsQueue      vk.Queue

	GraphicsCommandPool vk.CommandPool
}

type VulkanContext struct {
	Device    *VulkanDevice
	Allocator *vk.AllocationCallbacks
	// Locks serializes device calls issued from several goroutines, such as
	// pipeline compiles during a cache warm-up.
	Locks *VulkanLockPool
}

func NewVulkanContext(device *VulkanDevice, allocator *vk.AllocationCallbacks) *VulkanContext {
	locks := NewVulkanLockPool()
	locks.SetQueueFamily(device.GraphicsQueueIndex)
	return &VulkanContext{
		Device:    device,
		Allocator: allocator,
		Locks:     locks,
	}
}

func (vc *VulkanContext) FindMemoryIndex(typeFilter, propertyFlags uint32) int32 {
	var memoryProperties vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(vc.Device.PhysicalDevice, &memoryProperties)
	memoryProperties.Deref()

	for i := uint32(0); i < memoryProperties.MemoryTypeCount; i++ {
		// Check each memory type to see if its bit is set to 1.
		memoryProperties.MemoryTypes[i].Deref()
		if (typeFilter&(1<<i)) != 0 && (uint32(memoryProperties.MemoryTypes[i].PropertyFlags)&propertyFlags) == propertyFlags {
			return int32(i)
		}
	}
	core.LogWarn("Unable to find suitable memory type!")
	return -1
}
