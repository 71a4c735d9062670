package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/nullrend/vkfg/engine/core"
)

// VulkanBuffer is a Vulkan-specific buffer used to load data onto the GPU.
type VulkanBuffer struct {
	Handle              vk.Buffer
	Usage               vk.BufferUsageFlags
	IsLocked             bool
	Memory              vk.DeviceMemory
	MemoryRequirements  vk.MemoryRequirements
	MemoryIndex         int32
	MemoryPropertyFlags uint32
}

// VulkanContext is the device-and-swapchain-scoped state the backend frame
// orchestrator builds renderpasses, framebuffers, and command buffers
// against. Renderpass/pipeline/descriptor caches are process-wide and live
// one level up, in the backend orchestrator itself, since they persist
// across swapchain rebuilds.
type VulkanContext struct {
	FrameDeltaTime                float32
	FramebufferWidth              uint32
	FramebufferHeight             uint32
	FramebufferSizeGeneration     uint64
	FramebufferSizeLastGeneration uint64

	Instance  vk.Instance
	Allocator *vk.AllocationCallbacks
	Surface   vk.Surface

	DebugMessenger vk.DebugReportCallback

	Device    *VulkanDevice
	Swapchain *VulkanSwapchain

	GraphicsCommandBuffers   []*VulkanCommandBuffer
	ImageAvailableSemaphores []vk.Semaphore
	QueueCompleteSemaphores  []vk.Semaphore

	InFlightFenceCount uint32
	InFlightFences     []vk.Fence
	ImagesInFlight     []vk.Fence

	ImageIndex   uint32
	CurrentFrame uint32

	RecreatingSwapchain bool

	MultithreadingEnabled bool
}

// FindMemoryIndex returns the memory type index matching typeFilter and
// propertyFlags, or -1 if none is suitable.
func (vc *VulkanContext) FindMemoryIndex(typeFilter, propertyFlags uint32) int32 {
	var memoryProperties vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(vc.Device.PhysicalDevice, &memoryProperties)
	memoryProperties.Deref()

	for i := uint32(0); i < memoryProperties.MemoryTypeCount; i++ {
		memoryProperties.MemoryTypes[i].Deref()
		if (typeFilter&(1<<i)) != 0 && (uint32(memoryProperties.MemoryTypes[i].PropertyFlags)&propertyFlags) == propertyFlags {
			return int32(i)
		}
	}
	core.LogWarn("Unable to find suitable memory type!")
	return -1
}
