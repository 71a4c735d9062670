package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/nullrend/vkfg/engine/core"
)

// VulkanFence wraps a vk.Fence with a cached signaled state. The frame
// orchestrator creates one per in-flight frame slot through NewFence (created
// signaled), but keeps only the raw Handle and waits on it with
// vk.WaitForFences directly; FenceWait/FenceStatus/FenceReset are not called
// from the frame loop.
type VulkanFence struct {
	Handle     vk.Fence
	IsSignaled bool
}

func NewFence(context *VulkanContext, createSignaled bool) (*VulkanFence, error) {
	fence := &VulkanFence{
		// Make sure to signal the fence if required.
		IsSignaled: createSignaled,
	}

	fenceCreateInfo := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	if fence.IsSignaled {
		fenceCreateInfo.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}

	var pFence vk.Fence
	if res := vk.CreateFence(context.Device.LogicalDevice, &fenceCreateInfo, context.Allocator, &pFence); res != vk.Success {
		err := fmt.Errorf("failed to create fence")
		core.LogError(err.Error())
		return nil, err
	}
	fenceCreateInfo.Deref()
	fence.Handle = pFence
	return fence, nil
}

func (vf *VulkanFence) FenceDestroy(context *VulkanContext) {
	if vf.Handle != nil {
		vk.DestroyFence(context.Device.LogicalDevice, vf.Handle, context.Allocator)
		vf.Handle = nil
	}
	vf.IsSignaled = false
}

// FenceStatus is a non-blocking peek at whether the fence has been signaled,
// grounded on vkGetFenceStatus rather than vkWaitForFences. The frame
// orchestrator's per-image in-flight wait could use this to detect a fence
// that's already clear before committing to a blocking wait on it.
func (vf *VulkanFence) FenceStatus(context *VulkanContext) bool {
	if vf.IsSignaled {
		return true
	}
	if vk.GetFenceStatus(context.Device.LogicalDevice, vf.Handle) == vk.Success {
		vf.IsSignaled = true
		return true
	}
	return false
}

func (vf *VulkanFence) FenceWait(context *VulkanContext, timeoutNs uint64) bool {
	if vf.FenceStatus(context) {
		return true
	}

	result := vk.WaitForFences(context.Device.LogicalDevice, 1, []vk.Fence{vf.Handle}, vk.True, timeoutNs)
	switch result {
	case vk.Success:
		vf.IsSignaled = true
		return true
	case vk.Timeout:
		core.LogWarn("frame: fence wait timed out")
	case vk.ErrorDeviceLost:
		core.LogError("frame: fence wait failed, device lost")
	case vk.ErrorOutOfHostMemory:
		core.LogError("frame: fence wait failed, out of host memory")
	case vk.ErrorOutOfDeviceMemory:
		core.LogError("frame: fence wait failed, out of device memory")
	default:
		core.LogError("frame: fence wait failed with an unexpected result")
	}
	return false
}

func (vf *VulkanFence) FenceReset(context *VulkanContext) error {
	if vf.IsSignaled {
		if res := vk.ResetFences(context.Device.LogicalDevice, 1, []vk.Fence{vf.Handle}); res != vk.Success {
			err := fmt.Errorf("failed to reset fence")
			core.LogError(err.Error())
			return err
		}
		vf.IsSignaled = false
	}
	return nil
}
