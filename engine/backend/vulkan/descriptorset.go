package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/nullrend/vkfg/engine/core"
)

// DescriptorSetAllocator owns the single descriptor pool the decoder
// allocates per-frame descriptor sets from, sized per
// core.Settings.DescriptorPoolSize per descriptor type. Resetting the pool
// at the start of each frame (rather than freeing individual sets) matches
// the engine's per-frame descriptor-set lifetime.
type DescriptorSetAllocator struct {
	context *VulkanContext
	pool    vk.DescriptorPool
}

var trackedDescriptorTypes = []vk.DescriptorType{
	vk.DescriptorTypeUniformBuffer,
	vk.DescriptorTypeStorageBuffer,
	vk.DescriptorTypeCombinedImageSampler,
	vk.DescriptorTypeStorageImage,
}

// NewDescriptorSetAllocator builds a descriptor pool sized from the process
// settings, generous enough to cover a frame's worth of descriptor-set
// allocations across every pass.
func NewDescriptorSetAllocator(context *VulkanContext) (*DescriptorSetAllocator, error) {
	settings := core.Get()
	sizes := make([]vk.DescriptorPoolSize, len(trackedDescriptorTypes))
	for i, t := range trackedDescriptorTypes {
		sizes[i] = vk.DescriptorPoolSize{Type: t, DescriptorCount: settings.DescriptorPoolSize(t)}
	}

	createInfo := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		Flags:         vk.DescriptorPoolCreateFlags(vk.DescriptorPoolCreateFreeDescriptorSetBit),
		MaxSets:       1000,
		PoolSizeCount: uint32(len(sizes)),
		PPoolSizes:    sizes,
	}

	var pool vk.DescriptorPool
	if res := vk.CreateDescriptorPool(context.Device.LogicalDevice, &createInfo, context.Allocator, &pool); res != vk.Success {
		return nil, fmt.Errorf("descriptorset: failed to create descriptor pool")
	}
	return &DescriptorSetAllocator{context: context, pool: pool}, nil
}

// Allocate hands out one descriptor set matching layout.
func (a *DescriptorSetAllocator) Allocate(layout vk.DescriptorSetLayout) (vk.DescriptorSet, error) {
	allocInfo := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     a.pool,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{layout},
	}
	sets := make([]vk.DescriptorSet, 1)
	if res := vk.AllocateDescriptorSets(a.context.Device.LogicalDevice, &allocInfo, &sets[0]); res != vk.Success {
		core.LogWarn("descriptorset: allocation failed")
		return nil, fmt.Errorf("vkAllocateDescriptorSets failed")
	}
	return sets[0], nil
}

// Reset returns every descriptor set allocated this frame to the pool.
func (a *DescriptorSetAllocator) Reset() {
	vk.ResetDescriptorPool(a.context.Device.LogicalDevice, a.pool, 0)
}

// Destroy tears down the descriptor pool.
func (a *DescriptorSetAllocator) Destroy() {
	if a.pool != nil {
		vk.DestroyDescriptorPool(a.context.Device.LogicalDevice, a.pool, a.context.Allocator)
		a.pool = nil
	}
}
