// Package pipeline hashes descriptor binding sets into retained API
// descriptor-set layouts, update templates, and pipeline layouts (C6), and
// caches pipeline state object descriptions and their materialized API
// pipelines (C7). Both caches are process-wide, created by the renderer and
// torn down at renderer teardown.
package pipeline

import (
	"sync"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/nullrend/vkfg/engine/shader"
)

// DescriptorData is the flat argument-state record a descriptor-update
// template reads from: image-like descriptors read the image sub-fields,
// buffer-like descriptors read the buffer sub-fields.
type DescriptorData struct {
	Sampler    vk.Sampler
	ImageView  vk.ImageView
	ImageLayout vk.ImageLayout
	Type       vk.DescriptorType
	Buffer     vk.Buffer
	Offset     vk.DeviceSize
	Range      vk.DeviceSize
	Binding    uint32
	ArrayIndex uint32
}

// descriptorSetLayoutEntry is the cached product of ProduceDescriptorSetLayout.
type descriptorSetLayoutEntry struct {
	Layout   vk.DescriptorSetLayout
	Template vk.DescriptorUpdateTemplate
	Bindings []shader.BindingInfo
}

// DescriptorCache retains descriptor-set layouts and update templates keyed
// by a hash of their binding list, process-wide for the engine's lifetime.
type DescriptorCache struct {
	mu      sync.RWMutex
	device  vk.Device
	alloc   vk.AllocationCallbacks
	layouts map[uint64]*descriptorSetLayoutEntry
}

// NewDescriptorCache constructs an empty cache bound to a logical device.
func NewDescriptorCache(device vk.Device, allocCallbacks vk.AllocationCallbacks) *DescriptorCache {
	return &DescriptorCache{
		device:  device,
		alloc:   allocCallbacks,
		layouts: make(map[uint64]*descriptorSetLayoutEntry),
	}
}

// ProduceDescriptorSetLayout hashes bindings (sorted by (set,binding)) and
// returns the cached descriptor-set layout and update template, building
// them on first use. Lookup takes the shared lock; building takes the
// exclusive lock.
func (c *DescriptorCache) ProduceDescriptorSetLayout(bindings []shader.BindingInfo) (vk.DescriptorSetLayout, vk.DescriptorUpdateTemplate, error) {
	key := shader.PipelineLayoutHash(bindings)

	c.mu.RLock()
	if e, ok := c.layouts[key]; ok {
		c.mu.RUnlock()
		return e.Layout, e.Template, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.layouts[key]; ok {
		return e.Layout, e.Template, nil
	}

	vkBindings := make([]vk.DescriptorSetLayoutBinding, len(bindings))
	for i, b := range bindings {
		vkBindings[i] = vk.DescriptorSetLayoutBinding{
			Binding:         b.Binding(),
			DescriptorType:  b.Type(),
			DescriptorCount: b.Count(),
			StageFlags:      vk.ShaderStageFlags(b.StageBits()),
		}
	}
	createInfo := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(vkBindings)),
		PBindings:    vkBindings,
	}
	var layout vk.DescriptorSetLayout
	if res := vk.CreateDescriptorSetLayout(c.device, &createInfo, &c.alloc, &layout); res != vk.Success {
		return nil, nil, ErrDescriptorSetLayoutFailed
	}

	entries := make([]vk.DescriptorUpdateTemplateEntry, len(bindings))
	for i, b := range bindings {
		offset := uint(i) * descriptorDataStride
		switch b.Type() {
		case vk.DescriptorTypeUniformBuffer, vk.DescriptorTypeStorageBuffer,
			vk.DescriptorTypeUniformBufferDynamic, vk.DescriptorTypeStorageBufferDynamic:
			offset += uint(unsafe.Offsetof(DescriptorData{}.Buffer))
		}
		entries[i] = vk.DescriptorUpdateTemplateEntry{
			DstBinding:      b.Binding(),
			DstArrayElement: 0,
			DescriptorCount: b.Count(),
			DescriptorType:  b.Type(),
			Offset:          offset,
			Stride:          descriptorDataStride,
		}
	}
	templateInfo := vk.DescriptorUpdateTemplateCreateInfo{
		SType:                      vk.StructureTypeDescriptorUpdateTemplateCreateInfo,
		DescriptorUpdateEntryCount: uint32(len(entries)),
		PDescriptorUpdateEntries:   entries,
		TemplateType:               vk.DescriptorUpdateTemplateTypeDescriptorSet,
		DescriptorSetLayout:        layout,
	}
	var template vk.DescriptorUpdateTemplate
	if res := vk.CreateDescriptorUpdateTemplate(c.device, &templateInfo, &c.alloc, &template); res != vk.Success {
		vk.DestroyDescriptorSetLayout(c.device, layout, &c.alloc)
		return nil, nil, ErrDescriptorSetLayoutFailed
	}

	c.layouts[key] = &descriptorSetLayoutEntry{Layout: layout, Template: template, Bindings: bindings}
	return layout, template, nil
}

// TemplateFor returns the cached update template for a binding list already
// produced via ProduceDescriptorSetLayout, without rebuilding anything.
func (c *DescriptorCache) TemplateFor(bindings []shader.BindingInfo) (vk.DescriptorUpdateTemplate, bool) {
	key := shader.PipelineLayoutHash(bindings)
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.layouts[key]
	if !ok {
		return nil, false
	}
	return e.Template, true
}

// descriptorDataStride is the byte stride between successive DescriptorData
// entries in the flat argument-state array the update templates read from.
const descriptorDataStride = uint(unsafe.Sizeof(DescriptorData{}))
