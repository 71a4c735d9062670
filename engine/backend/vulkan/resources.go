package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/nullrend/vkfg/engine/handle"
	"github.com/nullrend/vkfg/engine/render"
)

// ResourcePool materializes the images and buffers a render.Module declares
// into actual API objects, keyed by the declaring handle's stable ID, and
// retains them across frames until a redeclaration widens their info beyond
// what was already allocated (at which point the old object is destroyed
// and a bigger one takes its place).
type ResourcePool struct {
	context *VulkanContext

	images  map[uint64]*pooledImage
	buffers map[uint64]*pooledBuffer
}

type pooledImage struct {
	info     handle.ImageInfo
	image    *VulkanImage
	external bool // true for swapchain images, which the swapchain owns
}

type pooledBuffer struct {
	info   handle.BufferInfo
	buffer *VulkanBuffer
}

// NewResourcePool constructs an empty pool bound to context.
func NewResourcePool(context *VulkanContext) *ResourcePool {
	return &ResourcePool{
		context: context,
		images:  make(map[uint64]*pooledImage),
		buffers: make(map[uint64]*pooledBuffer),
	}
}

// Sync walks a resolved module's declared images/buffers, creating or
// growing the backing API object for each. It must run once per frame
// before recording, after the rendergraph has patched extents, since
// render-target images may have been zero-sized at declaration time.
func (p *ResourcePool) Sync(m *render.Module) error {
	for id, info := range m.ImageInfos() {
		if err := p.syncImage(id, info); err != nil {
			return err
		}
	}
	for id, info := range m.BufferInfos() {
		if err := p.syncBuffer(id, info); err != nil {
			return err
		}
	}
	return nil
}

// BindExternal registers an externally-owned image (the current swapchain
// image, typically) under h for the frame, without taking ownership: Destroy
// and future Sync calls leave it untouched since the swapchain governs its
// lifetime.
func (p *ResourcePool) BindExternal(h handle.Handle, img *VulkanImage) {
	p.images[h.ID()] = &pooledImage{
		info:     handle.ImageInfo{Width: img.Width, Height: img.Height},
		image:    img,
		external: true,
	}
}

func (p *ResourcePool) syncImage(id uint64, info handle.ImageInfo) error {
	existing, ok := p.images[id]
	if ok && existing.external {
		return nil
	}
	if ok && imageInfoFits(existing.info, info) {
		return nil
	}
	if ok {
		existing.image.ImageDestroy(p.context)
	}

	aspect := vk.ImageAspectFlags(vk.ImageAspectColorBit)
	if info.UsageFlags&vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit) != 0 {
		aspect = vk.ImageAspectFlags(vk.ImageAspectDepthBit)
	}
	desc := ImageDesc{
		Depth:       info.Depth,
		MipLevels:   info.MipLevels,
		ArrayLayers: info.ArrayLayers,
		Samples:     info.SampleCount,
		CreateFlags: info.CreateFlags,
	}
	img, err := ImageCreate(p.context, info.Type, info.Width, info.Height, desc, info.Format, info.Tiling, info.UsageFlags,
		vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit), true, aspect)
	if err != nil {
		return fmt.Errorf("resources: failed to create image: %w", err)
	}
	p.images[id] = &pooledImage{info: info, image: img}
	return nil
}

func (p *ResourcePool) syncBuffer(id uint64, info handle.BufferInfo) error {
	existing, ok := p.buffers[id]
	if ok && existing.info.Size >= info.Size && existing.info.UsageFlags&info.UsageFlags == info.UsageFlags {
		return nil
	}
	if ok {
		destroyVulkanBuffer(p.context, existing.buffer)
	}

	buf, err := createVulkanBuffer(p.context, info.Size, info.UsageFlags, vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit))
	if err != nil {
		return fmt.Errorf("resources: failed to create buffer: %w", err)
	}
	p.buffers[id] = &pooledBuffer{info: info, buffer: buf}
	return nil
}

func imageInfoFits(have, want handle.ImageInfo) bool {
	return have.Width >= want.Width && have.Height >= want.Height &&
		have.Format == want.Format && have.UsageFlags&want.UsageFlags == want.UsageFlags &&
		have.MipLevels >= want.MipLevels && have.ArrayLayers >= want.ArrayLayers &&
		have.SampleCount == want.SampleCount
}

// LookupImage returns the materialized image backing h, if any.
func (p *ResourcePool) LookupImage(h handle.Handle) (*VulkanImage, bool) {
	e, ok := p.images[h.ID()]
	if !ok {
		return nil, false
	}
	return e.image, true
}

// LookupBuffer returns the materialized buffer backing h, if any.
func (p *ResourcePool) LookupBuffer(h handle.Handle) (*VulkanBuffer, bool) {
	e, ok := p.buffers[h.ID()]
	if !ok {
		return nil, false
	}
	return e.buffer, true
}

// Destroy tears down every materialized resource, called at renderer
// teardown after the device is idle.
func (p *ResourcePool) Destroy() {
	for _, e := range p.images {
		if e.external {
			continue
		}
		e.image.ImageDestroy(p.context)
	}
	for _, e := range p.buffers {
		destroyVulkanBuffer(p.context, e.buffer)
	}
	p.images = make(map[uint64]*pooledImage)
	p.buffers = make(map[uint64]*pooledBuffer)
}

// createVulkanBuffer allocates a buffer plus backing memory, grounded on the
// buffer-creation sequence the swapchain/staging paths already use.
func createVulkanBuffer(context *VulkanContext, size uint64, usage vk.BufferUsageFlags, memoryFlags vk.MemoryPropertyFlags) (*VulkanBuffer, error) {
	out := &VulkanBuffer{Usage: usage}

	createInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       usage,
		SharingMode: vk.SharingModeExclusive,
	}
	if res := vk.CreateBuffer(context.Device.LogicalDevice, &createInfo, context.Allocator, &out.Handle); res != vk.Success {
		return nil, fmt.Errorf("vkCreateBuffer failed")
	}

	vk.GetBufferMemoryRequirements(context.Device.LogicalDevice, out.Handle, &out.MemoryRequirements)
	out.MemoryRequirements.Deref()

	memType := context.FindMemoryIndex(out.MemoryRequirements.MemoryTypeBits, uint32(memoryFlags))
	if memType == -1 {
		vk.DestroyBuffer(context.Device.LogicalDevice, out.Handle, context.Allocator)
		return nil, fmt.Errorf("no suitable memory type for buffer")
	}
	out.MemoryIndex = memType

	allocInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  out.MemoryRequirements.Size,
		MemoryTypeIndex: uint32(memType),
	}
	if res := vk.AllocateMemory(context.Device.LogicalDevice, &allocInfo, context.Allocator, &out.Memory); res != vk.Success {
		vk.DestroyBuffer(context.Device.LogicalDevice, out.Handle, context.Allocator)
		return nil, fmt.Errorf("vkAllocateMemory failed for buffer")
	}
	if res := vk.BindBufferMemory(context.Device.LogicalDevice, out.Handle, out.Memory, 0); res != vk.Success {
		return nil, fmt.Errorf("vkBindBufferMemory failed")
	}
	return out, nil
}

func destroyVulkanBuffer(context *VulkanContext, b *VulkanBuffer) {
	if b.Handle != nil {
		vk.DestroyBuffer(context.Device.LogicalDevice, b.Handle, context.Allocator)
		b.Handle = nil
	}
	if b.Memory != nil {
		vk.FreeMemory(context.Device.LogicalDevice, b.Memory, context.Allocator)
		b.Memory = nil
	}
}
