package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/nullrend/vkfg/engine/core"
)

// VulkanImage is a materialized physical image plus its default view. The
// mip/array counts it was allocated with are retained so ImageViewCreate can
// expose the full resource (the resolver combines per-declaration mip/array
// counts by max, so the view must cover what was actually allocated, not a
// fixed subset of it).
type VulkanImage struct {
	Handle      vk.Image
	Memory      vk.DeviceMemory
	View        vk.ImageView
	Width       uint32
	Height      uint32
	MipLevels   uint32
	ArrayLayers uint32
}

// ImageDesc carries the physical-allocation parameters ImageCreate needs
// beyond extent/format/usage/tiling. It mirrors handle.ImageInfo's
// depth/mip/array/sample/create-flag fields so the resource pool can pass a
// resolved declaration straight through without re-deriving any of it.
type ImageDesc struct {
	Depth       uint32
	MipLevels   uint32
	ArrayLayers uint32
	Samples     vk.SampleCountFlagBits
	CreateFlags vk.ImageCreateFlags
}

// normalized clamps zero fields up to the single-level/single-layer/
// single-sample default, so a caller that forgot to populate ImageDesc
// (rather than routing through handle.ImageInfoBuilder, which already
// defaults them) still gets a valid vk.ImageCreateInfo instead of one with
// a mip/array/sample count of zero.
func (d ImageDesc) normalized() ImageDesc {
	if d.Depth == 0 {
		d.Depth = 1
	}
	if d.MipLevels == 0 {
		d.MipLevels = 1
	}
	if d.ArrayLayers == 0 {
		d.ArrayLayers = 1
	}
	if d.Samples == 0 {
		d.Samples = vk.SampleCount1Bit
	}
	return d
}

func ImageCreate(context *VulkanContext, imageType vk.ImageType, width uint32, height uint32,
	desc ImageDesc, format vk.Format, tiling vk.ImageTiling, usage vk.ImageUsageFlags, memoryFlags vk.MemoryPropertyFlags,
	createView bool, viewAspectFlags vk.ImageAspectFlags) (*VulkanImage, error) {

	desc = desc.normalized()
	if imageType == 0 {
		imageType = vk.ImageType2d
	}

	outImage := &VulkanImage{
		Width:       width,
		Height:      height,
		MipLevels:   desc.MipLevels,
		ArrayLayers: desc.ArrayLayers,
	}

	// Creation info.
	imageCreateInfo := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		Flags:     desc.CreateFlags,
		ImageType: imageType,
		Extent: vk.Extent3D{
			Width:  width,
			Height: height,
			Depth:  desc.Depth,
		},
		MipLevels:     desc.MipLevels,
		ArrayLayers:   desc.ArrayLayers,
		Format:        format,
		Tiling:        tiling,
		InitialLayout: vk.ImageLayoutUndefined,
		Usage:         usage,
		Samples:       desc.Samples,
		SharingMode:   vk.SharingModeExclusive, // TODO: Configurable sharing mode.
	}

	if res := vk.CreateImage(context.Device.LogicalDevice, &imageCreateInfo, context.Allocator, &outImage.Handle); res != vk.Success {
		return nil, nil
	}

	// Query memory requirements.
	memoryRequirements := vk.MemoryRequirements{}
	vk.GetImageMemoryRequirements(context.Device.LogicalDevice, outImage.Handle, &memoryRequirements)

	memoryType := context.FindMemoryIndex(memoryRequirements.MemoryTypeBits, uint32(memoryFlags))
	if memoryType == -1 {
		core.LogError("Required memory type not found. Image not valid.")
		return nil, nil
	}

	// Allocate memory
	memoryAllocateInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  memoryRequirements.Size,
		MemoryTypeIndex: uint32(memoryType),
	}
	if res := vk.AllocateMemory(context.Device.LogicalDevice, &memoryAllocateInfo, context.Allocator, &outImage.Memory); res != vk.Success {
		err := fmt.Errorf("failed to allocate memory for image")
		core.LogError(err.Error())
		return nil, err
	}

	// Bind the memory
	// TODO: configurable memory offset.
	if res := vk.BindImageMemory(context.Device.LogicalDevice, outImage.Handle, outImage.Memory, 0); res != vk.Success {
		err := fmt.Errorf("failed to bind image memory")
		core.LogError(err.Error())
		return nil, err
	}

	// Create view
	if createView {
		outImage.View = nil
		outImage.ImageViewCreate(context, format, viewAspectFlags)
	}
	return outImage, nil
}

// ImageViewCreate builds the default view over the full resource: every mip
// level and array layer the image was allocated with, so sampling can reach
// levels a later WriteToImage blits into.
func (vi *VulkanImage) ImageViewCreate(context *VulkanContext, format vk.Format, aspectFlags vk.ImageAspectFlags) error {
	levelCount := vi.MipLevels
	if levelCount == 0 {
		levelCount = 1
	}
	layerCount := vi.ArrayLayers
	if layerCount == 0 {
		layerCount = 1
	}
	viewType := vk.ImageViewType2d
	if layerCount > 1 {
		viewType = vk.ImageViewType2dArray
	}

	viewCreateInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    vi.Handle,
		ViewType: viewType,
		Format:   format,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     aspectFlags,
			BaseMipLevel:   0,
			LevelCount:     levelCount,
			BaseArrayLayer: 0,
			LayerCount:     layerCount,
		},
	}

	if res := vk.CreateImageView(context.Device.LogicalDevice, &viewCreateInfo, context.Allocator, &vi.View); res != vk.Success {
		return nil
	}
	return nil
}

func (vi *VulkanImage) ImageDestroy(context *VulkanContext) {
	if vi.View != nil {
		vk.DestroyImageView(context.Device.LogicalDevice, vi.View, context.Allocator)
		vi.View = nil
	}
	if vi.Memory != nil {
		vk.FreeMemory(context.Device.LogicalDevice, vi.Memory, context.Allocator)
		vi.Memory = nil
	}
	if vi.Handle != nil {
		vk.DestroyImage(context.Device.LogicalDevice, vi.Handle, context.Allocator)
		vi.Handle = nil
	}
}
