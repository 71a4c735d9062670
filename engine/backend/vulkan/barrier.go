package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/nullrend/vkfg/engine/handle"
	"github.com/nullrend/vkfg/engine/rendergraph"
)

// IssueBarrier records a single buffer or image memory barrier for one
// explicit sync op, unless it was deactivated by an equivalent implicit
// renderpass attachment transition. The caller (the frame recorder) is
// responsible for walking chain.Ops in the same pass order Planner.Plan
// built them in, issuing one op per pass per use of the resource.
func IssueBarrier(cmd *VulkanCommandBuffer, h handle.Handle, op rendergraph.ExplicitSyncOp, chain *rendergraph.SyncChain, resources *ResourcePool) {
	if op.Deactivated {
		return
	}
	before := chain.States[op.BeforeIdx]
	after := chain.States[op.AfterIdx]

	if h.Kind() == handle.KindImage {
		img, ok := resources.LookupImage(h)
		if !ok {
			return
		}
		barrier := vk.ImageMemoryBarrier{
			SType:               vk.StructureTypeImageMemoryBarrier,
			SrcAccessMask:       before.VisibleAccessMask,
			DstAccessMask:       after.VisibleAccessMask,
			OldLayout:           before.ImageLayout,
			NewLayout:           after.ImageLayout,
			SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
			DstQueueFamilyIndex: vk.QueueFamilyIgnored,
			Image:               img.Handle,
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
				BaseMipLevel:   0,
				LevelCount:     1,
				BaseArrayLayer: 0,
				LayerCount:     1,
			},
		}
		vk.CmdPipelineBarrier(cmd.Handle, before.WriteStageMask, after.WriteStageMask, 0, 0, nil, 0, nil, 1,
			[]vk.ImageMemoryBarrier{barrier})
		return
	}

	buf, ok := resources.LookupBuffer(h)
	if !ok {
		return
	}
	barrier := vk.BufferMemoryBarrier{
		SType:               vk.StructureTypeBufferMemoryBarrier,
		SrcAccessMask:       before.VisibleAccessMask,
		DstAccessMask:       after.VisibleAccessMask,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Buffer:              buf.Handle,
		Offset:              0,
		Size:                vk.DeviceSize(vk.WholeSize),
	}
	vk.CmdPipelineBarrier(cmd.Handle, before.WriteStageMask, after.WriteStageMask, 0, 0, nil, 1,
		[]vk.BufferMemoryBarrier{barrier}, 0, nil)
}

// hostTransferBarrier makes prior host writes into mapped memory (a staging
// block, typically) visible to the transfer stage, required before any
// vkCmdCopyBufferToImage that reads what the host just wrote.
func hostTransferBarrier(cmd *VulkanCommandBuffer) {
	barrier := vk.MemoryBarrier{
		SType:         vk.StructureTypeMemoryBarrier,
		SrcAccessMask: vk.AccessFlags(vk.AccessHostWriteBit),
		DstAccessMask: vk.AccessFlags(vk.AccessTransferReadBit),
	}
	vk.CmdPipelineBarrier(cmd.Handle, vk.PipelineStageFlags(vk.PipelineStageHostBit), vk.PipelineStageFlags(vk.PipelineStageTransferBit),
		0, 1, []vk.MemoryBarrier{barrier}, 0, nil, 0, nil)
}

// imageLayoutTransition issues a single image memory barrier over an
// explicit mip/layer range. Unlike IssueBarrier, which always covers level 0
// of a resource per the rendergraph's whole-resource sync chain, this is
// used where a single write touches a sub-range of an image's levels
// directly — a mipmap blit chain transitioning one level at a time.
func imageLayoutTransition(cmd *VulkanCommandBuffer, img *VulkanImage, oldLayout, newLayout vk.ImageLayout,
	srcAccess, dstAccess vk.AccessFlags, srcStage, dstStage vk.PipelineStageFlags,
	baseMip, levelCount, baseLayer, layerCount uint32) {
	barrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		SrcAccessMask:       srcAccess,
		DstAccessMask:       dstAccess,
		OldLayout:           oldLayout,
		NewLayout:           newLayout,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               img.Handle,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
			BaseMipLevel:   baseMip,
			LevelCount:     levelCount,
			BaseArrayLayer: baseLayer,
			LayerCount:     layerCount,
		},
	}
	vk.CmdPipelineBarrier(cmd.Handle, srcStage, dstStage, 0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{barrier})
}
