package vulkan

import (
	"fmt"
	"hash/fnv"

	vk "github.com/goki/vulkan"

	"github.com/nullrend/vkfg/engine/core"
	"github.com/nullrend/vkfg/engine/render"
	"github.com/nullrend/vkfg/engine/rendergraph"
)

// VulkanRenderpass wraps a renderpass built dynamically for one pass's
// attachment set. CompatibilityHash identifies renderpasses that a
// framebuffer or pipeline built against one instance may be reused against
// another, per the render-pass-compatibility rules in the Vulkan spec: same
// attachment formats/sample counts/load-store-independent description.
type VulkanRenderpass struct {
	Handle            vk.RenderPass
	CompatibilityHash uint64
	ClearValues       []vk.ClearValue
	AttachmentCount   uint32
}

// RenderpassCache retains built renderpasses keyed by compatibility hash so
// repeated frames with an unchanged attachment set reuse the same object
// instead of rebuilding every frame.
type RenderpassCache struct {
	device  *VulkanDevice
	alloc   *vk.AllocationCallbacks
	byHash  map[uint64]*VulkanRenderpass
}

// NewRenderpassCache constructs an empty cache bound to device.
func NewRenderpassCache(device *VulkanDevice, alloc *vk.AllocationCallbacks) *RenderpassCache {
	return &RenderpassCache{device: device, alloc: alloc, byHash: make(map[uint64]*VulkanRenderpass)}
}

// ProduceRenderpass returns the cached renderpass for pass's current
// attachment set and sync chains, building it on first encounter. chains
// maps resource ID to its per-frame SyncChain, as produced by
// rendergraph.Planner.Plan.
func (c *RenderpassCache) ProduceRenderpass(pass *render.Pass, chains map[uint64]*rendergraph.SyncChain) (*VulkanRenderpass, error) {
	hash := renderpassCompatibilityHash(pass)
	if rp, ok := c.byHash[hash]; ok {
		return rp, nil
	}

	rp, err := c.buildRenderpass(pass, chains, hash)
	if err != nil {
		return nil, err
	}
	c.byHash[hash] = rp
	return rp, nil
}

// renderpassCompatibilityHash hashes the attachment formats, sample counts
// and depth/color ordering, which is exactly the subset of state that
// determines renderpass compatibility; load/store ops and layouts (which
// vary frame to frame as the sync chain evolves) are deliberately excluded.
func renderpassCompatibilityHash(pass *render.Pass) uint64 {
	h := fnv.New64a()
	for _, att := range pass.Attachments() {
		var b [9]byte
		putUint32(b[0:4], uint32(att.Info.Format))
		putUint32(b[4:8], uint32(att.Info.SampleCount))
		if att.IsDepth {
			b[8] = 1
		}
		h.Write(b[:])
	}
	return h.Sum64()
}

func putUint32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func (c *RenderpassCache) buildRenderpass(pass *render.Pass, chains map[uint64]*rendergraph.SyncChain, hash uint64) (*VulkanRenderpass, error) {
	attachments := pass.Attachments()

	descriptions := make([]vk.AttachmentDescription, len(attachments))
	colorRefs := make([]vk.AttachmentReference, 0, len(attachments))
	var depthRef *vk.AttachmentReference
	clearValues := make([]vk.ClearValue, len(attachments))

	srcStage := vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit)
	dstStage := vk.PipelineStageFlags(vk.PipelineStageBottomOfPipeBit)
	var srcAccess, dstAccess vk.AccessFlags

	for i, att := range attachments {
		initialLayout := vk.ImageLayoutUndefined
		finalLayout := vk.ImageLayoutColorAttachmentOptimal
		if att.IsDepth {
			finalLayout = vk.ImageLayoutDepthStencilAttachmentOptimal
		}
		if chain, ok := chains[att.Image.ID()]; ok && len(chain.States) >= 2 {
			// States[0] is the chain's starting state (entry layout);
			// the attachment's own entry/subpass states were appended
			// right after, so the second-to-last state before the next
			// pass picks up is what the planner computed for this pass.
			initialLayout = chain.States[0].ImageLayout
			last := chain.States[len(chain.States)-1]
			srcAccess |= last.VisibleAccessMask
			srcStage |= last.WriteStageMask
		}

		descriptions[i] = vk.AttachmentDescription{
			Format:         att.Info.Format,
			Samples:        att.Info.SampleCount,
			LoadOp:         att.LoadOp,
			StoreOp:        att.StoreOp,
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  initialLayout,
			FinalLayout:    finalLayout,
		}
		clearValues[i] = att.ClearValue

		if att.IsDepth {
			ref := vk.AttachmentReference{Attachment: uint32(i), Layout: vk.ImageLayoutDepthStencilAttachmentOptimal}
			depthRef = &ref
			dstStage |= vk.PipelineStageFlags(vk.PipelineStageEarlyFragmentTestsBit)
			dstAccess |= vk.AccessFlags(vk.AccessDepthStencilAttachmentWriteBit)
		} else {
			colorRefs = append(colorRefs, vk.AttachmentReference{Attachment: uint32(i), Layout: vk.ImageLayoutColorAttachmentOptimal})
			dstStage |= vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)
			dstAccess |= vk.AccessFlags(vk.AccessColorAttachmentWriteBit)
		}
	}

	subpass := vk.SubpassDescription{
		PipelineBindPoint:    vk.PipelineBindPointGraphics,
		ColorAttachmentCount: uint32(len(colorRefs)),
	}
	if len(colorRefs) > 0 {
		subpass.PColorAttachments = colorRefs
	}
	if depthRef != nil {
		subpass.PDepthStencilAttachment = depthRef
	}

	dependencies := []vk.SubpassDependency{
		{
			SrcSubpass:      vk.SubpassExternal,
			DstSubpass:      0,
			SrcStageMask:    srcStage,
			DstStageMask:    dstStage,
			SrcAccessMask:   srcAccess,
			DstAccessMask:   dstAccess,
			DependencyFlags: vk.DependencyFlags(vk.DependencyByRegionBit),
		},
		{
			SrcSubpass:      0,
			DstSubpass:      vk.SubpassExternal,
			SrcStageMask:    dstStage,
			DstStageMask:    srcStage,
			SrcAccessMask:   dstAccess,
			DstAccessMask:   srcAccess,
			DependencyFlags: vk.DependencyFlags(vk.DependencyByRegionBit),
		},
	}

	createInfo := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(descriptions)),
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: uint32(len(dependencies)),
		PDependencies:   dependencies,
	}
	if len(descriptions) > 0 {
		createInfo.PAttachments = descriptions
	}

	var handle vk.RenderPass
	if res := vk.CreateRenderPass(c.device.LogicalDevice, &createInfo, c.alloc, &handle); res != vk.Success {
		err := fmt.Errorf("failed to create renderpass for %s", pass.Name)
		core.LogError(err.Error())
		return nil, err
	}

	return &VulkanRenderpass{
		Handle:            handle,
		CompatibilityHash: hash,
		ClearValues:       clearValues,
		AttachmentCount:   uint32(len(descriptions)),
	}, nil
}

// Destroy releases a single renderpass, bypassing the cache. Used when an
// entry is evicted rather than torn down wholesale.
func (rp *VulkanRenderpass) Destroy(device *VulkanDevice, alloc *vk.AllocationCallbacks) {
	if rp.Handle != nil {
		vk.DestroyRenderPass(device.LogicalDevice, rp.Handle, alloc)
		rp.Handle = nil
	}
}

// DestroyAll tears down every cached renderpass, called on swapchain
// recreation or shutdown.
func (c *RenderpassCache) DestroyAll() {
	for hash, rp := range c.byHash {
		rp.Destroy(c.device, c.alloc)
		delete(c.byHash, hash)
	}
}
