package rendergraph

import (
	vk "github.com/goki/vulkan"

	"github.com/nullrend/vkfg/engine/handle"
	"github.com/nullrend/vkfg/engine/render"
)

// ResourceState is one entry of a resource's sync chain: the access mask
// visible at this point, the pipeline stage that wrote it, and (images
// only) the image layout.
type ResourceState struct {
	VisibleAccessMask vk.AccessFlags
	WriteStageMask    vk.PipelineStageFlags
	ImageLayout       vk.ImageLayout
}

// ExplicitSyncOp is a barrier the decoder must issue unless deactivated by
// an equivalent implicit subpass dependency already covering it.
type ExplicitSyncOp struct {
	Resource   handle.Handle
	BeforeIdx  int
	AfterIdx   int
	Deactivated bool
}

// SyncChain is the ordered ResourceState sequence for one resource across
// one frame, plus the explicit-sync-ops derived for it.
type SyncChain struct {
	States []ResourceState
	Ops    []ExplicitSyncOp

	isSwapchain bool
	// maxAttachmentTouchIdx is the highest chain index any preceding
	// renderpass attachment touched this resource at, used to decide
	// whether a later explicit op is already covered implicitly.
	maxAttachmentTouchIdx int
}

// Planner computes per-resource sync chains for a resolved Graph,
// preserving prior-frame final states as each new frame's starting point.
type Planner struct {
	persisted map[uint64]ResourceState
}

// NewPlanner returns a planner with no persisted backend state (first use
// of every resource starts "undefined").
func NewPlanner() *Planner {
	return &Planner{persisted: make(map[uint64]ResourceState)}
}

func neutralState() ResourceState {
	return ResourceState{ImageLayout: vk.ImageLayoutUndefined}
}

func swapchainInitialState() ResourceState {
	return ResourceState{WriteStageMask: vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)}
}

func queueStage(q render.QueueKind) vk.PipelineStageFlags {
	switch q {
	case render.QueueCompute:
		return vk.PipelineStageFlags(vk.PipelineStageComputeShaderBit)
	case render.QueueTransfer:
		return vk.PipelineStageFlags(vk.PipelineStageTransferBit)
	default:
		return vk.PipelineStageFlags(vk.PipelineStageVertexShaderBit)
	}
}

// Plan builds one SyncChain per tracked resource in g, in pass order, and
// then deactivates explicit ops already covered by implicit renderpass
// attachment transitions.
func (p *Planner) Plan(g *Graph) map[uint64]*SyncChain {
	chains := make(map[uint64]*SyncChain)

	for _, h := range g.Resources() {
		chain := &SyncChain{}
		if h.IsRoot() {
			chain.isSwapchain = true
			chain.States = append(chain.States, swapchainInitialState())
		} else if s, ok := p.persisted[h.ID()]; ok {
			chain.States = append(chain.States, s)
		} else {
			chain.States = append(chain.States, neutralState())
		}
		chains[h.ID()] = chain
	}

	for _, pass := range g.Passes() {
		attached := make(map[uint64]bool, len(pass.Attachments()))
		for _, att := range pass.Attachments() {
			attached[att.Image.ID()] = true
		}

		for _, use := range pass.Uses() {
			if attached[use.Handle.ID()] {
				continue
			}
			chain, ok := chains[use.Handle.ID()]
			if !ok {
				continue
			}
			before := len(chain.States) - 1
			state := requiredState(use, pass.Queue)
			chain.States = append(chain.States, state)
			after := len(chain.States) - 1
			chain.Ops = append(chain.Ops, ExplicitSyncOp{Resource: use.Handle, BeforeIdx: before, AfterIdx: after})
		}

		for _, att := range pass.Attachments() {
			chain, ok := chains[att.Image.ID()]
			if !ok {
				continue
			}
			entryState := attachmentEntryState(att)
			chain.States = append(chain.States, entryState)
			subpassState := attachmentSubpassState(att)
			chain.States = append(chain.States, subpassState)
			chain.States = append(chain.States, subpassState) // placeholder patched by next pass's requirements
			touchIdx := len(chain.States) - 1
			if touchIdx > chain.maxAttachmentTouchIdx {
				chain.maxAttachmentTouchIdx = touchIdx
			}
		}
	}

	for id, chain := range chains {
		h := findHandle(g, id)
		if chain.isSwapchain {
			chain.States = append(chain.States, ResourceState{ImageLayout: vk.ImageLayoutPresentSrc})
		} else {
			chain.States = append(chain.States, ResourceState{})
		}
		p.persisted[h.ID()] = chain.States[len(chain.States)-1]

		for i := range chain.Ops {
			op := &chain.Ops[i]
			if h.Kind() != handle.KindImage {
				continue // buffer barriers are never deactivated
			}
			if chain.maxAttachmentTouchIdx >= op.AfterIdx {
				op.Deactivated = true
			}
		}
	}

	return chains
}

func findHandle(g *Graph, id uint64) handle.Handle {
	for _, h := range g.Resources() {
		if h.ID() == id {
			return h
		}
	}
	return handle.Handle{}
}

func requiredState(use render.ResourceUse, queue render.QueueKind) ResourceState {
	stage := queueStage(queue)
	switch {
	case use.Handle.Kind() == handle.KindImage && use.Access.IsReadWriteImage() && !use.Access.IsWrite():
		return ResourceState{VisibleAccessMask: vk.AccessFlags(vk.AccessShaderReadBit), WriteStageMask: stage, ImageLayout: vk.ImageLayoutShaderReadOnlyOptimal}
	case use.Handle.Kind() == handle.KindImage && use.Access.IsWrite():
		return ResourceState{
			VisibleAccessMask: vk.AccessFlags(vk.AccessShaderReadBit) | vk.AccessFlags(vk.AccessShaderWriteBit),
			WriteStageMask:    stage,
			ImageLayout:       vk.ImageLayoutGeneral,
		}
	default:
		return ResourceState{VisibleAccessMask: vk.AccessFlags(use.Access), WriteStageMask: stage}
	}
}

func attachmentEntryState(att render.ImageAttachment) ResourceState {
	if att.LoadOp == vk.AttachmentLoadOpLoad {
		layout := vk.ImageLayoutColorAttachmentOptimal
		if att.IsDepth {
			layout = vk.ImageLayoutDepthStencilAttachmentOptimal
		}
		return ResourceState{VisibleAccessMask: vk.AccessFlags(vk.AccessColorAttachmentReadBit), ImageLayout: layout}
	}
	return ResourceState{ImageLayout: vk.ImageLayoutUndefined}
}

func attachmentSubpassState(att render.ImageAttachment) ResourceState {
	if att.IsDepth {
		return ResourceState{
			VisibleAccessMask: vk.AccessFlags(vk.AccessDepthStencilAttachmentReadBit) | vk.AccessFlags(vk.AccessDepthStencilAttachmentWriteBit),
			WriteStageMask:    vk.PipelineStageFlags(vk.PipelineStageEarlyFragmentTestsBit),
			ImageLayout:       vk.ImageLayoutDepthStencilAttachmentOptimal,
		}
	}
	return ResourceState{
		VisibleAccessMask: vk.AccessFlags(vk.AccessColorAttachmentWriteBit),
		WriteStageMask:    vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		ImageLayout:       vk.ImageLayoutColorAttachmentOptimal,
	}
}
