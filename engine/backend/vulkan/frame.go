package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/nullrend/vkfg/engine/alloc"
	"github.com/nullrend/vkfg/engine/core"
	"github.com/nullrend/vkfg/engine/encode"
	"github.com/nullrend/vkfg/engine/handle"
	"github.com/nullrend/vkfg/engine/math"
	"github.com/nullrend/vkfg/engine/pipeline"
	"github.com/nullrend/vkfg/engine/render"
	"github.com/nullrend/vkfg/engine/rendergraph"
	"github.com/nullrend/vkfg/engine/shader"
)

// defaultPerFrameScratchBytes is the bump-allocated scratch region handed to
// one frame's passes, an implementer-chosen default in the same spirit as
// core.Settings' descriptor pool sizing: the source leaves per-frame upload
// budgets as a tunable the caller is expected to size against observed peak
// demand.
const defaultPerFrameScratchBytes = 4 << 20

// SwapchainImage returns the well-known root handle passes reference to write
// into the currently acquired swapchain image, just like any other declared
// image resource. Backend.Update rebinds it to the freshly acquired
// image/view via ResourcePool.BindExternal before a frame's passes record.
func SwapchainImage() handle.Handle {
	return handle.Image("swapchain").MarkRoot()
}

// Backend owns every process-wide cache a frame's recording draws on, plus
// the per-swapchain-image synchronization primitives and command buffers,
// and drives the acquire/plan/record/submit/present frame lifecycle.
type Backend struct {
	context  *VulkanContext
	swapchain *VulkanSwapchain

	shaders      *shader.Store
	descriptors  *pipeline.DescriptorCache
	layouts      *pipeline.LayoutCache
	psos         *pipeline.PSOCache
	built        *pipeline.MaterializationCache
	pipelines    *PipelineManager
	renderpasses *RenderpassCache
	resources    *ResourcePool
	descSets     *DescriptorSetAllocator
	staging      *alloc.StagingAllocator
	planner      *rendergraph.Planner
	decoder      *Decoder
	dot          *rendergraph.DotSettings

	scratch              *VulkanBuffer
	scratchMapped        []byte
	perFrameScratchBytes uint64
	maxFramesInFlight    uint32

	perImageFramebuffers map[uint32][]*VulkanFramebuffer
	frameIndex           int

	clock             *core.Clock
	lastFrameElapsed  float64
}

// NewBackend constructs every process-wide cache and per-swapchain-image sync
// object a frame needs, grounded on the same creation sequence
// SwapchainCreate/DeviceCreate already use for buffers, images, and command
// pools in this package.
func NewBackend(context *VulkanContext, swapchain *VulkanSwapchain, compiler shader.Compiler) (*Backend, error) {
	allocCb := derefAlloc(context.Allocator)

	shaders := shader.NewStore(context.Device.LogicalDevice, allocCb, compiler)
	descriptors := pipeline.NewDescriptorCache(context.Device.LogicalDevice, allocCb)
	layouts := pipeline.NewLayoutCache(context.Device.LogicalDevice, allocCb, descriptors)
	psos := pipeline.NewPSOCache()
	built := pipeline.NewMaterializationCache(context.Device.LogicalDevice)
	pipelines := NewPipelineManager(context.Device.LogicalDevice, allocCb, shaders, layouts, psos, built)
	renderpasses := NewRenderpassCache(context.Device, context.Allocator)
	resources := NewResourcePool(context)

	descSets, err := NewDescriptorSetAllocator(context)
	if err != nil {
		return nil, err
	}
	staging := alloc.NewStagingAllocator(context.Device.LogicalDevice, context.Device.PhysicalDevice, allocCb, 64)
	planner := rendergraph.NewPlanner()

	maxFramesInFlight := uint32(swapchain.MaxFramesInFlight)
	if maxFramesInFlight == 0 {
		maxFramesInFlight = 1
	}
	totalScratchBytes := defaultPerFrameScratchBytes * uint64(maxFramesInFlight)
	scratchUsage := vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit) | vk.BufferUsageFlags(vk.BufferUsageIndexBufferBit) |
		vk.BufferUsageFlags(vk.BufferUsageUniformBufferBit) | vk.BufferUsageFlags(vk.BufferUsageStorageBufferBit) |
		vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit) | vk.BufferUsageFlags(vk.BufferUsageTransferDstBit)
	scratchBuf, err := createVulkanBuffer(context, totalScratchBytes, scratchUsage,
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit)|vk.MemoryPropertyFlags(vk.MemoryPropertyHostCoherentBit))
	if err != nil {
		return nil, fmt.Errorf("frame: failed to create scratch buffer: %w", err)
	}

	var mappedPtr unsafe.Pointer
	if res := vk.MapMemory(context.Device.LogicalDevice, scratchBuf.Memory, 0, vk.DeviceSize(totalScratchBytes), 0, &mappedPtr); res != vk.Success {
		return nil, fmt.Errorf("frame: failed to map scratch buffer")
	}
	scratchMapped := unsafe.Slice((*byte)(mappedPtr), int(totalScratchBytes))

	decoder := NewDecoder(context, pipelines, layouts, descriptors, descSets, resources, shaders, staging, scratchBuf)

	b := &Backend{
		context:              context,
		swapchain:            swapchain,
		shaders:              shaders,
		descriptors:          descriptors,
		layouts:              layouts,
		psos:                 psos,
		built:                built,
		pipelines:            pipelines,
		renderpasses:         renderpasses,
		resources:            resources,
		descSets:             descSets,
		staging:              staging,
		planner:              planner,
		decoder:              decoder,
		dot:                  &rendergraph.DotSettings{FramesRemaining: core.Get().GenerateDotFiles, OutputDir: "."},
		scratch:              scratchBuf,
		scratchMapped:        scratchMapped,
		perFrameScratchBytes: defaultPerFrameScratchBytes,
		maxFramesInFlight:    maxFramesInFlight,
		perImageFramebuffers: make(map[uint32][]*VulkanFramebuffer),
		clock:                core.NewClock(),
	}
	core.MetricsInitialize()
	b.clock.Start()

	if err := b.initSyncObjects(); err != nil {
		return nil, err
	}
	if err := b.initCommandBuffers(); err != nil {
		return nil, err
	}
	return b, nil
}

func derefAlloc(p *vk.AllocationCallbacks) vk.AllocationCallbacks {
	if p == nil {
		return vk.AllocationCallbacks{}
	}
	return *p
}

func (b *Backend) initSyncObjects() error {
	c := b.context
	n := int(b.maxFramesInFlight)
	c.ImageAvailableSemaphores = make([]vk.Semaphore, n)
	c.QueueCompleteSemaphores = make([]vk.Semaphore, n)
	c.InFlightFences = make([]vk.Fence, n)
	c.InFlightFenceCount = uint32(n)

	semInfo := vk.SemaphoreCreateInfo{SType: vk.StructureTypeSemaphoreCreateInfo}
	for i := 0; i < n; i++ {
		if res := vk.CreateSemaphore(c.Device.LogicalDevice, &semInfo, c.Allocator, &c.ImageAvailableSemaphores[i]); res != vk.Success {
			return fmt.Errorf("frame: failed to create image-available semaphore")
		}
		if res := vk.CreateSemaphore(c.Device.LogicalDevice, &semInfo, c.Allocator, &c.QueueCompleteSemaphores[i]); res != vk.Success {
			return fmt.Errorf("frame: failed to create queue-complete semaphore")
		}
		fence, err := NewFence(c, true)
		if err != nil {
			return err
		}
		c.InFlightFences[i] = fence.Handle
	}
	c.ImagesInFlight = make([]vk.Fence, b.swapchain.ImageCount)
	return nil
}

func (b *Backend) initCommandBuffers() error {
	c := b.context
	n := int(b.swapchain.ImageCount)
	c.GraphicsCommandBuffers = make([]*VulkanCommandBuffer, n)
	for i := 0; i < n; i++ {
		cb, err := NewVulkanCommandBuffer(c, c.Device.GraphicsCommandPool, true)
		if err != nil {
			return err
		}
		c.GraphicsCommandBuffers[i] = cb
	}
	return nil
}

type passTarget struct {
	rp *VulkanRenderpass
	fb *VulkanFramebuffer
}

// Update runs one full frame: acquire, plan (resolve the rendergraph and
// compute sync chains), bind the swapchain image, build renderpasses and
// framebuffers, record every surviving pass, submit, and present.
func (b *Backend) Update(module *render.Module) error {
	c := b.context

	b.clock.Update()
	elapsedSeconds := b.clock.Elapsed() / 1e9
	delta := elapsedSeconds - b.lastFrameElapsed
	b.lastFrameElapsed = elapsedSeconds
	c.FrameDeltaTime = float32(delta)
	core.MetricsUpdate(delta)

	// Acquire.
	if res := vk.WaitForFences(c.Device.LogicalDevice, 1, []vk.Fence{c.InFlightFences[c.CurrentFrame]}, vk.True, ^uint64(0)); res != vk.Success {
		return fmt.Errorf("frame: wait for in-flight fence failed")
	}
	b.shaders.ReloadTainted(nil)
	b.staging.Reset()
	b.descSets.Reset()

	imageIndex, ok := b.swapchain.SwapchainAcquireNextImageIndex(c, ^uint64(0), c.ImageAvailableSemaphores[c.CurrentFrame], nil)
	if !ok {
		return core.ErrSwapchainBooting
	}
	c.ImageIndex = imageIndex

	if c.ImagesInFlight[imageIndex] != nil {
		vk.WaitForFences(c.Device.LogicalDevice, 1, []vk.Fence{c.ImagesInFlight[imageIndex]}, vk.True, ^uint64(0))
	}
	c.ImagesInFlight[imageIndex] = c.InFlightFences[c.CurrentFrame]

	// This image index's previous framebuffers are now safe to tear down:
	// its last use's fence just signaled above.
	for _, fb := range b.perImageFramebuffers[imageIndex] {
		fb.Destroy(c)
	}
	b.perImageFramebuffers[imageIndex] = nil

	// Plan.
	extent := math.Extent2D{Width: c.FramebufferWidth, Height: c.FramebufferHeight}
	graph := rendergraph.Build(module.Clone())
	graph.Prune()
	graph.Isolate()
	graph.PatchExtents(extent)
	chains := b.planner.Plan(graph)
	if err := b.resources.Sync(module); err != nil {
		return fmt.Errorf("frame: resource sync failed: %w", err)
	}
	b.frameIndex++
	rendergraph.WriteDot(graph, b.frameIndex, b.dot)

	// Bind swapchain.
	swapImage := &VulkanImage{
		Handle: b.swapchain.Images[imageIndex],
		View:   b.swapchain.Views[imageIndex],
		Width:  extent.Width,
		Height: extent.Height,
	}
	b.resources.BindExternal(SwapchainImage(), swapImage)

	// Build renderpasses and framebuffers.
	passes := graph.Passes()
	targets := make(map[uint64]passTarget, len(passes))
	for _, pass := range passes {
		passExtent, _, isGraphics := pass.GetFramebufferSettings()
		if !isGraphics {
			continue
		}
		rp, err := b.renderpasses.ProduceRenderpass(pass, chains)
		if err != nil {
			core.LogWarn("frame: %v, skipping pass %s", err, pass.Name)
			continue
		}

		attachments := pass.Attachments()
		views := make([]vk.ImageView, 0, len(attachments))
		resolved := true
		for _, att := range attachments {
			img, ok := b.resources.LookupImage(att.Image)
			if !ok {
				core.LogWarn("frame: attachment %s not resolved, skipping pass %s", att.Image.Name(), pass.Name)
				resolved = false
				break
			}
			views = append(views, img.View)
		}
		if !resolved {
			continue
		}

		fb, err := FramebufferCreate(c, rp, passExtent.Width, passExtent.Height, uint32(len(views)), views)
		if err != nil {
			core.LogWarn("frame: framebuffer creation failed for pass %s: %v", pass.Name, err)
			continue
		}
		targets[pass.ID] = passTarget{rp: rp, fb: fb}
		b.perImageFramebuffers[imageIndex] = append(b.perImageFramebuffers[imageIndex], fb)
	}

	// Record.
	cmd := c.GraphicsCommandBuffers[imageIndex]
	if err := cmd.Begin(true, false, false); err != nil {
		return err
	}

	frameBase := uint64(c.CurrentFrame) * b.perFrameScratchBytes
	perPassBytes := b.perFrameScratchBytes
	if len(passes) > 0 {
		perPassBytes = b.perFrameScratchBytes / uint64(len(passes))
	}
	cursor := uint64(0)
	opCursor := make(map[uint64]int)

	for _, pass := range passes {
		passExtent, _, isGraphics := pass.GetFramebufferSettings()

		linAlloc := alloc.NewLinearAllocator(b.scratchMapped, frameBase+cursor, perPassBytes)
		cursor += perPassBytes

		pass.Stream.Reset()
		enc := encode.New(pass.Stream, linAlloc, b.staging, b.pipelines, passExtent, pass.Name)
		pass.RunExecute(enc)

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
			idx := opCursor[use.Handle.ID()]
			if idx < len(chain.Ops) {
				IssueBarrier(cmd, use.Handle, chain.Ops[idx], chain, b.resources)
				opCursor[use.Handle.ID()] = idx + 1
			}
		}

		reader := encode.NewReader(pass.Stream)
		if isGraphics {
			t, ok := targets[pass.ID]
			if !ok {
				continue
			}
			beginInfo := vk.RenderPassBeginInfo{
				SType:           vk.StructureTypeRenderPassBeginInfo,
				RenderPass:      t.rp.Handle,
				Framebuffer:     t.fb.Handle,
				RenderArea:      vk.Rect2D{Extent: vk.Extent2D{Width: passExtent.Width, Height: passExtent.Height}},
				ClearValueCount: uint32(len(t.rp.ClearValues)),
				PClearValues:    t.rp.ClearValues,
			}
			vk.CmdBeginRenderPass(cmd.Handle, &beginInfo, vk.SubpassContentsInline)
			b.decoder.Decode(cmd, t.rp, reader)
			vk.CmdEndRenderPass(cmd.Handle)
		} else {
			b.decoder.Decode(cmd, nil, reader)
		}
	}

	if err := cmd.End(); err != nil {
		return err
	}

	// Decode & submit.
	if res := vk.ResetFences(c.Device.LogicalDevice, 1, []vk.Fence{c.InFlightFences[c.CurrentFrame]}); res != vk.Success {
		return fmt.Errorf("frame: failed to reset in-flight fence")
	}
	submitInfo := vk.SubmitInfo{
		SType:                vk.StructureTypeSubmitInfo,
		CommandBufferCount:   1,
		PCommandBuffers:      []vk.CommandBuffer{cmd.Handle},
		WaitSemaphoreCount:   1,
		PWaitSemaphores:      []vk.Semaphore{c.ImageAvailableSemaphores[c.CurrentFrame]},
		PWaitDstStageMask:    []vk.PipelineStageFlags{vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)},
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    []vk.Semaphore{c.QueueCompleteSemaphores[c.CurrentFrame]},
	}
	submitErr := lockPool.SafeQueueCall(c.Device.GraphicsQueueIndex, func() error {
		if res := vk.QueueSubmit(c.Device.GraphicsQueue, 1, []vk.SubmitInfo{submitInfo}, c.InFlightFences[c.CurrentFrame]); res != vk.Success {
			return fmt.Errorf("frame: vkQueueSubmit failed")
		}
		return nil
	})
	if submitErr != nil {
		return submitErr
	}
	cmd.UpdateSubmitted()

	// Present. Locked under the present queue's own family mutex: on most
	// hardware this is the same family (and so the same mutex) as graphics,
	// but on a distinct present queue the two can run concurrently.
	lockPool.SafeQueueCall(c.Device.PresentQueueIndex, func() error {
		b.swapchain.SwapchainPresent(c, c.Device.GraphicsQueue, c.Device.PresentQueue, c.QueueCompleteSemaphores[c.CurrentFrame], imageIndex)
		return nil
	})

	return nil
}

// Destroy waits for the device to go idle and tears down every object the
// backend owns, in roughly the reverse order they were created.
func (b *Backend) Destroy() {
	c := b.context
	vk.DeviceWaitIdle(c.Device.LogicalDevice)

	for _, fbs := range b.perImageFramebuffers {
		for _, fb := range fbs {
			fb.Destroy(c)
		}
	}
	b.renderpasses.DestroyAll()
	b.built.Destroy(derefAlloc(c.Allocator))
	b.resources.Destroy()
	b.descSets.Destroy()
	b.staging.Destroy()

	if b.scratch != nil {
		vk.UnmapMemory(c.Device.LogicalDevice, b.scratch.Memory)
		destroyVulkanBuffer(c, b.scratch)
	}

	for i := range c.GraphicsCommandBuffers {
		c.GraphicsCommandBuffers[i].Free(c, c.Device.GraphicsCommandPool)
	}
	for i := range c.InFlightFences {
		vk.DestroyFence(c.Device.LogicalDevice, c.InFlightFences[i], c.Allocator)
	}
	for i := range c.ImageAvailableSemaphores {
		vk.DestroySemaphore(c.Device.LogicalDevice, c.ImageAvailableSemaphores[i], c.Allocator)
		vk.DestroySemaphore(c.Device.LogicalDevice, c.QueueCompleteSemaphores[i], c.Allocator)
	}
}
