package vulkan

import (
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/nullrend/vkfg/engine/alloc"
	"github.com/nullrend/vkfg/engine/core"
	"github.com/nullrend/vkfg/engine/encode"
	"github.com/nullrend/vkfg/engine/handle"
	"github.com/nullrend/vkfg/engine/pipeline"
	"github.com/nullrend/vkfg/engine/shader"
)

// Decoder walks one pass's recorded command stream and issues the
// corresponding Vulkan calls into a command buffer, resolving virtual and
// staging handles and filling descriptor sets from accumulated argument
// commands just before each draw/dispatch/trace-rays.
type Decoder struct {
	context     *VulkanContext
	pipelines   *PipelineManager
	layouts     *pipeline.LayoutCache
	descriptors *pipeline.DescriptorCache
	descSets    *DescriptorSetAllocator
	resources   *ResourcePool
	shaders     *shader.Store
	staging     *alloc.StagingAllocator
	scratch     *VulkanBuffer // backing buffer for the shared per-frame scratch region

	// per-pass recording state
	cmd         *VulkanCommandBuffer
	renderpass  *VulkanRenderpass
	bindPoint   vk.PipelineBindPoint
	modules     []*shader.Module
	layoutHash  uint64
	setLayouts  []vk.DescriptorSetLayout
	setBindings [][]shader.BindingInfo
	argData     map[[2]uint32]pipeline.DescriptorData
	indexBuffer vk.Buffer
	indexOffset uint64
}

// NewDecoder constructs a decoder bound to the caches a frame's backend
// orchestrator owns.
func NewDecoder(context *VulkanContext, pipelines *PipelineManager, layouts *pipeline.LayoutCache, descriptors *pipeline.DescriptorCache, descSets *DescriptorSetAllocator, resources *ResourcePool, shaders *shader.Store, staging *alloc.StagingAllocator, scratch *VulkanBuffer) *Decoder {
	return &Decoder{
		context:     context,
		pipelines:   pipelines,
		layouts:     layouts,
		descriptors: descriptors,
		descSets:    descSets,
		resources:   resources,
		shaders:     shaders,
		staging:     staging,
		scratch:     scratch,
	}
}

// Decode walks every command in r, recording into cmd against renderpass.
func (d *Decoder) Decode(cmd *VulkanCommandBuffer, renderpass *VulkanRenderpass, r *encode.Reader) {
	d.cmd = cmd
	d.renderpass = renderpass
	d.argData = make(map[[2]uint32]pipeline.DescriptorData)

	for {
		c, ok := r.Next()
		if !ok {
			return
		}
		d.decodeOne(c)
	}
}

func (d *Decoder) decodeOne(c encode.Command) {
	switch c.Header.Type {
	case encode.CmdBindGraphicsPipeline:
		d.bindPipeline(c.Payload.(encode.BindPipelinePayload), vk.PipelineBindPointGraphics)
	case encode.CmdBindComputePipeline:
		d.bindComputePipeline(c.Payload.(encode.BindPipelinePayload))
	case encode.CmdBindRtxPipeline:
		core.LogWarn("decode: ray-tracing pipeline binding not yet implemented, skipping")
	case encode.CmdBindIndexBuffer:
		d.bindIndexBuffer(c.Payload.(encode.BindIndexBufferPayload))
	case encode.CmdBindVertexBuffers:
		d.bindVertexBuffers(c.Payload.(encode.BindVertexBuffersPayload))
	case encode.CmdSetIndexData:
		// Scratch bytes were already copied at record time; SetIndexData
		// only establishes the virtual handle a following BindIndexBuffer
		// references, so there is nothing further to do here.
	case encode.CmdSetVertexData:
		// Same as SetIndexData: the scratch write already happened.
	case encode.CmdWriteToBuffer:
		d.writeToBuffer(c.Payload.(encode.WriteToBufferPayload))
	case encode.CmdWriteToImage:
		d.writeToImage(c.Payload.(encode.WriteToImagePayload))
	case encode.CmdSetArgumentData:
		d.setArgumentData(c.Payload.(encode.SetArgumentDataPayload))
	case encode.CmdSetArgumentTexture:
		d.setArgumentTexture(c.Payload.(encode.SetArgumentTexturePayload))
	case encode.CmdSetArgumentImage:
		d.setArgumentImage(c.Payload.(encode.SetArgumentImagePayload))
	case encode.CmdSetArgumentTlas:
		core.LogWarn("decode: TLAS arguments not yet implemented, skipping")
	case encode.CmdBindArgumentBuffer:
		d.bindArgumentBuffer(c.Payload.(encode.BindArgumentBufferPayload))
	case encode.CmdSetPushConstantData:
		d.setPushConstants(c.Trailing)
	case encode.CmdSetViewport:
		d.setViewport(c.Payload.(encode.ViewportPayload))
	case encode.CmdSetScissor:
		d.setScissor(c.Payload.(encode.ScissorPayload))
	case encode.CmdSetLineWidth:
		vk.CmdSetLineWidth(d.cmd.Handle, c.Payload.(encode.SetLineWidthPayload).Width)
	case encode.CmdDraw:
		d.draw(c.Payload.(encode.DrawPayload))
	case encode.CmdDrawIndexed:
		d.drawIndexed(c.Payload.(encode.DrawIndexedPayload))
	case encode.CmdDrawMeshTasks:
		core.LogWarn("decode: mesh-shader draws not yet implemented, skipping")
	case encode.CmdDispatch:
		d.dispatch(c.Payload.(encode.DispatchPayload))
	case encode.CmdTraceRays:
		core.LogWarn("decode: ray dispatch not yet implemented, skipping")
	case encode.CmdBuildRtxBlas, encode.CmdBuildRtxTlas:
		core.LogWarn("decode: acceleration-structure builds not yet implemented, skipping")
	}
}

func (d *Decoder) resolveModules(stageHashes []uint64) ([]*shader.Module, bool) {
	modules := make([]*shader.Module, 0, len(stageHashes))
	for _, h := range stageHashes {
		m, ok := d.shaders.Lookup(h)
		if !ok {
			core.LogWarn("decode: unknown shader module hash %#x, skipping draw", h)
			return nil, false
		}
		modules = append(modules, m)
	}
	return modules, true
}

func (d *Decoder) bindPipeline(p encode.BindPipelinePayload, bindPoint vk.PipelineBindPoint) {
	desc, ok := d.pipelines.psos.LookupGraphics(p.PSOHash)
	if !ok {
		core.LogWarn("decode: unknown graphics PSO %#x, skipping", p.PSOHash)
		return
	}
	modules, ok := d.resolveModules(desc.StageModules)
	if !ok {
		return
	}
	pso, err := d.pipelines.ResolveGraphics(p.PSOHash, d.renderpass, modules)
	if err != nil {
		core.LogWarn("decode: %v", err)
		return
	}
	vk.CmdBindPipeline(d.cmd.Handle, bindPoint, pso)

	d.bindPoint = bindPoint
	d.modules = modules
	_, d.layoutHash, _ = d.layouts.ProducePipelineLayout(modules)
	d.setLayouts, _ = d.layouts.SetLayoutsFor(d.layoutHash)
	d.setBindings, _ = d.layouts.SetBindingsFor(d.layoutHash)
	d.argData = make(map[[2]uint32]pipeline.DescriptorData)
}

func (d *Decoder) bindComputePipeline(p encode.BindPipelinePayload) {
	desc, ok := d.pipelines.psos.LookupCompute(p.PSOHash)
	if !ok {
		core.LogWarn("decode: unknown compute PSO %#x, skipping", p.PSOHash)
		return
	}
	module, ok := d.shaders.Lookup(desc.StageModule)
	if !ok {
		core.LogWarn("decode: unknown compute shader module %#x, skipping", desc.StageModule)
		return
	}
	pso, err := d.pipelines.ResolveCompute(p.PSOHash, module)
	if err != nil {
		core.LogWarn("decode: %v", err)
		return
	}
	vk.CmdBindPipeline(d.cmd.Handle, vk.PipelineBindPointCompute, pso)

	d.bindPoint = vk.PipelineBindPointCompute
	d.modules = []*shader.Module{module}
	_, d.layoutHash, _ = d.layouts.ProducePipelineLayout(d.modules)
	d.setLayouts, _ = d.layouts.SetLayoutsFor(d.layoutHash)
	d.setBindings, _ = d.layouts.SetBindingsFor(d.layoutHash)
	d.argData = make(map[[2]uint32]pipeline.DescriptorData)
}

// resolveBuffer returns the vk.Buffer and byte offset a handle addresses:
// the shared scratch buffer for virtual handles, a one-shot staging block
// for staging handles, or the resource pool for declared resources.
func (d *Decoder) resolveBuffer(h handle.Handle) (vk.Buffer, uint64, bool) {
	switch {
	case h.IsVirtual():
		return d.scratch.Handle, uint64(h.Index()), true
	case h.IsStaging():
		buf, ok := d.staging.Lookup(h)
		return buf, 0, ok
	default:
		buf, ok := d.resources.LookupBuffer(h)
		if !ok {
			return nil, 0, false
		}
		return buf.Handle, 0, true
	}
}

func (d *Decoder) bindIndexBuffer(p encode.BindIndexBufferPayload) {
	buf, offset, ok := d.resolveBuffer(p.Buffer)
	if !ok {
		core.LogWarn("decode: index buffer %s not resolved, skipping bind", p.Buffer.Name())
		return
	}
	indexType := vk.IndexTypeUint32
	if p.IndexType == 0 {
		indexType = vk.IndexTypeUint16
	}
	vk.CmdBindIndexBuffer(d.cmd.Handle, buf, vk.DeviceSize(offset+p.Offset), indexType)
	d.indexBuffer, d.indexOffset = buf, offset+p.Offset
}

func (d *Decoder) bindVertexBuffers(p encode.BindVertexBuffersPayload) {
	buffers := make([]vk.Buffer, len(p.Buffers))
	offsets := make([]vk.DeviceSize, len(p.Buffers))
	for i, h := range p.Buffers {
		buf, offset, ok := d.resolveBuffer(h)
		if !ok {
			core.LogWarn("decode: vertex buffer %s not resolved, skipping bind", h.Name())
			return
		}
		buffers[i] = buf
		o := offset
		if i < len(p.Offsets) {
			o += p.Offsets[i]
		}
		offsets[i] = vk.DeviceSize(o)
	}
	vk.CmdBindVertexBuffers(d.cmd.Handle, 0, uint32(len(buffers)), buffers, offsets)
}

func (d *Decoder) writeToBuffer(p encode.WriteToBufferPayload) {
	src, srcOffset, ok := d.resolveBuffer(p.Scratch)
	if !ok {
		return
	}
	dst, dstBase, ok := d.resolveBuffer(p.Destination)
	if !ok {
		core.LogWarn("decode: write destination %s not resolved, skipping", p.Destination.Name())
		return
	}
	region := vk.BufferCopy{SrcOffset: vk.DeviceSize(srcOffset), DstOffset: vk.DeviceSize(dstBase + p.DstOffset)}
	vk.CmdCopyBuffer(d.cmd.Handle, src, dst, 1, []vk.BufferCopy{region})
}

// writeToImage copies a staged buffer into the base mip level of an image
// and, when Settings.MipLevels asks for more than one level, generates the
// rest of the chain with a sequence of blits (there is no compute or
// dedicated mip-generation pass in this backend, so box-filtering downward
// one level at a time via vkCmdBlitImage is how every mip above the base
// gets populated).
func (d *Decoder) writeToImage(p encode.WriteToImagePayload) {
	src, ok := d.staging.Lookup(p.Staging)
	if !ok {
		core.LogWarn("decode: staging block for image write not resolved, skipping")
		return
	}
	dst, ok := d.resources.LookupImage(p.Destination)
	if !ok {
		core.LogWarn("decode: image write destination %s not resolved, skipping", p.Destination.Name())
		return
	}

	mipLevels := maxu32(p.Settings.MipLevels, 1)
	layerCount := maxu32(p.Settings.ArrayLayers, 1)
	baseLayer := p.Settings.BaseLayer
	baseMip := p.Settings.BaseMip

	hostTransferBarrier(d.cmd)

	// undefined -> transferDst across every level this write will touch:
	// the base-level copy target plus every level a blit below will write
	// into.
	imageLayoutTransition(d.cmd, dst, vk.ImageLayoutUndefined, vk.ImageLayoutTransferDstOptimal,
		0, vk.AccessFlags(vk.AccessTransferWriteBit),
		vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit), vk.PipelineStageFlags(vk.PipelineStageTransferBit),
		baseMip, mipLevels, baseLayer, layerCount)

	region := vk.BufferImageCopy{
		ImageSubresource: vk.ImageSubresourceLayers{
			AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
			MipLevel:       baseMip,
			BaseArrayLayer: baseLayer,
			LayerCount:     layerCount,
		},
		ImageExtent: vk.Extent3D{Width: dst.Width, Height: dst.Height, Depth: 1},
	}
	vk.CmdCopyBufferToImage(d.cmd.Handle, src, dst.Handle, vk.ImageLayoutTransferDstOptimal, 1, []vk.BufferImageCopy{region})

	if mipLevels <= 1 {
		imageLayoutTransition(d.cmd, dst, vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutShaderReadOnlyOptimal,
			vk.AccessFlags(vk.AccessTransferWriteBit), vk.AccessFlags(vk.AccessShaderReadBit),
			vk.PipelineStageFlags(vk.PipelineStageTransferBit), vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit),
			baseMip, 1, baseLayer, layerCount)
		return
	}

	srcWidth, srcHeight := int32(dst.Width), int32(dst.Height)
	for level := baseMip; level < baseMip+mipLevels-1; level++ {
		dstWidth, dstHeight := srcWidth, srcHeight
		if dstWidth > 1 {
			dstWidth /= 2
		}
		if dstHeight > 1 {
			dstHeight /= 2
		}

		// The level we're about to blit from was left in transferDst either
		// by the copy above (level == baseMip) or by the previous
		// iteration's blit into it; either way it must become transferSrc
		// before CmdBlitImage can read it.
		imageLayoutTransition(d.cmd, dst, vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutTransferSrcOptimal,
			vk.AccessFlags(vk.AccessTransferWriteBit), vk.AccessFlags(vk.AccessTransferReadBit),
			vk.PipelineStageFlags(vk.PipelineStageTransferBit), vk.PipelineStageFlags(vk.PipelineStageTransferBit),
			level, 1, baseLayer, layerCount)

		blit := vk.ImageBlit{
			SrcSubresource: vk.ImageSubresourceLayers{AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit), MipLevel: level, BaseArrayLayer: baseLayer, LayerCount: layerCount},
			SrcOffsets:     [2]vk.Offset3D{{}, {X: srcWidth, Y: srcHeight, Z: 1}},
			DstSubresource: vk.ImageSubresourceLayers{AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit), MipLevel: level + 1, BaseArrayLayer: baseLayer, LayerCount: layerCount},
			DstOffsets:     [2]vk.Offset3D{{}, {X: dstWidth, Y: dstHeight, Z: 1}},
		}
		vk.CmdBlitImage(d.cmd.Handle,
			dst.Handle, vk.ImageLayoutTransferSrcOptimal,
			dst.Handle, vk.ImageLayoutTransferDstOptimal,
			1, []vk.ImageBlit{blit}, vk.FilterLinear)

		srcWidth, srcHeight = dstWidth, dstHeight
	}

	lastLevel := baseMip + mipLevels - 1
	// Every level below the last ended the loop above in transferSrc; the
	// last level is still transferDst from the final blit writing into it.
	imageLayoutTransition(d.cmd, dst, vk.ImageLayoutTransferSrcOptimal, vk.ImageLayoutShaderReadOnlyOptimal,
		vk.AccessFlags(vk.AccessTransferReadBit), vk.AccessFlags(vk.AccessShaderReadBit),
		vk.PipelineStageFlags(vk.PipelineStageTransferBit), vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit),
		baseMip, mipLevels-1, baseLayer, layerCount)
	imageLayoutTransition(d.cmd, dst, vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutShaderReadOnlyOptimal,
		vk.AccessFlags(vk.AccessTransferWriteBit), vk.AccessFlags(vk.AccessShaderReadBit),
		vk.PipelineStageFlags(vk.PipelineStageTransferBit), vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit),
		lastLevel, 1, baseLayer, layerCount)
}

func maxu32(a, b uint32) uint32 {
	if a > b {
		return a
	}
	return b
}

func (d *Decoder) findBinding(nameHash uint32) (set, binding uint32, info shader.BindingInfo, ok bool) {
	for s, bindings := range d.setBindings {
		for _, b := range bindings {
			if b.NameHash == nameHash {
				return uint32(s), b.Binding(), b, true
			}
		}
	}
	return 0, 0, shader.BindingInfo{}, false
}

func (d *Decoder) setArgumentData(p encode.SetArgumentDataPayload) {
	set, binding, info, ok := d.findBinding(p.NameHash)
	if !ok {
		core.LogWarn("decode: no binding found for argument name hash %#x, skipping", p.NameHash)
		return
	}
	buf, offset, ok := d.resolveBuffer(p.Scratch)
	if !ok {
		return
	}
	d.argData[[2]uint32{set, binding}] = pipeline.DescriptorData{
		Type:   info.Type(),
		Buffer: buf,
		Offset: vk.DeviceSize(offset + p.Offset),
		Range:  vk.DeviceSize(info.Range),
	}
}

func (d *Decoder) setArgumentTexture(p encode.SetArgumentTexturePayload) {
	set, binding, info, ok := d.findBinding(p.NameHash)
	if !ok {
		core.LogWarn("decode: no binding found for texture argument %#x, skipping", p.NameHash)
		return
	}
	img, ok := d.resources.LookupImage(p.Texture)
	if !ok {
		core.LogWarn("decode: texture argument %s not resolved, skipping", p.Texture.Name())
		return
	}
	d.argData[[2]uint32{set, binding}] = pipeline.DescriptorData{
		Type:        info.Type(),
		ImageView:   img.View,
		ImageLayout: vk.ImageLayoutShaderReadOnlyOptimal,
		ArrayIndex:  p.ArrayIndex,
	}
}

func (d *Decoder) setArgumentImage(p encode.SetArgumentImagePayload) {
	set, binding, info, ok := d.findBinding(p.NameHash)
	if !ok {
		core.LogWarn("decode: no binding found for image argument %#x, skipping", p.NameHash)
		return
	}
	img, ok := d.resources.LookupImage(p.Image)
	if !ok {
		core.LogWarn("decode: image argument %s not resolved, skipping", p.Image.Name())
		return
	}
	d.argData[[2]uint32{set, binding}] = pipeline.DescriptorData{
		Type:        info.Type(),
		ImageView:   img.View,
		ImageLayout: vk.ImageLayoutGeneral,
		ArrayIndex:  p.ArrayIndex,
	}
}

func (d *Decoder) bindArgumentBuffer(p encode.BindArgumentBufferPayload) {
	set, binding, info, ok := d.findBinding(p.NameHash)
	if !ok {
		core.LogWarn("decode: no binding found for buffer argument %#x, skipping", p.NameHash)
		return
	}
	buf, base, ok := d.resolveBuffer(p.Buffer)
	if !ok {
		core.LogWarn("decode: argument buffer %s not resolved, skipping", p.Buffer.Name())
		return
	}
	d.argData[[2]uint32{set, binding}] = pipeline.DescriptorData{
		Type:   info.Type(),
		Buffer: buf,
		Offset: vk.DeviceSize(base + p.Offset),
		Range:  vk.DeviceSize(p.Range),
	}
}

func (d *Decoder) setPushConstants(data []byte) {
	if d.modules == nil || len(data) == 0 {
		return
	}
	stages := vk.ShaderStageFlags(0)
	for _, m := range d.modules {
		stages |= vk.ShaderStageFlags(m.Stage)
	}
	layout, _ := d.currentLayout()
	if layout == nil {
		return
	}
	vk.CmdPushConstants(d.cmd.Handle, layout, stages, 0, uint32(len(data)), unsafe.Pointer(&data[0]))
}

func (d *Decoder) currentLayout() (vk.PipelineLayout, uint64) {
	layout, _, err := d.layouts.ProducePipelineLayout(d.modules)
	if err != nil {
		return nil, 0
	}
	return layout, d.layoutHash
}

func (d *Decoder) setViewport(p encode.ViewportPayload) {
	vk.CmdSetViewport(d.cmd.Handle, 0, 1, []vk.Viewport{{
		X: p.X, Y: p.Y, Width: p.Width, Height: p.Height, MinDepth: p.MinDepth, MaxDepth: p.MaxDepth,
	}})
}

func (d *Decoder) setScissor(p encode.ScissorPayload) {
	vk.CmdSetScissor(d.cmd.Handle, 0, 1, []vk.Rect2D{{
		Offset: vk.Offset2D{X: p.X, Y: p.Y},
		Extent: vk.Extent2D{Width: uint32(p.Width), Height: uint32(p.Height)},
	}})
}

// flushDescriptorSets materializes and binds a descriptor set for every
// declared set with at least one binding. If any binding of any set is
// unfilled it warns and returns false, so the caller skips the draw rather
// than failing the frame.
func (d *Decoder) flushDescriptorSets() bool {
	for set, bindings := range d.setBindings {
		if len(bindings) == 0 {
			continue
		}
		filled := make([]pipeline.DescriptorData, len(bindings))
		ok := true
		for i, b := range bindings {
			data, has := d.argData[[2]uint32{uint32(set), b.Binding()}]
			if !has {
				core.LogWarn("%v: set=%d binding=%d, skipping draw", core.ErrDescriptorSlotNotFilled, set, b.Binding())
				ok = false
				break
			}
			filled[i] = data
		}
		if !ok {
			return false
		}

		template, has := d.descriptors.TemplateFor(bindings)
		if !has {
			return false
		}
		vkSet, err := d.descSets.Allocate(d.setLayouts[set])
		if err != nil {
			core.LogWarn("decode: %v", err)
			return false
		}
		vk.UpdateDescriptorSetWithTemplate(d.context.Device.LogicalDevice, vkSet, template, unsafe.Pointer(&filled[0]))

		layout, _ := d.currentLayout()
		vk.CmdBindDescriptorSets(d.cmd.Handle, d.bindPoint, layout, uint32(set), 1, []vk.DescriptorSet{vkSet}, 0, nil)
	}
	return true
}

func (d *Decoder) draw(p encode.DrawPayload) {
	if !d.flushDescriptorSets() {
		return
	}
	vk.CmdDraw(d.cmd.Handle, p.VertexCount, p.InstanceCount, p.FirstVertex, p.FirstInstance)
}

func (d *Decoder) drawIndexed(p encode.DrawIndexedPayload) {
	if !d.flushDescriptorSets() {
		return
	}
	vk.CmdDrawIndexed(d.cmd.Handle, p.IndexCount, p.InstanceCount, p.FirstIndex, p.VertexOffset, p.FirstInstance)
}

func (d *Decoder) dispatch(p encode.DispatchPayload) {
	if !d.flushDescriptorSets() {
		return
	}
	vk.CmdDispatch(d.cmd.Handle, p.GroupCountX, p.GroupCountY, p.GroupCountZ)
}
