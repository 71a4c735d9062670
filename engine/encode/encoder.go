package encode

import (
	"github.com/nullrend/vkfg/engine/alloc"
	"github.com/nullrend/vkfg/engine/core"
	"github.com/nullrend/vkfg/engine/handle"
	"github.com/nullrend/vkfg/engine/math"
)

// PipelineManager is the capability contract an Encoder exposes to execute
// callbacks that need to resolve shader/pipeline state while recording
// (e.g. to look up a PSO hash before issuing a bindGraphicsPipeline call).
// The concrete implementation lives in the pipeline package; Encoder only
// depends on this narrow surface to avoid a package cycle.
type PipelineManager interface {
	HashGraphicsPSO(desc interface{}) uint64
	HashComputePSO(desc interface{}) uint64
	HashRtxPSO(desc interface{}) uint64
}

// Encoder is the only vocabulary an execute callback sees. It owns a
// sub-allocator for scratch data, a pointer to the shared staging
// allocator, and a pipeline-manager handle, and appends self-describing
// commands to the owning pass's stream as calls are made.
type Encoder struct {
	stream  *Stream
	scratch *alloc.LinearAllocator
	staging *alloc.StagingAllocator
	pm      PipelineManager
	extent  math.Extent2D

	scratchName string
}

// New returns an encoder for one pass recording, freshly minted each frame.
func New(stream *Stream, scratch *alloc.LinearAllocator, staging *alloc.StagingAllocator, pm PipelineManager, extent math.Extent2D, passName string) *Encoder {
	return &Encoder{stream: stream, scratch: scratch, staging: staging, pm: pm, extent: extent, scratchName: passName}
}

// GetRenderpassExtent returns the extent of the renderpass this encoder was
// minted for.
func (e *Encoder) GetRenderpassExtent() math.Extent2D { return e.extent }

// GetPipelineManager returns the pipeline manager this encoder was minted
// with.
func (e *Encoder) GetPipelineManager() PipelineManager { return e.pm }

func (e *Encoder) allocScratch(data []byte) (handle.Handle, bool) {
	mapped, offset, err := e.scratch.Allocate(uint64(len(data)))
	if err != nil {
		core.LogWarn("encoder: dropping upload, %v", err)
		return handle.Handle{}, false
	}
	copy(mapped, data)
	// The virtual handle's index carries the byte offset into the shared
	// per-frame scratch buffer directly, so the decoder can bind/copy from
	// it without replaying the allocation sequence itself.
	return handle.VirtualBuffer(e.scratchName, uint32(offset)), true
}

// BindGraphicsPipeline records binding a graphics PSO by content hash.
func (e *Encoder) BindGraphicsPipeline(psoHash uint64) {
	e.stream.append(CmdBindGraphicsPipeline, BindPipelinePayload{PSOHash: psoHash}, nil)
}

// BindComputePipeline records binding a compute PSO by content hash.
func (e *Encoder) BindComputePipeline(psoHash uint64) {
	e.stream.append(CmdBindComputePipeline, BindPipelinePayload{PSOHash: psoHash}, nil)
}

// BindRtxPipeline records binding a ray-tracing PSO by content hash.
func (e *Encoder) BindRtxPipeline(psoHash uint64) {
	e.stream.append(CmdBindRtxPipeline, BindPipelinePayload{PSOHash: psoHash}, nil)
}

// BindIndexBuffer records binding an index buffer, virtual or physical.
func (e *Encoder) BindIndexBuffer(buf handle.Handle, offset uint64, indexType uint32) {
	e.stream.append(CmdBindIndexBuffer, BindIndexBufferPayload{Buffer: buf, Offset: offset, IndexType: indexType}, nil)
}

// BindVertexBuffers records binding one or more vertex buffers.
func (e *Encoder) BindVertexBuffers(buffers []handle.Handle, offsets []uint64) {
	e.stream.append(CmdBindVertexBuffers, BindVertexBuffersPayload{Buffers: buffers, Offsets: offsets}, nil)
}

// SetIndexData copies index bytes into scratch and records a write into a
// fresh virtual buffer, returning the handle for a subsequent BindIndexBuffer.
func (e *Encoder) SetIndexData(data []byte) (handle.Handle, bool) {
	h, ok := e.allocScratch(data)
	if !ok {
		return handle.Handle{}, false
	}
	e.stream.append(CmdSetIndexData, SetVertexDataPayload{}, data)
	return h, true
}

// SetVertexData copies vertex bytes into scratch for the given binding
// index and records a write into a fresh virtual buffer.
func (e *Encoder) SetVertexData(data []byte, bindingIndex uint32) (handle.Handle, bool) {
	h, ok := e.allocScratch(data)
	if !ok {
		return handle.Handle{}, false
	}
	e.stream.append(CmdSetVertexData, SetVertexDataPayload{Binding: bindingIndex}, data)
	return h, true
}

// WriteToBuffer copies bytes into scratch and records a buffer-to-buffer
// copy into dst at dstOffset.
func (e *Encoder) WriteToBuffer(dst handle.Handle, dstOffset uint64, data []byte) {
	h, ok := e.allocScratch(data)
	if !ok {
		return
	}
	e.stream.append(CmdWriteToBuffer, WriteToBufferPayload{Scratch: h, Destination: dst, DstOffset: dstOffset}, data)
}

// WriteToImage routes the upload through the staging allocator and records
// a write into dst per settings.
func (e *Encoder) WriteToImage(dst handle.Handle, settings ImageWriteSettings, data []byte) {
	mapped, stagingHandle, err := e.staging.Map(uint64(len(data)))
	if err != nil {
		core.LogWarn("encoder: dropping image upload, %v", err)
		return
	}
	copy(mapped, data)
	e.stream.append(CmdWriteToImage, WriteToImagePayload{Staging: stagingHandle, Destination: dst, Settings: settings}, nil)
}

// SetArgumentData copies bytes into scratch and records a descriptor
// binding write keyed by the shader argument's name hash.
func (e *Encoder) SetArgumentData(nameHash uint32, data []byte) {
	h, ok := e.allocScratch(data)
	if !ok {
		return
	}
	e.stream.append(CmdSetArgumentData, SetArgumentDataPayload{NameHash: nameHash, Scratch: h}, data)
}

// SetArgumentTexture records binding a combined image-sampler argument.
func (e *Encoder) SetArgumentTexture(nameHash uint32, tex handle.Handle, arrayIndex uint32) {
	e.stream.append(CmdSetArgumentTexture, SetArgumentTexturePayload{NameHash: nameHash, Texture: tex, ArrayIndex: arrayIndex}, nil)
}

// SetArgumentImage records binding a storage-image argument.
func (e *Encoder) SetArgumentImage(nameHash uint32, img handle.Handle, arrayIndex uint32) {
	e.stream.append(CmdSetArgumentImage, SetArgumentImagePayload{NameHash: nameHash, Image: img, ArrayIndex: arrayIndex}, nil)
}

// SetArgumentTlas records binding a top-level acceleration-structure argument.
func (e *Encoder) SetArgumentTlas(nameHash uint32, tlas handle.Handle) {
	e.stream.append(CmdSetArgumentTlas, SetArgumentTlasPayload{NameHash: nameHash, Tlas: tlas}, nil)
}

// BindArgumentBuffer records binding a dynamic UBO/SSBO argument directly to
// a buffer handle, bypassing scratch.
func (e *Encoder) BindArgumentBuffer(nameHash uint32, buf handle.Handle, offset, rng uint64) {
	e.stream.append(CmdBindArgumentBuffer, BindArgumentBufferPayload{NameHash: nameHash, Buffer: buf, Offset: offset, Range: rng}, nil)
}

// SetPushConstantData records push-constant bytes as inline trailing data.
func (e *Encoder) SetPushConstantData(data []byte) {
	e.stream.append(CmdSetPushConstantData, struct{}{}, data)
}

// SetViewport records a viewport state change.
func (e *Encoder) SetViewport(v ViewportPayload) {
	e.stream.append(CmdSetViewport, v, nil)
}

// SetScissor records a scissor-rect state change.
func (e *Encoder) SetScissor(s ScissorPayload) {
	e.stream.append(CmdSetScissor, s, nil)
}

// SetLineWidth records a line-width state change.
func (e *Encoder) SetLineWidth(width float32) {
	e.stream.append(CmdSetLineWidth, SetLineWidthPayload{Width: width}, nil)
}

// Draw records a non-indexed draw call.
func (e *Encoder) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	e.stream.append(CmdDraw, DrawPayload{vertexCount, instanceCount, firstVertex, firstInstance}, nil)
}

// DrawIndexed records an indexed draw call.
func (e *Encoder) DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	e.stream.append(CmdDrawIndexed, DrawIndexedPayload{indexCount, instanceCount, firstIndex, vertexOffset, firstInstance}, nil)
}

// DrawMeshTasks records a mesh-shader draw call.
func (e *Encoder) DrawMeshTasks(groupCountX, groupCountY, groupCountZ uint32) {
	e.stream.append(CmdDrawMeshTasks, DrawMeshTasksPayload{groupCountX, groupCountY, groupCountZ}, nil)
}

// Dispatch records a compute dispatch.
func (e *Encoder) Dispatch(groupCountX, groupCountY, groupCountZ uint32) {
	e.stream.append(CmdDispatch, DispatchPayload{groupCountX, groupCountY, groupCountZ}, nil)
}

// TraceRays records a ray-tracing dispatch.
func (e *Encoder) TraceRays(width, height, depth uint32) {
	e.stream.append(CmdTraceRays, TraceRaysPayload{width, height, depth}, nil)
}

// BuildRtxBlas records a bottom-level acceleration-structure build.
func (e *Encoder) BuildRtxBlas(blas handle.Handle) {
	e.stream.append(CmdBuildRtxBlas, BuildRtxBlasPayload{Blas: blas}, nil)
}

// BuildRtxTlas records a top-level acceleration-structure build.
func (e *Encoder) BuildRtxTlas(tlas handle.Handle) {
	e.stream.append(CmdBuildRtxTlas, BuildRtxTlasPayload{Tlas: tlas}, nil)
}
