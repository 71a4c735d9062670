package encode

import "github.com/nullrend/vkfg/engine/handle"

// Fixed-size payload records, one per CommandType. Trailing bytes (vertex
// and index data, push constants) travel in Command.Trailing rather than
// inline in the struct. Viewport and scissor rects are the exception: each
// command carries one rect inside its payload struct and no trailing bytes.

type BindPipelinePayload struct {
	PSOHash uint64
}

type BindIndexBufferPayload struct {
	Buffer    handle.Handle
	Offset    uint64
	IndexType uint32
}

type BindVertexBuffersPayload struct {
	Buffers []handle.Handle
	Offsets []uint64
}

type SetVertexDataPayload struct {
	Binding uint32
}

type WriteToBufferPayload struct {
	Scratch     handle.Handle
	Destination handle.Handle
	DstOffset   uint64
}

// ImageWriteSettings describes the destination mip/array range for a
// WriteToImage command.
type ImageWriteSettings struct {
	MipLevels   uint32
	ArrayLayers uint32
	BaseMip     uint32
	BaseLayer   uint32
}

type WriteToImagePayload struct {
	Staging     handle.Handle
	Destination handle.Handle
	Settings    ImageWriteSettings
}

type SetArgumentDataPayload struct {
	NameHash uint32
	Scratch  handle.Handle
	Offset   uint64
}

type SetArgumentTexturePayload struct {
	NameHash   uint32
	Texture    handle.Handle
	ArrayIndex uint32
}

type SetArgumentImagePayload struct {
	NameHash   uint32
	Image      handle.Handle
	ArrayIndex uint32
}

type SetArgumentTlasPayload struct {
	NameHash uint32
	Tlas     handle.Handle
}

type BindArgumentBufferPayload struct {
	NameHash uint32
	Buffer   handle.Handle
	Offset   uint64
	Range    uint64
}

type ViewportPayload struct {
	X, Y, Width, Height float32
	MinDepth, MaxDepth  float32
}

type ScissorPayload struct {
	X, Y, Width, Height int32
}

type SetLineWidthPayload struct {
	Width float32
}

type DrawPayload struct {
	VertexCount, InstanceCount, FirstVertex, FirstInstance uint32
}

type DrawIndexedPayload struct {
	IndexCount, InstanceCount, FirstIndex uint32
	VertexOffset                         int32
	FirstInstance                        uint32
}

type DispatchPayload struct {
	GroupCountX, GroupCountY, GroupCountZ uint32
}

type DrawMeshTasksPayload struct {
	GroupCountX, GroupCountY, GroupCountZ uint32
}

type TraceRaysPayload struct {
	Width, Height, Depth uint32
}

type BuildRtxBlasPayload struct {
	Blas handle.Handle
}

type BuildRtxTlasPayload struct {
	Tlas handle.Handle
}
