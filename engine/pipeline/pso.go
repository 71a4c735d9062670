package pipeline

import (
	"hash/fnv"
	"sync"

	vk "github.com/goki/vulkan"
)

// RasterizationState, MultisampleState, DepthStencilState, and
// InputAssemblyState are the fixed pipeline-state fields a graphics PSO
// hashes over. They mirror the corresponding Vulkan create-info subsets
// directly so hashing is a matter of hashing their bytes.
type RasterizationState struct {
	PolygonMode vk.PolygonMode
	CullMode    vk.CullModeFlags
	FrontFace   vk.FrontFace
	LineWidth   float32
}

type MultisampleState struct {
	SampleCount vk.SampleCountFlagBits
}

type DepthStencilState struct {
	DepthTestEnable  bool
	DepthWriteEnable bool
	DepthCompareOp   vk.CompareOp
}

type InputAssemblyState struct {
	Topology vk.PrimitiveTopology
}

// VertexInputBinding and VertexInputAttribute mirror the explicit vertex
// input a graphics PSO may carry.
type VertexInputBinding struct {
	Binding   uint32
	Stride    uint32
	InputRate vk.VertexInputRate
}

type VertexInputAttribute struct {
	Location uint32
	Binding  uint32
	Format   vk.Format
	Offset   uint32
}

// AttachmentBlendState is one entry of a graphics PSO's per-attachment
// blend array.
type AttachmentBlendState struct {
	BlendEnable    bool
	SrcColorFactor vk.BlendFactor
	DstColorFactor vk.BlendFactor
	ColorBlendOp   vk.BlendOp
	SrcAlphaFactor vk.BlendFactor
	DstAlphaFactor vk.BlendFactor
	AlphaBlendOp   vk.BlendOp
}

// GraphicsPSODesc is a content-hashable graphics pipeline state
// description. Its Hash folds the fixed-state blob, then each stage
// module's hash in insertion order, then the explicit vertex-input arrays
// if non-empty.
type GraphicsPSODesc struct {
	Rasterization  RasterizationState
	Multisample    MultisampleState
	DepthStencil   DepthStencilState
	InputAssembly  InputAssemblyState
	Blend          []AttachmentBlendState
	StageModules   []uint64 // shader module hashes, insertion order
	VertexBindings []VertexInputBinding
	VertexAttrs    []VertexInputAttribute
}

// Hash computes the PSO's content hash per the fold order documented above.
func (d GraphicsPSODesc) Hash() uint64 {
	h := fnv.New64a()
	writeStruct(h, d.Rasterization)
	writeStruct(h, d.Multisample)
	writeStruct(h, d.DepthStencil)
	writeStruct(h, d.InputAssembly)
	for _, b := range d.Blend {
		writeStruct(h, b)
	}
	for _, m := range d.StageModules {
		writeUint64(h, m)
	}
	if len(d.VertexBindings) > 0 || len(d.VertexAttrs) > 0 {
		for _, b := range d.VertexBindings {
			writeStruct(h, b)
		}
		for _, a := range d.VertexAttrs {
			writeStruct(h, a)
		}
	}
	return h.Sum64()
}

// ComputePSODesc is a single compute-stage PSO. Hash is just its module's hash.
type ComputePSODesc struct {
	StageModule uint64
}

func (d ComputePSODesc) Hash() uint64 { return d.StageModule }

// RtxShaderGroup is one entry of an RTX PSO's shader-group array.
type RtxShaderGroup struct {
	Type             vk.RayTracingShaderGroupTypeKHR
	General          int32
	ClosestHit       int32
	AnyHit           int32
	Intersection     int32
}

// RtxPSODesc is a ray-tracing PSO: a list of stage module hashes plus a
// list of shader groups. Hash folds stage hashes then the tightly packed
// group-info array.
type RtxPSODesc struct {
	StageModules []uint64
	Groups       []RtxShaderGroup
}

func (d RtxPSODesc) Hash() uint64 {
	h := fnv.New64a()
	for _, m := range d.StageModules {
		writeUint64(h, m)
	}
	for _, g := range d.Groups {
		writeStruct(h, g)
	}
	return h.Sum64()
}

// PSOCache stores PSO descriptions addressable by their content hash.
// Introduction (first-seen PSOs) takes the exclusive lock; lookup by hash
// takes the shared lock, matching the decode path's read-mostly access.
type PSOCache struct {
	mu       sync.RWMutex
	graphics map[uint64]GraphicsPSODesc
	compute  map[uint64]ComputePSODesc
	rtx      map[uint64]RtxPSODesc
}

// NewPSOCache constructs an empty PSO cache.
func NewPSOCache() *PSOCache {
	return &PSOCache{
		graphics: make(map[uint64]GraphicsPSODesc),
		compute:  make(map[uint64]ComputePSODesc),
		rtx:      make(map[uint64]RtxPSODesc),
	}
}

// IntroduceGraphics registers desc (if new) and returns its handle.
func (c *PSOCache) IntroduceGraphics(desc GraphicsPSODesc) uint64 {
	hash := desc.Hash()
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.graphics[hash]; !ok {
		c.graphics[hash] = desc
	}
	return hash
}

// IntroduceCompute registers desc (if new) and returns its handle.
func (c *PSOCache) IntroduceCompute(desc ComputePSODesc) uint64 {
	hash := desc.Hash()
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.compute[hash]; !ok {
		c.compute[hash] = desc
	}
	return hash
}

// IntroduceRtx registers desc (if new) and returns its handle.
func (c *PSOCache) IntroduceRtx(desc RtxPSODesc) uint64 {
	hash := desc.Hash()
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.rtx[hash]; !ok {
		c.rtx[hash] = desc
	}
	return hash
}

// LookupGraphics returns the registered description for a PSO handle.
func (c *PSOCache) LookupGraphics(hash uint64) (GraphicsPSODesc, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.graphics[hash]
	return d, ok
}

// LookupCompute returns the registered description for a PSO handle.
func (c *PSOCache) LookupCompute(hash uint64) (ComputePSODesc, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.compute[hash]
	return d, ok
}

// LookupRtx returns the registered description for a PSO handle.
func (c *PSOCache) LookupRtx(hash uint64) (RtxPSODesc, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.rtx[hash]
	return d, ok
}
