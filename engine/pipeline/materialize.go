package pipeline

import (
	"hash/fnv"
	"sync"

	vk "github.com/goki/vulkan"
)

// MaterializationKey identifies one API pipeline object: a PSO handle
// materialized against a specific renderpass-compatibility hash, the
// per-stage module hashes that contributed to it, and the pipeline-layout
// hash it was built with.
type MaterializationKey struct {
	PSOHash            uint64
	RenderpassCompat   uint64
	StageModuleHashes  []uint64
	PipelineLayoutHash uint64
}

func (k MaterializationKey) fold() uint64 {
	h := fnv.New64a()
	writeUint64(h, k.PSOHash)
	writeUint64(h, k.RenderpassCompat)
	for _, m := range k.StageModuleHashes {
		writeUint64(h, m)
	}
	writeUint64(h, k.PipelineLayoutHash)
	return h.Sum64()
}

// MaterializationCache is the process-wide map from MaterializationKey to
// an already-built API pipeline object. It is single-writer: only the
// submission path (the command decoder resolving a BindXPipeline command)
// mutates it, so a plain mutex rather than a RWMutex matches the access
// pattern described for this cache.
type MaterializationCache struct {
	mu       sync.Mutex
	device   vk.Device
	pipelines map[uint64]vk.Pipeline
}

// NewMaterializationCache constructs an empty materialization cache.
func NewMaterializationCache(device vk.Device) *MaterializationCache {
	return &MaterializationCache{device: device, pipelines: make(map[uint64]vk.Pipeline)}
}

// Lookup returns the already-materialized pipeline for key, if any.
func (c *MaterializationCache) Lookup(key MaterializationKey) (vk.Pipeline, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.pipelines[key.fold()]
	return p, ok
}

// Store records a newly materialized pipeline for key, as built by the
// caller (the backend holds the actual vkCreateGraphicsPipelines call,
// since it needs the renderpass handle and layout that PSOCache/LayoutCache
// don't retain themselves).
func (c *MaterializationCache) Store(key MaterializationKey, p vk.Pipeline) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pipelines[key.fold()] = p
}

// Destroy tears down every materialized pipeline. Called at renderer
// teardown after the device is idle.
func (c *MaterializationCache) Destroy(allocCallbacks vk.AllocationCallbacks) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range c.pipelines {
		vk.DestroyPipeline(c.device, p, &allocCallbacks)
	}
	c.pipelines = make(map[uint64]vk.Pipeline)
}
