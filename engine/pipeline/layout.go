package pipeline

import (
	"fmt"
	"sync"

	vk "github.com/goki/vulkan"

	"github.com/nullrend/vkfg/engine/core"
	"github.com/nullrend/vkfg/engine/shader"
)

// pipelineLayoutEntry is the cached product of ProducePipelineLayout.
type pipelineLayoutEntry struct {
	Layout      vk.PipelineLayout
	SetLayouts  []vk.DescriptorSetLayout
	SetBindings [][]shader.BindingInfo
}

// LayoutCache retains pipeline layouts keyed by a hash of their set-layout
// keys, process-wide. It owns a DescriptorCache to produce each set's
// descriptor-set layout.
type LayoutCache struct {
	mu       sync.RWMutex
	device   vk.Device
	alloc    vk.AllocationCallbacks
	desc     *DescriptorCache
	layouts  map[uint64]*pipelineLayoutEntry
}

// NewLayoutCache constructs an empty cache bound to a logical device and
// descriptor cache.
func NewLayoutCache(device vk.Device, allocCallbacks vk.AllocationCallbacks, desc *DescriptorCache) *LayoutCache {
	return &LayoutCache{
		device:  device,
		alloc:   allocCallbacks,
		desc:    desc,
		layouts: make(map[uint64]*pipelineLayoutEntry),
	}
}

// mergeBindings unions the binding lists of every module's reflected
// bindings, applying the stage-merge rules: count/range/type must match at
// a shared (set,binding) (fatal otherwise), stage_bits OR-combine, name_hash
// need not match (earlier stage wins, with a warning), and range widens to
// the max when tolerated.
func mergeBindings(modules []*shader.Module) ([]shader.BindingInfo, error) {
	merged := make(map[[2]uint32]shader.BindingInfo)
	order := make([][2]uint32, 0)

	for _, m := range modules {
		for _, b := range m.Bindings {
			key := [2]uint32{b.Set(), b.Binding()}
			existing, ok := merged[key]
			if !ok {
				merged[key] = b
				order = append(order, key)
				continue
			}
			if existing.Type() != b.Type() || existing.Count() != b.Count() {
				return nil, fmt.Errorf("%w: set=%d binding=%d", ErrBindingMismatch, key[0], key[1])
			}
			if existing.NameHash != b.NameHash {
				core.LogWarn("pipeline: binding set=%d binding=%d name hash differs across stages, keeping the earlier stage's name", key[0], key[1])
			}
			dynIdx := -1
			if existing.HasDynamicOffset() {
				dynIdx = int(existing.DynamicOffsetIndex())
			}
			rng := existing.Range
			if b.Range > rng {
				rng = b.Range
			}
			combined := shader.NewBindingInfo(existing.Set(), existing.Binding(), existing.Type(), existing.Count(), dynIdx, existing.StageBits()|b.StageBits(), rng, existing.NameHash)
			merged[key] = combined
		}
	}

	out := make([]shader.BindingInfo, 0, len(order))
	for _, key := range order {
		out = append(out, merged[key])
	}
	return out, nil
}

// splitBySet groups a merged, sorted binding list into one slice per set
// index, validating that set indices are dense starting at 0.
func splitBySet(bindings []shader.BindingInfo) ([][]shader.BindingInfo, error) {
	maxSet := uint32(0)
	for _, b := range bindings {
		if b.Set() > maxSet {
			maxSet = b.Set()
		}
	}
	sets := make([][]shader.BindingInfo, maxSet+1)
	present := make([]bool, maxSet+1)
	for _, b := range bindings {
		sets[b.Set()] = append(sets[b.Set()], b)
		present[b.Set()] = true
	}
	for i, ok := range present {
		if !ok {
			return nil, fmt.Errorf("%w: set %d is unused between populated sets", ErrSetsNotDense, i)
		}
	}
	return sets, nil
}

// ProducePipelineLayout unions the bindings of every stage's shader module,
// splits them into dense per-set groups, produces one descriptor-set layout
// per set, and hashes the array of set-layout keys into a pipeline layout.
func (c *LayoutCache) ProducePipelineLayout(modules []*shader.Module) (vk.PipelineLayout, uint64, error) {
	merged, err := mergeBindings(modules)
	if err != nil {
		return nil, 0, err
	}
	sortBySetBinding(merged)

	sets, err := splitBySet(merged)
	if err != nil {
		return nil, 0, err
	}

	setLayoutKeys := make([]uint64, len(sets))
	setLayouts := make([]vk.DescriptorSetLayout, len(sets))
	for i, setBindings := range sets {
		layout, _, err := c.desc.ProduceDescriptorSetLayout(setBindings)
		if err != nil {
			return nil, 0, err
		}
		setLayouts[i] = layout
		setLayoutKeys[i] = shader.PipelineLayoutHash(setBindings)
	}

	layoutHash := hashUint64Slice(setLayoutKeys)

	c.mu.RLock()
	if e, ok := c.layouts[layoutHash]; ok {
		c.mu.RUnlock()
		return e.Layout, layoutHash, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.layouts[layoutHash]; ok {
		return e.Layout, layoutHash, nil
	}

	createInfo := vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: uint32(len(setLayouts)),
		PSetLayouts:    setLayouts,
	}
	var layout vk.PipelineLayout
	if res := vk.CreatePipelineLayout(c.device, &createInfo, &c.alloc, &layout); res != vk.Success {
		return nil, 0, ErrPipelineLayoutFailed
	}

	c.layouts[layoutHash] = &pipelineLayoutEntry{Layout: layout, SetLayouts: setLayouts, SetBindings: sets}
	return layout, layoutHash, nil
}

// SetBindingsFor returns the per-set binding lists a previously produced
// pipeline layout was built from, for the decoder to map named arguments to
// (set,binding,offset) when filling a descriptor-update-template's flat data
// array.
func (c *LayoutCache) SetBindingsFor(layoutHash uint64) ([][]shader.BindingInfo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.layouts[layoutHash]
	if !ok {
		return nil, false
	}
	return e.SetBindings, true
}

// SetLayoutsFor returns the descriptor-set layouts a previously produced
// pipeline layout was built from, in set order.
func (c *LayoutCache) SetLayoutsFor(layoutHash uint64) ([]vk.DescriptorSetLayout, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.layouts[layoutHash]
	if !ok {
		return nil, false
	}
	return e.SetLayouts, true
}

func sortBySetBinding(b []shader.BindingInfo) {
	for i := 1; i < len(b); i++ {
		for j := i; j > 0; j-- {
			si, bi := b[j].SetBinding()
			sj, bj := b[j-1].SetBinding()
			if sj < si || (sj == si && bj <= bi) {
				break
			}
			b[j], b[j-1] = b[j-1], b[j]
		}
	}
}

func hashUint64Slice(vals []uint64) uint64 {
	var h uint64 = 1469598103934665603
	for _, v := range vals {
		for i := 0; i < 8; i++ {
			h ^= (v >> (8 * i)) & 0xFF
			h *= 1099511628211
		}
	}
	return h
}
