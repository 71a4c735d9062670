package render

import "github.com/nullrend/vkfg/engine/handle"

// Module is the client-facing accumulator of renderpasses and declared
// resources for one frame. The renderer clones it into a per-frame
// rendergraph each call to update.
type Module struct {
	passes    []*Pass
	declared  map[uint64]handle.ImageInfo
	declaredB map[uint64]handle.BufferInfo
}

// NewModule returns an empty render module.
func NewModule() *Module {
	return &Module{
		declared:  make(map[uint64]handle.ImageInfo),
		declaredB: make(map[uint64]handle.BufferInfo),
	}
}

// AddPass appends pass to the module in submission order.
func (m *Module) AddPass(p *Pass) *Module {
	m.passes = append(m.passes, p)
	return m
}

// Passes returns the module's accumulated passes in submission order.
func (m *Module) Passes() []*Pass { return m.passes }

// DeclareImage records (or merges into) an image resource's declared info,
// unioning usage flags and maxing extents/mip/array counts across
// repeated declarations of the same handle.
func (m *Module) DeclareImage(h handle.Handle, info handle.ImageInfo) error {
	if existing, ok := m.declared[h.ID()]; ok {
		merged, err := handle.MergeImageInfo(existing, info)
		if err != nil {
			return err
		}
		m.declared[h.ID()] = merged
		return nil
	}
	m.declared[h.ID()] = info
	return nil
}

// DeclareBuffer records (or merges into) a buffer resource's declared info.
func (m *Module) DeclareBuffer(h handle.Handle, info handle.BufferInfo) {
	if existing, ok := m.declaredB[h.ID()]; ok {
		m.declaredB[h.ID()] = handle.MergeBufferInfo(existing, info)
		return
	}
	m.declaredB[h.ID()] = info
}

// ImageInfo returns the declared info for an image handle, if any.
func (m *Module) ImageInfo(h handle.Handle) (handle.ImageInfo, bool) {
	info, ok := m.declared[h.ID()]
	return info, ok
}

// BufferInfo returns the declared info for a buffer handle, if any.
func (m *Module) BufferInfo(h handle.Handle) (handle.BufferInfo, bool) {
	info, ok := m.declaredB[h.ID()]
	return info, ok
}

// ImageInfos returns every declared image's info keyed by handle ID, for the
// backend's resource pool to materialize or grow API objects from.
func (m *Module) ImageInfos() map[uint64]handle.ImageInfo { return m.declared }

// BufferInfos returns every declared buffer's info keyed by handle ID.
func (m *Module) BufferInfos() map[uint64]handle.BufferInfo { return m.declaredB }

// Clone snapshots the module's pass list (sharing Pass instances via
// refcount) for the renderer to hand to a fresh rendergraph each frame.
func (m *Module) Clone() []*Pass {
	out := make([]*Pass, len(m.passes))
	for i, p := range m.passes {
		out[i] = p.Clone()
	}
	return out
}
