package shader

import (
	"hash/fnv"
	"sort"

	vk "github.com/goki/vulkan"
)

// ModuleHash canonicalizes (path, compiled SPIR-V bytes, macro-define
// string) to a stable 64-bit identity used to key the module cache.
func ModuleHash(path string, spirv []byte, defines string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(path))
	h.Write([]byte{0})
	h.Write(spirv)
	h.Write([]byte{0})
	h.Write([]byte(defines))
	return h.Sum64()
}

// PipelineLayoutHash hashes the sorted binding records, excluding the name
// field, so two binding sets that differ only by argument-name hash still
// hash identically.
func PipelineLayoutHash(bindings []BindingInfo) uint64 {
	sorted := make([]BindingInfo, len(bindings))
	copy(sorted, bindings)
	sort.Slice(sorted, func(i, j int) bool {
		si, bi := sorted[i].SetBinding()
		sj, bj := sorted[j].SetBinding()
		if si != sj {
			return si < sj
		}
		return bi < bj
	})
	h := fnv.New64a()
	var buf [8]byte
	for _, b := range sorted {
		putUint64(buf[:], b.HashKey())
		h.Write(buf[:])
	}
	return h.Sum64()
}

func putUint64(buf []byte, v uint64) {
	for i := 0; i < 8; i++ {
		buf[i] = byte(v >> (8 * i))
	}
}

// stageOrder maps a vk.ShaderStageFlagBits to its canonical ordering for the
// "earlier stage wins" name-conflict rule: lower numeric stage bit wins.
func stageOrder(s vk.ShaderStageFlagBits) uint32 { return uint32(s) }
