package shader

import vk "github.com/goki/vulkan"

// BindingInfo describes one descriptor binding declared by a shader,
// derived from SPIR-V reflection. It packs {set, binding, type, count,
// dynamic-offset-index, stage-bits, range} into a 64-bit word so that
// sorted comparison and hashing (both done constantly while building
// descriptor-set-layout keys) stay cheap.
//
// Bit layout, low to high:
//
//	bits  0- 7  set index        (8 bits,  max 255)
//	bits  8-15  binding index     (8 bits,  max 255)
//	bits 16-23  descriptor type   (8 bits, vk.DescriptorType)
//	bits 24-31  array count       (8 bits,  max 255)
//	bits 32-39  dynamic-offset idx(8 bits,  max 255, 0xFF = none)
//	bits 40-51  stage bits        (12 bits, vk.ShaderStageFlagBits union)
//	bits 52-63  range class       (12 bits, log2-bucketed UBO range)
type BindingInfo struct {
	packed   uint64
	NameHash uint32
	Range    uint64
}

const noDynamicOffset = 0xFF

func pack(set, binding uint8, dtype vk.DescriptorType, count uint8, dynIdx uint8, stageBits uint16, rangeClass uint16) uint64 {
	return uint64(set) |
		uint64(binding)<<8 |
		uint64(dtype)<<16 |
		uint64(count)<<24 |
		uint64(dynIdx)<<32 |
		uint64(stageBits&0xFFF)<<40 |
		uint64(rangeClass&0xFFF)<<52
}

// NewBindingInfo constructs a BindingInfo, bucketing range into a 12-bit
// log2 class for the packed word while retaining the exact byte range in
// the Range field for merge-time max widening.
func NewBindingInfo(set, binding uint32, dtype vk.DescriptorType, count uint32, dynamicOffsetIndex int, stageBits vk.ShaderStageFlagBits, byteRange uint64, nameHash uint32) BindingInfo {
	dynIdx := uint8(noDynamicOffset)
	if dynamicOffsetIndex >= 0 && dynamicOffsetIndex < noDynamicOffset {
		dynIdx = uint8(dynamicOffsetIndex)
	}
	return BindingInfo{
		packed:   pack(uint8(set), uint8(binding), dtype, uint8(count), dynIdx, uint16(stageBits), rangeClass(byteRange)),
		NameHash: nameHash,
		Range:    byteRange,
	}
}

func rangeClass(byteRange uint64) uint16 {
	class := uint16(0)
	for v := byteRange; v > 1; v >>= 1 {
		class++
	}
	return class
}

func (b BindingInfo) Set() uint32             { return uint32(b.packed & 0xFF) }
func (b BindingInfo) Binding() uint32         { return uint32((b.packed >> 8) & 0xFF) }
func (b BindingInfo) Type() vk.DescriptorType { return vk.DescriptorType((b.packed >> 16) & 0xFF) }
func (b BindingInfo) Count() uint32           { return uint32((b.packed >> 24) & 0xFF) }
func (b BindingInfo) HasDynamicOffset() bool {
	return uint8((b.packed>>32)&0xFF) != noDynamicOffset
}
func (b BindingInfo) DynamicOffsetIndex() uint32 { return uint32((b.packed >> 32) & 0xFF) }
func (b BindingInfo) StageBits() vk.ShaderStageFlagBits {
	return vk.ShaderStageFlagBits((b.packed >> 40) & 0xFFF)
}

// SetBinding returns the (set,binding) key used for sort and conflict checks.
func (b BindingInfo) SetBinding() (uint32, uint32) { return b.Set(), b.Binding() }

// HashKey returns the packed word with the name field excluded, matching
// the pipeline-layout hash rule that the name is not part of the hash.
func (b BindingInfo) HashKey() uint64 { return b.packed }

// withStageBits returns a copy of b with stageBits OR-combined in, used
// when merging the same (set,binding) across shader stages.
func (b BindingInfo) withStageBits(extra vk.ShaderStageFlagBits) BindingInfo {
	b.packed = (b.packed &^ (uint64(0xFFF) << 40)) | (uint64(uint16(b.StageBits()|extra)&0xFFF) << 40)
	return b
}

// withWidenedRange returns a copy of b whose range is the max of b.Range
// and other, re-bucketing the packed range class.
func (b BindingInfo) withWidenedRange(other uint64) BindingInfo {
	if other <= b.Range {
		return b
	}
	b.Range = other
	b.packed = (b.packed &^ (uint64(0xFFF) << 52)) | (uint64(rangeClass(other)&0xFFF) << 52)
	return b
}
