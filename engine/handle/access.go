package handle

import vk "github.com/goki/vulkan"

// AccessFlags records how a pass uses a resource. It wraps the Vulkan
// access-mask bits directly so union (OR) and read/write classification
// stay one-to-one with the API's own semantics.
type AccessFlags vk.AccessFlags

const (
	readMask AccessFlags = AccessFlags(vk.AccessIndirectCommandReadBit) |
		AccessFlags(vk.AccessIndexReadBit) |
		AccessFlags(vk.AccessVertexAttributeReadBit) |
		AccessFlags(vk.AccessUniformReadBit) |
		AccessFlags(vk.AccessInputAttachmentReadBit) |
		AccessFlags(vk.AccessShaderReadBit) |
		AccessFlags(vk.AccessColorAttachmentReadBit) |
		AccessFlags(vk.AccessDepthStencilAttachmentReadBit) |
		AccessFlags(vk.AccessTransferReadBit) |
		AccessFlags(vk.AccessHostReadBit) |
		AccessFlags(vk.AccessMemoryReadBit)

	writeMask AccessFlags = AccessFlags(vk.AccessShaderWriteBit) |
		AccessFlags(vk.AccessColorAttachmentWriteBit) |
		AccessFlags(vk.AccessDepthStencilAttachmentWriteBit) |
		AccessFlags(vk.AccessTransferWriteBit) |
		AccessFlags(vk.AccessHostWriteBit) |
		AccessFlags(vk.AccessMemoryWriteBit)
)

// Union ORs two access-flag sets together, matching the resolver's rule
// that repeated uses of the same handle in one pass combine by OR.
func (a AccessFlags) Union(b AccessFlags) AccessFlags { return a | b }

// IsRead reports whether any read-access bit is set.
func (a AccessFlags) IsRead() bool { return a&readMask != 0 }

// IsWrite reports whether any write-access bit is set.
func (a AccessFlags) IsWrite() bool { return a&writeMask != 0 }

// ShaderReadOnly is conservatively treated as read+write for images: a
// layout transition into ShaderReadOnlyOptimal may itself require a write
// barrier even though the shader only reads the contents.
const ShaderReadOnly = AccessFlags(vk.AccessShaderReadBit)

// IsReadWriteImage reports whether an image access is the conservative
// read+write case (shader-read access on an image resource).
func (a AccessFlags) IsReadWriteImage() bool {
	return a&AccessFlags(vk.AccessShaderReadBit) != 0
}
