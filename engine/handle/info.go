package handle

import vk "github.com/goki/vulkan"

// ImageInfo is the declarative description of a desired image resource.
// Extent may be zero at declaration time for render-target images; the
// rendergraph resolver patches zero extents to the bound pass's extent or
// the swapchain extent.
type ImageInfo struct {
	CreateFlags  vk.ImageCreateFlags
	Type         vk.ImageType
	Format       vk.Format
	Width        uint32
	Height       uint32
	Depth        uint32
	MipLevels    uint32
	ArrayLayers  uint32
	SampleCount  vk.SampleCountFlagBits
	Tiling       vk.ImageTiling
	UsageFlags   vk.ImageUsageFlags
}

// BufferInfo is the declarative description of a desired buffer resource.
type BufferInfo struct {
	Size       uint64
	UsageFlags vk.BufferUsageFlags
}

// AccelerationStructureInfo is the declarative description of a desired
// acceleration-structure resource. BuildInfo is treated as an opaque handle
// into backend-specific geometry/instance data.
type AccelerationStructureInfo struct {
	BuildInfo  interface{}
	UsageFlags vk.BufferUsageFlags
}

// ImageInfoBuilder constructs an ImageInfo with the defaults the resolver
// expects (mip=1, samples=1, tiling=optimal) and allows additive flag
// merging across repeated declarations of the same handle.
type ImageInfoBuilder struct {
	info ImageInfo
}

// NewImageInfoBuilder returns a builder seeded with the component defaults.
func NewImageInfoBuilder() *ImageInfoBuilder {
	return &ImageInfoBuilder{info: ImageInfo{
		Type:        vk.ImageType2d,
		MipLevels:   1,
		ArrayLayers: 1,
		SampleCount: vk.SampleCount1Bit,
		Tiling:      vk.ImageTilingOptimal,
	}}
}

func (b *ImageInfoBuilder) Format(f vk.Format) *ImageInfoBuilder {
	b.info.Format = f
	return b
}

func (b *ImageInfoBuilder) Extent(width, height uint32) *ImageInfoBuilder {
	b.info.Width, b.info.Height, b.info.Depth = width, height, 1
	return b
}

func (b *ImageInfoBuilder) MipLevels(n uint32) *ImageInfoBuilder {
	b.info.MipLevels = n
	return b
}

func (b *ImageInfoBuilder) ArrayLayers(n uint32) *ImageInfoBuilder {
	b.info.ArrayLayers = n
	return b
}

func (b *ImageInfoBuilder) Samples(n vk.SampleCountFlagBits) *ImageInfoBuilder {
	b.info.SampleCount = n
	return b
}

// AddUsage ORs usage into the builder's usage flags, matching the resolver's
// commutative-OR combination rule across all declared uses.
func (b *ImageInfoBuilder) AddUsage(usage vk.ImageUsageFlagBits) *ImageInfoBuilder {
	b.info.UsageFlags |= vk.ImageUsageFlags(usage)
	return b
}

func (b *ImageInfoBuilder) Build() ImageInfo { return b.info }

// BufferInfoBuilder constructs a BufferInfo, mirroring ImageInfoBuilder.
type BufferInfoBuilder struct {
	info BufferInfo
}

func NewBufferInfoBuilder() *BufferInfoBuilder { return &BufferInfoBuilder{} }

func (b *BufferInfoBuilder) Size(n uint64) *BufferInfoBuilder {
	b.info.Size = n
	return b
}

func (b *BufferInfoBuilder) AddUsage(usage vk.BufferUsageFlagBits) *BufferInfoBuilder {
	b.info.UsageFlags |= vk.BufferUsageFlags(usage)
	return b
}

func (b *BufferInfoBuilder) Build() BufferInfo { return b.info }

// MergeImageInfo combines two declarations of the same image handle: usage
// flags OR, extents/mip/array counts take the max, and formats must match
// or one side must be Undefined.
func MergeImageInfo(a, b ImageInfo) (ImageInfo, error) {
	out := a
	out.UsageFlags |= b.UsageFlags
	if b.Width > out.Width {
		out.Width = b.Width
	}
	if b.Height > out.Height {
		out.Height = b.Height
	}
	if b.MipLevels > out.MipLevels {
		out.MipLevels = b.MipLevels
	}
	if b.ArrayLayers > out.ArrayLayers {
		out.ArrayLayers = b.ArrayLayers
	}
	if out.Format == vk.FormatUndefined {
		out.Format = b.Format
	} else if b.Format != vk.FormatUndefined && b.Format != out.Format {
		return ImageInfo{}, ErrFormatConflict
	}
	return out, nil
}

// MergeBufferInfo combines two declarations of the same buffer handle: usage
// flags OR, size takes the max.
func MergeBufferInfo(a, b BufferInfo) BufferInfo {
	out := a
	out.UsageFlags |= b.UsageFlags
	if b.Size > out.Size {
		out.Size = b.Size
	}
	return out
}
