package handle

import (
	"testing"

	vk "github.com/goki/vulkan"
)

func TestImageInfoBuilderDefaults(t *testing.T) {
	info := NewImageInfoBuilder().Build()
	if info.Type != vk.ImageType2d {
		t.Errorf("default Type = %v, want ImageType2d", info.Type)
	}
	if info.MipLevels != 1 || info.ArrayLayers != 1 {
		t.Errorf("default MipLevels/ArrayLayers = %d/%d, want 1/1", info.MipLevels, info.ArrayLayers)
	}
	if info.SampleCount != vk.SampleCount1Bit {
		t.Errorf("default SampleCount = %v, want SampleCount1Bit", info.SampleCount)
	}
}

func TestImageInfoBuilderAccumulatesUsage(t *testing.T) {
	info := NewImageInfoBuilder().
		AddUsage(vk.ImageUsageColorAttachmentBit).
		AddUsage(vk.ImageUsageSampledBit).
		Build()

	want := vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit) | vk.ImageUsageFlags(vk.ImageUsageSampledBit)
	if info.UsageFlags != want {
		t.Errorf("UsageFlags = %v, want %v", info.UsageFlags, want)
	}
}

func TestMergeImageInfoUnionsUsageAndMaxesExtent(t *testing.T) {
	a := ImageInfo{Width: 512, Height: 256, MipLevels: 1, ArrayLayers: 1, UsageFlags: vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit)}
	b := ImageInfo{Width: 1024, Height: 128, MipLevels: 4, ArrayLayers: 1, UsageFlags: vk.ImageUsageFlags(vk.ImageUsageSampledBit)}

	merged, err := MergeImageInfo(a, b)
	if err != nil {
		t.Fatalf("MergeImageInfo returned error: %v", err)
	}
	if merged.Width != 1024 || merged.Height != 256 {
		t.Errorf("merged extent = %dx%d, want 1024x256", merged.Width, merged.Height)
	}
	if merged.MipLevels != 4 {
		t.Errorf("merged MipLevels = %d, want 4", merged.MipLevels)
	}
	wantUsage := vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit) | vk.ImageUsageFlags(vk.ImageUsageSampledBit)
	if merged.UsageFlags != wantUsage {
		t.Errorf("merged UsageFlags = %v, want %v", merged.UsageFlags, wantUsage)
	}
}

func TestMergeImageInfoFormatConflict(t *testing.T) {
	a := ImageInfo{Format: vk.FormatR8g8b8a8Unorm}
	b := ImageInfo{Format: vk.FormatR8g8b8a8Srgb}

	if _, err := MergeImageInfo(a, b); err != ErrFormatConflict {
		t.Errorf("MergeImageInfo with conflicting formats = %v, want ErrFormatConflict", err)
	}
}

func TestMergeImageInfoUndefinedFormatAdopted(t *testing.T) {
	a := ImageInfo{Format: vk.FormatUndefined}
	b := ImageInfo{Format: vk.FormatR8g8b8a8Unorm}

	merged, err := MergeImageInfo(a, b)
	if err != nil {
		t.Fatalf("MergeImageInfo returned error: %v", err)
	}
	if merged.Format != vk.FormatR8g8b8a8Unorm {
		t.Errorf("merged Format = %v, want FormatR8g8b8a8Unorm", merged.Format)
	}
}

func TestMergeBufferInfoUnionsUsageAndMaxesSize(t *testing.T) {
	a := BufferInfo{Size: 1024, UsageFlags: vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit)}
	b := BufferInfo{Size: 4096, UsageFlags: vk.BufferUsageFlags(vk.BufferUsageTransferDstBit)}

	merged := MergeBufferInfo(a, b)
	if merged.Size != 4096 {
		t.Errorf("merged Size = %d, want 4096", merged.Size)
	}
	want := vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit) | vk.BufferUsageFlags(vk.BufferUsageTransferDstBit)
	if merged.UsageFlags != want {
		t.Errorf("merged UsageFlags = %v, want %v", merged.UsageFlags, want)
	}
}
