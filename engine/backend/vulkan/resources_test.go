package vulkan

import (
	"testing"

	vk "github.com/goki/vulkan"

	"github.com/nullrend/vkfg/engine/handle"
)

// TestImageInfoFitsAcceptsLargerOrEqual covers the resource-pool reuse rule:
// a materialized image is reused when it's at least as large, the same
// format, and already carries every requested usage bit.
func TestImageInfoFitsAcceptsLargerOrEqual(t *testing.T) {
	have := handle.ImageInfo{Width: 1920, Height: 1080, Format: vk.FormatR8g8b8a8Unorm, UsageFlags: vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit) | vk.ImageUsageFlags(vk.ImageUsageSampledBit)}
	want := handle.ImageInfo{Width: 1280, Height: 720, Format: vk.FormatR8g8b8a8Unorm, UsageFlags: vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit)}
	if !imageInfoFits(have, want) {
		t.Error("a larger image with a superset of usage bits should fit a smaller request")
	}
}

func TestImageInfoFitsRejectsSmaller(t *testing.T) {
	have := handle.ImageInfo{Width: 640, Height: 480, Format: vk.FormatR8g8b8a8Unorm}
	want := handle.ImageInfo{Width: 1280, Height: 720, Format: vk.FormatR8g8b8a8Unorm}
	if imageInfoFits(have, want) {
		t.Error("a smaller image should not fit a larger request")
	}
}

func TestImageInfoFitsRejectsFormatMismatch(t *testing.T) {
	have := handle.ImageInfo{Width: 1920, Height: 1080, Format: vk.FormatR8g8b8a8Unorm}
	want := handle.ImageInfo{Width: 1920, Height: 1080, Format: vk.FormatB8g8r8a8Unorm}
	if imageInfoFits(have, want) {
		t.Error("a format mismatch should never fit, regardless of size")
	}
}

func TestImageInfoFitsRejectsMissingUsageBit(t *testing.T) {
	have := handle.ImageInfo{Width: 1920, Height: 1080, Format: vk.FormatR8g8b8a8Unorm, UsageFlags: vk.ImageUsageFlags(vk.ImageUsageSampledBit)}
	want := handle.ImageInfo{Width: 1920, Height: 1080, Format: vk.FormatR8g8b8a8Unorm, UsageFlags: vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit)}
	if imageInfoFits(have, want) {
		t.Error("an image missing a requested usage bit should not fit")
	}
}

// TestResourcePoolLookupMissWithoutSync covers the empty-pool case: lookups
// against a pool nothing has ever been bound into report ok=false.
func TestResourcePoolLookupMissWithoutSync(t *testing.T) {
	p := NewResourcePool(nil)
	if _, ok := p.LookupImage(handle.Image("color")); ok {
		t.Error("LookupImage should miss on an empty pool")
	}
	if _, ok := p.LookupBuffer(handle.Buffer("vertices")); ok {
		t.Error("LookupBuffer should miss on an empty pool")
	}
}

// TestBindExternalRegistersWithoutOwnership covers the swapchain-image path:
// BindExternal makes the image visible to LookupImage, and Destroy leaves it
// untouched (since the pool never took ownership of it).
func TestBindExternalRegistersWithoutOwnership(t *testing.T) {
	p := NewResourcePool(nil)
	h := handle.Image("swapchain")
	img := &VulkanImage{Width: 1920, Height: 1080}

	p.BindExternal(h, img)

	got, ok := p.LookupImage(h)
	if !ok {
		t.Fatal("LookupImage should hit after BindExternal")
	}
	if got != img {
		t.Error("LookupImage should return the exact image bound via BindExternal")
	}

	p.Destroy()
	if _, ok := p.LookupImage(h); ok {
		t.Error("Destroy should clear the pool's tracking even for external images")
	}
}
