package render

import (
	"testing"

	vk "github.com/goki/vulkan"

	"github.com/nullrend/vkfg/engine/handle"
)

func TestAddPassPreservesSubmissionOrder(t *testing.T) {
	m := NewModule()
	a := NewPass("a", QueueGraphics)
	b := NewPass("b", QueueGraphics)
	m.AddPass(a).AddPass(b)

	passes := m.Passes()
	if len(passes) != 2 || passes[0] != a || passes[1] != b {
		t.Fatalf("Passes() = %v, want [a, b] in submission order", passes)
	}
}

func TestDeclareImageMergesRepeatedDeclarations(t *testing.T) {
	m := NewModule()
	h := handle.Image("depth")

	if err := m.DeclareImage(h, handle.ImageInfo{Width: 800, Height: 600, UsageFlags: vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit)}); err != nil {
		t.Fatalf("first DeclareImage: %v", err)
	}
	if err := m.DeclareImage(h, handle.ImageInfo{Width: 1920, Height: 1080, UsageFlags: vk.ImageUsageFlags(vk.ImageUsageSampledBit)}); err != nil {
		t.Fatalf("second DeclareImage: %v", err)
	}

	info, ok := m.ImageInfo(h)
	if !ok {
		t.Fatal("ImageInfo lookup failed after declaration")
	}
	if info.Width != 1920 || info.Height != 1080 {
		t.Errorf("merged extent = %dx%d, want 1920x1080", info.Width, info.Height)
	}
	want := vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit) | vk.ImageUsageFlags(vk.ImageUsageSampledBit)
	if info.UsageFlags != want {
		t.Errorf("merged UsageFlags = %v, want %v", info.UsageFlags, want)
	}
}

func TestDeclareImageConflictPropagates(t *testing.T) {
	m := NewModule()
	h := handle.Image("color")

	if err := m.DeclareImage(h, handle.ImageInfo{Format: vk.FormatR8g8b8a8Unorm}); err != nil {
		t.Fatalf("first DeclareImage: %v", err)
	}
	if err := m.DeclareImage(h, handle.ImageInfo{Format: vk.FormatB8g8r8a8Unorm}); err != handle.ErrFormatConflict {
		t.Errorf("second DeclareImage = %v, want ErrFormatConflict", err)
	}
}

func TestDeclareBufferMerges(t *testing.T) {
	m := NewModule()
	h := handle.Buffer("indices")

	m.DeclareBuffer(h, handle.BufferInfo{Size: 1024, UsageFlags: vk.BufferUsageFlags(vk.BufferUsageIndexBufferBit)})
	m.DeclareBuffer(h, handle.BufferInfo{Size: 4096, UsageFlags: vk.BufferUsageFlags(vk.BufferUsageTransferDstBit)})

	info, ok := m.BufferInfo(h)
	if !ok {
		t.Fatal("BufferInfo lookup failed after declaration")
	}
	if info.Size != 4096 {
		t.Errorf("merged Size = %d, want 4096", info.Size)
	}
}

func TestUndeclaredHandleLookupMisses(t *testing.T) {
	m := NewModule()
	if _, ok := m.ImageInfo(handle.Image("never-declared")); ok {
		t.Error("ImageInfo should report ok=false for an undeclared handle")
	}
}

func TestCloneSharesPassesAndIncrementsRefcount(t *testing.T) {
	m := NewModule()
	p := NewPass("shared", QueueGraphics)
	m.AddPass(p)

	cloned := m.Clone()
	if len(cloned) != 1 || cloned[0] != p {
		t.Fatalf("Clone() = %v, want a slice sharing the same Pass pointer", cloned)
	}
	if got := p.Release(); got != 1 {
		t.Errorf("Release() after Clone = %d, want 1", got)
	}
}

func TestImageInfosReturnsEveryDeclaredHandle(t *testing.T) {
	m := NewModule()
	a := handle.Image("a")
	b := handle.Image("b")
	m.DeclareImage(a, handle.ImageInfo{Width: 1})
	m.DeclareImage(b, handle.ImageInfo{Width: 2})

	infos := m.ImageInfos()
	if len(infos) != 2 {
		t.Fatalf("got %d declared images, want 2", len(infos))
	}
	if infos[a.ID()].Width != 1 || infos[b.ID()].Width != 2 {
		t.Errorf("ImageInfos() = %+v, widths mismatched", infos)
	}
}
