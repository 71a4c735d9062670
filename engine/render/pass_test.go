package render

import (
	"testing"

	vk "github.com/goki/vulkan"

	"github.com/nullrend/vkfg/engine/encode"
	"github.com/nullrend/vkfg/engine/handle"
	"github.com/nullrend/vkfg/engine/math"
)

func TestUseResourceUnionsAccessOnRepeat(t *testing.T) {
	p := NewPass("gbuffer", QueueGraphics)
	h := handle.Image("normal")

	p.UseImageResource(h, handle.AccessFlags(vk.AccessColorAttachmentWriteBit))
	p.UseImageResource(h, handle.AccessFlags(vk.AccessShaderReadBit))

	uses := p.Uses()
	if len(uses) != 1 {
		t.Fatalf("got %d uses, want 1 (repeated use of the same handle should combine)", len(uses))
	}
	got := uses[0].Access
	if !got.IsWrite() || !got.IsRead() {
		t.Errorf("combined access = %v, want both read and write bits set", got)
	}
}

func TestUsesPreservesDeclarationOrder(t *testing.T) {
	p := NewPass("composite", QueueGraphics)
	a := handle.Image("a")
	b := handle.Image("b")
	c := handle.Image("c")

	p.UseImageResource(a, handle.AccessFlags(vk.AccessShaderReadBit))
	p.UseImageResource(b, handle.AccessFlags(vk.AccessShaderReadBit))
	p.UseImageResource(c, handle.AccessFlags(vk.AccessShaderReadBit))

	uses := p.Uses()
	if len(uses) != 3 {
		t.Fatalf("got %d uses, want 3", len(uses))
	}
	wantOrder := []handle.Handle{a, b, c}
	for i, w := range wantOrder {
		if uses[i].Handle.ID() != w.ID() {
			t.Errorf("uses[%d] = %q, want %q", i, uses[i].Handle.Name(), w.Name())
		}
	}
}

func TestVirtualBuffersWithDifferentIndicesDoNotCollide(t *testing.T) {
	p := NewPass("scratch-pass", QueueGraphics)
	a := handle.VirtualBuffer("scratch", 0)
	b := handle.VirtualBuffer("scratch", 1)

	p.UseBufferResource(a, handle.AccessFlags(vk.AccessShaderReadBit))
	p.UseBufferResource(b, handle.AccessFlags(vk.AccessShaderWriteBit))

	uses := p.Uses()
	if len(uses) != 2 {
		t.Fatalf("got %d uses, want 2 (virtual buffers sharing a base name but differing by index must track separately)", len(uses))
	}
	if uses[0].Access.IsWrite() {
		t.Error("index-0 virtual buffer should only have recorded the read access")
	}
	if !uses[1].Access.IsWrite() {
		t.Error("index-1 virtual buffer should have recorded the write access")
	}
}

func TestWritingRootHandleMarksPassRoot(t *testing.T) {
	p := NewPass("root-pass", QueueGraphics)
	swap := handle.Image("swapchain").MarkRoot()

	p.AddColorAttachment(swap, handle.ImageInfo{}, vk.AttachmentLoadOpClear, vk.AttachmentStoreOpStore, vk.ClearValue{})

	if !p.IsRoot {
		t.Error("writing to a root handle should implicitly mark the pass as root")
	}
}

func TestReadingRootHandleDoesNotMarkRoot(t *testing.T) {
	p := NewPass("sample-only", QueueGraphics)
	swap := handle.Image("swapchain").MarkRoot()

	p.SampleTexture(swap, vk.SamplerCreateInfo{})

	if p.IsRoot {
		t.Error("merely reading a root handle should not mark the pass as root")
	}
}

func TestSetupCallbackDefaultsTrue(t *testing.T) {
	p := NewPass("no-callback", QueueGraphics)
	if !p.RunSetup() {
		t.Error("a pass with no setup callback should run by default")
	}
}

func TestSetupCallbackFalseDropsPass(t *testing.T) {
	p := NewPass("conditional", QueueGraphics)
	p.SetSetupCallback(nil, func(interface{}) bool { return false })
	if p.RunSetup() {
		t.Error("setup callback returning false should be reported back to the caller")
	}
}

func TestExecuteCallbacksRunInRegistrationOrder(t *testing.T) {
	p := NewPass("multi-execute", QueueGraphics)
	var order []int
	p.SetExecuteCallback(nil, func(interface{}, *encode.Encoder) { order = append(order, 1) })
	p.SetExecuteCallback(nil, func(interface{}, *encode.Encoder) { order = append(order, 2) })
	p.SetExecuteCallback(nil, func(interface{}, *encode.Encoder) { order = append(order, 3) })

	enc := encode.New(encode.NewStream(0), nil, nil, nil, math.Extent2D{}, "multi-execute")
	p.RunExecute(enc)

	want := []int{1, 2, 3}
	if len(order) != len(want) {
		t.Fatalf("got %d callback invocations, want %d", len(order), len(want))
	}
	for i, w := range want {
		if order[i] != w {
			t.Errorf("order[%d] = %d, want %d", i, order[i], w)
		}
	}
}

func TestClonePreservesIdentityAndIncrementsRefcount(t *testing.T) {
	p := NewPass("shared", QueueGraphics)
	clone := p.Clone()
	if clone != p {
		t.Fatal("Clone should return the same backing pointer")
	}
	if got := p.Release(); got != 1 {
		t.Errorf("Release after one Clone = %d, want 1", got)
	}
}

func TestGetFramebufferSettingsOnlyForGraphics(t *testing.T) {
	p := NewPass("compute-pass", QueueCompute)
	_, _, ok := p.GetFramebufferSettings()
	if ok {
		t.Error("non-graphics passes should not report framebuffer settings")
	}

	gp := NewPass("graphics-pass", QueueGraphics)
	gp.SetWidth(1920).SetHeight(1080)
	extent, samples, ok := gp.GetFramebufferSettings()
	if !ok {
		t.Fatal("graphics pass should report framebuffer settings")
	}
	if extent.Width != 1920 || extent.Height != 1080 {
		t.Errorf("extent = %+v, want 1920x1080", extent)
	}
	if samples != vk.SampleCount1Bit {
		t.Errorf("default sample count = %v, want SampleCount1Bit", samples)
	}
}

func TestPatchExtentOnlyFillsZero(t *testing.T) {
	p := NewPass("patchable", QueueGraphics)
	p.SetWidth(800)

	p.PatchExtent(math.Extent2D{Width: 1280, Height: 720})

	if p.Width != 800 {
		t.Errorf("Width = %d, want unchanged 800", p.Width)
	}
	if p.Height != 720 {
		t.Errorf("Height = %d, want patched 720", p.Height)
	}
}
