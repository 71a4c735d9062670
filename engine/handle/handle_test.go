package handle

import "testing"

func TestImageIdentityAcrossCalls(t *testing.T) {
	a := Image("gbuffer-albedo")
	b := Image("gbuffer-albedo")
	if !a.Equal(b) {
		t.Fatalf("two Image() calls with the same name produced unequal handles: %+v vs %+v", a, b)
	}
	if a.ID() != b.ID() {
		t.Errorf("ID() mismatch for same-named handles: %d vs %d", a.ID(), b.ID())
	}
}

func TestImageAndBufferNeverCollide(t *testing.T) {
	img := Image("shared-name")
	buf := Buffer("shared-name")
	if img.Equal(buf) {
		t.Fatalf("Image and Buffer handles with the same debug name compared equal: %+v vs %+v", img, buf)
	}
}

func TestDistinctNamesAreDistinct(t *testing.T) {
	a := Image("depth")
	b := Image("color")
	if a.Equal(b) {
		t.Fatalf("distinctly named handles compared equal: %+v vs %+v", a, b)
	}
}

func TestVirtualBufferDistinctByIndex(t *testing.T) {
	a := VirtualBuffer("scratch", 0)
	b := VirtualBuffer("scratch", 1)
	if a.Equal(b) {
		t.Fatalf("VirtualBuffer with different indices compared equal: %+v vs %+v", a, b)
	}
	if !a.IsVirtual() || !b.IsVirtual() {
		t.Error("VirtualBuffer handles should report IsVirtual")
	}
}

func TestStagingBufferFlag(t *testing.T) {
	h := StagingBuffer("upload", 3)
	if !h.IsStaging() {
		t.Error("StagingBuffer handle should report IsStaging")
	}
	if h.IsVirtual() {
		t.Error("StagingBuffer handle should not report IsVirtual")
	}
	if h.Index() != 3 {
		t.Errorf("Index() = %d, want 3", h.Index())
	}
}

func TestMarkRoot(t *testing.T) {
	swap := Image("swapchain-color")
	root := swap.MarkRoot()
	if swap.IsRoot() {
		t.Error("MarkRoot must not mutate the receiver")
	}
	if !root.IsRoot() {
		t.Error("MarkRoot result should report IsRoot")
	}
	if !root.Equal(swap) {
		t.Error("marking a handle root must not change its logical identity")
	}
}

func TestZeroHandleInvalid(t *testing.T) {
	var h Handle
	if h.IsValid() {
		t.Error("zero Handle should be invalid")
	}
	if Image("x").ID() == 0 {
		t.Error("a constructed handle should never have id 0")
	}
}

func TestKindAndName(t *testing.T) {
	h := Buffer("indices")
	if h.Kind() != KindBuffer {
		t.Errorf("Kind() = %v, want KindBuffer", h.Kind())
	}
	if h.Name() != "indices" {
		t.Errorf("Name() = %q, want %q", h.Name(), "indices")
	}
}
