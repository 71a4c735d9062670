package pipeline

import (
	"testing"

	vk "github.com/goki/vulkan"
)

func sampleGraphicsDesc() GraphicsPSODesc {
	return GraphicsPSODesc{
		Rasterization: RasterizationState{PolygonMode: vk.PolygonModeFill, CullMode: vk.CullModeFlags(vk.CullModeBackBit), FrontFace: vk.FrontFaceCounterClockwise, LineWidth: 1},
		Multisample:   MultisampleState{SampleCount: vk.SampleCount1Bit},
		DepthStencil:  DepthStencilState{DepthTestEnable: true, DepthWriteEnable: true, DepthCompareOp: vk.CompareOpLess},
		InputAssembly: InputAssemblyState{Topology: vk.PrimitiveTopologyTriangleList},
		StageModules:  []uint64{0x111, 0x222},
	}
}

// TestGraphicsPSOHashStability covers renderpass/PSO hash stability:
// identical descriptions hash identically, and any field difference changes
// the hash.
func TestGraphicsPSOHashStability(t *testing.T) {
	a := sampleGraphicsDesc()
	b := sampleGraphicsDesc()
	if a.Hash() != b.Hash() {
		t.Errorf("two structurally identical PSO descs hashed differently: %d vs %d", a.Hash(), b.Hash())
	}
}

func TestGraphicsPSOHashSensitiveToStageModuleOrder(t *testing.T) {
	a := sampleGraphicsDesc()
	b := sampleGraphicsDesc()
	b.StageModules = []uint64{0x222, 0x111}

	if a.Hash() == b.Hash() {
		t.Error("reordering stage modules should change the PSO hash")
	}
}

func TestGraphicsPSOHashSensitiveToRasterizationState(t *testing.T) {
	a := sampleGraphicsDesc()
	b := sampleGraphicsDesc()
	b.Rasterization.CullMode = vk.CullModeFlags(vk.CullModeFrontBit)

	if a.Hash() == b.Hash() {
		t.Error("a different cull mode should change the PSO hash")
	}
}

func TestComputePSOHashIsStageModuleHash(t *testing.T) {
	d := ComputePSODesc{StageModule: 0xDEAD}
	if d.Hash() != 0xDEAD {
		t.Errorf("ComputePSODesc.Hash() = %#x, want %#x", d.Hash(), 0xDEAD)
	}
}

// TestPSOCacheLookupRoundTrip covers PSO cache lookup: introducing a
// description makes it retrievable by the hash Introduce returned, and
// introducing the same description twice returns the same hash without
// overwriting the stored copy.
func TestPSOCacheLookupRoundTrip(t *testing.T) {
	c := NewPSOCache()
	desc := sampleGraphicsDesc()

	h1 := c.IntroduceGraphics(desc)
	h2 := c.IntroduceGraphics(desc)
	if h1 != h2 {
		t.Fatalf("introducing the same desc twice returned different hashes: %d vs %d", h1, h2)
	}

	got, ok := c.LookupGraphics(h1)
	if !ok {
		t.Fatal("LookupGraphics failed for a hash Introduce just returned")
	}
	if got.Hash() != desc.Hash() {
		t.Errorf("looked-up desc hash = %d, want %d", got.Hash(), desc.Hash())
	}
}

func TestPSOCacheLookupMissForUnknownHash(t *testing.T) {
	c := NewPSOCache()
	if _, ok := c.LookupGraphics(0x12345); ok {
		t.Error("LookupGraphics should report ok=false for a hash never introduced")
	}
}

func TestPSOCacheDistinctKindsDoNotCollide(t *testing.T) {
	c := NewPSOCache()
	compute := ComputePSODesc{StageModule: 0x42}
	h := c.IntroduceCompute(compute)

	if _, ok := c.LookupGraphics(h); ok {
		t.Error("a compute PSO hash should not resolve through LookupGraphics")
	}
}
