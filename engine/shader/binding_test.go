package shader

import (
	"testing"

	vk "github.com/goki/vulkan"
)

func TestBindingInfoRoundTripsFields(t *testing.T) {
	b := NewBindingInfo(2, 5, vk.DescriptorTypeUniformBuffer, 1, 3, vk.ShaderStageFlagBits(vk.ShaderStageVertexBit), 256, 0xBEEF)

	if set, binding := b.SetBinding(); set != 2 || binding != 5 {
		t.Errorf("SetBinding() = (%d,%d), want (2,5)", set, binding)
	}
	if b.Type() != vk.DescriptorTypeUniformBuffer {
		t.Errorf("Type() = %v, want DescriptorTypeUniformBuffer", b.Type())
	}
	if !b.HasDynamicOffset() || b.DynamicOffsetIndex() != 3 {
		t.Errorf("DynamicOffsetIndex() = %d (has=%v), want 3 (has=true)", b.DynamicOffsetIndex(), b.HasDynamicOffset())
	}
	if b.NameHash != 0xBEEF {
		t.Errorf("NameHash = %#x, want %#x", b.NameHash, 0xBEEF)
	}
}

func TestBindingInfoNoDynamicOffsetSentinel(t *testing.T) {
	b := NewBindingInfo(0, 0, vk.DescriptorTypeCombinedImageSampler, 1, -1, vk.ShaderStageFlagBits(vk.ShaderStageFragmentBit), 0, 0)
	if b.HasDynamicOffset() {
		t.Error("a binding constructed with dynamicOffsetIndex=-1 should report HasDynamicOffset()=false")
	}
}

func TestSortBindingsOrdersBySetThenBinding(t *testing.T) {
	bindings := []BindingInfo{
		NewBindingInfo(1, 0, vk.DescriptorTypeUniformBuffer, 1, -1, 0, 0, 0),
		NewBindingInfo(0, 2, vk.DescriptorTypeUniformBuffer, 1, -1, 0, 0, 0),
		NewBindingInfo(0, 1, vk.DescriptorTypeUniformBuffer, 1, -1, 0, 0, 0),
	}
	sortBindings(bindings)

	want := [][2]uint32{{0, 1}, {0, 2}, {1, 0}}
	for i, w := range want {
		set, binding := bindings[i].SetBinding()
		if set != w[0] || binding != w[1] {
			t.Errorf("bindings[%d] = (%d,%d), want (%d,%d)", i, set, binding, w[0], w[1])
		}
	}
}

func TestBuildSortedBindingsRejectsDuplicateSetBinding(t *testing.T) {
	raw := []ReflectedBinding{
		{Set: 0, Binding: 0, Type: vk.DescriptorTypeUniformBuffer},
		{Set: 0, Binding: 0, Type: vk.DescriptorTypeCombinedImageSampler},
	}
	if _, err := buildSortedBindings(raw, vk.ShaderStageFlagBits(vk.ShaderStageFragmentBit)); err == nil {
		t.Error("buildSortedBindings should reject two bindings declaring the same (set,binding)")
	}
}

func TestBuildSortedBindingsSortsOutput(t *testing.T) {
	raw := []ReflectedBinding{
		{Set: 0, Binding: 3, Type: vk.DescriptorTypeUniformBuffer},
		{Set: 0, Binding: 0, Type: vk.DescriptorTypeCombinedImageSampler},
	}
	out, err := buildSortedBindings(raw, vk.ShaderStageFlagBits(vk.ShaderStageFragmentBit))
	if err != nil {
		t.Fatalf("buildSortedBindings: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("got %d bindings, want 2", len(out))
	}
	if _, binding := out[0].SetBinding(); binding != 0 {
		t.Errorf("first sorted binding = %d, want 0", binding)
	}
}

func TestWithWidenedRangeTakesMax(t *testing.T) {
	b := NewBindingInfo(0, 0, vk.DescriptorTypeUniformBuffer, 1, -1, 0, 64, 0)
	wider := b.withWidenedRange(256)
	if wider.Range != 256 {
		t.Errorf("Range after widen = %d, want 256", wider.Range)
	}

	narrower := wider.withWidenedRange(32)
	if narrower.Range != 256 {
		t.Errorf("Range after widening with a smaller value changed: %d, want unchanged 256", narrower.Range)
	}
}

func TestWithStageBitsUnionsAcrossStages(t *testing.T) {
	b := NewBindingInfo(0, 0, vk.DescriptorTypeUniformBuffer, 1, -1, vk.ShaderStageFlagBits(vk.ShaderStageVertexBit), 0, 0)
	merged := b.withStageBits(vk.ShaderStageFlagBits(vk.ShaderStageFragmentBit))

	want := vk.ShaderStageFlagBits(vk.ShaderStageVertexBit) | vk.ShaderStageFlagBits(vk.ShaderStageFragmentBit)
	if merged.StageBits() != want {
		t.Errorf("StageBits() after merge = %v, want %v", merged.StageBits(), want)
	}
}
