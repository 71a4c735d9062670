package pipeline

import (
	"errors"
	"testing"

	vk "github.com/goki/vulkan"

	"github.com/nullrend/vkfg/engine/shader"
)

func bindingModule(stage vk.ShaderStageFlagBits, bindings ...shader.BindingInfo) *shader.Module {
	return &shader.Module{Stage: stage, Bindings: bindings}
}

// TestMergeBindingsUnionsStageBits covers the stage-merge rule: a binding
// declared by two stages at the same (set,binding) keeps a single entry with
// both stages OR-combined into StageBits.
func TestMergeBindingsUnionsStageBits(t *testing.T) {
	vs := bindingModule(vk.ShaderStageFlagBits(vk.ShaderStageVertexBit),
		shader.NewBindingInfo(0, 0, vk.DescriptorTypeUniformBuffer, 1, -1, vk.ShaderStageFlagBits(vk.ShaderStageVertexBit), 64, 0xAAAA))
	fs := bindingModule(vk.ShaderStageFlagBits(vk.ShaderStageFragmentBit),
		shader.NewBindingInfo(0, 0, vk.DescriptorTypeUniformBuffer, 1, -1, vk.ShaderStageFlagBits(vk.ShaderStageFragmentBit), 64, 0xAAAA))

	merged, err := mergeBindings([]*shader.Module{vs, fs})
	if err != nil {
		t.Fatalf("mergeBindings: %v", err)
	}
	if len(merged) != 1 {
		t.Fatalf("got %d merged bindings, want 1", len(merged))
	}

	want := vk.ShaderStageFlagBits(vk.ShaderStageVertexBit) | vk.ShaderStageFlagBits(vk.ShaderStageFragmentBit)
	if merged[0].StageBits() != want {
		t.Errorf("merged StageBits() = %v, want %v", merged[0].StageBits(), want)
	}
}

func TestMergeBindingsWidensRangeAcrossStages(t *testing.T) {
	vs := bindingModule(vk.ShaderStageFlagBits(vk.ShaderStageVertexBit),
		shader.NewBindingInfo(0, 0, vk.DescriptorTypeUniformBuffer, 1, -1, vk.ShaderStageFlagBits(vk.ShaderStageVertexBit), 64, 0))
	fs := bindingModule(vk.ShaderStageFlagBits(vk.ShaderStageFragmentBit),
		shader.NewBindingInfo(0, 0, vk.DescriptorTypeUniformBuffer, 1, -1, vk.ShaderStageFlagBits(vk.ShaderStageFragmentBit), 256, 0))

	merged, err := mergeBindings([]*shader.Module{vs, fs})
	if err != nil {
		t.Fatalf("mergeBindings: %v", err)
	}
	if merged[0].Range != 256 {
		t.Errorf("merged Range = %d, want 256", merged[0].Range)
	}
}

// TestMergeBindingsRejectsTypeMismatch covers the fatal-mismatch rule: two
// stages declaring conflicting descriptor types at the same (set,binding)
// fail with ErrBindingMismatch rather than silently picking one.
func TestMergeBindingsRejectsTypeMismatch(t *testing.T) {
	vs := bindingModule(vk.ShaderStageFlagBits(vk.ShaderStageVertexBit),
		shader.NewBindingInfo(0, 0, vk.DescriptorTypeUniformBuffer, 1, -1, vk.ShaderStageFlagBits(vk.ShaderStageVertexBit), 64, 0))
	fs := bindingModule(vk.ShaderStageFlagBits(vk.ShaderStageFragmentBit),
		shader.NewBindingInfo(0, 0, vk.DescriptorTypeStorageBuffer, 1, -1, vk.ShaderStageFlagBits(vk.ShaderStageFragmentBit), 64, 0))

	_, err := mergeBindings([]*shader.Module{vs, fs})
	if !errors.Is(err, ErrBindingMismatch) {
		t.Errorf("mergeBindings with conflicting types = %v, want ErrBindingMismatch", err)
	}
}

func TestMergeBindingsRejectsCountMismatch(t *testing.T) {
	vs := bindingModule(vk.ShaderStageFlagBits(vk.ShaderStageVertexBit),
		shader.NewBindingInfo(0, 0, vk.DescriptorTypeCombinedImageSampler, 1, -1, vk.ShaderStageFlagBits(vk.ShaderStageVertexBit), 0, 0))
	fs := bindingModule(vk.ShaderStageFlagBits(vk.ShaderStageFragmentBit),
		shader.NewBindingInfo(0, 0, vk.DescriptorTypeCombinedImageSampler, 4, -1, vk.ShaderStageFlagBits(vk.ShaderStageFragmentBit), 0, 0))

	_, err := mergeBindings([]*shader.Module{vs, fs})
	if !errors.Is(err, ErrBindingMismatch) {
		t.Errorf("mergeBindings with conflicting counts = %v, want ErrBindingMismatch", err)
	}
}

func TestMergeBindingsTogglesOnDifferingNameHashWithoutFailing(t *testing.T) {
	vs := bindingModule(vk.ShaderStageFlagBits(vk.ShaderStageVertexBit),
		shader.NewBindingInfo(0, 0, vk.DescriptorTypeUniformBuffer, 1, -1, vk.ShaderStageFlagBits(vk.ShaderStageVertexBit), 64, 0xAAAA))
	fs := bindingModule(vk.ShaderStageFlagBits(vk.ShaderStageFragmentBit),
		shader.NewBindingInfo(0, 0, vk.DescriptorTypeUniformBuffer, 1, -1, vk.ShaderStageFlagBits(vk.ShaderStageFragmentBit), 64, 0xBBBB))

	merged, err := mergeBindings([]*shader.Module{vs, fs})
	if err != nil {
		t.Fatalf("a differing name hash alone should not fail merge: %v", err)
	}
	if merged[0].NameHash != 0xAAAA {
		t.Errorf("NameHash after merge = %#x, want earlier stage's %#x", merged[0].NameHash, 0xAAAA)
	}
}

// TestSplitBySetRejectsSparseSets covers the dense-set-index invariant: a
// binding list referencing set 0 and set 2 without any set-1 binding fails
// rather than silently producing an empty middle set.
func TestSplitBySetRejectsSparseSets(t *testing.T) {
	bindings := []shader.BindingInfo{
		shader.NewBindingInfo(0, 0, vk.DescriptorTypeUniformBuffer, 1, -1, 0, 0, 0),
		shader.NewBindingInfo(2, 0, vk.DescriptorTypeUniformBuffer, 1, -1, 0, 0, 0),
	}
	if _, err := splitBySet(bindings); !errors.Is(err, ErrSetsNotDense) {
		t.Errorf("splitBySet over a sparse set range = %v, want ErrSetsNotDense", err)
	}
}

func TestSplitBySetGroupsByIndex(t *testing.T) {
	bindings := []shader.BindingInfo{
		shader.NewBindingInfo(0, 0, vk.DescriptorTypeUniformBuffer, 1, -1, 0, 0, 0),
		shader.NewBindingInfo(1, 0, vk.DescriptorTypeUniformBuffer, 1, -1, 0, 0, 0),
		shader.NewBindingInfo(1, 1, vk.DescriptorTypeUniformBuffer, 1, -1, 0, 0, 0),
	}
	sets, err := splitBySet(bindings)
	if err != nil {
		t.Fatalf("splitBySet: %v", err)
	}
	if len(sets) != 2 {
		t.Fatalf("got %d sets, want 2", len(sets))
	}
	if len(sets[0]) != 1 || len(sets[1]) != 2 {
		t.Errorf("set sizes = %d,%d, want 1,2", len(sets[0]), len(sets[1]))
	}
}

func TestSortBySetBindingOrdersAscending(t *testing.T) {
	bindings := []shader.BindingInfo{
		shader.NewBindingInfo(1, 0, vk.DescriptorTypeUniformBuffer, 1, -1, 0, 0, 0),
		shader.NewBindingInfo(0, 1, vk.DescriptorTypeUniformBuffer, 1, -1, 0, 0, 0),
		shader.NewBindingInfo(0, 0, vk.DescriptorTypeUniformBuffer, 1, -1, 0, 0, 0),
	}
	sortBySetBinding(bindings)

	want := [][2]uint32{{0, 0}, {0, 1}, {1, 0}}
	for i, w := range want {
		set, binding := bindings[i].SetBinding()
		if set != w[0] || binding != w[1] {
			t.Errorf("bindings[%d] = (%d,%d), want (%d,%d)", i, set, binding, w[0], w[1])
		}
	}
}

func TestHashUint64SliceStableAndOrderSensitive(t *testing.T) {
	a := hashUint64Slice([]uint64{1, 2, 3})
	b := hashUint64Slice([]uint64{1, 2, 3})
	if a != b {
		t.Errorf("hashUint64Slice not stable for identical input: %d vs %d", a, b)
	}

	c := hashUint64Slice([]uint64{3, 2, 1})
	if a == c {
		t.Error("hashUint64Slice should be sensitive to element order")
	}
}
