package shader

import (
	"testing"

	vk "github.com/goki/vulkan"
)

func TestModuleHashStableForIdenticalInputs(t *testing.T) {
	spirv := []byte{1, 2, 3, 4}
	a := ModuleHash("shader.vert.spv", spirv, "USE_FOG=1;")
	b := ModuleHash("shader.vert.spv", spirv, "USE_FOG=1;")
	if a != b {
		t.Errorf("ModuleHash not stable for identical inputs: %d vs %d", a, b)
	}
}

func TestModuleHashSensitiveToDefines(t *testing.T) {
	spirv := []byte{1, 2, 3, 4}
	a := ModuleHash("shader.vert.spv", spirv, "USE_FOG=1;")
	b := ModuleHash("shader.vert.spv", spirv, "USE_FOG=0;")
	if a == b {
		t.Error("ModuleHash should differ when the defines string differs")
	}
}

func TestPipelineLayoutHashIgnoresNameHash(t *testing.T) {
	a := []BindingInfo{NewBindingInfo(0, 0, vk.DescriptorTypeUniformBuffer, 1, -1, 0, 64, 0xAAAA)}
	b := []BindingInfo{NewBindingInfo(0, 0, vk.DescriptorTypeUniformBuffer, 1, -1, 0, 64, 0xBBBB)}

	if PipelineLayoutHash(a) != PipelineLayoutHash(b) {
		t.Error("PipelineLayoutHash should ignore the name-hash field, only the binding shape")
	}
}

func TestPipelineLayoutHashOrderIndependent(t *testing.T) {
	a := NewBindingInfo(0, 0, vk.DescriptorTypeUniformBuffer, 1, -1, 0, 64, 0)
	b := NewBindingInfo(0, 1, vk.DescriptorTypeCombinedImageSampler, 1, -1, 0, 0, 0)

	h1 := PipelineLayoutHash([]BindingInfo{a, b})
	h2 := PipelineLayoutHash([]BindingInfo{b, a})
	if h1 != h2 {
		t.Error("PipelineLayoutHash should not depend on input slice order, since it sorts internally")
	}
}

func TestPipelineLayoutHashSensitiveToBindingShape(t *testing.T) {
	a := []BindingInfo{NewBindingInfo(0, 0, vk.DescriptorTypeUniformBuffer, 1, -1, 0, 64, 0)}
	b := []BindingInfo{NewBindingInfo(0, 0, vk.DescriptorTypeStorageBuffer, 1, -1, 0, 64, 0)}

	if PipelineLayoutHash(a) == PipelineLayoutHash(b) {
		t.Error("PipelineLayoutHash should differ for a different descriptor type at the same (set,binding)")
	}
}
