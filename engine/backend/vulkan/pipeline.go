package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/nullrend/vkfg/engine/core"
	"github.com/nullrend/vkfg/engine/pipeline"
	"github.com/nullrend/vkfg/engine/shader"
)

// PipelineManager materializes graphics/compute/rtx API pipeline objects on
// demand, deferring content-addressing to pipeline.PSOCache and caching the
// built objects in pipeline.MaterializationCache so a frame that resubmits
// the same PSO against the same renderpass and layout pays for neither
// reflection nor a vkCreateGraphicsPipelines call twice.
type PipelineManager struct {
	device  vk.Device
	alloc   vk.AllocationCallbacks
	shaders *shader.Store
	layouts *pipeline.LayoutCache
	psos    *pipeline.PSOCache
	built   *pipeline.MaterializationCache
}

// NewPipelineManager wires the four caches together behind one façade the
// command encoder/decoder talk to.
func NewPipelineManager(device vk.Device, allocCallbacks vk.AllocationCallbacks, shaders *shader.Store, layouts *pipeline.LayoutCache, psos *pipeline.PSOCache, built *pipeline.MaterializationCache) *PipelineManager {
	return &PipelineManager{device: device, alloc: allocCallbacks, shaders: shaders, layouts: layouts, psos: psos, built: built}
}

// HashGraphicsPSO satisfies encode.PipelineManager, registering desc with
// the PSO cache without materializing an API object yet.
func (m *PipelineManager) HashGraphicsPSO(desc interface{}) uint64 {
	return m.psos.IntroduceGraphics(desc.(pipeline.GraphicsPSODesc))
}

// HashComputePSO satisfies encode.PipelineManager.
func (m *PipelineManager) HashComputePSO(desc interface{}) uint64 {
	return m.psos.IntroduceCompute(desc.(pipeline.ComputePSODesc))
}

// HashRtxPSO satisfies encode.PipelineManager.
func (m *PipelineManager) HashRtxPSO(desc interface{}) uint64 {
	return m.psos.IntroduceRtx(desc.(pipeline.RtxPSODesc))
}

// ResolveGraphics returns the vk.Pipeline for a previously-hashed graphics
// PSO, materializing it against rp/renderpassCompat on first use. modules
// must be the same stage modules the PSO was introduced with, in the same
// order as desc.StageModules.
func (m *PipelineManager) ResolveGraphics(psoHash uint64, rp *VulkanRenderpass, modules []*shader.Module) (vk.Pipeline, error) {
	desc, ok := m.psos.LookupGraphics(psoHash)
	if !ok {
		return nil, fmt.Errorf("%w: unknown graphics PSO %#x", core.ErrShaderBuildFailed, psoHash)
	}

	layout, layoutHash, err := m.layouts.ProducePipelineLayout(modules)
	if err != nil {
		return nil, err
	}

	key := pipeline.MaterializationKey{
		PSOHash:            psoHash,
		RenderpassCompat:   rp.CompatibilityHash,
		StageModuleHashes:  desc.StageModules,
		PipelineLayoutHash: layoutHash,
	}
	if p, ok := m.built.Lookup(key); ok {
		return p, nil
	}

	p, err := m.createGraphicsPipeline(desc, modules, layout, rp)
	if err != nil {
		return nil, err
	}
	m.built.Store(key, p)
	return p, nil
}

// ResolveCompute mirrors ResolveGraphics for a single-stage compute PSO.
func (m *PipelineManager) ResolveCompute(psoHash uint64, module *shader.Module) (vk.Pipeline, error) {
	desc, ok := m.psos.LookupCompute(psoHash)
	if !ok {
		return nil, fmt.Errorf("%w: unknown compute PSO %#x", core.ErrShaderBuildFailed, psoHash)
	}

	layout, layoutHash, err := m.layouts.ProducePipelineLayout([]*shader.Module{module})
	if err != nil {
		return nil, err
	}

	key := pipeline.MaterializationKey{
		PSOHash:            psoHash,
		StageModuleHashes:  []uint64{desc.StageModule},
		PipelineLayoutHash: layoutHash,
	}
	if p, ok := m.built.Lookup(key); ok {
		return p, nil
	}

	createInfo := vk.ComputePipelineCreateInfo{
		SType: vk.StructureTypeComputePipelineCreateInfo,
		Stage: vk.PipelineShaderStageCreateInfo{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageComputeBit,
			Module: module.APIHandle,
			PName:  "main\x00",
		},
		Layout: layout,
	}
	pipelines := make([]vk.Pipeline, 1)
	if res := vk.CreateComputePipelines(m.device, nil, 1, []vk.ComputePipelineCreateInfo{createInfo}, &m.alloc, pipelines); res != vk.Success {
		return nil, fmt.Errorf("%w: vkCreateComputePipelines failed", core.ErrShaderBuildFailed)
	}
	m.built.Store(key, pipelines[0])
	return pipelines[0], nil
}

func (m *PipelineManager) createGraphicsPipeline(desc pipeline.GraphicsPSODesc, modules []*shader.Module, layout vk.PipelineLayout, rp *VulkanRenderpass) (vk.Pipeline, error) {
	stages := make([]vk.PipelineShaderStageCreateInfo, len(modules))
	for i, mod := range modules {
		stages[i] = vk.PipelineShaderStageCreateInfo{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  mod.Stage,
			Module: mod.APIHandle,
			PName:  "main\x00",
		}
	}

	bindings := make([]vk.VertexInputBindingDescription, len(desc.VertexBindings))
	for i, b := range desc.VertexBindings {
		bindings[i] = vk.VertexInputBindingDescription{Binding: b.Binding, Stride: b.Stride, InputRate: b.InputRate}
	}
	attrs := make([]vk.VertexInputAttributeDescription, len(desc.VertexAttrs))
	for i, a := range desc.VertexAttrs {
		attrs[i] = vk.VertexInputAttributeDescription{Location: a.Location, Binding: a.Binding, Format: a.Format, Offset: a.Offset}
	}
	vertexInput := vk.PipelineVertexInputStateCreateInfo{
		SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount:   uint32(len(bindings)),
		VertexAttributeDescriptionCount: uint32(len(attrs)),
	}
	if len(bindings) > 0 {
		vertexInput.PVertexBindingDescriptions = bindings
	}
	if len(attrs) > 0 {
		vertexInput.PVertexAttributeDescriptions = attrs
	}

	inputAssembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:    vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology: desc.InputAssembly.Topology,
	}

	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}

	rasterization := vk.PipelineRasterizationStateCreateInfo{
		SType:       vk.StructureTypePipelineRasterizationStateCreateInfo,
		PolygonMode: desc.Rasterization.PolygonMode,
		CullMode:    desc.Rasterization.CullMode,
		FrontFace:   desc.Rasterization.FrontFace,
		LineWidth:   desc.Rasterization.LineWidth,
	}
	if rasterization.LineWidth == 0 {
		rasterization.LineWidth = 1
	}

	multisample := vk.PipelineMultisampleStateCreateInfo{
		SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
		RasterizationSamples: desc.Multisample.SampleCount,
	}
	if multisample.RasterizationSamples == 0 {
		multisample.RasterizationSamples = vk.SampleCount1Bit
	}

	depthStencil := vk.PipelineDepthStencilStateCreateInfo{
		SType:            vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:  vk.Bool32(boolToUint(desc.DepthStencil.DepthTestEnable)),
		DepthWriteEnable: vk.Bool32(boolToUint(desc.DepthStencil.DepthWriteEnable)),
		DepthCompareOp:   desc.DepthStencil.DepthCompareOp,
	}

	colorBlendAttachments := make([]vk.PipelineColorBlendAttachmentState, len(desc.Blend))
	for i, b := range desc.Blend {
		colorBlendAttachments[i] = vk.PipelineColorBlendAttachmentState{
			BlendEnable:         vk.Bool32(boolToUint(b.BlendEnable)),
			SrcColorBlendFactor: b.SrcColorFactor,
			DstColorBlendFactor: b.DstColorFactor,
			ColorBlendOp:        b.ColorBlendOp,
			SrcAlphaBlendFactor: b.SrcAlphaFactor,
			DstAlphaBlendFactor: b.DstAlphaFactor,
			AlphaBlendOp:        b.AlphaBlendOp,
			ColorWriteMask:      vk.ColorComponentFlags(vk.ColorComponentRBit | vk.ColorComponentGBit | vk.ColorComponentBBit | vk.ColorComponentABit),
		}
	}
	if len(colorBlendAttachments) == 0 {
		colorBlendAttachments = []vk.PipelineColorBlendAttachmentState{{
			ColorWriteMask: vk.ColorComponentFlags(vk.ColorComponentRBit | vk.ColorComponentGBit | vk.ColorComponentBBit | vk.ColorComponentABit),
		}}
	}
	colorBlend := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		AttachmentCount: uint32(len(colorBlendAttachments)),
		PAttachments:    colorBlendAttachments,
	}

	dynamicStates := []vk.DynamicState{vk.DynamicStateViewport, vk.DynamicStateScissor, vk.DynamicStateLineWidth}
	dynamicState := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynamicStates)),
		PDynamicStates:    dynamicStates,
	}

	createInfo := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(stages)),
		PStages:             stages,
		PVertexInputState:   &vertexInput,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterization,
		PMultisampleState:   &multisample,
		PDepthStencilState:  &depthStencil,
		PColorBlendState:    &colorBlend,
		PDynamicState:       &dynamicState,
		Layout:              layout,
		RenderPass:          rp.Handle,
		Subpass:             0,
	}

	pipelines := make([]vk.Pipeline, 1)
	if res := vk.CreateGraphicsPipelines(m.device, nil, 1, []vk.GraphicsPipelineCreateInfo{createInfo}, &m.alloc, pipelines); res != vk.Success {
		return nil, fmt.Errorf("%w: vkCreateGraphicsPipelines failed", core.ErrShaderBuildFailed)
	}
	return pipelines[0], nil
}

func boolToUint(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
