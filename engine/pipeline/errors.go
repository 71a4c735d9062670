package pipeline

import "errors"

var (
	ErrDescriptorSetLayoutFailed = errors.New("pipeline: descriptor set layout creation failed")
	ErrPipelineLayoutFailed      = errors.New("pipeline: pipeline layout creation failed")
	ErrSetsNotDense              = errors.New("pipeline: descriptor set indices are not dense")
	ErrBindingMismatch           = errors.New("pipeline: binding count/range/type mismatch across stages")
	ErrPipelineCreationFailed    = errors.New("pipeline: API pipeline creation failed")
)
