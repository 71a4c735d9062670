package core

import (
	"errors"
)

var (
	ErrSwapchainBooting = errors.New("swapchain resized or recreated, booting")
	ErrUnknown          = errors.New("unknown")

	ErrShaderBuildFailed      = errors.New("shader build failed")
	ErrBindingConflict        = errors.New("shader binding conflict")
	ErrResourceInfoConflict   = errors.New("resource info conflict")
	ErrDescriptorSlotNotFilled = errors.New("descriptor slot not filled")
	ErrSubAllocatorOverflow   = errors.New("sub-allocator capacity exceeded")
	ErrStagingOverflow        = errors.New("staging allocator capacity exceeded")
)
