package alloc

import (
	"sync"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/nullrend/vkfg/engine/containers"
	"github.com/nullrend/vkfg/engine/core"
	"github.com/nullrend/vkfg/engine/handle"
)

// stagingBlock is one ad-hoc host-visible transfer-source buffer handed out
// by Map and reclaimed at Reset.
type stagingBlock struct {
	Handle handle.Handle
	Buffer vk.Buffer
	Memory vk.DeviceMemory
	Mapped []byte
	Size   uint64
}

// StagingAllocator hands out host-visible transfer-source buffers for upload
// commands and reclaims them in bulk at frame-end (Reset), recycling them
// through a free queue; Destroy releases them. Multiple pass encoders may
// call Map concurrently, so access is mutex-protected.
type StagingAllocator struct {
	mu      sync.Mutex
	device  vk.Device
	pdevice vk.PhysicalDevice
	alloc   vk.AllocationCallbacks

	blocks []stagingBlock
	free   *containers.RingQueue
	next   uint32
}

// NewStagingAllocator constructs an allocator bound to a logical device. The
// free queue recycles released buffer backing slots across resets so repeat
// frames with similar upload traffic avoid reallocating Vulkan objects.
func NewStagingAllocator(device vk.Device, pdevice vk.PhysicalDevice, allocCallbacks vk.AllocationCallbacks, capacityHint int) *StagingAllocator {
	return &StagingAllocator{
		device:  device,
		pdevice: pdevice,
		alloc:   allocCallbacks,
		free:    containers.NewRingQueue(capacityHint),
	}
}

// Map returns a host-visible transfer-source buffer of at least numBytes and
// a handle whose meta bits mark it staging, indexed into this allocator's
// internal vector. The next recycled block from the free queue is reused when
// it is large enough; otherwise that block is destroyed and a new buffer is
// created.
func (s *StagingAllocator) Map(numBytes uint64) ([]byte, handle.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, err := s.free.Dequeue(); err == nil {
		reused := v.(stagingBlock)
		if reused.Size >= numBytes {
			idx := s.next
			s.next++
			reused.Handle = handle.StagingBuffer("staging", idx)
			s.blocks = append(s.blocks, reused)
			return reused.Mapped[:numBytes], reused.Handle, nil
		}
		// Too small to satisfy this request; release it and fall through
		// to allocate a properly-sized block below.
		vk.UnmapMemory(s.device, reused.Memory)
		vk.DestroyBuffer(s.device, reused.Buffer, &s.alloc)
		vk.FreeMemory(s.device, reused.Memory, &s.alloc)
	}

	createInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(numBytes),
		Usage:       vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit),
		SharingMode: vk.SharingModeExclusive,
	}

	var buf vk.Buffer
	if res := vk.CreateBuffer(s.device, &createInfo, &s.alloc, &buf); res != vk.Success {
		err := core.ErrStagingOverflow
		core.LogWarn("staging allocator: CreateBuffer failed, dropping upload: %v", err)
		return nil, handle.Handle{}, err
	}

	var req vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(s.device, buf, &req)
	req.Deref()

	memTypeIndex := findHostVisibleMemoryType(s.pdevice, req.MemoryTypeBits)
	allocInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  req.Size,
		MemoryTypeIndex: memTypeIndex,
	}
	var mem vk.DeviceMemory
	if res := vk.AllocateMemory(s.device, &allocInfo, &s.alloc, &mem); res != vk.Success {
		vk.DestroyBuffer(s.device, buf, &s.alloc)
		core.LogWarn("staging allocator: AllocateMemory failed, dropping upload")
		return nil, handle.Handle{}, core.ErrStagingOverflow
	}
	vk.BindBufferMemory(s.device, buf, mem, 0)

	var mappedPtr unsafe.Pointer
	vk.MapMemory(s.device, mem, 0, vk.DeviceSize(numBytes), 0, &mappedPtr)
	data := unsafe.Slice((*byte)(mappedPtr), int(numBytes))

	idx := s.next
	s.next++
	h := handle.StagingBuffer("staging", idx)

	s.blocks = append(s.blocks, stagingBlock{Handle: h, Buffer: buf, Memory: mem, Mapped: data, Size: numBytes})
	return data, h, nil
}

// Reset returns every buffer allocated since the last Reset to the free
// queue for the next frame's Map calls to reuse, destroying only what
// doesn't fit (the queue's capacity, set at construction, bounds how many
// blocks carry over).
func (s *StagingAllocator) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, b := range s.blocks {
		if err := s.free.Enqueue(b); err != nil {
			vk.UnmapMemory(s.device, b.Memory)
			vk.DestroyBuffer(s.device, b.Buffer, &s.alloc)
			vk.FreeMemory(s.device, b.Memory, &s.alloc)
		}
	}
	s.blocks = s.blocks[:0]
	s.next = 0
}

// Destroy releases every buffer the allocator holds, including ones parked
// in the free queue for reuse, and must only be called once the device is
// idle (no in-flight frame can still be reading from a staging buffer).
func (s *StagingAllocator) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()

	destroy := func(b stagingBlock) {
		vk.UnmapMemory(s.device, b.Memory)
		vk.DestroyBuffer(s.device, b.Buffer, &s.alloc)
		vk.FreeMemory(s.device, b.Memory, &s.alloc)
	}

	for _, b := range s.blocks {
		destroy(b)
	}
	s.blocks = s.blocks[:0]

	for {
		v, err := s.free.Dequeue()
		if err != nil {
			break
		}
		destroy(v.(stagingBlock))
	}
}

// Lookup resolves a staging handle to its backing Vulkan buffer, used by the
// command decoder when translating WriteToBuffer/WriteToImage commands.
func (s *StagingAllocator) Lookup(h handle.Handle) (vk.Buffer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.blocks {
		if b.Handle.Equal(h) {
			return b.Buffer, true
		}
	}
	return nil, false
}

func findHostVisibleMemoryType(pdevice vk.PhysicalDevice, typeBits uint32) uint32 {
	var props vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(pdevice, &props)
	props.Deref()

	want := vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit)
	for i := uint32(0); i < props.MemoryTypeCount; i++ {
		props.MemoryTypes[i].Deref()
		if typeBits&(1<<i) == 0 {
			continue
		}
		if props.MemoryTypes[i].PropertyFlags&want == want {
			return i
		}
	}
	return 0
}
