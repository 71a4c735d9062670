package vulkan

import "sync"

// LockGroup names a class of Vulkan object-management calls (device
// creation, queue retrieval, command-pool/resource allocation) that must not
// race with another call in the same class, since the underlying driver call
// is not guaranteed thread-safe across concurrent invocations. Only the
// groups SelectPhysicalDevice/DeviceCreate actually touch are declared here;
// add a group only when a real call site needs one.
type LockGroup string

const (
	DeviceManagement   LockGroup = "device_management"
	QueueManagement    LockGroup = "queue_management"
	ResourceManagement LockGroup = "resource_management"
)

// VulkanLockPool serializes Vulkan calls that share mutable driver-side
// state: one mutex per LockGroup for calls like vkCreateDevice that must run
// exclusively of others in the same group, and one mutex per queue family
// index for calls that submit or present against a specific vk.Queue (queues
// from the same family share a single vk.Queue handle internally, and
// submitting to it concurrently from multiple goroutines is undefined
// behavior per the Vulkan spec).
type VulkanLockPool struct {
	locks map[LockGroup]*sync.Mutex
	mu    sync.Mutex // protects locks and queueMutexes

	queueMutexes map[uint32]*sync.Mutex
}

// NewVulkanLockPool returns an empty pool; per-group and per-queue-family
// mutexes are created lazily on first use.
func NewVulkanLockPool() *VulkanLockPool {
	return &VulkanLockPool{
		locks:        make(map[LockGroup]*sync.Mutex),
		queueMutexes: make(map[uint32]*sync.Mutex),
	}
}

// lockPool is the single pool shared by device selection/creation and by
// frame submission/present, so a queue family mutex registered during
// SelectPhysicalDevice is the same one SafeQueueCall locks during frame
// recording.
var lockPool = NewVulkanLockPool()

func (vs *VulkanLockPool) setLock(group LockGroup) *sync.Mutex {
	vs.mu.Lock()
	defer vs.mu.Unlock()

	if _, exists := vs.locks[group]; !exists {
		vs.locks[group] = &sync.Mutex{}
	}
	vs.locks[group].Lock()

	return vs.locks[group]
}

// SafeCall runs fn while holding group's mutex.
func (vs *VulkanLockPool) SafeCall(group LockGroup, fn func() error) error {
	l := vs.setLock(group)
	defer l.Unlock()

	return fn()
}

// SetQueueFamily registers queueFamilyIndex with the pool so a later
// SafeQueueCall against it has a mutex to lock. Called once per qualifying
// family during physical device selection.
func (vs *VulkanLockPool) SetQueueFamily(index uint32) {
	vs.mu.Lock()
	defer vs.mu.Unlock()

	if _, exists := vs.queueMutexes[index]; !exists {
		vs.queueMutexes[index] = &sync.Mutex{}
	}
}

// SafeQueueCall runs fn while holding queueFamilyIndex's mutex only, not the
// pool's global mutex, so a submit against the graphics queue and a present
// against a distinct present queue family can proceed concurrently.
func (vs *VulkanLockPool) SafeQueueCall(queueFamilyIndex uint32, fn func() error) error {
	vs.mu.Lock()
	l, exists := vs.queueMutexes[queueFamilyIndex]
	if !exists {
		l = &sync.Mutex{}
		vs.queueMutexes[queueFamilyIndex] = l
	}
	vs.mu.Unlock()

	l.Lock()
	defer l.Unlock()

	return fn()
}
