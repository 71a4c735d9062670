// Package render implements the client-facing renderpass builder (C8) and
// the per-frame render module that accumulates renderpasses (C9).
package render

import (
	"hash/fnv"
	"sync/atomic"

	vk "github.com/goki/vulkan"

	"github.com/nullrend/vkfg/engine/encode"
	"github.com/nullrend/vkfg/engine/handle"
	"github.com/nullrend/vkfg/engine/math"
)

// QueueKind is the execution queue a pass's work targets.
type QueueKind uint8

const (
	QueueGraphics QueueKind = iota
	QueueCompute
	QueueTransfer
)

// SetupFunc runs once per frame before resolution; returning false drops
// the pass silently from the frame.
type SetupFunc func(userData interface{}) bool

// ExecuteFunc records commands into the encoder handed to it.
type ExecuteFunc func(userData interface{}, enc *encode.Encoder)

// ImageAttachment is one color or depth-stencil attachment on a graphics pass.
type ImageAttachment struct {
	Image      handle.Handle
	Info       handle.ImageInfo
	LoadOp     vk.AttachmentLoadOp
	StoreOp    vk.AttachmentStoreOp
	ClearValue vk.ClearValue
	IsDepth    bool
}

// SampledTexture is a texture a pass samples from, with its sampler info.
type SampledTexture struct {
	Texture handle.Handle
	Sampler vk.SamplerCreateInfo
}

// ResourceUse records one resource's accumulated access within a pass.
type ResourceUse struct {
	Handle handle.Handle
	Access handle.AccessFlags
}

// useKey identifies a resource use slot. ID alone collides for virtual and
// staging handles that share a base name but differ by index (e.g.
// handle.VirtualBuffer("scratch", 0) vs handle.VirtualBuffer("scratch", 1)
// both derive their id from Buffer("scratch")), so Index is folded in too.
type useKey struct {
	id    uint64
	index uint32
}

func keyOf(h handle.Handle) useKey { return useKey{id: h.ID(), index: h.Index()} }

// Pass is a named unit of GPU work with attachments, resource usages,
// setup/execute callbacks, and a collected command stream. It is
// reference-counted because an instance is shared between the client
// builder and the frame's rendergraph: Clone increments the refcount and
// hands back the same backing pointer. The rendergraph holds passes by
// pointer and calls Release on the ones that setup or pruning drops.
type Pass struct {
	Name       string
	ID         uint64
	Queue      QueueKind
	Width      uint32
	Height     uint32
	SampleCount vk.SampleCountFlagBits
	IsRoot     bool
	AffinityMask uint64

	attachments []ImageAttachment
	textures    []SampledTexture
	uses        map[useKey]*ResourceUse
	useOrder    []useKey

	setupUserData interface{}
	setupFn       SetupFunc
	executeUserData interface{}
	executeFns    []ExecuteFunc

	Stream *encode.Stream

	refcount *int32
}

func hashName(name string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(name))
	return h.Sum64()
}

// NewPass constructs an empty pass template for name on the given queue.
func NewPass(name string, queue QueueKind) *Pass {
	rc := int32(1)
	return &Pass{
		Name:     name,
		ID:       hashName(name),
		Queue:    queue,
		SampleCount: vk.SampleCount1Bit,
		uses:     make(map[useKey]*ResourceUse),
		Stream:   encode.NewStream(64),
		refcount: &rc,
	}
}

// Clone returns a shared reference to p, incrementing its refcount. Used
// when a pass participates in both the client module and a frame's
// rendergraph simultaneously.
func (p *Pass) Clone() *Pass {
	atomic.AddInt32(p.refcount, 1)
	return p
}

// Release decrements the refcount; callers that own the last reference are
// responsible for discarding the pass.
func (p *Pass) Release() int32 {
	return atomic.AddInt32(p.refcount, -1)
}

// SetSetupCallback installs the per-frame setup callback.
func (p *Pass) SetSetupCallback(userData interface{}, fn SetupFunc) *Pass {
	p.setupUserData, p.setupFn = userData, fn
	return p
}

// SetExecuteCallback appends an execute callback invoked during recording.
func (p *Pass) SetExecuteCallback(userData interface{}, fn ExecuteFunc) *Pass {
	p.executeUserData = userData
	p.executeFns = append(p.executeFns, fn)
	return p
}

// RunSetup invokes the setup callback, if any, defaulting to true.
func (p *Pass) RunSetup() bool {
	if p.setupFn == nil {
		return true
	}
	return p.setupFn(p.setupUserData)
}

// RunExecute invokes every execute callback in registration order.
func (p *Pass) RunExecute(enc *encode.Encoder) {
	for _, fn := range p.executeFns {
		fn(p.executeUserData, enc)
	}
}

// UseImageResource records h's use once; duplicate calls OR-combine access
// flags, matching the property that repeated declarations union.
func (p *Pass) UseImageResource(h handle.Handle, access handle.AccessFlags) *Pass {
	p.use(h, access)
	return p
}

// UseBufferResource records h's use once; duplicate calls OR-combine access
// flags.
func (p *Pass) UseBufferResource(h handle.Handle, access handle.AccessFlags) *Pass {
	p.use(h, access)
	return p
}

func (p *Pass) use(h handle.Handle, access handle.AccessFlags) {
	key := keyOf(h)
	if existing, ok := p.uses[key]; ok {
		existing.Access = existing.Access.Union(access)
		return
	}
	p.uses[key] = &ResourceUse{Handle: h, Access: access}
	p.useOrder = append(p.useOrder, key)
	if h.IsRoot() && access.IsWrite() {
		p.IsRoot = true
	}
}

// SampleTexture records a sampled-texture use, implicitly as a read.
func (p *Pass) SampleTexture(tex handle.Handle, sampler vk.SamplerCreateInfo) *Pass {
	p.textures = append(p.textures, SampledTexture{Texture: tex, Sampler: sampler})
	p.use(tex, handle.ShaderReadOnly)
	return p
}

// AddColorAttachment adds a color attachment, implicitly calling
// UseImageResource with access derived from the load/store ops.
func (p *Pass) AddColorAttachment(img handle.Handle, info handle.ImageInfo, loadOp vk.AttachmentLoadOp, storeOp vk.AttachmentStoreOp, clear vk.ClearValue) *Pass {
	p.attachments = append(p.attachments, ImageAttachment{Image: img, Info: info, LoadOp: loadOp, StoreOp: storeOp, ClearValue: clear})
	p.use(img, attachmentAccess(loadOp, storeOp))
	return p
}

// AddDepthStencilAttachment adds a depth-stencil attachment.
func (p *Pass) AddDepthStencilAttachment(img handle.Handle, info handle.ImageInfo, loadOp vk.AttachmentLoadOp, storeOp vk.AttachmentStoreOp, clear vk.ClearValue) *Pass {
	p.attachments = append(p.attachments, ImageAttachment{Image: img, Info: info, LoadOp: loadOp, StoreOp: storeOp, ClearValue: clear, IsDepth: true})
	p.use(img, attachmentAccess(loadOp, storeOp))
	return p
}

func attachmentAccess(loadOp vk.AttachmentLoadOp, storeOp vk.AttachmentStoreOp) handle.AccessFlags {
	access := handle.AccessFlags(0)
	if loadOp == vk.AttachmentLoadOpLoad {
		access = access.Union(handle.AccessFlags(vk.AccessColorAttachmentReadBit))
	}
	if storeOp == vk.AttachmentStoreOpStore || loadOp == vk.AttachmentLoadOpClear {
		access = access.Union(handle.AccessFlags(vk.AccessColorAttachmentWriteBit))
	}
	return access
}

// SetIsRoot explicitly flags the pass as a root; writing to the swapchain
// image already does this implicitly.
func (p *Pass) SetIsRoot(isRoot bool) *Pass {
	p.IsRoot = isRoot
	return p
}

func (p *Pass) SetWidth(w uint32) *Pass  { p.Width = w; return p }
func (p *Pass) SetHeight(h uint32) *Pass { p.Height = h; return p }
func (p *Pass) SetSampleCount(n vk.SampleCountFlagBits) *Pass {
	p.SampleCount = n
	return p
}

// Uses returns the pass's recorded resource uses in declaration order.
func (p *Pass) Uses() []ResourceUse {
	out := make([]ResourceUse, 0, len(p.useOrder))
	for _, key := range p.useOrder {
		out = append(out, *p.uses[key])
	}
	return out
}

// Attachments returns the pass's image attachments in declaration order.
func (p *Pass) Attachments() []ImageAttachment { return p.attachments }

// Textures returns the pass's sampled textures in declaration order.
func (p *Pass) Textures() []SampledTexture { return p.textures }

// GetFramebufferSettings returns (width, height, sample-count) for graphics
// passes only; non-graphics passes return zero values.
func (p *Pass) GetFramebufferSettings() (math.Extent2D, vk.SampleCountFlagBits, bool) {
	if p.Queue != QueueGraphics {
		return math.Extent2D{}, 0, false
	}
	return math.Extent2D{Width: p.Width, Height: p.Height}, p.SampleCount, true
}

// PatchExtent fills in a zero width/height from the resolver once a
// swapchain-backed attachment's extent is known.
func (p *Pass) PatchExtent(extent math.Extent2D) {
	if p.Width == 0 {
		p.Width = extent.Width
	}
	if p.Height == 0 {
		p.Height = extent.Height
	}
}
