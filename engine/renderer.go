// Package engine wires together the platform window, the Vulkan device,
// one or more swapchains, and the frame orchestrator behind the two calls a
// client makes: Setup once, then Update every frame.
package engine

import (
	"fmt"
	"runtime"
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"

	"github.com/nullrend/vkfg/engine/backend/vulkan"
	"github.com/nullrend/vkfg/engine/core"
	"github.com/nullrend/vkfg/engine/handle"
	"github.com/nullrend/vkfg/engine/platform"
	"github.com/nullrend/vkfg/engine/render"
	"github.com/nullrend/vkfg/engine/shader"
)

// SwapchainImageHandle is the root image handle every frame's swapchain
// color attachment binds to, for passes that write the presented image.
func SwapchainImageHandle() handle.Handle {
	return vulkan.SwapchainImage()
}

// SwapchainKind selects how a swapchain entry presents its images.
type SwapchainKind uint8

const (
	// SwapchainWindowed presents to an on-screen window surface.
	SwapchainWindowed SwapchainKind = iota
	// SwapchainDirect presents to a display surface with no windowing
	// system involved (e.g. direct-to-display or VR headset compositor).
	SwapchainDirect
	// SwapchainHeadlessImage has no presentation target; frames are read
	// back after submission, typically piped to an external process.
	SwapchainHeadlessImage
)

// SwapchainSettings describes one swapchain to create during Setup.
type SwapchainSettings struct {
	WidthHint      uint32
	HeightHint     uint32
	ImageCountHint uint32
	FormatHint     vk.Format
	Kind           SwapchainKind
	PresentMode    vk.PresentMode

	// SurfaceHandle is used directly when Kind is SwapchainDirect.
	SurfaceHandle vk.Surface
	// WindowHandle is used when Kind is SwapchainWindowed; nil creates one.
	WindowHandle *glfw.Window
	// PipeCommandLine names the external process frames are piped to when
	// Kind is SwapchainHeadlessImage.
	PipeCommandLine string
}

// Settings configures renderer Setup.
type Settings struct {
	ApplicationName           string
	Swapchains                []SwapchainSettings
	RequestedDeviceExtensions []string
	EnableValidation          bool
}

// Renderer owns the device, swapchain, and frame orchestrator created by
// Setup, and is the only object a client holds onto across frames.
type Renderer struct {
	platform *platform.Platform
	context  *vulkan.VulkanContext
	swapchn  *vulkan.VulkanSwapchain
	backend  *vulkan.Backend
}

// Setup builds the Vulkan device via the external collaborator (GLFW for
// window/surface, goki/vulkan for the API bindings) and creates one
// swapchain per settings entry. Only the first entry is materialized today;
// additional entries are accepted but log a warning and are skipped, since
// multi-swapchain fan-out needs an N-way Backend this orchestrator does not
// yet provide.
func Setup(settings Settings) (*Renderer, error) {
	core.Get()

	if len(settings.Swapchains) == 0 {
		return nil, fmt.Errorf("engine: setup requires at least one swapchain")
	}
	sc := settings.Swapchains[0]
	if len(settings.Swapchains) > 1 {
		core.LogWarn("engine: setup requested %d swapchains, only the first is materialized", len(settings.Swapchains))
	}

	p, err := platform.New()
	if err != nil {
		return nil, err
	}

	width, height := sc.WidthHint, sc.HeightHint
	if width == 0 {
		width = 1280
	}
	if height == 0 {
		height = 720
	}

	switch sc.Kind {
	case SwapchainDirect, SwapchainHeadlessImage:
		core.LogWarn("engine: swapchain kind %d not yet implemented, falling back to windowed", sc.Kind)
		fallthrough
	default:
		if err := p.Startup(settings.ApplicationName, 0, 0, width, height); err != nil {
			return nil, err
		}
	}

	context := &vulkan.VulkanContext{
		FramebufferWidth:  width,
		FramebufferHeight: height,
	}

	if err := createInstance(context, p, settings); err != nil {
		p.Shutdown()
		return nil, err
	}

	surfacePtr, err := p.Window.CreateWindowSurface(context.Instance, nil)
	if err != nil {
		return nil, fmt.Errorf("engine: failed to create window surface: %w", err)
	}
	context.Surface = vk.SurfaceFromPointer(surfacePtr)

	if err := vulkan.DeviceCreate(context); err != nil {
		return nil, fmt.Errorf("engine: failed to create device: %w", err)
	}

	swapchain, err := vulkan.SwapchainCreate(context, width, height)
	if err != nil {
		return nil, fmt.Errorf("engine: failed to create swapchain: %w", err)
	}
	context.Swapchain = swapchain

	// Shader modules are precompiled SPIR-V on disk; no runtime compiler
	// frontend is wired in, matching the source's own asset pipeline.
	var compiler shader.Compiler

	backend, err := vulkan.NewBackend(context, swapchain, compiler)
	if err != nil {
		return nil, fmt.Errorf("engine: failed to create backend: %w", err)
	}

	return &Renderer{platform: p, context: context, swapchn: swapchain, backend: backend}, nil
}

// Update consumes module for the current frame; the renderer internally
// advances its frame ring. Errors returned here are construction-time-style
// failures (resource sync, command-buffer begin/end); per-pass failures
// degrade to a skipped pass inside Update and never reach the caller.
func (r *Renderer) Update(module *render.Module) error {
	return r.backend.Update(module)
}

// PumpMessages services the platform's windowing event queue.
func (r *Renderer) PumpMessages() {
	r.platform.PumpMessages()
}

// ShouldClose reports whether the platform window has requested closure.
func (r *Renderer) ShouldClose() bool {
	return r.platform.ShouldClose()
}

// Shutdown tears the renderer down in reverse dependency order, waiting for
// the device to idle before destroying anything the GPU might still touch.
func (r *Renderer) Shutdown() {
	r.backend.Destroy()
	r.swapchn.SwapchainDestroy(r.context)
	vulkan.DeviceDestroy(r.context)
	vk.DestroySurface(r.context.Instance, r.context.Surface, r.context.Allocator)
	if r.context.DebugMessenger != nil {
		vk.DestroyDebugReportCallback(r.context.Instance, r.context.DebugMessenger, r.context.Allocator)
	}
	vk.DestroyInstance(r.context.Instance, r.context.Allocator)
	r.platform.Shutdown()
}

func createInstance(context *vulkan.VulkanContext, p *platform.Platform, settings Settings) error {
	procAddr := glfw.GetVulkanGetInstanceProcAddress()
	if procAddr == nil {
		return fmt.Errorf("engine: glfw.GetVulkanGetInstanceProcAddress returned nil")
	}
	vk.SetGetInstanceProcAddr(procAddr)
	if err := vk.Init(); err != nil {
		return fmt.Errorf("engine: vk.Init failed: %w", err)
	}

	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 0, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   vulkan.VulkanSafeString(settings.ApplicationName),
		PEngineName:        vulkan.VulkanSafeString("vkfg"),
	}
	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}

	extensions := append([]string{"VK_KHR_surface"}, p.GetRequiredExtensionNames()...)
	if runtime.GOOS == "darwin" {
		extensions = append(extensions, "VK_KHR_portability_enumeration", "VK_KHR_get_physical_device_properties2")
	}
	if settings.EnableValidation {
		extensions = append(extensions, vk.ExtDebugUtilsExtensionName, vk.ExtDebugReportExtensionName)
	}
	createInfo.EnabledExtensionCount = uint32(len(extensions))
	createInfo.PpEnabledExtensionNames = vulkan.VulkanSafeStrings(extensions)

	var layers []string
	if settings.EnableValidation {
		layers = []string{"VK_LAYER_KHRONOS_validation"}
	}
	createInfo.EnabledLayerCount = uint32(len(layers))
	createInfo.PpEnabledLayerNames = vulkan.VulkanSafeStrings(layers)

	if res := vk.CreateInstance(&createInfo, context.Allocator, &context.Instance); res != vk.Success {
		return fmt.Errorf("engine: vkCreateInstance failed: %s", vulkan.VulkanResultString(res, true))
	}
	if err := vk.InitInstance(context.Instance); err != nil {
		return err
	}

	if settings.EnableValidation {
		debugCreateInfo := vk.DebugReportCallbackCreateInfo{
			SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
			Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportInformationBit),
			PfnCallback: dbgCallback,
		}
		if res := vk.CreateDebugReportCallback(context.Instance, &debugCreateInfo, nil, &context.DebugMessenger); res != vk.Success {
			core.LogWarn("engine: failed to create debug report callback: %s", vulkan.VulkanResultString(res, true))
		}
	}

	return nil
}

func dbgCallback(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint64, messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		core.LogError("vulkan: [%s] %d: %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		core.LogWarn("vulkan: [%s] %d: %s", pLayerPrefix, messageCode, pMessage)
	default:
		if core.Get().PrintExtendedDebugMessages {
			core.LogInfo("vulkan: [%s] %d: %s", pLayerPrefix, messageCode, pMessage)
		}
	}
	return vk.Bool32(vk.False)
}
