// This is a minimal triangle example driving the engine package directly:
// one graphics pass that clears the swapchain image, uploads three vertices
// and records a draw of them. The execute callback binds no pipeline.
package main

import (
	"math"
	"os"
	"os/signal"
	"syscall"

	vk "github.com/goki/vulkan"

	"github.com/nullrend/vkfg/engine"
	"github.com/nullrend/vkfg/engine/encode"
	"github.com/nullrend/vkfg/engine/handle"
	"github.com/nullrend/vkfg/engine/render"
)

type vertex struct {
	x, y, z    float32
	r, g, b, a float32
}

func buildModule() *render.Module {
	m := render.NewModule()

	swapchainImage := engine.SwapchainImageHandle()

	pass := render.NewPass("root", render.QueueGraphics).
		SetIsRoot(true).
		SetWidth(0). // patched to swapchain extent by the resolver
		SetHeight(0).
		AddColorAttachment(swapchainImage, handle.ImageInfo{}, vk.AttachmentLoadOpClear, vk.AttachmentStoreOpStore,
			vk.ClearValue{Color: vk.ClearColorValue{Float32: [4]float32{0, 0, 0, 0}}})

	pass.SetExecuteCallback(nil, func(_ interface{}, enc *encode.Encoder) {
		verts := []vertex{
			{-50, -50, 0, 1, 0, 0, 1},
			{50, -50, 0, 0, 1, 0, 1},
			{0, 50, 0, 0, 0, 1, 1},
		}
		enc.SetVertexData(vertexBytes(verts), 0)
		enc.Draw(uint32(len(verts)), 1, 0, 0)
	})

	m.AddPass(pass)
	return m
}

func vertexBytes(verts []vertex) []byte {
	out := make([]byte, 0, len(verts)*28)
	for _, v := range verts {
		out = append(out, floatsToBytes(v.x, v.y, v.z, v.r, v.g, v.b, v.a)...)
	}
	return out
}

func floatsToBytes(fs ...float32) []byte {
	out := make([]byte, 0, len(fs)*4)
	for _, f := range fs {
		bits := math.Float32bits(f)
		out = append(out, byte(bits), byte(bits>>8), byte(bits>>16), byte(bits>>24))
	}
	return out
}

func main() {
	renderer, err := engine.Setup(engine.Settings{
		ApplicationName: "vkfg-triangle",
		Swapchains: []engine.SwapchainSettings{
			{WidthHint: 1280, HeightHint: 720, Kind: engine.SwapchainWindowed},
		},
	})
	if err != nil {
		panic(err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
	done := make(chan struct{})
	go func() {
		<-sigCh
		close(done)
	}()

	module := buildModule()

	for {
		select {
		case <-done:
			renderer.Shutdown()
			return
		default:
		}
		renderer.PumpMessages()
		if renderer.ShouldClose() {
			renderer.Shutdown()
			return
		}
		if err := renderer.Update(module); err != nil {
			panic(err)
		}
	}
}
