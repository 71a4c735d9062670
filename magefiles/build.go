//go:build mage

package main

import (
	"fmt"
	"os"

	"github.com/magefile/mage/mg"
)

type Build mg.Namespace

// shaderStages lists the (kind, name) pairs buildShaders compiles with glslc
// from assets/shaders/<name>.<kind>.glsl to assets/shaders/<name>.<kind>.spv.
var shaderStages = [][2]string{
	{"vert", "triangle"},
	{"frag", "triangle"},
}

func buildShaders() error {
	fmt.Println("Build shaders...")
	vkSDKPath := os.Getenv("VULKAN_SDK")
	for _, stage := range shaderStages {
		kind, name := stage[0], stage[1]
		src := fmt.Sprintf("assets/shaders/%s.%s.glsl", name, kind)
		dst := fmt.Sprintf("assets/shaders/%s.%s.spv", name, kind)
		if _, err := executeCmd(fmt.Sprintf("%s/bin/glslc", vkSDKPath), withArgs(fmt.Sprintf("-fshader-stage=%s", kind), src, "-o", dst), withStream()); err != nil {
			return err
		}
	}
	return nil
}

// Compiles the shaders listed in shaderStages to SPIR-V.
func (Build) Shaders() error {
	return buildShaders()
}
