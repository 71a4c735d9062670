package shader

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	vk "github.com/goki/vulkan"

	"github.com/nullrend/vkfg/engine/core"
)

func TestIsSPIRVDetectsMagic(t *testing.T) {
	var spirv [24]byte
	binary.LittleEndian.PutUint32(spirv[0:4], 0x07230203)
	if !IsSPIRV(spirv[:]) {
		t.Error("IsSPIRV should report true for data starting with the SPIR-V magic number")
	}

	glsl := []byte("#version 450\nvoid main() {}\n")
	if IsSPIRV(glsl) {
		t.Error("IsSPIRV should report false for plain-text GLSL source")
	}
}

func TestIsSPIRVRejectsTruncatedHeader(t *testing.T) {
	if IsSPIRV([]byte{1, 2, 3}) {
		t.Error("IsSPIRV should report false for a buffer shorter than the SPIR-V header")
	}
}

// TestCreateShaderModuleRequiresCompilerForNonSPIRV covers the documented
// failure mode: a non-precompiled source with no compiler configured fails
// before ever touching the device.
func TestCreateShaderModuleRequiresCompilerForNonSPIRV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "unbuilt.vert.glsl")
	if err := os.WriteFile(path, []byte("#version 450\nvoid main() {}\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	store := NewStore(vk.Device(nil), vk.AllocationCallbacks{}, nil)
	_, err := store.CreateShaderModule(path, vk.ShaderStageFlagBits(vk.ShaderStageVertexBit), nil)
	if !errors.Is(err, core.ErrShaderBuildFailed) {
		t.Errorf("CreateShaderModule with no compiler on non-SPIR-V source = %v, want ErrShaderBuildFailed", err)
	}
}

func TestCreateShaderModuleMissingFileFails(t *testing.T) {
	store := NewStore(vk.Device(nil), vk.AllocationCallbacks{}, nil)
	_, err := store.CreateShaderModule("/nonexistent/path.spv", vk.ShaderStageFlagBits(vk.ShaderStageVertexBit), nil)
	if !errors.Is(err, core.ErrShaderBuildFailed) {
		t.Errorf("CreateShaderModule on a missing file = %v, want ErrShaderBuildFailed", err)
	}
}

func TestLookupMissForUnknownHash(t *testing.T) {
	store := NewStore(vk.Device(nil), vk.AllocationCallbacks{}, nil)
	if _, ok := store.Lookup(0xDEAD); ok {
		t.Error("Lookup should report ok=false for a hash never created")
	}
}
