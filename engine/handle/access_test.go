package handle

import (
	"testing"

	vk "github.com/goki/vulkan"
)

func TestAccessFlagsUnion(t *testing.T) {
	read := AccessFlags(vk.AccessShaderReadBit)
	write := AccessFlags(vk.AccessColorAttachmentWriteBit)

	combined := read.Union(write)

	if !combined.IsRead() {
		t.Error("union of a read bit and a write bit should still report IsRead")
	}
	if !combined.IsWrite() {
		t.Error("union of a read bit and a write bit should still report IsWrite")
	}
}

func TestAccessFlagsUnionCommutative(t *testing.T) {
	a := AccessFlags(vk.AccessShaderReadBit)
	b := AccessFlags(vk.AccessTransferWriteBit)

	if a.Union(b) != b.Union(a) {
		t.Error("Union should be commutative")
	}
}

func TestAccessFlagsReadWriteClassification(t *testing.T) {
	tests := []struct {
		name      string
		flags     AccessFlags
		wantRead  bool
		wantWrite bool
	}{
		{"pure read", AccessFlags(vk.AccessUniformReadBit), true, false},
		{"pure write", AccessFlags(vk.AccessShaderWriteBit), false, true},
		{"transfer read+write", AccessFlags(vk.AccessTransferReadBit) | AccessFlags(vk.AccessTransferWriteBit), true, true},
		{"zero", AccessFlags(0), false, false},
	}

	for _, tt := range tests {
		if got := tt.flags.IsRead(); got != tt.wantRead {
			t.Errorf("%s: IsRead() = %v, want %v", tt.name, got, tt.wantRead)
		}
		if got := tt.flags.IsWrite(); got != tt.wantWrite {
			t.Errorf("%s: IsWrite() = %v, want %v", tt.name, got, tt.wantWrite)
		}
	}
}

func TestShaderReadOnlyIsConservativeReadWrite(t *testing.T) {
	if !ShaderReadOnly.IsReadWriteImage() {
		t.Error("ShaderReadOnly access should be treated as the conservative read+write image case")
	}
	other := AccessFlags(vk.AccessTransferReadBit)
	if other.IsReadWriteImage() {
		t.Error("a non-shader-read access should not report IsReadWriteImage")
	}
}
