package shader

import "unsafe"

// sliceToUint32Ptr reinterprets a byte slice containing a SPIR-V module as
// the *uint32 vkShaderModuleCreateInfo.pCode expects. Callers must ensure
// data is 4-byte aligned and a multiple of 4 bytes long, which SPIR-V bytes
// always are.
func sliceToUint32Ptr(data []byte) *uint32 {
	if len(data) == 0 {
		return nil
	}
	return (*uint32)(unsafe.Pointer(&data[0]))
}
