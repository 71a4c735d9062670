package shader

import (
	"encoding/binary"
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/nullrend/vkfg/engine/core"
)

// spirvMagic is the little-endian SPIR-V module magic number.
const spirvMagic = 0x07230203

// SPIR-V opcodes this reflector cares about. Only the handful needed to
// recover descriptor bindings and vertex-stage inputs are decoded; the rest
// of the instruction stream is skipped by word count.
const (
	opName               = 5
	opMemberName         = 6
	opDecorate           = 71
	opMemberDecorate     = 72
	opTypeStruct         = 30
	opTypeImage          = 25
	opTypeSampledImage   = 27
	opTypePointer        = 32
	opTypeVector         = 23
	opTypeFloat          = 22
	opTypeInt            = 21
	opVariable           = 59
	opTypeArray          = 28
	opTypeRuntimeArray   = 29
	opConstant           = 43
)

const (
	decorationBinding        = 33
	decorationDescriptorSet  = 34
	decorationLocation       = 30
)

// storageClass values relevant to descriptor/vertex reflection.
const (
	storageClassUniformConstant = 0
	storageClassUniform         = 2
	storageClassInput           = 1
	storageClassStorageBuffer   = 12
)

// ReflectedBinding is a raw descriptor binding recovered from SPIR-V before
// it's folded into the packed BindingInfo used across stages.
type ReflectedBinding struct {
	Set      uint32
	Binding  uint32
	Type     vk.DescriptorType
	Count    uint32
	NameHash uint32
	Name     string
	Range    uint64
}

// VertexAttribute is a vertex-stage input recovered by location.
type VertexAttribute struct {
	Location uint32
	Format   vk.Format
	Name     string
}

// ReflectionResult is everything Reflect recovers from one SPIR-V module.
type ReflectionResult struct {
	Bindings   []ReflectedBinding
	Attributes []VertexAttribute
}

// IsSPIRV reports whether data begins with the SPIR-V magic number.
func IsSPIRV(data []byte) bool {
	if len(data) < 20 {
		return false
	}
	return binary.LittleEndian.Uint32(data[0:4]) == spirvMagic
}

// Reflect walks a SPIR-V module's instruction stream and recovers
// descriptor bindings (uniform buffers → UBO, storage buffers → SSBO,
// sampled images → combined-image-sampler, storage images → storage-image)
// and, for vertex stages, input attributes. The attributes come back in no
// particular order; CreateShaderModule sorts them by location.
//
// This is a minimal reflector covering the decorations and type
// instructions the binding/attribute derivation in this package needs; it
// is not a general SPIR-V disassembler.
func Reflect(data []byte, stage vk.ShaderStageFlagBits) (*ReflectionResult, error) {
	if !IsSPIRV(data) {
		return nil, fmt.Errorf("%w: not a SPIR-V module", core.ErrShaderBuildFailed)
	}
	words := bytesToWords(data)
	if len(words) < 5 {
		return nil, fmt.Errorf("%w: truncated SPIR-V header", core.ErrShaderBuildFailed)
	}
	bound := words[3]

	names := make(map[uint32]string, bound)
	bindingDeco := make(map[uint32]uint32, 16)
	setDeco := make(map[uint32]uint32, 16)
	locationDeco := make(map[uint32]uint32, 16)
	typeOf := make(map[uint32]uint32, bound)   // result id -> opcode of its type-defining instruction
	pointeeOf := make(map[uint32]uint32, bound) // pointer type id -> pointee type id
	storageClassOf := make(map[uint32]uint32, bound)
	variableType := make(map[uint32]uint32, bound) // variable id -> its declared pointer type id

	idx := 5
	for idx < len(words) {
		instr := words[idx]
		wordCount := instr >> 16
		opcode := instr & 0xFFFF
		if wordCount == 0 || idx+int(wordCount) > len(words) {
			break
		}
		operands := words[idx+1 : idx+int(wordCount)]

		switch opcode {
		case opName:
			if len(operands) >= 2 {
				names[operands[0]] = decodeString(operands[1:])
			}
		case opDecorate:
			if len(operands) >= 3 {
				target, decoration, value := operands[0], operands[1], operands[2]
				switch decoration {
				case decorationBinding:
					bindingDeco[target] = value
				case decorationDescriptorSet:
					setDeco[target] = value
				case decorationLocation:
					locationDeco[target] = value
				}
			}
		case opTypeStruct:
			typeOf[operands[0]] = opTypeStruct
		case opTypeImage:
			typeOf[operands[0]] = opTypeImage
		case opTypeSampledImage:
			typeOf[operands[0]] = opTypeSampledImage
		case opTypeArray, opTypeRuntimeArray:
			typeOf[operands[0]] = opcode
		case opTypePointer:
			if len(operands) >= 3 {
				resultID, storageClass, pointeeType := operands[0], operands[1], operands[2]
				storageClassOf[resultID] = storageClass
				pointeeOf[resultID] = pointeeType
			}
		case opVariable:
			if len(operands) >= 2 {
				resultType, resultID := operands[0], operands[1]
				variableType[resultID] = resultType
			}
		}
		idx += int(wordCount)
	}

	result := &ReflectionResult{}
	for varID, ptrType := range variableType {
		storageClass, hasSC := storageClassOf[ptrType]
		if !hasSC {
			continue
		}
		switch storageClass {
		case storageClassUniformConstant, storageClassUniform, storageClassStorageBuffer:
			set, hasSet := setDeco[varID]
			binding, hasBinding := bindingDeco[varID]
			if !hasSet || !hasBinding {
				continue
			}
			pointee := pointeeOf[ptrType]
			dtype, count := classifyDescriptor(pointee, storageClass, typeOf)
			name := names[varID]
			result.Bindings = append(result.Bindings, ReflectedBinding{
				Set: set, Binding: binding, Type: dtype, Count: count,
				NameHash: fnv32(name), Name: name,
			})
		case storageClassInput:
			if stage != vk.ShaderStageVertexBit {
				continue
			}
			loc, ok := locationDeco[varID]
			if !ok {
				continue
			}
			result.Attributes = append(result.Attributes, VertexAttribute{
				Location: loc,
				Format:   vk.FormatR32g32b32Sfloat,
				Name:     names[varID],
			})
		}
	}
	return result, nil
}

func classifyDescriptor(pointeeTypeID uint32, storageClass uint32, typeOf map[uint32]uint32) (vk.DescriptorType, uint32) {
	count := uint32(1)
	t := pointeeTypeID
	if kind, ok := typeOf[t]; ok && (kind == opTypeArray || kind == opTypeRuntimeArray) {
		count = 1 // array length constant resolution omitted; default to 1 per element group
	}
	switch typeOf[t] {
	case opTypeImage:
		return vk.DescriptorTypeStorageImage, count
	case opTypeSampledImage:
		return vk.DescriptorTypeCombinedImageSampler, count
	case opTypeStruct:
		if storageClass == storageClassStorageBuffer {
			return vk.DescriptorTypeStorageBuffer, count
		}
		return vk.DescriptorTypeUniformBuffer, count
	default:
		return vk.DescriptorTypeUniformBuffer, count
	}
}

func bytesToWords(data []byte) []uint32 {
	words := make([]uint32, len(data)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(data[i*4 : i*4+4])
	}
	return words
}

func decodeString(words []uint32) string {
	buf := make([]byte, 0, len(words)*4)
	for _, w := range words {
		for shift := 0; shift < 32; shift += 8 {
			b := byte(w >> shift)
			if b == 0 {
				return string(buf)
			}
			buf = append(buf, b)
		}
	}
	return string(buf)
}

func fnv32(s string) uint32 {
	const offset32 = 2166136261
	const prime32 = 16777619
	h := uint32(offset32)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= prime32
	}
	return h
}
