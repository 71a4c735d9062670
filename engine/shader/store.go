package shader

import (
	"fmt"
	"os"
	"sync"

	vk "github.com/goki/vulkan"

	"github.com/nullrend/vkfg/engine/core"
)

// Compiler invokes the external SPIR-V compiler frontend when a requested
// source file is not already compiled SPIR-V. path is the origin file and
// defines are the macro set; the compiler itself is an out-of-scope
// external collaborator the store only calls through this seam.
type Compiler interface {
	Compile(path string, defines []string) (spirv []byte, includes []string, err error)
}

// Module is a cached, reflected shader module: its API object, the sorted
// binding list reflection derived, vertex attributes (vertex stage only),
// and the pipeline-layout hash folded from those bindings.
type Module struct {
	Hash         uint64
	Path         string
	Stage        vk.ShaderStageFlagBits
	APIHandle    vk.ShaderModule
	Bindings     []BindingInfo
	Attributes   []VertexAttribute
	LayoutHash   uint64
	dependsOn    []string
}

// Store canonicalizes shader source + defines to a stable hash and caches
// materialized API shader-module objects, process-wide, keyed by that
// hash. It is safe for concurrent lookups; module introduction/reload
// takes the write half of the lock.
type Store struct {
	mu       sync.RWMutex
	device   vk.Device
	alloc    vk.AllocationCallbacks
	compiler Compiler

	byHash map[uint64]*Module
	byPath map[string][]uint64 // path -> hashes of modules built from it, for taint tracking
	tainted map[uint64]bool
}

// NewStore constructs a module store bound to a logical device.
func NewStore(device vk.Device, allocCallbacks vk.AllocationCallbacks, compiler Compiler) *Store {
	return &Store{
		device:   device,
		alloc:    allocCallbacks,
		compiler: compiler,
		byHash:   make(map[uint64]*Module),
		byPath:   make(map[string][]uint64),
		tainted:  make(map[uint64]bool),
	}
}

// CreateShaderModule loads or compiles path, reflects it, validates the
// resulting binding list, and caches-and-interns the result by module hash.
func (s *Store) CreateShaderModule(path string, stage vk.ShaderStageFlagBits, defines []string) (*Module, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", core.ErrShaderBuildFailed, path, err)
	}

	spirv := raw
	var includes []string
	if !IsSPIRV(raw) {
		if s.compiler == nil {
			return nil, fmt.Errorf("%w: %s is not SPIR-V and no compiler is configured", core.ErrShaderBuildFailed, path)
		}
		spirv, includes, err = s.compiler.Compile(path, defines)
		if err != nil {
			core.LogError("shader build failed for %s: %v", path, err)
			return nil, fmt.Errorf("%w: %v", core.ErrShaderBuildFailed, err)
		}
	}

	defineKey := ""
	for _, d := range defines {
		defineKey += d + ";"
	}
	hash := ModuleHash(path, spirv, defineKey)

	s.mu.RLock()
	if existing, ok := s.byHash[hash]; ok {
		s.mu.RUnlock()
		return existing, nil
	}
	s.mu.RUnlock()

	reflection, err := Reflect(spirv, stage)
	if err != nil {
		return nil, err
	}

	bindings, err := buildSortedBindings(reflection.Bindings, stage)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.byHash[hash]; ok {
		return existing, nil
	}

	apiModule, err := s.materialize(spirv)
	if err != nil {
		return nil, err
	}

	mod := &Module{
		Hash:       hash,
		Path:       path,
		Stage:      stage,
		APIHandle:  apiModule,
		Bindings:   bindings,
		Attributes: sortedAttributes(reflection.Attributes),
		LayoutHash: PipelineLayoutHash(bindings),
		dependsOn:  append([]string{path}, includes...),
	}
	s.byHash[hash] = mod
	for _, dep := range mod.dependsOn {
		s.byPath[dep] = append(s.byPath[dep], hash)
	}
	return mod, nil
}

func (s *Store) materialize(spirv []byte) (vk.ShaderModule, error) {
	createInfo := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(spirv)),
		PCode:    sliceToUint32Ptr(spirv),
	}
	var mod vk.ShaderModule
	if res := vk.CreateShaderModule(s.device, &createInfo, &s.alloc, &mod); res != vk.Success {
		return nil, fmt.Errorf("%w: vkCreateShaderModule failed", core.ErrShaderBuildFailed)
	}
	return mod, nil
}

// buildSortedBindings sorts reflected bindings by (set,binding), rejecting
// duplicate (set,binding) entries within one stage.
func buildSortedBindings(raw []ReflectedBinding, stage vk.ShaderStageFlagBits) ([]BindingInfo, error) {
	out := make([]BindingInfo, 0, len(raw))
	seen := make(map[[2]uint32]bool, len(raw))
	for _, r := range raw {
		key := [2]uint32{r.Set, r.Binding}
		if seen[key] {
			return nil, fmt.Errorf("%w: duplicate (set=%d,binding=%d)", core.ErrBindingConflict, r.Set, r.Binding)
		}
		seen[key] = true
		dynIdx := -1
		if r.Type == vk.DescriptorTypeUniformBuffer || r.Type == vk.DescriptorTypeStorageBuffer {
			dynIdx = len(out)
		}
		out = append(out, NewBindingInfo(r.Set, r.Binding, r.Type, r.Count, dynIdx, stage, r.Range, r.NameHash))
	}
	sortBindings(out)
	return out, nil
}

func sortBindings(b []BindingInfo) {
	for i := 1; i < len(b); i++ {
		for j := i; j > 0; j-- {
			si, bi := b[j].SetBinding()
			sj, bj := b[j-1].SetBinding()
			if sj < si || (sj == si && bj <= bi) {
				break
			}
			b[j], b[j-1] = b[j-1], b[j]
		}
	}
}

func sortedAttributes(attrs []VertexAttribute) []VertexAttribute {
	out := make([]VertexAttribute, len(attrs))
	copy(out, attrs)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1].Location > out[j].Location; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// NotifyFileChanged marks every module that depends on path as tainted. It
// is the entry point the optional fsnotify-backed Watcher calls; file
// watching itself is an external collaborator this store only reacts to.
func (s *Store) NotifyFileChanged(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, hash := range s.byPath[path] {
		s.tainted[hash] = true
	}
}

// ReloadTainted re-runs module creation for every tainted module at frame
// start. A failed reload rolls back to the previous module (a no-op here,
// since the old entry is left in byHash until a new one replaces it);
// a successful reload retires the old API object.
func (s *Store) ReloadTainted(defines map[uint64][]string) {
	s.mu.Lock()
	tainted := make([]uint64, 0, len(s.tainted))
	for h := range s.tainted {
		tainted = append(tainted, h)
	}
	s.tainted = make(map[uint64]bool)
	s.mu.Unlock()

	for _, hash := range tainted {
		s.mu.RLock()
		old, ok := s.byHash[hash]
		s.mu.RUnlock()
		if !ok {
			continue
		}
		newMod, err := s.CreateShaderModule(old.Path, old.Stage, defines[hash])
		if err != nil {
			core.LogWarn("shader reload failed for %s, keeping previous module: %v", old.Path, err)
			continue
		}
		if newMod.Hash == old.Hash {
			continue
		}
		s.mu.Lock()
		delete(s.byHash, old.Hash)
		vk.DestroyShaderModule(s.device, old.APIHandle, &s.alloc)
		s.mu.Unlock()
	}
}

// Lookup returns the cached module for hash, if any.
func (s *Store) Lookup(hash uint64) (*Module, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.byHash[hash]
	return m, ok
}
