package core

import (
	"os"
	"strconv"
	"sync"

	vk "github.com/goki/vulkan"
	"github.com/pelletier/go-toml/v2"
)

// Settings holds the process-wide knobs named in this engine's external
// interface: the two debug toggles plus descriptor pool sizing, which the
// source left as an arbitrary constant ("1000 descriptors of each type")
// that implementers are expected to parameterize by observed peak demand.
type Settings struct {
	PrintExtendedDebugMessages bool                             `toml:"print_extended_debug_messages"`
	GenerateDotFiles           int                              `toml:"generate_dot_files"`
	DescriptorPoolSizes        map[string]uint32                `toml:"descriptor_pool_sizes"`
}

var (
	settingsOnce sync.Once
	settings     *Settings
)

func defaultSettings() *Settings {
	return &Settings{
		DescriptorPoolSizes: map[string]uint32{
			"uniform_buffer":         1000,
			"storage_buffer":         1000,
			"combined_image_sampler": 1000,
			"storage_image":          1000,
		},
	}
}

// LoadSettings reads vkfg.toml from path (if present) and layers
// RENDERGRAPH_PRINT_EXTENDED_DEBUG_MESSAGES / RENDERGRAPH_GENERATE_DOT_FILES
// environment overrides on top, initializing the process-wide singleton
// exactly once.
func LoadSettings(path string) *Settings {
	settingsOnce.Do(func() {
		s := defaultSettings()
		if data, err := os.ReadFile(path); err == nil {
			if err := toml.Unmarshal(data, s); err != nil {
				LogWarn("settings: failed to parse %s, using defaults: %v", path, err)
				s = defaultSettings()
			}
		}
		if v, ok := os.LookupEnv("RENDERGRAPH_PRINT_EXTENDED_DEBUG_MESSAGES"); ok {
			if b, err := strconv.ParseBool(v); err == nil {
				s.PrintExtendedDebugMessages = b
			}
		}
		if v, ok := os.LookupEnv("RENDERGRAPH_GENERATE_DOT_FILES"); ok {
			if n, err := strconv.Atoi(v); err == nil {
				s.GenerateDotFiles = n
			}
		}
		settings = s
	})
	return settings
}

// Get returns the process-wide settings, loading defaults if LoadSettings
// was never called.
func Get() *Settings {
	if settings == nil {
		return LoadSettings("vkfg.toml")
	}
	return settings
}

// DescriptorPoolSize returns the configured pool size hint for a descriptor
// type, falling back to 1000 (the source's original arbitrary constant) if
// unconfigured.
func (s *Settings) DescriptorPoolSize(t vk.DescriptorType) uint32 {
	key := descriptorTypeKey(t)
	if n, ok := s.DescriptorPoolSizes[key]; ok {
		return n
	}
	return 1000
}

func descriptorTypeKey(t vk.DescriptorType) string {
	switch t {
	case vk.DescriptorTypeUniformBuffer:
		return "uniform_buffer"
	case vk.DescriptorTypeStorageBuffer:
		return "storage_buffer"
	case vk.DescriptorTypeCombinedImageSampler:
		return "combined_image_sampler"
	case vk.DescriptorTypeStorageImage:
		return "storage_image"
	default:
		return "other"
	}
}
