package vulkan

import (
	"testing"

	vk "github.com/goki/vulkan"
)

func TestVulkanResultIsSuccessClassifiesErrorsAsFailures(t *testing.T) {
	cases := []struct {
		name string
		res  vk.Result
		want bool
	}{
		{"Success", vk.Success, true},
		{"Suboptimal", vk.Suboptimal, true},
		{"ErrorDeviceLost", vk.ErrorDeviceLost, false},
		{"ErrorOutOfDate", vk.ErrorOutOfDate, false},
		{"ErrorOutOfHostMemory", vk.ErrorOutOfHostMemory, false},
	}
	for _, c := range cases {
		if got := VulkanResultIsSuccess(c.res); got != c.want {
			t.Errorf("VulkanResultIsSuccess(%s) = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestVulkanSafeStringAppendsNulOnce(t *testing.T) {
	if got := VulkanSafeString("hello"); got != "hello\x00" {
		t.Errorf("VulkanSafeString(%q) = %q, want %q", "hello", got, "hello\x00")
	}
	already := "hello\x00"
	if got := VulkanSafeString(already); got != already {
		t.Errorf("VulkanSafeString should not double-append a nul terminator, got %q", got)
	}
	if got := VulkanSafeString(""); got != "\x00" {
		t.Errorf("VulkanSafeString(\"\") = %q, want a lone nul", got)
	}
}

func TestVulkanSafeStringsTerminatesEveryEntry(t *testing.T) {
	in := []string{"VK_KHR_surface", "VK_KHR_swapchain"}
	out := VulkanSafeStrings(in)
	for i, s := range out {
		if len(s) == 0 || s[len(s)-1] != 0 {
			t.Errorf("entry %d = %q, want a nul-terminated string", i, s)
		}
	}
}

func TestConditionalOperatorPicksByCondition(t *testing.T) {
	if got := ConditionalOperator(true, "a", "b"); got != "a" {
		t.Errorf("ConditionalOperator(true, ...) = %q, want %q", got, "a")
	}
	if got := ConditionalOperator(false, "a", "b"); got != "b" {
		t.Errorf("ConditionalOperator(false, ...) = %q, want %q", got, "b")
	}
}

func TestFindFirstZeroInByteArray(t *testing.T) {
	if got := FindFirstZeroInByteArray([]byte{'a', 'b', 'c', 0, 'd'}); got != 3 {
		t.Errorf("FindFirstZeroInByteArray = %d, want 3", got)
	}
	if got := FindFirstZeroInByteArray([]byte{'a', 'b'}); got != 0 {
		t.Errorf("FindFirstZeroInByteArray with no zero byte = %d, want 0 (default)", got)
	}
}
