package alloc

import (
	"testing"

	"github.com/nullrend/vkfg/engine/core"
)

func TestLinearAllocatorBumpsAndAligns(t *testing.T) {
	mem := make([]byte, 4096)
	a := NewLinearAllocator(mem, 0, 4096)

	_, off1, err := a.Allocate(10)
	if err != nil {
		t.Fatalf("first Allocate: %v", err)
	}
	if off1 != 0 {
		t.Errorf("first offset = %d, want 0", off1)
	}

	_, off2, err := a.Allocate(10)
	if err != nil {
		t.Fatalf("second Allocate: %v", err)
	}
	if off2 != DefaultAlignment {
		t.Errorf("second offset = %d, want %d (aligned up from 10)", off2, DefaultAlignment)
	}
}

func TestLinearAllocatorOverflowDropsWithoutSideEffect(t *testing.T) {
	mem := make([]byte, 300)
	a := NewLinearAllocator(mem, 0, 300)

	if _, _, err := a.Allocate(200); err != nil {
		t.Fatalf("first Allocate within capacity failed: %v", err)
	}
	before := a.Used()

	if _, _, err := a.Allocate(200); err != core.ErrSubAllocatorOverflow {
		t.Errorf("overflowing Allocate = %v, want ErrSubAllocatorOverflow", err)
	}
	if a.Used() != before {
		t.Errorf("Used() changed after a failed Allocate: %d -> %d", before, a.Used())
	}
}

func TestLinearAllocatorResetReturnsToBase(t *testing.T) {
	mem := make([]byte, 4096)
	a := NewLinearAllocator(mem, 0, 4096)

	a.Allocate(64)
	if a.Used() == 0 {
		t.Fatal("Used() should be nonzero after an allocation")
	}
	a.Reset()
	if a.Used() != 0 {
		t.Errorf("Used() after Reset = %d, want 0", a.Used())
	}

	_, off, err := a.Allocate(10)
	if err != nil {
		t.Fatalf("Allocate after Reset: %v", err)
	}
	if off != 0 {
		t.Errorf("offset after Reset = %d, want 0", off)
	}
}

func TestLinearAllocatorRespectsNonZeroBase(t *testing.T) {
	mem := make([]byte, 4096)
	a := NewLinearAllocator(mem, 1024, 512)

	_, off, err := a.Allocate(10)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if off != 1024 {
		t.Errorf("offset = %d, want 1024 (region base)", off)
	}
}
