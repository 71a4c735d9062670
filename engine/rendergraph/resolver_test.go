package rendergraph

import (
	"testing"

	vk "github.com/goki/vulkan"

	"github.com/nullrend/vkfg/engine/handle"
	"github.com/nullrend/vkfg/engine/math"
	"github.com/nullrend/vkfg/engine/render"
)

func writePass(name string, out handle.Handle, isRoot bool) *render.Pass {
	p := render.NewPass(name, render.QueueGraphics)
	p.UseImageResource(out, handle.AccessFlags(vk.AccessColorAttachmentWriteBit))
	if isRoot {
		p.SetIsRoot(true)
	}
	return p
}

func readWritePass(name string, in, out handle.Handle) *render.Pass {
	p := render.NewPass(name, render.QueueGraphics)
	p.UseImageResource(in, handle.AccessFlags(vk.AccessShaderReadBit))
	p.UseImageResource(out, handle.AccessFlags(vk.AccessColorAttachmentWriteBit))
	return p
}

func passNames(passes []*render.Pass) []string {
	out := make([]string, len(passes))
	for i, p := range passes {
		out[i] = p.Name
	}
	return out
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

// TestPruneDropsUnreachableWrites covers contribution pruning: a pass that
// writes a resource no surviving root ever reads should be dropped.
func TestPruneDropsUnreachableWrites(t *testing.T) {
	dead := handle.Image("unused-target")
	swap := handle.Image("swapchain").MarkRoot()

	orphan := writePass("orphan", dead, false)
	root := writePass("present", swap, true)

	g := Build([]*render.Pass{orphan, root})
	g.Prune()

	names := passNames(g.Passes())
	if contains(names, "orphan") {
		t.Errorf("Prune() kept %v, want orphan dropped (its output is never read by a root)", names)
	}
	if !contains(names, "present") {
		t.Errorf("Prune() dropped the root pass: %v", names)
	}
}

func TestPruneKeepsPassesThatFeedARoot(t *testing.T) {
	gbuffer := handle.Image("gbuffer")
	swap := handle.Image("swapchain").MarkRoot()

	producer := writePass("gbuffer-pass", gbuffer, false)
	composite := readWritePass("composite", gbuffer, swap)
	composite.SetIsRoot(true)

	g := Build([]*render.Pass{producer, composite})
	g.Prune()

	names := passNames(g.Passes())
	if !contains(names, "gbuffer-pass") {
		t.Errorf("Prune() dropped gbuffer-pass, which feeds the root: %v", names)
	}
	if !contains(names, "composite") {
		t.Errorf("Prune() dropped the root pass: %v", names)
	}
}

func TestPruneDemotesRootThatFeedsALaterRoot(t *testing.T) {
	mid := handle.Image("mid")
	swap := handle.Image("swapchain").MarkRoot()

	// firstRoot writes `mid` but is itself marked root; composite reads mid
	// and writes the real swapchain root, so firstRoot should demote.
	firstRoot := writePass("first-root", mid, true)
	composite := readWritePass("composite", mid, swap)
	composite.SetIsRoot(true)

	g := Build([]*render.Pass{firstRoot, composite})
	g.Prune()

	names := passNames(g.Passes())
	if !contains(names, "first-root") || !contains(names, "composite") {
		t.Fatalf("both passes should survive pruning: %v", names)
	}
	if g.nodes[0].root {
		t.Error("first-root should be demoted after pruning, since composite reads its output")
	}
}

// TestIsolateSeparatesDisjointSubgraphs covers subgraph isolation: two roots
// touching entirely disjoint resources get distinct affinity masks.
func TestIsolateSeparatesDisjointSubgraphs(t *testing.T) {
	swapA := handle.Image("swapchain-a").MarkRoot()
	swapB := handle.Image("swapchain-b").MarkRoot()

	passA := writePass("present-a", swapA, true)
	passB := writePass("present-b", swapB, true)

	g := Build([]*render.Pass{passA, passB})
	g.Prune()
	masks := g.Isolate()

	if len(masks) != 2 {
		t.Fatalf("got %d subgraphs, want 2 disjoint subgraphs", len(masks))
	}
	if passA.AffinityMask == passB.AffinityMask {
		t.Errorf("disjoint roots should not share an affinity mask, both got %d", passA.AffinityMask)
	}
}

func TestIsolateMergesSharedResourceSubgraphs(t *testing.T) {
	shared := handle.Image("shared-target")
	swapA := handle.Image("swapchain-a").MarkRoot()
	swapB := handle.Image("swapchain-b").MarkRoot()

	producer := writePass("producer", shared, false)
	passA := readWritePass("present-a", shared, swapA)
	passA.SetIsRoot(true)
	passB := readWritePass("present-b", shared, swapB)
	passB.SetIsRoot(true)

	g := Build([]*render.Pass{producer, passA, passB})
	g.Prune()
	masks := g.Isolate()

	if len(masks) != 1 {
		t.Fatalf("got %d subgraphs, want 1 (both roots depend on the shared producer)", len(masks))
	}
	if passA.AffinityMask != passB.AffinityMask {
		t.Errorf("roots sharing a resource should merge into one affinity mask: %d vs %d", passA.AffinityMask, passB.AffinityMask)
	}
}

func TestPatchExtentsOnlyTouchesGraphicsPasses(t *testing.T) {
	swap := handle.Image("swapchain").MarkRoot()
	gp := writePass("graphics", swap, true)
	cp := render.NewPass("compute", render.QueueCompute)
	cp.UseBufferResource(handle.Buffer("scratch"), handle.AccessFlags(vk.AccessShaderWriteBit))

	g := Build([]*render.Pass{gp, cp})
	g.PatchExtents(math.Extent2D{Width: 1280, Height: 720})

	if gp.Width != 1280 || gp.Height != 720 {
		t.Errorf("graphics pass extent = %dx%d, want 1280x720", gp.Width, gp.Height)
	}
	if cp.Width != 0 || cp.Height != 0 {
		t.Errorf("compute pass extent should be untouched, got %dx%d", cp.Width, cp.Height)
	}
}
