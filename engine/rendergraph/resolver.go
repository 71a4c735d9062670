// Package rendergraph clones a render.Module's passes into a per-frame
// graph, resolves reachability and subgraph isolation (C10), and computes
// per-resource synchronization chains (C11).
package rendergraph

import (
	"github.com/nullrend/vkfg/engine/core"
	"github.com/nullrend/vkfg/engine/handle"
	"github.com/nullrend/vkfg/engine/math"
	"github.com/nullrend/vkfg/engine/render"
)

// maxResources bounds the reads/writes bitset width. A single uint64 covers
// the documented minimum of 64 distinct resources per frame; a graph that
// needs more would require widening this to a dynamic bitset, which every
// algorithm below generalizes to trivially.
const maxResources = 64

// node is one surviving (or not-yet-pruned) pass plus its resolved
// reads/writes bitsets.
type node struct {
	pass   *render.Pass
	reads  uint64
	writes uint64
	root   bool
}

// Graph is one frame's resolved rendergraph: a pruned, ordered pass list
// plus one affinity mask per isolated subgraph.
type Graph struct {
	nodes        []*node
	resourceByID map[uint64]int
	resourceList []handle.Handle
}

// Build clones passes (already refcount-shared via render.Module.Clone),
// runs each pass's setup callback, and performs the uniqueness and root-
// marking steps. Passes whose setup callback returns false are dropped
// before resolution even begins.
func Build(passes []*render.Pass) *Graph {
	g := &Graph{resourceByID: make(map[uint64]int)}

	survivors := make([]*render.Pass, 0, len(passes))
	for _, p := range passes {
		if !p.RunSetup() {
			p.Release()
			continue
		}
		survivors = append(survivors, p)
	}

	for _, p := range survivors {
		n := &node{pass: p, root: p.IsRoot}
		for _, use := range p.Uses() {
			idx, ok := g.resourceByID[use.Handle.ID()]
			if !ok {
				if len(g.resourceList) >= maxResources {
					core.LogWarn("rendergraph: resource count exceeds %d, dropping use of %s from bitset tracking", maxResources, use.Handle.Name())
					continue
				}
				idx = len(g.resourceList)
				g.resourceByID[use.Handle.ID()] = idx
				g.resourceList = append(g.resourceList, use.Handle)
			}
			bit := uint64(1) << uint(idx)
			if use.Access.IsWrite() || (use.Handle.Kind() == handle.KindImage && use.Access.IsReadWriteImage()) {
				n.writes |= bit
			}
			if use.Access.IsRead() {
				n.reads |= bit
			}
		}
		g.nodes = append(g.nodes, n)
	}
	return g
}

// Prune runs the contribution-pruning pass: iterating bottom-to-top,
// maintaining an accumulator of reads ultimately consumed by some root. A
// pass contributes if it is a root or writes into the accumulator; a root
// that writes into the accumulator demotes itself, since a later root then
// depends on it instead. Non-contributing passes are dropped.
func (g *Graph) Prune() {
	readAccum := uint64(0)
	keep := make([]bool, len(g.nodes))

	for i := len(g.nodes) - 1; i >= 0; i-- {
		n := g.nodes[i]
		contributes := n.root || (n.writes&readAccum) != 0
		if n.root && (n.writes&readAccum) != 0 {
			n.root = false
		}
		if contributes {
			keep[i] = true
			readAccum = (readAccum &^ n.writes) | n.reads
		}
	}

	survivors := make([]*node, 0, len(g.nodes))
	for i, n := range g.nodes {
		if keep[i] {
			survivors = append(survivors, n)
		} else {
			n.pass.Release()
		}
	}
	g.nodes = survivors
}

// Isolate walks backward from each surviving root, tagging every node whose
// writes intersect the accumulated reads of the nodes already in that
// root's tree, then merges any two roots whose accumulated reads/writes
// intersect. It returns the final set of disjoint subgraph affinity masks
// and stamps each pass's AffinityMask.
func (g *Graph) Isolate() []uint64 {
	roots := make([]int, 0)
	for i, n := range g.nodes {
		if n.root {
			roots = append(roots, i)
		}
	}

	rootReads := make([]uint64, len(roots))
	rootWrites := make([]uint64, len(roots))
	rootMember := make([]uint64, len(roots)) // bitset over node indices

	for ri, rootIdx := range roots {
		accumReads := g.nodes[rootIdx].reads
		accumWrites := g.nodes[rootIdx].writes
		member := uint64(1) << uint(rootIdx)
		// walk backward, pulling in any node whose writes intersect the
		// reads accumulated so far.
		changed := true
		for changed {
			changed = false
			for i := rootIdx - 1; i >= 0; i-- {
				if member&(uint64(1)<<uint(i)) != 0 {
					continue
				}
				if g.nodes[i].writes&accumReads != 0 {
					member |= uint64(1) << uint(i)
					accumReads |= g.nodes[i].reads
					accumWrites |= g.nodes[i].writes
					changed = true
				}
			}
		}
		rootReads[ri] = accumReads
		rootWrites[ri] = accumWrites
		rootMember[ri] = member
	}

	// merge roots whose accumulated reads/writes intersect, either direction.
	parent := make([]int, len(roots))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		for parent[i] != i {
			i = parent[i]
		}
		return i
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[ra] = rb
		}
	}
	for a := 0; a < len(roots); a++ {
		for b := a + 1; b < len(roots); b++ {
			if rootReads[a]&rootWrites[b] != 0 || rootReads[b]&rootWrites[a] != 0 {
				union(a, b)
			}
		}
	}

	groupMask := make(map[int]uint64)
	for ri := range roots {
		root := find(ri)
		groupMask[root] |= rootMember[ri]
	}

	masks := make([]uint64, 0, len(groupMask))
	affinityBit := make(map[int]uint64)
	for root, mask := range groupMask {
		bit := uint64(1) << uint(len(masks))
		affinityBit[root] = bit
		masks = append(masks, mask)
	}

	for ri := range roots {
		root := find(ri)
		bit := affinityBit[root]
		for i := 0; i < len(g.nodes); i++ {
			if rootMember[ri]&(uint64(1)<<uint(i)) != 0 {
				g.nodes[i].pass.AffinityMask |= bit
			}
		}
	}

	return masks
}

// PatchExtents fills every surviving graphics pass's zero width/height from
// swapchainExtent.
func (g *Graph) PatchExtents(swapchainExtent math.Extent2D) {
	for _, n := range g.nodes {
		if _, _, isGraphics := n.pass.GetFramebufferSettings(); isGraphics {
			n.pass.PatchExtent(swapchainExtent)
		}
	}
}

// Passes returns the surviving passes in resolved order.
func (g *Graph) Passes() []*render.Pass {
	out := make([]*render.Pass, len(g.nodes))
	for i, n := range g.nodes {
		out[i] = n.pass
	}
	return out
}

// ResourceIndex returns the bitset index assigned to h, if it was tracked.
func (g *Graph) ResourceIndex(h handle.Handle) (int, bool) {
	idx, ok := g.resourceByID[h.ID()]
	return idx, ok
}

// Resources returns every handle tracked in this graph's bitset, in index order.
func (g *Graph) Resources() []handle.Handle { return g.resourceList }
