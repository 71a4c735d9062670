package rendergraph

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/nullrend/vkfg/engine/core"
)

// DotSettings controls the optional debug dot-file emission described for
// the resolver: when FramesRemaining is positive, WriteDot writes
// graph_<frame>.dot, refreshes the graph.dot symlink to point at it, and
// decrements FramesRemaining itself.
type DotSettings struct {
	FramesRemaining int
	OutputDir       string
}

// WriteDot renders g as a Graphviz dot file tagged with a fresh run
// identifier, satisfying RENDERGRAPH_GENERATE_DOT_FILES. The uuid gives each
// run's sequence of dot files a stable, collision-free debug tag beyond the
// plain frame counter.
func WriteDot(g *Graph, frameIndex int, settings *DotSettings) error {
	if settings == nil || settings.FramesRemaining <= 0 {
		return nil
	}

	runTag := uuid.New().String()[:8]
	var b strings.Builder
	b.WriteString("digraph rendergraph {\n")
	fmt.Fprintf(&b, "  label=\"frame %d run %s\";\n", frameIndex, runTag)
	for i, n := range g.nodes {
		fmt.Fprintf(&b, "  pass_%d [label=\"%s\\naffinity=%#x\"];\n", i, n.pass.Name, n.pass.AffinityMask)
	}
	for i, n := range g.nodes {
		for j := 0; j < i; j++ {
			if g.nodes[j].writes&n.reads != 0 {
				fmt.Fprintf(&b, "  pass_%d -> pass_%d;\n", j, i)
			}
		}
	}
	b.WriteString("}\n")

	dir := settings.OutputDir
	if dir == "" {
		dir = "."
	}
	path := fmt.Sprintf("%s/graph_%d.dot", dir, frameIndex)
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		core.LogWarn("rendergraph: failed to write dot file %s: %v", path, err)
		return err
	}

	symlink := dir + "/graph.dot"
	_ = os.Remove(symlink)
	if err := os.Symlink(path, symlink); err != nil {
		core.LogWarn("rendergraph: failed to refresh graph.dot symlink: %v", err)
	}

	settings.FramesRemaining--
	return nil
}
