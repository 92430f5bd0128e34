package encoding

import (
	"fmt"
	"sort"
	"strings"

	"github.com/boxesandglue/ift/segment"
	"github.com/boxesandglue/ift/subset"
)

// Jump is one edge of the dependency graph of spec §4.6.2: fetching it
// carries the client from the base subset to base∪Combined.
type Jump struct {
	Base     *segment.SubsetDefinition
	Combined []int // segment indices added by this jump
	// CrossesDesignSpace is true when Combined introduces a design-space
	// point or range not already covered by Base, per §4.6.4: such a jump
	// must be encoded TABLE_KEYED_FULL rather than TABLE_KEYED_PARTIAL.
	CrossesDesignSpace bool
}

// jumpGraph is the graph of spec §4.6.2, scoped down (see DESIGN.md) to
// the single-level case: every jump originates at the initial subset
// rather than at arbitrary previously-reached nodes. This covers the
// common jump_ahead configurations (single-segment jumps, and small
// multi-segment combined jumps) without the full combinatorial lattice
// a multi-level graph would need to explore.
type jumpGraph struct {
	init             *segment.SubsetDefinition
	segments         []*segment.SubsetDefinition
	jumps            []Jump
	initialFontBytes []byte
}

// buildJumpGraph enumerates, from init, every combination of size
// 1..JumpAhead of the segmentation's segments (spec §4.6.2). When
// UsePrefetchLists is set, it additionally emits one jump combining every
// segment, unless that combination was already enumerated. No chain of
// one-segment-at-a-time intermediate subsets is built.
func (c *Compiler) buildJumpGraph(init *segment.SubsetDefinition, segmentation *segment.GlyphSegmentation) (*jumpGraph, error) {
	g := &jumpGraph{init: init, segments: segmentation.Segments}

	fontBytes, err := c.oracle.Produce(init.Codepoints.Values(), init.Glyphs.Values(), init.SortedFeatureTags(), subset.ProducePreserveGlyphIDs)
	if err != nil {
		return nil, err
	}
	g.initialFontBytes = fontBytes

	n := len(segmentation.Segments)
	jumpAhead := c.opts.jumpAhead()

	seen := make(map[string]bool)
	for size := 1; size <= jumpAhead && size <= n; size++ {
		combinations(n, size, func(combo []int) {
			key := comboKey(combo)
			if seen[key] {
				return
			}
			seen[key] = true
			g.jumps = append(g.jumps, c.makeJump(init, segmentation, combo))
		})
	}

	if c.opts.UsePrefetchLists && n > 0 {
		all := make([]int, n)
		for i := range all {
			all[i] = i
		}
		key := comboKey(all)
		if !seen[key] {
			seen[key] = true
			g.jumps = append(g.jumps, c.makeJump(init, segmentation, all))
		}
	}

	return g, nil
}

func (c *Compiler) makeJump(init *segment.SubsetDefinition, segmentation *segment.GlyphSegmentation, combo []int) Jump {
	crosses := false
	for _, idx := range combo {
		seg := segmentation.Segments[idx]
		for tag, rng := range seg.DesignSpace {
			existing, ok := init.DesignSpace[tag]
			if !ok || existing != rng {
				crosses = true
			}
		}
	}
	return Jump{Base: init, Combined: append([]int(nil), combo...), CrossesDesignSpace: crosses}
}

// combined returns the full subset definition base∪segments[Combined].
func (j Jump) combined(segments []*segment.SubsetDefinition) *segment.SubsetDefinition {
	out := j.Base.Clone()
	for _, idx := range j.Combined {
		out.Union(segments[idx])
	}
	return out
}

func comboKey(combo []int) string {
	sorted := append([]int(nil), combo...)
	sort.Ints(sorted)
	parts := make([]string, len(sorted))
	for i, v := range sorted {
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, ",")
}

// combinations calls fn once for every size-k combination of {0..n-1}, in
// lexicographic order.
func combinations(n, k int, fn func(combo []int)) {
	if k > n || k == 0 {
		return
	}
	combo := make([]int, k)
	var rec func(start, depth int)
	rec = func(start, depth int) {
		if depth == k {
			fn(combo)
			return
		}
		for i := start; i < n; i++ {
			combo[depth] = i
			rec(i+1, depth+1)
		}
	}
	rec(0, 0)
}
