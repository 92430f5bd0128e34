package subset

import (
	"github.com/boxesandglue/ift/depgraph"
	"github.com/boxesandglue/ift/internal/intset"
	"github.com/boxesandglue/ift/ot"
)

// Oracle wraps a source font as the subset "closure" oracle (spec §4.1):
// given codepoints/glyphs/features it returns the exact glyph set a shaper
// could reach, and it can finalize subset bytes in either of two flavors.
// The oracle is deterministic and pure over its font; callers are expected
// to memoize repeated closure calls themselves (the segmenter does this).
type Oracle struct {
	font  *ot.Font
	graph *depgraph.Graph // lazily built; consulted by Closure
}

// NewOracle wraps font as a subset oracle.
func NewOracle(font *ot.Font) *Oracle {
	return &Oracle{font: font}
}

// Face exposes the wrapped font.
func (o *Oracle) Face() *ot.Font {
	return o.font
}

func (o *Oracle) inputFor(codepoints, gids, features []uint32) *Input {
	input := NewInput()
	for _, cp := range codepoints {
		input.AddUnicode(rune(cp))
	}
	for _, g := range gids {
		input.AddGlyph(ot.GlyphID(g))
	}
	for _, f := range features {
		input.KeepFeature(ot.Tag(f))
	}
	return input
}

// Closure returns the set of glyph ids reachable given codepoints, explicit
// glyph ids, and feature tags; the tags are passed on to depgraph, which
// does not consult them. It delegates to depgraph.Graph's
// phased traversal (spec §4.2, C2), which additionally resolves format-3
// GSUB context substitution and cmap UVS that Plan's own closure pass
// does not compute, rather than reimplementing closure detection a
// second time. Closure implements segment.Oracle.
func (o *Oracle) Closure(codepoints, gids, features []uint32) (*intset.Set, error) {
	graph, err := o.dependencyGraph()
	if err != nil {
		return nil, err
	}
	traversal := graph.Closure(codepoints, nil, gids, features)
	return traversal.ReachedGlyphs(), nil
}

// dependencyGraph lazily parses and caches the font's dependency graph.
func (o *Oracle) dependencyGraph() (*depgraph.Graph, error) {
	if o.graph == nil {
		graph, err := depgraph.NewGraph(o.font)
		if err != nil {
			return nil, err
		}
		o.graph = graph
	}
	return o.graph, nil
}

// ProduceFlavor selects between the two `produce` flavors of spec §4.1.
type ProduceFlavor int

const (
	// ProducePreserveGlyphIDs keeps the original gid space (mixed mode):
	// glyph ids are not renumbered, so later glyph-keyed patches can be
	// spliced in without rewriting offsets.
	ProducePreserveGlyphIDs ProduceFlavor = iota
	// ProducePack may renumber glyphs to remove gaps (table-keyed mode).
	ProducePack
)

// Produce finalizes subset font bytes for the given codepoints/glyphs/
// features using the requested flavor.
func (o *Oracle) Produce(codepoints, gids, features []uint32, flavor ProduceFlavor) ([]byte, error) {
	input := o.inputFor(codepoints, gids, features)
	if flavor == ProducePreserveGlyphIDs {
		input.Flags |= FlagRetainGIDs
	}
	plan, err := CreatePlan(o.font, input)
	if err != nil {
		return nil, err
	}
	return plan.Execute()
}

// Instance produces a face pinned to the given design-space point
// (one value per axis tag). Fully pinning every axis turns a variable font
// into a static instance (spec §4.1's `instance(design_space)`).
func (o *Oracle) Instance(point map[uint32]float32) ([]byte, error) {
	input := NewInput()
	input.Flags |= FlagRetainGIDs
	for tag, value := range point {
		input.PinAxisLocation(ot.Tag(tag), value)
	}
	// Retain every glyph: instancing must not drop content.
	for gid := uint16(0); gid < uint16(o.font.NumGlyphs()); gid++ {
		input.AddGlyph(gid)
	}
	plan, err := CreatePlan(o.font, input)
	if err != nil {
		return nil, err
	}
	return plan.Execute()
}
