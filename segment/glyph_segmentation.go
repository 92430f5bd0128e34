package segment

import "github.com/boxesandglue/ift/internal/intset"

// GlyphSegmentation is the final output of the segmenter (spec §3): the
// initial glyph/codepoint sets, the per-segment subset definitions, the
// glyph payload of each patch, the activation conditions that reproduce
// closure, and any glyphs the segmenter could not attribute.
type GlyphSegmentation struct {
	InitGlyphs     *intset.Set
	InitCodepoints *intset.Set
	Segments       []*SubsetDefinition
	GlyphPatches   map[uint32]*intset.Set
	Conditions     []ActivationCondition
	UnmappedGlyphs *intset.Set
}

// NewGlyphSegmentation returns an empty segmentation.
func NewGlyphSegmentation() *GlyphSegmentation {
	return &GlyphSegmentation{
		InitGlyphs:     intset.New(),
		InitCodepoints: intset.New(),
		GlyphPatches:   make(map[uint32]*intset.Set),
		UnmappedGlyphs: intset.New(),
	}
}

// ActivatedGlyphs returns the glyph ids activated when present is the set
// of segment indices contained in an input subset. Used to verify the
// closure invariant (spec §8): it must equal closure(initial ∪ ⋃ present).
func (g *GlyphSegmentation) ActivatedGlyphs(present map[int]bool) *intset.Set {
	out := g.InitGlyphs.Clone()
	for _, patchID := range EvaluateConditions(g.Conditions, present) {
		if glyphs, ok := g.GlyphPatches[patchID]; ok {
			out = out.Union(glyphs)
		}
	}
	return out
}
