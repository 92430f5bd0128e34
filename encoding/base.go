package encoding

import (
	"github.com/boxesandglue/ift/segment"
)

// buildExpandedBase produces the fully-expanded base definition of spec
// §4.6.1: every codepoint, glyph, feature tag, and design-space point any
// segment might bring in, unioned with the initial font's own closure.
// Unlike subset instancing, this does not produce font bytes directly —
// its codepoint/glyph/feature union is what anchors glyph-keyed patch
// generation (§4.6.3), which re-instances per design-space point as
// needed.
func (c *Compiler) buildExpandedBase(segmentation *segment.GlyphSegmentation) (*segment.SubsetDefinition, error) {
	base := segment.NewSubsetDefinition()
	base.Codepoints = segmentation.InitCodepoints.Clone()
	base.Glyphs = segmentation.InitGlyphs.Clone()
	for _, s := range segmentation.Segments {
		base.Codepoints = base.Codepoints.Union(s.Codepoints)
		base.Glyphs = base.Glyphs.Union(s.Glyphs)
		for tag := range s.FeatureTags {
			base.FeatureTags[tag] = true
		}
		for tag, rng := range s.DesignSpace {
			if existing, ok := base.DesignSpace[tag]; ok {
				if rng.Start < existing.Start {
					existing.Start = rng.Start
				}
				if rng.End > existing.End {
					existing.End = rng.End
				}
				base.DesignSpace[tag] = existing
			} else {
				base.DesignSpace[tag] = rng
			}
		}
	}
	for _, glyphs := range segmentation.GlyphPatches {
		base.Glyphs = base.Glyphs.Union(glyphs)
	}
	return base, nil
}
