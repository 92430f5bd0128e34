package segment

// UnmappedGlyphHandling selects how the segmenter disposes of glyphs that
// its attribution pass could not assign to an exclusive, disjunctive, or
// conjunctive condition (spec §4.4.1).
type UnmappedGlyphHandling int

const (
	// HandlePatch gathers unattributed glyphs into a single fallback
	// disjunctive patch keyed by every contributing segment.
	HandlePatch UnmappedGlyphHandling = iota
	// HandleFindConditions re-probes the closure oracle over small
	// segment combinations to discover a minimal activation condition per
	// unattributed glyph, falling back to HandlePatch behavior for any
	// glyph whose condition it cannot resolve this way.
	HandleFindConditions
	// HandleMoveToInitFont pushes unattributed glyphs into the initial
	// font instead of a patch, at the cost of base font size.
	HandleMoveToInitFont
)
