package segment

import "github.com/boxesandglue/ift/freq"

// Segment is a SubsetDefinition plus the probability bound that it is
// requested by a client (spec §3).
type Segment struct {
	Definition *SubsetDefinition
	Activation freq.ProbabilityBound
}

// NewSegment wraps def with an unknown (zero) activation probability.
func NewSegment(def *SubsetDefinition) *Segment {
	return &Segment{Definition: def, Activation: freq.Zero()}
}

// Classification describes how a segment's glyphs relate to other segments,
// per spec §4.4.1 step 3.
type Classification int

const (
	// ClassEmpty segments contribute no new glyphs beyond the initial font.
	ClassEmpty Classification = iota
	// ClassInert segments' glyphs depend on no other segment: merging them
	// with anything else changes no glyph attribution.
	ClassInert
	// ClassInteractive segments share glyphs with at least one other
	// segment and must be handled by disjunctive/conjunctive conditions.
	ClassInteractive
)

func (c Classification) String() string {
	switch c {
	case ClassEmpty:
		return "Empty"
	case ClassInert:
		return "Inert"
	case ClassInteractive:
		return "Interactive"
	default:
		return "Unknown"
	}
}
