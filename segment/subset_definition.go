// Package segment implements the closure-based glyph segmenter (spec
// component C4): it partitions a font's extension content into segments,
// derives activation conditions that reproduce the closure requirement, and
// optimizes the partition by merging segments under a MergeStrategy.
package segment

import (
	"fmt"
	"sort"

	"github.com/boxesandglue/ift/internal/intset"
)

// AxisRange is a closed [Start,End] range on a variable-font axis. A range
// with Start == End is a design-space point.
type AxisRange struct {
	Start float64
	End   float64
}

// IsPoint reports whether the range names a single design-space value.
func (r AxisRange) IsPoint() bool {
	return r.Start == r.End
}

// IsRange reports whether the range spans more than a single point.
func (r AxisRange) IsRange() bool {
	return r.Start != r.End
}

func (r AxisRange) String() string {
	if r.IsPoint() {
		return fmt.Sprintf("%g", r.Start)
	}
	return fmt.Sprintf("[%g, %g]", r.Start, r.End)
}

// contains reports whether r fully contains other.
func (r AxisRange) contains(other AxisRange) bool {
	return r.Start <= other.Start && other.End <= r.End
}

// disjoint reports whether r and other share no point.
func (r AxisRange) disjoint(other AxisRange) bool {
	return r.End < other.Start || other.End < r.Start
}

// SubsetDefinition is the tuple (codepoints, glyphs, feature_tags,
// design_space) from spec §3. It composes via Union and Subtract.
type SubsetDefinition struct {
	Codepoints  *intset.Set
	Glyphs      *intset.Set
	FeatureTags map[uint32]bool
	DesignSpace map[uint32]AxisRange
}

// NewSubsetDefinition returns an empty definition.
func NewSubsetDefinition() *SubsetDefinition {
	return &SubsetDefinition{
		Codepoints:  intset.New(),
		Glyphs:      intset.New(),
		FeatureTags: make(map[uint32]bool),
		DesignSpace: make(map[uint32]AxisRange),
	}
}

// CodepointsDefinition builds a definition from a bare set of codepoints.
func CodepointsDefinition(codepoints ...uint32) *SubsetDefinition {
	d := NewSubsetDefinition()
	d.Codepoints.AddAll(codepoints...)
	return d
}

// Clone returns a deep copy of d.
func (d *SubsetDefinition) Clone() *SubsetDefinition {
	c := NewSubsetDefinition()
	c.Codepoints = d.Codepoints.Clone()
	c.Glyphs = d.Glyphs.Clone()
	for k, v := range d.FeatureTags {
		c.FeatureTags[k] = v
	}
	for k, v := range d.DesignSpace {
		c.DesignSpace[k] = v
	}
	return c
}

// Empty reports whether every component of d is empty.
func (d *SubsetDefinition) Empty() bool {
	return d.Codepoints.Empty() && d.Glyphs.Empty() &&
		len(d.FeatureTags) == 0 && len(d.DesignSpace) == 0
}

// IsVariable reports whether any design-space axis spans a range rather
// than a single point.
func (d *SubsetDefinition) IsVariable() bool {
	for _, r := range d.DesignSpace {
		if r.IsRange() {
			return true
		}
	}
	return false
}

// Equals reports whether d and other hold the same tuple.
func (d *SubsetDefinition) Equals(other *SubsetDefinition) bool {
	if !d.Codepoints.Equals(other.Codepoints) || !d.Glyphs.Equals(other.Glyphs) {
		return false
	}
	if len(d.FeatureTags) != len(other.FeatureTags) {
		return false
	}
	for k := range d.FeatureTags {
		if !other.FeatureTags[k] {
			return false
		}
	}
	if len(d.DesignSpace) != len(other.DesignSpace) {
		return false
	}
	for k, v := range d.DesignSpace {
		if ov, ok := other.DesignSpace[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// Union merges other into d in place.
func (d *SubsetDefinition) Union(other *SubsetDefinition) {
	d.Codepoints = d.Codepoints.Union(other.Codepoints)
	d.Glyphs = d.Glyphs.Union(other.Glyphs)
	for tag := range other.FeatureTags {
		d.FeatureTags[tag] = true
	}
	for tag, r := range other.DesignSpace {
		existing, ok := d.DesignSpace[tag]
		if !ok {
			d.DesignSpace[tag] = r
			continue
		}
		// Simplified per the reference compiler: only a point expanding to
		// a range is handled; when both sides hold different ranges, the
		// existing range is kept unchanged.
		if existing.IsPoint() && r.IsRange() {
			d.DesignSpace[tag] = r
		}
	}
}

// Merged returns a new definition equal to d ∪ other, leaving both inputs
// untouched.
func (d *SubsetDefinition) Merged(other *SubsetDefinition) *SubsetDefinition {
	c := d.Clone()
	c.Union(other)
	return c
}

// ErrForbiddenSubtraction is returned when a design-space subtraction would
// require splitting an axis range into two disjoint pieces (spec §3: proper
// interior subtraction is forbidden).
var ErrForbiddenSubtraction = fmt.Errorf("segment: design-space subtraction would split a range")

func subtractDesignSpace(a, b map[uint32]AxisRange) (map[uint32]AxisRange, error) {
	out := make(map[uint32]AxisRange, len(a))
	for tag, r := range a {
		other, ok := b[tag]
		if !ok {
			out[tag] = r
			continue
		}
		switch {
		case r.IsPoint() && other.IsPoint():
			if r == other {
				// point minus point = empty: drop the axis entirely.
				continue
			}
			out[tag] = r
		case r.disjoint(other):
			// range minus disjoint = unchanged.
			out[tag] = r
		case other.contains(r):
			// range minus strict superset = empty.
			continue
		case r.contains(other) && !other.contains(r):
			// Proper interior subtraction: removing other from the middle
			// of r would produce two disjoint ranges, which is forbidden.
			if other.Start > r.Start && other.End < r.End {
				return nil, fmt.Errorf("%w: axis %d", ErrForbiddenSubtraction, tag)
			}
			// Partial overlap at one edge: the remaining range is whichever
			// side of other is still inside r.
			if other.Start <= r.Start {
				out[tag] = AxisRange{Start: other.End, End: r.End}
			} else {
				out[tag] = AxisRange{Start: r.Start, End: other.Start}
			}
		default:
			// Partial overlap, neither contains the other outright.
			if other.Start <= r.Start {
				out[tag] = AxisRange{Start: other.End, End: r.End}
			} else {
				out[tag] = AxisRange{Start: r.Start, End: other.Start}
			}
		}
	}
	return out, nil
}

// Subtract removes other's content from d in place. It returns
// ErrForbiddenSubtraction if a design-space axis would need to be split
// into two disjoint ranges.
func (d *SubsetDefinition) Subtract(other *SubsetDefinition) error {
	ds, err := subtractDesignSpace(d.DesignSpace, other.DesignSpace)
	if err != nil {
		return err
	}
	d.Codepoints = d.Codepoints.Subtract(other.Codepoints)
	d.Glyphs = d.Glyphs.Subtract(other.Glyphs)
	for tag := range other.FeatureTags {
		delete(d.FeatureTags, tag)
	}
	d.DesignSpace = ds
	return nil
}

// Subtracted returns a new definition equal to d − other, leaving both
// inputs untouched.
func (d *SubsetDefinition) Subtracted(other *SubsetDefinition) (*SubsetDefinition, error) {
	c := d.Clone()
	if err := c.Subtract(other); err != nil {
		return nil, err
	}
	return c, nil
}

// SortedFeatureTags returns the feature tags in ascending order.
func (d *SubsetDefinition) SortedFeatureTags() []uint32 {
	out := make([]uint32, 0, len(d.FeatureTags))
	for tag := range d.FeatureTags {
		out = append(out, tag)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// SortedDesignSpaceTags returns the design-space axis tags in ascending
// order.
func (d *SubsetDefinition) SortedDesignSpaceTags() []uint32 {
	out := make([]uint32, 0, len(d.DesignSpace))
	for tag := range d.DesignSpace {
		out = append(out, tag)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (d *SubsetDefinition) String() string {
	s := "[{"
	for i, cp := range d.Codepoints.Values() {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("%d", cp)
	}
	s += "}"
	if len(d.DesignSpace) > 0 {
		s += ", {"
		for i, tag := range d.SortedDesignSpaceTags() {
			if i > 0 {
				s += ", "
			}
			s += fmt.Sprintf("%d: %s", tag, d.DesignSpace[tag])
		}
		s += "}"
	}
	s += "]"
	return s
}
