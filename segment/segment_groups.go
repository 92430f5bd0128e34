package segment

import "fmt"

// SegmentGroup names a subset of input segments (by index into the
// `segments` slice passed to SegmentWithGroups) that should be merged
// using its own MergeStrategy, independent of the other groups.
type SegmentGroup struct {
	Indices  []int
	Strategy MergeStrategy
}

// SegmentWithGroups runs the segmentation pipeline separately for each
// SegmentGroup's slice of segments using that group's own MergeStrategy,
// then merges the resulting GlyphSegmentations into one. Every input
// segment index must appear in exactly one group. This supports
// configurations where, e.g., a handful of high-probability segments get
// cost-based merging while a long tail of rare segments is merged
// heuristically or not at all.
func (s *Segmenter) SegmentWithGroups(init *SubsetDefinition, segments []*SubsetDefinition, groups []SegmentGroup) (*GlyphSegmentation, error) {
	if err := validateGroups(len(segments), groups); err != nil {
		return nil, err
	}

	combined := NewGlyphSegmentation()
	first := true
	var nextPatch uint32 = 1

	for _, group := range groups {
		sub := make([]*SubsetDefinition, len(group.Indices))
		for i, idx := range group.Indices {
			sub[i] = segments[idx]
		}

		subSegmenter := &Segmenter{oracle: s.oracle, sizer: s.sizer, strategy: group.Strategy, unmapped: s.unmapped}
		partial, err := subSegmenter.Segment(init, sub)
		if err != nil {
			return nil, fmt.Errorf("segment: group %v: %w", group.Indices, err)
		}

		if first {
			combined.InitGlyphs = partial.InitGlyphs.Clone()
			combined.InitCodepoints = partial.InitCodepoints.Clone()
			first = false
		} else {
			combined.InitGlyphs = combined.InitGlyphs.Union(partial.InitGlyphs)
		}

		// Remap the group's local segment indices (0..len(sub)) back to
		// the caller's global indices, and patch ids into this combined
		// segmentation's id space.
		offset := nextPatch - 1
		for _, cond := range partial.Conditions {
			remapped := cond
			remapped.Segments = remapIndices(cond.Segments, group.Indices)
			remapped.PatchIndices = offsetPatchIDs(cond.PatchIndices, offset)
			combined.Conditions = append(combined.Conditions, remapped)
		}
		for patchID, glyphs := range partial.GlyphPatches {
			combined.GlyphPatches[patchID+offset] = glyphs
			if patchID+offset >= nextPatch {
				nextPatch = patchID + offset + 1
			}
		}
		combined.UnmappedGlyphs = combined.UnmappedGlyphs.Union(partial.UnmappedGlyphs)
	}

	combined.Segments = make([]*SubsetDefinition, len(segments))
	for i, d := range segments {
		combined.Segments[i] = d.Clone()
	}

	return combined, nil
}

func remapIndices(local []int, globalIndices []int) []int {
	out := make([]int, len(local))
	for i, l := range local {
		out[i] = globalIndices[l]
	}
	return out
}

func offsetPatchIDs(ids []uint32, offset uint32) []uint32 {
	out := make([]uint32, len(ids))
	for i, id := range ids {
		out[i] = id + offset
	}
	return out
}

func validateGroups(numSegments int, groups []SegmentGroup) error {
	seen := make([]bool, numSegments)
	for _, g := range groups {
		for _, idx := range g.Indices {
			if idx < 0 || idx >= numSegments {
				return fmt.Errorf("segment: group index %d out of range [0,%d)", idx, numSegments)
			}
			if seen[idx] {
				return fmt.Errorf("segment: segment index %d appears in more than one group", idx)
			}
			seen[idx] = true
		}
	}
	for i, ok := range seen {
		if !ok {
			return fmt.Errorf("segment: segment index %d not assigned to any group", i)
		}
	}
	return nil
}
