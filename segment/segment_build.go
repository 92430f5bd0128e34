package segment

import "github.com/boxesandglue/ift/internal/intset"

// Segment runs the full closure-based segmentation pipeline (spec §4.4):
// initialize, attribute glyphs to exclusive/disjunctive/conjunctive
// groups, apply the configured MergeStrategy, dispose of any unattributed
// glyphs per the unmapped-glyph handling mode, and emit a GlyphSegmentation.
func (s *Segmenter) Segment(init *SubsetDefinition, segments []*SubsetDefinition) (*GlyphSegmentation, error) {
	st, err := s.initialize(init, segments)
	if err != nil {
		return nil, err
	}

	groups, attributed, err := s.attribute(st)
	if err != nil {
		return nil, err
	}

	groups, err = s.mergeGroups(st, groups)
	if err != nil {
		return nil, err
	}

	full, err := s.fullClosure(st)
	if err != nil {
		return nil, err
	}
	leftover := full.Subtract(attributed)

	result := NewGlyphSegmentation()
	result.InitGlyphs = st.initGlyphs
	result.InitCodepoints = init.Codepoints.Clone()
	for _, d := range segments {
		result.Segments = append(result.Segments, d.Clone())
	}

	var nextPatch uint32 = 1
	for _, g := range groups {
		patchID := nextPatch
		nextPatch++
		result.GlyphPatches[patchID] = g.glyphs
		result.Conditions = append(result.Conditions, conditionForGroup(g, patchID))
	}

	if err := s.disposeUnmapped(st, leftover, groups, result, &nextPatch); err != nil {
		return nil, err
	}

	return result, nil
}

func conditionForGroup(g patchGroup, patchID uint32) ActivationCondition {
	switch g.kind {
	case Exclusive:
		return NewExclusive(g.segments[0], patchID)
	case Conjunctive:
		return NewConjunctive(g.segments, patchID)
	default:
		return NewDisjunctive(g.segments, patchID)
	}
}

// disposeUnmapped applies s.unmapped to the glyphs attribute() could not
// assign to any group (spec §4.4.1's three unmapped-glyph handling modes).
func (s *Segmenter) disposeUnmapped(st *state, leftover *intset.Set, groups []patchGroup, result *GlyphSegmentation, nextPatch *uint32) error {
	if leftover.Empty() {
		return nil
	}

	switch s.unmapped {
	case HandleMoveToInitFont:
		result.InitGlyphs = result.InitGlyphs.Union(leftover)
		return nil

	case HandleFindConditions:
		remaining := intset.New()
		for _, gid := range leftover.Values() {
			segs, err := s.findMinimalCondition(st, gid)
			if err != nil {
				return err
			}
			if segs == nil {
				remaining.Add(gid)
				continue
			}
			patchID := *nextPatch
			*nextPatch++
			result.GlyphPatches[patchID] = intset.New(gid)
			kind := Disjunctive
			if len(segs) == 1 {
				kind = Exclusive
			}
			result.Conditions = append(result.Conditions, conditionForGroup(patchGroup{segments: segs, kind: kind}, patchID))
		}
		leftover = remaining
		if leftover.Empty() {
			return nil
		}
		fallthrough

	default: // HandlePatch
		all := make([]int, len(st.def))
		for i := range st.def {
			all[i] = i
		}
		patchID := *nextPatch
		*nextPatch++
		result.GlyphPatches[patchID] = leftover
		result.Conditions = append(result.Conditions, NewDisjunctive(all, patchID))
		result.UnmappedGlyphs = leftover.Clone()
		s.log("segment: emitting degraded fallback patch for unattributed glyphs",
			"glyph_count", leftover.Len(), "patch_id", patchID)
		return nil
	}
}

// findMinimalCondition probes single segments, then pairs, to discover the
// smallest set of segments whose presence reaches gid (HandleFindConditions
// mode). Returns nil if no combination up to a pair reaches it.
func (s *Segmenter) findMinimalCondition(st *state, gid uint32) ([]int, error) {
	for i := range st.def {
		if st.singleton[i].Contains(gid) {
			return []int{i}, nil
		}
	}
	for i := 0; i < len(st.def); i++ {
		for j := i + 1; j < len(st.def); j++ {
			combined, err := s.closureOf(st.init.Merged(st.def[i].Merged(st.def[j])))
			if err != nil {
				return nil, err
			}
			if combined.Subtract(st.initGlyphs).Contains(gid) {
				return []int{i, j}, nil
			}
		}
	}
	return nil, nil
}
