package segment

import (
	"github.com/boxesandglue/ift/internal/intset"
)

// preClosureProbabilityThreshold is the activation-probability cutoff
// below which segments are bucketed into adjacency groups rather than
// individually cost-evaluated (spec §4.4.4). Not exposed for tuning: no
// caller in this codebase needed a different value, and the reference
// implementation treats it as an internal constant as well.
const preClosureProbabilityThreshold = 0.01

// mergeGroups applies the Segmenter's MergeStrategy to the initial
// (pre-merge) patch groups, returning the final groups to emit. Only
// Exclusive and Disjunctive groups are candidates for merging: Conjunctive
// groups already encode a specific multi-segment dependency discovered by
// closure probing and are left as-is (see DESIGN.md).
func (s *Segmenter) mergeGroups(st *state, groups []patchGroup) ([]patchGroup, error) {
	if s.strategy.IsNone() {
		return groups, nil
	}
	mergeable, fixed := partitionMergeable(groups)

	mergeable = s.preClosureGroup(st, mergeable)

	var err error
	if s.strategy.UseCosts() {
		mergeable, err = s.mergeByCost(st, mergeable)
	} else {
		mergeable, err = s.mergeByHeuristic(mergeable)
	}
	if err != nil {
		return nil, err
	}

	return append(fixed, mergeable...), nil
}

func partitionMergeable(groups []patchGroup) (mergeable, fixed []patchGroup) {
	for _, g := range groups {
		if g.kind == Conjunctive {
			fixed = append(fixed, g)
		} else {
			mergeable = append(mergeable, g)
		}
	}
	return mergeable, fixed
}

// preClosureGroup buckets low-activation-probability groups into adjacency
// groups of MinimumGroupSize before expensive merge evaluation (spec
// §4.4.4). Only applies when the strategy uses cost-based probabilities;
// the heuristic strategy has no probability model to threshold on.
func (s *Segmenter) preClosureGroup(st *state, groups []patchGroup) []patchGroup {
	if !s.strategy.UseCosts() {
		return groups
	}
	groupSize := int(s.strategy.MinimumGroupSize())
	if groupSize < 2 {
		return groups
	}
	calc := s.strategy.ProbabilityCalculator()

	out := make([]patchGroup, 0, len(groups))
	var bucket []patchGroup
	flush := func() {
		if len(bucket) == 0 {
			return
		}
		if len(bucket) == 1 {
			out = append(out, bucket[0])
			bucket = nil
			return
		}
		merged := bucket[0]
		for _, g := range bucket[1:] {
			merged = mergeTwoGroups(merged, g)
		}
		out = append(out, merged)
		bucket = nil
	}

	for _, g := range groups {
		p := calc.ComputeProbability(groupCodepoints(st, g))
		if (p.Min+p.Max)/2 >= preClosureProbabilityThreshold {
			flush()
			out = append(out, g)
			continue
		}
		bucket = append(bucket, g)
		if len(bucket) >= groupSize {
			flush()
		}
	}
	flush()
	return out
}

func mergeTwoGroups(a, b patchGroup) patchGroup {
	segments := append(append([]int(nil), a.segments...), b.segments...)
	kind := Disjunctive
	if len(segments) == 1 {
		kind = Exclusive
	}
	return patchGroup{
		segments: sortedInts(segments),
		kind:     kind,
		glyphs:   a.glyphs.Union(b.glyphs),
	}
}

func groupCodepoints(st *state, g patchGroup) []uint32 {
	out := intset.New()
	for _, seg := range g.segments {
		out = out.Union(st.def[seg].Codepoints)
	}
	return out.Values()
}

func (s *Segmenter) mergeByHeuristic(groups []patchGroup) ([]patchGroup, error) {
	minBytes := s.strategy.PatchSizeMinBytes()
	maxBytes := s.strategy.PatchSizeMaxBytes()
	quality := s.strategy.BrotliQuality()

	sizeOf := func(g patchGroup) (int, error) {
		return s.sizer.SizeOf(g.glyphs.Values(), quality)
	}

	changed := true
	for changed {
		changed = false
		for i := 0; i < len(groups); i++ {
			size, err := sizeOf(groups[i])
			if err != nil {
				return nil, err
			}
			if uint32(size) >= minBytes {
				continue
			}
			partner := bestHeuristicPartner(groups, i)
			if partner < 0 {
				s.log("segment: leaving undersized patch unmerged, no partner available",
					"size_bytes", size, "min_bytes", minBytes)
				continue
			}
			merged := mergeTwoGroups(groups[i], groups[partner])
			mergedSize, err := sizeOf(merged)
			if err != nil {
				return nil, err
			}
			if uint32(mergedSize) > maxBytes {
				s.log("segment: leaving undersized patch unmerged, merge would exceed max size",
					"size_bytes", size, "merged_size_bytes", mergedSize, "max_bytes", maxBytes)
				continue
			}
			groups[i] = merged
			groups = append(groups[:partner], groups[partner+1:]...)
			changed = true
			break
		}
	}
	return groups, nil
}

// bestHeuristicPartner picks a merge partner for groups[i]: the nearest
// (by input order) other group. Closure interactions are not consulted.
func bestHeuristicPartner(groups []patchGroup, i int) int {
	best := -1
	bestDist := int(^uint(0) >> 1)
	for j := range groups {
		if j == i {
			continue
		}
		dist := j - i
		if dist < 0 {
			dist = -dist
		}
		if dist < bestDist {
			bestDist = dist
			best = j
		}
	}
	return best
}

func (s *Segmenter) mergeByCost(st *state, groups []patchGroup) ([]patchGroup, error) {
	overhead := float64(s.strategy.NetworkOverheadCost())
	quality := s.strategy.BrotliQuality()
	calc := s.strategy.ProbabilityCalculator()

	cost := func(g patchGroup) (float64, error) {
		size, err := s.sizer.SizeOf(g.glyphs.Values(), quality)
		if err != nil {
			return 0, err
		}
		p := calc.ComputeProbability(groupCodepoints(st, g))
		mid := (p.Min + p.Max) / 2
		return mid * (float64(size) + overhead), nil
	}

	for {
		bestDelta := 0.0
		bestI, bestJ := -1, -1
		var bestMerged patchGroup

		for i := 0; i < len(groups); i++ {
			ci, err := cost(groups[i])
			if err != nil {
				return nil, err
			}
			for j := i + 1; j < len(groups); j++ {
				cj, err := cost(groups[j])
				if err != nil {
					return nil, err
				}
				merged := mergeTwoGroups(groups[i], groups[j])
				cNew, err := cost(merged)
				if err != nil {
					return nil, err
				}
				delta := cNew - ci - cj
				if delta < bestDelta {
					bestDelta = delta
					bestI, bestJ = i, j
					bestMerged = merged
				}
			}
		}

		if bestI < 0 {
			break
		}
		next := make([]patchGroup, 0, len(groups)-1)
		for k, g := range groups {
			if k == bestI || k == bestJ {
				continue
			}
			next = append(next, g)
		}
		next = append(next, bestMerged)
		groups = next
	}
	return groups, nil
}
