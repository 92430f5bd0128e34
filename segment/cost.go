package segment

import "github.com/boxesandglue/ift/freq"

// Cost is the expected-bytes accounting for a segmentation (mirrors the
// reference compiler's SegmentationCost): TotalCost is the expected number
// of bytes fetched across all patches weighted by activation probability;
// NonSegmentedCost is what the same content would have cost as one
// monolithic patch; IdealCost assumes every segment got its own
// minimally-sized exclusive patch.
type Cost struct {
	TotalCost        float64
	NonSegmentedCost float64
	IdealCost        float64
}

// EstimateCost computes the expected-bytes cost of segmentation against
// calc and sizer, at the given brotli quality and network overhead. It is
// a read-only analysis pass: it does not mutate or re-run segmentation.
func EstimateCost(segmentation *GlyphSegmentation, calc freq.Calculator, sizer SizeEstimator, quality uint32, overheadBytes uint32) (Cost, error) {
	overhead := float64(overheadBytes)
	var total float64

	for _, cond := range segmentation.Conditions {
		if cond.Ignored {
			continue
		}
		size := 0
		for _, patchID := range cond.PatchIndices {
			glyphs, ok := segmentation.GlyphPatches[patchID]
			if !ok {
				continue
			}
			s, err := sizer.SizeOf(glyphs.Values(), quality)
			if err != nil {
				return Cost{}, err
			}
			size += s
		}

		codepoints := conditionCodepoints(cond, segmentation)
		p := calc.ComputeProbability(codepoints)
		mid := (p.Min + p.Max) / 2
		total += mid * (float64(size) + overhead)
	}

	allGlyphs := segmentation.InitGlyphs.Clone()
	for _, glyphs := range segmentation.GlyphPatches {
		allGlyphs = allGlyphs.Union(glyphs)
	}
	nonSegmentedSize, err := sizer.SizeOf(allGlyphs.Values(), quality)
	if err != nil {
		return Cost{}, err
	}

	var idealCost float64
	for _, patchID := range sortedPatchIDs(segmentation) {
		glyphs := segmentation.GlyphPatches[patchID]
		size, err := sizer.SizeOf(glyphs.Values(), quality)
		if err != nil {
			return Cost{}, err
		}
		idealCost += float64(size) + overhead
	}

	return Cost{
		TotalCost:        total,
		NonSegmentedCost: float64(nonSegmentedSize) + overhead,
		IdealCost:        idealCost,
	}, nil
}

func conditionCodepoints(cond ActivationCondition, segmentation *GlyphSegmentation) []uint32 {
	out := make([]uint32, 0)
	for _, s := range cond.Segments {
		if s < 0 || s >= len(segmentation.Segments) {
			continue
		}
		out = append(out, segmentation.Segments[s].Codepoints.Values()...)
	}
	return out
}

func sortedPatchIDs(segmentation *GlyphSegmentation) []uint32 {
	out := make([]uint32, 0, len(segmentation.GlyphPatches))
	for id := range segmentation.GlyphPatches {
		out = append(out, id)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1] > out[j]; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}
