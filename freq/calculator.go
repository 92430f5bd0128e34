package freq

// Calculator computes a probability bound for a set of codepoints being
// requested together, per spec §4.4.2's MergeStrategy variants. Taking a
// plain codepoint slice (rather than a segment type) keeps this package
// independent of the segmenter so both can be imported without a cycle.
type Calculator interface {
	ComputeProbability(codepoints []uint32) ProbabilityBound
}

// NoopCalculator is used by MergeStrategy Heuristic/None: it assigns no
// probability information, effectively disabling cost-based merge scoring.
type NoopCalculator struct{}

// ComputeProbability always returns [0,0].
func (NoopCalculator) ComputeProbability(codepoints []uint32) ProbabilityBound {
	return Zero()
}

// UnigramCalculator computes a probability bound assuming codepoints occur
// independently: P(any of codepoints) = 1 - Π(1 - P(cp)).
type UnigramCalculator struct {
	frequencies *UnicodeFrequencies
}

// NewUnigramCalculator wraps frequency data for independent-codepoint
// probability estimates.
func NewUnigramCalculator(frequencies *UnicodeFrequencies) *UnigramCalculator {
	return &UnigramCalculator{frequencies: frequencies}
}

// ComputeProbability returns a degenerate bound [p, p] since the
// independence assumption yields an exact value rather than a range.
func (c *UnigramCalculator) ComputeProbability(codepoints []uint32) ProbabilityBound {
	probNone := 1.0
	for _, cp := range codepoints {
		probNone *= 1.0 - c.frequencies.ProbabilityFor(cp)
	}
	p := clamp01(1.0 - probNone)
	return ProbabilityBound{Min: p, Max: p}
}

// BigramCalculator computes a probability bound from unigram and bigram
// (codepoint pair) frequencies via the Bonferroni inequalities, without
// assuming codepoint independence.
type BigramCalculator struct {
	frequencies *UnicodeFrequencies
}

// NewBigramCalculator wraps frequency data for Bonferroni-bounded estimates.
func NewBigramCalculator(frequencies *UnicodeFrequencies) *BigramCalculator {
	return &BigramCalculator{frequencies: frequencies}
}

func (c *BigramCalculator) unigramSum(codepoints []uint32) float64 {
	total := 0.0
	for _, cp := range codepoints {
		total += c.frequencies.ProbabilityFor(cp)
	}
	return total
}

func (c *BigramCalculator) bigramSum(codepoints []uint32) float64 {
	total := 0.0
	for i := 0; i < len(codepoints); i++ {
		for j := i + 1; j < len(codepoints); j++ {
			total += c.frequencies.ProbabilityForPair(codepoints[i], codepoints[j])
		}
	}
	return total
}

// ComputeProbability returns the Bonferroni bound [unigram-bigram, unigram].
func (c *BigramCalculator) ComputeProbability(codepoints []uint32) ProbabilityBound {
	if len(codepoints) == 0 {
		return ProbabilityBound{Min: 1, Max: 1}
	}
	return BonferroniBound(c.unigramSum(codepoints), c.bigramSum(codepoints))
}
