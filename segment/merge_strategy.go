package segment

import (
	"errors"

	"github.com/boxesandglue/ift/freq"
)

// MergeStrategy configures how the Segmenter merges candidate segments
// together (spec §4.4.2).
type MergeStrategy struct {
	useCosts              bool
	networkOverheadCost   uint32
	minGroupSize          uint32
	patchSizeMinBytes     uint32
	patchSizeMaxBytes     uint32
	brotliQuality         uint32
	optimizationCutoff    float64
	probabilityCalculator freq.Calculator
}

const maxUint32 = ^uint32(0)

// NoMerging returns a strategy that performs no merges at all.
func NoMerging() MergeStrategy {
	return Heuristic(0, maxUint32)
}

// Heuristic returns a strategy that merges each patch smaller than minBytes
// with its nearest other group in input order, as long as the merged patch
// stays within maxBytes. Whether closures interact is not considered when
// choosing a partner. An undersized patch with no partner, or whose merge
// would exceed maxBytes, is left unmerged; patches over maxBytes are not
// split.
func Heuristic(minBytes, maxBytes uint32) MergeStrategy {
	return MergeStrategy{
		patchSizeMinBytes:     minBytes,
		patchSizeMaxBytes:     maxBytes,
		brotliQuality:         8,
		optimizationCutoff:    0.001,
		probabilityCalculator: freq.NoopCalculator{},
	}
}

// ErrNoFrequencyData is returned by CostBased/BigramCostBased when the
// supplied frequency table has never observed any codepoints.
var ErrNoFrequencyData = errors.New("segment: cost-based merging requires unicode frequency data")

// CostBased returns a strategy that merges segments to minimize the
// expected-bytes cost functional (spec §4.4.2), assuming codepoint
// occurrence independence.
func CostBased(frequencies *freq.UnicodeFrequencies, networkOverheadCost, minGroupSize uint32) (MergeStrategy, error) {
	if !frequencies.HasData() {
		return MergeStrategy{}, ErrNoFrequencyData
	}
	return MergeStrategy{
		useCosts:              true,
		networkOverheadCost:   networkOverheadCost,
		minGroupSize:          minGroupSize,
		patchSizeMaxBytes:     maxUint32,
		brotliQuality:         8,
		optimizationCutoff:    0.001,
		probabilityCalculator: freq.NewUnigramCalculator(frequencies),
	}, nil
}

// BigramCostBased is like CostBased but bounds probabilities using both
// unigram and bigram frequency data via the Bonferroni inequalities,
// avoiding the independence assumption.
func BigramCostBased(frequencies *freq.UnicodeFrequencies, networkOverheadCost, minGroupSize uint32) (MergeStrategy, error) {
	if !frequencies.HasData() {
		return MergeStrategy{}, ErrNoFrequencyData
	}
	return MergeStrategy{
		useCosts:              true,
		networkOverheadCost:   networkOverheadCost,
		minGroupSize:          minGroupSize,
		patchSizeMaxBytes:     maxUint32,
		brotliQuality:         8,
		optimizationCutoff:    0.001,
		probabilityCalculator: freq.NewBigramCalculator(frequencies),
	}, nil
}

// CustomCostBased builds a cost-based strategy from a caller-supplied
// probability calculator, for tests or alternative probability models.
func CustomCostBased(calculator freq.Calculator, networkOverheadCost, minGroupSize uint32) MergeStrategy {
	return MergeStrategy{
		useCosts:              true,
		networkOverheadCost:   networkOverheadCost,
		minGroupSize:          minGroupSize,
		patchSizeMaxBytes:     maxUint32,
		brotliQuality:         8,
		optimizationCutoff:    0.001,
		probabilityCalculator: calculator,
	}
}

// IsNone reports whether the strategy performs no merging at all.
func (m MergeStrategy) IsNone() bool {
	return !m.useCosts && m.patchSizeMinBytes == 0
}

// UseCosts reports whether merges are evaluated via the cost functional.
func (m MergeStrategy) UseCosts() bool { return m.useCosts }

// NetworkOverheadCost is the fixed per-patch byte cost added by the network.
func (m MergeStrategy) NetworkOverheadCost() uint32 { return m.networkOverheadCost }

// MinimumGroupSize is the smallest pre-closure group size for cost-based
// merging (spec §4.4.4).
func (m MergeStrategy) MinimumGroupSize() uint32 { return m.minGroupSize }

// PatchSizeMinBytes is the minimum acceptable exclusive-patch size for the
// heuristic strategy.
func (m MergeStrategy) PatchSizeMinBytes() uint32 { return m.patchSizeMinBytes }

// PatchSizeMaxBytes is the maximum acceptable exclusive-patch size for the
// heuristic strategy.
func (m MergeStrategy) PatchSizeMaxBytes() uint32 { return m.patchSizeMaxBytes }

// ProbabilityCalculator returns the calculator used to bound segment
// activation probability.
func (m MergeStrategy) ProbabilityCalculator() freq.Calculator {
	if m.probabilityCalculator == nil {
		return freq.NoopCalculator{}
	}
	return m.probabilityCalculator
}

// OptimizationCutoffFraction returns the stored total-cost fraction
// (default 0.001). No merge pass in this package reads it.
func (m MergeStrategy) OptimizationCutoffFraction() float64 { return m.optimizationCutoff }

// SetOptimizationCutoffFraction overrides OptimizationCutoffFraction.
func (m *MergeStrategy) SetOptimizationCutoffFraction(v float64) { m.optimizationCutoff = v }

// BrotliQuality returns the compression quality (1-11) used to estimate
// patch sizes via C3.
func (m MergeStrategy) BrotliQuality() uint32 { return m.brotliQuality }

// SetBrotliQuality overrides BrotliQuality, clamped to [1,11].
func (m *MergeStrategy) SetBrotliQuality(v uint32) {
	if v < 1 {
		v = 1
	}
	if v > 11 {
		v = 11
	}
	m.brotliQuality = v
}
