package segment

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/boxesandglue/ift/internal/intset"
)

// Segmenter is the closure-based glyph segmenter (spec component C4): it
// partitions a font's extension content into glyph-level segments and
// derives activation conditions that satisfy the closure requirement.
type Segmenter struct {
	oracle   *memoOracle
	sizer    SizeEstimator
	strategy MergeStrategy
	unmapped UnmappedGlyphHandling
	logger   *slog.Logger
}

// NewSegmenter builds a segmenter over oracle (C1) and sizer (C3), using
// strategy to guide merges.
func NewSegmenter(oracle Oracle, sizer SizeEstimator, strategy MergeStrategy) *Segmenter {
	return &Segmenter{
		oracle:   newMemoOracle(oracle),
		sizer:    sizer,
		strategy: strategy,
		unmapped: HandlePatch,
		logger:   slog.Default(),
	}
}

// SetUnmappedGlyphHandling overrides the default (HandlePatch) disposition
// of glyphs the attribution pass cannot assign.
func (s *Segmenter) SetUnmappedGlyphHandling(h UnmappedGlyphHandling) {
	s.unmapped = h
}

// SetLogger overrides the logger used to report degraded-but-valid results
// (spec §7): undersized patches left unmerged, unmapped fallback glyphs. A nil
// logger discards these notices.
func (s *Segmenter) SetLogger(l *slog.Logger) {
	s.logger = l
}

func (s *Segmenter) log(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}

// patchGroup is one candidate activation condition plus the glyphs it
// would activate, before final patch-id assignment.
type patchGroup struct {
	segments []int
	kind     ConditionKind
	glyphs   *intset.Set
}

func sortedInts(vals []int) []int {
	out := append([]int(nil), vals...)
	sort.Ints(out)
	return out
}

func groupKey(segments []int) string {
	parts := make([]string, len(segments))
	for i, s := range sortedInts(segments) {
		parts[i] = fmt.Sprintf("%d", s)
	}
	return strings.Join(parts, ",")
}

// state holds the working data of one segmentation run.
type state struct {
	def          []*SubsetDefinition // per-segment codepoint/feature/design-space content
	init         *SubsetDefinition
	initGlyphs   *intset.Set
	singleton    []*intset.Set // Gi = closure(init ∪ Ci) − I, per segment
	probability  []freqBound
	interactions map[[2]int]bool // segments found to interact, for conjunctive discovery and classification
}

type freqBound struct {
	min, max float64
}

func (s *Segmenter) closureOf(def *SubsetDefinition) (*intset.Set, error) {
	return s.oracle.Closure(def.Codepoints.Values(), def.Glyphs.Values(), def.SortedFeatureTags())
}

// initialize runs spec §4.4.1: computes I = closure(init), the per-segment
// singleton closures Gi, and detects pairwise interactions. It builds no
// patches or conditions; Segment calls it and builds those from its result.
func (s *Segmenter) initialize(init *SubsetDefinition, segments []*SubsetDefinition) (*state, error) {
	initGlyphs, err := s.closureOf(init)
	if err != nil {
		return nil, fmt.Errorf("segment: closure(init): %w", err)
	}

	st := &state{
		def:          segments,
		init:         init,
		initGlyphs:   initGlyphs,
		singleton:    make([]*intset.Set, len(segments)),
		probability:  make([]freqBound, len(segments)),
		interactions: make(map[[2]int]bool),
	}

	calc := s.strategy.ProbabilityCalculator()
	for i, seg := range segments {
		merged := init.Merged(seg)
		closure, err := s.closureOf(merged)
		if err != nil {
			return nil, fmt.Errorf("segment: closure(init ∪ segment %d): %w", i, err)
		}
		st.singleton[i] = closure.Subtract(initGlyphs)
		b := calc.ComputeProbability(seg.Codepoints.Values())
		st.probability[i] = freqBound{b.Min, b.Max}
	}

	for i := 0; i < len(segments); i++ {
		for j := i + 1; j < len(segments); j++ {
			interacts, err := s.segmentsInteract(st, i, j)
			if err != nil {
				return nil, err
			}
			if interacts {
				st.interactions[[2]int{i, j}] = true
			}
		}
	}

	return st, nil
}

// segmentsInteract reports whether the combined closure of segments i and
// j contains glyphs neither singleton closure has on its own (a
// conjunctive dependency), which is the signal used both for discovering
// conjunctive groups in attribute() and for classifying segments as
// Interactive rather than Inert (spec §4.4.1).
func (s *Segmenter) segmentsInteract(st *state, i, j int) (bool, error) {
	combinedDef := st.def[i].Merged(st.def[j])
	combined, err := s.closureOf(st.init.Merged(combinedDef))
	if err != nil {
		return false, err
	}
	combined = combined.Subtract(st.initGlyphs)
	union := st.singleton[i].Union(st.singleton[j])
	return !combined.Equals(union), nil
}

// classify returns each segment's Classification per spec §4.4.1 step 3.
func (s *Segmenter) classify(st *state) []Classification {
	out := make([]Classification, len(st.def))
	for i := range st.def {
		switch {
		case st.singleton[i].Empty():
			out[i] = ClassEmpty
		default:
			interactive := false
			for pair := range st.interactions {
				if pair[0] == i || pair[1] == i {
					interactive = true
					break
				}
			}
			if interactive {
				out[i] = ClassInteractive
			} else {
				out[i] = ClassInert
			}
		}
	}
	return out
}

// attribute builds the initial (pre-merge) patch groups: exclusive groups
// for uniquely-owned glyphs, disjunctive groups for glyphs owned by more
// than one segment's singleton closure, and conjunctive groups for glyphs
// that only appear once two interacting segments are combined. Conjunctive
// discovery is scoped to pairs of interacting segments (see DESIGN.md):
// higher-order (3+) conjunctive interactions are not exhaustively searched.
func (s *Segmenter) attribute(st *state) ([]patchGroup, *intset.Set, error) {
	owners := make(map[uint32][]int)
	for i, glyphs := range st.singleton {
		for _, g := range glyphs.Values() {
			owners[g] = append(owners[g], i)
		}
	}

	byKey := make(map[string]*patchGroup)
	order := []string{}
	addTo := func(segments []int, kind ConditionKind, gid uint32) {
		key := groupKey(segments) + "|" + kind.String()
		g, ok := byKey[key]
		if !ok {
			g = &patchGroup{segments: sortedInts(segments), kind: kind, glyphs: intset.New()}
			byKey[key] = g
			order = append(order, key)
		}
		g.glyphs.Add(gid)
	}

	attributed := intset.New()
	for gid, segs := range owners {
		kind := Exclusive
		if len(segs) > 1 {
			kind = Disjunctive
		}
		addTo(segs, kind, gid)
		attributed.Add(gid)
	}

	for pair := range st.interactions {
		i, j := pair[0], pair[1]
		combinedDef := st.def[i].Merged(st.def[j])
		combined, err := s.closureOf(st.init.Merged(combinedDef))
		if err != nil {
			return nil, nil, err
		}
		combined = combined.Subtract(st.initGlyphs)
		onlyCombined := combined.Subtract(st.singleton[i].Union(st.singleton[j]))
		for _, gid := range onlyCombined.Values() {
			addTo([]int{i, j}, Conjunctive, gid)
			attributed.Add(gid)
		}
	}

	groups := make([]patchGroup, 0, len(order))
	for _, key := range order {
		groups = append(groups, *byKey[key])
	}
	sort.Slice(groups, func(a, b int) bool {
		return groupKey(groups[a].segments) < groupKey(groups[b].segments)
	})
	return groups, attributed, nil
}

// fullClosure returns closure(init ∪ all segments) − I, the complete set
// of glyphs the segmentation as a whole must be able to reach.
func (s *Segmenter) fullClosure(st *state) (*intset.Set, error) {
	combined := st.init.Clone()
	for _, d := range st.def {
		combined.Union(d)
	}
	closure, err := s.closureOf(combined)
	if err != nil {
		return nil, err
	}
	return closure.Subtract(st.initGlyphs), nil
}
