package segment

import (
	"fmt"
	"sort"
	"testing"

	"github.com/boxesandglue/ift/internal/intset"
)

// fakeOracle models closure() as a lookup table keyed by the exact sorted
// codepoint set requested, mirroring the scenario fixtures in spec §8.
type fakeOracle struct {
	rules map[string][]uint32
}

func newFakeOracle() *fakeOracle {
	return &fakeOracle{rules: make(map[string][]uint32)}
}

func ruleKey(codepoints []uint32) string {
	sorted := append([]uint32(nil), codepoints...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return fmt.Sprint(sorted)
}

func (f *fakeOracle) set(codepoints []uint32, glyphs []uint32) {
	f.rules[ruleKey(codepoints)] = glyphs
}

func (f *fakeOracle) Closure(codepoints, gids, features []uint32) (*intset.Set, error) {
	key := ruleKey(codepoints)
	glyphs, ok := f.rules[key]
	if !ok {
		return nil, fmt.Errorf("fakeOracle: no rule for codepoints %v", codepoints)
	}
	return intset.New(glyphs...), nil
}

// fakeSizer estimates a glyph-keyed patch as a fixed number of bytes per
// glyph, independent of quality.
type fakeSizer struct {
	bytesPerGlyph int
}

func (f *fakeSizer) SizeOf(gids []uint32, quality uint32) (int, error) {
	return len(gids) * f.bytesPerGlyph, nil
}

func TestSegmentLigatureScenario(t *testing.T) {
	// Mirrors spec §8 scenario 1 (Roboto 'ffi' ligature): initial={'a'},
	// segments=[{'f'},{'i'}].
	const a, f, i = 97, 102, 105
	const gidA, gid74, gid77, gid444, gid446 = 10, 74, 77, 444, 446

	oracle := newFakeOracle()
	oracle.set([]uint32{a}, []uint32{0, gidA})
	oracle.set([]uint32{a, f}, []uint32{0, gidA, gid74})
	oracle.set([]uint32{a, i}, []uint32{0, gidA, gid77})
	oracle.set([]uint32{a, f, i}, []uint32{0, gidA, gid74, gid77, gid444, gid446})

	seg := NewSegmenter(oracle, &fakeSizer{bytesPerGlyph: 10}, NoMerging())

	init := CodepointsDefinition(a)
	segments := []*SubsetDefinition{
		CodepointsDefinition(f),
		CodepointsDefinition(i),
	}

	result, err := seg.Segment(init, segments)
	if err != nil {
		t.Fatalf("Segment() error = %v", err)
	}

	if !result.InitGlyphs.Equals(intset.New(0, gidA)) {
		t.Fatalf("InitGlyphs = %v, want {0, %d}", result.InitGlyphs.Values(), gidA)
	}

	var exclusiveF, exclusiveI, conjunctive *ActivationCondition
	for idx := range result.Conditions {
		c := &result.Conditions[idx]
		switch c.Kind {
		case Exclusive:
			if c.Segments[0] == 0 {
				exclusiveF = c
			} else {
				exclusiveI = c
			}
		case Conjunctive:
			conjunctive = c
		}
	}

	if exclusiveF == nil || exclusiveI == nil || conjunctive == nil {
		t.Fatalf("expected exclusive(s0), exclusive(s1), conjunctive(s0,s1); got %v", result.Conditions)
	}

	if glyphs := result.GlyphPatches[exclusiveF.PatchIndices[0]]; !glyphs.Equals(intset.New(gid74)) {
		t.Fatalf("exclusive(s0) glyphs = %v, want {%d}", glyphs.Values(), gid74)
	}
	if glyphs := result.GlyphPatches[exclusiveI.PatchIndices[0]]; !glyphs.Equals(intset.New(gid77)) {
		t.Fatalf("exclusive(s1) glyphs = %v, want {%d}", glyphs.Values(), gid77)
	}
	if glyphs := result.GlyphPatches[conjunctive.PatchIndices[0]]; !glyphs.Equals(intset.New(gid444, gid446)) {
		t.Fatalf("conjunctive glyphs = %v, want {%d, %d}", glyphs.Values(), gid444, gid446)
	}
	if got := sortedSegments(conjunctive.Segments); fmt.Sprint(got) != fmt.Sprint([]int{0, 1}) {
		t.Fatalf("conjunctive segments = %v, want [0 1]", got)
	}
}

func TestSegmentDisjunctiveScenario(t *testing.T) {
	// Mirrors spec §8 scenario 2: initial={'a'}, segments=[{0xC1},{0x106}],
	// both independently reach a shared gid117.
	const a, cp1, cp2 = 97, 0xC1, 0x106
	const gidA, gid117 = 10, 117

	oracle := newFakeOracle()
	oracle.set([]uint32{a}, []uint32{0, gidA})
	oracle.set([]uint32{a, cp1}, []uint32{0, gidA, gid117})
	oracle.set([]uint32{a, cp2}, []uint32{0, gidA, gid117})
	oracle.set([]uint32{a, cp1, cp2}, []uint32{0, gidA, gid117})

	seg := NewSegmenter(oracle, &fakeSizer{bytesPerGlyph: 10}, NoMerging())

	init := CodepointsDefinition(a)
	segments := []*SubsetDefinition{
		CodepointsDefinition(cp1),
		CodepointsDefinition(cp2),
	}

	result, err := seg.Segment(init, segments)
	if err != nil {
		t.Fatalf("Segment() error = %v", err)
	}

	var disjunctive *ActivationCondition
	for idx := range result.Conditions {
		if result.Conditions[idx].Kind == Disjunctive {
			disjunctive = &result.Conditions[idx]
		}
	}
	if disjunctive == nil {
		t.Fatalf("expected a disjunctive condition, got %v", result.Conditions)
	}
	if glyphs := result.GlyphPatches[disjunctive.PatchIndices[0]]; !glyphs.Equals(intset.New(gid117)) {
		t.Fatalf("disjunctive glyphs = %v, want {%d}", glyphs.Values(), gid117)
	}
}

func TestSegmentClosureInvariant(t *testing.T) {
	// Spec §8 invariant: for every subset S of segments, evaluating the
	// activation conditions against S must equal closure(initial ∪ ⋃ S).
	const a, f, i = 97, 102, 105
	const gidA, gid74, gid77, gid444, gid446 = 10, 74, 77, 444, 446

	oracle := newFakeOracle()
	oracle.set([]uint32{a}, []uint32{0, gidA})
	oracle.set([]uint32{a, f}, []uint32{0, gidA, gid74})
	oracle.set([]uint32{a, i}, []uint32{0, gidA, gid77})
	oracle.set([]uint32{a, f, i}, []uint32{0, gidA, gid74, gid77, gid444, gid446})

	seg := NewSegmenter(oracle, &fakeSizer{bytesPerGlyph: 10}, NoMerging())
	init := CodepointsDefinition(a)
	segments := []*SubsetDefinition{CodepointsDefinition(f), CodepointsDefinition(i)}

	result, err := seg.Segment(init, segments)
	if err != nil {
		t.Fatalf("Segment() error = %v", err)
	}

	cases := []struct {
		present map[int]bool
		want    *intset.Set
	}{
		{map[int]bool{}, intset.New(0, gidA)},
		{map[int]bool{0: true}, intset.New(0, gidA, gid74)},
		{map[int]bool{1: true}, intset.New(0, gidA, gid77)},
		{map[int]bool{0: true, 1: true}, intset.New(0, gidA, gid74, gid77, gid444, gid446)},
	}
	for _, tc := range cases {
		got := result.ActivatedGlyphs(tc.present)
		if !got.Equals(tc.want) {
			t.Fatalf("ActivatedGlyphs(%v) = %v, want %v", tc.present, got.Values(), tc.want.Values())
		}
	}
}

func sortedSegments(s []int) []int {
	out := append([]int(nil), s...)
	sort.Ints(out)
	return out
}
