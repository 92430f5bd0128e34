package segment

import "fmt"

// ConditionKind tags the variant of an ActivationCondition (spec §3).
type ConditionKind int

const (
	// Exclusive fires when the input subset contains Segments[0].
	Exclusive ConditionKind = iota
	// Disjunctive fires when the input subset contains any of Segments.
	Disjunctive
	// Conjunctive fires when the input subset contains every one of Segments.
	Conjunctive
	// Composite recursively combines earlier conditions (by index) with AND/OR.
	Composite
)

func (k ConditionKind) String() string {
	switch k {
	case Exclusive:
		return "Exclusive"
	case Disjunctive:
		return "Disjunctive"
	case Conjunctive:
		return "Conjunctive"
	case Composite:
		return "Composite"
	default:
		return "Unknown"
	}
}

// CompositeMode selects how a Composite condition's children combine.
type CompositeMode int

const (
	// ModeOR fires when any child condition is satisfied.
	ModeOR CompositeMode = iota
	// ModeAND fires only when every child condition is satisfied.
	ModeAND
)

// ActivationCondition is the tagged sum type from spec §3. A condition
// names the segment(s) (or, for Composite, earlier condition indices) whose
// presence in the input subset activates PatchIndices. Ignored conditions
// exist only so a Composite parent can reference them; they never directly
// activate a patch of their own.
type ActivationCondition struct {
	Kind ConditionKind

	// Segments holds the segment indices this condition tests, used by
	// Exclusive (exactly one), Disjunctive, and Conjunctive.
	Segments []int

	// Children holds indices into the owning GlyphSegmentation.Conditions
	// slice, used by Composite. Spec invariant 4: a composite references
	// only conditions with a smaller index.
	Children []int
	Mode     CompositeMode

	// PatchIndices names the patch(es) this condition activates. A
	// condition with more than one entry carries preload hints (§4.6):
	// the first id is the patch to fetch, the rest are to prefetch.
	PatchIndices []uint32

	// Ignored conditions are emitted only for re-use by a Composite parent
	// and never independently activate a patch.
	Ignored bool
}

// NewExclusive builds an Exclusive condition for segment i activating patch.
func NewExclusive(segment int, patch uint32) ActivationCondition {
	return ActivationCondition{Kind: Exclusive, Segments: []int{segment}, PatchIndices: []uint32{patch}}
}

// NewDisjunctive builds a Disjunctive condition over segments activating patch.
func NewDisjunctive(segments []int, patch uint32) ActivationCondition {
	return ActivationCondition{Kind: Disjunctive, Segments: append([]int(nil), segments...), PatchIndices: []uint32{patch}}
}

// NewConjunctive builds a Conjunctive condition over segments activating patch.
func NewConjunctive(segments []int, patch uint32) ActivationCondition {
	return ActivationCondition{Kind: Conjunctive, Segments: append([]int(nil), segments...), PatchIndices: []uint32{patch}}
}

// NewComposite builds a Composite condition combining children with mode,
// activating patch.
func NewComposite(children []int, mode CompositeMode, patch uint32) ActivationCondition {
	return ActivationCondition{Kind: Composite, Children: append([]int(nil), children...), Mode: mode, PatchIndices: []uint32{patch}}
}

// Matches reports whether condition fires for the given set of present
// segment indices, consulting earlier entries in all (for Composite).
// all[:index] must already be evaluated; evaluated memoizes results so a
// shared subexpression is only computed once.
func (c ActivationCondition) Matches(present map[int]bool, all []ActivationCondition, evaluated map[int]bool, index int) bool {
	if v, ok := evaluated[index]; ok {
		return v
	}
	var result bool
	switch c.Kind {
	case Exclusive:
		result = present[c.Segments[0]]
	case Disjunctive:
		for _, s := range c.Segments {
			if present[s] {
				result = true
				break
			}
		}
	case Conjunctive:
		result = true
		for _, s := range c.Segments {
			if !present[s] {
				result = false
				break
			}
		}
	case Composite:
		switch c.Mode {
		case ModeOR:
			for _, child := range c.Children {
				if all[child].Matches(present, all, evaluated, child) {
					result = true
					break
				}
			}
		case ModeAND:
			result = true
			for _, child := range c.Children {
				if !all[child].Matches(present, all, evaluated, child) {
					result = false
					break
				}
			}
		}
	}
	evaluated[index] = result
	return result
}

func (c ActivationCondition) String() string {
	ignored := ""
	if c.Ignored {
		ignored = " (ignored)"
	}
	switch c.Kind {
	case Composite:
		op := "∨"
		if c.Mode == ModeAND {
			op = "∧"
		}
		return fmt.Sprintf("Composite(%v %s)->%v%s", c.Children, op, c.PatchIndices, ignored)
	default:
		return fmt.Sprintf("%s(%v)->%v%s", c.Kind, c.Segments, c.PatchIndices, ignored)
	}
}

// EvaluateConditions evaluates every non-ignored condition in conditions
// against present, returning the set of activated patch ids. This is the
// "single evaluator walking indices iteratively with a memoization vector"
// from spec §9.
func EvaluateConditions(conditions []ActivationCondition, present map[int]bool) []uint32 {
	evaluated := make(map[int]bool, len(conditions))
	activated := make(map[uint32]bool)
	for i, c := range conditions {
		if c.Ignored {
			continue
		}
		if c.Matches(present, conditions, evaluated, i) {
			for _, p := range c.PatchIndices {
				activated[p] = true
			}
		}
	}
	out := make([]uint32, 0, len(activated))
	for p := range activated {
		out = append(out, p)
	}
	return out
}
