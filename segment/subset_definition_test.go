package segment

import "testing"

func TestSubsetDefinitionUnionSubtractLaw(t *testing.T) {
	// spec §8 law: (A ∪ B) − B ⊆ A.
	a := CodepointsDefinition(1, 2, 3)
	b := CodepointsDefinition(3, 4, 5)

	merged := a.Merged(b)
	result, err := merged.Subtracted(b)
	if err != nil {
		t.Fatalf("Subtracted() error = %v", err)
	}
	if !result.Codepoints.IsSubsetOf(a.Codepoints) {
		t.Fatalf("(A∪B)-B = %v is not a subset of A = %v", result.Codepoints.Values(), a.Codepoints.Values())
	}
}

func TestDesignSpaceSubtractPointMinusPoint(t *testing.T) {
	a := NewSubsetDefinition()
	a.DesignSpace[1] = AxisRange{100, 100}
	b := NewSubsetDefinition()
	b.DesignSpace[1] = AxisRange{100, 100}

	result, err := a.Subtracted(b)
	if err != nil {
		t.Fatalf("Subtracted() error = %v", err)
	}
	if _, ok := result.DesignSpace[1]; ok {
		t.Fatalf("expected axis 1 removed, got %v", result.DesignSpace)
	}
}

func TestDesignSpaceSubtractRangeMinusSuperset(t *testing.T) {
	a := NewSubsetDefinition()
	a.DesignSpace[1] = AxisRange{100, 200}
	b := NewSubsetDefinition()
	b.DesignSpace[1] = AxisRange{0, 400}

	result, err := a.Subtracted(b)
	if err != nil {
		t.Fatalf("Subtracted() error = %v", err)
	}
	if _, ok := result.DesignSpace[1]; ok {
		t.Fatalf("expected axis 1 emptied by superset subtraction, got %v", result.DesignSpace)
	}
}

func TestDesignSpaceSubtractDisjointUnchanged(t *testing.T) {
	a := NewSubsetDefinition()
	a.DesignSpace[1] = AxisRange{100, 200}
	b := NewSubsetDefinition()
	b.DesignSpace[1] = AxisRange{300, 400}

	result, err := a.Subtracted(b)
	if err != nil {
		t.Fatalf("Subtracted() error = %v", err)
	}
	if got := result.DesignSpace[1]; got != (AxisRange{100, 200}) {
		t.Fatalf("expected unchanged range, got %v", got)
	}
}

func TestDesignSpaceSubtractPartialOverlap(t *testing.T) {
	a := NewSubsetDefinition()
	a.DesignSpace[1] = AxisRange{100, 300}
	b := NewSubsetDefinition()
	b.DesignSpace[1] = AxisRange{250, 400}

	result, err := a.Subtracted(b)
	if err != nil {
		t.Fatalf("Subtracted() error = %v", err)
	}
	if got := result.DesignSpace[1]; got != (AxisRange{100, 250}) {
		t.Fatalf("expected remaining range [100,250], got %v", got)
	}
}

func TestDesignSpaceSubtractInteriorForbidden(t *testing.T) {
	a := NewSubsetDefinition()
	a.DesignSpace[1] = AxisRange{100, 400}
	b := NewSubsetDefinition()
	b.DesignSpace[1] = AxisRange{200, 300}

	if _, err := a.Subtracted(b); err == nil {
		t.Fatalf("expected ErrForbiddenSubtraction for interior subtraction")
	}
}

func TestSubsetDefinitionEmpty(t *testing.T) {
	d := NewSubsetDefinition()
	if !d.Empty() {
		t.Fatalf("expected new definition to be empty")
	}
	d.Codepoints.Add(1)
	if d.Empty() {
		t.Fatalf("expected definition with a codepoint to be non-empty")
	}
}
