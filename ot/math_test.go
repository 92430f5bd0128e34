package ot

import "testing"

func TestMathVariantsParsing(t *testing.T) {
	data := []byte{
		0x00, 0x01, // majorVersion = 1
		0x00, 0x00, // minorVersion = 0
		0x00, 0x00, // mathConstantsOffset = 0 (absent)
		0x00, 0x00, // mathGlyphInfoOffset = 0 (absent)
		0x00, 0x0A, // mathVariantsOffset = 10

		// MathVariants subtable, offset 10
		0x00, 0x00, // minConnectorOverlap
		0x00, 0x0C, // vertGlyphCoverage offset (relative) = 12
		0x00, 0x00, // horizGlyphCoverage offset = 0 (absent)
		0x00, 0x01, // vertGlyphCount = 1
		0x00, 0x00, // horizGlyphCount = 0
		0x00, 0x12, // vertGlyphConstruction[0] offset (relative) = 18

		// Coverage (format 1), relative offset 12
		0x00, 0x01, // format 1
		0x00, 0x01, // glyphCount = 1
		0x00, 0x05, // glyph 5 is the base glyph

		// MathGlyphConstruction, relative offset 18
		0x00, 0x00, // glyphAssembly offset = 0 (absent)
		0x00, 0x01, // variantCount = 1
		0x00, 0x06, // variant glyph = 6
		0x00, 0x00, // advanceMeasurement
	}

	m, err := ParseMath(data)
	if err != nil {
		t.Fatalf("ParseMath() error = %v", err)
	}
	if !m.HasData() {
		t.Fatal("HasData() = false, want true")
	}

	variants := m.Variants(5)
	if len(variants) != 1 || variants[0] != 6 {
		t.Errorf("Variants(5) = %v, want [6]", variants)
	}

	if got := m.Variants(99); got != nil {
		t.Errorf("Variants(99) = %v, want nil for a glyph with no construction", got)
	}
}

func TestMathRejectsWrongVersion(t *testing.T) {
	data := []byte{
		0x00, 0x02, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	}
	if _, err := ParseMath(data); err != ErrInvalidFormat {
		t.Fatalf("ParseMath() error = %v, want ErrInvalidFormat", err)
	}
}
