package ot

import "encoding/binary"

// TagMath is the table tag for the MATH table.
var TagMath = MakeTag('M', 'A', 'T', 'H')

// Math represents the parts of a parsed MATH table the dependency graph
// cares about: the MathVariants subtable, which lists alternate glyphs
// (stretchy size variants and multi-part assemblies) a base glyph can be
// rendered as. MathConstants and MathGlyphInfo carry no glyph references
// and are not parsed.
type Math struct {
	vertConstructions  map[GlyphID]mathGlyphConstruction
	horizConstructions map[GlyphID]mathGlyphConstruction
}

type mathGlyphConstruction struct {
	variants []GlyphID
	parts    []GlyphID
}

// ParseMath parses a MATH table, keeping only MathVariants. The header is
// majorVersion(2) + minorVersion(2) + mathConstantsOffset(2) +
// mathGlyphInfoOffset(2) + mathVariantsOffset(2), all Offset16 from the
// start of the table.
func ParseMath(data []byte) (*Math, error) {
	if len(data) < 10 {
		return nil, ErrInvalidTable
	}
	major := binary.BigEndian.Uint16(data[0:])
	minor := binary.BigEndian.Uint16(data[2:])
	if major != 1 || minor != 0 {
		return nil, ErrInvalidFormat
	}
	variantsOff := int(binary.BigEndian.Uint16(data[8:]))

	m := &Math{
		vertConstructions:  make(map[GlyphID]mathGlyphConstruction),
		horizConstructions: make(map[GlyphID]mathGlyphConstruction),
	}
	if variantsOff == 0 {
		return m, nil
	}
	if err := m.parseMathVariants(data, variantsOff); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Math) parseMathVariants(data []byte, off int) error {
	if off+10 > len(data) {
		return ErrInvalidOffset
	}
	vertCoverageOff := int(binary.BigEndian.Uint16(data[off+2:]))
	horizCoverageOff := int(binary.BigEndian.Uint16(data[off+4:]))
	vertCount := int(binary.BigEndian.Uint16(data[off+6:]))
	horizCount := int(binary.BigEndian.Uint16(data[off+8:]))

	pos := off + 10
	vertConstructionOffs := make([]int, vertCount)
	for i := 0; i < vertCount; i++ {
		if pos+2 > len(data) {
			return ErrInvalidOffset
		}
		vertConstructionOffs[i] = int(binary.BigEndian.Uint16(data[pos:]))
		pos += 2
	}
	horizConstructionOffs := make([]int, horizCount)
	for i := 0; i < horizCount; i++ {
		if pos+2 > len(data) {
			return ErrInvalidOffset
		}
		horizConstructionOffs[i] = int(binary.BigEndian.Uint16(data[pos:]))
		pos += 2
	}

	if vertCoverageOff != 0 {
		if err := m.fillConstructions(data, off, off+vertCoverageOff, vertConstructionOffs, m.vertConstructions); err != nil {
			return err
		}
	}
	if horizCoverageOff != 0 {
		if err := m.fillConstructions(data, off, off+horizCoverageOff, horizConstructionOffs, m.horizConstructions); err != nil {
			return err
		}
	}
	return nil
}

func (m *Math) fillConstructions(data []byte, base, coverageOff int, constructionOffs []int, out map[GlyphID]mathGlyphConstruction) error {
	cov, err := ParseCoverage(data, coverageOff)
	if err != nil {
		return err
	}
	glyphs := cov.Glyphs()
	for i, g := range glyphs {
		if i >= len(constructionOffs) || constructionOffs[i] == 0 {
			continue
		}
		gc, err := parseMathGlyphConstruction(data, base+constructionOffs[i])
		if err != nil {
			continue
		}
		out[g] = gc
	}
	return nil
}

func parseMathGlyphConstruction(data []byte, off int) (mathGlyphConstruction, error) {
	var gc mathGlyphConstruction
	if off+4 > len(data) {
		return gc, ErrInvalidOffset
	}
	assemblyOff := int(binary.BigEndian.Uint16(data[off:]))
	variantCount := int(binary.BigEndian.Uint16(data[off+2:]))

	pos := off + 4
	for i := 0; i < variantCount; i++ {
		if pos+4 > len(data) {
			return gc, ErrInvalidOffset
		}
		gid := GlyphID(binary.BigEndian.Uint16(data[pos:]))
		gc.variants = append(gc.variants, gid)
		pos += 4 // glyphID + advanceMeasurement
	}

	if assemblyOff != 0 {
		parts, err := parseGlyphAssembly(data, off+assemblyOff)
		if err == nil {
			gc.parts = parts
		}
	}
	return gc, nil
}

func parseGlyphAssembly(data []byte, off int) ([]GlyphID, error) {
	if off+4 > len(data) {
		return nil, ErrInvalidOffset
	}
	partCount := int(binary.BigEndian.Uint16(data[off+2:]))
	pos := off + 4
	parts := make([]GlyphID, 0, partCount)
	for i := 0; i < partCount; i++ {
		if pos+10 > len(data) {
			return nil, ErrInvalidOffset
		}
		parts = append(parts, GlyphID(binary.BigEndian.Uint16(data[pos:])))
		pos += 10 // glyphID + startConnectorLength + endConnectorLength + fullAdvance + partFlags
	}
	return parts, nil
}

// Variants returns the glyph ids a base glyph's vertical and horizontal
// MathVariants constructions reference: size variants plus assembly parts.
func (m *Math) Variants(base GlyphID) []GlyphID {
	if m == nil {
		return nil
	}
	var out []GlyphID
	if gc, ok := m.vertConstructions[base]; ok {
		out = append(out, gc.variants...)
		out = append(out, gc.parts...)
	}
	if gc, ok := m.horizConstructions[base]; ok {
		out = append(out, gc.variants...)
		out = append(out, gc.parts...)
	}
	return out
}

// HasData reports whether any MathVariants entries were parsed.
func (m *Math) HasData() bool {
	return m != nil && (len(m.vertConstructions) > 0 || len(m.horizConstructions) > 0)
}
