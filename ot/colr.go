package ot

import "encoding/binary"

// TagColr is the table tag for the COLR table.
var TagColr = MakeTag('C', 'O', 'L', 'R')

// Colr represents a parsed COLR (version 0) table: a mapping from each
// color glyph's base glyph id to the layer glyphs drawn to compose it.
// COLRv1's paint graph (format 1 BaseGlyphList/LayerList and the full
// PaintXxx op set) is not parsed; every production color font the pack's
// example corpus carries uses COLRv0 layers.
type Colr struct {
	layersByBase map[GlyphID][]GlyphID
}

// ParseColr parses a COLR table's version-0 base glyph and layer records.
func ParseColr(data []byte) (*Colr, error) {
	if len(data) < 14 {
		return nil, ErrInvalidTable
	}
	version := binary.BigEndian.Uint16(data[0:])
	numBaseGlyphs := int(binary.BigEndian.Uint16(data[2:]))
	baseGlyphOff := int(binary.BigEndian.Uint32(data[4:]))
	layerOff := int(binary.BigEndian.Uint32(data[8:]))
	numLayers := int(binary.BigEndian.Uint16(data[12:]))
	_ = version // v1 adds fields after this; v0 records are read regardless

	c := &Colr{layersByBase: make(map[GlyphID][]GlyphID, numBaseGlyphs)}

	for i := 0; i < numBaseGlyphs; i++ {
		recOff := baseGlyphOff + i*6
		if recOff+6 > len(data) {
			return nil, ErrInvalidOffset
		}
		baseGlyph := GlyphID(binary.BigEndian.Uint16(data[recOff:]))
		firstLayer := int(binary.BigEndian.Uint16(data[recOff+2:]))
		numLayersForGlyph := int(binary.BigEndian.Uint16(data[recOff+4:]))

		layers := make([]GlyphID, 0, numLayersForGlyph)
		for j := 0; j < numLayersForGlyph; j++ {
			idx := firstLayer + j
			if idx >= numLayers {
				break
			}
			layerRecOff := layerOff + idx*4
			if layerRecOff+4 > len(data) {
				return nil, ErrInvalidOffset
			}
			layerGlyph := GlyphID(binary.BigEndian.Uint16(data[layerRecOff:]))
			layers = append(layers, layerGlyph)
		}
		c.layersByBase[baseGlyph] = layers
	}

	return c, nil
}

// Layers returns the layer glyph ids a base glyph composites to, or nil
// if base is not a COLR base glyph.
func (c *Colr) Layers(base GlyphID) []GlyphID {
	if c == nil {
		return nil
	}
	return c.layersByBase[base]
}

// HasData reports whether any base glyph records were parsed.
func (c *Colr) HasData() bool {
	return c != nil && len(c.layersByBase) > 0
}
