package subset

import (
	"github.com/boxesandglue/ift/glyphstream"
	"github.com/boxesandglue/ift/ot"
)

// fontGlyphData implements glyphstream.GlyphData by reading glyf/gvar/CFF
// table data directly out of a parsed ot.Font, for the canonical glyph
// data stream used by both the patch-size cache (C3) and glyph-keyed
// patches (C6).
type fontGlyphData struct {
	glyf *ot.Glyf
	gvar *ot.Gvar
	cff  *ot.CFF
}

const (
	tagGlyf uint32 = 0x676C7966
	tagGvar uint32 = 0x67766172
	tagCFF  uint32 = 0x43464620
	tagCFF2 uint32 = 0x43464632
)

// GlyphData builds a glyphstream.GlyphData over the oracle's font. Tables
// the font does not have are simply absent from every lookup.
func (o *Oracle) GlyphData() (glyphstream.GlyphData, error) {
	fgd := &fontGlyphData{}

	if o.font.HasTable(ot.TagGlyf) {
		glyf, err := ot.ParseGlyfFromFont(o.font)
		if err != nil {
			return nil, err
		}
		fgd.glyf = glyf
	}
	if o.font.HasTable(ot.TagGvar) {
		data, err := o.font.TableData(ot.TagGvar)
		if err != nil {
			return nil, err
		}
		gvar, err := ot.ParseGvar(data)
		if err != nil {
			return nil, err
		}
		fgd.gvar = gvar
	}
	if o.font.HasTable(ot.TagCFF) {
		data, err := o.font.TableData(ot.TagCFF)
		if err != nil {
			return nil, err
		}
		cff, err := ot.ParseCFF(data)
		if err != nil {
			return nil, err
		}
		fgd.cff = cff
	}
	return fgd, nil
}

func (d *fontGlyphData) Data(table uint32, gid uint32) ([]byte, bool) {
	switch table {
	case tagGlyf:
		if d.glyf == nil {
			return nil, false
		}
		b := d.glyf.GetGlyphBytes(ot.GlyphID(gid))
		if len(b) == 0 {
			return nil, false
		}
		return b, true
	case tagGvar:
		if d.gvar == nil {
			return nil, false
		}
		return d.gvar.RawGlyphData(ot.GlyphID(gid))
	case tagCFF:
		if d.cff == nil || int(gid) >= len(d.cff.CharStrings) {
			return nil, false
		}
		cs := d.cff.CharStrings[gid]
		if len(cs) == 0 {
			return nil, false
		}
		return cs, true
	case tagCFF2:
		return nil, false
	default:
		return nil, false
	}
}
