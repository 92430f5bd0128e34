package depgraph

import (
	"os"
	"testing"

	"github.com/boxesandglue/ift/internal/testutil"
	"github.com/boxesandglue/ift/ot"
)

func loadTestFont(t *testing.T, name string) *ot.Font {
	t.Helper()
	path := testutil.FindTestFont(name)
	if path == "" {
		t.Skipf("%s not found", name)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading %s: %v", name, err)
	}
	font, err := ot.ParseFont(data, 0)
	if err != nil {
		t.Fatalf("parsing %s: %v", name, err)
	}
	return font
}

func TestGraphReachesCmapAndComposites(t *testing.T) {
	font := loadTestFont(t, "Roboto-Regular.ttf")
	g, err := NewGraph(font)
	if err != nil {
		t.Fatalf("NewGraph: %v", err)
	}

	codepoints := []uint32{'A', 'V', 'g'}
	tr := g.Closure(codepoints, nil, nil, nil)

	reached := tr.ReachedGlyphs()
	if !reached.Contains(0) {
		t.Error(".notdef (gid 0) should always be retained")
	}

	cmapData, err := font.TableData(ot.TagCmap)
	if err != nil {
		t.Fatalf("reading cmap: %v", err)
	}
	cmap, err := ot.ParseCmap(cmapData)
	if err != nil {
		t.Fatalf("parsing cmap: %v", err)
	}
	for _, cp := range codepoints {
		gid, ok := cmap.Lookup(ot.Codepoint(cp))
		if !ok {
			continue
		}
		if !reached.Contains(uint32(gid)) {
			t.Errorf("codepoint %q: expected glyph %d in closure", rune(cp), gid)
		}
	}

	if len(tr.Tables()) == 0 {
		t.Error("expected at least one contributing table tag")
	}
}

func TestGraphEmptyInputIsJustNotdef(t *testing.T) {
	font := loadTestFont(t, "Roboto-Regular.ttf")
	g, err := NewGraph(font)
	if err != nil {
		t.Fatalf("NewGraph: %v", err)
	}

	tr := g.Closure(nil, nil, nil, nil)
	reached := tr.ReachedGlyphs()
	if reached.Len() != 1 || !reached.Contains(0) {
		t.Errorf("expected closure of no input to be just {0}, got %v", reached.Values())
	}
	if tr.HasConditionalGlyphs() {
		t.Error("no conditional edges should have fired with no input")
	}
}

func TestGraphToleratesMissingTables(t *testing.T) {
	g := &Graph{}
	tr := g.Closure([]uint32{'A'}, nil, []uint32{7}, nil)

	reached := tr.ReachedGlyphs()
	if !reached.Contains(0) {
		t.Error("expected .notdef in closure")
	}
	if !reached.Contains(7) {
		t.Error("expected explicit glyph 7 in closure")
	}
	if reached.Len() != 2 {
		t.Errorf("with no cmap/glyf/gsub, closure should only contain notdef + explicit glyphs, got %v", reached.Values())
	}
	if len(tr.Edges()) != 0 {
		t.Errorf("expected no edges with all tables absent, got %v", tr.Edges())
	}
}

func TestGraphLigatureDoesNotFireUntilAllComponentsReached(t *testing.T) {
	font := loadTestFont(t, "Roboto-Regular.ttf")
	g, err := NewGraph(font)
	if err != nil {
		t.Fatalf("NewGraph: %v", err)
	}
	if g.gsub == nil {
		t.Skip("font has no GSUB table")
	}

	var firstGlyph ot.GlyphID
	var lig *ot.Ligature
	for i := 0; i < g.gsub.NumLookups() && lig == nil; i++ {
		lookup := g.gsub.GetLookup(i)
		if lookup == nil {
			continue
		}
		for _, subtable := range lookup.Subtables() {
			ls, ok := subtable.(*ot.LigatureSubst)
			if !ok {
				continue
			}
			firstGlyphs := ls.Coverage().Glyphs()
			for si, ligSet := range ls.LigatureSets() {
				if si >= len(firstGlyphs) {
					continue
				}
				for idx := range ligSet {
					if len(ligSet[idx].Components) > 0 {
						firstGlyph = firstGlyphs[si]
						lig = &ligSet[idx]
						break
					}
				}
				if lig != nil {
					break
				}
			}
			if lig != nil {
				break
			}
		}
	}
	if lig == nil {
		t.Skip("no multi-component ligature found in test font")
	}

	// Requesting only the ligature's first glyph, with no later components
	// reachable, must not produce the ligature glyph: spec §4.2's phase
	// ordering requires every component present before the rule fires.
	partial := g.Closure(nil, nil, []uint32{uint32(firstGlyph)}, nil)
	if partial.ReachedGlyphs().Contains(uint32(lig.LigGlyph)) {
		t.Errorf("ligature glyph %d reached with only first component %d present", lig.LigGlyph, firstGlyph)
	}

	// Requesting every component together, in one Closure call, must fire
	// the rule regardless of which phase first supplied each component.
	explicit := []uint32{uint32(firstGlyph)}
	for _, comp := range lig.Components {
		explicit = append(explicit, uint32(comp))
	}
	full := g.Closure(nil, nil, explicit, nil)
	if !full.ReachedGlyphs().Contains(uint32(lig.LigGlyph)) {
		t.Errorf("ligature glyph %d not reached with all components %v present", lig.LigGlyph, explicit)
	}
	if !full.HasConditionalGlyphs() {
		t.Error("expected the ligature substitution to register as a conditional edge")
	}
}

func TestGraphMathVariantsPhaseAddsAssemblyGlyphs(t *testing.T) {
	mathData := []byte{
		0x00, 0x01, 0x00, 0x00, // version 1.0
		0x00, 0x00, 0x00, 0x00, // mathConstants, mathGlyphInfo absent
		0x00, 0x0A, // mathVariantsOffset = 10

		0x00, 0x00, // minConnectorOverlap
		0x00, 0x0C, // vertGlyphCoverage offset = 12
		0x00, 0x00, // horizGlyphCoverage offset = 0
		0x00, 0x01, // vertGlyphCount = 1
		0x00, 0x00, // horizGlyphCount = 0
		0x00, 0x12, // vertGlyphConstruction[0] offset = 18

		0x00, 0x01, 0x00, 0x01, 0x00, 0x05, // coverage: format 1, glyph 5

		0x00, 0x00, 0x00, 0x01, 0x00, 0x06, 0x00, 0x00, // construction: 1 variant, glyph 6
	}
	math, err := ot.ParseMath(mathData)
	if err != nil {
		t.Fatalf("ot.ParseMath() error = %v", err)
	}

	g := &Graph{math: math}
	tr := g.Closure(nil, nil, []uint32{5}, nil)
	reached := tr.ReachedGlyphs()
	if !reached.Contains(6) {
		t.Errorf("expected MathVariants phase to add glyph 6, got %v", reached.Values())
	}
}

func TestGraphColrLayersPhaseAddsLayerGlyphs(t *testing.T) {
	colrData := []byte{
		0x00, 0x00, // version 0
		0x00, 0x01, // numBaseGlyphRecords = 1
		0x00, 0x00, 0x00, 0x0E, // baseGlyphRecordsOffset = 14
		0x00, 0x00, 0x00, 0x14, // layerRecordsOffset = 20
		0x00, 0x02, // numLayerRecords = 2
		0x00, 0x0A, 0x00, 0x00, 0x00, 0x02, // base glyph 10, 2 layers starting at 0
		0x00, 0x0B, 0x00, 0x00, // layer 0: glyph 11
		0x00, 0x0C, 0x00, 0x00, // layer 1: glyph 12
	}
	colr, err := ot.ParseColr(colrData)
	if err != nil {
		t.Fatalf("ot.ParseColr() error = %v", err)
	}

	g := &Graph{colr: colr}
	tr := g.Closure(nil, nil, []uint32{10}, nil)
	reached := tr.ReachedGlyphs()
	if !reached.Contains(11) || !reached.Contains(12) {
		t.Errorf("expected COLR phase to add layer glyphs 11 and 12, got %v", reached.Values())
	}
}

func TestGraphCFFSubroutinesPhaseRecordsUsage(t *testing.T) {
	// Glyph 1's CharString calls local subr 0 (bias 107, so operand -107
	// encodes as byte 32), then ends.
	localSubr0 := []byte{11} // return
	glyph1 := []byte{32, 10, 14} // push -107, callsubr, endchar

	cff := &ot.CFF{
		CharStrings: [][]byte{{14}, glyph1},
		LocalSubrs:  [][]byte{localSubr0},
	}

	g := &Graph{cff: cff}
	tr := g.Closure(nil, nil, []uint32{1}, nil)

	if !tr.UsedLocalSubrs()[0] {
		t.Errorf("expected local subr 0 to be recorded as used, got %v", tr.UsedLocalSubrs())
	}
}

func TestGraphExplicitGlyphDrivesCompositeExpansion(t *testing.T) {
	font := loadTestFont(t, "Roboto-Regular.ttf")
	g, err := NewGraph(font)
	if err != nil {
		t.Fatalf("NewGraph: %v", err)
	}
	if g.glyf == nil {
		t.Skip("font has no glyf table")
	}

	// Find a composite glyph by scanning the first N gids.
	var compositeGID ot.GlyphID
	var wantComponents []ot.GlyphID
	for gid := ot.GlyphID(1); gid < 2000; gid++ {
		comps := g.glyf.GetComponents(gid)
		if len(comps) > 0 {
			compositeGID = gid
			wantComponents = comps
			break
		}
	}
	if compositeGID == 0 {
		t.Skip("no composite glyph found in test font")
	}

	tr := g.Closure(nil, nil, []uint32{uint32(compositeGID)}, nil)
	reached := tr.ReachedGlyphs()
	for _, comp := range wantComponents {
		if !reached.Contains(uint32(comp)) {
			t.Errorf("component glyph %d of composite %d missing from closure", comp, compositeGID)
		}
	}
}
