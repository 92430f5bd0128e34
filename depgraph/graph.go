package depgraph

import (
	"github.com/boxesandglue/ift/internal/intset"
	"github.com/boxesandglue/ift/ot"
)

// Graph wraps the parsed tables of a single font needed to discover
// dependency edges: cmap (Unicode/UVS), glyf (composite components),
// GSUB (single/multiple/alternate, ligature, and format-3 context
// substitution), MATH (MathVariants size/assembly glyphs), COLR
// (version-0 layer composition), and CFF (local/global CharString
// subroutine usage). Grounded on
// original_source/ift/dep_graph/dependency_graph.{h,cc}, reusing the
// same table parsers subset.Plan uses (subset/plan.go's parseTables).
type Graph struct {
	cmap *ot.Cmap
	glyf *ot.Glyf
	gsub *ot.GSUB
	math *ot.Math
	colr *ot.Colr
	cff  *ot.CFF
}

// NewGraph parses the tables a closure traversal needs out of font. Any
// of these tables may be absent; their contribution is then simply
// skipped.
func NewGraph(font *ot.Font) (*Graph, error) {
	g := &Graph{}

	if font.HasTable(ot.TagCmap) {
		data, err := font.TableData(ot.TagCmap)
		if err != nil {
			return nil, err
		}
		g.cmap, err = ot.ParseCmap(data)
		if err != nil {
			return nil, err
		}
	}

	if font.HasTable(ot.TagGlyf) && font.HasTable(ot.TagLoca) {
		glyf, err := ot.ParseGlyfFromFont(font)
		if err == nil {
			g.glyf = glyf
		}
	}

	if font.HasTable(ot.TagGSUB) {
		data, err := font.TableData(ot.TagGSUB)
		if err == nil {
			gsub, err := ot.ParseGSUB(data)
			if err == nil {
				g.gsub = gsub
			}
		}
	}

	if font.HasTable(ot.TagMath) {
		data, err := font.TableData(ot.TagMath)
		if err == nil {
			math, err := ot.ParseMath(data)
			if err == nil {
				g.math = math
			}
		}
	}

	if font.HasTable(ot.TagColr) {
		data, err := font.TableData(ot.TagColr)
		if err == nil {
			colr, err := ot.ParseColr(data)
			if err == nil {
				g.colr = colr
			}
		}
	}

	if font.HasTable(ot.TagCFF) {
		data, err := font.TableData(ot.TagCFF)
		if err == nil {
			cff, err := ot.ParseCFF(data)
			if err == nil {
				g.cff = cff
			}
		}
	}

	return g, nil
}

// VariationSequence is a (base codepoint, variation selector) pair that
// the caller wants resolved through cmap format 14, since these are not
// discoverable by enumerating a codepoint set alone.
type VariationSequence struct {
	Base              uint32
	VariationSelector uint32
}

// Closure computes the dependency traversal reachable from the given
// input: Unicode codepoints and Unicode variation sequences resolved
// through cmap, glyphs named explicitly, and a list of layout feature
// tags. The feature tags are accepted but not consulted: every GSUB
// lookup in the font is expanded, whichever feature references it.
// Per spec §4.2 it runs as a strict,
// single pass through seven ordered phases — (1) Unicode bidi,
// (2) cmap + UVS, (3) GSUB, (4) MATH, (5) COLR, (6) glyf composites,
// (7) CFF local/global subroutines — rather than one merged fixed-point
// loop: a conditional edge whose context only becomes satisfied in a
// later phase (e.g. a glyf composite component added by COLR in phase
// 5) does not feed back into an earlier phase (GSUB, phase 3) within
// the same Closure call. Each phase still iterates to a fixed point
// over its own edge kind when that kind can chain with itself (GSUB
// lookups feeding later lookups, nested glyf composites).
func (g *Graph) Closure(unicodes []uint32, sequences []VariationSequence, explicitGlyphs []uint32, features []uint32) *Traversal {
	t := newTraversal()
	init := InitFontNode()
	t.visitInit(init)

	reached := intset.New()
	reached.Add(0) // .notdef is always retained

	enabledFeatures := make(map[uint32]bool, len(features))
	for _, f := range features {
		enabledFeatures[f] = true
	}

	// Phase 1: Unicode bidi. OpenType carries no bidi-mirroring table —
	// mirrored-glyph selection is a shaping-time Unicode property lookup
	// driven by run direction, not a font-structural dependency, so this
	// phase contributes no edges and is a deliberate no-op.

	// Phase 2: cmap + UVS resolution.
	for _, cp := range unicodes {
		n := UnicodeNode(cp)
		t.visitInit(n)
		if g.cmap != nil {
			if gid, ok := g.cmap.Lookup(ot.Codepoint(cp)); ok {
				t.visitTable(n, GlyphNode(uint32(gid)), Direct, tagCmap)
				reached.Add(uint32(gid))
			}
		}
	}
	for _, seq := range sequences {
		n := UnicodeNode(seq.Base)
		if g.cmap != nil {
			if gid, ok := g.cmap.LookupVariation(ot.Codepoint(seq.Base), ot.Codepoint(seq.VariationSelector)); ok {
				t.visitUVS(n, GlyphNode(uint32(gid)), seq.VariationSelector)
				reached.Add(uint32(gid))
			}
		}
	}
	for _, gid := range explicitGlyphs {
		t.visitInit(GlyphNode(gid))
		reached.Add(gid)
	}

	// Phase 3: GSUB (simple/multiple/alternate, ligature, format-3
	// context substitution), iterated to a fixed point since one
	// lookup's output can satisfy another lookup's input within the
	// same phase.
	for {
		added := false
		if g.gsubSimple(reached, enabledFeatures, t) {
			added = true
		}
		if g.gsubLigatures(reached, enabledFeatures, t) {
			added = true
		}
		if g.gsubContextual(reached, enabledFeatures, t) {
			added = true
		}
		if !added {
			break
		}
	}

	// Phase 4: MATH (MathVariants size variants and assembly parts).
	g.mathVariants(reached, t)

	// Phase 5: COLR (version-0 layer composition).
	g.colrLayers(reached, t)

	// Phase 6: glyf composites, iterated to a fixed point to cover
	// composites whose components are themselves composite.
	for g.glyphComposites(reached, t) {
	}

	// Phase 7: CFF local/global CharString subroutine usage. Subroutines
	// aren't glyphs, so this records a side-channel on t rather than
	// adding nodes to reached.
	g.cffSubroutines(reached, t)

	// .notdef and explicitly named glyphs count as reached even when no
	// edge leads to them.
	t.reachedGlyphs = t.reachedGlyphs.Union(reached)

	return t
}

// mathVariants adds the size-variant and glyph-assembly-part glyphs a
// reached glyph's MathVariants construction references.
func (g *Graph) mathVariants(reached *intset.Set, t *Traversal) {
	if g.math == nil {
		return
	}
	for _, gid := range reached.Values() {
		variants := g.math.Variants(ot.GlyphID(gid))
		if len(variants) == 0 {
			continue
		}
		from := GlyphNode(gid)
		for _, v := range variants {
			reached.Add(uint32(v))
			t.visitTable(from, GlyphNode(uint32(v)), Direct, tagMath)
		}
	}
}

// colrLayers adds the layer glyphs a reached COLRv0 base glyph composites
// to.
func (g *Graph) colrLayers(reached *intset.Set, t *Traversal) {
	if g.colr == nil {
		return
	}
	for _, gid := range reached.Values() {
		layers := g.colr.Layers(ot.GlyphID(gid))
		if len(layers) == 0 {
			continue
		}
		from := GlyphNode(gid)
		for _, layer := range layers {
			reached.Add(uint32(layer))
			t.visitTable(from, GlyphNode(uint32(layer)), Direct, tagColr)
		}
	}
}

// cffSubroutines records the local/global subroutine indices used by
// every reached glyph's CFF CharString, recursively through nested subr
// calls, so the subsetter knows which subroutines to retain.
func (g *Graph) cffSubroutines(reached *intset.Set, t *Traversal) {
	if g.cff == nil {
		return
	}
	for _, gid := range reached.Values() {
		if int(gid) >= len(g.cff.CharStrings) {
			continue
		}
		interp := ot.NewCharStringInterpreter(g.cff.GlobalSubrs, g.cff.LocalSubrs)
		if err := interp.FindUsedSubroutines(g.cff.CharStrings[gid]); err != nil {
			continue
		}
		t.markSubroutines(interp.UsedGlobalSubrs, interp.UsedLocalSubrs)
		if len(interp.UsedGlobalSubrs) > 0 || len(interp.UsedLocalSubrs) > 0 {
			t.tables[tagCFF] = true
		}
	}
}

func (g *Graph) glyphComposites(reached *intset.Set, t *Traversal) bool {
	if g.glyf == nil {
		return false
	}
	added := false
	for _, gid := range reached.Values() {
		components := g.glyf.GetComponents(ot.GlyphID(gid))
		for _, comp := range components {
			from := GlyphNode(gid)
			to := GlyphNode(uint32(comp))
			if !reached.Contains(uint32(comp)) {
				reached.Add(uint32(comp))
				added = true
			}
			t.visitTable(from, to, Direct, tagGlyf)
		}
	}
	return added
}

func (g *Graph) gsubSimple(reached *intset.Set, features map[uint32]bool, t *Traversal) bool {
	if g.gsub == nil {
		return false
	}
	added := false
	for i := 0; i < g.gsub.NumLookups(); i++ {
		lookup := g.gsub.GetLookup(i)
		if lookup == nil {
			continue
		}
		for _, subtable := range lookup.Subtables() {
			switch st := subtable.(type) {
			case *ot.SingleSubst:
				for in, out := range st.Mapping() {
					if reached.Contains(uint32(in)) {
						if mark(reached, uint32(out), t, GlyphNode(uint32(in)), GlyphNode(uint32(out))) {
							added = true
						}
					}
				}
			case *ot.MultipleSubst:
				for in, outs := range st.Mapping() {
					if !reached.Contains(uint32(in)) {
						continue
					}
					for _, out := range outs {
						if mark(reached, uint32(out), t, GlyphNode(uint32(in)), GlyphNode(uint32(out))) {
							added = true
						}
					}
				}
			case *ot.AlternateSubst:
				for in, alts := range st.Mapping() {
					if !reached.Contains(uint32(in)) {
						continue
					}
					for _, alt := range alts {
						if mark(reached, uint32(alt), t, GlyphNode(uint32(in)), GlyphNode(uint32(alt))) {
							added = true
						}
					}
				}
			}
		}
	}
	return added
}

func mark(reached *intset.Set, gid uint32, t *Traversal, from, to Node) bool {
	added := !reached.Contains(gid)
	reached.Add(gid)
	t.visitTable(from, to, GSUBSimple, tagGSUB)
	return added
}

// gsubLigatures fires a ligature only once every one of its component
// glyphs is present, per spec §4.2's ligature rule.
func (g *Graph) gsubLigatures(reached *intset.Set, features map[uint32]bool, t *Traversal) bool {
	if g.gsub == nil {
		return false
	}
	added := false
	for i := 0; i < g.gsub.NumLookups(); i++ {
		lookup := g.gsub.GetLookup(i)
		if lookup == nil {
			continue
		}
		for _, subtable := range lookup.Subtables() {
			ls, ok := subtable.(*ot.LigatureSubst)
			if !ok {
				continue
			}
			cov := ls.Coverage()
			firstGlyphs := cov.Glyphs()
			ligSets := ls.LigatureSets()
			for si, ligSet := range ligSets {
				if si >= len(firstGlyphs) || !reached.Contains(uint32(firstGlyphs[si])) {
					continue
				}
				for _, lig := range ligSet {
					allPresent := true
					ligGlyphs := intset.New()
					ligGlyphs.Add(uint32(firstGlyphs[si]))
					for _, comp := range lig.Components {
						if !reached.Contains(uint32(comp)) {
							allPresent = false
							break
						}
						ligGlyphs.Add(uint32(comp))
					}
					if !allPresent {
						continue
					}
					wasNew := !reached.Contains(uint32(lig.LigGlyph))
					reached.Add(uint32(lig.LigGlyph))
					t.visitLigature(GlyphNode(uint32(firstGlyphs[si])), GlyphNode(uint32(lig.LigGlyph)), ligGlyphs)
					if wasNew {
						added = true
					}
				}
			}
		}
	}
	return added
}

// gsubContextual handles only GSUB context substitution format 3 (the
// coverage-list form); formats 1 and 2 are not expanded. A rule fires, as an over-approximation suited to closure computation,
// when every position's coverage intersects the currently reached
// glyph set; its referenced lookups' outputs are then folded in.
func (g *Graph) gsubContextual(reached *intset.Set, features map[uint32]bool, t *Traversal) bool {
	if g.gsub == nil {
		return false
	}
	added := false
	for i := 0; i < g.gsub.NumLookups(); i++ {
		lookup := g.gsub.GetLookup(i)
		if lookup == nil {
			continue
		}
		for _, subtable := range lookup.Subtables() {
			cs, ok := subtable.(*ot.ContextSubst)
			if !ok || cs.Format() != 3 {
				continue
			}
			covs := cs.Format3InputCoverages()
			if len(covs) == 0 {
				continue
			}
			contextGlyphs := intset.New()
			satisfied := true
			var anchor ot.GlyphID
			for idx, cov := range covs {
				present, repGlyph := intersects(cov, reached)
				if !present {
					satisfied = false
					break
				}
				contextGlyphs.Add(uint32(repGlyph))
				if idx == 0 {
					anchor = repGlyph
				}
			}
			if !satisfied {
				continue
			}
			for _, rec := range cs.Format3LookupRecords() {
				outLookup := g.gsub.GetLookup(int(rec.LookupIndex))
				if outLookup == nil {
					continue
				}
				for _, outSt := range outLookup.Subtables() {
					for _, out := range outputGlyphsOf(outSt, anchor, reached) {
						wasNew := !reached.Contains(out)
						reached.Add(out)
						t.visitContextual(GlyphNode(uint32(anchor)), GlyphNode(out), contextGlyphs)
						if wasNew {
							added = true
						}
					}
				}
			}
		}
	}
	return added
}

// intersects reports whether any glyph of cov is in reached, returning
// one such glyph as a representative.
func intersects(cov *ot.Coverage, reached *intset.Set) (bool, ot.GlyphID) {
	for _, gid := range cov.Glyphs() {
		if reached.Contains(uint32(gid)) {
			return true, gid
		}
	}
	return false, 0
}

// outputGlyphsOf mirrors subset.Plan.getGSUBLookupOutputGlyphs for a
// single subtable, scoped to a single anchor glyph already known
// present.
func outputGlyphsOf(subtable ot.GSUBSubtable, anchor ot.GlyphID, reached *intset.Set) []uint32 {
	var out []uint32
	switch st := subtable.(type) {
	case *ot.SingleSubst:
		for in, o := range st.Mapping() {
			if in == anchor || reached.Contains(uint32(in)) {
				out = append(out, uint32(o))
			}
		}
	case *ot.MultipleSubst:
		for in, os := range st.Mapping() {
			if in == anchor || reached.Contains(uint32(in)) {
				for _, o := range os {
					out = append(out, uint32(o))
				}
			}
		}
	case *ot.AlternateSubst:
		for in, alts := range st.Mapping() {
			if in == anchor || reached.Contains(uint32(in)) {
				for _, a := range alts {
					out = append(out, uint32(a))
				}
			}
		}
	}
	return out
}
