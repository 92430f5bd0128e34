package depgraph

import "github.com/boxesandglue/ift/internal/intset"

// Traversal is the record of one Graph.Closure call: which nodes were
// reached, how many distinct incoming edges each had, which tables
// contributed an edge, and whether any conditional (ligature, contextual,
// or UVS) edge fired at all. Grounded on ift/dep_graph/traversal.h.
type Traversal struct {
	incomingEdges      map[Node]uint64
	edges              []Edge
	reachedGlyphs      *intset.Set
	contextGlyphs      *intset.Set
	ligatureGlyphs     *intset.Set
	variationSelectors *intset.Set
	tables             map[uint32]bool
	usedGlobalSubrs    map[int]bool
	usedLocalSubrs     map[int]bool
}

func newTraversal() *Traversal {
	return &Traversal{
		incomingEdges:      make(map[Node]uint64),
		reachedGlyphs:      intset.New(),
		contextGlyphs:      intset.New(),
		ligatureGlyphs:     intset.New(),
		variationSelectors: intset.New(),
		tables:             make(map[uint32]bool),
		usedGlobalSubrs:    make(map[int]bool),
		usedLocalSubrs:     make(map[int]bool),
	}
}

func (t *Traversal) visitInit(n Node) {
	if _, ok := t.incomingEdges[n]; !ok {
		t.incomingEdges[n] = 0
	}
}

func (t *Traversal) visit(from, dest Node, kind EdgeKind) bool {
	_, known := t.incomingEdges[dest]
	t.incomingEdges[dest]++
	t.edges = append(t.edges, Edge{From: from, To: dest, Kind: kind})
	if dest.IsGlyph() {
		t.reachedGlyphs.Add(dest.ID)
	}
	return !known
}

func (t *Traversal) visitTable(from, dest Node, kind EdgeKind, table uint32) bool {
	added := t.visit(from, dest, kind)
	t.tables[table] = true
	return added
}

func (t *Traversal) visitUVS(from, dest Node, variationSelector uint32) bool {
	added := t.visitTable(from, dest, UVS, tagCmap)
	t.variationSelectors.Add(variationSelector)
	return added
}

func (t *Traversal) visitContextual(from, dest Node, contextGlyphs *intset.Set) bool {
	added := t.visitTable(from, dest, Contextual, tagGSUB)
	t.contextGlyphs = t.contextGlyphs.Union(contextGlyphs)
	return added
}

func (t *Traversal) visitLigature(from, dest Node, ligatureGlyphs *intset.Set) bool {
	added := t.visitTable(from, dest, Ligature, tagGSUB)
	t.ligatureGlyphs = t.ligatureGlyphs.Union(ligatureGlyphs)
	return added
}

// IncomingEdgeCounts returns, for every reached node, how many distinct
// traversal steps landed on it.
func (t *Traversal) IncomingEdgeCounts() map[Node]uint64 {
	out := make(map[Node]uint64, len(t.incomingEdges))
	for n, c := range t.incomingEdges {
		out[n] = c
	}
	return out
}

// Edges returns every edge traversed, in discovery order.
func (t *Traversal) Edges() []Edge {
	return append([]Edge(nil), t.edges...)
}

// Tables returns the table tags that contributed at least one edge.
func (t *Traversal) Tables() []uint32 {
	out := make([]uint32, 0, len(t.tables))
	for tag := range t.tables {
		out = append(out, tag)
	}
	return out
}

// ReachedGlyphs returns every glyph node visited.
func (t *Traversal) ReachedGlyphs() *intset.Set {
	return t.reachedGlyphs.Clone()
}

// ContextGlyphs returns the glyphs that formed a satisfied contextual
// rule's input coverage.
func (t *Traversal) ContextGlyphs() *intset.Set {
	return t.contextGlyphs.Clone()
}

// HasConditionalGlyphs reports whether any contextual, ligature, or UVS
// edge fired during the traversal.
func (t *Traversal) HasConditionalGlyphs() bool {
	return !t.contextGlyphs.Empty() || !t.ligatureGlyphs.Empty() || !t.variationSelectors.Empty()
}

// markSubroutines records one reached glyph's CFF local/global subroutine
// usage. CFF CharString subroutines aren't glyphs or features, so they
// don't fit the Node/Edge model; a font's subsetter still needs to know
// which subroutine indices to retain, so that set is carried as a plain
// side-channel on the traversal instead of synthetic graph nodes.
func (t *Traversal) markSubroutines(global, local map[int]bool) {
	for idx := range global {
		t.usedGlobalSubrs[idx] = true
	}
	for idx := range local {
		t.usedLocalSubrs[idx] = true
	}
}

// UsedGlobalSubrs returns the set of CFF global subroutine indices used by
// any reached glyph's CharString, directly or through nested subr calls.
func (t *Traversal) UsedGlobalSubrs() map[int]bool {
	out := make(map[int]bool, len(t.usedGlobalSubrs))
	for idx := range t.usedGlobalSubrs {
		out[idx] = true
	}
	return out
}

// UsedLocalSubrs returns the set of CFF local subroutine indices used by
// any reached glyph's CharString, directly or through nested subr calls.
func (t *Traversal) UsedLocalSubrs() map[int]bool {
	out := make(map[int]bool, len(t.usedLocalSubrs))
	for idx := range t.usedLocalSubrs {
		out[idx] = true
	}
	return out
}

const (
	tagCmap = 0x636d6170
	tagGSUB = 0x47535542
	tagGlyf = 0x676c7966
	tagMath = 0x4d415448
	tagColr = 0x434f4c52
	tagCFF  = 0x43464620
)
