// Package depgraph builds a font's glyph dependency graph: the set of
// nodes (the initial font, segments, Unicode codepoints, glyphs, layout
// features) and edges between them that a closure traversal discovers,
// per spec §4.2/§9. subset.Oracle.Closure — the entry point the glyph
// segmenter calls — delegates directly to Graph.Closure.
//
// Grounded on original_source/ift/dep_graph/{node.h,traversal.h,
// dependency_graph.h}.
package depgraph

import "fmt"

// NodeKind is a bitmask so callers can filter traversal results by one
// or more kinds at once (mirrors Node::Matches in node.h).
type NodeKind uint32

const (
	KindInitFont NodeKind = 1 << iota
	KindSegment
	KindUnicode
	KindGlyph
	KindFeature
)

func (k NodeKind) String() string {
	switch k {
	case KindInitFont:
		return "INIT_FONT"
	case KindSegment:
		return "SEGMENT"
	case KindUnicode:
		return "UNICODE"
	case KindGlyph:
		return "GLYPH"
	case KindFeature:
		return "FEATURE"
	default:
		return fmt.Sprintf("NodeKind(%d)", uint32(k))
	}
}

// Node identifies a single vertex in the dependency graph: an (id, kind)
// pair. Two nodes are equal iff both fields match, so Node is usable
// directly as a map key.
type Node struct {
	ID   uint32
	Kind NodeKind
}

func InitFontNode() Node            { return Node{0, KindInitFont} }
func SegmentNode(index uint32) Node { return Node{index, KindSegment} }
func UnicodeNode(cp uint32) Node    { return Node{cp, KindUnicode} }
func GlyphNode(gid uint32) Node     { return Node{gid, KindGlyph} }
func FeatureNode(tag uint32) Node   { return Node{tag, KindFeature} }

func (n Node) IsInitFont() bool { return n.Kind == KindInitFont }
func (n Node) IsSegment() bool  { return n.Kind == KindSegment }
func (n Node) IsUnicode() bool  { return n.Kind == KindUnicode }
func (n Node) IsGlyph() bool    { return n.Kind == KindGlyph }
func (n Node) IsFeature() bool  { return n.Kind == KindFeature }

// Matches reports whether this node's kind is one of the kinds set in
// filter.
func (n Node) Matches(filter NodeKind) bool {
	return filter&n.Kind != 0
}

func (n Node) String() string {
	switch n.Kind {
	case KindSegment:
		return fmt.Sprintf("s%d", n.ID)
	case KindUnicode:
		return fmt.Sprintf("u%d", n.ID)
	case KindGlyph:
		return fmt.Sprintf("g%d", n.ID)
	case KindFeature:
		return tagString(n.ID)
	case KindInitFont:
		return "init"
	default:
		return fmt.Sprintf("x%d", n.ID)
	}
}

func tagString(tag uint32) string {
	b := [4]byte{byte(tag >> 24), byte(tag >> 16), byte(tag >> 8), byte(tag)}
	return string(b[:])
}
