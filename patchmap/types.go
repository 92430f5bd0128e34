// Package patchmap serializes and parses the format-2 IFT patch map: the
// per-entry activation conditions (coverage -> patch ids) described in
// spec §4.5/§6. It has no knowledge of fonts, closures, or merge
// strategies; it is purely a bit-exact wire format layer consumed by the
// encoding compiler.
package patchmap

import "fmt"

// Encoding is the patch encoding an entry's activated patches use.
type Encoding uint8

const (
	TableKeyedFull Encoding = iota + 1
	TableKeyedPartial
	GlyphKeyed
)

func (e Encoding) String() string {
	switch e {
	case TableKeyedFull:
		return "TABLE_KEYED_FULL"
	case TableKeyedPartial:
		return "TABLE_KEYED_PARTIAL"
	case GlyphKeyed:
		return "GLYPH_KEYED"
	default:
		return fmt.Sprintf("Encoding(%d)", uint8(e))
	}
}

func (e Encoding) valid() bool {
	return e == TableKeyedFull || e == TableKeyedPartial || e == GlyphKeyed
}

// AxisRange is a variation-space segment [Start, End] on one axis, stored
// as fixed16.16 on the wire.
type AxisRange struct {
	Start float64
	End   float64
}

// Coverage is the set of conditions an entry's codepoints/features/design
// space/child-indices attach to.
type Coverage struct {
	Codepoints   []uint32
	Features     []uint32
	DesignSpace  map[uint32]AxisRange
	ChildIndices []uint32
	// Conjunctive selects AND semantics across ChildIndices (false = OR).
	Conjunctive bool
}

func (c Coverage) hasCodepoints() bool      { return len(c.Codepoints) > 0 }
func (c Coverage) hasFeatures() bool        { return len(c.Features) > 0 }
func (c Coverage) hasDesignSpace() bool     { return len(c.DesignSpace) > 0 }
func (c Coverage) hasChildIndices() bool    { return len(c.ChildIndices) > 0 }
func (c Coverage) hasFeaturesOrSpace() bool { return c.hasFeatures() || c.hasDesignSpace() }

// Entry is one row of the format-2 patch map: a coverage expression plus
// the patch ids it activates.
type Entry struct {
	Coverage     Coverage
	Encoding     Encoding
	PatchIndices []uint32
	Ignored      bool
}

// CompatID is the 128-bit identifier that rotates whenever a glyph-keyed
// patch set becomes incompatible with the font it targets.
type CompatID [16]byte

// Table is a decoded/encodable IFT or IFTX table: header fields plus the
// entries that make up its patch map.
type Table struct {
	ID                     CompatID
	DefaultEncoding        Encoding
	URITemplate            string
	CFFCharstringsOffset   *uint32
	CFF2CharstringsOffset  *uint32
	Entries                []Entry
}

var ErrTooManyChildren = fmt.Errorf("patchmap: more than 127 child indices")
var ErrDeltaOverflow = fmt.Errorf("patchmap: entry index delta overflows signed 24 bits")
var ErrUnknownEncoding = fmt.Errorf("patchmap: unknown patch encoding")
var ErrTruncated = fmt.Errorf("patchmap: truncated entry data")
