// Package glyphstream builds the uncompressed glyph-keyed data stream
// described by spec §6 ("Glyph-keyed patch body"): a concatenation of
// per-glyph table data in canonical table order, used both to estimate
// patch sizes (C3) and to build the real glyph-keyed patch payload (C6).
package glyphstream

import (
	"encoding/binary"
	"fmt"
	"sort"
)

// canonicalTableOrder is the fixed table order spec §4.3 requires for the
// glyph data stream: glyf, gvar, CFF, CFF2.
var canonicalTableOrder = []uint32{
	tagGlyf, tagGvar, tagCFF, tagCFF2,
}

const (
	tagGlyf uint32 = 0x676C7966 // 'glyf'
	tagGvar uint32 = 0x67766172 // 'gvar'
	tagCFF  uint32 = 0x43464620 // 'CFF '
	tagCFF2 uint32 = 0x43464632 // 'CFF2'
)

// GlyphData supplies a single table's data for a single glyph. It returns
// ok=false if the table has no data for that glyph (e.g. a font with glyf
// but no gvar, or a glyph with an empty outline).
type GlyphData interface {
	Data(table uint32, gid uint32) (data []byte, ok bool)
}

// Build returns the uncompressed glyph-keyed stream for gids (spec §6):
//
//	u32 glyph_count
//	u8  table_count
//	glyph_count × (u16 or u24) glyph_ids, ascending
//	table_count × u32 table_tag, sorted
//	(glyph_count+1) × u32 offsets, one per glyph plus an end offset, monotonic, first = header_size
//	concatenated per-glyph data, per table in tag order
//
// wideGIDs selects u24 (true) vs u16 (false) glyph id encoding; the caller
// chooses based on whether any requested gid exceeds 0xFFFF.
func Build(gids []uint32, src GlyphData, wideGIDs bool) ([]byte, error) {
	sorted := append([]uint32(nil), gids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	present := make([]uint32, 0, len(canonicalTableOrder))
	for _, tag := range canonicalTableOrder {
		any := false
		for _, gid := range sorted {
			if _, ok := src.Data(tag, gid); ok {
				any = true
				break
			}
		}
		if any {
			present = append(present, tag)
		}
	}

	gidFieldSize := 2
	if wideGIDs {
		gidFieldSize = 3
	}
	headerSize := 4 + 1 + len(sorted)*gidFieldSize + len(present)*4 + (len(sorted)+1)*4

	// perGlyphTableData[t][g] is the raw bytes for table t, glyph g (by
	// position in sorted), concatenated per table below.
	perTable := make([][][]byte, len(present))
	for ti, tag := range present {
		perTable[ti] = make([][]byte, len(sorted))
		for gi, gid := range sorted {
			if data, ok := src.Data(tag, gid); ok {
				perTable[ti][gi] = data
			}
		}
	}

	// Offsets are one per glyph plus an end offset: offset[i]
	// is the start of glyph i's slice of data across tables laid out in
	// tag order, offset[glyph_count] is the end of the stream.
	offsets := make([]uint32, len(sorted)+1)
	offsets[0] = uint32(headerSize)
	for gi := range sorted {
		size := 0
		for ti := range present {
			size += len(perTable[ti][gi])
		}
		offsets[gi+1] = offsets[gi] + uint32(size)
	}

	out := make([]byte, 0, int(offsets[len(offsets)-1]))
	out = appendUint32(out, uint32(len(sorted)))
	out = append(out, byte(len(present)))
	for _, gid := range sorted {
		if wideGIDs {
			out = append(out, byte(gid>>16), byte(gid>>8), byte(gid))
		} else {
			if gid > 0xFFFF {
				return nil, fmt.Errorf("glyphstream: gid %d exceeds 16 bits but wideGIDs is false", gid)
			}
			out = append(out, byte(gid>>8), byte(gid))
		}
	}
	for _, tag := range present {
		out = appendUint32(out, tag)
	}
	for _, off := range offsets {
		out = appendUint32(out, off)
	}
	for gi := range sorted {
		for ti := range present {
			out = append(out, perTable[ti][gi]...)
		}
	}
	return out, nil
}

func appendUint32(b []byte, v uint32) []byte {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	return append(b, buf[:]...)
}
