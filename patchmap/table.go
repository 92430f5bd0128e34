package patchmap

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
)

const headerMinLength = 35

// Table tags for the two patch-map tables a font can carry, per spec §6.
const (
	TagIFT  = "IFT "
	TagIFTX = "IFTX"
)

// NewCompatID draws a random 128-bit compatibility id from crypto/rand,
// used whenever a glyph-keyed patch set's CompatId needs to rotate.
func NewCompatID() (CompatID, error) {
	return NewCompatIDFrom(rand.Reader)
}

// NewCompatIDFrom draws a compatibility id from src instead of the default
// crypto/rand source, per spec §9 ("Random CompatId generation is seeded
// from an injected source for test determinism").
func NewCompatIDFrom(src io.Reader) (CompatID, error) {
	var id CompatID
	if _, err := io.ReadFull(src, id[:]); err != nil {
		return CompatID{}, fmt.Errorf("patchmap: generating compat id: %w", err)
	}
	return id, nil
}

// EncodeTable serializes t as a format-2 IFT/IFTX table header plus its
// entries, per spec §6's "Table headers" layout.
func EncodeTable(t *Table) ([]byte, error) {
	var out []byte
	out = append(out, 0x02)       // format
	out = appendUint24(out, 0)    // reserved

	flags := byte(0)
	if t.CFFCharstringsOffset != nil {
		flags |= 0b01
	}
	if t.CFF2CharstringsOffset != nil {
		flags |= 0b10
	}
	out = append(out, flags)

	out = append(out, t.ID[:]...)

	defaultEncoding := t.DefaultEncoding
	if defaultEncoding == 0 {
		defaultEncoding = pickDefaultEncoding(t.Entries)
	}
	encByte, err := encodingToByte(defaultEncoding)
	if err != nil {
		return nil, err
	}
	out = append(out, encByte)

	if len(t.Entries) > 0xFFFFFF {
		return nil, fmt.Errorf("patchmap: too many entries (%d > 0xFFFFFF)", len(t.Entries))
	}
	out = appendUint24(out, uint32(len(t.Entries)))

	optionalOffsetsSize := 0
	if t.CFFCharstringsOffset != nil {
		optionalOffsetsSize += 4
	}
	if t.CFF2CharstringsOffset != nil {
		optionalOffsetsSize += 4
	}
	entriesOffset := headerMinLength + len(t.URITemplate) + optionalOffsetsSize
	out = appendUint32(out, uint32(entriesOffset))

	out = appendUint32(out, 0) // id strings offset, unused

	if len(t.URITemplate) > 0xFFFF {
		return nil, fmt.Errorf("patchmap: uri template too long (%d > 0xFFFF)", len(t.URITemplate))
	}
	out = appendUint16(out, uint16(len(t.URITemplate)))
	out = append(out, t.URITemplate...)

	if t.CFFCharstringsOffset != nil {
		out = appendUint32(out, *t.CFFCharstringsOffset)
	}
	if t.CFF2CharstringsOffset != nil {
		out = appendUint32(out, *t.CFF2CharstringsOffset)
	}

	entryBytes, err := EncodeEntries(t.Entries, defaultEncoding)
	if err != nil {
		return nil, err
	}
	out = append(out, entryBytes...)

	return out, nil
}

// DecodeTable parses a format-2 IFT/IFTX table header and its entries.
func DecodeTable(data []byte) (*Table, error) {
	if len(data) < headerMinLength {
		return nil, ErrTruncated
	}
	if data[0] != 0x02 {
		return nil, fmt.Errorf("patchmap: unsupported table format %d", data[0])
	}

	flags := data[4]
	hasCFF := flags&0b01 != 0
	hasCFF2 := flags&0b10 != 0

	t := &Table{}
	copy(t.ID[:], data[5:21])

	defaultEncoding, err := byteToEncoding(data[21])
	if err != nil {
		return nil, err
	}
	t.DefaultEncoding = defaultEncoding

	mappingCount := readUint24(data[22:])
	_ = mappingCount // entries are re-derived by walking the byte stream below

	// bytes 25-28: entries offset, 29-32: id strings offset (both unused
	// here; entries are parsed by walking the byte stream after the URI
	// template instead of seeking to entriesOffset).
	uriTemplateLength := int(binary.BigEndian.Uint16(data[33:]))
	pos := headerMinLength
	if len(data) < pos+uriTemplateLength {
		return nil, ErrTruncated
	}
	t.URITemplate = string(data[pos : pos+uriTemplateLength])
	pos += uriTemplateLength

	if hasCFF {
		if len(data) < pos+4 {
			return nil, ErrTruncated
		}
		v := binary.BigEndian.Uint32(data[pos:])
		t.CFFCharstringsOffset = &v
		pos += 4
	}
	if hasCFF2 {
		if len(data) < pos+4 {
			return nil, ErrTruncated
		}
		v := binary.BigEndian.Uint32(data[pos:])
		t.CFF2CharstringsOffset = &v
		pos += 4
	}

	entries, err := DecodeEntries(data[pos:], defaultEncoding)
	if err != nil {
		return nil, err
	}
	t.Entries = entries

	return t, nil
}
