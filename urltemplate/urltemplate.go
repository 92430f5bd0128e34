// Package urltemplate expands the compact byte-sequence URL templates
// used by the format-2 patch map (spec §4.6.6) into concrete patch URLs.
// A template is a sequence of opcodes: a literal run (top bit clear, low
// 7 bits = byte count, followed by that many literal bytes) or one of six
// substitution opcodes (top bit set): ID32, D1..D4, and the reserved
// ID64.
//
// Ported from ift/url_template.cc: only the byte sequence grammar and the
// base32hex id expansion are reproduced; there is no other state.
package urltemplate

import (
	"encoding/base32"
	"fmt"
	"strings"
)

const (
	opcodesStart = 0x80
	opID32       = opcodesStart + 0
	opD1         = opcodesStart + 1
	opD2         = opcodesStart + 2
	opD3         = opcodesStart + 3
	opD4         = opcodesStart + 4
	opID64       = opcodesStart + 5
	opcodesEnd   = opID64
)

// Opcode byte constructors, for building templates programmatically.
const (
	ID32 = byte(opID32)
	D1   = byte(opD1)
	D2   = byte(opD2)
	D3   = byte(opD3)
	D4   = byte(opD4)
	ID64 = byte(opID64)
)

// Literal returns the opcode+payload bytes for a literal run of s. s must
// be 1..127 bytes.
func Literal(s string) ([]byte, error) {
	if len(s) == 0 || len(s) > 0x7F {
		return nil, fmt.Errorf("urltemplate: literal length %d out of range [1,127]", len(s))
	}
	out := make([]byte, 0, len(s)+1)
	out = append(out, byte(len(s)))
	out = append(out, s...)
	return out, nil
}

// Expand substitutes every opcode in template with the encoding of
// patchIdx and returns the resulting URL.
func Expand(template []byte, patchIdx uint32) (string, error) {
	expansions := populateExpansions(patchIdx)

	var out strings.Builder
	i := 0
	for i < len(template) {
		op := template[i]
		i++
		if op&0x80 == 0 {
			numLiterals := int(op & 0x7F)
			if numLiterals == 0 {
				return "", fmt.Errorf("urltemplate: invalid opcode %#x", op)
			}
			if i+numLiterals > len(template) {
				return "", fmt.Errorf("urltemplate: unexpected end of template")
			}
			out.Write(template[i : i+numLiterals])
			i += numLiterals
			continue
		}

		if int(op) < opcodesStart || int(op) > opcodesEnd {
			return "", fmt.Errorf("urltemplate: invalid opcode %#x", op)
		}
		out.WriteString(expansions[int(op)-opcodesStart])
	}

	return out.String(), nil
}

// populateExpansions computes the six substitution strings for patchIdx:
// ID32 is the base32hex encoding of the big-endian patch id with leading
// zero bytes stripped; Dn (n = 1..4) is the single n-th character from the
// end of that encoding, or "_" if the encoding is shorter than n.
func populateExpansions(patchIdx uint32) [6]string {
	var bytes [4]byte
	bytes[0] = byte(patchIdx >> 24)
	bytes[1] = byte(patchIdx >> 16)
	bytes[2] = byte(patchIdx >> 8)
	bytes[3] = byte(patchIdx)

	start := 0
	for start < 3 && bytes[start] == 0 {
		start++
	}

	encoded := base32.HexEncoding.EncodeToString(bytes[start:])
	encoded = strings.TrimRight(encoded, "=")

	var out [6]string
	out[0] = encoded
	for digits := 1; digits <= 4; digits++ {
		if len(encoded) >= digits {
			out[digits] = encoded[len(encoded)-digits : len(encoded)-digits+1]
		} else {
			out[digits] = "_"
		}
	}
	// ID64 is reserved; it has no defined expansion yet.
	out[5] = ""

	return out
}
