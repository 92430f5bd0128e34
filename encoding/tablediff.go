package encoding

import (
	"bytes"
	"strings"

	"github.com/andybalholm/brotli"
)

// diffOp is one instruction of the copy/insert diff stream produced by
// diffAgainstDictionary. The andybalholm/brotli package used throughout
// this module exposes no shared-dictionary compression API, so instead
// of a true brotli dictionary diff (spec §4.6.4's "brotli shared-
// dictionary diff using start_font as the dictionary"), table-keyed
// patches here use an explicit copy/insert diff against the start font,
// whose resulting instruction stream is itself brotli-compressed. This
// is a deliberate, documented simplification (see DESIGN.md): the client
// still only needs the start font plus the patch to reconstruct the end
// font, but the match-finding is a simple longest-common-run scan rather
// than brotli's internal window matcher.
type diffOp struct {
	copyFromDict bool
	offset       int // valid when copyFromDict
	data         []byte
}

const minCopyRun = 16

// diffAgainstDictionary produces a copy/insert instruction stream that
// reconstructs target, referencing runs of dict by offset wherever a long
// enough verbatim match exists.
func diffAgainstDictionary(dict, target []byte) []diffOp {
	index := make(map[uint64][]int)
	if len(dict) >= minCopyRun {
		for i := 0; i+minCopyRun <= len(dict); i++ {
			h := hashRun(dict[i : i+minCopyRun])
			index[h] = append(index[h], i)
		}
	}

	var ops []diffOp
	var pendingInsert []byte
	flush := func() {
		if len(pendingInsert) > 0 {
			ops = append(ops, diffOp{data: append([]byte(nil), pendingInsert...)})
			pendingInsert = nil
		}
	}

	i := 0
	for i < len(target) {
		if i+minCopyRun > len(target) {
			pendingInsert = append(pendingInsert, target[i])
			i++
			continue
		}
		h := hashRun(target[i : i+minCopyRun])
		best, bestLen := -1, 0
		for _, off := range index[h] {
			if !bytes.Equal(dict[off:off+minCopyRun], target[i:i+minCopyRun]) {
				continue
			}
			length := minCopyRun
			for off+length < len(dict) && i+length < len(target) && dict[off+length] == target[i+length] {
				length++
			}
			if length > bestLen {
				best, bestLen = off, length
			}
		}
		if best >= 0 {
			flush()
			ops = append(ops, diffOp{copyFromDict: true, offset: best, data: target[i : i+bestLen]})
			i += bestLen
			continue
		}
		pendingInsert = append(pendingInsert, target[i])
		i++
	}
	flush()
	return ops
}

func hashRun(b []byte) uint64 {
	var h uint64 = 1469598103934665603
	for _, c := range b {
		h ^= uint64(c)
		h *= 1099511628211
	}
	return h
}

// encodeDiffStream serializes ops into the wire form a client replays
// against the start font: a sequence of
//
//	u8 opcode (0=insert, 1=copy)
//	insert:  u32 length, length bytes
//	copy:    u32 dictOffset, u32 length
func encodeDiffStream(ops []diffOp) []byte {
	var out []byte
	for _, op := range ops {
		if op.copyFromDict {
			out = append(out, 1)
			out = appendUint32(out, uint32(op.offset))
			out = appendUint32(out, uint32(len(op.data)))
		} else {
			out = append(out, 0)
			out = appendUint32(out, uint32(len(op.data)))
			out = append(out, op.data...)
		}
	}
	return out
}

func appendUint32(b []byte, v uint32) []byte {
	return append(b, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

// compressDiff brotli-compresses a diff instruction stream at the
// compiler's configured quality.
func (c *Compiler) compressDiff(ops []diffOp) ([]byte, error) {
	stream := encodeDiffStream(ops)
	var buf strings.Builder
	w := brotli.NewWriterLevel(&buf, int(clampQuality(c.opts.quality())))
	if _, err := w.Write(stream); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return []byte(buf.String()), nil
}
