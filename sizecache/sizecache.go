// Package sizecache implements the patch-size cache (spec component C3):
// memoized estimates of a glyph-keyed patch's compressed size, used by
// cost-based merge strategies to evaluate candidate merges without
// actually writing patches.
package sizecache

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/andybalholm/brotli"
	"github.com/boxesandglue/ift/glyphstream"
)

// key identifies a memoized estimate: the exact glyph set (as a sorted,
// comma-joined string) plus the brotli quality used.
type key struct {
	glyphs  string
	quality uint32
}

// Cache memoizes SizeOf results for a fixed glyph data source.
type Cache struct {
	data glyphstream.GlyphData

	mu      sync.Mutex
	results map[key]int
}

// New wraps data (typically subset.Oracle.GlyphData()) as a size cache.
func New(data glyphstream.GlyphData) *Cache {
	return &Cache{data: data, results: make(map[key]int)}
}

func cacheKey(gids []uint32, quality uint32) key {
	sorted := append([]uint32(nil), gids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	parts := make([]string, len(sorted))
	for i, g := range sorted {
		parts[i] = fmt.Sprintf("%d", g)
	}
	return key{glyphs: strings.Join(parts, ","), quality: quality}
}

// SizeOf returns the estimated compressed byte size of a glyph-keyed patch
// carrying gids, at the given brotli quality (1-11), per spec §4.3: builds
// the canonical-order glyph data stream, prepends the glyph-keyed header,
// brotli-compresses it, and returns the total length.
func (c *Cache) SizeOf(gids []uint32, quality uint32) (int, error) {
	if len(gids) == 0 {
		return 0, nil
	}
	k := cacheKey(gids, quality)

	c.mu.Lock()
	if size, ok := c.results[k]; ok {
		c.mu.Unlock()
		return size, nil
	}
	c.mu.Unlock()

	size, err := c.compute(gids, quality)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	c.results[k] = size
	c.mu.Unlock()
	return size, nil
}

func (c *Cache) compute(gids []uint32, quality uint32) (int, error) {
	wide := false
	for _, g := range gids {
		if g > 0xFFFF {
			wide = true
			break
		}
	}
	stream, err := glyphstream.Build(gids, c.data, wide)
	if err != nil {
		return 0, err
	}

	header := glyphKeyedHeader(wide)
	var buf strings.Builder
	buf.Write(header)

	w := brotli.NewWriterLevel(&buf, int(clampQuality(quality)))
	if _, err := w.Write(stream); err != nil {
		return 0, err
	}
	if err := w.Close(); err != nil {
		return 0, err
	}
	return buf.Len(), nil
}

func clampQuality(q uint32) uint32 {
	if q < 1 {
		return 1
	}
	if q > 11 {
		return 11
	}
	return q
}

// glyphKeyedHeader returns a zero-CompatId glyph-keyed patch header (spec
// §6): format tag, reserved, flags, and a 16-byte placeholder CompatId.
// The real CompatId is filled in by the encoding compiler when a patch is
// actually written; for size estimation any fixed 16 bytes give the same
// length.
func glyphKeyedHeader(wideGIDs bool) []byte {
	flags := byte(0)
	if wideGIDs {
		flags = 1
	}
	out := make([]byte, 0, 4+4+1+16+4)
	out = append(out, 'i', 'f', 'g', 'k')
	out = append(out, 0, 0, 0, 0)
	out = append(out, flags)
	out = append(out, make([]byte, 16)...)
	out = append(out, 0, 0, 0, 0)
	return out
}
