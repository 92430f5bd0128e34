// Package iftcompile is the library entry point (spec §6): given a source
// face, an initial subset, and a set of segments, it runs the segmenter
// (C4, over the subset oracle C1 and size cache C3) to derive activation
// conditions, then the encoding compiler (C6) to produce the initial font
// and its patches. Grounded on original_source/ift/encoder/compiler.h's
// public surface, reduced to the single call spec §6 describes.
package iftcompile

import (
	"io"
	"log/slog"

	"github.com/boxesandglue/ift/encoding"
	"github.com/boxesandglue/ift/ot"
	"github.com/boxesandglue/ift/segment"
	"github.com/boxesandglue/ift/sizecache"
	"github.com/boxesandglue/ift/subset"
)

// Result is the compiled output: the initial font's bytes plus every
// patch it can transition to, addressed by URL (spec §6's
// "{init_font_bytes, map<patch_url, patch_bytes>}").
type Result struct {
	InitialFont []byte
	Patches     map[string]encoding.Patch
}

// Options configures one Compile call. Strategy and UnmappedGlyphHandling
// drive the segmenter (C4); the remaining fields drive the encoding
// compiler (C6).
type Options struct {
	// Strategy selects how candidate segments merge (spec §4.4.2). The
	// zero value is segment.NoMerging(), which performs no merges.
	Strategy segment.MergeStrategy
	// UnmappedGlyphHandling overrides the segmenter's default disposition
	// (segment.HandlePatch) of glyphs the attribution pass can't assign.
	UnmappedGlyphHandling segment.UnmappedGlyphHandling

	// JumpAhead bounds how many segments a single table-keyed patch may
	// combine (spec §4.6.2).
	JumpAhead int
	// UsePrefetchLists adds one jump combining every segment to the
	// combined jumps; no chain of intermediate subsets is emitted.
	UsePrefetchLists bool
	// BrotliQuality (1-11) is used for the encoding compiler's patch
	// compression. Defaults to 9. The segmenter's size estimates use the
	// Strategy's own BrotliQuality.
	BrotliQuality uint32
	// URITemplateFunc overrides the default per-patch-set URI template.
	URITemplateFunc func(setIndex int) ([]byte, error)
	// Mixed enables glyph-keyed patches (an IFTX table) alongside
	// table-keyed ones. When false, only table-keyed patches are produced
	// and the segmenter's merge strategy should typically be NoMerging.
	Mixed bool
	// CompatIDSource overrides the randomness source CompatIds are drawn
	// from (spec §9); defaults to crypto/rand.
	CompatIDSource io.Reader
	// Logger receives Debug-level notices of degraded-but-valid results
	// from both the segmenter and the encoding compiler (spec §7).
	// Defaults to slog.Default().
	Logger *slog.Logger
}

func (o Options) encodingOptions() encoding.Options {
	return encoding.Options{
		JumpAhead:        o.JumpAhead,
		UsePrefetchLists: o.UsePrefetchLists,
		BrotliQuality:    o.BrotliQuality,
		URITemplateFunc:  o.URITemplateFunc,
		Mixed:            o.Mixed,
		CompatIDSource:   o.CompatIDSource,
		Logger:           o.Logger,
	}
}

// Compile runs the full pipeline over font: segment init and segments via
// C4, then compile the resulting activation conditions into an initial
// font and patch set via C6. Any error aborts the compile and is returned
// as an *Error classified per spec §7.
func Compile(font *ot.Font, init *segment.SubsetDefinition, segments []*segment.SubsetDefinition, opts Options) (*Result, error) {
	if font == nil {
		return nil, newError(FailedPrecondition, "Compile requires a non-nil face", nil)
	}
	if init == nil {
		init = segment.NewSubsetDefinition()
	}

	if err := validateSegments(font, segments); err != nil {
		return nil, err
	}

	oracle := subset.NewOracle(font)

	glyphData, err := oracle.GlyphData()
	if err != nil {
		return nil, newError(NotFound, "reading glyph data for size estimation", err)
	}
	sizer := sizecache.New(glyphData)

	segmenter := segment.NewSegmenter(oracle, sizer, opts.Strategy)
	segmenter.SetUnmappedGlyphHandling(opts.UnmappedGlyphHandling)
	if opts.Logger != nil {
		segmenter.SetLogger(opts.Logger)
	}

	segmentation, err := segmenter.Segment(init, segments)
	if err != nil {
		return nil, newError(Internal, "segmenting font", err)
	}

	compiler := encoding.NewCompiler(font, opts.encodingOptions())
	encoded, err := compiler.Compile(init, segmentation)
	if err != nil {
		return nil, newError(Internal, "compiling encoding", err)
	}

	patches := make(map[string]encoding.Patch, len(encoded.Patches))
	for _, p := range encoded.Patches {
		patches[p.URL] = p
	}

	return &Result{InitialFont: encoded.InitialFont, Patches: patches}, nil
}

// validateSegments checks the InvalidArgument conditions spec §7 assigns
// to caller-supplied segment definitions: every explicit glyph id must lie
// within the source font's glyph count, and every design-space axis range
// must be well-formed (start <= end).
func validateSegments(font *ot.Font, segments []*segment.SubsetDefinition) error {
	numGlyphs := font.NumGlyphs()
	for _, seg := range segments {
		if seg == nil {
			continue
		}
		for _, gid := range seg.Glyphs.Values() {
			if int(gid) >= numGlyphs {
				return newError(InvalidArgument, "segment references a glyph id outside the source font", nil)
			}
		}
		for _, r := range seg.DesignSpace {
			if r.Start > r.End {
				return newError(InvalidArgument, "malformed axis range", nil)
			}
		}
	}
	return nil
}
