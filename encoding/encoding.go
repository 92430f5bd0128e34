// Package encoding implements the encoding compiler (spec component C6):
// it builds the fully-expanded base face, the jump-ahead dependency graph
// over segments, the glyph-keyed and table-keyed patches that satisfy it,
// and the initial font carrying the IFT/IFTX patch-map tables. Grounded on
// original_source/ift/encoder/{compiler.h,encoder.h} and spec §4.6.
package encoding

import (
	"crypto/rand"
	"fmt"
	"io"
	"log/slog"

	"github.com/boxesandglue/ift/ot"
	"github.com/boxesandglue/ift/patchmap"
	"github.com/boxesandglue/ift/segment"
	"github.com/boxesandglue/ift/subset"
)

// CompatID identifies a glyph-keyed patch set's rotation, per spec §6.
type CompatID = patchmap.CompatID

// Options configures one Compile invocation.
type Options struct {
	// JumpAhead bounds how many segments a single table-keyed patch may
	// combine (spec §4.6.2's "combinations of size 1..jump_ahead").
	JumpAhead int
	// UsePrefetchLists adds one extra jump that combines every segment,
	// unless the JumpAhead combinations already include it. No chain of
	// intermediate subsets and no preload list is emitted.
	UsePrefetchLists bool
	// BrotliQuality (1-11) is used for both glyph-keyed streams and
	// table-keyed diffs.
	BrotliQuality uint32
	// URITemplateFunc builds the URI template bytes for a patch set,
	// given its zero-based allocation index. Defaults to a literal
	// "patch_<n>/" prefix followed by an ID32 substitution.
	URITemplateFunc func(setIndex int) ([]byte, error)
	// Mixed enables glyph-keyed patches (an IFTX table) alongside
	// table-keyed ones (the IFT table). When false, only table-keyed
	// patches are produced.
	Mixed bool
	// CompatIDSource overrides the randomness source CompatIds are drawn
	// from. Defaults to crypto/rand; tests inject a deterministic reader
	// (spec §9).
	CompatIDSource io.Reader
	// Logger receives Debug-level notices of degraded-but-valid results
	// (spec §7). A nil Logger uses slog.Default(); to discard notices
	// entirely, pass slog.New(slog.NewTextHandler(io.Discard, nil)).
	Logger *slog.Logger
}

func (o Options) compatIDSource() io.Reader {
	if o.CompatIDSource == nil {
		return rand.Reader
	}
	return o.CompatIDSource
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

func (o Options) quality() uint32 {
	if o.BrotliQuality == 0 {
		return 9
	}
	return o.BrotliQuality
}

func (o Options) jumpAhead() int {
	if o.JumpAhead <= 0 {
		return 1
	}
	return o.JumpAhead
}

// Patch is one emitted patch, addressed by the URL its patch id expands
// to (spec §4.6.6).
type Patch struct {
	URL      string
	Encoding patchmap.Encoding
	Data     []byte
}

// Result is the output of Compile: the initial font bytes (carrying the
// IFT and, in mixed mode, IFTX tables) and every patch it references.
type Result struct {
	InitialFont []byte
	Patches     []Patch
}

// Compiler drives the encoding compiler over a single source face.
type Compiler struct {
	oracle *subset.Oracle
	font   *ot.Font
	opts   Options
}

// NewCompiler wraps font as the source of an encoding compiler run.
func NewCompiler(font *ot.Font, opts Options) *Compiler {
	return &Compiler{oracle: subset.NewOracle(font), font: font, opts: opts}
}

func (c *Compiler) newCompatID() (patchmap.CompatID, error) {
	return patchmap.NewCompatIDFrom(c.opts.compatIDSource())
}

func (c *Compiler) log(msg string, args ...any) {
	if l := c.opts.logger(); l != nil {
		l.Debug(msg, args...)
	}
}

// Compile runs the full C6 pipeline: fully-expanded base (§4.6.1), jump
// graph (§4.6.2), glyph-keyed patch sets (§4.6.3), table-keyed patches
// (§4.6.4), and initial font emission (§4.6.5), using segmentation as the
// segment partition and their activation conditions (normally produced by
// segment.Segmenter.Segment).
func (c *Compiler) Compile(init *segment.SubsetDefinition, segmentation *segment.GlyphSegmentation) (*Result, error) {
	base, err := c.buildExpandedBase(segmentation)
	if err != nil {
		return nil, fmt.Errorf("encoding: building expanded base: %w", err)
	}

	graph, err := c.buildJumpGraph(init, segmentation)
	if err != nil {
		return nil, fmt.Errorf("encoding: building jump graph: %w", err)
	}

	glyphPatches, glyphTable, err := c.buildGlyphKeyedPatches(base, segmentation, graph)
	if err != nil {
		return nil, fmt.Errorf("encoding: building glyph-keyed patches: %w", err)
	}

	tablePatches, tableTable, err := c.buildTableKeyedPatches(graph)
	if err != nil {
		return nil, fmt.Errorf("encoding: building table-keyed patches: %w", err)
	}

	initialFont, err := c.emitInitialFont(graph.initialFontBytes, tableTable, glyphTable)
	if err != nil {
		return nil, fmt.Errorf("encoding: emitting initial font: %w", err)
	}

	patches := append(append([]Patch(nil), tablePatches...), glyphPatches...)
	return &Result{InitialFont: initialFont, Patches: patches}, nil
}
