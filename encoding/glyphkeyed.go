package encoding

import (
	"fmt"
	"sort"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/boxesandglue/ift/glyphstream"
	"github.com/boxesandglue/ift/ot"
	"github.com/boxesandglue/ift/patchmap"
	"github.com/boxesandglue/ift/segment"
	"github.com/boxesandglue/ift/subset"
)

// designSpacePoint identifies one of the distinct design-space points a
// jump graph touches, keyed by sorted "tag=value" pairs so it can be used
// as a map key (spec §4.6.3: "for each design-space point that appears
// in the graph").
type designSpacePoint string

func pointKey(ds map[uint32]segment.AxisRange) designSpacePoint {
	keys := make([]string, 0, len(ds))
	for tag, r := range ds {
		keys = append(keys, fmt.Sprintf("%d=%g", tag, r.Start))
	}
	sort.Strings(keys)
	return designSpacePoint(strings.Join(keys, ","))
}

// glyphKeyedPatchSet is one design-space point's glyph-keyed patches,
// sharing a single CompatId and URI template (spec §4.6.3).
type glyphKeyedPatchSet struct {
	compatID    patchmap.CompatID
	uriTemplate []byte
}

// buildGlyphKeyedPatches instances the expanded base once per distinct
// design-space point referenced by the jump graph and, for each, emits
// one glyph-keyed patch per segment's glyph payload (spec §4.6.3 steps
// 1-3). It returns the compiled patches plus the IFTX table describing
// them (nil if the compiler is not in mixed mode).
func (c *Compiler) buildGlyphKeyedPatches(base *segment.SubsetDefinition, segmentation *segment.GlyphSegmentation, graph *jumpGraph) ([]Patch, *patchmap.Table, error) {
	if !c.opts.Mixed {
		return nil, nil, nil
	}

	points := map[designSpacePoint]map[uint32]segment.AxisRange{pointKey(base.DesignSpace): base.DesignSpace}
	for _, jump := range graph.jumps {
		combined := jump.combined(segmentation.Segments)
		points[pointKey(combined.DesignSpace)] = combined.DesignSpace
	}
	keys := make([]designSpacePoint, 0, len(points))
	for k := range points {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	var patches []Patch
	var entries []patchmap.Entry
	var first *glyphKeyedPatchSet
	for setIndex, key := range keys {
		ds := points[key]
		set, setPatches, err := c.buildGlyphKeyedPatchSet(setIndex, ds, segmentation)
		if err != nil {
			return nil, nil, err
		}
		if first == nil {
			first = set
		}
		patches = append(patches, setPatches...)

		setEntries := buildConditionEntries(segmentation.Conditions, segmentation.Segments)
		setEntries = appendUnmatchedPatchEntries(setEntries, segmentation, c.log)

		// Child indices built by buildConditionEntries are positions
		// within this design-space point's own block; once appended to
		// the table-wide entries slice they must be shifted by however
		// many entries already precede the block (spec invariant 4).
		offset := uint32(len(entries))
		for _, entry := range setEntries {
			entry.Coverage.DesignSpace = convertDesignSpace(ds)
			if len(entry.Coverage.ChildIndices) > 0 {
				shifted := make([]uint32, len(entry.Coverage.ChildIndices))
				for i, idx := range entry.Coverage.ChildIndices {
					shifted[i] = idx + offset
				}
				entry.Coverage.ChildIndices = shifted
			}
			entries = append(entries, entry)
		}
	}

	// The table-level ID and URITemplate carry the first design-space
	// point's CompatId and template (see buildGlyphKeyedPatchSet): with a
	// single design-space point, the common case, these are exactly
	// right; with more than one, later points' patches are still
	// addressed correctly via their own per-entry PatchIndices, but share
	// the first point's template shape, a documented scope reduction.
	table := &patchmap.Table{
		DefaultEncoding: patchmap.GlyphKeyed,
		Entries:         entries,
	}
	if len(keys) > 1 {
		c.log("encoding: multiple design-space points share one IFTX table header",
			"design_space_points", len(keys))
	}
	if first != nil {
		table.ID = first.compatID
		table.URITemplate = string(first.uriTemplate)
	}
	return patches, table, nil
}

// buildConditionEntries translates a GlyphSegmentation's activation
// conditions into format-2 patch map entries, one entry group per
// condition, in the conditions' own order (spec invariant 4: child
// indices only reference earlier entries).
//
// Exclusive and Disjunctive conditions translate directly into a
// codepoint/feature union over their referenced segments: that union is
// exactly the "activates on any of these codepoints/features" semantics
// Coverage gives a flat Codepoints list. Conjunctive and Composite need
// real AND semantics, which format-2 can only express across
// ChildIndices (patchmap.Coverage.Conjunctive only governs AND/OR across
// ChildIndices, never across a flat Codepoints union) — so each
// Conjunctive condition gets one ignored, single-segment child entry per
// referenced segment, and each Composite condition points its
// ChildIndices at the entries already built for its referenced
// conditions, honoring Mode. Ignored entries still carry a placeholder
// patch index (spec's entry-index space) so they occupy an addressable
// position in the encoded stream; see syntheticPatchIndexBase.
func buildConditionEntries(conditions []segment.ActivationCondition, segments []*segment.SubsetDefinition) []patchmap.Entry {
	var out []patchmap.Entry
	posOf := make([]int, len(conditions))
	nextSynthetic := syntheticPatchIndexBase(conditions)

	for i, cond := range conditions {
		var cov patchmap.Coverage
		switch cond.Kind {
		case segment.Exclusive, segment.Disjunctive:
			cov = segmentCoverage(segments, cond.Segments)
		case segment.Conjunctive:
			var children []uint32
			for _, segIdx := range cond.Segments {
				out = append(out, patchmap.Entry{
					Coverage:     segmentCoverage(segments, []int{segIdx}),
					PatchIndices: []uint32{nextSynthetic},
					Ignored:      true,
				})
				children = append(children, uint32(len(out)-1))
				nextSynthetic++
			}
			cov = patchmap.Coverage{ChildIndices: children, Conjunctive: true}
		case segment.Composite:
			var children []uint32
			for _, childIdx := range cond.Children {
				if childIdx < 0 || childIdx >= i {
					continue
				}
				children = append(children, uint32(posOf[childIdx]))
			}
			cov = patchmap.Coverage{ChildIndices: children, Conjunctive: cond.Mode == segment.ModeAND}
		}

		out = append(out, patchmap.Entry{
			Coverage:     cov,
			PatchIndices: append([]uint32(nil), cond.PatchIndices...),
			Ignored:      cond.Ignored,
		})
		posOf[i] = len(out) - 1
	}

	return out
}

// segmentCoverage unions the codepoints and feature tags of the named
// segments into one Coverage (OR semantics: any listed codepoint/feature
// activates it).
func segmentCoverage(segments []*segment.SubsetDefinition, indices []int) patchmap.Coverage {
	var cov patchmap.Coverage
	for _, idx := range indices {
		if idx < 0 || idx >= len(segments) {
			continue
		}
		seg := segments[idx]
		cov.Codepoints = append(cov.Codepoints, seg.Codepoints.Values()...)
		for tag := range seg.FeatureTags {
			cov.Features = append(cov.Features, tag)
		}
	}
	return cov
}

// syntheticPatchIndexBase picks a patch-index counter start above every
// real patch id the segmentation activates, for the ignored single-
// segment entries a Conjunctive condition's ChildIndices need but which
// never themselves activate a patch.
func syntheticPatchIndexBase(conditions []segment.ActivationCondition) uint32 {
	var max uint32
	for _, cond := range conditions {
		for _, p := range cond.PatchIndices {
			if p > max {
				max = p
			}
		}
	}
	return max + 1
}

// appendUnmatchedPatchEntries adds an always-selected, empty-Coverage
// entry for any glyph-keyed patch the segmentation's conditions never
// reference (e.g. one the unmapped-glyph handler emitted outside the
// normal attribute/merge path).
func appendUnmatchedPatchEntries(entries []patchmap.Entry, segmentation *segment.GlyphSegmentation, log func(string, ...any)) []patchmap.Entry {
	covered := make(map[uint32]bool)
	for _, e := range entries {
		if e.Ignored {
			continue
		}
		for _, p := range e.PatchIndices {
			covered[p] = true
		}
	}

	var unmatched []uint32
	for patchID := range segmentation.GlyphPatches {
		if !covered[patchID] {
			unmatched = append(unmatched, patchID)
		}
	}
	sort.Slice(unmatched, func(i, j int) bool { return unmatched[i] < unmatched[j] })

	for _, patchID := range unmatched {
		entries = append(entries, patchmap.Entry{PatchIndices: []uint32{patchID}})
		log("encoding: glyph-keyed patch has no matching activation condition", "patch_id", patchID)
	}
	return entries
}

func convertDesignSpace(ds map[uint32]segment.AxisRange) map[uint32]patchmap.AxisRange {
	out := make(map[uint32]patchmap.AxisRange, len(ds))
	for tag, r := range ds {
		out[tag] = patchmap.AxisRange{Start: r.Start, End: r.End}
	}
	return out
}

// buildGlyphKeyedPatchSet instances base to the design-space point ds and
// emits one glyph-keyed patch per segment's glyph payload, all sharing a
// freshly rotated CompatId.
func (c *Compiler) buildGlyphKeyedPatchSet(setIndex int, ds map[uint32]segment.AxisRange, segmentation *segment.GlyphSegmentation) (*glyphKeyedPatchSet, []Patch, error) {
	compatID, err := c.newCompatID()
	if err != nil {
		return nil, nil, err
	}

	point := make(map[uint32]float32, len(ds))
	for tag, r := range ds {
		point[tag] = float32(r.Start)
	}

	var instanced []byte
	if len(point) > 0 {
		instanced, err = c.oracle.Instance(point)
		if err != nil {
			return nil, nil, err
		}
	}

	glyphData, err := c.glyphDataFor(instanced)
	if err != nil {
		return nil, nil, err
	}

	uriTemplate, err := c.uriTemplateFor(setIndex)
	if err != nil {
		return nil, nil, err
	}

	set := &glyphKeyedPatchSet{compatID: compatID, uriTemplate: uriTemplate}
	var patches []Patch

	for patchID, glyphs := range segmentation.GlyphPatches {
		data, err := c.compressGlyphKeyedStream(glyphs.Values(), glyphData, compatID)
		if err != nil {
			return nil, nil, err
		}
		url, err := urlFor(uriTemplate, patchID)
		if err != nil {
			return nil, nil, err
		}
		patches = append(patches, Patch{URL: url, Encoding: patchmap.GlyphKeyed, Data: data})
	}

	return set, patches, nil
}

// glyphDataFor returns a glyphstream.GlyphData over either the compiler's
// source font (fontBytes nil, the un-instanced case) or a freshly-parsed
// instanced font.
func (c *Compiler) glyphDataFor(fontBytes []byte) (glyphstream.GlyphData, error) {
	if len(fontBytes) == 0 {
		return c.oracle.GlyphData()
	}
	font, err := ot.ParseFont(fontBytes, 0)
	if err != nil {
		return nil, err
	}
	return subset.NewOracle(font).GlyphData()
}

func (c *Compiler) compressGlyphKeyedStream(gids []uint32, data glyphstream.GlyphData, compatID patchmap.CompatID) ([]byte, error) {
	wide := false
	for _, g := range gids {
		if g > 0xFFFF {
			wide = true
			break
		}
	}
	stream, err := glyphstream.Build(gids, data, wide)
	if err != nil {
		return nil, err
	}

	var out []byte
	out = append(out, glyphKeyedPatchHeader(compatID, wide)...)

	var buf strings.Builder
	w := brotli.NewWriterLevel(&buf, int(clampQuality(c.opts.quality())))
	if _, err := w.Write(stream); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	out = append(out, buf.String()...)
	return out, nil
}

// glyphKeyedPatchHeader mirrors sizecache's size-estimation header (spec
// §6) but with the real, final CompatId.
func glyphKeyedPatchHeader(compatID patchmap.CompatID, wideGIDs bool) []byte {
	flags := byte(0)
	if wideGIDs {
		flags = 1
	}
	out := make([]byte, 0, 4+4+1+16+4)
	out = append(out, 'i', 'f', 'g', 'k')
	out = append(out, 0, 0, 0, 0)
	out = append(out, flags)
	out = append(out, compatID[:]...)
	out = append(out, 0, 0, 0, 0)
	return out
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
