package encoding

import (
	"github.com/boxesandglue/ift/patchmap"
	"github.com/boxesandglue/ift/subset"
)

// buildTableKeyedPatches computes, for every jump in graph, the brotli-
// compressed copy/insert diff from the jump's base font snapshot to its
// end font snapshot (spec §4.6.4), classifying each as TABLE_KEYED_FULL
// when the jump crosses a design-space boundary (the glyph-keyed state
// must be invalidated by rotating CompatId) or TABLE_KEYED_PARTIAL
// otherwise. It returns the patches plus the IFT table describing them.
func (c *Compiler) buildTableKeyedPatches(graph *jumpGraph) ([]Patch, *patchmap.Table, error) {
	startBytes := graph.initialFontBytes

	var patches []Patch
	var entries []patchmap.Entry
	uriTemplate, err := c.uriTemplateFor(0)
	if err != nil {
		return nil, nil, err
	}
	compatID, err := c.newCompatID()
	if err != nil {
		return nil, nil, err
	}

	for i, jump := range graph.jumps {
		patchID := uint32(i)
		endDef := jump.combined(graph.segments)
		endBytes, err := c.oracle.Produce(endDef.Codepoints.Values(), endDef.Glyphs.Values(), endDef.SortedFeatureTags(), subset.ProducePreserveGlyphIDs)
		if err != nil {
			return nil, nil, err
		}

		enc := patchmap.TableKeyedPartial
		if jump.CrossesDesignSpace {
			enc = patchmap.TableKeyedFull
		}

		ops := diffAgainstDictionary(startBytes, endBytes)
		compressed, err := c.compressDiff(ops)
		if err != nil {
			return nil, nil, err
		}

		url, err := urlFor(uriTemplate, patchID)
		if err != nil {
			return nil, nil, err
		}
		patches = append(patches, Patch{URL: url, Encoding: enc, Data: compressed})

		cov := patchmap.Coverage{
			Codepoints: jump.Base.Codepoints.Values(),
		}
		entries = append(entries, patchmap.Entry{
			Coverage:     cov,
			Encoding:     enc,
			PatchIndices: []uint32{patchID},
		})
	}

	table := &patchmap.Table{
		ID:              compatID,
		DefaultEncoding: patchmap.TableKeyedPartial,
		URITemplate:     string(uriTemplate),
		Entries:         entries,
	}
	return patches, table, nil
}
