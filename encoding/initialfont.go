package encoding

import (
	"github.com/boxesandglue/ift/ot"
	"github.com/boxesandglue/ift/patchmap"
	"github.com/boxesandglue/ift/subset"
)

// emitInitialFont rebuilds the initial font, inserting the table-keyed
// IFT table and, in mixed mode, the glyph-keyed IFTX table, preserving
// the source face's original table order and appending the new tables
// at the end (spec §4.6.5).
func (c *Compiler) emitInitialFont(initialFontBytes []byte, iftTable, iftxTable *patchmap.Table) ([]byte, error) {
	font, err := ot.ParseFont(initialFontBytes, 0)
	if err != nil {
		return nil, err
	}

	b := subset.NewFontBuilder()
	order := font.TableTags()
	for _, tag := range order {
		data, err := font.TableData(tag)
		if err != nil {
			return nil, err
		}
		b.AddTable(tag, data)
	}

	newOrder := append([]ot.Tag(nil), order...)

	if iftTable != nil && len(iftTable.Entries) > 0 {
		iftBytes, err := patchmap.EncodeTable(iftTable)
		if err != nil {
			return nil, err
		}
		iftTag := tagFromString(patchmap.TagIFT)
		b.AddTable(iftTag, iftBytes)
		newOrder = append(newOrder, iftTag)
	}

	if iftxTable != nil && len(iftxTable.Entries) > 0 {
		iftxBytes, err := patchmap.EncodeTable(iftxTable)
		if err != nil {
			return nil, err
		}
		iftxTag := tagFromString(patchmap.TagIFTX)
		b.AddTable(iftxTag, iftxBytes)
		newOrder = append(newOrder, iftxTag)
	}

	b.SetTableOrder(newOrder)
	return b.Build()
}

func tagFromString(s string) ot.Tag {
	return ot.MakeTag(s[0], s[1], s[2], s[3])
}
