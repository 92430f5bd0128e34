package encoding

import (
	"fmt"

	"github.com/boxesandglue/ift/urltemplate"
)

// uriTemplateFor builds the URI template byte sequence for a patch set
// allocated at position setIndex (spec §4.6.6), via Options.URITemplateFunc
// if the caller supplied one, or a "patch_<n>/<ID32>" default otherwise.
func (c *Compiler) uriTemplateFor(setIndex int) ([]byte, error) {
	if c.opts.URITemplateFunc != nil {
		return c.opts.URITemplateFunc(setIndex)
	}
	return defaultURITemplate(setIndex)
}

func defaultURITemplate(setIndex int) ([]byte, error) {
	prefix, err := urltemplate.Literal(fmt.Sprintf("patch_%d/", setIndex))
	if err != nil {
		return nil, err
	}
	out := append([]byte(nil), prefix...)
	out = append(out, urltemplate.ID32)
	return out, nil
}

// urlFor expands template for the given patch id (spec §4.6.6).
func urlFor(template []byte, patchID uint32) (string, error) {
	return urltemplate.Expand(template, patchID)
}
