package segment

import "github.com/boxesandglue/ift/internal/intset"

// Oracle is the subset closure function the segmenter queries (spec C1,
// exposed here as an interface so the segmenter never depends on a
// concrete font library). Implementations are expected to be deterministic
// and pure over their underlying font.
type Oracle interface {
	// Closure returns the glyph ids reachable given codepoints, explicit
	// glyph ids, and active feature tags.
	Closure(codepoints, gids, features []uint32) (*intset.Set, error)
}

// SizeEstimator estimates the compressed byte size of a glyph-keyed patch
// carrying the given glyph ids (spec C3).
type SizeEstimator interface {
	SizeOf(gids []uint32, quality uint32) (int, error)
}

// memoOracle wraps an Oracle with memoization keyed by the input subset,
// per spec §4.1 ("The segmenter memoizes closure results keyed by the
// input subset").
type memoOracle struct {
	inner Oracle
	cache map[string]*intset.Set
}

func newMemoOracle(inner Oracle) *memoOracle {
	return &memoOracle{inner: inner, cache: make(map[string]*intset.Set)}
}

func (m *memoOracle) Closure(codepoints, gids, features []uint32) (*intset.Set, error) {
	k := closureKey(codepoints, gids, features)
	if v, ok := m.cache[k]; ok {
		return v.Clone(), nil
	}
	result, err := m.inner.Closure(codepoints, gids, features)
	if err != nil {
		return nil, err
	}
	m.cache[k] = result.Clone()
	return result, nil
}

func closureKey(codepoints, gids, features []uint32) string {
	return intset.New(codepoints...).String() + "|" + intset.New(gids...).String() + "|" + intset.New(features...).String()
}
