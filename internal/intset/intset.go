// Package intset provides an ordered set of unsigned integers with the
// union/intersection/difference operations the IFT data model (codepoints,
// glyphs, segment indices, patch ids) needs throughout the compiler.
package intset

import (
	"sort"
	"strconv"
	"strings"
)

// Set is an ascending, deduplicated set of uint32 values.
type Set struct {
	vals []uint32
}

// New creates a Set containing the given values.
func New(vals ...uint32) *Set {
	s := &Set{}
	s.AddAll(vals...)
	return s
}

// Add inserts v into the set.
func (s *Set) Add(v uint32) {
	i := sort.Search(len(s.vals), func(i int) bool { return s.vals[i] >= v })
	if i < len(s.vals) && s.vals[i] == v {
		return
	}
	s.vals = append(s.vals, 0)
	copy(s.vals[i+1:], s.vals[i:])
	s.vals[i] = v
}

// AddAll inserts each value in vals into the set.
func (s *Set) AddAll(vals ...uint32) {
	for _, v := range vals {
		s.Add(v)
	}
}

// Contains reports whether v is a member of the set.
func (s *Set) Contains(v uint32) bool {
	i := sort.Search(len(s.vals), func(i int) bool { return s.vals[i] >= v })
	return i < len(s.vals) && s.vals[i] == v
}

// Len returns the number of elements in the set.
func (s *Set) Len() int {
	return len(s.vals)
}

// Empty reports whether the set has no elements.
func (s *Set) Empty() bool {
	return len(s.vals) == 0
}

// Values returns the set's elements in ascending order. The caller must not
// mutate the returned slice.
func (s *Set) Values() []uint32 {
	return s.vals
}

// Clone returns an independent copy of the set.
func (s *Set) Clone() *Set {
	out := &Set{vals: make([]uint32, len(s.vals))}
	copy(out.vals, s.vals)
	return out
}

// Union returns a new set containing every value in s or other.
func (s *Set) Union(other *Set) *Set {
	out := &Set{vals: make([]uint32, 0, len(s.vals)+len(other.vals))}
	i, j := 0, 0
	for i < len(s.vals) && j < len(other.vals) {
		switch {
		case s.vals[i] < other.vals[j]:
			out.vals = append(out.vals, s.vals[i])
			i++
		case s.vals[i] > other.vals[j]:
			out.vals = append(out.vals, other.vals[j])
			j++
		default:
			out.vals = append(out.vals, s.vals[i])
			i++
			j++
		}
	}
	out.vals = append(out.vals, s.vals[i:]...)
	out.vals = append(out.vals, other.vals[j:]...)
	return out
}

// Intersect returns a new set containing values present in both s and other.
func (s *Set) Intersect(other *Set) *Set {
	out := &Set{}
	i, j := 0, 0
	for i < len(s.vals) && j < len(other.vals) {
		switch {
		case s.vals[i] < other.vals[j]:
			i++
		case s.vals[i] > other.vals[j]:
			j++
		default:
			out.vals = append(out.vals, s.vals[i])
			i++
			j++
		}
	}
	return out
}

// Subtract returns a new set containing values of s that are not in other.
func (s *Set) Subtract(other *Set) *Set {
	out := &Set{}
	i, j := 0, 0
	for i < len(s.vals) {
		if j < len(other.vals) && other.vals[j] < s.vals[i] {
			j++
			continue
		}
		if j < len(other.vals) && other.vals[j] == s.vals[i] {
			i++
			j++
			continue
		}
		out.vals = append(out.vals, s.vals[i])
		i++
	}
	return out
}

// Equals reports whether s and other contain exactly the same values.
func (s *Set) Equals(other *Set) bool {
	if len(s.vals) != len(other.vals) {
		return false
	}
	for i, v := range s.vals {
		if other.vals[i] != v {
			return false
		}
	}
	return true
}

// Intersects reports whether s and other share at least one value.
func (s *Set) Intersects(other *Set) bool {
	i, j := 0, 0
	for i < len(s.vals) && j < len(other.vals) {
		switch {
		case s.vals[i] < other.vals[j]:
			i++
		case s.vals[i] > other.vals[j]:
			j++
		default:
			return true
		}
	}
	return false
}

// String renders the set as a comma-joined list, suitable as a map key or
// for debug output. Two sets with equal contents always render identically.
func (s *Set) String() string {
	parts := make([]string, len(s.vals))
	for i, v := range s.vals {
		parts[i] = strconv.FormatUint(uint64(v), 10)
	}
	return strings.Join(parts, ",")
}

// IsSubsetOf reports whether every value of s is also in other.
func (s *Set) IsSubsetOf(other *Set) bool {
	i, j := 0, 0
	for i < len(s.vals) {
		for j < len(other.vals) && other.vals[j] < s.vals[i] {
			j++
		}
		if j >= len(other.vals) || other.vals[j] != s.vals[i] {
			return false
		}
		i++
	}
	return true
}
