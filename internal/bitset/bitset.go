// Package bitset implements a bit array for dense indexes.
//
// It backs the field-identity sets used by the dependency analysis and the
// reachability sets used by the graph algorithms. All operations are
// allocation-free except New and Clone.
package bitset

import "math/bits"

const uintSize = 32 << (^uint(0) >> 32 & 1) // 32 or 64

// Set is a bit array for dense indexes in [0, n).
type Set []uint

// New constructs a Set able to hold indexes in [0, n).
func New(n int) Set {
	return make(Set, (n+uintSize-1)/uintSize)
}

// Add sets the bit at index i.
func (s Set) Add(i int) {
	s[i/uintSize] |= 1 << (uint(i) % uintSize)
}

// Remove clears the bit at index i.
func (s Set) Remove(i int) {
	s[i/uintSize] &^= 1 << (uint(i) % uintSize)
}

// Has reports whether the bit at index i is set.
func (s Set) Has(i int) bool {
	return s[i/uintSize]&(1<<(uint(i)%uintSize)) != 0
}

// Union ors every bit of t into s. The two sets must have been created with
// the same capacity.
func (s Set) Union(t Set) {
	for i := range t {
		s[i] |= t[i]
	}
}

// Intersects reports whether s and t share at least one set bit.
func (s Set) Intersects(t Set) bool {
	n := len(s)
	if len(t) < n {
		n = len(t)
	}
	for i := 0; i < n; i++ {
		if s[i]&t[i] != 0 {
			return true
		}
	}
	return false
}

// Intersect returns a new set holding the bits present in both s and t.
func (s Set) Intersect(t Set) Set {
	n := len(s)
	if len(t) < n {
		n = len(t)
	}
	out := make(Set, len(s))
	for i := 0; i < n; i++ {
		out[i] = s[i] & t[i]
	}
	return out
}

// Count returns the number of set bits.
func (s Set) Count() int {
	n := 0
	for _, w := range s {
		n += bits.OnesCount(w)
	}
	return n
}

// Empty reports whether no bit is set.
func (s Set) Empty() bool {
	for _, w := range s {
		if w != 0 {
			return false
		}
	}
	return true
}

// Members returns the set bits in ascending order.
func (s Set) Members() []int {
	out := make([]int, 0, s.Count())
	for i, w := range s {
		for w != 0 {
			b := bits.TrailingZeros(w)
			out = append(out, i*uintSize+b)
			w &^= 1 << uint(b)
		}
	}
	return out
}

// Clone returns an independent copy of s.
func (s Set) Clone() Set {
	out := make(Set, len(s))
	copy(out, s)
	return out
}

// Equal reports whether s and t contain exactly the same bits.
func (s Set) Equal(t Set) bool {
	if len(s) != len(t) {
		return false
	}
	for i := range s {
		if s[i] != t[i] {
			return false
		}
	}
	return true
}

// Reset clears every bit.
func (s Set) Reset() {
	for i := range s {
		s[i] = 0
	}
}
