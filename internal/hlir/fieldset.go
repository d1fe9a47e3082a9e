package hlir

import "github.com/p4analysis/p4deps/internal/bitset"

// FieldID is a dense index into a Program's field arena.
type FieldID int

// FieldSet is a set of field identities. Overlap reasoning between action
// write sets and table read sets is plain set intersection; the set carries
// no ordering strength, only identity.
type FieldSet struct {
	bits bitset.Set
}

// NewFieldSet returns an empty set sized for a program with n fields.
func NewFieldSet(n int) FieldSet {
	return FieldSet{bits: bitset.New(n)}
}

// Add inserts a field.
func (s FieldSet) Add(id FieldID) {
	s.bits.Add(int(id))
}

// Has reports membership.
func (s FieldSet) Has(id FieldID) bool {
	return s.bits.Has(int(id))
}

// Union adds every field of t to s.
func (s FieldSet) Union(t FieldSet) {
	s.bits.Union(t.bits)
}

// Intersects reports whether the two sets share a field. This is the
// may-overlap predicate: a dependency exists between a writer and a reader
// iff their sets intersect.
func (s FieldSet) Intersects(t FieldSet) bool {
	return s.bits.Intersects(t.bits)
}

// Intersect returns the fields present in both sets.
func (s FieldSet) Intersect(t FieldSet) FieldSet {
	return FieldSet{bits: s.bits.Intersect(t.bits)}
}

// Members returns the field IDs in ascending order.
func (s FieldSet) Members() []FieldID {
	raw := s.bits.Members()
	out := make([]FieldID, len(raw))
	for i, v := range raw {
		out[i] = FieldID(v)
	}
	return out
}

// Empty reports whether the set has no members.
func (s FieldSet) Empty() bool {
	return s.bits.Empty()
}

// Len returns the number of members.
func (s FieldSet) Len() int {
	return s.bits.Count()
}

// Clone returns an independent copy.
func (s FieldSet) Clone() FieldSet {
	return FieldSet{bits: s.bits.Clone()}
}

// Equal reports whether both sets contain exactly the same fields.
func (s FieldSet) Equal(t FieldSet) bool {
	return s.bits.Equal(t.bits)
}
