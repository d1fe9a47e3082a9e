package hlir

// OrderedMap is a key-to-entry container that preserves insertion order.
//
// The HLIR keeps tables, actions and fields in declaration order because the
// dependency builder derives deterministic node numbering from iteration
// order. Re-inserting an existing key replaces the value but keeps the
// original position, which is exactly the merge rule for supplementary
// primitive definitions.
type OrderedMap[V any] struct {
	keys  []string
	index map[string]int
	vals  []V
}

// NewOrderedMap creates an empty OrderedMap.
func NewOrderedMap[V any]() *OrderedMap[V] {
	return &OrderedMap[V]{index: make(map[string]int)}
}

// Put inserts or replaces the entry for key. The insertion position of an
// existing key is preserved.
func (m *OrderedMap[V]) Put(key string, v V) {
	if i, ok := m.index[key]; ok {
		m.vals[i] = v
		return
	}
	m.index[key] = len(m.keys)
	m.keys = append(m.keys, key)
	m.vals = append(m.vals, v)
}

// Get returns the entry for key.
func (m *OrderedMap[V]) Get(key string) (V, bool) {
	if i, ok := m.index[key]; ok {
		return m.vals[i], true
	}
	var zero V
	return zero, false
}

// Has reports whether key is present.
func (m *OrderedMap[V]) Has(key string) bool {
	_, ok := m.index[key]
	return ok
}

// Len returns the number of entries.
func (m *OrderedMap[V]) Len() int {
	return len(m.keys)
}

// Keys returns the keys in insertion order. The slice is shared; callers
// must not modify it.
func (m *OrderedMap[V]) Keys() []string {
	return m.keys
}

// Values returns the values in insertion order. The slice is shared; callers
// must not modify it.
func (m *OrderedMap[V]) Values() []V {
	return m.vals
}

// At returns the i-th entry in insertion order.
func (m *OrderedMap[V]) At(i int) (string, V) {
	return m.keys[i], m.vals[i]
}
