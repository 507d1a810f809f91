package sync

import "github.com/rjrsync/rjrsync/internal/rrpath"

// ActionMap is an insertion-ordered map keyed by a root-relative path. It
// exists because the order entries are deleted in matters (children before
// parents), so a plain Go map -- with its randomized iteration order -- is
// unusable for the to-delete list.
//
// Grounded directly on original_source's ordered_map.rs: removing an entry
// doesn't shuffle the backing slice, it just drops the key from the index;
// Iterate skips indices whose key has since been removed. This trades a
// small amount of wasted slice space for O(1) removal instead of an
// O(n) slice splice.
type ActionMap[V any] struct {
	keys    []rrpath.Path
	indexed map[rrpath.Path]struct{}
	values  map[rrpath.Path]V
}

// NewActionMap constructs an empty ActionMap.
func NewActionMap[V any]() *ActionMap[V] {
	return &ActionMap[V]{indexed: make(map[rrpath.Path]struct{}), values: make(map[rrpath.Path]V)}
}

// Add appends a new key/value pair. The caller is responsible for not
// adding a key that's already present; Update exists for that case.
func (m *ActionMap[V]) Add(key rrpath.Path, value V) {
	if _, indexed := m.indexed[key]; !indexed {
		m.indexed[key] = struct{}{}
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

// Update replaces the value for an existing key without affecting its
// position.
func (m *ActionMap[V]) Update(key rrpath.Path, value V) {
	m.values[key] = value
}

// Remove drops key from the map. The backing slice keeps its entry as a
// tombstone, skipped by Iterate.
func (m *ActionMap[V]) Remove(key rrpath.Path) {
	delete(m.values, key)
}

// Lookup returns the value for key and whether it's present.
func (m *ActionMap[V]) Lookup(key rrpath.Path) (V, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Len reports the number of live entries.
func (m *ActionMap[V]) Len() int {
	return len(m.values)
}

// ReverseOrder reverses the iteration order, used on the to-delete map so
// that files are deleted before their parent folder.
func (m *ActionMap[V]) ReverseOrder() {
	for i, j := 0, len(m.keys)-1; i < j; i, j = i+1, j-1 {
		m.keys[i], m.keys[j] = m.keys[j], m.keys[i]
	}
}

// Iterate calls fn for every live entry, in insertion order (or reverse
// insertion order, after ReverseOrder).
func (m *ActionMap[V]) Iterate(fn func(key rrpath.Path, value V)) {
	for _, key := range m.keys {
		if v, ok := m.values[key]; ok {
			fn(key, v)
		}
	}
}
