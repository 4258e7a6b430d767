package value

import "sort"

// Entry is a key/value pair of an ordered map.
type Entry struct {
	Key   Key
	Value Value
}

// Map is an associative container. It is backed either by an owned hash table
// or by a borrowed, insertion-ordered entry slice with a lookup index.
type Map struct {
	hashed  map[Key]Value
	ordered *orderedTable
}

type orderedTable struct {
	entries []Entry
	index   map[Key]int
}

// NewMap builds an owned map that takes ownership of m.
func NewMap(m map[Key]Value) Map {
	if m == nil {
		m = map[Key]Value{}
	}
	return Map{hashed: m}
}

// BorrowMap builds an insertion-ordered map over entries without copying them.
// Later entries win over earlier ones with the same key.
func BorrowMap(entries []Entry) Map {
	t := &orderedTable{
		entries: entries,
		index:   make(map[Key]int, len(entries)),
	}
	for i, e := range entries {
		t.index[e.Key] = i
	}
	return Map{ordered: t}
}

// StringMap builds an owned map from string keys.
func StringMap(m map[string]Value) Map {
	out := make(map[Key]Value, len(m))
	for k, v := range m {
		out[StringKey(k)] = v
	}
	return Map{hashed: out}
}

// Len returns the number of entries.
func (m Map) Len() int {
	if m.ordered != nil {
		return len(m.ordered.index)
	}
	return len(m.hashed)
}

// IsBorrowed reports whether the map is an ordered view over caller entries.
func (m Map) IsBorrowed() bool {
	return m.ordered != nil
}

func (m Map) lookup(k Key) (Value, bool) {
	if m.ordered != nil {
		i, ok := m.ordered.index[k]
		if !ok {
			return nil, false
		}
		return m.ordered.entries[i].Value, true
	}
	v, ok := m.hashed[k]
	return v, ok
}

// Get returns the value stored under k. Int and uint keys holding the same
// number are interchangeable; a string key never matches a numeric lookup.
func (m Map) Get(k Key) (Value, bool) {
	if v, ok := m.lookup(k); ok {
		return v, true
	}
	if alias, ok := k.numericAlias(); ok {
		return m.lookup(alias)
	}
	return nil, false
}

// GetString is a shorthand for Get(StringKey(name)).
func (m Map) GetString(name string) (Value, bool) {
	return m.Get(StringKey(name))
}

// Contains reports whether k is present.
func (m Map) Contains(k Key) bool {
	_, ok := m.Get(k)
	return ok
}

// Range calls fn for each entry until fn returns false. Ordered maps iterate
// in insertion order; hashed maps in key order.
func (m Map) Range(fn func(Key, Value) bool) {
	if m.ordered != nil {
		for i, e := range m.ordered.entries {
			if m.ordered.index[e.Key] != i {
				continue
			}
			if !fn(e.Key, e.Value) {
				return
			}
		}
		return
	}
	for _, k := range m.Keys() {
		if !fn(k, m.hashed[k]) {
			return
		}
	}
}

// Keys returns the keys in iteration order.
func (m Map) Keys() []Key {
	keys := make([]Key, 0, m.Len())
	if m.ordered != nil {
		m.Range(func(k Key, _ Value) bool {
			keys = append(keys, k)
			return true
		})
		return keys
	}
	for k := range m.hashed {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].less(keys[j]) })
	return keys
}

func (Map) Kind() Kind { return KindMap }
func (Map) isValue()   {}

// MapBuilder accumulates entries for a new ordered map.
type MapBuilder struct {
	entries []Entry
	index   map[Key]int
}

// NewMapBuilder creates a builder with room for n entries.
func NewMapBuilder(n int) *MapBuilder {
	return &MapBuilder{
		entries: make([]Entry, 0, n),
		index:   make(map[Key]int, n),
	}
}

// Set stores v under k, replacing any previous value in place.
func (b *MapBuilder) Set(k Key, v Value) {
	if i, ok := b.index[k]; ok {
		b.entries[i].Value = v
		return
	}
	b.index[k] = len(b.entries)
	b.entries = append(b.entries, Entry{Key: k, Value: v})
}

// SetString stores v under a string key.
func (b *MapBuilder) SetString(k string, v Value) {
	b.Set(StringKey(k), v)
}

// Has reports whether k was already set.
func (b *MapBuilder) Has(k Key) bool {
	_, ok := b.index[k]
	return ok
}

// Build returns the map. The builder must not be used afterwards.
func (b *MapBuilder) Build() Map {
	t := &orderedTable{entries: b.entries, index: b.index}
	b.entries, b.index = nil, nil
	return Map{ordered: t}
}
