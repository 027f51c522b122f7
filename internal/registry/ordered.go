// Package registry holds the keyed, insertion-ordered collections used for
// every object set in the daemon (handles, mappings, proxies, clients).
package registry

// Ordered is a map that remembers insertion order. Lookups are O(1);
// removal is O(n) in the number of entries.
//
// Keys and Values return snapshots, so callers may delete entries while
// iterating over the returned slice.
type Ordered[K comparable, V any] struct {
	index map[K]V
	order []K
}

// New returns an empty Ordered map.
func New[K comparable, V any]() *Ordered[K, V] {
	return &Ordered[K, V]{index: make(map[K]V)}
}

// Get returns the value stored for key.
func (o *Ordered[K, V]) Get(key K) (V, bool) {
	v, ok := o.index[key]
	return v, ok
}

// Has reports whether key is present.
func (o *Ordered[K, V]) Has(key K) bool {
	_, ok := o.index[key]
	return ok
}

// Set stores value under key. An existing key keeps its position.
func (o *Ordered[K, V]) Set(key K, value V) {
	if o.index == nil {
		o.index = make(map[K]V)
	}
	if _, ok := o.index[key]; !ok {
		o.order = append(o.order, key)
	}
	o.index[key] = value
}

// Delete removes key and reports whether it was present.
func (o *Ordered[K, V]) Delete(key K) bool {
	if _, ok := o.index[key]; !ok {
		return false
	}
	delete(o.index, key)
	for i, k := range o.order {
		if k == key {
			o.order = append(o.order[:i:i], o.order[i+1:]...)
			break
		}
	}
	return true
}

// Len returns the number of entries.
func (o *Ordered[K, V]) Len() int {
	return len(o.order)
}

// Keys returns the keys in insertion order.
func (o *Ordered[K, V]) Keys() []K {
	out := make([]K, len(o.order))
	copy(out, o.order)
	return out
}

// Values returns the values in insertion order.
func (o *Ordered[K, V]) Values() []V {
	out := make([]V, 0, len(o.order))
	for _, k := range o.order {
		out = append(out, o.index[k])
	}
	return out
}

// Find returns the first value, in insertion order, for which match is true.
func (o *Ordered[K, V]) Find(match func(V) bool) (V, bool) {
	for _, k := range o.order {
		v := o.index[k]
		if match(v) {
			return v, true
		}
	}
	var zero V
	return zero, false
}
