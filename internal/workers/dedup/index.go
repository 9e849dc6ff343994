// Package dedup tracks the canonical keys present in the registry.
package dedup

// Index is a set of canonical keys. It is derived state owned by the hub and
// is not safe for concurrent use; the hub mutates it only from its own loop.
type Index struct {
	keys map[string]struct{}
}

// New creates an empty index with room for size keys.
func New(size int) *Index {
	return &Index{keys: make(map[string]struct{}, size)}
}

// Contains reports whether key is present.
func (i *Index) Contains(key string) bool {
	_, ok := i.keys[key]
	return ok
}

// Insert adds key. It returns false if key was already present.
func (i *Index) Insert(key string) bool {
	if _, ok := i.keys[key]; ok {
		return false
	}
	i.keys[key] = struct{}{}
	return true
}

// Remove deletes key. It returns false if key was absent.
func (i *Index) Remove(key string) bool {
	if _, ok := i.keys[key]; !ok {
		return false
	}
	delete(i.keys, key)
	return true
}

// Clear removes every key.
func (i *Index) Clear() {
	clear(i.keys)
}

// Len returns the number of keys.
func (i *Index) Len() int {
	return len(i.keys)
}
