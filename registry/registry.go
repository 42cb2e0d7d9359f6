// Package registry provides an explicitly owned name to id table.
//
// A Registry replaces process-wide name/index maps: callers construct one,
// pass it where it is needed, and drop it when done. It also implements
// lmvocab.Enumerator, so registering it with lmvocab.WithEnumerator gives
// reverse lookup (identity to word) for a loaded vocabulary.
//
// Thread Safety:
// - Intern and Add must not run concurrently with any other method
// - ID, Name and Len are safe for concurrent use once population is done
package registry

import (
	"github.com/tamirms/lmvocab"
)

// Registry maps names to dense uint32 ids and back.
type Registry struct {
	ids   map[string]uint32
	names []string
	set   []bool // set[id] is false for ids skipped by Add
}

// New returns an empty registry with room for capacity names.
func New(capacity int) *Registry {
	return &Registry{
		ids:   make(map[string]uint32, capacity),
		names: make([]string, 0, capacity),
		set:   make([]bool, 0, capacity),
	}
}

// Intern returns the id of name, assigning the next free id when name is
// new.
func (r *Registry) Intern(name string) uint32 {
	if id, ok := r.ids[name]; ok {
		return id
	}
	id := uint32(len(r.names))
	r.ids[name] = id
	r.names = append(r.names, name)
	r.set = append(r.set, true)
	return id
}

// ID returns the id of name.
func (r *Registry) ID(name string) (uint32, bool) {
	id, ok := r.ids[name]
	return id, ok
}

// Name returns the name with the given id.
func (r *Registry) Name(id uint32) (string, bool) {
	if int(id) >= len(r.names) || !r.set[id] {
		return "", false
	}
	return r.names[id], true
}

// Len returns one more than the highest id in use.
func (r *Registry) Len() int { return len(r.names) }

// Add records word under the identity a vocabulary assigned it. Identities
// may arrive in any order; gaps stay unnamed until filled.
func (r *Registry) Add(index lmvocab.WordIndex, word []byte) {
	id := uint32(index)
	for uint32(len(r.names)) <= id {
		r.names = append(r.names, "")
		r.set = append(r.set, false)
	}
	name := string(word)
	if r.set[id] {
		if old := r.names[id]; old != name && r.ids[old] == id {
			delete(r.ids, old)
		}
	}
	r.names[id] = name
	r.set[id] = true
	r.ids[name] = id
}

var _ lmvocab.Enumerator = (*Registry)(nil)
