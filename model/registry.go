package model

import "sort"

// Entity is anything stored in a registry
type Entity interface {
	ID() int
	Card() CardType
}

// Registry owns the entities of one class keyed by ID
type Registry[T Entity] struct {
	class Class
	items map[int]T
}

func NewRegistry[T Entity](class Class) *Registry[T] {
	return &Registry[T]{class: class, items: make(map[int]T)}
}

// Class returns the entity class held by the registry
func (r *Registry[T]) Class() Class { return r.class }

// Add inserts e under its ID
func (r *Registry[T]) Add(e T) error {
	if _, found := r.items[e.ID()]; found {
		return &DuplicateIDError{Class: r.class, ID: e.ID()}
	}
	r.items[e.ID()] = e
	return nil
}

// Get returns the entity with the given ID
func (r *Registry[T]) Get(id int) (T, error) {
	e, found := r.items[id]
	if !found {
		var zero T
		return zero, &UnknownIDError{Class: r.class, ID: id}
	}
	return e, nil
}

// Lookup is Get without the error
func (r *Registry[T]) Lookup(id int) (T, bool) {
	e, found := r.items[id]
	return e, found
}

func (r *Registry[T]) Has(id int) bool {
	_, found := r.items[id]
	return found
}

// Remove deletes id. Callers must have established that nothing references it.
func (r *Registry[T]) Remove(id int) {
	delete(r.items, id)
}

func (r *Registry[T]) Len() int { return len(r.items) }

// IDs returns all keys in ascending order
func (r *Registry[T]) IDs() []int {
	ids := make([]int, 0, len(r.items))
	for id := range r.items {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Each visits entities in ascending ID order and stops at the first error
func (r *Registry[T]) Each(fn func(T) error) error {
	for _, id := range r.IDs() {
		if err := fn(r.items[id]); err != nil {
			return err
		}
	}
	return nil
}

// SetRegistry groups cards by set ID. Many cards may share a set ID, so Add appends.
type SetRegistry[T Entity] struct {
	class Class
	sets  map[int][]T
}

func NewSetRegistry[T Entity](class Class) *SetRegistry[T] {
	return &SetRegistry[T]{class: class, sets: make(map[int][]T)}
}

func (r *SetRegistry[T]) Class() Class { return r.class }

func (r *SetRegistry[T]) Add(e T) {
	r.sets[e.ID()] = append(r.sets[e.ID()], e)
}

// Get returns the cards of set sid in insertion order
func (r *SetRegistry[T]) Get(sid int) ([]T, error) {
	cards, found := r.sets[sid]
	if !found {
		return nil, &UnknownIDError{Class: r.class, ID: sid}
	}
	return cards, nil
}

func (r *SetRegistry[T]) Has(sid int) bool {
	_, found := r.sets[sid]
	return found
}

// Len returns the number of cards across all sets
func (r *SetRegistry[T]) Len() int {
	n := 0
	for _, cards := range r.sets {
		n += len(cards)
	}
	return n
}

func (r *SetRegistry[T]) IDs() []int {
	ids := make([]int, 0, len(r.sets))
	for id := range r.sets {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Each visits every card, sets in ascending ID order
func (r *SetRegistry[T]) Each(fn func(T) error) error {
	for _, id := range r.IDs() {
		for _, c := range r.sets[id] {
			if err := fn(c); err != nil {
				return err
			}
		}
	}
	return nil
}
