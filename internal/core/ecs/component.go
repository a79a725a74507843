package ecs

import (
	"iter"
	"reflect"
)

// Storage is the type-erased capability every component store exposes so the
// Registry and the query engine can treat stores uniformly.
type Storage interface {
	Type() reflect.Type
	Has(id EntityID) bool
	Len() int
	Delete(id EntityID) bool
	Entities() []EntityID
	Clear()
}

// Store is a sparse-set container owning every instance of component T.
// Dense slices hold the values and their owners contiguously; sparse maps an
// entity index to its dense slot + 1 (0 means absent).
type Store[T any] struct {
	dense   []T
	owners  []EntityID
	sparse  []int32
	hint    int
	grown   int
	changed uint64
}

func NewStore[T any](capacity int) *Store[T] {
	if capacity < 0 {
		capacity = 0
	}
	return &Store[T]{
		dense:  make([]T, 0, capacity),
		owners: make([]EntityID, 0, capacity),
		hint:   capacity,
	}
}

func (s *Store[T]) Type() reflect.Type { return reflect.TypeFor[T]() }

func (s *Store[T]) slot(id EntityID) (int, bool) {
	idx := id.Index()
	if int(idx) >= len(s.sparse) {
		return 0, false
	}
	pos := s.sparse[idx] - 1
	if pos < 0 || s.owners[pos] != id {
		return 0, false
	}
	return int(pos), true
}

// Insert stores v for id, returning the replaced value if one was present.
func (s *Store[T]) Insert(id EntityID, v T) (prev T, replaced bool) {
	if pos, ok := s.slot(id); ok {
		prev = s.dense[pos]
		s.dense[pos] = v
		return prev, true
	}
	idx := int(id.Index())
	if idx < len(s.sparse) && s.sparse[idx] > 0 {
		// Slot still held by an older generation of the same index.
		pos := s.sparse[idx] - 1
		s.dense[pos] = v
		s.owners[pos] = id
		s.changed++
		return prev, false
	}
	if idx >= len(s.sparse) {
		grow := idx + 1 - len(s.sparse)
		s.sparse = append(s.sparse, make([]int32, grow)...)
	}
	if len(s.dense) == cap(s.dense) && len(s.dense) >= s.hint {
		s.grown++
	}
	s.dense = append(s.dense, v)
	s.owners = append(s.owners, id)
	s.sparse[idx] = int32(len(s.dense))
	s.changed++
	return prev, false
}

// Remove deletes the component of id by swapping the last dense entry into its slot.
func (s *Store[T]) Remove(id EntityID) (T, bool) {
	var zero T
	pos, ok := s.slot(id)
	if !ok {
		return zero, false
	}
	v := s.dense[pos]
	last := len(s.dense) - 1
	if pos != last {
		moved := s.owners[last]
		s.dense[pos] = s.dense[last]
		s.owners[pos] = moved
		s.sparse[moved.Index()] = int32(pos + 1)
	}
	s.dense[last] = zero
	s.dense = s.dense[:last]
	s.owners = s.owners[:last]
	s.sparse[id.Index()] = 0
	s.changed++
	return v, true
}

func (s *Store[T]) Delete(id EntityID) bool {
	_, ok := s.Remove(id)
	return ok
}

// Get returns a copy of the component of id.
func (s *Store[T]) Get(id EntityID) (T, bool) {
	pos, ok := s.slot(id)
	if !ok {
		var zero T
		return zero, false
	}
	return s.dense[pos], true
}

// Mut returns a pointer into dense storage. The pointer is invalidated by the
// next structural change of this store.
func (s *Store[T]) Mut(id EntityID) (*T, bool) {
	pos, ok := s.slot(id)
	if !ok {
		return nil, false
	}
	return &s.dense[pos], true
}

func (s *Store[T]) Has(id EntityID) bool {
	_, ok := s.slot(id)
	return ok
}

func (s *Store[T]) Len() int { return len(s.dense) }

// All yields every present entry in dense order.
func (s *Store[T]) All() iter.Seq2[EntityID, *T] {
	return func(yield func(EntityID, *T) bool) {
		for i := range s.dense {
			if !yield(s.owners[i], &s.dense[i]) {
				return
			}
		}
	}
}

// Entities returns the dense owner list. Callers must not modify it.
func (s *Store[T]) Entities() []EntityID { return s.owners }

func (s *Store[T]) Clear() {
	var zero T
	for i := range s.dense {
		s.dense[i] = zero
	}
	for _, id := range s.owners {
		s.sparse[id.Index()] = 0
	}
	if len(s.dense) > 0 {
		s.changed++
	}
	s.dense = s.dense[:0]
	s.owners = s.owners[:0]
}

// Grown reports how many times the store outgrew its capacity hint.
func (s *Store[T]) Grown() int { return s.grown }

// Changed is bumped on every insert of a new entry, removal and clear.
func (s *Store[T]) Changed() uint64 { return s.changed }

// View is a read-only handle over a Store, handed to systems that only declare reads.
type View[T any] struct {
	s *Store[T]
}

func ViewOf[T any](s *Store[T]) View[T] { return View[T]{s: s} }

func (v View[T]) Get(id EntityID) (T, bool) { return v.s.Get(id) }
func (v View[T]) Has(id EntityID) bool      { return v.s.Has(id) }
func (v View[T]) Len() int                  { return v.s.Len() }

// All yields copies of every present entry.
func (v View[T]) All() iter.Seq2[EntityID, T] {
	return func(yield func(EntityID, T) bool) {
		for id, c := range v.s.All() {
			if !yield(id, *c) {
				return
			}
		}
	}
}

// Writer is a mutation-only handle over a Store: values can change in place,
// membership cannot. Structural changes go through Commands.
type Writer[T any] struct {
	s *Store[T]
}

func WriterOf[T any](s *Store[T]) Writer[T] { return Writer[T]{s: s} }

func (w Writer[T]) Get(id EntityID) (T, bool)  { return w.s.Get(id) }
func (w Writer[T]) Mut(id EntityID) (*T, bool) { return w.s.Mut(id) }
func (w Writer[T]) Has(id EntityID) bool       { return w.s.Has(id) }
func (w Writer[T]) Len() int                   { return w.s.Len() }

// All yields a pointer to every present entry in dense order.
func (w Writer[T]) All() iter.Seq2[EntityID, *T] { return w.s.All() }
