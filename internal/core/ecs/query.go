package ecs

import (
	"fmt"
	"iter"
	"reflect"
)

// TypeOf returns the component type key for T.
func TypeOf[T any]() reflect.Type { return reflect.TypeFor[T]() }

// Types is shorthand for building a type list.
func Types(ts ...reflect.Type) []reflect.Type { return ts }

// Filter describes which component types an entity must and must not hold.
type Filter struct {
	Required []reflect.Type
	Excluded []reflect.Type
}

// Query is a resolved filter. It holds store references, never results, so
// every call to Entities re-evaluates against the current storage population.
type Query struct {
	pool     *EntityPool
	required []Storage
	excluded []Storage
}

// Query resolves f against the world's storages. Unregistered excluded types
// cannot be present on any entity and are dropped.
func (w *World) Query(f Filter) (*Query, error) {
	q := &Query{
		pool:     w.pool,
		required: make([]Storage, 0, len(f.Required)),
		excluded: make([]Storage, 0, len(f.Excluded)),
	}
	for _, t := range f.Required {
		s, ok := w.registry.Lookup(t)
		if !ok {
			return nil, fmt.Errorf("query %s: %w", t, ErrUnknownComponentType)
		}
		q.required = append(q.required, s)
	}
	for _, t := range f.Excluded {
		if s, ok := w.registry.Lookup(t); ok {
			q.excluded = append(q.excluded, s)
		}
	}
	return q, nil
}

// driver returns the index of the smallest required store.
func (q *Query) driver() int {
	best := 0
	for i := 1; i < len(q.required); i++ {
		if q.required[i].Len() < q.required[best].Len() {
			best = i
		}
	}
	return best
}

func (q *Query) accepts(id EntityID, skip int) bool {
	for i, s := range q.required {
		if i != skip && !s.Has(id) {
			return false
		}
	}
	for _, s := range q.excluded {
		if s.Has(id) {
			return false
		}
	}
	return true
}

// Entities yields every entity holding all required and none of the excluded
// types. The smallest required store drives iteration; with no required types
// the live entity set does.
func (q *Query) Entities() iter.Seq[EntityID] {
	return func(yield func(EntityID) bool) {
		if len(q.required) == 0 {
			for id := range q.pool.All() {
				if q.accepts(id, -1) && !yield(id) {
					return
				}
			}
			return
		}
		d := q.driver()
		for _, id := range q.required[d].Entities() {
			if q.accepts(id, d) && !yield(id) {
				return
			}
		}
	}
}

// Collect materialises the current result set.
func (q *Query) Collect() []EntityID {
	var out []EntityID
	for id := range q.Entities() {
		out = append(out, id)
	}
	return out
}

func (q *Query) Count() int {
	n := 0
	for range q.Entities() {
		n++
	}
	return n
}

// Each2 iterates over entities that have both component A and B.
// It iterates over the smaller store and checks the larger one.
func Each2[A, B any](sa *Store[A], sb *Store[B], fn func(EntityID, *A, *B)) {
	if sa.Len() <= sb.Len() {
		for id, a := range sa.All() {
			if b, ok := sb.Mut(id); ok {
				fn(id, a, b)
			}
		}
		return
	}
	for id, b := range sb.All() {
		if a, ok := sa.Mut(id); ok {
			fn(id, a, b)
		}
	}
}

// Each3 iterates over entities that have components A, B, and C.
func Each3[A, B, C any](sa *Store[A], sb *Store[B], sc *Store[C], fn func(EntityID, *A, *B, *C)) {
	switch {
	case sa.Len() <= sb.Len() && sa.Len() <= sc.Len():
		for id, a := range sa.All() {
			b, okb := sb.Mut(id)
			c, okc := sc.Mut(id)
			if okb && okc {
				fn(id, a, b, c)
			}
		}
	case sb.Len() <= sc.Len():
		for id, b := range sb.All() {
			a, oka := sa.Mut(id)
			c, okc := sc.Mut(id)
			if oka && okc {
				fn(id, a, b, c)
			}
		}
	default:
		for id, c := range sc.All() {
			a, oka := sa.Mut(id)
			b, okb := sb.Mut(id)
			if oka && okb {
				fn(id, a, b, c)
			}
		}
	}
}
