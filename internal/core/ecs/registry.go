package ecs

import (
	"fmt"
	"reflect"
)

// Registry maps component types to their storages and supports bulk cleanup
// on entity destroy.
type Registry struct {
	byType map[reflect.Type]Storage
	stores []Storage
	hint   int
}

func NewRegistry(capacityHint int) *Registry {
	return &Registry{
		byType: make(map[reflect.Type]Storage, 16),
		stores: make([]Storage, 0, 16),
		hint:   capacityHint,
	}
}

// Register returns the store for T, creating it on first use.
// A capacity of 0 or less falls back to the registry's hint.
func Register[T any](r *Registry, capacity int) *Store[T] {
	t := reflect.TypeFor[T]()
	if s, ok := r.byType[t]; ok {
		return s.(*Store[T])
	}
	if capacity <= 0 {
		capacity = r.hint
	}
	s := NewStore[T](capacity)
	r.byType[t] = s
	r.stores = append(r.stores, s)
	return s
}

// StoreOf returns the registered store for T.
func StoreOf[T any](r *Registry) (*Store[T], error) {
	t := reflect.TypeFor[T]()
	s, ok := r.byType[t]
	if !ok {
		return nil, fmt.Errorf("store %s: %w", t, ErrUnknownComponentType)
	}
	return s.(*Store[T]), nil
}

// Lookup returns the storage registered for t.
func (r *Registry) Lookup(t reflect.Type) (Storage, bool) {
	s, ok := r.byType[t]
	return s, ok
}

// RemoveAll clears the given entity from every registered component store.
func (r *Registry) RemoveAll(id EntityID) {
	for _, s := range r.stores {
		s.Delete(id)
	}
}

// Types lists registered component types in registration order.
func (r *Registry) Types() []reflect.Type {
	out := make([]reflect.Type, len(r.stores))
	for i, s := range r.stores {
		out[i] = s.Type()
	}
	return out
}
