package event

import (
	"reflect"
	"sync"
)

// queue holds one event type's buffers and subscribers.
type queue struct {
	front    []any
	back     []any
	handlers []func(any)
}

// Bus is a double-buffered event bus. Events emitted in frame N are readable
// in frame N+1. SwapBuffers() is called when the next frame is scheduled.
type Bus struct {
	mu     sync.Mutex // guards queues, handler lists and back buffers
	queues map[reflect.Type]*queue
	order  []*queue // first-emitted or first-subscribed order
}

func NewBus() *Bus {
	return &Bus{queues: make(map[reflect.Type]*queue)}
}

func (b *Bus) queueFor(t reflect.Type) *queue {
	q, ok := b.queues[t]
	if !ok {
		q = &queue{}
		b.queues[t] = q
		b.order = append(b.order, q)
	}
	return q
}

// Emit queues an event into the back buffer (will be readable next frame).
// Safe to call from any goroutine.
func Emit[T any](b *Bus, event T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	q := b.queueFor(reflect.TypeFor[T]())
	q.back = append(q.back, event)
}

// Subscribe registers a typed handler for events of type T.
func Subscribe[T any](b *Bus, fn func(T)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	q := b.queueFor(reflect.TypeFor[T]())
	q.handlers = append(q.handlers, func(ev any) { fn(ev.(T)) })
}

// SwapBuffers rotates back→front and clears the new back buffer.
// Called once per frame, before any system runs.
func (b *Bus) SwapBuffers() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, q := range b.order {
		q.front, q.back = q.back, q.front[:0]
	}
}

// DispatchAll delivers all front-buffer events to their subscribed handlers,
// one event type at a time. Handlers may Emit; those events land in the back
// buffer.
func (b *Bus) DispatchAll() {
	b.mu.Lock()
	queues := append([]*queue(nil), b.order...)
	b.mu.Unlock()
	for _, q := range queues {
		if len(q.front) == 0 {
			continue
		}
		b.mu.Lock()
		handlers := append([]func(any)(nil), q.handlers...)
		b.mu.Unlock()
		for _, ev := range q.front {
			for _, h := range handlers {
				h(ev)
			}
		}
	}
}

// Pending reports how many events of type T wait in the back buffer.
func Pending[T any](b *Bus) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if q, ok := b.queues[reflect.TypeFor[T]()]; ok {
		return len(q.back)
	}
	return 0
}
