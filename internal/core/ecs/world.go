package ecs

import (
	"errors"
	"sync/atomic"

	"go.uber.org/zap"
)

// World is the top-level ECS container. It owns the entity pool, the component
// registry, and a deferred command queue for mutations requested by the host
// between frames.
type World struct {
	pool     *EntityPool
	registry *Registry
	pending  *Commands
	log      *zap.Logger

	running  atomic.Bool
	shutdown atomic.Bool
}

// NewWorld creates a world whose pool and stores are pre-sized to capacity.
func NewWorld(capacity int, log *zap.Logger) *World {
	if log == nil {
		log = zap.NewNop()
	}
	w := &World{
		pool:     NewEntityPool(capacity),
		registry: NewRegistry(capacity),
		pending:  NewCommands(),
		log:      log,
	}
	// Components must be gone before the slot's generation moves on.
	w.pool.Subscribe(w.registry.RemoveAll)
	return w
}

func (w *World) Pool() *EntityPool   { return w.pool }
func (w *World) Registry() *Registry { return w.registry }

func (w *World) guard() error {
	if w.shutdown.Load() {
		return ErrEngineShutDown
	}
	if w.running.Load() {
		return ErrFrameRunning
	}
	return nil
}

func (w *World) CreateEntity() (EntityID, error) {
	if err := w.guard(); err != nil {
		return 0, err
	}
	return w.pool.Create()
}

// DestroyEntity removes id and all of its components immediately.
func (w *World) DestroyEntity(id EntityID) error {
	if err := w.guard(); err != nil {
		return err
	}
	return w.pool.Destroy(id)
}

func (w *World) Alive(id EntityID) bool {
	return w.pool.Alive(id)
}

// OnDestroy subscribes fn to entity destruction.
func (w *World) OnDestroy(fn func(EntityID)) {
	w.pool.Subscribe(fn)
}

// MarkForDestruction queues an entity for end-of-frame cleanup.
func (w *World) MarkForDestruction(id EntityID) {
	w.pending.Destroy(id)
}

// Pending returns the host-level command queue flushed after each frame.
func (w *World) Pending() *Commands { return w.pending }

// BeginFrame marks the world as running. Until EndFrame, direct structural
// mutations fail with ErrFrameRunning.
func (w *World) BeginFrame() error {
	if w.shutdown.Load() {
		return ErrEngineShutDown
	}
	w.running.Store(true)
	return nil
}

func (w *World) EndFrame() {
	w.running.Store(false)
}

func (w *World) Running() bool { return w.running.Load() }

// Shutdown rejects every later mutation with ErrEngineShutDown.
func (w *World) Shutdown() {
	w.shutdown.Store(true)
}

func (w *World) IsShutDown() bool { return w.shutdown.Load() }

// ApplyReport summarises one Apply batch.
type ApplyReport struct {
	Applied   int
	Stale     int
	Failed    int
	Discarded int
}

// Apply executes the buffered ops of each Commands in order, then resets them.
// Ops whose target died earlier are skipped; they never abort the batch. After
// shutdown nothing is applied.
func (w *World) Apply(buffers ...*Commands) ApplyReport {
	var rep ApplyReport
	if w.shutdown.Load() {
		for _, c := range buffers {
			rep.Discarded += c.Len()
			c.Reset()
		}
		return rep
	}
	for _, c := range buffers {
		for _, o := range c.ops {
			err := o(w)
			switch {
			case err == nil:
				rep.Applied++
			case errors.Is(err, ErrStaleHandle):
				rep.Stale++
			default:
				rep.Failed++
				w.log.Warn("deferred command failed", zap.Error(err))
			}
		}
		c.Reset()
	}
	if rep.Stale > 0 {
		w.log.Debug("skipped stale deferred commands", zap.Int("count", rep.Stale))
	}
	return rep
}

// Flush applies the host-level pending queue.
func (w *World) Flush() ApplyReport {
	return w.Apply(w.pending)
}

// Insert attaches v to id, registering T's store on first use.
func Insert[T any](w *World, id EntityID, v T) (prev T, replaced bool, err error) {
	if err = w.guard(); err != nil {
		return prev, false, err
	}
	if !w.pool.Alive(id) {
		return prev, false, ErrStaleHandle
	}
	prev, replaced = Register[T](w.registry, 0).Insert(id, v)
	return prev, replaced, nil
}

// Remove detaches T from id and returns the removed value.
func Remove[T any](w *World, id EntityID) (T, bool, error) {
	var zero T
	if err := w.guard(); err != nil {
		return zero, false, err
	}
	if !w.pool.Alive(id) {
		return zero, false, ErrStaleHandle
	}
	s, err := StoreOf[T](w.registry)
	if err != nil {
		return zero, false, err
	}
	v, ok := s.Remove(id)
	return v, ok, nil
}

func Get[T any](w *World, id EntityID) (T, bool) {
	s, err := StoreOf[T](w.registry)
	if err != nil {
		var zero T
		return zero, false
	}
	return s.Get(id)
}

// Mut returns a pointer to id's T for in-place updates.
func Mut[T any](w *World, id EntityID) (*T, bool) {
	s, err := StoreOf[T](w.registry)
	if err != nil {
		return nil, false
	}
	return s.Mut(id)
}

func Has[T any](w *World, id EntityID) bool {
	s, err := StoreOf[T](w.registry)
	if err != nil {
		return false
	}
	return s.Has(id)
}
