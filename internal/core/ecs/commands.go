package ecs

// Bundle attaches something to a freshly spawned entity.
type Bundle interface {
	attach(w *World, id EntityID)
}

type componentBundle[T any] struct {
	v T
}

func (b componentBundle[T]) attach(w *World, id EntityID) {
	Register[T](w.registry, 0).Insert(id, b.v)
}

// With bundles a component value for Spawn.
func With[T any](v T) Bundle { return componentBundle[T]{v: v} }

type callbackBundle func(*World, EntityID)

func (fn callbackBundle) attach(w *World, id EntityID) { fn(w, id) }

// Then runs fn once the spawned entity and its earlier bundles exist.
func Then(fn func(w *World, id EntityID)) Bundle { return callbackBundle(fn) }

// op is one deferred mutation; it reports ErrStaleHandle when its target died.
type op func(w *World) error

// Commands buffers structural mutations requested while systems run.
// Each system owns its buffer, so recording needs no locking.
type Commands struct {
	ops []op
}

func NewCommands() *Commands {
	return &Commands{}
}

// Spawn queues creation of an entity carrying the given bundles.
func (c *Commands) Spawn(bundles ...Bundle) {
	c.ops = append(c.ops, func(w *World) error {
		id, err := w.pool.Create()
		if err != nil {
			return err
		}
		for _, b := range bundles {
			b.attach(w, id)
		}
		return nil
	})
}

// Destroy queues destruction of id.
func (c *Commands) Destroy(id EntityID) {
	c.ops = append(c.ops, func(w *World) error {
		return w.pool.Destroy(id)
	})
}

// Defer queues an arbitrary function run during apply.
func (c *Commands) Defer(fn func(w *World)) {
	c.ops = append(c.ops, func(w *World) error {
		fn(w)
		return nil
	})
}

// DeferInsert queues insertion of v on id.
func DeferInsert[T any](c *Commands, id EntityID, v T) {
	c.ops = append(c.ops, func(w *World) error {
		if !w.pool.Alive(id) {
			return ErrStaleHandle
		}
		Register[T](w.registry, 0).Insert(id, v)
		return nil
	})
}

// DeferRemove queues removal of component T from id.
func DeferRemove[T any](c *Commands, id EntityID) {
	c.ops = append(c.ops, func(w *World) error {
		if !w.pool.Alive(id) {
			return ErrStaleHandle
		}
		if s, ok := w.registry.byType[TypeOf[T]()]; ok {
			s.Delete(id)
		}
		return nil
	})
}

func (c *Commands) Len() int { return len(c.ops) }

// Reset drops all queued ops.
func (c *Commands) Reset() {
	clear(c.ops)
	c.ops = c.ops[:0]
}
