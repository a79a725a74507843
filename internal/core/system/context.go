package system

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"go.uber.org/zap"

	"github.com/l1jgo/ecsrender/internal/core/ecs"
)

// Context is handed to a system body for one frame. Each system owns its own
// Context and Commands buffer, so recording deferred mutations needs no lock.
type Context struct {
	ctx   context.Context
	world *ecs.World
	cmds  *ecs.Commands
	log   *zap.Logger
	dt    time.Duration
	frame uint64

	reads  map[reflect.Type]bool
	writes map[reflect.Type]bool
}

func newContext(w *ecs.World, n *node, log *zap.Logger) *Context {
	return &Context{
		world:  w,
		cmds:   ecs.NewCommands(),
		log:    log.With(zap.String("system", n.desc.Name)),
		reads:  n.reads,
		writes: n.writes,
	}
}

func (c *Context) World() *ecs.World        { return c.world }
func (c *Context) Commands() *ecs.Commands  { return c.cmds }
func (c *Context) Delta() time.Duration     { return c.dt }
func (c *Context) Frame() uint64            { return c.frame }
func (c *Context) Logger() *zap.Logger      { return c.log }
func (c *Context) Context() context.Context { return c.ctx }

// DeltaSeconds is Delta as float32 seconds, the unit transforms integrate in.
func (c *Context) DeltaSeconds() float32 { return float32(c.dt.Seconds()) }

// Query builds a query over the world. Every required or excluded type must
// appear in the system's Reads or Writes.
func (c *Context) Query(f ecs.Filter) (*ecs.Query, error) {
	for _, t := range f.Required {
		if !c.reads[t] && !c.writes[t] {
			return nil, fmt.Errorf("%w: query requires %v", ErrUndeclaredAccess, t)
		}
	}
	for _, t := range f.Excluded {
		if !c.reads[t] && !c.writes[t] {
			return nil, fmt.Errorf("%w: query excludes %v", ErrUndeclaredAccess, t)
		}
	}
	return c.world.Query(f)
}

// Read returns a read-only view of T. T must appear in the system's Reads or
// Writes.
func Read[T any](c *Context) (ecs.View[T], error) {
	t := ecs.TypeOf[T]()
	if !c.reads[t] && !c.writes[t] {
		return ecs.View[T]{}, fmt.Errorf("%w: read of %v", ErrUndeclaredAccess, t)
	}
	s, err := ecs.StoreOf[T](c.world.Registry())
	if err != nil {
		return ecs.View[T]{}, err
	}
	return ecs.ViewOf(s), nil
}

// Write returns a handle for in-place mutation of T. T must appear in Writes.
// Inserts and removals of T are deferred through Commands.
func Write[T any](c *Context) (ecs.Writer[T], error) {
	t := ecs.TypeOf[T]()
	if !c.writes[t] {
		return ecs.Writer[T]{}, fmt.Errorf("%w: write of %v", ErrUndeclaredAccess, t)
	}
	s, err := ecs.StoreOf[T](c.world.Registry())
	if err != nil {
		return ecs.Writer[T]{}, err
	}
	return ecs.WriterOf(s), nil
}
