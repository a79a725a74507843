package system

import (
	"github.com/l1jgo/ecsrender/internal/core/ecs"
	coresys "github.com/l1jgo/ecsrender/internal/core/system"
	"github.com/l1jgo/ecsrender/internal/render"
)

// SpawnerSystem emits entities from every Spawner through deferred commands,
// so spawned entities first appear in the next frame.
// Phase 1 (PreUpdate).
type SpawnerSystem struct{}

func NewSpawnerSystem() *SpawnerSystem { return &SpawnerSystem{} }

func (s *SpawnerSystem) Descriptor() coresys.Descriptor {
	return coresys.Descriptor{
		Name:   "spawner",
		Phase:  coresys.PhasePreUpdate,
		Reads:  ecs.Types(ecs.TypeOf[render.Transform]()),
		Writes: ecs.Types(ecs.TypeOf[Spawner]()),
	}
}

func (s *SpawnerSystem) Update(ctx *coresys.Context) error {
	spawners, err := coresys.Write[Spawner](ctx)
	if err != nil {
		return nil
	}
	transforms, err := coresys.Read[render.Transform](ctx)
	if err != nil {
		return nil
	}
	for id, sp := range spawners.All() {
		if sp.Every <= 0 {
			continue
		}
		origin, _ := transforms.Get(id)
		sp.elapsed += ctx.Delta()
		for sp.elapsed >= sp.Every && (sp.Limit == 0 || sp.spawned < sp.Limit) {
			sp.elapsed -= sp.Every
			sp.spawned++
			bundles := []ecs.Bundle{
				ecs.With(render.NewTransform(origin.Position())),
				ecs.With(sp.Mesh),
				ecs.With(sp.Material),
				ecs.With(Velocity{Linear: sp.Velocity}),
			}
			if sp.Lifetime > 0 {
				bundles = append(bundles, ecs.With(Lifetime{Remaining: sp.Lifetime}))
			}
			ctx.Commands().Spawn(bundles...)
		}
	}
	return nil
}

// Register adds the demo systems in their canonical order.
func Register(reg interface{ Register(coresys.System) error }) error {
	for _, s := range []coresys.System{
		NewSpawnerSystem(),
		NewMotionSystem(),
		NewSpinSystem(),
		NewLifetimeSystem(),
	} {
		if err := reg.Register(s); err != nil {
			return err
		}
	}
	return nil
}
