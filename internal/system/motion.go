package system

import (
	"github.com/l1jgo/ecsrender/internal/core/ecs"
	coresys "github.com/l1jgo/ecsrender/internal/core/system"
	"github.com/l1jgo/ecsrender/internal/render"
)

// MotionSystem integrates Velocity into Transform.
// Phase 2 (Update).
type MotionSystem struct{}

func NewMotionSystem() *MotionSystem { return &MotionSystem{} }

func (s *MotionSystem) Descriptor() coresys.Descriptor {
	return coresys.Descriptor{
		Name:   "motion",
		Phase:  coresys.PhaseUpdate,
		Reads:  ecs.Types(ecs.TypeOf[Velocity]()),
		Writes: ecs.Types(ecs.TypeOf[render.Transform]()),
	}
}

func (s *MotionSystem) Update(ctx *coresys.Context) error {
	vel, err := coresys.Read[Velocity](ctx)
	if err != nil {
		// Nothing has a velocity yet.
		return nil
	}
	tr, err := coresys.Write[render.Transform](ctx)
	if err != nil {
		return nil
	}
	dt := ctx.DeltaSeconds()
	for id, v := range vel.All() {
		if t, ok := tr.Mut(id); ok {
			t.Translate(v.Linear.Mul(dt))
		}
	}
	return nil
}
