package system

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/l1jgo/ecsrender/internal/core/ecs"
	coresys "github.com/l1jgo/ecsrender/internal/core/system"
	"github.com/l1jgo/ecsrender/internal/render"
)

// SpinSystem applies Spin to Transform rotation.
// Phase 2 (Update), ordered after motion since both write Transform.
type SpinSystem struct{}

func NewSpinSystem() *SpinSystem { return &SpinSystem{} }

func (s *SpinSystem) Descriptor() coresys.Descriptor {
	return coresys.Descriptor{
		Name:   "spin",
		Phase:  coresys.PhaseUpdate,
		Reads:  ecs.Types(ecs.TypeOf[Spin]()),
		Writes: ecs.Types(ecs.TypeOf[render.Transform]()),
	}
}

func (s *SpinSystem) Update(ctx *coresys.Context) error {
	spins, err := coresys.Read[Spin](ctx)
	if err != nil {
		return nil
	}
	tr, err := coresys.Write[render.Transform](ctx)
	if err != nil {
		return nil
	}
	dt := ctx.DeltaSeconds()
	for id, sp := range spins.All() {
		t, ok := tr.Mut(id)
		if !ok || sp.Rate == 0 || sp.Axis.Len() == 0 {
			continue
		}
		t.Rotate(mgl32.QuatRotate(sp.Rate*dt, sp.Axis.Normalize()))
	}
	return nil
}
