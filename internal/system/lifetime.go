package system

import (
	"go.uber.org/zap"

	"github.com/l1jgo/ecsrender/internal/core/ecs"
	coresys "github.com/l1jgo/ecsrender/internal/core/system"
)

// LifetimeSystem counts down Lifetime and queues destruction of expired
// entities. Destruction applies when the frame completes.
// Phase 4 (Cleanup).
type LifetimeSystem struct{}

func NewLifetimeSystem() *LifetimeSystem { return &LifetimeSystem{} }

func (s *LifetimeSystem) Descriptor() coresys.Descriptor {
	return coresys.Descriptor{
		Name:   "lifetime",
		Phase:  coresys.PhaseCleanup,
		Writes: ecs.Types(ecs.TypeOf[Lifetime]()),
	}
}

func (s *LifetimeSystem) Update(ctx *coresys.Context) error {
	lt, err := coresys.Write[Lifetime](ctx)
	if err != nil {
		return nil
	}
	expired := 0
	for id, l := range lt.All() {
		l.Remaining -= ctx.Delta()
		if l.Remaining <= 0 {
			ctx.Commands().Destroy(id)
			expired++
		}
	}
	if expired > 0 {
		ctx.Logger().Debug("entities expired", zap.Int("count", expired), zap.Uint64("frame", ctx.Frame()))
	}
	return nil
}
