package system

import (
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/l1jgo/ecsrender/internal/render"
)

// Velocity moves an entity's transform every frame, in units per second.
type Velocity struct {
	Linear mgl32.Vec3
}

// Spin rotates an entity around Axis at Rate radians per second.
type Spin struct {
	Axis mgl32.Vec3
	Rate float32
}

// Lifetime destroys its entity once Remaining runs out.
type Lifetime struct {
	Remaining time.Duration
}

// Spawner periodically emits short-lived renderable entities at its own
// position.
type Spawner struct {
	Every    time.Duration
	Mesh     render.MeshHandle
	Material render.MaterialHandle
	Velocity mgl32.Vec3
	Lifetime time.Duration
	Limit    int // stop after this many spawns; 0 = unbounded

	elapsed time.Duration
	spawned int
}
