package event

import "github.com/l1jgo/ecsrender/internal/core/ecs"

// EntityDestroyed is emitted when a destruction is applied and delivered at
// the start of the next frame.
type EntityDestroyed struct {
	ID ecs.EntityID
}

// FrameCompleted fires after a frame's draw commands were submitted.
type FrameCompleted struct {
	Frame    uint64
	Commands int
	Draws    int
	Applied  int
}

// MeshReloaded fires when the asset layer bumped a mesh's geometry version.
type MeshReloaded struct {
	Mesh uint32
}
