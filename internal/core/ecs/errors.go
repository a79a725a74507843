package ecs

import "errors"

var (
	// ErrStaleHandle reports an entity whose generation no longer matches its slot.
	ErrStaleHandle = errors.New("ecs: stale entity handle")

	// ErrUnknownComponentType reports a component type with no registered storage.
	ErrUnknownComponentType = errors.New("ecs: unknown component type")

	// ErrCapacityExceeded reports that the entity index space is exhausted.
	// Component storages never return it; they grow instead.
	ErrCapacityExceeded = errors.New("ecs: capacity exceeded")

	// ErrEngineShutDown rejects mutations requested after shutdown began.
	ErrEngineShutDown = errors.New("ecs: engine shut down")

	// ErrFrameRunning rejects direct structural mutation while systems are running.
	// Use a Commands buffer instead.
	ErrFrameRunning = errors.New("ecs: structural change while frame is running")
)
