// Package engine wires the ECS world, the system scheduler, the event bus and
// the render bridge into one frame loop.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/l1jgo/ecsrender/internal/core/ecs"
	"github.com/l1jgo/ecsrender/internal/core/event"
	"github.com/l1jgo/ecsrender/internal/core/system"
	"github.com/l1jgo/ecsrender/internal/render"
	"github.com/l1jgo/ecsrender/internal/render/vertex"
)

var (
	ErrNotStarted     = errors.New("engine: not started")
	ErrNoCamera       = errors.New("engine: no camera entity")
	ErrAlreadyStarted = errors.New("engine: already started")
)

// Options are the engine startup parameters.
type Options struct {
	Workers         int // 0 = GOMAXPROCS
	InitialCapacity int
	TickRate        time.Duration
	MaxFrames       uint64 // Run stops after this many frames; 0 = unbounded
	ExcludeHidden   bool
	CameraRequired  bool
}

// FrameResult summarises one Frame call.
type FrameResult struct {
	Number  uint64
	Systems system.FrameReport
	Render  render.Stats
	Draws   int
}

type Engine struct {
	opts    Options
	world   *ecs.World
	sched   *system.Scheduler
	bus     *event.Bus
	bridge  *render.Bridge
	backend render.Backend
	log     *zap.Logger

	started bool
	frames  uint64
}

func New(opts Options, geometry render.GeometrySource, backend render.Backend, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.TickRate <= 0 {
		opts.TickRate = 16 * time.Millisecond
	}
	w := ecs.NewWorld(opts.InitialCapacity, log.Named("ecs"))
	render.RegisterComponents(w)

	e := &Engine{
		opts:    opts,
		world:   w,
		sched:   system.NewScheduler(w, opts.Workers, log.Named("scheduler")),
		bus:     event.NewBus(),
		bridge:  render.NewBridge(geometry, vertex.NewCache(), render.Options{ExcludeHidden: opts.ExcludeHidden}, log.Named("render")),
		backend: backend,
		log:     log,
	}
	w.OnDestroy(func(id ecs.EntityID) {
		event.Emit(e.bus, event.EntityDestroyed{ID: id})
	})
	// Events of frame N reach subscribers before any system of frame N+1.
	e.sched.OnScheduled(func(uint64) {
		e.bus.SwapBuffers()
		e.bus.DispatchAll()
	})
	return e
}

func (e *Engine) World() *ecs.World            { return e.world }
func (e *Engine) Bus() *event.Bus              { return e.bus }
func (e *Engine) Scheduler() *system.Scheduler { return e.sched }
func (e *Engine) Bridge() *render.Bridge       { return e.bridge }
func (e *Engine) Frames() uint64               { return e.frames }
func (e *Engine) Options() Options             { return e.opts }

// Register adds a system; it must be called before Start.
func (e *Engine) Register(sys system.System) error {
	if e.started {
		return ErrAlreadyStarted
	}
	return e.sched.Register(sys)
}

// Start seals the schedule. Configuration errors found here keep the engine
// from running at all.
func (e *Engine) Start() error {
	if e.started {
		return ErrAlreadyStarted
	}
	if err := e.sched.Seal(); err != nil {
		return fmt.Errorf("seal schedule: %w", err)
	}
	if e.opts.CameraRequired {
		cams, err := ecs.StoreOf[render.Camera](e.world.Registry())
		if err != nil || cams.Len() == 0 {
			return ErrNoCamera
		}
	}
	e.started = true
	e.log.Info("engine started",
		zap.Int("systems", e.sched.Len()),
		zap.Int("workers", e.sched.Workers()),
		zap.Duration("tick_rate", e.opts.TickRate))
	return nil
}

// Frame runs one tick, builds the render frame and submits it. System and
// geometry errors are returned joined, but the frame is still committed and
// submitted. A cancelled ctx, or a tick that failed before its systems ran,
// returns without building or submitting anything.
func (e *Engine) Frame(ctx context.Context) (FrameResult, error) {
	if !e.started {
		return FrameResult{}, ErrNotStarted
	}
	rep, runErr := e.sched.Tick(ctx, e.opts.TickRate)
	if err := ctx.Err(); err != nil {
		return FrameResult{Systems: rep}, err
	}
	if !systemFailures(runErr) {
		return FrameResult{Systems: rep}, runErr
	}

	f, buildErr := e.bridge.Build(e.world)
	f.Number = rep.Frame
	if err := e.backend.Submit(ctx, f); err != nil {
		return FrameResult{Systems: rep}, fmt.Errorf("submit frame %d: %w", f.Number, err)
	}
	e.frames++
	res := FrameResult{Number: rep.Frame, Systems: rep, Render: f.Stats, Draws: f.Draws()}
	event.Emit(e.bus, event.FrameCompleted{
		Frame:    rep.Frame,
		Commands: len(f.Commands),
		Draws:    res.Draws,
		Applied:  rep.Apply.Applied,
	})
	return res, errors.Join(runErr, buildErr)
}

// systemFailures reports whether err is nil or made only of *system.RunError.
func systemFailures(err error) bool {
	if err == nil {
		return true
	}
	var errs []error
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		errs = j.Unwrap()
	} else {
		errs = []error{err}
	}
	for _, e := range errs {
		var re *system.RunError
		if !errors.As(e, &re) {
			return false
		}
	}
	return true
}

// Run ticks at the configured rate until ctx is done or MaxFrames frames ran.
// Per-frame errors are logged and do not stop the loop.
func (e *Engine) Run(ctx context.Context) error {
	if !e.started {
		if err := e.Start(); err != nil {
			return err
		}
	}
	ticker := time.NewTicker(e.opts.TickRate)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			res, err := e.Frame(ctx)
			switch {
			case ctx.Err() != nil:
				return nil
			case errors.Is(err, ecs.ErrEngineShutDown):
				return err
			case err != nil:
				e.log.Warn("frame finished with errors", zap.Uint64("frame", res.Number), zap.Error(err))
			}
			if e.opts.MaxFrames > 0 && e.frames >= e.opts.MaxFrames {
				e.log.Info("frame limit reached", zap.Uint64("frames", e.frames))
				return nil
			}
		}
	}
}

// MeshesReloaded drops cached buffers of the given meshes and announces the
// change to subscribers on the next frame.
func (e *Engine) MeshesReloaded(meshes []render.MeshHandle) {
	for _, m := range meshes {
		e.bridge.Cache().Evict(uint32(m))
		event.Emit(e.bus, event.MeshReloaded{Mesh: uint32(m)})
	}
}

// Shutdown rejects every later mutation with ErrEngineShutDown.
func (e *Engine) Shutdown() {
	e.world.Shutdown()
	e.log.Info("engine stopped", zap.Uint64("frames", e.frames))
}
