package system

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"slices"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/l1jgo/ecsrender/internal/core/ecs"
)

// State is the scheduler's frame lifecycle.
type State int32

const (
	StateIdle      State = iota
	StateScheduled       // plan fixed, next-frame hooks running
	StateRunning         // system bodies executing
	StateComplete        // deferred mutations applied
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScheduled:
		return "scheduled"
	case StateRunning:
		return "running"
	case StateComplete:
		return "complete"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// FrameReport summarises one Tick.
type FrameReport struct {
	Frame    uint64
	Ran      int
	Failed   int
	Commands int // deferred ops recorded by systems
	Apply    ecs.ApplyReport
	Duration time.Duration
}

// Scheduler orders systems by their declared access and runs independent ones
// concurrently on a bounded set of workers.
type Scheduler struct {
	world   *ecs.World
	log     *zap.Logger
	workers int

	nodes  []*node
	byName map[string]int
	plan   *plan
	sealed bool

	hooks []func(frame uint64)
	state atomic.Int32
	frame uint64
}

// NewScheduler creates a scheduler over w. workers < 1 means GOMAXPROCS.
func NewScheduler(w *ecs.World, workers int, log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	if workers < 1 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Scheduler{
		world:   w,
		log:     log,
		workers: workers,
		byName:  make(map[string]int),
		plan:    &plan{},
	}
}

func (s *Scheduler) Workers() int  { return s.workers }
func (s *Scheduler) Len() int      { return len(s.nodes) }
func (s *Scheduler) Frame() uint64 { return s.frame }
func (s *Scheduler) State() State  { return State(s.state.Load()) }

// Register adds sys. A registration that would close a dependency cycle is
// rejected and leaves the plan unchanged.
func (s *Scheduler) Register(sys System) error {
	if s.sealed {
		return ErrSealed
	}
	d := sys.Descriptor()
	if d.Name == "" {
		return errors.New("system: descriptor without name")
	}
	if _, dup := s.byName[d.Name]; dup {
		return fmt.Errorf("%w: %s", ErrDuplicateSystem, d.Name)
	}

	n := newNode(sys, len(s.nodes))
	nodes := append(slices.Clip(s.nodes), n)
	byName := make(map[string]int, len(nodes))
	for k, v := range s.byName {
		byName[k] = v
	}
	byName[d.Name] = n.index

	p, err := buildPlan(nodes, byName, false)
	if err != nil {
		return err
	}
	n.ctx = newContext(s.world, n, s.log)
	s.nodes, s.byName, s.plan = nodes, byName, p
	s.log.Debug("system registered",
		zap.String("system", d.Name),
		zap.Stringer("phase", d.Phase),
		zap.Int("reads", len(n.reads)),
		zap.Int("writes", len(n.writes)))
	return nil
}

// Seal validates every ordering hint and freezes registration. Tick seals
// implicitly.
func (s *Scheduler) Seal() error {
	if s.sealed {
		return nil
	}
	p, err := buildPlan(s.nodes, s.byName, true)
	if err != nil {
		return err
	}
	s.plan = p
	s.sealed = true
	s.log.Info("system schedule sealed",
		zap.Int("systems", len(s.nodes)),
		zap.Strings("order", s.Order()),
		zap.Int("workers", s.workers))
	return nil
}

// OnScheduled registers fn to run at the start of every frame, before any
// system body. The event bus swaps its buffers here.
func (s *Scheduler) OnScheduled(fn func(frame uint64)) {
	s.hooks = append(s.hooks, fn)
}

// Order returns system names in deterministic execution order.
func (s *Scheduler) Order() []string {
	out := make([]string, 0, len(s.plan.order))
	for _, i := range s.plan.order {
		out = append(out, s.nodes[i].desc.Name)
	}
	return out
}

// Ordered reports whether system a is guaranteed to complete before b starts.
func (s *Scheduler) Ordered(a, b string) bool {
	i, ok := s.byName[a]
	if !ok {
		return false
	}
	j, ok := s.byName[b]
	if !ok {
		return false
	}
	return s.plan.reaches(i, j)
}

// DependsOn reports whether a has a direct edge from b, so b must finish
// before a starts.
func (s *Scheduler) DependsOn(a, b string) bool {
	i, ok := s.byName[a]
	if !ok {
		return false
	}
	j, ok := s.byName[b]
	if !ok {
		return false
	}
	return slices.Contains(s.plan.preds[i], j)
}

// Tick runs one full frame.
func (s *Scheduler) Tick(ctx context.Context, dt time.Duration) (FrameReport, error) {
	return s.tick(ctx, dt, func(*node) bool { return true })
}

// TickPhase runs one frame restricted to the systems of a single phase.
func (s *Scheduler) TickPhase(ctx context.Context, phase Phase, dt time.Duration) (FrameReport, error) {
	return s.tick(ctx, dt, func(n *node) bool { return n.desc.Phase == phase })
}

func (s *Scheduler) tick(ctx context.Context, dt time.Duration, include func(*node) bool) (FrameReport, error) {
	if err := s.Seal(); err != nil {
		return FrameReport{}, err
	}
	if !s.state.CompareAndSwap(int32(StateIdle), int32(StateScheduled)) &&
		!s.state.CompareAndSwap(int32(StateComplete), int32(StateScheduled)) {
		return FrameReport{}, ecs.ErrFrameRunning
	}
	start := time.Now()
	s.frame++
	rep := FrameReport{Frame: s.frame}

	for _, h := range s.hooks {
		h(s.frame)
	}

	if err := s.world.BeginFrame(); err != nil {
		s.state.Store(int32(StateIdle))
		return rep, err
	}
	s.state.Store(int32(StateRunning))

	members := make([]bool, len(s.nodes))
	for i, n := range s.nodes {
		members[i] = include(n)
	}
	errs := s.dispatch(ctx, members, dt)
	s.world.EndFrame()

	if err := ctx.Err(); err != nil {
		n := 0
		for i, nd := range s.nodes {
			if members[i] {
				n += nd.ctx.cmds.Len()
				nd.ctx.cmds.Reset()
			}
		}
		s.state.Store(int32(StateIdle))
		s.log.Warn("frame cancelled, deferred commands discarded",
			zap.Uint64("frame", s.frame), zap.Int("discarded", n))
		return rep, err
	}

	buffers := make([]*ecs.Commands, 0, len(s.nodes)+1)
	for _, i := range s.plan.order {
		if !members[i] {
			continue
		}
		nd := s.nodes[i]
		nd.cmds = nd.ctx.cmds.Len()
		rep.Commands += nd.cmds
		rep.Ran++
		buffers = append(buffers, nd.ctx.cmds)
	}
	buffers = append(buffers, s.world.Pending())
	rep.Apply = s.world.Apply(buffers...)
	s.state.Store(int32(StateComplete))

	var failed []error
	for _, i := range s.plan.order {
		if errs[i] != nil {
			failed = append(failed, errs[i])
			s.log.Error("system failed", zap.Uint64("frame", s.frame), zap.Error(errs[i]))
		}
	}
	rep.Failed = len(failed)
	rep.Duration = time.Since(start)
	return rep, errors.Join(failed...)
}

// dispatch releases each member system once all of its member predecessors
// finished. The group's limit caps concurrent bodies at s.workers. In-flight
// bodies are always awaited; after cancellation nothing new starts, including
// bodies still waiting for a worker slot.
func (s *Scheduler) dispatch(ctx context.Context, members []bool, dt time.Duration) []error {
	p := s.plan
	n := len(s.nodes)
	indeg := make([]int, n)
	total := 0
	var ready []int
	for _, i := range p.order {
		if !members[i] {
			continue
		}
		total++
		for _, u := range p.preds[i] {
			if members[u] {
				indeg[i]++
			}
		}
		if indeg[i] == 0 {
			ready = append(ready, i)
		}
	}

	errs := make([]error, n)
	done := make(chan int, total)
	var g errgroup.Group
	g.SetLimit(s.workers)
	inflight, finished := 0, 0
	for finished < total {
		for len(ready) > 0 && ctx.Err() == nil {
			i := ready[0]
			ready = ready[1:]
			inflight++
			g.Go(func() error {
				defer func() { done <- i }()
				if ctx.Err() != nil {
					return nil
				}
				errs[i] = s.run(ctx, s.nodes[i], dt)
				return errs[i]
			})
		}
		if inflight == 0 {
			break
		}
		i := <-done
		inflight--
		finished++
		for _, j := range p.succs[i] {
			if !members[j] {
				continue
			}
			indeg[j]--
			if indeg[j] == 0 {
				pos, _ := slices.BinarySearchFunc(ready, j, func(a, b int) int { return p.rank[a] - p.rank[b] })
				ready = slices.Insert(ready, pos, j)
			}
		}
	}
	if err := g.Wait(); err != nil {
		s.log.Debug("frame had failing systems", zap.Uint64("frame", s.frame), zap.NamedError("first", err))
	}
	return errs
}

func (s *Scheduler) run(ctx context.Context, n *node, dt time.Duration) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &RunError{System: n.desc.Name, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	c := n.ctx
	c.ctx, c.dt, c.frame = ctx, dt, s.frame
	if e := n.sys.Update(c); e != nil {
		return &RunError{System: n.desc.Name, Err: e}
	}
	return nil
}
