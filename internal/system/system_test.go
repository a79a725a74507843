package system

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap/zaptest"

	"github.com/l1jgo/ecsrender/internal/core/ecs"
	"github.com/l1jgo/ecsrender/internal/engine"
	"github.com/l1jgo/ecsrender/internal/render"
	"github.com/l1jgo/ecsrender/internal/render/vertex"
)

var tri = render.GeometryFunc(func(render.MeshHandle) (vertex.Geometry, bool) {
	return vertex.Geometry{
		Version: 1,
		Format:  vertex.FormatColored2D,
		Streams: map[vertex.Semantic][]float32{
			vertex.Position: {0, 0, 1, 0, 0, 1},
			vertex.Color:    make([]float32, 12),
		},
	}, true
})

func newDemoEngine(t *testing.T) (*engine.Engine, *render.Recorder) {
	t.Helper()
	rec := &render.Recorder{}
	e := engine.New(engine.Options{Workers: 4, TickRate: 100 * time.Millisecond}, tri, rec, zaptest.NewLogger(t))
	if err := Register(e); err != nil {
		t.Fatalf("register: %v", err)
	}
	return e, rec
}

func frames(t *testing.T, e *engine.Engine, n int) {
	t.Helper()
	if err := e.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	for i := 0; i < n; i++ {
		if _, err := e.Frame(context.Background()); err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
	}
}

func TestDemoScheduleOrder(t *testing.T) {
	e, _ := newDemoEngine(t)
	if err := e.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	s := e.Scheduler()
	if !s.Ordered("spawner", "motion") || !s.Ordered("motion", "spin") || !s.Ordered("spin", "lifetime") {
		t.Fatalf("unexpected order %v", s.Order())
	}
}

func TestMotionAndSpin(t *testing.T) {
	e, _ := newDemoEngine(t)
	w := e.World()
	id, _ := w.CreateEntity()
	_, _, _ = ecs.Insert(w, id, render.NewTransform(mgl32.Vec3{}))
	_, _, _ = ecs.Insert(w, id, Velocity{Linear: mgl32.Vec3{10, 0, 0}})
	_, _, _ = ecs.Insert(w, id, Spin{Axis: mgl32.Vec3{0, 0, 1}, Rate: math.Pi})

	frames(t, e, 5)

	tr, _ := ecs.Get[render.Transform](w, id)
	if math.Abs(float64(tr.Position().X()-5)) > 1e-4 {
		t.Fatalf("x = %v after 0.5s at 10/s, want 5", tr.Position().X())
	}
	want := mgl32.QuatRotate(math.Pi/2, mgl32.Vec3{0, 0, 1})
	if !tr.Rotation().ApproxEqualThreshold(want, 1e-4) {
		t.Fatalf("rotation %v, want %v", tr.Rotation(), want)
	}
}

func TestSpawnerAndLifetime(t *testing.T) {
	e, rec := newDemoEngine(t)
	w := e.World()
	src, _ := w.CreateEntity()
	_, _, _ = ecs.Insert(w, src, render.NewTransform(mgl32.Vec3{1, 2, 3}))
	_, _, _ = ecs.Insert(w, src, Spawner{
		Every:    100 * time.Millisecond,
		Mesh:     4,
		Material: 2,
		Lifetime: 250 * time.Millisecond,
		Limit:    2,
	})

	frames(t, e, 2)
	if n := w.Pool().Len(); n != 3 {
		t.Fatalf("expected source plus 2 spawned entities, got %d", n)
	}
	last, _ := rec.Last()
	if last.Draws() != 1 || last.Stats.Instances != 2 {
		t.Fatalf("spawned entities not rendered: %+v", last.Stats)
	}

	// The first spawn expires after its third frame, the second one frame later.
	for i := 0; i < 3; i++ {
		if _, err := e.Frame(context.Background()); err != nil {
			t.Fatalf("frame: %v", err)
		}
	}
	if n := w.Pool().Len(); n != 1 {
		t.Fatalf("spawned entities outlived their lifetime, %d alive", n)
	}
}
