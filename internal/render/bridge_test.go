package render

import (
	"context"
	"errors"
	"slices"
	"strconv"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/l1jgo/ecsrender/internal/core/ecs"
	"github.com/l1jgo/ecsrender/internal/render/vertex"
)

const (
	meshM1 MeshHandle = 1
	meshM2 MeshHandle = 2
	meshM3 MeshHandle = 3 // never supplied

	matA MaterialHandle = 10
	matB MaterialHandle = 11
)

func triangle() vertex.Geometry {
	return vertex.Geometry{
		Version: 1,
		Format:  vertex.FormatColored2D,
		Streams: map[vertex.Semantic][]float32{
			vertex.Position: {0, 0, 1, 0, 0, 1},
			vertex.Color:    {1, 0, 0, 1, 0, 1, 0, 1, 0, 0, 1, 1},
		},
		Indices: []uint32{0, 1, 2},
	}
}

var testGeometry = GeometryFunc(func(m MeshHandle) (vertex.Geometry, bool) {
	if m == meshM3 {
		return vertex.Geometry{}, false
	}
	return triangle(), true
})

func newTestWorld(t *testing.T) *ecs.World {
	t.Helper()
	w := ecs.NewWorld(0, zaptest.NewLogger(t))
	RegisterComponents(w)
	return w
}

func spawn(t *testing.T, w *ecs.World, mesh MeshHandle, mat MaterialHandle) ecs.EntityID {
	t.Helper()
	id, err := w.CreateEntity()
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	_, _, _ = ecs.Insert(w, id, NewTransform(mgl32.Vec3{float32(id.Index()), 0, 0}))
	_, _, _ = ecs.Insert(w, id, mesh)
	_, _, _ = ecs.Insert(w, id, mat)
	return id
}

func ops(f Frame) []string {
	out := make([]string, len(f.Commands))
	for i, c := range f.Commands {
		switch c := c.(type) {
		case SetView:
			out[i] = "view"
		case BindMaterial:
			out[i] = "mat" + strconv.Itoa(int(c.Material))
		case BindVertexBuffer:
			out[i] = "vb" + strconv.Itoa(int(c.Mesh))
		case Draw:
			out[i] = "draw" + strconv.Itoa(c.InstanceCount)
		}
	}
	return out
}

func draws(f Frame) []Draw {
	var out []Draw
	for _, c := range f.Commands {
		if d, ok := c.(Draw); ok {
			out = append(out, d)
		}
	}
	return out
}

func TestBridgeGroupsAndSkipsRedundantBinds(t *testing.T) {
	w := newTestWorld(t)
	spawn(t, w, meshM1, matA)
	spawn(t, w, meshM1, matA)
	spawn(t, w, meshM2, matA)

	b := NewBridge(testGeometry, nil, Options{ExcludeHidden: true}, zaptest.NewLogger(t))
	f, err := b.Build(w)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	want := []string{"mat10", "vb1", "draw2", "vb2", "draw1"}
	if got := ops(f); !slices.Equal(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	if f.Stats.SkippedBinds != 1 || f.Draws() != 2 {
		t.Fatalf("unexpected stats %+v", f.Stats)
	}
}

func TestBridgeOrdersGroupsByEarliestMember(t *testing.T) {
	w := newTestWorld(t)
	first := spawn(t, w, meshM2, matB)
	spawn(t, w, meshM1, matA)
	second := spawn(t, w, meshM2, matB)

	// Recycle first's index; the new entity must sort after the others.
	_ = w.DestroyEntity(first)
	newest := spawn(t, w, meshM2, matB)

	b := NewBridge(testGeometry, nil, Options{}, nil)
	f, err := b.Build(w)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	want := []string{"mat10", "vb1", "draw1", "mat11", "vb2", "draw2"}
	if got := ops(f); !slices.Equal(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	d := draws(f)[1]
	wantFirst, _ := ecs.Get[Transform](w, second)
	wantLast, _ := ecs.Get[Transform](w, newest)
	if d.Transforms.Data[0] != wantFirst.Matrix() || d.Transforms.Data[1] != wantLast.Matrix() {
		t.Fatalf("instances not in birth order")
	}
}

func TestBridgeUploadsOnlyChangedGroups(t *testing.T) {
	w := newTestWorld(t)
	spawn(t, w, meshM1, matA)
	e2 := spawn(t, w, meshM1, matA)
	e3 := spawn(t, w, meshM2, matA)
	b := NewBridge(testGeometry, nil, Options{}, nil)

	uploads := func() []bool {
		t.Helper()
		f, err := b.Build(w)
		if err != nil {
			t.Fatalf("build: %v", err)
		}
		var out []bool
		for _, d := range draws(f) {
			out = append(out, d.Transforms.Upload)
		}
		return out
	}

	if got := uploads(); !slices.Equal(got, []bool{true, true}) {
		t.Fatalf("first frame must upload everything, got %v", got)
	}
	if got := uploads(); !slices.Equal(got, []bool{false, false}) {
		t.Fatalf("static frame must not upload, got %v", got)
	}
	if tr, _ := ecs.Mut[Transform](w, e3); tr != nil {
		tr.Translate(mgl32.Vec3{0, 1, 0})
	}
	if got := uploads(); !slices.Equal(got, []bool{false, true}) {
		t.Fatalf("only the moved entity's group uploads, got %v", got)
	}
	if tr, _ := ecs.Get[Transform](w, e3); tr.Dirty() {
		t.Fatalf("dirty flag not cleared after build")
	}

	_ = w.DestroyEntity(e2)
	f, _ := b.Build(w)
	d := draws(f)[0]
	if !d.Transforms.Upload || d.InstanceCount != 1 {
		t.Fatalf("membership change must upload, got %+v", d)
	}
}

func TestBridgeUploadsWhenTransformReplaced(t *testing.T) {
	w := newTestWorld(t)
	id := spawn(t, w, meshM1, matA)
	b := NewBridge(testGeometry, nil, Options{}, nil)
	if _, err := b.Build(w); err != nil {
		t.Fatalf("build: %v", err)
	}

	// A clean value copied over the stored one never went through a setter.
	moved := NewTransform(mgl32.Vec3{42, 0, 0})
	moved.dirty = false
	tr, _ := ecs.Mut[Transform](w, id)
	*tr = moved

	f, _ := b.Build(w)
	d := draws(f)[0]
	if !d.Transforms.Upload || d.Transforms.Ref.Version != 2 {
		t.Fatalf("changed matrix must upload, got %+v", d.Transforms.Ref)
	}
	if col := d.Transforms.Data[0].Col(3); col != (mgl32.Vec4{42, 0, 0, 1}) {
		t.Fatalf("translation column = %v", col)
	}
	f, _ = b.Build(w)
	if draws(f)[0].Transforms.Upload {
		t.Fatalf("unchanged matrices must not upload again")
	}
}

func TestBridgeDirtyDoesNotReorder(t *testing.T) {
	w := newTestWorld(t)
	spawn(t, w, meshM1, matA)
	late := spawn(t, w, meshM2, matB)
	b := NewBridge(testGeometry, nil, Options{}, nil)
	before, _ := b.Build(w)
	tr, _ := ecs.Mut[Transform](w, late)
	tr.SetScale(mgl32.Vec3{2, 2, 2})
	after, _ := b.Build(w)
	if !slices.Equal(ops(before), ops(after)) {
		t.Fatalf("dirtiness changed the order: %v vs %v", ops(before), ops(after))
	}
}

func TestBridgeHidden(t *testing.T) {
	cases := []struct {
		name    string
		exclude bool
		want    []string
	}{
		{"excluded", true, []string{"mat10", "vb1", "draw1"}},
		{"included", false, []string{"mat10", "vb1", "draw2"}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			w := newTestWorld(t)
			hidden := spawn(t, w, meshM1, matA)
			spawn(t, w, meshM1, matA)
			_, _, _ = ecs.Insert(w, hidden, Hidden{})

			f, err := NewBridge(testGeometry, nil, Options{ExcludeHidden: c.exclude}, nil).Build(w)
			if err != nil {
				t.Fatalf("build: %v", err)
			}
			if got := ops(f); !slices.Equal(got, c.want) {
				t.Fatalf("got %v, want %v", got, c.want)
			}
		})
	}
}

func TestBridgeCameraLeadsFrame(t *testing.T) {
	w := newTestWorld(t)
	spawn(t, w, meshM1, matA)
	cam, _ := w.CreateEntity()
	c := Camera{Eye: mgl32.Vec3{0, 0, 5}, Up: mgl32.Vec3{0, 1, 0}}
	p := Perspective{FovY: mgl32.DegToRad(60), Aspect: 1, Near: 1, Far: 50}
	_, _, _ = ecs.Insert(w, cam, c)
	_, _, _ = ecs.Insert(w, cam, p)

	f, _ := NewBridge(testGeometry, nil, Options{}, nil).Build(w)
	v, ok := f.Commands[0].(SetView)
	if !ok {
		t.Fatalf("first command is %v, want SetView", f.Commands[0])
	}
	if v.View != mgl32.LookAtV(c.Eye, c.Center, c.Up) || v.Projection != p.Matrix() {
		t.Fatalf("camera matrices not forwarded")
	}
}

func TestBridgeMissingGeometrySkipsGroup(t *testing.T) {
	w := newTestWorld(t)
	spawn(t, w, meshM3, matB)
	spawn(t, w, meshM1, matA)

	f, err := NewBridge(testGeometry, nil, Options{}, nil).Build(w)
	if !errors.Is(err, ErrMissingGeometry) {
		t.Fatalf("expected ErrMissingGeometry, got %v", err)
	}
	if got := ops(f); !slices.Equal(got, []string{"mat10", "vb1", "draw1"}) {
		t.Fatalf("remaining groups must still be drawn, got %v", got)
	}
	if f.Stats.MissingMeshes != 1 {
		t.Fatalf("unexpected stats %+v", f.Stats)
	}
}

func TestBridgeReusesVertexBuffers(t *testing.T) {
	w := newTestWorld(t)
	spawn(t, w, meshM1, matA)
	cache := vertex.NewCache()
	b := NewBridge(testGeometry, cache, Options{}, nil)
	f1, _ := b.Build(w)
	f2, _ := b.Build(w)
	r1 := f1.Commands[1].(BindVertexBuffer).Ref
	r2 := f2.Commands[1].(BindVertexBuffer).Ref
	if r1 != r2 {
		t.Fatalf("static geometry rebuilt: %v -> %v", r1, r2)
	}
	if st := cache.Stats(); st.Builds != 1 || st.Hits != 1 {
		t.Fatalf("unexpected cache stats %+v", st)
	}
}

func TestEmptyWorldBuildsEmptyFrame(t *testing.T) {
	w := ecs.NewWorld(0, nil)
	f, err := NewBridge(testGeometry, nil, Options{ExcludeHidden: true}, nil).Build(w)
	if err != nil || len(f.Commands) != 0 {
		t.Fatalf("got %v commands, err %v", len(f.Commands), err)
	}
}

func TestTransformMatrix(t *testing.T) {
	tr := NewTransform(mgl32.Vec3{1, 2, 3})
	tr.SetScale(mgl32.Vec3{2, 2, 2})
	tr.SetRotation(mgl32.QuatRotate(mgl32.DegToRad(90), mgl32.Vec3{0, 0, 1}))
	got := tr.Matrix().Mul4x1(mgl32.Vec4{1, 0, 0, 1})
	want := mgl32.Vec4{1, 4, 3, 1}
	if !got.ApproxEqualThreshold(want, 1e-5) {
		t.Fatalf("T*R*S applied to x axis = %v, want %v", got, want)
	}
}

func TestBackends(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	lb := NewLogBackend(zap.New(core), true)
	rec := &Recorder{}
	f := Frame{Number: 3, Commands: []Command{BindMaterial{Material: matA}}}
	for _, be := range []Backend{lb, rec} {
		if err := be.Submit(context.Background(), f); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}
	if logs.FilterMessage("frame submitted").Len() != 1 || logs.FilterMessage("command").Len() != 1 {
		t.Fatalf("unexpected log entries: %d", logs.Len())
	}
	if last, ok := rec.Last(); !ok || last.Number != 3 {
		t.Fatalf("recorder lost the frame")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := lb.Submit(ctx, f); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}
