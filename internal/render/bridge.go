package render

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/l1jgo/ecsrender/internal/core/ecs"
	"github.com/l1jgo/ecsrender/internal/render/vertex"
)

// ErrMissingGeometry is joined into Build's error for every mesh the
// geometry source cannot supply.
var ErrMissingGeometry = errors.New("render: missing geometry")

// GeometrySource is the asset layer as seen by the bridge.
type GeometrySource interface {
	Geometry(mesh MeshHandle) (vertex.Geometry, bool)
}

// GeometryFunc adapts a function to GeometrySource.
type GeometryFunc func(MeshHandle) (vertex.Geometry, bool)

func (f GeometryFunc) Geometry(m MeshHandle) (vertex.Geometry, bool) { return f(m) }

type Options struct {
	// ExcludeHidden drops entities carrying Hidden from the render query.
	ExcludeHidden bool
}

type groupKey struct {
	mesh     MeshHandle
	material MaterialHandle
}

// groupState remembers what was last uploaded for a group: its member handles
// in draw order, their matrices and the transform buffer version.
type groupState struct {
	members []ecs.EntityID
	data    []mgl32.Mat4
	version uint64
	frame   uint64
}

type group struct {
	key     groupKey
	members []ecs.EntityID
	first   uint64 // birth serial of the earliest member
}

// Bridge builds render frames from the world. It keeps handles and caches
// only; entity state is always read back from the world.
type Bridge struct {
	source GeometrySource
	cache  *vertex.Cache
	opts   Options
	log    *zap.Logger

	groups map[groupKey]*groupState
	frame  uint64
}

func NewBridge(source GeometrySource, cache *vertex.Cache, opts Options, log *zap.Logger) *Bridge {
	if log == nil {
		log = zap.NewNop()
	}
	if cache == nil {
		cache = vertex.NewCache()
	}
	return &Bridge{
		source: source,
		cache:  cache,
		opts:   opts,
		log:    log,
		groups: make(map[groupKey]*groupState),
	}
}

func (b *Bridge) Cache() *vertex.Cache { return b.cache }

// RegisterComponents makes sure every render store exists so an empty world
// still builds.
func RegisterComponents(w *ecs.World) {
	r := w.Registry()
	ecs.Register[Transform](r, 0)
	ecs.Register[MeshHandle](r, 0)
	ecs.Register[MaterialHandle](r, 0)
	ecs.Register[Hidden](r, 0)
	ecs.Register[Camera](r, 0)
	ecs.Register[Perspective](r, 0)
}

// Build must run between frames, after deferred mutations were applied. It
// clears the dirty flag of every transform it emits.
func (b *Bridge) Build(w *ecs.World) (Frame, error) {
	b.frame++
	f := Frame{Number: b.frame}
	if v, ok := b.view(w); ok {
		f.Commands = append(f.Commands, v)
	}

	transforms, err := ecs.StoreOf[Transform](w.Registry())
	if err != nil {
		return f, nil
	}
	meshes, err := ecs.StoreOf[MeshHandle](w.Registry())
	if err != nil {
		return f, nil
	}
	materials, err := ecs.StoreOf[MaterialHandle](w.Registry())
	if err != nil {
		return f, nil
	}
	filter := ecs.Filter{Required: ecs.Types(
		ecs.TypeOf[Transform](), ecs.TypeOf[MeshHandle](), ecs.TypeOf[MaterialHandle]())}
	if b.opts.ExcludeHidden {
		filter.Excluded = ecs.Types(ecs.TypeOf[Hidden]())
	}
	q, err := w.Query(filter)
	if err != nil {
		return f, err
	}

	groups := b.collect(w, q, meshes, materials)

	var errs []error
	lastMaterial, lastMesh := MaterialHandle(0), MeshHandle(0)
	bound := false
	for _, g := range groups {
		geo, ok := b.source.Geometry(g.key.mesh)
		if !ok {
			f.Stats.MissingMeshes++
			errs = append(errs, fmt.Errorf("%w: mesh %d", ErrMissingGeometry, g.key.mesh))
			continue
		}
		buf, err := b.cache.GetOrBuild(uint32(g.key.mesh), geo)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		if !bound || g.key.material != lastMaterial {
			f.Commands = append(f.Commands, BindMaterial{Material: g.key.material})
		} else {
			f.Stats.SkippedBinds++
		}
		if !bound || g.key.mesh != lastMesh {
			f.Commands = append(f.Commands, BindVertexBuffer{Mesh: g.key.mesh, Ref: buf.Ref, Buffer: buf})
		} else {
			f.Stats.SkippedBinds++
		}
		lastMaterial, lastMesh, bound = g.key.material, g.key.mesh, true

		tb := b.transforms(g, transforms)
		if tb.Upload {
			f.Stats.Uploads++
		}
		f.Commands = append(f.Commands, Draw{
			Mesh:          g.key.mesh,
			Material:      g.key.material,
			InstanceCount: len(g.members),
			IndexCount:    buf.IndexCount,
			Transforms:    tb,
		})
		f.Stats.Groups++
		f.Stats.Instances += len(g.members)
	}

	for k, st := range b.groups {
		if st.frame != b.frame {
			delete(b.groups, k)
		}
	}
	if len(errs) > 0 {
		b.log.Warn("render frame incomplete", zap.Uint64("frame", b.frame), zap.Int("missing", f.Stats.MissingMeshes), zap.Errors("errors", errs))
	}
	return f, errors.Join(errs...)
}

// collect groups matching entities by (mesh, material), ordering members by
// birth and groups by their earliest member.
func (b *Bridge) collect(w *ecs.World, q *ecs.Query, meshes *ecs.Store[MeshHandle], materials *ecs.Store[MaterialHandle]) []*group {
	pool := w.Pool()
	byKey := make(map[groupKey]*group)
	var groups []*group
	for id := range q.Entities() {
		mesh, _ := meshes.Get(id)
		mat, _ := materials.Get(id)
		k := groupKey{mesh: mesh, material: mat}
		g, ok := byKey[k]
		if !ok {
			g = &group{key: k}
			byKey[k] = g
			groups = append(groups, g)
		}
		g.members = append(g.members, id)
	}
	for _, g := range groups {
		slices.SortFunc(g.members, func(a, b ecs.EntityID) int {
			return cmp.Compare(pool.Born(a), pool.Born(b))
		})
		g.first = pool.Born(g.members[0])
	}
	slices.SortFunc(groups, func(a, b *group) int { return cmp.Compare(a.first, b.first) })
	return groups
}

// transforms gathers the group's matrices and decides whether they need a
// fresh upload. Dirty members force one; otherwise the matrices are compared
// with the last upload, which catches transforms replaced wholesale.
func (b *Bridge) transforms(g *group, store *ecs.Store[Transform]) TransformBuffer {
	st, ok := b.groups[g.key]
	if !ok {
		st = &groupState{}
		b.groups[g.key] = st
	}
	upload := !ok || !slices.Equal(st.members, g.members)
	data := make([]mgl32.Mat4, len(g.members))
	for i, id := range g.members {
		t, _ := store.Mut(id)
		if t.dirty {
			upload = true
			t.dirty = false
		}
		data[i] = t.Matrix()
	}
	if !upload && !slices.Equal(st.data, data) {
		upload = true
	}
	if upload {
		st.version++
		st.members = slices.Clone(g.members)
		st.data = slices.Clone(data)
	}
	st.frame = b.frame
	return TransformBuffer{
		Ref:    TransformRef{Mesh: g.key.mesh, Material: g.key.material, Version: st.version},
		Data:   data,
		Upload: upload,
	}
}

// view derives SetView from the earliest-born camera entity.
func (b *Bridge) view(w *ecs.World) (SetView, bool) {
	cams, err := ecs.StoreOf[Camera](w.Registry())
	if err != nil || cams.Len() == 0 {
		return SetView{}, false
	}
	pool := w.Pool()
	var (
		best ecs.EntityID
		cam  Camera
		born uint64
	)
	for id, c := range cams.All() {
		if n := pool.Born(id); born == 0 || n < born {
			best, cam, born = id, *c, n
		}
	}
	persp := DefaultPerspective
	if p, ok := ecs.Get[Perspective](w, best); ok {
		persp = p
	}
	return SetView{View: cam.View(), Projection: persp.Matrix(), Eye: cam.Eye}, true
}
