package data

import (
	"fmt"
	"os"
	"reflect"
	"slices"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/l1jgo/ecsrender/internal/render"
	"github.com/l1jgo/ecsrender/internal/render/vertex"
)

// MeshEntry is one mesh in meshes.yaml. Streams not named by the format must
// be left empty.
type MeshEntry struct {
	Name          string    `yaml:"name"`
	Handle        uint32    `yaml:"handle"`
	Format        string    `yaml:"format"`
	Positions     []float32 `yaml:"positions"`
	Normals       []float32 `yaml:"normals"`
	UVs           []float32 `yaml:"uvs"`
	Colors        []float32 `yaml:"colors"`
	Tangents      []float32 `yaml:"tangents"`
	Indices       []uint32  `yaml:"indices"`
	SmoothNormals bool      `yaml:"smooth_normals"`
}

// MaterialEntry is one material in meshes.yaml.
type MaterialEntry struct {
	Name   string `yaml:"name"`
	Handle uint32 `yaml:"handle"`
}

type meshFile struct {
	Meshes    []MeshEntry     `yaml:"meshes"`
	Materials []MaterialEntry `yaml:"materials"`
}

type meshRecord struct {
	entry MeshEntry
	geo   vertex.Geometry
}

// MeshTable is the geometry source backing the renderer. It is safe for
// concurrent use; Reload swaps contents atomically.
type MeshTable struct {
	mu        sync.RWMutex
	meshes    map[render.MeshHandle]*meshRecord
	byName    map[string]render.MeshHandle
	materials map[string]render.MaterialHandle
}

// LoadMeshTable loads meshes.yaml.
func LoadMeshTable(path string) (*MeshTable, error) {
	f, err := readMeshFile(path)
	if err != nil {
		return nil, err
	}
	t := &MeshTable{}
	if _, err := t.replace(f); err != nil {
		return nil, err
	}
	return t, nil
}

func readMeshFile(path string) (*meshFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mesh table: %w", err)
	}
	var f meshFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse mesh table: %w", err)
	}
	return &f, nil
}

// Reload re-reads path. Meshes whose entry changed get a new geometry
// version; untouched meshes keep theirs. It returns every handle that was
// added, changed or removed. On error the table is left as it was.
func (t *MeshTable) Reload(path string) ([]render.MeshHandle, error) {
	f, err := readMeshFile(path)
	if err != nil {
		return nil, err
	}
	return t.replace(f)
}

func (t *MeshTable) replace(f *meshFile) ([]render.MeshHandle, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	old := t.meshes

	meshes := make(map[render.MeshHandle]*meshRecord, len(f.Meshes))
	byName := make(map[string]render.MeshHandle, len(f.Meshes))
	var changed []render.MeshHandle
	for _, e := range f.Meshes {
		h := render.MeshHandle(e.Handle)
		if _, dup := meshes[h]; dup {
			return nil, fmt.Errorf("mesh %q: duplicate handle %d", e.Name, e.Handle)
		}
		if _, dup := byName[e.Name]; dup {
			return nil, fmt.Errorf("mesh %q: duplicate name", e.Name)
		}
		prev, had := old[h]
		if had && reflect.DeepEqual(prev.entry, e) {
			meshes[h] = prev
			byName[e.Name] = h
			continue
		}
		var version uint64 = 1
		if had {
			version = prev.geo.Version + 1
		}
		geo, err := e.geometry(version)
		if err != nil {
			return nil, fmt.Errorf("mesh %q: %w", e.Name, err)
		}
		meshes[h] = &meshRecord{entry: e, geo: geo}
		byName[e.Name] = h
		changed = append(changed, h)
	}
	for h := range old {
		if _, ok := meshes[h]; !ok {
			changed = append(changed, h)
		}
	}

	materials := make(map[string]render.MaterialHandle, len(f.Materials))
	for _, m := range f.Materials {
		if _, dup := materials[m.Name]; dup {
			return nil, fmt.Errorf("material %q: duplicate name", m.Name)
		}
		materials[m.Name] = render.MaterialHandle(m.Handle)
	}

	t.meshes, t.byName, t.materials = meshes, byName, materials
	slices.Sort(changed)
	return changed, nil
}

func (e MeshEntry) geometry(version uint64) (vertex.Geometry, error) {
	format, err := vertex.ParseFormat(e.Format)
	if err != nil {
		return vertex.Geometry{}, err
	}
	streams := map[vertex.Semantic][]float32{}
	for sem, s := range map[vertex.Semantic][]float32{
		vertex.Position: e.Positions,
		vertex.Normal:   e.Normals,
		vertex.TexCoord: e.UVs,
		vertex.Color:    e.Colors,
		vertex.Tangent:  e.Tangents,
	} {
		if len(s) > 0 {
			streams[sem] = s
		}
	}
	if a, ok := format.Attribute(vertex.Normal); ok && e.SmoothNormals && len(e.Normals) == 0 {
		pa, _ := format.Attribute(vertex.Position)
		if pa.Size != 3 || a.Size != 3 {
			return vertex.Geometry{}, fmt.Errorf("%w: smooth normals need 3-component positions and normals", vertex.ErrAttributeMismatch)
		}
		streams[vertex.Normal] = vertex.SmoothNormals(e.Positions, e.Indices)
	}
	g := vertex.Geometry{Version: version, Format: format, Streams: streams, Indices: e.Indices}
	if err := g.Validate(); err != nil {
		return vertex.Geometry{}, err
	}
	return g, nil
}

// Geometry implements render.GeometrySource.
func (t *MeshTable) Geometry(mesh render.MeshHandle) (vertex.Geometry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	r, ok := t.meshes[mesh]
	if !ok {
		return vertex.Geometry{}, false
	}
	return r.geo, true
}

// Mesh resolves a mesh name to its handle.
func (t *MeshTable) Mesh(name string) (render.MeshHandle, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	h, ok := t.byName[name]
	return h, ok
}

// Material resolves a material name to its handle.
func (t *MeshTable) Material(name string) (render.MaterialHandle, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	h, ok := t.materials[name]
	return h, ok
}

// Count returns the number of meshes loaded.
func (t *MeshTable) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.meshes)
}
