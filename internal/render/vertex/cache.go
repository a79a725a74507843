package vertex

import (
	"fmt"
	"sync"
)

// BufferRef identifies one uploaded build of a mesh's vertex buffer. The
// generation increases every time the cache rebuilds the mesh.
type BufferRef struct {
	Mesh       uint32
	Generation uint32
}

func (r BufferRef) String() string {
	return fmt.Sprintf("mesh%d@%d", r.Mesh, r.Generation)
}

// Buffer is an interleaved vertex buffer plus its packed index buffer.
type Buffer struct {
	Ref         BufferRef
	Format      Format
	Version     uint64 // source geometry version it was built from
	Vertices    []float32
	VertexCount int
	Indices     []byte
	IndexWidth  IndexWidth
	IndexCount  int
}

// Stats counts cache outcomes since creation.
type Stats struct {
	Hits      uint64
	Builds    uint64
	Evictions uint64
}

// Cache maps mesh handles to their last built buffer.
type Cache struct {
	mu      sync.Mutex
	entries map[uint32]*Buffer
	gens    map[uint32]uint32 // survives eviction
	stats   Stats
}

func NewCache() *Cache {
	return &Cache{entries: make(map[uint32]*Buffer), gens: make(map[uint32]uint32)}
}

// GetOrBuild returns the cached buffer for mesh while g.Version and g.Format
// match what it was built from, and rebuilds it otherwise. A failed rebuild keeps
// the previous buffer cached.
func (c *Cache) GetOrBuild(mesh uint32, g Geometry) (*Buffer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev, ok := c.entries[mesh]
	if ok && prev.Version == g.Version && prev.Format.Equal(g.Format) {
		c.stats.Hits++
		return prev, nil
	}

	verts, err := Interleave(g)
	if err != nil {
		return nil, fmt.Errorf("build mesh %d: %w", mesh, err)
	}
	b := &Buffer{
		Ref:         BufferRef{Mesh: mesh, Generation: c.gens[mesh] + 1},
		Format:      g.Format,
		Version:     g.Version,
		Vertices:    verts,
		VertexCount: g.VertexCount(),
		IndexCount:  len(g.Indices),
	}
	if len(g.Indices) > 0 {
		b.Indices, b.IndexWidth = PackIndices(g.Indices)
	}
	c.entries[mesh] = b
	c.gens[mesh] = b.Ref.Generation
	c.stats.Builds++
	return b, nil
}

// Lookup returns the cached buffer without building.
func (c *Cache) Lookup(mesh uint32) (*Buffer, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.entries[mesh]
	return b, ok
}

// Evict drops mesh's buffer; the next GetOrBuild rebuilds it.
func (c *Cache) Evict(mesh uint32) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[mesh]; !ok {
		return false
	}
	delete(c.entries, mesh)
	c.stats.Evictions++
	return true
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}
