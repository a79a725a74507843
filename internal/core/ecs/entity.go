package ecs

import (
	"container/heap"
	"iter"
	"math"
	"strconv"
)

// EntityID encodes a 32-bit index in the lower bits and a 32-bit generation
// in the upper bits. Generation increments on destroy to invalidate stale refs.
// Generations start at 1, so the zero EntityID never names a live entity.
type EntityID uint64

func NewEntityID(index uint32, generation uint32) EntityID {
	return EntityID(uint64(generation)<<32 | uint64(index))
}

func (id EntityID) Index() uint32      { return uint32(id) }
func (id EntityID) Generation() uint32 { return uint32(id >> 32) }
func (id EntityID) IsZero() bool       { return id == 0 }

func (id EntityID) String() string {
	return strconv.FormatUint(uint64(id.Index()), 10) + "v" + strconv.FormatUint(uint64(id.Generation()), 10)
}

// maxIndex is never handed out.
const maxIndex = math.MaxUint32

// freeList is a min-heap of released indices; Create always reuses the lowest one.
type freeList []uint32

func (f freeList) Len() int           { return len(f) }
func (f freeList) Less(i, j int) bool { return f[i] < f[j] }
func (f freeList) Swap(i, j int)      { f[i], f[j] = f[j], f[i] }
func (f *freeList) Push(x any)        { *f = append(*f, x.(uint32)) }
func (f *freeList) Pop() any {
	old := *f
	n := len(old)
	x := old[n-1]
	*f = old[:n-1]
	return x
}

// EntityPool manages entity allocation with generational indices and a free list.
type EntityPool struct {
	generations []uint32
	alive       []bool
	born        []uint64
	free        freeList
	nextIndex   uint32
	serial      uint64
	live        int

	listeners []func(EntityID)
}

func NewEntityPool(capacity int) *EntityPool {
	if capacity < 0 {
		capacity = 0
	}
	return &EntityPool{
		generations: make([]uint32, 0, capacity),
		alive:       make([]bool, 0, capacity),
		born:        make([]uint64, 0, capacity),
		free:        make(freeList, 0, capacity/4),
	}
}

// Create allocates an entity, reusing the lowest freed index when one exists.
func (p *EntityPool) Create() (EntityID, error) {
	var idx uint32
	if p.free.Len() > 0 {
		idx = heap.Pop(&p.free).(uint32)
	} else {
		if p.nextIndex == maxIndex {
			return 0, ErrCapacityExceeded
		}
		idx = p.nextIndex
		p.nextIndex++
		p.generations = append(p.generations, 1)
		p.alive = append(p.alive, false)
		p.born = append(p.born, 0)
	}
	p.serial++
	p.alive[idx] = true
	p.born[idx] = p.serial
	p.live++
	return NewEntityID(idx, p.generations[idx]), nil
}

func (p *EntityPool) Alive(id EntityID) bool {
	idx := id.Index()
	if idx >= p.nextIndex {
		return false
	}
	return p.alive[idx] && p.generations[idx] == id.Generation()
}

// Destroy notifies listeners, then invalidates the slot and frees its index.
// Destroying a handle that is not alive returns ErrStaleHandle and changes nothing.
func (p *EntityPool) Destroy(id EntityID) error {
	if !p.Alive(id) {
		return ErrStaleHandle
	}
	for _, fn := range p.listeners {
		fn(id)
	}
	idx := id.Index()
	gen := p.generations[idx] + 1
	if gen == 0 {
		gen = 1
	}
	p.generations[idx] = gen
	p.alive[idx] = false
	p.born[idx] = 0
	p.live--
	heap.Push(&p.free, idx)
	return nil
}

// Subscribe registers a destruction listener. Listeners run while the
// destroyed handle is still alive, so they can read its components.
func (p *EntityPool) Subscribe(fn func(EntityID)) {
	if fn == nil {
		return
	}
	p.listeners = append(p.listeners, fn)
}

// Len returns the number of live entities.
func (p *EntityPool) Len() int { return p.live }

// Born returns the creation sequence of a live entity, 0 for a dead one.
// Sequences grow monotonically across the pool's lifetime, independent of index reuse.
func (p *EntityPool) Born(id EntityID) uint64 {
	if !p.Alive(id) {
		return 0
	}
	return p.born[id.Index()]
}

// All yields live entities in index order.
func (p *EntityPool) All() iter.Seq[EntityID] {
	return func(yield func(EntityID) bool) {
		for i := uint32(0); i < p.nextIndex; i++ {
			if !p.alive[i] {
				continue
			}
			if !yield(NewEntityID(i, p.generations[i])) {
				return
			}
		}
	}
}
