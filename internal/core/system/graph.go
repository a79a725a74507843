package system

import (
	"container/heap"
	"fmt"
	"reflect"
	"slices"
)

type node struct {
	sys    System
	desc   Descriptor
	index  int // registration order
	reads  map[reflect.Type]bool
	writes map[reflect.Type]bool
	ctx    *Context
	cmds   int // ops recorded last frame
}

func newNode(sys System, index int) *node {
	d := sys.Descriptor()
	n := &node{
		sys:    sys,
		desc:   d,
		index:  index,
		reads:  make(map[reflect.Type]bool, len(d.Reads)),
		writes: make(map[reflect.Type]bool, len(d.Writes)),
	}
	for _, t := range d.Writes {
		n.writes[t] = true
	}
	for _, t := range d.Reads {
		if !n.writes[t] {
			n.reads[t] = true
		}
	}
	return n
}

// readsFrom reports whether n reads (without writing) something w writes.
func (n *node) readsFrom(w *node) bool {
	for t := range n.reads {
		if w.writes[t] {
			return true
		}
	}
	return false
}

func (n *node) writesWith(o *node) bool {
	for t := range n.writes {
		if o.writes[t] {
			return true
		}
	}
	return false
}

func (n *node) conflicts(o *node) bool {
	return n.writesWith(o) || n.readsFrom(o) || o.readsFrom(n)
}

// plan is the dependency graph and its deterministic topological order.
type plan struct {
	succs [][]int
	preds [][]int
	order []int // node indices in execution order
	rank  []int // rank[i] is i's position in order
}

func (p *plan) addEdge(from, to int) {
	if from == to || slices.Contains(p.succs[from], to) {
		return
	}
	p.succs[from] = append(p.succs[from], to)
	p.preds[to] = append(p.preds[to], from)
}

// buildPlan derives edges from phases, declared access and ordering hints.
// With strict set, hints naming unregistered systems are an error; otherwise
// they are ignored until the other side registers.
func buildPlan(nodes []*node, byName map[string]int, strict bool) (*plan, error) {
	n := len(nodes)
	p := &plan{succs: make([][]int, n), preds: make([][]int, n)}

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			a, b := nodes[i], nodes[j]
			switch {
			case a.desc.Phase < b.desc.Phase:
				p.addEdge(i, j)
			case a.desc.Phase > b.desc.Phase:
				p.addEdge(j, i)
			default:
				// Same phase: readers follow writers, writers follow
				// registration order.
				if a.writesWith(b) {
					p.addEdge(i, j)
				}
				if b.readsFrom(a) {
					p.addEdge(i, j)
				}
				if a.readsFrom(b) {
					p.addEdge(j, i)
				}
			}
		}
	}

	for i, nd := range nodes {
		for _, name := range nd.desc.After {
			j, ok := byName[name]
			if !ok {
				if strict {
					return nil, fmt.Errorf("%w: %s runs after %q", ErrUnknownSystem, nd.desc.Name, name)
				}
				continue
			}
			p.addEdge(j, i)
		}
		for _, name := range nd.desc.Before {
			j, ok := byName[name]
			if !ok {
				if strict {
					return nil, fmt.Errorf("%w: %s runs before %q", ErrUnknownSystem, nd.desc.Name, name)
				}
				continue
			}
			p.addEdge(i, j)
		}
	}

	if err := p.sort(nodes); err != nil {
		return nil, err
	}
	return p, nil
}

// indexHeap pops the lowest registration index first.
type indexHeap []int

func (h indexHeap) Len() int           { return len(h) }
func (h indexHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h indexHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *indexHeap) Push(x any)        { *h = append(*h, x.(int)) }
func (h *indexHeap) Pop() any {
	old := *h
	x := old[len(old)-1]
	*h = old[:len(old)-1]
	return x
}

// sort runs Kahn's algorithm, breaking ties by registration order.
func (p *plan) sort(nodes []*node) error {
	n := len(nodes)
	indeg := make([]int, n)
	for i := range p.preds {
		indeg[i] = len(p.preds[i])
	}
	ready := &indexHeap{}
	for i := 0; i < n; i++ {
		if indeg[i] == 0 {
			heap.Push(ready, i)
		}
	}
	p.order = make([]int, 0, n)
	for ready.Len() > 0 {
		i := heap.Pop(ready).(int)
		p.order = append(p.order, i)
		for _, j := range p.succs[i] {
			indeg[j]--
			if indeg[j] == 0 {
				heap.Push(ready, j)
			}
		}
	}
	if len(p.order) < n {
		ce := &CycleError{}
		for i := 0; i < n; i++ {
			if indeg[i] > 0 {
				ce.Systems = append(ce.Systems, nodes[i].desc.Name)
			}
		}
		return ce
	}
	p.rank = make([]int, n)
	for pos, i := range p.order {
		p.rank[i] = pos
	}
	return nil
}

// reaches reports whether to is ordered (transitively) after from.
func (p *plan) reaches(from, to int) bool {
	seen := make([]bool, len(p.succs))
	stack := []int{from}
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, j := range p.succs[i] {
			if j == to {
				return true
			}
			if !seen[j] {
				seen[j] = true
				stack = append(stack, j)
			}
		}
	}
	return false
}
