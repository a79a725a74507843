package ecs

import (
	"errors"
	"math/rand"
	"slices"
	"testing"

	"go.uber.org/zap/zaptest"
)

func TestQueryMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for round := 0; round < 25; round++ {
		w := NewWorld(16, zaptest.NewLogger(t))
		// Vary relative store sizes so every store gets to be the driver.
		probs := [4]int{rng.Intn(100), rng.Intn(100), rng.Intn(100), rng.Intn(100)}
		Register[position](w.Registry(), 0)
		Register[velocity](w.Registry(), 0)
		Register[health](w.Registry(), 0)
		Register[frozen](w.Registry(), 0)

		has := map[EntityID][4]bool{}
		for i := 0; i < 200; i++ {
			id, _ := w.CreateEntity()
			var flags [4]bool
			for k := range flags {
				flags[k] = rng.Intn(100) < probs[k]
			}
			if flags[0] {
				_, _, _ = Insert(w, id, position{})
			}
			if flags[1] {
				_, _, _ = Insert(w, id, velocity{})
			}
			if flags[2] {
				_, _, _ = Insert(w, id, health{})
			}
			if flags[3] {
				_, _, _ = Insert(w, id, frozen{})
			}
			has[id] = flags
			if rng.Intn(10) == 0 {
				_ = w.DestroyEntity(id)
				delete(has, id)
			}
		}

		q, err := w.Query(Filter{
			Required: Types(TypeOf[position](), TypeOf[velocity]()),
			Excluded: Types(TypeOf[frozen]()),
		})
		if err != nil {
			t.Fatalf("query: %v", err)
		}
		var want []EntityID
		for id, f := range has {
			if f[0] && f[1] && !f[3] {
				want = append(want, id)
			}
		}
		got := q.Collect()
		slices.Sort(got)
		slices.Sort(want)
		if !slices.Equal(got, want) {
			t.Fatalf("round %d: got %d entities, want %d", round, len(got), len(want))
		}
	}
}

func TestQueryIsRestartableAndLive(t *testing.T) {
	w := NewWorld(0, zaptest.NewLogger(t))
	a, _ := w.CreateEntity()
	_, _, _ = Insert(w, a, position{})
	q, err := w.Query(Filter{Required: Types(TypeOf[position]())})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if q.Count() != 1 || q.Count() != 1 {
		t.Fatalf("expected restartable count of 1")
	}
	b, _ := w.CreateEntity()
	_, _, _ = Insert(w, b, position{})
	if q.Count() != 2 {
		t.Fatalf("query must reflect structural changes, got %d", q.Count())
	}
}

func TestQueryNoRequiredDrivesFromPool(t *testing.T) {
	w := NewWorld(0, zaptest.NewLogger(t))
	a, _ := w.CreateEntity()
	b, _ := w.CreateEntity()
	_, _, _ = Insert(w, b, frozen{})
	q, err := w.Query(Filter{Excluded: Types(TypeOf[frozen](), TypeOf[health]())})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	got := q.Collect()
	if len(got) != 1 || got[0] != a {
		t.Fatalf("expected only %v, got %v", a, got)
	}
}

func TestQueryUnknownRequiredType(t *testing.T) {
	w := NewWorld(0, zaptest.NewLogger(t))
	_, err := w.Query(Filter{Required: Types(TypeOf[health]())})
	if !errors.Is(err, ErrUnknownComponentType) {
		t.Fatalf("expected ErrUnknownComponentType, got %v", err)
	}
}

func TestEach3DrivesFromSmallest(t *testing.T) {
	w := NewWorld(0, zaptest.NewLogger(t))
	ps := Register[position](w.Registry(), 0)
	vs := Register[velocity](w.Registry(), 0)
	hs := Register[health](w.Registry(), 0)
	for i := 0; i < 10; i++ {
		id, _ := w.CreateEntity()
		ps.Insert(id, position{})
		if i%2 == 0 {
			vs.Insert(id, velocity{DX: 1})
		}
		if i%5 == 0 {
			hs.Insert(id, health{HP: i})
		}
	}
	var hits []int
	Each3(ps, vs, hs, func(_ EntityID, p *position, v *velocity, h *health) {
		p.X += v.DX
		hits = append(hits, h.HP)
	})
	slices.Sort(hits)
	if !slices.Equal(hits, []int{0}) {
		t.Fatalf("expected only entity 0 to match all three, got %v", hits)
	}

	n := 0
	Each2(ps, vs, func(EntityID, *position, *velocity) { n++ })
	if n != 5 {
		t.Fatalf("expected 5 matches for Each2, got %d", n)
	}
}
