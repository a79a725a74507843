// ecsbench drives a synthetic scene through the scheduler and the render
// bridge and reports per-frame timings.
//
// Usage:
//
//	go run ./cmd/ecsbench [-entities n] [-frames n] [-groups n] [-workers n] [-profile cpu|mem|none]
//
// Profiles are written to the working directory:
//
//	go tool pprof -http=":8000" ./ecsbench cpu.pprof
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/profile"
	"go.uber.org/zap"

	"github.com/l1jgo/ecsrender/internal/core/ecs"
	"github.com/l1jgo/ecsrender/internal/engine"
	"github.com/l1jgo/ecsrender/internal/render"
	"github.com/l1jgo/ecsrender/internal/render/vertex"
	"github.com/l1jgo/ecsrender/internal/system"
)

var quad = vertex.Geometry{
	Version: 1,
	Format:  vertex.Format2D,
	Streams: map[vertex.Semantic][]float32{
		vertex.Position: {-0.5, -0.5, 0.5, -0.5, 0.5, 0.5, -0.5, 0.5},
		vertex.TexCoord: {0, 0, 1, 0, 1, 1, 0, 1},
	},
	Indices: []uint32{0, 1, 2, 2, 3, 0},
}

func main() {
	entities := flag.Int("entities", 10000, "renderable entities to spawn")
	frames := flag.Uint64("frames", 600, "frames to run")
	groups := flag.Int("groups", 16, "distinct mesh/material pairs")
	workers := flag.Int("workers", 0, "scheduler workers (0 = GOMAXPROCS)")
	mode := flag.String("profile", "none", "profile mode: cpu, mem or none")
	flag.Parse()

	var p interface{ Stop() }
	switch *mode {
	case "cpu":
		p = profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.NoShutdownHook)
	case "mem":
		p = profile.Start(profile.MemProfileAllocs, profile.ProfilePath("."), profile.NoShutdownHook)
	case "none":
	default:
		fmt.Fprintf(os.Stderr, "unknown profile mode %q\n", *mode)
		os.Exit(2)
	}

	err := run(*entities, *groups, *workers, *frames)
	if p != nil {
		p.Stop()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(numEntities, numGroups, workers int, frames uint64) error {
	if numGroups < 1 {
		numGroups = 1
	}
	var (
		draws   int
		uploads int
	)
	backend := render.BackendFunc(func(_ context.Context, f render.Frame) error {
		draws += f.Draws()
		uploads += f.Stats.Uploads
		return nil
	})
	geometry := render.GeometryFunc(func(render.MeshHandle) (vertex.Geometry, bool) { return quad, true })

	eng := engine.New(engine.Options{
		Workers:         workers,
		InitialCapacity: numEntities + 1,
		TickRate:        time.Nanosecond,
		MaxFrames:       frames,
		ExcludeHidden:   true,
	}, geometry, backend, zap.NewNop())
	if err := system.Register(eng); err != nil {
		return err
	}

	w := eng.World()
	for i := 0; i < numEntities; i++ {
		id, err := w.CreateEntity()
		if err != nil {
			return err
		}
		g := i % numGroups
		_, _, _ = ecs.Insert(w, id, render.NewTransform(mgl32.Vec3{float32(i % 100), float32(i / 100), 0}))
		_, _, _ = ecs.Insert(w, id, render.MeshHandle(1+g%4))
		_, _, _ = ecs.Insert(w, id, render.MaterialHandle(1+g/4))
		if i%3 == 0 {
			_, _, _ = ecs.Insert(w, id, system.Spin{Axis: mgl32.Vec3{0, 0, 1}, Rate: 1})
		}
		if i%5 == 0 {
			_, _, _ = ecs.Insert(w, id, system.Velocity{Linear: mgl32.Vec3{0, 0.1, 0}})
		}
	}

	start := time.Now()
	if err := eng.Run(context.Background()); err != nil {
		return err
	}
	elapsed := time.Since(start)

	n := eng.Frames()
	if n == 0 {
		return errors.New("no frames completed")
	}
	fmt.Printf("entities %d  groups %d  workers %d\n", numEntities, numGroups, eng.Scheduler().Workers())
	fmt.Printf("frames   %d in %s (%s/frame)\n", n, elapsed.Round(time.Millisecond), (elapsed / time.Duration(n)).Round(time.Microsecond))
	fmt.Printf("draws    %d  uploads %d\n", draws, uploads)
	return nil
}
