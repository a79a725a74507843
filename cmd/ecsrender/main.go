package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/l1jgo/ecsrender/internal/config"
	"github.com/l1jgo/ecsrender/internal/core/ecs"
	"github.com/l1jgo/ecsrender/internal/core/event"
	"github.com/l1jgo/ecsrender/internal/data"
	"github.com/l1jgo/ecsrender/internal/engine"
	"github.com/l1jgo/ecsrender/internal/render"
	"github.com/l1jgo/ecsrender/internal/system"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

func printSection(title string) {
	lineLen := 46 - len(title) - 1
	if lineLen < 3 {
		lineLen = 3
	}
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, count int) {
	numStr := fmt.Sprintf("%d", count)
	dotsLen := 42 - len(label) - len(numStr)
	if dotsLen < 3 {
		dotsLen = 3
	}
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), numStr)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// ── Main loop ─────────────────────────────────────────────────────

func run() error {
	// 1. Load config
	cfg, err := config.Load(config.Path())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	// 3. Load assets
	printSection("assets")
	meshes, err := data.LoadMeshTable(cfg.Assets.MeshTable)
	if err != nil {
		return fmt.Errorf("load mesh table: %w", err)
	}
	printStat("meshes", meshes.Count())

	// 4. Build the engine and the demo scene
	eng := engine.New(engine.Options{
		Workers:         cfg.Engine.Workers,
		InitialCapacity: cfg.Engine.InitialCapacity,
		TickRate:        cfg.Engine.TickRate,
		MaxFrames:       cfg.Engine.MaxFrames,
		ExcludeHidden:   cfg.Render.ExcludeHidden,
		CameraRequired:  cfg.Render.CameraRequired,
	}, meshes, render.NewLogBackend(log, cfg.Render.Verbose), log)

	if err := system.Register(eng); err != nil {
		return fmt.Errorf("register systems: %w", err)
	}
	n, err := buildScene(eng.World(), meshes)
	if err != nil {
		return fmt.Errorf("build scene: %w", err)
	}
	printStat("entities", n)

	event.Subscribe(eng.Bus(), func(ev event.FrameCompleted) {
		if ev.Frame%300 == 0 {
			log.Info("frame stats", zap.Uint64("frame", ev.Frame), zap.Int("draws", ev.Draws), zap.Int("commands", ev.Commands))
		}
	})
	event.Subscribe(eng.Bus(), func(ev event.MeshReloaded) {
		log.Info("mesh reloaded", zap.Uint32("mesh", ev.Mesh))
	})

	if err := eng.Start(); err != nil {
		return fmt.Errorf("start engine: %w", err)
	}

	// 5. Optional hot reload of the mesh table
	var reloads <-chan string
	if cfg.Assets.Watch {
		w, err := data.NewWatcher(cfg.Assets.Debounce, filepath.Dir(cfg.Assets.MeshTable))
		if err != nil {
			return fmt.Errorf("watch assets: %w", err)
		}
		defer w.Close()
		reloads = w.Events()
		go func() {
			for err := range w.Errors() {
				log.Warn("asset watcher", zap.Error(err))
			}
		}()
	}

	// 6. Frame loop runs on its own goroutine; main handles reloads and signals.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	printSection("ready")
	printReady(fmt.Sprintf("frame loop (tick: %s, workers: %d)", cfg.Engine.TickRate, eng.Scheduler().Workers()))
	fmt.Println()

	runErr := make(chan error, 1)
	go func() { runErr <- eng.Run(ctx) }()

	for {
		select {
		case err := <-runErr:
			eng.Shutdown()
			return err
		case path, ok := <-reloads:
			if !ok {
				reloads = nil
				continue
			}
			if filepath.Clean(path) != filepath.Clean(cfg.Assets.MeshTable) {
				continue
			}
			changed, err := meshes.Reload(path)
			if err != nil {
				log.Warn("mesh table reload rejected", zap.String("path", path), zap.Error(err))
				continue
			}
			eng.MeshesReloaded(changed)
		case sig := <-shutdownCh:
			log.Info("shutdown signal received", zap.String("signal", sig.String()))
			cancel()
			err := <-runErr
			eng.Shutdown()
			return err
		}
	}
}

// buildScene spawns a camera, a ring of spinning meshes and a spawner.
func buildScene(w *ecs.World, meshes *data.MeshTable) (int, error) {
	pyramid, ok := meshes.Mesh("pyramid")
	if !ok {
		return 0, errors.New(`mesh "pyramid" not in table`)
	}
	quad, ok := meshes.Mesh("quad")
	if !ok {
		return 0, errors.New(`mesh "quad" not in table`)
	}
	flat, _ := meshes.Material("flat")
	checker, _ := meshes.Material("checker")

	cam, err := w.CreateEntity()
	if err != nil {
		return 0, err
	}
	_, _, _ = ecs.Insert(w, cam, render.Camera{Eye: mgl32.Vec3{0, 4, 12}, Up: mgl32.Vec3{0, 1, 0}})
	_, _, _ = ecs.Insert(w, cam, render.DefaultPerspective)

	const ring = 12
	for i := 0; i < ring; i++ {
		id, err := w.CreateEntity()
		if err != nil {
			return 0, err
		}
		angle := float64(i) / ring * 2 * math.Pi
		pos := mgl32.Vec3{float32(5 * math.Cos(angle)), 0, float32(5 * math.Sin(angle))}
		mat := flat
		if i%2 == 1 {
			mat = checker
		}
		_, _, _ = ecs.Insert(w, id, render.NewTransform(pos))
		_, _, _ = ecs.Insert(w, id, pyramid)
		_, _, _ = ecs.Insert(w, id, mat)
		_, _, _ = ecs.Insert(w, id, system.Spin{Axis: mgl32.Vec3{0, 1, 0}, Rate: 1 + float32(i%3)})
		if i%4 == 0 {
			_, _, _ = ecs.Insert(w, id, render.Hidden{})
		}
	}

	src, err := w.CreateEntity()
	if err != nil {
		return 0, err
	}
	_, _, _ = ecs.Insert(w, src, render.NewTransform(mgl32.Vec3{0, 0, 0}))
	_, _, _ = ecs.Insert(w, src, system.Spawner{
		Every:    250 * time.Millisecond,
		Mesh:     quad,
		Material: flat,
		Velocity: mgl32.Vec3{0, 1.5, 0},
		Lifetime: 2 * time.Second,
	})
	return w.Pool().Len(), nil
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
