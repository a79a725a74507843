package render

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Backend consumes finished frames. Implementations translate commands into
// graphics API calls; the core never talks to a device directly.
type Backend interface {
	Submit(ctx context.Context, f Frame) error
}

type BackendFunc func(ctx context.Context, f Frame) error

func (fn BackendFunc) Submit(ctx context.Context, f Frame) error { return fn(ctx, f) }

// Recorder keeps every submitted frame in memory.
type Recorder struct {
	mu     sync.Mutex
	frames []Frame
}

func (r *Recorder) Submit(_ context.Context, f Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, f)
	return nil
}

func (r *Recorder) Frames() []Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Frame, len(r.frames))
	copy(out, r.frames)
	return out
}

// Last returns the most recent frame, if any.
func (r *Recorder) Last() (Frame, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.frames) == 0 {
		return Frame{}, false
	}
	return r.frames[len(r.frames)-1], true
}

// LogBackend writes a frame summary at debug level and, when verbose, one
// entry per command.
type LogBackend struct {
	log     *zap.Logger
	verbose bool
}

func NewLogBackend(log *zap.Logger, verbose bool) *LogBackend {
	return &LogBackend{log: log.Named("backend"), verbose: verbose}
}

func (b *LogBackend) Submit(ctx context.Context, f Frame) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if b.verbose {
		for i, c := range f.Commands {
			b.log.Debug("command", zap.Uint64("frame", f.Number), zap.Int("seq", i), zap.Stringer("cmd", c))
		}
	}
	b.log.Debug("frame submitted",
		zap.Uint64("frame", f.Number),
		zap.Int("commands", len(f.Commands)),
		zap.Int("groups", f.Stats.Groups),
		zap.Int("instances", f.Stats.Instances),
		zap.Int("uploads", f.Stats.Uploads),
		zap.Int("skipped_binds", f.Stats.SkippedBinds))
	return nil
}
