package separate

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jscyril/stem_studio/api"
	"github.com/jscyril/stem_studio/internal/audio"
	"github.com/jscyril/stem_studio/internal/stems"
	playerrors "github.com/jscyril/stem_studio/pkg/errors"
	"github.com/jscyril/stem_studio/pkg/events"
	"go.uber.org/zap"
)

// Result is the outcome of one separation job
type Result struct {
	Stems []stems.Stem
	Paths []string // files written next to the source
	Err   error
}

// Runner runs one separation at a time in the background and stores the
// stems next to the source when the backend succeeds.
type Runner struct {
	backend Backend
	bus     *events.EventBus
	log     *zap.Logger
	running atomic.Bool
}

// NewRunner creates a runner. bus and log may be nil.
func NewRunner(backend Backend, bus *events.EventBus, log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{backend: backend, bus: bus, log: log}
}

// Running reports whether a job is in flight
func (r *Runner) Running() bool {
	return r.running.Load()
}

// Start separates source in a new goroutine. The returned channel receives
// exactly one Result. It fails with ErrSeparationInProgress while another
// job is running.
func (r *Runner) Start(ctx context.Context, source string, mix *audio.Buffer) (<-chan Result, error) {
	if source == "" {
		return nil, playerrors.ErrNoSource
	}
	if !r.running.CompareAndSwap(false, true) {
		return nil, playerrors.ErrSeparationInProgress
	}

	out := make(chan Result, 1)
	go func() {
		res := r.run(ctx, source, mix)
		r.running.Store(false)
		out <- res
		close(out)
	}()
	return out, nil
}

// Run separates source on the calling goroutine
func (r *Runner) Run(ctx context.Context, source string, mix *audio.Buffer) Result {
	if !r.running.CompareAndSwap(false, true) {
		return Result{Err: playerrors.ErrSeparationInProgress}
	}
	defer r.running.Store(false)
	return r.run(ctx, source, mix)
}

func (r *Runner) run(ctx context.Context, source string, mix *audio.Buffer) Result {
	name := r.backend.Name()
	r.publish(api.EventSeparationStarted, name)
	r.log.Info("separation started", zap.String("backend", name), zap.String("source", source))
	start := time.Now()

	set, err := r.backend.Separate(ctx, source, mix)
	if err == nil && len(set) == 0 {
		err = playerrors.ErrNoStems
	}
	if err != nil {
		return r.fail(name, fmt.Errorf("separate with %s: %w", name, err))
	}

	paths, err := stems.Write(source, set)
	if err != nil {
		return r.fail(name, err)
	}

	r.log.Info("separation finished",
		zap.String("backend", name),
		zap.Int("stems", len(set)),
		zap.Duration("took", time.Since(start)))
	r.publish(api.EventSeparationDone, paths)
	return Result{Stems: set, Paths: paths}
}

func (r *Runner) fail(backend string, err error) Result {
	r.log.Error("separation failed", zap.String("backend", backend), zap.Error(err))
	r.publish(api.EventError, err)
	return Result{Err: err}
}

func (r *Runner) publish(t api.EventType, payload interface{}) {
	if r.bus != nil {
		r.bus.Publish(t, payload)
	}
}
