package playback

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/jscyril/stem_studio/api"
	"github.com/jscyril/stem_studio/internal/audio"
	"github.com/jscyril/stem_studio/internal/mixer"
	"github.com/jscyril/stem_studio/internal/timeline"
	playerrors "github.com/jscyril/stem_studio/pkg/errors"
	"github.com/jscyril/stem_studio/pkg/events"
	"go.uber.org/zap"
)

// Ensure Engine implements Player interface at compile time
var _ api.Player = (*Engine)(nil)

// DefaultBufferFrames is the device buffer size used when none is configured
const DefaultBufferFrames = 2048

// Options configures the engine
type Options struct {
	BufferFrames int     // frames rendered and written per cycle
	SeekStep     float64 // seconds moved by Rewind and Forward
}

// Engine plays the timeline through an output device. Transport methods may
// be called from any goroutine; audio is produced on a goroutine of its own
// that renders one buffer per cycle and is paced by the blocking device write.
type Engine struct {
	tl   *timeline.Timeline
	open audio.DeviceOpener
	opts Options
	bus  *events.EventBus
	log  *zap.Logger

	// mu serializes transport calls. The production loop only takes it
	// once, while tearing down.
	mu     sync.Mutex
	stop   chan struct{}
	done   chan struct{}
	resume chan struct{}

	status atomic.Int32
	clock  Clock
	mix    mixer.Mixer
}

// NewEngine creates a stopped engine over tl. bus and log may be nil.
func NewEngine(tl *timeline.Timeline, open audio.DeviceOpener, opts Options, bus *events.EventBus, log *zap.Logger) *Engine {
	if opts.BufferFrames <= 0 {
		opts.BufferFrames = DefaultBufferFrames
	}
	if opts.SeekStep <= 0 {
		opts.SeekStep = 5
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		tl:     tl,
		open:   open,
		opts:   opts,
		bus:    bus,
		log:    log,
		resume: make(chan struct{}, 1),
	}
}

// Status returns the transport state
func (e *Engine) Status() api.PlaybackStatus {
	return api.PlaybackStatus(e.status.Load())
}

// Position returns the playback position in seconds
func (e *Engine) Position() float64 {
	return e.clock.Load()
}

// GetState returns a copy of the current playback state
func (e *Engine) GetState() api.PlaybackState {
	return api.PlaybackState{
		Status:        e.Status(),
		Position:      e.clock.Load(),
		TotalDuration: e.tl.TotalDuration(),
	}
}

// Play starts playback from the current position, or resumes when paused.
// It is a no-op while playing. If the device cannot be opened the engine
// stays stopped and an error wrapping ErrDeviceUnavailable is returned.
func (e *Engine) Play() error {
	for {
		e.mu.Lock()
		switch e.Status() {
		case api.StatusPlaying:
			e.mu.Unlock()
			return nil
		case api.StatusPaused:
			e.status.Store(int32(api.StatusPlaying))
			select {
			case e.resume <- struct{}{}:
			default:
			}
			e.mu.Unlock()
			e.log.Debug("resumed", zap.Float64("position", e.clock.Load()))
			e.publishState()
			return nil
		}

		// A previous loop may still be closing its device
		if prev := e.done; prev != nil {
			select {
			case <-prev:
			default:
				e.mu.Unlock()
				<-prev
				continue
			}
		}

		err := e.start()
		e.mu.Unlock()
		if err != nil {
			return err
		}
		e.publishState()
		return nil
	}
}

// start opens the device and launches the loop; e.mu must be held
func (e *Engine) start() error {
	rate := e.tl.Options().SampleRate
	dev, err := e.open(rate, e.opts.BufferFrames)
	if err != nil {
		if !errors.Is(err, playerrors.ErrDeviceUnavailable) {
			err = fmt.Errorf("%w: %v", playerrors.ErrDeviceUnavailable, err)
		}
		e.log.Warn("cannot open output device", zap.Error(err))
		return playerrors.NewEngineError("play", "", err)
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	e.stop, e.done = stop, done
	e.status.Store(int32(api.StatusPlaying))

	e.log.Info("playback started",
		zap.Float64("position", e.clock.Load()),
		zap.Int("sample_rate", rate),
		zap.Int("buffer_frames", e.opts.BufferFrames))

	go e.run(dev, rate, stop, done)
	return nil
}

// Pause suspends production while holding the position. The device stays open.
func (e *Engine) Pause() error {
	e.mu.Lock()
	if e.Status() != api.StatusPlaying {
		e.mu.Unlock()
		return nil
	}
	e.status.Store(int32(api.StatusPaused))
	e.mu.Unlock()

	e.log.Debug("paused", zap.Float64("position", e.clock.Load()))
	e.publishState()
	return nil
}

// Stop halts production, resets the position to 0 and waits for the loop to
// release the device. The wait is bounded by one device write.
func (e *Engine) Stop() error {
	e.mu.Lock()
	wasStopped := e.Status() == api.StatusStopped
	if e.stop != nil {
		select {
		case <-e.stop:
		default:
			close(e.stop)
		}
	}
	done := e.done
	e.status.Store(int32(api.StatusStopped))
	e.clock.Store(0)
	e.mu.Unlock()

	if done != nil {
		<-done
	}
	if !wasStopped {
		e.log.Info("playback stopped")
	}
	e.publishState()
	return nil
}

// Seek moves the playhead to t clamped to [0, total duration]. It works in
// every state and takes effect on the next buffer.
func (e *Engine) Seek(t float64) error {
	total := e.tl.TotalDuration()
	switch {
	case math.IsNaN(t) || t < 0:
		t = 0
	case t > total:
		t = total
	}
	e.clock.Store(t)
	e.publish(api.EventPositionUpdate, t)
	return nil
}

// Scrub previews position t. It is Seek under a name the editor uses while
// the playhead is being dragged.
func (e *Engine) Scrub(t float64) error {
	return e.Seek(t)
}

// Rewind seeks back by the configured step
func (e *Engine) Rewind() error {
	return e.Seek(e.clock.Load() - e.opts.SeekStep)
}

// Forward seeks ahead by the configured step
func (e *Engine) Forward() error {
	return e.Seek(e.clock.Load() + e.opts.SeekStep)
}

// TogglePlay pauses when playing and plays otherwise
func (e *Engine) TogglePlay() error {
	if e.Status() == api.StatusPlaying {
		return e.Pause()
	}
	return e.Play()
}

type exitReason int

const (
	exitStopped exitReason = iota
	exitEnded
	exitFailed
)

// run is the production loop. Each cycle renders the window at the clock,
// writes it to the device and advances the clock by the window length.
func (e *Engine) run(dev audio.Device, rate int, stop, done chan struct{}) {
	frames := e.opts.BufferFrames
	step := float64(frames) / float64(rate)

	for {
		select {
		case <-stop:
			e.finish(dev, stop, done, exitStopped, nil)
			return
		default:
		}

		if e.Status() == api.StatusPaused {
			select {
			case <-e.resume:
			case <-stop:
			}
			continue
		}

		snap := e.tl.Snapshot()
		t := e.clock.Load()
		if t >= snap.TotalDuration {
			e.finish(dev, stop, done, exitEnded, nil)
			return
		}

		buf := e.mix.Render(snap.Clips, t, frames, rate)
		if err := dev.Write(buf); err != nil {
			select {
			case <-stop:
				e.finish(dev, stop, done, exitStopped, nil)
			default:
				e.finish(dev, stop, done, exitFailed, err)
			}
			return
		}

		// A Stop that landed during the write owns the clock now
		select {
		case <-stop:
			e.finish(dev, stop, done, exitStopped, nil)
			return
		default:
		}

		pos := e.clock.Advance(t, step)
		e.publish(api.EventPositionUpdate, pos)
	}
}

// finish tears down the device and, unless a newer Play took over, returns
// the engine to Stopped. The clock is rewound to 0 except after a failure.
func (e *Engine) finish(dev audio.Device, stop, done chan struct{}, reason exitReason, cause error) {
	if err := dev.Close(); err != nil {
		e.log.Warn("closing output device", zap.Error(err))
	}

	e.mu.Lock()
	current := e.stop == stop
	if current {
		e.status.Store(int32(api.StatusStopped))
		if reason != exitFailed {
			e.clock.Store(0)
		}
	}
	e.mu.Unlock()
	close(done)

	if !current {
		return
	}
	switch reason {
	case exitEnded:
		e.log.Info("playback reached end of timeline")
		e.publishState()
		e.publish(api.EventPlaybackEnded, nil)
	case exitFailed:
		err := playerrors.NewEngineError("write", "", cause)
		e.log.Error("output device failed", zap.Error(cause))
		e.publishState()
		e.publish(api.EventError, err)
	}
}

func (e *Engine) publishState() {
	e.publish(api.EventStateChange, e.GetState())
}

func (e *Engine) publish(t api.EventType, payload interface{}) {
	if e.bus != nil {
		e.bus.Publish(t, payload)
	}
}
