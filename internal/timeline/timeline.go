package timeline

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/jscyril/stem_studio/internal/audio"
	playerrors "github.com/jscyril/stem_studio/pkg/errors"
)

// Options configures track layout and duration policy
type Options struct {
	SampleRate  int
	TrackCount  int
	MinDuration float64 // lower bound for the visible timeline, seconds
	TailPadding float64 // added after the last clip when extending
	SnapSeconds float64 // grid used by Drop
}

// DefaultOptions mirrors the stock four-lane layout
func DefaultOptions() Options {
	return Options{
		SampleRate:  44100,
		TrackCount:  4,
		MinDuration: 60,
		TailPadding: 5,
		SnapSeconds: 0.1,
	}
}

// Snapshot is an immutable view of the clip set. Readers may hold on to it
// for as long as they like; later mutations publish a new Snapshot.
type Snapshot struct {
	Clips         []Clip
	TotalDuration float64
	SampleRate    int
	TrackCount    int
	Version       uint64
}

// Find returns the clip with the given ID
func (s *Snapshot) Find(id string) (Clip, bool) {
	for _, c := range s.Clips {
		if c.ID == id {
			return c, true
		}
	}
	return Clip{}, false
}

// Timeline owns the project's clips. Writers serialize on a mutex and
// publish copy-on-write snapshots; readers load the current snapshot
// atomically and never wait on writers.
type Timeline struct {
	opts Options

	mu   sync.Mutex
	snap atomic.Pointer[Snapshot]
}

// New creates an empty timeline
func New(opts Options) *Timeline {
	if opts.TrackCount < 1 {
		opts.TrackCount = 1
	}
	if opts.SampleRate <= 0 {
		opts.SampleRate = DefaultOptions().SampleRate
	}
	t := &Timeline{opts: opts}
	t.snap.Store(&Snapshot{
		TotalDuration: opts.MinDuration,
		SampleRate:    opts.SampleRate,
		TrackCount:    opts.TrackCount,
	})
	return t
}

// Snapshot returns the current immutable clip set. Safe from any goroutine.
func (t *Timeline) Snapshot() *Snapshot {
	return t.snap.Load()
}

// Options returns the timeline configuration
func (t *Timeline) Options() Options {
	return t.opts
}

// TotalDuration returns the current timeline length in seconds
func (t *Timeline) TotalDuration() float64 {
	return t.snap.Load().TotalDuration
}

// Add places a new clip. Track and start are clamped into range. The buffer
// must already be at the project sample rate.
func (t *Timeline) Add(name string, buf *audio.Buffer, track int, start float64) (Clip, error) {
	if buf == nil {
		return Clip{}, playerrors.NewEngineError("add_clip", "", playerrors.ErrInvalidBuffer)
	}
	if buf.SampleRate() != t.opts.SampleRate {
		return Clip{}, playerrors.NewEngineError("add_clip", "",
			fmt.Errorf("%w: clip %d Hz, project %d Hz", playerrors.ErrSampleRateMismatch, buf.SampleRate(), t.opts.SampleRate))
	}

	clip := Clip{
		ID:     uuid.NewString(),
		Name:   name,
		Track:  t.clampTrack(track),
		Start:  clampStart(start),
		Buffer: buf,
	}

	t.mutate(func(clips []Clip) []Clip {
		return append(clips, clip)
	})
	return clip, nil
}

// Replace swaps the whole clip set in one step and resets the total
// duration to cover the new clips and at least minTotal. Nothing is
// published if any clip is invalid.
func (t *Timeline) Replace(clips []Clip, minTotal float64) ([]Clip, error) {
	prepared := make([]Clip, 0, len(clips))
	for _, c := range clips {
		if c.Buffer == nil {
			return nil, playerrors.NewEngineError("replace", c.ID, playerrors.ErrInvalidBuffer)
		}
		if c.Buffer.SampleRate() != t.opts.SampleRate {
			return nil, playerrors.NewEngineError("replace", c.ID, playerrors.ErrSampleRateMismatch)
		}
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		c.Track = t.clampTrack(c.Track)
		c.Start = clampStart(c.Start)
		prepared = append(prepared, c)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	old := t.snap.Load()
	total := math.Max(t.opts.MinDuration, minTotal)
	total = t.coverEnd(total, prepared)
	t.snap.Store(&Snapshot{
		Clips:         prepared,
		TotalDuration: total,
		SampleRate:    t.opts.SampleRate,
		TrackCount:    t.opts.TrackCount,
		Version:       old.Version + 1,
	})

	out := make([]Clip, len(prepared))
	copy(out, prepared)
	return out, nil
}

// Remove deletes a clip. The clip's ID is invalid afterwards.
func (t *Timeline) Remove(id string) error {
	return t.update("remove", id, func(clips []Clip, i int) []Clip {
		return append(clips[:i], clips[i+1:]...)
	})
}

// MoveTo repositions a clip. Out-of-range values are clamped.
func (t *Timeline) MoveTo(id string, track int, start float64) error {
	track = t.clampTrack(track)
	start = clampStart(start)
	return t.update("move", id, func(clips []Clip, i int) []Clip {
		clips[i].Track = track
		clips[i].Start = start
		return clips
	})
}

// Drop ends a move gesture: the clip's start is snapped to the grid
func (t *Timeline) Drop(id string) error {
	grid := t.opts.SnapSeconds
	return t.update("drop", id, func(clips []Clip, i int) []Clip {
		clips[i].Start = clampStart(Snap(clips[i].Start, grid))
		return clips
	})
}

// SetMuted changes whether the clip is heard; samples are untouched
func (t *Timeline) SetMuted(id string, muted bool) error {
	return t.update("mute", id, func(clips []Clip, i int) []Clip {
		clips[i].Muted = muted
		return clips
	})
}

// ToggleMute flips the clip's mute flag and returns the new value
func (t *Timeline) ToggleMute(id string) (bool, error) {
	var muted bool
	err := t.update("mute", id, func(clips []Clip, i int) []Clip {
		clips[i].Muted = !clips[i].Muted
		muted = clips[i].Muted
		return clips
	})
	return muted, err
}

// Clear removes every clip, keeping the current total duration
func (t *Timeline) Clear() {
	t.mutate(func([]Clip) []Clip { return nil })
}

// update applies fn to a copy of the clip list at the index of id
func (t *Timeline) update(op, id string, fn func(clips []Clip, i int) []Clip) error {
	var found bool
	t.mutate(func(clips []Clip) []Clip {
		for i := range clips {
			if clips[i].ID == id {
				found = true
				return fn(clips, i)
			}
		}
		return clips
	})
	if !found {
		return playerrors.NewEngineError(op, id, playerrors.ErrClipNotFound)
	}
	return nil
}

// mutate copies the clip list, applies fn and publishes the result
func (t *Timeline) mutate(fn func(clips []Clip) []Clip) {
	t.mu.Lock()
	defer t.mu.Unlock()

	old := t.snap.Load()
	clips := make([]Clip, len(old.Clips), len(old.Clips)+1)
	copy(clips, old.Clips)
	clips = fn(clips)

	t.snap.Store(&Snapshot{
		Clips:         clips,
		TotalDuration: t.coverEnd(old.TotalDuration, clips),
		SampleRate:    t.opts.SampleRate,
		TrackCount:    t.opts.TrackCount,
		Version:       old.Version + 1,
	})
}

// coverEnd extends total so it reaches past the last clip
func (t *Timeline) coverEnd(total float64, clips []Clip) float64 {
	var maxEnd float64
	for _, c := range clips {
		if end := c.End(); end > maxEnd {
			maxEnd = end
		}
	}
	if maxEnd > total {
		total = math.Max(t.opts.MinDuration, maxEnd+t.opts.TailPadding)
	}
	return total
}

func (t *Timeline) clampTrack(track int) int {
	if track < 0 {
		return 0
	}
	if track >= t.opts.TrackCount {
		return t.opts.TrackCount - 1
	}
	return track
}

func clampStart(start float64) float64 {
	if start < 0 || math.IsNaN(start) || math.IsInf(start, 0) {
		return 0
	}
	return start
}
