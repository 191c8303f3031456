package timeline

import (
	"math"

	"github.com/jscyril/stem_studio/internal/audio"
)

// Clip is an audio buffer placed on a track lane at a start time.
// Clips are values: the timeline hands out copies, and a change to a clip
// is published as a new snapshot rather than an in-place write.
type Clip struct {
	ID     string
	Name   string
	Track  int
	Start  float64 // seconds on the global timeline
	Muted  bool
	Buffer *audio.Buffer
}

// Duration returns the clip length in seconds
func (c Clip) Duration() float64 {
	if c.Buffer == nil {
		return 0
	}
	return c.Buffer.Duration()
}

// End returns the time just past the clip's last sample
func (c Clip) End() float64 {
	return c.Start + c.Duration()
}

// Overlaps reports whether the clip covers any part of [start, start+duration)
func (c Clip) Overlaps(start, duration float64) bool {
	return c.Start < start+duration && c.End() > start
}

// Snap rounds t to the nearest multiple of grid. A non-positive grid
// leaves t unchanged.
func Snap(t, grid float64) float64 {
	if grid <= 0 {
		return t
	}
	return math.Round(t/grid) * grid
}
