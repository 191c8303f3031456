// Package mixer renders windows of the timeline into stereo buffers.
package mixer

import (
	"math"

	"github.com/jscyril/stem_studio/internal/timeline"
)

// FrameCount returns the number of output frames for a window length
func FrameCount(durationSeconds float64, sampleRate int) int {
	n := int(math.Round(durationSeconds * float64(sampleRate)))
	if n < 0 {
		return 0
	}
	return n
}

// RenderWindow mixes [start, start+duration) of clips into a new stereo
// buffer of FrameCount(duration, sampleRate) frames. The result is silent
// when nothing is audible in the window.
func RenderWindow(clips []timeline.Clip, start, duration float64, sampleRate int) ([][2]float32, int) {
	out := make([][2]float32, FrameCount(duration, sampleRate))
	MixInto(out, clips, start, sampleRate)
	Limit(out)
	return out, sampleRate
}

// Mixer renders into a reusable buffer so the playback loop does not
// allocate per cycle. A Mixer is not safe for concurrent use.
type Mixer struct {
	buf [][2]float32
}

// Render mixes frames frames starting at start. The returned slice is
// owned by the Mixer and overwritten by the next call.
func (m *Mixer) Render(clips []timeline.Clip, start float64, frames, sampleRate int) [][2]float32 {
	if cap(m.buf) < frames {
		m.buf = make([][2]float32, frames)
	}
	out := m.buf[:frames]
	for i := range out {
		out[i] = [2]float32{}
	}
	MixInto(out, clips, start, sampleRate)
	Limit(out)
	return out
}

// MixInto adds every audible clip overlapping the window into dst, which
// covers len(dst) frames from start. Clip positions are converted to
// sample indices at sampleRate; clip samples map one-to-one onto output
// frames. It reports whether any clip contributed.
func MixInto(dst [][2]float32, clips []timeline.Clip, start float64, sampleRate int) bool {
	windowStart := int64(math.Round(start * float64(sampleRate)))
	windowEnd := windowStart + int64(len(dst))
	contributed := false

	for _, clip := range clips {
		if clip.Muted || clip.Buffer == nil {
			continue
		}

		clipStart := int64(math.Round(clip.Start * float64(sampleRate)))
		clipEnd := clipStart + int64(clip.Buffer.Frames())

		overlapStart := max(windowStart, clipStart)
		overlapEnd := min(windowEnd, clipEnd)
		if overlapStart >= overlapEnd {
			continue
		}
		contributed = true

		dstOff := int(overlapStart - windowStart)
		srcOff := int(overlapStart - clipStart)
		n := int(overlapEnd - overlapStart)
		for i := 0; i < n; i++ {
			l, r := clip.Buffer.Frame(srcOff + i)
			dst[dstOff+i][0] += l
			dst[dstOff+i][1] += r
		}
	}
	return contributed
}

// Limit scales the whole buffer by 1/peak when its peak exceeds 1.0.
// It returns the peak before scaling and the gain applied.
func Limit(buf [][2]float32) (peak, gain float32) {
	for _, f := range buf {
		if a := abs32(f[0]); a > peak {
			peak = a
		}
		if a := abs32(f[1]); a > peak {
			peak = a
		}
	}

	if peak <= 1 {
		return peak, 1
	}

	gain = 1 / peak
	for i := range buf {
		buf[i][0] /= peak
		buf[i][1] /= peak
	}
	return peak, gain
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
