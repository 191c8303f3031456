package audio

import (
	"fmt"

	"github.com/faiface/beep"
	playerrors "github.com/jscyril/stem_studio/pkg/errors"
)

// DefaultResampleQuality is the beep.Resample quality used when none is configured
const DefaultResampleQuality = 4

// Resample converts b to the target rate. Buffers already at the target
// rate are returned as-is. The channel count is preserved.
func Resample(b *Buffer, targetRate, quality int) (*Buffer, error) {
	if targetRate <= 0 {
		return nil, fmt.Errorf("%w: target rate %d", playerrors.ErrInvalidBuffer, targetRate)
	}
	if b.SampleRate() == targetRate {
		return b, nil
	}
	if quality < 1 {
		quality = DefaultResampleQuality
	}

	resampled := beep.Resample(quality, beep.SampleRate(b.SampleRate()), beep.SampleRate(targetRate), &bufferStreamer{buf: b})

	expected := int(float64(b.Frames()) * float64(targetRate) / float64(b.SampleRate()))
	data := make([]float32, 0, (expected+1)*b.Channels())
	chunk := make([][2]float64, 4096)
	for {
		n, ok := resampled.Stream(chunk)
		for _, s := range chunk[:n] {
			if b.Channels() == 1 {
				data = append(data, float32(s[0]))
			} else {
				data = append(data, float32(s[0]), float32(s[1]))
			}
		}
		if !ok {
			break
		}
	}
	if err := resampled.Err(); err != nil {
		return nil, fmt.Errorf("resample: %w", err)
	}
	return NewBuffer(data, b.Channels(), targetRate)
}

// bufferStreamer adapts a Buffer to beep.Streamer
type bufferStreamer struct {
	buf *Buffer
	pos int
}

var _ beep.Streamer = (*bufferStreamer)(nil)

func (s *bufferStreamer) Stream(samples [][2]float64) (n int, ok bool) {
	frames := s.buf.Frames()
	if s.pos >= frames {
		return 0, false
	}
	for n < len(samples) && s.pos < frames {
		l, r := s.buf.Frame(s.pos)
		samples[n][0] = float64(l)
		samples[n][1] = float64(r)
		n++
		s.pos++
	}
	return n, true
}

func (s *bufferStreamer) Err() error {
	return nil
}
