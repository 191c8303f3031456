package audio

import (
	"fmt"
	"math"

	playerrors "github.com/jscyril/stem_studio/pkg/errors"
)

// Buffer is decoded PCM audio: interleaved float32 samples in [-1, 1]
// with one or two channels. A Buffer is never modified after construction.
type Buffer struct {
	data       []float32
	channels   int
	sampleRate int
}

// NewBuffer wraps interleaved samples. The buffer takes ownership of data;
// callers must not modify it afterwards.
func NewBuffer(data []float32, channels, sampleRate int) (*Buffer, error) {
	if channels != 1 && channels != 2 {
		return nil, fmt.Errorf("%w: %d channels", playerrors.ErrInvalidBuffer, channels)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample rate %d", playerrors.ErrInvalidBuffer, sampleRate)
	}
	if len(data)%channels != 0 {
		return nil, fmt.Errorf("%w: %d samples not aligned to %d channels", playerrors.ErrInvalidBuffer, len(data), channels)
	}
	return &Buffer{data: data, channels: channels, sampleRate: sampleRate}, nil
}

// Constant returns a buffer holding the same value in every sample.
func Constant(value float32, frames, channels, sampleRate int) (*Buffer, error) {
	if frames < 0 {
		return nil, fmt.Errorf("%w: %d frames", playerrors.ErrInvalidBuffer, frames)
	}
	data := make([]float32, frames*channels)
	for i := range data {
		data[i] = value
	}
	return NewBuffer(data, channels, sampleRate)
}

// Frames returns the number of sample frames
func (b *Buffer) Frames() int {
	return len(b.data) / b.channels
}

// Channels returns 1 for mono, 2 for stereo
func (b *Buffer) Channels() int {
	return b.channels
}

// SampleRate returns the buffer's sample rate in Hz
func (b *Buffer) SampleRate() int {
	return b.sampleRate
}

// Duration returns the length in seconds
func (b *Buffer) Duration() float64 {
	return float64(b.Frames()) / float64(b.sampleRate)
}

// Frame returns the left and right sample of frame i. Mono is duplicated.
func (b *Buffer) Frame(i int) (left, right float32) {
	if b.channels == 1 {
		v := b.data[i]
		return v, v
	}
	return b.data[2*i], b.data[2*i+1]
}

// Peak returns the largest absolute sample value
func (b *Buffer) Peak() float32 {
	var peak float32
	for _, v := range b.data {
		if a := float32(math.Abs(float64(v))); a > peak {
			peak = a
		}
	}
	return peak
}

// Interleaved returns a copy of the samples
func (b *Buffer) Interleaved() []float32 {
	out := make([]float32, len(b.data))
	copy(out, b.data)
	return out
}

// Overview returns up to n points of the first channel, decimated and scaled
// so the loudest point is 1. Used to draw clip waveforms.
func (b *Buffer) Overview(n int) []float32 {
	frames := b.Frames()
	if n <= 0 || frames == 0 {
		return nil
	}
	step := frames / n
	if step < 1 {
		step = 1
	}

	points := make([]float32, 0, n)
	var maxVal float32
	for i := 0; i < frames && len(points) < n; i += step {
		v := b.data[i*b.channels]
		points = append(points, v)
		if a := float32(math.Abs(float64(v))); a > maxVal {
			maxVal = a
		}
	}
	if maxVal == 0 {
		maxVal = 1
	}
	for i := range points {
		points[i] /= maxVal
	}
	return points
}
