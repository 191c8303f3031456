package separate

import (
	"context"
	"math"

	"github.com/jscyril/stem_studio/internal/audio"
	"github.com/jscyril/stem_studio/internal/stems"
	playerrors "github.com/jscyril/stem_studio/pkg/errors"
)

// Crossover frequencies of the band-split backend, Hz
const (
	BassCutoff   = 200
	VocalsCutoff = 2000
)

// Q of the two sections of a 4th-order Butterworth filter
var butterworth4Q = [2]float64{0.5411961, 1.3065630}

// BandSplit is a filter-bank fallback used when no separation model is
// installed: bass below 200 Hz, drums between 200 Hz and 2 kHz, vocals above.
type BandSplit struct{}

// NewBandSplit returns the band-split backend
func NewBandSplit() *BandSplit {
	return &BandSplit{}
}

// Name implements Backend
func (*BandSplit) Name() string { return BackendBand }

// Separate implements Backend. Stems keep the rate and layout of mix.
func (b *BandSplit) Separate(ctx context.Context, source string, mix *audio.Buffer) ([]stems.Stem, error) {
	if mix == nil {
		return nil, playerrors.ErrNoSource
	}
	rate := float64(mix.SampleRate())
	ch := mix.Channels()
	in := mix.Interleaved()

	low200 := filter(in, ch, lowpass4(BassCutoff, rate))
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	low2k := filter(in, ch, lowpass4(VocalsCutoff, rate))
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	high2k := filter(in, ch, highpass4(VocalsCutoff, rate))
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mid := make([]float32, len(in))
	for i := range mid {
		mid[i] = low2k[i] - low200[i]
	}

	named := []struct {
		name string
		data []float32
	}{
		{"vocals", high2k},
		{"drums", mid},
		{"bass", low200},
	}
	out := make([]stems.Stem, 0, len(named))
	for _, n := range named {
		buf, err := audio.NewBuffer(n.data, ch, mix.SampleRate())
		if err != nil {
			return nil, err
		}
		out = append(out, stems.Stem{Name: n.name, Index: stems.TrackFor(n.name, 0), Buffer: buf})
	}
	return out, nil
}

// biquad is one second-order section in direct form I, normalised so a0 = 1
type biquad struct {
	b0, b1, b2, a1, a2 float64
}

func lowpass4(cutoff, rate float64) []biquad {
	return []biquad{lowpass(cutoff, rate, butterworth4Q[0]), lowpass(cutoff, rate, butterworth4Q[1])}
}

func highpass4(cutoff, rate float64) []biquad {
	return []biquad{highpass(cutoff, rate, butterworth4Q[0]), highpass(cutoff, rate, butterworth4Q[1])}
}

func lowpass(cutoff, rate, q float64) biquad {
	w := 2 * math.Pi * cutoff / rate
	cos, alpha := math.Cos(w), math.Sin(w)/(2*q)
	a0 := 1 + alpha
	return biquad{
		b0: (1 - cos) / 2 / a0,
		b1: (1 - cos) / a0,
		b2: (1 - cos) / 2 / a0,
		a1: -2 * cos / a0,
		a2: (1 - alpha) / a0,
	}
}

func highpass(cutoff, rate, q float64) biquad {
	w := 2 * math.Pi * cutoff / rate
	cos, alpha := math.Cos(w), math.Sin(w)/(2*q)
	a0 := 1 + alpha
	return biquad{
		b0: (1 + cos) / 2 / a0,
		b1: -(1 + cos) / a0,
		b2: (1 + cos) / 2 / a0,
		a1: -2 * cos / a0,
		a2: (1 - alpha) / a0,
	}
}

// filter runs the cascade over each channel of interleaved samples
func filter(in []float32, channels int, sections []biquad) []float32 {
	out := make([]float32, len(in))
	copy(out, in)
	for _, s := range sections {
		for c := 0; c < channels; c++ {
			var x1, x2, y1, y2 float64
			for i := c; i < len(out); i += channels {
				x := float64(out[i])
				y := s.b0*x + s.b1*x1 + s.b2*x2 - s.a1*y1 - s.a2*y2
				x2, x1 = x1, x
				y2, y1 = y1, y
				out[i] = float32(y)
			}
		}
	}
	return out
}
