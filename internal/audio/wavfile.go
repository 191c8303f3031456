package audio

import (
	"fmt"
	"math"
	"os"

	goaudio "github.com/go-audio/audio"
	gowav "github.com/go-audio/wav"
	playerrors "github.com/jscyril/stem_studio/pkg/errors"
)

// StemHeadroom is the peak a written file is scaled down to when louder
const StemHeadroom = 0.99

// WriteWAV16 writes b as 16-bit PCM. If the buffer's peak exceeds
// StemHeadroom the whole file is scaled so its peak equals StemHeadroom.
func WriteWAV16(path string, b *Buffer) error {
	f, err := os.Create(path)
	if err != nil {
		return &playerrors.LoadError{Path: path, Err: err}
	}

	if err := encode16(f, b); err != nil {
		f.Close()
		return &playerrors.LoadError{Path: path, Err: err}
	}
	if err := f.Close(); err != nil {
		return &playerrors.LoadError{Path: path, Err: err}
	}
	return nil
}

func encode16(f *os.File, b *Buffer) error {
	gain := float32(1)
	if peak := b.Peak(); peak > StemHeadroom {
		gain = StemHeadroom / peak
	}

	samples := b.data
	intBuf := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: b.Channels(),
			SampleRate:  b.SampleRate(),
		},
		Data:           make([]int, len(samples)),
		SourceBitDepth: 16,
	}
	for i, v := range samples {
		intBuf.Data[i] = int(math.Round(float64(v * gain * 32767)))
	}

	enc := gowav.NewEncoder(f, b.SampleRate(), 16, b.Channels(), 1)
	if err := enc.Write(intBuf); err != nil {
		return fmt.Errorf("encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finalize wav: %w", err)
	}
	return nil
}
