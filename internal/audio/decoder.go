package audio

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/flac"
	"github.com/faiface/beep/mp3"
	gowav "github.com/go-audio/wav"
	playerrors "github.com/jscyril/stem_studio/pkg/errors"
)

// SupportedFormats returns list of supported audio formats
func SupportedFormats() []string {
	return []string{".wav", ".mp3", ".flac"}
}

// IsSupported checks if a file format is supported
func IsSupported(filePath string) bool {
	ext := strings.ToLower(filepath.Ext(filePath))
	for _, format := range SupportedFormats() {
		if ext == format {
			return true
		}
	}
	return false
}

// DecodeFile reads a whole audio file into a Buffer at its native rate
func DecodeFile(filePath string) (*Buffer, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, &playerrors.LoadError{Path: filePath, Err: err}
	}
	defer file.Close()

	buf, err := Decode(file, filePath)
	if err != nil {
		return nil, &playerrors.LoadError{Path: filePath, Err: err}
	}
	return buf, nil
}

// Decode decodes an audio stream based on the extension of filePath
func Decode(r io.ReadSeeker, filePath string) (*Buffer, error) {
	ext := strings.ToLower(filepath.Ext(filePath))

	switch ext {
	case ".wav":
		return DecodeWAV(r)
	case ".mp3":
		streamer, format, err := mp3.Decode(nopCloser{r})
		if err != nil {
			return nil, err
		}
		defer streamer.Close()
		return drain(streamer, format)
	case ".flac":
		streamer, format, err := flac.Decode(r)
		if err != nil {
			return nil, err
		}
		defer streamer.Close()
		return drain(streamer, format)
	default:
		return nil, fmt.Errorf("%w: %s", playerrors.ErrInvalidFormat, ext)
	}
}

const (
	wavFormatPCM        = 1
	wavFormatExtensible = 0xFFFE
)

// DecodeWAV reads integer PCM WAV data, dividing each sample by the largest
// positive value of its bit depth so full scale maps to 1.0.
func DecodeWAV(r io.ReadSeeker) (*Buffer, error) {
	dec := gowav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: not a wav file", playerrors.ErrInvalidFormat)
	}
	dec.ReadInfo()
	if dec.WavAudioFormat != wavFormatPCM && dec.WavAudioFormat != wavFormatExtensible {
		return nil, fmt.Errorf("%w: wav encoding %d is not integer PCM", playerrors.ErrInvalidFormat, dec.WavAudioFormat)
	}

	pcm, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("read wav data: %w", err)
	}
	if pcm.Format == nil || pcm.Format.NumChannels <= 0 {
		return nil, fmt.Errorf("%w: missing wav format", playerrors.ErrInvalidFormat)
	}

	bits := int(dec.BitDepth)
	if bits < 8 || bits > 32 {
		return nil, fmt.Errorf("%w: %d-bit wav", playerrors.ErrInvalidFormat, bits)
	}
	fullScale := float32(int64(1)<<(bits-1) - 1)

	srcChannels := pcm.Format.NumChannels
	channels := srcChannels
	if channels > 2 {
		channels = 2
	}
	frames := len(pcm.Data) / srcChannels

	data := make([]float32, frames*channels)
	for f := 0; f < frames; f++ {
		for c := 0; c < channels; c++ {
			v := pcm.Data[f*srcChannels+c]
			if bits == 8 {
				// 8-bit wav is unsigned
				v -= 128
			}
			// the most negative code is one step past -fullScale
			data[f*channels+c] = max(float32(v)/fullScale, -1)
		}
	}

	return NewBuffer(data, channels, pcm.Format.SampleRate)
}

// drain reads a beep streamer to the end as a stereo Buffer
func drain(streamer beep.Streamer, format beep.Format) (*Buffer, error) {
	chunk := make([][2]float64, 4096)
	data := make([]float32, 0, 2*format.SampleRate.N(time.Second))
	for {
		n, ok := streamer.Stream(chunk)
		for _, s := range chunk[:n] {
			data = append(data, float32(s[0]), float32(s[1]))
		}
		if !ok {
			break
		}
	}
	if err := streamer.Err(); err != nil {
		return nil, fmt.Errorf("decode stream: %w", err)
	}
	return NewBuffer(data, 2, int(format.SampleRate))
}

type nopCloser struct {
	io.Reader
}

func (nopCloser) Close() error { return nil }
