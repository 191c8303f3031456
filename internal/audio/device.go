package audio

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"
	playerrors "github.com/jscyril/stem_studio/pkg/errors"
)

// Device consumes stereo frames at a fixed rate.
// Write blocks until the device has room for the frames; this is what paces
// the playback loop. Close releases the stream and unblocks pending writes.
type Device interface {
	Write(frames [][2]float32) error
	Close() error
}

// DeviceOpener opens an output stream for the given rate and buffer size
type DeviceOpener func(sampleRate, bufferFrames int) (Device, error)

// speakerSlots is how many buffers may be queued ahead of the speaker
const speakerSlots = 2

// SpeakerDevice feeds the system speaker through beep. Frames written are
// queued in a small fixed pool of slots; the speaker goroutine pulls them
// and plays silence when the queue runs dry.
type SpeakerDevice struct {
	frames  chan [][2]float32
	free    chan [][2]float32
	closed  chan struct{}
	once    sync.Once
	release func()

	cur [][2]float32
	pos int

	underruns atomic.Int64
}

var _ Device = (*SpeakerDevice)(nil)
var _ beep.Streamer = (*SpeakerDevice)(nil)

// OpenSpeaker initializes the speaker and starts pulling from a new SpeakerDevice
func OpenSpeaker(sampleRate, bufferFrames int) (Device, error) {
	if err := speaker.Init(beep.SampleRate(sampleRate), bufferFrames); err != nil {
		return nil, fmt.Errorf("%w: %v", playerrors.ErrDeviceUnavailable, err)
	}
	d := newSpeakerDevice(bufferFrames)
	d.release = func() {
		speaker.Clear()
		speaker.Close()
	}
	speaker.Play(d)
	return d, nil
}

func newSpeakerDevice(bufferFrames int) *SpeakerDevice {
	d := &SpeakerDevice{
		frames: make(chan [][2]float32, speakerSlots),
		free:   make(chan [][2]float32, speakerSlots),
		closed: make(chan struct{}),
	}
	for i := 0; i < speakerSlots; i++ {
		d.free <- make([][2]float32, 0, bufferFrames)
	}
	return d
}

// Write copies frames into a free slot and queues it for the speaker
func (d *SpeakerDevice) Write(frames [][2]float32) error {
	var slot [][2]float32
	select {
	case slot = <-d.free:
	case <-d.closed:
		return playerrors.ErrDeviceClosed
	}

	if cap(slot) < len(frames) {
		slot = make([][2]float32, len(frames))
	}
	slot = slot[:len(frames)]
	copy(slot, frames)

	select {
	case d.frames <- slot:
		return nil
	case <-d.closed:
		return playerrors.ErrDeviceClosed
	}
}

// Stream implements beep.Streamer; it runs on the speaker goroutine
func (d *SpeakerDevice) Stream(samples [][2]float64) (n int, ok bool) {
	select {
	case <-d.closed:
		return 0, false
	default:
	}

	for n < len(samples) {
		if d.pos >= len(d.cur) {
			if d.cur != nil {
				select {
				case d.free <- d.cur[:0]:
				default:
				}
				d.cur = nil
			}
			select {
			case next := <-d.frames:
				d.cur = next
				d.pos = 0
			default:
				for ; n < len(samples); n++ {
					samples[n] = [2]float64{}
				}
				d.underruns.Add(1)
				return n, true
			}
		}
		for ; n < len(samples) && d.pos < len(d.cur); n++ {
			samples[n][0] = float64(d.cur[d.pos][0])
			samples[n][1] = float64(d.cur[d.pos][1])
			d.pos++
		}
	}
	return n, true
}

// Err implements beep.Streamer
func (d *SpeakerDevice) Err() error {
	return nil
}

// Underruns reports how many times the speaker found the queue empty
func (d *SpeakerDevice) Underruns() int64 {
	return d.underruns.Load()
}

// Close stops the speaker. It is safe to call more than once.
func (d *SpeakerDevice) Close() error {
	d.once.Do(func() {
		close(d.closed)
		if d.release != nil {
			d.release()
		}
	})
	return nil
}
