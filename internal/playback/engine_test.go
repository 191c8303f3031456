package playback

import (
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/jscyril/stem_studio/api"
	"github.com/jscyril/stem_studio/internal/audio"
	"github.com/jscyril/stem_studio/internal/timeline"
	playerrors "github.com/jscyril/stem_studio/pkg/errors"
	"github.com/jscyril/stem_studio/pkg/events"
)

const testRate = 44100

var errBroken = errors.New("stream broke")

// fakeDevice records what the engine writes
type fakeDevice struct {
	pace      time.Duration
	failAfter int // fail the write after this many successes; 0 never fails

	mu     sync.Mutex
	writes int
	first  [][2]float32
	closed bool
}

func (d *fakeDevice) Write(frames [][2]float32) error {
	if d.pace > 0 {
		time.Sleep(d.pace)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return playerrors.ErrDeviceClosed
	}
	if d.failAfter > 0 && d.writes >= d.failAfter {
		return errBroken
	}
	if d.writes == 0 {
		d.first = append([][2]float32(nil), frames...)
	}
	d.writes++
	return nil
}

func (d *fakeDevice) Close() error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	return nil
}

func (d *fakeDevice) Writes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.writes
}

func (d *fakeDevice) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

func openerFor(devs ...*fakeDevice) audio.DeviceOpener {
	var mu sync.Mutex
	return func(sampleRate, bufferFrames int) (audio.Device, error) {
		mu.Lock()
		defer mu.Unlock()
		if len(devs) == 0 {
			return nil, errors.New("no more devices")
		}
		d := devs[0]
		devs = devs[1:]
		return d, nil
	}
}

func newTestEngine(t *testing.T, minDuration float64, open audio.DeviceOpener) (*Engine, *timeline.Timeline, *events.EventBus) {
	t.Helper()
	opts := timeline.DefaultOptions()
	opts.MinDuration = minDuration
	tl := timeline.New(opts)
	bus := events.NewEventBus()
	t.Cleanup(bus.Close)
	return NewEngine(tl, open, Options{BufferFrames: 2048, SeekStep: 5}, bus, nil), tl, bus
}

func waitFor(t *testing.T, ch <-chan api.Event, what string) api.Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
		return api.Event{}
	}
}

func eventually(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestNewEngine(t *testing.T) {
	e, _, _ := newTestEngine(t, 60, openerFor())

	state := e.GetState()
	if state.Status != api.StatusStopped {
		t.Errorf("Expected StatusStopped, got %v", state.Status)
	}
	if state.Position != 0 {
		t.Errorf("Expected position 0, got %v", state.Position)
	}
	if state.TotalDuration != 60 {
		t.Errorf("Expected total 60, got %v", state.TotalDuration)
	}
}

func TestSeek(t *testing.T) {
	e, _, _ := newTestEngine(t, 60, openerFor())

	tests := []struct {
		name string
		to   float64
		want float64
	}{
		{"inside", 12.5, 12.5},
		{"negative", -3, 0},
		{"past end", 1000, 60},
		{"end", 60, 60},
		{"nan", math.NaN(), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e.Seek(tt.to)
			e.Seek(tt.to)
			if got := e.Position(); got != tt.want {
				t.Errorf("Seek(%v) twice: position = %v, want %v", tt.to, got, tt.want)
			}
			if e.Status() != api.StatusStopped {
				t.Errorf("Seek changed status to %v", e.Status())
			}
		})
	}
}

func TestRewindForward(t *testing.T) {
	e, _, _ := newTestEngine(t, 60, openerFor())

	e.Seek(12)
	e.Rewind()
	if got := e.Position(); got != 7 {
		t.Errorf("Rewind from 12 = %v, want 7", got)
	}
	e.Forward()
	e.Forward()
	if got := e.Position(); got != 17 {
		t.Errorf("Forward twice from 7 = %v, want 17", got)
	}
	e.Seek(2)
	e.Rewind()
	if got := e.Position(); got != 0 {
		t.Errorf("Rewind from 2 = %v, want 0", got)
	}
	e.Seek(58)
	e.Forward()
	if got := e.Position(); got != 60 {
		t.Errorf("Forward from 58 = %v, want 60", got)
	}
}

func TestPlayDeviceUnavailable(t *testing.T) {
	open := func(int, int) (audio.Device, error) {
		return nil, errors.New("no sound card")
	}
	e, _, _ := newTestEngine(t, 60, open)
	e.Seek(3)

	err := e.Play()
	if !errors.Is(err, playerrors.ErrDeviceUnavailable) {
		t.Fatalf("Play() error = %v, want ErrDeviceUnavailable", err)
	}
	var engErr *playerrors.EngineError
	if !errors.As(err, &engErr) || engErr.Op != "play" {
		t.Errorf("Play() error = %#v, want EngineError for play", err)
	}
	if e.Status() != api.StatusStopped {
		t.Errorf("status = %v, want stopped", e.Status())
	}
	if e.Position() != 3 {
		t.Errorf("position = %v, want unchanged 3", e.Position())
	}
}

func TestTransportStateMachine(t *testing.T) {
	dev := &fakeDevice{pace: 5 * time.Millisecond}
	e, _, _ := newTestEngine(t, 60, openerFor(dev))
	defer e.Stop()

	if err := e.Play(); err != nil {
		t.Fatalf("Play() error = %v", err)
	}
	if e.Status() != api.StatusPlaying {
		t.Fatalf("status = %v, want playing", e.Status())
	}
	if err := e.Play(); err != nil {
		t.Errorf("Play() while playing should be a no-op, got %v", err)
	}

	eventually(t, func() bool { return dev.Writes() >= 3 }, "writes")

	e.Seek(30)
	if e.Status() != api.StatusPlaying {
		t.Errorf("seek while playing changed status to %v", e.Status())
	}
	eventually(t, func() bool { return e.Position() > 30 }, "clock to advance past seek target")

	e.Pause()
	if e.Status() != api.StatusPaused {
		t.Fatalf("status = %v, want paused", e.Status())
	}
	// let an in-flight write drain
	time.Sleep(30 * time.Millisecond)
	writes, pos := dev.Writes(), e.Position()
	time.Sleep(60 * time.Millisecond)
	if dev.Writes() != writes {
		t.Errorf("device written while paused: %d -> %d", writes, dev.Writes())
	}
	if e.Position() != pos {
		t.Errorf("clock advanced while paused: %v -> %v", pos, e.Position())
	}
	if dev.Closed() {
		t.Error("pause must not close the device")
	}

	e.Play()
	if e.Status() != api.StatusPlaying {
		t.Fatalf("status = %v, want playing after resume", e.Status())
	}
	eventually(t, func() bool { return dev.Writes() > writes }, "writes after resume")
	if e.Position() < pos {
		t.Errorf("resume reset position: %v < %v", e.Position(), pos)
	}

	e.Stop()
	if e.Status() != api.StatusStopped {
		t.Errorf("status = %v, want stopped", e.Status())
	}
	if e.Position() != 0 {
		t.Errorf("position after stop = %v, want 0", e.Position())
	}
	if !dev.Closed() {
		t.Error("stop must release the device")
	}
}

func TestTerminalStop(t *testing.T) {
	dev := &fakeDevice{}
	e, _, bus := newTestEngine(t, 0.25, openerFor(dev))
	ended := bus.Subscribe(api.EventPlaybackEnded)

	if err := e.Play(); err != nil {
		t.Fatalf("Play() error = %v", err)
	}
	waitFor(t, ended, "playback ended")

	if e.Status() != api.StatusStopped {
		t.Errorf("status = %v, want stopped", e.Status())
	}
	if e.Position() != 0 {
		t.Errorf("position = %v, want 0", e.Position())
	}
	// 0.25s in 2048-frame buffers
	if got, want := dev.Writes(), int(math.Ceil(0.25*testRate/2048)); got != want {
		t.Errorf("writes = %d, want %d", got, want)
	}
	eventually(t, dev.Closed, "device close")
}

func TestDeviceFailureReturnsToStopped(t *testing.T) {
	broken := &fakeDevice{failAfter: 3}
	healthy := &fakeDevice{pace: 5 * time.Millisecond}
	e, _, bus := newTestEngine(t, 60, openerFor(broken, healthy))
	errs := bus.Subscribe(api.EventError)

	if err := e.Play(); err != nil {
		t.Fatalf("Play() error = %v", err)
	}
	ev := waitFor(t, errs, "error event")

	err, ok := ev.Payload.(error)
	if !ok || !errors.Is(err, errBroken) {
		t.Errorf("error payload = %v, want wrapped stream error", ev.Payload)
	}
	eventually(t, func() bool { return e.Status() == api.StatusStopped }, "stopped after failure")
	if !broken.Closed() {
		t.Error("failed device must be closed")
	}

	// playback can be retried
	if err := e.Play(); err != nil {
		t.Fatalf("retry Play() error = %v", err)
	}
	eventually(t, func() bool { return healthy.Writes() > 0 }, "writes on retry")
	e.Stop()
}

func TestStopObservedPromptly(t *testing.T) {
	// a device paced like a real 2048-frame buffer at 44.1kHz
	dev := &fakeDevice{pace: 46 * time.Millisecond}
	e, _, _ := newTestEngine(t, 60, openerFor(dev))

	e.Play()
	eventually(t, func() bool { return dev.Writes() > 0 }, "first write")

	start := time.Now()
	e.Stop()
	if elapsed := time.Since(start); elapsed > 250*time.Millisecond {
		t.Errorf("Stop took %v", elapsed)
	}
	if !dev.Closed() {
		t.Error("device still open after Stop returned")
	}
}

func TestStopWhilePaused(t *testing.T) {
	dev := &fakeDevice{pace: 5 * time.Millisecond}
	e, _, _ := newTestEngine(t, 60, openerFor(dev))

	e.Play()
	e.Pause()

	done := make(chan struct{})
	go func() {
		e.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop blocked while paused")
	}
	if !dev.Closed() {
		t.Error("device still open")
	}
}

func TestPlayRendersTimeline(t *testing.T) {
	dev := &fakeDevice{pace: 5 * time.Millisecond}
	e, tl, _ := newTestEngine(t, 60, openerFor(dev))

	buf, err := audio.Constant(0.5, testRate, 1, testRate)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tl.Add("tone", buf, 0, 0); err != nil {
		t.Fatal(err)
	}

	e.Play()
	eventually(t, func() bool { return dev.Writes() > 0 }, "first write")
	e.Stop()

	dev.mu.Lock()
	defer dev.mu.Unlock()
	if len(dev.first) != 2048 {
		t.Fatalf("first buffer has %d frames, want 2048", len(dev.first))
	}
	for i, f := range dev.first {
		if f != [2]float32{0.5, 0.5} {
			t.Fatalf("frame %d = %v, want 0.5 on both channels", i, f)
		}
	}
}

func TestStateEvents(t *testing.T) {
	dev := &fakeDevice{pace: 5 * time.Millisecond}
	e, _, bus := newTestEngine(t, 60, openerFor(dev))
	states := bus.Subscribe(api.EventStateChange)

	e.Play()
	e.Pause()
	e.Stop()

	want := []api.PlaybackStatus{api.StatusPlaying, api.StatusPaused, api.StatusStopped}
	for _, w := range want {
		ev := waitFor(t, states, w.String())
		got := ev.Payload.(api.PlaybackState).Status
		if got != w {
			t.Errorf("state event = %v, want %v", got, w)
		}
	}
}

func TestClockAdvanceLosesToSeek(t *testing.T) {
	var c Clock
	c.Store(1)
	from := c.Load()

	c.Store(10) // a seek lands while a buffer is being written
	if got := c.Advance(from, 0.5); got != 10 {
		t.Errorf("Advance after seek = %v, want 10", got)
	}

	if got := c.Advance(10, 0.5); got != 10.5 {
		t.Errorf("Advance = %v, want 10.5", got)
	}
}

// gateDevice holds its first Write until release is closed
type gateDevice struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGateDevice() *gateDevice {
	return &gateDevice{entered: make(chan struct{}), release: make(chan struct{})}
}

func (d *gateDevice) Write([][2]float32) error {
	d.once.Do(func() {
		close(d.entered)
		<-d.release
	})
	return nil
}

func (d *gateDevice) Close() error { return nil }

func TestStopDuringFirstWriteKeepsPositionZero(t *testing.T) {
	gate := newGateDevice()
	open := func(int, int) (audio.Device, error) { return gate, nil }
	e, _, _ := newTestEngine(t, 60, open)

	if err := e.Play(); err != nil {
		t.Fatalf("Play() error = %v", err)
	}
	select {
	case <-gate.entered:
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for the first write")
	}

	stopped := make(chan struct{})
	go func() {
		e.Stop()
		close(stopped)
	}()
	eventually(t, func() bool { return e.Status() == api.StatusStopped }, "stop to land")
	close(gate.release)

	select {
	case <-stopped:
	case <-time.After(3 * time.Second):
		t.Fatal("Stop did not return")
	}
	if e.Status() != api.StatusStopped {
		t.Errorf("status = %v, want stopped", e.Status())
	}
	if got := e.Position(); got != 0 {
		t.Errorf("position after stop = %v, want 0", got)
	}
}

func TestPlayWhileEditing(t *testing.T) {
	dev := &fakeDevice{pace: time.Millisecond}
	e, tl, _ := newTestEngine(t, 60, openerFor(dev))

	var ids []string
	for i := 0; i < 4; i++ {
		buf, err := audio.Constant(0.25, testRate, 2, testRate)
		if err != nil {
			t.Fatal(err)
		}
		clip, err := tl.Add("clip", buf, i, float64(i))
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, clip.ID)
	}

	if err := e.Play(); err != nil {
		t.Fatalf("Play() error = %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			id := ids[i%3]
			tl.MoveTo(id, i%4, float64(i%10)/2)
			tl.SetMuted(id, i%2 == 0)
		}
		tl.Remove(ids[3])
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			e.Seek(float64(i % 30))
		}
	}()
	wg.Wait()

	eventually(t, func() bool { return dev.Writes() > 10 }, "writes while editing")
	e.Stop()

	snap := tl.Snapshot()
	if len(snap.Clips) != 3 {
		t.Errorf("clips = %d, want 3", len(snap.Clips))
	}
	if _, ok := snap.Find(ids[3]); ok {
		t.Error("removed clip still on the timeline")
	}
	if e.Position() != 0 {
		t.Errorf("position after stop = %v, want 0", e.Position())
	}
}
