package mixer

import (
	"testing"

	"github.com/jscyril/stem_studio/internal/audio"
	"github.com/jscyril/stem_studio/internal/timeline"
)

const rate = 44100

func monoClip(t *testing.T, value float32, seconds, start float64, track int) timeline.Clip {
	t.Helper()
	buf, err := audio.Constant(value, int(seconds*rate), 1, rate)
	if err != nil {
		t.Fatal(err)
	}
	return timeline.Clip{ID: t.Name(), Track: track, Start: start, Buffer: buf}
}

func peakOf(buf [][2]float32) float32 {
	var peak float32
	for _, f := range buf {
		peak = max(peak, abs32(f[0]), abs32(f[1]))
	}
	return peak
}

func TestFrameCount(t *testing.T) {
	tests := []struct {
		dur  float64
		rate int
		want int
	}{
		{1.0, 44100, 44100},
		{2048.0 / 44100, 44100, 2048},
		{0.1, 48000, 4800},
		{0, 44100, 0},
		{-1, 44100, 0},
	}
	for _, tt := range tests {
		if got := FrameCount(tt.dur, tt.rate); got != tt.want {
			t.Errorf("FrameCount(%v, %d) = %d, want %d", tt.dur, tt.rate, got, tt.want)
		}
	}
}

func TestSilenceOnEmptyWindow(t *testing.T) {
	clips := []timeline.Clip{monoClip(t, 0.5, 1, 5, 0)}

	for _, set := range [][]timeline.Clip{nil, clips} {
		buf, sr := RenderWindow(set, 0, 1, rate)
		if sr != rate {
			t.Errorf("sample rate = %d, want %d", sr, rate)
		}
		if len(buf) != rate {
			t.Fatalf("len = %d, want %d", len(buf), rate)
		}
		if p := peakOf(buf); p != 0 {
			t.Errorf("peak = %v, want silence", p)
		}
	}
}

func TestOverlappingClipsScenario(t *testing.T) {
	a := monoClip(t, 0.5, 2, 0, 0)
	b := monoClip(t, 0.5, 2, 1, 1)

	buf, _ := RenderWindow([]timeline.Clip{a, b}, 0.5, 1.0, rate)
	if len(buf) != rate {
		t.Fatalf("len = %d, want %d", len(buf), rate)
	}

	half := rate / 2
	for i, f := range buf {
		want := float32(0.5)
		if i >= half {
			want = 1.0
		}
		if f[0] != want || f[1] != want {
			t.Fatalf("frame %d = %v, want %v on both channels", i, f, want)
		}
	}
}

func TestMuteExclusion(t *testing.T) {
	a := monoClip(t, 0.5, 2, 0, 0)
	b := monoClip(t, 0.5, 2, 1, 1)
	a.Muted = true
	b.Muted = true

	for _, start := range []float64{0, 0.5, 1.5, 2.9} {
		buf, _ := RenderWindow([]timeline.Clip{a, b}, start, 0.25, rate)
		if p := peakOf(buf); p != 0 {
			t.Errorf("window at %v: peak = %v, want silence", start, p)
		}
	}

	b.Muted = false
	buf, _ := RenderWindow([]timeline.Clip{a, b}, 1, 0.5, rate)
	if buf[0][0] != 0.5 {
		t.Errorf("only the unmuted clip should sound, got %v", buf[0][0])
	}
}

func TestAdditivityBelowLimit(t *testing.T) {
	a := monoClip(t, 0.2, 1, 0, 0)
	stereo, _ := audio.NewBuffer(stereoRamp(rate), 2, rate)
	b := timeline.Clip{ID: "b", Track: 1, Start: 0.3, Buffer: stereo}

	both, _ := RenderWindow([]timeline.Clip{a, b}, 0.1, 0.5, rate)
	onlyA, _ := RenderWindow([]timeline.Clip{a}, 0.1, 0.5, rate)
	onlyB, _ := RenderWindow([]timeline.Clip{b}, 0.1, 0.5, rate)

	for i := range both {
		for c := 0; c < 2; c++ {
			if both[i][c] != onlyA[i][c]+onlyB[i][c] {
				t.Fatalf("frame %d ch %d: %v != %v + %v", i, c, both[i][c], onlyA[i][c], onlyB[i][c])
			}
		}
	}
}

func stereoRamp(frames int) []float32 {
	data := make([]float32, 2*frames)
	for i := 0; i < frames; i++ {
		data[2*i] = float32(i%100) / 400
		data[2*i+1] = -float32(i%50) / 400
	}
	return data
}

func TestClippingNormalization(t *testing.T) {
	loud := monoClip(t, 0.75, 1, 0, 0)
	quiet := monoClip(t, 0.75, 0.5, 0, 1)

	buf, _ := RenderWindow([]timeline.Clip{loud, quiet}, 0, 1, rate)
	if p := peakOf(buf); p != 1.0 {
		t.Fatalf("peak = %v, want exactly 1.0", p)
	}
	// first half summed to 1.5, second half was 0.75
	if buf[0][0] != 1.0 {
		t.Errorf("summed frame = %v, want 1.0", buf[0][0])
	}
	if got := buf[len(buf)-1][0]; got != 0.5 {
		t.Errorf("0.75 frame = %v, want 0.5 after scaling by 1/1.5", got)
	}
}

func TestLimitReturnsGain(t *testing.T) {
	buf := [][2]float32{{0.5, -2}, {1, 0}}
	peak, gain := Limit(buf)
	if peak != 2 || gain != 0.5 {
		t.Errorf("Limit() = (%v, %v), want (2, 0.5)", peak, gain)
	}
	if buf[0][1] != -1 || buf[1][0] != 0.5 {
		t.Errorf("scaled buffer = %v", buf)
	}

	quiet := [][2]float32{{0.3, 0.3}}
	if _, gain := Limit(quiet); gain != 1 || quiet[0][0] != 0.3 {
		t.Errorf("buffer under the limit should be untouched, gain %v", gain)
	}
}

func TestWindowCrossingClipEdges(t *testing.T) {
	c := monoClip(t, 0.5, 1, 1, 0)

	buf, _ := RenderWindow([]timeline.Clip{c}, 0.5, 1, rate)
	half := rate / 2
	if buf[half-1][0] != 0 || buf[half][0] != 0.5 {
		t.Errorf("clip should begin at frame %d: %v %v", half, buf[half-1], buf[half])
	}

	buf, _ = RenderWindow([]timeline.Clip{c}, 1.5, 1, rate)
	if buf[half-1][0] != 0.5 || buf[half][0] != 0 {
		t.Errorf("clip should end at frame %d: %v %v", half, buf[half-1], buf[half])
	}
}

func TestMixerReusesBuffer(t *testing.T) {
	var m Mixer
	c := monoClip(t, 0.5, 1, 0, 0)

	first := m.Render([]timeline.Clip{c}, 0, 2048, rate)
	if first[0][0] != 0.5 {
		t.Fatalf("frame 0 = %v, want 0.5", first[0][0])
	}
	second := m.Render(nil, 0, 2048, rate)
	if &first[0] != &second[0] {
		t.Error("Render should reuse its buffer")
	}
	if second[0][0] != 0 {
		t.Error("reused buffer must be cleared between renders")
	}
}

func TestMixIntoReportsContribution(t *testing.T) {
	dst := make([][2]float32, 10)
	if MixInto(dst, nil, 0, rate) {
		t.Error("no clips should not contribute")
	}
	c := monoClip(t, 0.1, 1, 0, 0)
	if !MixInto(dst, []timeline.Clip{c}, 0, rate) {
		t.Error("overlapping clip should contribute")
	}
}
