package synth

import (
	"math"
	"math/rand/v2"
	"testing"
)

const rate = 8000

func rms(m Mono) float64 {
	s := 0.0
	for _, x := range m {
		s += x * x
	}
	return math.Sqrt(s / float64(len(m)))
}

func TestOscLength(t *testing.T) {
	m := Osc(rate, Sine, Const(440), 0.25)
	if len(m) != 2000 {
		t.Errorf("len = %d, want 2000", len(m))
	}
}

func TestOscSineCrossings(t *testing.T) {
	m := Osc(rate, Sine, Const(100), 1)
	crossings := 0
	for i := 1; i < len(m); i++ {
		if m[i-1] < 0 && m[i] >= 0 {
			crossings++
		}
	}
	if crossings < 99 || crossings > 101 {
		t.Errorf("upward crossings = %d, want ~100", crossings)
	}
}

func TestLowpassAttenuatesHighTone(t *testing.T) {
	low := Osc(rate, Sine, Const(100), 0.5).Filter(rate, Lowpass, Const(300), 0.707)
	high := Osc(rate, Sine, Const(3000), 0.5).Filter(rate, Lowpass, Const(300), 0.707)
	if rms(high) >= rms(low)/10 {
		t.Errorf("lowpass leak: high rms %v vs low rms %v", rms(high), rms(low))
	}
}

func TestHighpassAttenuatesLowTone(t *testing.T) {
	low := Osc(rate, Sine, Const(50), 0.5).Filter(rate, Highpass, Const(2000), 0.707)
	high := Osc(rate, Sine, Const(3500), 0.5).Filter(rate, Highpass, Const(2000), 0.707)
	if rms(low) >= rms(high)/10 {
		t.Errorf("highpass leak: low rms %v vs high rms %v", rms(low), rms(high))
	}
}

func TestEnvelope(t *testing.T) {
	e := NewEnvelope(0).Linear(1, 0.3).Linear(0.7, 0.6).Linear(0, 1.2)
	tests := []struct {
		at, want float64
	}{
		{0, 0},
		{0.15, 0.5},
		{0.3, 1},
		{0.45, 0.85},
		{0.9, 0.35},
		{1.2, 0},
		{5, 0},
	}
	for _, tt := range tests {
		if got := e.At(tt.at); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("At(%v) = %v, want %v", tt.at, got, tt.want)
		}
	}
	if e.End() != 1.2 {
		t.Errorf("End = %v, want 1.2", e.End())
	}
}

func TestEnvelopeExp(t *testing.T) {
	e := NewEnvelope(1).Exp(0.01, 1)
	if got := e.At(0.5); math.Abs(got-0.1) > 1e-9 {
		t.Errorf("At(0.5) = %v, want 0.1", got)
	}
}

func TestPanHardLeft(t *testing.T) {
	b := Mono{1}.Pan(-1)
	if math.Abs(b[0][0]-1) > 1e-9 || math.Abs(b[0][1]) > 1e-9 {
		t.Errorf("hard left = %v", b[0])
	}
}

func TestImpulseDecays(t *testing.T) {
	imp := NewImpulse(rate, 1, 1000, rand.New(rand.NewPCG(1, 2)))
	if len(imp.taps) == 0 {
		t.Fatal("no taps")
	}
	first, last := math.Abs(imp.taps[0].gain), math.Abs(imp.taps[len(imp.taps)-1].gain)
	if last >= first {
		t.Errorf("tail %v not below head %v", last, first)
	}
}

func TestReverbExtendsBuffer(t *testing.T) {
	imp := NewImpulse(rate, 0.5, 500, rand.New(rand.NewPCG(3, 4)))
	dry := Osc(rate, Sine, Const(200), 0.1).Stereo()
	wet := dry.Reverb(imp, 0.25)
	if len(wet) != len(dry)+imp.Len() {
		t.Errorf("len = %d, want %d", len(wet), len(dry)+imp.Len())
	}
	if dry.Reverb(imp, 0)[0] != dry[0] {
		t.Error("zero mix should return dry signal")
	}
}

func TestBufferStreamer(t *testing.T) {
	b := Mono{0.1, 0.2, 0.3}.Stereo()
	s := b.Streamer()
	out := make([][2]float64, 2)
	n, ok := s.Stream(out)
	if n != 2 || !ok {
		t.Fatalf("first Stream = %d,%v", n, ok)
	}
	n, ok = s.Stream(out)
	if n != 1 || !ok {
		t.Fatalf("second Stream = %d,%v", n, ok)
	}
	if _, ok = s.Stream(out); ok {
		t.Fatal("drained streamer still ok")
	}
}
